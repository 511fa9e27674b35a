// Package game implements the table engine: multi-variant poker tables
// driven by explicit player actions.
//
// The main type is Table, which owns the state of one table across hands:
// seats, the deck, betting rounds, side pots and the per-table hand log.
// Table is not safe for concurrent use; the server serializes access by
// running one goroutine per table.
//
// # Basic Usage
//
// Create a table, seat players, and apply actions until the hand settles:
//
//	t := game.NewTable("t1", game.Texas, game.NoLimit, game.Blinds{Small: 1, Big: 2}, "1/2", true)
//	t.AddSeat("alice", "Alice", 200, -1, time.Now())
//	t.AddSeat("bob", "Bob", 200, -1, time.Now())
//	// Two connected seats auto-start the first hand.
//	err := t.ApplyAction(game.Action{PlayerID: "alice", Kind: game.Call, At: time.Now()})
//
// # Deterministic Testing
//
// Tests stack the next deal rather than seeding a shuffle:
//
//	t := game.NewTable(..., game.WithDeck(deck.MustParseCards("AhAd KsKd 2c7d9h3s5c")...))
//
// WithRand swaps the shuffle source instead when full hands should still be
// dealt randomly but reproducibly.
//
// # Views
//
// ViewFor renders the table for one viewer, concealing every other seat's
// hole cards until showdown. The empty viewer id produces the spectator
// view with all hole cards hidden.
package game
