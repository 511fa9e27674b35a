package game

import (
	"errors"
	"testing"
	"time"

	"github.com/lox/cardroom/internal/deck"
)

var testStart = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func mustAddSeat(t *testing.T, tbl *Table, playerID, name string, buyIn, want int, at time.Time) int {
	t.Helper()
	index, err := tbl.AddSeat(playerID, name, buyIn, want, at)
	if err != nil {
		t.Fatalf("AddSeat(%s): %v", playerID, err)
	}
	return index
}

func mustApply(t *testing.T, tbl *Table, playerID string, kind ActionKind, amount int, at time.Time) {
	t.Helper()
	err := tbl.ApplyAction(Action{PlayerID: playerID, Kind: kind, Amount: amount, At: at})
	if err != nil {
		t.Fatalf("ApplyAction(%s %s %d): %v", playerID, kind, amount, err)
	}
}

func TestNewTableStartsWaiting(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)

	if tbl.Stage != Waiting {
		t.Errorf("new table should be waiting, got %s", tbl.Stage)
	}
	if tbl.MaxSeats != 9 {
		t.Errorf("texas tables seat 9, got %d", tbl.MaxSeats)
	}
	if got := NewTable("t2", Omaha, PotLimit, Blinds{Small: 1, Big: 2}, "1/2", true); got.MaxSeats != 6 {
		t.Errorf("omaha tables seat 6, got %d", got.MaxSeats)
	}
}

func TestAddSeatAssignsRequestedThenLowestFree(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)

	if got := mustAddSeat(t, tbl, "a", "Alice", 200, 3, testStart); got != 3 {
		t.Errorf("requested free seat 3, got %d", got)
	}
	// Seat 3 is taken, so Bob lands on the lowest free index.
	if got := mustAddSeat(t, tbl, "b", "Bob", 200, 3, testStart); got != 0 {
		t.Errorf("taken seat should fall back to 0, got %d", got)
	}
	if got := mustAddSeat(t, tbl, "c", "Carol", 200, -1, testStart); got != 1 {
		t.Errorf("no preference should take lowest free seat 1, got %d", got)
	}
}

func TestAddSeatRejectsDuplicateAndFull(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Omaha, PotLimit, Blinds{Small: 1, Big: 2}, "1/2", true)

	for i := 0; i < 6; i++ {
		mustAddSeat(t, tbl, string(rune('a'+i)), "P", 200, i, testStart)
	}
	if _, err := tbl.AddSeat("a", "P", 200, -1, testStart); !errors.Is(err, ErrAlreadySeated) {
		t.Errorf("duplicate join: want ErrAlreadySeated, got %v", err)
	}
	if _, err := tbl.AddSeat("g", "P", 200, -1, testStart); !errors.Is(err, ErrTableFull) {
		t.Errorf("seventh seat: want ErrTableFull, got %v", err)
	}
}

func TestAutoStartAtTwoConnectedSeats(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)

	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)
	if tbl.Stage != Waiting {
		t.Fatalf("one seat should stay waiting, got %s", tbl.Stage)
	}

	mustAddSeat(t, tbl, "b", "Bob", 200, 1, testStart)
	if tbl.Stage != Preflop {
		t.Fatalf("second seat should start a hand, got %s", tbl.Stage)
	}
	if tbl.HandNum != 1 {
		t.Errorf("hand number should be 1, got %d", tbl.HandNum)
	}
	for _, s := range tbl.Seats {
		if len(s.HoleCards) != 2 {
			t.Errorf("seat %d has %d hole cards, want 2", s.Index, len(s.HoleCards))
		}
	}
}

func TestReattachPreservesSeatMidHand(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)
	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)
	mustAddSeat(t, tbl, "b", "Bob", 200, 1, testStart)

	bob := tbl.SeatOf("b")
	cards := append([]deck.Card(nil), bob.HoleCards...)
	stack := bob.Stack

	tbl.MarkDisconnected("b")
	if bob.Connected {
		t.Fatal("seat should be marked disconnected")
	}

	index, err := tbl.AddSeat("b", "Bob", 500, 4, testStart)
	if err != nil {
		t.Fatalf("re-attach failed: %v", err)
	}
	if index != 1 {
		t.Errorf("re-attach must keep seat 1, got %d", index)
	}
	if bob.Stack != stack {
		t.Errorf("re-attach must keep stack %d, got %d", stack, bob.Stack)
	}
	if len(bob.HoleCards) != len(cards) || bob.HoleCards[0] != cards[0] {
		t.Error("re-attach must keep hole cards")
	}
	if !bob.Connected {
		t.Error("re-attach must clear the disconnected flag")
	}
	if tbl.Stage != Preflop {
		t.Errorf("hand should still be running, got %s", tbl.Stage)
	}
}

func TestRemoveSeatOutsideHandDropsSeat(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)
	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)

	if err := tbl.RemoveSeat("a"); err != nil {
		t.Fatalf("RemoveSeat: %v", err)
	}
	if len(tbl.Seats) != 0 {
		t.Errorf("seat should be gone, %d remain", len(tbl.Seats))
	}
	if err := tbl.RemoveSeat("a"); !errors.Is(err, ErrNotInHand) {
		t.Errorf("removing an absent player: want ErrNotInHand, got %v", err)
	}
}

func TestRemoveSeatMidHandDropsCardlessSeat(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)
	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)
	mustAddSeat(t, tbl, "b", "Bob", 200, 1, testStart)
	mustAddSeat(t, tbl, "c", "Carol", 200, 2, testStart)

	// The hand started heads-up when Bob joined; Carol was dealt no cards
	// and can leave cleanly even mid-hand.
	if tbl.Stage != Preflop {
		t.Fatalf("expected a running hand, got %s", tbl.Stage)
	}
	if err := tbl.RemoveSeat("c"); err != nil {
		t.Fatalf("RemoveSeat(c): %v", err)
	}
	if tbl.SeatOf("c") != nil {
		t.Error("cardless seat should drop immediately")
	}
	if tbl.Stage != Preflop {
		t.Errorf("hand should continue, got %s", tbl.Stage)
	}
}

func TestRemoveSeatMidHandFoldsAndRetains(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)
	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)
	mustAddSeat(t, tbl, "b", "Bob", 200, 1, testStart)
	mustApply(t, tbl, "a", Fold, 0, testStart)
	mustAddSeat(t, tbl, "c", "Carol", 200, 2, testStart)

	// Second hand deals all three. Dealer rotates to Bob, Carol posts the
	// small blind, Alice the big blind, Bob acts first.
	if err := tbl.StartHand(testStart.Add(5 * time.Second)); err != nil {
		t.Fatalf("StartHand: %v", err)
	}

	// A dealt-in seat leaving mid-hand folds but keeps its chips in play.
	potBefore := tbl.Pot
	if err := tbl.RemoveSeat("c"); err != nil {
		t.Fatalf("RemoveSeat(c): %v", err)
	}
	carol := tbl.SeatOf("c")
	if carol == nil {
		t.Fatal("dealt-in seat must be retained mid-hand")
	}
	if !carol.Folded || carol.Connected {
		t.Errorf("retained seat should be folded and disconnected, got folded=%v connected=%v", carol.Folded, carol.Connected)
	}
	if tbl.Pot != potBefore {
		t.Errorf("pot must keep the leaver's blind: %d != %d", tbl.Pot, potBefore)
	}
	if tbl.Stage != Preflop {
		t.Fatalf("two live seats remain, hand should continue, got %s", tbl.Stage)
	}

	// The hand plays on around the abandoned seat.
	mustApply(t, tbl, "b", Call, 0, testStart.Add(6*time.Second))
	mustApply(t, tbl, "a", Check, 0, testStart.Add(7*time.Second))
	if tbl.Stage != Flop {
		t.Errorf("expected flop, got %s", tbl.Stage)
	}
	if len(tbl.Seats) != 3 {
		t.Errorf("folded leaver should still hold a seat, have %d", len(tbl.Seats))
	}
}

func TestChangeSeatBetweenHands(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)
	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)
	mustAddSeat(t, tbl, "b", "Bob", 200, 1, testStart)

	var illegalErr *IllegalActionError
	if err := tbl.ChangeSeat("a", 5); !errors.As(err, &illegalErr) {
		t.Fatalf("mid-hand seat change: want IllegalActionError, got %v", err)
	}

	// Alice folds, the hand ends, and moving becomes legal.
	mustApply(t, tbl, "a", Fold, 0, testStart)
	if tbl.Stage != Showdown {
		t.Fatalf("expected showdown, got %s", tbl.Stage)
	}
	if err := tbl.ChangeSeat("a", 1); !errors.Is(err, ErrSeatTaken) {
		t.Errorf("occupied target: want ErrSeatTaken, got %v", err)
	}
	if err := tbl.ChangeSeat("a", 5); err != nil {
		t.Fatalf("ChangeSeat: %v", err)
	}
	if tbl.SeatOf("a").Index != 5 {
		t.Errorf("seat index not updated: %d", tbl.SeatOf("a").Index)
	}
	// Seats stay ordered by index.
	if tbl.Seats[0].PlayerID != "b" || tbl.Seats[1].PlayerID != "a" {
		t.Errorf("seats out of order: %s, %s", tbl.Seats[0].PlayerID, tbl.Seats[1].PlayerID)
	}
}

func TestHandNumbersIncreaseAndButtonRotates(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)
	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)
	mustAddSeat(t, tbl, "b", "Bob", 200, 1, testStart)

	if tbl.DealerIndex() != 0 {
		t.Fatalf("first hand dealer should be seat 0, got %d", tbl.DealerIndex())
	}
	mustApply(t, tbl, "a", Fold, 0, testStart)

	if err := tbl.StartHand(testStart.Add(5 * time.Second)); err != nil {
		t.Fatalf("StartHand: %v", err)
	}
	if tbl.HandNum != 2 {
		t.Errorf("hand number should be 2, got %d", tbl.HandNum)
	}
	if tbl.DealerIndex() != 1 {
		t.Errorf("button should rotate to seat 1, got %d", tbl.DealerIndex())
	}
}

func TestStartHandRequiresTwoSeats(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)
	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)

	if err := tbl.StartHand(testStart); !errors.Is(err, ErrNotEnoughPlayers) {
		t.Errorf("want ErrNotEnoughPlayers, got %v", err)
	}
}

func TestStartHandPurgesDisconnected(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)
	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)
	mustAddSeat(t, tbl, "b", "Bob", 200, 1, testStart)
	mustApply(t, tbl, "a", Fold, 0, testStart)
	mustAddSeat(t, tbl, "c", "Carol", 200, 2, testStart)

	tbl.MarkDisconnected("a")
	tbl.MarkDisconnected("b")

	// Only Carol survives the purge, so no hand can start.
	err := tbl.StartHand(testStart.Add(5 * time.Second))
	if !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("want ErrNotEnoughPlayers after purge, got %v", err)
	}
	if tbl.SeatOf("a") != nil || tbl.SeatOf("b") != nil {
		t.Error("disconnected seats should have been purged")
	}
	if tbl.Stage != Waiting {
		t.Errorf("table should fall back to waiting, got %s", tbl.Stage)
	}
}

func TestTakeDepartedReportsRemovedSeats(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)
	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)

	if err := tbl.RemoveSeat("a"); err != nil {
		t.Fatalf("RemoveSeat: %v", err)
	}
	deps := tbl.TakeDeparted()
	if len(deps) != 1 || deps[0].PlayerID != "a" || deps[0].Stack != 200 {
		t.Fatalf("want departure a/200, got %+v", deps)
	}
	if again := tbl.TakeDeparted(); len(again) != 0 {
		t.Errorf("second take should be empty, got %+v", again)
	}
}

func TestTakeDepartedIncludesPurgedSeats(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)
	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)
	mustAddSeat(t, tbl, "b", "Bob", 200, 1, testStart)

	// Alice folds her small blind; Bob banks the pot and then drops off.
	mustApply(t, tbl, "a", Fold, 0, testStart)
	tbl.MarkDisconnected("b")
	tbl.TakeDeparted()

	err := tbl.StartHand(testStart.Add(5 * time.Second))
	if !errors.Is(err, ErrNotEnoughPlayers) {
		t.Fatalf("want ErrNotEnoughPlayers, got %v", err)
	}
	deps := tbl.TakeDeparted()
	if len(deps) != 1 || deps[0].PlayerID != "b" || deps[0].Stack != 201 {
		t.Fatalf("purged seat should depart with its final stack, got %+v", deps)
	}
}

func TestContributionsSnapshotAtHandEnd(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)
	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)
	mustAddSeat(t, tbl, "b", "Bob", 200, 1, testStart)

	// Heads-up the dealer posts the small blind; folding it ends the hand
	// with both blinds on record.
	mustApply(t, tbl, "a", Fold, 0, testStart)
	if got := tbl.Contributions["a"]; got != 1 {
		t.Errorf("folded small blind should contribute 1, got %d", got)
	}
	if got := tbl.Contributions["b"]; got != 2 {
		t.Errorf("big blind should contribute 2, got %d", got)
	}
}

func TestDeckExhaustionAbortsAutoStart(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true,
		WithDeck(deck.MustParseCards("AsKs Qd")...))

	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)
	mustAddSeat(t, tbl, "b", "Bob", 200, 1, testStart)

	// Three cards cannot cover two starting hands; the auto-started deal
	// aborts and the table keeps waiting with stacks untouched.
	if tbl.Stage != Waiting {
		t.Fatalf("short deck should abort the deal, got %s", tbl.Stage)
	}
	for _, s := range tbl.Seats {
		if s.Stack != 200 {
			t.Errorf("seat %d stack should be untouched, got %d", s.Index, s.Stack)
		}
	}
	if len(tbl.Seats) != 2 {
		t.Errorf("both seats should remain, have %d", len(tbl.Seats))
	}
}

func TestDeckExhaustionMidHandRefunds(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true,
		WithDeck(deck.MustParseCards("AsKs QdJd")...))

	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)
	mustAddSeat(t, tbl, "b", "Bob", 200, 1, testStart)
	if tbl.Stage != Preflop {
		t.Fatalf("four cards cover the hole deal, got %s", tbl.Stage)
	}

	// Closing the preflop round needs a flop the deck cannot supply: the
	// hand aborts and every blind is refunded.
	mustApply(t, tbl, "a", Call, 0, testStart)
	err := tbl.ApplyAction(Action{PlayerID: "b", Kind: Check, At: testStart})
	if !errors.Is(err, deck.ErrExhausted) {
		t.Fatalf("want ErrExhausted, got %v", err)
	}
	if tbl.Stage != Waiting {
		t.Errorf("aborted hand should reset to waiting, got %s", tbl.Stage)
	}
	if tbl.Pot != 0 {
		t.Errorf("aborted pot should be 0, got %d", tbl.Pot)
	}
	for _, s := range tbl.Seats {
		if s.Stack != 200 {
			t.Errorf("seat %d should be refunded to 200, got %d", s.Index, s.Stack)
		}
	}
}

func TestIntegrityViolationAbortsHand(t *testing.T) {
	t.Parallel()
	tbl := NewTable("t1", Texas, NoLimit, Blinds{Small: 1, Big: 2}, "1/2", true)
	mustAddSeat(t, tbl, "a", "Alice", 200, 0, testStart)
	mustAddSeat(t, tbl, "b", "Bob", 200, 1, testStart)

	// Corrupt the pot behind the engine's back; the next apply must
	// detect it, refund all contributions and reset the table.
	tbl.Pot += 5
	err := tbl.ApplyAction(Action{PlayerID: "a", Kind: Call, At: testStart})
	if !errors.Is(err, ErrIntegrity) {
		t.Fatalf("want ErrIntegrity, got %v", err)
	}
	if tbl.Stage != Waiting {
		t.Errorf("aborted hand should reset to waiting, got %s", tbl.Stage)
	}
	if tbl.Pot != 0 {
		t.Errorf("aborted pot should be 0, got %d", tbl.Pot)
	}
	for _, s := range tbl.Seats {
		if s.Stack != 200 {
			t.Errorf("seat %d should be refunded to 200, got %d", s.Index, s.Stack)
		}
		if len(s.HoleCards) != 0 {
			t.Errorf("seat %d should have no cards after abort", s.Index)
		}
	}
}
