package phh

import (
	"fmt"
	"strings"
	"time"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/history"
)

// Meta identifies the table a record came from. The converter needs it for
// the variant code, the blind sizes and the archive path.
type Meta struct {
	TableID string
	Variant game.Variant
	Betting game.BettingType
	Blinds  game.Blinds
}

// FromRecord converts a completed hand record to PHH form. Players are
// listed small blind first; heads-up the button posts the small blind.
func FromRecord(meta Meta, rec history.Record) *Hand {
	n := len(rec.Seats)
	order := positionOrder(rec.Dealer, n)

	// phh position by player id, zero-based
	pos := make(map[string]int, n)
	for p, si := range order {
		pos[rec.Seats[si].PlayerID] = p
	}

	hand := &Hand{
		Variant:           variantCode(meta.Variant, meta.Betting),
		Table:             meta.TableID,
		SeatCount:         n,
		Seats:             make([]int, n),
		Antes:             make([]int, n),
		BlindsOrStraddles: make([]int, n),
		MinBet:            meta.Blinds.Big,
		StartingStacks:    make([]int, n),
		Winnings:          make([]int, n),
		Players:           make([]string, n),
		HandID:            fmt.Sprintf("%s-%d", meta.TableID, rec.HandNum),
	}
	for p, si := range order {
		seat := rec.Seats[si]
		hand.Seats[p] = seat.SeatIndex + 1
		hand.Antes[p] = meta.Blinds.Ante
		hand.StartingStacks[p] = seat.Stack
		hand.Players[p] = seat.Name
	}
	hand.BlindsOrStraddles[0] = meta.Blinds.Small
	if n > 1 {
		hand.BlindsOrStraddles[1] = meta.Blinds.Big
	}
	if len(rec.Finishing) == n {
		hand.FinishingStacks = make([]int, n)
		for p, si := range order {
			hand.FinishingStacks[p] = rec.Finishing[si]
		}
	}
	for _, w := range rec.Winners {
		if p, ok := pos[w.PlayerID]; ok {
			hand.Winnings[p] += w.Amount
		}
	}

	hand.Actions = buildActions(meta, rec, order, pos)
	applyTime(hand, rec.StartedAt)
	return hand
}

// buildActions replays the record into the PHH action vocabulary: hole card
// deals, board deals at street boundaries, then f/cc/cbr per player action
// and sm reveals when the hand was contested at the end.
func buildActions(meta Meta, rec history.Record, order []int, pos map[string]int) []string {
	actions := make([]string, 0, len(order)+len(rec.Actions)+8)

	for p, si := range order {
		cards := "????"
		if hole := rec.Seats[si].HoleCards; len(hole) > 0 {
			cards = cardCodes(hole)
		}
		actions = append(actions, fmt.Sprintf("d dh p%d %s", p+1, cards))
	}

	dealt := 0
	if l := boardLen(meta.Variant, "preflop"); l > 0 && len(rec.Board) >= l {
		actions = append(actions, "d db "+cardCodes(rec.Board[:l]))
		dealt = l
	}

	street := "preflop"
	high := meta.Blinds.Big
	folded := make(map[string]bool, len(order))
	for _, a := range rec.Actions {
		if a.Stage != "" && a.Stage != street {
			street = a.Stage
			if l := boardLen(meta.Variant, street); l > dealt && len(rec.Board) >= l {
				actions = append(actions, "d db "+cardCodes(rec.Board[dealt:l]))
				dealt = l
			}
			high = 0
		}
		p, ok := pos[a.PlayerID]
		if !ok {
			continue
		}
		switch a.Kind {
		case "fold":
			folded[a.PlayerID] = true
			actions = append(actions, fmt.Sprintf("p%d f", p+1))
		case "check", "call":
			actions = append(actions, fmt.Sprintf("p%d cc", p+1))
		case "raise":
			actions = append(actions, fmt.Sprintf("p%d cbr %d", p+1, a.To))
			high = a.To
		case "allin":
			// an all-in below the current bet is a call for less
			if a.To > high {
				actions = append(actions, fmt.Sprintf("p%d cbr %d", p+1, a.To))
				high = a.To
			} else {
				actions = append(actions, fmt.Sprintf("p%d cc", p+1))
			}
		}
	}

	// board run out after betting closed, one deal per street
	for dealt < len(rec.Board) {
		next := nextBoardLen(dealt)
		if next > len(rec.Board) {
			next = len(rec.Board)
		}
		actions = append(actions, "d db "+cardCodes(rec.Board[dealt:next]))
		dealt = next
	}

	live := 0
	for _, s := range rec.Seats {
		if !folded[s.PlayerID] {
			live++
		}
	}
	if live >= 2 {
		for _, si := range order {
			seat := rec.Seats[si]
			if folded[seat.PlayerID] || len(seat.HoleCards) == 0 {
				continue
			}
			actions = append(actions, fmt.Sprintf("p%d sm %s", pos[seat.PlayerID]+1, cardCodes(seat.HoleCards)))
		}
	}

	return actions
}

// positionOrder returns seat indexes in blind order, small blind first.
func positionOrder(dealer, n int) []int {
	order := make([]int, 0, n)
	if n <= 0 {
		return order
	}
	start := (dealer + 1) % n
	if n <= 2 {
		start = dealer % n
	}
	for i := 0; i < n; i++ {
		order = append(order, (start+i)%n)
	}
	return order
}

// boardLen returns how many community cards are on the board once the named
// street is reached.
func boardLen(v game.Variant, street string) int {
	switch street {
	case "flop":
		return 3
	case "turn":
		return 4
	case "river":
		return 5
	case "preflop":
		if v == game.Courchevel {
			return 1
		}
	}
	return 0
}

// nextBoardLen returns the board size after the next street deal.
func nextBoardLen(dealt int) int {
	switch {
	case dealt < 3:
		return 3
	case dealt == 3:
		return 4
	default:
		return 5
	}
}

// variantCode builds the PHH variant code from a betting prefix, N for
// no-limit and P for pot-limit, and the game's letter code.
func variantCode(v game.Variant, b game.BettingType) string {
	prefix := "N"
	if b == game.PotLimit {
		prefix = "P"
	}
	switch v {
	case game.ShortDeck:
		return prefix + "S"
	case game.Royal:
		return prefix + "R"
	case game.Manila:
		return prefix + "M"
	case game.Pineapple:
		return prefix + "P"
	case game.Omaha:
		return prefix + "O"
	case game.OmahaHiLo:
		return prefix + "O8"
	case game.Courchevel:
		return prefix + "C"
	default:
		// texas and fast fold deal texas hands
		return prefix + "T"
	}
}

var suitCodes = map[deck.Suit]string{
	deck.Spades:   "s",
	deck.Hearts:   "h",
	deck.Diamonds: "d",
	deck.Clubs:    "c",
}

// cardCodes renders cards in PHH notation, e.g. "AsKd".
func cardCodes(cards []deck.Card) string {
	var b strings.Builder
	for _, c := range cards {
		b.WriteString(c.Rank.String())
		b.WriteString(suitCodes[c.Suit])
	}
	return b.String()
}

func applyTime(hand *Hand, at time.Time) {
	if at.IsZero() {
		return
	}
	utc := at.UTC()
	hand.Time = utc.Format("15:04:05")
	hand.TimeZone = "UTC"
	hand.Day = utc.Day()
	hand.Month = int(utc.Month())
	hand.Year = utc.Year()
}
