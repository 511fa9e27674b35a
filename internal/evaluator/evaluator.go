// Package evaluator scores five-card poker hands and finds the best hand a
// seat can make from hole cards and board. Scores are monotone integers: a
// higher score always beats a lower one under the same rules, so winner
// selection reduces to integer comparison.
package evaluator

import (
	"fmt"
	"sort"

	"github.com/lox/cardroom/internal/deck"
)

// Category enumerates the poker hand categories from weakest to strongest
// under the standard ordering.
type Category int

const (
	HighCard Category = iota
	OnePair
	TwoPair
	ThreeOfAKind
	Straight
	Flush
	FullHouse
	FourOfAKind
	StraightFlush
	RoyalFlush
)

// String returns the string representation of a hand category
func (c Category) String() string {
	switch c {
	case HighCard:
		return "High Card"
	case OnePair:
		return "One Pair"
	case TwoPair:
		return "Two Pair"
	case ThreeOfAKind:
		return "Three of a Kind"
	case Straight:
		return "Straight"
	case Flush:
		return "Flush"
	case FullHouse:
		return "Full House"
	case FourOfAKind:
		return "Four of a Kind"
	case StraightFlush:
		return "Straight Flush"
	case RoyalFlush:
		return "Royal Flush"
	default:
		return "Unknown"
	}
}

// Rules captures the variant-specific evaluation differences.
type Rules struct {
	// FlushBeatsFullHouse reorders the flush above the full house, the
	// short-deck convention for 36-card play.
	FlushBeatsFullHouse bool
	// UseTwoHoleCards restricts the best-hand search to exactly two hole
	// cards and three board cards, the Omaha convention.
	UseTwoHoleCards bool
}

// strength returns the ordering index of a category under the rules.
func (r Rules) strength(c Category) uint32 {
	if r.FlushBeatsFullHouse {
		switch c {
		case Flush:
			return uint32(FullHouse)
		case FullHouse:
			return uint32(Flush)
		}
	}
	return uint32(c)
}

// HandValue is the scored result of evaluating a five-card hand.
type HandValue struct {
	Category Category
	// Score packs the rules-adjusted category ordering above a kicker
	// vector, so that comparing two hands is comparing two integers.
	Score uint32
	// BestFive holds the five cards ordered by significance (pair cards
	// before kickers, straights high to low).
	BestFive []deck.Card
	Desc     string
}

// Evaluate5 scores exactly five cards. It panics when given any other count;
// callers enumerate combinations before evaluating.
func Evaluate5(cards []deck.Card, rules Rules) HandValue {
	if len(cards) != 5 {
		panic(fmt.Sprintf("evaluator: Evaluate5 requires exactly 5 cards, got %d", len(cards)))
	}

	sorted := make([]deck.Card, 5)
	copy(sorted, cards)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Rank > sorted[j].Rank })

	cat, tiebreak, ordered := classify(sorted)
	return HandValue{
		Category: cat,
		Score:    rules.strength(cat)<<20 | tiebreak,
		BestFive: ordered,
		Desc:     describe(cat, ordered),
	}
}

// classify determines the category of five rank-descending cards and returns
// the kicker vector plus the cards reordered by significance.
func classify(sorted []deck.Card) (Category, uint32, []deck.Card) {
	flush := true
	for _, c := range sorted[1:] {
		if c.Suit != sorted[0].Suit {
			flush = false
			break
		}
	}

	straightHigh, isStraight := straightHighCard(sorted)

	if isStraight && flush {
		ordered := straightOrder(sorted, straightHigh)
		if straightHigh == deck.Ace {
			return RoyalFlush, nibbles(int(deck.Ace)), ordered
		}
		return StraightFlush, nibbles(int(straightHigh)), ordered
	}

	groups := rankGroups(sorted)

	switch {
	case groups[0].n == 4:
		return FourOfAKind,
			nibbles(int(groups[0].rank), int(groups[1].rank)),
			groupOrder(sorted, groups)
	case groups[0].n == 3 && groups[1].n == 2:
		return FullHouse,
			nibbles(int(groups[0].rank), int(groups[1].rank)),
			groupOrder(sorted, groups)
	case flush:
		return Flush, rankVector(sorted), sorted
	case isStraight:
		return Straight, nibbles(int(straightHigh)), straightOrder(sorted, straightHigh)
	case groups[0].n == 3:
		return ThreeOfAKind,
			nibbles(int(groups[0].rank), int(groups[1].rank), int(groups[2].rank)),
			groupOrder(sorted, groups)
	case groups[0].n == 2 && groups[1].n == 2:
		return TwoPair,
			nibbles(int(groups[0].rank), int(groups[1].rank), int(groups[2].rank)),
			groupOrder(sorted, groups)
	case groups[0].n == 2:
		return OnePair,
			nibbles(int(groups[0].rank), int(groups[1].rank), int(groups[2].rank), int(groups[3].rank)),
			groupOrder(sorted, groups)
	default:
		return HighCard, rankVector(sorted), sorted
	}
}

type rankGroup struct {
	rank deck.Rank
	n    int
}

// rankGroups buckets the cards by rank, ordered by count then rank
// descending. The first group is always the defining one for paired hands.
func rankGroups(sorted []deck.Card) []rankGroup {
	counts := make(map[deck.Rank]int, 5)
	for _, c := range sorted {
		counts[c.Rank]++
	}
	groups := make([]rankGroup, 0, len(counts))
	for r, n := range counts {
		groups = append(groups, rankGroup{rank: r, n: n})
	}
	sort.Slice(groups, func(i, j int) bool {
		if groups[i].n != groups[j].n {
			return groups[i].n > groups[j].n
		}
		return groups[i].rank > groups[j].rank
	})
	return groups
}

// groupOrder reorders the cards to follow the group significance order.
func groupOrder(sorted []deck.Card, groups []rankGroup) []deck.Card {
	ordered := make([]deck.Card, 0, 5)
	for _, g := range groups {
		for _, c := range sorted {
			if c.Rank == g.rank {
				ordered = append(ordered, c)
			}
		}
	}
	return ordered
}

// straightHighCard reports whether five rank-descending cards form a
// straight and returns its high card. The ace plays high or low; the wheel
// A-2-3-4-5 has high card five.
func straightHighCard(sorted []deck.Card) (deck.Rank, bool) {
	for i := 1; i < 5; i++ {
		if sorted[i].Rank == sorted[i-1].Rank {
			return 0, false
		}
	}
	if sorted[0].Rank == sorted[4].Rank+4 {
		return sorted[0].Rank, true
	}
	if sorted[0].Rank == deck.Ace &&
		sorted[1].Rank == deck.Five &&
		sorted[4].Rank == deck.Two {
		return deck.Five, true
	}
	return 0, false
}

// straightOrder puts a straight's cards in play order, moving the ace to the
// bottom for the wheel.
func straightOrder(sorted []deck.Card, high deck.Rank) []deck.Card {
	if high == deck.Five && sorted[0].Rank == deck.Ace {
		ordered := make([]deck.Card, 0, 5)
		ordered = append(ordered, sorted[1:]...)
		return append(ordered, sorted[0])
	}
	return sorted
}

// nibbles packs up to five rank values into a 20-bit kicker vector, most
// significant first.
func nibbles(vals ...int) uint32 {
	var out uint32
	for _, v := range vals {
		out = out<<4 | uint32(v)
	}
	for i := len(vals); i < 5; i++ {
		out <<= 4
	}
	return out
}

func rankVector(sorted []deck.Card) uint32 {
	vals := make([]int, 5)
	for i, c := range sorted {
		vals[i] = int(c.Rank)
	}
	return nibbles(vals...)
}

// rankNames maps ranks to their plural-friendly full names.
var rankNames = map[deck.Rank]string{
	deck.Two:   "Two",
	deck.Three: "Three",
	deck.Four:  "Four",
	deck.Five:  "Five",
	deck.Six:   "Six",
	deck.Seven: "Seven",
	deck.Eight: "Eight",
	deck.Nine:  "Nine",
	deck.Ten:   "Ten",
	deck.Jack:  "Jack",
	deck.Queen: "Queen",
	deck.King:  "King",
	deck.Ace:   "Ace",
}

func rankName(r deck.Rank) string {
	if name, ok := rankNames[r]; ok {
		return name
	}
	return "?"
}

func plural(r deck.Rank) string {
	name := rankName(r)
	if r == deck.Six {
		return name + "es"
	}
	return name + "s"
}

// describe renders a winner-facing description like "Full House, Kings over
// Twos". The cards must already be in significance order.
func describe(cat Category, ordered []deck.Card) string {
	switch cat {
	case RoyalFlush:
		return "Royal Flush"
	case StraightFlush:
		return fmt.Sprintf("Straight Flush, %s High", rankName(ordered[0].Rank))
	case FourOfAKind:
		return fmt.Sprintf("Four of a Kind, %s", plural(ordered[0].Rank))
	case FullHouse:
		return fmt.Sprintf("Full House, %s over %s", plural(ordered[0].Rank), plural(ordered[3].Rank))
	case Flush:
		return fmt.Sprintf("Flush, %s High", rankName(ordered[0].Rank))
	case Straight:
		return fmt.Sprintf("Straight, %s High", rankName(ordered[0].Rank))
	case ThreeOfAKind:
		return fmt.Sprintf("Three of a Kind, %s", plural(ordered[0].Rank))
	case TwoPair:
		return fmt.Sprintf("Two Pair, %s and %s", plural(ordered[0].Rank), plural(ordered[2].Rank))
	case OnePair:
		return fmt.Sprintf("Pair of %s", plural(ordered[0].Rank))
	default:
		return fmt.Sprintf("%s High", rankName(ordered[0].Rank))
	}
}
