package game

import (
	"fmt"

	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/evaluator"
)

// Variant identifies the poker game dealt at a table.
type Variant string

const (
	Texas      Variant = "texas"
	ShortDeck  Variant = "short_deck"
	Royal      Variant = "royal"
	Manila     Variant = "manila"
	Pineapple  Variant = "pineapple"
	Omaha      Variant = "omaha"
	OmahaHiLo  Variant = "omaha_hi_lo"
	Courchevel Variant = "courchevel"
	FastFold   Variant = "fast_fold"
)

// Variants lists every playable variant.
var Variants = []Variant{
	Texas, ShortDeck, Royal, Manila, Pineapple, Omaha, OmahaHiLo, Courchevel, FastFold,
}

// ParseVariant validates a wire string as a variant.
func ParseVariant(s string) (Variant, error) {
	v := Variant(s)
	if !v.Valid() {
		return "", fmt.Errorf("unknown variant %q", s)
	}
	return v, nil
}

// Valid reports whether v names a playable variant.
func (v Variant) Valid() bool {
	switch v {
	case Texas, ShortDeck, Royal, Manila, Pineapple, Omaha, OmahaHiLo, Courchevel, FastFold:
		return true
	}
	return false
}

// HoleCards returns the number of cards dealt to each seat.
func (v Variant) HoleCards() int {
	switch v {
	case Pineapple:
		return 3
	case Omaha, OmahaHiLo:
		return 4
	case Courchevel:
		return 5
	default:
		return 2
	}
}

// DeckKind returns the rank set the variant deals from.
func (v Variant) DeckKind() deck.Kind {
	switch v {
	case ShortDeck:
		return deck.Short36
	case Royal:
		return deck.Royal20
	case Manila:
		return deck.Manila32
	default:
		return deck.Full52
	}
}

// MaxSeats returns the seat cap for the variant.
func (v Variant) MaxSeats() int {
	switch v {
	case Texas, ShortDeck:
		return 9
	default:
		return 6
	}
}

// HiLo reports whether the pot splits between high and qualifying low hands.
func (v Variant) HiLo() bool {
	return v == OmahaHiLo
}

// EvalRules returns the evaluation rules the variant plays under.
func (v Variant) EvalRules() evaluator.Rules {
	return evaluator.Rules{
		FlushBeatsFullHouse: v == ShortDeck,
		UseTwoHoleCards:     v == Omaha || v == OmahaHiLo || v == Courchevel,
	}
}

// BettingType selects how raise sizes are capped.
type BettingType string

const (
	NoLimit  BettingType = "no_limit"
	PotLimit BettingType = "pot_limit"
)

// ParseBettingType validates a wire string as a betting type.
func ParseBettingType(s string) (BettingType, error) {
	switch bt := BettingType(s); bt {
	case NoLimit, PotLimit:
		return bt, nil
	}
	return "", fmt.Errorf("unknown betting type %q", s)
}

// Blinds are the forced bets posted before the deal. Ante is optional and
// taken from every dealt-in seat.
type Blinds struct {
	Small int `json:"small"`
	Big   int `json:"big"`
	Ante  int `json:"ante,omitempty"`
}
