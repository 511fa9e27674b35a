package deck

import (
	"errors"
	"fmt"

	"github.com/lox/cardroom/internal/randutil"
)

// ErrExhausted is returned when a draw asks for more cards than remain.
var ErrExhausted = errors.New("deck exhausted")

// Kind selects the rank set a variant deals from. All kinds use the four
// suits; stripped decks drop the low ranks.
type Kind int

const (
	Full52   Kind = iota // ranks 2..A
	Short36              // ranks 6..A
	Royal20              // ranks T..A
	Manila32             // ranks 7..A
)

// String returns the name of the deck kind.
func (k Kind) String() string {
	switch k {
	case Full52:
		return "full52"
	case Short36:
		return "short36"
	case Royal20:
		return "royal20"
	case Manila32:
		return "manila32"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// LowRank returns the lowest rank present in the kind's rank set.
func (k Kind) LowRank() Rank {
	switch k {
	case Short36:
		return Six
	case Royal20:
		return Ten
	case Manila32:
		return Seven
	default:
		return Two
	}
}

// Size returns the number of cards in a full deck of this kind.
func (k Kind) Size() int {
	return 4 * int(Ace-k.LowRank()+1)
}

// Deck is an ordered sequence of cards for one hand. A fresh deck is built
// and shuffled per hand; it is never reused across hands.
type Deck struct {
	cards []Card
	src   randutil.Source
}

// New builds a full deck of the given kind and shuffles it. A nil source
// falls back to the crypto-backed default so shuffle outcomes cannot be
// predicted from prior hands.
func New(kind Kind, src randutil.Source) *Deck {
	if src == nil {
		src = randutil.Crypto()
	}
	d := &Deck{
		cards: make([]Card, 0, kind.Size()),
		src:   src,
	}
	for suit := Spades; suit <= Clubs; suit++ {
		for rank := kind.LowRank(); rank <= Ace; rank++ {
			d.cards = append(d.cards, NewCard(suit, rank))
		}
	}
	d.shuffle()
	return d
}

// Stacked builds a deck that deals the given cards in order without
// shuffling. Tests use it to rig exact deals.
func Stacked(cards []Card) *Deck {
	return &Deck{cards: append([]Card(nil), cards...)}
}

// shuffle randomizes the order of cards using Fisher-Yates.
func (d *Deck) shuffle() {
	for i := len(d.cards) - 1; i > 0; i-- {
		j := d.src.Intn(i + 1)
		d.cards[i], d.cards[j] = d.cards[j], d.cards[i]
	}
}

// Draw removes and returns the top n cards. It fails with ErrExhausted when
// n exceeds the cards remaining; the deck is left untouched in that case.
func (d *Deck) Draw(n int) ([]Card, error) {
	if n < 0 {
		return nil, fmt.Errorf("draw %d: negative count", n)
	}
	if n > len(d.cards) {
		return nil, fmt.Errorf("draw %d with %d remaining: %w", n, len(d.cards), ErrExhausted)
	}
	drawn := make([]Card, n)
	copy(drawn, d.cards[:n])
	d.cards = d.cards[n:]
	return drawn, nil
}

// CardsRemaining returns the number of cards left in the deck
func (d *Deck) CardsRemaining() int {
	return len(d.cards)
}
