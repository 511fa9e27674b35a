package game

import (
	"time"

	"github.com/lox/cardroom/internal/deck"
)

// Seat is one occupied position at a table. All mutation happens under the
// table's serial queue.
type Seat struct {
	PlayerID  string
	Name      string
	Index     int
	Stack     int
	HoleCards []deck.Card
	Folded    bool
	AllIn     bool
	HasActed  bool
	Connected bool
	// RoundBet is the seat's contribution this street, HandBet its
	// contribution for the whole hand (RoundBet included).
	RoundBet int
	HandBet  int
	// LastActionAt is when the seat last took a voluntary action. Blinds
	// and antes do not count.
	LastActionAt time.Time
}

// inHand reports whether the seat was dealt into the current hand.
func (s *Seat) inHand() bool {
	return len(s.HoleCards) > 0
}

// live reports whether the seat is dealt in and has not folded.
func (s *Seat) live() bool {
	return s.inHand() && !s.Folded
}

// canAct reports whether the seat can still take betting actions.
func (s *Seat) canAct() bool {
	return s.live() && !s.AllIn
}

// resetForHand clears all hand-local state ahead of a new deal.
func (s *Seat) resetForHand() {
	s.HoleCards = nil
	s.Folded = false
	s.AllIn = false
	s.HasActed = false
	s.RoundBet = 0
	s.HandBet = 0
}

// contribute moves chips from the stack into the seat's bets. The amount
// must not exceed the stack; the seat goes all-in when it empties.
func (s *Seat) contribute(amount int) {
	s.Stack -= amount
	s.RoundBet += amount
	s.HandBet += amount
	if s.Stack == 0 {
		s.AllIn = true
	}
}
