// Package history keeps a bounded per-table record of completed hands.
// Records are advisory and in-memory; a restart forfeits them along with the
// rest of the table state.
package history

import (
	"time"

	"github.com/lox/cardroom/internal/deck"
)

// DefaultCapacity is the number of hands a table retains.
const DefaultCapacity = 100

// SeatStart snapshots one seat at the moment a hand begins, before blinds.
type SeatStart struct {
	PlayerID  string      `json:"playerId"`
	Name      string      `json:"name"`
	SeatIndex int         `json:"seatIndex"`
	Stack     int         `json:"startingStack"`
	HoleCards []deck.Card `json:"holeCards"`
}

// Action is one applied player action. To is the seat's street total after
// the action, which lets replayers reconstruct bet sizing without tracking
// stacks themselves.
type Action struct {
	PlayerID string    `json:"playerId"`
	Kind     string    `json:"kind"`
	Amount   int       `json:"amount,omitempty"`
	Stage    string    `json:"stage,omitempty"`
	To       int       `json:"to,omitempty"`
	At       time.Time `json:"timestamp"`
}

// Winner is one pot award at the end of a hand.
type Winner struct {
	PlayerID string `json:"playerId"`
	Amount   int    `json:"amount"`
	Desc     string `json:"handDescription"`
}

// Record is the full story of one hand. Dealer indexes into Seats; Finishing
// aligns with Seats and holds each stack after the pot was paid out.
type Record struct {
	HandNum   int         `json:"handNumber"`
	StartedAt time.Time   `json:"startedAt"`
	EndedAt   time.Time   `json:"endedAt"`
	Dealer    int         `json:"dealerIndex"`
	Seats     []SeatStart `json:"seats"`
	Actions   []Action    `json:"actions"`
	Board     []deck.Card `json:"communityCards"`
	Pot       int         `json:"pot"`
	Winners   []Winner    `json:"winners"`
	Finishing []int       `json:"finishingStacks,omitempty"`
}

// Log is a bounded ring of hand records for one table. It is not safe for
// concurrent use; the owning table's serial queue guards it.
type Log struct {
	capacity int
	records  []Record
	current  *Record
}

// NewLog creates a log retaining at most capacity hands; capacity <= 0 uses
// the default.
func NewLog(capacity int) *Log {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Log{capacity: capacity}
}

// StartHand opens a record for a new hand, discarding any unfinished one.
func (l *Log) StartHand(handNum int, at time.Time, dealer int, seats []SeatStart) {
	l.current = &Record{
		HandNum:   handNum,
		StartedAt: at,
		Dealer:    dealer,
		Seats:     seats,
	}
}

// RecordAction appends an action to the hand in progress. Calls without an
// open hand are dropped.
func (l *Log) RecordAction(a Action) {
	if l.current == nil {
		return
	}
	l.current.Actions = append(l.current.Actions, a)
}

// EndHand closes the current record with the final board, pot and winners,
// dropping the oldest record once the ring is full. Finishing stacks are
// looked up by player id so callers need not mirror the seat order.
func (l *Log) EndHand(at time.Time, board []deck.Card, pot int, winners []Winner, stacks map[string]int) {
	if l.current == nil {
		return
	}
	l.current.EndedAt = at
	l.current.Board = append([]deck.Card(nil), board...)
	l.current.Pot = pot
	l.current.Winners = winners
	if len(stacks) > 0 {
		l.current.Finishing = make([]int, len(l.current.Seats))
		for i, s := range l.current.Seats {
			if final, ok := stacks[s.PlayerID]; ok {
				l.current.Finishing[i] = final
			} else {
				l.current.Finishing[i] = s.Stack
			}
		}
	}

	l.records = append(l.records, *l.current)
	if len(l.records) > l.capacity {
		l.records = l.records[len(l.records)-l.capacity:]
	}
	l.current = nil
}

// Records returns a copy of the completed hands, oldest first.
func (l *Log) Records() []Record {
	out := make([]Record, len(l.records))
	copy(out, l.records)
	return out
}

// Last returns the newest completed hand, if any.
func (l *Log) Last() (Record, bool) {
	if len(l.records) == 0 {
		return Record{}, false
	}
	return l.records[len(l.records)-1], true
}

// Len returns the number of completed hands retained.
func (l *Log) Len() int {
	return len(l.records)
}
