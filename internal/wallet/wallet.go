// Package wallet is the adapter boundary to the money system. The cardroom
// never persists balances itself: it reserves a buy-in when a player sits,
// credits winnings after each pot award, and reports per-seat rake shares
// when a hand ends.
package wallet

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrInsufficientFunds rejects a reserve that the player cannot cover.
var ErrInsufficientFunds = errors.New("wallet: insufficient funds")

// HandMeta identifies a finished hand for rake reporting.
type HandMeta struct {
	TableID string    `json:"tableId"`
	HandNum int       `json:"handNumber"`
	Pot     int       `json:"pot"`
	EndedAt time.Time `json:"endedAt"`
}

// Adapter is the external wallet interface.
type Adapter interface {
	// Reserve takes amount out of the player's balance for a buy-in.
	// Failure rejects the seat.
	Reserve(ctx context.Context, playerID string, amount int) error

	// Credit returns amount to the player's balance (cash-out or winnings).
	Credit(ctx context.Context, playerID string, amount int) error

	// RakeContribution reports each seat's share of a finished hand's pot.
	RakeContribution(ctx context.Context, meta HandMeta, shares map[string]int) error
}

// Op labels a journal entry.
type Op string

const (
	OpReserve Op = "reserve"
	OpCredit  Op = "credit"
	OpRake    Op = "rake"
)

// Entry is one recorded wallet mutation.
type Entry struct {
	Op       Op
	PlayerID string
	Amount   int
	TableID  string
	HandNum  int
}

// Memory is an in-process adapter for development and tests: a balance map
// plus a journal of every mutation. Unknown players start at the configured
// opening balance.
type Memory struct {
	mu      sync.Mutex
	opening int
	known   map[string]int
	journal []Entry
}

// NewMemory creates a memory adapter. Every player first seen starts with
// the opening balance.
func NewMemory(opening int) *Memory {
	return &Memory{opening: opening, known: make(map[string]int)}
}

func (m *Memory) balanceLocked(playerID string) int {
	if b, ok := m.known[playerID]; ok {
		return b
	}
	m.known[playerID] = m.opening
	return m.opening
}

func (m *Memory) Reserve(ctx context.Context, playerID string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b := m.balanceLocked(playerID)
	if b < amount {
		return ErrInsufficientFunds
	}
	m.known[playerID] = b - amount
	m.journal = append(m.journal, Entry{Op: OpReserve, PlayerID: playerID, Amount: amount})
	return nil
}

func (m *Memory) Credit(ctx context.Context, playerID string, amount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.known[playerID] = m.balanceLocked(playerID) + amount
	m.journal = append(m.journal, Entry{Op: OpCredit, PlayerID: playerID, Amount: amount})
	return nil
}

func (m *Memory) RakeContribution(ctx context.Context, meta HandMeta, shares map[string]int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for playerID, share := range shares {
		m.journal = append(m.journal, Entry{
			Op:       OpRake,
			PlayerID: playerID,
			Amount:   share,
			TableID:  meta.TableID,
			HandNum:  meta.HandNum,
		})
	}
	return nil
}

// Balance reports a player's current balance.
func (m *Memory) Balance(playerID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balanceLocked(playerID)
}

// Journal returns a copy of every recorded mutation, oldest first.
func (m *Memory) Journal() []Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, len(m.journal))
	copy(out, m.journal)
	return out
}

// Nop is an adapter that accepts everything and records nothing. Used when
// the cardroom runs without a money system.
type Nop struct{}

func NewNop() *Nop { return &Nop{} }

func (Nop) Reserve(ctx context.Context, playerID string, amount int) error { return nil }
func (Nop) Credit(ctx context.Context, playerID string, amount int) error  { return nil }
func (Nop) RakeContribution(ctx context.Context, meta HandMeta, shares map[string]int) error {
	return nil
}
