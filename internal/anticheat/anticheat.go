// Package anticheat rate-limits and paces player actions. It gates each
// action before the table engine applies it and keeps a bounded log of
// suspicious activity for operators.
package anticheat

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

const (
	// RateLimit is the most actions accepted per rolling RateWindow.
	RateLimit  = 5
	RateWindow = time.Second

	// MinActionDelta is the hard floor between consecutive actions from one
	// player at one table. Faster than this is treated as automation.
	MinActionDelta = 100 * time.Millisecond

	// FlagDelta marks the band above the floor that is allowed but logged.
	FlagDelta = 200 * time.Millisecond

	// ActivityLogSize bounds the suspicious-activity log.
	ActivityLogSize = 1000
)

var (
	ErrRateLimited     = errors.New("too many actions")
	ErrTimingViolation = errors.New("actions arriving too fast")
)

// Severity grades a flagged activity.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
)

func (s Severity) String() string {
	switch s {
	case SeverityLow:
		return "low"
	case SeverityMedium:
		return "medium"
	case SeverityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// MarshalJSON encodes the severity as its string form.
func (s Severity) MarshalJSON() ([]byte, error) {
	return []byte(fmt.Sprintf("%q", s)), nil
}

// Flag is one suspicious activity entry.
type Flag struct {
	PlayerID string    `json:"playerId"`
	TableID  string    `json:"tableId"`
	Severity Severity  `json:"severity"`
	Reason   string    `json:"reason"`
	At       time.Time `json:"at"`
}

type bucketKey struct {
	playerID string
	tableID  string
}

// bucket tracks one player's recent attempts at one table. Rejected attempts
// count too: hammering the server keeps you limited.
type bucket struct {
	recent []time.Time
	last   time.Time
}

// Validator holds the rate and timing buckets for every seated player. Safe
// for concurrent use.
type Validator struct {
	mu      sync.Mutex
	buckets map[bucketKey]*bucket
	flags   []Flag
}

func New() *Validator {
	return &Validator{buckets: make(map[bucketKey]*bucket)}
}

// Check records one action attempt and reports whether it may proceed.
// ErrRateLimited when the player exceeds RateLimit attempts inside
// RateWindow; ErrTimingViolation when the gap since their previous attempt
// is under MinActionDelta. Gaps between MinActionDelta and FlagDelta pass
// but are flagged low severity.
func (v *Validator) Check(playerID, tableID string, now time.Time) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	k := bucketKey{playerID, tableID}
	b := v.buckets[k]
	if b == nil {
		b = &bucket{}
		v.buckets[k] = b
	}

	prev := b.last
	b.last = now

	cutoff := now.Add(-RateWindow)
	keep := 0
	for keep < len(b.recent) && !b.recent[keep].After(cutoff) {
		keep++
	}
	b.recent = append(b.recent[:0], b.recent[keep:]...)
	b.recent = append(b.recent, now)

	if len(b.recent) > RateLimit {
		v.flag(Flag{
			PlayerID: playerID,
			TableID:  tableID,
			Severity: SeverityMedium,
			Reason:   fmt.Sprintf("%d actions inside %s", len(b.recent), RateWindow),
			At:       now,
		})
		return ErrRateLimited
	}

	if !prev.IsZero() {
		delta := now.Sub(prev)
		if delta < MinActionDelta {
			v.flag(Flag{
				PlayerID: playerID,
				TableID:  tableID,
				Severity: SeverityHigh,
				Reason:   fmt.Sprintf("%s between actions, floor is %s", delta, MinActionDelta),
				At:       now,
			})
			return ErrTimingViolation
		}
		if delta < FlagDelta {
			v.flag(Flag{
				PlayerID: playerID,
				TableID:  tableID,
				Severity: SeverityLow,
				Reason:   fmt.Sprintf("%s between actions", delta),
				At:       now,
			})
		}
	}
	return nil
}

// Forget drops the buckets for a player who left a table.
func (v *Validator) Forget(playerID, tableID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	delete(v.buckets, bucketKey{playerID, tableID})
}

// Flags returns a copy of the activity log, oldest first.
func (v *Validator) Flags() []Flag {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Flag, len(v.flags))
	copy(out, v.flags)
	return out
}

func (v *Validator) flag(f Flag) {
	v.flags = append(v.flags, f)
	if len(v.flags) > ActivityLogSize {
		v.flags = v.flags[len(v.flags)-ActivityLogSize:]
	}
}
