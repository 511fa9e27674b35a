package game

import (
	"time"

	"github.com/lox/cardroom/internal/history"
)

// ActionKind names a betting action.
type ActionKind string

const (
	Fold  ActionKind = "fold"
	Check ActionKind = "check"
	Call  ActionKind = "call"
	Raise ActionKind = "raise"
	AllIn ActionKind = "allin"
)

// Action is one seat's betting decision. Amount is the raise target for the
// street, not the increment; it is ignored for other kinds. At is the server
// receipt time.
type Action struct {
	PlayerID string     `json:"playerId"`
	Kind     ActionKind `json:"kind"`
	Amount   int        `json:"amount,omitempty"`
	At       time.Time  `json:"timestamp"`
}

// CheckAction reports whether the action would be legal right now, without
// applying it. The anti-cheat validator shares this predicate.
func (t *Table) CheckAction(a Action) error {
	seat := t.SeatOf(a.PlayerID)
	if seat == nil || !seat.inHand() || !t.Stage.betting() {
		return ErrNotInHand
	}
	if seat.Folded {
		return illegal("", "seat has folded")
	}
	if seat.AllIn {
		return illegal("", "seat is all-in")
	}
	active := t.ActiveSeat()
	if active == nil || active.PlayerID != a.PlayerID {
		return ErrNotYourTurn
	}

	toCall := t.HighBet - seat.RoundBet
	switch a.Kind {
	case Fold:
		return nil
	case Check:
		if toCall > 0 {
			return illegal(CauseCheckWhenMustCall, "facing a bet of %d", toCall)
		}
		return nil
	case Call:
		if toCall <= 0 {
			return illegal("", "nothing to call")
		}
		return nil
	case AllIn:
		// The active seat always has chips; all-in is never rejected.
		return nil
	case Raise:
		return t.checkRaise(seat, a.Amount, toCall)
	default:
		return illegal("", "unknown action kind %q", a.Kind)
	}
}

// checkRaise validates a raise to the target amount for the street.
func (t *Table) checkRaise(seat *Seat, target, toCall int) error {
	if seat.HasActed {
		// Only a full raise re-opens betting; an all-in under-raise does
		// not, so a seat that already acted may no longer raise.
		return illegal(CauseBelowMinRaise, "betting was not re-opened")
	}
	if target <= t.HighBet {
		return illegal(CauseBelowMinRaise, "raise target %d must exceed current bet %d", target, t.HighBet)
	}
	if target-t.HighBet < t.LastRaise {
		return illegal(CauseBelowMinRaise, "raise increment %d below minimum %d", target-t.HighBet, t.LastRaise)
	}
	if t.Raises >= maxRaisesPerRound {
		return illegal(CauseMaxRaisesReached, "betting round already has %d raises", t.Raises)
	}
	if t.Betting == PotLimit {
		if limit := t.Pot + t.HighBet + toCall; target > limit {
			return illegal(CauseAbovePotLimit, "raise target %d above pot limit %d", target, limit)
		}
	}
	if target-seat.RoundBet > seat.Stack {
		return illegal(CauseInsufficientStack, "raise to %d needs %d with stack %d",
			target, target-seat.RoundBet, seat.Stack)
	}
	return nil
}

// ApplyAction validates and applies one action, then advances the hand:
// next actor, next street, runout or showdown as the state demands.
func (t *Table) ApplyAction(a Action) (err error) {
	defer t.recoverDeal(&err)

	if err := t.CheckAction(a); err != nil {
		return err
	}

	seat := t.ActiveSeat()
	t.applyTo(seat, a)
	seat.LastActionAt = a.At
	t.LastAction = &a
	t.LastActionAt = a.At
	t.log.RecordAction(history.Action{
		PlayerID: a.PlayerID,
		Kind:     string(a.Kind),
		Amount:   a.Amount,
		Stage:    t.Stage.String(),
		To:       seat.RoundBet,
		At:       a.At,
	})

	if err := t.checkIntegrity(); err != nil {
		return err
	}

	t.progress()
	return nil
}

// applyTo mutates the seat and betting state for a validated action.
func (t *Table) applyTo(seat *Seat, a Action) {
	toCall := t.HighBet - seat.RoundBet
	switch a.Kind {
	case Fold:
		seat.Folded = true
	case Check:
		seat.HasActed = true
	case Call:
		t.pay(seat, min(toCall, seat.Stack))
		seat.HasActed = true
	case Raise:
		prevHigh := t.HighBet
		t.pay(seat, a.Amount-seat.RoundBet)
		t.HighBet = a.Amount
		t.LastRaise = a.Amount - prevHigh
		t.Raises++
		t.reopen(seat)
		seat.HasActed = true
	case AllIn:
		t.pay(seat, seat.Stack)
		if seat.RoundBet > t.HighBet {
			// Book-keep as a raise, but only a full-sized increment
			// re-opens the betting for seats that already acted.
			increment := seat.RoundBet - t.HighBet
			if increment >= t.LastRaise {
				t.LastRaise = increment
				t.reopen(seat)
			}
			t.HighBet = seat.RoundBet
		}
		seat.HasActed = true
	}
}

// pay moves chips from the seat into the pot.
func (t *Table) pay(seat *Seat, amount int) {
	seat.contribute(amount)
	t.Pot += amount
}

// reopen clears HasActed on every other seat still able to act, giving each
// a fresh decision against the new bet.
func (t *Table) reopen(raiser *Seat) {
	for _, s := range t.Seats {
		if s != raiser && s.canAct() {
			s.HasActed = false
		}
	}
}

// progress resolves the table state after an applied action.
func (t *Table) progress() {
	if t.liveCount() == 1 {
		t.finishUncontested()
		return
	}
	if t.bettingComplete() {
		t.finishRound()
		return
	}
	t.activePos = t.nextActor(t.activePos)
}

// bettingComplete reports whether every seat that can act has acted and
// matched the current high bet.
func (t *Table) bettingComplete() bool {
	for _, s := range t.Seats {
		if !s.canAct() {
			continue
		}
		if !s.HasActed || s.RoundBet != t.HighBet {
			return false
		}
	}
	return true
}

// ApplyTurnTimeout applies the implicit action for a seat that ran out its
// turn clock: check when legal, fold otherwise. It returns the action taken,
// or nil when no timeout was due.
func (t *Table) ApplyTurnTimeout(now time.Time) (*Action, error) {
	seat := t.ActiveSeat()
	if seat == nil || !t.Stage.betting() {
		return nil, nil
	}
	if now.Sub(t.LastActionAt) < TurnTimeout {
		return nil, nil
	}

	kind := Fold
	if t.HighBet == seat.RoundBet {
		kind = Check
	}
	a := Action{PlayerID: seat.PlayerID, Kind: kind, At: now}
	if err := t.ApplyAction(a); err != nil {
		return nil, err
	}
	return &a, nil
}
