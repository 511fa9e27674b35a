package game

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by table operations. The server layer maps each
// to a stable wire code of the same name.
var (
	ErrTableFull        = errors.New("table full")
	ErrSeatTaken        = errors.New("seat taken")
	ErrAlreadySeated    = errors.New("already seated")
	ErrNotYourTurn      = errors.New("not your turn")
	ErrNotInHand        = errors.New("not in hand")
	ErrNotEnoughPlayers = errors.New("need at least two seated players")

	// ErrIntegrity marks a chip-conservation failure after an apply. The
	// hand is aborted and contributions refunded before it is returned.
	ErrIntegrity = errors.New("table integrity violation")
)

// Illegal-action subcauses, stable strings carried to the wire.
const (
	CauseCheckWhenMustCall = "CheckWhenMustCall"
	CauseBelowMinRaise     = "BelowMinRaise"
	CauseAbovePotLimit     = "AbovePotLimit"
	CauseInsufficientStack = "InsufficientStack"
	CauseMaxRaisesReached  = "MaxRaisesReached"
)

// IllegalActionError rejects an action that is out of line with the betting
// state. Cause is one of the subcause constants, or empty when no finer
// classification applies.
type IllegalActionError struct {
	Cause  string
	Detail string
}

func (e *IllegalActionError) Error() string {
	if e.Cause == "" {
		return fmt.Sprintf("illegal action: %s", e.Detail)
	}
	return fmt.Sprintf("illegal action (%s): %s", e.Cause, e.Detail)
}

func illegal(cause, format string, args ...any) error {
	return &IllegalActionError{Cause: cause, Detail: fmt.Sprintf(format, args...)}
}
