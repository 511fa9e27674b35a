package server

import (
	"errors"

	"github.com/lox/cardroom/internal/anticheat"
	"github.com/lox/cardroom/internal/deck"
	"github.com/lox/cardroom/internal/game"
	"github.com/lox/cardroom/internal/wallet"
)

// Stable error codes carried in failed replies. Clients branch on these, so
// they never change even when the error text does.
const (
	CodeNotAuthenticated   = "NotAuthenticated"
	CodeUnauthorized       = "Unauthorized"
	CodeTableNotFound      = "TableNotFound"
	CodeTableFull          = "TableFull"
	CodeSeatTaken          = "SeatTaken"
	CodeAlreadySeated      = "AlreadySeated"
	CodeNotYourTurn        = "NotYourTurn"
	CodeActionIllegal      = "ActionIllegal"
	CodeNotInHand          = "NotInHand"
	CodeNotEnoughPlayers   = "NotEnoughPlayers"
	CodeRateLimited        = "RateLimited"
	CodeTimingViolation    = "TimingViolation"
	CodeDeckExhausted      = "DeckExhausted"
	CodeIntegrityViolation = "IntegrityViolation"
	CodeWalletRejected     = "WalletRejected"
	CodeBadRequest         = "BadRequest"
)

// Coordinator-level sentinels with no game-engine counterpart.
var (
	errNotAuthenticated = errors.New("session is not authenticated")
	errUnauthorized     = errors.New("claimed player id does not match session identity")
	errTableNotFound    = errors.New("no such table")
	errSeatVanished     = errors.New("seat was removed while joining, retry")
)

// codeFor maps an error to its wire code. Illegal actions also carry the
// engine's subcause.
func codeFor(err error) (code, cause string) {
	var ill *game.IllegalActionError
	switch {
	case errors.As(err, &ill):
		return CodeActionIllegal, ill.Cause
	case errors.Is(err, errNotAuthenticated):
		return CodeNotAuthenticated, ""
	case errors.Is(err, errUnauthorized):
		return CodeUnauthorized, ""
	case errors.Is(err, errTableNotFound):
		return CodeTableNotFound, ""
	case errors.Is(err, errSeatVanished):
		return CodeNotInHand, ""
	case errors.Is(err, game.ErrTableFull):
		return CodeTableFull, ""
	case errors.Is(err, game.ErrSeatTaken):
		return CodeSeatTaken, ""
	case errors.Is(err, game.ErrAlreadySeated):
		return CodeAlreadySeated, ""
	case errors.Is(err, game.ErrNotYourTurn):
		return CodeNotYourTurn, ""
	case errors.Is(err, game.ErrNotInHand):
		return CodeNotInHand, ""
	case errors.Is(err, game.ErrNotEnoughPlayers):
		return CodeNotEnoughPlayers, ""
	case errors.Is(err, game.ErrIntegrity):
		return CodeIntegrityViolation, ""
	case errors.Is(err, anticheat.ErrRateLimited):
		return CodeRateLimited, ""
	case errors.Is(err, anticheat.ErrTimingViolation):
		return CodeTimingViolation, ""
	case errors.Is(err, deck.ErrExhausted):
		return CodeDeckExhausted, ""
	case errors.Is(err, wallet.ErrInsufficientFunds):
		return CodeWalletRejected, ""
	}
	return CodeBadRequest, ""
}
