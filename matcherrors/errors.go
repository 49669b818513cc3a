package matcherrors

import (
	"context"
	"errors"
)

// Sentinel errors shared by game, storage, ws and api without import cycles.
// Validation errors are wrapped with a reason via fmt.Errorf("%w: ...").
var (
	ErrGameNotFound     = errors.New("game not found")
	ErrAlreadyStarted   = errors.New("game already started")
	ErrGameFull         = errors.New("game is full")
	ErrNameTaken        = errors.New("name already taken in this game")
	ErrInvalidName      = errors.New("invalid player name")
	ErrNotCreator       = errors.New("only the game creator can do this")
	ErrNotEnoughPlayers = errors.New("not enough players to start")
	ErrWrongPhase       = errors.New("action not allowed in the current phase")
	ErrWrongCount       = errors.New("wrong number of cards")
	ErrCardNotInHand    = errors.New("card not in hand")
	ErrEquationMismatch = errors.New("equation does not match the cards used")
	ErrInvalidMode      = errors.New("invalid game mode")
	ErrInvalidSpecial   = errors.New("invalid special card")
	ErrInvalidTarget    = errors.New("invalid special card target")
	ErrUnknownPlayer    = errors.New("player not in this game")
	ErrInvalidAction    = errors.New("invalid action")
	ErrInvalidEquation  = errors.New("invalid equation")

	// ErrConflict is returned by a store when a concurrent writer committed first.
	ErrConflict = errors.New("concurrent update")
	// ErrTryAgain is surfaced when the store is unavailable or conflicts persist.
	ErrTryAgain = errors.New("temporarily unavailable, try again")
)

// IsValidation reports whether err is a user-correctable rejection.
func IsValidation(err error) bool {
	for _, target := range []error{
		ErrAlreadyStarted, ErrGameFull, ErrNameTaken, ErrInvalidName, ErrNotCreator,
		ErrNotEnoughPlayers, ErrWrongPhase, ErrWrongCount, ErrCardNotInHand,
		ErrEquationMismatch, ErrInvalidMode, ErrInvalidSpecial, ErrInvalidTarget, ErrUnknownPlayer, ErrInvalidAction,
		ErrInvalidEquation,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Client-facing error codes returned by Code.
const (
	CodeNotFound  = "not_found"
	CodeForbidden = "forbidden"
	CodeConflict  = "conflict"
	CodeInvalid   = "invalid"
	CodeTryAgain  = "try_again"
	CodeInternal  = "internal"
)

// Code classifies err for clients of the websocket and HTTP APIs.
func Code(err error) string {
	switch {
	case errors.Is(err, ErrGameNotFound):
		return CodeNotFound
	case errors.Is(err, ErrNotCreator):
		return CodeForbidden
	case errors.Is(err, ErrAlreadyStarted), errors.Is(err, ErrGameFull), errors.Is(err, ErrNameTaken),
		errors.Is(err, ErrNotEnoughPlayers), errors.Is(err, ErrWrongPhase):
		return CodeConflict
	case IsValidation(err):
		return CodeInvalid
	case errors.Is(err, ErrTryAgain), errors.Is(err, context.DeadlineExceeded):
		return CodeTryAgain
	}
	return CodeInternal
}
