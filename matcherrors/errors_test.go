package matcherrors

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCode(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{ErrGameNotFound, CodeNotFound},
		{ErrNotCreator, CodeForbidden},
		{fmt.Errorf("%w: round 2", ErrWrongPhase), CodeConflict},
		{ErrNameTaken, CodeConflict},
		{fmt.Errorf("%w: need at least 2", ErrNotEnoughPlayers), CodeConflict},
		{fmt.Errorf("%w: %w", ErrInvalidEquation, errors.New("division by zero")), CodeInvalid},
		{ErrCardNotInHand, CodeInvalid},
		{fmt.Errorf("%w: pool exhausted", ErrTryAgain), CodeTryAgain},
		{context.DeadlineExceeded, CodeTryAgain},
		{errors.New("boom"), CodeInternal},
	}
	for _, tt := range tests {
		if got := Code(tt.err); got != tt.want {
			t.Errorf("Code(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestIsValidation(t *testing.T) {
	if !IsValidation(fmt.Errorf("%w: x", ErrInvalidTarget)) {
		t.Error("expected wrapped ErrInvalidTarget to be a validation error")
	}
	if IsValidation(ErrConflict) || IsValidation(ErrGameNotFound) {
		t.Error("conflict and not-found are not validation errors")
	}
}
