package equation

import "errors"

// Sentinel kinds for evaluation failures. Use errors.Is against these.
var (
	ErrEmptyEquation         = errors.New("empty equation")
	ErrInvalidAlternation    = errors.New("invalid alternation")
	ErrInvalidSyntax         = errors.New("invalid syntax")
	ErrMismatchedParentheses = errors.New("mismatched parentheses")
	ErrDivisionByZero        = errors.New("division by zero")
	ErrInvalidResult         = errors.New("invalid result")
)

// Error is a typed evaluation failure carrying a reason the player can act on.
type Error struct {
	Kind   error
	Reason string
}

func (e *Error) Error() string {
	if e.Reason == "" {
		return e.Kind.Error()
	}
	return e.Reason
}

func (e *Error) Unwrap() error { return e.Kind }

func fail(kind error, reason string) error {
	return &Error{Kind: kind, Reason: reason}
}
