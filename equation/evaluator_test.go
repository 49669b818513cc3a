package equation

import (
	"errors"
	"testing"

	"equation-game-server/cards"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// terms builds a token stream from ints and symbols, e.g. terms("(", 5, "+", 2, ")").
func terms(parts ...interface{}) []cards.Term {
	out := make([]cards.Term, 0, len(parts))
	for _, p := range parts {
		switch v := p.(type) {
		case int:
			out = append(out, cards.Num(float64(v)))
		case float64:
			out = append(out, cards.Num(v))
		case string:
			out = append(out, cards.ParseTerm(v))
		}
	}
	return out
}

func TestEvaluate_EasyArithmetic(t *testing.T) {
	ops := map[string]func(a, b float64) float64{
		"+": func(a, b float64) float64 { return a + b },
		"-": func(a, b float64) float64 { return a - b },
		"*": func(a, b float64) float64 { return a * b },
		"/": func(a, b float64) float64 { return a / b },
	}
	for a := 1; a <= 10; a++ {
		for b := 1; b <= 10; b++ {
			for sym, fn := range ops {
				got, err := Evaluate(terms(a, sym, b), cards.Easy)
				require.NoError(t, err)
				assert.InDelta(t, fn(float64(a), float64(b)), got, 1e-9, "%d %s %d", a, sym, b)
			}
		}
	}

	got, err := Evaluate(terms(7, "+", 1), cards.Easy)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got)
}

func TestEvaluate_Precedence(t *testing.T) {
	tests := []struct {
		name string
		in   []cards.Term
		mode cards.Mode
		want float64
	}{
		{"mul before add", terms(2, "+", 3, "*", 4), cards.Easy, 14},
		{"left associative sub", terms(10, "-", 4, "-", 3), cards.Easy, 3},
		{"left associative div", terms(8, "/", 4, "/", 2), cards.Pro, 1},
		{"single number", terms(9), cards.Easy, 9},
		{"parens override", terms("(", 2, "+", 3, ")", "*", 4), cards.Pro, 20},
		{"nested parens", terms("(", "(", 1, "+", 2, ")", "*", 3, ")", "-", 1), cards.Pro, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Evaluate(tt.in, tt.mode)
			require.NoError(t, err)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestEvaluate_ImplicitMultiplication(t *testing.T) {
	implicit, err := Evaluate(terms("(", 5, "+", 2, ")", 7), cards.Pro)
	require.NoError(t, err)
	explicit, err := Evaluate(terms("(", 5, "+", 2, ")", "*", 7), cards.Pro)
	require.NoError(t, err)
	assert.Equal(t, 49.0, implicit)
	assert.Equal(t, explicit, implicit)

	got, err := Evaluate(terms(2, "(", 3, "+", 1, ")"), cards.Pro)
	require.NoError(t, err)
	assert.Equal(t, 8.0, got)

	got, err = Evaluate(terms("(", 1, "+", 1, ")", "(", 2, "+", 1, ")"), cards.Pro)
	require.NoError(t, err)
	assert.Equal(t, 6.0, got)
}

func TestEvaluate_SpecialPower(t *testing.T) {
	got, err := Evaluate(terms(4, "**"), cards.SpecialMode)
	require.NoError(t, err)
	assert.Equal(t, 16.0, got)

	got, err = Evaluate(terms("(", 2, "+", 2, ")", "**"), cards.SpecialMode)
	require.NoError(t, err)
	assert.Equal(t, 16.0, got)

	got, err = Evaluate(terms(3, "**", "+", 1), cards.SpecialMode)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got)

	got, err = Evaluate(terms(2, "**", "**"), cards.SpecialMode)
	require.NoError(t, err)
	assert.Equal(t, 16.0, got)

	got, err = Evaluate(terms(2, "(", 3, ")", "**"), cards.SpecialMode)
	require.NoError(t, err)
	assert.Equal(t, 18.0, got)

	got, err = Evaluate(terms("(", 1, "+", "(", 1, "+", 1, ")", "**", ")", "**"), cards.SpecialMode)
	require.NoError(t, err)
	assert.Equal(t, 25.0, got)
}

func TestEvaluate_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   []cards.Term
		mode cards.Mode
		want error
	}{
		{"empty easy", nil, cards.Easy, ErrEmptyEquation},
		{"empty pro", []cards.Term{}, cards.Pro, ErrEmptyEquation},
		{"two numbers easy", terms(5, 5), cards.Easy, ErrInvalidAlternation},
		{"trailing operator easy", terms(5, "+"), cards.Easy, ErrInvalidAlternation},
		{"leading operator easy", terms("+", 5), cards.Easy, ErrInvalidAlternation},
		{"parens easy", terms("(", 5, ")"), cards.Easy, ErrInvalidAlternation},
		{"power easy", terms(5, "**"), cards.Easy, ErrInvalidAlternation},
		{"div zero pro", terms(8, "/", 0), cards.Pro, ErrDivisionByZero},
		{"div zero easy", terms(8, "/", 0), cards.Easy, ErrDivisionByZero},
		{"div zero in group", terms("(", 1, "/", "(", 2, "-", 2, ")", ")", "**"), cards.SpecialMode, ErrDivisionByZero},
		{"unclosed", terms("(", 5, "+", 2), cards.Pro, ErrMismatchedParentheses},
		{"stray close", terms(5, ")", "+", "(", 2), cards.Pro, ErrMismatchedParentheses},
		{"consecutive operators", terms(5, "+", "*", 2), cards.Pro, ErrInvalidSyntax},
		{"empty parens", terms(5, "+", "(", ")"), cards.Pro, ErrInvalidSyntax},
		{"two numbers pro", terms(5, 5), cards.Pro, ErrInvalidSyntax},
		{"trailing operator pro", terms(5, "+"), cards.Pro, ErrInvalidSyntax},
		{"power in pro", terms(4, "**"), cards.Pro, ErrInvalidSyntax},
		{"leading power", terms("**", 4), cards.SpecialMode, ErrInvalidSyntax},
		{"power after operator", terms(4, "+", "**"), cards.SpecialMode, ErrInvalidSyntax},
		{"invalid symbol", terms(4, "+", "alert(1)"), cards.Pro, ErrInvalidSyntax},
		{"invalid symbol easy", terms(4, "%", 2), cards.Easy, ErrInvalidSyntax},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Evaluate(tt.in, tt.mode)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v, want %v", err, tt.want)

			var evalErr *Error
			require.True(t, errors.As(err, &evalErr))
			assert.NotEmpty(t, evalErr.Error())
		})
	}
}

func TestEvaluate_ReasonIsActionable(t *testing.T) {
	_, err := Evaluate(terms(5, "+"), cards.Pro)
	require.Error(t, err)
	assert.Equal(t, "equation must end with a number", err.Error())

	_, err = Evaluate(terms(5, "-"), cards.Easy)
	require.Error(t, err)
	assert.Equal(t, "equation must end with a number", err.Error())
}

func TestEvaluate_ReasonUsesWrittenTerms(t *testing.T) {
	_, err := Evaluate(terms(3, "**", 2), cards.SpecialMode)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidSyntax))
	assert.Equal(t, "missing operator between 3** and 2", err.Error())

	_, err = Evaluate(terms(5, 5), cards.Pro)
	require.Error(t, err)
	assert.Equal(t, "missing operator between 5 and 5", err.Error())
}

func TestEvaluate_NonFiniteResult(t *testing.T) {
	big := 1e200
	_, err := Evaluate(terms(big, "*", big), cards.Easy)
	assert.True(t, errors.Is(err, ErrInvalidResult))
}

func TestEvaluate_DoesNotMutateInput(t *testing.T) {
	in := terms("(", 2, "+", 2, ")", "**", 3)
	before := append([]cards.Term(nil), in...)
	_, _ = Evaluate(in, cards.SpecialMode)
	assert.Equal(t, before, in)
}
