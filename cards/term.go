package cards

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// TermKind tags the variant held by a Term.
type TermKind int

const (
	TermInvalid TermKind = iota
	TermNumber
	TermOperator
	TermOpenParen
	TermCloseParen
	TermPower
)

// Operator is a binary arithmetic operator.
type Operator byte

const (
	Add Operator = '+'
	Sub Operator = '-'
	Mul Operator = '*'
	Div Operator = '/'
)

// Term is one token of a submitted equation: a number, a binary operator,
// a parenthesis or the postfix power marker.
type Term struct {
	Kind  TermKind
	Value float64
	Op    Operator
	// Raw holds the undecoded text of an Invalid term, for error messages.
	Raw string
}

// Num returns a number term.
func Num(v float64) Term { return Term{Kind: TermNumber, Value: v} }

// Op returns an operator term.
func Op(o Operator) Term { return Term{Kind: TermOperator, Op: o} }

// Open returns an opening parenthesis.
func Open() Term { return Term{Kind: TermOpenParen} }

// Close returns a closing parenthesis.
func Close() Term { return Term{Kind: TermCloseParen} }

// Power returns the postfix square marker.
func Power() Term { return Term{Kind: TermPower} }

// String renders the term the way clients send it.
func (t Term) String() string {
	switch t.Kind {
	case TermNumber:
		return strconv.FormatFloat(t.Value, 'f', -1, 64)
	case TermOperator:
		return string(t.Op)
	case TermOpenParen:
		return "("
	case TermCloseParen:
		return ")"
	case TermPower:
		return "**"
	default:
		return t.Raw
	}
}

// MarshalJSON encodes numbers as JSON numbers and every other term as its symbol.
func (t Term) MarshalJSON() ([]byte, error) {
	if t.Kind == TermNumber {
		return json.Marshal(t.Value)
	}
	return json.Marshal(t.String())
}

// UnmarshalJSON accepts a JSON number or one of the symbols + - * / ( ) **.
// Anything else decodes into an Invalid term so the evaluator can reject it
// with a syntax error instead of failing the whole message.
func (t *Term) UnmarshalJSON(data []byte) error {
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*t = Num(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("term must be a number or a symbol: %w", err)
	}
	*t = ParseTerm(s)
	return nil
}

// ParseTerm converts a single symbol or numeric literal into a Term.
func ParseTerm(s string) Term {
	switch s {
	case "+":
		return Op(Add)
	case "-":
		return Op(Sub)
	case "*":
		return Op(Mul)
	case "/":
		return Op(Div)
	case "(":
		return Open()
	case ")":
		return Close()
	case "**":
		return Power()
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return Num(v)
	}
	return Term{Kind: TermInvalid, Raw: s}
}

// Same reports whether two terms carry the same token.
func (t Term) Same(o Term) bool {
	if t.Kind != o.Kind {
		return false
	}
	switch t.Kind {
	case TermNumber:
		return t.Value == o.Value
	case TermOperator:
		return t.Op == o.Op
	case TermInvalid:
		return t.Raw == o.Raw
	}
	return true
}
