// Package equation evaluates the equations players build from their cards.
//
// Input is a token stream, never a string: numbers, binary operators,
// parentheses and the postfix power marker are evaluated structurally with
// an operator-precedence algorithm. Nothing is ever handed to an interpreter.
package equation

import (
	"fmt"
	"math"

	"equation-game-server/cards"
)

// Evaluate computes the value of terms under the syntax rules of mode.
//
// Easy mode accepts only number/operator/number/... sequences. Pro mode adds
// parentheses with implicit multiplication ("2(3)" is "2*(3)"). Special mode
// additionally accepts "**" as a postfix square of the preceding number or
// parenthesized group.
func Evaluate(terms []cards.Term, mode cards.Mode) (float64, error) {
	if len(terms) == 0 {
		return 0, fail(ErrEmptyEquation, "equation is empty")
	}
	for _, t := range terms {
		if t.Kind == cards.TermInvalid {
			return 0, fail(ErrInvalidSyntax, fmt.Sprintf("unsupported symbol %q", t.Raw))
		}
	}

	switch mode {
	case cards.Pro, cards.SpecialMode:
	default:
		if err := checkAlternation(terms); err != nil {
			return 0, err
		}
		v, err := evalInfix(terms)
		if err != nil {
			return 0, err
		}
		return finite(v)
	}

	if err := checkBalance(terms); err != nil {
		return 0, err
	}
	if mode == cards.Pro {
		for _, t := range terms {
			if t.Kind == cards.TermPower {
				return 0, fail(ErrInvalidSyntax, "power is only available in special mode")
			}
		}
	}

	if err := checkAdjacency(terms); err != nil {
		return 0, err
	}
	rewritten := insertImplicitMultiplication(terms)
	rewritten, err := resolvePowers(rewritten)
	if err != nil {
		return 0, err
	}
	v, err := evaluateGroup(rewritten)
	if err != nil {
		return 0, err
	}
	return finite(v)
}

func finite(v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fail(ErrInvalidResult, "equation does not produce a finite number")
	}
	return v, nil
}

// checkAlternation enforces the Easy mode shape: n op n op ... n.
func checkAlternation(terms []cards.Term) error {
	for _, t := range terms {
		switch t.Kind {
		case cards.TermOpenParen, cards.TermCloseParen:
			return fail(ErrInvalidAlternation, "parentheses are not allowed in easy mode")
		case cards.TermPower:
			return fail(ErrInvalidAlternation, "power is not allowed in easy mode")
		}
	}
	for i, t := range terms {
		if i%2 == 0 && t.Kind != cards.TermNumber {
			if i == 0 {
				return fail(ErrInvalidAlternation, "equation must start with a number")
			}
			return fail(ErrInvalidAlternation, fmt.Sprintf("expected a number after %s", terms[i-1]))
		}
		if i%2 == 1 && t.Kind != cards.TermOperator {
			return fail(ErrInvalidAlternation, fmt.Sprintf("expected an operator after %s", terms[i-1]))
		}
	}
	if len(terms)%2 == 0 {
		return fail(ErrInvalidAlternation, "equation must end with a number")
	}
	return nil
}

func checkBalance(terms []cards.Term) error {
	depth := 0
	for _, t := range terms {
		switch t.Kind {
		case cards.TermOpenParen:
			depth++
		case cards.TermCloseParen:
			depth--
			if depth < 0 {
				return fail(ErrMismatchedParentheses, "closing parenthesis without a matching opening one")
			}
		}
	}
	if depth != 0 {
		return fail(ErrMismatchedParentheses, "unclosed parenthesis")
	}
	return nil
}

// checkAdjacency rejects a number that directly follows a number or a
// power, reporting the terms as the player wrote them.
func checkAdjacency(terms []cards.Term) error {
	for i := 1; i < len(terms); i++ {
		prev := terms[i-1]
		if terms[i].Kind != cards.TermNumber {
			continue
		}
		switch prev.Kind {
		case cards.TermPower:
			if i < 2 {
				continue
			}
			base := terms[i-2].String()
			if terms[i-2].Kind == cards.TermCloseParen {
				base = "(...)"
			}
			return fail(ErrInvalidSyntax, fmt.Sprintf("missing operator between %s%s and %s", base, prev, terms[i]))
		case cards.TermNumber:
			return fail(ErrInvalidSyntax, fmt.Sprintf("missing operator between %s and %s", prev, terms[i]))
		}
	}
	return nil
}

// insertImplicitMultiplication adds "*" between a number, group or squared
// term and a following "(", and between ")" and a following number.
func insertImplicitMultiplication(terms []cards.Term) []cards.Term {
	out := make([]cards.Term, 0, len(terms)+len(terms)/2)
	for i, t := range terms {
		if i > 0 && needsImplicitMul(terms[i-1], t) {
			out = append(out, cards.Op(cards.Mul))
		}
		out = append(out, t)
	}
	return out
}

func needsImplicitMul(prev, next cards.Term) bool {
	switch next.Kind {
	case cards.TermOpenParen:
		return prev.Kind == cards.TermNumber || prev.Kind == cards.TermCloseParen || prev.Kind == cards.TermPower
	case cards.TermNumber:
		return prev.Kind == cards.TermCloseParen
	}
	return false
}

// resolvePowers replaces every "x **" and "( ... ) **" with the square of
// x or of the group's value, leaving a stream without power markers.
func resolvePowers(terms []cards.Term) ([]cards.Term, error) {
	out := make([]cards.Term, 0, len(terms))
	for _, t := range terms {
		if t.Kind != cards.TermPower {
			out = append(out, t)
			continue
		}
		if len(out) == 0 {
			return nil, fail(ErrInvalidSyntax, "power must follow a number or a group")
		}
		last := out[len(out)-1]
		switch last.Kind {
		case cards.TermNumber:
			out[len(out)-1] = cards.Num(last.Value * last.Value)
		case cards.TermCloseParen:
			start := matchingOpen(out)
			if start < 0 {
				return nil, fail(ErrMismatchedParentheses, "closing parenthesis without a matching opening one")
			}
			inner := append([]cards.Term(nil), out[start+1:len(out)-1]...)
			v, err := evaluateGroup(inner)
			if err != nil {
				return nil, err
			}
			out = append(out[:start], cards.Num(v*v))
		default:
			return nil, fail(ErrInvalidSyntax, "power must follow a number or a group")
		}
	}
	return out, nil
}

// matchingOpen returns the index of the "(" that closes with the last term of out.
func matchingOpen(out []cards.Term) int {
	depth := 0
	for j := len(out) - 1; j >= 0; j-- {
		switch out[j].Kind {
		case cards.TermCloseParen:
			depth++
		case cards.TermOpenParen:
			depth--
			if depth == 0 {
				return j
			}
		}
	}
	return -1
}

func evaluateGroup(terms []cards.Term) (float64, error) {
	if err := checkGrammar(terms); err != nil {
		return 0, err
	}
	return evalInfix(terms)
}

// checkGrammar walks the stream alternating between expecting an operand
// (number or "(") and an operator (binary operator or ")").
func checkGrammar(terms []cards.Term) error {
	if len(terms) == 0 {
		return fail(ErrInvalidSyntax, "empty parentheses")
	}
	expectOperand := true
	for i, t := range terms {
		if expectOperand {
			switch t.Kind {
			case cards.TermNumber:
				expectOperand = false
			case cards.TermOpenParen:
				if i+1 < len(terms) && terms[i+1].Kind == cards.TermCloseParen {
					return fail(ErrInvalidSyntax, "empty parentheses")
				}
			case cards.TermOperator:
				if i == 0 {
					return fail(ErrInvalidSyntax, "equation cannot start with an operator")
				}
				if terms[i-1].Kind == cards.TermOperator {
					return fail(ErrInvalidSyntax, "two operators in a row")
				}
				return fail(ErrInvalidSyntax, fmt.Sprintf("operator %s cannot follow %s", t, terms[i-1]))
			default:
				return fail(ErrInvalidSyntax, fmt.Sprintf("unexpected %s", t))
			}
			continue
		}
		switch t.Kind {
		case cards.TermOperator:
			expectOperand = true
		case cards.TermCloseParen:
		case cards.TermNumber:
			return fail(ErrInvalidSyntax, fmt.Sprintf("missing operator between %s and %s", terms[i-1], t))
		default:
			return fail(ErrInvalidSyntax, fmt.Sprintf("unexpected %s", t))
		}
	}
	if expectOperand {
		return fail(ErrInvalidSyntax, "equation must end with a number")
	}
	return nil
}

func precedence(o cards.Operator) int {
	if o == cards.Mul || o == cards.Div {
		return 2
	}
	return 1
}

// evalInfix evaluates a well-formed infix stream with the two-stack
// shunting-yard method. All operators are left associative.
func evalInfix(terms []cards.Term) (float64, error) {
	var nums []float64
	var ops []cards.Term

	apply := func() error {
		if len(ops) == 0 || len(nums) < 2 {
			return fail(ErrInvalidSyntax, "operator is missing an operand")
		}
		op := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		b, a := nums[len(nums)-1], nums[len(nums)-2]
		nums = nums[:len(nums)-2]
		var r float64
		switch op.Op {
		case cards.Add:
			r = a + b
		case cards.Sub:
			r = a - b
		case cards.Mul:
			r = a * b
		case cards.Div:
			if b == 0 {
				return fail(ErrDivisionByZero, "cannot divide by zero")
			}
			r = a / b
		default:
			return fail(ErrInvalidSyntax, fmt.Sprintf("unknown operator %s", op))
		}
		nums = append(nums, r)
		return nil
	}

	for _, t := range terms {
		switch t.Kind {
		case cards.TermNumber:
			nums = append(nums, t.Value)
		case cards.TermOpenParen:
			ops = append(ops, t)
		case cards.TermCloseParen:
			for len(ops) > 0 && ops[len(ops)-1].Kind != cards.TermOpenParen {
				if err := apply(); err != nil {
					return 0, err
				}
			}
			if len(ops) == 0 {
				return 0, fail(ErrMismatchedParentheses, "closing parenthesis without a matching opening one")
			}
			ops = ops[:len(ops)-1]
		case cards.TermOperator:
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.Kind != cards.TermOperator || precedence(top.Op) < precedence(t.Op) {
					break
				}
				if err := apply(); err != nil {
					return 0, err
				}
			}
			ops = append(ops, t)
		default:
			return 0, fail(ErrInvalidSyntax, fmt.Sprintf("unexpected %s", t))
		}
	}
	for len(ops) > 0 {
		if ops[len(ops)-1].Kind == cards.TermOpenParen {
			return 0, fail(ErrMismatchedParentheses, "unclosed parenthesis")
		}
		if err := apply(); err != nil {
			return 0, err
		}
	}
	if len(nums) != 1 {
		return 0, fail(ErrInvalidSyntax, "equation does not reduce to a single value")
	}
	return nums[0], nil
}
