package cards

import (
	"fmt"
	"strings"
)

// Mode selects the rule set of a game.
type Mode string

const (
	Easy        Mode = "easy"
	Pro         Mode = "pro"
	SpecialMode Mode = "special"
)

// ParseMode converts client input into a Mode.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Easy, Pro, SpecialMode:
		return m, nil
	}
	return "", fmt.Errorf("unknown game mode %q", s)
}

// Action names the side effect of a special card.
type Action string

const (
	ActionClone    Action = "clone"
	ActionSabotage Action = "sabotage"
	ActionShuffle  Action = "shuffle"
	ActionDestiny  Action = "destiny"
	ActionGamble   Action = "gamble"
)

// Value is what a rank means in a given mode: either an equation term or an action.
type Value struct {
	Term   Term
	Action Action
}

// IsAction reports whether the value is a special action rather than a term.
func (v Value) IsAction() bool { return v.Action != "" }

var specialActions = map[Rank]Action{
	RankClone:    ActionClone,
	RankSabotage: ActionSabotage,
	RankShuffle:  ActionShuffle,
	RankDestiny:  ActionDestiny,
	RankGamble:   ActionGamble,
}

// BuildRankValues returns the rank-to-value table for mode.
// Numbers map to themselves (A is 1), J and Q are + and -, K depends on the
// mode: * in Easy, / in Pro and the postfix square in Special.
func BuildRankValues(mode Mode) map[Rank]Value {
	values := make(map[Rank]Value, len(StandardRanks)+len(SpecialRanks))
	values[Ace] = Value{Term: Num(1)}
	for n := 2; n <= 10; n++ {
		values[Rank(fmt.Sprint(n))] = Value{Term: Num(float64(n))}
	}
	values[Jack] = Value{Term: Op(Add)}
	values[Queen] = Value{Term: Op(Sub)}
	switch mode {
	case Pro:
		values[King] = Value{Term: Op(Div)}
	case SpecialMode:
		values[King] = Value{Term: Power()}
	default:
		values[King] = Value{Term: Op(Mul)}
	}
	for r, a := range specialActions {
		values[r] = Value{Action: a}
	}
	return values
}

var rankValues = map[Mode]map[Rank]Value{
	Easy:        BuildRankValues(Easy),
	Pro:         BuildRankValues(Pro),
	SpecialMode: BuildRankValues(SpecialMode),
}

// ValueOf looks up what card c means under mode.
func ValueOf(c Card, mode Mode) (Value, bool) {
	table, ok := rankValues[mode]
	if !ok {
		table = rankValues[Easy]
	}
	v, ok := table[c.Rank]
	return v, ok
}

// ActionOf returns the action of a special card, or "" when c is not special.
func ActionOf(c Card) Action {
	return specialActions[c.Rank]
}
