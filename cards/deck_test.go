package cards

import (
	"encoding/json"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildRankValues_KingDependsOnMode(t *testing.T) {
	assert.True(t, BuildRankValues(Easy)[King].Term.Same(Op(Mul)))
	assert.True(t, BuildRankValues(Pro)[King].Term.Same(Op(Div)))
	assert.True(t, BuildRankValues(SpecialMode)[King].Term.Same(Power()))

	for _, mode := range []Mode{Easy, Pro, SpecialMode} {
		v := BuildRankValues(mode)
		assert.True(t, v[Ace].Term.Same(Num(1)), mode)
		assert.True(t, v[Ten].Term.Same(Num(10)), mode)
		assert.True(t, v[Jack].Term.Same(Op(Add)), mode)
		assert.True(t, v[Queen].Term.Same(Op(Sub)), mode)
		assert.Equal(t, ActionClone, v[RankClone].Action, mode)
		assert.Equal(t, ActionGamble, v[RankGamble].Action, mode)
	}
}

func TestNewDeck_SizeAndUniqueIDs(t *testing.T) {
	tests := []struct {
		name    string
		mode    Mode
		players int
		allowed []Rank
		want    int
	}{
		{"single set", Easy, 3, nil, 52},
		{"double set at threshold", Pro, 4, nil, 104},
		{"specials ignored outside special mode", Pro, 2, SpecialRanks, 52},
		{"special single", SpecialMode, 2, SpecialRanks, 52 + 10},
		{"special double subset", SpecialMode, 5, []Rank{RankClone, RankGamble}, 104 + 8},
		{"special duplicates ignored", SpecialMode, 2, []Rank{RankClone, RankClone, King}, 52 + 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deck := NewDeck(tt.mode, tt.players, tt.allowed)
			require.Len(t, deck, tt.want)
			seen := make(map[string]bool, len(deck))
			for _, c := range deck {
				assert.False(t, seen[c.ID], "duplicate id %s", c.ID)
				seen[c.ID] = true
			}
		})
	}
}

func TestNewDeck_IDsAreDerivable(t *testing.T) {
	deck := NewDeck(SpecialMode, 4, []Rank{RankDestiny})
	for _, c := range deck {
		parts := strings.Split(c.ID, "-")
		require.GreaterOrEqual(t, len(parts), 3)
		assert.Equal(t, string(c.Suit), parts[1])
		assert.Equal(t, string(c.Rank), parts[2])
	}
}

func TestShuffle_DoesNotMutateInput(t *testing.T) {
	deck := NewDeck(Easy, 2, nil)
	before := IDs(deck)
	shuffled := Shuffle(deck, rand.New(rand.NewSource(1)))
	assert.Equal(t, before, IDs(deck))
	assert.ElementsMatch(t, before, IDs(shuffled))
}

// Each of the 24 permutations of a 4-card deck should show up with roughly
// equal frequency.
func TestShuffle_UniformOverPermutations(t *testing.T) {
	deck := []Card{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
	rng := rand.New(rand.NewSource(42))
	const runs = 48000
	counts := make(map[string]int)
	for i := 0; i < runs; i++ {
		counts[strings.Join(IDs(Shuffle(deck, rng)), "")]++
	}
	require.Len(t, counts, 24)

	expected := float64(runs) / 24
	var chi2 float64
	for _, n := range counts {
		d := float64(n) - expected
		chi2 += d * d / expected
	}
	// 23 degrees of freedom; the 0.999 quantile is about 49.7.
	assert.Less(t, chi2, 49.7, "chi-square too large: %v", counts)
}

func TestDraw(t *testing.T) {
	deck := []Card{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	drawn, rest := Draw(deck, 2)
	assert.Equal(t, []string{"a", "b"}, IDs(drawn))
	assert.Equal(t, []string{"c"}, IDs(rest))

	drawn, rest = Draw(deck, 5)
	assert.Len(t, drawn, 3)
	assert.Empty(t, rest)
}

func TestCardHelpers(t *testing.T) {
	ace := Card{ID: "0-Spades-A", Suit: Spades, Rank: Ace}
	jack := Card{ID: "0-Spades-J", Suit: Spades, Rank: Jack}
	clone := Card{ID: "0-Special-CL-0", Suit: Special, Rank: RankClone}

	v, ok := ace.FaceValue()
	assert.True(t, ok)
	assert.Equal(t, 1, v)
	assert.True(t, ace.IsNumber())
	assert.False(t, jack.IsNumber())
	assert.True(t, clone.IsSpecial())
	assert.Equal(t, ActionClone, ActionOf(clone))

	cs := []Card{ace, jack, clone}
	assert.Equal(t, 1, IndexOf(cs, jack.ID))
	assert.Equal(t, -1, IndexOf(cs, "missing"))
	assert.Equal(t, []string{ace.ID}, IDs(RemoveByIDs(cs, jack.ID, clone.ID)))
	assert.Len(t, cs, 3)
}

func TestTermJSON(t *testing.T) {
	var terms []Term
	require.NoError(t, json.Unmarshal([]byte(`["(", 5, "+", 2, ")", "**", "7", "$"]`), &terms))
	require.Len(t, terms, 8)
	assert.Equal(t, TermOpenParen, terms[0].Kind)
	assert.True(t, terms[1].Same(Num(5)))
	assert.True(t, terms[2].Same(Op(Add)))
	assert.Equal(t, TermPower, terms[5].Kind)
	assert.True(t, terms[6].Same(Num(7)))
	assert.Equal(t, TermInvalid, terms[7].Kind)

	out, err := json.Marshal([]Term{Num(4), Power(), Op(Div)})
	require.NoError(t, err)
	assert.JSONEq(t, `[4, "**", "/"]`, string(out))
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode(" PRO ")
	require.NoError(t, err)
	assert.Equal(t, Pro, m)
	_, err = ParseMode("hard")
	assert.Error(t, err)
}
