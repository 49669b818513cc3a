package cards

import "strconv"

// Suit is the suit of a card. Special cards use the Special suit.
type Suit string

const (
	Spades   Suit = "Spades"
	Hearts   Suit = "Hearts"
	Diamonds Suit = "Diamonds"
	Clubs    Suit = "Clubs"
	Special  Suit = "Special"
)

// StandardSuits lists the four suits of a standard 52-card set, in deck order.
var StandardSuits = []Suit{Spades, Hearts, Diamonds, Clubs}

// Rank is the rank printed on a card. Its meaning in an equation depends on the game mode.
type Rank string

const (
	Ace   Rank = "A"
	Two   Rank = "2"
	Three Rank = "3"
	Four  Rank = "4"
	Five  Rank = "5"
	Six   Rank = "6"
	Seven Rank = "7"
	Eight Rank = "8"
	Nine  Rank = "9"
	Ten   Rank = "10"
	Jack  Rank = "J"
	Queen Rank = "Q"
	King  Rank = "K"

	RankClone    Rank = "CL"
	RankSabotage Rank = "SB"
	RankShuffle  Rank = "SH"
	RankDestiny  Rank = "DE"
	RankGamble   Rank = "GA"
)

// StandardRanks lists the thirteen ranks of a standard suit, in deck order.
var StandardRanks = []Rank{Ace, Two, Three, Four, Five, Six, Seven, Eight, Nine, Ten, Jack, Queen, King}

// SpecialRanks lists every action rank available in Special mode.
var SpecialRanks = []Rank{RankClone, RankSabotage, RankShuffle, RankDestiny, RankGamble}

// IsSpecialRank reports whether r is one of the action ranks.
func IsSpecialRank(r Rank) bool {
	for _, s := range SpecialRanks {
		if s == r {
			return true
		}
	}
	return false
}

// Card is an immutable playing card. Identity is the ID, never suit+rank:
// multi-deck games and special pools hold several cards with the same face.
type Card struct {
	ID   string `json:"id"`
	Suit Suit   `json:"suit"`
	Rank Rank   `json:"rank"`
}

// IsSpecial reports whether the card carries an action instead of a number or operator.
func (c Card) IsSpecial() bool {
	return c.Suit == Special || IsSpecialRank(c.Rank)
}

// FaceValue returns the numeric face of a number card (A counts as 1).
// ok is false for face cards and special cards.
func (c Card) FaceValue() (int, bool) {
	if c.Rank == Ace {
		return 1, true
	}
	n, err := strconv.Atoi(string(c.Rank))
	if err != nil || n < 2 || n > 10 {
		return 0, false
	}
	return n, true
}

// IsNumber reports whether the card contributes a number to an equation.
func (c Card) IsNumber() bool {
	_, ok := c.FaceValue()
	return ok && !c.IsSpecial()
}

// IndexOf returns the position of the card with the given id, or -1.
func IndexOf(cs []Card, id string) int {
	for i := range cs {
		if cs[i].ID == id {
			return i
		}
	}
	return -1
}

// RemoveByIDs returns a new slice without the cards whose ids are listed.
// The input slice is left untouched.
func RemoveByIDs(cs []Card, ids ...string) []Card {
	drop := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	out := make([]Card, 0, len(cs))
	for _, c := range cs {
		if _, ok := drop[c.ID]; ok {
			continue
		}
		out = append(out, c)
	}
	return out
}

// IDs returns the ids of the given cards, in order.
func IDs(cs []Card) []string {
	ids := make([]string, len(cs))
	for i, c := range cs {
		ids[i] = c.ID
	}
	return ids
}
