package cards

import (
	"fmt"
	"math/rand"
)

// DoubleDeckThreshold is the player count from which two standard sets are used.
const DoubleDeckThreshold = 4

// SpecialCopiesPerDeck is how many cards of each allowed special rank a set contributes.
const SpecialCopiesPerDeck = 2

// DeckCount returns how many standard 52-card sets a game with playerCount players uses.
func DeckCount(playerCount int) int {
	if playerCount >= DoubleDeckThreshold {
		return 2
	}
	return 1
}

// NewDeck builds the unshuffled deck for a game. Card ids are
// "<deck>-<suit>-<rank>" for standard cards and "<deck>-Special-<rank>-<copy>"
// for special cards, so every id is unique and derivable.
// Special ranks are only added in Special mode; unknown ranks in allowed are ignored.
func NewDeck(mode Mode, playerCount int, allowed []Rank) []Card {
	sets := DeckCount(playerCount)
	deck := make([]Card, 0, sets*(52+len(allowed)*SpecialCopiesPerDeck))
	for d := 0; d < sets; d++ {
		for _, s := range StandardSuits {
			for _, r := range StandardRanks {
				deck = append(deck, Card{ID: fmt.Sprintf("%d-%s-%s", d, s, r), Suit: s, Rank: r})
			}
		}
		if mode != SpecialMode {
			continue
		}
		for _, r := range dedupeSpecial(allowed) {
			for c := 0; c < SpecialCopiesPerDeck; c++ {
				deck = append(deck, Card{ID: fmt.Sprintf("%d-%s-%s-%d", d, Special, r, c), Suit: Special, Rank: r})
			}
		}
	}
	return deck
}

func dedupeSpecial(ranks []Rank) []Rank {
	seen := make(map[Rank]bool, len(ranks))
	out := make([]Rank, 0, len(ranks))
	for _, r := range ranks {
		if !IsSpecialRank(r) || seen[r] {
			continue
		}
		seen[r] = true
		out = append(out, r)
	}
	return out
}

// Shuffle returns a uniformly shuffled copy of deck (Fisher-Yates).
func Shuffle(deck []Card, rng *rand.Rand) []Card {
	out := make([]Card, len(deck))
	copy(out, deck)
	for i := len(out) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// Draw takes up to n cards from the front of deck.
// It returns the drawn cards and the remaining deck as new slices.
func Draw(deck []Card, n int) (drawn, rest []Card) {
	if n > len(deck) {
		n = len(deck)
	}
	if n < 0 {
		n = 0
	}
	drawn = append([]Card(nil), deck[:n]...)
	rest = append([]Card(nil), deck[n:]...)
	return drawn, rest
}
