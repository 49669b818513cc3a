package special

import (
	"equation-game-server/cards"
	"equation-game-server/game"
)

// ShuffleCard reshuffles the player's remaining hand.
type ShuffleCard struct{}

func (s *ShuffleCard) Rank() cards.Rank    { return cards.RankShuffle }
func (s *ShuffleCard) Name() string        { return "Shuffle" }
func (s *ShuffleCard) Description() string { return "Reshuffle the cards in your hand." }
func (s *ShuffleCard) NeedsTarget() bool   { return false }
func (s *ShuffleCard) EndsTurn() bool      { return false }

func (s *ShuffleCard) Resolve(sc *game.SpecialContext) error {
	sc.Actor.Hand = cards.Shuffle(sc.Actor.Hand, sc.Rand)
	return nil
}
