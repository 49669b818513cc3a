package special

import (
	"fmt"

	"equation-game-server/cards"
	"equation-game-server/game"
	"equation-game-server/matcherrors"
)

// SabotageCard steals a random card from another player. It uses up the turn.
type SabotageCard struct{}

func (s *SabotageCard) Rank() cards.Rank    { return cards.RankSabotage }
func (s *SabotageCard) Name() string        { return "Sabotage" }
func (s *SabotageCard) Description() string { return "Take a random card from another player's hand." }
func (s *SabotageCard) NeedsTarget() bool   { return true }
func (s *SabotageCard) EndsTurn() bool      { return true }

func (s *SabotageCard) Resolve(sc *game.SpecialContext) error {
	victim := sc.Snapshot.Player(sc.Target.PlayerID)
	if victim == nil || victim.ID == sc.Actor.ID {
		return fmt.Errorf("%w: choose another player", matcherrors.ErrInvalidTarget)
	}
	g := sc.Snapshot.Game
	if len(victim.Hand) == 0 {
		g.Notice = fmt.Sprintf("%s tried to sabotage %s, but their hand is empty", sc.Actor.Name, victim.Name)
		return nil
	}
	stolen := victim.Hand[sc.Rand.Intn(len(victim.Hand))]
	victim.Hand = cards.RemoveByIDs(victim.Hand, stolen.ID)
	sc.Actor.Hand = append(sc.Actor.Hand, stolen)
	g.Notice = fmt.Sprintf("%s sabotaged %s", sc.Actor.Name, victim.Name)
	return nil
}
