package special

import (
	"fmt"

	"equation-game-server/cards"
	"equation-game-server/game"
	"equation-game-server/matcherrors"
	"equation-game-server/target"
)

// DestinyCard replaces one number card behind the target with the first
// usable number card of the deck and recomputes the target. It uses up the turn.
type DestinyCard struct{}

func (d *DestinyCard) Rank() cards.Rank    { return cards.RankDestiny }
func (d *DestinyCard) Name() string        { return "Destiny" }
func (d *DestinyCard) Description() string { return "Replace a number card of the target with one from the deck." }
func (d *DestinyCard) NeedsTarget() bool   { return true }
func (d *DestinyCard) EndsTurn() bool      { return true }

func (d *DestinyCard) Resolve(sc *game.SpecialContext) error {
	g := sc.Snapshot.Game
	if len(g.TargetCards) == 0 {
		return fmt.Errorf("%w: the target has no source cards", matcherrors.ErrInvalidTarget)
	}
	slot := sc.Target.Slot
	if slot < 0 || slot >= len(g.TargetCards) {
		return fmt.Errorf("%w: slot must be between 0 and %d", matcherrors.ErrInvalidTarget, len(g.TargetCards)-1)
	}
	old := g.TargetCards[slot]
	if !old.IsNumber() {
		return fmt.Errorf("%w: only number cards can be replaced", matcherrors.ErrInvalidTarget)
	}

	for _, c := range g.Deck {
		if !c.IsNumber() {
			continue
		}
		source := append([]cards.Card(nil), g.TargetCards...)
		source[slot] = c
		n, err := target.Recompute(source, g.Mode)
		if err != nil {
			continue
		}
		g.Deck = cards.RemoveByIDs(g.Deck, c.ID)
		g.DiscardPile = append(g.DiscardPile, old)
		g.TargetCards = source
		prev := g.TargetNumber
		g.TargetNumber = n
		g.Notice = fmt.Sprintf("%s changed the target from %d to %d", sc.Actor.Name, prev, n)
		return nil
	}
	return fmt.Errorf("%w: no number card in the deck fits", matcherrors.ErrInvalidTarget)
}
