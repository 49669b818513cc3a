package special

import (
	"fmt"

	"equation-game-server/cards"
	"equation-game-server/game"
	"equation-game-server/matcherrors"
)

// CloneCard copies a card from the discard pile into the player's hand.
// The copy gets a fresh id derived from the source id.
type CloneCard struct{}

func (c *CloneCard) Rank() cards.Rank    { return cards.RankClone }
func (c *CloneCard) Name() string        { return "Clone" }
func (c *CloneCard) Description() string { return "Copy a number or operator card from the discard pile into your hand." }
func (c *CloneCard) NeedsTarget() bool   { return true }
func (c *CloneCard) EndsTurn() bool      { return false }

func (c *CloneCard) Resolve(sc *game.SpecialContext) error {
	g := sc.Snapshot.Game
	i := cards.IndexOf(g.DiscardPile, sc.Target.CardID)
	if i < 0 {
		return fmt.Errorf("%w: %q is not in the discard pile", matcherrors.ErrInvalidTarget, sc.Target.CardID)
	}
	src := g.DiscardPile[i]
	if src.IsSpecial() {
		return fmt.Errorf("%w: special cards cannot be cloned", matcherrors.ErrInvalidTarget)
	}
	sc.Actor.Hand = append(sc.Actor.Hand, cards.Card{ID: sc.NextCloneID(src.ID), Suit: src.Suit, Rank: src.Rank})
	g.Notice = fmt.Sprintf("%s cloned %s", sc.Actor.Name, src.Rank)
	return nil
}
