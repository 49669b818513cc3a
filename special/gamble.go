package special

import (
	"fmt"

	"equation-game-server/cards"
	"equation-game-server/game"
	"equation-game-server/matcherrors"
)

// GambleDraw is how many cards Gamble draws for the discarded one.
const GambleDraw = 2

// GambleCard trades one card of the hand for two from the deck.
type GambleCard struct{}

func (g *GambleCard) Rank() cards.Rank    { return cards.RankGamble }
func (g *GambleCard) Name() string        { return "Gamble" }
func (g *GambleCard) Description() string { return "Discard a card from your hand and draw two." }
func (g *GambleCard) NeedsTarget() bool   { return true }
func (g *GambleCard) EndsTurn() bool      { return false }

func (g *GambleCard) Resolve(sc *game.SpecialContext) error {
	st := sc.Snapshot.Game
	i := cards.IndexOf(sc.Actor.Hand, sc.Target.CardID)
	if i < 0 {
		return fmt.Errorf("%w: %q is not in your hand", matcherrors.ErrInvalidTarget, sc.Target.CardID)
	}
	discarded := sc.Actor.Hand[i]
	sc.Actor.Hand = cards.RemoveByIDs(sc.Actor.Hand, discarded.ID)
	st.DiscardPile = append(st.DiscardPile, discarded)

	drawn, rest := cards.Draw(st.Deck, GambleDraw)
	st.Deck = rest
	sc.Actor.Hand = append(sc.Actor.Hand, drawn...)
	st.Notice = fmt.Sprintf("%s gambled a card and drew %d", sc.Actor.Name, len(drawn))
	return nil
}
