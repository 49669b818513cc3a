package game

import (
	"context"
	"fmt"
	"log/slog"

	"equation-game-server/cards"
	"equation-game-server/matcherrors"
)

// PlaySpecialCard plays a special card from the current player's hand.
// Cards without a target resolve immediately; the others put the game in
// PhaseSpecialAction until ResolveSpecialCard or EndSpecialAction.
func (s *Service) PlaySpecialCard(ctx context.Context, gameID, playerID, cardID string) error {
	snap, err := s.transact(ctx, gameID, func(snap *Snapshot) error {
		g := snap.Game
		if !isTurnOf(g, playerID) {
			return errNoop
		}
		if g.Mode != cards.SpecialMode {
			return fmt.Errorf("%w: special cards are only played in special mode", matcherrors.ErrInvalidSpecial)
		}
		p := snap.Player(playerID)
		if p == nil {
			return matcherrors.ErrUnknownPlayer
		}
		i := cards.IndexOf(p.Hand, cardID)
		if i < 0 {
			return fmt.Errorf("%w: %s", matcherrors.ErrCardNotInHand, cardID)
		}
		card := p.Hand[i]
		def, err := s.special(card)
		if err != nil {
			return err
		}
		if def.NeedsTarget {
			g.SpecialAction = &SpecialAction{PlayerID: playerID, CardID: card.ID, Rank: card.Rank}
			g.State = PhaseSpecialAction
			return nil
		}
		return s.resolve(snap, p, card, def, SpecialTarget{})
	})
	if err == nil && snap != nil {
		slog.Debug("special card played", "tag", "game", "game", gameID, "player", playerID, "card", cardID, "state", snap.Game.State)
	}
	return err
}

// ResolveSpecialCard applies the pending special card to its target.
func (s *Service) ResolveSpecialCard(ctx context.Context, gameID, playerID string, tgt SpecialTarget) error {
	_, err := s.transact(ctx, gameID, func(snap *Snapshot) error {
		g := snap.Game
		if g.State != PhaseSpecialAction || g.SpecialAction == nil {
			return fmt.Errorf("%w: no special card is waiting", matcherrors.ErrWrongPhase)
		}
		if g.SpecialAction.PlayerID != playerID {
			return errNoop
		}
		p := snap.Player(playerID)
		if p == nil {
			return matcherrors.ErrUnknownPlayer
		}
		i := cards.IndexOf(p.Hand, g.SpecialAction.CardID)
		if i < 0 {
			return fmt.Errorf("%w: %s", matcherrors.ErrCardNotInHand, g.SpecialAction.CardID)
		}
		card := p.Hand[i]
		def, err := s.special(card)
		if err != nil {
			return err
		}
		g.SpecialAction = nil
		g.State = PhasePlayerTurn
		return s.resolve(snap, p, card, def, tgt)
	})
	return err
}

// EndSpecialAction cancels a pending special card. The card stays in hand.
func (s *Service) EndSpecialAction(ctx context.Context, gameID, playerID string) error {
	_, err := s.transact(ctx, gameID, func(snap *Snapshot) error {
		g := snap.Game
		if g.State != PhaseSpecialAction {
			return fmt.Errorf("%w: no special card is waiting", matcherrors.ErrWrongPhase)
		}
		if g.SpecialAction == nil || g.SpecialAction.PlayerID != playerID {
			return errNoop
		}
		g.SpecialAction = nil
		g.State = PhasePlayerTurn
		return nil
	})
	return err
}

func (s *Service) special(card cards.Card) (SpecialCardDef, error) {
	if !card.IsSpecial() {
		return SpecialCardDef{}, fmt.Errorf("%w: %s is not a special card", matcherrors.ErrInvalidSpecial, card.ID)
	}
	if s.Specials == nil {
		return SpecialCardDef{}, fmt.Errorf("%w: special cards are disabled", matcherrors.ErrInvalidSpecial)
	}
	def, ok := s.Specials.GetSpecial(card.Rank)
	if !ok || def.Resolve == nil {
		return SpecialCardDef{}, fmt.Errorf("%w: unknown special card %s", matcherrors.ErrInvalidSpecial, card.Rank)
	}
	return def, nil
}

// resolve moves the special card to the discard pile, runs its effect and,
// for cards that use up the turn, passes the turn on. The actor is not
// marked passed and plays again later in the round.
func (s *Service) resolve(snap *Snapshot, actor *Player, card cards.Card, def SpecialCardDef, tgt SpecialTarget) error {
	g := snap.Game
	actor.Hand = cards.RemoveByIDs(actor.Hand, card.ID)
	g.DiscardPile = append(g.DiscardPile, card)
	sc := &SpecialContext{Snapshot: snap, Actor: actor, Target: tgt, Rand: s.rng}
	if err := def.Resolve(sc); err != nil {
		return err
	}
	if g.Notice == "" {
		g.Notice = fmt.Sprintf("%s played %s", actor.Name, def.Name)
	}
	if def.EndsTurn {
		s.advanceTurn(snap)
	}
	return nil
}
