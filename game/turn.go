package game

import (
	"context"
	"fmt"
	"log/slog"

	"equation-game-server/cards"
	"equation-game-server/equation"
	"equation-game-server/matcherrors"
	"equation-game-server/scoring"
)

// ActionKind enumerates the moves a player can make on their turn.
type ActionKind string

const (
	ActionSubmit ActionKind = "submit"
	ActionPass   ActionKind = "pass"
)

// Action is a submit or pass move. Equation and CardIDs are only read for a submit.
type Action struct {
	Kind     ActionKind   `json:"action"`
	Equation []cards.Term `json:"equation,omitempty"`
	CardIDs  []string     `json:"cardIds,omitempty"`
}

// isTurnOf reports whether playerID may make a normal move right now.
func isTurnOf(g *Game, playerID string) bool {
	return g.State == PhasePlayerTurn && g.CurrentPlayerID == playerID
}

// PlayerAction applies a submit or pass. A move from anyone but the current
// player, or outside PhasePlayerTurn, is silently ignored so that stale
// clients cannot disturb the game.
func (s *Service) PlayerAction(ctx context.Context, gameID, playerID string, action Action) error {
	if action.Kind != ActionSubmit && action.Kind != ActionPass {
		return fmt.Errorf("%w: unknown action %q", matcherrors.ErrInvalidAction, action.Kind)
	}
	snap, err := s.transact(ctx, gameID, func(snap *Snapshot) error {
		g := snap.Game
		if !isTurnOf(g, playerID) {
			return errNoop
		}
		p := snap.Player(playerID)
		if p == nil {
			return matcherrors.ErrUnknownPlayer
		}
		if action.Kind == ActionPass {
			p.RoundScore = 0
			p.FinalResult = nil
			p.Equation = nil
			p.CardsUsed = nil
			p.Passed = true
			s.advanceTurn(snap)
			return nil
		}
		if err := s.submit(g, p, action); err != nil {
			return err
		}
		s.advanceTurn(snap)
		return nil
	})
	if err == nil && snap != nil {
		slog.Debug("player action", "tag", "game", "game", gameID, "player", playerID, "action", action.Kind, "state", snap.Game.State)
	}
	return err
}

// submit validates and scores an equation built from cards in p's hand,
// then moves the used cards to the discard pile.
func (s *Service) submit(g *Game, p *Player, action Action) error {
	if hasDuplicates(action.CardIDs) {
		return fmt.Errorf("%w: a card can only be used once", matcherrors.ErrEquationMismatch)
	}
	used := make([]cards.Card, 0, len(action.CardIDs))
	for _, id := range action.CardIDs {
		i := cards.IndexOf(p.Hand, id)
		if i < 0 {
			return fmt.Errorf("%w: %s", matcherrors.ErrCardNotInHand, id)
		}
		used = append(used, p.Hand[i])
	}
	result, err := equation.Evaluate(action.Equation, g.Mode)
	if err != nil {
		return fmt.Errorf("%w: %w", matcherrors.ErrInvalidEquation, err)
	}
	if err := matchCards(action.Equation, used, g.Mode); err != nil {
		return err
	}

	p.RoundScore = scoring.Score(result, g.TargetNumber, len(used))
	p.FinalResult = &result
	p.Equation = append([]cards.Term(nil), action.Equation...)
	p.CardsUsed = used
	p.Passed = true
	p.Hand = cards.RemoveByIDs(p.Hand, action.CardIDs...)
	g.DiscardPile = append(g.DiscardPile, used...)
	return nil
}

// matchCards checks that the equation is made of exactly the used cards:
// every number, operator and power term must come from one card, in any
// order. Parentheses are free.
func matchCards(terms []cards.Term, used []cards.Card, mode cards.Mode) error {
	var pending []cards.Term
	for _, t := range terms {
		if t.Kind == cards.TermOpenParen || t.Kind == cards.TermCloseParen {
			continue
		}
		pending = append(pending, t)
	}
	for _, c := range used {
		v, ok := cards.ValueOf(c, mode)
		if !ok || v.IsAction() {
			return fmt.Errorf("%w: %s cannot be used in an equation", matcherrors.ErrEquationMismatch, c.ID)
		}
		found := -1
		for i, t := range pending {
			if t.Same(v.Term) {
				found = i
				break
			}
		}
		if found < 0 {
			return fmt.Errorf("%w: %s is not in the equation", matcherrors.ErrEquationMismatch, c.ID)
		}
		pending = append(pending[:found], pending[found+1:]...)
	}
	if len(pending) > 0 {
		return fmt.Errorf("%w: %s has no card", matcherrors.ErrEquationMismatch, pending[0])
	}
	return nil
}
