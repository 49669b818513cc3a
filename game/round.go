package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"equation-game-server/cards"
	"equation-game-server/matcherrors"
)

// roundStarter returns the player who opens the current round. The seat
// rotates in join order from round to round.
func roundStarter(g *Game) string {
	n := len(g.PlayerIDs)
	if n == 0 {
		return ""
	}
	r := g.CurrentRound - 1
	if r < 0 {
		r = 0
	}
	return g.PlayerIDs[r%n]
}

// dealRound generates the target from deck, deals perPlayer cards to every
// player in join order plus the starter bonus, then opens the round.
// Hands are not cleared here.
func (s *Service) dealRound(snap *Snapshot, deck []cards.Card, perPlayer int) {
	g := snap.Game
	res := s.targets.Generate(deck, g.Mode)
	if res.FellBack {
		slog.Debug("target fallback", "tag", "game", "game", g.ID, "round", g.CurrentRound, "target", res.Number)
	}
	g.TargetNumber = res.Number
	g.TargetCards = res.Cards
	g.Deck = res.Deck
	g.DiscardPile = []cards.Card{}
	g.RoundWinnerIDs = []string{}
	g.SpecialAction = nil
	g.DiscardingPlayerID = ""

	for _, p := range snap.Ordered() {
		p.resetRound()
		drawInto(g, p, perPlayer)
	}
	starter := roundStarter(g)
	if p := snap.Player(starter); p != nil {
		drawInto(g, p, s.Config.StarterBonusCards)
	}
	g.CurrentPlayerID = starter
	g.State = PhasePlayerTurn
	s.applyDiscardGate(snap)
}

// drawInto moves up to n cards from the top of the deck into p's hand.
func drawInto(g *Game, p *Player, n int) int {
	drawn, rest := cards.Draw(g.Deck, n)
	g.Deck = rest
	p.Hand = append(p.Hand, drawn...)
	return len(drawn)
}

// applyDiscardGate sends the first over-limit player (in join order) to the
// discarding phase. It only applies in Special mode.
func (s *Service) applyDiscardGate(snap *Snapshot) {
	g := snap.Game
	if g.Mode != cards.SpecialMode || s.Config.MaxHandSize <= 0 {
		return
	}
	for _, p := range snap.Ordered() {
		if len(p.Hand) > s.Config.MaxHandSize {
			g.State = PhaseDiscarding
			g.DiscardingPlayerID = p.ID
			return
		}
	}
	g.State = PhasePlayerTurn
	g.DiscardingPlayerID = ""
}

// advanceTurn ends the round when every player has passed; otherwise the
// next un-passed player in join order after the current one draws a card
// and takes the turn.
func (s *Service) advanceTurn(snap *Snapshot) {
	g := snap.Game
	players := snap.Ordered()
	allPassed := true
	for _, p := range players {
		if !p.Passed {
			allPassed = false
			break
		}
	}
	if allPassed {
		s.endRound(snap)
		return
	}

	start := 0
	for i, id := range g.PlayerIDs {
		if id == g.CurrentPlayerID {
			start = i
			break
		}
	}
	n := len(players)
	for step := 1; step <= n; step++ {
		next := players[(start+step)%n]
		if next.Passed {
			continue
		}
		drawInto(g, next, 1)
		g.CurrentPlayerID = next.ID
		g.State = PhasePlayerTurn
		return
	}
}

// endRound tallies round scores and picks the winners. A round where the
// best score is 0 has no winners. Special mode games finish as soon as a
// total reaches the target score.
func (s *Service) endRound(snap *Snapshot) {
	g := snap.Game
	best := 0
	for _, p := range snap.Ordered() {
		p.TotalScore += p.RoundScore
		if p.RoundScore > best {
			best = p.RoundScore
		}
	}
	winners := []string{}
	if best > 0 {
		for _, p := range snap.Ordered() {
			if p.RoundScore == best {
				winners = append(winners, p.ID)
			}
		}
	}
	g.RoundWinnerIDs = winners
	g.CurrentPlayerID = ""
	g.SpecialAction = nil
	g.State = PhaseRoundOver
	if g.Mode == cards.SpecialMode && scoreReached(snap) {
		g.State = PhaseGameOver
	}
	slog.Debug("round over", "tag", "game", "game", g.ID, "round", g.CurrentRound, "winners", len(winners), "state", g.State)
}

func scoreReached(snap *Snapshot) bool {
	if snap.Game.TargetScore <= 0 {
		return false
	}
	for _, p := range snap.Players {
		if p.TotalScore >= snap.Game.TargetScore {
			return true
		}
	}
	return false
}

func isCloneID(id string) bool {
	return strings.Contains(id, CloneSeparator)
}

// NextRound starts the next round, or finishes the game when the round
// limit (Easy, Pro) or the target score (Special) is reached. All cards
// outside the kept hands are collected into one fresh deck; clones are retired.
func (s *Service) NextRound(ctx context.Context, gameID string) error {
	snap, err := s.transact(ctx, gameID, func(snap *Snapshot) error {
		g := snap.Game
		if g.State != PhaseRoundOver {
			return fmt.Errorf("%w: the round is not over", matcherrors.ErrWrongPhase)
		}
		special := g.Mode == cards.SpecialMode
		if (!special && g.TotalRounds != UnboundedRounds && g.CurrentRound >= g.TotalRounds) ||
			(special && scoreReached(snap)) {
			g.State = PhaseGameOver
			g.CurrentPlayerID = ""
			return nil
		}

		pool := make([]cards.Card, 0, len(g.Deck)+len(g.DiscardPile)+len(g.TargetCards))
		pool = append(pool, g.Deck...)
		pool = append(pool, g.DiscardPile...)
		pool = append(pool, g.TargetCards...)
		if !special {
			for _, p := range snap.Ordered() {
				pool = append(pool, p.Hand...)
				p.Hand = []cards.Card{}
			}
		}
		fresh := make([]cards.Card, 0, len(pool))
		for _, c := range pool {
			if !isCloneID(c.ID) {
				fresh = append(fresh, c)
			}
		}

		g.CurrentRound++
		perPlayer := s.Config.HandSize
		if special {
			perPlayer = s.Config.SpecialRoundDraw
		}
		s.dealRound(snap, cards.Shuffle(fresh, s.rng), perPlayer)
		return nil
	})
	if err == nil && snap != nil {
		slog.Info("next round", "tag", "game", "game", gameID, "round", snap.Game.CurrentRound, "state", snap.Game.State)
	}
	return err
}

// DiscardCards removes exactly Config.DiscardCount cards from the hand of
// the player held at the discard gate. A call from any other player is ignored.
func (s *Service) DiscardCards(ctx context.Context, gameID, playerID string, cardIDs []string) error {
	_, err := s.transact(ctx, gameID, func(snap *Snapshot) error {
		g := snap.Game
		if g.State != PhaseDiscarding {
			return fmt.Errorf("%w: nobody is discarding", matcherrors.ErrWrongPhase)
		}
		if g.DiscardingPlayerID != playerID {
			return errNoop
		}
		want := s.Config.DiscardCount
		if len(cardIDs) != want || hasDuplicates(cardIDs) {
			return fmt.Errorf("%w: discard exactly %d different cards", matcherrors.ErrWrongCount, want)
		}
		p := snap.Player(playerID)
		if p == nil {
			return matcherrors.ErrUnknownPlayer
		}
		discarded, err := takeFromHand(p, cardIDs)
		if err != nil {
			return err
		}
		g.DiscardPile = append(g.DiscardPile, discarded...)
		s.applyDiscardGate(snap)
		return nil
	})
	return err
}

func hasDuplicates(ids []string) bool {
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			return true
		}
		seen[id] = struct{}{}
	}
	return false
}

// takeFromHand removes the cards with the given ids from p's hand and
// returns them in the order requested.
func takeFromHand(p *Player, ids []string) ([]cards.Card, error) {
	out := make([]cards.Card, 0, len(ids))
	for _, id := range ids {
		i := cards.IndexOf(p.Hand, id)
		if i < 0 {
			return nil, fmt.Errorf("%w: %s", matcherrors.ErrCardNotInHand, id)
		}
		out = append(out, p.Hand[i])
	}
	p.Hand = cards.RemoveByIDs(p.Hand, ids...)
	return out, nil
}
