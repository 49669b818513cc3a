package game

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"equation-game-server/cards"
	"equation-game-server/matcherrors"
)

func (s *Service) validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: name must not be empty", matcherrors.ErrInvalidName)
	}
	if limit := s.Config.MaxNameLength; limit > 0 && utf8.RuneCountInString(name) > limit {
		return "", fmt.Errorf("%w: name must be at most %d characters", matcherrors.ErrInvalidName, limit)
	}
	return name, nil
}

// defaultSpecials parses the configured special pool, ignoring unknown codes.
func (s *Service) defaultSpecials() []cards.Rank {
	out := make([]cards.Rank, 0, len(s.Config.AllowedSpecialCards))
	for _, code := range s.Config.AllowedSpecialCards {
		if r := cards.Rank(code); cards.IsSpecialRank(r) {
			out = append(out, r)
		}
	}
	return out
}

// CreateGame opens a lobby with the creator as its only player.
func (s *Service) CreateGame(ctx context.Context, creatorName, userID string) (gameID, playerID string, err error) {
	name, err := s.validateName(creatorName)
	if err != nil {
		return "", "", err
	}
	gameID, playerID = s.newID(), s.newID()
	snap := &Snapshot{
		Game: &Game{
			ID:                  gameID,
			CreatorID:           playerID,
			State:               PhaseLobby,
			Mode:                cards.Easy,
			PlayerIDs:           []string{playerID},
			MaxPlayers:          s.Config.MaxPlayers,
			TotalRounds:         s.Config.TotalRounds,
			AllowedSpecialCards: s.defaultSpecials(),
		},
		Players: map[string]*Player{
			playerID: NewPlayer(playerID, name, userID),
		},
	}
	if err := s.Store.Create(ctx, snap); err != nil {
		slog.Error("creating game", "tag", "game", "err", err)
		return "", "", fmt.Errorf("%w: %v", matcherrors.ErrTryAgain, err)
	}
	slog.Info("game created", "tag", "game", "game", gameID, "creator", name)
	if s.Notifier != nil {
		s.Notifier.GameChanged(snap)
	}
	return gameID, playerID, nil
}

// JoinGame adds a player to a lobby.
func (s *Service) JoinGame(ctx context.Context, gameID, playerName, userID string) (string, error) {
	name, err := s.validateName(playerName)
	if err != nil {
		return "", err
	}
	playerID := s.newID()
	_, err = s.transact(ctx, gameID, func(snap *Snapshot) error {
		g := snap.Game
		if g.State != PhaseLobby {
			return matcherrors.ErrAlreadyStarted
		}
		if len(g.PlayerIDs) >= g.MaxPlayers {
			return fmt.Errorf("%w: at most %d players", matcherrors.ErrGameFull, g.MaxPlayers)
		}
		for _, p := range snap.Players {
			if strings.EqualFold(p.Name, name) {
				return fmt.Errorf("%w: %q", matcherrors.ErrNameTaken, name)
			}
		}
		g.PlayerIDs = append(g.PlayerIDs, playerID)
		snap.Players[playerID] = NewPlayer(playerID, name, userID)
		return nil
	})
	if err != nil {
		return "", err
	}
	slog.Info("player joined", "tag", "game", "game", gameID, "name", name)
	return playerID, nil
}

// lobbyCreator checks the configuration preconditions shared by the lobby settings.
func lobbyCreator(snap *Snapshot, playerID string) error {
	if snap.Game.State != PhaseLobby {
		return matcherrors.ErrAlreadyStarted
	}
	if snap.Game.CreatorID != playerID {
		return matcherrors.ErrNotCreator
	}
	return nil
}

// SetGameMode changes the rule set of a lobby. Special mode games end by
// score: TotalRounds becomes UnboundedRounds and TargetScore the configured threshold.
func (s *Service) SetGameMode(ctx context.Context, gameID, playerID, mode string) error {
	m, err := cards.ParseMode(mode)
	if err != nil {
		return fmt.Errorf("%w: %v", matcherrors.ErrInvalidMode, err)
	}
	_, err = s.transact(ctx, gameID, func(snap *Snapshot) error {
		if err := lobbyCreator(snap, playerID); err != nil {
			return err
		}
		g := snap.Game
		g.Mode = m
		if m == cards.SpecialMode {
			g.TotalRounds = UnboundedRounds
			g.TargetScore = s.Config.SpecialTargetScore
		} else {
			g.TotalRounds = s.Config.TotalRounds
			g.TargetScore = 0
		}
		return nil
	})
	return err
}

// registeredSpecials returns the ranks the provider can resolve, or nil
// when no provider is set.
func (s *Service) registeredSpecials() map[cards.Rank]bool {
	if s.Specials == nil {
		return nil
	}
	defs := s.Specials.AllSpecials()
	out := make(map[cards.Rank]bool, len(defs))
	for _, def := range defs {
		out[def.Rank] = true
	}
	return out
}

// SetAllowedSpecialCards sets the special ranks dealt in Special mode.
// Every rank must have a registered special card.
func (s *Service) SetAllowedSpecialCards(ctx context.Context, gameID, playerID string, ranks []string) error {
	registered := s.registeredSpecials()
	allowed := make([]cards.Rank, 0, len(ranks))
	seen := make(map[cards.Rank]bool, len(ranks))
	for _, code := range ranks {
		r := cards.Rank(strings.ToUpper(strings.TrimSpace(code)))
		if !cards.IsSpecialRank(r) {
			return fmt.Errorf("%w: %q", matcherrors.ErrInvalidSpecial, code)
		}
		if registered != nil && !registered[r] {
			return fmt.Errorf("%w: no special card registered for %s", matcherrors.ErrInvalidSpecial, r)
		}
		if !seen[r] {
			seen[r] = true
			allowed = append(allowed, r)
		}
	}
	_, err := s.transact(ctx, gameID, func(snap *Snapshot) error {
		if err := lobbyCreator(snap, playerID); err != nil {
			return err
		}
		snap.Game.AllowedSpecialCards = allowed
		return nil
	})
	return err
}

// StartGame deals the first round.
func (s *Service) StartGame(ctx context.Context, gameID string) error {
	snap, err := s.transact(ctx, gameID, func(snap *Snapshot) error {
		g := snap.Game
		if g.State != PhaseLobby {
			return matcherrors.ErrAlreadyStarted
		}
		if len(g.PlayerIDs) < s.Config.MinPlayers {
			return fmt.Errorf("%w: need at least %d", matcherrors.ErrNotEnoughPlayers, s.Config.MinPlayers)
		}
		g.CurrentRound = 1
		deck := cards.NewDeck(g.Mode, len(g.PlayerIDs), g.AllowedSpecialCards)
		s.dealRound(snap, cards.Shuffle(deck, s.rng), s.Config.HandSize)
		return nil
	})
	if err == nil && snap != nil {
		slog.Info("game started", "tag", "game", "game", gameID, "mode", snap.Game.Mode, "players", len(snap.Game.PlayerIDs), "target", snap.Game.TargetNumber)
	}
	return err
}

// Rematch creates a new lobby with the same roster and settings as a
// finished game. Repeated calls return the same new game.
func (s *Service) Rematch(ctx context.Context, gameID string) (string, error) {
	old, err := s.Get(ctx, gameID)
	if err != nil {
		return "", err
	}
	if old.Game.RematchID != "" {
		return old.Game.RematchID, nil
	}
	if old.Game.State != PhaseGameOver {
		return "", fmt.Errorf("%w: rematch needs a finished game", matcherrors.ErrWrongPhase)
	}

	next := s.rematchSnapshot(old)
	if err := s.Store.Create(ctx, next); err != nil {
		return "", fmt.Errorf("%w: %v", matcherrors.ErrTryAgain, err)
	}

	newID := next.Game.ID
	existing := ""
	_, err = s.transact(ctx, gameID, func(snap *Snapshot) error {
		if snap.Game.RematchID != "" {
			existing = snap.Game.RematchID
			return errNoop
		}
		snap.Game.RematchID = newID
		return nil
	})
	if err != nil || existing != "" {
		if delErr := s.Store.Delete(ctx, newID); delErr != nil {
			slog.Warn("removing orphaned rematch", "tag", "game", "game", newID, "err", delErr)
		}
		if err != nil {
			return "", err
		}
		return existing, nil
	}
	slog.Info("rematch created", "tag", "game", "game", gameID, "rematch", newID)
	if s.Notifier != nil {
		s.Notifier.GameChanged(next)
	}
	return newID, nil
}

func (s *Service) rematchSnapshot(old *Snapshot) *Snapshot {
	og := old.Game
	g := &Game{
		ID:                  s.newID(),
		State:               PhaseLobby,
		Mode:                og.Mode,
		MaxPlayers:          og.MaxPlayers,
		TotalRounds:         og.TotalRounds,
		TargetScore:         og.TargetScore,
		AllowedSpecialCards: append([]cards.Rank(nil), og.AllowedSpecialCards...),
	}
	players := make(map[string]*Player, len(og.PlayerIDs))
	for _, p := range old.Ordered() {
		id := s.newID()
		if p.ID == og.CreatorID {
			g.CreatorID = id
		}
		g.PlayerIDs = append(g.PlayerIDs, id)
		players[id] = NewPlayer(id, p.Name, p.UserID)
	}
	if g.CreatorID == "" && len(g.PlayerIDs) > 0 {
		g.CreatorID = g.PlayerIDs[0]
	}
	return &Snapshot{Game: g, Players: players}
}
