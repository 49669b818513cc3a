package game

import (
	"equation-game-server/cards"
)

// Phase is the game-level state of the round state machine.
type Phase string

const (
	PhaseLobby         Phase = "lobby"
	PhasePlayerTurn    Phase = "playerTurn"
	PhaseSpecialAction Phase = "specialAction"
	PhaseDiscarding    Phase = "discarding"
	PhaseRoundOver     Phase = "roundOver"
	PhaseGameOver      Phase = "gameOver"
)

// UnboundedRounds is the TotalRounds value of games that end by score.
const UnboundedRounds = 0

// SpecialAction records a special card waiting for its target.
type SpecialAction struct {
	PlayerID string     `json:"playerId"`
	CardID   string     `json:"cardId"`
	Rank     cards.Rank `json:"rank"`
}

// Game is the shared part of a game snapshot.
type Game struct {
	ID                  string         `json:"id"`
	CreatorID           string         `json:"creatorId"`
	State               Phase          `json:"state"`
	Mode                cards.Mode     `json:"mode"`
	PlayerIDs           []string       `json:"playerIds"`
	MaxPlayers          int            `json:"maxPlayers"`
	Deck                []cards.Card   `json:"deck"`
	DiscardPile         []cards.Card   `json:"discardPile"`
	TargetNumber        int            `json:"targetNumber"`
	TargetCards         []cards.Card   `json:"targetCards"`
	CurrentPlayerID     string         `json:"currentPlayerId,omitempty"`
	CurrentRound        int            `json:"currentRound"`
	TotalRounds         int            `json:"totalRounds"`
	TargetScore         int            `json:"targetScore,omitempty"`
	RoundWinnerIDs      []string       `json:"roundWinnerIds"`
	SpecialAction       *SpecialAction `json:"specialAction,omitempty"`
	DiscardingPlayerID  string         `json:"discardingPlayerId,omitempty"`
	AllowedSpecialCards []cards.Rank   `json:"allowedSpecialCards"`
	RematchID           string         `json:"rematchId,omitempty"`
	Notice              string         `json:"notice,omitempty"`
	CloneSeq            int            `json:"cloneSeq"`
	Version             int64          `json:"version"`
}

// Snapshot is the unit of persistence and concurrency: one game and all of its players.
type Snapshot struct {
	Game    *Game
	Players map[string]*Player
}

// Player returns the player with the given id, or nil.
func (s *Snapshot) Player(id string) *Player {
	return s.Players[id]
}

// Ordered returns the players in join order.
func (s *Snapshot) Ordered() []*Player {
	out := make([]*Player, 0, len(s.Game.PlayerIDs))
	for _, id := range s.Game.PlayerIDs {
		if p, ok := s.Players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// PlayerByName finds a player by display name.
func (s *Snapshot) PlayerByName(name string) *Player {
	for _, p := range s.Ordered() {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Clone returns a deep copy. Transactions mutate clones only.
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	out := &Snapshot{Players: make(map[string]*Player, len(s.Players))}
	if s.Game != nil {
		g := *s.Game
		g.PlayerIDs = cloneSlice(s.Game.PlayerIDs)
		g.Deck = cloneSlice(s.Game.Deck)
		g.DiscardPile = cloneSlice(s.Game.DiscardPile)
		g.TargetCards = cloneSlice(s.Game.TargetCards)
		g.RoundWinnerIDs = cloneSlice(s.Game.RoundWinnerIDs)
		g.AllowedSpecialCards = cloneSlice(s.Game.AllowedSpecialCards)
		if s.Game.SpecialAction != nil {
			sa := *s.Game.SpecialAction
			g.SpecialAction = &sa
		}
		out.Game = &g
	}
	for id, p := range s.Players {
		out.Players[id] = p.clone()
	}
	return out
}

// cloneSlice copies xs. Nil stays nil and empty stays empty, so clones
// encode to the same JSON as the original.
func cloneSlice[T any](xs []T) []T {
	if xs == nil {
		return nil
	}
	out := make([]T, len(xs))
	copy(out, xs)
	return out
}

// PlayerView is the public part of a player, as seen by everyone.
type PlayerView struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	HandCount   int          `json:"handCount"`
	RoundScore  int          `json:"roundScore"`
	TotalScore  int          `json:"totalScore"`
	Passed      bool         `json:"passed"`
	FinalResult *float64     `json:"finalResult,omitempty"`
	Equation    []cards.Term `json:"equation,omitempty"`
}

// GameStateMsg is the game state sent to one player. Other players' hands
// are reduced to a count.
type GameStateMsg struct {
	Type                string         `json:"type"`
	GameID              string         `json:"gameId"`
	State               Phase          `json:"state"`
	Mode                cards.Mode     `json:"mode"`
	CreatorID           string         `json:"creatorId"`
	YouID               string         `json:"youId,omitempty"`
	Hand                []cards.Card   `json:"hand"`
	YourTurn            bool           `json:"yourTurn"`
	Players             []PlayerView   `json:"players"`
	CurrentPlayerID     string         `json:"currentPlayerId,omitempty"`
	TargetNumber        int            `json:"targetNumber"`
	TargetCards         []cards.Card   `json:"targetCards"`
	DeckCount           int            `json:"deckCount"`
	DiscardPile         []cards.Card   `json:"discardPile"`
	CurrentRound        int            `json:"currentRound"`
	TotalRounds         int            `json:"totalRounds"`
	TargetScore         int            `json:"targetScore,omitempty"`
	RoundWinnerIDs      []string       `json:"roundWinnerIds"`
	SpecialAction       *SpecialAction `json:"specialAction,omitempty"`
	DiscardingPlayerID  string         `json:"discardingPlayerId,omitempty"`
	AllowedSpecialCards []cards.Rank   `json:"allowedSpecialCards"`
	RematchID           string         `json:"rematchId,omitempty"`
	Notice              string         `json:"notice,omitempty"`
}

// BuildPlayerView creates the public view of p.
func BuildPlayerView(p *Player) PlayerView {
	return PlayerView{
		ID:          p.ID,
		Name:        p.Name,
		HandCount:   len(p.Hand),
		RoundScore:  p.RoundScore,
		TotalScore:  p.TotalScore,
		Passed:      p.Passed,
		FinalResult: p.FinalResult,
		Equation:    p.Equation,
	}
}

// BuildStateForPlayer returns the view of snap for playerID. An unknown
// playerID yields a spectator view with no hand.
func BuildStateForPlayer(snap *Snapshot, playerID string) GameStateMsg {
	g := snap.Game
	players := make([]PlayerView, 0, len(g.PlayerIDs))
	for _, p := range snap.Ordered() {
		players = append(players, BuildPlayerView(p))
	}

	hand := []cards.Card{}
	youID := ""
	if p := snap.Player(playerID); p != nil {
		youID = p.ID
		hand = cloneSlice(p.Hand)
		if hand == nil {
			hand = []cards.Card{}
		}
	}

	winners := g.RoundWinnerIDs
	if winners == nil {
		winners = []string{}
	}
	targetCards := g.TargetCards
	if targetCards == nil {
		targetCards = []cards.Card{}
	}
	discard := g.DiscardPile
	if discard == nil {
		discard = []cards.Card{}
	}

	return GameStateMsg{
		Type:                "game_state",
		GameID:              g.ID,
		State:               g.State,
		Mode:                g.Mode,
		CreatorID:           g.CreatorID,
		YouID:               youID,
		Hand:                hand,
		YourTurn:            youID != "" && g.State == PhasePlayerTurn && g.CurrentPlayerID == youID,
		Players:             players,
		CurrentPlayerID:     g.CurrentPlayerID,
		TargetNumber:        g.TargetNumber,
		TargetCards:         targetCards,
		DeckCount:           len(g.Deck),
		DiscardPile:         discard,
		CurrentRound:        g.CurrentRound,
		TotalRounds:         g.TotalRounds,
		TargetScore:         g.TargetScore,
		RoundWinnerIDs:      winners,
		SpecialAction:       g.SpecialAction,
		DiscardingPlayerID:  g.DiscardingPlayerID,
		AllowedSpecialCards: g.AllowedSpecialCards,
		RematchID:           g.RematchID,
		Notice:              g.Notice,
	}
}
