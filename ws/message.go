package ws

import (
	"encoding/json"

	"equation-game-server/cards"
	"equation-game-server/game"
)

// InboundEnvelope is the generic envelope for all client-to-server messages.
// The Type field is used for routing; Raw holds the full JSON payload.
type InboundEnvelope struct {
	Type string          `json:"type"`
	Raw  json.RawMessage `json:"-"`
}

// UnmarshalJSON implements custom unmarshaling to capture the raw payload.
func (e *InboundEnvelope) UnmarshalJSON(data []byte) error {
	type typeOnly struct {
		Type string `json:"type"`
	}
	var t typeOnly
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	e.Type = t.Type
	e.Raw = json.RawMessage(data)
	return nil
}

// Client-to-server message types.
const (
	TypeAuth            = "auth"
	TypeCreateGame      = "create_game"
	TypeJoinGame        = "join_game"
	TypeSetMode         = "set_mode"
	TypeSetSpecialCards = "set_special_cards"
	TypeStartGame       = "start_game"
	TypeSubmit          = "submit"
	TypePass            = "pass"
	TypePlaySpecial     = "play_special"
	TypeResolveSpecial  = "resolve_special"
	TypeEndSpecial      = "end_special"
	TypeDiscard         = "discard"
	TypeNextRound       = "next_round"
	TypeRematch         = "rematch"
)

// --- Client-to-Server message payloads ---

// AuthMsg carries a bearer token. Authenticated players get their finished games recorded.
type AuthMsg struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// CreateGameMsg opens a new lobby. An empty name falls back to the name in the auth token.
type CreateGameMsg struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// JoinGameMsg joins an existing lobby.
type JoinGameMsg struct {
	Type   string `json:"type"`
	GameID string `json:"gameId"`
	Name   string `json:"name"`
}

// SetModeMsg is sent by the creator to pick easy, pro or special.
type SetModeMsg struct {
	Type string `json:"type"`
	Mode string `json:"mode"`
}

// SetSpecialCardsMsg is sent by the creator to choose the special pool.
type SetSpecialCardsMsg struct {
	Type  string   `json:"type"`
	Cards []string `json:"cards"`
}

// SubmitMsg submits an equation built from cards in hand.
type SubmitMsg struct {
	Type     string       `json:"type"`
	Equation []cards.Term `json:"equation"`
	CardIDs  []string     `json:"cardIds"`
}

// PlaySpecialMsg plays a special card from hand.
type PlaySpecialMsg struct {
	Type   string `json:"type"`
	CardID string `json:"cardId"`
}

// ResolveSpecialMsg supplies the target of the pending special card.
type ResolveSpecialMsg struct {
	Type string `json:"type"`
	game.SpecialTarget
}

// DiscardMsg names the cards dropped at the hand limit.
type DiscardMsg struct {
	Type    string   `json:"type"`
	CardIDs []string `json:"cardIds"`
}

// --- Server-to-Client messages ---

// ErrorMsg is sent when a client action is rejected. Code is one of the
// matcherrors Code values.
type ErrorMsg struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// AuthenticatedMsg confirms a valid token.
type AuthenticatedMsg struct {
	Type   string `json:"type"`
	UserID string `json:"userId"`
	Name   string `json:"name"`
}

// JoinedMsg tells a client which game and seat it now holds.
type JoinedMsg struct {
	Type     string `json:"type"`
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
	Name     string `json:"name"`
}

// RematchCreatedMsg moves a client from a finished game to its rematch lobby.
type RematchCreatedMsg struct {
	Type      string `json:"type"`
	OldGameID string `json:"oldGameId"`
	GameID    string `json:"gameId"`
	PlayerID  string `json:"playerId"`
}
