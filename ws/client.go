package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"equation-game-server/auth"
	"equation-game-server/game"
	"equation-game-server/matcherrors"
	"equation-game-server/wsutil"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 8192

	// Upper bound for one game operation, retries included.
	requestTimeout = 10 * time.Second
)

// Client is a middleman between the websocket connection and the hub.
// GameID and PlayerID are written by the hub under its lock.
type Client struct {
	Hub      *Hub
	Conn     *websocket.Conn
	Send     chan []byte
	Name     string
	UserID   string
	GameID   string
	PlayerID string
}

// ReadPump pumps messages from the websocket connection to the hub.
// It runs in its own goroutine per connection.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister <- c
		c.Conn.Close()
	}()

	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Warn("websocket read error", "tag", "ws", "err", err)
			}
			break
		}

		c.handleMessage(message)
	}
}

// WritePump pumps messages from the send channel to the websocket connection.
// It runs in its own goroutine per connection.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.Conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// seat returns the game and player this client is bound to.
func (c *Client) seat() (gameID, playerID string) {
	c.Hub.mu.Lock()
	defer c.Hub.mu.Unlock()
	return c.GameID, c.PlayerID
}

func (c *Client) handleMessage(data []byte) {
	var envelope InboundEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		c.sendError(matcherrors.CodeInvalid, "Invalid message format.")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()

	switch envelope.Type {
	case TypeAuth:
		c.handleAuth(envelope.Raw)
	case TypeCreateGame:
		c.handleCreateGame(ctx, envelope.Raw)
	case TypeJoinGame:
		c.handleJoinGame(ctx, envelope.Raw)
	case TypeRematch:
		c.handleRematch(ctx)
	case TypeSetMode, TypeSetSpecialCards, TypeStartGame, TypeSubmit, TypePass,
		TypePlaySpecial, TypeResolveSpecial, TypeEndSpecial, TypeDiscard, TypeNextRound:
		c.handleGameMessage(ctx, envelope)
	default:
		c.sendError(matcherrors.CodeInvalid, "Unknown message type: "+envelope.Type)
	}
}

func (c *Client) handleAuth(raw json.RawMessage) {
	var msg AuthMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.Token == "" {
		c.sendError(matcherrors.CodeInvalid, "Invalid auth message.")
		return
	}
	if c.Hub.Auth == nil {
		c.sendError(matcherrors.CodeForbidden, "Server auth not configured.")
		return
	}
	claims, err := c.Hub.Auth.Validate(msg.Token)
	if err != nil {
		slog.Debug("token rejected", "tag", "ws", "err", err)
		c.sendError(matcherrors.CodeForbidden, "Invalid or expired token.")
		return
	}
	c.UserID = auth.UserIDFromClaims(claims)
	c.Name = auth.FirstNameFromClaims(claims)
	c.send(AuthenticatedMsg{Type: "authenticated", UserID: c.UserID, Name: c.Name})
}

// displayName picks the requested name, or the one from the auth token.
func (c *Client) displayName(requested string) string {
	if requested != "" {
		return requested
	}
	return c.Name
}

func (c *Client) handleCreateGame(ctx context.Context, raw json.RawMessage) {
	var msg CreateGameMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.sendError(matcherrors.CodeInvalid, "Invalid create_game message.")
		return
	}
	name := c.displayName(msg.Name)
	gameID, playerID, err := c.Hub.Service.CreateGame(ctx, name, c.UserID)
	if err != nil {
		c.sendServiceError(err)
		return
	}
	c.enter(ctx, gameID, playerID)
}

func (c *Client) handleJoinGame(ctx context.Context, raw json.RawMessage) {
	var msg JoinGameMsg
	if err := json.Unmarshal(raw, &msg); err != nil || msg.GameID == "" {
		c.sendError(matcherrors.CodeInvalid, "Invalid join_game message.")
		return
	}
	playerID, err := c.Hub.Service.JoinGame(ctx, msg.GameID, c.displayName(msg.Name), c.UserID)
	if err != nil {
		c.sendServiceError(err)
		return
	}
	c.enter(ctx, msg.GameID, playerID)
}

// enter seats the client and sends it the joined confirmation and current state.
func (c *Client) enter(ctx context.Context, gameID, playerID string) {
	c.Hub.seat(c, gameID, playerID)
	snap, err := c.Hub.Service.Get(ctx, gameID)
	if err != nil {
		c.sendServiceError(err)
		return
	}
	name := ""
	if p := snap.Player(playerID); p != nil {
		name = p.Name
	}
	c.send(JoinedMsg{Type: "joined", GameID: gameID, PlayerID: playerID, Name: name})
	c.Hub.sendState(c, snap, playerID)
}

func (c *Client) handleRematch(ctx context.Context) {
	oldID, oldPlayer := c.seat()
	if oldID == "" {
		c.sendError(matcherrors.CodeInvalid, "You are not in a game.")
		return
	}
	old, err := c.Hub.Service.Get(ctx, oldID)
	if err != nil {
		c.sendServiceError(err)
		return
	}
	me := old.Player(oldPlayer)
	if me == nil {
		c.sendError(matcherrors.CodeInvalid, "You are not in this game.")
		return
	}
	newID, err := c.Hub.Service.Rematch(ctx, oldID)
	if err != nil {
		c.sendServiceError(err)
		return
	}
	next, err := c.Hub.Service.Get(ctx, newID)
	if err != nil {
		c.sendServiceError(err)
		return
	}
	seat := next.PlayerByName(me.Name)
	if seat == nil {
		c.sendError(matcherrors.CodeInternal, "No seat for you in the rematch.")
		return
	}
	c.Hub.seat(c, newID, seat.ID)
	c.send(RematchCreatedMsg{Type: "rematch_created", OldGameID: oldID, GameID: newID, PlayerID: seat.ID})
	c.Hub.sendState(c, next, seat.ID)
}

// handleGameMessage routes the in-game messages to the service. Successful
// operations are broadcast by the hub through GameChanged.
func (c *Client) handleGameMessage(ctx context.Context, env InboundEnvelope) {
	gameID, playerID := c.seat()
	if gameID == "" {
		c.sendError(matcherrors.CodeInvalid, "You are not in a game.")
		return
	}
	svc := c.Hub.Service
	var err error
	switch env.Type {
	case TypeSetMode:
		var msg SetModeMsg
		if err = json.Unmarshal(env.Raw, &msg); err == nil {
			err = svc.SetGameMode(ctx, gameID, playerID, msg.Mode)
		}
	case TypeSetSpecialCards:
		var msg SetSpecialCardsMsg
		if err = json.Unmarshal(env.Raw, &msg); err == nil {
			err = svc.SetAllowedSpecialCards(ctx, gameID, playerID, msg.Cards)
		}
	case TypeStartGame:
		err = c.creatorOnly(ctx, gameID, playerID, func() error { return svc.StartGame(ctx, gameID) })
	case TypeSubmit:
		var msg SubmitMsg
		if err = json.Unmarshal(env.Raw, &msg); err == nil {
			err = svc.PlayerAction(ctx, gameID, playerID, game.Action{Kind: game.ActionSubmit, Equation: msg.Equation, CardIDs: msg.CardIDs})
		}
	case TypePass:
		err = svc.PlayerAction(ctx, gameID, playerID, game.Action{Kind: game.ActionPass})
	case TypePlaySpecial:
		var msg PlaySpecialMsg
		if err = json.Unmarshal(env.Raw, &msg); err == nil {
			err = svc.PlaySpecialCard(ctx, gameID, playerID, msg.CardID)
		}
	case TypeResolveSpecial:
		var msg ResolveSpecialMsg
		if err = json.Unmarshal(env.Raw, &msg); err == nil {
			err = svc.ResolveSpecialCard(ctx, gameID, playerID, msg.SpecialTarget)
		}
	case TypeEndSpecial:
		err = svc.EndSpecialAction(ctx, gameID, playerID)
	case TypeDiscard:
		var msg DiscardMsg
		if err = json.Unmarshal(env.Raw, &msg); err == nil {
			err = svc.DiscardCards(ctx, gameID, playerID, msg.CardIDs)
		}
	case TypeNextRound:
		err = svc.NextRound(ctx, gameID)
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case err == nil:
	case errors.As(err, &syntaxErr), errors.As(err, &typeErr):
		c.sendError(matcherrors.CodeInvalid, fmt.Sprintf("Invalid %s message.", env.Type))
	default:
		c.sendServiceError(err)
	}
}

// creatorOnly runs fn when playerID created the game.
func (c *Client) creatorOnly(ctx context.Context, gameID, playerID string, fn func() error) error {
	snap, err := c.Hub.Service.Get(ctx, gameID)
	if err != nil {
		return err
	}
	if snap.Game.CreatorID != playerID {
		return matcherrors.ErrNotCreator
	}
	return fn()
}

func (c *Client) send(msg any) {
	data, err := json.Marshal(msg)
	if err != nil {
		slog.Error("encoding message", "tag", "ws", "err", err)
		return
	}
	wsutil.SafeSend(c.Send, data)
}

func (c *Client) sendError(code, message string) {
	c.send(ErrorMsg{Type: "error", Code: code, Message: message})
}

func (c *Client) sendServiceError(err error) {
	code := matcherrors.Code(err)
	if code == matcherrors.CodeInternal {
		slog.Error("game operation failed", "tag", "ws", "err", err)
	}
	c.sendError(code, err.Error())
}
