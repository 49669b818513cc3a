package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"github.com/gorilla/websocket"

	"equation-game-server/config"
	"equation-game-server/game"
	"equation-game-server/wsutil"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// GameService defines what the Hub needs from the game service.
type GameService interface {
	CreateGame(ctx context.Context, creatorName, userID string) (string, string, error)
	JoinGame(ctx context.Context, gameID, playerName, userID string) (string, error)
	SetGameMode(ctx context.Context, gameID, playerID, mode string) error
	SetAllowedSpecialCards(ctx context.Context, gameID, playerID string, ranks []string) error
	StartGame(ctx context.Context, gameID string) error
	PlayerAction(ctx context.Context, gameID, playerID string, action game.Action) error
	PlaySpecialCard(ctx context.Context, gameID, playerID, cardID string) error
	ResolveSpecialCard(ctx context.Context, gameID, playerID string, tgt game.SpecialTarget) error
	EndSpecialAction(ctx context.Context, gameID, playerID string) error
	DiscardCards(ctx context.Context, gameID, playerID string, cardIDs []string) error
	NextRound(ctx context.Context, gameID string) error
	Rematch(ctx context.Context, gameID string) (string, error)
	Get(ctx context.Context, gameID string) (*game.Snapshot, error)
}

// TokenValidator checks bearer tokens sent in auth messages.
type TokenValidator interface {
	Validate(token string) (jwt.MapClaims, error)
}

// Hub maintains the set of active clients and fans committed game
// snapshots out to the clients seated in each game.
type Hub struct {
	Clients    map[*Client]bool
	Register   chan *Client
	Unregister chan *Client
	Service    GameService
	Auth       TokenValidator
	Config     *config.Config

	mu sync.Mutex
	// rooms maps a game id to its connected clients and their player ids.
	rooms map[string]map[*Client]string
	// sent is the last snapshot version broadcast per game; older ones are dropped.
	sent map[string]int64
}

var _ game.Notifier = (*Hub)(nil)

// NewHub creates a new Hub. auth may be nil, in which case auth messages are rejected.
func NewHub(cfg *config.Config, svc GameService, auth TokenValidator) *Hub {
	return &Hub{
		Clients:    make(map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		Service:    svc,
		Auth:       auth,
		Config:     cfg,
		rooms:      make(map[string]map[*Client]string),
		sent:       make(map[string]int64),
	}
}

// Run starts the hub's main loop. Should be run as a goroutine.
// When ctx is cancelled (e.g. on server shutdown), Run returns and no longer accepts new registrations.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received, stopping", "tag", "ws")
			return
		case client := <-h.Register:
			h.Clients[client] = true
			slog.Debug("client connected", "tag", "ws", "clients", len(h.Clients))

		case client := <-h.Unregister:
			if _, ok := h.Clients[client]; ok {
				delete(h.Clients, client)
				h.leave(client)
				close(client.Send)
				slog.Debug("client disconnected", "tag", "ws", "clients", len(h.Clients))
			}
		}
	}
}

// GameChanged sends every seated client its own view of snap.
// Snapshots older than the last one broadcast for the game are skipped.
func (h *Hub) GameChanged(snap *game.Snapshot) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := snap.Game.ID
	if v := snap.Game.Version; v != 0 {
		if v < h.sent[id] {
			return
		}
		h.sent[id] = v
	}
	for c, playerID := range h.rooms[id] {
		h.sendState(c, snap, playerID)
	}
}

func (h *Hub) sendState(c *Client, snap *game.Snapshot, playerID string) {
	data, err := json.Marshal(game.BuildStateForPlayer(snap, playerID))
	if err != nil {
		slog.Error("encoding game state", "tag", "ws", "game", snap.Game.ID, "err", err)
		return
	}
	wsutil.SafeSend(c.Send, data)
}

// seat moves c into the room of gameID as playerID, leaving any previous room.
func (h *Hub) seat(c *Client, gameID, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c)
	room, ok := h.rooms[gameID]
	if !ok {
		room = make(map[*Client]string)
		h.rooms[gameID] = room
	}
	room[c] = playerID
	c.GameID = gameID
	c.PlayerID = playerID
}

func (h *Hub) leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c)
}

func (h *Hub) leaveLocked(c *Client) {
	if c.GameID == "" {
		return
	}
	if room, ok := h.rooms[c.GameID]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.GameID)
			delete(h.sent, c.GameID)
		}
	}
	c.GameID = ""
	c.PlayerID = ""
}

// RoomSize returns the number of clients seated in a game.
func (h *Hub) RoomSize(gameID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[gameID])
}

// ServeWS handles WebSocket upgrade requests and creates a new Client.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("websocket upgrade failed", "tag", "ws", "err", err)
		return
	}

	client := &Client{
		Hub:  h,
		Conn: conn,
		Send: make(chan []byte, 256),
	}

	h.Register <- client

	go client.WritePump()
	go client.ReadPump()
}
