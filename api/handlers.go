package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang-jwt/jwt/v5"

	"equation-game-server/auth"
	"equation-game-server/config"
	"equation-game-server/game"
	"equation-game-server/matcherrors"
	"equation-game-server/storage"
)

const bearerPrefix = "Bearer "

// GameService is the subset of game.Service the HTTP API drives.
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

// TokenValidator checks bearer tokens.
type TokenValidator interface {
	Validate(token string) (jwt.MapClaims, error)
}

// Handler holds dependencies for API handlers.
type Handler struct {
	Config  *config.Config
	Service GameService
	History storage.HistoryStore
	Auth    TokenValidator
}

// NewHandler creates a new API handler with the given dependencies.
// history and validator may be nil.
func NewHandler(cfg *config.Config, svc GameService, history storage.HistoryStore, validator TokenValidator) *Handler {
	return &Handler{
		Config:  cfg,
		Service: svc,
		History: history,
		Auth:    validator,
	}
}

// Routes returns the HTTP API: GET /health plus the /api tree.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(CORS)

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Get("/history", h.ListHistory)
		r.Post("/games", h.CreateGame)
		r.Route("/games/{gameID}", func(r chi.Router) {
			r.Get("/", h.GetGame)
			r.Post("/players", h.JoinGame)
			r.Post("/mode", h.SetMode)
			r.Post("/special-cards", h.SetSpecialCards)
			r.Post("/start", h.StartGame)
			r.Post("/actions", h.PlayerAction)
			r.Post("/special", h.PlaySpecial)
			r.Post("/special/resolve", h.ResolveSpecial)
			r.Post("/special/end", h.EndSpecial)
			r.Post("/discard", h.Discard)
			r.Post("/next-round", h.NextRound)
			r.Post("/rematch", h.Rematch)
		})
	})
	return r
}

// CORS sets CORS headers and answers preflight requests.
func CORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type playerRequest struct {
	Name     string `json:"name"`
	PlayerID string `json:"playerId"`
}

type joinedResponse struct {
	GameID   string `json:"gameId"`
	PlayerID string `json:"playerId"`
}

// CreateGame opens a lobby: {"name": "..."}.
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decode(w, r, &req) {
		return
	}
	gameID, playerID, err := h.Service.CreateGame(r.Context(), req.Name, h.userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, joinedResponse{GameID: gameID, PlayerID: playerID})
}

// JoinGame adds a player to a lobby: {"name": "..."}.
func (h *Handler) JoinGame(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decode(w, r, &req) {
		return
	}
	gameID := chi.URLParam(r, "gameID")
	playerID, err := h.Service.JoinGame(r.Context(), gameID, req.Name, h.userID(r))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, joinedResponse{GameID: gameID, PlayerID: playerID})
}

// GetGame returns the state as seen by ?playerId=. Without it, no hand is revealed.
// A seat bound to a user account is only shown to that user's bearer token.
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	snap, err := h.Service.Get(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	playerID := r.URL.Query().Get("playerId")
	if p := snap.Player(playerID); p != nil && p.UserID != "" && h.userID(r) != p.UserID {
		writeError(w, http.StatusForbidden, matcherrors.CodeForbidden, "this seat belongs to another user")
		return
	}
	writeJSON(w, http.StatusOK, game.BuildStateForPlayer(snap, playerID))
}

// SetMode: {"playerId": "...", "mode": "easy|pro|special"}.
func (h *Handler) SetMode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"playerId"`
		Mode     string `json:"mode"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.Service.SetGameMode(r.Context(), chi.URLParam(r, "gameID"), req.PlayerID, req.Mode))
}

// SetSpecialCards: {"playerId": "...", "cards": ["CL", "SB"]}.
func (h *Handler) SetSpecialCards(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string   `json:"playerId"`
		Cards    []string `json:"cards"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.Service.SetAllowedSpecialCards(r.Context(), chi.URLParam(r, "gameID"), req.PlayerID, req.Cards))
}

// StartGame is allowed for the creator only: {"playerId": "..."}.
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decode(w, r, &req) {
		return
	}
	gameID := chi.URLParam(r, "gameID")
	snap, err := h.Service.Get(r.Context(), gameID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if snap.Game.CreatorID != req.PlayerID {
		writeServiceError(w, r, matcherrors.ErrNotCreator)
		return
	}
	h.respond(w, r, h.Service.StartGame(r.Context(), gameID))
}

// PlayerAction: {"playerId": "...", "action": "submit|pass", "equation": [...], "cardIds": [...]}.
func (h *Handler) PlayerAction(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"playerId"`
		game.Action
	}
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.Service.PlayerAction(r.Context(), chi.URLParam(r, "gameID"), req.PlayerID, req.Action))
}

// PlaySpecial: {"playerId": "...", "cardId": "..."}.
func (h *Handler) PlaySpecial(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string `json:"playerId"`
		CardID   string `json:"cardId"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.Service.PlaySpecialCard(r.Context(), chi.URLParam(r, "gameID"), req.PlayerID, req.CardID))
}

// ResolveSpecial: {"playerId": "...", "target": {"playerId": "...", "cardId": "...", "slot": 0}}.
func (h *Handler) ResolveSpecial(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string             `json:"playerId"`
		Target   game.SpecialTarget `json:"target"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.Service.ResolveSpecialCard(r.Context(), chi.URLParam(r, "gameID"), req.PlayerID, req.Target))
}

// EndSpecial cancels a pending special card: {"playerId": "..."}.
func (h *Handler) EndSpecial(w http.ResponseWriter, r *http.Request) {
	var req playerRequest
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.Service.EndSpecialAction(r.Context(), chi.URLParam(r, "gameID"), req.PlayerID))
}

// Discard: {"playerId": "...", "cardIds": [...]}.
func (h *Handler) Discard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PlayerID string   `json:"playerId"`
		CardIDs  []string `json:"cardIds"`
	}
	if !decode(w, r, &req) {
		return
	}
	h.respond(w, r, h.Service.DiscardCards(r.Context(), chi.URLParam(r, "gameID"), req.PlayerID, req.CardIDs))
}

// NextRound advances a finished round.
func (h *Handler) NextRound(w http.ResponseWriter, r *http.Request) {
	h.respond(w, r, h.Service.NextRound(r.Context(), chi.URLParam(r, "gameID")))
}

// Rematch returns the id of the follow-up lobby; repeated calls return the same id.
func (h *Handler) Rematch(w http.ResponseWriter, r *http.Request) {
	gameID := chi.URLParam(r, "gameID")
	newID, err := h.Service.Rematch(r.Context(), gameID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"oldGameId": gameID, "gameId": newID})
}

// ListHistory returns the finished games of the authenticated user.
func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID := h.userID(r)
	if userID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "authorization required")
		return
	}

	list := []storage.GameRecord{}
	if h.History != nil {
		var err error
		list, err = h.History.ListByUserID(r.Context(), userID)
		if err != nil {
			slog.Error("ListByUserID failed", "tag", "api", "err", err)
			writeError(w, http.StatusInternalServerError, matcherrors.CodeInternal, "failed to load history")
			return
		}
	}
	writeJSON(w, http.StatusOK, list)
}

// userID validates the Authorization header and returns the user ID, or empty string on failure.
func (h *Handler) userID(r *http.Request) string {
	if h.Auth == nil {
		return ""
	}
	header := r.Header.Get("Authorization")
	if !strings.HasPrefix(header, bearerPrefix) {
		return ""
	}
	claims, err := h.Auth.Validate(strings.TrimSpace(header[len(bearerPrefix):]))
	if err != nil {
		slog.Debug("token rejected", "tag", "api", "err", err)
		return ""
	}
	return auth.UserIDFromClaims(claims)
}

// respond writes 204 on success or the mapped error.
func (h *Handler) respond(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

var statusByCode = map[string]int{
	matcherrors.CodeNotFound:  http.StatusNotFound,
	matcherrors.CodeForbidden: http.StatusForbidden,
	matcherrors.CodeConflict:  http.StatusConflict,
	matcherrors.CodeInvalid:   http.StatusBadRequest,
	matcherrors.CodeTryAgain:  http.StatusServiceUnavailable,
	matcherrors.CodeInternal:  http.StatusInternalServerError,
}

func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	code := matcherrors.Code(err)
	if code == matcherrors.CodeInternal {
		slog.Error("game operation failed", "tag", "api",
			"request_id", middleware.GetReqID(r.Context()), "path", r.URL.Path, "err", err)
	}
	writeError(w, statusByCode[code], code, err.Error())
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response failed", "tag", "api", "err", err)
	}
}

// decode reads a JSON body into v. An empty body leaves v zero.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16)).Decode(v)
	if err == nil || errors.Is(err, io.EOF) {
		return true
	}
	writeError(w, http.StatusBadRequest, matcherrors.CodeInvalid, "invalid request body")
	return false
}
