package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/joho/godotenv"

	"equation-game-server/api"
	"equation-game-server/auth"
	"equation-game-server/config"
	"equation-game-server/game"
	"equation-game-server/loghandler"
	"equation-game-server/special"
	"equation-game-server/storage"
	"equation-game-server/ws"
)

func main() {
	envErr := godotenv.Load()

	cfg := config.Load()
	slog.SetDefault(slog.New(loghandler.NewCompactHandler(os.Stdout, loghandler.ParseLevel(cfg.LogLevel))))
	if envErr != nil {
		slog.Debug("no .env file found; using environment variables", "tag", "main")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server stopped", "tag", "main", "err", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	store, history, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	if history != nil {
		defer history.Close()
	}

	validator, err := auth.NewValidator(cfg.AuthBaseURL)
	if err != nil {
		return fmt.Errorf("auth: %w", err)
	}
	var tokens ws.TokenValidator
	if validator != nil {
		tokens = validator
		slog.Info("auth configured", "tag", "main", "base_url", cfg.AuthBaseURL)
	} else {
		slog.Info("AUTH_BASE_URL is not set; auth messages and /api/history will be rejected", "tag", "main")
	}

	slog.Info("configuration", "tag", "main",
		"store", cfg.StoreDriver, "hand_size", cfg.HandSize, "players", fmt.Sprintf("%d-%d", cfg.MinPlayers, cfg.MaxPlayers),
		"rounds", cfg.TotalRounds, "special_target", cfg.SpecialTargetScore, "specials", cfg.AllowedSpecialCards)

	handler, hub := newServer(cfg, store, history, tokens)
	go hub.Run(ctx)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		slog.Info("equation game server listening", "tag", "main", "addr", srv.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	slog.Info("shutting down", "tag", "main")
	return srv.Shutdown(shutdownCtx)
}

// openStore picks the game store from STORE_DRIVER. The SQL stores also keep history.
func openStore(ctx context.Context, cfg *config.Config) (game.Store, storage.HistoryStore, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory, "":
		return storage.NewMemoryStore(), nil, nil
	case config.StorePostgres:
		s, err := storage.NewStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres: %w", err)
		}
		if s == nil {
			return nil, nil, errors.New("postgres: DATABASE_URL is not set")
		}
		return s, s, nil
	case config.StoreSQLite:
		s, err := storage.NewSQLiteStore(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, fmt.Errorf("sqlite: %w", err)
		}
		return s, s, nil
	}
	return nil, nil, fmt.Errorf("unknown STORE_DRIVER %q", cfg.StoreDriver)
}

// newServer wires the game service, websocket hub and HTTP API. The caller runs the hub.
// history and tokens may be nil.
func newServer(cfg *config.Config, store game.Store, history storage.HistoryStore, tokens ws.TokenValidator) (http.Handler, *ws.Hub) {
	registry := special.NewRegistry()
	special.RegisterAll(registry)

	svc := game.NewService(store, cfg, registry, nil)
	if history != nil {
		svc.History = history
	}

	hub := ws.NewHub(cfg, svc, tokens)
	svc.Notifier = hub

	r := chi.NewRouter()
	r.Get("/ws", hub.ServeWS)
	r.Mount("/", api.NewHandler(cfg, svc, history, tokens).Routes())
	return r, hub
}
