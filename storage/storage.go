package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"equation-game-server/game"
	"equation-game-server/matcherrors"
)

// Postgres error codes that mean another transaction won the race.
const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
)

// Store persists game snapshots and finished-game history in Postgres.
// A transaction locks the game row with SELECT ... FOR UPDATE, so writers
// on the same game are serialized by the database.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore connects to Postgres and applies the schema migrations.
// If databaseURL is empty, NewStore returns (nil, nil) and no persistence occurs.
func NewStore(ctx context.Context, databaseURL string) (*Store, error) {
	if databaseURL == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	if err := migratePostgres(ctx, databaseURL); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("connected to Postgres", "tag", "storage")
	return &Store{pool: pool}, nil
}

// migratePostgres runs the migrations over a short-lived database/sql handle.
func migratePostgres(ctx context.Context, databaseURL string) error {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return err
	}
	defer db.Close()
	return migrate(ctx, db, goose.DialectPostgres, "postgres")
}

// Close closes the connection pool.
func (s *Store) Close() {
	if s != nil && s.pool != nil {
		s.pool.Close()
	}
}

// mapPgError turns lost races into matcherrors.ErrConflict.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == codeSerializationFailure || pgErr.Code == codeDeadlockDetected) {
		return fmt.Errorf("%w: %s", matcherrors.ErrConflict, pgErr.Message)
	}
	return err
}

// Create inserts a new game and its players.
func (s *Store) Create(ctx context.Context, snap *game.Snapshot) error {
	snap.Game.Version = 1
	state, players, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `INSERT INTO games (id, version, state) VALUES ($1, $2, $3)`,
		snap.Game.ID, snap.Game.Version, state); err != nil {
		return mapPgError(err)
	}
	if err := upsertPlayers(ctx, tx, snap.Game.ID, players); err != nil {
		return err
	}
	return mapPgError(tx.Commit(ctx))
}

// Get reads the committed snapshot of a game.
func (s *Store) Get(ctx context.Context, gameID string) (*game.Snapshot, error) {
	return loadSnapshot(ctx, s.pool, gameID, false)
}

// Transact runs fn on the locked snapshot and writes the result back in the same transaction.
func (s *Store) Transact(ctx context.Context, gameID string, fn func(*game.Snapshot) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	snap, err := loadSnapshot(ctx, tx, gameID, true)
	if err != nil {
		return err
	}
	version := snap.Game.Version
	if err := fn(snap); err != nil {
		return err
	}
	snap.Game.Version = version + 1

	state, players, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `UPDATE games SET version = $2, state = $3, updated_at = now() WHERE id = $1`,
		gameID, snap.Game.Version, state); err != nil {
		return mapPgError(err)
	}
	if err := upsertPlayers(ctx, tx, gameID, players); err != nil {
		return err
	}
	return mapPgError(tx.Commit(ctx))
}

// Delete removes a game and its players.
func (s *Store) Delete(ctx context.Context, gameID string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM games WHERE id = $1`, gameID)
	return err
}

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func loadSnapshot(ctx context.Context, q querier, gameID string, forUpdate bool) (*game.Snapshot, error) {
	query := `SELECT version, state FROM games WHERE id = $1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var version int64
	var state []byte
	if err := q.QueryRow(ctx, query, gameID).Scan(&version, &state); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, matcherrors.ErrGameNotFound
		}
		return nil, mapPgError(err)
	}

	rows, err := q.Query(ctx, `SELECT data FROM game_players WHERE game_id = $1 ORDER BY position`, gameID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()
	var players [][]byte
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		players = append(players, data)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return decodeSnapshot(version, state, players)
}

func upsertPlayers(ctx context.Context, tx pgx.Tx, gameID string, players []playerRow) error {
	for _, p := range players {
		if _, err := tx.Exec(ctx, `
			INSERT INTO game_players (game_id, player_id, position, data) VALUES ($1, $2, $3, $4)
			ON CONFLICT (game_id, player_id) DO UPDATE SET position = EXCLUDED.position, data = EXCLUDED.data`,
			gameID, p.ID, p.Position, p.Data); err != nil {
			return mapPgError(err)
		}
	}
	return nil
}

// RecordGame stores the final standings of a finished game. Recording the
// same game twice is a no-op.
func (s *Store) RecordGame(ctx context.Context, snap *game.Snapshot) error {
	if s == nil || s.pool == nil {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO game_results (game_id, mode, rounds) VALUES ($1, $2, $3)
		ON CONFLICT (game_id) DO NOTHING`,
		snap.Game.ID, string(snap.Game.Mode), snap.Game.CurrentRound)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return nil
	}
	for _, p := range resultPlayers(snap) {
		if _, err := tx.Exec(ctx, `
			INSERT INTO game_result_players (game_id, position, user_id, player_name, total_score, winner)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			snap.Game.ID, p.Position, p.UserID, p.Name, p.TotalScore, p.Winner); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ListByUserID returns all finished games where the user played, newest first.
// Each record has your_index set to the user's seat.
func (s *Store) ListByUserID(ctx context.Context, userID string) ([]GameRecord, error) {
	if s == nil || s.pool == nil {
		return []GameRecord{}, nil
	}
	rows, err := s.pool.Query(ctx, `
		SELECT r.game_id, r.finished_at, r.mode, r.rounds, p.position, p.user_id, p.player_name, p.total_score, p.winner
		FROM game_results r
		JOIN game_result_players p ON p.game_id = r.game_id
		WHERE r.game_id IN (SELECT game_id FROM game_result_players WHERE user_id = $1)
		ORDER BY r.finished_at DESC, r.game_id, p.position`,
		userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []GameRecord{}
	for rows.Next() {
		var (
			gameID, mode string
			finishedAt   time.Time
			rounds       int
			p            ResultPlayer
		)
		if err := rows.Scan(&gameID, &finishedAt, &mode, &rounds, &p.Position, &p.UserID, &p.Name, &p.TotalScore, &p.Winner); err != nil {
			return nil, err
		}
		out = appendResultRow(out, gameID, finishedAt, mode, rounds, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	setYourIndex(out, userID)
	return out, nil
}
