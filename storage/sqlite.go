package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"equation-game-server/game"
	"equation-game-server/matcherrors"
)

// SQLiteStore persists game snapshots in a SQLite file. Writes are
// optimistic: the games row is only updated when its version is the one
// read, otherwise the transaction reports matcherrors.ErrConflict.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path and applies the schema migrations.
func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if err := migrate(ctx, db, goose.DialectSQLite3, "sqlite"); err != nil {
		db.Close()
		return nil, err
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	slog.Info("opened SQLite database", "tag", "storage", "path", path)
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() {
	if s != nil && s.db != nil {
		s.db.Close()
	}
}

// Create inserts a new game and its players.
func (s *SQLiteStore) Create(ctx context.Context, snap *game.Snapshot) error {
	snap.Game.Version = 1
	state, players, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `INSERT INTO games (id, version, state) VALUES (?, ?, ?)`,
		snap.Game.ID, snap.Game.Version, string(state)); err != nil {
		return err
	}
	if err := sqliteUpsertPlayers(ctx, tx, snap.Game.ID, players); err != nil {
		return err
	}
	return tx.Commit()
}

// Get reads the committed snapshot of a game.
func (s *SQLiteStore) Get(ctx context.Context, gameID string) (*game.Snapshot, error) {
	var version int64
	var state string
	err := s.db.QueryRowContext(ctx, `SELECT version, state FROM games WHERE id = ?`, gameID).Scan(&version, &state)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, matcherrors.ErrGameNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, `SELECT data FROM game_players WHERE game_id = ? ORDER BY position`, gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var players [][]byte
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		players = append(players, []byte(data))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return decodeSnapshot(version, []byte(state), players)
}

// Transact reads the snapshot, runs fn and writes the result back only if
// nobody committed in between.
func (s *SQLiteStore) Transact(ctx context.Context, gameID string, fn func(*game.Snapshot) error) error {
	snap, err := s.Get(ctx, gameID)
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
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE games SET version = ?, state = ?, updated_at = strftime('%Y-%m-%dT%H:%M:%SZ', 'now')
		WHERE id = ? AND version = ?`,
		snap.Game.Version, string(state), gameID, version)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: game %s moved past version %d", matcherrors.ErrConflict, gameID, version)
	}
	if err := sqliteUpsertPlayers(ctx, tx, gameID, players); err != nil {
		return err
	}
	return tx.Commit()
}

// Delete removes a game and its players.
func (s *SQLiteStore) Delete(ctx context.Context, gameID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM games WHERE id = ?`, gameID)
	return err
}

func sqliteUpsertPlayers(ctx context.Context, tx *sql.Tx, gameID string, players []playerRow) error {
	for _, p := range players {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO game_players (game_id, player_id, position, data) VALUES (?, ?, ?, ?)
			ON CONFLICT (game_id, player_id) DO UPDATE SET position = excluded.position, data = excluded.data`,
			gameID, p.ID, p.Position, string(p.Data)); err != nil {
			return err
		}
	}
	return nil
}

// RecordGame stores the final standings of a finished game. Recording the
// same game twice is a no-op.
func (s *SQLiteStore) RecordGame(ctx context.Context, snap *game.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO game_results (game_id, finished_at, mode, rounds) VALUES (?, ?, ?, ?)
		ON CONFLICT (game_id) DO NOTHING`,
		snap.Game.ID, time.Now().UnixMilli(), string(snap.Game.Mode), snap.Game.CurrentRound)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil
	}
	for _, p := range resultPlayers(snap) {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO game_result_players (game_id, position, user_id, player_name, total_score, winner)
			VALUES (?, ?, ?, ?, ?, ?)`,
			snap.Game.ID, p.Position, p.UserID, p.Name, p.TotalScore, p.Winner); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ListByUserID returns all finished games where the user played, newest first.
func (s *SQLiteStore) ListByUserID(ctx context.Context, userID string) ([]GameRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.game_id, r.finished_at, r.mode, r.rounds, p.position, p.user_id, p.player_name, p.total_score, p.winner
		FROM game_results r
		JOIN game_result_players p ON p.game_id = r.game_id
		WHERE r.game_id IN (SELECT game_id FROM game_result_players WHERE user_id = ?)
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
			finishedMs   int64
			rounds       int
			p            ResultPlayer
		)
		if err := rows.Scan(&gameID, &finishedMs, &mode, &rounds, &p.Position, &p.UserID, &p.Name, &p.TotalScore, &p.Winner); err != nil {
			return nil, err
		}
		out = appendResultRow(out, gameID, time.UnixMilli(finishedMs), mode, rounds, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	setYourIndex(out, userID)
	return out, nil
}
