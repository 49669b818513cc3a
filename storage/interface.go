package storage

import (
	"context"

	"equation-game-server/game"
)

// HistoryStore abstracts persistence for finished games.
// Implementations can be swapped for testing (mocks) or different backends.
type HistoryStore interface {
	// Read
	ListByUserID(ctx context.Context, userID string) ([]GameRecord, error)

	// Write
	RecordGame(ctx context.Context, snap *game.Snapshot) error

	// Lifecycle
	Close()
}

// GameStore is a game.Store that also keeps history and owns a connection.
type GameStore interface {
	game.Store
	HistoryStore
}

// Ensure the SQL stores implement both roles at compile time.
var (
	_ GameStore = (*Store)(nil)
	_ GameStore = (*SQLiteStore)(nil)
)
