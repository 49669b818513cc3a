package storage

import (
	"context"
	"fmt"
	"sync"

	"equation-game-server/game"
	"equation-game-server/matcherrors"
)

// MemoryStore keeps snapshots in process memory. Transactions on the same
// game are serialized by a per-game mutex; fn always works on a deep copy.
type MemoryStore struct {
	mu    sync.Mutex
	games map[string]*game.Snapshot
	locks map[string]*sync.Mutex
}

var _ game.Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games: make(map[string]*game.Snapshot),
		locks: make(map[string]*sync.Mutex),
	}
}

func (m *MemoryStore) Create(_ context.Context, snap *game.Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := snap.Game.ID
	if _, exists := m.games[id]; exists {
		return fmt.Errorf("game %s already exists", id)
	}
	stored := snap.Clone()
	stored.Game.Version = 1
	snap.Game.Version = 1
	m.games[id] = stored
	m.locks[id] = &sync.Mutex{}
	return nil
}

func (m *MemoryStore) Get(_ context.Context, gameID string) (*game.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap, ok := m.games[gameID]
	if !ok {
		return nil, matcherrors.ErrGameNotFound
	}
	return snap.Clone(), nil
}

func (m *MemoryStore) Transact(ctx context.Context, gameID string, fn func(*game.Snapshot) error) error {
	m.mu.Lock()
	lock, ok := m.locks[gameID]
	m.mu.Unlock()
	if !ok {
		return matcherrors.ErrGameNotFound
	}

	lock.Lock()
	defer lock.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	cur, ok := m.games[gameID]
	m.mu.Unlock()
	if !ok {
		return matcherrors.ErrGameNotFound
	}

	work := cur.Clone()
	if err := fn(work); err != nil {
		return err
	}
	work.Game.Version = cur.Game.Version + 1

	m.mu.Lock()
	m.games[gameID] = work
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, gameID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.games, gameID)
	delete(m.locks, gameID)
	return nil
}

// Len returns the number of stored games.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.games)
}
