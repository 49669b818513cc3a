package game

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"equation-game-server/cards"
	"equation-game-server/config"
	"equation-game-server/matcherrors"
)

// fakeStore is an in-memory Store that can be told to lose the next few
// transactions to a concurrent writer.
type fakeStore struct {
	mu        sync.Mutex
	games     map[string]*Snapshot
	conflicts int
	transacts int
}

func newFakeStore() *fakeStore {
	return &fakeStore{games: make(map[string]*Snapshot)}
}

func (f *fakeStore) Create(_ context.Context, snap *Snapshot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.games[snap.Game.ID]; ok {
		return fmt.Errorf("duplicate game %s", snap.Game.ID)
	}
	snap.Game.Version = 1
	f.games[snap.Game.ID] = snap.Clone()
	return nil
}

func (f *fakeStore) Get(_ context.Context, gameID string) (*Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.games[gameID]
	if !ok {
		return nil, matcherrors.ErrGameNotFound
	}
	return snap.Clone(), nil
}

func (f *fakeStore) Transact(_ context.Context, gameID string, fn func(*Snapshot) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transacts++
	cur, ok := f.games[gameID]
	if !ok {
		return matcherrors.ErrGameNotFound
	}
	work := cur.Clone()
	if err := fn(work); err != nil {
		return err
	}
	if f.conflicts > 0 {
		f.conflicts--
		return matcherrors.ErrConflict
	}
	work.Game.Version = cur.Game.Version + 1
	f.games[gameID] = work
	return nil
}

func (f *fakeStore) Delete(_ context.Context, gameID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.games, gameID)
	return nil
}

// edit changes a stored game in place, bypassing the service.
func (f *fakeStore) edit(t *testing.T, gameID string, fn func(*Snapshot)) {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	snap, ok := f.games[gameID]
	require.True(t, ok, "game %s not stored", gameID)
	fn(snap)
}

type recordingNotifier struct {
	mu    sync.Mutex
	snaps []*Snapshot
}

func (n *recordingNotifier) GameChanged(snap *Snapshot) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.snaps = append(n.snaps, snap)
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.snaps)
}

type recordingHistory struct {
	recorded []string
}

func (h *recordingHistory) RecordGame(_ context.Context, snap *Snapshot) error {
	h.recorded = append(h.recorded, snap.Game.ID)
	return nil
}

// stubSpecials is a SpecialCardProvider backed by a map.
type stubSpecials map[cards.Rank]SpecialCardDef

func (s stubSpecials) GetSpecial(rank cards.Rank) (SpecialCardDef, bool) {
	def, ok := s[rank]
	return def, ok
}

func (s stubSpecials) AllSpecials() []SpecialCardDef {
	out := make([]SpecialCardDef, 0, len(s))
	for _, def := range s {
		out = append(out, def)
	}
	return out
}

type testEnv struct {
	svc      *Service
	store    *fakeStore
	notifier *recordingNotifier
	history  *recordingHistory
}

func newTestEnv(t *testing.T, tweak func(*config.Config)) *testEnv {
	t.Helper()
	cfg := config.Defaults()
	if tweak != nil {
		tweak(cfg)
	}
	store := newFakeStore()
	svc := NewService(store, cfg, stubSpecials{}, NewLockedRand(42))
	seq := 0
	svc.newID = func() string {
		seq++
		return fmt.Sprintf("id-%d", seq)
	}
	env := &testEnv{svc: svc, store: store, notifier: &recordingNotifier{}, history: &recordingHistory{}}
	svc.Notifier = env.notifier
	svc.History = env.history
	return env
}

// lobby creates a game with one player per name; the first name is the creator.
func (e *testEnv) lobby(t *testing.T, names ...string) (string, []string) {
	t.Helper()
	ctx := context.Background()
	gameID, creatorID, err := e.svc.CreateGame(ctx, names[0], "user-"+names[0])
	require.NoError(t, err)
	ids := []string{creatorID}
	for _, name := range names[1:] {
		id, err := e.svc.JoinGame(ctx, gameID, name, "user-"+name)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return gameID, ids
}

func (e *testEnv) started(t *testing.T, mode cards.Mode, names ...string) (string, []string) {
	t.Helper()
	gameID, ids := e.lobby(t, names...)
	if mode != cards.Easy {
		require.NoError(t, e.svc.SetGameMode(context.Background(), gameID, ids[0], string(mode)))
	}
	require.NoError(t, e.svc.StartGame(context.Background(), gameID))
	return gameID, ids
}

func (e *testEnv) snapshot(t *testing.T, gameID string) *Snapshot {
	t.Helper()
	snap, err := e.svc.Get(context.Background(), gameID)
	require.NoError(t, err)
	return snap
}

// passAll makes every remaining player pass until the round is over.
func (e *testEnv) passAll(t *testing.T, gameID string) {
	t.Helper()
	for i := 0; i < 20; i++ {
		snap := e.snapshot(t, gameID)
		if snap.Game.State != PhasePlayerTurn {
			return
		}
		require.NoError(t, e.svc.PlayerAction(context.Background(), gameID, snap.Game.CurrentPlayerID, Action{Kind: ActionPass}))
	}
	t.Fatal("round did not end")
}

// countCards returns every card id in play: deck, discard pile, target cards and hands.
func countCards(snap *Snapshot) map[string]int {
	ids := make(map[string]int)
	add := func(cs []cards.Card) {
		for _, c := range cs {
			ids[c.ID]++
		}
	}
	add(snap.Game.Deck)
	add(snap.Game.DiscardPile)
	add(snap.Game.TargetCards)
	for _, p := range snap.Players {
		add(p.Hand)
	}
	return ids
}

func card(id string, rank cards.Rank) cards.Card {
	return cards.Card{ID: id, Suit: cards.Spades, Rank: rank}
}
