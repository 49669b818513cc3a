package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"

	"equation-game-server/cards"
	"equation-game-server/config"
	"equation-game-server/matcherrors"
	"equation-game-server/target"
)

// Store persists game snapshots. Transact must run fn against a private copy
// of the current snapshot and commit it atomically only when fn returns nil.
// A store that detects a concurrent writer returns matcherrors.ErrConflict;
// an unknown id yields matcherrors.ErrGameNotFound.
type Store interface {
	Create(ctx context.Context, snap *Snapshot) error
	Get(ctx context.Context, gameID string) (*Snapshot, error)
	Transact(ctx context.Context, gameID string, fn func(*Snapshot) error) error
	Delete(ctx context.Context, gameID string) error
}

// Notifier is told about every committed snapshot. Committed snapshots are never mutated afterwards.
type Notifier interface {
	GameChanged(snap *Snapshot)
}

// HistoryRecorder persists finished games. Optional.
type HistoryRecorder interface {
	RecordGame(ctx context.Context, snap *Snapshot) error
}

// SpecialCardProvider abstracts the special card registry so the game
// package does not import the special package directly (avoids circular deps).
type SpecialCardProvider interface {
	GetSpecial(rank cards.Rank) (SpecialCardDef, bool)
	AllSpecials() []SpecialCardDef
}

// SpecialTarget is the second input of a special card.
// Slot indexes Game.TargetCards (Destiny).
type SpecialTarget struct {
	CardID   string `json:"cardId,omitempty"`
	PlayerID string `json:"playerId,omitempty"`
	Slot     int    `json:"slot"`
}

// SpecialContext is handed to a special card's Resolve. The special card
// itself has already been moved from Actor's hand to the discard pile.
type SpecialContext struct {
	Snapshot *Snapshot
	Actor    *Player
	Target   SpecialTarget
	Rand     *rand.Rand
}

// NextCloneID derives a fresh id for a copy of source. The id stays
// traceable to the source card.
func (sc *SpecialContext) NextCloneID(source string) string {
	sc.Snapshot.Game.CloneSeq++
	return fmt.Sprintf("%s%s%d", source, CloneSeparator, sc.Snapshot.Game.CloneSeq)
}

// CloneSeparator joins a source id and the clone sequence number.
const CloneSeparator = "~clone"

// SpecialCardDef holds the definition of a special card as seen by the game package.
// NeedsTarget cards wait in PhaseSpecialAction for ResolveSpecialCard;
// EndsTurn cards pass the turn on without marking the player passed.
type SpecialCardDef struct {
	Rank        cards.Rank
	Name        string
	Description string
	NeedsTarget bool
	EndsTurn    bool
	Resolve     func(sc *SpecialContext) error
}

// Service runs every game operation as one store transaction.
type Service struct {
	Store    Store
	Config   *config.Config
	Specials SpecialCardProvider

	// Notifier receives committed snapshots; optional, set by main.
	Notifier Notifier
	// History records finished games; optional, set by main.
	History HistoryRecorder

	rng     *rand.Rand
	targets *target.Generator
	newID   func() string
}

// NewService creates a Service. A nil rng is seeded from the clock.
func NewService(store Store, cfg *config.Config, specials SpecialCardProvider, rng *rand.Rand) *Service {
	if rng == nil {
		rng = NewLockedRand(time.Now().UnixNano())
	}
	return &Service{
		Store:    store,
		Config:   cfg,
		Specials: specials,
		rng:      rng,
		targets:  target.New(rng),
		newID:    uuid.NewString,
	}
}

// lockedSource makes a rand.Source safe for concurrent transactions.
type lockedSource struct {
	mu  sync.Mutex
	src rand.Source64
}

func (s *lockedSource) Int63() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Int63()
}

func (s *lockedSource) Uint64() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.src.Uint64()
}

func (s *lockedSource) Seed(seed int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.src.Seed(seed)
}

// NewLockedRand returns a *rand.Rand whose source may be shared by goroutines.
func NewLockedRand(seed int64) *rand.Rand {
	return rand.New(&lockedSource{src: rand.NewSource(seed).(rand.Source64)})
}

// errNoop aborts a transaction that must leave the game untouched without
// reporting an error, e.g. a move from a player whose turn it is not.
var errNoop = errors.New("no-op")

// Backoff between attempts of a conflicting transaction.
const (
	conflictBackoffBase = 2 * time.Millisecond
	conflictBackoffCap  = 50 * time.Millisecond
)

// transact runs fn in a store transaction, retrying on conflicts. It returns
// the committed snapshot, or nil when fn aborted with errNoop.
func (s *Service) transact(ctx context.Context, gameID string, fn func(*Snapshot) error) (*Snapshot, error) {
	retries := s.Config.TxMaxRetries
	if retries < 1 {
		retries = 1
	}
	backoff := retry.WithMaxRetries(uint64(retries-1),
		retry.WithCappedDuration(conflictBackoffCap, retry.NewExponential(conflictBackoffBase)))

	var committed *Snapshot
	var before Phase
	attempt := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		committed = nil
		err := s.Store.Transact(ctx, gameID, func(snap *Snapshot) error {
			before = snap.Game.State
			snap.Game.Notice = ""
			if err := fn(snap); err != nil {
				return err
			}
			committed = snap
			return nil
		})
		if errors.Is(err, matcherrors.ErrConflict) {
			slog.Debug("transaction conflict, retrying", "tag", "game", "game", gameID, "attempt", attempt)
			return retry.RetryableError(err)
		}
		return err
	})
	switch {
	case err == nil:
		s.afterCommit(ctx, committed, before)
		return committed, nil
	case errors.Is(err, errNoop):
		return nil, nil
	case errors.Is(err, matcherrors.ErrConflict):
		slog.Warn("transaction retries exhausted", "tag", "game", "game", gameID, "retries", retries)
		return nil, matcherrors.ErrTryAgain
	case isDomainError(err):
		return nil, err
	default:
		slog.Error("transaction failed", "tag", "game", "game", gameID, "err", err)
		return nil, fmt.Errorf("%w: %v", matcherrors.ErrTryAgain, err)
	}
}

func isDomainError(err error) bool {
	return errors.Is(err, matcherrors.ErrGameNotFound) ||
		errors.Is(err, matcherrors.ErrTryAgain) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		matcherrors.IsValidation(err)
}

func (s *Service) afterCommit(ctx context.Context, snap *Snapshot, before Phase) {
	if s.Notifier != nil {
		s.Notifier.GameChanged(snap)
	}
	if before != PhaseGameOver && snap.Game.State == PhaseGameOver {
		slog.Info("game over", "tag", "game", "game", snap.Game.ID, "round", snap.Game.CurrentRound)
		if s.History != nil {
			if err := s.History.RecordGame(ctx, snap); err != nil {
				slog.Error("recording finished game", "tag", "game", "game", snap.Game.ID, "err", err)
			}
		}
	}
}

// Get returns the committed snapshot of a game.
func (s *Service) Get(ctx context.Context, gameID string) (*Snapshot, error) {
	snap, err := s.Store.Get(ctx, gameID)
	if err != nil {
		if isDomainError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", matcherrors.ErrTryAgain, err)
	}
	return snap, nil
}
