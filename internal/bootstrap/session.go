package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/rcliao/persona-vault/internal/store"
)

// ErrNotActive means the session's run did not reach completion.
var ErrNotActive = errors.New("no active snapshot: bootstrap incomplete")

// Session is the consumer surface over one completed run: snapshot access
// plus the mutations the response-generation side is allowed to make. The
// passphrase is retained only to reseal the protected layer on writes and
// never leaves the session.
type Session struct {
	store      *store.Store
	snapshot   *Snapshot
	run        *Run
	passphrase string
}

// Start runs a fresh bootstrap and, on completion, returns a live session.
// On halt the session is nil and the run record carries the failing stage.
func (s *Sequencer) Start(ctx context.Context, passphrase string) (*Session, *Run, error) {
	snap, run, err := s.Run(ctx, passphrase)
	if err != nil {
		return nil, run, err
	}
	return &Session{
		store:      s.store,
		snapshot:   snap,
		run:        run,
		passphrase: passphrase,
	}, run, nil
}

// Snapshot returns the validated active snapshot.
func (s *Session) Snapshot() (*Snapshot, error) {
	if s.snapshot == nil || s.run.Status != StatusComplete {
		return nil, ErrNotActive
	}
	return s.snapshot, nil
}

// Run returns the session's bootstrap run record.
func (s *Session) Run() *Run { return s.run }

// UpdateBehavior sets one behavioral code's intensity and persists the
// protected layer through backup-then-overwrite. Returns the backup
// generation taken.
func (s *Session) UpdateBehavior(ctx context.Context, code string, intensity float64) (int64, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return 0, err
	}
	if err := snap.Behavior.Set(code, intensity); err != nil {
		return 0, err
	}
	gen, err := s.store.SaveProtected(ctx, snap.Behavior, s.passphrase)
	if err != nil {
		return 0, fmt.Errorf("persist behavior update: %w", err)
	}
	return gen, nil
}

// AppendMemory adds a ledger entry and persists the compressed layer.
func (s *Session) AppendMemory(ctx context.Context, category, summary string) (int64, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return 0, err
	}
	snap.Memory.Append(category, summary)
	gen, err := s.store.SaveMemory(ctx, snap.Memory)
	if err != nil {
		return 0, fmt.Errorf("persist memory append: %w", err)
	}
	return gen, nil
}

// Hints returns the current behavior hint tags.
func (s *Session) Hints() ([]string, error) {
	snap, err := s.Snapshot()
	if err != nil {
		return nil, err
	}
	return snap.Hints(), nil
}
