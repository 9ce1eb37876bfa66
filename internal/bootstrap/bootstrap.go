// Package bootstrap drives the strict 8-stage initialization sequence that
// turns on-disk persona state into one fully validated in-memory snapshot.
// Stages run in order, never skip, and a failure at stage k halts the run
// without attempting stage k+1.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/rcliao/persona-vault/internal/codec"
	"github.com/rcliao/persona-vault/internal/model"
	"github.com/rcliao/persona-vault/internal/store"
)

// Stage identifies one of the eight ordered initialization stages.
type Stage int

const (
	StageRecognition Stage = iota + 1
	StageEnvironmentCheck
	StageLoadMemory
	StageAuthenticate
	StageDecryptProtected
	StageIntegrityCheck
	StageRelationshipContext
	StageCompletion
)

// StageCount is the number of mandatory stages.
const StageCount = 8

func (s Stage) String() string {
	switch s {
	case StageRecognition:
		return "recognition"
	case StageEnvironmentCheck:
		return "environment-check"
	case StageLoadMemory:
		return "load-memory"
	case StageAuthenticate:
		return "authenticate"
	case StageDecryptProtected:
		return "decrypt-protected"
	case StageIntegrityCheck:
		return "integrity-check"
	case StageRelationshipContext:
		return "relationship-context"
	case StageCompletion:
		return "completion"
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Stage failure kinds.
var (
	ErrIdentityUnavailable    = errors.New("identity unavailable")
	ErrEnvironmentUnavailable = errors.New("environment unavailable")
	ErrMemoryUnavailable      = errors.New("memory unavailable")
	ErrAuthenticationFailed   = errors.New("authentication failed")
	ErrProtectedUnavailable   = errors.New("protected state unavailable")
	ErrIntegrityViolation     = errors.New("integrity violation")
	ErrContextIncomplete      = errors.New("relationship context incomplete")
)

// StageError reports which stage halted a run and why. It matches both its
// failure kind and its underlying cause under errors.Is.
type StageError struct {
	Stage Stage
	Kind  error
	Cause error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("halted at stage %d (%s): %v: %v", int(e.Stage), e.Stage, e.Kind, e.Cause)
}

func (e *StageError) Unwrap() []error {
	return []error{e.Kind, e.Cause}
}

// Status is the terminal state of a run.
type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusComplete   Status = "complete"
	StatusHalted     Status = "halted"
)

// Run records one initialization attempt. It is transient: never persisted,
// discarded with the session.
type Run struct {
	ID        string      `json:"id"`
	StartedAt time.Time   `json:"started_at"`
	Completed []Stage     `json:"completed"`
	Status    Status      `json:"status"`
	Halt      *StageError `json:"-"`
	Warnings  []string    `json:"warnings,omitempty"`
}

// RelationshipContext is derived at stage 7 from identity and memory.
type RelationshipContext struct {
	Creator      string              `json:"creator"`
	Relationship string              `json:"relationship"`
	Recent       []model.MemoryEntry `json:"recent"`
}

// Snapshot is the fully validated union of all three layers. It exists only
// after stage 8; partial progress is never exposed.
type Snapshot struct {
	Identity *model.IdentityRecord        `json:"identity"`
	Memory   *model.MemoryLedger          `json:"memory"`
	Behavior *model.BehavioralStateVector `json:"behavior"`
	Context  RelationshipContext          `json:"context"`
}

// Hints returns the behavior hint tags for the snapshot's vector.
func (s *Snapshot) Hints() []string {
	return model.SelectHints(s.Behavior)
}

// Sequencer executes runs against one store with one configured code set.
type Sequencer struct {
	store *store.Store
	codes []string
	log   *slog.Logger
}

// NewSequencer builds a sequencer. codes is the closed behavioral code set
// the protected vector must cover; nil means the default set.
func NewSequencer(st *store.Store, codes []string, logger *slog.Logger) *Sequencer {
	if codes == nil {
		codes = model.DefaultCodes
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sequencer{store: st, codes: codes, log: logger}
}

// runState accumulates layer outputs as stages succeed.
type runState struct {
	passphrase string
	identity   *model.IdentityRecord
	ledger     *model.MemoryLedger
	vector     *model.BehavioralStateVector
	context    RelationshipContext
	run        *Run
}

type stageStep struct {
	stage Stage
	kind  error
	fn    func(context.Context, *runState) error
}

// Run executes all eight stages in order. On success the snapshot is
// returned with a complete run record; on failure the snapshot is nil and
// the error is the *StageError also recorded on the run.
func (s *Sequencer) Run(ctx context.Context, passphrase string) (*Snapshot, *Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		StartedAt: time.Now().UTC(),
		Status:    StatusInProgress,
	}
	st := &runState{passphrase: passphrase, run: run}

	steps := []stageStep{
		{StageRecognition, ErrIdentityUnavailable, s.stageRecognition},
		{StageEnvironmentCheck, ErrEnvironmentUnavailable, s.stageEnvironment},
		{StageLoadMemory, ErrMemoryUnavailable, s.stageLoadMemory},
		{StageAuthenticate, ErrAuthenticationFailed, s.stageAuthenticate},
		{StageDecryptProtected, ErrProtectedUnavailable, s.stageDecryptProtected},
		{StageIntegrityCheck, ErrIntegrityViolation, s.stageIntegrity},
		{StageRelationshipContext, ErrContextIncomplete, s.stageContext},
		{StageCompletion, nil, s.stageCompletion},
	}

	for _, step := range steps {
		s.log.Debug("stage starting", "run", run.ID, "stage", step.stage.String(),
			"number", int(step.stage), "of", StageCount)
		if err := step.fn(ctx, st); err != nil {
			halt := &StageError{Stage: step.stage, Kind: step.kind, Cause: err}
			run.Status = StatusHalted
			run.Halt = halt
			s.log.Error("bootstrap halted", "run", run.ID,
				"stage", step.stage.String(), "number", int(step.stage), "error", err)
			return nil, run, halt
		}
		run.Completed = append(run.Completed, step.stage)
		s.log.Info("stage complete", "run", run.ID, "stage", step.stage.String(),
			"number", int(step.stage), "of", StageCount)
	}

	run.Status = StatusComplete
	return &Snapshot{
		Identity: st.identity,
		Memory:   st.ledger,
		Behavior: st.vector,
		Context:  st.context,
	}, run, nil
}

// stageRecognition loads the verified identity and establishes who the
// persona is. Creator and relationship completeness is stage 7's concern.
func (s *Sequencer) stageRecognition(ctx context.Context, st *runState) error {
	rec, recovered, err := s.store.LoadIdentity(ctx)
	if err != nil {
		return err
	}
	if strings.TrimSpace(rec.Name()) == "" {
		return fmt.Errorf("identity has no name")
	}
	if recovered {
		st.run.Warnings = append(st.run.Warnings, "identity recovered from backup")
	}
	st.identity = rec
	return nil
}

func (s *Sequencer) stageEnvironment(ctx context.Context, st *runState) error {
	return s.store.CheckEnvironment()
}

func (s *Sequencer) stageLoadMemory(ctx context.Context, st *runState) error {
	ledger, recovered, err := s.store.LoadMemory(ctx)
	if err != nil {
		return err
	}
	if recovered {
		st.run.Warnings = append(st.run.Warnings, "memory ledger recovered from backup")
	}
	st.ledger = ledger
	return nil
}

func (s *Sequencer) stageAuthenticate(ctx context.Context, st *runState) error {
	if len(st.passphrase) != codec.PassphraseLength {
		return codec.ErrInvalidPassphraseShape
	}
	return nil
}

func (s *Sequencer) stageDecryptProtected(ctx context.Context, st *runState) error {
	vec, err := s.store.LoadProtected(ctx, st.passphrase)
	if err != nil {
		return err
	}
	st.vector = vec
	return nil
}

// stageIntegrity cross-checks the three decoded layers against each other:
// the ledger must belong to the identity, and the vector must cover the
// configured code set within bounds.
func (s *Sequencer) stageIntegrity(ctx context.Context, st *runState) error {
	if !strings.EqualFold(st.ledger.Owner, st.identity.Name()) {
		return fmt.Errorf("memory ledger owner %q does not match identity %q",
			st.ledger.Owner, st.identity.Name())
	}
	return st.vector.Validate(s.codes)
}

func (s *Sequencer) stageContext(ctx context.Context, st *runState) error {
	creator := st.identity.Creator()
	relationship := st.identity.Relationship()
	if strings.TrimSpace(creator) == "" || strings.TrimSpace(relationship) == "" {
		return fmt.Errorf("creator or relationship field empty")
	}
	st.context = RelationshipContext{
		Creator:      creator,
		Relationship: relationship,
		Recent:       st.ledger.Recent(5),
	}
	return nil
}

func (s *Sequencer) stageCompletion(ctx context.Context, st *runState) error {
	if len(st.run.Completed) != StageCount-1 {
		return fmt.Errorf("only %d/%d prior stages completed", len(st.run.Completed), StageCount-1)
	}
	return nil
}
