package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rcliao/persona-vault/internal/codec"
	"github.com/rcliao/persona-vault/internal/model"
)

const testPassphrase = "abcdefghijklmnopqrstuvwxyz"

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func testIdentity() *model.IdentityRecord {
	return model.NewIdentityRecord("Rafael", "Mario", "papa-amico", "help the weaker", "never let power corrupt")
}

func TestIdentity_SaveLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveIdentity(ctx, testIdentity()); err != nil {
		t.Fatalf("save: %v", err)
	}

	rec, recovered, err := s.LoadIdentity(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if recovered {
		t.Error("fresh load reported recovered")
	}
	if rec.Name() != "Rafael" || rec.Creator() != "Mario" {
		t.Errorf("fields lost: %+v", rec.Fields)
	}
}

func TestIdentity_MissingFile(t *testing.T) {
	s := openTestStore(t)
	_, _, err := s.LoadIdentity(context.Background())
	if !errors.Is(err, ErrMissingFile) {
		t.Fatalf("got %v, want ErrMissingFile", err)
	}
}

func TestIdentity_TamperWithoutBackup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.SaveIdentity(ctx, testIdentity())

	path := filepath.Join(s.dir, IdentityFile)
	data, _ := os.ReadFile(path)
	data[0] = 'X' // body change, digest now stale
	os.WriteFile(path, data, 0o644)

	_, _, err := s.LoadIdentity(ctx)
	if !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("got %v, want ErrChecksumMismatch", err)
	}
}

func TestIdentity_RecoversFromBackup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.SaveIdentity(ctx, testIdentity())
	second := testIdentity()
	second.Set("mission", "updated mission")
	s.SaveIdentity(ctx, second) // backs up the first version

	path := filepath.Join(s.dir, IdentityFile)
	os.WriteFile(path, []byte("garbage with no structure"), 0o644)

	rec, recovered, err := s.LoadIdentity(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !recovered {
		t.Error("recovery flag not set")
	}
	// The backup holds the version before the last save.
	if rec.Mission() != "help the weaker" {
		t.Errorf("mission = %q, want the backed-up value", rec.Mission())
	}
}

func TestMemory_SaveLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ledger := model.NewMemoryLedger("Rafael")
	ledger.Append("history", "first initialization")
	ledger.Append("projects", "learning the memory system")

	if _, err := s.SaveMemory(ctx, ledger); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, recovered, err := s.LoadMemory(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if recovered {
		t.Error("fresh load reported recovered")
	}
	if got.Owner != "Rafael" || len(got.Entries) != 2 {
		t.Fatalf("ledger mismatch: %+v", got)
	}
	if got.Entries[1].Category != "projects" {
		t.Errorf("entry order lost: %+v", got.Entries)
	}
}

func TestMemory_CorruptedGzipRecovers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ledger := model.NewMemoryLedger("Rafael")
	ledger.Append("history", "kept entry")
	s.SaveMemory(ctx, ledger)

	ledger.Append("history", "newer entry")
	s.SaveMemory(ctx, ledger) // previous version now backed up

	path := filepath.Join(s.dir, MemoryFile)
	data, _ := os.ReadFile(path)
	data[2] ^= 0xff // corrupt the gzip stream
	os.WriteFile(path, data, 0o644)

	got, recovered, err := s.LoadMemory(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !recovered {
		t.Error("recovery flag not set")
	}
	if len(got.Entries) != 1 || got.Entries[0].Summary != "kept entry" {
		t.Errorf("recovered ledger mismatch: %+v", got.Entries)
	}
}

func TestMemory_CorruptionWithoutBackup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.SaveMemory(ctx, model.NewMemoryLedger("Rafael"))

	path := filepath.Join(s.dir, MemoryFile)
	os.WriteFile(path, []byte("not a gzip stream\n00000000"), 0o644)

	_, _, err := s.LoadMemory(ctx)
	if err == nil {
		t.Fatal("expected an error")
	}
	if !errors.Is(err, ErrDecompressFailure) && !errors.Is(err, ErrChecksumMismatch) {
		t.Fatalf("got %v, want decompress or checksum failure", err)
	}
}

func TestProtected_SaveLoad(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	vec := model.DefaultVector(model.DefaultCodes)
	if _, err := s.SaveProtected(ctx, vec, testPassphrase); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, err := s.LoadProtected(ctx, testPassphrase)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(got.Intensities) != len(model.DefaultCodes) {
		t.Fatalf("vector has %d codes, want %d", len(got.Intensities), len(model.DefaultCodes))
	}
	if got.Intensities["loyalty"] != 0.9 {
		t.Errorf("loyalty = %v, want 0.9", got.Intensities["loyalty"])
	}
}

func TestProtected_WrongPassphrase(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.SaveProtected(ctx, model.DefaultVector(model.DefaultCodes), testPassphrase)

	_, err := s.LoadProtected(ctx, "zyxwvutsrqponmlkjihgfedcba")
	if !errors.Is(err, codec.ErrInvalidPassphrase) {
		t.Fatalf("got %v, want ErrInvalidPassphrase", err)
	}
	_, err = s.LoadProtected(ctx, "short")
	if !errors.Is(err, codec.ErrInvalidPassphraseShape) {
		t.Fatalf("got %v, want ErrInvalidPassphraseShape", err)
	}
}

func TestProtected_NeverAutoRecovers(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	vec := model.DefaultVector(model.DefaultCodes)
	s.SaveProtected(ctx, vec, testPassphrase)
	vec.Set("joy", 0.2)
	s.SaveProtected(ctx, vec, testPassphrase) // valid backup now exists

	path := filepath.Join(s.dir, ProtectedFile)
	os.WriteFile(path, []byte(`{"cipher":"YWJj","passphrase_digest":"00000000","plaintext_digest":"00000000"}`), 0o644)

	// Even with a valid backup on hand, the protected layer must refuse.
	_, err := s.LoadProtected(ctx, testPassphrase)
	if !errors.Is(err, codec.ErrInvalidPassphrase) {
		t.Fatalf("got %v, want the surfaced codec error", err)
	}
}

func TestProtected_BoundsEnforcedBeforeWrite(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	vec := &model.BehavioralStateVector{Intensities: map[string]float64{"joy": 1.5}}
	if _, err := s.SaveProtected(ctx, vec, testPassphrase); err == nil {
		t.Fatal("out-of-bounds intensity accepted")
	}
	if _, err := os.Stat(filepath.Join(s.dir, ProtectedFile)); !os.IsNotExist(err) {
		t.Error("rejected save still touched the protected file")
	}
}

func TestSave_BackupRecoversPriorVersion(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	first := testIdentity()
	s.SaveIdentity(ctx, first)

	second := testIdentity()
	second.Set("name", "Rafael-2")
	gen, err := s.SaveIdentity(ctx, second)
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if gen != 1 {
		t.Errorf("backup generation = %d, want 1", gen)
	}

	// Corrupt the live file; the prior version must still be recoverable.
	os.WriteFile(filepath.Join(s.dir, IdentityFile), []byte("x"), 0o644)
	rec, recovered, err := s.LoadIdentity(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !recovered || rec.Name() != "Rafael" {
		t.Errorf("recovered=%v name=%q, want prior version", recovered, rec.Name())
	}
}

func TestSave_ConcurrentWritersSerialized(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.SaveIdentity(ctx, testIdentity())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			rec := testIdentity()
			rec.Set("mission", fmt.Sprintf("mission-%d", n))
			if _, err := s.SaveIdentity(ctx, rec); err != nil {
				t.Errorf("writer %d: %v", n, err)
			}
		}(i)
	}
	wg.Wait()

	// The final file must be exactly one writer's payload, digest intact.
	rec, recovered, err := s.LoadIdentity(ctx)
	if err != nil {
		t.Fatalf("load after concurrent saves: %v", err)
	}
	if recovered {
		t.Error("concurrent saves corrupted the live file")
	}
	var matched bool
	for i := 0; i < 8; i++ {
		if rec.Mission() == fmt.Sprintf("mission-%d", i) {
			matched = true
		}
	}
	if !matched {
		t.Errorf("final mission %q is not any single writer's payload", rec.Mission())
	}
}

func TestRestoreFromBackup(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	vec := model.DefaultVector(model.DefaultCodes)
	s.SaveProtected(ctx, vec, testPassphrase)
	vec.Set("joy", 0.1)
	s.SaveProtected(ctx, vec, testPassphrase)

	os.WriteFile(filepath.Join(s.dir, ProtectedFile), []byte("junk"), 0o644)

	if _, err := s.RestoreFromBackup(ctx, ArtifactProtected); err != nil {
		t.Fatalf("restore: %v", err)
	}
	got, err := s.LoadProtected(ctx, testPassphrase)
	if err != nil {
		t.Fatalf("load after restore: %v", err)
	}
	if got.Intensities["joy"] != 0.7 {
		t.Errorf("joy = %v, want the backed-up 0.7", got.Intensities["joy"])
	}
}

func TestOpen_SecondProcessLockedOut(t *testing.T) {
	dir := t.TempDir()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	s, err := Open(dir, logger)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()

	if _, err := Open(dir, logger); !errors.Is(err, ErrLocked) {
		t.Fatalf("got %v, want ErrLocked", err)
	}
}

func TestCheckEnvironment(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.CheckEnvironment(); !errors.Is(err, ErrEnvironmentUnavailable) {
		t.Fatalf("empty dir: got %v, want ErrEnvironmentUnavailable", err)
	}

	s.SaveIdentity(ctx, testIdentity())
	s.SaveMemory(ctx, model.NewMemoryLedger("Rafael"))

	if err := s.CheckEnvironment(); err != nil {
		t.Fatalf("seeded dir: %v", err)
	}
}

func TestStatus(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.SaveIdentity(ctx, testIdentity())
	s.SaveIdentity(ctx, testIdentity()) // one backup
	s.SaveProtected(ctx, model.DefaultVector(model.DefaultCodes), testPassphrase)

	statuses, err := s.Status(ctx)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	byArtifact := map[string]ArtifactStatus{}
	for _, st := range statuses {
		byArtifact[st.Artifact] = st
	}

	id := byArtifact[ArtifactIdentity]
	if !id.Present || !id.IntegrityOK || id.LatestBackup != 1 {
		t.Errorf("identity status: %+v", id)
	}
	if mem := byArtifact[ArtifactMemory]; mem.Present {
		t.Errorf("memory should be absent: %+v", mem)
	}
	if prot := byArtifact[ArtifactProtected]; !prot.Present || !prot.IntegrityOK {
		t.Errorf("protected status: %+v", prot)
	}
}
