// Package store owns the three persisted persona layers and routes every
// mutation through backup-then-overwrite and every load through integrity
// verification.
package store

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/rcliao/persona-vault/internal/checksum"
	"github.com/rcliao/persona-vault/internal/codec"
	"github.com/rcliao/persona-vault/internal/model"
	"github.com/rcliao/persona-vault/internal/vault"
)

// Persisted layout inside the data directory.
const (
	IdentityFile  = "IDENTITY.txt"
	MemoryFile    = "memory_compressed.bin"
	ProtectedFile = "emotional_core.dat"

	lockName = "persona-vault.lock"
)

// Artifact identifiers used for backups and locks.
const (
	ArtifactIdentity  = "identity"
	ArtifactMemory    = "memory"
	ArtifactProtected = "protected"
)

const checksumKey = "CHECKSUM"

// Store is the layered state store for one data directory. Loads of the same
// artifact may run concurrently; saves are exclusive per artifact.
type Store struct {
	dir   string
	vault *vault.Vault
	log   *slog.Logger

	idMu   sync.RWMutex
	memMu  sync.RWMutex
	protMu sync.RWMutex
}

// Open acquires the data directory and its backup vault. It takes an
// exclusive directory lock; a second process gets ErrLocked.
func Open(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	lock := filepath.Join(dir, lockName)
	f, err := os.OpenFile(lock, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return nil, fmt.Errorf("%s exists: %w", lockName, ErrLocked)
		}
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	fmt.Fprintf(f, "%d\n", os.Getpid())
	f.Close()

	v, err := vault.Open(dir, checksum.Digest)
	if err != nil {
		os.Remove(lock)
		return nil, err
	}

	return &Store{dir: dir, vault: v, log: logger}, nil
}

// Close releases the directory lock and the vault catalog.
func (s *Store) Close() error {
	err := s.vault.Close()
	if rerr := os.Remove(filepath.Join(s.dir, lockName)); rerr != nil && err == nil {
		err = rerr
	}
	return err
}

// Dir returns the data directory path.
func (s *Store) Dir() string { return s.dir }

// CheckEnvironment confirms the data directory is readable and writable and
// that the identity and memory files exist.
func (s *Store) CheckEnvironment() error {
	info, err := os.Stat(s.dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("data dir %s: %w", s.dir, ErrEnvironmentUnavailable)
	}

	probe := filepath.Join(s.dir, ".write-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return fmt.Errorf("data dir not writable: %w", ErrEnvironmentUnavailable)
	}
	os.Remove(probe)

	for _, name := range []string{IdentityFile, MemoryFile} {
		if _, err := os.Stat(filepath.Join(s.dir, name)); err != nil {
			return fmt.Errorf("required file %s: %w", name, ErrEnvironmentUnavailable)
		}
	}
	return nil
}

// --- identity layer ---

// LoadIdentity reads and verifies the plain identity layer. On checksum
// mismatch it falls back to the newest valid backup; the second return is
// true when the record came from a backup rather than the live file.
func (s *Store) LoadIdentity(ctx context.Context) (*model.IdentityRecord, bool, error) {
	s.idMu.RLock()
	defer s.idMu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.dir, IdentityFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, fmt.Errorf("%s: %w", IdentityFile, ErrMissingFile)
		}
		return nil, false, fmt.Errorf("read %s: %w", IdentityFile, err)
	}

	rec, err := parseIdentity(data)
	if err == nil {
		return rec, false, nil
	}
	if !errors.Is(err, ErrChecksumMismatch) {
		return nil, false, err
	}

	rec, gen, rerr := s.recoverIdentity(ctx)
	if rerr != nil {
		return nil, false, err // original mismatch stays authoritative
	}
	s.log.Warn("identity recovered from backup", "generation", gen)
	return rec, true, nil
}

func (s *Store) recoverIdentity(ctx context.Context) (*model.IdentityRecord, int64, error) {
	data, gen, err := s.vault.LatestValid(ctx, ArtifactIdentity, checksum.Verify)
	if err != nil {
		return nil, 0, err
	}
	rec, err := parseIdentity(data)
	if err != nil {
		return nil, 0, err
	}
	return rec, gen, nil
}

// SaveIdentity validates, backs up the previous file, and atomically writes
// the new one. Returns the backup generation taken (0 on first write).
func (s *Store) SaveIdentity(ctx context.Context, rec *model.IdentityRecord) (int64, error) {
	if err := rec.Validate(); err != nil {
		return 0, err
	}
	return s.saveArtifact(ctx, &s.idMu, ArtifactIdentity, IdentityFile, encodeIdentity(rec))
}

// encodeIdentity renders KEY: value lines, required fields first, extras
// sorted, with a trailing CHECKSUM line over everything above it.
func encodeIdentity(rec *model.IdentityRecord) []byte {
	var b strings.Builder
	written := make(map[string]bool, len(rec.Fields))
	for _, key := range model.RequiredFields {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(key), rec.Fields[key])
		written[key] = true
	}
	var extras []string
	for key := range rec.Fields {
		if !written[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		fmt.Fprintf(&b, "%s: %s\n", strings.ToUpper(key), rec.Fields[key])
	}

	body := b.String()
	return []byte(body + checksumKey + ": " + checksum.Digest([]byte(body)) + "\n")
}

func parseIdentity(data []byte) (*model.IdentityRecord, error) {
	text := string(data)
	idx := strings.LastIndex(text, checksumKey+":")
	if idx < 0 {
		return nil, fmt.Errorf("%s has no checksum line: %w", IdentityFile, ErrChecksumMismatch)
	}
	declared := strings.TrimSpace(strings.TrimPrefix(text[idx:], checksumKey+":"))
	if !checksum.Verify([]byte(text[:idx]), declared) {
		return nil, fmt.Errorf("%s: %w", IdentityFile, ErrChecksumMismatch)
	}

	rec := &model.IdentityRecord{Fields: map[string]string{}}
	for _, line := range strings.Split(text[:idx], "\n") {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		rec.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	return rec, nil
}

// --- memory layer ---

// LoadMemory reads, decompresses, and verifies the compressed memory layer,
// falling back to the newest valid backup on corruption. The second return
// is true when the ledger came from a backup.
func (s *Store) LoadMemory(ctx context.Context) (*model.MemoryLedger, bool, error) {
	s.memMu.RLock()
	defer s.memMu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.dir, MemoryFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, fmt.Errorf("%s: %w", MemoryFile, ErrMissingFile)
		}
		return nil, false, fmt.Errorf("read %s: %w", MemoryFile, err)
	}

	ledger, err := parseMemory(data)
	if err == nil {
		return ledger, false, nil
	}
	if !errors.Is(err, ErrChecksumMismatch) && !errors.Is(err, ErrDecompressFailure) {
		return nil, false, err
	}

	backup, gen, rerr := s.vault.LatestValid(ctx, ArtifactMemory, checksum.Verify)
	if rerr != nil {
		return nil, false, err
	}
	ledger, perr := parseMemory(backup)
	if perr != nil {
		return nil, false, err
	}
	s.log.Warn("memory ledger recovered from backup", "generation", gen)
	return ledger, true, nil
}

// SaveMemory backs up the previous blob and writes the new compressed one.
func (s *Store) SaveMemory(ctx context.Context, ledger *model.MemoryLedger) (int64, error) {
	data, err := encodeMemory(ledger)
	if err != nil {
		return 0, err
	}
	return s.saveArtifact(ctx, &s.memMu, ArtifactMemory, MemoryFile, data)
}

// encodeMemory writes gzip(JSON(ledger)), a newline, then the digest of the
// decompressed JSON.
func encodeMemory(ledger *model.MemoryLedger) ([]byte, error) {
	plain, err := json.Marshal(ledger)
	if err != nil {
		return nil, fmt.Errorf("encode ledger: %w", err)
	}

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write(plain); err != nil {
		return nil, fmt.Errorf("compress ledger: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress ledger: %w", err)
	}

	buf.WriteByte('\n')
	buf.WriteString(checksum.Digest(plain))
	return buf.Bytes(), nil
}

func parseMemory(data []byte) (*model.MemoryLedger, error) {
	tail := checksum.Width + 1 // '\n' + digest
	if len(data) < tail+1 {
		return nil, fmt.Errorf("%s truncated: %w", MemoryFile, ErrChecksumMismatch)
	}
	declared := string(data[len(data)-checksum.Width:])
	if data[len(data)-tail] != '\n' || !checksum.WellFormed(declared) {
		return nil, fmt.Errorf("%s has no digest trailer: %w", MemoryFile, ErrChecksumMismatch)
	}

	zr, err := gzip.NewReader(bytes.NewReader(data[:len(data)-tail]))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MemoryFile, ErrDecompressFailure)
	}
	plain, err := io.ReadAll(zr)
	zr.Close()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", MemoryFile, ErrDecompressFailure)
	}

	if !checksum.Verify(plain, declared) {
		return nil, fmt.Errorf("%s: %w", MemoryFile, ErrChecksumMismatch)
	}

	var ledger model.MemoryLedger
	if err := json.Unmarshal(plain, &ledger); err != nil {
		return nil, fmt.Errorf("decode ledger: %w", err)
	}
	return &ledger, nil
}

// --- protected layer ---

// LoadProtected unseals the behavioral vector. Protected failures are never
// auto-recovered from backup: a stale vector silently standing in for a
// corrupted one is worse than refusing.
func (s *Store) LoadProtected(ctx context.Context, passphrase string) (*model.BehavioralStateVector, error) {
	s.protMu.RLock()
	defer s.protMu.RUnlock()

	data, err := os.ReadFile(filepath.Join(s.dir, ProtectedFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", ProtectedFile, ErrMissingFile)
		}
		return nil, fmt.Errorf("read %s: %w", ProtectedFile, err)
	}

	var blob codec.Blob
	if err := json.Unmarshal(data, &blob); err != nil {
		return nil, fmt.Errorf("%s malformed: %w", ProtectedFile, codec.ErrCorruptedPayload)
	}

	plain, err := codec.Decode(blob, passphrase)
	if err != nil {
		return nil, err
	}

	var vec model.BehavioralStateVector
	if err := json.Unmarshal(plain, &vec); err != nil {
		return nil, fmt.Errorf("decode vector: %w", codec.ErrCorruptedPayload)
	}
	return &vec, nil
}

// SaveProtected seals the vector under the passphrase, backing up the
// previous blob first. Intensity bounds are enforced before anything is
// written.
func (s *Store) SaveProtected(ctx context.Context, vec *model.BehavioralStateVector, passphrase string) (int64, error) {
	for code, val := range vec.Intensities {
		if val < 0 || val > 1 {
			return 0, fmt.Errorf("code %q intensity %v outside [0, 1]", code, val)
		}
	}

	plain, err := json.Marshal(vec)
	if err != nil {
		return 0, fmt.Errorf("encode vector: %w", err)
	}
	blob, err := codec.Encode(plain, passphrase)
	if err != nil {
		return 0, err
	}
	data, err := json.Marshal(blob)
	if err != nil {
		return 0, fmt.Errorf("encode blob: %w", err)
	}
	return s.saveArtifact(ctx, &s.protMu, ArtifactProtected, ProtectedFile, data)
}

// --- backups ---

// Backups lists backup catalog entries; empty artifact lists all.
func (s *Store) Backups(ctx context.Context, artifact string) ([]vault.Entry, error) {
	return s.vault.List(ctx, artifact)
}

// RestoreFromBackup overwrites the live artifact with its newest valid
// backup generation. The current live bytes are backed up first, so even a
// corrupt live file is never lost. This is an explicit operator action; the
// store only ever auto-recovers identity and memory reads.
func (s *Store) RestoreFromBackup(ctx context.Context, artifact string) (int64, error) {
	var mu *sync.RWMutex
	var name string
	switch artifact {
	case ArtifactIdentity:
		mu, name = &s.idMu, IdentityFile
	case ArtifactMemory:
		mu, name = &s.memMu, MemoryFile
	case ArtifactProtected:
		mu, name = &s.protMu, ProtectedFile
	default:
		return 0, fmt.Errorf("unknown artifact %q", artifact)
	}

	data, gen, err := s.vault.LatestValid(ctx, artifact, checksum.Verify)
	if err != nil {
		return 0, fmt.Errorf("restore %s: %w", artifact, err)
	}
	if _, err := s.saveArtifact(ctx, mu, artifact, name, data); err != nil {
		return 0, err
	}
	s.log.Info("artifact restored from backup", "artifact", artifact, "generation", gen)
	return gen, nil
}

// --- write path ---

// saveArtifact is backup-then-overwrite under the artifact's write lock:
// snapshot the previous bytes, write the new bytes to a temp file, fsync,
// rename. A failure mid-write leaves the previous artifact untouched.
func (s *Store) saveArtifact(ctx context.Context, mu *sync.RWMutex, artifact, name string, data []byte) (int64, error) {
	mu.Lock()
	defer mu.Unlock()

	full := filepath.Join(s.dir, name)

	var gen int64
	prev, err := os.ReadFile(full)
	switch {
	case err == nil:
		gen, err = s.vault.Snapshot(ctx, artifact, prev)
		if err != nil {
			return 0, fmt.Errorf("backup %s: %w", artifact, err)
		}
	case !os.IsNotExist(err):
		return 0, fmt.Errorf("read previous %s: %w", name, err)
	}

	tmp := full + ".tmp"
	if err := writeDurable(tmp, data); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("write %s: %w", name, err)
	}
	if err := os.Rename(tmp, full); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("replace %s: %w", name, err)
	}

	s.log.Debug("artifact saved", "artifact", artifact, "bytes", len(data), "backup_generation", gen)
	return gen, nil
}

func writeDurable(path string, data []byte) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	if _, err = f.Write(data); err != nil {
		return err
	}
	return f.Sync()
}
