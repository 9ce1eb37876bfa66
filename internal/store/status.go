package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rcliao/persona-vault/internal/codec"
)

// ArtifactStatus describes one persisted layer without exposing protected
// plaintext.
type ArtifactStatus struct {
	Artifact          string `json:"artifact"`
	File              string `json:"file"`
	Present           bool   `json:"present"`
	SizeBytes         int64  `json:"size_bytes"`
	IntegrityOK       bool   `json:"integrity_ok"`
	LatestBackup      int64  `json:"latest_backup"`
	BackupGenerations int    `json:"backup_generations"`
}

// Status reports per-artifact health. The protected layer is only checked
// for a well-formed blob envelope; unsealing needs a passphrase and is not
// a status concern.
func (s *Store) Status(ctx context.Context) ([]ArtifactStatus, error) {
	out := make([]ArtifactStatus, 0, 3)

	for _, a := range []struct {
		artifact string
		file     string
		check    func([]byte) bool
	}{
		{ArtifactIdentity, IdentityFile, func(b []byte) bool {
			_, err := parseIdentity(b)
			return err == nil
		}},
		{ArtifactMemory, MemoryFile, func(b []byte) bool {
			_, err := parseMemory(b)
			return err == nil
		}},
		{ArtifactProtected, ProtectedFile, func(b []byte) bool {
			var blob codec.Blob
			return json.Unmarshal(b, &blob) == nil &&
				blob.PassphraseDigest != "" && blob.PlaintextDigest != ""
		}},
	} {
		st := ArtifactStatus{Artifact: a.artifact, File: a.file}

		path := filepath.Join(s.dir, a.file)
		if info, err := os.Stat(path); err == nil {
			st.Present = true
			st.SizeBytes = info.Size()
			if data, err := os.ReadFile(path); err == nil {
				st.IntegrityOK = a.check(data)
			}
		}

		entries, err := s.vault.List(ctx, a.artifact)
		if err != nil {
			return nil, err
		}
		st.BackupGenerations = len(entries)
		if len(entries) > 0 {
			st.LatestBackup = entries[0].Generation
		}

		out = append(out, st)
	}
	return out, nil
}
