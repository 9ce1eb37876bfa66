package store

import "errors"

var (
	// ErrMissingFile means the artifact file does not exist.
	ErrMissingFile = errors.New("artifact file missing")

	// ErrChecksumMismatch means the artifact's content did not match its
	// declared digest.
	ErrChecksumMismatch = errors.New("artifact failed checksum")

	// ErrDecompressFailure means the compressed layer could not be
	// decompressed at all.
	ErrDecompressFailure = errors.New("compressed artifact unreadable")

	// ErrEnvironmentUnavailable means the data directory is not readable
	// and writable, or a required file is absent.
	ErrEnvironmentUnavailable = errors.New("data directory not usable")

	// ErrLocked means another process holds the data directory lock.
	ErrLocked = errors.New("data directory locked by another process")
)
