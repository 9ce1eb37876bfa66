// Package codec seals and unseals the protected behavioral layer behind a
// passphrase-derived keystream. The transform is light obfuscation plus
// tamper evidence, not confidentiality against a capable adversary.
package codec

import (
	"errors"

	"github.com/rcliao/persona-vault/internal/checksum"
)

// PassphraseLength is the exact required passphrase length.
const PassphraseLength = 26

var (
	// ErrInvalidPassphraseShape means the passphrase is not exactly
	// PassphraseLength characters. No decoding is attempted.
	ErrInvalidPassphraseShape = errors.New("passphrase must be exactly 26 characters")

	// ErrInvalidPassphrase means the passphrase digest did not match the
	// blob. No plaintext byte is computed in this case.
	ErrInvalidPassphrase = errors.New("passphrase does not match protected blob")

	// ErrCorruptedPayload means the passphrase was right but the decoded
	// bytes failed their content digest: the blob itself is damaged.
	ErrCorruptedPayload = errors.New("protected payload failed content digest")
)

// Blob is the sealed protected-layer artifact: cipher bytes plus two
// independent digests, one gating the passphrase and one verifying the
// recovered plaintext.
type Blob struct {
	Cipher           []byte `json:"cipher"`
	PassphraseDigest string `json:"passphrase_digest"`
	PlaintextDigest  string `json:"plaintext_digest"`
}

// Encode seals plaintext under the passphrase.
func Encode(plaintext []byte, passphrase string) (Blob, error) {
	if len(passphrase) != PassphraseLength {
		return Blob{}, ErrInvalidPassphraseShape
	}
	return Blob{
		Cipher:           transform(plaintext, passphrase),
		PassphraseDigest: checksum.Digest([]byte(passphrase)),
		PlaintextDigest:  checksum.Digest(plaintext),
	}, nil
}

// Decode unseals a blob. It fails closed at the first mismatch: shape,
// then passphrase digest, then (only after transforming) plaintext digest.
// Distinguishing ErrInvalidPassphrase from ErrCorruptedPayload is the
// point — "wrong key" and "right key, damaged data" need different fixes.
func Decode(b Blob, passphrase string) ([]byte, error) {
	if len(passphrase) != PassphraseLength {
		return nil, ErrInvalidPassphraseShape
	}
	if !checksum.Verify([]byte(passphrase), b.PassphraseDigest) {
		return nil, ErrInvalidPassphrase
	}
	plaintext := transform(b.Cipher, passphrase)
	if !checksum.Verify(plaintext, b.PlaintextDigest) {
		return nil, ErrCorruptedPayload
	}
	return plaintext, nil
}

// transform applies the self-inverse keystream combination: the keystream
// repeats the passphrase with position mixing, XORed byte-wise. Applying it
// twice with the same passphrase is the identity.
func transform(data []byte, passphrase string) []byte {
	key := []byte(passphrase)
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ key[i%len(key)] ^ byte(i)
	}
	return out
}
