// Package hasher computes content fingerprints used as change-detection keys.
package hasher

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// BlockSize is the read size used when streaming content into the digest
const BlockSize = 4096

// Size is the length of a fingerprint in bytes
const Size = sha256.Size

// Fingerprint is a SHA-256 digest of a document's byte content
type Fingerprint [Size]byte

// String returns the lowercase hex encoding of the fingerprint
func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether the fingerprint was never computed
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// Parse decodes a hex-encoded fingerprint
func Parse(s string) (Fingerprint, error) {
	var f Fingerprint
	b, err := hex.DecodeString(s)
	if err != nil {
		return f, fmt.Errorf("decode fingerprint: %w", err)
	}
	if len(b) != Size {
		return f, fmt.Errorf("fingerprint must be %d bytes, got %d", Size, len(b))
	}
	copy(f[:], b)
	return f, nil
}

// FromBytes fingerprints an in-memory buffer
func FromBytes(data []byte) Fingerprint {
	return Fingerprint(sha256.Sum256(data))
}

// FromReader streams r into the digest in BlockSize reads, so memory use
// does not depend on content length.
func FromReader(r io.Reader) (Fingerprint, error) {
	var f Fingerprint
	h := sha256.New()
	buf := make([]byte, BlockSize)
	if _, err := io.CopyBuffer(h, r, buf); err != nil {
		return f, err
	}
	copy(f[:], h.Sum(nil))
	return f, nil
}

// FromFile fingerprints the file at path
func FromFile(path string) (Fingerprint, error) {
	file, err := os.Open(path)
	if err != nil {
		return Fingerprint{}, err
	}
	defer func() { _ = file.Close() }()

	return FromReader(file)
}
