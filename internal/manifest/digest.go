package manifest

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/asmfreak/arensync/internal/errors"
)

// DigestSize is the size of a Digest in bytes.
const DigestSize = sha256.Size

// DigestLength is the length of the hex representation of a Digest, which
// is the fixed width of the digest field in a manifest line.
const DigestLength = 2 * DigestSize

// Digest is the SHA-256 hash of the full content of a file.
type Digest [DigestSize]byte

// Hash returns the digest of data.
func Hash(data []byte) Digest {
	return sha256.Sum256(data)
}

// ParseDigest converts the hex representation s to a Digest. s must be
// exactly DigestLength characters long.
func ParseDigest(s string) (Digest, error) {
	if len(s) != DigestLength {
		return Digest{}, errors.Errorf("invalid digest %q: length %d, want %d", s, len(s), DigestLength)
	}

	var d Digest
	if _, err := hex.Decode(d[:], []byte(s)); err != nil {
		return Digest{}, errors.Wrapf(err, "invalid digest %q", s)
	}

	return d, nil
}

// String returns the lowercase hex representation of d.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Str returns a shortened form of d for log messages.
func (d Digest) Str() string {
	return hex.EncodeToString(d[:4])
}
