package crypto

import (
	"crypto/subtle"
	"encoding/hex"
	"errors"
)

// Secret holds key material that is wiped on release. Callers own the
// lifetime exclusively: Bytes borrows, it never copies, so a Secret must
// not be shared across goroutines without external synchronization.
type Secret struct {
	b []byte
}

// NewSecret copies src into a fresh Secret. The caller should wipe its
// own copy if it no longer needs it.
func NewSecret(src []byte) *Secret {
	b := make([]byte, len(src))
	copy(b, src)
	return &Secret{b: b}
}

// SecretFromHex decodes a hex-encoded secret of the given byte length.
func SecretFromHex(value string, wantLen int) (*Secret, error) {
	raw, err := hex.DecodeString(value)
	if err != nil {
		return nil, errors.New("secret is not valid hex")
	}
	if len(raw) != wantLen {
		zeroBytes(raw)
		return nil, errors.New("secret has wrong length")
	}
	return &Secret{b: raw}, nil
}

// Bytes exposes the underlying material without copying.
func (s *Secret) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

func (s *Secret) Len() int {
	if s == nil {
		return 0
	}
	return len(s.b)
}

// Hex copies the material into a hex string. Use sparingly; the returned
// string cannot be wiped.
func (s *Secret) Hex() string {
	if s == nil {
		return ""
	}
	return hex.EncodeToString(s.b)
}

// Equal compares in constant time.
func (s *Secret) Equal(other *Secret) bool {
	if s == nil || other == nil {
		return s == other
	}
	return subtle.ConstantTimeCompare(s.b, other.b) == 1
}

// Zero wipes the material. The Secret is unusable afterwards.
func (s *Secret) Zero() {
	if s == nil {
		return
	}
	zeroBytes(s.b)
	s.b = nil
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
