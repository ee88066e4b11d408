package secpolicy

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// ErrRandUnavailable means no secure random bytes could be read.
var ErrRandUnavailable = errors.New("secure random source unavailable")

// DefaultNonceBytes is used when a non-positive length is requested.
const DefaultNonceBytes = 32

// GenerateNonce returns the lowercase hex encoding of n bytes from
// crypto/rand.
func GenerateNonce(n int) (string, error) {
	return GenerateNonceFrom(rand.Reader, n)
}

// GenerateNonceFrom reads n bytes from r. A short read or a nil reader is
// reported as ErrRandUnavailable; there is no fallback source.
func GenerateNonceFrom(r io.Reader, n int) (string, error) {
	if n <= 0 {
		n = DefaultNonceBytes
	}
	if r == nil {
		return "", ErrRandUnavailable
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("%w: %v", ErrRandUnavailable, err)
	}
	return hex.EncodeToString(buf), nil
}
