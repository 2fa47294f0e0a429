package common

import (
	"crypto/rand"
	"fmt"
)

// RandomBytes returns n bytes read from the operating system CSPRNG.
// Key material and nonces are always drawn through this function.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("random source: %w", err)
	}
	return b, nil
}

// WipeByteArray overwrites the contents of the provided byte slice with zeros.
// Used to drop key material from memory after use. Nil is a no-op.
func WipeByteArray(b []byte) {
	if b == nil {
		return
	}
	for i := range b {
		b[i] = 0
	}
}
