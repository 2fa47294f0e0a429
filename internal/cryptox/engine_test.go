package cryptox

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/dmitrijs2005/fileshare/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine(t *testing.T, algorithm string) (*StreamEngine, string) {
	t.Helper()
	v := newTestVault(t)
	e, err := NewEngine(algorithm, v, 16)
	require.NoError(t, err)
	id, err := v.GenerateKey()
	require.NoError(t, err)
	return e, id
}

func TestNewEngine(t *testing.T) {
	v := newTestVault(t)

	tests := []struct {
		name      string
		algorithm string
		want      string
		wantErr   error
	}{
		{"default", "", AlgorithmAES256GCM, nil},
		{"aes", AlgorithmAES256GCM, AlgorithmAES256GCM, nil},
		{"chacha", AlgorithmChaCha20Poly1305, AlgorithmChaCha20Poly1305, nil},
		{"unknown", "rot13", "", common.ErrorInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEngine(tt.algorithm, v, 0)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, e.Algorithm())
			assert.Equal(t, DefaultChunkSize, e.chunkSize)
		})
	}

	_, err := NewEngine("", nil, 0)
	assert.ErrorIs(t, err, common.ErrorInvalidArgument)
}

func TestStreamEngine_RoundTrip(t *testing.T) {
	for _, alg := range []string{AlgorithmAES256GCM, AlgorithmChaCha20Poly1305} {
		t.Run(alg, func(t *testing.T) {
			e, id := newTestEngine(t, alg)

			for _, size := range []int{0, 1, 15, 16, 17, 1000} {
				plain := bytes.Repeat([]byte{'a'}, size)

				ct, nonce, err := e.Encrypt(id, bytes.NewReader(plain))
				require.NoError(t, err)
				assert.Len(t, nonce, NonceSize)
				assert.Len(t, ct, size+TagSize)

				got, err := e.Decrypt(id, nonce, bytes.NewReader(ct))
				require.NoError(t, err)
				assert.Equal(t, len(plain), len(got))
				assert.True(t, bytes.Equal(plain, got))
			}
		})
	}
}

func TestStreamEngine_OneByteReader(t *testing.T) {
	e, id := newTestEngine(t, "")
	plain := []byte("streamed one byte at a time")

	ct, nonce, err := e.Encrypt(id, iotest.OneByteReader(bytes.NewReader(plain)))
	require.NoError(t, err)

	got, err := e.Decrypt(id, nonce, iotest.OneByteReader(bytes.NewReader(ct)))
	require.NoError(t, err)
	assert.Equal(t, plain, got)
}

func TestStreamEngine_TamperEveryBit(t *testing.T) {
	e, id := newTestEngine(t, "")
	plain := []byte("0123456789abcdef0123456789abcdef")

	ct, nonce, err := e.Encrypt(id, bytes.NewReader(plain))
	require.NoError(t, err)

	for i := range ct {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), ct...)
			mutated[i] ^= 1 << bit

			got, err := e.Decrypt(id, nonce, bytes.NewReader(mutated))
			if !errors.Is(err, common.ErrorAuthenticationFailure) {
				t.Fatalf("byte %d bit %d: expected authentication failure, got %v", i, bit, err)
			}
			if got != nil {
				t.Fatalf("byte %d bit %d: plaintext released on failure", i, bit)
			}
		}
	}
}

func TestStreamEngine_WrongNonceOrKey(t *testing.T) {
	e, id := newTestEngine(t, "")
	ct, nonce, err := e.Encrypt(id, strings.NewReader("payload"))
	require.NoError(t, err)

	other := append([]byte(nil), nonce...)
	other[0] ^= 0xff
	_, err = e.Decrypt(id, other, bytes.NewReader(ct))
	assert.ErrorIs(t, err, common.ErrorAuthenticationFailure)

	otherKey, err := e.vault.GenerateKey()
	require.NoError(t, err)
	_, err = e.Decrypt(otherKey, nonce, bytes.NewReader(ct))
	assert.ErrorIs(t, err, common.ErrorAuthenticationFailure)
}

func TestStreamEngine_TruncatedCiphertext(t *testing.T) {
	e, id := newTestEngine(t, "")
	nonce := make([]byte, NonceSize)

	_, err := e.Decrypt(id, nonce, bytes.NewReader(make([]byte, TagSize-1)))
	assert.ErrorIs(t, err, common.ErrorAuthenticationFailure)

	_, err = e.Decrypt(id, nonce, bytes.NewReader(nil))
	assert.ErrorIs(t, err, common.ErrorAuthenticationFailure)
}

func TestStreamEngine_InvalidNonce(t *testing.T) {
	e, id := newTestEngine(t, "")

	for _, n := range []int{0, 11, 13, 24} {
		_, err := e.Decrypt(id, make([]byte, n), bytes.NewReader(make([]byte, 32)))
		assert.ErrorIs(t, err, common.ErrorInvalidNonce, "nonce size %d", n)
	}
}

func TestStreamEngine_KeyNotFound(t *testing.T) {
	e, _ := newTestEngine(t, "")

	_, _, err := e.Encrypt("missing", strings.NewReader("x"))
	assert.ErrorIs(t, err, common.ErrorKeyNotFound)

	_, err = e.Decrypt("missing", make([]byte, NonceSize), bytes.NewReader(make([]byte, 32)))
	assert.ErrorIs(t, err, common.ErrorKeyNotFound)
}

func TestStreamEngine_DestroyedKey(t *testing.T) {
	e, id := newTestEngine(t, "")
	ct, nonce, err := e.Encrypt(id, strings.NewReader("secret"))
	require.NoError(t, err)

	require.NoError(t, e.vault.DestroyKey(id))
	_, err = e.Decrypt(id, nonce, bytes.NewReader(ct))
	assert.ErrorIs(t, err, common.ErrorKeyNotFound)
}

func TestStreamEngine_ReadFailure(t *testing.T) {
	e, id := newTestEngine(t, "")
	boom := errors.New("disk on fire")

	_, _, err := e.Encrypt(id, iotest.ErrReader(boom))
	assert.ErrorIs(t, err, common.ErrorIOFailure)
	assert.ErrorIs(t, err, boom)

	_, err = e.Decrypt(id, make([]byte, NonceSize), io.MultiReader(bytes.NewReader(make([]byte, 8)), iotest.ErrReader(boom)))
	assert.ErrorIs(t, err, common.ErrorIOFailure)
}

func TestStreamEngine_NonceUniqueness(t *testing.T) {
	e, id := newTestEngine(t, "")

	const n = 10000
	seen := make(map[string]struct{}, n)
	for i := 0; i < n; i++ {
		_, nonce, err := e.Encrypt(id, bytes.NewReader(nil))
		require.NoError(t, err)
		seen[string(nonce)] = struct{}{}
	}
	assert.Len(t, seen, n)
}

func TestStreamEngine_SamePlaintextDiffers(t *testing.T) {
	e, id := newTestEngine(t, "")
	plain := []byte("identical input")

	ct1, _, err := e.Encrypt(id, bytes.NewReader(plain))
	require.NoError(t, err)
	ct2, _, err := e.Encrypt(id, bytes.NewReader(plain))
	require.NoError(t, err)

	assert.NotEqual(t, ct1, ct2)
}
