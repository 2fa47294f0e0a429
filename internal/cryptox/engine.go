package cryptox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/fileshare/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// NonceSize is the per-encryption nonce length for every supported AEAD.
	NonceSize = 12
	// TagSize is the authentication tag length appended to the ciphertext.
	TagSize = 16
	// DefaultChunkSize bounds a single read from the input stream.
	DefaultChunkSize = 8 * 1024
)

const (
	AlgorithmAES256GCM        = "aes-256-gcm"
	AlgorithmChaCha20Poly1305 = "chacha20-poly1305"
)

// Engine performs authenticated encryption of whole payloads read from a stream.
type Engine interface {
	// Encrypt reads plaintext to EOF and returns ciphertext||tag together with
	// the fresh random nonce it was sealed under.
	Encrypt(keyID string, plaintext io.Reader) (ciphertext []byte, nonce []byte, err error)
	// Decrypt reads ciphertext||tag to EOF and returns the plaintext. Nothing
	// is returned unless the tag verifies.
	Decrypt(keyID string, nonce []byte, ciphertext io.Reader) ([]byte, error)
}

type aeadFactory func(key []byte) (cipher.AEAD, error)

// StreamEngine reads its input in bounded chunks and seals it with a single
// AEAD operation using keys fetched from a KeyVault.
type StreamEngine struct {
	vault     KeyVault
	algorithm string
	newAEAD   aeadFactory
	chunkSize int
}

var _ Engine = (*StreamEngine)(nil)

func newAESGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}

// NewEngine selects the AEAD by name. An empty algorithm means AES-256-GCM,
// a non-positive chunk size means DefaultChunkSize.
func NewEngine(algorithm string, vault KeyVault, chunkSize int) (*StreamEngine, error) {
	if vault == nil {
		return nil, fmt.Errorf("%w: vault is required", common.ErrorInvalidArgument)
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var f aeadFactory
	switch algorithm {
	case "", AlgorithmAES256GCM:
		algorithm = AlgorithmAES256GCM
		f = newAESGCM
	case AlgorithmChaCha20Poly1305:
		f = chacha20poly1305.New
	default:
		return nil, fmt.Errorf("%w: unsupported algorithm %q", common.ErrorInvalidArgument, algorithm)
	}

	return &StreamEngine{vault: vault, algorithm: algorithm, newAEAD: f, chunkSize: chunkSize}, nil
}

func NewAESGCMEngine(vault KeyVault) *StreamEngine {
	return &StreamEngine{vault: vault, algorithm: AlgorithmAES256GCM, newAEAD: newAESGCM, chunkSize: DefaultChunkSize}
}

// Algorithm returns the AEAD name the engine was built with.
func (e *StreamEngine) Algorithm() string {
	return e.algorithm
}

func (e *StreamEngine) aead(keyID string) (cipher.AEAD, error) {
	key, err := e.vault.RetrieveKey(keyID)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(key)

	a, err := e.newAEAD(key)
	if err != nil {
		return nil, fmt.Errorf("%w: init %s: %v", common.ErrorInternal, e.algorithm, err)
	}
	return a, nil
}

func (e *StreamEngine) Encrypt(keyID string, plaintext io.Reader) ([]byte, []byte, error) {
	a, err := e.aead(keyID)
	if err != nil {
		return nil, nil, err
	}

	data, err := readChunked(plaintext, e.chunkSize)
	if err != nil {
		return nil, nil, err
	}
	defer common.WipeByteArray(data)

	nonce, err := common.RandomBytes(a.NonceSize())
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	return a.Seal(nil, nonce, data, nil), nonce, nil
}

func (e *StreamEngine) Decrypt(keyID string, nonce []byte, ciphertext io.Reader) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, fmt.Errorf("%w: got %d bytes, want %d", common.ErrorInvalidNonce, len(nonce), NonceSize)
	}

	a, err := e.aead(keyID)
	if err != nil {
		return nil, err
	}

	data, err := readChunked(ciphertext, e.chunkSize)
	if err != nil {
		return nil, err
	}
	if len(data) < a.Overhead() {
		return nil, fmt.Errorf("%w: ciphertext shorter than tag", common.ErrorAuthenticationFailure)
	}

	plain, err := a.Open(nil, nonce, data, nil)
	if err != nil {
		return nil, common.ErrorAuthenticationFailure
	}
	return plain, nil
}

// readChunked drains r through a fixed-size buffer.
func readChunked(r io.Reader, chunkSize int) ([]byte, error) {
	if r == nil {
		return nil, fmt.Errorf("%w: nil reader", common.ErrorInvalidArgument)
	}

	var out bytes.Buffer
	buf := make([]byte, chunkSize)
	defer common.WipeByteArray(buf)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			out.Write(buf[:n])
		}
		if errors.Is(err, io.EOF) {
			return out.Bytes(), nil
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrorIOFailure, err)
		}
	}
}
