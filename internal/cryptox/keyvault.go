package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/fileshare/internal/common"
	"github.com/google/uuid"
)

// KeySize is the length of every data key and of the vault master key (AES-256).
const KeySize = 32

// KeyVault issues symmetric data keys and hands them back by id.
// Key material never leaves the vault except as a fresh copy returned by
// RetrieveKey, which the caller is expected to wipe after use.
type KeyVault interface {
	// GenerateKey creates a fresh 256-bit key and returns its id.
	GenerateKey() (string, error)
	// RetrieveKey returns a copy of the key material, or ErrorKeyNotFound.
	RetrieveKey(keyID string) ([]byte, error)
	// RotateKey issues a new key for a known id. The old key stays retrievable.
	RotateKey(oldKeyID string) (string, error)
	// DestroyKey forgets a key; ciphertext under it becomes unrecoverable.
	DestroyKey(keyID string) error
}

type wrappedKey struct {
	nonce     []byte
	sealed    []byte
	createdAt time.Time
}

// MemoryVault keeps data keys in process memory, each one sealed under a
// master key with its id bound as associated data.
type MemoryVault struct {
	mu   sync.RWMutex
	kek  cipher.AEAD
	keys map[string]wrappedKey
}

var _ KeyVault = (*MemoryVault)(nil)

// NewMemoryVault builds a vault around a 32-byte master key. The master key
// slice is not retained.
func NewMemoryVault(masterKey []byte) (*MemoryVault, error) {
	if len(masterKey) != KeySize {
		return nil, fmt.Errorf("%w: master key must be %d bytes, got %d", common.ErrorInvalidArgument, KeySize, len(masterKey))
	}
	block, err := aes.NewCipher(masterKey)
	if err != nil {
		return nil, fmt.Errorf("master cipher: %w", err)
	}
	kek, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("master gcm: %w", err)
	}
	return &MemoryVault{kek: kek, keys: make(map[string]wrappedKey)}, nil
}

// NewRandomMemoryVault builds a vault with a master key that lives only as
// long as the process.
func NewRandomMemoryVault() (*MemoryVault, error) {
	master, err := common.RandomBytes(KeySize)
	if err != nil {
		return nil, err
	}
	defer common.WipeByteArray(master)
	return NewMemoryVault(master)
}

// NewMemoryVaultFromPassphrase derives the master key with Argon2id.
func NewMemoryVaultFromPassphrase(passphrase, salt []byte) (*MemoryVault, error) {
	if len(passphrase) == 0 || len(salt) == 0 {
		return nil, fmt.Errorf("%w: passphrase and salt are required", common.ErrorInvalidArgument)
	}
	master := DeriveMasterKey(passphrase, salt)
	defer common.WipeByteArray(master)
	return NewMemoryVault(master)
}

func (v *MemoryVault) GenerateKey() (string, error) {
	key, err := common.RandomBytes(KeySize)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(key)

	nonce, err := common.RandomBytes(v.kek.NonceSize())
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	w := wrappedKey{
		nonce:     nonce,
		sealed:    v.kek.Seal(nil, nonce, key, []byte(id)),
		createdAt: time.Now(),
	}

	v.mu.Lock()
	v.keys[id] = w
	v.mu.Unlock()

	return id, nil
}

func (v *MemoryVault) RetrieveKey(keyID string) ([]byte, error) {
	v.mu.RLock()
	w, ok := v.keys[keyID]
	v.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %s", common.ErrorKeyNotFound, keyID)
	}

	key, err := v.kek.Open(nil, w.nonce, w.sealed, []byte(keyID))
	if err != nil {
		return nil, fmt.Errorf("%w: unwrap key %s: %v", common.ErrorInternal, keyID, err)
	}
	return key, nil
}

func (v *MemoryVault) RotateKey(oldKeyID string) (string, error) {
	v.mu.RLock()
	_, ok := v.keys[oldKeyID]
	v.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", common.ErrorKeyNotFound, oldKeyID)
	}
	return v.GenerateKey()
}

func (v *MemoryVault) DestroyKey(keyID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	w, ok := v.keys[keyID]
	if !ok {
		return fmt.Errorf("%w: %s", common.ErrorKeyNotFound, keyID)
	}
	common.WipeByteArray(w.sealed)
	delete(v.keys, keyID)
	return nil
}

// Len reports how many keys the vault currently holds.
func (v *MemoryVault) Len() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.keys)
}
