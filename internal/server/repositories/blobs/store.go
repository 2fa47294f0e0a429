// Package blobs stores encrypted file payloads under opaque keys.
package blobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store keeps ciphertext blobs. Get on a missing key returns
// common.ErrorBlobNotFound; Delete of a missing key is not an error.
// Backend failures are wrapped in common.ErrorIOFailure.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

const (
	BackendMemory = "memory"
	BackendBolt   = "bolt"
	BackendS3     = "s3"
)

// Config selects and configures a Store backend.
type Config struct {
	Backend  string
	BoltPath string
	S3       S3Config
}

// New opens the configured backend.
func New(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendBolt:
		return OpenBoltStore(cfg.BoltPath)
	case BackendS3:
		client, err := NewS3Client(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		return NewS3Store(client, cfg.S3.Bucket), nil
	default:
		return nil, fmt.Errorf("unknown blob backend %q", cfg.Backend)
	}
}

// NewStorageKey returns a fresh, never reused key for a blob of fileID.
func NewStorageKey(fileID string) string {
	d := time.Now().UTC()
	return fmt.Sprintf("files/%s/%d/%02d/%02d/%v", fileID, d.Year(), d.Month(), d.Day(), uuid.New())
}
