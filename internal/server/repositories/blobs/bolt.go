package blobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fileshare/internal/common"
	"github.com/dmitrijs2005/fileshare/internal/filex"
	"go.etcd.io/bbolt"
)

var bucketBlobs = []byte("blobs")

// BoltStore keeps blobs in a single bbolt file.
type BoltStore struct {
	db *bbolt.DB
}

var _ Store = (*BoltStore)(nil)

// OpenBoltStore opens or creates the database at path, creating parent
// directories as needed.
func OpenBoltStore(path string) (*BoltStore, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: bolt path is empty", common.ErrorInvalidArgument)
	}
	abs, err := filex.EnsureParentDir(path)
	if err != nil {
		return nil, fmt.Errorf("blobs: %w", err)
	}

	db, err := bbolt.Open(abs, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("blobs: open bolt db: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketBlobs)
		return err
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("blobs: create bucket: %w", err)
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Put(_ context.Context, key string, data []byte) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBlobs).Put([]byte(key), data)
	})
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrorIOFailure, err)
	}
	return nil
}

func (s *BoltStore) Get(_ context.Context, key string) ([]byte, error) {
	var out []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(bucketBlobs).Get([]byte(key))
		if v == nil {
			return common.ErrorBlobNotFound
		}
		out = append([]byte(nil), v...)
		return nil
	})
	if errors.Is(err, common.ErrorBlobNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorIOFailure, err)
	}
	return out, nil
}

func (s *BoltStore) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketBlobs).Delete([]byte(key))
	})
	if err != nil {
		return fmt.Errorf("%w: %w", common.ErrorIOFailure, err)
	}
	return nil
}

func (s *BoltStore) Close() error { return s.db.Close() }
