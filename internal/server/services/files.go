// Package services contains server-side business logic. FileService stores
// files encrypted at rest and returns them only to their owner.
package services

import (
	"bytes"
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/fileshare/internal/common"
	"github.com/dmitrijs2005/fileshare/internal/cryptox"
	"github.com/dmitrijs2005/fileshare/internal/logging"
	"github.com/dmitrijs2005/fileshare/internal/server/config"
	"github.com/dmitrijs2005/fileshare/internal/server/models"
	"github.com/dmitrijs2005/fileshare/internal/server/repositories/blobs"
	"github.com/dmitrijs2005/fileshare/internal/server/repositories/files"
	"github.com/dmitrijs2005/fileshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fileshare/internal/server/repositories/versions"
	"github.com/dmitrijs2005/fileshare/internal/server/search"
	"github.com/google/uuid"
)

// FileService composes the key vault, cipher engine, version ledger, blob
// store and search index. Operations on one file id are serialized; distinct
// ids proceed in parallel.
type FileService struct {
	files    files.Repository
	versions versions.Ledger
	blobs    blobs.Store
	vault    cryptox.KeyVault
	engine   cryptox.Engine
	index    *search.Index
	locks    *keyLocker
	log      logging.Logger
	now      func() time.Time

	shredKeysOnDelete    bool
	searchExcludeDeleted bool
}

// NewFileService wires a FileService. Only the policy switches of cfg are used.
func NewFileService(
	m repomanager.RepositoryManager,
	store blobs.Store,
	vault cryptox.KeyVault,
	engine cryptox.Engine,
	index *search.Index,
	log logging.Logger,
	cfg *config.Config,
) *FileService {
	return &FileService{
		files:                m.Files(),
		versions:             m.Versions(),
		blobs:                store,
		vault:                vault,
		engine:               engine,
		index:                index,
		locks:                newKeyLocker(),
		log:                  log.With("module", "files"),
		now:                  func() time.Time { return time.Now().UTC() },
		shredKeysOnDelete:    cfg.ShredKeysOnDelete,
		searchExcludeDeleted: cfg.SearchExcludeDeleted,
	}
}

// FileHistory is a descriptor together with every recorded version.
type FileHistory struct {
	File     *models.File          `json:"file"`
	Versions []*models.FileVersion `json:"versions"`
}

// SubmitFile encrypts content under a fresh key and stores it as version 1 of
// a new file. size is the declared length; a negative size means unknown.
func (s *FileService) SubmitFile(ctx context.Context, ownerID, name string, content io.Reader, size int64) (*models.File, error) {
	if ownerID == "" || name == "" || content == nil {
		return nil, fmt.Errorf("%w: owner, name and content are required", common.ErrorInvalidArgument)
	}

	fileID := uuid.NewString()
	unlock := s.locks.Lock(fileID)
	defer unlock()

	v, err := s.storeVersion(ctx, fileID, content, size)
	if err != nil {
		s.log.Error(ctx, "submit failed", "owner_id", ownerID, "error", err)
		return nil, err
	}

	now := s.now()
	f := &models.File{
		ID:        fileID,
		OwnerID:   ownerID,
		Name:      name,
		Size:      v.Size,
		Checksum:  v.Checksum,
		Status:    models.FileStatusActive,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.files.Create(ctx, f); err != nil {
		s.abandonVersion(ctx, v)
		s.log.Error(ctx, "submit failed", "file_id", fileID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	s.index.Index(fileID, name, ownerID)

	s.log.Info(ctx, "file submitted", "file_id", fileID, "owner_id", ownerID, "version", v.Version, "size", v.Size)
	return f, nil
}

// FetchFile returns the descriptor and the plaintext of the latest version.
// Checks run in a fixed order: existence, ownership, deletion, version lookup,
// decryption.
func (s *FileService) FetchFile(ctx context.Context, fileID, userID string) (*models.File, io.Reader, error) {
	unlock := s.locks.Lock(fileID)
	defer unlock()

	f, err := s.getOwned(ctx, fileID, userID)
	if err != nil {
		return nil, nil, err
	}
	if f.IsDeleted() {
		return nil, nil, common.ErrorFileDeleted
	}

	v, err := s.versions.Latest(ctx, fileID)
	if err != nil {
		return nil, nil, s.ledgerError(err)
	}

	plain, err := s.openVersion(ctx, v)
	if err != nil {
		s.log.Error(ctx, "fetch failed", "file_id", fileID, "version", v.Version, "error", err)
		return nil, nil, err
	}

	s.log.Info(ctx, "file fetched", "file_id", fileID, "version", v.Version)
	return f, bytes.NewReader(plain), nil
}

// UpdateFile stores new content as the next version under a new key. Earlier
// versions are kept. An empty name keeps the current one.
func (s *FileService) UpdateFile(ctx context.Context, fileID, userID, name string, content io.Reader, size int64) (*models.File, error) {
	if content == nil {
		return nil, fmt.Errorf("%w: content is required", common.ErrorInvalidArgument)
	}

	unlock := s.locks.Lock(fileID)
	defer unlock()

	f, err := s.getOwned(ctx, fileID, userID)
	if err != nil {
		return nil, err
	}
	if f.IsDeleted() {
		return nil, common.ErrorFileDeleted
	}

	v, err := s.sealVersion(ctx, fileID, content, size)
	if err != nil {
		s.log.Error(ctx, "update failed", "file_id", fileID, "error", err)
		return nil, err
	}

	// Descriptor first; a failed append restores prev.
	prev := *f
	if name != "" {
		f.Name = name
	}
	f.Size = v.Size
	f.Checksum = v.Checksum
	f.Touch(s.now())

	if err := s.files.Update(ctx, f); err != nil {
		s.abandonVersion(ctx, v)
		s.log.Error(ctx, "descriptor update failed", "file_id", fileID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	if _, err := s.versions.Append(ctx, v); err != nil {
		if rerr := s.files.Update(ctx, &prev); rerr != nil {
			s.log.Error(ctx, "descriptor restore failed", "file_id", fileID, "error", rerr)
		}
		s.abandonVersion(ctx, v)
		s.log.Error(ctx, "version append failed", "file_id", fileID, "error", err)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	s.reindex(f)

	s.log.Info(ctx, "file updated", "file_id", fileID, "version", v.Version, "size", v.Size)
	return f, nil
}

// RemoveFile marks the file Deleted and purges the ciphertext of every
// version. The descriptor and version history stay readable by id. Removing
// an already deleted file repeats the purge without touching the descriptor.
func (s *FileService) RemoveFile(ctx context.Context, fileID, userID string) (*models.File, error) {
	unlock := s.locks.Lock(fileID)
	defer unlock()

	f, err := s.getOwned(ctx, fileID, userID)
	if err != nil {
		return nil, err
	}

	if !f.IsDeleted() {
		f.Status = models.FileStatusDeleted
		f.Touch(s.now())
		if err := s.files.Update(ctx, f); err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
	}

	s.index.Remove(fileID)

	refs, err := s.versions.BlobRefs(ctx, fileID)
	if err != nil {
		return nil, s.ledgerError(err)
	}

	var purgeErrs []error
	for _, ref := range refs {
		if err := s.blobs.Delete(ctx, ref); err != nil {
			purgeErrs = append(purgeErrs, err)
		}
	}
	if err := errors.Join(purgeErrs...); err != nil {
		s.log.Error(ctx, "blob purge incomplete", "file_id", fileID, "error", err)
		return nil, fmt.Errorf("%w: purge: %w", common.ErrorIOFailure, err)
	}

	if s.shredKeysOnDelete {
		history, err := s.versions.List(ctx, fileID)
		if err != nil {
			return nil, s.ledgerError(err)
		}
		s.shredKeys(ctx, fileID, history)
	}

	s.log.Info(ctx, "file removed", "file_id", fileID, "versions_purged", len(refs), "keys_shredded", s.shredKeysOnDelete)
	return f, nil
}

// ListFiles returns every non-deleted file owned by userID, oldest first.
func (s *FileService) ListFiles(ctx context.Context, userID string) ([]*models.File, error) {
	all, err := s.files.ListByOwner(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	result := make([]*models.File, 0, len(all))
	for _, f := range all {
		if !f.IsDeleted() {
			result = append(result, f)
		}
	}
	return result, nil
}

// FindFiles returns ids of files whose name tokens or owner contain query.
// Results are not restricted to the caller's files.
func (s *FileService) FindFiles(ctx context.Context, query string) ([]string, error) {
	return s.applySearchPolicy(ctx, s.index.Query(query))
}

// FindFilesByTag returns ids of files carrying tag.
func (s *FileService) FindFilesByTag(ctx context.Context, tag string) ([]string, error) {
	return s.applySearchPolicy(ctx, s.index.QueryTag(tag))
}

// TagFile attaches search tags to an active file owned by userID.
func (s *FileService) TagFile(ctx context.Context, fileID, userID string, tags []string) error {
	unlock := s.locks.Lock(fileID)
	defer unlock()

	f, err := s.getOwned(ctx, fileID, userID)
	if err != nil {
		return err
	}
	if f.IsDeleted() {
		return common.ErrorFileDeleted
	}
	if !s.index.AddTags(fileID, tags...) {
		s.index.Index(fileID, f.Name, f.OwnerID)
		s.index.AddTags(fileID, tags...)
	}
	return nil
}

// DescribeFile returns the descriptor and full version history. Deleted files
// can still be described.
func (s *FileService) DescribeFile(ctx context.Context, fileID, userID string) (*FileHistory, error) {
	unlock := s.locks.Lock(fileID)
	defer unlock()

	f, err := s.getOwned(ctx, fileID, userID)
	if err != nil {
		return nil, err
	}
	history, err := s.versions.List(ctx, fileID)
	if err != nil {
		return nil, s.ledgerError(err)
	}
	return &FileHistory{File: f, Versions: history}, nil
}

func (s *FileService) getOwned(ctx context.Context, fileID, userID string) (*models.File, error) {
	f, err := s.files.Get(ctx, fileID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorFileNotFound
		}
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	if f.OwnerID != userID {
		s.log.Warn(ctx, "access denied", "file_id", fileID, "user_id", userID)
		return nil, common.ErrorUnauthorized
	}
	return f, nil
}

// reindex refreshes name tokens and keeps previously attached tags.
func (s *FileService) reindex(f *models.File) {
	var tags []string
	if e, ok := s.index.Entry(f.ID); ok {
		for t := range e.Tags {
			tags = append(tags, t)
		}
	}
	s.index.Index(f.ID, f.Name, f.OwnerID)
	if len(tags) > 0 {
		s.index.AddTags(f.ID, tags...)
	}
}

func (s *FileService) ledgerError(err error) error {
	if errors.Is(err, common.ErrorNoVersions) {
		return err
	}
	return fmt.Errorf("%w: %w", common.ErrorInternal, err)
}

// sealVersion encrypts content under a new key and writes
// nonce||ciphertext||tag to the blob store. The returned version is not yet
// in the ledger.
func (s *FileService) sealVersion(ctx context.Context, fileID string, content io.Reader, size int64) (*models.FileVersion, error) {
	keyID, err := s.vault.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}

	cr := cryptox.NewChecksumReader(content)
	ciphertext, nonce, err := s.engine.Encrypt(keyID, cr)
	if err != nil {
		s.dropKey(ctx, keyID)
		return nil, err
	}
	if size >= 0 && cr.N() != size {
		s.dropKey(ctx, keyID)
		return nil, fmt.Errorf("%w: declared %d bytes, read %d", common.ErrorIOFailure, size, cr.N())
	}

	blob := make([]byte, 0, len(nonce)+len(ciphertext))
	blob = append(blob, nonce...)
	blob = append(blob, ciphertext...)

	v := &models.FileVersion{
		FileID:   fileID,
		BlobRef:  blobs.NewStorageKey(fileID),
		KeyID:    keyID,
		Nonce:    nonce,
		Checksum: cr.Sum(),
		Size:     cr.N(),
	}

	if err := s.blobs.Put(ctx, v.BlobRef, blob); err != nil {
		s.dropKey(ctx, keyID)
		return nil, err
	}
	return v, nil
}

// storeVersion seals content and appends it to the ledger.
func (s *FileService) storeVersion(ctx context.Context, fileID string, content io.Reader, size int64) (*models.FileVersion, error) {
	v, err := s.sealVersion(ctx, fileID, content, size)
	if err != nil {
		return nil, err
	}
	if _, err := s.versions.Append(ctx, v); err != nil {
		s.abandonVersion(ctx, v)
		return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
	}
	return v, nil
}

// abandonVersion removes the blob and key of a version that was never
// committed.
func (s *FileService) abandonVersion(ctx context.Context, v *models.FileVersion) {
	s.discardBlob(ctx, v.BlobRef)
	s.dropKey(ctx, v.KeyID)
}

// openVersion loads and authenticates the blob of v. The blob's nonce prefix
// must match the ledger and the plaintext must match the recorded checksum.
func (s *FileService) openVersion(ctx context.Context, v *models.FileVersion) ([]byte, error) {
	if len(v.Nonce) != cryptox.NonceSize {
		return nil, fmt.Errorf("%w: ledger nonce has %d bytes", common.ErrorInvalidNonce, len(v.Nonce))
	}

	blob, err := s.blobs.Get(ctx, v.BlobRef)
	if err != nil {
		if errors.Is(err, common.ErrorBlobNotFound) {
			return nil, fmt.Errorf("%w: %w", common.ErrorIOFailure, err)
		}
		return nil, err
	}

	if len(blob) <= cryptox.NonceSize {
		return nil, fmt.Errorf("%w: blob too short", common.ErrorAuthenticationFailure)
	}
	if subtle.ConstantTimeCompare(blob[:cryptox.NonceSize], v.Nonce) != 1 {
		return nil, fmt.Errorf("%w: nonce mismatch", common.ErrorAuthenticationFailure)
	}

	plain, err := s.engine.Decrypt(v.KeyID, v.Nonce, bytes.NewReader(blob[cryptox.NonceSize:]))
	if err != nil {
		return nil, err
	}
	if !cryptox.VerifyChecksum(plain, v.Checksum) {
		common.WipeByteArray(plain)
		return nil, common.ErrorChecksumMismatch
	}
	return plain, nil
}

func (s *FileService) applySearchPolicy(ctx context.Context, ids []string) ([]string, error) {
	if ids == nil {
		ids = []string{}
	}
	if !s.searchExcludeDeleted {
		return ids, nil
	}

	visible := make([]string, 0, len(ids))
	for _, id := range ids {
		f, err := s.files.Get(ctx, id)
		if errors.Is(err, common.ErrorNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %w", common.ErrorInternal, err)
		}
		if f.Status == models.FileStatusActive {
			visible = append(visible, id)
		}
	}
	return visible, nil
}

func (s *FileService) shredKeys(ctx context.Context, fileID string, history []*models.FileVersion) {
	seen := make(map[string]struct{}, len(history))
	for _, v := range history {
		if _, ok := seen[v.KeyID]; ok {
			continue
		}
		seen[v.KeyID] = struct{}{}
		if err := s.vault.DestroyKey(v.KeyID); err != nil && !errors.Is(err, common.ErrorKeyNotFound) {
			s.log.Warn(ctx, "key destruction failed", "file_id", fileID, "key_id", v.KeyID, "error", err)
		}
	}
}

func (s *FileService) discardBlob(ctx context.Context, ref string) {
	if err := s.blobs.Delete(ctx, ref); err != nil {
		s.log.Warn(ctx, "orphan blob left behind", "blob_ref", ref, "error", err)
	}
}

func (s *FileService) dropKey(ctx context.Context, keyID string) {
	if err := s.vault.DestroyKey(keyID); err != nil {
		s.log.Warn(ctx, "unused key left in vault", "key_id", keyID, "error", err)
	}
}
