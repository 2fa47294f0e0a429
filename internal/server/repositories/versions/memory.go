package versions

import (
	"context"
	"sync"
	"time"

	"github.com/dmitrijs2005/fileshare/internal/common"
	"github.com/dmitrijs2005/fileshare/internal/server/models"
	"github.com/google/uuid"
)

// MemoryLedger keeps versions in process memory.
type MemoryLedger struct {
	mu       sync.RWMutex
	versions map[string][]models.FileVersion
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{versions: make(map[string][]models.FileVersion)}
}

func cloneVersion(v models.FileVersion) *models.FileVersion {
	v.Nonce = append([]byte(nil), v.Nonce...)
	return &v
}

func (l *MemoryLedger) Append(_ context.Context, v *models.FileVersion) (int, error) {
	if err := validate(v); err != nil {
		return 0, err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	history := l.versions[v.FileID]
	v.Version = len(history) + 1
	l.versions[v.FileID] = append(history, *cloneVersion(*v))
	return v.Version, nil
}

func (l *MemoryLedger) Latest(_ context.Context, fileID string) (*models.FileVersion, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.versions[fileID]
	if len(history) == 0 {
		return nil, common.ErrorNoVersions
	}
	return cloneVersion(history[len(history)-1]), nil
}

func (l *MemoryLedger) BlobRefs(_ context.Context, fileID string) ([]string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.versions[fileID]
	refs := make([]string, 0, len(history))
	for _, v := range history {
		refs = append(refs, v.BlobRef)
	}
	return refs, nil
}

func (l *MemoryLedger) List(_ context.Context, fileID string) ([]*models.FileVersion, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	history := l.versions[fileID]
	out := make([]*models.FileVersion, 0, len(history))
	for _, v := range history {
		out = append(out, cloneVersion(v))
	}
	return out, nil
}
