package files

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/dmitrijs2005/fileshare/internal/common"
	"github.com/dmitrijs2005/fileshare/internal/server/models"
)

// MemoryRepository keeps descriptors in a map. Callers always get copies.
type MemoryRepository struct {
	mu    sync.RWMutex
	files map[string]models.File
}

var _ Repository = (*MemoryRepository)(nil)

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{files: make(map[string]models.File)}
}

func (r *MemoryRepository) Create(_ context.Context, file *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[file.ID]; ok {
		return fmt.Errorf("file %s already exists", file.ID)
	}
	r.files[file.ID] = *file
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id string) (*models.File, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	f, ok := r.files[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	return &f, nil
}

func (r *MemoryRepository) Update(_ context.Context, file *models.File) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.files[file.ID]; !ok {
		return common.ErrorNotFound
	}
	r.files[file.ID] = *file
	return nil
}

func (r *MemoryRepository) ListByOwner(_ context.Context, ownerID string) ([]*models.File, error) {
	r.mu.RLock()
	result := make([]*models.File, 0)
	for _, f := range r.files {
		if f.OwnerID == ownerID {
			result = append(result, &f)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(result, func(a, b *models.File) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return result, nil
}
