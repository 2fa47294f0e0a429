// Package files stores file descriptors.
package files

import (
	"context"

	"github.com/dmitrijs2005/fileshare/internal/server/models"
)

// Repository persists file descriptors. Misses are reported as common.ErrorNotFound.
type Repository interface {
	Create(ctx context.Context, file *models.File) error
	Get(ctx context.Context, id string) (*models.File, error)
	Update(ctx context.Context, file *models.File) error
	// ListByOwner returns every descriptor of ownerID regardless of status,
	// oldest first.
	ListByOwner(ctx context.Context, ownerID string) ([]*models.File, error)
}
