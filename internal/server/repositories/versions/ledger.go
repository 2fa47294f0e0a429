// Package versions records the append-only history of encrypted file versions.
package versions

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fileshare/internal/common"
	"github.com/dmitrijs2005/fileshare/internal/server/models"
)

// Ledger is the per-file, append-only list of encrypted versions.
type Ledger interface {
	// Append assigns the next version number (previous max + 1, starting at 1)
	// to v, stores it and returns the number. v.ID and v.CreatedAt are filled
	// in when empty.
	Append(ctx context.Context, v *models.FileVersion) (int, error)
	// Latest returns the highest-numbered version or common.ErrorNoVersions.
	Latest(ctx context.Context, fileID string) (*models.FileVersion, error)
	// BlobRefs lists the blob reference of every version ever written.
	BlobRefs(ctx context.Context, fileID string) ([]string, error)
	// List returns all versions in ascending order.
	List(ctx context.Context, fileID string) ([]*models.FileVersion, error)
}

func validate(v *models.FileVersion) error {
	switch {
	case v == nil:
		return fmt.Errorf("%w: nil version", common.ErrorInvalidArgument)
	case v.FileID == "":
		return fmt.Errorf("%w: empty file id", common.ErrorInvalidArgument)
	case v.BlobRef == "":
		return fmt.Errorf("%w: empty blob ref", common.ErrorInvalidArgument)
	case v.KeyID == "":
		return fmt.Errorf("%w: empty key id", common.ErrorInvalidArgument)
	}
	return nil
}
