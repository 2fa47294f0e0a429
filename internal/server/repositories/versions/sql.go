package versions

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/fileshare/internal/common"
	"github.com/dmitrijs2005/fileshare/internal/dbx"
	"github.com/dmitrijs2005/fileshare/internal/server/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLLedger stores versions in the file_versions table. Appends run in a
// transaction; the (file_id, version) key rejects a concurrent duplicate.
type SQLLedger struct {
	db      *sql.DB
	dialect dbx.Dialect
}

var _ Ledger = (*SQLLedger)(nil)

func NewSQLLedger(db *sql.DB, dialect dbx.Dialect) *SQLLedger {
	return &SQLLedger{db: db, dialect: dialect}
}

const versionColumns = `id, file_id, version, blob_ref, key_id, nonce, checksum, size, created_at`

func (l *SQLLedger) q(query string) string {
	return dbx.Rebind(l.dialect, query)
}

func (l *SQLLedger) Append(ctx context.Context, v *models.FileVersion) (int, error) {
	if err := validate(v); err != nil {
		return 0, err
	}
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}

	var next int
	err := dbx.WithTx(ctx, l.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		var current int
		query := `SELECT COALESCE(MAX(version), 0) FROM file_versions WHERE file_id = ?`
		if err := tx.QueryRowContext(ctx, l.q(query), v.FileID).Scan(&current); err != nil {
			return fmt.Errorf("failed to select max version: %w", err)
		}
		next = current + 1

		query = `INSERT INTO file_versions (` + versionColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
		_, err := tx.ExecContext(ctx, l.q(query),
			v.ID, v.FileID, next, v.BlobRef, v.KeyID, v.Nonce, v.Checksum, v.Size, v.CreatedAt.UTC())
		if isUniqueViolation(err) {
			return common.ErrVersionConflict
		}
		if err != nil {
			return fmt.Errorf("db error: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	v.Version = next
	return next, nil
}

func (l *SQLLedger) Latest(ctx context.Context, fileID string) (*models.FileVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM file_versions WHERE file_id = ? ORDER BY version DESC LIMIT 1`
	v, err := scanVersion(l.db.QueryRowContext(ctx, l.q(query), fileID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrorNoVersions
	}
	if err != nil {
		return nil, fmt.Errorf("failed to select latest version: %w", err)
	}
	return v, nil
}

func (l *SQLLedger) BlobRefs(ctx context.Context, fileID string) ([]string, error) {
	query := `SELECT blob_ref FROM file_versions WHERE file_id = ? ORDER BY version`
	rows, err := l.db.QueryContext(ctx, l.q(query), fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to select blob refs: %w", err)
	}
	defer rows.Close()

	refs := make([]string, 0)
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, err
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return refs, nil
}

func (l *SQLLedger) List(ctx context.Context, fileID string) ([]*models.FileVersion, error) {
	query := `SELECT ` + versionColumns + ` FROM file_versions WHERE file_id = ? ORDER BY version`
	rows, err := l.db.QueryContext(ctx, l.q(query), fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to select versions: %w", err)
	}
	defer rows.Close()

	out := make([]*models.FileVersion, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(s scanner) (*models.FileVersion, error) {
	var v models.FileVersion
	if err := s.Scan(&v.ID, &v.FileID, &v.Version, &v.BlobRef, &v.KeyID, &v.Nonce, &v.Checksum, &v.Size, &v.CreatedAt); err != nil {
		return nil, err
	}
	v.CreatedAt = v.CreatedAt.UTC()
	return &v, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return false
}
