// Package repomanager selects the metadata backend and vends the descriptor
// repository and version ledger bound to it.
package repomanager

import (
	"context"
	"fmt"

	"github.com/dmitrijs2005/fileshare/internal/dbx"
	"github.com/dmitrijs2005/fileshare/internal/server/repositories/files"
	"github.com/dmitrijs2005/fileshare/internal/server/repositories/versions"
)

const BackendMemory = "memory"

type RepositoryManager interface {
	Files() files.Repository
	Versions() versions.Ledger
	// RunMigrations brings the schema up to date. A no-op for memory.
	RunMigrations(ctx context.Context) error
	Close() error
}

// Open builds a manager for backend ("memory", "postgres" or "sqlite").
// SQL backends connect to dsn but are not migrated.
func Open(ctx context.Context, backend, dsn string) (RepositoryManager, error) {
	if backend == "" || backend == BackendMemory {
		return NewMemoryRepositoryManager(), nil
	}

	dialect, err := dbx.ParseDialect(backend)
	if err != nil {
		return nil, fmt.Errorf("metadata backend: %w", err)
	}
	db, err := openDB(ctx, dialect, dsn)
	if err != nil {
		return nil, err
	}
	return NewSQLRepositoryManager(db, dialect), nil
}

// MemoryRepositoryManager keeps all metadata in process memory.
type MemoryRepositoryManager struct {
	files    *files.MemoryRepository
	versions *versions.MemoryLedger
}

func NewMemoryRepositoryManager() *MemoryRepositoryManager {
	return &MemoryRepositoryManager{
		files:    files.NewMemoryRepository(),
		versions: versions.NewMemoryLedger(),
	}
}

func (m *MemoryRepositoryManager) Files() files.Repository            { return m.files }
func (m *MemoryRepositoryManager) Versions() versions.Ledger          { return m.versions }
func (m *MemoryRepositoryManager) RunMigrations(context.Context) error { return nil }
func (m *MemoryRepositoryManager) Close() error                        { return nil }
