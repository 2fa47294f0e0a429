package repomanager

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dmitrijs2005/fileshare/internal/dbx"
	"github.com/dmitrijs2005/fileshare/internal/server/migrations"
	"github.com/dmitrijs2005/fileshare/internal/server/repositories/files"
	"github.com/dmitrijs2005/fileshare/internal/server/repositories/versions"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// SQLRepositoryManager vends SQL-backed repositories for PostgreSQL or SQLite.
type SQLRepositoryManager struct {
	db      *sql.DB
	dialect dbx.Dialect
}

func NewSQLRepositoryManager(db *sql.DB, dialect dbx.Dialect) *SQLRepositoryManager {
	return &SQLRepositoryManager{db: db, dialect: dialect}
}

func (m *SQLRepositoryManager) Files() files.Repository {
	return files.NewSQLRepository(m.db, m.dialect)
}

func (m *SQLRepositoryManager) Versions() versions.Ledger {
	return versions.NewSQLLedger(m.db, m.dialect)
}

func (m *SQLRepositoryManager) DB() *sql.DB { return m.db }

func (m *SQLRepositoryManager) Close() error { return m.db.Close() }

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// RunMigrations applies the embedded migrations of the manager's dialect.
func (m *SQLRepositoryManager) RunMigrations(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(m.dialect.GooseDialect()); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, m.db, string(m.dialect)); err != nil {
		return err
	}
	return nil
}

// sqlOpen is a seam for tests.
var sqlOpen = sql.Open

func openDB(ctx context.Context, dialect dbx.Dialect, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("%s: empty dsn", dialect)
	}
	db, err := sqlOpen(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == dbx.SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}
	return db, nil
}
