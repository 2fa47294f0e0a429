// Package server wires the fileshare components together: metadata and blob
// storage, the key vault and cipher engine, the file service and its HTTP
// transport. It also handles signals and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/dmitrijs2005/fileshare/internal/cryptox"
	"github.com/dmitrijs2005/fileshare/internal/logging"
	"github.com/dmitrijs2005/fileshare/internal/server/config"
	"github.com/dmitrijs2005/fileshare/internal/server/repositories/blobs"
	"github.com/dmitrijs2005/fileshare/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/fileshare/internal/server/search"
	"github.com/dmitrijs2005/fileshare/internal/server/services"

	fshttp "github.com/dmitrijs2005/fileshare/internal/server/http"
)

type App struct {
	config      *config.Config
	logger      logging.Logger
	repos       repomanager.RepositoryManager
	blobs       blobs.Store
	fileService *services.FileService
	httpServer  *fshttp.HTTPServer
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {
	return newApp(ctx, c, os.Stdout)
}

func newApp(ctx context.Context, c *config.Config, logOut io.Writer) (*App, error) {

	logger, err := logging.New(c.LogFormat, c.LogLevel, logOut)
	if err != nil {
		return nil, fmt.Errorf("logger init error: %w", err)
	}

	rm, err := repomanager.Open(ctx, c.MetadataBackend, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db init error: %w", err)
	}
	if err := rm.RunMigrations(ctx); err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("migrations error: %w", err)
	}

	store, err := blobs.New(ctx, blobs.Config{
		Backend:  c.BlobBackend,
		BoltPath: c.BoltPath,
		S3: blobs.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3RootUser,
			SecretKey:    c.S3RootPassword,
			BaseEndpoint: c.S3BaseEndpoint,
			Bucket:       c.S3Bucket,
		},
	})
	if err != nil {
		_ = rm.Close()
		return nil, fmt.Errorf("blob store init error: %w", err)
	}

	vault, err := newVault(c)
	if err != nil {
		_ = store.Close()
		_ = rm.Close()
		return nil, fmt.Errorf("key vault init error: %w", err)
	}

	engine, err := cryptox.NewEngine(c.CipherAlgorithm, vault, c.ChunkSize)
	if err != nil {
		_ = store.Close()
		_ = rm.Close()
		return nil, fmt.Errorf("cipher init error: %w", err)
	}

	fs := services.NewFileService(rm, store, vault, engine, search.NewIndex(), logger, c)

	handler := fshttp.NewFileHandler(fs, logger, c.MaxUploadSize)
	router := fshttp.NewRouter(handler, []byte(c.SecretKey), fshttp.NewRateLimiter(c.RateLimitRPS, c.RateLimitBurst), logger)
	hs := fshttp.NewHTTPServer(c.EndpointAddrHTTP, router, logger, c.ShutdownTimeout)

	logger.Info(ctx, "components ready",
		"metadata_backend", c.MetadataBackend,
		"blob_backend", c.BlobBackend,
		"cipher", engine.Algorithm(),
		"shred_keys_on_delete", c.ShredKeysOnDelete,
		"search_exclude_deleted", c.SearchExcludeDeleted,
	)

	return &App{config: c, logger: logger, repos: rm, blobs: store, fileService: fs, httpServer: hs}, nil
}

// newVault derives the master key from the configured passphrase, or uses a
// random one. Keys held by a random vault do not survive a restart.
func newVault(c *config.Config) (*cryptox.MemoryVault, error) {
	if c.MasterPassphrase != "" {
		return cryptox.NewMemoryVaultFromPassphrase([]byte(c.MasterPassphrase), []byte(c.MasterSalt))
	}
	return cryptox.NewRandomMemoryVault()
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves HTTP until ctx is cancelled or a termination signal arrives,
// then releases storage.
func (app *App) Run(ctx context.Context) error {

	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	runErr := app.httpServer.Run(ctx)
	if runErr != nil {
		app.logger.Error(ctx, "http server failed", "error", runErr)
	}

	app.logger.Info(ctx, "Shutting down...")
	return errors.Join(runErr, app.close())
}

func (app *App) close() error {
	var errs []error
	if err := app.blobs.Close(); err != nil {
		errs = append(errs, fmt.Errorf("blob store close: %w", err))
	}
	if err := app.repos.Close(); err != nil {
		errs = append(errs, fmt.Errorf("db close: %w", err))
	}
	if s, ok := app.logger.(interface{ Sync() error }); ok {
		_ = s.Sync()
	}
	return errors.Join(errs...)
}
