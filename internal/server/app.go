// Package server initializes and runs the main application server.
// It opens the metadata store, runs migrations, wires the services to the
// blob store client and the upload staging guard, and starts the HTTP API.
package server

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/karenhirayama/filevault/internal/logging"
	"github.com/karenhirayama/filevault/internal/server/blobstore"
	"github.com/karenhirayama/filevault/internal/server/config"
	"github.com/karenhirayama/filevault/internal/server/httpapi"
	"github.com/karenhirayama/filevault/internal/server/repositories/repomanager"
	"github.com/karenhirayama/filevault/internal/server/services"
	"github.com/karenhirayama/filevault/internal/server/staging"
)

type App struct {
	config        *config.Config
	logger        logging.Logger
	db            *sql.DB
	userService   *services.UserService
	folderService *services.FolderService
	fileService   *services.FileService
	guard         *staging.Guard
}

func NewApp(c *config.Config) (*App, error) {

	logger := logging.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	db, err := sql.Open("pgx", c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	rm := repomanager.NewPostgresRepositoryManager()
	if err := rm.RunMigrations(context.Background(), db); err != nil {
		return nil, fmt.Errorf("migration error: %w", err)
	}

	guard, err := staging.NewGuard(c.StagingDir, logger)
	if err != nil {
		return nil, fmt.Errorf("staging init error: %w", err)
	}

	blob := blobstore.NewS3Client(c)

	us := services.NewUserService(db, rm, c)
	fos := services.NewFolderService(db, rm)
	fis := services.NewFileService(db, rm, blob, logger)

	return &App{
		config:        c,
		logger:        logger,
		db:            db,
		userService:   us,
		folderService: fos,
		fileService:   fis,
		guard:         guard,
	}, nil
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

func (app *App) startHTTPServer(ctx context.Context, cancelFunc context.CancelFunc) {

	s, err := httpapi.NewServer(app.config.EndpointAddr, app.logger,
		app.userService, app.folderService, app.fileService, app.guard, app.config.SecretKey)

	if err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
		return
	}

	if err := s.Run(ctx); err != nil {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

func (app *App) Run(ctx context.Context) {

	ctx, cancelFunc := context.WithCancel(ctx)

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startHTTPServer(ctx, cancelFunc)
	}()

	wg.Wait()

	if err := app.db.Close(); err != nil {
		app.logger.Error(ctx, "db close error", "error", err)
	}
}
