package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/storage"
	"github.com/phrazzld/todo-api/internal/config"
	"github.com/phrazzld/todo-api/internal/events"
	"github.com/phrazzld/todo-api/internal/pipeline"
	"github.com/phrazzld/todo-api/internal/platform/gateway"
	"github.com/phrazzld/todo-api/internal/platform/gcs"
	"github.com/phrazzld/todo-api/internal/platform/postgres"
	"github.com/phrazzld/todo-api/internal/service"
	"github.com/phrazzld/todo-api/internal/service/auth"
	"github.com/phrazzld/todo-api/internal/store"
	"github.com/phrazzld/todo-api/internal/thumbnail"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	storageClient *storage.Client
	attachments   *gcs.Bucket
	thumbnails    *gcs.Bucket

	taskStore       store.TaskStore
	connectionStore store.ConnectionStore

	jwtService  auth.JWTService
	taskService service.TaskService

	registry    *pipeline.Registry
	hub         *gateway.Hub
	emitter     *events.InMemoryEmitter
	broadcaster *pipeline.Broadcaster
	router      *pipeline.UploadRouter
}

// newApplication creates a new application instance with all dependencies initialized.
// The database connection is owned by the application from here on.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}

	app.taskStore = postgres.NewPostgresTaskStore(db, logger)
	app.connectionStore = postgres.NewPostgresConnectionStore(db, cfg.Registry.PageSize, logger)

	if err := app.setupStorage(ctx); err != nil {
		return nil, err
	}

	app.taskService, err = service.NewTaskService(
		app.taskStore,
		app.attachments,
		time.Duration(cfg.Storage.UploadURLExpiryMinutes)*time.Minute,
		logger,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create task service: %w", err)
	}

	if err := app.setupPipeline(); err != nil {
		return nil, err
	}

	logger.Info("application initialized",
		slog.Int("upload_handlers", app.emitter.HandlerCount()),
		slog.String("attachments_bucket", app.attachments.Name()),
		slog.String("thumbnails_bucket", app.thumbnails.Name()))
	return app, nil
}

// setupStorage creates the storage client and the two bucket handles.
func (app *application) setupStorage(ctx context.Context) error {
	cfg := app.config.Storage

	client, err := gcs.NewClient(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}
	app.storageClient = client

	app.attachments, err = gcs.NewBucket(client, cfg.AttachmentsBucket, cfg.PublicBaseURL, app.logger)
	if err != nil {
		return fmt.Errorf("failed to open attachments bucket: %w", err)
	}
	app.thumbnails, err = gcs.NewBucket(client, cfg.ThumbnailsBucket, cfg.PublicBaseURL, app.logger)
	if err != nil {
		return fmt.Errorf("failed to open thumbnails bucket: %w", err)
	}
	return nil
}

// setupPipeline builds the connection registry, the websocket hub, the
// push gateway and the two upload consumers, and registers the consumers
// with the emitter.
func (app *application) setupPipeline() error {
	cfg := app.config
	var err error

	app.registry, err = pipeline.NewRegistry(app.connectionStore, time.Now, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create connection registry: %w", err)
	}

	app.hub, err = gateway.NewHub(app.registry, gateway.HubConfig{
		PingInterval: time.Duration(cfg.Gateway.PingIntervalSeconds) * time.Second,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create websocket hub: %w", err)
	}

	var push pipeline.Gateway = app.hub
	if !cfg.Gateway.InProcess {
		push, err = gateway.NewClient(
			cfg.Gateway.Endpoint,
			cfg.Gateway.Stage,
			cfg.Server.InternalToken,
			time.Duration(cfg.Gateway.PushTimeoutSeconds)*time.Second,
			nil,
			app.logger,
		)
		if err != nil {
			return fmt.Errorf("failed to create gateway client: %w", err)
		}
	}

	transformer, err := thumbnail.NewTransformer(
		app.attachments,
		app.thumbnails,
		cfg.Pipeline.ThumbnailQuality,
		app.logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create thumbnail transformer: %w", err)
	}

	app.router, err = pipeline.NewUploadRouter(transformer, app.taskStore, pipeline.UploadRouterConfig{
		ThumbnailBaseURL: app.thumbnails.BaseURL(),
		Concurrency:      cfg.Pipeline.Concurrency,
	}, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create upload router: %w", err)
	}

	app.broadcaster, err = pipeline.NewBroadcaster(app.registry, push, cfg.Pipeline.Concurrency, app.logger)
	if err != nil {
		return fmt.Errorf("failed to create broadcaster: %w", err)
	}

	app.emitter = events.NewInMemoryEmitter(app.logger)
	app.emitter.RegisterHandler("thumbnails", app.router)
	app.emitter.RegisterHandler("notifications", app.broadcaster)
	return nil
}

// Run starts the HTTP server and blocks until ctx is cancelled or the
// server fails.
func (app *application) Run(ctx context.Context) error {
	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.hub != nil {
		app.hub.Close()
	}

	if app.storageClient != nil {
		if err := app.storageClient.Close(); err != nil {
			app.logger.Error("error closing storage client", slog.String("error", err.Error()))
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("error closing database connection", slog.String("error", err.Error()))
		}
	}

	app.logger.Info("application shutdown completed")
}
