// -----------------------------------------------------------------------
// App - dependency wiring for the conveyor service
// -----------------------------------------------------------------------

package app

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/vistaview/conveyor/internal/common"
	"github.com/vistaview/conveyor/internal/handlers"
	"github.com/vistaview/conveyor/internal/queue"
	"github.com/vistaview/conveyor/internal/services/embed"
	"github.com/vistaview/conveyor/internal/services/fetch"
	"github.com/vistaview/conveyor/internal/services/mailer"
	"github.com/vistaview/conveyor/internal/services/parse"
	"github.com/vistaview/conveyor/internal/services/progress"
	"github.com/vistaview/conveyor/internal/storage/sqlite"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	DB           *sqlite.DB
	JobStorage   *sqlite.JobStorage
	UnitStorage  *sqlite.UnitStorage
	StatsStorage *sqlite.StatsStorage
	MailStorage  *sqlite.MailStorage

	// Progress streaming
	ProgressChannel *progress.Channel

	// Task executors
	FetchService  *fetch.Service
	ParseService  *parse.Service
	EmbedService  *embed.Service
	MailerService *mailer.Service

	// Queue
	Registry   *queue.Registry
	Dispatcher *queue.Dispatcher
	Scheduler  *queue.Scheduler

	// HTTP handlers
	JobHandler      *handlers.JobHandler
	PipelineHandler *handlers.PipelineHandler
	ProgressHandler *handlers.ProgressHandler
	SearchHandler   *handlers.SearchHandler
	StatusHandler   *handlers.StatusHandler
	WSHandler       *handlers.WebSocketHandler
}

// New initializes the application with all dependencies
func New(ctx context.Context, cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	db, err := sqlite.NewDB(logger, &cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.DB = db
	app.JobStorage = sqlite.NewJobStorage(db, logger)
	app.UnitStorage = sqlite.NewUnitStorage(db, logger)
	app.StatsStorage = sqlite.NewStatsStorage(db, logger)
	app.MailStorage = sqlite.NewMailStorage(db, logger)

	app.ProgressChannel = progress.NewChannel(cfg.Progress.BufferSize, logger)

	provider, err := embed.NewProvider(ctx, cfg.Embedding, logger)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize embedding provider: %w", err)
	}

	app.FetchService = fetch.NewService(cfg.Fetch, cfg.Queue, logger,
		app.JobStorage, app.UnitStorage, app.StatsStorage)
	app.ParseService = parse.NewService(cfg.Parse, cfg.Queue, cfg.Server.UploadDir, logger,
		app.JobStorage, app.UnitStorage, app.StatsStorage, app.ProgressChannel)
	app.EmbedService = embed.NewService(cfg.Embedding, logger, provider,
		app.UnitStorage, app.StatsStorage)
	app.MailerService = mailer.NewService(cfg.Mail, logger,
		app.MailStorage, app.StatsStorage)

	app.Registry = queue.NewRegistry(
		app.FetchService,
		app.ParseService,
		app.EmbedService,
		app.MailerService,
	)
	app.Dispatcher = queue.NewDispatcher(cfg.Queue, logger, app.JobStorage, app.Registry)
	app.Scheduler = queue.NewScheduler(cfg.Queue, logger, app.Dispatcher)

	app.WSHandler = handlers.NewWebSocketHandler(logger, app.StatsStorage)
	app.Dispatcher.SetNotifier(app.WSHandler)

	app.JobHandler = handlers.NewJobHandler(cfg.Queue, logger, app.JobStorage, app.Dispatcher)
	app.PipelineHandler = handlers.NewPipelineHandler(cfg.Server, cfg.Queue, logger, app.JobStorage)
	app.ProgressHandler = handlers.NewProgressHandler(logger, app.ProgressChannel)
	app.SearchHandler = handlers.NewSearchHandler(logger, app.EmbedService)
	app.StatusHandler = handlers.NewStatusHandler(logger, app.JobStorage, app.StatsStorage)

	logger.Info().
		Str("database", cfg.Storage.Path).
		Str("embed_provider", provider.Name()).
		Msg("Application initialized")

	return app, nil
}

// Start begins background processing
func (a *App) Start(ctx context.Context) {
	a.Scheduler.Start(ctx)
}

// Shutdown stops background processing and releases resources
func (a *App) Shutdown() error {
	a.Scheduler.Stop()

	if err := a.DB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	a.Logger.Info().Msg("Application stopped")
	return nil
}
