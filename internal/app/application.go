package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/bennydictor/visualmath/internal/api"
	"github.com/bennydictor/visualmath/internal/auth"
	"github.com/bennydictor/visualmath/internal/bus"
	"github.com/bennydictor/visualmath/internal/config"
	"github.com/bennydictor/visualmath/internal/database"
	"github.com/bennydictor/visualmath/internal/hub"
	"github.com/bennydictor/visualmath/internal/platform/logger"
	"github.com/bennydictor/visualmath/internal/presentation"
	"github.com/bennydictor/visualmath/internal/router"
	"github.com/bennydictor/visualmath/internal/session"
	"github.com/bennydictor/visualmath/internal/websocket"
	pkgdatabase "github.com/bennydictor/visualmath/pkg/database"
)

const shutdownTimeout = 15 * time.Second

// Application owns every component of a running server.
// Initialization order: database, sessions, auth, hub, registry, bus,
// engine, router, HTTP.
type Application struct {
	config     *config.Config
	log        *logger.Logger
	dbManager  *database.Manager
	sessions   *session.Manager
	registry   *websocket.Registry
	sessionHub *hub.Hub
	bus        bus.Bus
	engine     *presentation.Engine
	apiServer  *api.Server
	httpServer *http.Server

	cancel   context.CancelFunc
	serveErr chan error
}

// OpenDatabase opens the database described by cfg and brings its schema up
// to date.
func OpenDatabase(cfg *config.Config, log *logger.Logger) (*database.Manager, error) {
	dbConfig := &pkgdatabase.Config{
		DatabasePath:    cfg.Database.Path,
		MaxConnections:  cfg.Database.MaxConnections,
		ConnMaxLifetime: cfg.Database.Timeout,
		ConnMaxIdleTime: cfg.Database.Timeout / 3,
		MigrationsPath:  cfg.Database.MigrationsPath,
	}

	dbManager, err := database.NewManager(dbConfig, log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database manager: %w", err)
	}

	migrations := pkgdatabase.NewMigrationManager(dbManager.GetDB(), pkgdatabase.MigrationsFS(dbConfig.MigrationsPath))
	if err := migrations.ApplyMigrations(); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to apply database migrations: %w", err)
	}
	if err := pkgdatabase.NewSchemaValidator(dbManager.GetDB()).Validate(); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("database schema is invalid: %w", err)
	}
	log.Info("database ready", "path", dbConfig.DatabasePath)
	return dbManager, nil
}

// NewApplication wires all components. Nothing runs until Start.
func NewApplication(cfg *config.Config, log *logger.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dbManager, err := OpenDatabase(cfg, log)
	if err != nil {
		return nil, err
	}

	sessions := session.NewManager(dbManager, log)
	if err := sessions.LoadActiveSessions(context.Background()); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to load active sessions: %w", err)
	}
	authService := auth.NewService(dbManager, dbManager, log)

	sessionHub := hub.NewHub(cfg.Session.QueueSize, cfg.Session.IdleTimeout, log)
	registry := websocket.NewRegistry(log)

	changes := bus.NewNopBus()
	if cfg.Redis.Addr != "" {
		changes, err = bus.NewRedisBus(cfg.Redis, log)
		if err != nil {
			_ = dbManager.Close()
			return nil, fmt.Errorf("failed to connect change bus: %w", err)
		}
	}

	engine := presentation.NewEngine(presentation.Deps{
		Sessions:  sessions,
		Access:    sessions.Access(),
		Users:     dbManager,
		Responses: dbManager,
		Registry:  registry,
		Hub:       sessionHub,
		Bus:       changes,
		OpTimeout: cfg.Session.OpTimeout,
	}, log)

	eventRouter := router.NewRouter(engine, authService, cfg.RateLimit.EventsPerMinute, cfg.Session.OpTimeout, log)
	wsHandler := websocket.NewHandler(eventRouter, cfg.WebSocket, cfg.HTTP.AllowedOrigins, log)

	apiServer := api.NewServer(api.Deps{
		Auth:      authService,
		Sessions:  sessions,
		Engine:    engine,
		Database:  dbManager,
		Registry:  registry,
		WebSocket: http.HandlerFunc(wsHandler.HandleWebSocket),
		Stats: map[string]func() map[string]interface{}{
			"hub":      sessionHub.GetStats,
			"sessions": sessions.GetStats,
		},
	}, cfg.HTTP.AllowedOrigins, log)

	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}
	httpServer.RegisterOnShutdown(registry.CloseAll)

	return &Application{
		config:     cfg,
		log:        log.With("component", "app"),
		dbManager:  dbManager,
		sessions:   sessions,
		registry:   registry,
		sessionHub: sessionHub,
		bus:        changes,
		engine:     engine,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// Start starts the hub and the change forwarder, binds the listen address
// and serves in the background.
func (app *Application) Start(ctx context.Context) error {
	if err := app.sessionHub.Start(); err != nil {
		return fmt.Errorf("failed to start session hub: %w", err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	if err := app.bus.StartForwarder(runCtx, app.engine.HandleChange); err != nil {
		cancel()
		_ = app.sessionHub.Stop()
		return fmt.Errorf("failed to start change forwarder: %w", err)
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", app.httpServer.Addr)
	if err != nil {
		cancel()
		_ = app.sessionHub.Stop()
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.httpServer.Addr = listener.Addr().String()
	app.cancel = cancel
	app.serveErr = make(chan error, 1)

	go func() {
		defer close(app.serveErr)
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.serveErr <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	app.log.Info("visualmath started", "addr", app.httpServer.Addr)
	return nil
}

// Wait blocks until the HTTP server stops and returns its failure, if any.
func (app *Application) Wait() error {
	return <-app.serveErr
}

// Stop shuts down in reverse order: HTTP, change bus, hub, database.
func (app *Application) Stop(ctx context.Context) error {
	app.log.Info("shutting down")

	var errs []error
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
	}
	if app.cancel != nil {
		app.cancel()
	}
	if err := app.bus.Close(); err != nil {
		errs = append(errs, fmt.Errorf("change bus shutdown: %w", err))
	}
	if err := app.sessionHub.Stop(); err != nil && !errors.Is(err, hub.ErrHubNotRunning) {
		errs = append(errs, fmt.Errorf("session hub shutdown: %w", err))
	}
	if err := app.dbManager.Close(); err != nil {
		errs = append(errs, fmt.Errorf("database shutdown: %w", err))
	}

	app.log.Info("shutdown complete")
	return errors.Join(errs...)
}

// Run starts the application and serves until ctx is done or the server
// fails, then shuts down.
func (app *Application) Run(ctx context.Context) error {
	if err := app.Start(ctx); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(app.Wait)
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return app.Stop(shutdownCtx)
	})
	return g.Wait()
}

// GetAddr returns the address the server listens on.
func (app *Application) GetAddr() string {
	return app.httpServer.Addr
}
