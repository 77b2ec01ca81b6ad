// Package server initializes and runs the main application server.
// It connects the database, applies migrations, wires the optional Redis
// revocation cache and RabbitMQ push pipeline, and starts the HTTP API
// with graceful shutdown.
package server

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fittrack/server/internal/logging"
	"github.com/fittrack/server/internal/server/config"
	"github.com/fittrack/server/internal/server/httpapi"
	"github.com/fittrack/server/internal/server/push"
	"github.com/fittrack/server/internal/server/repositories/blacklist"
	"github.com/fittrack/server/internal/server/repositories/repomanager"
	"github.com/fittrack/server/internal/server/services"
)

type App struct {
	config *config.Config
	logger logging.Logger

	db        *sql.DB
	rdb       *redis.Client
	publisher *push.Publisher
	worker    *push.Worker

	authService     *services.AuthService
	sessionService  *services.SessionService
	pushService     *services.PushService
	progressService *services.ProgressService
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {

	logger := logging.NewJSON(slog.LevelInfo)

	db, err := sql.Open("pgx", cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	m := repomanager.NewPostgresRepositoryManager()
	if err := m.RunMigrations(ctx, db); err != nil {
		return nil, fmt.Errorf("db migration error: %w", err)
	}

	app := &App{config: cfg, logger: logger, db: db}

	var ledger blacklist.Ledger = m.Blacklist(db)
	if cfg.RedisAddr != "" {
		app.rdb = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		ledger = blacklist.NewCachedLedger(ledger, app.rdb, logger)
		logger.Info(ctx, "revocation cache enabled", "addr", cfg.RedisAddr)
	}

	app.authService = services.NewAuthService(db, m, ledger, cfg, logger)
	app.pushService = services.NewPushService(db, m, nil, logger)

	if cfg.AMQPURL != "" {
		publisher, err := push.NewPublisher(cfg.AMQPURL, cfg.PushQueue)
		if err != nil {
			return nil, fmt.Errorf("push queue init error: %w", err)
		}
		app.publisher = publisher
		app.pushService = services.NewPushService(db, m, publisher, logger)

		if cfg.FCMEndpoint != "" {
			sender := push.NewFCMSender(cfg.FCMEndpoint, cfg.FCMAuthToken)
			worker, err := push.NewWorker(cfg.AMQPURL, cfg.PushQueue, sender, m.PushTokens(db), logger)
			if err != nil {
				return nil, fmt.Errorf("push worker init error: %w", err)
			}
			app.worker = worker
		}
	}

	app.sessionService = services.NewSessionService(db, m, cfg, logger, app.pushService)
	app.progressService = services.NewProgressService(db, m)

	return app, nil
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

	h := httpapi.NewHandler(app.authService, app.sessionService, app.pushService, app.progressService, app.logger)

	srv := &http.Server{
		Addr:    app.config.EndpointAddrHTTP,
		Handler: httpapi.NewRouter(h),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			app.logger.Error(ctx, "http shutdown error", "error", err)
		}
	}()

	app.logger.Info(ctx, "http server listening", "addr", app.config.EndpointAddrHTTP)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		app.logger.Error(ctx, err.Error())
		cancelFunc()
	}
}

// startBlacklistSweeper periodically prunes expired revocation entries so the
// blacklist table does not grow without bound.
func (app *App) startBlacklistSweeper(ctx context.Context) {
	ticker := time.NewTicker(app.config.BlacklistSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := app.authService.SweepBlacklist(ctx)
			if err != nil {
				app.logger.Warn(ctx, "blacklist sweep failed", "error", err)
				continue
			}
			if n > 0 {
				app.logger.Info(ctx, "blacklist sweep", "pruned", n)
			}
		}
	}
}

func (app *App) startPushWorker(ctx context.Context, cancelFunc context.CancelFunc) {
	if err := app.worker.Run(ctx); err != nil {
		app.logger.Error(ctx, "push worker error", "error", err)
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

	wg.Add(1)
	go func() {
		defer wg.Done()
		app.startBlacklistSweeper(ctx)
	}()

	if app.worker != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			app.startPushWorker(ctx, cancelFunc)
		}()
	}

	wg.Wait()

	app.close(context.Background())
}

func (app *App) close(ctx context.Context) {
	if app.worker != nil {
		if err := app.worker.Close(); err != nil {
			app.logger.Warn(ctx, "push worker close error", "error", err)
		}
	}
	if app.publisher != nil {
		if err := app.publisher.Close(); err != nil {
			app.logger.Warn(ctx, "push queue close error", "error", err)
		}
	}
	if app.rdb != nil {
		if err := app.rdb.Close(); err != nil {
			app.logger.Warn(ctx, "redis close error", "error", err)
		}
	}
	if err := app.db.Close(); err != nil {
		app.logger.Warn(ctx, "db close error", "error", err)
	}
}
