package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/lingvodoc/lingvodoc/internal/acl"
	"github.com/lingvodoc/lingvodoc/internal/app"
	"github.com/lingvodoc/lingvodoc/internal/auth"
	"github.com/lingvodoc/lingvodoc/internal/observability"
	"github.com/lingvodoc/lingvodoc/internal/platform/cache"
	"github.com/lingvodoc/lingvodoc/internal/platform/db"
	"github.com/lingvodoc/lingvodoc/internal/shared"
	"github.com/lingvodoc/lingvodoc/jobs"
)

type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

func main() {
	if app.SkipStartup("lingvodoc") {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns, AppName: "lingvodoc"})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr, cfg.RedisPassword, 0)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, cfg.SessionCookie, cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	if cfg.Desktop {
		sessionManager.UseClientCookie(cfg.ClientCookie)
	}
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)
	metrics := observability.NewMetrics()

	authService := auth.NewService(auth.NewRepository(dbpool))
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	engine := acl.NewEngine(logger, acl.EngineConfig{
		Desktop:      cfg.Desktop,
		ClientCookie: cfg.ClientCookie,
		Metrics:      acl.NewMetrics(metrics.Registerer()),
		Forget:       sessionManager.Forget,
	})
	reader := acl.NewPGReader(dbpool)
	aclMiddleware := acl.Middleware{Engine: engine, Reader: reader, Logger: logger}

	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword}
	jobClient := jobs.NewClient(redisOpts)
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()
	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		_ = inspector.Close()
	}()

	var enqueuer acl.CrossCheckEnqueuer
	if cfg.CrossCheckSample > 0 {
		enqueuer = jobClient
	}
	aclHandler := acl.NewHandler(acl.HandlerConfig{
		Logger:      logger,
		Engine:      engine,
		Reader:      reader,
		Middleware:  aclMiddleware,
		Enqueuer:    enqueuer,
		SampleRatio: cfg.CrossCheckSample,
	})

	router := app.NewRouter(app.RouterParams{
		Logger:         logger,
		Config:         cfg,
		SessionManager: sessionManager,
		CSRFManager:    csrfManager,
		AuthHandler:    authHandler,
		ACLHandler:     aclHandler,
		ACLMiddleware:  aclMiddleware,
		JobHandler:     jobs.NewHandler(inspector, logger),
		Metrics:        metrics,
		Checks: map[string]app.Pinger{
			"postgres": dbpool,
			"redis":    redisPinger{client: redisClient},
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.Bool("desktop", cfg.Desktop))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}
