package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/citaflow/citaflow/internal/api"
	"github.com/citaflow/citaflow/internal/booking"
	"github.com/citaflow/citaflow/internal/bot"
	"github.com/citaflow/citaflow/internal/config"
	"github.com/citaflow/citaflow/internal/db"
	"github.com/citaflow/citaflow/internal/logger"
	redisclient "github.com/citaflow/citaflow/internal/redis"
	"github.com/citaflow/citaflow/internal/whatsapp"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	log.Info("api-server starting up",
		zap.String("env", cfg.Env),
		zap.String("http_port", cfg.HTTPPort),
		zap.String("version", version),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	pgPool, err := db.ConnectPostgres(pgCtx, cfg.PostgresDSN)
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer pgPool.Close()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	repo := booking.NewPgRepository(pgPool)

	waClient := whatsapp.NewClient(cfg.WhatsAppToken, cfg.WhatsAppPhoneID)
	notifier := whatsapp.NewNotifier(waClient, log)

	svc := booking.NewService(repo, notifier, log, cfg.DefaultTimezone)

	conversations := bot.NewRedisStore(rdb)
	engine := bot.NewEngine(conversations, svc, repo, waClient, log, cfg.DefaultTimezone)

	webhook := whatsapp.NewWebhookHandler(cfg.WhatsAppVerifyToken, func(msg whatsapp.InboundMessage) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		engine.HandleMessage(ctx, msg.From, msg.Text)
	}, log)

	router := api.NewRouter(api.RouterConfig{
		Service: svc,
		Webhook: webhook,
		PgPool:  pgPool,
		Redis:   rdb,
		Logger:  log,
		Env:     cfg.Env,
		Version: version,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-rootCtx.Done():
		log.Info("shutting down api-server")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("http server error", zap.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("graceful shutdown failed", zap.Error(err))
	}
}
