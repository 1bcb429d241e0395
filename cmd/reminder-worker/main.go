package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/citaflow/citaflow/internal/booking"
	"github.com/citaflow/citaflow/internal/config"
	"github.com/citaflow/citaflow/internal/db"
	"github.com/citaflow/citaflow/internal/logger"
	"github.com/citaflow/citaflow/internal/reminder"
	"github.com/citaflow/citaflow/internal/whatsapp"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("config load error: " + err.Error())
	}

	log := logger.New(cfg.LogLevel)
	defer log.Sync()

	log.Info("reminder-worker starting up",
		zap.String("env", cfg.Env),
		zap.String("cron", cfg.ReminderSpec),
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

	repo := booking.NewPgRepository(pgPool)
	waClient := whatsapp.NewClient(cfg.WhatsAppToken, cfg.WhatsAppPhoneID)
	svc := reminder.NewService(repo, waClient, log)

	run := func() {
		ctx, cancel := context.WithTimeout(rootCtx, 5*time.Minute)
		defer cancel()
		svc.Run(ctx)
	}

	// Catch up immediately on start, then follow the schedule.
	run()

	c := cron.New()
	if _, err := c.AddFunc(cfg.ReminderSpec, run); err != nil {
		log.Fatal("invalid reminder cron spec", zap.String("spec", cfg.ReminderSpec), zap.Error(err))
	}
	c.Start()

	<-rootCtx.Done()

	log.Info("shutting down reminder-worker")
	<-c.Stop().Done()
}
