package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/postpilot-hq/postpilot/internal/api"
	"github.com/postpilot-hq/postpilot/internal/content"
	"github.com/postpilot-hq/postpilot/internal/domain/repositories"
	"github.com/postpilot-hq/postpilot/internal/domain/services"
	"github.com/postpilot-hq/postpilot/internal/governor"
	"github.com/postpilot-hq/postpilot/internal/maintenance"
	"github.com/postpilot-hq/postpilot/internal/pkg/config"
	"github.com/postpilot-hq/postpilot/internal/pkg/database"
	"github.com/postpilot-hq/postpilot/internal/pkg/httpclient"
	"github.com/postpilot-hq/postpilot/internal/pkg/logger"
	pkgredis "github.com/postpilot-hq/postpilot/internal/pkg/redis"
	"github.com/postpilot-hq/postpilot/internal/publisher"
	"github.com/postpilot-hq/postpilot/internal/scheduler"
	"github.com/postpilot-hq/postpilot/internal/scheduler/recurrence"
	"github.com/postpilot-hq/postpilot/internal/scheduler/store"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(cfg.App.Environment, cfg.App.Debug)
	log.Info().Str("app", cfg.App.Name).Str("environment", cfg.App.Environment).Msg("Starting")

	db, err := database.NewGormDB(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	if err := database.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Redis is optional. Without it the sweep lock and notification
	// cooldowns degrade to single-process behavior.
	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled {
		redisClient, err = pkgredis.NewClient(&cfg.Redis)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to Redis")
		}
	}

	// Repositories
	scheduleRepo := repositories.NewScheduleRepository(db)
	postRepo := repositories.NewPostRepository(db)
	usageRepo := repositories.NewUsageRepository(db)
	activityRepo := repositories.NewActivityRepository(db)
	settingRepo := repositories.NewSettingRepository(db)

	// Services
	settingsSvc := services.NewSettingsService(settingRepo, cfg.Scheduler, cfg.Governor)
	calculator := recurrence.NewCalculator()
	scheduleSvc := services.NewScheduleService(scheduleRepo, calculator)

	// Engine stores
	engineStore := store.NewGormStore(db)

	// Governance
	notifier := governor.NewNotifier(engineStore, settingsSvc, redisClient)
	gov := governor.New(usageRepo, settingsSvc, notifier)
	gate := maintenance.NewGate(settingsSvc)

	// Outbound clients
	httpClient := httpclient.New(httpclient.DefaultConfig())
	generator := content.NewGenerator(cfg.Generator, httpClient)
	pub := publisher.NewClient(cfg.Publisher, httpClient)

	// Scheduler
	schedCfg := scheduler.DefaultConfig()
	schedCfg.SweepInterval = cfg.Scheduler.SweepInterval
	schedCfg.BatchSize = cfg.Scheduler.BatchSize
	_ = schedCfg.Validate()

	var sweepLock scheduler.SweepLock
	if redisClient != nil {
		sweepLock = scheduler.NewRedisSweepLock(redisClient, schedCfg.LockKey, schedCfg.LockTTL)
	}

	executor := scheduler.NewExecutor(engineStore, engineStore, engineStore, gov, generator, pub, gate, calculator)
	dispatcher := scheduler.NewDispatcher(engineStore, executor, settingsSvc, sweepLock, schedCfg)
	dispatcher.Start()

	server := api.NewServer(cfg, &api.Deps{
		Schedules:  scheduleSvc,
		Settings:   settingsSvc,
		Governor:   gov,
		Dispatcher: dispatcher,
		Posts:      postRepo,
		Activity:   activityRepo,
		DB:         db,
		Redis:      redisClient,
	})

	go func() {
		if err := server.Start(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")

	dispatcher.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close Redis connection")
		}
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}

	log.Info().Msg("Stopped")
}
