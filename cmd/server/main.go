package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/pairbond/pairbond/internal/app"
	"github.com/pairbond/pairbond/internal/cache"
	"github.com/pairbond/pairbond/internal/config"
	"github.com/pairbond/pairbond/internal/db"
	"github.com/pairbond/pairbond/internal/events"
	"github.com/pairbond/pairbond/internal/logger"
	"github.com/pairbond/pairbond/internal/service/matchmaker"
	"github.com/pairbond/pairbond/internal/service/pairing"
	"github.com/pairbond/pairbond/internal/service/queue"
)

// matchd runs the scheduled matchmaking tick. Admission and lifecycle
// calls come in through the API layer, which embeds the same services.
func main() {
	cfg := config.New()

	// Init logger (global singleton)
	logger.InitFromConfig(cfg)
	log := logger.L()

	// Init DB
	database, err := db.NewDB(cfg)
	if err != nil {
		log.Error("failed to init db", "err", err)
		return
	}

	// Init Redis
	redisCache := cache.NewRedisCache(cfg)
	if err := redisCache.Ping(context.Background()); err != nil {
		log.Error("failed to connect to redis", "err", err)
		return
	}

	publisher := events.NewRedisPublisher(redisCache.Client)
	appCtx := app.New(database, redisCache, publisher, log)

	gate := queue.NewGate(cfg.Matchmaking.QueueEnabled)
	queueSvc := queue.NewService(appCtx, gate)
	pairingSvc := pairing.NewService(appCtx)
	matcher := matchmaker.NewService(appCtx, pairingSvc)

	if cfg.App.ENV == "development" {
		if err := db.SeedTestData(database); err != nil {
			log.Error("failed to seed", "err", err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	size, err := queueSvc.Size(ctx)
	if err != nil {
		log.Error("failed to read queue size", "err", err)
	}
	active, err := pairingSvc.ListActive(ctx)
	if err != nil {
		log.Error("failed to list active pairings", "err", err)
	}
	log.Info("matchd started",
		"interval", cfg.Matchmaking.Interval,
		"queue_enabled", queueSvc.IsEnabled(),
		"waiting", size,
		"active_pairings", len(active))

	ticker := time.NewTicker(cfg.Matchmaking.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("matchd shutting down")
			return
		case <-ticker.C:
			runOnce(ctx, matcher, log)
		}
	}
}

func runOnce(ctx context.Context, matcher *matchmaker.Service, log *slog.Logger) {
	runCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	committed, err := matcher.Run(runCtx)
	if err != nil {
		log.Error("matchmaking run failed", "err", err)
		return
	}
	if len(committed) > 0 {
		log.Info("matchmaking run committed pairs", "pairs", len(committed))
	}
}
