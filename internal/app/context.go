package app

import (
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/pairbond/pairbond/internal/cache"
	"github.com/pairbond/pairbond/internal/events"
)

// AppContext holds shared dependencies (DB, Redis, Publisher, Logger, clock).
type AppContext struct {
	DB         *gorm.DB
	RedisCache *cache.RedisCache
	Publisher  events.Publisher
	Logger     *slog.Logger

	// Now is the injected clock. Tests override it to pin wait-time and
	// timestamp calculations.
	Now func() time.Time
}

// New creates a new AppContext with the real clock.
func New(db *gorm.DB, rdb *cache.RedisCache, pub events.Publisher, logger *slog.Logger) *AppContext {
	return &AppContext{
		DB:         db,
		RedisCache: rdb,
		Publisher:  pub,
		Logger:     logger,
		Now:        time.Now,
	}
}
