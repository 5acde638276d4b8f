package queue

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pairbond/pairbond/internal/cache"
	svcErr "github.com/pairbond/pairbond/internal/errors"
)

// Stats is the derived, read-only aggregation over the queue snapshot.
// Operational visibility only; nothing here is load-bearing for matching.
type Stats struct {
	Total          int64            `json:"total"`
	ByGender       map[string]int64 `json:"by_gender"`
	ByRegion       map[string]int64 `json:"by_region"`
	ByRank         map[string]int64 `json:"by_rank"`
	AvgWaitSecs    int64            `json:"avg_wait_secs"`
	OldestWaitSecs int64            `json:"oldest_wait_secs"`
}

// GetStats returns queue statistics.
// Cache-first strategy:
//  1. Attempts to read the serialized snapshot from Redis.
//  2. On a miss, aggregates over the active entries.
//  3. Writes the fresh snapshot back with the stats TTL.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	key := s.appCtx.RedisCache.KeyQueueStats()

	// try cache first
	if cached, _ := s.appCtx.RedisCache.Get(ctx, key); cached != "" {
		var stats Stats
		if err := json.Unmarshal([]byte(cached), &stats); err == nil {
			return &stats, nil
		}
		// garbage in the cache falls through to a recompute
	}

	entries, err := s.entries.ActiveEntries(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	now := s.appCtx.Now().UTC()
	stats := &Stats{
		Total:    int64(len(entries)),
		ByGender: map[string]int64{},
		ByRegion: map[string]int64{},
		ByRank:   map[string]int64{},
	}

	var totalWait time.Duration
	var oldest time.Duration
	for _, e := range entries {
		stats.ByGender[e.Gender]++
		stats.ByRegion[e.Region]++
		stats.ByRank[e.SkillRank]++

		wait := now.Sub(e.QueuedAt)
		if wait < 0 {
			wait = 0
		}
		totalWait += wait
		if wait > oldest {
			oldest = wait
		}
	}
	if len(entries) > 0 {
		stats.AvgWaitSecs = int64((totalWait / time.Duration(len(entries))).Seconds())
	}
	stats.OldestWaitSecs = int64(oldest.Seconds())

	if body, err := json.Marshal(stats); err == nil {
		if err := s.appCtx.RedisCache.Set(ctx, key, body, cache.StatsTTL); err != nil {
			s.appCtx.Logger.Error("failed to cache queue stats", "err", err)
		}
	}

	return stats, nil
}
