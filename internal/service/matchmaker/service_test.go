package matchmaker_test

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/pairbond/pairbond/internal/app"
	"github.com/pairbond/pairbond/internal/cache"
	"github.com/pairbond/pairbond/internal/config"
	"github.com/pairbond/pairbond/internal/db"
	"github.com/pairbond/pairbond/internal/events"
	"github.com/pairbond/pairbond/internal/repository"
	"github.com/pairbond/pairbond/internal/service/matchmaker"
	"github.com/pairbond/pairbond/internal/service/pairing"
)

// setupService wires a matchmaker (and the pairing service it commits
// through) over in-memory SQLite, miniredis and the event recorder.
func setupService(t *testing.T) (*matchmaker.Service, *events.MemoryPublisher, *app.AppContext) {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	dbase, err := gorm.Open(sqlite.Open(dbName), &gorm.Config{
		NowFunc:                func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	sqlDB, err := dbase.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, dbase.AutoMigrate(&db.User{}, &db.QueueEntry{}, &db.Pairing{}, &db.BlacklistEntry{}))

	var users []db.User
	for i := uint64(1); i <= 6; i++ {
		users = append(users, db.User{
			ID:           i,
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("u%d@test.com", i),
			PasswordHash: "x",
			Active:       true,
		})
	}
	require.NoError(t, dbase.Create(&users).Error)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	pub := events.NewMemoryPublisher()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appCtx := app.New(dbase, cache.NewRedisCache(cfg), pub, logger)
	return matchmaker.NewService(appCtx, pairing.NewService(appCtx)), pub, appCtx
}

type seedEntry struct {
	userID    uint64
	age       int
	gender    string
	region    string
	skillRank string
}

func enqueue(t *testing.T, appCtx *app.AppContext, seeds []seedEntry) {
	t.Helper()
	base := time.Now().UTC().Truncate(time.Millisecond).Add(-time.Hour)
	for i, s := range seeds {
		require.NoError(t, appCtx.DB.Create(&db.QueueEntry{
			UserID:    s.userID,
			Age:       s.age,
			Gender:    s.gender,
			Region:    s.region,
			SkillRank: s.skillRank,
			QueuedAt:  base.Add(time.Duration(i) * time.Second),
			InQueue:   true,
		}).Error)
	}
}

// pairKey normalizes a committed pairing for set comparison.
func pairKey(p db.Pairing) [2]uint64 {
	low, high := db.NormalizePair(p.User1ID, p.User2ID)
	return [2]uint64{low, high}
}

func TestRunWithTinyQueues(t *testing.T) {
	ctx := context.Background()
	svc, pub, appCtx := setupService(t)

	// empty pool
	committed, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, committed)

	// a single waiting user
	enqueue(t, appCtx, []seedEntry{{1, 25, "female", "NA_EAST", "GOLD"}})
	committed, err = svc.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, committed)
	assert.Empty(t, pub.Events(), "no-op runs stay silent")
}

// TestRunScenario pins the canonical example: A and B are a perfect match,
// C hard-fails against A on the age gap and cannot pair with B either.
func TestRunScenario(t *testing.T) {
	ctx := context.Background()
	svc, pub, appCtx := setupService(t)

	enqueue(t, appCtx, []seedEntry{
		{1, 22, "female", "NA_EAST", "GOLD"}, // A
		{2, 23, "male", "NA_EAST", "GOLD"},   // B
		{3, 40, "male", "EU_WEST", "IRON"},   // C
	})

	committed, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Len(t, committed, 1)
	assert.Equal(t, [2]uint64{1, 2}, pairKey(committed[0]))
	assert.Equal(t, 100, committed[0].Score, "40 region + 30 rank + 30 age, capped")

	// C remains queued
	queueRepo := repository.NewQueueRepository(appCtx.DB)
	waiting, err := queueRepo.ActiveEntries(ctx)
	require.NoError(t, err)
	require.Len(t, waiting, 1)
	assert.Equal(t, uint64(3), waiting[0].UserID)

	// both matched users notified, one size broadcast for the whole run
	assert.Len(t, pub.ByType(events.MatchFound), 2)
	sizes := pub.ByType(events.QueueSizeChanged)
	require.Len(t, sizes, 1)
	assert.Equal(t, int64(1), sizes[0].Payload)
}

func TestRunPrefersHigherScores(t *testing.T) {
	ctx := context.Background()
	svc, _, appCtx := setupService(t)

	// 1-2 scores 100; 1-3 scores 40 (base region, rank distance 3, age gap 3)
	enqueue(t, appCtx, []seedEntry{
		{3, 25, "male", "EU_WEST", "IRON"},
		{1, 22, "female", "NA_EAST", "GOLD"},
		{2, 23, "male", "NA_EAST", "GOLD"},
	})

	committed, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Len(t, committed, 1)
	assert.Equal(t, [2]uint64{1, 2}, pairKey(committed[0]))
}

func TestRunRespectsBlacklist(t *testing.T) {
	ctx := context.Background()
	svc, _, appCtx := setupService(t)

	blacklist := repository.NewBlacklistRepository(appCtx.DB)
	require.NoError(t, blacklist.Add(ctx, 1, 2, "old breakup"))

	enqueue(t, appCtx, []seedEntry{
		{1, 22, "female", "NA_EAST", "GOLD"},
		{2, 23, "male", "NA_EAST", "GOLD"},
	})

	committed, err := svc.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, committed)

	queueRepo := repository.NewQueueRepository(appCtx.DB)
	count, err := queueRepo.CountActive(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count, "blacklisted users stay queued")
}

// TestRunIsDeterministic rebuilds an identical snapshot and asserts the
// greedy walk commits the same pairs. With four interchangeable users every
// cross-gender pair scores 100, so only the tie-break fixes the outcome.
func TestRunIsDeterministic(t *testing.T) {
	ctx := context.Background()
	svc, _, appCtx := setupService(t)

	seeds := []seedEntry{
		{1, 25, "female", "NA_EAST", "GOLD"},
		{2, 25, "male", "NA_EAST", "GOLD"},
		{3, 25, "female", "NA_EAST", "GOLD"},
		{4, 25, "male", "NA_EAST", "GOLD"},
	}

	runOnSnapshot := func() [][2]uint64 {
		require.NoError(t, appCtx.DB.Exec("DELETE FROM pairings").Error)
		require.NoError(t, appCtx.DB.Exec("DELETE FROM blacklist_entries").Error)
		require.NoError(t, appCtx.DB.Exec("DELETE FROM queue_entries").Error)
		enqueue(t, appCtx, seeds)

		committed, err := svc.Run(ctx)
		require.NoError(t, err)

		keys := make([][2]uint64, 0, len(committed))
		for _, p := range committed {
			keys = append(keys, pairKey(p))
		}
		sort.Slice(keys, func(i, j int) bool { return keys[i][0] < keys[j][0] })
		return keys
	}

	first := runOnSnapshot()
	second := runOnSnapshot()

	require.Len(t, first, 2, "greedy walk must pair everyone")
	assert.Equal(t, first, second)
	// ties break on the normalized user-ID pair: (1,2) beats (1,4)
	assert.Equal(t, [2]uint64{1, 2}, first[0])
	assert.Equal(t, [2]uint64{3, 4}, first[1])
}

// TestRunSurvivesPairConflicts proves a failed candidate commit skips
// forward instead of aborting the run: user 2 already holds an active
// pairing (a concurrent actor got there first), so 1-2 fails and the walk
// still commits 1-4.
func TestRunSurvivesPairConflicts(t *testing.T) {
	ctx := context.Background()
	svc, _, appCtx := setupService(t)

	require.NoError(t, appCtx.DB.Create(&db.Pairing{
		ID: "p-existing", User1ID: 2, User2ID: 5, Score: 50,
		MatchedAt: time.Now().UTC(), Active: true,
	}).Error)

	// 1-2 scores 100 and sorts first; 1-4 scores 85 (super-region) and must
	// still be committed after 1-2 fails
	enqueue(t, appCtx, []seedEntry{
		{1, 22, "female", "NA_EAST", "GOLD"},
		{2, 23, "male", "NA_EAST", "GOLD"},
		{4, 23, "male", "NA_WEST", "SILVER"},
	})

	committed, err := svc.Run(ctx)
	require.NoError(t, err)
	require.Len(t, committed, 1)
	assert.Equal(t, [2]uint64{1, 4}, pairKey(committed[0]))
}
