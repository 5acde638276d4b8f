package queue

import (
	"context"
	"fmt"
	"io"
	"log/slog"
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
	svcErr "github.com/pairbond/pairbond/internal/errors"
	"github.com/pairbond/pairbond/internal/events"
)

func setupAdmitTest(t *testing.T) (*Service, *events.MemoryPublisher, *app.AppContext) {
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

	require.NoError(t, dbase.Create(&db.User{
		ID: 1, Username: "user1", Email: "u1@test.com", PasswordHash: "x", Active: true,
	}).Error)

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(func() { mr.Close() })

	cfg := config.New()
	cfg.Redis.Addr = mr.Addr()

	pub := events.NewMemoryPublisher()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	appCtx := app.New(dbase, cache.NewRedisCache(cfg), pub, logger)
	return NewService(appCtx, NewGate(true)), pub, appCtx
}

func admitEntry(userID uint64, at time.Time) *db.QueueEntry {
	return &db.QueueEntry{
		UserID:    userID,
		Age:       25,
		Gender:    "female",
		Region:    "NA_EAST",
		SkillRank: "GOLD",
		QueuedAt:  at,
		InQueue:   true,
	}
}

// TestAdmitRollsBackWhenGateClosed drives the join-vs-disable race at its
// narrowest point: the gate closes after Join's admission check but before
// the upsert. Calling admit with a closed gate reproduces that interleaving
// exactly; the row must be rolled back, the caller must see QueueDisabled,
// and nothing may be published.
func TestAdmitRollsBackWhenGateClosed(t *testing.T) {
	ctx := context.Background()
	svc, pub, appCtx := setupAdmitTest(t)

	svc.gate.set(false)

	_, err := svc.admit(ctx, admitEntry(1, appCtx.Now().UTC()))
	require.ErrorIs(t, err, svcErr.ErrQueueDisabled)

	var active int64
	require.NoError(t, appCtx.DB.Model(&db.QueueEntry{}).Where("in_queue = ?", true).Count(&active).Error)
	assert.Equal(t, int64(0), active, "no live row may survive a disabled queue")

	assert.Empty(t, pub.Events(), "a rolled-back admission publishes nothing")
}

func TestAdmitWithOpenGate(t *testing.T) {
	ctx := context.Background()
	svc, pub, appCtx := setupAdmitTest(t)

	res, err := svc.admit(ctx, admitEntry(1, appCtx.Now().UTC()))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Position)
	assert.Equal(t, int64(1), res.QueueSize)
	assert.Len(t, pub.ByType(events.QueueSizeChanged), 1)
}
