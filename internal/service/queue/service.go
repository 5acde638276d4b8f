// Package queue implements queue admission: join, leave, status, the
// global admission gate, and the derived queue statistics.
package queue

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/pairbond/pairbond/internal/app"
	"github.com/pairbond/pairbond/internal/db"
	svcErr "github.com/pairbond/pairbond/internal/errors"
	"github.com/pairbond/pairbond/internal/events"
	"github.com/pairbond/pairbond/internal/repository"
)

// RemovedQueueDisabled is the reason string sent with QUEUE_REMOVED when
// an admin disables admissions.
const RemovedQueueDisabled = "queue_disabled"

// Service implements queue admission on top of the repositories.
type Service struct {
	appCtx   *app.AppContext
	entries  *repository.QueueRepository
	pairings *repository.PairingRepository
	users    *repository.UserRepository
	gate     *Gate
}

// NewService creates a queue service with dependencies from AppContext.
// The gate carries the admission state; pass NewGate(cfg.Matchmaking.QueueEnabled).
func NewService(appCtx *app.AppContext, gate *Gate) *Service {
	return &Service{
		appCtx:   appCtx,
		entries:  repository.NewQueueRepository(appCtx.DB),
		pairings: repository.NewPairingRepository(appCtx.DB),
		users:    repository.NewUserRepository(appCtx.DB),
		gate:     gate,
	}
}

// JoinRequest carries a user's matchmaking preferences.
type JoinRequest struct {
	UserID    uint64
	Age       int
	Gender    string
	Region    string
	SkillRank string
}

// JoinResult reports where the user landed in the pool.
type JoinResult struct {
	Position      int
	EstimatedWait time.Duration
	QueueSize     int64
}

// Status is the read-only view of a user's queue presence.
type Status struct {
	InQueue       bool
	Position      int
	EstimatedWait time.Duration
	QueuedAt      time.Time
}

// WaitEstimate is the coarse heuristic for expected wait at a position:
// max(2, (position-1)/2*3+2) minutes. It is a pure function of position,
// not a promise of the matching cadence.
func WaitEstimate(position int) time.Duration {
	minutes := (position-1)/2*3 + 2
	if minutes < 2 {
		minutes = 2
	}
	return time.Duration(minutes) * time.Minute
}

// Join admits a user into the waiting pool.
//
// Fails with QueueDisabled when the gate is off, NotFound for unknown
// users, and AlreadyPaired while the user holds an active pairing.
// Re-joining refreshes the existing row's preferences and timestamp
// instead of creating a duplicate. Broadcasts the new pool size.
func (s *Service) Join(ctx context.Context, req JoinRequest) (*JoinResult, error) {
	s.appCtx.Logger.Debug("Join called", "user", req.UserID, "region", req.Region, "rank", req.SkillRank)

	if req.UserID == 0 {
		return nil, svcErr.Validation("user id is required")
	}
	if req.Age <= 0 {
		return nil, svcErr.Validation("age is required")
	}
	if req.Gender == "" || req.Region == "" || req.SkillRank == "" {
		return nil, svcErr.Validation("gender, region and rank preferences are required")
	}

	if !s.gate.Enabled() {
		return nil, svcErr.ErrQueueDisabled
	}

	exists, err := s.users.Exists(ctx, req.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if !exists {
		return nil, svcErr.ErrNotFound
	}

	if _, err := s.pairings.ActiveForUser(ctx, req.UserID); err == nil {
		return nil, svcErr.ErrAlreadyPaired
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, svcErr.Map(err)
	}

	return s.admit(ctx, &db.QueueEntry{
		UserID:    req.UserID,
		Age:       req.Age,
		Gender:    req.Gender,
		Region:    req.Region,
		SkillRank: req.SkillRank,
		QueuedAt:  s.appCtx.Now().UTC(),
		InQueue:   true,
	})
}

// admit upserts the entry and re-checks the gate afterwards. A disable
// sweep snapshots the pool after turning the gate off, so a join racing the
// sweep lands in exactly one of two places: the upsert happened before the
// snapshot and the sweep evicts the row, or it happened after and the
// re-check below sees the closed gate and rolls the row back. Either way no
// InQueue row survives a disabled queue.
func (s *Service) admit(ctx context.Context, entry *db.QueueEntry) (*JoinResult, error) {
	if err := s.entries.Upsert(ctx, entry); err != nil {
		return nil, svcErr.Map(err)
	}

	if !s.gate.Enabled() {
		if _, err := s.entries.Deactivate(ctx, entry.UserID); err != nil {
			return nil, svcErr.Map(err)
		}
		s.appCtx.Logger.Info("join rolled back, queue disabled mid-admission", "user", entry.UserID)
		return nil, svcErr.ErrQueueDisabled
	}

	// re-read: on upsert of a dormant row the in-memory entry has no ID
	entry, err := s.entries.FindByUser(ctx, entry.UserID)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	position, err := s.entries.Position(ctx, entry)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	size := s.broadcastQueueSize(ctx)

	s.appCtx.Logger.Info("user joined queue", "user", entry.UserID, "position", position, "size", size)
	return &JoinResult{
		Position:      position,
		EstimatedWait: WaitEstimate(position),
		QueueSize:     size,
	}, nil
}

// Leave removes the user from the pool. Idempotent: leaving while not
// queued is a no-op, not an error, and emits no event.
func (s *Service) Leave(ctx context.Context, userID uint64) error {
	flipped, err := s.entries.Deactivate(ctx, userID)
	if err != nil {
		return svcErr.Map(err)
	}
	if !flipped {
		return nil
	}

	s.broadcastQueueSize(ctx)
	s.appCtx.Logger.Info("user left queue", "user", userID)
	return nil
}

// Size returns the waiting-pool size, serving the cached value when one is
// fresh and falling back to a count otherwise.
func (s *Service) Size(ctx context.Context) (int64, error) {
	if size, ok, err := s.appCtx.RedisCache.GetQueueSize(ctx); err == nil && ok {
		return size, nil
	}

	size, err := s.entries.CountActive(ctx)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	if err := s.appCtx.RedisCache.SetQueueSize(ctx, size); err != nil {
		s.appCtx.Logger.Error("failed to cache queue size", "err", err)
	}
	return size, nil
}

// GetStatus reports the user's queue presence. A user who never queued or
// already left gets InQueue=false, not an error.
func (s *Service) GetStatus(ctx context.Context, userID uint64) (*Status, error) {
	entry, err := s.entries.FindByUser(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &Status{}, nil
	} else if err != nil {
		return nil, svcErr.Map(err)
	}
	if !entry.InQueue {
		return &Status{}, nil
	}

	position, err := s.entries.Position(ctx, entry)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return &Status{
		InQueue:       true,
		Position:      position,
		EstimatedWait: WaitEstimate(position),
		QueuedAt:      entry.QueuedAt,
	}, nil
}

// IsEnabled reports the admission gate state.
func (s *Service) IsEnabled() bool { return s.gate.Enabled() }

// SetEnabled flips the admission gate. Disabling evicts every waiting
// user: the gate goes off before the snapshot, which pairs with admit's
// post-upsert re-check to keep a racing Join from leaving a live row behind
// the sweep. Each affected user gets a distinct QUEUE_REMOVED before the
// rows flip, and a single size broadcast follows the sweep.
func (s *Service) SetEnabled(ctx context.Context, enabled bool, actorID uint64) error {
	s.appCtx.Logger.Info("queue gate changed", "enabled", enabled, "actor", actorID)

	s.gate.set(enabled)
	if enabled {
		return nil
	}

	waiting, err := s.entries.ActiveEntries(ctx)
	if err != nil {
		return svcErr.Map(err)
	}
	if len(waiting) == 0 {
		return nil
	}

	// removal events go out before the flip; the UI relies on seeing the
	// removal before the queue reads empty
	for _, entry := range waiting {
		if err := s.appCtx.Publisher.Publish(ctx, entry.UserID, events.QueueRemoved, RemovedQueueDisabled); err != nil {
			s.appCtx.Logger.Error("failed to publish QUEUE_REMOVED", "user", entry.UserID, "err", err)
		}
	}

	err = s.appCtx.DB.Transaction(func(tx *gorm.DB) error {
		_, err := s.entries.WithTx(tx).DeactivateAll(ctx)
		return err
	})
	if err != nil {
		return svcErr.Map(err)
	}

	s.broadcastQueueSize(ctx)
	s.appCtx.Logger.Info("queue evicted on disable", "evicted", len(waiting), "actor", actorID)
	return nil
}

// broadcastQueueSize refreshes the cached pool size and broadcasts
// QUEUE_SIZE_CHANGED. Failures are logged and swallowed: losing a live
// update must never fail the mutation that triggered it.
func (s *Service) broadcastQueueSize(ctx context.Context) int64 {
	size, err := s.entries.CountActive(ctx)
	if err != nil {
		s.appCtx.Logger.Error("failed to count queue", "err", err)
		return -1
	}

	if err := s.appCtx.RedisCache.SetQueueSize(ctx, size); err != nil {
		s.appCtx.Logger.Error("failed to cache queue size", "err", err)
	}
	if err := s.appCtx.RedisCache.InvalidateQueueStats(ctx); err != nil {
		s.appCtx.Logger.Error("failed to invalidate queue stats", "err", err)
	}
	if err := s.appCtx.Publisher.Broadcast(ctx, events.QueueSizeChanged, size); err != nil {
		s.appCtx.Logger.Error("failed to broadcast QUEUE_SIZE_CHANGED", "err", err)
	}
	return size
}
