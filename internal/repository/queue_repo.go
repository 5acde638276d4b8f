package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pairbond/pairbond/internal/db"
)

// QueueRepository provides data access for the waiting pool.
// It encapsulates all queries against queue_entries.
type QueueRepository struct {
	db *gorm.DB
}

// NewQueueRepository creates a new repository bound to the given DB connection.
func NewQueueRepository(database *gorm.DB) *QueueRepository {
	return &QueueRepository{db: database}
}

// WithTx returns a repository bound to the given transaction.
func (r *QueueRepository) WithTx(tx *gorm.DB) *QueueRepository {
	return &QueueRepository{db: tx}
}

// Upsert inserts or refreshes a user's queue entry.
//
// Behavior:
//   - If a row for user_id exists (active or dormant) → preferences,
//     queued_at and in_queue are overwritten on the existing row.
//   - If it doesn't exist → a new row is inserted.
//   - The unique index on user_id guarantees a single row per user.
func (r *QueueRepository) Upsert(ctx context.Context, entry *db.QueueEntry) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"age", "gender", "region", "skill_rank", "queued_at", "in_queue"}),
		}).
		Create(entry).Error
}

// FindByUser returns the user's queue row, active or dormant.
// Returns gorm.ErrRecordNotFound if the user never queued.
func (r *QueueRepository) FindByUser(ctx context.Context, userID uint64) (*db.QueueEntry, error) {
	var entry db.QueueEntry
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// ActiveEntries snapshots the waiting pool in join order
// (queued_at, then insertion sequence).
func (r *QueueRepository) ActiveEntries(ctx context.Context) ([]db.QueueEntry, error) {
	var entries []db.QueueEntry
	err := r.db.WithContext(ctx).
		Where("in_queue = ?", true).
		Order("queued_at ASC, id ASC").
		Find(&entries).Error
	return entries, err
}

// CountActive returns the current waiting-pool size.
func (r *QueueRepository) CountActive(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.QueueEntry{}).
		Where("in_queue = ?", true).
		Count(&count).Error
	return count, err
}

// Position computes the entry's 1-based queue position: one plus the count
// of active entries that joined earlier. Equal timestamps break on the
// insertion sequence, so the ordering is total and deterministic.
func (r *QueueRepository) Position(ctx context.Context, entry *db.QueueEntry) (int, error) {
	var ahead int64
	err := r.db.WithContext(ctx).
		Model(&db.QueueEntry{}).
		Where("in_queue = ?", true).
		Where("(queued_at < ?) OR (queued_at = ? AND id < ?)", entry.QueuedAt, entry.QueuedAt, entry.ID).
		Count(&ahead).Error
	if err != nil {
		return 0, err
	}
	return int(ahead) + 1, nil
}

// Deactivate flips the user's entry out of the pool. Reports whether a row
// was actually flipped, so callers can keep leave() idempotent.
func (r *QueueRepository) Deactivate(ctx context.Context, userID uint64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&db.QueueEntry{}).
		Where("user_id = ? AND in_queue = ?", userID, true).
		Update("in_queue", false)
	return res.RowsAffected > 0, res.Error
}

// DeactivateAll flips every active entry out of the pool and returns the
// number of rows affected.
func (r *QueueRepository) DeactivateAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.QueueEntry{}).
		Where("in_queue = ?", true).
		Update("in_queue", false)
	return res.RowsAffected, res.Error
}
