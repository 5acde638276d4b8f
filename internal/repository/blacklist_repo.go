package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pairbond/pairbond/internal/db"
)

// BlacklistRepository provides data access for the breakup blacklist.
// Pairs are stored normalized (low ID first) so lookups are order-free.
type BlacklistRepository struct {
	db *gorm.DB
}

// NewBlacklistRepository creates a new repository bound to the given DB connection.
func NewBlacklistRepository(database *gorm.DB) *BlacklistRepository {
	return &BlacklistRepository{db: database}
}

// WithTx returns a repository bound to the given transaction.
func (r *BlacklistRepository) WithTx(tx *gorm.DB) *BlacklistRepository {
	return &BlacklistRepository{db: tx}
}

// Add records the pair on the blacklist. Inserting an already-blacklisted
// pair is a no-op: the unique pair index plus DoNothing make the call
// duplicate-safe regardless of argument order.
func (r *BlacklistRepository) Add(ctx context.Context, userA, userB uint64, reason string) error {
	low, high := db.NormalizePair(userA, userB)
	entry := db.BlacklistEntry{
		UserLowID:  low,
		UserHighID: high,
		Reason:     reason,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_low_id"}, {Name: "user_high_id"}},
			DoNothing: true,
		}).
		Create(&entry).Error
}

// IsBlacklisted checks whether the unordered pair has broken up before.
func (r *BlacklistRepository) IsBlacklisted(ctx context.Context, userA, userB uint64) (bool, error) {
	low, high := db.NormalizePair(userA, userB)
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.BlacklistEntry{}).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		Count(&count).Error
	return count > 0, err
}

// PairSet loads the whole blacklist as a set of normalized pairs. The
// matching run uses it to filter candidates without a query per pair.
func (r *BlacklistRepository) PairSet(ctx context.Context) (map[[2]uint64]struct{}, error) {
	var entries []db.BlacklistEntry
	if err := r.db.WithContext(ctx).Find(&entries).Error; err != nil {
		return nil, err
	}
	set := make(map[[2]uint64]struct{}, len(entries))
	for _, e := range entries {
		set[[2]uint64{e.UserLowID, e.UserHighID}] = struct{}{}
	}
	return set, nil
}

// DeleteForPair removes the pair's entry. This is the deliberate escape
// hatch used only when an admin permanently deletes a pairing's history.
func (r *BlacklistRepository) DeleteForPair(ctx context.Context, userA, userB uint64) error {
	low, high := db.NormalizePair(userA, userB)
	return r.db.WithContext(ctx).
		Where("user_low_id = ? AND user_high_id = ?", low, high).
		Delete(&db.BlacklistEntry{}).Error
}
