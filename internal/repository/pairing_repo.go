package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/pairbond/pairbond/internal/db"
)

// PairingRepository provides data access for the pairing aggregate.
type PairingRepository struct {
	db *gorm.DB
}

// NewPairingRepository creates a new repository bound to the given DB connection.
func NewPairingRepository(database *gorm.DB) *PairingRepository {
	return &PairingRepository{db: database}
}

// WithTx returns a repository bound to the given transaction. The pairing
// service uses this to re-check invariants at commit time.
func (r *PairingRepository) WithTx(tx *gorm.DB) *PairingRepository {
	return &PairingRepository{db: tx}
}

// Create persists a new pairing row.
func (r *PairingRepository) Create(ctx context.Context, pairing *db.Pairing) error {
	return r.db.WithContext(ctx).Create(pairing).Error
}

// Save writes back a mutated pairing row.
func (r *PairingRepository) Save(ctx context.Context, pairing *db.Pairing) error {
	return r.db.WithContext(ctx).Save(pairing).Error
}

// FindByID returns a pairing by its ID, active or not.
// Returns gorm.ErrRecordNotFound if it does not exist.
func (r *PairingRepository) FindByID(ctx context.Context, id string) (*db.Pairing, error) {
	var pairing db.Pairing
	err := r.db.WithContext(ctx).
		Where("id = ?", id).
		First(&pairing).Error
	if err != nil {
		return nil, err
	}
	return &pairing, nil
}

// ActiveForUser returns the user's active pairing from either side of the
// row, or gorm.ErrRecordNotFound if the user is unpaired.
func (r *PairingRepository) ActiveForUser(ctx context.Context, userID uint64) (*db.Pairing, error) {
	var pairing db.Pairing
	err := r.db.WithContext(ctx).
		Where("active = ? AND (user1_id = ? OR user2_id = ?)", true, userID, userID).
		First(&pairing).Error
	if err != nil {
		return nil, err
	}
	return &pairing, nil
}

// ActiveForUserLocked is ActiveForUser with the matched index range locked
// for the rest of the transaction. On MySQL the FOR UPDATE gap lock makes
// two concurrent creates for an overlapping user conflict instead of both
// reading "unpaired" from their REPEATABLE READ snapshots: the second
// transaction blocks (or deadlocks and retries) and its re-read observes
// the first commit. SQLite rejects the FOR UPDATE syntax and its single
// writer serializes the transactions anyway, so the clause is skipped there.
func (r *PairingRepository) ActiveForUserLocked(ctx context.Context, userID uint64) (*db.Pairing, error) {
	q := r.db.WithContext(ctx)
	if r.db.Dialector.Name() == "mysql" {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var pairing db.Pairing
	err := q.
		Where("active = ? AND (user1_id = ? OR user2_id = ?)", true, userID, userID).
		First(&pairing).Error
	if err != nil {
		return nil, err
	}
	return &pairing, nil
}

// ListActive returns all active pairings ordered by match time.
func (r *PairingRepository) ListActive(ctx context.Context) ([]db.Pairing, error) {
	var pairings []db.Pairing
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("matched_at ASC, id ASC").
		Find(&pairings).Error
	return pairings, err
}

// HistoryForUser returns every pairing the user ever participated in,
// newest first.
func (r *PairingRepository) HistoryForUser(ctx context.Context, userID uint64) ([]db.Pairing, error) {
	var pairings []db.Pairing
	err := r.db.WithContext(ctx).
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("matched_at DESC, id DESC").
		Find(&pairings).Error
	return pairings, err
}

// DeactivateAll flips every active pairing inactive and returns the number
// of rows affected. Idempotent: a second call affects zero rows.
func (r *PairingRepository) DeactivateAll(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&db.Pairing{}).
		Where("active = ?", true).
		Update("active", false)
	return res.RowsAffected, res.Error
}

// Delete removes a pairing row outright. Reports whether a row existed.
func (r *PairingRepository) Delete(ctx context.Context, id string) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("id = ?", id).
		Delete(&db.Pairing{})
	return res.RowsAffected > 0, res.Error
}

// DeleteInactive removes every inactive pairing and returns the number of
// rows removed.
func (r *PairingRepository) DeleteInactive(ctx context.Context) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("active = ?", false).
		Delete(&db.Pairing{})
	return res.RowsAffected, res.Error
}
