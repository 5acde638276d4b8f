package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/pairbond/pairbond/internal/db"
)

// UserRepository backs the user-existence check the engine depends on.
// Identity and auth live outside the engine entirely.
type UserRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a new repository bound to the given DB connection.
func NewUserRepository(database *gorm.DB) *UserRepository {
	return &UserRepository{db: database}
}

// Exists reports whether the identifier resolves to an active account.
func (r *UserRepository) Exists(ctx context.Context, userID uint64) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&db.User{}).
		Where("id = ? AND active = ?", userID, true).
		Count(&count).Error
	return count > 0, err
}
