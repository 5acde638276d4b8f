package db

import (
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/pairbond/pairbond/internal/config"
	svcErr "github.com/pairbond/pairbond/internal/errors"
)

// NewDB initializes the database connection using DSN from config.
func NewDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(cfg.DB.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info), // log SQL queries
	})
	if err != nil {
		return nil, svcErr.Transient("open database", err)
	}

	// AutoMigrate ensures schema is in sync with models.
	if err := db.AutoMigrate(&User{}, &QueueEntry{}, &Pairing{}, &BlacklistEntry{}); err != nil {
		return nil, svcErr.Transient("migrate schema", err)
	}

	return db, nil
}
