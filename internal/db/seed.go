package db

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	seedGenders = []string{"male", "female", "nonbinary", "other"}
	seedRegions = []string{"NA_EAST", "NA_WEST", "EU_WEST", "EU_EAST", "ASIA", "OCEANIA", "SOUTH_AMERICA"}
	seedRanks   = []string{"IRON", "BRONZE", "SILVER", "GOLD", "PLATINUM", "DIAMOND", "MASTER"}
)

// SeedTestData resets the database and populates it with demo users and a
// waiting pool ready for a matchmaking run.
//
// Behavior:
//  1. Clears existing data in all engine tables.
//  2. Creates 20 users with hashed passwords, alternating genders.
//  3. Queues every user with randomized age/region/rank and staggered
//     join timestamps, so positions and wait estimates are non-trivial.
//
// Compatible with both MySQL and SQLite (AUTO_INCREMENT reset skipped for SQLite).
func SeedTestData(db *gorm.DB) error {
	r := rand.New(rand.NewSource(time.Now().UnixNano()))

	// --- Fresh start ---
	for _, table := range []string{"blacklist_entries", "pairings", "queue_entries", "users"} {
		if err := db.Exec("DELETE FROM " + table).Error; err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	// Reset auto-increment sequences
	switch db.Dialector.Name() {
	case "mysql":
		db.Exec("ALTER TABLE users AUTO_INCREMENT = 1")
		db.Exec("ALTER TABLE queue_entries AUTO_INCREMENT = 1")
		db.Exec("ALTER TABLE blacklist_entries AUTO_INCREMENT = 1")
	case "sqlite":
		db.Exec("DELETE FROM sqlite_sequence WHERE name IN ('users', 'queue_entries', 'blacklist_entries')")
	}

	log.Println("Cleared existing data")

	// --- Seed Users ---
	var users []User
	for i := 1; i <= 20; i++ {
		hash, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("failed to hash password: %w", err)
		}

		users = append(users, User{
			Username:     fmt.Sprintf("user%d", i),
			Email:        fmt.Sprintf("user%d@example.com", i),
			PasswordHash: string(hash),
			Active:       true,
		})
	}
	if err := db.Create(&users).Error; err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}
	log.Println("Seeded 20 users.")

	// --- Seed Queue ---
	now := time.Now().UTC()
	for i, u := range users {
		gender := seedGenders[i%2] // mostly male/female so runs produce pairs
		if i%7 == 0 {
			gender = seedGenders[2+r.Intn(2)]
		}

		entry := QueueEntry{
			UserID:    u.ID,
			Age:       18 + r.Intn(15),
			Gender:    gender,
			Region:    seedRegions[r.Intn(len(seedRegions))],
			SkillRank: seedRanks[r.Intn(len(seedRanks))],
			QueuedAt:  now.Add(-time.Duration(r.Intn(45)) * time.Minute),
			InQueue:   true,
		}
		if err := db.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"age", "gender", "region", "skill_rank", "queued_at", "in_queue"}),
		}).Create(&entry).Error; err != nil {
			return fmt.Errorf("failed to seed queue entry: %w", err)
		}
	}
	log.Println("Seeded waiting pool.")

	return nil
}
