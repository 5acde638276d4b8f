package db

import (
	"time"
)

// User table. Identity and auth live outside the engine; this table only
// backs the user-existence check injected into admission and pairing.
type User struct {
	ID           uint64 `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;size:64;not null"`
	Email        string `gorm:"uniqueIndex;size:128;not null"`
	PasswordHash string `gorm:"size:255;not null"`
	Active       bool   `gorm:"default:true"`
	CreatedAt    time.Time `gorm:"autoCreateTime"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime"`
}

// QueueEntry is one row per user that is, or has ever been, in the waiting
// pool. Rows are never hard-deleted; leaving the queue flips InQueue off so
// the join history survives for audit.
//
// Unique index on UserID guarantees at most one row per user; re-joining
// upserts the existing row. The autoincrement ID doubles as the insertion
// sequence that breaks position ties between equal QueuedAt timestamps.
//
// Indexes:
//   - idx_queue_waiting(in_queue, queued_at, id)
//     Optimizes the active-pool snapshot and position counting.
type QueueEntry struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement;index:idx_queue_waiting,priority:3"`
	UserID    uint64    `gorm:"uniqueIndex;not null"`
	Age       int       `gorm:"not null"`
	Gender    string    `gorm:"size:16;not null"`
	Region    string    `gorm:"size:32;not null"`
	SkillRank string    `gorm:"size:16;not null"`
	QueuedAt  time.Time `gorm:"not null;index:idx_queue_waiting,priority:2"`
	InQueue   bool      `gorm:"not null;type:tinyint(1);index:idx_queue_waiting,priority:1"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// Pairing is the central aggregate: a committed match between two users.
//
// Invariants enforced by the pairing service:
//   - User1ID != User2ID
//   - Score > 0 at creation (clamped to [0,100])
//   - while Active, neither participant appears in another active pairing
//   - once inactive, the row is immutable except for reads
//
// Indexes:
//   - idx_pairing_user1_active(user1_id, active)
//   - idx_pairing_user2_active(user2_id, active)
//     Optimize the "active pairing for user" lookup on either side.
type Pairing struct {
	ID        string    `gorm:"primaryKey;size:36"`
	User1ID   uint64    `gorm:"not null;index:idx_pairing_user1_active,priority:1"`
	User2ID   uint64    `gorm:"not null;index:idx_pairing_user2_active,priority:1"`
	Score     int       `gorm:"not null"`
	MatchedAt time.Time `gorm:"not null"`
	Active    bool      `gorm:"not null;type:tinyint(1);index:idx_pairing_user1_active,priority:2;index:idx_pairing_user2_active,priority:2"`

	// Activity counters. Message counts are tracked per participant; the
	// total is always derived, never stored.
	User1Messages int64 `gorm:"not null;default:0"`
	User2Messages int64 `gorm:"not null;default:0"`
	WordCount     int64 `gorm:"not null;default:0"`
	EmojiCount    int64 `gorm:"not null;default:0"`
	VoiceMinutes  int64 `gorm:"not null;default:0"`
	ActiveDays    int   `gorm:"not null;default:0"`

	// Breakup metadata, populated exactly once when the pairing ends.
	BreakupBy     *uint64
	BreakupReason string `gorm:"size:255"`
	BreakupAt     *time.Time
	BreakupMutual bool `gorm:"not null;type:tinyint(1);default:false"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

// TotalMessages derives the pair's combined message count.
func (p *Pairing) TotalMessages() int64 {
	return p.User1Messages + p.User2Messages
}

// HasParticipant reports whether userID is one of the two participants.
func (p *Pairing) HasParticipant(userID uint64) bool {
	return p.User1ID == userID || p.User2ID == userID
}

// PartnerOf returns the other participant. Callers must check
// HasParticipant first.
func (p *Pairing) PartnerOf(userID uint64) uint64 {
	if p.User1ID == userID {
		return p.User2ID
	}
	return p.User1ID
}

// BlacklistEntry permanently blocks an unordered pair of users from being
// matched again. The pair is stored normalized (UserLowID < UserHighID) so
// the unique index makes duplicate inserts a safe no-op regardless of
// argument order.
type BlacklistEntry struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement"`
	UserLowID  uint64    `gorm:"not null;uniqueIndex:idx_blacklist_pair,priority:1"`
	UserHighID uint64    `gorm:"not null;uniqueIndex:idx_blacklist_pair,priority:2"`
	Reason     string    `gorm:"size:255"`
	CreatedAt  time.Time `gorm:"autoCreateTime"`
}

// NormalizePair orders two user IDs for blacklist storage and lookup.
func NormalizePair(a, b uint64) (low, high uint64) {
	if a < b {
		return a, b
	}
	return b, a
}
