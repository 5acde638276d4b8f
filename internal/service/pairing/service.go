// Package pairing owns the pairing lifecycle: creation, activity tracking,
// breakup and the blacklist side effect, plus the admin bulk operations.
//
// State machine: NONE → ACTIVE → INACTIVE (terminal). No transition returns
// to ACTIVE; a later match between the same users needs a new pairing and
// is subject to the blacklist.
package pairing

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pairbond/pairbond/internal/app"
	"github.com/pairbond/pairbond/internal/db"
	svcErr "github.com/pairbond/pairbond/internal/errors"
	"github.com/pairbond/pairbond/internal/events"
	"github.com/pairbond/pairbond/internal/repository"
)

// Service implements the pairing lifecycle on top of the repositories.
type Service struct {
	appCtx    *app.AppContext
	pairings  *repository.PairingRepository
	blacklist *repository.BlacklistRepository
	queue     *repository.QueueRepository
	users     *repository.UserRepository
}

// NewService creates a pairing service with dependencies from AppContext.
func NewService(appCtx *app.AppContext) *Service {
	return &Service{
		appCtx:    appCtx,
		pairings:  repository.NewPairingRepository(appCtx.DB),
		blacklist: repository.NewBlacklistRepository(appCtx.DB),
		queue:     repository.NewQueueRepository(appCtx.DB),
		users:     repository.NewUserRepository(appCtx.DB),
	}
}

// ActivityDelta carries counter increments for UpdateActivity. Counters
// only ever grow; negative increments are rejected. ActiveDays, when set,
// overwrites the stored value.
type ActivityDelta struct {
	User1Messages int64
	User2Messages int64
	Words         int64
	Emoji         int64
	VoiceMinutes  int64
	ActiveDays    *int
}

// Create persists a new active pairing between two users.
//
// Validation, in order: distinct users, positive score, both users exist,
// neither actively paired, pair not blacklisted. The paired/blacklist
// checks run again inside the commit transaction, so two concurrent
// matching runs (or a run racing a manual admin pairing) targeting
// overlapping users surface AlreadyPaired instead of double-pairing.
//
// On success both users are evicted from the queue in the same transaction
// and MATCH_FOUND is published to each after commit.
func (s *Service) Create(ctx context.Context, user1, user2 uint64, score int) (*db.Pairing, error) {
	s.appCtx.Logger.Debug("Create pairing called", "user1", user1, "user2", user2, "score", score)

	if user1 == 0 || user2 == 0 {
		return nil, svcErr.Validation("user ids are required")
	}
	if user1 == user2 {
		return nil, svcErr.Validation("cannot pair user %d with themselves", user1)
	}
	if score <= 0 {
		return nil, svcErr.ErrInvalidScore
	}

	for _, id := range []uint64{user1, user2} {
		exists, err := s.users.Exists(ctx, id)
		if err != nil {
			return nil, svcErr.Map(err)
		}
		if !exists {
			return nil, svcErr.ErrNotFound
		}
	}

	if score > 100 {
		score = 100
	}

	pairing := &db.Pairing{
		ID:        uuid.NewString(),
		User1ID:   user1,
		User2ID:   user2,
		Score:     score,
		MatchedAt: s.appCtx.Now().UTC(),
		Active:    true,
	}

	err := s.appCtx.DB.Transaction(func(tx *gorm.DB) error {
		pairingsTx := s.pairings.WithTx(tx)
		blacklistTx := s.blacklist.WithTx(tx)
		queueTx := s.queue.WithTx(tx)

		// commit-time re-check of the single-active-pairing invariant; the
		// locked lookup makes concurrent creates for an overlapping user
		// conflict instead of both passing on stale snapshots
		for _, id := range []uint64{user1, user2} {
			if _, err := pairingsTx.ActiveForUserLocked(ctx, id); err == nil {
				return svcErr.ErrAlreadyPaired
			} else if !errors.Is(err, gorm.ErrRecordNotFound) {
				return err
			}
		}

		blocked, err := blacklistTx.IsBlacklisted(ctx, user1, user2)
		if err != nil {
			return err
		}
		if blocked {
			return svcErr.ErrBlacklisted
		}

		if err := pairingsTx.Create(ctx, pairing); err != nil {
			return err
		}

		// matched users leave the waiting pool, whether or not they queued
		for _, id := range []uint64{user1, user2} {
			if _, err := queueTx.Deactivate(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}

	// publish after commit; a dead channel must never unwind the pairing
	for _, id := range []uint64{user1, user2} {
		if err := s.appCtx.Publisher.Publish(ctx, id, events.MatchFound, pairing); err != nil {
			s.appCtx.Logger.Error("failed to publish MATCH_FOUND", "user", id, "pairing", pairing.ID, "err", err)
		}
	}

	s.appCtx.Logger.Info("pairing created", "pairing", pairing.ID, "user1", user1, "user2", user2, "score", score)
	return pairing, nil
}

// UpdateActivity applies counter increments to an active pairing. Negative
// increments are rejected: stored counters never decrease. ActiveDays is
// an overwrite, not an increment, when explicitly supplied.
func (s *Service) UpdateActivity(ctx context.Context, pairingID string, delta ActivityDelta) (*db.Pairing, error) {
	if delta.User1Messages < 0 || delta.User2Messages < 0 ||
		delta.Words < 0 || delta.Emoji < 0 || delta.VoiceMinutes < 0 {
		return nil, svcErr.Validation("activity counters cannot decrease")
	}
	if delta.ActiveDays != nil && *delta.ActiveDays < 0 {
		return nil, svcErr.Validation("active days cannot be negative")
	}

	var updated *db.Pairing
	err := s.appCtx.DB.Transaction(func(tx *gorm.DB) error {
		pairingsTx := s.pairings.WithTx(tx)

		pairing, err := pairingsTx.FindByID(ctx, pairingID)
		if err != nil {
			return err
		}
		if !pairing.Active {
			return svcErr.ErrInactive
		}

		pairing.User1Messages += delta.User1Messages
		pairing.User2Messages += delta.User2Messages
		pairing.WordCount += delta.Words
		pairing.EmojiCount += delta.Emoji
		pairing.VoiceMinutes += delta.VoiceMinutes
		if delta.ActiveDays != nil {
			pairing.ActiveDays = *delta.ActiveDays
		}

		if err := pairingsTx.Save(ctx, pairing); err != nil {
			return err
		}
		updated = pairing
		return nil
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return updated, nil
}

// Breakup terminates an active pairing and blacklists the pair, as a
// single atomic unit. There is no breakup without a blacklist entry; that
// is what prevents repeated re-matching churn between the same two users.
// The initiator must be one of the participants.
func (s *Service) Breakup(ctx context.Context, pairingID string, initiatorID uint64, reason string, mutual bool) (*db.Pairing, error) {
	s.appCtx.Logger.Debug("Breakup called", "pairing", pairingID, "initiator", initiatorID, "mutual", mutual)

	var ended *db.Pairing
	err := s.appCtx.DB.Transaction(func(tx *gorm.DB) error {
		pairingsTx := s.pairings.WithTx(tx)
		blacklistTx := s.blacklist.WithTx(tx)

		pairing, err := pairingsTx.FindByID(ctx, pairingID)
		if err != nil {
			return err
		}
		if !pairing.Active {
			return svcErr.ErrInactive
		}
		if !pairing.HasParticipant(initiatorID) {
			return svcErr.Validation("user %d is not a participant of pairing %s", initiatorID, pairingID)
		}

		now := s.appCtx.Now().UTC()
		initiator := initiatorID
		pairing.Active = false
		pairing.BreakupBy = &initiator
		pairing.BreakupReason = reason
		pairing.BreakupAt = &now
		pairing.BreakupMutual = mutual

		if err := pairingsTx.Save(ctx, pairing); err != nil {
			return err
		}
		if err := blacklistTx.Add(ctx, pairing.User1ID, pairing.User2ID, reason); err != nil {
			return err
		}
		ended = pairing
		return nil
	})
	if err != nil {
		return nil, svcErr.Map(err)
	}

	for _, id := range []uint64{ended.User1ID, ended.User2ID} {
		if err := s.appCtx.Publisher.Publish(ctx, id, events.PairingEnded, ended); err != nil {
			s.appCtx.Logger.Error("failed to publish PAIRING_ENDED", "user", id, "pairing", ended.ID, "err", err)
		}
	}

	s.appCtx.Logger.Info("pairing ended", "pairing", ended.ID, "initiator", initiatorID, "mutual", mutual)
	return ended, nil
}

// ActiveForUser returns the user's active pairing, or NotFound.
func (s *Service) ActiveForUser(ctx context.Context, userID uint64) (*db.Pairing, error) {
	pairing, err := s.pairings.ActiveForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return pairing, nil
}

// ListActive returns every active pairing, oldest match first.
func (s *Service) ListActive(ctx context.Context) ([]db.Pairing, error) {
	pairings, err := s.pairings.ListActive(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return pairings, nil
}

// History returns every pairing the user participated in, newest first.
func (s *Service) History(ctx context.Context, userID uint64) ([]db.Pairing, error) {
	pairings, err := s.pairings.HistoryForUser(ctx, userID)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	return pairings, nil
}

// IsBlacklisted reports whether the unordered pair may never re-pair.
func (s *Service) IsBlacklisted(ctx context.Context, userA, userB uint64) (bool, error) {
	blocked, err := s.blacklist.IsBlacklisted(ctx, userA, userB)
	if err != nil {
		return false, svcErr.Map(err)
	}
	return blocked, nil
}

// DeactivateAll is the admin bulk sweep: every active pairing goes
// inactive. It is operational cleanup, not a breakup, so no blacklist
// entries are created. Idempotent: a second call affects zero rows.
func (s *Service) DeactivateAll(ctx context.Context, actorID uint64) (int64, error) {
	affected, err := s.pairings.DeactivateAll(ctx)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	s.appCtx.Logger.Info("deactivated all pairings", "actor", actorID, "affected", affected)
	return affected, nil
}

// PermanentlyDelete removes a pairing's history outright, including the
// pair's blacklist entry. This is the deliberate escape hatch for admins;
// everything else treats the blacklist as append-only. Deleting a pairing
// that is already gone is a no-op.
func (s *Service) PermanentlyDelete(ctx context.Context, pairingID string, actorID uint64) error {
	err := s.appCtx.DB.Transaction(func(tx *gorm.DB) error {
		pairingsTx := s.pairings.WithTx(tx)
		blacklistTx := s.blacklist.WithTx(tx)

		pairing, err := pairingsTx.FindByID(ctx, pairingID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil // already gone
		} else if err != nil {
			return err
		}

		if _, err := pairingsTx.Delete(ctx, pairingID); err != nil {
			return err
		}
		return blacklistTx.DeleteForPair(ctx, pairing.User1ID, pairing.User2ID)
	})
	if err != nil {
		return svcErr.Map(err)
	}
	s.appCtx.Logger.Info("pairing permanently deleted", "pairing", pairingID, "actor", actorID)
	return nil
}

// DeleteAllInactive removes every inactive pairing row. Blacklist entries
// stay: bulk cleanup of dead rows must not reopen old pairs for matching.
func (s *Service) DeleteAllInactive(ctx context.Context, actorID uint64) (int64, error) {
	removed, err := s.pairings.DeleteInactive(ctx)
	if err != nil {
		return 0, svcErr.Map(err)
	}
	s.appCtx.Logger.Info("deleted inactive pairings", "actor", actorID, "removed", removed)
	return removed, nil
}
