// Package matchmaker implements the matching run: snapshot the waiting
// pool, score every unordered pair, and greedily commit the best
// conflict-free set through the pairing lifecycle.
//
// The walk is a greedy approximation of maximum-weight matching, not an
// optimal assignment. At the queue sizes this platform sees, the
// simplicity and latency win over an augmenting-path search; the tests
// pin the greedy behavior as the contract.
package matchmaker

import (
	"context"
	"sort"

	"github.com/pairbond/pairbond/internal/app"
	"github.com/pairbond/pairbond/internal/db"
	svcErr "github.com/pairbond/pairbond/internal/errors"
	"github.com/pairbond/pairbond/internal/events"
	"github.com/pairbond/pairbond/internal/repository"
	"github.com/pairbond/pairbond/internal/scoring"
	"github.com/pairbond/pairbond/internal/service/pairing"
)

// Service runs matchmaking over the waiting pool.
type Service struct {
	appCtx    *app.AppContext
	entries   *repository.QueueRepository
	blacklist *repository.BlacklistRepository
	pairings  *pairing.Service
}

// NewService creates a matchmaker with dependencies from AppContext.
// Commits go through the pairing service so every invariant check applies
// on this path exactly as on the explicit admin-pairing path.
func NewService(appCtx *app.AppContext, pairings *pairing.Service) *Service {
	return &Service{
		appCtx:    appCtx,
		entries:   repository.NewQueueRepository(appCtx.DB),
		blacklist: repository.NewBlacklistRepository(appCtx.DB),
		pairings:  pairings,
	}
}

// candidate is a scored unordered pair from one snapshot.
type candidate struct {
	a, b  db.QueueEntry
	score int
}

func profileOf(e db.QueueEntry) scoring.Profile {
	return scoring.Profile{
		Age:       e.Age,
		Gender:    scoring.Gender(e.Gender),
		Region:    scoring.Region(e.Region),
		SkillRank: scoring.Rank(e.SkillRank),
	}
}

// Run executes one matching pass and returns the pairings it committed.
// Safe to invoke with zero or one queued users. A failure to commit one
// candidate pair is logged and skipped; the rest of the run proceeds.
func (s *Service) Run(ctx context.Context) ([]db.Pairing, error) {
	snapshot, err := s.entries.ActiveEntries(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}
	if len(snapshot) < 2 {
		s.appCtx.Logger.Debug("matchmaking skipped", "waiting", len(snapshot))
		return nil, nil
	}

	blocked, err := s.blacklist.PairSet(ctx)
	if err != nil {
		return nil, svcErr.Map(err)
	}

	candidates := buildCandidates(snapshot, blocked)
	s.appCtx.Logger.Debug("matchmaking run", "waiting", len(snapshot), "candidates", len(candidates))

	committed := make([]db.Pairing, 0, len(snapshot)/2)
	consumed := make(map[uint64]bool, len(snapshot))

	for _, c := range candidates {
		if consumed[c.a.UserID] || consumed[c.b.UserID] {
			continue
		}

		// the pairing service evicts both users from the queue and emits
		// MATCH_FOUND; a conflict here (e.g. a concurrent run grabbed one
		// of the two) skips the pair without aborting the walk
		created, err := s.pairings.Create(ctx, c.a.UserID, c.b.UserID, c.score)
		if err != nil {
			s.appCtx.Logger.Warn("skipping candidate pair",
				"user1", c.a.UserID, "user2", c.b.UserID, "score", c.score, "err", err)
			continue
		}

		consumed[c.a.UserID] = true
		consumed[c.b.UserID] = true
		committed = append(committed, *created)
	}

	// one size broadcast per run, not one per pair
	if len(committed) > 0 {
		s.broadcastQueueSize(ctx)
	}

	s.appCtx.Logger.Info("matchmaking finished", "waiting", len(snapshot), "paired", len(committed)*2)
	return committed, nil
}

// buildCandidates scores every unordered pair, drops incompatible and
// blacklisted ones, and orders the rest by score descending. Ties break on
// the normalized user-ID pair so a fixed snapshot always yields the same
// walk order.
func buildCandidates(snapshot []db.QueueEntry, blocked map[[2]uint64]struct{}) []candidate {
	var candidates []candidate
	for i := 0; i < len(snapshot); i++ {
		for j := i + 1; j < len(snapshot); j++ {
			a, b := snapshot[i], snapshot[j]

			low, high := db.NormalizePair(a.UserID, b.UserID)
			if _, ok := blocked[[2]uint64{low, high}]; ok {
				continue
			}

			score := scoring.Score(profileOf(a), profileOf(b))
			if score <= 0 {
				continue
			}
			candidates = append(candidates, candidate{a: a, b: b, score: score})
		}
	}

	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		li, hi := db.NormalizePair(candidates[i].a.UserID, candidates[i].b.UserID)
		lj, hj := db.NormalizePair(candidates[j].a.UserID, candidates[j].b.UserID)
		if li != lj {
			return li < lj
		}
		return hi < hj
	})
	return candidates
}

func (s *Service) broadcastQueueSize(ctx context.Context) {
	size, err := s.entries.CountActive(ctx)
	if err != nil {
		s.appCtx.Logger.Error("failed to count queue", "err", err)
		return
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
}
