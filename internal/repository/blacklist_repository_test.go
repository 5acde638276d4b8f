package repository_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairbond/pairbond/internal/repository"
)

func TestBlacklistAddIsOrderFreeAndDuplicateSafe(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewBlacklistRepository(setupTestDB(t))

	require.NoError(t, repo.Add(ctx, 2, 1, "breakup"))

	// duplicate insert, either argument order, is a no-op
	require.NoError(t, repo.Add(ctx, 2, 1, "breakup again"))
	require.NoError(t, repo.Add(ctx, 1, 2, "breakup reversed"))

	set, err := repo.PairSet(ctx)
	require.NoError(t, err)
	assert.Len(t, set, 1)
	assert.Contains(t, set, [2]uint64{1, 2})

	for _, pair := range [][2]uint64{{1, 2}, {2, 1}} {
		blocked, err := repo.IsBlacklisted(ctx, pair[0], pair[1])
		require.NoError(t, err)
		assert.True(t, blocked)
	}

	blocked, err := repo.IsBlacklisted(ctx, 1, 3)
	require.NoError(t, err)
	assert.False(t, blocked)
}

func TestBlacklistDeleteForPair(t *testing.T) {
	ctx := context.Background()
	repo := repository.NewBlacklistRepository(setupTestDB(t))

	require.NoError(t, repo.Add(ctx, 1, 2, "breakup"))
	require.NoError(t, repo.Add(ctx, 3, 4, "breakup"))

	// the admin escape hatch removes exactly one pair
	require.NoError(t, repo.DeleteForPair(ctx, 2, 1))

	blocked, err := repo.IsBlacklisted(ctx, 1, 2)
	require.NoError(t, err)
	assert.False(t, blocked)

	blocked, err = repo.IsBlacklisted(ctx, 3, 4)
	require.NoError(t, err)
	assert.True(t, blocked)
}
