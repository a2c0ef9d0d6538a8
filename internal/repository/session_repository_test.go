package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSessionRepo(t *testing.T) SessionScoreRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionScoreRepository(client)
}

func TestSessionScoreRepositoryRoundTrip(t *testing.T) {
	repo := newSessionRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveScore(ctx, "sess-1", 120, time.Hour))

	score, err := repo.GetScore(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 120, score)
}

func TestSessionScoreRepositoryMissingSession(t *testing.T) {
	repo := newSessionRepo(t)

	_, err := repo.GetScore(context.Background(), "sess-unknown")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionScoreRepositoryOneTimeConsumption(t *testing.T) {
	repo := newSessionRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.SaveScore(ctx, "sess-1", 120, time.Hour))
	require.NoError(t, repo.DeleteSession(ctx, "sess-1"))

	_, err := repo.GetScore(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound, "consumed session must be unreadable")

	// deleting again is harmless and the session stays absent
	require.NoError(t, repo.DeleteSession(ctx, "sess-1"))
	_, err = repo.GetScore(ctx, "sess-1")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
