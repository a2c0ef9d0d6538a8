package repository

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrSessionNotFound is returned when a qualifying-test session is absent,
// expired, or already consumed.
var ErrSessionNotFound = errors.New("qualifying session not found")

const sessionKeyPrefix = "score_session:"

// SessionScoreRepository holds ephemeral qualifying-test sessions keyed by
// session id. Sessions are written by the test engine, read once during
// signup, and deleted after successful account creation. Deletion is atomic;
// a concurrent reader of a consumed session observes absence.
type SessionScoreRepository interface {
	GetScore(ctx context.Context, sessionID string) (int, error)
	DeleteSession(ctx context.Context, sessionID string) error
	SaveScore(ctx context.Context, sessionID string, score int, ttl time.Duration) error
}

type sessionScoreRepository struct {
	client *redis.Client
}

// NewSessionScoreRepository returns a Redis-backed implementation.
func NewSessionScoreRepository(client *redis.Client) SessionScoreRepository {
	return &sessionScoreRepository{client: client}
}

func (r *sessionScoreRepository) GetScore(ctx context.Context, sessionID string) (int, error) {
	val, err := r.client.Get(ctx, sessionKeyPrefix+sessionID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, ErrSessionNotFound
		}
		return 0, err
	}
	score, err := strconv.Atoi(val)
	if err != nil {
		return 0, ErrSessionNotFound
	}
	return score, nil
}

func (r *sessionScoreRepository) DeleteSession(ctx context.Context, sessionID string) error {
	return r.client.Del(ctx, sessionKeyPrefix+sessionID).Err()
}

func (r *sessionScoreRepository) SaveScore(ctx context.Context, sessionID string, score int, ttl time.Duration) error {
	return r.client.Set(ctx, sessionKeyPrefix+sessionID, strconv.Itoa(score), ttl).Err()
}
