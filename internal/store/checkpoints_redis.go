package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/VillePajala/soccer-pre-game-app-sub002/internal/timer"
)

// RedisCheckpointStore keeps per-game timer checkpoints in Redis. A TTL
// bounds how long a stale checkpoint can outlive its match; implements
// timer.CheckpointStore.
type RedisCheckpointStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisCheckpointStore(rdb *redis.Client, ttl time.Duration) *RedisCheckpointStore {
	return &RedisCheckpointStore{rdb: rdb, ttl: ttl}
}

func (s *RedisCheckpointStore) key(gameID string) string {
	return fmt.Sprintf("game:%s:timer", gameID)
}

func (s *RedisCheckpointStore) SaveCheckpoint(ctx context.Context, cp timer.Checkpoint) error {
	b, err := json.Marshal(cp)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key(cp.GameID), b, s.ttl).Err()
}

func (s *RedisCheckpointStore) LoadCheckpoint(ctx context.Context, gameID string) (timer.Checkpoint, bool, error) {
	val, err := s.rdb.Get(ctx, s.key(gameID)).Bytes()
	if err == redis.Nil {
		return timer.Checkpoint{}, false, nil
	}
	if err != nil {
		return timer.Checkpoint{}, false, err
	}

	var cp timer.Checkpoint
	if err := json.Unmarshal(val, &cp); err != nil {
		return timer.Checkpoint{}, false, err
	}
	return cp, true, nil
}

func (s *RedisCheckpointStore) DeleteCheckpoint(ctx context.Context, gameID string) error {
	return s.rdb.Del(ctx, s.key(gameID)).Err()
}
