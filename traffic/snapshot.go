package traffic

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// 拥堵等级快照的持久化，用于重启后预热
type SnapshotStore interface {
	Save(ctx context.Context, levels map[string]Level) error
	Load(ctx context.Context) (map[string]Level, error)
}

type RedisSnapshotStore struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisSnapshotStore(client *redis.Client, key string, ttl time.Duration) *RedisSnapshotStore {
	return &RedisSnapshotStore{client: client, key: key, ttl: ttl}
}

func (s *RedisSnapshotStore) Save(ctx context.Context, levels map[string]Level) error {
	values := make(map[string]interface{}, len(levels))
	for id, l := range levels {
		values[id] = int(l)
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.key)
		if len(values) > 0 {
			pipe.HSet(ctx, s.key, values)
			if s.ttl > 0 {
				pipe.Expire(ctx, s.key, s.ttl)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save traffic snapshot %s: %w", s.key, err)
	}
	return nil
}

func (s *RedisSnapshotStore) Load(ctx context.Context) (map[string]Level, error) {
	raw, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("load traffic snapshot %s: %w", s.key, err)
	}
	levels := make(map[string]Level, len(raw))
	for id, v := range raw {
		n, err := strconv.Atoi(v)
		if err != nil || Level(n) < FreeFlow || Level(n) > Closed {
			log.Warnf("skip invalid snapshot level %q for segment %s", v, id)
			continue
		}
		levels[id] = Level(n)
	}
	return levels, nil
}

// 保存当前等级快照
func (m *Model) SaveSnapshot(ctx context.Context, store SnapshotStore) error {
	return store.Save(ctx, m.Levels())
}

// 从快照恢复等级，快照为空时保持现状
func (m *Model) LoadSnapshot(ctx context.Context, store SnapshotStore) error {
	levels, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if len(levels) == 0 {
		return nil
	}
	m.Restore(levels)
	log.Infof("restored %d segment levels from snapshot", len(levels))
	return nil
}
