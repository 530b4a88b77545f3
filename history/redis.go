package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/BaSui01/voicerelay/internal/cache"
	"github.com/BaSui01/voicerelay/internal/keylock"
	"github.com/BaSui01/voicerelay/types"
	"go.uber.org/zap"
)

// RedisStore 将会话历史以 JSON 保存在 Redis 中。
// key 为 <prefix>history:<sessionID>，TTL 与会话空闲超时一致，每次写入时刷新。
// 同一 ID 的串行化依赖进程内锁，因此假定单进程写入。
type RedisStore struct {
	cache     *cache.Manager
	keyPrefix string
	ttl       time.Duration
	locks     *keylock.Locker
	logger    *zap.Logger
}

// NewRedisStore 创建 Redis 历史存储
func NewRedisStore(manager *cache.Manager, keyPrefix string, ttl time.Duration, logger *zap.Logger) *RedisStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisStore{
		cache:     manager,
		keyPrefix: keyPrefix + "history:",
		ttl:       ttl,
		locks:     keylock.New(),
		logger:    logger.With(zap.String("component", "history_redis")),
	}
}

func (s *RedisStore) key(sessionID string) string {
	return s.keyPrefix + sessionID
}

func (s *RedisStore) load(ctx context.Context, sessionID string) ([]types.Turn, error) {
	var turns []types.Turn
	err := s.cache.GetJSON(ctx, s.key(sessionID), &turns)
	if errors.Is(err, cache.ErrCacheMiss) {
		return []types.Turn{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", sessionID, err)
	}
	return clone(turns), nil
}

// Load 读取会话历史，不存在时返回空切片
func (s *RedisStore) Load(ctx context.Context, sessionID string) ([]types.Turn, error) {
	return s.load(ctx, sessionID)
}

// Update 在会话锁下读取、修改并写回历史
func (s *RedisStore) Update(ctx context.Context, sessionID string, fn UpdateFunc) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	current, err := s.load(ctx, sessionID)
	if err != nil {
		return err
	}

	next, err := fn(current)
	if err != nil {
		return err
	}

	if err := s.cache.SetJSON(ctx, s.key(sessionID), next, s.ttl); err != nil {
		s.logger.Warn("history write failed", zap.String("session_id", sessionID), zap.Error(err))
		return fmt.Errorf("store history for %s: %w", sessionID, err)
	}
	return nil
}

// Delete 删除会话历史
func (s *RedisStore) Delete(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()
	return s.cache.Delete(ctx, s.key(sessionID))
}

var _ Store = (*RedisStore)(nil)
