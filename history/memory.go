package history

import (
	"context"
	"sync"

	"github.com/BaSui01/voicerelay/internal/keylock"
	"github.com/BaSui01/voicerelay/types"
)

// MemoryStore 是进程内历史存储，进程重启后数据丢失。
type MemoryStore struct {
	locks *keylock.Locker

	mu       sync.RWMutex
	sessions map[string][]types.Turn
}

// NewMemoryStore 创建内存历史存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		locks:    keylock.New(),
		sessions: make(map[string][]types.Turn),
	}
}

// Load 返回会话历史的副本
func (s *MemoryStore) Load(ctx context.Context, sessionID string) ([]types.Turn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.sessions[sessionID]), nil
}

// Update 在会话锁下执行 fn 并写回结果
func (s *MemoryStore) Update(ctx context.Context, sessionID string, fn UpdateFunc) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	current := clone(s.sessions[sessionID])
	s.mu.RUnlock()

	next, err := fn(current)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.sessions[sessionID] = clone(next)
	s.mu.Unlock()
	return nil
}

// Delete 删除会话历史
func (s *MemoryStore) Delete(ctx context.Context, sessionID string) error {
	unlock := s.locks.Lock(sessionID)
	defer unlock()

	s.mu.Lock()
	delete(s.sessions, sessionID)
	s.mu.Unlock()
	return nil
}

// Len 返回持有历史的会话数
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

var _ Store = (*MemoryStore)(nil)
