package session

import (
	"sync"
	"time"
)

// Session 表示一次逻辑对话。只有 Registry 会修改它，对外只暴露只读访问。
type Session struct {
	id        string
	createdAt time.Time

	mu           sync.RWMutex
	lastActivity time.Time
	active       bool
}

func newSession(id string, now time.Time) *Session {
	return &Session{
		id:           id,
		createdAt:    now,
		lastActivity: now,
		active:       true,
	}
}

// ID 返回会话标识，创建后不变
func (s *Session) ID() string { return s.id }

// CreatedAt 返回创建时间
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// LastActivity 返回最近一次访问时间
func (s *Session) LastActivity() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastActivity
}

// Active 报告会话是否仍然有效
func (s *Session) Active() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// touch 只向前推进 lastActivity，时钟回拨时保持原值。
func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	if now.After(s.lastActivity) {
		s.lastActivity = now
	}
	s.mu.Unlock()
}

func (s *Session) idleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastActivity)
}

func (s *Session) deactivate() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}
