package session

import (
	"hash/fnv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BaSui01/voicerelay/types"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	shardCount      = 32
	maxIDCollisions = 3
)

// EndReason 说明会话为何被移除
type EndReason string

const (
	EndReasonClosed  EndReason = "closed"
	EndReasonExpired EndReason = "expired"
)

// EndHook 在会话被移除后调用（不持有任何注册表锁）
type EndHook func(id string, reason EndReason)

// Option 配置 Registry
type Option func(*Registry)

// WithClock 替换时间来源，测试使用
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator 替换会话 ID 生成器
func WithIDGenerator(gen func() (string, error)) Option {
	return func(r *Registry) { r.newID = gen }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(r *Registry) {
		if logger != nil {
			r.logger = logger
		}
	}
}

type shard struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// Registry 管理会话 ID 到会话状态的映射。
// 会话按 ID 哈希分片，不同分片上的操作互不阻塞；同一 ID 的操作在分片锁下串行。
type Registry struct {
	shards  [shardCount]*shard
	timeout time.Duration
	active  atomic.Int64

	now    func() time.Time
	newID  func() (string, error)
	logger *zap.Logger

	hooksMu sync.RWMutex
	hooks   []EndHook
}

// NewRegistry 创建会话注册表，timeout 为空闲超时
func NewRegistry(timeout time.Duration, opts ...Option) *Registry {
	r := &Registry{
		timeout: timeout,
		now:     time.Now,
		newID:   newUUID,
		logger:  zap.NewNop(),
	}
	for i := range r.shards {
		r.shards[i] = &shard{sessions: make(map[string]*Session)}
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With(zap.String("component", "session_registry"))
	return r
}

func newUUID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

func (r *Registry) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return r.shards[h.Sum32()%shardCount]
}

// OnEnd 注册会话移除回调
func (r *Registry) OnEnd(hook EndHook) {
	r.hooksMu.Lock()
	r.hooks = append(r.hooks, hook)
	r.hooksMu.Unlock()
}

func (r *Registry) fireEnd(id string, reason EndReason) {
	r.hooksMu.RLock()
	hooks := r.hooks
	r.hooksMu.RUnlock()
	for _, h := range hooks {
		h(id, reason)
	}
}

// Create 分配新的会话 ID 并登记为活跃会话
func (r *Registry) Create() (string, error) {
	for attempt := 0; attempt < maxIDCollisions; attempt++ {
		id, err := r.newID()
		if err != nil {
			return "", types.NewError(types.ErrSession, "failed to generate session id").WithCause(err)
		}
		if id == "" {
			continue
		}

		sh := r.shardFor(id)
		sh.mu.Lock()
		if _, exists := sh.sessions[id]; exists {
			sh.mu.Unlock()
			continue
		}
		sh.sessions[id] = newSession(id, r.now())
		sh.mu.Unlock()

		r.active.Add(1)
		r.logger.Debug("session created", zap.String("session_id", id))
		return id, nil
	}
	return "", types.NewError(types.ErrSession, "session id generation exhausted")
}

// Get 返回活跃会话并刷新其最近访问时间；不存在时返回 false，不视为错误
func (r *Registry) Get(id string) (*Session, bool) {
	sh := r.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	s, ok := sh.sessions[id]
	if !ok || !s.Active() {
		return nil, false
	}
	s.touch(r.now())
	return s, true
}

// End 结束并移除会话，返回会话是否存在。重复调用是无操作。
func (r *Registry) End(id string) bool {
	sh := r.shardFor(id)
	sh.mu.Lock()
	s, ok := sh.sessions[id]
	if ok {
		delete(sh.sessions, id)
		s.deactivate()
	}
	sh.mu.Unlock()

	if !ok {
		return false
	}
	r.active.Add(-1)
	r.logger.Debug("session ended", zap.String("session_id", id))
	r.fireEnd(id, EndReasonClosed)
	return true
}

// Sweep 移除所有空闲时间超过超时的会话，返回被移除的 ID
func (r *Registry) Sweep(now time.Time) []string {
	var removed []string
	for _, sh := range r.shards {
		sh.mu.Lock()
		for id, s := range sh.sessions {
			if s.idleSince(now) > r.timeout {
				delete(sh.sessions, id)
				s.deactivate()
				removed = append(removed, id)
			}
		}
		sh.mu.Unlock()
	}

	if len(removed) == 0 {
		return nil
	}
	r.active.Add(-int64(len(removed)))
	for _, id := range removed {
		r.fireEnd(id, EndReasonExpired)
	}
	r.logger.Info("expired sessions swept", zap.Int("count", len(removed)))
	return removed
}

// ActiveCount 返回活跃会话数
func (r *Registry) ActiveCount() int {
	return int(r.active.Load())
}

// Timeout 返回空闲超时
func (r *Registry) Timeout() time.Duration {
	return r.timeout
}
