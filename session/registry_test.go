package session

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/BaSui01/voicerelay/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock 是可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestRegistry_CreateGetEnd(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(time.Hour, WithClock(clock.Now))

	id, err := r.Create()
	require.NoError(t, err)
	require.NotEmpty(t, id)
	assert.Equal(t, 1, r.ActiveCount())

	clock.Advance(5 * time.Second)

	s, ok := r.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, s.ID())
	assert.True(t, s.Active())
	assert.False(t, s.LastActivity().Before(s.CreatedAt()))
	assert.Equal(t, clock.Now(), s.LastActivity())

	assert.True(t, r.End(id))
	assert.False(t, s.Active())
	assert.Equal(t, 0, r.ActiveCount())

	_, ok = r.Get(id)
	assert.False(t, ok)
}

func TestRegistry_UnknownAndEndedIDs(t *testing.T) {
	r := NewRegistry(time.Hour)

	_, ok := r.Get("never-issued")
	assert.False(t, ok)
	assert.False(t, r.End("never-issued"))
	assert.False(t, r.End("never-issued"))

	id, err := r.Create()
	require.NoError(t, err)
	assert.True(t, r.End(id))
	assert.False(t, r.End(id))
	_, ok = r.Get(id)
	assert.False(t, ok)
	assert.Equal(t, 0, r.ActiveCount())
}

func TestRegistry_LastActivityNeverMovesBackwards(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(time.Hour, WithClock(clock.Now))

	id, err := r.Create()
	require.NoError(t, err)

	clock.Advance(10 * time.Second)
	s, _ := r.Get(id)
	seen := s.LastActivity()

	clock.Advance(-time.Minute)
	s, _ = r.Get(id)
	assert.Equal(t, seen, s.LastActivity())
	assert.False(t, s.LastActivity().Before(s.CreatedAt()))
}

func TestRegistry_ConcurrentCreateUnique(t *testing.T) {
	r := NewRegistry(time.Hour)

	const workers = 64
	const perWorker = 50

	ids := make(chan string, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				id, err := r.Create()
				if err == nil {
					ids <- id
				}
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]struct{})
	for id := range ids {
		_, dup := seen[id]
		require.False(t, dup, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
	assert.Len(t, seen, workers*perWorker)
	assert.Equal(t, workers*perWorker, r.ActiveCount())
}

func TestRegistry_IDCollisionRetries(t *testing.T) {
	seq := []string{"dup", "dup", "fresh"}
	var mu sync.Mutex
	gen := func() (string, error) {
		mu.Lock()
		defer mu.Unlock()
		id := seq[0]
		if len(seq) > 1 {
			seq = seq[1:]
		}
		return id, nil
	}
	r := NewRegistry(time.Hour, WithIDGenerator(gen))

	first, err := r.Create()
	require.NoError(t, err)
	assert.Equal(t, "dup", first)

	second, err := r.Create()
	require.NoError(t, err)
	assert.Equal(t, "fresh", second)
}

func TestRegistry_IDExhaustion(t *testing.T) {
	r := NewRegistry(time.Hour, WithIDGenerator(func() (string, error) { return "same", nil }))
	_, err := r.Create()
	require.NoError(t, err)

	_, err = r.Create()
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrSession))

	r = NewRegistry(time.Hour, WithIDGenerator(func() (string, error) { return "", errors.New("entropy") }))
	_, err = r.Create()
	require.Error(t, err)
	assert.True(t, types.IsCode(err, types.ErrSession))
}

func TestRegistry_SweepRemovesOnlyIdleSessions(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(time.Minute, WithClock(clock.Now))

	stale, _ := r.Create()
	touched, _ := r.Create()

	clock.Advance(30 * time.Second)
	fresh, _ := r.Create()

	clock.Advance(30*time.Second + time.Nanosecond)
	_, _ = r.Get(touched)

	removed := r.Sweep(clock.Now())
	assert.Equal(t, []string{stale}, removed)

	_, ok := r.Get(stale)
	assert.False(t, ok)
	_, ok = r.Get(touched)
	assert.True(t, ok)
	_, ok = r.Get(fresh)
	assert.True(t, ok)
	assert.Equal(t, 2, r.ActiveCount())
}

func TestRegistry_SweepBoundaryIsExclusive(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(time.Minute, WithClock(clock.Now))
	id, _ := r.Create()

	assert.Empty(t, r.Sweep(clock.Now().Add(time.Minute)))
	assert.Equal(t, []string{id}, r.Sweep(clock.Now().Add(time.Minute+time.Nanosecond)))
}

func TestRegistry_OnEndHooks(t *testing.T) {
	clock := newFakeClock()
	r := NewRegistry(time.Minute, WithClock(clock.Now))

	var mu sync.Mutex
	got := map[string]EndReason{}
	r.OnEnd(func(id string, reason EndReason) {
		mu.Lock()
		got[id] = reason
		mu.Unlock()
	})

	closed, _ := r.Create()
	expired, _ := r.Create()

	require.True(t, r.End(closed))
	require.False(t, r.End(closed))

	clock.Advance(2 * time.Minute)
	r.Sweep(clock.Now())

	assert.Equal(t, map[string]EndReason{
		closed:  EndReasonClosed,
		expired: EndReasonExpired,
	}, got)
}

func TestRegistry_ConcurrentMixedOperations(t *testing.T) {
	r := NewRegistry(time.Hour)

	var wg sync.WaitGroup
	for w := 0; w < 16; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				id, err := r.Create()
				if err != nil {
					t.Errorf("create: %v", err)
					return
				}
				if _, ok := r.Get(id); !ok {
					t.Errorf("worker %d: created session %s not found", w, id)
				}
				if i%2 == 0 && !r.End(id) {
					t.Errorf("end %s returned false", id)
				}
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, 16*50, r.ActiveCount())
}

func ExampleRegistry() {
	r := NewRegistry(time.Hour, WithIDGenerator(func() (string, error) { return "session-1", nil }))

	id, _ := r.Create()
	_, found := r.Get(id)
	fmt.Println(id, found, r.ActiveCount())

	fmt.Println(r.End(id), r.End(id))
	// Output:
	// session-1 true 1
	// true false
}
