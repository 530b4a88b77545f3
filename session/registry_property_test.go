package session

import (
	"sort"
	"strconv"
	"testing"
	"time"

	"pgregory.net/rapid"
)

// Sweep 精确移除空闲时间超过超时的会话，其余保持不变
func TestProperty_SweepRemovesExactlyExpired(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		timeoutSec := rapid.IntRange(1, 600).Draw(rt, "timeout")
		timeout := time.Duration(timeoutSec) * time.Second
		offsets := rapid.SliceOfN(rapid.IntRange(0, 1200), 1, 40).Draw(rt, "offsets")
		sweepAt := rapid.IntRange(0, 2400).Draw(rt, "sweepAt")

		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		clock := &fakeClock{now: base}
		counter := 0
		r := NewRegistry(timeout,
			WithClock(clock.Now),
			WithIDGenerator(func() (string, error) {
				counter++
				return "s" + strconv.Itoa(counter), nil
			}),
		)

		lastActivity := map[string]time.Time{}
		for _, off := range offsets {
			clock.now = base.Add(time.Duration(off) * time.Second)
			id, err := r.Create()
			if err != nil {
				rt.Fatalf("create: %v", err)
			}
			lastActivity[id] = clock.now
		}

		now := base.Add(time.Duration(sweepAt) * time.Second)
		var want []string
		for id, last := range lastActivity {
			if now.Sub(last) > timeout {
				want = append(want, id)
			}
		}

		got := r.Sweep(now)
		sort.Strings(got)
		sort.Strings(want)

		if len(got) != len(want) {
			rt.Fatalf("swept %v, want %v", got, want)
		}
		for i := range got {
			if got[i] != want[i] {
				rt.Fatalf("swept %v, want %v", got, want)
			}
		}
		if r.ActiveCount() != len(offsets)-len(want) {
			rt.Fatalf("active count %d, want %d", r.ActiveCount(), len(offsets)-len(want))
		}

		removed := map[string]bool{}
		for _, id := range want {
			removed[id] = true
		}
		for id := range lastActivity {
			_, ok := r.Get(id)
			if ok == removed[id] {
				rt.Fatalf("session %s present=%v after sweep, removed=%v", id, ok, removed[id])
			}
		}
	})
}

// End 对任意操作序列都是幂等的，ActiveCount 与存活集合一致
func TestProperty_EndIsIdempotent(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := NewRegistry(time.Hour)
		var ids []string
		alive := map[string]bool{}

		steps := rapid.IntRange(1, 100).Draw(rt, "steps")
		for i := 0; i < steps; i++ {
			if len(ids) == 0 || rapid.Bool().Draw(rt, "create") {
				id, err := r.Create()
				if err != nil {
					rt.Fatalf("create: %v", err)
				}
				ids = append(ids, id)
				alive[id] = true
				continue
			}
			id := rapid.SampledFrom(ids).Draw(rt, "id")
			if got := r.End(id); got != alive[id] {
				rt.Fatalf("End(%s) = %v, want %v", id, got, alive[id])
			}
			alive[id] = false
		}

		n := 0
		for _, a := range alive {
			if a {
				n++
			}
		}
		if r.ActiveCount() != n {
			rt.Fatalf("active count %d, want %d", r.ActiveCount(), n)
		}
	})
}
