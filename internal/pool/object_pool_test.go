package pool

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPool_GetPut(t *testing.T) {
	p := NewPool(func() []int { return make([]int, 0, 8) }, func(s *[]int) bool {
		*s = (*s)[:0]
		return true
	})

	s := p.Get()
	s = append(s, 1, 2, 3)
	p.Put(s)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Gets)
	assert.Equal(t, int64(1), stats.Puts)
	assert.Equal(t, int64(1), stats.News)
	assert.Equal(t, int64(0), stats.Dropped)
}

func TestBufferPool_ResetsBuffers(t *testing.T) {
	p := NewBufferPool(64, 1024)

	buf := p.Get()
	buf.WriteString("hello")
	p.Put(buf)

	// sync.Pool 不保证返回同一个对象，但取出的缓冲区必须为空
	got := p.Get()
	assert.Equal(t, 0, got.Len())
}

func TestBufferPool_DropsOversizedBuffers(t *testing.T) {
	p := NewBufferPool(64, 1024)

	big := bytes.NewBuffer(make([]byte, 0, 4096))
	p.Put(big)

	stats := p.Stats()
	assert.Equal(t, int64(1), stats.Dropped)
	assert.Equal(t, int64(0), stats.Puts)
}

func TestStats_HitRate(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.HitRate())
	assert.InDelta(t, 0.75, Stats{Gets: 4, News: 1}.HitRate(), 1e-9)
}
