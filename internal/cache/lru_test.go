package cache

import (
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU[string](2, time.Hour)
	c.Set("a", "A")
	c.Set("b", "B")
	_, ok := c.Get("a") // a 变为最近使用
	require.True(t, ok)
	c.Set("c", "C")

	_, ok = c.Get("b")
	assert.False(t, ok, "least recently used entry is evicted")
	v, ok := c.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "A", v)
	assert.Equal(t, 2, c.Len())
}

func TestLRU_TTL(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	c := NewLRU[int](4, time.Minute)
	c.now = func() time.Time { return now }

	c.Set("k", 1)
	now = now.Add(59 * time.Second)
	v, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, 1, v)

	now = now.Add(time.Second)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
}

func TestLRU_Update(t *testing.T) {
	c := NewLRU[int](2, time.Hour)
	c.Set("k", 1)
	c.Set("k", 2)
	v, _ := c.Get("k")
	assert.Equal(t, 2, v)
	assert.Equal(t, 1, c.Len())
}

func TestLRU_DisabledAndPurge(t *testing.T) {
	off := NewLRU[int](0, time.Hour)
	off.Set("k", 1)
	_, ok := off.Get("k")
	assert.False(t, ok)

	var nilCache *LRU[int]
	nilCache.Set("k", 1)
	_, ok = nilCache.Get("k")
	assert.False(t, ok)

	c := NewLRU[int](8, time.Hour)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Purge()
	assert.Zero(t, c.Len())
	_, ok = c.Get("a")
	assert.False(t, ok)
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU[int](64, time.Hour)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 1000; i++ {
				k := strconv.Itoa((g*1000 + i) % 100)
				c.Set(k, i)
				c.Get(k)
			}
		}(g)
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Len(), 64)
}
