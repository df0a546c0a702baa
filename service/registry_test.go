package service

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestActiveRegistryTryAdd(t *testing.T) {
	r := newActiveRegistry()

	assert.True(t, r.TryAdd("p1"))
	assert.False(t, r.TryAdd("p1"))
	assert.True(t, r.Contains("p1"))
	assert.Equal(t, 1, r.Len())

	r.Remove("p1")
	assert.False(t, r.Contains("p1"))
	assert.True(t, r.TryAdd("p1"))
}

// 并发对同一 ID 的 TryAdd 只能成功一次
func TestActiveRegistryConcurrentTryAdd(t *testing.T) {
	r := newActiveRegistry()

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.TryAdd("p1") {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins)
	assert.Equal(t, 1, r.Len())
}

func TestActiveRegistryIndependentIDs(t *testing.T) {
	r := newActiveRegistry()

	assert.True(t, r.TryAdd("p1"))
	assert.True(t, r.TryAdd("p2"))
	assert.Equal(t, 2, r.Len())

	r.Remove("p1")
	assert.False(t, r.Contains("p1"))
	assert.True(t, r.Contains("p2"))
}
