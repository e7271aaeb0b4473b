package idgen

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnowflakeIncreasing(t *testing.T) {
	g := MustSnowflake(1)
	prev := g.Next()
	for i := 0; i < 1000; i++ {
		next := g.Next()
		require.Greater(t, next, prev)
		prev = next
	}
}

func TestSnowflakeConcurrentUnique(t *testing.T) {
	g := MustSnowflake(2)
	var (
		mu   sync.Mutex
		seen = map[int64]struct{}{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				id := g.Next()
				mu.Lock()
				seen[id] = struct{}{}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Len(t, seen, 1600)
}

func TestNewSnowflakeRejectsBadNode(t *testing.T) {
	_, err := NewSnowflake(5000)
	assert.Error(t, err)
}
