package papersources

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimiter(t *testing.T) {
	tests := []struct {
		name  string
		rate  float64
		burst int
	}{
		{name: "pubmed without key", rate: 3, burst: 1},
		{name: "semantic scholar", rate: 10, burst: 10},
		{name: "arxiv", rate: 0.34, burst: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := NewRateLimiter(tt.rate, tt.burst)
			require.NotNil(t, rl)
			assert.InDelta(t, float64(tt.burst), rl.Tokens(), 0.01)
		})
	}
}

func TestRateLimiter_Wait(t *testing.T) {
	rl := NewRateLimiter(20, 1)

	start := time.Now()
	for i := 0; i < 3; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}

	// Two waits of ~50ms each after the initial burst token.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestRateLimiter_WaitContextCanceled(t *testing.T) {
	rl := NewRateLimiter(0.1, 1)
	require.True(t, rl.Allow())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	assert.Error(t, rl.Wait(ctx))
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(1, 2)

	assert.True(t, rl.Allow())
	assert.True(t, rl.Allow())
	assert.False(t, rl.Allow())
}

func TestRateLimiter_Concurrency(t *testing.T) {
	rl := NewRateLimiter(1000, 5)

	var wg sync.WaitGroup
	var allowed atomic.Int32
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := rl.Wait(context.Background()); err == nil {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(20), allowed.Load())
}
