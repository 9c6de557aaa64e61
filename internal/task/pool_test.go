package task

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolBoundsConcurrency(t *testing.T) {
	p := NewPool(2)

	var running, peak int64
	var wg sync.WaitGroup
	wg.Add(8)

	for i := 0; i < 8; i++ {
		p.Submit("job", func(ctx context.Context) {
			defer wg.Done()
			n := atomic.AddInt64(&running, 1)
			for {
				old := atomic.LoadInt64(&peak)
				if n <= old || atomic.CompareAndSwapInt64(&peak, old, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			atomic.AddInt64(&running, -1)
		})
	}
	wg.Wait()

	assert.LessOrEqual(t, atomic.LoadInt64(&peak), int64(2))
}

func TestPoolDoHonorsContext(t *testing.T) {
	p := NewPool(1)

	release := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	p.Submit("blocker", func(ctx context.Context) {
		defer wg.Done()
		<-release
	})

	// Give the blocker time to take the only slot.
	time.Sleep(20 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	err := p.Do(ctx, func(ctx context.Context) error {
		t.Fatal("must not run while the pool is full")
		return nil
	})
	require.Error(t, err)

	close(release)
	wg.Wait()
}

func TestPoolDoRunsInline(t *testing.T) {
	p := NewPool(1)

	ran := false
	err := p.Do(context.Background(), func(ctx context.Context) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestPoolMinimumSize(t *testing.T) {
	p := NewPool(0)
	require.NoError(t, p.Do(context.Background(), func(ctx context.Context) error { return nil }))
}
