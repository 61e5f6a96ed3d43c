package guard

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryAcquire(t *testing.T) {
	ctx := context.Background()
	g := NewMemory()

	unlock, err := g.Acquire(ctx, "user:a", time.Second)
	require.NoError(t, err)

	_, err = g.Acquire(ctx, "user:a", time.Second)
	assert.ErrorIs(t, err, ErrLockHeld)

	other, err := g.Acquire(ctx, "user:b", time.Second)
	require.NoError(t, err)
	other()

	unlock()
	unlock()

	again, err := g.Acquire(ctx, "user:a", time.Second)
	require.NoError(t, err)
	again()
}

func TestMemoryAcquireConcurrent(t *testing.T) {
	ctx := context.Background()
	g := NewMemory()

	var (
		wg        sync.WaitGroup
		attempted sync.WaitGroup
		winners   atomic.Int32
		start     = make(chan struct{})
		release   = make(chan struct{})
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		attempted.Add(1)
		go func() {
			defer wg.Done()
			<-start
			unlock, err := g.Acquire(ctx, "user:a", time.Second)
			attempted.Done()
			if err != nil {
				return
			}
			winners.Add(1)
			<-release
			unlock()
		}()
	}
	close(start)
	attempted.Wait()
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, winners.Load())
}
