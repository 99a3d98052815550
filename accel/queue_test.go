package accel

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestQueue_Do(t *testing.T) {
	q := New(zap.NewNop(), 1)
	defer q.Close()

	ran := false
	require.NoError(t, q.Do(context.Background(), func() error {
		ran = true
		return nil
	}))
	assert.True(t, ran)

	boom := errors.New("boom")
	assert.ErrorIs(t, q.Do(context.Background(), func() error { return boom }), boom)
}

func TestQueue_PanicIsFrameLocal(t *testing.T) {
	q := New(zap.NewNop(), 1)
	defer q.Close()

	err := q.Do(context.Background(), func() error { panic("delegate crashed") })
	assert.ErrorContains(t, err, "delegate crashed")

	// worker still serves
	assert.NoError(t, q.Do(context.Background(), func() error { return nil }))
}

func TestQueue_Timeout(t *testing.T) {
	q := New(zap.NewNop(), 1)
	defer q.Close()

	release := make(chan struct{})
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Do(ctx, func() error {
		<-release
		return nil
	})
	assert.ErrorIs(t, err, ErrTimeout)

	// the next job waits for the stuck one instead of overlapping it
	var order []string
	var mu sync.Mutex
	go func() {
		time.Sleep(20 * time.Millisecond)
		mu.Lock()
		order = append(order, "released")
		mu.Unlock()
		close(release)
	}()
	require.NoError(t, q.Do(context.Background(), func() error {
		mu.Lock()
		order = append(order, "next")
		mu.Unlock()
		return nil
	}))
	mu.Lock()
	assert.Equal(t, []string{"released", "next"}, order)
	mu.Unlock()
}

func TestQueue_Serialized(t *testing.T) {
	q := New(zap.NewNop(), 4)
	defer q.Close()

	var inFlight, maxInFlight int32
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(context.Background(), func() error {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					m := atomic.LoadInt32(&maxInFlight)
					if n <= m || atomic.CompareAndSwapInt32(&maxInFlight, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInFlight)
}

func TestQueue_Closed(t *testing.T) {
	q := New(zap.NewNop(), 1)
	q.Close()
	q.Close()
	assert.ErrorIs(t, q.Do(context.Background(), func() error { return nil }), ErrClosed)
}
