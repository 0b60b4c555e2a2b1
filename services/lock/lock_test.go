package locksvc

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/session"
)

func testLocker(t *testing.T, l session.Locker) {
	ctx := context.Background()

	t.Run("serializes the same key", func(t *testing.T) {
		var (
			mu      sync.Mutex
			inside  int
			maxSeen int
			wg      sync.WaitGroup
		)
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				release, err := l.Acquire(ctx, "teacher:t1:2024-05-13")
				if !assert.NoError(t, err) {
					return
				}
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()
				time.Sleep(5 * time.Millisecond)
				mu.Lock()
				inside--
				mu.Unlock()
				release()
			}()
		}
		wg.Wait()
		assert.Equal(t, 1, maxSeen)
	})

	t.Run("different keys do not block", func(t *testing.T) {
		r1, err := l.Acquire(ctx, "teacher:t1:2024-05-13")
		require.NoError(t, err)
		defer r1()
		r2, err := l.Acquire(ctx, "teacher:t1:2024-05-14", "teacher:t2:2024-05-13")
		require.NoError(t, err)
		r2()
	})

	t.Run("gives up when the context ends", func(t *testing.T) {
		r1, err := l.Acquire(ctx, "teacher:t3:2024-05-13")
		require.NoError(t, err)

		tctx, cancel := context.WithTimeout(ctx, 30*time.Millisecond)
		defer cancel()
		_, err = l.Acquire(tctx, "teacher:t0:2024-05-13", "teacher:t3:2024-05-13")
		assert.ErrorIs(t, err, context.DeadlineExceeded)

		// the first key was handed back
		r0, err := l.Acquire(ctx, "teacher:t0:2024-05-13")
		require.NoError(t, err)
		r0()
		r1()
	})

	t.Run("no keys", func(t *testing.T) {
		release, err := l.Acquire(ctx)
		require.NoError(t, err)
		release()
	})
}

func TestMemoryLocker(t *testing.T) {
	l := NewMemoryLocker()
	testLocker(t, l)
	assert.Empty(t, l.slots, "released keys are forgotten")

	release, err := l.Acquire(context.Background(), "k")
	require.NoError(t, err)
	release()
	release() // idempotent
}

func TestRedisLocker(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	conf := core.NewTestConfig()
	conf.Redis.Addr = addr
	conf.Lock.TTL = 5 * time.Second

	client, err := NewRedisClient(context.Background(), conf)
	require.NoError(t, err)
	defer client.Close()

	testLocker(t, NewRedisLocker(client, &core.NopLogger{}, conf))
}
