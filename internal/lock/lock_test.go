package lock

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rustyeddy/llmtrader/config"
)

func TestLocal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	l := NewLocal()

	release, ok, err := l.TryLock(ctx, "BTCUSDT")
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = l.TryLock(ctx, "BTCUSDT")
	require.NoError(t, err)
	assert.False(t, ok, "second holder must be refused")

	other, ok, _ := l.TryLock(ctx, "ETHUSDT")
	assert.True(t, ok, "keys are independent")
	other()

	release()
	release()

	again, ok, _ := l.TryLock(ctx, "BTCUSDT")
	assert.True(t, ok)
	again()
}

func TestLocal_Concurrent(t *testing.T) {
	t.Parallel()
	l := NewLocal()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	start := make(chan struct{})
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			if _, ok, _ := l.TryLock(context.Background(), "k"); ok {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	close(start)
	wg.Wait()
	assert.Equal(t, 1, wins)
}

func TestNew(t *testing.T) {
	t.Parallel()

	l, err := New(config.LockConfig{Backend: "local"})
	require.NoError(t, err)
	assert.IsType(t, &Local{}, l)

	r, err := New(config.LockConfig{Backend: "redis", RedisAddr: "127.0.0.1:6379", TTL: time.Minute})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, r.(*Redis).ttl)

	_, err = New(config.LockConfig{Backend: "etcd"})
	assert.Error(t, err)
}

func TestRedis_Unreachable(t *testing.T) {
	t.Parallel()

	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 100 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = client.Close() })

	_, ok, err := NewRedis(client, "test:", 0).TryLock(context.Background(), "BTCUSDT")
	assert.Error(t, err)
	assert.False(t, ok)
}
