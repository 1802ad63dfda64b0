package cronrunner

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunner_RunsJobsWithBaseContext(t *testing.T) {
	type ctxKey struct{}
	base := context.WithValue(context.Background(), ctxKey{}, "base")

	r := New(nil, base)
	got := make(chan any, 1)
	_, err := r.Add("* * * * * *", func(ctx context.Context) {
		select {
		case got <- ctx.Value(ctxKey{}):
		default:
		}
	})
	require.NoError(t, err)
	assert.Equal(t, 1, r.Len())

	r.Start()
	defer r.Stop()

	select {
	case v := <-got:
		assert.Equal(t, "base", v)
	case <-time.After(3 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestRunner_SkipsWhileRunning(t *testing.T) {
	r := New(nil, context.Background())

	var runs atomic.Int32
	release := make(chan struct{})
	_, err := r.Add("* * * * * *", func(ctx context.Context) {
		runs.Add(1)
		<-release
	})
	require.NoError(t, err)

	r.Start()
	time.Sleep(2500 * time.Millisecond)
	close(release)
	r.Stop()

	assert.Equal(t, int32(1), runs.Load())
}

func TestRunner_CancelledBaseSkips(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := New(nil, ctx)
	var runs atomic.Int32
	_, err := r.Add("* * * * * *", func(context.Context) { runs.Add(1) })
	require.NoError(t, err)

	r.Start()
	time.Sleep(1200 * time.Millisecond)
	r.Stop()
	assert.Zero(t, runs.Load())
}

func TestRunner_BadSpec(t *testing.T) {
	t.Parallel()

	_, err := New(nil, context.Background()).Add("not a spec", func(context.Context) {})
	assert.Error(t, err)
}
