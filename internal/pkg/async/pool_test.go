package async_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracklet/internal/pkg/async"
)

func TestPoolExecute(t *testing.T) {
	pool := async.NewPool(2)

	var running, peak int32
	task := func(value int) func(context.Context) (interface{}, error) {
		return func(context.Context) (interface{}, error) {
			n := atomic.AddInt32(&running, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			atomic.AddInt32(&running, -1)
			return value, nil
		}
	}

	results := pool.Execute(context.Background(), []async.Task{
		{Name: "a", Execute: task(1)},
		{Name: "b", Execute: task(2)},
		{Name: "c", Execute: task(3)},
		{Name: "d", Execute: func(context.Context) (interface{}, error) { return nil, errors.New("boom") }},
	})

	require.Len(t, results, 4)
	assert.Equal(t, 1, results["a"].Data)
	assert.Equal(t, 2, results["b"].Data)
	assert.Equal(t, 3, results["c"].Data)
	assert.EqualError(t, results["d"].Err, "boom")
	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(2))
}

func TestPoolIsReusable(t *testing.T) {
	pool := async.NewPool(3)
	for i := 0; i < 3; i++ {
		results := pool.Execute(context.Background(), []async.Task{
			{Name: "only", Execute: func(context.Context) (interface{}, error) { return "ok", nil }},
		})
		assert.Equal(t, "ok", results["only"].Data)
	}
}

func TestPoolRecoversPanics(t *testing.T) {
	results := async.NewPool(1).Execute(context.Background(), []async.Task{
		{Name: "panics", Execute: func(context.Context) (interface{}, error) { panic("bad") }},
	})
	require.Error(t, results["panics"].Err)
	assert.Contains(t, results["panics"].Err.Error(), "panicked")
}

func TestPoolCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := async.NewPool(2).Execute(ctx, []async.Task{
		{Name: "skipped", Execute: func(context.Context) (interface{}, error) { return "ran", nil }},
	})
	assert.ErrorIs(t, results["skipped"].Err, context.Canceled)
	assert.Nil(t, results["skipped"].Data)
}
