package batch

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/extraction-service/internal/model"
)

func units(urls ...string) []model.WorkUnit {
	out := make([]model.WorkUnit, len(urls))
	for i, u := range urls {
		out[i] = model.WorkUnit{URL: u}
	}
	return out
}

func TestRun_EveryUnitProcessedOnce(t *testing.T) {
	var calls atomic.Int32
	handler := func(ctx context.Context, u model.WorkUnit) (model.Output, error) {
		calls.Add(1)
		return model.Output{Kind: model.OutputRaw, Raw: u.URL}, nil
	}

	results := Run(context.Background(), units("a", "b", "c"), handler, 2, nil)

	require.Len(t, results, 3)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, "a", results[0].URL)
	assert.Equal(t, "c", results[2].URL)
	for _, r := range results {
		assert.False(t, r.Failed())
	}
}

func TestRun_ConcurrencyCapHeld(t *testing.T) {
	var inFlight, peak atomic.Int32
	handler := func(ctx context.Context, u model.WorkUnit) (model.Output, error) {
		cur := inFlight.Add(1)
		for {
			p := peak.Load()
			if cur <= p || peak.CompareAndSwap(p, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return model.Output{}, nil
	}

	Run(context.Background(), units("a", "b", "c", "d", "e", "f"), handler, 2, nil)

	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestRun_HandlerErrorBecomesMarker(t *testing.T) {
	handler := func(ctx context.Context, u model.WorkUnit) (model.Output, error) {
		if u.URL == "bad" {
			return model.Output{}, errors.New("fetch exploded")
		}
		return model.Output{Kind: model.OutputRaw, Raw: "ok"}, nil
	}

	results := Run(context.Background(), units("good", "bad"), handler, 2, nil)

	require.Len(t, results, 2)
	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	assert.Equal(t, "fetch exploded", results[1].Err)
}

func TestRun_HandlerPanicAbsorbed(t *testing.T) {
	handler := func(ctx context.Context, u model.WorkUnit) (model.Output, error) {
		if u.URL == "boom" {
			panic("nil deref")
		}
		return model.Output{Kind: model.OutputRaw, Raw: "ok"}, nil
	}

	results := Run(context.Background(), units("ok", "boom", "ok2"), handler, 1, nil)

	require.Len(t, results, 3)
	assert.False(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	assert.Contains(t, results[1].Err, "handler panic")
	assert.False(t, results[2].Failed())
}

func TestRun_ProgressMonotonicAndComplete(t *testing.T) {
	handler := func(ctx context.Context, u model.WorkUnit) (model.Output, error) {
		return model.Output{}, nil
	}

	var mu sync.Mutex
	var reports []int
	Run(context.Background(), units("a", "b", "c", "d"), handler, 3, func(completed, total int) {
		mu.Lock()
		defer mu.Unlock()
		assert.Equal(t, 4, total)
		reports = append(reports, completed)
	})

	require.Len(t, reports, 4)
	for i := 1; i < len(reports); i++ {
		assert.Greater(t, reports[i], reports[i-1])
	}
	assert.Equal(t, 4, reports[len(reports)-1])
}

func TestRun_CancelWhileWaitingForSlotSkipsPendingUnit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	started := make(chan struct{})
	var calls atomic.Int32
	handler := func(ctx context.Context, u model.WorkUnit) (model.Output, error) {
		calls.Add(1)
		if u.URL == "a" {
			close(started)
		}
		// Hold the only slot until teardown, so "b" is queued behind it.
		<-ctx.Done()
		return model.Output{}, ctx.Err()
	}

	go func() {
		<-started
		cancel()
	}()

	results := Run(ctx, units("a", "b"), handler, 1, nil)

	require.Len(t, results, 2)
	assert.Equal(t, int32(1), calls.Load(), "queued unit must not start after teardown")
	assert.True(t, results[0].Failed())
	assert.True(t, results[1].Failed())
	assert.Equal(t, context.Canceled.Error(), results[1].Err)
}

func TestRun_CanceledContextSkipsScheduling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls atomic.Int32
	handler := func(ctx context.Context, u model.WorkUnit) (model.Output, error) {
		calls.Add(1)
		return model.Output{}, nil
	}

	results := Run(ctx, units("a", "b"), handler, 2, func(completed, total int) {
		t.Error("progress must not be reported after cancellation")
	})

	require.Len(t, results, 2)
	assert.Equal(t, int32(0), calls.Load())
	for _, r := range results {
		assert.True(t, r.Failed())
	}
}
