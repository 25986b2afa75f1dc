// Package batch runs work units through a handler with a bounded level
// of concurrency, collecting per-unit results and reporting progress.
package batch

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/extraction-service/internal/model"
)

// Handler processes one work unit. Errors are converted into error-marker
// results by the scheduler; retry policy, if any, belongs inside the handler.
type Handler func(ctx context.Context, unit model.WorkUnit) (model.Output, error)

// ProgressFunc receives completion counts. Calls are serialized and the
// completed count is monotonically non-decreasing.
type ProgressFunc func(completed, total int)

// Run processes every unit exactly once with at most maxConcurrency
// handlers in flight. A handler error or panic yields an error-marker
// UnitResult rather than aborting the batch, so the returned slice always
// has one entry per unit. Once ctx is canceled (session teardown) no new
// units are scheduled and progress reporting stops; handlers already in
// flight run to completion.
func Run(ctx context.Context, units []model.WorkUnit, handler Handler, maxConcurrency int, onProgress ProgressFunc) []model.UnitResult {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}

	results := make([]model.UnitResult, len(units))

	var (
		mu        sync.Mutex
		completed int
	)
	// onProgress runs under the mutex so counts arrive strictly in order.
	reportDone := func() {
		mu.Lock()
		defer mu.Unlock()
		completed++
		if onProgress != nil && ctx.Err() == nil {
			onProgress(completed, len(units))
		}
	}

	var g errgroup.Group
	g.SetLimit(maxConcurrency)

	for i, unit := range units {
		if ctx.Err() != nil {
			results[i] = model.UnitResult{URL: unit.URL, Err: ctx.Err().Error()}
			continue
		}
		g.Go(func() error {
			// The dispatch loop may have blocked on the limit; teardown
			// during that wait must not start the unit.
			if err := ctx.Err(); err != nil {
				results[i] = model.UnitResult{URL: unit.URL, Err: err.Error()}
				return nil
			}
			results[i] = runOne(ctx, unit, handler)
			reportDone()
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func runOne(ctx context.Context, unit model.WorkUnit, handler Handler) (res model.UnitResult) {
	res.URL = unit.URL
	defer func() {
		if r := recover(); r != nil {
			zap.L().Error("batch handler panicked",
				zap.String("url", unit.URL),
				zap.Any("panic", r),
			)
			res.Output = model.Output{}
			res.Err = fmt.Sprintf("handler panic: %v", r)
		}
	}()

	out, err := handler(ctx, unit)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.Output = out
	return res
}
