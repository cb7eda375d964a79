package worker

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

type Result[T any, R any] struct {
	Item    T
	Value   R
	Skipped bool
}

// Run calls fn for every item with at most concurrency calls in flight and
// returns one result per item in input order. Once ctx is done no further
// item is started and the remaining results are marked Skipped. Started
// calls receive a context that is not cancelled with ctx, so a unit of work
// always runs to completion.
func Run[T any, R any](ctx context.Context, concurrency int, items []T, fn func(context.Context, T) R) []Result[T, R] {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]Result[T, R], len(items))
	for i, item := range items {
		results[i] = Result[T, R]{Item: item, Skipped: true}
	}

	sem := semaphore.NewWeighted(int64(concurrency))
	unitCtx := context.WithoutCancel(ctx)

	var wg sync.WaitGroup
	for i, item := range items {
		if err := sem.Acquire(ctx, 1); err != nil {
			log.Debug().Int("remaining", len(items)-i).Msg("Stopping dispatch, context done")
			break
		}
		if ctx.Err() != nil {
			sem.Release(1)
			break
		}
		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer sem.Release(1)
			results[i] = Result[T, R]{Item: item, Value: fn(unitCtx, item)}
		}(i, item)
	}
	wg.Wait()
	return results
}
