package batch

import (
	"context"
	"sync"
)

// DefaultFanOut is the default number of concurrent operations per wave.
const DefaultFanOut = 4

// Settled is the outcome of one fanned-out operation.
type Settled[R any] struct {
	Value R
	Err   error
}

// MapWaves applies fn to items with bounded fan-out: waveSize operations run
// concurrently, then an all-settled barrier joins the wave before the next
// one starts. Results are returned in input order. The bound exists to cap
// memory and avoid overwhelming the storage backend, not for correctness —
// items are independent.
//
// Context cancellation settles all remaining items with ctx.Err() without
// invoking fn for them.
func MapWaves[T, R any](ctx context.Context, items []T, waveSize int, fn func(context.Context, T) (R, error)) []Settled[R] {
	if waveSize <= 0 {
		waveSize = DefaultFanOut
	}

	results := make([]Settled[R], len(items))

	for start := 0; start < len(items); start += waveSize {
		end := min(start+waveSize, len(items))

		if ctx.Err() != nil {
			for i := start; i < len(items); i++ {
				results[i] = Settled[R]{Err: ctx.Err()}
			}
			return results
		}

		var wg sync.WaitGroup
		for i := start; i < end; i++ {
			wg.Add(1)
			go func(idx int) {
				defer wg.Done()
				v, err := fn(ctx, items[idx])
				results[idx] = Settled[R]{Value: v, Err: err}
			}(i)
		}
		wg.Wait()
	}

	return results
}
