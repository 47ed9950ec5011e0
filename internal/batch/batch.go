// Package batch provides the generic batch-processing engine used by every
// migration phase: fixed-size windows processed strictly in input order,
// per-item failure isolation, retry with exponential backoff and jitter for
// discrete external calls, and a batch→individual fallback for multi-row
// database writes.
package batch

import (
	"context"
	"time"
)

// Default tuning values for plain table inserts.
const (
	DefaultBatchSize           = 100
	DefaultDelayBetweenBatches = 150 * time.Millisecond

	// smallInputThreshold and largeInputThreshold bound the window size for
	// unusually small or large inputs.
	smallInputThreshold = 10
	largeInputThreshold = 10000
	largeInputWindow    = 50
)

// ProgressFunc is called once per window before the window is processed.
type ProgressFunc func(current, total, batchNumber int)

// Options configures a Process call.
type Options struct {
	BatchSize           int
	DelayBetweenBatches time.Duration
	MaxRetries          int
	BaseRetryDelay      time.Duration
	OnProgress          ProgressFunc
}

// withDefaults fills unset options.
func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = DefaultBatchSize
	}
	if o.DelayBetweenBatches < 0 {
		o.DelayBetweenBatches = DefaultDelayBetweenBatches
	}
	return o
}

// ItemError pairs a failed input item with the error that rejected it.
type ItemError[T any] struct {
	Item  T      `json:"item"`
	Error string `json:"error"`
}

// Result accumulates the outcome of one processing operation across all of
// its windows. Order inside Successful and Failed follows input order.
type Result[T, R any] struct {
	Successful     []R            `json:"successful"`
	Failed         []ItemError[T] `json:"failed"`
	TotalProcessed int            `json:"total_processed"`
	SuccessCount   int            `json:"success_count"`
	ErrorCount     int            `json:"error_count"`
}

func (r *Result[T, R]) addSuccess(v R) {
	r.Successful = append(r.Successful, v)
	r.SuccessCount++
	r.TotalProcessed++
}

func (r *Result[T, R]) addFailure(item T, err error) {
	r.Failed = append(r.Failed, ItemError[T]{Item: item, Error: err.Error()})
	r.ErrorCount++
	r.TotalProcessed++
}

// ClampBatchSize bounds a requested window size against the input size.
// Inputs smaller than the small threshold are processed as one window;
// very large inputs get a reduced window to bound memory and per-call
// overhead.
func ClampBatchSize(requested, itemCount int) int {
	if requested <= 0 {
		requested = DefaultBatchSize
	}
	if itemCount < smallInputThreshold {
		if itemCount < 1 {
			return 1
		}
		return itemCount
	}
	if itemCount > largeInputThreshold && requested > largeInputWindow {
		return largeInputWindow
	}
	if requested > itemCount {
		return itemCount
	}
	return requested
}

// Process applies fn to every item in fixed-size windows, strictly in input
// order. A single item's failure is recorded and never aborts its siblings or
// subsequent windows. Between windows the processor sleeps for the configured
// delay as backpressure against rate limits.
//
// If ctx is cancelled mid-run, every unprocessed item is recorded as failed
// with the context error so nothing is silently dropped.
func Process[T, R any](ctx context.Context, items []T, fn func(context.Context, T) (R, error), opts Options) Result[T, R] {
	opts = opts.withDefaults()
	var result Result[T, R]

	size := ClampBatchSize(opts.BatchSize, len(items))
	total := len(items)
	batchNumber := 0

	for start := 0; start < total; start += size {
		end := min(start+size, total)
		batchNumber++

		if opts.OnProgress != nil {
			opts.OnProgress(start, total, batchNumber)
		}

		for i := start; i < end; i++ {
			if ctx.Err() != nil {
				for j := i; j < total; j++ {
					result.addFailure(items[j], ctx.Err())
				}
				return result
			}

			out, err := fn(ctx, items[i])
			if err != nil {
				result.addFailure(items[i], err)
				continue
			}
			result.addSuccess(out)
		}

		if end < total && opts.DelayBetweenBatches > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(opts.DelayBetweenBatches):
			}
		}
	}

	return result
}

// GroupedOptions configures ProcessGrouped.
type GroupedOptions struct {
	Options
	// FallbackToIndividual retries a failed window item-by-item to isolate
	// defective records. When disabled, a window failure marks every item in
	// the window as failed with the batch-level error.
	FallbackToIndividual bool
}

// ProcessGrouped attempts one multi-row call per window via batchFn. On
// success all items in the window are marked successful without per-item
// calls. On failure, the window is either retried item-by-item through
// itemFn (the default) or failed wholesale with the batch error attached to
// every item.
func ProcessGrouped[T, R any](
	ctx context.Context,
	items []T,
	batchFn func(context.Context, []T) ([]R, error),
	itemFn func(context.Context, T) (R, error),
	opts GroupedOptions,
) Result[T, R] {
	opts.Options = opts.Options.withDefaults()
	var result Result[T, R]

	size := ClampBatchSize(opts.BatchSize, len(items))
	total := len(items)
	batchNumber := 0

	for start := 0; start < total; start += size {
		end := min(start+size, total)
		batchNumber++
		window := items[start:end]

		if opts.OnProgress != nil {
			opts.OnProgress(start, total, batchNumber)
		}

		if ctx.Err() != nil {
			for j := start; j < total; j++ {
				result.addFailure(items[j], ctx.Err())
			}
			return result
		}

		outs, err := batchFn(ctx, window)
		switch {
		case err == nil:
			for _, out := range outs {
				result.addSuccess(out)
			}
		case opts.FallbackToIndividual:
			for _, item := range window {
				out, itemErr := itemFn(ctx, item)
				if itemErr != nil {
					result.addFailure(item, itemErr)
					continue
				}
				result.addSuccess(out)
			}
		default:
			for _, item := range window {
				result.addFailure(item, err)
			}
		}

		if end < total && opts.DelayBetweenBatches > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(opts.DelayBetweenBatches):
			}
		}
	}

	return result
}
