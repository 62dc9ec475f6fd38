package enrich

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sells-group/ipintel-cli/internal/model"
)

// ProgressFunc receives completed/total counts after each record finishes.
type ProgressFunc func(completed, total int)

// SleepFunc pauses for the pacing delay. Injectable so the pacing property
// is testable without real waiting.
type SleepFunc func(ctx context.Context, d time.Duration)

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) PoolOption {
	return func(p *Pool) {
		p.progress = fn
	}
}

// WithSleep replaces the pacing sleep implementation.
func WithSleep(fn SleepFunc) PoolOption {
	return func(p *Pool) {
		p.sleep = fn
	}
}

// Pool runs a RecordEnricher over a full input set with at most concurrency
// records in flight, pacing each slot release to respect external rate
// limits. It never drops or duplicates an input: every record yields exactly
// one output, in arbitrary completion order. Failed records are terminal for
// the run; retries are an outer-loop concern.
type Pool struct {
	enricher    RecordEnricher
	concurrency int
	pacing      time.Duration
	progress    ProgressFunc
	sleep       SleepFunc
}

// NewPool creates a pool. Concurrency values below 1 are raised to 1.
func NewPool(enricher RecordEnricher, concurrency int, pacing time.Duration, opts ...PoolOption) *Pool {
	if concurrency < 1 {
		concurrency = 1
	}
	p := &Pool{
		enricher:    enricher,
		concurrency: concurrency,
		pacing:      pacing,
		sleep:       contextSleep,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run enriches every record and returns one result per input. The call
// returns only after all in-flight work has finished, including when ctx is
// cancelled mid-run (cancelled records surface as error rows).
func (p *Pool) Run(ctx context.Context, records []model.NetworkRecord) []model.EnrichedRecord {
	if len(records) == 0 {
		return nil
	}

	// A plain Group, not WithContext: one record's failure must never cancel
	// its siblings, and Enrich never returns an error anyway.
	var g errgroup.Group
	g.SetLimit(p.concurrency)

	var mu sync.Mutex
	results := make([]model.EnrichedRecord, 0, len(records))
	completed := 0
	total := len(records)

	for _, rec := range records {
		g.Go(func() error {
			res := p.enricher.Enrich(ctx, rec)

			mu.Lock()
			results = append(results, res)
			completed++
			done := completed
			mu.Unlock()

			if p.progress != nil {
				p.progress(done, total)
			}

			// Pacing holds the worker slot after each completion so the
			// aggregate request rate stays bounded. This is a rate limiter,
			// not a correctness lock.
			if p.pacing > 0 {
				p.sleep(ctx, p.pacing)
			}
			return nil
		})
	}

	_ = g.Wait()
	return results
}

func contextSleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
