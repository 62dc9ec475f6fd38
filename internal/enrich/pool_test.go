package enrich

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ipintel-cli/internal/model"
)

func makeRecords(n int) []model.NetworkRecord {
	records := make([]model.NetworkRecord, n)
	for i := range records {
		records[i] = model.NetworkRecord{Address: fmt.Sprintf("10.0.0.%d", i+1), TotalEvents: i}
	}
	return records
}

func noSleep(context.Context, time.Duration) {}

func passthrough() *mockEnricher {
	return &mockEnricher{fn: func(_ context.Context, rec model.NetworkRecord) model.EnrichedRecord {
		return model.EnrichedRecord{NetworkRecord: rec}
	}}
}

func TestPoolRun_OneOutputPerInput(t *testing.T) {
	pool := NewPool(passthrough(), 3, 0, WithSleep(noSleep))
	records := makeRecords(17)

	results := pool.Run(context.Background(), records)
	require.Len(t, results, len(records))

	// Every input appears exactly once, order unconstrained.
	seen := map[string]int{}
	for _, r := range results {
		seen[r.Address]++
	}
	for _, rec := range records {
		assert.Equal(t, 1, seen[rec.Address], rec.Address)
	}
}

func TestPoolRun_DuplicateAddressesKeepIdentityByPosition(t *testing.T) {
	records := []model.NetworkRecord{
		{Address: "1.1.1.1", TotalEvents: 1},
		{Address: "1.1.1.1", TotalEvents: 2},
	}
	pool := NewPool(passthrough(), 2, 0, WithSleep(noSleep))

	results := pool.Run(context.Background(), records)
	require.Len(t, results, 2)
	totals := []int{results[0].TotalEvents, results[1].TotalEvents}
	assert.ElementsMatch(t, []int{1, 2}, totals)
}

func TestPoolRun_EmptyInput(t *testing.T) {
	pool := NewPool(passthrough(), 3, 0, WithSleep(noSleep))
	assert.Empty(t, pool.Run(context.Background(), nil))
}

func TestPoolRun_OneFailureAmongFive(t *testing.T) {
	lookup := &mockLookup{}
	assessClient := &mockAssess{
		text:    "Trustworthiness: 80\nRecommendation: No action required",
		failFor: map[string]error{"10.0.0.3": errors.New("assess: stream: timeout")},
	}
	enricher := NewEnricher(lookup, assessClient)
	pool := NewPool(enricher, 3, 0, WithSleep(noSleep))

	results := pool.Run(context.Background(), makeRecords(5))
	require.Len(t, results, 5)

	var failed []model.EnrichedRecord
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r)
		} else {
			assert.Equal(t, "80", r.Assessment.Trustworthiness)
		}
	}
	require.Len(t, failed, 1)
	assert.Equal(t, "10.0.0.3", failed[0].Address)
	assert.Contains(t, failed[0].Err, "timeout")
}

func TestPoolRun_ConcurrencyBound(t *testing.T) {
	var inFlight, peak atomic.Int64
	enricher := &mockEnricher{fn: func(_ context.Context, rec model.NetworkRecord) model.EnrichedRecord {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return model.EnrichedRecord{NetworkRecord: rec}
	}}

	pool := NewPool(enricher, 3, 0, WithSleep(noSleep))
	results := pool.Run(context.Background(), makeRecords(20))

	require.Len(t, results, 20)
	assert.LessOrEqual(t, peak.Load(), int64(3))
	assert.Greater(t, peak.Load(), int64(1), "work actually ran concurrently")
}

func TestPoolRun_PacingSleepsAfterEachCompletion(t *testing.T) {
	var mu sync.Mutex
	var slept []time.Duration
	recorder := func(_ context.Context, d time.Duration) {
		mu.Lock()
		slept = append(slept, d)
		mu.Unlock()
	}

	pacing := 3 * time.Second
	pool := NewPool(passthrough(), 3, pacing, WithSleep(recorder))
	results := pool.Run(context.Background(), makeRecords(9))

	require.Len(t, results, 9)
	require.Len(t, slept, 9, "one pacing delay per completion")
	for _, d := range slept {
		assert.Equal(t, pacing, d)
	}
}

func TestPoolRun_PacingHoldsWorkerSlot(t *testing.T) {
	const concurrency = 2
	release := make(chan struct{})
	var dispatched atomic.Int64

	enricher := &mockEnricher{fn: func(_ context.Context, rec model.NetworkRecord) model.EnrichedRecord {
		dispatched.Add(1)
		return model.EnrichedRecord{NetworkRecord: rec}
	}}
	blockingSleep := func(ctx context.Context, _ time.Duration) {
		select {
		case <-release:
		case <-ctx.Done():
		}
	}

	pool := NewPool(enricher, concurrency, 3*time.Second, WithSleep(blockingSleep))

	done := make(chan []model.EnrichedRecord, 1)
	go func() {
		done <- pool.Run(context.Background(), makeRecords(6))
	}()

	// The first two records dispatch immediately, then both workers sit in
	// their pacing sleep. While they do, no further record may start.
	require.Eventually(t, func() bool {
		return dispatched.Load() == concurrency
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(concurrency), dispatched.Load(),
		"pacing must hold the worker slot, not run beside it")

	// Releasing one sleeper frees exactly one slot.
	release <- struct{}{}
	require.Eventually(t, func() bool {
		return dispatched.Load() == concurrency+1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int64(concurrency+1), dispatched.Load())

	close(release)
	results := <-done
	assert.Len(t, results, 6)
}

func TestPoolRun_ZeroPacingNeverSleeps(t *testing.T) {
	called := false
	pool := NewPool(passthrough(), 2, 0, WithSleep(func(context.Context, time.Duration) { called = true }))
	pool.Run(context.Background(), makeRecords(4))
	assert.False(t, called)
}

func TestPoolRun_ProgressCounts(t *testing.T) {
	var mu sync.Mutex
	var counts []int
	pool := NewPool(passthrough(), 2, 0,
		WithSleep(noSleep),
		WithProgress(func(completed, total int) {
			mu.Lock()
			counts = append(counts, completed)
			mu.Unlock()
			assert.Equal(t, 6, total)
		}),
	)

	pool.Run(context.Background(), makeRecords(6))

	require.Len(t, counts, 6)
	seen := map[int]bool{}
	for _, c := range counts {
		seen[c] = true
	}
	for i := 1; i <= 6; i++ {
		assert.True(t, seen[i], "progress reported count %d", i)
	}
}

func TestPoolRun_WaitsForInFlightOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var finished atomic.Int64

	enricher := &mockEnricher{fn: func(ctx context.Context, rec model.NetworkRecord) model.EnrichedRecord {
		<-ctx.Done()
		time.Sleep(time.Millisecond)
		finished.Add(1)
		return model.EnrichedRecord{NetworkRecord: rec, Err: "cancelled"}
	}}

	pool := NewPool(enricher, 4, 0, WithSleep(noSleep))
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	results := pool.Run(ctx, makeRecords(4))

	// Run returned only after every in-flight task finished, and still
	// produced one row per input.
	assert.Equal(t, int64(4), finished.Load())
	assert.Len(t, results, 4)
}

func TestNewPool_ConcurrencyFloor(t *testing.T) {
	pool := NewPool(passthrough(), 0, 0, WithSleep(noSleep))
	results := pool.Run(context.Background(), makeRecords(3))
	assert.Len(t, results, 3)
}
