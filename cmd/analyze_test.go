//go:build !integration

package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/ipintel-cli/internal/config"
	"github.com/sells-group/ipintel-cli/internal/enrich"
	"github.com/sells-group/ipintel-cli/internal/model"
	"github.com/sells-group/ipintel-cli/internal/store"
)

func TestSummarizeRun(t *testing.T) {
	startedAt := time.Date(2026, 8, 15, 9, 0, 0, 0, time.UTC)
	results := []model.EnrichedRecord{
		{NetworkRecord: model.NetworkRecord{Address: "1.1.1.1"}},
		{NetworkRecord: model.NetworkRecord{Address: "2.2.2.2"}, Err: "Analysis failed: boom"},
		{NetworkRecord: model.NetworkRecord{Address: "3.3.3.3"}},
	}

	run := summarizeRun(results, "in.csv", "out.csv", startedAt)

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, "in.csv", run.InputFile)
	assert.Equal(t, "out.csv", run.OutputFile)
	assert.Equal(t, 3, run.Total)
	assert.Equal(t, 2, run.Succeeded)
	assert.Equal(t, 1, run.Failed)
	assert.Equal(t, startedAt, run.StartedAt)
	assert.False(t, run.FinishedAt.IsZero())
}

func TestRetryErrorRows_NoFailures(t *testing.T) {
	pool := enrich.NewPool(okEnricher(), 2, 0)
	results := []model.EnrichedRecord{
		{NetworkRecord: model.NetworkRecord{Address: "1.1.1.1"}},
		{NetworkRecord: model.NetworkRecord{Address: "2.2.2.2"}},
	}

	out := retryErrorRows(context.Background(), pool, results)

	// Untouched: no failed subset, no second pass.
	assert.Equal(t, results, out)
}

func TestRetryErrorRows_RetriesFailedSubset(t *testing.T) {
	// Retry pool succeeds for everything it is given.
	pool := enrich.NewPool(okEnricher(), 2, 0)

	results := []model.EnrichedRecord{
		{NetworkRecord: model.NetworkRecord{Address: "1.1.1.1"}},
		{NetworkRecord: model.NetworkRecord{Address: "2.2.2.2"}, Err: "Analysis failed: timeout"},
		{NetworkRecord: model.NetworkRecord{Address: "3.3.3.3"}, Err: "Analysis failed: overloaded"},
	}

	out := retryErrorRows(context.Background(), pool, results)
	require.Len(t, out, 3)

	var failed int
	seen := map[string]bool{}
	for _, r := range out {
		seen[r.Address] = true
		if r.Failed() {
			failed++
		}
	}
	assert.Zero(t, failed)
	assert.True(t, seen["1.1.1.1"])
	assert.True(t, seen["2.2.2.2"])
	assert.True(t, seen["3.3.3.3"])
}

func TestRecordRun_WritesAfterInterrupt(t *testing.T) {
	cfg = &config.Config{
		Store: config.StoreConfig{Path: filepath.Join(t.TempDir(), "runs.db")},
	}

	// SIGINT leaves the command context cancelled by the time history is
	// written; the write must still land.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	run := store.Run{
		ID:         "run-interrupted",
		InputFile:  "in.csv",
		OutputFile: "out.csv",
		Total:      2,
		Succeeded:  1,
		Failed:     1,
		StartedAt:  time.Now().UTC(),
		FinishedAt: time.Now().UTC(),
	}
	results := []model.EnrichedRecord{
		{NetworkRecord: model.NetworkRecord{Address: "1.1.1.1"}},
		{NetworkRecord: model.NetworkRecord{Address: "2.2.2.2"}, Err: "Analysis failed: interrupted"},
	}

	recordRun(ctx, run, results)

	st, err := store.NewSQLite(cfg.Store.Path)
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	got, errs, err := st.GetRun(context.Background(), "run-interrupted")
	require.NoError(t, err)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.Failed)
	require.Len(t, errs, 1)
	assert.Equal(t, "2.2.2.2", errs[0].Address)
}

func TestRetryErrorRows_StillFailingKeepsErrorShape(t *testing.T) {
	failing := &stubEnricher{fn: func(rec model.NetworkRecord) model.EnrichedRecord {
		return model.EnrichedRecord{NetworkRecord: rec, Err: "Analysis failed: still down"}
	}}
	pool := enrich.NewPool(failing, 1, 0)

	results := []model.EnrichedRecord{
		{NetworkRecord: model.NetworkRecord{Address: "1.1.1.1"}},
		{NetworkRecord: model.NetworkRecord{Address: "2.2.2.2"}, Err: "Analysis failed: timeout"},
	}

	out := retryErrorRows(context.Background(), pool, results)
	require.Len(t, out, 2)

	for _, r := range out {
		if r.Address == "2.2.2.2" {
			assert.Equal(t, "Analysis failed: still down", r.Err)
		} else {
			assert.False(t, r.Failed())
		}
	}
}
