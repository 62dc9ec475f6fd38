package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/ipintel-cli/internal/analysis"
	"github.com/sells-group/ipintel-cli/internal/csvio"
	"github.com/sells-group/ipintel-cli/internal/enrich"
	"github.com/sells-group/ipintel-cli/internal/model"
	"github.com/sells-group/ipintel-cli/internal/store"
	"github.com/sells-group/ipintel-cli/pkg/assess"
	"github.com/sells-group/ipintel-cli/pkg/iplookup"
)

var (
	analyzeInput       string
	analyzeOutput      string
	analyzeLimit       int
	analyzeConcurrency int
	analyzePacing      time.Duration
	analyzeRetryErrors bool
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Enrich a network-summary CSV with IP intelligence",
	Long: `Reads a network-summary CSV, looks up each remote address, requests an AI
security assessment per record, and writes one enriched (or error) row per
input row. Lookup failures degrade to absent identity fields; assessment
failures mark the row with an error column.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate(); err != nil {
			return err
		}

		records, err := csvio.ReadNetworkSummary(analyzeInput)
		if err != nil {
			return err
		}
		if analyzeLimit > 0 && analyzeLimit < len(records) {
			records = records[:analyzeLimit]
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No analyzable rows in input.")
			return nil
		}

		concurrency := analyzeConcurrency
		if concurrency <= 0 {
			concurrency = cfg.Pool.Concurrency
		}
		pacing := analyzePacing
		if pacing < 0 {
			pacing = cfg.Pool.Pacing
		}

		pool := enrich.NewPool(newEnricher(), concurrency, pacing,
			enrich.WithProgress(enrich.LogProgress()),
		)

		startedAt := time.Now().UTC()
		zap.L().Info("starting analysis",
			zap.String("input", analyzeInput),
			zap.Int("records", len(records)),
			zap.Int("concurrency", concurrency),
			zap.Duration("pacing", pacing),
		)

		results := pool.Run(ctx, records)
		if analyzeRetryErrors {
			results = retryErrorRows(ctx, pool, results)
		}

		outPath := analyzeOutput
		if outPath == "" {
			outPath = filepath.Join(cfg.IO.OutputDir,
				fmt.Sprintf("ip_analysis_%s.csv", startedAt.Format("20060102_150405")))
		}
		if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
			return eris.Wrap(err, "analyze: create output directory")
		}

		rows := make([]map[string]string, len(results))
		for i, r := range results {
			rows[i] = r.Fields()
		}
		if err := csvio.WriteResults(outPath, rows); err != nil {
			return err
		}

		run := summarizeRun(results, analyzeInput, outPath, startedAt)
		recordRun(ctx, run, results)

		zap.L().Info("analysis complete",
			zap.String("run_id", run.ID),
			zap.String("output", outPath),
			zap.Int("succeeded", run.Succeeded),
			zap.Int("failed", run.Failed),
		)
		fmt.Printf("Analysis complete. Results written to %s\n", outPath)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeInput, "input", "", "path to network-summary CSV (required)")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "output CSV path (default: timestamped file in io.output_dir)")
	analyzeCmd.Flags().IntVar(&analyzeLimit, "limit", 0, "max number of records to process (0 = all)")
	analyzeCmd.Flags().IntVar(&analyzeConcurrency, "concurrency", 0, "max in-flight records (default: pool.concurrency)")
	analyzeCmd.Flags().DurationVar(&analyzePacing, "pacing", -1, "delay after each completion (default: pool.pacing)")
	analyzeCmd.Flags().BoolVar(&analyzeRetryErrors, "retry-errors", false, "re-run failed rows once after the main pass")
	_ = analyzeCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(analyzeCmd)
}

// newEnricher builds the enricher from configuration.
func newEnricher() *enrich.Enricher {
	lookup := iplookup.NewClient(
		iplookup.WithBaseURL(cfg.Lookup.BaseURL),
		iplookup.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Lookup.TimeoutSecs) * time.Second}),
		iplookup.WithRateLimit(cfg.Lookup.RatePerMinute/60.0),
	)
	assessClient := assess.NewClient(cfg.Assess.Key,
		assess.WithModel(cfg.Assess.Model),
		assess.WithMaxTokens(cfg.Assess.MaxTokens),
		assess.WithTemperature(cfg.Assess.Temperature),
		assess.WithStreaming(cfg.Assess.Streaming),
		assess.WithSystemPrompt(analysis.SystemPrompt),
	)
	return enrich.NewEnricher(lookup, assessClient,
		enrich.WithRiskScore(cfg.Assess.RequestRiskScore),
	)
}

// retryErrorRows re-runs the pool once over the failed subset and replaces
// those rows with the retry outcome. Retry is deliberately outside the pool:
// a failed record is terminal within a single pass.
func retryErrorRows(ctx context.Context, pool *enrich.Pool, results []model.EnrichedRecord) []model.EnrichedRecord {
	var ok []model.EnrichedRecord
	var failed []model.NetworkRecord
	for _, r := range results {
		if r.Failed() {
			failed = append(failed, r.NetworkRecord)
		} else {
			ok = append(ok, r)
		}
	}
	if len(failed) == 0 {
		return results
	}

	zap.L().Info("retrying failed rows", zap.Int("count", len(failed)))
	return append(ok, pool.Run(ctx, failed)...)
}

// summarizeRun builds the run-history row for a finished pass.
func summarizeRun(results []model.EnrichedRecord, input, output string, startedAt time.Time) store.Run {
	run := store.Run{
		ID:         uuid.New().String(),
		InputFile:  input,
		OutputFile: output,
		Total:      len(results),
		StartedAt:  startedAt,
		FinishedAt: time.Now().UTC(),
	}
	for _, r := range results {
		if r.Failed() {
			run.Failed++
		} else {
			run.Succeeded++
		}
	}
	return run
}

// recordRun persists run history. History is auxiliary: failures are logged,
// never fatal for a run that already produced its output file.
func recordRun(ctx context.Context, run store.Run, results []model.EnrichedRecord) {
	// After SIGINT the caller's ctx is already cancelled, and interrupted
	// runs are the ones most worth recording. Detach from cancellation but
	// keep the write bounded.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		zap.L().Warn("run history unavailable", zap.Error(err))
		return
	}
	defer st.Close() //nolint:errcheck

	if err := st.Migrate(ctx); err != nil {
		zap.L().Warn("run history migrate failed", zap.Error(err))
		return
	}

	var errs []store.RecordError
	for _, r := range results {
		if r.Failed() {
			errs = append(errs, store.RecordError{Address: r.Address, Message: r.Err})
		}
	}
	if err := st.RecordRun(ctx, run, errs); err != nil {
		zap.L().Warn("run history write failed", zap.Error(err))
	}
}
