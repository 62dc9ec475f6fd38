// Package enrich orchestrates per-record enrichment and runs it over a full
// input set under bounded concurrency.
package enrich

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/ipintel-cli/internal/analysis"
	"github.com/sells-group/ipintel-cli/internal/model"
	"github.com/sells-group/ipintel-cli/pkg/assess"
	"github.com/sells-group/ipintel-cli/pkg/iplookup"
)

// RecordEnricher turns one input record into exactly one output record. It
// never returns an error: failures become the error shape of EnrichedRecord.
type RecordEnricher interface {
	Enrich(ctx context.Context, rec model.NetworkRecord) model.EnrichedRecord
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithRiskScore controls whether the prompt requests the optional risk
// score field.
func WithRiskScore(enabled bool) EnricherOption {
	return func(e *Enricher) {
		e.requestRiskScore = enabled
	}
}

// Enricher enriches single records against the lookup and assessment
// gateways.
type Enricher struct {
	lookup           iplookup.Client
	assess           assess.Client
	requestRiskScore bool
}

// NewEnricher wires an Enricher to its two gateways.
func NewEnricher(lookup iplookup.Client, assessClient assess.Client, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		lookup:           lookup,
		assess:           assessClient,
		requestRiskScore: true,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich runs one record through lookup → assessment → parse → merge.
// Lookup failure is non-fatal: the assessment proceeds with absent identity
// fields. Assessment failure is fatal for the record and yields the error
// shape with the original counters intact.
func (e *Enricher) Enrich(ctx context.Context, rec model.NetworkRecord) model.EnrichedRecord {
	out := model.EnrichedRecord{NetworkRecord: rec}
	log := zap.L().With(zap.String("address", rec.Address))

	var lookup model.LookupResult
	res, err := e.lookup.Lookup(ctx, rec.Address)
	if err != nil {
		log.Warn("lookup failed, continuing without identity fields", zap.Error(err))
	} else {
		lookup = model.LookupResult{
			Organization: res.Org,
			Country:      res.Country,
			ISP:          res.ISP,
		}
	}

	prompt := analysis.BuildPrompt(rec, lookup, e.requestRiskScore)
	text, err := e.assess.Assess(ctx, prompt)
	if err != nil {
		log.Error("assessment failed", zap.Error(err))
		out.Err = sanitizeError(err)
		return out
	}

	out.Lookup = lookup
	out.Assessment = analysis.Parse(text)
	return out
}

// sanitizeError renders an error for a comma-delimited output cell.
func sanitizeError(err error) string {
	return strings.ReplaceAll(err.Error(), ",", ";")
}
