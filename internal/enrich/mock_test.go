package enrich

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/sells-group/ipintel-cli/internal/model"
	"github.com/sells-group/ipintel-cli/pkg/iplookup"
)

// mockLookup returns canned results or an error per address.
type mockLookup struct {
	results map[string]*iplookup.Result
	err     error
	calls   atomic.Int64
}

func (m *mockLookup) Lookup(_ context.Context, addr string) (*iplookup.Result, error) {
	m.calls.Add(1)
	if m.err != nil {
		return nil, m.err
	}
	if res, ok := m.results[addr]; ok {
		return res, nil
	}
	return &iplookup.Result{}, nil
}

// mockAssess returns canned text, or errors for addresses listed in failFor.
// The prompt always contains the record's address, which is how failFor
// matches a call to its record.
type mockAssess struct {
	mu      sync.Mutex
	text    string
	err     error
	failFor map[string]error
	prompts []string
}

func (m *mockAssess) Assess(_ context.Context, prompt string) (string, error) {
	m.mu.Lock()
	m.prompts = append(m.prompts, prompt)
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	for addr, err := range m.failFor {
		if strings.Contains(prompt, "IP Address: "+addr) {
			return "", err
		}
	}
	return m.text, nil
}

// mockEnricher implements RecordEnricher directly for pool tests.
type mockEnricher struct {
	fn func(ctx context.Context, rec model.NetworkRecord) model.EnrichedRecord
}

func (m *mockEnricher) Enrich(ctx context.Context, rec model.NetworkRecord) model.EnrichedRecord {
	return m.fn(ctx, rec)
}
