// Package analysis builds assessment prompts and parses the free-text
// answers into structured records.
package analysis

import (
	"strings"

	"github.com/sells-group/ipintel-cli/internal/model"
)

// Field labels recognized in assessment output, in priority order. When a
// line contains more than one label substring, the earliest entry wins.
var fieldLabels = []string{
	"trustworthiness",
	"primary purpose",
	"security concerns",
	"recommendation",
	"risk score",
}

// Parse extracts a structured assessment from free-text model output.
//
// Matching is line-oriented and best-effort: a line belongs to a field when
// its lower-cased form contains that field's label and the line has a colon.
// The value is everything after the first colon, trimmed; following unlabeled
// non-empty lines are appended as continuations separated by a single space.
// A label appearing twice overwrites the earlier value. Text with no
// recognized label yields the all-empty (still valid) result.
func Parse(text string) model.Assessment {
	var a model.Assessment
	fields := map[string]*string{
		"trustworthiness":   &a.Trustworthiness,
		"primary purpose":   &a.PrimaryPurpose,
		"security concerns": &a.SecurityConcerns,
		"recommendation":    &a.Recommendation,
		"risk score":        &a.RiskScore,
	}

	var current *string
	for _, raw := range strings.Split(text, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)

		matched := false
		for _, label := range fieldLabels {
			if strings.Contains(lower, label) && strings.Contains(line, ":") {
				current = fields[label]
				_, rest, _ := strings.Cut(line, ":")
				*current = strings.TrimSpace(rest)
				matched = true
				break
			}
		}
		if !matched && current != nil {
			*current += " " + line
		}
	}

	return a
}
