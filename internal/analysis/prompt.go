package analysis

import (
	"fmt"
	"strings"

	"github.com/sells-group/ipintel-cli/internal/model"
)

// SystemPrompt is the shared system instruction for assessment requests.
const SystemPrompt = `You are an expert Cybersecurity Analyst specializing in network behavior analysis and threat detection. You assess remote IP addresses from traffic summaries and ownership data and answer in a strict line-per-field format.`

const formatRules = `CRITICAL FORMAT RULES:
1. Do not use any commas or special characters other than hyphens and periods
2. Each field must be on a new line
3. Use exact field names as shown above
4. Keep all responses within specified word limits
5. Maintain consistent capitalization of field names
6. Use hyphens instead of commas for separation
7. Ensure each field has exactly one colon followed by a space
8. Do not include any additional formatting or explanations`

// BuildPrompt renders the assessment request for one record. The strict
// format section is a request, not a guarantee — Parse must still tolerate
// output that ignores it. The Risk Score line is only requested when
// withRiskScore is set.
func BuildPrompt(rec model.NetworkRecord, lookup model.LookupResult, withRiskScore bool) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, `INPUT DATA:
- IP Address: %s
- Ownership: organization %q - country %q - isp %q
- Event Metrics:
  * Total Events: %d
  * Connection Events: %d connects | %d disconnects
  * Data Transfer: %d sends (%d bytes) | %d receives (%d bytes)

ANALYSIS REQUIREMENTS:
Provide a security assessment in the following strict format:
IP: %s
Trustworthiness: <insert score 1-100>
Primary Purpose: <single line description maximum 20 words. no special characters><.>
Security Concerns: <start with YES or NO><.><space><insert explanation maximum 15 words no special characters><.>
`,
		rec.Address,
		orUnknown(lookup.Organization), orUnknown(lookup.Country), orUnknown(lookup.ISP),
		rec.TotalEvents,
		rec.Connects, rec.Disconnects,
		rec.Sends, rec.SendBytes, rec.Receives, rec.ReceiveBytes,
		rec.Address,
	)

	if withRiskScore {
		sb.WriteString("Risk Score: <insert score 1-100>\n")
	}
	sb.WriteString("Recommendation: <start with either 'No action required' or 'Requires Attention'><.><space><if attention needed add maximum 20 words no special characters><.>\n\n")
	sb.WriteString(formatRules)

	return sb.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
