// Package model defines the record types flowing through the enrichment
// pipeline.
package model

import "strconv"

// NetworkRecord is one input observation row, keyed by remote address.
// Records are immutable once read; identity is position in the input
// sequence, so addresses may repeat.
type NetworkRecord struct {
	Address      string `json:"address"`
	TotalEvents  int    `json:"total_events"`
	Connects     int    `json:"connects"`
	Disconnects  int    `json:"disconnects"`
	Sends        int    `json:"sends"`
	Receives     int    `json:"receives"`
	SendBytes    int    `json:"send_bytes"`
	ReceiveBytes int    `json:"receive_bytes"`
}

// LookupResult holds identity fields for an address. Empty string means the
// lookup did not return that field; values are never invented.
type LookupResult struct {
	Organization string `json:"organization,omitempty"`
	Country      string `json:"country,omitempty"`
	ISP          string `json:"isp,omitempty"`
}

// Assessment is the structured form of a free-text risk analysis. Fields the
// parser could not find stay "" — they are never absent from the shape.
// RiskScore is a backend-specific extension of the base four fields.
type Assessment struct {
	Trustworthiness  string `json:"trustworthiness"`
	PrimaryPurpose   string `json:"primary_purpose"`
	SecurityConcerns string `json:"security_concerns"`
	RiskScore        string `json:"risk_score,omitempty"`
	Recommendation   string `json:"recommendation"`
}

// EnrichedRecord is the only value that escapes the pool: either a fully
// enriched row, or the original counters plus a populated Err. Exactly one
// of the two shapes per input row.
type EnrichedRecord struct {
	NetworkRecord
	Lookup     LookupResult `json:"lookup"`
	Assessment Assessment   `json:"assessment"`
	Err        string       `json:"error,omitempty"`
}

// Failed reports whether this row is the error shape.
func (r EnrichedRecord) Failed() bool {
	return r.Err != ""
}

// Fields flattens the record into column name → cell value for CSV output.
// Error rows carry only the input counters plus the error column; successful
// rows never carry an error key. Optional keys (lookup fields, risk_score)
// appear only when a value exists, so the output column set is the union of
// what the run actually produced.
func (r EnrichedRecord) Fields() map[string]string {
	m := map[string]string{
		"address":       r.Address,
		"total_events":  strconv.Itoa(r.TotalEvents),
		"connects":      strconv.Itoa(r.Connects),
		"disconnects":   strconv.Itoa(r.Disconnects),
		"sends":         strconv.Itoa(r.Sends),
		"receives":      strconv.Itoa(r.Receives),
		"send_bytes":    strconv.Itoa(r.SendBytes),
		"receive_bytes": strconv.Itoa(r.ReceiveBytes),
	}
	if r.Failed() {
		m["error"] = r.Err
		return m
	}

	if r.Lookup.Organization != "" {
		m["organization"] = r.Lookup.Organization
	}
	if r.Lookup.Country != "" {
		m["country"] = r.Lookup.Country
	}
	if r.Lookup.ISP != "" {
		m["isp"] = r.Lookup.ISP
	}

	m["trustworthiness"] = r.Assessment.Trustworthiness
	m["primary_purpose"] = r.Assessment.PrimaryPurpose
	m["security_concerns"] = r.Assessment.SecurityConcerns
	m["recommendation"] = r.Assessment.Recommendation
	if r.Assessment.RiskScore != "" {
		m["risk_score"] = r.Assessment.RiskScore
	}
	return m
}
