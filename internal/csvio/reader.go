// Package csvio reads network-summary CSV exports and writes enrichment
// results back out as CSV.
package csvio

import (
	"encoding/csv"
	"os"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/ipintel-cli/internal/model"
)

// requiredCols are the column headers a network-summary export must carry.
var requiredCols = []string{
	"Path",
	"Total Events",
	"Connects",
	"Disconnects",
	"Sends",
	"Receives",
	"Send Bytes",
	"Receive Bytes",
}

// ReadNetworkSummary parses a network-summary CSV into records. The address
// is the Path cell up to the first colon (port suffixes are dropped); rows
// whose extracted address is empty or contains no dot are skipped. Numeric
// cells that fail to parse are kept as zero rather than dropping the row.
func ReadNetworkSummary(path string) ([]model.NetworkRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "csvio: open input")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "csvio: read input")
	}
	if len(rows) == 0 {
		return nil, eris.New("csvio: input has no header row")
	}

	header := rows[0]
	colIdx := make(map[string]int, len(header))
	for i, col := range header {
		colIdx[strings.TrimSpace(col)] = i
	}
	for _, col := range requiredCols {
		if _, ok := colIdx[col]; !ok {
			return nil, eris.Errorf("csvio: missing required column %q", col)
		}
	}

	var records []model.NetworkRecord
	for _, row := range rows[1:] {
		addr := getCol(row, colIdx, "Path")
		addr, _, _ = strings.Cut(addr, ":")
		if addr == "" || !strings.Contains(addr, ".") {
			continue
		}

		records = append(records, model.NetworkRecord{
			Address:      addr,
			TotalEvents:  atoiLenient(getCol(row, colIdx, "Total Events")),
			Connects:     atoiLenient(getCol(row, colIdx, "Connects")),
			Disconnects:  atoiLenient(getCol(row, colIdx, "Disconnects")),
			Sends:        atoiLenient(getCol(row, colIdx, "Sends")),
			Receives:     atoiLenient(getCol(row, colIdx, "Receives")),
			SendBytes:    atoiLenient(getCol(row, colIdx, "Send Bytes")),
			ReceiveBytes: atoiLenient(getCol(row, colIdx, "Receive Bytes")),
		})
	}

	zap.L().Info("parsed network summary",
		zap.String("file", path),
		zap.Int("records", len(records)),
		zap.Int("rows", len(rows)-1),
	)
	return records, nil
}

// getCol safely retrieves a column value from a CSV row.
func getCol(row []string, colIdx map[string]int, col string) string {
	idx, ok := colIdx[col]
	if !ok || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func atoiLenient(s string) int {
	n, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0
	}
	return n
}
