package csvio

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"

	"github.com/rotisserie/eris"
)

// WriteResults writes one CSV row per result map. The header is the union of
// keys across all rows, sorted by name; rows missing a key carry an empty
// cell. List-shaped values must be pre-joined with ", " by the caller. The
// file is written to a temp sibling and renamed so a failed write leaves no
// partial output.
func WriteResults(path string, rows []map[string]string) error {
	keys := map[string]bool{}
	for _, row := range rows {
		for k := range row {
			keys[k] = true
		}
	}
	header := make([]string, 0, len(keys))
	for k := range keys {
		header = append(header, k)
	}
	sort.Strings(header)

	tmp, err := os.CreateTemp(filepath.Dir(path), ".ipintel-*.csv")
	if err != nil {
		return eris.Wrap(err, "csvio: create temp output")
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return eris.Wrap(err, "csvio: write header")
	}
	cells := make([]string, len(header))
	for _, row := range rows {
		for i, k := range header {
			cells[i] = row[k]
		}
		if err := w.Write(cells); err != nil {
			tmp.Close()
			return eris.Wrap(err, "csvio: write row")
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return eris.Wrap(err, "csvio: flush output")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "csvio: close temp output")
	}

	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrap(err, "csvio: move output into place")
	}
	return nil
}
