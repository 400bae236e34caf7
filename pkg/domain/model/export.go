package model

import (
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ExportColumns is the header of an exported register, in column order
var ExportColumns = []string{"ID", "Asset", "Threat", "Likelihood", "Impact", "Score", "Level", "Mitigation Hint"}

// DefaultExportPrefix is the file name prefix used when none is configured
const DefaultExportPrefix = "grc-risks"

// ToRows projects risks into export rows, one per non-nil risk in input order.
// An empty collection yields ErrEmptyExport, which callers report as a no-op.
func ToRows(risks []*Risk) ([][]string, error) {
	rows := make([][]string, 0, len(risks))
	for _, r := range risks {
		if r == nil {
			continue
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.Asset,
			r.Threat,
			strconv.Itoa(r.Likelihood),
			strconv.Itoa(r.Impact),
			strconv.Itoa(r.Score),
			r.Level.String(),
			MitigationHint(r.Level),
		})
	}
	if len(rows) == 0 {
		return nil, goerr.Wrap(ErrEmptyExport, "export skipped")
	}
	return rows, nil
}

// WriteCSV writes the header line and rows. Data fields are always double quoted;
// lines are separated by "\n" with no trailing newline.
func WriteCSV(w io.Writer, rows [][]string) error {
	var sb strings.Builder
	sb.WriteString(strings.Join(ExportColumns, ","))
	for _, row := range rows {
		sb.WriteByte('\n')
		for i, field := range row {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteByte('"')
			sb.WriteString(strings.ReplaceAll(field, `"`, `""`))
			sb.WriteByte('"')
		}
	}

	if _, err := io.WriteString(w, sb.String()); err != nil {
		return goerr.Wrap(err, "failed to write CSV")
	}
	return nil
}

// ExportFilename stamps prefix with the UTC date of now, e.g. grc-risks-2026-10-19.csv
func ExportFilename(prefix string, now time.Time) string {
	if prefix == "" {
		prefix = DefaultExportPrefix
	}
	return prefix + "-" + now.UTC().Format(time.DateOnly) + ".csv"
}
