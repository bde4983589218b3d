package domain

import (
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
)

// csvHeader is the fixed header row of a findings export.
var csvHeader = []string{"file_name", "fdi", "finding", "score"}

// RenderFindingsCSV renders findings as CSV text with the fixed header
// row "file_name,fdi,finding,score". The file name column holds the stem
// of the analyzed image for every row. The header is emitted even when
// findings is empty.
func RenderFindingsCSV(fileName string, findings []Finding) string {
	var sb strings.Builder
	w := csv.NewWriter(&sb)
	w.Write(csvHeader)
	for _, f := range findings {
		w.Write([]string{
			fileName,
			f.ToothPosition,
			string(f.FindingType),
			strconv.FormatFloat(f.ConfidenceScore, 'g', -1, 64),
		})
	}
	w.Flush()
	return sb.String()
}

// ParseFindingsCSV parses CSV text produced by RenderFindingsCSV back
// into findings. Scores round-trip exactly because rendering uses the
// shortest representation that re-parses to the same float.
// Parameters:
//   - text: CSV text including the header row.
// Returns:
//   - string: the file name column of the first data row, empty if none.
//   - []Finding: parsed findings in row order.
//   - error: non-nil on malformed CSV or header mismatch.
func ParseFindingsCSV(text string) (string, []Finding, error) {
	r := csv.NewReader(strings.NewReader(text))
	records, err := r.ReadAll()
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse findings CSV: %w", err)
	}
	if len(records) == 0 {
		return "", nil, fmt.Errorf("findings CSV is empty")
	}
	if strings.Join(records[0], ",") != strings.Join(csvHeader, ",") {
		return "", nil, fmt.Errorf("unexpected findings CSV header: %q", strings.Join(records[0], ","))
	}

	var fileName string
	findings := make([]Finding, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) != 4 {
			return "", nil, fmt.Errorf("findings CSV row has %d columns, want 4", len(rec))
		}
		if fileName == "" {
			fileName = rec[0]
		}
		score, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return "", nil, fmt.Errorf("invalid score %q: %w", rec[3], err)
		}
		findings = append(findings, Finding{
			ToothPosition:   rec[1],
			FindingType:     FindingType(rec[2]),
			ConfidenceScore: score,
		})
	}
	return fileName, findings, nil
}
