// Package aggregate consolidates per-unit extraction output into one flat
// record set and renders it into the downloadable CSV artifact.
package aggregate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/extraction-service/internal/model"
)

// Integrate flattens every unit's structured records into one sequence,
// preserving multiplicity and discarding unit boundaries, then renders
// the tabular export. Units with error markers or raw fallback output
// contribute nothing. Size, record and field counts are computed from the
// rendered output, not estimated.
func Integrate(results []model.UnitResult, downloadURL string) *model.Result {
	var records []map[string]any
	for _, r := range results {
		if r.Failed() || r.Output.Kind != model.OutputStructured {
			continue
		}
		records = append(records, r.Output.Records...)
	}

	headers := fieldUnion(records)
	csv := renderCSV(headers, records)

	res := &model.Result{
		Format:      "csv",
		Size:        humanSize(len(csv)),
		Records:     len(records),
		Fields:      len(headers),
		DownloadURL: downloadURL,
		Headers:     headers,
		Data:        records,
		CSV:         csv,
	}

	zap.L().Info("results integrated",
		zap.Int("records", res.Records),
		zap.Int("fields", res.Fields),
		zap.String("size", res.Size),
	)
	return res
}

// fieldUnion returns the sorted union of field names across all records,
// so sparse records are tolerated.
func fieldUnion(records []map[string]any) []string {
	seen := make(map[string]struct{})
	for _, rec := range records {
		for k := range rec {
			seen[k] = struct{}{}
		}
	}
	headers := make([]string, 0, len(seen))
	for k := range seen {
		headers = append(headers, k)
	}
	sort.Strings(headers)
	return headers
}

// renderCSV produces the export: one header row, one row per record.
// Delimiters and newlines inside field values are replaced with safe
// substitutes so field content can never corrupt the tabular structure.
func renderCSV(headers []string, records []map[string]any) string {
	if len(headers) == 0 {
		return ""
	}
	lines := make([]string, 0, len(records)+1)
	lines = append(lines, strings.Join(headers, ","))
	for _, rec := range records {
		row := make([]string, len(headers))
		for i, h := range headers {
			row[i] = sanitizeField(coerce(rec[h]))
		}
		lines = append(lines, strings.Join(row, ","))
	}
	return strings.Join(lines, "\n")
}

var fieldSanitizer = strings.NewReplacer(",", ";", "\n", " ", "\r", " ")

func sanitizeField(s string) string {
	return fieldSanitizer.Replace(s)
}

// coerce turns an arbitrary decoded JSON value into its cell string.
func coerce(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case map[string]any, []any:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return string(b)
	default:
		return fmt.Sprintf("%v", val)
	}
}

func humanSize(n int) string {
	switch {
	case n < 1024:
		return fmt.Sprintf("%d B", n)
	case n < 1024*1024:
		return fmt.Sprintf("%.1f KB", float64(n)/1024)
	default:
		return fmt.Sprintf("%.1f MB", float64(n)/(1024*1024))
	}
}
