package attachments

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strconv"
	"strings"
)

// Table is the tabular summary shared by CSV files and spreadsheet sheets.
type Table struct {
	Shape   [2]int        `json:"shape"`
	Columns []string      `json:"columns"`
	Head    []Row         `json:"head"`
	Summary *TableSummary `json:"summary,omitempty"`
	Data    []Row         `json:"data"`
}

// TableSummary lists numeric columns and their descriptive statistics.
type TableSummary struct {
	NumericColumns []string               `json:"numeric_columns"`
	Statistics     map[string]ColumnStats `json:"statistics"`
}

// ColumnStats mirrors the usual describe() output. Std is nil when fewer than
// two values are present.
type ColumnStats struct {
	Count float64  `json:"count"`
	Mean  float64  `json:"mean"`
	Std   *float64 `json:"std"`
	Min   float64  `json:"min"`
	P25   float64  `json:"25%"`
	P50   float64  `json:"50%"`
	P75   float64  `json:"75%"`
	Max   float64  `json:"max"`
}

// Row is one record keyed by column, encoded in column order.
type Row struct {
	columns []string
	values  []any
}

// Get returns the cell for column, or nil.
func (r Row) Get(column string) any {
	for i, c := range r.columns {
		if c == column {
			return r.values[i]
		}
	}
	return nil
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		v, err := json.Marshal(r.values[i])
		if err != nil {
			return nil, err
		}
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var errEmptyTable = errors.New("no columns to parse")

func decodeCSV(content []byte, headRows int) (Summary, error) {
	r := csv.NewReader(bytes.NewReader(content))
	r.FieldsPerRecord = -1
	var records [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Summary{}, fmt.Errorf("csv: %w", err)
		}
		records = append(records, rec)
	}
	if len(records) == 0 {
		return Summary{}, errEmptyTable
	}
	t, err := buildTable(records[0], records[1:], headRows, true)
	if err != nil {
		return Summary{}, err
	}
	return Summary{Kind: KindCSV, CSV: t}, nil
}

// buildTable types every column: a column whose non-empty cells all parse as
// numbers is numeric, anything else stays text. Empty cells become null.
func buildTable(header []string, rows [][]string, headRows int, withSummary bool) (*Table, error) {
	columns := dedupeColumns(header)
	if len(columns) == 0 {
		return nil, errEmptyTable
	}
	numeric := make([]bool, len(columns))
	for ci := range columns {
		numeric[ci] = isNumericColumn(rows, ci)
	}

	t := &Table{
		Shape:   [2]int{len(rows), len(columns)},
		Columns: columns,
		Data:    make([]Row, 0, len(rows)),
	}
	for _, rec := range rows {
		row := Row{columns: columns, values: make([]any, len(columns))}
		for ci := range columns {
			cell := ""
			if ci < len(rec) {
				cell = strings.TrimSpace(rec[ci])
			}
			switch {
			case cell == "":
				row.values[ci] = nil
			case numeric[ci]:
				row.values[ci] = json.Number(normalizeNumber(cell))
			default:
				row.values[ci] = rec[ci]
			}
		}
		t.Data = append(t.Data, row)
	}
	if headRows > len(t.Data) {
		headRows = len(t.Data)
	}
	t.Head = t.Data[:headRows]

	if withSummary {
		s := &TableSummary{NumericColumns: []string{}, Statistics: map[string]ColumnStats{}}
		for ci, c := range columns {
			if !numeric[ci] {
				continue
			}
			s.NumericColumns = append(s.NumericColumns, c)
			if stats, ok := describe(rows, ci); ok {
				s.Statistics[c] = stats
			}
		}
		t.Summary = s
	}
	return t, nil
}

func dedupeColumns(header []string) []string {
	seen := make(map[string]int, len(header))
	out := make([]string, 0, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n := seen[name]; n > 0 {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n)
		} else {
			seen[name] = 1
		}
		out = append(out, name)
	}
	return out
}

func isNumericColumn(rows [][]string, ci int) bool {
	found := false
	for _, rec := range rows {
		if ci >= len(rec) {
			continue
		}
		cell := strings.TrimSpace(rec[ci])
		if cell == "" {
			continue
		}
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
		found = true
	}
	return found
}

// normalizeNumber rewrites a float literal into a form encoding/json accepts.
func normalizeNumber(cell string) string {
	if json.Valid([]byte(cell)) {
		return cell
	}
	f, _ := strconv.ParseFloat(cell, 64)
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func columnValues(rows [][]string, ci int) []float64 {
	var vals []float64
	for _, rec := range rows {
		if ci >= len(rec) {
			continue
		}
		cell := strings.TrimSpace(rec[ci])
		if cell == "" {
			continue
		}
		f, err := strconv.ParseFloat(cell, 64)
		if err != nil || math.IsNaN(f) {
			continue
		}
		vals = append(vals, f)
	}
	return vals
}

func describe(rows [][]string, ci int) (ColumnStats, bool) {
	vals := columnValues(rows, ci)
	if len(vals) == 0 {
		return ColumnStats{}, false
	}
	sort.Float64s(vals)
	n := float64(len(vals))
	var sum float64
	for _, v := range vals {
		sum += v
	}
	mean := sum / n
	stats := ColumnStats{
		Count: n,
		Mean:  mean,
		Min:   vals[0],
		P25:   quantile(vals, 0.25),
		P50:   quantile(vals, 0.50),
		P75:   quantile(vals, 0.75),
		Max:   vals[len(vals)-1],
	}
	if len(vals) > 1 {
		var ss float64
		for _, v := range vals {
			ss += (v - mean) * (v - mean)
		}
		std := math.Sqrt(ss / (n - 1))
		stats.Std = &std
	}
	return stats, true
}

// quantile uses linear interpolation between closest ranks on sorted input.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + (sorted[hi]-sorted[lo])*frac
}
