package frame

import (
	"math"
	"strconv"
	"strings"
)

// DataFrame represents a loaded table with its data. Cells are kept as the
// strings read from the source; an empty string is a missing value.
type DataFrame struct {
	Name    string
	Headers []string
	Rows    [][]string

	index map[string]int
}

// New creates an empty frame with the given columns
func New(name string, headers []string) *DataFrame {
	h := make([]string, len(headers))
	copy(h, headers)
	return &DataFrame{Name: name, Headers: h}
}

// Len returns the number of rows
func (df *DataFrame) Len() int {
	return len(df.Rows)
}

// ColumnIndex returns the position of col, or -1 when the frame has no such column
func (df *DataFrame) ColumnIndex(col string) int {
	if df.index == nil || len(df.index) != len(df.Headers) {
		df.reindex()
	}
	if idx, ok := df.index[col]; ok {
		return idx
	}
	return -1
}

// Has reports whether the frame carries col
func (df *DataFrame) Has(col string) bool {
	return df.ColumnIndex(col) >= 0
}

func (df *DataFrame) reindex() {
	df.index = make(map[string]int, len(df.Headers))
	for i, h := range df.Headers {
		df.index[h] = i
	}
}

// Value returns the cell at row for col. Missing columns and short rows read as "".
func (df *DataFrame) Value(row int, col string) string {
	idx := df.ColumnIndex(col)
	if idx < 0 || row < 0 || row >= len(df.Rows) {
		return ""
	}
	return cell(df.Rows[row], idx)
}

// Float parses the cell at row for col. Missing or non-numeric cells return NaN.
func (df *DataFrame) Float(row int, col string) float64 {
	return ParseFloat(df.Value(row, col))
}

// Set writes v into the cell at row for col, adding the column when needed.
func (df *DataFrame) Set(row int, col string, v string) {
	idx := df.ColumnIndex(col)
	if idx < 0 {
		df.AddColumn(col, nil)
		idx = len(df.Headers) - 1
	}
	r := df.Rows[row]
	for len(r) <= idx {
		r = append(r, "")
	}
	r[idx] = v
	df.Rows[row] = r
}

// AddColumn appends col with the given values. A nil or short slice leaves the
// remaining cells empty. Adding an existing column overwrites it.
func (df *DataFrame) AddColumn(col string, values []string) {
	idx := df.ColumnIndex(col)
	if idx < 0 {
		df.Headers = append(df.Headers, col)
		df.reindex()
		idx = len(df.Headers) - 1
	}
	for i := range df.Rows {
		r := df.Rows[i]
		for len(r) <= idx {
			r = append(r, "")
		}
		if i < len(values) {
			r[idx] = values[i]
		} else {
			r[idx] = ""
		}
		df.Rows[i] = r
	}
}

// Column returns a copy of all values for col
func (df *DataFrame) Column(col string) []string {
	out := make([]string, len(df.Rows))
	idx := df.ColumnIndex(col)
	if idx < 0 {
		return out
	}
	for i, r := range df.Rows {
		out[i] = cell(r, idx)
	}
	return out
}

// Rename changes the name of a column. Renaming an absent column is a no-op.
func (df *DataFrame) Rename(from, to string) {
	idx := df.ColumnIndex(from)
	if idx < 0 {
		return
	}
	df.Headers[idx] = to
	df.reindex()
}

// Project returns a frame holding only the listed columns that exist, in the
// order given. Absent columns are skipped, never an error.
func (df *DataFrame) Project(cols []string) *DataFrame {
	var keep []string
	var idxs []int
	for _, c := range cols {
		if idx := df.ColumnIndex(c); idx >= 0 {
			keep = append(keep, c)
			idxs = append(idxs, idx)
		}
	}
	out := New(df.Name, keep)
	out.Rows = make([][]string, len(df.Rows))
	for i, r := range df.Rows {
		nr := make([]string, len(idxs))
		for j, idx := range idxs {
			nr[j] = cell(r, idx)
		}
		out.Rows[i] = nr
	}
	return out
}

// Filter returns a frame holding the rows for which keep returns true.
// Row slices are shared with df.
func (df *DataFrame) Filter(keep func(row int) bool) *DataFrame {
	out := New(df.Name, df.Headers)
	for i, r := range df.Rows {
		if keep(i) {
			out.Rows = append(out.Rows, r)
		}
	}
	return out
}

// Concat stacks frames as a column union. Columns are ordered by first
// appearance; a column absent from one input is empty for that input's rows.
func Concat(name string, frames ...*DataFrame) *DataFrame {
	var headers []string
	seen := make(map[string]bool)
	for _, f := range frames {
		if f == nil {
			continue
		}
		for _, h := range f.Headers {
			if !seen[h] {
				seen[h] = true
				headers = append(headers, h)
			}
		}
	}
	out := New(name, headers)
	for _, f := range frames {
		if f == nil {
			continue
		}
		positions := make([]int, len(headers))
		for j, h := range headers {
			positions[j] = f.ColumnIndex(h)
		}
		for _, r := range f.Rows {
			nr := make([]string, len(headers))
			for j, idx := range positions {
				if idx >= 0 {
					nr[j] = cell(r, idx)
				}
			}
			out.Rows = append(out.Rows, nr)
		}
	}
	return out
}

func cell(r []string, idx int) string {
	if idx >= len(r) {
		return ""
	}
	return r[idx]
}

// ParseFloat reads a numeric cell. Empty, "nan" and unparseable cells are NaN.
func ParseFloat(s string) float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}

// FormatFloat renders a value for CSV output. NaN is written as an empty cell
// and integral values without a fractional part.
func FormatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	if v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// FormatBool renders an indicator as 1 or 0
func FormatBool(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// NormalizeKey canonicalises a join key so that "2011", "2011.0" and " 2011 "
// compare equal. Non-numeric keys are only trimmed.
func NormalizeKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return s
	}
	if v, err := strconv.ParseFloat(s, 64); err == nil && v == math.Trunc(v) && math.Abs(v) < 1e15 {
		return strconv.FormatInt(int64(v), 10)
	}
	return s
}
