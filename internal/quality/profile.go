// Package quality profiles the columns of yearly extracts so schema drift
// between survey years is visible.
package quality

import (
	"math"
	"sort"
	"strconv"

	"cessation-pipeline/internal/frame"
)

// ColumnProfile holds quality metrics for one variable of one year's extract
type ColumnProfile struct {
	Year          int     `json:"year"`
	ColumnName    string  `json:"column_name"`
	Present       bool    `json:"present"`
	TotalRows     int     `json:"total_rows"`
	NonNullRows   int     `json:"non_null_rows"`
	NullRate      float64 `json:"null_rate"`
	DistinctCount int     `json:"distinct_count"`
	Entropy       float64 `json:"entropy"`
	Type          string  `json:"type"` // int, float, string or empty when absent
}

// Profiler analyzes column quality
type Profiler struct {
	// SampleSize bounds the rows inspected for type inference; zero means 20.
	SampleSize int
}

// NewProfiler creates a new profiler
func NewProfiler() *Profiler {
	return &Profiler{}
}

// ProfileColumn analyzes quality metrics for a single column. A column the
// frame does not carry is reported as absent with a null rate of 1.
func (p *Profiler) ProfileColumn(df *frame.DataFrame, year int, col string) ColumnProfile {
	profile := ColumnProfile{
		Year:       year,
		ColumnName: col,
		TotalRows:  df.Len(),
	}
	idx := df.ColumnIndex(col)
	if idx < 0 {
		profile.NullRate = 1
		return profile
	}
	profile.Present = true

	uniqueValues := make(map[string]int)
	nonNullCount := 0
	for _, row := range df.Rows {
		if idx >= len(row) {
			continue
		}
		value := row[idx]
		if isNull(value) {
			continue
		}
		nonNullCount++
		uniqueValues[value]++
	}

	profile.NonNullRows = nonNullCount
	profile.DistinctCount = len(uniqueValues)
	if profile.TotalRows > 0 {
		profile.NullRate = float64(profile.TotalRows-nonNullCount) / float64(profile.TotalRows)
	}
	profile.Entropy = entropy(uniqueValues, nonNullCount)
	profile.Type = p.inferType(df.Rows, idx)
	return profile
}

// ProfileYear profiles the listed columns of one year's extract
func (p *Profiler) ProfileYear(df *frame.DataFrame, year int, cols []string) []ColumnProfile {
	profiles := make([]ColumnProfile, len(cols))
	for i, c := range cols {
		profiles[i] = p.ProfileColumn(df, year, c)
	}
	return profiles
}

// Missing returns the columns reported absent, by year
func Missing(profiles []ColumnProfile) map[int][]string {
	out := make(map[int][]string)
	for _, pr := range profiles {
		if !pr.Present {
			out[pr.Year] = append(out[pr.Year], pr.ColumnName)
		}
	}
	return out
}

// Table renders profiles as the schema_profile artifact, ordered by year
// then by the order columns were profiled.
func Table(profiles []ColumnProfile) *frame.DataFrame {
	sorted := make([]ColumnProfile, len(profiles))
	copy(sorted, profiles)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Year < sorted[j].Year })

	df := frame.New("schema_profile", []string{
		"year", "column", "present", "total_rows", "non_null_rows", "null_rate", "distinct_count", "entropy", "type",
	})
	for _, pr := range sorted {
		df.Rows = append(df.Rows, []string{
			strconv.Itoa(pr.Year),
			pr.ColumnName,
			frame.FormatBool(pr.Present),
			strconv.Itoa(pr.TotalRows),
			strconv.Itoa(pr.NonNullRows),
			strconv.FormatFloat(pr.NullRate, 'f', 6, 64),
			strconv.Itoa(pr.DistinctCount),
			strconv.FormatFloat(pr.Entropy, 'f', 6, 64),
			pr.Type,
		})
	}
	return df
}

func isNull(v string) bool {
	return v == "" || v == "null" || v == "NULL" || v == "None" || v == "NaN" || v == "nan"
}

// entropy computes Shannon entropy in bits
func entropy(valueCounts map[string]int, total int) float64 {
	if total == 0 {
		return 0
	}
	e := 0.0
	for _, count := range valueCounts {
		if count > 0 {
			p := float64(count) / float64(total)
			e -= p * math.Log2(p)
		}
	}
	return e
}

func (p *Profiler) inferType(rows [][]string, colIndex int) string {
	sampleSize := p.SampleSize
	if sampleSize <= 0 {
		sampleSize = 20
	}

	isInt, isFloat, seen := true, true, 0
	for _, row := range rows {
		if seen >= sampleSize {
			break
		}
		if colIndex >= len(row) || isNull(row[colIndex]) {
			continue
		}
		seen++
		val := row[colIndex]
		if _, err := strconv.Atoi(val); err != nil {
			isInt = false
		}
		if _, err := strconv.ParseFloat(val, 64); err != nil {
			isFloat = false
		}
	}

	switch {
	case seen == 0:
		return "string"
	case isInt:
		return "int"
	case isFloat:
		return "float"
	}
	return "string"
}
