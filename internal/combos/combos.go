// Package combos counts states by treatment coverage combination and year,
// working from the individual-level artifact alone.
package combos

import (
	"math"
	"sort"
	"strconv"

	"github.com/rotisserie/eris"

	"cessation-pipeline/internal/classify"
	"cessation-pipeline/internal/derive"
	"cessation-pipeline/internal/frame"
)

// ErrMissingColumn is returned when the input lacks a required column.
var ErrMissingColumn = eris.New("combos: required column missing")

var required = []string{"_state", "year", "any_nrt", "any_medication", "any_counseling"}

type stateYear struct {
	state, year int
}

// Counts holds unique-state counts per year and combination label
type Counts struct {
	Years  []int
	Labels []string
	cells  map[int]map[string]int
}

// Get returns the number of states with label in year
func (c *Counts) Get(year int, label string) int {
	return c.cells[year][label]
}

// CountByYear collapses respondents to state-years by the maximum of each
// category flag, labels each state-year and counts distinct states.
func CountByYear(df *frame.DataFrame) (*Counts, error) {
	for _, col := range required {
		if !df.Has(col) {
			return nil, eris.Wrapf(ErrMissingColumn, "%s", col)
		}
	}

	coverage := make(map[stateYear]classify.Coverage)
	for i := 0; i < df.Len(); i++ {
		state, year := df.Float(i, "_state"), df.Float(i, "year")
		if math.IsNaN(state) || math.IsNaN(year) {
			continue
		}
		k := stateYear{int(state), int(year)}
		c := coverage[k]
		c.NRT = c.NRT || derive.ParseFlag(df.Value(i, "any_nrt"))
		c.Medication = c.Medication || derive.ParseFlag(df.Value(i, "any_medication"))
		c.Counseling = c.Counseling || derive.ParseFlag(df.Value(i, "any_counseling"))
		coverage[k] = c
	}

	counts := &Counts{Labels: classify.ComboLabels, cells: make(map[int]map[string]int)}
	for k, c := range coverage {
		label := classify.Combo(c)
		if counts.cells[k.year] == nil {
			counts.cells[k.year] = make(map[string]int)
			counts.Years = append(counts.Years, k.year)
		}
		// each state-year key is unique, so counting keys counts distinct states
		counts.cells[k.year][label]++
	}
	sort.Ints(counts.Years)
	return counts, nil
}

// Frame renders counts wide: one row per year, one zero-filled column per label
func (c *Counts) Frame() *frame.DataFrame {
	df := frame.New("treatment_coverage_combinations_by_year", append([]string{"year"}, c.Labels...))
	for _, y := range c.Years {
		row := []string{strconv.Itoa(y)}
		for _, l := range c.Labels {
			row = append(row, strconv.Itoa(c.Get(y, l)))
		}
		df.Rows = append(df.Rows, row)
	}
	return df
}
