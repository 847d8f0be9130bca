package harmonize

import (
	"strconv"

	"cessation-pipeline/internal/frame"
)

// KeepVars are the respondent variables retained from every yearly extract
var KeepVars = []string{
	"_state", "smoke100", "smokday2", "stopsmk2", "lastsmk2",
	"income2", "_incomg", "sex", "educa", "race2", "marital",
	"_ageg5yr", "employ", "_wt2", "children", "pregnant", "_llcpwt",
	"_ststr", "_psu", "numadult", "hhadult", "year",
}

// Schema describes which variables are taken from a yearly extract.
// Variables a year does not carry are skipped, never an error.
type Schema struct {
	Keep []string
}

// DefaultSchema returns the BRFSS 2011-2020 variable list
func DefaultSchema() Schema {
	keep := make([]string, len(KeepVars))
	copy(keep, KeepVars)
	return Schema{Keep: keep}
}

// Available returns the kept variables present in df, in schema order
func (s Schema) Available(df *frame.DataFrame) []string {
	var out []string
	for _, v := range s.Keep {
		if df.Has(v) {
			out = append(out, v)
		}
	}
	return out
}

// Project adds a year column when the extract has none and narrows df to the
// kept variables it carries.
func (s Schema) Project(df *frame.DataFrame, year int) *frame.DataFrame {
	if !df.Has("year") {
		y := strconv.Itoa(year)
		values := make([]string, df.Len())
		for i := range values {
			values[i] = y
		}
		df.AddColumn("year", values)
	}
	return df.Project(s.Available(df))
}
