// Package derive computes respondent-level fields: household size, poverty
// level, Medicaid eligibility, smoking behaviour, demographics and treatment
// coverage.
package derive

import (
	"math"

	"cessation-pipeline/internal/frame"
)

// Columns appended by AddEligibility, in order
var EligibilityColumns = []string{
	"totaladult", "fpl_base", "fpl_additional", "fpl_threshold", "income_upper", "fpl_percent", "Medicaidelig",
}

// EligibilityStats counts the outcome of AddEligibility
type EligibilityStats struct {
	Rows       int `json:"rows"`
	Eligible   int `json:"eligible"`
	MissingFPL int `json:"missing_fpl"`
}

// AddEligibility appends household size, poverty threshold and eligibility
// columns to the merged respondent frame. Rows are never dropped here.
func AddEligibility(df *frame.DataFrame) EligibilityStats {
	n := df.Len()
	cols := make([][]string, len(EligibilityColumns))
	for i := range cols {
		cols[i] = make([]string, n)
	}
	stats := EligibilityStats{Rows: n}

	for i := 0; i < n; i++ {
		year := df.Float(i, "year")
		y := -1
		if !math.IsNaN(year) {
			y = int(year)
		}
		adults := HouseholdAdults(y, df.Float(i, "numadult"), df.Float(i, "hhadult"))
		threshold := Threshold(y, adults)
		upper := IncomeUpper(df.Float(i, "income2"))
		pct := FPLPercent(upper, threshold)
		eligible := Eligible(pct)

		cols[0][i] = frame.FormatFloat(adults)
		cols[1][i] = frame.FormatFloat(FPLBase(y))
		cols[2][i] = frame.FormatFloat(FPLAdditional(y))
		cols[3][i] = frame.FormatFloat(threshold)
		cols[4][i] = frame.FormatFloat(upper)
		cols[5][i] = frame.FormatFloat(pct)
		cols[6][i] = frame.FormatBool(eligible)

		if math.IsNaN(pct) {
			stats.MissingFPL++
		}
		if eligible {
			stats.Eligible++
		}
	}
	for i, c := range EligibilityColumns {
		df.AddColumn(c, cols[i])
	}
	return stats
}
