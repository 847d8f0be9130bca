// Package present prepares the state-level table for mapping and charting
// collaborators. Rendering happens elsewhere.
package present

import (
	"strconv"

	"cessation-pipeline/internal/aggregate"
	"cessation-pipeline/internal/frame"
	"cessation-pipeline/internal/reference"
)

// Excluded are the postal codes left off continental maps
var Excluded = map[string]bool{"AK": true, "HI": true, "PR": true, "VI": true, "GU": true, "MP": true, "AS": true}

// Columns of the presentation artifact
var Columns = []string{
	"_state", "state_abbr", "year", "state_name", "treatment_group", "treatment_label",
	"current_smoker_prev", "past_year_quit_attempt_prev", "continental",
}

// Row is one state-year ready for display. Prevalences are percentages.
type Row struct {
	State                   int
	Postal                  string
	Year                    int
	StateName               string
	Group                   int
	Label                   string
	CurrentSmokerPrev       float64
	PastYearQuitAttemptPrev float64
	Continental             bool
}

// Prepare scales prevalences to 0-100 and attaches labels and postal codes
func Prepare(rows []aggregate.StateYear) []Row {
	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		st, _ := reference.StateByFIPS(r.State)
		out = append(out, Row{
			State:                   r.State,
			Postal:                  st.Postal,
			Year:                    r.Year,
			StateName:               r.StateName,
			Group:                   int(r.Group),
			Label:                   r.Group.Label(),
			CurrentSmokerPrev:       r.CurrentSmokerPrev * 100,
			PastYearQuitAttemptPrev: r.PastYearQuitAttemptPrev * 100,
			Continental:             IsContinental(r.State),
		})
	}
	return out
}

// IsContinental reports whether a FIPS code is drawn on contiguous-US maps.
// Unknown codes are not.
func IsContinental(fips int) bool {
	st, ok := reference.StateByFIPS(fips)
	return ok && !Excluded[st.Postal]
}

// Frame renders presentation rows
func Frame(rows []Row) *frame.DataFrame {
	df := frame.New("state_level_presentation", Columns)
	for _, r := range rows {
		df.Rows = append(df.Rows, []string{
			strconv.Itoa(r.State), r.Postal, strconv.Itoa(r.Year), r.StateName,
			strconv.Itoa(r.Group), r.Label,
			strconv.FormatFloat(r.CurrentSmokerPrev, 'f', -1, 64),
			strconv.FormatFloat(r.PastYearQuitAttemptPrev, 'f', -1, 64),
			frame.FormatBool(r.Continental),
		})
	}
	return df
}
