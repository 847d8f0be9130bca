package aggregate

import (
	"strconv"

	"cessation-pipeline/internal/classify"
	"cessation-pipeline/internal/frame"
)

// Columns of the state-level artifact, in order
var Columns = []string{
	"_state", "year", "state_name",
	"current_smoker_count", "total_count", "current_smoker_prev",
	"past_year_quit_attempt_prev", "past_year_quit_attempt_count",
	"male_pct", "white_pct", "black_pct", "hispanic_pct", "low_educ_pct", "unemployed_pct",
	"poverty_pct", "medicaid_elig_pct",
	"age_18_24_pct", "age_25_34_pct", "age_35_44_pct", "age_45_54_pct", "age_55_64_pct",
	"any_nrt", "any_medication", "any_counseling",
	"weighted_pop", "sample_size",
	"treatment_group", "nrt_med", "all_three",
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Frame renders state-years in the given order
func Frame(rows []StateYear) *frame.DataFrame {
	df := frame.New("state_level_descriptive_data", Columns)
	df.Rows = make([][]string, 0, len(rows))
	for _, s := range rows {
		df.Rows = append(df.Rows, []string{
			strconv.Itoa(s.State), strconv.Itoa(s.Year), s.StateName,
			num(s.CurrentSmokerCount), num(s.TotalCount), num(s.CurrentSmokerPrev),
			num(s.PastYearQuitAttemptPrev), num(s.PastYearQuitAttemptCount),
			num(s.MalePct), num(s.WhitePct), num(s.BlackPct), num(s.HispanicPct), num(s.LowEducPct), num(s.UnemployedPct),
			num(s.PovertyPct), num(s.MedicaidEligPct),
			num(s.Age18to24Pct), num(s.Age25to34Pct), num(s.Age35to44Pct), num(s.Age45to54Pct), num(s.Age55to64Pct),
			frame.FormatBool(s.AnyNRT), frame.FormatBool(s.AnyMedication), frame.FormatBool(s.AnyCounseling),
			num(s.WeightedPop), strconv.Itoa(s.SampleSize),
			s.Group.String(), frame.FormatBool(s.Group == classify.NRTMed), frame.FormatBool(s.Group == classify.AllThree),
		})
	}
	return df
}
