package derive

import (
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"cessation-pipeline/internal/frame"
)

// PrepareVars are the columns carried into the individual-level artifact
var PrepareVars = []string{
	"_state", "year", "state_name", "_llcpwt", "smoke100", "smokday2",
	"lastsmk2", "stopsmk2", "sex", "_ageg5yr", "race2", "educa", "employ",
	"income2", "_incomg", "fpl_percent", "pregnant", "children", "medicaidelig",
	"individual_counseling", "group_counseling", "nicotine_patch", "nicotine_gum",
	"nicotine_lozenge", "nicotine_nasal_spray", "nicotine_inhaler",
	"bupropion", "varenicline",
}

// Modality groups
var (
	NRTModalities        = []string{"nicotine_patch", "nicotine_gum", "nicotine_lozenge", "nicotine_nasal_spray", "nicotine_inhaler"}
	MedicationModalities = []string{"bupropion", "varenicline"}
	CounselingModalities = []string{"individual_counseling", "group_counseling"}
)

// Modalities lists every covered treatment in artifact column order
var Modalities = []string{
	"nicotine_patch", "nicotine_gum", "nicotine_lozenge", "nicotine_nasal_spray",
	"nicotine_inhaler", "bupropion", "varenicline", "individual_counseling",
	"group_counseling",
}

// IndicatorColumns are the derived columns, in the order they are appended
var IndicatorColumns = func() []string {
	cols := []string{
		"current_smoker", "former_smoker", "never_smoker",
		"quit_attempt", "recent_quitter", "past_year_quit_attempt",
		"low_education", "unemployed", "low_income", "male", "white", "black", "hispanic",
		"age_18_24", "age_25_34", "age_35_44", "age_45_54", "age_55_64",
	}
	for _, m := range Modalities {
		cols = append(cols, m+"_covered")
	}
	return append(cols, "any_nrt", "any_medication", "any_counseling")
}()

// MaxYear is the last survey year analysed
const MaxYear = 2020

// Respondent holds the typed raw fields one record is derived from.
// Missing numeric fields are NaN.
type Respondent struct {
	Smoke100, Smokday2, Stopsmk2, Lastsmk2 float64
	Sex, AgeG5yr, Race2, Educa, Employ     float64
	FPLPercent, MedicaidElig               float64
	Policy                                 map[string]string
}

// Indicators are the derived 0/1 fields of one respondent
type Indicators struct {
	CurrentSmoker, FormerSmoker, NeverSmoker              bool
	QuitAttempt, RecentQuitter, PastYearQuitAttempt       bool
	LowEducation, Unemployed, LowIncome                   bool
	Male, White, Black, Hispanic                          bool
	Age18to24, Age25to34, Age35to44, Age45to54, Age55to64 bool
	MedicaidElig                                          bool
	Covered                                               map[string]bool
	AnyNRT, AnyMedication, AnyCounseling                  bool
}

// Record is a cleaned respondent ready for aggregation
type Record struct {
	State     int
	Year      int
	StateName string
	Weight    float64
	Indicators
}

// Covered reports whether a policy code grants coverage
func Covered(code string) bool {
	c := strings.TrimSpace(code)
	return c == "Yes" || c == "Varies"
}

func in(v float64, set ...float64) bool {
	for _, s := range set {
		if v == s {
			return true
		}
	}
	return false
}

// Derive computes every indicator for a cleaned respondent
func Derive(r Respondent) Indicators {
	ind := Indicators{Covered: make(map[string]bool, len(Modalities))}

	ind.CurrentSmoker = r.Smoke100 == 1 && in(r.Smokday2, 1, 2)
	ind.FormerSmoker = r.Smoke100 == 1 && r.Smokday2 == 3
	ind.NeverSmoker = r.Smoke100 == 2

	ind.QuitAttempt = r.Stopsmk2 == 1 && ind.CurrentSmoker
	ind.RecentQuitter = ind.FormerSmoker && r.Lastsmk2 <= 4
	if math.IsNaN(r.Lastsmk2) || r.Lastsmk2 >= 77 {
		ind.RecentQuitter = false
	}
	ind.PastYearQuitAttempt = ind.RecentQuitter

	ind.LowEducation = r.Educa < 4
	ind.Unemployed = r.Employ > 2 && r.Employ < 9
	ind.LowIncome = r.FPLPercent <= 100
	ind.Male = r.Sex == 1
	ind.White = r.Race2 == 1
	ind.Black = r.Race2 == 2
	ind.Hispanic = r.Race2 == 8

	ind.Age18to24 = r.AgeG5yr == 1
	ind.Age25to34 = in(r.AgeG5yr, 2, 3)
	ind.Age35to44 = in(r.AgeG5yr, 4, 5)
	ind.Age45to54 = in(r.AgeG5yr, 6, 7)
	ind.Age55to64 = in(r.AgeG5yr, 8, 9)

	ind.MedicaidElig = r.MedicaidElig == 1

	for _, m := range Modalities {
		ind.Covered[m] = Covered(r.Policy[m])
	}
	ind.AnyNRT = anyOf(ind.Covered, NRTModalities)
	ind.AnyMedication = anyOf(ind.Covered, MedicationModalities)
	ind.AnyCounseling = anyOf(ind.Covered, CounselingModalities)
	return ind
}

func anyOf(covered map[string]bool, mods []string) bool {
	for _, m := range mods {
		if covered[m] {
			return true
		}
	}
	return false
}

func (ind Indicators) values() []string {
	flags := []bool{
		ind.CurrentSmoker, ind.FormerSmoker, ind.NeverSmoker,
		ind.QuitAttempt, ind.RecentQuitter, ind.PastYearQuitAttempt,
		ind.LowEducation, ind.Unemployed, ind.LowIncome, ind.Male, ind.White, ind.Black, ind.Hispanic,
		ind.Age18to24, ind.Age25to34, ind.Age35to44, ind.Age45to54, ind.Age55to64,
	}
	for _, m := range Modalities {
		flags = append(flags, ind.Covered[m])
	}
	flags = append(flags, ind.AnyNRT, ind.AnyMedication, ind.AnyCounseling)

	out := make([]string, len(flags))
	for i, f := range flags {
		out[i] = frame.FormatBool(f)
	}
	return out
}

// Prepared is the individual-level sample
type Prepared struct {
	Frame   *frame.DataFrame
	Records []Record
	Drops   []Drop
	// Filled lists prepare columns absent from the input, written empty.
	Filled []string
}

// Prepare cleans the eligible sample and derives every indicator. The input
// frame is not modified.
func Prepare(eligible *frame.DataFrame, log *zap.Logger) (*Prepared, error) {
	if log == nil {
		log = zap.L()
	}
	src := eligible.Project(eligible.Headers)
	src.Rename("Medicaidelig", "medicaidelig")

	out := &Prepared{}
	for _, v := range PrepareVars {
		if !src.Has(v) {
			src.AddColumn(v, nil)
			out.Filled = append(out.Filled, v)
		}
	}
	if len(out.Filled) > 0 {
		log.Warn("derive: prepare columns missing from merged sample, written empty",
			zap.Strings("columns", out.Filled))
	}
	df := src.Project(PrepareVars)

	stages := []struct {
		name string
		keep func(row int) bool
	}{
		{"after_2020", func(i int) bool { return df.Float(i, "year") <= MaxYear }},
		{"smoke100_invalid", func(i int) bool {
			v := df.Float(i, "smoke100")
			return !math.IsNaN(v) && v < 7
		}},
		{"smokday2_invalid", func(i int) bool {
			if math.IsNaN(df.Float(i, "smokday2")) {
				df.Set(i, "smokday2", "3")
			}
			return df.Float(i, "smokday2") < 7
		}},
		{"lastsmk2_invalid", func(i int) bool { return !in(df.Float(i, "lastsmk2"), 77, 99) }},
		{"status_undetermined", func(i int) bool {
			s100 := df.Float(i, "smoke100")
			return s100 == 2 || (s100 == 1 && in(df.Float(i, "smokday2"), 1, 2, 3))
		}},
		{"weight_invalid", func(i int) bool { return df.Float(i, "_llcpwt") > 0 }},
	}
	for _, st := range stages {
		before := df.Len()
		df = df.Filter(st.keep)
		out.Drops = append(out.Drops, Drop{Stage: st.name, Rows: before - df.Len()})
		log.Info("derive: cleaning stage applied",
			zap.String("stage", st.name),
			zap.Int("rows_before", before),
			zap.Int("rows_after", df.Len()))
	}

	derived := make([][]string, df.Len())
	out.Records = make([]Record, 0, df.Len())
	for i := 0; i < df.Len(); i++ {
		r := Respondent{
			Smoke100:     df.Float(i, "smoke100"),
			Smokday2:     df.Float(i, "smokday2"),
			Stopsmk2:     df.Float(i, "stopsmk2"),
			Lastsmk2:     df.Float(i, "lastsmk2"),
			Sex:          df.Float(i, "sex"),
			AgeG5yr:      df.Float(i, "_ageg5yr"),
			Race2:        df.Float(i, "race2"),
			Educa:        df.Float(i, "educa"),
			Employ:       df.Float(i, "employ"),
			FPLPercent:   df.Float(i, "fpl_percent"),
			MedicaidElig: df.Float(i, "medicaidelig"),
			Policy:       make(map[string]string, len(Modalities)),
		}
		for _, m := range Modalities {
			r.Policy[m] = df.Value(i, m)
		}
		ind := Derive(r)
		derived[i] = ind.values()

		state, err := intField(df, i, "_state")
		if err != nil {
			return nil, err
		}
		year, err := intField(df, i, "year")
		if err != nil {
			return nil, err
		}
		out.Records = append(out.Records, Record{
			State:      state,
			Year:       year,
			StateName:  df.Value(i, "state_name"),
			Weight:     df.Float(i, "_llcpwt"),
			Indicators: ind,
		})
	}

	result := frame.New("individual_level", append(append([]string{}, PrepareVars...), IndicatorColumns...))
	result.Rows = make([][]string, df.Len())
	for i, r := range df.Rows {
		row := make([]string, 0, len(result.Headers))
		for j := range PrepareVars {
			if j < len(r) {
				row = append(row, r[j])
			} else {
				row = append(row, "")
			}
		}
		result.Rows[i] = append(row, derived[i]...)
	}
	out.Frame = result
	return out, nil
}

func intField(df *frame.DataFrame, row int, col string) (int, error) {
	v := df.Float(row, col)
	if math.IsNaN(v) || v != math.Trunc(v) {
		return 0, eris.Errorf("derive: row %d: %s is not an integer (%q)", row+1, col, df.Value(row, col))
	}
	return int(v), nil
}

// ParseFlag reads a 0/1 cell; anything other than a positive number is false.
func ParseFlag(s string) bool {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return err == nil && v > 0
}
