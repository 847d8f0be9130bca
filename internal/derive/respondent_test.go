package derive

import (
	"math"
	"strings"
	"testing"

	"go.uber.org/zap"

	"cessation-pipeline/internal/frame"
)

func respondent(smoke100, smokday2, stopsmk2, lastsmk2 float64) Respondent {
	nan := math.NaN()
	return Respondent{
		Smoke100: smoke100, Smokday2: smokday2, Stopsmk2: stopsmk2, Lastsmk2: lastsmk2,
		Sex: 1, AgeG5yr: nan, Race2: nan, Educa: nan, Employ: nan,
		FPLPercent: nan, MedicaidElig: 1,
	}
}

func TestDeriveQuitFlags(t *testing.T) {
	nan := math.NaN()
	cases := []struct {
		name                       string
		r                          Respondent
		current, former, never     bool
		quit, recent, pastYearQuit bool
	}{
		{"current smoker tried to quit", respondent(1, 1, 1, nan), true, false, false, true, false, false},
		{"some-days smoker no attempt", respondent(1, 2, 2, nan), true, false, false, false, false, false},
		{"former quit within year", respondent(1, 3, nan, 3), false, true, false, false, true, true},
		{"former quit long ago", respondent(1, 3, nan, 6), false, true, false, false, false, false},
		{"former unknown quit time", respondent(1, 3, nan, nan), false, true, false, false, false, false},
		{"former refused quit time", respondent(1, 3, nan, 99), false, true, false, false, false, false},
		{"never smoker", respondent(2, 3, nan, nan), false, false, true, false, false, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ind := Derive(tc.r)
			if ind.CurrentSmoker != tc.current || ind.FormerSmoker != tc.former || ind.NeverSmoker != tc.never {
				t.Fatalf("status: %+v", ind)
			}
			if ind.QuitAttempt != tc.quit || ind.RecentQuitter != tc.recent || ind.PastYearQuitAttempt != tc.pastYearQuit {
				t.Fatalf("quit flags: quit=%v recent=%v past_year=%v", ind.QuitAttempt, ind.RecentQuitter, ind.PastYearQuitAttempt)
			}
		})
	}
}

func TestDeriveDemographics(t *testing.T) {
	r := respondent(2, 3, math.NaN(), math.NaN())
	r.Educa, r.Employ, r.Race2, r.AgeG5yr, r.FPLPercent, r.Sex = 3, 8, 8, 3, 100, 2
	ind := Derive(r)
	if !ind.LowEducation || !ind.Unemployed || !ind.Hispanic || ind.White || ind.Black || ind.Male {
		t.Fatalf("demographics: %+v", ind)
	}
	if !ind.Age25to34 || ind.Age18to24 || ind.Age35to44 || !ind.LowIncome {
		t.Fatalf("age or income: %+v", ind)
	}

	r.Educa, r.Employ, r.AgeG5yr, r.FPLPercent = 4, 9, 10, 101
	ind = Derive(r)
	if ind.LowEducation || ind.Unemployed || ind.LowIncome {
		t.Fatalf("boundaries: %+v", ind)
	}
	if ind.Age18to24 || ind.Age25to34 || ind.Age35to44 || ind.Age45to54 || ind.Age55to64 {
		t.Fatalf("age 65+ sits in no bucket: %+v", ind)
	}
}

func TestDeriveCoverage(t *testing.T) {
	r := respondent(2, 3, math.NaN(), math.NaN())
	r.Policy = map[string]string{
		"nicotine_gum":          "Varies",
		"varenicline":           "Yes",
		"individual_counseling": "No",
		"group_counseling":      "",
	}
	ind := Derive(r)
	if !ind.Covered["nicotine_gum"] || ind.Covered["nicotine_patch"] || !ind.Covered["varenicline"] {
		t.Fatalf("covered: %v", ind.Covered)
	}
	if !ind.AnyNRT || !ind.AnyMedication || ind.AnyCounseling {
		t.Fatalf("categories: nrt=%v med=%v counseling=%v", ind.AnyNRT, ind.AnyMedication, ind.AnyCounseling)
	}
}

func eligibleFrame() *frame.DataFrame {
	df := frame.New("eligible", []string{
		"_state", "year", "state_name", "_llcpwt", "smoke100", "smokday2", "lastsmk2", "stopsmk2",
		"sex", "fpl_percent", "Medicaidelig", "nicotine_patch", "bupropion", "extra",
	})
	df.Rows = [][]string{
		{"39", "2015", "Ohio", "100", "1", "1", "", "1", "1", "80", "1", "Yes", "Yes", "x"},  // current, tried to quit
		{"39", "2015", "Ohio", "50", "2", "", "", "", "2", "90", "1", "Yes", "Yes", "x"},     // never, smokday2 filled
		{"39", "2015", "Ohio", "50", "7", "", "", "", "2", "90", "1", "Yes", "Yes", "x"},     // smoke100 invalid
		{"39", "2015", "Ohio", "50", "1", "9", "", "", "2", "90", "1", "Yes", "Yes", "x"},    // smokday2 invalid
		{"39", "2015", "Ohio", "50", "1", "3", "77", "", "2", "90", "1", "Yes", "Yes", "x"}, // lastsmk2 unknown
		{"39", "2015", "Ohio", "", "1", "3", "2", "", "2", "90", "1", "Yes", "Yes", "x"},    // missing weight
		{"39", "2021", "Ohio", "50", "1", "3", "2", "", "2", "90", "1", "Yes", "Yes", "x"},  // after 2020
		{"48", "2016", "Texas", "20", "1", "3", "2", "", "1", "60", "1", "No", "No", "x"},   // former, recent quitter
	}
	return df
}

func TestPrepare(t *testing.T) {
	in := eligibleFrame()
	got, err := Prepare(in, zap.NewNop())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	if len(got.Records) != 3 || got.Frame.Len() != 3 {
		t.Fatalf("records: %d rows: %d", len(got.Records), got.Frame.Len())
	}

	wantDrops := map[string]int{
		"after_2020": 1, "smoke100_invalid": 1, "smokday2_invalid": 1,
		"lastsmk2_invalid": 1, "status_undetermined": 0, "weight_invalid": 1,
	}
	for _, d := range got.Drops {
		if wantDrops[d.Stage] != d.Rows {
			t.Errorf("stage %s dropped %d, want %d", d.Stage, d.Rows, wantDrops[d.Stage])
		}
	}

	if got.Frame.Value(1, "smokday2") != "3" {
		t.Fatalf("missing smokday2 not filled: %v", got.Frame.Rows[1])
	}
	if in.Value(1, "smokday2") != "" {
		t.Fatalf("prepare mutated its input")
	}
	if got.Frame.Has("extra") || !got.Frame.Has("medicaidelig") || got.Frame.Has("Medicaidelig") {
		t.Fatalf("headers: %v", got.Frame.Headers)
	}
	if !strings.HasPrefix(strings.Join(got.Frame.Headers, ","), strings.Join(PrepareVars, ",")+",current_smoker") {
		t.Fatalf("column order: %v", got.Frame.Headers)
	}
	if len(got.Filled) == 0 {
		t.Fatalf("expected absent columns such as varenicline to be reported")
	}

	ohio, texas := got.Records[0], got.Records[2]
	if !ohio.CurrentSmoker || !ohio.QuitAttempt || ohio.PastYearQuitAttempt || !ohio.AnyNRT || !ohio.AnyMedication || !ohio.Male {
		t.Fatalf("ohio current smoker: %+v", ohio)
	}
	if texas.State != 48 || texas.Year != 2016 || texas.Weight != 20 || !texas.RecentQuitter || texas.AnyNRT {
		t.Fatalf("texas former smoker: %+v", texas)
	}
	if got.Frame.Value(0, "any_nrt") != "1" || got.Frame.Value(2, "past_year_quit_attempt") != "1" {
		t.Fatalf("derived cells: %v %v", got.Frame.Rows[0], got.Frame.Rows[2])
	}
}

func TestSmokingStatusIsExclusive(t *testing.T) {
	got, err := Prepare(eligibleFrame(), zap.NewNop())
	if err != nil {
		t.Fatalf("prepare: %v", err)
	}
	for i, r := range got.Records {
		n := 0
		for _, b := range []bool{r.CurrentSmoker, r.FormerSmoker, r.NeverSmoker} {
			if b {
				n++
			}
		}
		if n != 1 {
			t.Fatalf("record %d holds %d smoking statuses", i, n)
		}
	}
}
