package harmonize

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"cessation-pipeline/internal/frame"
	"cessation-pipeline/internal/source"
)

func table(name string, headers []string, rows ...[]string) *frame.DataFrame {
	df := frame.New(name, headers)
	df.Rows = rows
	return df
}

func policy(name, col string) *frame.DataFrame {
	return table(name, []string{"state_name", "year", col},
		[]string{"Ohio", "2011", "1"}, []string{"Ohio", "2014", "1"},
		[]string{"Texas", "2011", "0"}, []string{"Texas", "2014", "0"},
		[]string{"Guam", "2011", "0"},
	)
}

func fixture() source.Memory {
	t := DefaultTables()
	return source.Memory{
		"data2011": table("data2011", []string{"_state", "numadult", "income2", "sex", "year", "ignored"},
			[]string{"39", "1", "2", "1", "2011", "x"},
			[]string{"48", "2", "4", "2", "2011", "x"},
			[]string{"66", "1", "1", "1", "2011", "x"},
		),
		"data2014": table("data2014", []string{"_state", "hhadult", "income2", "sex"},
			[]string{"39", "3", "5", "2"},
			[]string{"99", "1", "1", "1"},
		),
		t.FIPS: table(t.FIPS, []string{"_state", "state_name"},
			[]string{"39", "Ohio"}, []string{"48", "Texas"}, []string{"66", "Guam"},
		),
		t.Cessation: table(t.Cessation, []string{"state_name", "year", "nicotine_patch", "_state"},
			[]string{"Ohio", "2011", "Yes", "39"}, []string{"Ohio", "2014", "Varies", "39"},
		),
		t.Bars:        policy(t.Bars, "sfa_bars"),
		t.Worksites:   policy(t.Worksites, "sfa_worksites"),
		t.Restaurants: policy(t.Restaurants, "sfa_restaurants"),
		t.CigTax:      policy(t.CigTax, "cig_tax"),
	}
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Years = []int{2011, 2014}
	return cfg
}

func TestRunMergesAndUsesBuiltinExpansion(t *testing.T) {
	res, err := New(fixture(), testConfig(), zap.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	df := res.Frame

	// 99 has no FIPS row, 66 is a territory
	if df.Len() != 3 {
		t.Fatalf("rows: %d, want 3", df.Len())
	}
	for _, col := range []string{"state_name", "expansion", "nicotine_patch", "cig_tax", "numadult", "hhadult"} {
		if !df.Has(col) {
			t.Fatalf("missing column %s in %v", col, df.Headers)
		}
	}
	if df.Has("ignored") || df.Has("_state_x") || df.Has("_state_y") {
		t.Fatalf("unexpected columns %v", df.Headers)
	}
	for i := 0; i < df.Len(); i++ {
		if df.Value(i, "year") == "" {
			t.Fatalf("row %d has no year", i)
		}
	}
	if df.Value(2, "year") != "2014" || df.Value(2, "hhadult") != "3" || df.Value(2, "numadult") != "" {
		t.Fatalf("2014 row: %v", df.Rows[2])
	}
	if df.Value(1, "state_name") != "Texas" || df.Value(1, "nicotine_patch") != "" || df.Value(1, "expansion") != "0" {
		t.Fatalf("texas row: %v", df.Rows[1])
	}

	if len(res.Fallbacks) != 1 || res.Fallbacks[0].Kind != "builtin" || res.Fallbacks[0].Dataset != "builtin/medicaid_expansion@2020.1" {
		t.Fatalf("fallbacks: %+v", res.Fallbacks)
	}
	if len(res.Steps) != len(DefaultPlan(DefaultTables())) {
		t.Fatalf("steps: %+v", res.Steps)
	}
	if res.Steps[0].RowsBefore != 5 || res.Steps[0].RowsAfter != 4 {
		t.Fatalf("fips step: %+v", res.Steps[0])
	}
	if res.Steps[3].Kind != "filter" || res.Steps[3].RowsAfter != 3 {
		t.Fatalf("states filter step: %+v", res.Steps[3])
	}
	if len(res.Profile) != 2*len(KeepVars) {
		t.Fatalf("profile entries: %d", len(res.Profile))
	}
}

func TestRunSkipsMissingCessationTable(t *testing.T) {
	src := fixture()
	delete(src, DefaultTables().Cessation)

	res, err := New(src, testConfig(), zap.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Frame.Has("nicotine_patch") {
		t.Fatalf("cessation columns present after skipped merge")
	}
	var kinds []string
	for _, f := range res.Fallbacks {
		kinds = append(kinds, f.Kind)
	}
	if len(kinds) != 2 || kinds[1] != "skipped" {
		t.Fatalf("fallbacks: %v", kinds)
	}
}

func TestRunAbortsOnMissingRequiredTable(t *testing.T) {
	for _, name := range []string{DefaultTables().FIPS, DefaultTables().CigTax, "data2014"} {
		src := fixture()
		delete(src, name)
		_, err := New(src, testConfig(), zap.NewNop()).Run(context.Background())
		if !eris.Is(err, source.ErrNotFound) {
			t.Fatalf("without %s: expected ErrNotFound, got %v", name, err)
		}
	}
}

func TestRunRejectsDuplicatePolicyRows(t *testing.T) {
	src := fixture()
	bars := src[DefaultTables().Bars]
	bars.Rows = append(bars.Rows, []string{"Ohio", "2011.0", "1"})

	_, err := New(src, testConfig(), zap.NewNop()).Run(context.Background())
	if !eris.Is(err, frame.ErrDuplicateKey) {
		t.Fatalf("expected duplicate key error, got %v", err)
	}
}

func TestSchemaProjectAddsYear(t *testing.T) {
	df := table("data2016", []string{"_state", "foo", "smoke100"}, []string{"1", "x", "1"})
	out := DefaultSchema().Project(df, 2016)
	if len(out.Headers) != 3 || out.Value(0, "year") != "2016" || out.Has("foo") {
		t.Fatalf("projection: %v %v", out.Headers, out.Rows)
	}
}

func TestDropShadowingKeepsColumnsTheLeftLacks(t *testing.T) {
	h := New(fixture(), testConfig(), zap.NewNop())
	plan := h.Plan()
	respondents := table("respondents", []string{"_state", "year"}, []string{"39", "2015"})
	fips := table("fips", []string{"_state", "state_name"}, []string{"39", "Ohio"})

	kept := h.dropShadowing(plan[0], respondents, fips)
	if !kept.Has("state_name") {
		t.Fatalf("fips join lost state_name: %v", kept.Headers)
	}

	merged := table("respondents", []string{"_state", "year", "state_name"}, []string{"39", "2015", "Ohio"})
	expansion := table("expansion", []string{"_state", "state_name", "expanded"}, []string{"39", "Ohio", "1"})
	trimmed := h.dropShadowing(plan[1], merged, expansion)
	if trimmed.Has("state_name") {
		t.Fatalf("expansion kept shadowing state_name: %v", trimmed.Headers)
	}
	if !trimmed.Has("expanded") || !trimmed.Has("_state") {
		t.Fatalf("expansion headers = %v", trimmed.Headers)
	}
}
