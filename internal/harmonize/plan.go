package harmonize

import (
	"cessation-pipeline/internal/frame"
	"cessation-pipeline/internal/reference"
)

// OnMissing says what a join step does when its table cannot be found
type OnMissing int

const (
	// Abort fails the run.
	Abort OnMissing = iota
	// Builtin substitutes the step's built-in dataset.
	Builtin
	// Skip leaves the frame unchanged.
	Skip
)

// Tables names the reference tables read from the source
type Tables struct {
	FIPS        string `yaml:"fips"`
	Expansion   string `yaml:"medicaid_expansion"`
	Cessation   string `yaml:"cessation_coverage"`
	Bars        string `yaml:"smokefree_bars"`
	Worksites   string `yaml:"smokefree_worksites"`
	Restaurants string `yaml:"smokefree_restaurants"`
	CigTax      string `yaml:"cigarette_tax"`
}

// DefaultTables returns the stock file names
func DefaultTables() Tables {
	return Tables{
		FIPS:        "fips_gnis_mapping",
		Expansion:   "medicaid_expansion",
		Cessation:   "Cessation_Treatments_Coverage",
		Bars:        "Smokefree Indoor Air Bar",
		Worksites:   "Smokefree Indoor Private Worksites",
		Restaurants: "Smokefree Indoor Air Restaurants",
		CigTax:      "CigTax_PerPack",
	}
}

// Step is one operation of the merge plan: a join against a reference table
// or a row filter.
type Step struct {
	Name      string
	Table     string
	Join      frame.JoinSpec
	OnMissing OnMissing
	Fallback  *reference.Dataset
	Keep      func(df *frame.DataFrame, row int) bool
}

// IsFilter reports whether the step filters rows instead of joining
func (s Step) IsFilter() bool {
	return s.Keep != nil
}

var stateYear = []string{"state_name", "year"}

// MaxStateFIPS is the largest FIPS code kept; territories sort above it.
const MaxStateFIPS = 56

// DefaultPlan returns the merge order. Order matters: the cessation table is
// joined left before territories are filtered out, and the policy tables
// narrow the sample to state-years they cover.
func DefaultPlan(t Tables) []Step {
	expansion := reference.MedicaidExpansion
	return []Step{
		{Name: "fips", Table: t.FIPS, Join: frame.JoinSpec{Keys: []string{"_state"}, Kind: frame.Inner}},
		{Name: "medicaid_expansion", Table: t.Expansion, Join: frame.JoinSpec{Keys: []string{"_state"}, Kind: frame.Left},
			OnMissing: Builtin, Fallback: &expansion},
		{Name: "cessation_coverage", Table: t.Cessation, Join: frame.JoinSpec{Keys: stateYear, Kind: frame.Left},
			OnMissing: Skip},
		{Name: "states_only", Keep: func(df *frame.DataFrame, row int) bool {
			return df.Float(row, "_state") <= MaxStateFIPS
		}},
		{Name: "smokefree_bars", Table: t.Bars, Join: frame.JoinSpec{Keys: stateYear, Kind: frame.Inner}},
		{Name: "smokefree_worksites", Table: t.Worksites, Join: frame.JoinSpec{Keys: stateYear, Kind: frame.Inner}},
		{Name: "smokefree_restaurants", Table: t.Restaurants, Join: frame.JoinSpec{Keys: stateYear, Kind: frame.Inner}},
		{Name: "cigarette_tax", Table: t.CigTax, Join: frame.JoinSpec{Keys: stateYear, Kind: frame.Inner}},
	}
}
