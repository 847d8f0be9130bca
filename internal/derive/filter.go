package derive

import (
	"math"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/rotisserie/eris"

	"cessation-pipeline/internal/frame"
)

// ErrFilterExpression is returned when a sample filter does not compile or
// does not evaluate to a boolean.
var ErrFilterExpression = eris.New("derive: invalid sample filter expression")

// Rule is one named sample restriction
type Rule struct {
	Name string `yaml:"name" json:"name"`
	Expr string `yaml:"expr" json:"expr"`
}

// DefaultRules restrict the sample to Medicaid-eligible, childless adults
// reporting male or female sex.
func DefaultRules() []Rule {
	return []Rule{
		{Name: "medicaid_eligible", Expr: "Medicaidelig == 1"},
		{Name: "no_children", Expr: "children == 88"},
		{Name: "male_or_female", Expr: "sex in [1, 2]"},
	}
}

// SampleFilter applies compiled rules in order
type SampleFilter struct {
	rules    []Rule
	programs []*vm.Program
}

// Drop counts the rows a named stage removed
type Drop struct {
	Stage string `json:"stage"`
	Rows  int    `json:"rows"`
}

// NewSampleFilter compiles rules. Row values are exposed to expressions by
// column name: numeric cells as float64, empty cells as NaN, anything else
// as a string.
func NewSampleFilter(rules []Rule) (*SampleFilter, error) {
	f := &SampleFilter{rules: rules}
	for _, r := range rules {
		program, err := expr.Compile(r.Expr,
			expr.Env(map[string]any{}),
			expr.AllowUndefinedVariables(),
			expr.AsBool(),
		)
		if err != nil {
			return nil, eris.Wrapf(ErrFilterExpression, "rule %s (%q): %v", r.Name, r.Expr, err)
		}
		f.programs = append(f.programs, program)
	}
	return f, nil
}

// Rules returns the rules in application order
func (f *SampleFilter) Rules() []Rule {
	return f.rules
}

// Apply returns the rows passing every rule, with drop counts per rule
func (f *SampleFilter) Apply(df *frame.DataFrame) (*frame.DataFrame, []Drop, error) {
	current := df
	drops := make([]Drop, 0, len(f.rules))
	for i, program := range f.programs {
		var evalErr error
		src := current
		next := src.Filter(func(row int) bool {
			if evalErr != nil {
				return false
			}
			out, err := expr.Run(program, rowEnv(src, row))
			if err != nil {
				evalErr = err
				return false
			}
			ok, _ := out.(bool)
			return ok
		})
		if evalErr != nil {
			return nil, nil, eris.Wrapf(ErrFilterExpression, "rule %s: %v", f.rules[i].Name, evalErr)
		}
		drops = append(drops, Drop{Stage: f.rules[i].Name, Rows: src.Len() - next.Len()})
		current = next
	}
	return current, drops, nil
}

func rowEnv(df *frame.DataFrame, row int) map[string]any {
	env := make(map[string]any, len(df.Headers))
	for _, h := range df.Headers {
		v := df.Value(row, h)
		if v == "" {
			env[h] = math.NaN()
			continue
		}
		if f := frame.ParseFloat(v); !math.IsNaN(f) {
			env[h] = f
			continue
		}
		env[h] = v
	}
	return env
}
