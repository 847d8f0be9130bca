package summary

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"cessation-pipeline/internal/aggregate"
	"cessation-pipeline/internal/classify"
)

// GroupCount is one line of the treatment group composition
type GroupCount struct {
	Group classify.Group `json:"group"`
	Count int            `json:"count"`
}

// Outcome describes one prevalence within one group
type Outcome struct {
	Group    classify.Group `json:"group"`
	Variable string         `json:"variable"`
	Stats    Stats          `json:"stats"`
}

// Coverage is the span of years a state appears in the sample
type Coverage struct {
	State    int `json:"state"`
	MinYear  int `json:"min_year"`
	MaxYear  int `json:"max_year"`
	NumYears int `json:"num_years"`
	NumObs   int `json:"num_obs"`
}

// GroupTrend is the linear trend of a group's mean prevalence over years
type GroupTrend struct {
	Group    classify.Group `json:"group"`
	Variable string         `json:"variable"`
	Slope    float64        `json:"slope"`
	RSquared float64        `json:"r_squared"`
	Fitted   bool           `json:"fitted"`
}

// Summary holds every table of the report
type Summary struct {
	Composition []GroupCount
	Years       []int
	Crosstab    map[classify.Group]map[int]int
	Outcomes    []Outcome
	States      []Coverage
	Trends      []GroupTrend
}

var outcomeVars = []string{"current_smoker_prev", "past_year_quit_attempt_prev"}

func outcomeValue(s aggregate.StateYear, v string) float64 {
	if v == "current_smoker_prev" {
		return s.CurrentSmokerPrev
	}
	return s.PastYearQuitAttemptPrev
}

// Build summarises the analytic sample
func Build(rows []aggregate.StateYear) *Summary {
	s := &Summary{Crosstab: make(map[classify.Group]map[int]int)}

	byGroup := make(map[classify.Group][]aggregate.StateYear)
	years := make(map[int]bool)
	states := make(map[int]*Coverage)
	var stateOrder []int
	for _, r := range rows {
		byGroup[r.Group] = append(byGroup[r.Group], r)
		if s.Crosstab[r.Group] == nil {
			s.Crosstab[r.Group] = make(map[int]int)
		}
		s.Crosstab[r.Group][r.Year]++
		years[r.Year] = true

		c, ok := states[r.State]
		if !ok {
			c = &Coverage{State: r.State, MinYear: r.Year, MaxYear: r.Year}
			states[r.State] = c
			stateOrder = append(stateOrder, r.State)
		}
		if r.Year < c.MinYear {
			c.MinYear = r.Year
		}
		if r.Year > c.MaxYear {
			c.MaxYear = r.Year
		}
		c.NumObs++
	}

	for y := range years {
		s.Years = append(s.Years, y)
	}
	sort.Ints(s.Years)

	groups := make([]classify.Group, 0, len(byGroup))
	for g := range byGroup {
		groups = append(groups, g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i] < groups[j] })

	for _, g := range groups {
		s.Composition = append(s.Composition, GroupCount{Group: g, Count: len(byGroup[g])})
	}
	sort.SliceStable(s.Composition, func(i, j int) bool { return s.Composition[i].Count > s.Composition[j].Count })

	for _, g := range groups {
		members := byGroup[g]
		for _, v := range outcomeVars {
			vals := make([]float64, len(members))
			for i, m := range members {
				vals[i] = outcomeValue(m, v)
			}
			st, err := Describe(vals)
			if err != nil {
				continue
			}
			s.Outcomes = append(s.Outcomes, Outcome{Group: g, Variable: v, Stats: st})
			s.Trends = append(s.Trends, trend(g, v, members))
		}
	}

	sort.Ints(stateOrder)
	for _, st := range stateOrder {
		c := states[st]
		c.NumYears = c.MaxYear - c.MinYear + 1
		s.States = append(s.States, *c)
	}
	return s
}

func trend(g classify.Group, v string, members []aggregate.StateYear) GroupTrend {
	sums := make(map[int]float64)
	counts := make(map[int]int)
	for _, m := range members {
		sums[m.Year] += outcomeValue(m, v)
		counts[m.Year]++
	}
	years := make([]int, 0, len(sums))
	for y := range sums {
		years = append(years, y)
	}
	sort.Ints(years)
	xs := make([]float64, len(years))
	ys := make([]float64, len(years))
	for i, y := range years {
		xs[i] = float64(y)
		ys[i] = sums[y] / float64(counts[y])
	}
	slope, r2, ok := Trend(xs, ys)
	return GroupTrend{Group: g, Variable: v, Slope: slope, RSquared: r2, Fitted: ok}
}

func f6(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

// WriteText renders the report as aligned plain-text tables
func (s *Summary) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "Treatment groups and composition:")
	fmt.Fprintln(tw, "treatment_group\tcount\t")
	for _, c := range s.Composition {
		fmt.Fprintf(tw, "%s\t%d\t\n", c.Group, c.Count)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Cross-tabulation of treatment group by year:")
	fmt.Fprint(tw, "treatment_group\t")
	for _, y := range s.Years {
		fmt.Fprintf(tw, "%d\t", y)
	}
	fmt.Fprintln(tw)
	for _, c := range sortedGroups(s.Crosstab) {
		fmt.Fprintf(tw, "%s\t", c)
		for _, y := range s.Years {
			fmt.Fprintf(tw, "%d\t", s.Crosstab[c][y])
		}
		fmt.Fprintln(tw)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Outcome variables by treatment status:")
	fmt.Fprintln(tw, "treatment_group\tvariable\tmean\tstd\tmin\tmax\tcount\t")
	for _, o := range s.Outcomes {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t\n", o.Group, o.Variable,
			f6(o.Stats.Mean), f6(o.Stats.Std), f6(o.Stats.Min), f6(o.Stats.Max), o.Stats.Count)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Data coverage by state:")
	fmt.Fprintln(tw, "_state\tmin_year\tmax_year\tnum_years\tnum_obs\t")
	for _, c := range s.States {
		fmt.Fprintf(tw, "%d\t%d\t%d\t%d\t%d\t\n", c.State, c.MinYear, c.MaxYear, c.NumYears, c.NumObs)
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "Linear trend of mean prevalence by treatment status:")
	fmt.Fprintln(tw, "treatment_group\tvariable\tslope\tr_squared\t")
	for _, t := range s.Trends {
		if !t.Fitted {
			fmt.Fprintf(tw, "%s\t%s\t-\t-\t\n", t.Group, t.Variable)
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n", t.Group, t.Variable, f6(t.Slope), f6(t.RSquared))
	}

	return eris.Wrap(tw.Flush(), "summary: write report")
}

func sortedGroups(m map[classify.Group]map[int]int) []classify.Group {
	out := make([]classify.Group, 0, len(m))
	for g := range m {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
