// Package aggregate collapses respondents into weighted state-year records.
package aggregate

import (
	"sort"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"cessation-pipeline/internal/classify"
	"cessation-pipeline/internal/derive"
)

// ErrKeyMismatch is returned when the partial tables disagree on state-years.
var ErrKeyMismatch = eris.New("aggregate: partial tables cover different state-years")

// Key identifies a state-year group
type Key struct {
	State     int
	Year      int
	StateName string
}

func (k Key) less(o Key) bool {
	if k.State != o.State {
		return k.State < o.State
	}
	if k.Year != o.Year {
		return k.Year < o.Year
	}
	return k.StateName < o.StateName
}

// StateYear is one weighted state-year summary. Percent fields are fractions.
type StateYear struct {
	Key

	CurrentSmokerCount       float64
	TotalCount               float64
	CurrentSmokerPrev        float64
	PastYearQuitAttemptPrev  float64
	PastYearQuitAttemptCount float64

	MalePct         float64
	WhitePct        float64
	BlackPct        float64
	HispanicPct     float64
	LowEducPct      float64
	UnemployedPct   float64
	PovertyPct      float64
	MedicaidEligPct float64
	Age18to24Pct    float64
	Age25to34Pct    float64
	Age35to44Pct    float64
	Age45to54Pct    float64
	Age55to64Pct    float64

	AnyNRT        bool
	AnyMedication bool
	AnyCounseling bool

	WeightedPop float64
	SampleSize  int

	Group classify.Group
}

// Coverage returns the category coverage of the state-year
func (s StateYear) Coverage() classify.Coverage {
	return classify.Coverage{NRT: s.AnyNRT, Medication: s.AnyMedication, Counseling: s.AnyCounseling}
}

// Anomaly flags a state-year whose respondents disagree on a treatment flag.
// Policy coverage is a state-year attribute, so disagreement means a join
// attached different policy rows to the same group.
type Anomaly struct {
	Key  Key    `json:"key"`
	Flag string `json:"flag"`
}

// Result holds every state-year and the anomalies found building them
type Result struct {
	StateYears []StateYear
	Anomalies  []Anomaly
}

type groups struct {
	keys    []Key
	members map[Key][]derive.Record
}

func group(records []derive.Record) groups {
	g := groups{members: make(map[Key][]derive.Record)}
	for _, r := range records {
		k := Key{State: r.State, Year: r.Year, StateName: r.StateName}
		if _, ok := g.members[k]; !ok {
			g.keys = append(g.keys, k)
		}
		g.members[k] = append(g.members[k], r)
	}
	sort.Slice(g.keys, func(i, j int) bool { return g.keys[i].less(g.keys[j]) })
	return g
}

// Aggregate builds the state-year table from cleaned respondents and assigns
// each state-year its treatment group.
func Aggregate(records []derive.Record, log *zap.Logger) (*Result, error) {
	if log == nil {
		log = zap.L()
	}
	g := group(records)

	outcomes := outcomePartial(g)
	demographics := demographicPartial(g)
	treatment, anomalies := treatmentPartial(g)
	population := populationPartial(g)

	if err := sameKeys(len(g.keys), len(outcomes), len(demographics), len(treatment), len(population)); err != nil {
		return nil, err
	}

	res := &Result{Anomalies: anomalies}
	for _, k := range g.keys {
		o, ok1 := outcomes[k]
		d, ok2 := demographics[k]
		t, ok3 := treatment[k]
		p, ok4 := population[k]
		if !ok1 || !ok2 || !ok3 || !ok4 {
			return nil, eris.Wrapf(ErrKeyMismatch, "state %d year %d (%s)", k.State, k.Year, k.StateName)
		}
		sy := StateYear{Key: k}
		o.apply(&sy)
		d.apply(&sy)
		t.apply(&sy)
		p.apply(&sy)
		res.StateYears = append(res.StateYears, sy)
	}
	AssignGroups(res.StateYears)

	for _, a := range anomalies {
		log.Warn("aggregate: treatment flag varies within state-year",
			zap.Int("state", a.Key.State),
			zap.Int("year", a.Key.Year),
			zap.String("state_name", a.Key.StateName),
			zap.String("flag", a.Flag))
	}
	unclassified := 0
	for _, sy := range res.StateYears {
		if sy.Group == classify.Unclassified {
			unclassified++
		}
	}
	log.Info("aggregate: state-years built",
		zap.Int("respondents", len(records)),
		zap.Int("state_years", len(res.StateYears)),
		zap.Int("unclassified", unclassified))
	return res, nil
}

func sameKeys(want int, sizes ...int) error {
	for _, n := range sizes {
		if n != want {
			return eris.Wrapf(ErrKeyMismatch, "expected %d state-years, partial has %d", want, n)
		}
	}
	return nil
}

// AssignGroups classifies every state-year in place
func AssignGroups(rows []StateYear) {
	for i := range rows {
		rows[i].Group = classify.Classify(rows[i].Coverage())
	}
}

// Focal keeps the analytic sample (groups 2 and 4), sorted by state then year
func Focal(rows []StateYear) []StateYear {
	var out []StateYear
	for _, r := range rows {
		if r.Group.Focal() {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].State != out[j].State {
			return out[i].State < out[j].State
		}
		return out[i].Year < out[j].Year
	})
	return out
}
