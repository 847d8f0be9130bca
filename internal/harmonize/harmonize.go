// Package harmonize merges yearly respondent extracts with the state
// reference tables into one respondent-level frame.
package harmonize

import (
	"context"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"cessation-pipeline/internal/frame"
	"cessation-pipeline/internal/quality"
	"cessation-pipeline/internal/source"
)

// protected columns are join keys of later steps; a reference table may not
// shadow them with a suffixed copy.
var protected = map[string]bool{"_state": true, "state_name": true, "year": true}

// Config selects the extracts and reference tables to merge
type Config struct {
	Years []int
	// ExtractPattern is a fmt pattern taking the year, e.g. "data%d".
	ExtractPattern string
	Tables         Tables
	Schema         Schema
}

// DefaultConfig covers the 2011-2020 survey years
func DefaultConfig() Config {
	years := make([]int, 0, 10)
	for y := 2011; y <= 2020; y++ {
		years = append(years, y)
	}
	return Config{
		Years:          years,
		ExtractPattern: "data%d",
		Tables:         DefaultTables(),
		Schema:         DefaultSchema(),
	}
}

// StepReport records the effect of one plan step
type StepReport struct {
	Step       string `json:"step"`
	Table      string `json:"table,omitempty"`
	Kind       string `json:"kind"`
	RowsBefore int    `json:"rows_before"`
	RowsAfter  int    `json:"rows_after"`
	Source     string `json:"source,omitempty"`
}

// Fallback records a degraded merge decision
type Fallback struct {
	Table   string `json:"table"`
	Kind    string `json:"kind"` // builtin or skipped
	Dataset string `json:"dataset,omitempty"`
}

// Result is the merged respondent frame plus what happened on the way
type Result struct {
	Frame     *frame.DataFrame
	Steps     []StepReport
	Fallbacks []Fallback
	Profile   []quality.ColumnProfile
}

// Harmonizer runs the merge plan against a source
type Harmonizer struct {
	src      source.Source
	cfg      Config
	plan     []Step
	profiler *quality.Profiler
	log      *zap.Logger
}

// New creates a harmonizer. A nil logger uses the global one.
func New(src source.Source, cfg Config, log *zap.Logger) *Harmonizer {
	if log == nil {
		log = zap.L()
	}
	if cfg.ExtractPattern == "" {
		cfg.ExtractPattern = "data%d"
	}
	if len(cfg.Schema.Keep) == 0 {
		cfg.Schema = DefaultSchema()
	}
	return &Harmonizer{
		src:      src,
		cfg:      cfg,
		plan:     DefaultPlan(cfg.Tables),
		profiler: quality.NewProfiler(),
		log:      log,
	}
}

// Plan returns the steps Run will apply
func (h *Harmonizer) Plan() []Step {
	return h.plan
}

// Run loads every yearly extract, stacks them and applies the plan
func (h *Harmonizer) Run(ctx context.Context) (*Result, error) {
	if len(h.cfg.Years) == 0 {
		return nil, eris.New("harmonize: no survey years configured")
	}
	res := &Result{}

	yearly := make([]*frame.DataFrame, 0, len(h.cfg.Years))
	for _, year := range h.cfg.Years {
		name := fmt.Sprintf(h.cfg.ExtractPattern, year)
		df, err := h.src.Load(ctx, name)
		if err != nil {
			return nil, eris.Wrapf(err, "harmonize: load extract %s", name)
		}
		res.Profile = append(res.Profile, h.profiler.ProfileYear(df, year, h.cfg.Schema.Keep)...)
		projected := h.cfg.Schema.Project(df, year)
		h.log.Info("harmonize: extract loaded",
			zap.Int("year", year),
			zap.Int("rows", projected.Len()),
			zap.Int("columns", len(projected.Headers)))
		yearly = append(yearly, projected)
	}
	for year, cols := range quality.Missing(res.Profile) {
		h.log.Debug("harmonize: variables absent", zap.Int("year", year), zap.Strings("columns", cols))
	}

	merged := frame.Concat("respondents", yearly...)
	h.log.Info("harmonize: extracts combined",
		zap.Int("rows", merged.Len()),
		zap.Int("columns", len(merged.Headers)))

	for _, step := range h.plan {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		before := merged.Len()
		report := StepReport{Step: step.Name, Table: step.Table, RowsBefore: before}

		if step.IsFilter() {
			current := merged
			merged = current.Filter(func(row int) bool { return step.Keep(current, row) })
			report.Kind = "filter"
			report.RowsAfter = merged.Len()
			res.Steps = append(res.Steps, report)
			h.log.Info("harmonize: filter applied",
				zap.String("step", step.Name),
				zap.Int("rows_before", before),
				zap.Int("rows_after", report.RowsAfter))
			continue
		}

		right, origin, err := h.loadReference(ctx, step, res)
		if err != nil {
			return nil, err
		}
		report.Kind = string(step.Join.Kind) + " join"
		report.Source = origin
		if right == nil {
			report.RowsAfter = before
			res.Steps = append(res.Steps, report)
			continue
		}

		right = h.dropShadowing(step, merged, right)
		joined, err := frame.Join(merged, right, step.Join)
		if err != nil {
			return nil, eris.Wrapf(err, "harmonize: step %s", step.Name)
		}
		if joined.Len() > before {
			return nil, eris.Errorf("harmonize: step %s grew the sample from %d to %d rows", step.Name, before, joined.Len())
		}
		merged = joined
		report.RowsAfter = merged.Len()
		res.Steps = append(res.Steps, report)
		h.log.Info("harmonize: join complete",
			zap.String("step", step.Name),
			zap.String("table", step.Table),
			zap.String("source", origin),
			zap.Int("rows_before", before),
			zap.Int("rows_after", report.RowsAfter))
	}

	res.Frame = merged
	return res, nil
}

func (h *Harmonizer) loadReference(ctx context.Context, step Step, res *Result) (*frame.DataFrame, string, error) {
	right, err := h.src.Load(ctx, step.Table)
	if err == nil {
		return right, step.Table, nil
	}
	if !eris.Is(err, source.ErrNotFound) {
		return nil, "", eris.Wrapf(err, "harmonize: step %s: load %s", step.Name, step.Table)
	}

	switch step.OnMissing {
	case Builtin:
		if step.Fallback == nil {
			break
		}
		df, ferr := step.Fallback.Frame()
		if ferr != nil {
			return nil, "", eris.Wrapf(ferr, "harmonize: step %s", step.Name)
		}
		res.Fallbacks = append(res.Fallbacks, Fallback{Table: step.Table, Kind: "builtin", Dataset: step.Fallback.ID()})
		h.log.Warn("harmonize: table missing, using built-in dataset",
			zap.String("step", step.Name),
			zap.String("table", step.Table),
			zap.String("dataset", step.Fallback.ID()))
		return df, step.Fallback.ID(), nil
	case Skip:
		res.Fallbacks = append(res.Fallbacks, Fallback{Table: step.Table, Kind: "skipped"})
		h.log.Warn("harmonize: table missing, merge skipped",
			zap.String("step", step.Name),
			zap.String("table", step.Table))
		return nil, "", nil
	}
	return nil, "", eris.Wrapf(err, "harmonize: step %s: required table %s", step.Name, step.Table)
}

// dropShadowing removes non-key columns of a reference table that would
// collide with a join key the merged frame already carries.
func (h *Harmonizer) dropShadowing(step Step, left, right *frame.DataFrame) *frame.DataFrame {
	isKey := make(map[string]bool, len(step.Join.Keys))
	for _, k := range step.Join.Keys {
		isKey[k] = true
	}
	keep := make([]string, 0, len(right.Headers))
	var dropped []string
	for _, c := range right.Headers {
		if !isKey[c] && protected[c] && left.Has(c) {
			dropped = append(dropped, c)
			continue
		}
		keep = append(keep, c)
	}
	if len(dropped) == 0 {
		return right
	}
	h.log.Warn("harmonize: reference columns shadow join keys, dropped",
		zap.String("table", right.Name),
		zap.Strings("columns", dropped))
	out := right.Project(keep)
	out.Name = right.Name
	return out
}
