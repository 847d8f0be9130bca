// Package pipeline runs the stages end to end: harmonize, derive, filter,
// aggregate, classify, and writes every artifact of a run.
package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"cessation-pipeline/internal/aggregate"
	"cessation-pipeline/internal/artifact"
	"cessation-pipeline/internal/combos"
	"cessation-pipeline/internal/derive"
	"cessation-pipeline/internal/frame"
	"cessation-pipeline/internal/harmonize"
	"cessation-pipeline/internal/ledger"
	"cessation-pipeline/internal/metrics"
	"cessation-pipeline/internal/present"
	"cessation-pipeline/internal/quality"
	"cessation-pipeline/internal/source"
	"cessation-pipeline/internal/summary"
)

// Artifact keys, in write order
const (
	EligibleSample   = "Final_2011_2020_Medicaidelig.csv"
	IndividualLevel  = "individual_level_with_category_indicators.csv"
	StateLevel       = "state_level_descriptive_data.csv"
	Combinations     = "treatment_coverage_combinations_by_year.csv"
	SummaryText      = "summary_statistics.txt"
	Presentation     = "state_level_presentation.csv"
	SchemaProfile    = "schema_profile.csv"
	ManifestArtifact = "run_manifest.json"
)

const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// Options configures a run
type Options struct {
	Harmonize harmonize.Config
	Filters   []derive.Rule
}

// DefaultOptions uses the stock years, tables and sample filter
func DefaultOptions() Options {
	return Options{Harmonize: harmonize.DefaultConfig(), Filters: derive.DefaultRules()}
}

// Counts are row counts at the stage boundaries
type Counts struct {
	Harmonized  int `json:"harmonized"`
	Eligible    int `json:"eligible_sample"`
	Respondents int `json:"respondents"`
	StateYears  int `json:"state_years"`
	Focal       int `json:"analytic_state_years"`
}

// Manifest describes one run
type Manifest struct {
	RunID       string                  `json:"run_id"`
	Status      string                  `json:"status"`
	StartedAt   time.Time               `json:"started_at"`
	FinishedAt  time.Time               `json:"finished_at"`
	Years       []int                   `json:"years"`
	Filters     []derive.Rule           `json:"filters"`
	Steps       []harmonize.StepReport  `json:"steps"`
	Fallbacks   []harmonize.Fallback    `json:"fallbacks"`
	Eligibility derive.EligibilityStats `json:"eligibility"`
	Drops       []derive.Drop           `json:"drops"`
	Filled      []string                `json:"filled_columns,omitempty"`
	Anomalies   []aggregate.Anomaly     `json:"anomalies,omitempty"`
	Counts      Counts                  `json:"counts"`
	Artifacts   []artifact.Info         `json:"artifacts"`
}

// Pipeline ties a source, an artifact store and the run bookkeeping together
type Pipeline struct {
	src    source.Source
	store  artifact.Store
	ledger ledger.Ledger
	obs    metrics.Observer
	opts   Options
	log    *zap.Logger
	now    func() time.Time
	newID  func() string
}

// Option customises a Pipeline
type Option func(*Pipeline)

// WithLedger records every run in l
func WithLedger(l ledger.Ledger) Option { return func(p *Pipeline) { p.ledger = l } }

// WithObserver reports stage metrics to o
func WithObserver(o metrics.Observer) Option { return func(p *Pipeline) { p.obs = o } }

// WithLogger sets the logger
func WithLogger(l *zap.Logger) Option { return func(p *Pipeline) { p.log = l } }

// WithClock replaces time.Now
func WithClock(now func() time.Time) Option { return func(p *Pipeline) { p.now = now } }

// New creates a pipeline reading from src and writing to store
func New(src source.Source, store artifact.Store, opts Options, options ...Option) *Pipeline {
	p := &Pipeline{
		src:    src,
		store:  store,
		ledger: ledger.Nop{},
		obs:    metrics.Nop{},
		opts:   opts,
		log:    zap.L(),
		now:    time.Now,
		newID:  func() string { return uuid.NewString() },
	}
	for _, o := range options {
		o(p)
	}
	if p.opts.Filters == nil {
		p.opts.Filters = derive.DefaultRules()
	}
	return p
}

type output struct {
	key         string
	contentType string
	body        []byte
}

// Run executes every stage. Artifacts are only written once all of them have
// been built, so a failed run leaves the store untouched.
func (p *Pipeline) Run(ctx context.Context) (*Manifest, error) {
	m := &Manifest{
		RunID:     p.newID(),
		StartedAt: p.now().UTC(),
		Years:     p.opts.Harmonize.Years,
		Filters:   p.opts.Filters,
	}
	log := p.log.With(zap.String("run_id", m.RunID))
	log.Info("pipeline: run started", zap.Ints("years", m.Years))

	outputs, focal, err := p.build(ctx, m, log)
	if err == nil {
		err = p.write(ctx, m, outputs)
	}
	m.FinishedAt = p.now().UTC()
	m.Status = StatusSucceeded
	if err != nil {
		m.Status = StatusFailed
		focal = nil
	}
	p.obs.RunFinished(m.Status, m.FinishedAt.Sub(m.StartedAt))

	run := ledger.Run{
		ID:          m.RunID,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
		Status:      m.Status,
		Respondents: m.Counts.Respondents,
		StateYears:  len(focal),
	}
	if err != nil {
		run.Error = err.Error()
	}
	if lerr := p.ledger.Record(ctx, run, focal); lerr != nil {
		log.Warn("pipeline: ledger record failed", zap.Error(lerr))
	}

	if err != nil {
		log.Error("pipeline: run failed", zap.Error(err))
		return nil, err
	}
	log.Info("pipeline: run finished",
		zap.Int("respondents", m.Counts.Respondents),
		zap.Int("analytic_state_years", m.Counts.Focal),
		zap.Duration("elapsed", m.FinishedAt.Sub(m.StartedAt)))
	return m, nil
}

func (p *Pipeline) build(ctx context.Context, m *Manifest, log *zap.Logger) ([]output, []aggregate.StateYear, error) {
	filter, err := derive.NewSampleFilter(p.opts.Filters)
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: compile sample filter")
	}

	harmonized, err := harmonize.New(p.src, p.opts.Harmonize, log).Run(ctx)
	if err != nil {
		return nil, nil, err
	}
	m.Steps = harmonized.Steps
	m.Fallbacks = harmonized.Fallbacks
	m.Counts.Harmonized = harmonized.Frame.Len()
	p.obs.StageRows("harmonized", m.Counts.Harmonized)
	for _, f := range harmonized.Fallbacks {
		p.obs.Fallback(f.Table, f.Kind)
	}

	m.Eligibility = derive.AddEligibility(harmonized.Frame)
	eligible, drops, err := filter.Apply(harmonized.Frame)
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: sample filter")
	}
	eligible.Name = "eligible_sample"
	m.Counts.Eligible = eligible.Len()
	p.obs.StageRows("eligible_sample", m.Counts.Eligible)
	log.Info("pipeline: sample filtered",
		zap.Int("rows_before", m.Counts.Harmonized),
		zap.Int("rows_after", m.Counts.Eligible))

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	prepared, err := derive.Prepare(eligible, log)
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: prepare respondents")
	}
	m.Drops = append(drops, prepared.Drops...)
	m.Filled = prepared.Filled
	for _, d := range m.Drops {
		p.obs.RowsDropped(d.Stage, d.Rows)
	}
	m.Counts.Respondents = len(prepared.Records)
	p.obs.StageRows("respondents", m.Counts.Respondents)

	agg, err := aggregate.Aggregate(prepared.Records, log)
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: aggregate")
	}
	m.Anomalies = agg.Anomalies
	focal := aggregate.Focal(agg.StateYears)
	m.Counts.StateYears = len(agg.StateYears)
	m.Counts.Focal = len(focal)
	p.obs.StageRows("state_years", m.Counts.StateYears)
	p.obs.StageRows("analytic_state_years", m.Counts.Focal)

	counts, err := combos.CountByYear(prepared.Frame)
	if err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: coverage combinations")
	}

	var outputs []output
	addCSV := func(key string, df *frame.DataFrame) error {
		var buf bytes.Buffer
		if err := frame.WriteCSV(&buf, df); err != nil {
			return eris.Wrapf(err, "pipeline: render %s", key)
		}
		outputs = append(outputs, output{key: key, contentType: artifact.ContentType(key), body: buf.Bytes()})
		return nil
	}
	for _, a := range []struct {
		key string
		df  *frame.DataFrame
	}{
		{EligibleSample, eligible},
		{IndividualLevel, prepared.Frame},
		{StateLevel, aggregate.Frame(focal)},
		{Combinations, counts.Frame()},
		{Presentation, present.Frame(present.Prepare(focal))},
		{SchemaProfile, quality.Table(harmonized.Profile)},
	} {
		if err := addCSV(a.key, a.df); err != nil {
			return nil, nil, err
		}
	}

	var text bytes.Buffer
	if err := summary.Build(focal).WriteText(&text); err != nil {
		return nil, nil, eris.Wrap(err, "pipeline: render summary")
	}
	outputs = append(outputs, output{key: SummaryText, contentType: artifact.ContentType(SummaryText), body: text.Bytes()})
	return outputs, focal, nil
}

// write stores the rendered artifacts, then the manifest listing them
func (p *Pipeline) write(ctx context.Context, m *Manifest, outputs []output) error {
	meta := map[string]string{"run-id": m.RunID}
	for _, o := range outputs {
		info, err := p.store.Put(ctx, o.key, bytes.NewReader(o.body), artifact.PutOptions{
			ContentType: o.contentType,
			Metadata:    meta,
			Overwrite:   true,
		})
		if err != nil {
			return eris.Wrapf(err, "pipeline: write %s", o.key)
		}
		m.Artifacts = append(m.Artifacts, info)
	}

	finished := *m
	finished.Status = StatusSucceeded
	finished.FinishedAt = p.now().UTC()
	body, err := json.MarshalIndent(finished, "", "  ")
	if err != nil {
		return eris.Wrap(err, "pipeline: encode manifest")
	}
	if _, err := p.store.Put(ctx, ManifestArtifact, bytes.NewReader(body), artifact.PutOptions{
		ContentType: artifact.ContentType(ManifestArtifact),
		Metadata:    meta,
		Overwrite:   true,
	}); err != nil {
		return eris.Wrapf(err, "pipeline: write %s", ManifestArtifact)
	}
	return nil
}

// LatestManifest reads the manifest of the last successful run from store
func LatestManifest(ctx context.Context, store artifact.Store) (*Manifest, error) {
	_, rc, err := store.Get(ctx, ManifestArtifact)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rc.Close() }()
	var m Manifest
	if err := json.NewDecoder(rc).Decode(&m); err != nil {
		return nil, eris.Wrap(err, "pipeline: decode manifest")
	}
	return &m, nil
}
