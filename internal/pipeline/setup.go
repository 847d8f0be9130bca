package pipeline

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"cessation-pipeline/internal/artifact"
	"cessation-pipeline/internal/config"
	"cessation-pipeline/internal/ledger"
	"cessation-pipeline/internal/metrics"
	"cessation-pipeline/internal/source"
)

// Runtime is a pipeline built from configuration plus the resources it owns
type Runtime struct {
	Pipeline *Pipeline
	Store    artifact.Store
	Ledger   ledger.Ledger
	closers  []func() error
}

// Close releases database handles
func (r *Runtime) Close() error {
	var first error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Setup opens the source, artifact store and ledger named by cfg.
// With the postgres source driver tables are looked up in Postgres first and
// fall back to the data directory.
func Setup(ctx context.Context, cfg config.Config, obs metrics.Observer, log *zap.Logger) (*Runtime, error) {
	if log == nil {
		log = zap.L()
	}
	if obs == nil {
		obs = metrics.Nop{}
	}
	rt := &Runtime{}

	var src source.Source = source.NewFiles(cfg.DataDir)
	if cfg.Source.Driver == "postgres" {
		pg, err := source.OpenPostgres(ctx, source.PostgresConfig{DSN: cfg.Source.DSN, Schema: cfg.Source.Schema})
		if err != nil {
			return nil, eris.Wrap(err, "pipeline: open postgres source")
		}
		rt.closers = append(rt.closers, pg.Close)
		src = source.Chain{pg, src}
	}

	store, err := artifact.Open(ctx, cfg.Output)
	if err != nil {
		_ = rt.Close()
		return nil, eris.Wrap(err, "pipeline: open artifact store")
	}
	rt.Store = store

	led, err := ledger.Open(ctx, cfg.Ledger)
	if err != nil {
		_ = rt.Close()
		return nil, eris.Wrap(err, "pipeline: open ledger")
	}
	rt.Ledger = led
	rt.closers = append(rt.closers, led.Close)

	rt.Pipeline = New(src, store, Options{Harmonize: cfg.Harmonize(), Filters: cfg.Filters},
		WithLedger(led), WithObserver(obs), WithLogger(log))
	log.Info("pipeline: configured",
		zap.String("data_dir", cfg.DataDir),
		zap.String("source", cfg.Source.Driver),
		zap.String("blob_driver", string(store.Driver())),
		zap.String("ledger", string(cfg.Ledger.Driver)))
	return rt, nil
}
