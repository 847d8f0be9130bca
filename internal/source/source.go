// Package source loads named tables (yearly extracts and reference tables)
// into frames.
package source

import (
	"context"

	"github.com/rotisserie/eris"

	"cessation-pipeline/internal/frame"
)

// ErrNotFound is returned when a source holds no table with the requested name.
var ErrNotFound = eris.New("source: table not found")

// Source loads a table by name
type Source interface {
	Load(ctx context.Context, table string) (*frame.DataFrame, error)
}

// Chain tries each source in order and returns the first table found.
type Chain []Source

// Load implements Source
func (c Chain) Load(ctx context.Context, table string) (*frame.DataFrame, error) {
	for _, s := range c {
		if s == nil {
			continue
		}
		df, err := s.Load(ctx, table)
		if err == nil {
			return df, nil
		}
		if !eris.Is(err, ErrNotFound) {
			return nil, err
		}
	}
	return nil, eris.Wrapf(ErrNotFound, "%s", table)
}
