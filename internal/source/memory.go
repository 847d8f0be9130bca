package source

import (
	"context"

	"github.com/rotisserie/eris"

	"cessation-pipeline/internal/frame"
)

// Memory serves frames held in a map. Loaded frames are copies.
type Memory map[string]*frame.DataFrame

// Load implements Source
func (m Memory) Load(_ context.Context, table string) (*frame.DataFrame, error) {
	df, ok := m[table]
	if !ok || df == nil {
		return nil, eris.Wrapf(ErrNotFound, "%s", table)
	}
	out := df.Project(df.Headers)
	out.Name = table
	return out, nil
}
