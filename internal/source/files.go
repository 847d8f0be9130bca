package source

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"cessation-pipeline/internal/frame"
)

// Files reads tables from a directory. A table name resolves to the file
// itself, then name.csv, then name.dta.
type Files struct {
	Dir   string
	Stata frame.StataOptions
}

// NewFiles returns a directory source. Value labels in .dta files are expanded
// so policy codes read as "Yes"/"No"/"Varies".
func NewFiles(dir string) *Files {
	return &Files{Dir: dir, Stata: frame.StataOptions{CategoryLabels: true}}
}

// Load implements Source
func (f *Files) Load(ctx context.Context, table string) (*frame.DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := f.Resolve(table)
	if err != nil {
		return nil, err
	}
	file, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "open %s", path)
	}
	defer file.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".dta":
		return frame.ReadStata(file, table, f.Stata)
	default:
		return frame.ReadCSV(file, table)
	}
}

// Resolve returns the path a table name maps to
func (f *Files) Resolve(table string) (string, error) {
	candidates := []string{table}
	if filepath.Ext(table) == "" {
		candidates = append(candidates, table+".csv", table+".dta")
	}
	for _, c := range candidates {
		p := filepath.Join(f.Dir, c)
		info, err := os.Stat(p)
		if err == nil && !info.IsDir() {
			return p, nil
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return "", eris.Wrapf(err, "stat %s", p)
		}
	}
	return "", eris.Wrapf(ErrNotFound, "%s in %s", table, f.Dir)
}
