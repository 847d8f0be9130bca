// Package reference holds the built-in reference datasets used when an
// auxiliary table is absent, plus the state FIPS directory.
package reference

import (
	"bytes"
	"embed"
	"sort"

	"github.com/rotisserie/eris"

	"cessation-pipeline/internal/frame"
)

//go:embed data/*.csv
var data embed.FS

// ErrUnknownDataset is returned for a dataset name with no built-in table.
var ErrUnknownDataset = eris.New("reference: unknown built-in dataset")

// Dataset is a named, versioned built-in table
type Dataset struct {
	Name    string
	Version string
	file    string
}

// ID renders the dataset as builtin/<name>@<version>
func (d Dataset) ID() string {
	return "builtin/" + d.Name + "@" + d.Version
}

// Frame decodes the embedded table
func (d Dataset) Frame() (*frame.DataFrame, error) {
	raw, err := data.ReadFile(d.file)
	if err != nil {
		return nil, eris.Wrapf(err, "reference: read %s", d.ID())
	}
	df, err := frame.ReadCSV(bytes.NewReader(raw), d.Name)
	if err != nil {
		return nil, eris.Wrapf(err, "reference: decode %s", d.ID())
	}
	return df, nil
}

// MedicaidExpansion is the state expansion status table as of 2020. It
// carries no state_name column so it never collides with the FIPS mapping.
var MedicaidExpansion = Dataset{
	Name:    "medicaid_expansion",
	Version: "2020.1",
	file:    "data/medicaid_expansion.csv",
}

var builtins = map[string]Dataset{
	MedicaidExpansion.Name: MedicaidExpansion,
}

// Lookup returns the built-in dataset registered for name
func Lookup(name string) (Dataset, error) {
	d, ok := builtins[name]
	if !ok {
		return Dataset{}, eris.Wrapf(ErrUnknownDataset, "%s", name)
	}
	return d, nil
}

// Names lists the registered built-in datasets
func Names() []string {
	out := make([]string, 0, len(builtins))
	for n := range builtins {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
