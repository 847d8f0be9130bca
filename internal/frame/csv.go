package frame

import (
	"encoding/csv"
	"io"
	"strings"

	"github.com/rotisserie/eris"
)

// ReadCSV parses a comma separated table with a header row. When the header
// cannot be read with commas the input is retried with semicolons.
func ReadCSV(r io.ReadSeeker, name string) (*DataFrame, error) {
	reader := newCSVReader(r, ',')

	headers, err := reader.Read()
	if err != nil {
		if _, serr := r.Seek(0, io.SeekStart); serr != nil {
			return nil, eris.Wrapf(serr, "rewind %s", name)
		}
		reader = newCSVReader(r, ';')
		headers, err = reader.Read()
		if err != nil {
			return nil, eris.Wrapf(err, "failed to read headers of %s", name)
		}
	}

	for i, h := range headers {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}

	df := New(name, headers)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrapf(err, "%s: malformed row", name)
		}
		df.Rows = append(df.Rows, record)
	}
	return df, nil
}

func newCSVReader(r io.Reader, comma rune) *csv.Reader {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1 // Allow variable fields
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	reader.ReuseRecord = false
	return reader
}

// WriteCSV writes the frame with its header row. Short rows are padded.
func WriteCSV(w io.Writer, df *DataFrame) error {
	wtr := csv.NewWriter(w)
	if err := wtr.Write(df.Headers); err != nil {
		return eris.Wrap(err, "write header")
	}
	rec := make([]string, len(df.Headers))
	for _, r := range df.Rows {
		for j := range rec {
			rec[j] = cell(r, j)
		}
		if err := wtr.Write(rec); err != nil {
			return eris.Wrap(err, "write row")
		}
	}
	wtr.Flush()
	return eris.Wrap(wtr.Error(), "flush csv")
}
