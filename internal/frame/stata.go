package frame

import (
	"fmt"
	"io"
	"reflect"
	"strconv"
	"time"

	"github.com/kshedden/datareader"
	"github.com/rotisserie/eris"
)

// StataOptions controls how .dta files are decoded
type StataOptions struct {
	// CategoryLabels replaces labelled numeric codes with their value labels,
	// which is how policy tables carry "Yes"/"Varies".
	CategoryLabels bool
	// ChunkRows is the number of records decoded per read; zero means 100000.
	ChunkRows int
}

// ReadStata decodes a Stata dta file (formats 115-117) into a frame
func ReadStata(r io.ReadSeeker, name string, opts StataOptions) (*DataFrame, error) {
	rdr, err := datareader.NewStataReader(r)
	if err != nil {
		return nil, eris.Wrapf(err, "open stata file %s", name)
	}
	rdr.InsertCategoryLabels = opts.CategoryLabels
	rdr.InsertStrls = true

	chunk := opts.ChunkRows
	if chunk <= 0 {
		chunk = 100000
	}

	df := New(name, rdr.ColumnNames())
	for {
		series, err := rdr.Read(chunk)
		if err != nil && err != io.EOF {
			return nil, eris.Wrapf(err, "read stata file %s", name)
		}
		if len(series) == 0 || series[0].Length() == 0 {
			break
		}
		n := series[0].Length()
		base := len(df.Rows)
		for i := 0; i < n; i++ {
			df.Rows = append(df.Rows, make([]string, len(df.Headers)))
		}
		for j, s := range series {
			if j >= len(df.Headers) {
				break
			}
			values := seriesStrings(s.Data(), n)
			missing := s.Missing()
			for i := 0; i < n; i++ {
				if missing != nil && i < len(missing) && missing[i] {
					continue
				}
				df.Rows[base+i][j] = values[i]
			}
		}
		if err == io.EOF {
			break
		}
	}
	return df, nil
}

func seriesStrings(data interface{}, n int) []string {
	out := make([]string, n)
	switch v := data.(type) {
	case []float64:
		for i := 0; i < n && i < len(v); i++ {
			out[i] = FormatFloat(v[i])
		}
	case []float32:
		for i := 0; i < n && i < len(v); i++ {
			out[i] = strconv.FormatFloat(float64(v[i]), 'f', -1, 32)
		}
	case []int64:
		for i := 0; i < n && i < len(v); i++ {
			out[i] = strconv.FormatInt(v[i], 10)
		}
	case []int32:
		for i := 0; i < n && i < len(v); i++ {
			out[i] = strconv.FormatInt(int64(v[i]), 10)
		}
	case []int16:
		for i := 0; i < n && i < len(v); i++ {
			out[i] = strconv.FormatInt(int64(v[i]), 10)
		}
	case []int8:
		for i := 0; i < n && i < len(v); i++ {
			out[i] = strconv.FormatInt(int64(v[i]), 10)
		}
	case []string:
		for i := 0; i < n && i < len(v); i++ {
			out[i] = v[i]
		}
	case []time.Time:
		for i := 0; i < n && i < len(v); i++ {
			out[i] = v[i].Format("2006-01-02")
		}
	default:
		rv := reflect.ValueOf(v)
		if rv.Kind() != reflect.Slice {
			break
		}
		for i := 0; i < n && i < rv.Len(); i++ {
			out[i] = fmt.Sprint(rv.Index(i).Interface())
		}
	}
	return out
}
