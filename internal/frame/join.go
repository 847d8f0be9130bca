package frame

import (
	"strings"

	"github.com/rotisserie/eris"
)

// JoinKind selects which left rows survive a join
type JoinKind string

const (
	// Inner keeps only left rows with a matching right row.
	Inner JoinKind = "inner"
	// Left keeps every left row; unmatched rows get empty right columns.
	Left JoinKind = "left"
)

var (
	// ErrMissingKey is returned when a join key column is absent from either side.
	ErrMissingKey = eris.New("frame: join key column missing")
	// ErrDuplicateKey is returned when the right side holds more than one row for a key.
	ErrDuplicateKey = eris.New("frame: duplicate key on right side of join")
)

// JoinSpec describes a join on one or more key columns
type JoinSpec struct {
	Keys []string
	Kind JoinKind
}

// Join merges right onto left on spec.Keys, preserving left row order.
//
// The right table must hold at most one row per key, so a join can never
// duplicate left rows: a duplicate aborts with ErrDuplicateKey naming the table
// and key. Non-key columns present on both sides are suffixed _x (left) and _y
// (right).
func Join(left, right *DataFrame, spec JoinSpec) (*DataFrame, error) {
	if len(spec.Keys) == 0 {
		return nil, eris.New("frame: join requires at least one key")
	}
	kind := spec.Kind
	if kind == "" {
		kind = Inner
	}
	leftKeys := make([]int, len(spec.Keys))
	rightKeys := make([]int, len(spec.Keys))
	isKey := make(map[string]bool, len(spec.Keys))
	for i, k := range spec.Keys {
		leftKeys[i] = left.ColumnIndex(k)
		if leftKeys[i] < 0 {
			return nil, eris.Wrapf(ErrMissingKey, "column %q not in %s", k, left.Name)
		}
		rightKeys[i] = right.ColumnIndex(k)
		if rightKeys[i] < 0 {
			return nil, eris.Wrapf(ErrMissingKey, "column %q not in %s", k, right.Name)
		}
		isKey[k] = true
	}

	lookup := make(map[string]int, len(right.Rows))
	for i, r := range right.Rows {
		key := compositeKey(r, rightKeys)
		if prev, ok := lookup[key]; ok {
			return nil, eris.Wrapf(ErrDuplicateKey, "%s rows %d and %d share key (%s)=(%s)",
				right.Name, prev+1, i+1, strings.Join(spec.Keys, ", "), strings.ReplaceAll(key, "\x1f", ", "))
		}
		lookup[key] = i
	}

	leftHas := make(map[string]bool, len(left.Headers))
	for _, h := range left.Headers {
		leftHas[h] = true
	}
	rightHas := make(map[string]bool, len(right.Headers))
	for _, h := range right.Headers {
		rightHas[h] = true
	}

	headers := make([]string, 0, len(left.Headers)+len(right.Headers))
	for _, h := range left.Headers {
		if !isKey[h] && rightHas[h] {
			headers = append(headers, h+"_x")
			continue
		}
		headers = append(headers, h)
	}
	var rightCols []int
	for i, h := range right.Headers {
		if isKey[h] {
			continue
		}
		rightCols = append(rightCols, i)
		if leftHas[h] {
			headers = append(headers, h+"_y")
			continue
		}
		headers = append(headers, h)
	}

	out := New(left.Name, headers)
	width := len(left.Headers)
	for _, r := range left.Rows {
		match, ok := lookup[compositeKey(r, leftKeys)]
		if !ok && kind == Inner {
			continue
		}
		nr := make([]string, len(headers))
		for j := 0; j < width; j++ {
			nr[j] = cell(r, j)
		}
		if ok {
			rr := right.Rows[match]
			for j, idx := range rightCols {
				nr[width+j] = cell(rr, idx)
			}
		}
		out.Rows = append(out.Rows, nr)
	}
	return out, nil
}

func compositeKey(r []string, idxs []int) string {
	parts := make([]string, len(idxs))
	for i, idx := range idxs {
		parts[i] = NormalizeKey(cell(r, idx))
	}
	return strings.Join(parts, "\x1f")
}
