package derive

import (
	"testing"

	"github.com/rotisserie/eris"

	"cessation-pipeline/internal/frame"
)

func TestDefaultSampleFilter(t *testing.T) {
	df := frame.New("merged", []string{"Medicaidelig", "children", "sex"})
	df.Rows = [][]string{
		{"1", "88", "1"},
		{"1", "88", "2"},
		{"0", "88", "1"},
		{"1", "1", "2"},
		{"1", "88", "9"},
		{"1", "", "1"},
		{"1", "88.0", "2.0"},
	}
	f, err := NewSampleFilter(DefaultRules())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	out, drops, err := f.Apply(df)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Len() != 3 {
		t.Fatalf("kept %d rows, want 3", out.Len())
	}
	want := []Drop{{"medicaid_eligible", 1}, {"no_children", 2}, {"male_or_female", 1}}
	for i, d := range drops {
		if d != want[i] {
			t.Fatalf("drop %d: %+v, want %+v", i, d, want[i])
		}
	}
}

func TestSampleFilterRejectsBadExpression(t *testing.T) {
	if _, err := NewSampleFilter([]Rule{{Name: "broken", Expr: "sex in ["}}); !eris.Is(err, ErrFilterExpression) {
		t.Fatalf("expected ErrFilterExpression, got %v", err)
	}
}

func TestSampleFilterStringColumns(t *testing.T) {
	df := frame.New("merged", []string{"state_name"})
	df.Rows = [][]string{{"Ohio"}, {"Texas"}}
	f, err := NewSampleFilter([]Rule{{Name: "ohio", Expr: `state_name == "Ohio"`}})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	out, _, err := f.Apply(df)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if out.Len() != 1 || out.Value(0, "state_name") != "Ohio" {
		t.Fatalf("unexpected rows %v", out.Rows)
	}
}
