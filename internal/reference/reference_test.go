package reference

import (
	"testing"

	"github.com/rotisserie/eris"
)

func TestMedicaidExpansionCoversEveryState(t *testing.T) {
	df, err := MedicaidExpansion.Frame()
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	if df.Len() != 51 {
		t.Fatalf("expected 50 states plus DC, got %d", df.Len())
	}
	seen := map[string]bool{}
	for i := 0; i < df.Len(); i++ {
		fips := int(df.Float(i, "_state"))
		st, ok := StateByFIPS(fips)
		if !ok {
			t.Fatalf("row %d: unknown FIPS %d", i, fips)
		}
		if st.Postal != df.Value(i, "state_abbr") {
			t.Fatalf("FIPS %d: postal %s, directory says %s", fips, df.Value(i, "state_abbr"), st.Postal)
		}
		seen[df.Value(i, "_state")] = true
	}
	if len(seen) != df.Len() {
		t.Fatalf("duplicate FIPS codes in built-in table")
	}
	if df.Has("state_name") {
		t.Fatalf("built-in expansion table must not carry state_name")
	}
}

func TestMedicaidExpansionValues(t *testing.T) {
	df, err := MedicaidExpansion.Frame()
	if err != nil {
		t.Fatalf("frame: %v", err)
	}
	want := map[string][2]string{
		"39": {"1", "2014"}, // Ohio
		"42": {"1", "2015"}, // Pennsylvania
		"49": {"1", "2020"}, // Utah
		"48": {"0", ""},     // Texas
	}
	for i := 0; i < df.Len(); i++ {
		w, ok := want[df.Value(i, "_state")]
		if !ok {
			continue
		}
		if df.Value(i, "expansion") != w[0] || df.Value(i, "expansion_year") != w[1] {
			t.Fatalf("_state %s: got %s/%s want %v", df.Value(i, "_state"),
				df.Value(i, "expansion"), df.Value(i, "expansion_year"), w)
		}
	}
}

func TestLookup(t *testing.T) {
	d, err := Lookup("medicaid_expansion")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if d.ID() != "builtin/medicaid_expansion@2020.1" {
		t.Fatalf("id: %s", d.ID())
	}
	if _, err := Lookup("CigTax_PerPack"); !eris.Is(err, ErrUnknownDataset) {
		t.Fatalf("expected ErrUnknownDataset, got %v", err)
	}
}
