// Package classify assigns state-years to mutually exclusive treatment
// coverage groups.
package classify

import "strconv"

// Group is a treatment coverage group
type Group int

const (
	// Unclassified marks a coverage combination outside the decision table.
	Unclassified Group = -1
	NoCoverage   Group = 0
	NRTOnly      Group = 1
	NRTMed       Group = 2
	Counseling   Group = 3
	AllThree     Group = 4
)

// Coverage is the category-level coverage of one state-year
type Coverage struct {
	NRT, Medication, Counseling bool
}

// Classify maps a coverage combination to its group. Combinations the
// decision table does not name are Unclassified, never a default group.
func Classify(c Coverage) Group {
	switch c {
	case Coverage{false, false, false}:
		return NoCoverage
	case Coverage{true, false, false}:
		return NRTOnly
	case Coverage{true, true, false}:
		return NRTMed
	case Coverage{false, false, true}:
		return Counseling
	case Coverage{true, true, true}:
		return AllThree
	}
	return Unclassified
}

// Focal reports whether g belongs to the analytic sample
func (g Group) Focal() bool {
	return g == NRTMed || g == AllThree
}

// String renders the group code as written to artifacts
func (g Group) String() string {
	return strconv.Itoa(int(g))
}

// Label is the descriptive name of a focal group
func (g Group) Label() string {
	switch g {
	case NoCoverage:
		return "No coverage"
	case NRTOnly:
		return "NRT only"
	case NRTMed:
		return "NRT + Medication"
	case Counseling:
		return "Counseling only"
	case AllThree:
		return "NRT + Medication + Counseling"
	}
	return "Unclassified"
}
