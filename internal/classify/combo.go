package classify

// Combination labels, in artifact column order
const (
	ComboNone       = "No coverage"
	ComboNRT        = "NRT only"
	ComboMedication = "Medication only"
	ComboNRTMed     = "NRT + Medication"
	ComboNRTCounsel = "NRT + Counseling"
	ComboAll        = "All categories"
	ComboOther      = "Other"
)

// ComboLabels lists every combination label; Other is last
var ComboLabels = []string{ComboNone, ComboNRT, ComboMedication, ComboNRTMed, ComboNRTCounsel, ComboAll, ComboOther}

// Combo names a coverage combination for the by-year coverage table. It is a
// descriptive labelling and differs from Classify: counseling-only
// state-years fall under Other.
func Combo(c Coverage) string {
	switch c {
	case Coverage{false, false, false}:
		return ComboNone
	case Coverage{true, false, false}:
		return ComboNRT
	case Coverage{false, true, false}:
		return ComboMedication
	case Coverage{true, true, false}:
		return ComboNRTMed
	case Coverage{true, false, true}:
		return ComboNRTCounsel
	case Coverage{true, true, true}:
		return ComboAll
	}
	return ComboOther
}
