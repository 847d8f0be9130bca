package aggregate

type outcome struct {
	currentCount, total, quitCount float64
}

func (o outcome) apply(s *StateYear) {
	s.CurrentSmokerCount = o.currentCount
	s.TotalCount = o.total
	s.CurrentSmokerPrev = o.currentCount / o.total
	s.PastYearQuitAttemptCount = o.quitCount
	s.PastYearQuitAttemptPrev = o.quitCount / o.total
}

func indicator(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func outcomePartial(g groups) map[Key]outcome {
	out := make(map[Key]outcome, len(g.keys))
	for _, k := range g.keys {
		var o outcome
		for _, r := range g.members[k] {
			o.currentCount += indicator(r.CurrentSmoker) * r.Weight
			o.quitCount += indicator(r.PastYearQuitAttempt) * r.Weight
			o.total += r.Weight
		}
		out[k] = o
	}
	return out
}

type demographic [13]float64

func (d demographic) apply(s *StateYear) {
	s.MalePct, s.WhitePct, s.BlackPct, s.HispanicPct = d[0], d[1], d[2], d[3]
	s.LowEducPct, s.UnemployedPct, s.PovertyPct, s.MedicaidEligPct = d[4], d[5], d[6], d[7]
	s.Age18to24Pct, s.Age25to34Pct, s.Age35to44Pct, s.Age45to54Pct, s.Age55to64Pct = d[8], d[9], d[10], d[11], d[12]
}

func demographicPartial(g groups) map[Key]demographic {
	out := make(map[Key]demographic, len(g.keys))
	for _, k := range g.keys {
		var sums demographic
		var weights float64
		for _, r := range g.members[k] {
			flags := [13]bool{
				r.Male, r.White, r.Black, r.Hispanic,
				r.LowEducation, r.Unemployed, r.LowIncome, r.MedicaidElig,
				r.Age18to24, r.Age25to34, r.Age35to44, r.Age45to54, r.Age55to64,
			}
			for i, f := range flags {
				sums[i] += indicator(f) * r.Weight
			}
			weights += r.Weight
		}
		for i := range sums {
			sums[i] /= weights
		}
		out[k] = sums
	}
	return out
}

type treatment struct {
	nrt, medication, counseling bool
}

func (t treatment) apply(s *StateYear) {
	s.AnyNRT, s.AnyMedication, s.AnyCounseling = t.nrt, t.medication, t.counseling
}

func treatmentPartial(g groups) (map[Key]treatment, []Anomaly) {
	out := make(map[Key]treatment, len(g.keys))
	var anomalies []Anomaly
	for _, k := range g.keys {
		members := g.members[k]
		var t treatment
		var disagree [3]bool
		first := members[0]
		for _, r := range members {
			t.nrt = t.nrt || r.AnyNRT
			t.medication = t.medication || r.AnyMedication
			t.counseling = t.counseling || r.AnyCounseling
			disagree[0] = disagree[0] || r.AnyNRT != first.AnyNRT
			disagree[1] = disagree[1] || r.AnyMedication != first.AnyMedication
			disagree[2] = disagree[2] || r.AnyCounseling != first.AnyCounseling
		}
		for i, name := range []string{"any_nrt", "any_medication", "any_counseling"} {
			if disagree[i] {
				anomalies = append(anomalies, Anomaly{Key: k, Flag: name})
			}
		}
		out[k] = t
	}
	return out, anomalies
}

type population struct {
	weighted float64
	n        int
}

func (p population) apply(s *StateYear) {
	s.WeightedPop = p.weighted
	s.SampleSize = p.n
}

func populationPartial(g groups) map[Key]population {
	out := make(map[Key]population, len(g.keys))
	for _, k := range g.keys {
		var p population
		for _, r := range g.members[k] {
			p.weighted += r.Weight
			p.n++
		}
		out[k] = p
	}
	return out
}
