package derive

import "math"

// Federal poverty guideline for a one-person household, by survey year
var fplBase = map[int]float64{
	2011: 10890, 2012: 11170, 2013: 11490, 2014: 11670, 2015: 11770,
	2016: 11880, 2017: 12060, 2018: 12140, 2019: 12490, 2020: 12760,
}

// Amount added per additional household member, by survey year
var fplAdditional = map[int]float64{
	2011: 3820, 2012: 3960, 2013: 4020, 2014: 4060, 2015: 4160,
	2016: 4160, 2017: 4180, 2018: 4320, 2019: 4420, 2020: 4480,
}

// Upper bound in dollars of each income2 bracket
var incomeUpper = map[int]float64{
	1: 10000, 2: 15000, 3: 20000, 4: 25000, 5: 35000, 6: 50000, 7: 75000, 8: 100000,
}

// FPLBase returns the one-person guideline for year, or NaN
func FPLBase(year int) float64 {
	if v, ok := fplBase[year]; ok {
		return v
	}
	return math.NaN()
}

// FPLAdditional returns the per-person increment for year, or NaN
func FPLAdditional(year int) float64 {
	if v, ok := fplAdditional[year]; ok {
		return v
	}
	return math.NaN()
}

// HouseholdAdults picks the household size variable for a survey year.
// 2011-2013 only carry numadult; later years fall back to hhadult.
func HouseholdAdults(year int, numadult, hhadult float64) float64 {
	switch {
	case year >= 2011 && year <= 2013:
		return numadult
	case year >= 2014 && year <= 2020:
		if !math.IsNaN(numadult) {
			return numadult
		}
		return hhadult
	}
	return math.NaN()
}

// Threshold is the poverty line for a household of the given number of adults
func Threshold(year int, adults float64) float64 {
	return FPLBase(year) + FPLAdditional(year)*(adults-1)
}

// IncomeUpper maps an income2 code to its bracket's upper bound, or NaN
func IncomeUpper(code float64) float64 {
	if code != math.Trunc(code) {
		return math.NaN()
	}
	if v, ok := incomeUpper[int(code)]; ok {
		return v
	}
	return math.NaN()
}

// FPLPercent is income as a percentage of the poverty line, rounded half to
// even. Missing inputs give NaN.
func FPLPercent(upper, threshold float64) float64 {
	if math.IsNaN(upper) || math.IsNaN(threshold) {
		return math.NaN()
	}
	return math.RoundToEven(upper / threshold * 100)
}

// Eligible reports Medicaid income eligibility: at or below 100% FPL.
func Eligible(fplPercent float64) bool {
	return fplPercent <= 100
}
