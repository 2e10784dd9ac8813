package core

import (
	"fmt"
	"time"
)

// Period is an inclusive calendar date range with a display label.
type Period struct {
	Start   Date   `json:"startDate"`
	End     Date   `json:"endDate"`
	Year    int    `json:"year"`
	Month   int    `json:"month,omitempty"`
	Quarter string `json:"quarter,omitempty"`
	Label   string `json:"label"`
}

var quarterMonths = map[string][2]int{
	"Q1": {1, 3},
	"Q2": {4, 6},
	"Q3": {7, 9},
	"Q4": {10, 12},
}

// DaysInMonth returns the number of calendar days in the given month,
// accounting for leap years.
func DaysInMonth(year, month int) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthPeriod resolves a calendar month to its inclusive date range.
func MonthPeriod(year, month int) Period {
	return Period{
		Start: NewDate(year, month, 1),
		End:   NewDate(year, month, DaysInMonth(year, month)),
		Year:  year,
		Month: month,
		Label: fmt.Sprintf("%04d-%02d", year, month),
	}
}

// QuarterPeriod resolves a quarter ("Q1".."Q4") to its inclusive date range.
func QuarterPeriod(year int, quarter string) (Period, error) {
	months, ok := quarterMonths[quarter]
	if !ok {
		return Period{}, fmt.Errorf("unknown quarter %q", quarter)
	}
	return Period{
		Start:   NewDate(year, months[0], 1),
		End:     NewDate(year, months[1], DaysInMonth(year, months[1])),
		Year:    year,
		Quarter: quarter,
		Label:   fmt.Sprintf("%04d %s", year, quarter),
	}, nil
}

// YearPeriod resolves a full calendar year to its inclusive date range.
func YearPeriod(year int) Period {
	return Period{
		Start: NewDate(year, 1, 1),
		End:   NewDate(year, 12, 31),
		Year:  year,
		Label: fmt.Sprintf("%04d", year),
	}
}

// ResolvePeriod maps a (year, optional month, optional quarter) selector to
// a concrete period. Month takes precedence over quarter; with neither the
// whole year is used.
func ResolvePeriod(year, month int, quarter string) (Period, error) {
	switch {
	case month != 0:
		if month < 1 || month > 12 {
			return Period{}, fmt.Errorf("month %d out of range", month)
		}
		return MonthPeriod(year, month), nil
	case quarter != "":
		return QuarterPeriod(year, quarter)
	default:
		return YearPeriod(year), nil
	}
}
