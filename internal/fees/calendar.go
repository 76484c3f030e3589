package fees

import (
	"fmt"
	"strings"
	"time"
)

// AcademicMonth orders months the way school sessions run: April opens the
// session and March closes it. The ordinal is what allocation and reporting
// sort by, never the calendar month number.
type AcademicMonth int

const (
	April AcademicMonth = iota + 1
	May
	June
	July
	August
	September
	October
	November
	December
	January
	February
	March
)

var monthNames = [...]string{
	April:     "April",
	May:       "May",
	June:      "June",
	July:      "July",
	August:    "August",
	September: "September",
	October:   "October",
	November:  "November",
	December:  "December",
	January:   "January",
	February:  "February",
	March:     "March",
}

// String returns the month name.
func (m AcademicMonth) String() string {
	if !m.Valid() {
		return fmt.Sprintf("AcademicMonth(%d)", int(m))
	}
	return monthNames[m]
}

// Valid reports whether m is within the April..March range.
func (m AcademicMonth) Valid() bool {
	return m >= April && m <= March
}

// Calendar converts the academic ordinal back to a calendar month.
func (m AcademicMonth) Calendar() time.Month {
	cal := int(m) + 3
	if cal > 12 {
		cal -= 12
	}
	return time.Month(cal)
}

// MonthOf maps a calendar month onto the academic ordinal.
func MonthOf(cal time.Month) AcademicMonth {
	ord := int(cal) - 3
	if ord <= 0 {
		ord += 12
	}
	return AcademicMonth(ord)
}

// ParseAcademicMonth accepts a month name, case-insensitively.
func ParseAcademicMonth(s string) (AcademicMonth, error) {
	for m, name := range monthNames {
		if name != "" && strings.EqualFold(name, s) {
			return AcademicMonth(m), nil
		}
	}
	return 0, fmt.Errorf("fees: unknown academic month %q", s)
}
