package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Period is an inclusive UTC time range.
type Period struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether ts falls within the period, inclusive.
func (p Period) Contains(ts time.Time) bool {
	return !ts.Before(p.Start) && !ts.After(p.End)
}

// FinancialYearBounds returns the UTC bounds for an Australian financial
// year label "YYYY-YYYY" (1 July to 30 June).
func FinancialYearBounds(label string) (Period, error) {
	parts := strings.Split(label, "-")
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("financial year label must be in 'YYYY-YYYY' format: %q", label)
	}
	startYear, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, fmt.Errorf("parse financial year start: %w", err)
	}
	endYear, err := strconv.Atoi(parts[1])
	if err != nil {
		return Period{}, fmt.Errorf("parse financial year end: %w", err)
	}
	if endYear != startYear+1 {
		return Period{}, fmt.Errorf("financial year end must be start + 1 year: %q", label)
	}
	return Period{
		Start: time.Date(startYear, time.July, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(endYear, time.June, 30, 23, 59, 59, 0, time.UTC),
	}, nil
}

// HoldingPeriodDays returns the number of whole days between acquisition and
// disposal.
func HoldingPeriodDays(acquired, disposed time.Time) int {
	return int(disposed.Sub(acquired) / (24 * time.Hour))
}
