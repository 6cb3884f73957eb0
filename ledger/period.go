package ledger

import (
	"fmt"
	"time"
)

// DateLayout is the wire format of every date in the system.
const DateLayout = "2006-01-02"

// DateRange is an inclusive range of calendar days [Start, End].
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange parses two YYYY-MM-DD strings.
func NewDateRange(start, end string) (DateRange, error) {
	s, err := ParseDate(start)
	if err != nil {
		return DateRange{}, Validation("ledger.NewDateRange", "invalid start date %q (use YYYY-MM-DD)", start)
	}
	e, err := ParseDate(end)
	if err != nil {
		return DateRange{}, Validation("ledger.NewDateRange", "invalid end date %q (use YYYY-MM-DD)", end)
	}
	r := DateRange{Start: s, End: e}
	if r.End.Before(r.Start) {
		return DateRange{}, Validation("ledger.NewDateRange", "invalid range: end %s before start %s", end, start)
	}
	return r, nil
}

// Contains returns true if t's calendar day lies within [Start, End].
func (r DateRange) Contains(t time.Time) bool {
	d := Day(t)
	return !d.Before(Day(r.Start)) && !d.After(Day(r.End))
}

func (r DateRange) String() string {
	return fmt.Sprintf("[%s, %s]", r.Start.Format(DateLayout), r.End.Format(DateLayout))
}

// ParseDate parses YYYY-MM-DD as midnight UTC.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// Day truncates t to midnight UTC of its calendar day.
func Day(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
