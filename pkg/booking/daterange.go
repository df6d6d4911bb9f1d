package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar date format used on the wire ("2024-05-10")
const DateLayout = "2006-01-02"

// DefaultMaxStayDays is the longest range a single booking may cover
const DefaultMaxStayDays = 365

const secondsPerDay = 24 * 60 * 60

var (
	// ErrMissingDate indicates a start or end date was not provided
	ErrMissingDate = errors.New("start and end dates are required")

	// ErrInvalidDate indicates a date could not be parsed
	ErrInvalidDate = errors.New("dates must be formatted as YYYY-MM-DD")

	// ErrStayTooLong indicates a range longer than the allowed maximum
	ErrStayTooLong = errors.New("date range is too long")
)

// DateRange is a booking window between two calendar dates
type DateRange struct {
	Start time.Time
	End   time.Time
}

// ParseDate parses a calendar date or an RFC3339 timestamp.
// Returns false when the value is empty or malformed.
func ParseDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, true
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), true
	}
	return time.Time{}, false
}

// Days returns the number of billable days between start and end.
// Missing, malformed or inverted input yields 1, never zero or negative.
func Days(start, end string) int {
	s, ok := ParseDate(start)
	if !ok {
		return 1
	}
	e, ok := ParseDate(end)
	if !ok {
		return 1
	}
	return daysBetween(s, e)
}

// daysBetween works on Unix seconds rather than time.Duration, which
// saturates after about 292 years.
func daysBetween(start, end time.Time) int {
	if !end.After(start) {
		return 1
	}
	secs := end.Unix() - start.Unix()
	nanos := end.Nanosecond() - start.Nanosecond()

	days := secs / secondsPerDay
	rem := secs % secondsPerDay
	if rem > 0 || (rem == 0 && nanos > 0) {
		days++
	}
	if days < 1 {
		return 1
	}
	return int(days)
}

// NewDateRange parses both boundaries strictly. Unlike Days it reports
// malformed input, which the server needs before touching the database.
func NewDateRange(start, end string) (DateRange, error) {
	if strings.TrimSpace(start) == "" || strings.TrimSpace(end) == "" {
		return DateRange{}, ErrMissingDate
	}
	s, ok := ParseDate(start)
	if !ok {
		return DateRange{}, ErrInvalidDate
	}
	e, ok := ParseDate(end)
	if !ok {
		return DateRange{}, ErrInvalidDate
	}
	return DateRange{Start: s, End: e}, nil
}

// Days returns the billable day count of the range
func (r DateRange) Days() int {
	return daysBetween(r.Start, r.End)
}

// CheckLength rejects a range that spans more than maxDays billable days.
// A non-positive maxDays disables the check.
func (r DateRange) CheckLength(maxDays int) error {
	if maxDays > 0 && r.Days() > maxDays {
		return fmt.Errorf("%w: at most %d days", ErrStayTooLong, maxDays)
	}
	return nil
}

// FirstDay returns the start date truncated to midnight UTC
func (r DateRange) FirstDay() time.Time {
	return truncateDay(r.Start)
}

// EndExclusive returns the first day after the last occupied day
func (r DateRange) EndExclusive() time.Time {
	return r.FirstDay().AddDate(0, 0, r.Days())
}

// OccupiedDays lists every calendar day the range holds an option for
func (r DateRange) OccupiedDays() []time.Time {
	first := r.FirstDay()
	n := r.Days()
	days := make([]time.Time, n)
	for i := 0; i < n; i++ {
		days[i] = first.AddDate(0, 0, i)
	}
	return days
}

// Overlaps reports whether two ranges share at least one occupied day
func (r DateRange) Overlaps(other DateRange) bool {
	return r.FirstDay().Before(other.EndExclusive()) && other.FirstDay().Before(r.EndExclusive())
}

// StartString formats the start as a calendar date
func (r DateRange) StartString() string {
	return r.Start.Format(DateLayout)
}

// EndString formats the end as a calendar date
func (r DateRange) EndString() string {
	return r.End.Format(DateLayout)
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
