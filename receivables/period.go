package receivables

import (
	"fmt"
	"strconv"
	"time"
)

// =============================================================================
// TIME POINT - Day-granularity time abstraction
// =============================================================================

type TimePoint struct {
	Time time.Time
}

// Constructors
func NewTimePoint(year int, month time.Month, day int) TimePoint {
	return TimePoint{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func Today() TimePoint {
	now := time.Now()
	return NewTimePoint(now.Year(), now.Month(), now.Day())
}

// Comparison
func (tp TimePoint) Before(other TimePoint) bool        { return tp.normalize().Before(other.normalize()) }
func (tp TimePoint) Equal(other TimePoint) bool         { return tp.normalize().Equal(other.normalize()) }
func (tp TimePoint) After(other TimePoint) bool         { return tp.normalize().After(other.normalize()) }
func (tp TimePoint) BeforeOrEqual(other TimePoint) bool { return tp.Before(other) || tp.Equal(other) }
func (tp TimePoint) AfterOrEqual(other TimePoint) bool  { return tp.After(other) || tp.Equal(other) }

func (tp TimePoint) normalize() time.Time {
	return time.Date(tp.Time.Year(), tp.Time.Month(), tp.Time.Day(), 0, 0, 0, 0, time.UTC)
}

// Arithmetic
func (tp TimePoint) AddDays(n int) TimePoint   { return TimePoint{Time: tp.Time.AddDate(0, 0, n)} }
func (tp TimePoint) AddMonths(n int) TimePoint { return TimePoint{Time: tp.Time.AddDate(0, n, 0)} }
func (tp TimePoint) AddYears(n int) TimePoint  { return TimePoint{Time: tp.Time.AddDate(n, 0, 0)} }

// Properties
func (tp TimePoint) Year() int         { return tp.Time.Year() }
func (tp TimePoint) Month() time.Month { return tp.Time.Month() }
func (tp TimePoint) Day() int          { return tp.Time.Day() }
func (tp TimePoint) IsZero() bool      { return tp.Time.IsZero() }

func (tp TimePoint) String() string { return tp.Time.Format("2006-01-02") }

// =============================================================================
// PERIOD - The time slice one receivable instance bills for
// =============================================================================

// Period is the inclusive [Start, End] range an instance covers.
// Examples: calendar year 2024, Q2 2024, March 2024.
type Period struct {
	Start TimePoint
	End   TimePoint
}

// Contains returns true if the time point is within [Start, End].
func (p Period) Contains(t TimePoint) bool {
	return t.AfterOrEqual(p.Start) && t.BeforeOrEqual(p.End)
}

// Overlaps returns true if the two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// SCHEDULE - How a recurring field slices time into instances
// =============================================================================

type Frequency string

const (
	FreqYearly    Frequency = "yearly"
	FreqQuarterly Frequency = "quarterly"
	FreqMonthly   Frequency = "monthly"
)

// Schedule defines the materialization cadence of a recurring field.
// LabelFormat is a fmt format string receiving the period's starting year
// (yearly) or a "2006-01" stamp (quarterly/monthly); empty means a default.
type Schedule struct {
	Frequency   Frequency
	Start       TimePoint
	LabelFormat string
}

// PeriodsThrough returns every period from Schedule.Start whose start is not
// after the given date, in chronological order. An instance is due for each.
func (s Schedule) PeriodsThrough(now TimePoint) []Period {
	if s.Start.IsZero() || s.Start.After(now) {
		return nil
	}

	var periods []Period
	current := s.Start
	for current.BeforeOrEqual(now) {
		next := s.nextStart(current)
		periods = append(periods, Period{Start: current, End: next.AddDays(-1)})
		current = next
	}
	return periods
}

func (s Schedule) nextStart(from TimePoint) TimePoint {
	switch s.Frequency {
	case FreqQuarterly:
		return from.AddMonths(3)
	case FreqMonthly:
		return from.AddMonths(1)
	default:
		return from.AddYears(1)
	}
}

// Label renders the human label for a period under this schedule.
func (s Schedule) Label(p Period) string {
	format := s.LabelFormat
	if format == "" {
		format = "%s"
	}
	stamp := strconv.Itoa(p.Start.Year())
	if s.Frequency == FreqQuarterly || s.Frequency == FreqMonthly {
		stamp = p.Start.Time.Format("2006-01")
	}
	return fmt.Sprintf(format, stamp)
}
