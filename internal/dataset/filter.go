package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-gota/gota/series"
)

// DateLayout is the calendar-date format used for interval bounds
const DateLayout = "2006-01-02"

// DateInterval is an inclusive range of calendar dates, compared in UTC
type DateInterval struct {
	Start time.Time
	End   time.Time
}

// NewDateInterval truncates start and end to their calendar dates
func NewDateInterval(start, end time.Time) DateInterval {
	return DateInterval{Start: civilDate(start), End: civilDate(end)}
}

// Empty reports whether the interval contains no dates
func (iv DateInterval) Empty() bool {
	return iv.Start.After(iv.End)
}

// Contains reports whether the calendar date of t lies within the interval
func (iv DateInterval) Contains(t time.Time) bool {
	d := civilDate(t)
	return !d.Before(iv.Start) && !d.After(iv.End)
}

func civilDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Criteria selects the rows of a Filtered Subset
type Criteria struct {
	Sources  []string
	Interval *DateInterval
}

// NewCriteria builds criteria from user input.  Source names are trimmed and
// de-duplicated.  start and end are YYYY-MM-DD dates; the interval is only set
// when both are given.
func NewCriteria(sources []string, start, end string) (Criteria, error) {
	var c Criteria
	seen := make(map[string]bool)
	for _, s := range sources {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		c.Sources = append(c.Sources, s)
	}

	start, end = strings.TrimSpace(start), strings.TrimSpace(end)
	if start == "" && end == "" {
		return c, nil
	}
	if start == "" || end == "" {
		return c, fmt.Errorf("date range needs both start and end")
	}

	s, err := time.Parse(DateLayout, start)
	if err != nil {
		return c, fmt.Errorf("invalid start date %q: %w", start, err)
	}
	e, err := time.Parse(DateLayout, end)
	if err != nil {
		return c, fmt.Errorf("invalid end date %q: %w", end, err)
	}
	iv := NewDateInterval(s, e)
	c.Interval = &iv
	return c, nil
}

// Filter returns the rows of ds whose source is in c.Sources and, when an
// interval is given and ds has a time column, whose timestamp falls inside
// it.  An empty interval selects nothing even without a time column.  ds is
// not modified.
func Filter(ds *Dataset, c Criteria) *Dataset {
	if len(c.Sources) == 0 || (c.Interval != nil && c.Interval.Empty()) {
		return ds.take(nil)
	}

	src, _ := ds.Column(ds.SourceField())
	wanted, err := src.values.Compare(series.In, c.Sources).Bool()
	if err != nil {
		return ds.take(nil)
	}

	var timeCol *Column
	if c.Interval != nil && ds.TimeField() != "" {
		timeCol, _ = ds.Column(ds.TimeField())
	}

	keep := make([]int, 0, len(wanted))
	for i, ok := range wanted {
		if !ok {
			continue
		}
		if timeCol != nil {
			t, ok := timeCol.Time(i)
			if !ok || !c.Interval.Contains(t) {
				continue
			}
		}
		keep = append(keep, i)
	}

	return ds.take(keep)
}

// Extent returns the earliest and latest timestamps in ds.  ok is false when
// ds has no time column or no timestamped rows.
func Extent(ds *Dataset) (first, last time.Time, ok bool) {
	if ds.TimeField() == "" {
		return first, last, false
	}
	col, _ := ds.Column(ds.TimeField())
	for i := 0; i < col.Len(); i++ {
		t, valid := col.Time(i)
		if !valid {
			continue
		}
		if !ok || t.Before(first) {
			first = t
		}
		if !ok || t.After(last) {
			last = t
		}
		ok = true
	}
	return first, last, ok
}
