package dataset

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-gota/gota/series"
)

// DefaultTimestampField is the column normalized into a time column
const DefaultTimestampField = "Timestamp"

// MalformedPolicy decides what NormalizeTimestamp does with unparsable values
type MalformedPolicy string

const (
	// DropMalformed excludes rows whose timestamp cannot be parsed and counts
	// them in NormalizeReport.Dropped
	DropMalformed MalformedPolicy = "drop"
	// FailMalformed returns a MalformedTimestampError for the first bad row
	FailMalformed MalformedPolicy = "fail"
)

// NormalizeReport summarizes a NormalizeTimestamp call
type NormalizeReport struct {
	Field   string
	Parsed  int
	Missing int
	Dropped int
}

// Layouts without a zone are read as UTC.  Fractional seconds are accepted
// after any layout that has seconds.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02 15:04",
	"2006/01/02",
	"01/02/2006 15:04:05",
	"01/02/2006 15:04",
	"01/02/2006",
}

// ParseTimestamp parses a single timestamp value into UTC
func ParseTimestamp(v string) (time.Time, error) {
	v = strings.TrimSpace(v)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", v)
}

// NormalizeTimestamp converts field into a UTC time column and returns a new
// dataset.  When field is absent this is a no-op.  Empty cells stay missing;
// unparsable cells are handled according to policy.
func NormalizeTimestamp(ds *Dataset, field string, policy MalformedPolicy) (*Dataset, NormalizeReport, error) {
	report := NormalizeReport{Field: field}

	col, ok := ds.Column(field)
	if !ok {
		return ds, report, nil
	}
	if col.Kind() == Time {
		return ds, report, nil
	}
	if policy == "" {
		policy = DropMalformed
	}

	n := col.Len()
	times := make([]time.Time, 0, n)
	valid := make([]bool, 0, n)
	keep := make([]int, 0, n)

	for i := 0; i < n; i++ {
		if col.IsMissing(i) {
			report.Missing++
			times = append(times, time.Time{})
			valid = append(valid, false)
			keep = append(keep, i)
			continue
		}

		raw := col.String(i)
		t, err := ParseTimestamp(raw)
		if err != nil {
			if policy == FailMalformed {
				return nil, report, &MalformedTimestampError{Field: field, Row: i, Value: raw}
			}
			report.Dropped++
			continue
		}

		report.Parsed++
		times = append(times, t)
		valid = append(valid, true)
		keep = append(keep, i)
	}

	stamps := make([]string, len(times))
	for j, t := range times {
		stamps[j] = naToken
		if valid[j] {
			stamps[j] = t.Format(time.RFC3339Nano)
		}
	}

	kept := ds.take(keep)
	out := kept.derive(kept.df.Mutate(series.New(stamps, series.String, field)))
	if out.df.Err != nil {
		return nil, report, fmt.Errorf("normalizing %s: %w", field, out.df.Err)
	}
	out.kinds = make(map[string]Kind, len(ds.kinds))
	for name, k := range ds.kinds {
		out.kinds[name] = k
	}
	out.kinds[field] = Time
	out.times = make(map[string][]time.Time, len(kept.times)+1)
	for name, ts := range kept.times {
		out.times[name] = ts
	}
	out.times[field] = times
	out.timeField = field

	return out.build(), report, nil
}
