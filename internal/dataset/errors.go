package dataset

import (
	"errors"
	"fmt"
)

var (
	// ErrDataUnavailable is matched by errors.Is for every DataUnavailableError
	ErrDataUnavailable = errors.New("data unavailable")
	// ErrMalformedTimestamp is matched by errors.Is for every MalformedTimestampError
	ErrMalformedTimestamp = errors.New("malformed timestamp")
	// ErrUnknownMetric is matched by errors.Is for every UnknownMetricError
	ErrUnknownMetric = errors.New("unknown metric")
)

// DataUnavailableError is returned when a source's input cannot be read
type DataUnavailableError struct {
	Source string
	Path   string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("source %q unavailable (%s): %v", e.Source, e.Path, e.Err)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

func (e *DataUnavailableError) Is(target error) bool {
	return target == ErrDataUnavailable
}

// MalformedTimestampError is returned when a timestamp cell cannot be parsed
type MalformedTimestampError struct {
	Field string
	Row   int
	Value string
}

func (e *MalformedTimestampError) Error() string {
	return fmt.Sprintf("row %d: cannot parse %s value %q", e.Row, e.Field, e.Value)
}

func (e *MalformedTimestampError) Is(target error) bool {
	return target == ErrMalformedTimestamp
}

// UnknownMetricError is returned when a metric does not name a numeric column
type UnknownMetricError struct {
	Metric string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown metric %q", e.Metric)
}

func (e *UnknownMetricError) Is(target error) bool {
	return target == ErrUnknownMetric
}

// NumericColumn returns the named column if it exists, is numeric and was
// provided by at least one loaded source.  Any other case is reported as an
// UnknownMetricError.
func (d *Dataset) NumericColumn(metric string) (*Column, error) {
	col, ok := d.Column(metric)
	if !ok || col.Kind() != Numeric || d.unprovided[metric] {
		return nil, &UnknownMetricError{Metric: metric}
	}
	return col, nil
}
