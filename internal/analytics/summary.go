// Package analytics computes per-source statistics over a metric column of a
// filtered dataset: summary tables, rankings, daily averages and the headline
// figures shown on the dashboard.
package analytics

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/chrissnell/solarcompare/internal/dataset"
	"github.com/vmihailenco/msgpack/v5"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Value is a statistic that may be undefined.  Undefined values are NaN and
// encode as JSON null.
type Value float64

// Undefined is the NaN value used for statistics that cannot be computed
var Undefined = Value(math.NaN())

// Defined reports whether v holds a number
func (v Value) Defined() bool {
	return !math.IsNaN(float64(v))
}

func (v Value) MarshalJSON() ([]byte, error) {
	if !v.Defined() || math.IsInf(float64(v), 0) {
		return []byte("null"), nil
	}
	return json.Marshal(float64(v))
}

func (v *Value) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = Undefined
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return err
	}
	*v = Value(f)
	return nil
}

func (v Value) EncodeMsgpack(enc *msgpack.Encoder) error {
	if !v.Defined() || math.IsInf(float64(v), 0) {
		return enc.EncodeNil()
	}
	return enc.EncodeFloat64(float64(v))
}

func (v *Value) DecodeMsgpack(dec *msgpack.Decoder) error {
	raw, err := dec.DecodeInterfaceLoose()
	if err != nil {
		return err
	}
	switch n := raw.(type) {
	case nil:
		*v = Undefined
	case float64:
		*v = Value(n)
	case int64:
		*v = Value(n)
	case uint64:
		*v = Value(n)
	default:
		return fmt.Errorf("cannot decode %T into Value", raw)
	}
	return nil
}

func (v Value) round(places int) Value {
	if !v.Defined() {
		return v
	}
	p := math.Pow(10, float64(places))
	return Value(math.Round(float64(v)*p) / p)
}

// SourceStats holds the statistics of one source for one metric
type SourceStats struct {
	Source string `json:"source"`
	Mean   Value  `json:"mean"`
	Median Value  `json:"median"`
	StdDev Value  `json:"std_dev"`
	Min    Value  `json:"min"`
	Max    Value  `json:"max"`
	Count  int    `json:"count"`
}

// Summary is the statistics table for a metric.  Rows are ordered by the
// first appearance of each source in the summarized dataset.
type Summary struct {
	Metric string        `json:"metric"`
	Rows   []SourceStats `json:"rows"`
}

// Lookup returns the row for source
func (s *Summary) Lookup(source string) (SourceStats, bool) {
	for _, r := range s.Rows {
		if r.Source == source {
			return r, true
		}
	}
	return SourceStats{}, false
}

// Rounded returns a copy with every statistic rounded to places decimals
func (s *Summary) Rounded(places int) *Summary {
	out := &Summary{Metric: s.Metric, Rows: make([]SourceStats, len(s.Rows))}
	for i, r := range s.Rows {
		out.Rows[i] = SourceStats{
			Source: r.Source,
			Mean:   r.Mean.round(places),
			Median: r.Median.round(places),
			StdDev: r.StdDev.round(places),
			Min:    r.Min.round(places),
			Max:    r.Max.round(places),
			Count:  r.Count,
		}
	}
	return out
}

// Summarize groups ds by source and computes mean, median, sample standard
// deviation, min, max and count of the non-missing values of metric.  A
// source whose rows have no value for metric still gets a row, with every
// statistic undefined and a count of zero.
func Summarize(ds *dataset.Dataset, metric string) (*Summary, error) {
	col, err := ds.NumericColumn(metric)
	if err != nil {
		return nil, err
	}

	order, groups := ds.GroupBySource()
	summary := &Summary{Metric: metric, Rows: make([]SourceStats, 0, len(order))}
	for _, source := range order {
		summary.Rows = append(summary.Rows, describe(source, col.Floats(groups[source])))
	}
	return summary, nil
}

func describe(source string, values []float64) SourceStats {
	st := SourceStats{
		Source: source,
		Mean:   Undefined,
		Median: Undefined,
		StdDev: Undefined,
		Min:    Undefined,
		Max:    Undefined,
		Count:  len(values),
	}
	if len(values) == 0 {
		return st
	}

	st.Mean = Value(stat.Mean(values, nil))
	st.Min = Value(floats.Min(values))
	st.Max = Value(floats.Max(values))
	st.Median = Value(median(values))
	// Sample standard deviation is undefined for a single observation
	if len(values) > 1 {
		st.StdDev = Value(stat.StdDev(values, nil))
	}
	return st
}

// median averages the two middle values when the count is even
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// mean returns the mean of values, or Undefined when there are none
func mean(values []float64) Value {
	if len(values) == 0 {
		return Undefined
	}
	return Value(stat.Mean(values, nil))
}
