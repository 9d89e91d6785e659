// Package dataset loads per-source measurement tables into a single immutable
// Unified Dataset backed by a gota DataFrame and provides the filtering and
// timestamp normalization steps that every dashboard request runs through.
package dataset

import (
	"math"
	"strconv"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// naToken is the cell text gota reads as a missing element
const naToken = "NaN"

// Kind identifies how the cells of a column are stored
type Kind int

const (
	// Text columns hold raw strings
	Text Kind = iota
	// Numeric columns hold float64 values; missing cells are NaN
	Numeric
	// Time columns hold UTC timestamps produced by NormalizeTimestamp
	Time
)

func (k Kind) String() string {
	switch k {
	case Numeric:
		return "numeric"
	case Time:
		return "time"
	default:
		return "text"
	}
}

// Column is a read-only view of one named, typed column of a Dataset.
// Numeric columns are float series whose missing cells are NaN; text and
// time columns are string series whose missing cells are NA elements.
type Column struct {
	name   string
	kind   Kind
	values series.Series
	floats []float64
	times  []time.Time
	valid  []bool
}

func newColumn(s series.Series, kind Kind, times []time.Time) *Column {
	c := &Column{name: s.Name, kind: kind, values: s, valid: make([]bool, s.Len())}
	if kind == Numeric {
		c.floats = s.Float()
		for i, v := range c.floats {
			c.valid[i] = !math.IsNaN(v)
		}
		return c
	}
	c.times = times
	for i := range c.valid {
		c.valid[i] = !s.Elem(i).IsNA()
	}
	return c
}

// Name returns the column name
func (c *Column) Name() string {
	return c.name
}

// Kind returns the storage kind of the column
func (c *Column) Kind() Kind {
	return c.kind
}

// Len returns the number of cells in the column
func (c *Column) Len() int {
	return len(c.valid)
}

// IsMissing reports whether row i has no value
func (c *Column) IsMissing(i int) bool {
	return !c.valid[i]
}

// Float returns the numeric value of row i.  ok is false when the column is
// not numeric or the cell is missing.
func (c *Column) Float(i int) (v float64, ok bool) {
	if c.kind != Numeric || !c.valid[i] {
		return math.NaN(), false
	}
	return c.floats[i], true
}

// Text returns the string value of row i for text columns
func (c *Column) Text(i int) (string, bool) {
	if c.kind != Text || !c.valid[i] {
		return "", false
	}
	return c.values.Elem(i).String(), true
}

// Time returns the timestamp of row i for time columns
func (c *Column) Time(i int) (time.Time, bool) {
	if c.kind != Time || !c.valid[i] {
		return time.Time{}, false
	}
	return c.times[i], true
}

// String formats row i for display and export.  Missing cells format as "".
func (c *Column) String(i int) string {
	if !c.valid[i] {
		return ""
	}
	switch c.kind {
	case Numeric:
		return strconv.FormatFloat(c.floats[i], 'f', -1, 64)
	case Time:
		return c.times[i].Format(time.RFC3339)
	default:
		return c.values.Elem(i).String()
	}
}

// Floats returns the non-missing values of rows idx, in order
func (c *Column) Floats(idx []int) []float64 {
	if c.kind != Numeric {
		return nil
	}
	values := make([]float64, 0, len(idx))
	for _, i := range idx {
		if c.valid[i] {
			values = append(values, c.floats[i])
		}
	}
	return values
}

// Capability records which fields a single source actually provided
type Capability struct {
	Source         string   `json:"source"`
	Path           string   `json:"path"`
	Rows           int      `json:"rows"`
	Fields         []string `json:"fields"`
	MissingFields  []string `json:"missing_fields,omitempty"`
	HasSourceField bool     `json:"has_source_field"`
}

// Provides reports whether the source supplied the named field
func (c Capability) Provides(field string) bool {
	for _, f := range c.Fields {
		if f == field {
			return true
		}
	}
	return false
}

// Dataset is an immutable table of rows, each tagged with a source identifier.
// All transformations (Filter, NormalizeTimestamp) return a new Dataset.
type Dataset struct {
	df    dataframe.DataFrame
	kinds map[string]Kind
	// parsed values of Time columns, aligned with the frame's rows
	times map[string][]time.Time
	// declared metrics that no loaded source provided
	unprovided map[string]bool

	sourceField  string
	timeField    string
	capabilities []Capability

	names   []string
	columns map[string]*Column
	sources []string
}

// build derives the column views from the frame
func (d *Dataset) build() *Dataset {
	d.names = d.df.Names()
	d.columns = make(map[string]*Column, len(d.names))
	for _, name := range d.names {
		d.columns[name] = newColumn(d.df.Col(name), d.kinds[name], d.times[name])
	}
	if col, ok := d.columns[d.sourceField]; ok {
		d.sources = col.values.Records()
	}
	return d
}

// Empty returns a dataset with only a source column and no rows
func Empty(sourceField string) *Dataset {
	ds := &Dataset{
		df:          dataframe.New(series.New([]string{}, series.String, sourceField)),
		kinds:       map[string]Kind{sourceField: Text},
		sourceField: sourceField,
	}
	return ds.build()
}

// Len returns the number of rows
func (d *Dataset) Len() int {
	return len(d.sources)
}

// Columns returns the column names in schema order
func (d *Dataset) Columns() []string {
	names := make([]string, len(d.names))
	copy(names, d.names)
	return names
}

// Column looks up a column by name
func (d *Dataset) Column(name string) (*Column, bool) {
	col, ok := d.columns[name]
	return col, ok
}

// SourceField is the name of the source-identifier column
func (d *Dataset) SourceField() string {
	return d.sourceField
}

// TimeField is the name of the normalized time column, or "" when the
// dataset has none
func (d *Dataset) TimeField() string {
	return d.timeField
}

// Source returns the source identifier of row i
func (d *Dataset) Source(i int) string {
	return d.sources[i]
}

// Sources returns the distinct source identifiers in order of first appearance
func (d *Dataset) Sources() []string {
	seen := make(map[string]bool)
	var sources []string
	for _, s := range d.sources {
		if !seen[s] {
			seen[s] = true
			sources = append(sources, s)
		}
	}
	return sources
}

// GroupBySource returns row indices per source identifier, along with the
// identifiers in order of first appearance.  gota's GroupBy keys a map, so
// the order is kept here.
func (d *Dataset) GroupBySource() (order []string, groups map[string][]int) {
	groups = make(map[string][]int)
	for i, s := range d.sources {
		if _, ok := groups[s]; !ok {
			order = append(order, s)
		}
		groups[s] = append(groups[s], i)
	}
	return order, groups
}

// Capabilities returns the per-source capability records gathered at load time
func (d *Dataset) Capabilities() []Capability {
	out := make([]Capability, len(d.capabilities))
	copy(out, d.capabilities)
	return out
}

// derive copies everything but the frame and its views
func (d *Dataset) derive(df dataframe.DataFrame) *Dataset {
	return &Dataset{
		df:           df,
		kinds:        d.kinds,
		times:        d.times,
		unprovided:   d.unprovided,
		sourceField:  d.sourceField,
		timeField:    d.timeField,
		capabilities: d.capabilities,
	}
}

// take builds a new dataset from rows idx, preserving their order
func (d *Dataset) take(idx []int) *Dataset {
	if idx == nil {
		idx = []int{}
	}
	out := d.derive(d.df.Subset(idx))
	if len(d.times) > 0 {
		out.times = make(map[string][]time.Time, len(d.times))
		for name, times := range d.times {
			sub := make([]time.Time, len(idx))
			for j, i := range idx {
				sub[j] = times[i]
			}
			out.times[name] = sub
		}
	}
	return out.build()
}
