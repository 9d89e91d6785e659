package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"go.uber.org/zap"
)

// UnreadablePolicy decides what Load does when a source cannot be read
type UnreadablePolicy string

const (
	// SkipUnreadable logs a warning, records the failure in the LoadReport and
	// continues with the remaining sources.  This is the default.
	SkipUnreadable UnreadablePolicy = "skip"
	// AbortUnreadable stops at the first unreadable source and returns its
	// DataUnavailableError.
	AbortUnreadable UnreadablePolicy = "abort"
)

// DefaultSourceField is the column that carries the source identifier
const DefaultSourceField = "Country"

// LoadOptions configures a Loader
type LoadOptions struct {
	// SourceField names the source-identifier column
	SourceField string
	// Metrics is the declared canonical set of numeric fields.  Each one is
	// present in the loaded dataset even if no source provides it.
	Metrics []string
	// Delimiter separates fields in delimited text inputs.  Zero means ','.
	Delimiter rune
	// OnUnreadable selects the DataUnavailable policy
	OnUnreadable UnreadablePolicy
}

// LoadReport summarizes a Load
type LoadReport struct {
	Rows         int
	Skipped      []*DataUnavailableError
	InvalidCells map[string]int
}

// Loader reads and merges sources into a Dataset
type Loader struct {
	opts   LoadOptions
	logger *zap.SugaredLogger
}

// NewLoader creates a loader, filling in defaults for unset options
func NewLoader(opts LoadOptions, logger *zap.SugaredLogger) *Loader {
	if opts.SourceField == "" {
		opts.SourceField = DefaultSourceField
	}
	if opts.OnUnreadable == "" {
		opts.OnUnreadable = SkipUnreadable
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Loader{opts: opts, logger: logger}
}

type loadedSource struct {
	src   Source
	table *rawTable
}

// Load reads every source in order and concatenates them into one dataset.
// Rows keep their order within a source and sources keep the order given.
func (l *Loader) Load(sources []Source) (*Dataset, LoadReport, error) {
	report := LoadReport{InvalidCells: make(map[string]int)}

	var loaded []loadedSource
	for i, src := range sources {
		if strings.TrimSpace(src.ID) == "" {
			return nil, report, fmt.Errorf("source %d (%s) has no identifier", i, src.Path)
		}

		table, err := readSource(src, l.opts.Delimiter)
		if err != nil {
			unavailable := &DataUnavailableError{Source: src.ID, Path: src.Path, Err: err}
			if l.opts.OnUnreadable == AbortUnreadable {
				return nil, report, unavailable
			}
			l.logger.Warnw("skipping unreadable source", "source", src.ID, "path", src.Path, "error", err)
			report.Skipped = append(report.Skipped, unavailable)
			continue
		}

		l.logger.Debugf("read source %s from %s: %d rows, %d columns", src.ID, src.Path, len(table.rows), len(table.header))
		loaded = append(loaded, loadedSource{src: src, table: table})
	}

	ds, err := l.merge(loaded, report.InvalidCells)
	if err != nil {
		return nil, report, err
	}
	report.Rows = ds.Len()

	if len(loaded) == 0 && len(sources) > 0 {
		l.logger.Warnf("none of the %d configured sources could be read", len(sources))
	}

	return ds, report, nil
}

// schema returns the merged column order: columns in order of first
// appearance across sources, then declared metrics nobody provided, then the
// source column.  unprovided lists those declared-only metrics once at least
// one source was loaded.
func (l *Loader) schema(loaded []loadedSource) (names []string, unprovided map[string]bool) {
	seen := map[string]bool{l.opts.SourceField: true}
	for _, ls := range loaded {
		for _, h := range ls.table.header {
			if h == "" || seen[h] {
				continue
			}
			seen[h] = true
			names = append(names, h)
		}
	}
	unprovided = make(map[string]bool)
	for _, m := range l.opts.Metrics {
		if !seen[m] {
			seen[m] = true
			names = append(names, m)
			if len(loaded) > 0 {
				unprovided[m] = true
			}
		}
	}
	return append(names, l.opts.SourceField), unprovided
}

// merge loads each source into its own frame using one shared set of
// column types, then concatenates them onto an empty frame that carries the
// full schema so the union keeps schema order.
func (l *Loader) merge(loaded []loadedSource, invalid map[string]int) (*Dataset, error) {
	declared := make(map[string]bool, len(l.opts.Metrics))
	for _, m := range l.opts.Metrics {
		declared[m] = true
	}

	names, unprovided := l.schema(loaded)
	types := make(map[string]series.Type, len(names))
	kinds := make(map[string]Kind, len(names))
	for _, name := range names {
		kinds[name] = Text
		types[name] = series.String
		if name == l.opts.SourceField {
			continue
		}
		if declared[name] || inferNumeric(gather(loaded, name)) {
			kinds[name] = Numeric
			types[name] = series.Float
		}
	}

	df := emptyFrame(names, types)
	for _, ls := range loaded {
		records := l.records(ls)
		for name, bad := range invalidCells(records, types) {
			invalid[name] += bad
			l.logger.Warnw("unparsable numeric cells treated as missing", "source", ls.src.ID, "field", name, "count", bad)
		}
		df = df.Concat(frame(records, types))
	}
	df = df.Select(names)
	if df.Err != nil {
		return nil, fmt.Errorf("merging sources: %w", df.Err)
	}

	ds := &Dataset{
		df:           df,
		kinds:        kinds,
		unprovided:   unprovided,
		sourceField:  l.opts.SourceField,
		capabilities: l.capabilities(loaded, declared),
	}
	return ds.build(), nil
}

// records turns a raw table into gota records: a cleaned header with the
// source column last, missing tokens replaced by naToken, and the source
// column filled in.  A source's own identifier values win over the
// configured identifier except where the cell is empty.
func (l *Loader) records(ls loadedSource) [][]string {
	var header []string
	var cols []int
	seen := map[string]bool{l.opts.SourceField: true}
	for i, h := range ls.table.header {
		if h == "" || seen[h] {
			continue
		}
		seen[h] = true
		header = append(header, h)
		cols = append(cols, i)
	}
	header = append(header, l.opts.SourceField)
	srcIdx := ls.table.column(l.opts.SourceField)

	records := make([][]string, 0, len(ls.table.rows)+1)
	records = append(records, header)
	for r := range ls.table.rows {
		record := make([]string, len(header))
		for j, c := range cols {
			v, ok := ls.table.cell(r, c)
			v = strings.TrimSpace(v)
			if !ok || isMissingToken(v) {
				v = naToken
			}
			record[j] = v
		}
		id := ls.src.ID
		if v, ok := ls.table.cell(r, srcIdx); ok && strings.TrimSpace(v) != "" {
			id = strings.TrimSpace(v)
		}
		record[len(record)-1] = id
		records = append(records, record)
	}
	return records
}

// frame loads records with the shared column types.  gota refuses to load
// a header without rows, so those sources get an empty frame instead.
func frame(records [][]string, types map[string]series.Type) dataframe.DataFrame {
	if len(records) < 2 {
		return emptyFrame(records[0], types)
	}
	return dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(false),
		dataframe.DefaultType(series.String),
		dataframe.WithTypes(types),
		dataframe.NaNValues([]string{naToken}),
	)
}

func emptyFrame(names []string, types map[string]series.Type) dataframe.DataFrame {
	cols := make([]series.Series, len(names))
	for i, name := range names {
		t, ok := types[name]
		if !ok {
			t = series.String
		}
		cols[i] = series.New([]string{}, t, name)
	}
	return dataframe.New(cols...)
}

// invalidCells counts present cells of float columns that do not parse
func invalidCells(records [][]string, types map[string]series.Type) map[string]int {
	counts := make(map[string]int)
	header := records[0]
	for _, record := range records[1:] {
		for j, v := range record {
			if types[header[j]] != series.Float || v == naToken {
				continue
			}
			if f, err := strconv.ParseFloat(v, 64); err != nil || math.IsNaN(f) {
				counts[header[j]]++
			}
		}
	}
	return counts
}

func (l *Loader) capabilities(loaded []loadedSource, declared map[string]bool) []Capability {
	caps := make([]Capability, 0, len(loaded))
	for _, ls := range loaded {
		c := Capability{
			Source:         ls.src.ID,
			Path:           ls.src.Path,
			Rows:           len(ls.table.rows),
			HasSourceField: ls.table.column(l.opts.SourceField) >= 0,
		}
		provided := make(map[string]bool)
		for _, h := range ls.table.header {
			if h == "" || h == l.opts.SourceField || provided[h] {
				continue
			}
			provided[h] = true
			c.Fields = append(c.Fields, h)
		}
		for _, m := range l.opts.Metrics {
			if !provided[m] {
				c.MissingFields = append(c.MissingFields, m)
			}
		}
		caps = append(caps, c)
	}
	return caps
}

// gather collects the present, non-missing cells of one column across all
// sources
func gather(loaded []loadedSource, name string) []string {
	var cells []string
	for _, ls := range loaded {
		idx := ls.table.column(name)
		if idx < 0 {
			continue
		}
		for r := range ls.table.rows {
			v, ok := ls.table.cell(r, idx)
			v = strings.TrimSpace(v)
			if ok && !isMissingToken(v) {
				cells = append(cells, v)
			}
		}
	}
	return cells
}

var missingTokens = map[string]bool{
	"":     true,
	"na":   true,
	"n/a":  true,
	"nan":  true,
	"null": true,
	"none": true,
}

func isMissingToken(v string) bool {
	return missingTokens[strings.ToLower(v)]
}

// inferNumeric reports whether every cell parses as a float and at least
// one cell is present
func inferNumeric(cells []string) bool {
	for _, v := range cells {
		if _, err := strconv.ParseFloat(v, 64); err != nil {
			return false
		}
	}
	return len(cells) > 0
}
