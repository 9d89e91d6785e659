package dataset

import (
	"bytes"
	"compress/gzip"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testMetrics = []string{"GHI", "DNI", "DHI", "Tamb"}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func threeSources(t *testing.T) []Source {
	t.Helper()
	dir := t.TempDir()
	return []Source{
		{ID: "Benin", Path: writeFile(t, dir, "benin.csv",
			"Timestamp,GHI,DNI,DHI,Tamb\n"+
				"2021-08-09 00:01,1.0,0.0,1.0,26.2\n"+
				"2021-08-09 00:02,2.0,0.0,2.0,26.2\n"+
				"2021-08-10 12:00,800.5,600.0,200.0,31.0\n")},
		{ID: "Sierra Leone", Path: writeFile(t, dir, "sierraleone.csv",
			"Timestamp,GHI,DNI,Tamb\n"+
				"2021-10-30 00:01,5.0,1.0,22.0\n"+
				"2021-10-30 00:02,,1.0,22.1\n")},
		{ID: "Togo", Path: writeFile(t, dir, "togo.csv",
			"Timestamp,GHI,DNI,DHI,Tamb,Country\n"+
				"2021-10-25 00:01,9.0,3.0,4.0,24.8,Togo\n"+
				"2021-10-25 00:02,7.0,2.0,3.0,24.8,\n")},
	}
}

func newTestLoader(policy UnreadablePolicy) *Loader {
	return NewLoader(LoadOptions{Metrics: testMetrics, OnUnreadable: policy}, nil)
}

func TestLoadConcatenatesInOrder(t *testing.T) {
	ds, report, err := newTestLoader(SkipUnreadable).Load(threeSources(t))
	require.NoError(t, err)

	assert.Equal(t, 7, ds.Len())
	assert.Equal(t, 7, report.Rows)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, []string{"Benin", "Sierra Leone", "Togo"}, ds.Sources())

	want := []string{"Benin", "Benin", "Benin", "Sierra Leone", "Sierra Leone", "Togo", "Togo"}
	for i, s := range want {
		assert.Equal(t, s, ds.Source(i), "row %d", i)
	}

	ghi, ok := ds.Column("GHI")
	require.True(t, ok)
	assert.Equal(t, Numeric, ghi.Kind())
	v, ok := ghi.Float(2)
	assert.True(t, ok)
	assert.Equal(t, 800.5, v)
}

func TestLoadPerSourceRowCounts(t *testing.T) {
	sources := threeSources(t)
	ds, _, err := newTestLoader(SkipUnreadable).Load(sources)
	require.NoError(t, err)

	_, groups := ds.GroupBySource()
	assert.Len(t, groups["Benin"], 3)
	assert.Len(t, groups["Sierra Leone"], 2)
	assert.Len(t, groups["Togo"], 2)

	for _, c := range ds.Capabilities() {
		assert.Equal(t, len(groups[c.Source]), c.Rows, c.Source)
	}
}

func TestLoadUnionSchemaAndMissingMarkers(t *testing.T) {
	ds, _, err := newTestLoader(SkipUnreadable).Load(threeSources(t))
	require.NoError(t, err)

	assert.Equal(t, []string{"Timestamp", "GHI", "DNI", "DHI", "Tamb", "Country"}, ds.Columns())

	dhi, ok := ds.Column("DHI")
	require.True(t, ok)
	// Sierra Leone has no DHI column
	assert.True(t, dhi.IsMissing(3))
	assert.True(t, dhi.IsMissing(4))
	v, ok := dhi.Float(3)
	assert.False(t, ok)
	assert.True(t, math.IsNaN(v))

	ghi, _ := ds.Column("GHI")
	assert.True(t, ghi.IsMissing(4), "empty cell should be missing")

	caps := ds.Capabilities()
	require.Len(t, caps, 3)
	assert.Equal(t, []string{"DHI"}, caps[1].MissingFields)
	assert.False(t, caps[1].Provides("DHI"))
	assert.True(t, caps[2].HasSourceField)
	assert.False(t, caps[0].HasSourceField)
}

func TestLoadKeepsExistingSourceColumn(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "mixed.csv", "GHI,Country\n1,Ghana\n2,\n")

	ds, _, err := newTestLoader(SkipUnreadable).Load([]Source{{ID: "Togo", Path: path}})
	require.NoError(t, err)

	assert.Equal(t, "Ghana", ds.Source(0))
	assert.Equal(t, "Togo", ds.Source(1), "empty identifier cells take the configured identifier")
}

func TestLoadDeclaredMetricAbsentEverywhere(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.csv", "GHI\n1\n")

	loader := NewLoader(LoadOptions{Metrics: []string{"GHI", "WSgust"}}, nil)
	ds, _, err := loader.Load([]Source{{ID: "A", Path: path}})
	require.NoError(t, err)

	col, ok := ds.Column("WSgust")
	require.True(t, ok)
	assert.Equal(t, Numeric, col.Kind())
	assert.True(t, col.IsMissing(0))

	_, err = ds.NumericColumn("WSgust")
	assert.ErrorIs(t, err, ErrUnknownMetric, "no source provides WSgust")
	_, err = ds.NumericColumn("GHI")
	assert.NoError(t, err)

	// the restriction survives filtering
	_, err = Filter(ds, Criteria{Sources: []string{"A"}}).NumericColumn("WSgust")
	assert.ErrorIs(t, err, ErrUnknownMetric)
}

func TestLoadInvalidCellsInDeclaredMetric(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "a.csv", "GHI,Comment\n1,ok\nbogus,fine\n3,\n")

	ds, report, err := newTestLoader(SkipUnreadable).Load([]Source{{ID: "A", Path: path}})
	require.NoError(t, err)

	assert.Equal(t, 1, report.InvalidCells["GHI"])
	ghi, _ := ds.Column("GHI")
	assert.True(t, ghi.IsMissing(1))

	comment, _ := ds.Column("Comment")
	assert.Equal(t, Text, comment.Kind())
	assert.True(t, comment.IsMissing(2))
}

func TestLoadUnreadableSourcePolicies(t *testing.T) {
	sources := threeSources(t)
	sources[1].Path = filepath.Join(t.TempDir(), "does-not-exist.csv")

	t.Run("skip", func(t *testing.T) {
		ds, report, err := newTestLoader(SkipUnreadable).Load(sources)
		require.NoError(t, err)
		assert.Equal(t, []string{"Benin", "Togo"}, ds.Sources())
		assert.Equal(t, 5, ds.Len())
		require.Len(t, report.Skipped, 1)
		assert.Equal(t, "Sierra Leone", report.Skipped[0].Source)
		assert.True(t, errors.Is(report.Skipped[0], ErrDataUnavailable))
		assert.True(t, errors.Is(report.Skipped[0], os.ErrNotExist))
	})

	t.Run("abort", func(t *testing.T) {
		ds, _, err := newTestLoader(AbortUnreadable).Load(sources)
		require.Error(t, err)
		assert.Nil(t, ds)
		assert.True(t, errors.Is(err, ErrDataUnavailable))

		var unavailable *DataUnavailableError
		require.True(t, errors.As(err, &unavailable))
		assert.Equal(t, "Sierra Leone", unavailable.Source)
	})
}

func TestLoadAllSourcesUnreadable(t *testing.T) {
	dir := t.TempDir()
	ds, report, err := newTestLoader(SkipUnreadable).Load([]Source{
		{ID: "A", Path: filepath.Join(dir, "a.csv")},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
	assert.Len(t, report.Skipped, 1)

	_, err = ds.NumericColumn("GHI")
	assert.NoError(t, err, "declared metrics exist even in an empty dataset")
}

func TestLoadRejectsEmptyIdentifier(t *testing.T) {
	_, _, err := newTestLoader(SkipUnreadable).Load([]Source{{ID: " ", Path: "x.csv"}})
	assert.Error(t, err)
}

func TestLoadIsIdempotent(t *testing.T) {
	sources := threeSources(t)
	loader := newTestLoader(SkipUnreadable)

	first, _, err := loader.Load(sources)
	require.NoError(t, err)
	second, _, err := loader.Load(sources)
	require.NoError(t, err)

	require.Equal(t, first.Len(), second.Len())
	require.Equal(t, first.Columns(), second.Columns())
	for _, name := range first.Columns() {
		a, _ := first.Column(name)
		b, _ := second.Column(name)
		for i := 0; i < first.Len(); i++ {
			assert.Equal(t, a.String(i), b.String(i), "%s row %d", name, i)
		}
	}
}

func TestLoadCompressedAndDelimited(t *testing.T) {
	dir := t.TempDir()
	content := []byte("GHI;Tamb\n10;20\n30;40\n")

	var gz bytes.Buffer
	zw := gzip.NewWriter(&gz)
	_, err := zw.Write(content)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	gzPath := filepath.Join(dir, "a.csv.gz")
	require.NoError(t, os.WriteFile(gzPath, gz.Bytes(), 0644))

	enc, err := zstd.NewWriter(nil)
	require.NoError(t, err)
	zstPath := filepath.Join(dir, "b.csv.zst")
	require.NoError(t, os.WriteFile(zstPath, enc.EncodeAll(content, nil), 0644))
	require.NoError(t, enc.Close())

	loader := NewLoader(LoadOptions{Metrics: []string{"GHI"}, Delimiter: ';'}, nil)
	ds, report, err := loader.Load([]Source{
		{ID: "gz", Path: gzPath},
		{ID: "zst", Path: zstPath},
	})
	require.NoError(t, err)
	assert.Empty(t, report.Skipped)
	assert.Equal(t, 4, ds.Len())

	tamb, err := ds.NumericColumn("Tamb")
	require.NoError(t, err)
	v, _ := tamb.Float(3)
	assert.Equal(t, 40.0, v)
}

type parquetReading struct {
	Timestamp time.Time `parquet:"Timestamp"`
	GHI       float64   `parquet:"GHI"`
	Cleaning  string    `parquet:"Cleaning"`
}

func TestLoadParquetTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "togo.parquet")
	first := time.Date(2021, 8, 9, 12, 0, 0, 0, time.UTC)
	require.NoError(t, parquet.WriteFile(path, []parquetReading{
		{Timestamp: first, GHI: 812.5, Cleaning: "no"},
		{Timestamp: first.Add(time.Minute), GHI: 815, Cleaning: "yes"},
	}))

	raw, report, err := newTestLoader(AbortUnreadable).Load([]Source{{ID: "Togo", Path: path}})
	require.NoError(t, err)
	assert.Equal(t, 2, report.Rows)

	ts, ok := raw.Column("Timestamp")
	require.True(t, ok)
	assert.Equal(t, Text, ts.Kind())
	assert.Equal(t, "2021-08-09T12:00:00Z", ts.String(0))

	ds, norm, err := NormalizeTimestamp(raw, "Timestamp", DropMalformed)
	require.NoError(t, err)
	assert.Equal(t, 2, norm.Parsed)
	assert.Equal(t, 0, norm.Dropped)
	assert.Equal(t, 2, ds.Len())

	col, _ := ds.Column("Timestamp")
	assert.Equal(t, Time, col.Kind())
	got, ok := col.Time(1)
	require.True(t, ok)
	assert.True(t, first.Add(time.Minute).Equal(got))

	ghi, err := ds.NumericColumn("GHI")
	require.NoError(t, err)
	v, _ := ghi.Float(0)
	assert.Equal(t, 812.5, v)
	assert.Equal(t, "Togo", ds.Source(1))
}

func TestParquetDateColumn(t *testing.T) {
	type reading struct {
		Day int32   `parquet:"Day,date"`
		GHI float64 `parquet:"GHI"`
	}
	path := filepath.Join(t.TempDir(), "daily.parquet")
	// days since 1970-01-01
	require.NoError(t, parquet.WriteFile(path, []reading{{Day: 18925, GHI: 5200}}))

	table, err := readSource(Source{ID: "Togo", Path: path}, 0)
	require.NoError(t, err)
	require.Len(t, table.rows, 1)
	assert.Equal(t, "2021-10-25", table.rows[0][table.column("Day")])
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		path string
		want Format
	}{
		{"data/benin_clean.csv", FormatCSV},
		{"data/benin_clean.CSV.GZ", FormatCSVGzip},
		{"data/togo.csv.zst", FormatCSVZstd},
		{"data/togo.parquet", FormatParquet},
		{"data/togo.txt", FormatCSV},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.path))
		})
	}
}
