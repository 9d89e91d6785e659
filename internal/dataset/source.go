package dataset

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/klauspost/pgzip"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

// Format names the on-disk encoding of a source
type Format string

const (
	FormatCSV     Format = "csv"
	FormatCSVGzip Format = "csv.gz"
	FormatCSVZstd Format = "csv.zst"
	FormatParquet Format = "parquet"
)

// Source names one input table and the identifier its rows are tagged with
type Source struct {
	ID     string
	Path   string
	Format Format
}

// DetectFormat infers a format from the file extension.  Unknown extensions
// are read as delimited text.
func DetectFormat(path string) Format {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".gz"):
		return FormatCSVGzip
	case strings.HasSuffix(lower, ".zst"), strings.HasSuffix(lower, ".zstd"):
		return FormatCSVZstd
	case filepath.Ext(lower) == ".parquet":
		return FormatParquet
	default:
		return FormatCSV
	}
}

// rawTable is a source as read from disk, before typing and merging
type rawTable struct {
	header []string
	rows   [][]string
}

// column returns the position of name in the header, or -1
func (t *rawTable) column(name string) int {
	for i, h := range t.header {
		if h == name {
			return i
		}
	}
	return -1
}

// cell returns row r, column c.  Short rows yield a missing cell.
func (t *rawTable) cell(r, c int) (string, bool) {
	row := t.rows[r]
	if c < 0 || c >= len(row) {
		return "", false
	}
	return row[c], true
}

func readSource(src Source, delimiter rune) (*rawTable, error) {
	enc := src.Format
	if enc == "" {
		enc = DetectFormat(src.Path)
	}

	f, err := os.Open(src.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	switch enc {
	case FormatParquet:
		info, err := f.Stat()
		if err != nil {
			return nil, err
		}
		return readParquet(f, info.Size())
	case FormatCSVGzip:
		gz, err := pgzip.NewReaderN(f, 256*1024, runtime.NumCPU())
		if err != nil {
			return nil, fmt.Errorf("gzip: %w", err)
		}
		defer gz.Close()
		return readDelimited(gz, delimiter)
	case FormatCSVZstd:
		zr, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("zstd: %w", err)
		}
		defer zr.Close()
		return readDelimited(zr, delimiter)
	case FormatCSV:
		return readDelimited(f, delimiter)
	default:
		return nil, fmt.Errorf("unsupported source format %q", enc)
	}
}

// readDelimited reads delimited text with a header row
func readDelimited(r io.Reader, delimiter rune) (*rawTable, error) {
	if delimiter == 0 {
		delimiter = ','
	}

	reader := csv.NewReader(bufio.NewReader(r))
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("missing header row")
		}
		return nil, fmt.Errorf("reading header: %w", err)
	}

	t := &rawTable{header: make([]string, len(header))}
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		t.header[i] = strings.TrimSpace(h)
	}

	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading row %d: %w", len(t.rows)+1, err)
		}
		t.rows = append(t.rows, record)
	}

	return t, nil
}

// readParquet flattens a parquet file with a flat schema into a rawTable.
// Values are formatted as text so they pass through the same typing rules
// as delimited inputs.
func readParquet(r io.ReaderAt, size int64) (*rawTable, error) {
	pf, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("parquet open: %w", err)
	}

	columns := pf.Schema().Columns()
	t := &rawTable{header: make([]string, len(columns))}
	formatters := make([]func(parquet.Value) string, len(columns))
	for i, path := range columns {
		t.header[i] = strings.Join(path, ".")
		formatters[i] = parquetValueString
		if leaf, ok := pf.Schema().Lookup(path...); ok {
			formatters[i] = parquetFormatter(leaf.Node.Type().LogicalType())
		}
	}

	reader := parquet.NewReader(pf)
	defer reader.Close()

	rows := make([]parquet.Row, 256)
	for {
		n, err := reader.ReadRows(rows)
		for _, row := range rows[:n] {
			record := make([]string, len(columns))
			for _, v := range row {
				c := v.Column()
				if c < 0 || c >= len(record) {
					continue
				}
				record[c] = formatters[c](v)
			}
			t.rows = append(t.rows, record)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("parquet read: %w", err)
		}
		if n == 0 {
			break
		}
	}

	return t, nil
}

// parquetFormatter picks the text rendering for a leaf column.  Timestamps
// and dates are written in UTC so NormalizeTimestamp reads them like any
// delimited timestamp.
func parquetFormatter(lt *format.LogicalType) func(parquet.Value) string {
	switch {
	case lt != nil && lt.Timestamp != nil:
		unit := lt.Timestamp.Unit
		return func(v parquet.Value) string {
			if v.IsNull() {
				return ""
			}
			n := v.Int64()
			var ts time.Time
			switch {
			case unit.Millis != nil:
				ts = time.UnixMilli(n)
			case unit.Micros != nil:
				ts = time.UnixMicro(n)
			default:
				ts = time.Unix(0, n)
			}
			return ts.UTC().Format(time.RFC3339Nano)
		}
	case lt != nil && lt.Date != nil:
		return func(v parquet.Value) string {
			if v.IsNull() {
				return ""
			}
			return time.Unix(int64(v.Int32())*86400, 0).UTC().Format(DateLayout)
		}
	}
	return parquetValueString
}

func parquetValueString(v parquet.Value) string {
	if v.IsNull() {
		return ""
	}
	switch v.Kind() {
	case parquet.Boolean:
		return strconv.FormatBool(v.Boolean())
	case parquet.Int32:
		return strconv.FormatInt(int64(v.Int32()), 10)
	case parquet.Int64:
		return strconv.FormatInt(v.Int64(), 10)
	case parquet.Float:
		return strconv.FormatFloat(float64(v.Float()), 'f', -1, 32)
	case parquet.Double:
		return strconv.FormatFloat(v.Double(), 'f', -1, 64)
	default:
		return string(v.ByteArray())
	}
}
