// Package export writes statistics and filtered rows in download formats.
package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/chrissnell/solarcompare/internal/analytics"
	"github.com/chrissnell/solarcompare/internal/dataset"
	"github.com/xuri/excelize/v2"
)

// StatsSheet is the name of the worksheet holding the summary table
const StatsSheet = "Statistics"

// RankingSheet is the name of the worksheet holding the ranking
const RankingSheet = "Ranking"

var statsHeader = []string{"Source", "Mean", "Median", "Std Dev", "Min", "Max", "Count"}

// StatsWorkbook writes summary and ranking to w as an xlsx workbook.
// Undefined statistics are left as empty cells.
func StatsWorkbook(w io.Writer, summary *analytics.Summary, ranking []analytics.Ranked) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", StatsSheet); err != nil {
		return fmt.Errorf("unable to rename sheet: %w", err)
	}

	f.SetCellValue(StatsSheet, "A1", fmt.Sprintf("Metric: %s", summary.Metric))
	for i, h := range statsHeader {
		cell, _ := excelize.CoordinatesToCellName(i+1, 2)
		f.SetCellValue(StatsSheet, cell, h)
	}
	f.SetColWidth(StatsSheet, "A", "A", 18)

	for i, r := range summary.Rows {
		row := i + 3
		f.SetCellValue(StatsSheet, fmt.Sprintf("A%d", row), r.Source)
		for j, v := range []analytics.Value{r.Mean, r.Median, r.StdDev, r.Min, r.Max} {
			if !v.Defined() {
				continue
			}
			cell, _ := excelize.CoordinatesToCellName(j+2, row)
			f.SetCellValue(StatsSheet, cell, float64(v))
		}
		f.SetCellValue(StatsSheet, fmt.Sprintf("G%d", row), r.Count)
	}

	if _, err := f.NewSheet(RankingSheet); err != nil {
		return fmt.Errorf("unable to create ranking sheet: %w", err)
	}
	f.SetCellValue(RankingSheet, "A1", "Rank")
	f.SetCellValue(RankingSheet, "B1", "Source")
	f.SetCellValue(RankingSheet, "C1", fmt.Sprintf("Mean %s", summary.Metric))
	for i, r := range ranking {
		row := i + 2
		f.SetCellValue(RankingSheet, fmt.Sprintf("A%d", row), i+1)
		f.SetCellValue(RankingSheet, fmt.Sprintf("B%d", row), r.Source)
		if r.Mean.Defined() {
			f.SetCellValue(RankingSheet, fmt.Sprintf("C%d", row), float64(r.Mean))
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("unable to write workbook: %w", err)
	}
	return nil
}

// CSV writes every row of ds with a header of its column names.  Missing
// cells are written empty and times use RFC 3339.
func CSV(w io.Writer, ds *dataset.Dataset) error {
	cw := csv.NewWriter(w)

	header := ds.Columns()
	cols := make([]*dataset.Column, len(header))
	for i, name := range header {
		cols[i], _ = ds.Column(name)
	}
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("unable to write header: %w", err)
	}

	record := make([]string, len(cols))
	for row := 0; row < ds.Len(); row++ {
		for i, c := range cols {
			record[i] = c.String(row)
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("unable to write row %d: %w", row, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
