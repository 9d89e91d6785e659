// Package charts renders the dashboard figures as PNG images using gonum/plot.
package charts

import (
	"fmt"
	"image/color"
	"io"

	"github.com/chrissnell/solarcompare/internal/analytics"
	"github.com/chrissnell/solarcompare/internal/dataset"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Kind names a chart served by the dashboard
type Kind string

const (
	KindBoxPlot    Kind = "boxplot"
	KindRanking    Kind = "ranking"
	KindTimeSeries Kind = "timeseries"
)

// ParseKind validates a chart name taken from a URL
func ParseKind(s string) (Kind, error) {
	switch k := Kind(s); k {
	case KindBoxPlot, KindRanking, KindTimeSeries:
		return k, nil
	}
	return "", fmt.Errorf("unknown chart kind %q", s)
}

// Size is the rendered image size
type Size struct {
	Width  vg.Length
	Height vg.Length
}

// DefaultSize matches the figure size used on the dashboard
var DefaultSize = Size{Width: 8 * vg.Inch, Height: 4 * vg.Inch}

var barColor = color.RGBA{R: 70, G: 130, B: 180, A: 255}

// BoxPlot draws the distribution of metric for each source of ds.  Sources
// with no values keep their slot on the x axis but get no box.
func BoxPlot(w io.Writer, ds *dataset.Dataset, metric string, size Size) error {
	col, err := ds.NumericColumn(metric)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = fmt.Sprintf("%s distribution by source", metric)
	p.Y.Label.Text = metric

	order, groups := ds.GroupBySource()
	for i, source := range order {
		values := col.Floats(groups[source])
		if len(values) == 0 {
			continue
		}
		box, err := plotter.NewBoxPlot(vg.Points(30), float64(i), plotter.Values(values))
		if err != nil {
			return fmt.Errorf("box plot for %s: %w", source, err)
		}
		box.FillColor = plotutil.Color(i)
		p.Add(box)
	}
	if len(order) > 0 {
		p.NominalX(order...)
	}

	return render(w, p, size)
}

// Ranking draws a bar per source, highest mean first.  Sources with an
// undefined mean are left out.
func Ranking(w io.Writer, metric string, ranking []analytics.Ranked, size Size) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Average %s by source", metric)
	p.Y.Label.Text = metric

	var values plotter.Values
	var labels []string
	for _, r := range ranking {
		if !r.Mean.Defined() {
			continue
		}
		values = append(values, float64(r.Mean))
		labels = append(labels, r.Source)
	}

	if len(values) > 0 {
		bars, err := plotter.NewBarChart(values, vg.Points(30))
		if err != nil {
			return fmt.Errorf("bar chart: %w", err)
		}
		bars.Color = barColor
		bars.LineStyle.Width = vg.Length(0)
		p.Add(bars)
		p.NominalX(labels...)
		if p.Y.Min > 0 {
			p.Y.Min = 0
		}
	}

	return render(w, p, size)
}

// DailyLine draws one line of daily means per source
func DailyLine(w io.Writer, metric string, points []analytics.DailyPoint, size Size) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Daily average %s", metric)
	p.Y.Label.Text = metric
	p.X.Tick.Marker = plot.TimeTicks{Format: dataset.DateLayout}

	var order []string
	series := make(map[string]plotter.XYs)
	for _, pt := range points {
		if !pt.Mean.Defined() {
			continue
		}
		if _, ok := series[pt.Source]; !ok {
			order = append(order, pt.Source)
		}
		series[pt.Source] = append(series[pt.Source], plotter.XY{
			X: float64(pt.Date.Unix()),
			Y: float64(pt.Mean),
		})
	}

	for i, source := range order {
		line, err := plotter.NewLine(series[source])
		if err != nil {
			return fmt.Errorf("line for %s: %w", source, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(source, line)
	}
	p.Legend.Top = true

	return render(w, p, size)
}

func render(w io.Writer, p *plot.Plot, size Size) error {
	wt, err := p.WriterTo(size.Width, size.Height, "png")
	if err != nil {
		return fmt.Errorf("unable to create png writer: %w", err)
	}
	if _, err := wt.WriteTo(w); err != nil {
		return fmt.Errorf("unable to write png: %w", err)
	}
	return nil
}
