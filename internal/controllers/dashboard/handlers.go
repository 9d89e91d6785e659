package dashboard

import (
	"bytes"
	"errors"
	"fmt"
	htmltemplate "html/template"
	"net/http"

	"github.com/chrissnell/solarcompare/internal/analytics"
	"github.com/chrissnell/solarcompare/internal/charts"
	"github.com/chrissnell/solarcompare/internal/constants"
	"github.com/chrissnell/solarcompare/internal/dataset"
	"github.com/chrissnell/solarcompare/internal/export"
	"github.com/chrissnell/solarcompare/pkg/responseformat"
	"github.com/gorilla/mux"
)

// statsPrecision is the number of decimals shown for statistics
const statsPrecision = 2

// Handlers contains all HTTP handlers for the dashboard
type Handlers struct {
	controller *Controller
	formatter  *responseformat.Formatter
}

// NewHandlers creates a new handlers instance
func NewHandlers(ctrl *Controller) *Handlers {
	return &Handlers{
		controller: ctrl,
		formatter:  responseformat.NewFormatter(),
	}
}

// filtered loads the dataset and applies the request's selection
func (h *Handlers) filtered(req *http.Request) (*dataset.Dataset, selection, error) {
	ds, err := h.controller.datasets.Get()
	if err != nil {
		return nil, selection{}, fmt.Errorf("dataset unavailable: %w", err)
	}

	sel, err := parseSelection(req, ds.Sources(), h.controller.cfg.DefaultMetric)
	if err != nil {
		return nil, selection{}, err
	}
	return dataset.Filter(ds, sel.Criteria), sel, nil
}

// statusFor maps an error to an HTTP status and a short message
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, dataset.ErrUnknownMetric):
		return http.StatusBadRequest, "unknown metric"
	case errors.Is(err, errBadQuery):
		return http.StatusBadRequest, "invalid query"
	case errors.Is(err, analytics.ErrNoTimeField):
		return http.StatusBadRequest, "no time column"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *Handlers) sendError(w http.ResponseWriter, req *http.Request, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		h.controller.logger.Errorw("request failed", "path", req.URL.Path, "error", err)
	}
	if werr := h.formatter.WriteError(w, req, status, message, err); werr != nil {
		h.controller.logger.Warnw("unable to write error response", "error", werr)
	}
}

func (h *Handlers) send(w http.ResponseWriter, req *http.Request, data any) {
	if err := h.formatter.WriteResponse(w, req, data); err != nil {
		h.controller.logger.Warnw("unable to write response", "path", req.URL.Path, "error", err)
	}
}

// GetSources returns every loaded source with its capabilities
func (h *Handlers) GetSources(w http.ResponseWriter, req *http.Request) {
	ds, err := h.controller.datasets.Get()
	if err != nil {
		h.sendError(w, req, fmt.Errorf("dataset unavailable: %w", err))
		return
	}
	h.send(w, req, ds.Capabilities())
}

// GetMetrics returns the metrics offered by the dashboard
func (h *Handlers) GetMetrics(w http.ResponseWriter, req *http.Request) {
	h.send(w, req, struct {
		Metrics []string `json:"metrics"`
		Default string   `json:"default"`
	}{h.controller.metrics, h.controller.cfg.DefaultMetric})
}

// GetStats returns the summary table for the selection
func (h *Handlers) GetStats(w http.ResponseWriter, req *http.Request) {
	ds, sel, err := h.filtered(req)
	if err != nil {
		h.sendError(w, req, err)
		return
	}

	summary, err := analytics.Summarize(ds, sel.Metric)
	if err != nil {
		h.sendError(w, req, err)
		return
	}
	h.send(w, req, summary)
}

// GetRanking returns sources ordered by mean of the selected metric
func (h *Handlers) GetRanking(w http.ResponseWriter, req *http.Request) {
	ds, sel, err := h.filtered(req)
	if err != nil {
		h.sendError(w, req, err)
		return
	}

	ranking, err := analytics.RankBy(ds, sel.Metric)
	if err != nil {
		h.sendError(w, req, err)
		return
	}
	h.send(w, req, ranking)
}

// GetTimeSeries returns daily means per source
func (h *Handlers) GetTimeSeries(w http.ResponseWriter, req *http.Request) {
	ds, sel, err := h.filtered(req)
	if err != nil {
		h.sendError(w, req, err)
		return
	}

	points, err := analytics.DailyAverages(ds, sel.Metric)
	if err != nil {
		h.sendError(w, req, err)
		return
	}
	h.send(w, req, points)
}

// GetOverview returns the headline figures
func (h *Handlers) GetOverview(w http.ResponseWriter, req *http.Request) {
	ds, sel, err := h.filtered(req)
	if err != nil {
		h.sendError(w, req, err)
		return
	}

	headline, err := analytics.Overview(ds, sel.Metric, len(sel.Criteria.Sources))
	if err != nil {
		h.sendError(w, req, err)
		return
	}
	h.send(w, req, headline)
}

// GetClearSky compares each source's measurements with its modelled
// clear-sky irradiance
func (h *Handlers) GetClearSky(w http.ResponseWriter, req *http.Request) {
	ds, sel, err := h.filtered(req)
	if err != nil {
		h.sendError(w, req, err)
		return
	}

	rows, err := analytics.ClearSkyIndex(ds, sel.Metric, h.controller.sites)
	if err != nil {
		h.sendError(w, req, err)
		return
	}
	h.send(w, req, rows)
}

// GetChart renders a PNG chart for the selection
func (h *Handlers) GetChart(w http.ResponseWriter, req *http.Request) {
	kind, err := charts.ParseKind(mux.Vars(req)["kind"])
	if err != nil {
		h.sendError(w, req, fmt.Errorf("%w: %v", errBadQuery, err))
		return
	}

	ds, sel, err := h.filtered(req)
	if err != nil {
		h.sendError(w, req, err)
		return
	}

	// Render into a buffer so a failure can still produce an error response
	var buf bytes.Buffer
	switch kind {
	case charts.KindBoxPlot:
		err = charts.BoxPlot(&buf, ds, sel.Metric, charts.DefaultSize)
	case charts.KindRanking:
		var ranking []analytics.Ranked
		if ranking, err = analytics.RankBy(ds, sel.Metric); err == nil {
			err = charts.Ranking(&buf, sel.Metric, ranking, charts.DefaultSize)
		}
	case charts.KindTimeSeries:
		var points []analytics.DailyPoint
		if points, err = analytics.DailyAverages(ds, sel.Metric); err == nil {
			err = charts.DailyLine(&buf, sel.Metric, points, charts.DefaultSize)
		}
	}
	if err != nil {
		h.sendError(w, req, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-cache")
	buf.WriteTo(w)
}

// ExportStats downloads the summary and ranking as an xlsx workbook
func (h *Handlers) ExportStats(w http.ResponseWriter, req *http.Request) {
	ds, sel, err := h.filtered(req)
	if err != nil {
		h.sendError(w, req, err)
		return
	}

	summary, err := analytics.Summarize(ds, sel.Metric)
	if err != nil {
		h.sendError(w, req, err)
		return
	}
	ranking, err := analytics.RankBy(ds, sel.Metric)
	if err != nil {
		h.sendError(w, req, err)
		return
	}

	var buf bytes.Buffer
	if err := export.StatsWorkbook(&buf, summary, ranking); err != nil {
		h.sendError(w, req, err)
		return
	}

	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="stats-%s.xlsx"`, sel.Metric))
	buf.WriteTo(w)
}

// ExportCSV downloads the filtered rows
func (h *Handlers) ExportCSV(w http.ResponseWriter, req *http.Request) {
	ds, _, err := h.filtered(req)
	if err != nil {
		h.sendError(w, req, err)
		return
	}

	var buf bytes.Buffer
	if err := export.CSV(&buf, ds); err != nil {
		h.sendError(w, req, err)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="filtered.csv"`)
	buf.WriteTo(w)
}

// Healthz reports whether the dataset is loaded
func (h *Handlers) Healthz(w http.ResponseWriter, req *http.Request) {
	ds, err := h.controller.datasets.Get()
	if err != nil {
		h.formatter.WriteError(w, req, http.StatusServiceUnavailable, "dataset unavailable", err)
		return
	}
	h.send(w, req, map[string]any{
		"status":  "ok",
		"rows":    ds.Len(),
		"sources": len(ds.Sources()),
		"version": constants.Version,
	})
}

type sourceOption struct {
	Name     string
	Selected bool
}

type metricOption struct {
	Name     string
	Selected bool
}

// indexData is rendered by dashboard.html.tmpl
type indexData struct {
	PageTitle string
	Version   string
	Sources   []sourceOption
	Metrics   []metricOption
	Metric    string
	Start     string
	End       string
	Extent    string
	HasTime   bool
	Query     htmltemplate.URL
	Headline  *analytics.Headline
	Summary   *analytics.Summary
	Ranking   []analytics.Ranked
	ClearSky  []analytics.ClearSky
	Error     string
}

var templateFuncs = htmltemplate.FuncMap{
	"value": func(v analytics.Value) string {
		if !v.Defined() {
			return "n/a"
		}
		return fmt.Sprintf("%.*f", statsPrecision, float64(v))
	},
	"inc": func(i int) int { return i + 1 },
}

// ServeIndex renders the dashboard page
func (h *Handlers) ServeIndex(w http.ResponseWriter, req *http.Request) {
	view, err := htmltemplate.New("dashboard.html.tmpl").Funcs(templateFuncs).ParseFS(h.controller.FS, "dashboard.html.tmpl")
	if err != nil {
		h.sendError(w, req, fmt.Errorf("unable to parse dashboard template: %w", err))
		return
	}

	ds, err := h.controller.datasets.Get()
	if err != nil {
		h.sendError(w, req, fmt.Errorf("dataset unavailable: %w", err))
		return
	}

	data := indexData{
		PageTitle: h.controller.cfg.PageTitle,
		Version:   constants.Version,
		HasTime:   ds.TimeField() != "",
	}
	if first, last, ok := dataset.Extent(ds); ok {
		data.Extent = fmt.Sprintf("%s to %s", first.Format(dataset.DateLayout), last.Format(dataset.DateLayout))
	}

	status := http.StatusOK
	sel, err := parseSelection(req, ds.Sources(), h.controller.cfg.DefaultMetric)
	if err == nil {
		err = h.fillIndex(&data, ds, sel)
	}
	if err != nil {
		status, _ = statusFor(err)
		data.Error = err.Error()
		if sel.Metric == "" {
			sel.Metric = h.controller.cfg.DefaultMetric
		}
	}

	data.Metric = sel.Metric
	data.Start, data.End = sel.Start, sel.End
	for _, s := range ds.Sources() {
		data.Sources = append(data.Sources, sourceOption{Name: s, Selected: sel.selected(s)})
	}
	for _, m := range h.controller.metrics {
		data.Metrics = append(data.Metrics, metricOption{Name: m, Selected: m == sel.Metric})
	}

	var buf bytes.Buffer
	if err := view.Execute(&buf, data); err != nil {
		h.controller.logger.Errorw("error executing dashboard template", "error", err)
		http.Error(w, "unable to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func (h *Handlers) fillIndex(data *indexData, ds *dataset.Dataset, sel selection) error {
	subset := dataset.Filter(ds, sel.Criteria)

	summary, err := analytics.Summarize(subset, sel.Metric)
	if err != nil {
		return err
	}
	ranking, err := analytics.RankBy(subset, sel.Metric)
	if err != nil {
		return err
	}
	headline, err := analytics.Overview(subset, sel.Metric, len(sel.Criteria.Sources))
	if err != nil {
		return err
	}

	// Clear-sky figures only make sense for irradiance metrics
	if len(h.controller.sites) > 0 && ds.TimeField() != "" && isIrradiance(sel.Metric) {
		if data.ClearSky, err = analytics.ClearSkyIndex(subset, sel.Metric, h.controller.sites); err != nil {
			return err
		}
	}

	data.Summary = summary.Rounded(statsPrecision)
	data.Ranking = ranking
	data.Headline = headline
	data.Query = htmltemplate.URL(sel.query().Encode())
	return nil
}

func isIrradiance(metric string) bool {
	switch metric {
	case "GHI", "ModA", "ModB":
		return true
	}
	return false
}
