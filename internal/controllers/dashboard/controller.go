// Package dashboard serves the interactive solar comparison dashboard and
// its JSON, chart and export endpoints.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"time"

	"github.com/chrissnell/solarcompare/internal/dataset"
	"github.com/chrissnell/solarcompare/internal/log"
	"github.com/chrissnell/solarcompare/pkg/config"
	"github.com/chrissnell/solarcompare/pkg/solar"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// DatasetProvider returns the published dataset
type DatasetProvider interface {
	Get() (*dataset.Dataset, error)
}

// Controller represents the dashboard HTTP server
type Controller struct {
	cfg      config.DashboardData
	metrics  []string
	datasets DatasetProvider
	Server   http.Server
	FS       fs.FS
	logger   *zap.SugaredLogger
	sites    map[string]solar.Site
	handlers *Handlers
	stats    *requestMetrics
}

// NewController creates a new dashboard controller.  metrics is the list of
// metric names offered in the selector.
func NewController(cfg config.DashboardData, metrics []string, datasets DatasetProvider, logger *zap.SugaredLogger) (*Controller, error) {
	if datasets == nil {
		return nil, errors.New("dashboard requires a dataset provider")
	}
	if len(metrics) == 0 {
		return nil, errors.New("dashboard requires at least one metric")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}

	// If a ListenAddr was not provided, listen on all interfaces
	if cfg.ListenAddr == "" {
		logger.Info("dashboard.listen_addr not provided; defaulting to 0.0.0.0 (all interfaces)")
		cfg.ListenAddr = "0.0.0.0"
	}

	if cfg.Port == 0 {
		logger.Info("dashboard.port not provided; defaulting to 8501")
		cfg.Port = 8501
	}

	if cfg.DefaultMetric == "" {
		cfg.DefaultMetric = metrics[0]
	}

	ctrl := &Controller{
		cfg:      cfg,
		metrics:  metrics,
		datasets: datasets,
		FS:       GetAssets(),
		logger:   logger,
		stats:    newRequestMetrics(),
	}
	ctrl.handlers = NewHandlers(ctrl)

	ctrl.Server.Addr = fmt.Sprintf("%v:%v", cfg.ListenAddr, cfg.Port)
	ctrl.Server.Handler = handlers.RecoveryHandler(handlers.RecoveryLogger(recoveryLogger{logger}))(
		handlers.CompressHandler(ctrl.setupRouter()),
	)
	ctrl.Server.ReadHeaderTimeout = 10 * time.Second

	return ctrl, nil
}

// recoveryLogger reports handler panics through zap
type recoveryLogger struct {
	logger *zap.SugaredLogger
}

func (r recoveryLogger) Println(args ...interface{}) {
	r.logger.Error(append([]interface{}{"recovered from panic: "}, args...)...)
}

// SetSites sets the station locations used by the clear-sky comparison,
// keyed by source identifier
func (c *Controller) SetSites(sites map[string]solar.Site) {
	c.sites = sites
}

// Handler returns the dashboard's root HTTP handler
func (c *Controller) Handler() http.Handler {
	return c.Server.Handler
}

// Run serves the dashboard until ctx is cancelled
func (c *Controller) Run(ctx context.Context) error {
	log.Infof("Starting dashboard on %s", c.Server.Addr)

	errCh := make(chan error, 1)
	go func() {
		var err error
		if c.cfg.Cert != "" && c.cfg.Key != "" {
			err = c.Server.ListenAndServeTLS(c.cfg.Cert, c.cfg.Key)
		} else {
			err = c.Server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("dashboard server error: %w", err)
			return
		}
		errCh <- nil
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down the dashboard...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("dashboard shutdown: %w", err)
	}
	return <-errCh
}

// setupRouter configures the HTTP router with all endpoints
func (c *Controller) setupRouter() *mux.Router {
	router := mux.NewRouter()

	router.Use(log.HTTPMiddleware(c.logger))
	router.Use(c.stats.middleware)

	api := router.PathPrefix("/api").Methods(http.MethodGet).Subrouter()
	api.HandleFunc("/sources", c.handlers.GetSources)
	api.HandleFunc("/metrics", c.handlers.GetMetrics)
	api.HandleFunc("/stats", c.handlers.GetStats)
	api.HandleFunc("/ranking", c.handlers.GetRanking)
	api.HandleFunc("/timeseries", c.handlers.GetTimeSeries)
	api.HandleFunc("/overview", c.handlers.GetOverview)
	api.HandleFunc("/clearsky", c.handlers.GetClearSky)

	router.HandleFunc("/charts/{kind}.png", c.handlers.GetChart).Methods(http.MethodGet)
	router.HandleFunc("/export/stats.xlsx", c.handlers.ExportStats).Methods(http.MethodGet)
	router.HandleFunc("/export/filtered.csv", c.handlers.ExportCSV).Methods(http.MethodGet)

	router.Handle("/metrics", c.stats.handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", c.handlers.Healthz).Methods(http.MethodGet)

	router.HandleFunc("/", c.handlers.ServeIndex).Methods(http.MethodGet)
	router.PathPrefix("/css/").Handler(http.FileServer(http.FS(c.FS)))

	return router
}
