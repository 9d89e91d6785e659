package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
sources:
  - id: Benin
    path: data/benin_clean.csv
    latitude: 11.87
    longitude: 3.39
  - id: Togo
    path: data/togo_clean.csv.gz
    format: csv.gz
dataset:
  metrics: [GHI, DNI, DHI]
  on_unreadable: abort
dashboard:
  port: 9000
  default_metric: DNI
logging:
  file: /var/log/solarcompare.log
  max_size_mb: 10
`

func writeYAML(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestYAMLProviderLoad(t *testing.T) {
	p := NewYAMLProvider(writeYAML(t, sampleYAML))
	defer p.Close()

	cfg, err := Load(p)
	require.NoError(t, err)

	require.Len(t, cfg.Sources, 2)
	assert.Equal(t, SourceData{ID: "Togo", Path: "data/togo_clean.csv.gz", Format: "csv.gz"}, cfg.Sources[1])

	site, ok := cfg.Sources[0].Site()
	require.True(t, ok)
	assert.Equal(t, 11.87, site.Latitude)
	assert.Equal(t, 3.39, site.Longitude)
	_, ok = cfg.Sources[1].Site()
	assert.False(t, ok)
	assert.Equal(t, []string{"GHI", "DNI", "DHI"}, cfg.Dataset.Metrics)
	assert.Equal(t, "abort", cfg.Dataset.OnUnreadable)
	assert.Equal(t, 9000, cfg.Dashboard.Port)
	assert.Equal(t, "DNI", cfg.Dashboard.DefaultMetric)
	assert.Equal(t, 10, cfg.Logging.MaxSizeMB)

	// defaults
	assert.Equal(t, "Country", cfg.Dataset.SourceField)
	assert.Equal(t, "Timestamp", cfg.Dataset.TimestampField)
	assert.Equal(t, "drop", cfg.Dataset.OnMalformedTimestamp)
	assert.Equal(t, "Solar Irradiance Dashboard", cfg.Dashboard.PageTitle)

	assert.True(t, p.IsReadOnly())
	dash, err := p.GetDashboardConfig()
	require.NoError(t, err)
	assert.Equal(t, 9000, dash.Port)
}

func TestYAMLProviderErrors(t *testing.T) {
	_, err := NewYAMLProvider(filepath.Join(t.TempDir(), "missing.yaml")).LoadConfig()
	assert.Error(t, err)

	_, err = NewYAMLProvider(writeYAML(t, "dashbaord:\n  port: 1\n")).LoadConfig()
	assert.Error(t, err, "unknown keys are rejected")
}

func TestApplyDefaultsEmpty(t *testing.T) {
	cfg := &ConfigData{}
	ApplyDefaults(cfg)

	assert.Equal(t, DefaultSources(), cfg.Sources)
	assert.Equal(t, DefaultMetrics, cfg.Dataset.Metrics)
	assert.Equal(t, "skip", cfg.Dataset.OnUnreadable)
	assert.Equal(t, 8501, cfg.Dashboard.Port)
	assert.Equal(t, "GHI", cfg.Dashboard.DefaultMetric)
	require.NoError(t, Validate(cfg))

	cfg.Dataset.Metrics[0] = "changed"
	assert.Equal(t, "GHI", DefaultMetrics[0])
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("SOLARCOMPARE_DASHBOARD_PORT", "7000")
	t.Setenv("SOLARCOMPARE_DATASET_METRICS", "GHI,Tamb")
	t.Setenv("SOLARCOMPARE_LOGGING_FILE", "/tmp/sc.log")

	cfg := &ConfigData{Dashboard: DashboardData{Port: 9000, PageTitle: "kept"}}
	require.NoError(t, ApplyEnv(cfg))

	assert.Equal(t, 7000, cfg.Dashboard.Port)
	assert.Equal(t, "kept", cfg.Dashboard.PageTitle)
	assert.Equal(t, []string{"GHI", "Tamb"}, cfg.Dataset.Metrics)
	assert.Equal(t, "/tmp/sc.log", cfg.Logging.File)

	t.Setenv("SOLARCOMPARE_DASHBOARD_PORT", "not-a-port")
	assert.Error(t, ApplyEnv(cfg))
}

func TestValidate(t *testing.T) {
	valid := func() *ConfigData {
		cfg := &ConfigData{}
		ApplyDefaults(cfg)
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*ConfigData)
	}{
		{"duplicate source id", func(c *ConfigData) { c.Sources[1].ID = c.Sources[0].ID }},
		{"missing path", func(c *ConfigData) { c.Sources[0].Path = "" }},
		{"unknown format", func(c *ConfigData) { c.Sources[0].Format = "xlsx" }},
		{"latitude out of range", func(c *ConfigData) { c.Sources[0].Latitude = coord(95) }},
		{"latitude without longitude", func(c *ConfigData) { c.Sources[0].Longitude = nil }},
		{"bad unreadable policy", func(c *ConfigData) { c.Dataset.OnUnreadable = "ignore" }},
		{"bad timestamp policy", func(c *ConfigData) { c.Dataset.OnMalformedTimestamp = "keep" }},
		{"long delimiter", func(c *ConfigData) { c.Dataset.Delimiter = ";;" }},
		{"port out of range", func(c *ConfigData) { c.Dashboard.Port = 70000 }},
		{"cert without key", func(c *ConfigData) { c.Dashboard.Cert = "cert.pem" }},
		{"default metric not loaded", func(c *ConfigData) { c.Dashboard.DefaultMetric = "Voltage" }},
	}

	require.NoError(t, Validate(valid()))
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}
}

func TestSQLiteProvider(t *testing.T) {
	p, err := NewSQLiteProvider(filepath.Join(t.TempDir(), "config.db"))
	require.NoError(t, err)
	defer p.Close()

	empty, err := p.LoadConfig()
	require.NoError(t, err)
	assert.Empty(t, empty.Sources)

	want := &ConfigData{
		Sources: []SourceData{
			{ID: "Togo", Path: "data/togo_clean.csv", Latitude: coord(10.86), Longitude: coord(0.21), Altitude: 330},
			{ID: "Benin", Path: "data/benin.parquet", Format: "parquet"},
		},
		Dataset: DatasetData{
			SourceField: "Country",
			Metrics:     []string{"GHI", "DNI"},
			Delimiter:   ";",
		},
		Dashboard: DashboardData{ListenAddr: "127.0.0.1", Port: 8080, Cert: "c.pem", Key: "k.pem"},
		Logging:   LoggingData{File: "sc.log", MaxBackups: 3},
	}
	require.NoError(t, p.SaveConfig(want))

	got, err := p.LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, want, got)

	// saving again replaces rather than appends
	require.NoError(t, p.SaveConfig(want))
	sources, err := p.GetSources()
	require.NoError(t, err)
	assert.Len(t, sources, 2)

	require.NoError(t, p.AddSource(&SourceData{ID: "Sierra Leone", Path: "data/sl.csv"}))
	sources, err = p.GetSources()
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, "Sierra Leone", sources[2].ID)

	require.NoError(t, p.DeleteSource("Togo"))
	assert.Error(t, p.DeleteSource("Togo"))
	sources, err = p.GetSources()
	require.NoError(t, err)
	assert.Equal(t, "Benin", sources[0].ID)

	assert.False(t, p.IsReadOnly())
}
