package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
)

// EnvPrefix is the prefix of environment variables that override file settings,
// e.g. SOLARCOMPARE_DASHBOARD_PORT
const EnvPrefix = "SOLARCOMPARE"

// DefaultMetrics are the numeric fields of the regional solar datasets
var DefaultMetrics = []string{
	"GHI", "DNI", "DHI", "ModA", "ModB", "Tamb", "RH", "WS", "WSgust", "WSstdev",
	"WD", "WDstdev", "BP", "Cleaning", "Precipitation", "TModA", "TModB",
}

// DefaultSources are used when the configuration names no sources
func DefaultSources() []SourceData {
	return []SourceData{
		{ID: "Benin", Path: "data/benin_clean.csv", Latitude: coord(11.87), Longitude: coord(3.39), Altitude: 170},
		{ID: "Sierra Leone", Path: "data/sierraleone-bumbuna_clean.csv", Latitude: coord(9.05), Longitude: coord(-11.74), Altitude: 240},
		{ID: "Togo", Path: "data/togo_clean.csv", Latitude: coord(10.86), Longitude: coord(0.21), Altitude: 330},
	}
}

func coord(v float64) *float64 {
	return &v
}

const (
	defaultSourceField    = "Country"
	defaultTimestampField = "Timestamp"
	defaultPort           = 8501
	defaultPageTitle      = "Solar Irradiance Dashboard"
	defaultMetric         = "GHI"
)

// Load reads the configuration from p, fills defaults, applies environment
// overrides and validates the result
func Load(p ConfigProvider) (*ConfigData, error) {
	cfg, err := p.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("could not load configuration: %w", err)
	}

	ApplyDefaults(cfg)

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills unset settings
func ApplyDefaults(cfg *ConfigData) {
	if len(cfg.Sources) == 0 {
		cfg.Sources = DefaultSources()
	}

	if cfg.Dataset.SourceField == "" {
		cfg.Dataset.SourceField = defaultSourceField
	}
	if cfg.Dataset.TimestampField == "" {
		cfg.Dataset.TimestampField = defaultTimestampField
	}
	if len(cfg.Dataset.Metrics) == 0 {
		cfg.Dataset.Metrics = slices.Clone(DefaultMetrics)
	}
	if cfg.Dataset.OnUnreadable == "" {
		cfg.Dataset.OnUnreadable = "skip"
	}
	if cfg.Dataset.OnMalformedTimestamp == "" {
		cfg.Dataset.OnMalformedTimestamp = "drop"
	}

	if cfg.Dashboard.Port == 0 {
		cfg.Dashboard.Port = defaultPort
	}
	if cfg.Dashboard.PageTitle == "" {
		cfg.Dashboard.PageTitle = defaultPageTitle
	}
	if cfg.Dashboard.DefaultMetric == "" {
		cfg.Dashboard.DefaultMetric = defaultMetric
	}
}

// ApplyEnv overrides settings from SOLARCOMPARE_* environment variables.
// Variables that are not set leave the current value in place.
func ApplyEnv(cfg *ConfigData) error {
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return fmt.Errorf("failed to load config from env: %w", err)
	}
	return nil
}

var validate = validator.New()

// Validate checks the configuration for errors
func Validate(cfg *ConfigData) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("config validation failed: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("config validation failed: %w", err)
	}

	for _, src := range cfg.Sources {
		if (src.Latitude == nil) != (src.Longitude == nil) {
			return fmt.Errorf("config validation failed: source %q needs both latitude and longitude", src.ID)
		}
	}

	if cfg.Dashboard.DefaultMetric != "" && !slices.Contains(cfg.Dataset.Metrics, cfg.Dashboard.DefaultMetric) {
		return fmt.Errorf("config validation failed: default metric %q is not one of the dataset metrics", cfg.Dashboard.DefaultMetric)
	}
	return nil
}
