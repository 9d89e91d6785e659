package config

import "github.com/chrissnell/solarcompare/pkg/solar"

// ConfigProvider defines the interface for configuration data sources
type ConfigProvider interface {
	// Load complete configuration
	LoadConfig() (*ConfigData, error)

	// Get specific configuration sections
	GetSources() ([]SourceData, error)
	GetDatasetConfig() (*DatasetData, error)
	GetDashboardConfig() (*DashboardData, error)

	IsReadOnly() bool
	Close() error
}

// ConfigData represents the complete configuration structure
type ConfigData struct {
	Sources   []SourceData  `json:"sources" yaml:"sources" ignored:"true" validate:"unique=ID,dive"`
	Dataset   DatasetData   `json:"dataset" yaml:"dataset" envconfig:"DATASET"`
	Dashboard DashboardData `json:"dashboard" yaml:"dashboard" envconfig:"DASHBOARD"`
	Logging   LoggingData   `json:"logging" yaml:"logging" envconfig:"LOGGING"`
}

// SourceData describes one regional input file
type SourceData struct {
	ID     string `json:"id" yaml:"id" validate:"required"`
	Path   string `json:"path" yaml:"path" validate:"required"`
	Format string `json:"format,omitempty" yaml:"format,omitempty" validate:"omitempty,oneof=csv csv.gz csv.zst parquet"`

	// Station location, used for the clear-sky comparison
	Latitude  *float64 `json:"latitude,omitempty" yaml:"latitude,omitempty" validate:"omitempty,gte=-90,lte=90"`
	Longitude *float64 `json:"longitude,omitempty" yaml:"longitude,omitempty" validate:"omitempty,gte=-180,lte=180"`
	Altitude  float64  `json:"altitude,omitempty" yaml:"altitude,omitempty"`
}

// Site returns the station location, if both coordinates are set
func (s SourceData) Site() (solar.Site, bool) {
	if s.Latitude == nil || s.Longitude == nil {
		return solar.Site{}, false
	}
	return solar.Site{Latitude: *s.Latitude, Longitude: *s.Longitude, Altitude: s.Altitude}, true
}

// DatasetData controls how sources are loaded and normalized
type DatasetData struct {
	SourceField          string   `json:"source_field,omitempty" yaml:"source_field,omitempty" split_words:"true"`
	TimestampField       string   `json:"timestamp_field,omitempty" yaml:"timestamp_field,omitempty" split_words:"true"`
	Metrics              []string `json:"metrics,omitempty" yaml:"metrics,omitempty" split_words:"true" validate:"dive,required"`
	Delimiter            string   `json:"delimiter,omitempty" yaml:"delimiter,omitempty" split_words:"true" validate:"omitempty,len=1"`
	OnUnreadable         string   `json:"on_unreadable,omitempty" yaml:"on_unreadable,omitempty" split_words:"true" validate:"omitempty,oneof=skip abort"`
	OnMalformedTimestamp string   `json:"on_malformed_timestamp,omitempty" yaml:"on_malformed_timestamp,omitempty" split_words:"true" validate:"omitempty,oneof=drop fail"`
}

// DashboardData configures the HTTP dashboard
type DashboardData struct {
	ListenAddr    string `json:"listen_addr,omitempty" yaml:"listen_addr,omitempty" split_words:"true"`
	Port          int    `json:"port,omitempty" yaml:"port,omitempty" split_words:"true" validate:"gte=0,lte=65535"`
	Cert          string `json:"cert,omitempty" yaml:"cert,omitempty" split_words:"true" validate:"required_with=Key"`
	Key           string `json:"key,omitempty" yaml:"key,omitempty" split_words:"true" validate:"required_with=Cert"`
	PageTitle     string `json:"page_title,omitempty" yaml:"page_title,omitempty" split_words:"true"`
	DefaultMetric string `json:"default_metric,omitempty" yaml:"default_metric,omitempty" split_words:"true"`
}

// LoggingData configures optional rotated file logging
type LoggingData struct {
	File       string `json:"file,omitempty" yaml:"file,omitempty" split_words:"true"`
	MaxSizeMB  int    `json:"max_size_mb,omitempty" yaml:"max_size_mb,omitempty" split_words:"true" validate:"gte=0"`
	MaxBackups int    `json:"max_backups,omitempty" yaml:"max_backups,omitempty" split_words:"true" validate:"gte=0"`
}
