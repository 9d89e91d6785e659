package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements ConfigProvider for YAML configuration files
type YAMLProvider struct {
	filename string
	config   *ConfigData
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the complete configuration from YAML file
func (y *YAMLProvider) LoadConfig() (*ConfigData, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	config := &ConfigData{}
	if err := yaml.UnmarshalStrict(cfgFile, config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", y.filename, err)
	}

	y.config = config
	return config, nil
}

// GetSources returns the configured sources
func (y *YAMLProvider) GetSources() ([]SourceData, error) {
	config, err := y.cached()
	if err != nil {
		return nil, err
	}
	return config.Sources, nil
}

// GetDatasetConfig returns the dataset section
func (y *YAMLProvider) GetDatasetConfig() (*DatasetData, error) {
	config, err := y.cached()
	if err != nil {
		return nil, err
	}
	return &config.Dataset, nil
}

// GetDashboardConfig returns the dashboard section
func (y *YAMLProvider) GetDashboardConfig() (*DashboardData, error) {
	config, err := y.cached()
	if err != nil {
		return nil, err
	}
	return &config.Dashboard, nil
}

func (y *YAMLProvider) cached() (*ConfigData, error) {
	if y.config == nil {
		return y.LoadConfig()
	}
	return y.config, nil
}

// IsReadOnly returns true since YAML files are treated as read-only
func (y *YAMLProvider) IsReadOnly() bool {
	return true
}

// Close is a no-op for YAML provider
func (y *YAMLProvider) Close() error {
	return nil
}
