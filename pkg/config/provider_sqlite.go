package config

import (
	"database/sql"
	"embed"
	"fmt"
	"strings"

	"github.com/chrissnell/solarcompare/pkg/migrate"
	_ "modernc.org/sqlite"
)

const defaultConfigName = "default"

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteProvider implements ConfigProvider for SQLite database configuration
type SQLiteProvider struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteProvider creates a new SQLite configuration provider and brings the
// configuration schema up to date
func NewSQLiteProvider(dbPath string) (*SQLiteProvider, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping SQLite database: %w", err)
	}

	migrator := migrate.NewMigrator(db, migrate.NewFSProvider(migrationsFS, "migrations", "config_schema_migrations"), nil)
	if err := migrator.MigrateUp(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate configuration schema: %w", err)
	}

	return &SQLiteProvider{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// LoadConfig loads the complete configuration from SQLite database
func (s *SQLiteProvider) LoadConfig() (*ConfigData, error) {
	config := &ConfigData{}

	sources, err := s.GetSources()
	if err != nil {
		return nil, fmt.Errorf("failed to load sources: %w", err)
	}
	config.Sources = sources

	dataset, err := s.GetDatasetConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load dataset config: %w", err)
	}
	config.Dataset = *dataset

	dashboard, err := s.GetDashboardConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load dashboard config: %w", err)
	}
	config.Dashboard = *dashboard

	logging, err := s.GetLoggingConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load logging config: %w", err)
	}
	config.Logging = *logging

	return config, nil
}

// GetSources returns source configurations in their configured order
func (s *SQLiteProvider) GetSources() ([]SourceData, error) {
	query := `
		SELECT source_id, path, format, latitude, longitude, altitude
		FROM sources
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
		ORDER BY position
	`

	rows, err := s.db.Query(query, defaultConfigName)
	if err != nil {
		return nil, fmt.Errorf("failed to query sources: %w", err)
	}
	defer rows.Close()

	var sources []SourceData
	for rows.Next() {
		var source SourceData
		var format sql.NullString
		var latitude, longitude, altitude sql.NullFloat64
		if err := rows.Scan(&source.ID, &source.Path, &format, &latitude, &longitude, &altitude); err != nil {
			return nil, fmt.Errorf("failed to scan source row: %w", err)
		}
		if format.Valid {
			source.Format = format.String
		}
		if latitude.Valid && longitude.Valid {
			source.Latitude = &latitude.Float64
			source.Longitude = &longitude.Float64
		}
		if altitude.Valid {
			source.Altitude = altitude.Float64
		}
		sources = append(sources, source)
	}

	return sources, rows.Err()
}

// GetDatasetConfig returns the dataset section, empty if none is stored
func (s *SQLiteProvider) GetDatasetConfig() (*DatasetData, error) {
	query := `
		SELECT source_field, timestamp_field, metrics, delimiter, on_unreadable, on_malformed_timestamp
		FROM dataset_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
	`

	var sourceField, timestampField, metrics, delimiter, onUnreadable, onMalformed sql.NullString
	err := s.db.QueryRow(query, defaultConfigName).Scan(
		&sourceField, &timestampField, &metrics, &delimiter, &onUnreadable, &onMalformed,
	)
	if err == sql.ErrNoRows {
		return &DatasetData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset config: %w", err)
	}

	dataset := &DatasetData{
		SourceField:          sourceField.String,
		TimestampField:       timestampField.String,
		Delimiter:            delimiter.String,
		OnUnreadable:         onUnreadable.String,
		OnMalformedTimestamp: onMalformed.String,
	}
	if metrics.Valid && metrics.String != "" {
		dataset.Metrics = strings.Split(metrics.String, ",")
	}
	return dataset, nil
}

// GetDashboardConfig returns the dashboard section, empty if none is stored
func (s *SQLiteProvider) GetDashboardConfig() (*DashboardData, error) {
	query := `
		SELECT listen_addr, port, cert_file, key_file, page_title, default_metric
		FROM dashboard_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
	`

	var listenAddr, cert, key, pageTitle, defaultMetric sql.NullString
	var port sql.NullInt64
	err := s.db.QueryRow(query, defaultConfigName).Scan(
		&listenAddr, &port, &cert, &key, &pageTitle, &defaultMetric,
	)
	if err == sql.ErrNoRows {
		return &DashboardData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query dashboard config: %w", err)
	}

	return &DashboardData{
		ListenAddr:    listenAddr.String,
		Port:          int(port.Int64),
		Cert:          cert.String,
		Key:           key.String,
		PageTitle:     pageTitle.String,
		DefaultMetric: defaultMetric.String,
	}, nil
}

// GetLoggingConfig returns the logging section, empty if none is stored
func (s *SQLiteProvider) GetLoggingConfig() (*LoggingData, error) {
	query := `
		SELECT file, max_size_mb, max_backups
		FROM logging_configs
		WHERE config_id = (SELECT id FROM configs WHERE name = ?)
	`

	var file sql.NullString
	var maxSize, maxBackups sql.NullInt64
	err := s.db.QueryRow(query, defaultConfigName).Scan(&file, &maxSize, &maxBackups)
	if err == sql.ErrNoRows {
		return &LoggingData{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query logging config: %w", err)
	}

	return &LoggingData{
		File:       file.String,
		MaxSizeMB:  int(maxSize.Int64),
		MaxBackups: int(maxBackups.Int64),
	}, nil
}

// IsReadOnly returns false since SQLite supports write operations
func (s *SQLiteProvider) IsReadOnly() bool {
	return false
}

// Close closes the database connection
func (s *SQLiteProvider) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// SaveConfig replaces the stored configuration with configData
func (s *SQLiteProvider) SaveConfig(configData *ConfigData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.upsertConfig(tx, defaultConfigName)
	if err != nil {
		return fmt.Errorf("failed to insert config: %w", err)
	}

	if err := s.clearExistingConfig(tx, configID); err != nil {
		return fmt.Errorf("failed to clear existing config: %w", err)
	}

	for i, source := range configData.Sources {
		if err := s.insertSource(tx, configID, i, &source); err != nil {
			return fmt.Errorf("failed to insert source %s: %w", source.ID, err)
		}
	}

	d := configData.Dataset
	_, err = tx.Exec(`
		INSERT INTO dataset_configs (
			config_id, source_field, timestamp_field, metrics, delimiter,
			on_unreadable, on_malformed_timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		configID, nullString(d.SourceField), nullString(d.TimestampField),
		nullString(strings.Join(d.Metrics, ",")), nullString(d.Delimiter),
		nullString(d.OnUnreadable), nullString(d.OnMalformedTimestamp),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dataset config: %w", err)
	}

	db := configData.Dashboard
	_, err = tx.Exec(`
		INSERT INTO dashboard_configs (
			config_id, listen_addr, port, cert_file, key_file, page_title, default_metric
		) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		configID, nullString(db.ListenAddr), db.Port, nullString(db.Cert),
		nullString(db.Key), nullString(db.PageTitle), nullString(db.DefaultMetric),
	)
	if err != nil {
		return fmt.Errorf("failed to insert dashboard config: %w", err)
	}

	l := configData.Logging
	_, err = tx.Exec(`
		INSERT INTO logging_configs (config_id, file, max_size_mb, max_backups)
		VALUES (?, ?, ?, ?)`,
		configID, nullString(l.File), l.MaxSizeMB, l.MaxBackups,
	)
	if err != nil {
		return fmt.Errorf("failed to insert logging config: %w", err)
	}

	return tx.Commit()
}

// AddSource appends a source to the stored configuration
func (s *SQLiteProvider) AddSource(source *SourceData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	configID, err := s.upsertConfig(tx, defaultConfigName)
	if err != nil {
		return fmt.Errorf("failed to get config ID: %w", err)
	}

	var position int
	err = tx.QueryRow("SELECT COALESCE(MAX(position) + 1, 0) FROM sources WHERE config_id = ?", configID).Scan(&position)
	if err != nil {
		return fmt.Errorf("failed to compute source position: %w", err)
	}

	if err := s.insertSource(tx, configID, position, source); err != nil {
		return fmt.Errorf("failed to insert source %s: %w", source.ID, err)
	}
	return tx.Commit()
}

// DeleteSource removes a source from the stored configuration
func (s *SQLiteProvider) DeleteSource(id string) error {
	result, err := s.db.Exec(`
		DELETE FROM sources
		WHERE source_id = ? AND config_id = (SELECT id FROM configs WHERE name = ?)`,
		id, defaultConfigName,
	)
	if err != nil {
		return fmt.Errorf("failed to delete source: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("source %s not found", id)
	}
	return nil
}

func (s *SQLiteProvider) upsertConfig(tx *sql.Tx, name string) (int64, error) {
	_, err := tx.Exec(`
		INSERT INTO configs (name, created_at, updated_at) VALUES (?, datetime('now'), datetime('now'))
		ON CONFLICT(name) DO UPDATE SET updated_at = datetime('now')`, name)
	if err != nil {
		return 0, err
	}

	var configID int64
	if err := tx.QueryRow("SELECT id FROM configs WHERE name = ?", name).Scan(&configID); err != nil {
		return 0, err
	}
	return configID, nil
}

func (s *SQLiteProvider) clearExistingConfig(tx *sql.Tx, configID int64) error {
	queries := []string{
		"DELETE FROM sources WHERE config_id = ?",
		"DELETE FROM dataset_configs WHERE config_id = ?",
		"DELETE FROM dashboard_configs WHERE config_id = ?",
		"DELETE FROM logging_configs WHERE config_id = ?",
	}

	for _, query := range queries {
		if _, err := tx.Exec(query, configID); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteProvider) insertSource(tx *sql.Tx, configID int64, position int, source *SourceData) error {
	_, err := tx.Exec(`
		INSERT INTO sources (config_id, position, source_id, path, format, latitude, longitude, altitude)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		configID, position, source.ID, source.Path, nullString(source.Format),
		nullFloat(source.Latitude), nullFloat(source.Longitude), source.Altitude,
	)
	return err
}

// Helper functions for handling nullable fields
func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
