// Package config loads complytrack settings from YAML files, a .env file
// and COMPLYTRACK_* environment variables.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Database   DatabaseConfig   `yaml:"database"`
	Actor      string           `yaml:"actor"`
	Recurrence RecurrenceConfig `yaml:"recurrence"`
	Jobs       JobsConfig       `yaml:"jobs"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	NATS       NATSConfig       `yaml:"nats"`
	Matrix     MatrixConfig     `yaml:"matrix"`
	Log        LogConfig        `yaml:"log"`
}

type DatabaseConfig struct {
	// Path to the SQLite file. Empty means ~/.complytrack/complytrack.db.
	Path string `yaml:"path"`
}

type RecurrenceConfig struct {
	MaxOccurrences int `yaml:"max_occurrences"`
}

// JobsConfig holds cron specs for the background jobs. An empty spec
// disables that job.
type JobsConfig struct {
	CertificateExpiry string `yaml:"certificate_expiry"`
	OverdueScan       string `yaml:"overdue_scan"`
}

type MetricsConfig struct {
	// Addr is the listen address of the /metrics endpoint. Empty disables it.
	Addr string `yaml:"addr"`
}

type NATSConfig struct {
	// URL of the NATS server. Empty disables event publishing.
	URL           string `yaml:"url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

type MatrixConfig struct {
	// WatchPath is a training matrix YAML file re-imported on change while
	// jobs run. Empty disables watching.
	WatchPath string        `yaml:"watch_path"`
	Debounce  time.Duration `yaml:"debounce"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Actor:      "system",
		Recurrence: RecurrenceConfig{MaxOccurrences: 1000},
		Jobs: JobsConfig{
			CertificateExpiry: "@hourly",
			OverdueScan:       "*/15 * * * *",
		},
		NATS:   NATSConfig{SubjectPrefix: "complytrack"},
		Matrix: MatrixConfig{Debounce: 500 * time.Millisecond},
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Actor) == "" {
		errs = append(errs, errors.New("actor is required"))
	}
	if c.Recurrence.MaxOccurrences <= 0 {
		errs = append(errs, fmt.Errorf("recurrence.max_occurrences must be positive, got %d", c.Recurrence.MaxOccurrences))
	}
	for name, spec := range map[string]string{
		"jobs.certificate_expiry": c.Jobs.CertificateExpiry,
		"jobs.overdue_scan":       c.Jobs.OverdueScan,
	} {
		if spec == "" {
			continue
		}
		if _, err := cronParser.Parse(spec); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	if _, err := c.Log.SlogLevel(); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("log.format must be text or json, got %q", f))
	}
	if c.Matrix.Debounce < 0 {
		errs = append(errs, errors.New("matrix.debounce must not be negative"))
	}
	return errors.Join(errs...)
}

// SlogLevel parses the configured log level.
func (l LogConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// DatabasePath resolves the database file, defaulting under home.
func (c *Config) DatabasePath(home string) string {
	if c.Database.Path != "" {
		return c.Database.Path
	}
	return filepath.Join(home, ".complytrack", "complytrack.db")
}

// LoadFromFile reads one YAML layer. Keys absent from the file stay zero and
// are skipped by Merge. Unknown keys are rejected.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := &Config{}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return cfg, nil
}

// Merge copies every non-zero field of other over c.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}
	if other.Database.Path != "" {
		c.Database.Path = other.Database.Path
	}
	if other.Actor != "" {
		c.Actor = other.Actor
	}
	if other.Recurrence.MaxOccurrences != 0 {
		c.Recurrence.MaxOccurrences = other.Recurrence.MaxOccurrences
	}
	if other.Jobs.CertificateExpiry != "" {
		c.Jobs.CertificateExpiry = other.Jobs.CertificateExpiry
	}
	if other.Jobs.OverdueScan != "" {
		c.Jobs.OverdueScan = other.Jobs.OverdueScan
	}
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
	}
	if other.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = other.NATS.SubjectPrefix
	}
	if other.Matrix.WatchPath != "" {
		c.Matrix.WatchPath = other.Matrix.WatchPath
	}
	if other.Matrix.Debounce != 0 {
		c.Matrix.Debounce = other.Matrix.Debounce
	}
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
	if other.Log.Format != "" {
		c.Log.Format = other.Log.Format
	}
}

// ApplyEnv overrides settings from COMPLYTRACK_* variables. Malformed
// numeric values are ignored.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	str := func(name string, dst *string) {
		if v, ok := lookup(name); ok && v != "" {
			*dst = v
		}
	}
	str("COMPLYTRACK_DB", &c.Database.Path)
	str("COMPLYTRACK_ACTOR", &c.Actor)
	str("COMPLYTRACK_NATS_URL", &c.NATS.URL)
	str("COMPLYTRACK_NATS_PREFIX", &c.NATS.SubjectPrefix)
	str("COMPLYTRACK_METRICS_ADDR", &c.Metrics.Addr)
	str("COMPLYTRACK_MATRIX", &c.Matrix.WatchPath)
	str("COMPLYTRACK_LOG_LEVEL", &c.Log.Level)
	str("COMPLYTRACK_LOG_FORMAT", &c.Log.Format)
	str("COMPLYTRACK_EXPIRY_SCHEDULE", &c.Jobs.CertificateExpiry)
	str("COMPLYTRACK_OVERDUE_SCHEDULE", &c.Jobs.OverdueScan)

	if v, ok := lookup("COMPLYTRACK_MAX_OCCURRENCES"); ok {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Recurrence.MaxOccurrences = n
		}
	}
	if v, ok := lookup("COMPLYTRACK_MATRIX_DEBOUNCE"); ok {
		if d, err := time.ParseDuration(v); err == nil && d >= 0 {
			c.Matrix.Debounce = d
		}
	}
}

// SaveToFile writes c as YAML, creating the parent directory.
func (c *Config) SaveToFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}
	return nil
}
