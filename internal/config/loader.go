package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

const (
	ProjectConfigFile = "complytrack.yaml"
	UserConfigDir     = ".config/complytrack"
	UserConfigFile    = "config.yaml"
	EnvFile           = ".env"
)

// Loader resolves the layered configuration:
//  1. defaults
//  2. user config (~/.config/complytrack/config.yaml)
//  3. project config (complytrack.yaml in the working or a parent directory)
//  4. .env in the working directory
//  5. process environment
//
// Later layers win. Process variables win over .env entries.
type Loader struct {
	logger  *slog.Logger
	homeDir string
	workDir string
	lookup  func(string) (string, bool)
}

// LoaderOption overrides where a Loader looks.
type LoaderOption func(*Loader)

func WithHomeDir(dir string) LoaderOption {
	return func(l *Loader) { l.homeDir = dir }
}

func WithWorkDir(dir string) LoaderOption {
	return func(l *Loader) { l.workDir = dir }
}

func WithLookupEnv(fn func(string) (string, bool)) LoaderOption {
	return func(l *Loader) { l.lookup = fn }
}

func NewLoader(logger *slog.Logger, opts ...LoaderOption) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Loader{logger: logger, lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(l)
	}
	if l.homeDir == "" {
		l.homeDir, _ = os.UserHomeDir()
	}
	if l.workDir == "" {
		l.workDir, _ = os.Getwd()
	}
	return l
}

// Load resolves and validates the configuration. A malformed layer is an
// error; a missing one is skipped.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if path := l.UserConfigPath(); path != "" {
		if err := l.mergeFile(cfg, path); err != nil {
			return nil, err
		}
	}
	if path := l.findProjectConfig(); path != "" {
		if err := l.mergeFile(cfg, path); err != nil {
			return nil, err
		}
	} else {
		l.logger.Debug("no project config found", "dir", l.workDir)
	}

	dotenv, err := l.readDotenv()
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(func(name string) (string, bool) {
		if v, ok := l.lookup(name); ok {
			return v, true
		}
		v, ok := dotenv[name]
		return v, ok
	})

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// UserConfigPath is the per-user config file location.
func (l *Loader) UserConfigPath() string {
	if l.homeDir == "" {
		return ""
	}
	return filepath.Join(l.homeDir, UserConfigDir, UserConfigFile)
}

// EnsureUserConfig writes the defaults to the user config file unless it
// already exists.
func (l *Loader) EnsureUserConfig() (string, error) {
	path := l.UserConfigPath()
	if path == "" {
		return "", errors.New("no home directory")
	}
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}
	if err := DefaultConfig().SaveToFile(path); err != nil {
		return "", err
	}
	l.logger.Info("created default user config", "path", path)
	return path, nil
}

func (l *Loader) mergeFile(cfg *Config, path string) error {
	layer, err := LoadFromFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	l.logger.Debug("loaded config", "path", path)
	cfg.Merge(layer)
	return nil
}

func (l *Loader) findProjectConfig() string {
	if l.workDir == "" {
		return ""
	}
	dir := l.workDir
	for {
		path := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(path); err == nil {
			return path
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func (l *Loader) readDotenv() (map[string]string, error) {
	if l.workDir == "" {
		return nil, nil
	}
	path := filepath.Join(l.workDir, EnvFile)
	values, err := godotenv.Read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	l.logger.Debug("loaded env file", "path", path, "keys", len(values))
	return values, nil
}
