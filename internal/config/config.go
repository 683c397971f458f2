// Package config loads runtime settings from defaults, an optional YAML
// file, and EVENTCOMPASS_* environment variables, in increasing order of
// precedence. In serve mode the file is watched so the backend address
// can be repointed without a restart.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds every runtime setting.
type Config struct {
	// APIBaseURL is the backend address, e.g. http://localhost:8000.
	APIBaseURL string `mapstructure:"api_base_url"`
	// DatabasePath is the local SQLite file.
	DatabasePath string `mapstructure:"database_path"`
	// DashboardPort is the WebSocket dashboard listen port.
	DashboardPort int `mapstructure:"dashboard_port"`
	// ProbeInterval is how often serve mode probes the backend's health
	// endpoint.
	ProbeInterval time.Duration `mapstructure:"probe_interval"`
	// LogFile, when set, routes serve-mode logs through a rotating file
	// instead of stderr.
	LogFile string `mapstructure:"log_file"`
}

// Loader reads and watches a configuration source.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a Loader. path may be empty, in which case only
// defaults and environment variables apply; a named file that does not
// exist is an error.
func NewLoader(path string) (*Loader, error) {
	v := viper.New()

	v.SetDefault("api_base_url", "http://localhost:8000")
	v.SetDefault("database_path", defaultDatabasePath())
	v.SetDefault("dashboard_port", 8080)
	v.SetDefault("probe_interval", 15*time.Second)
	v.SetDefault("log_file", "")

	v.SetEnvPrefix("EVENTCOMPASS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	return &Loader{v: v}, nil
}

// Load materializes the current configuration.
func (l *Loader) Load() (Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.APIBaseURL == "" {
		return cfg, fmt.Errorf("api_base_url must not be empty")
	}
	if cfg.DatabasePath == "" {
		return cfg, fmt.Errorf("database_path must not be empty")
	}
	return cfg, nil
}

// Watch re-reads the config file on change and hands the result to fn.
// Only effective when the Loader was created with a file path.
func (l *Loader) Watch(fn func(Config)) {
	l.v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := l.Load()
		if err != nil {
			return
		}
		fn(cfg)
	})
	l.v.WatchConfig()
}

func defaultDatabasePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "eventcompass.db"
	}
	return filepath.Join(home, ".eventcompass", "eventcompass.db")
}
