// Package config loads process-level settings via viper: environment
// variables prefixed FEEDSTREAM_, optionally layered over a config file.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the runtime knobs for the feedstream process. Feed-shape
// data (sources, rule tables) lives in the catalog file, not here.
type Config struct {
	CatalogFile    string
	PublishersFile string
	StateFile      string

	RefreshInterval time.Duration
	SourceTimeout   time.Duration

	// RelayTemplate wraps relay-flagged source URLs; {url} substitutes the
	// escaped feed URL, {raw} the unescaped one.
	RelayTemplate string

	EnrichEnabled bool
	EnrichWorkers int

	LogLevel string
}

// Load reads configuration from the environment and, when present, from
// the given config file (YAML).
func Load(configFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("catalog_file", "sources.yaml")
	v.SetDefault("publishers_file", "")
	v.SetDefault("state_file", "feedstream.db")
	v.SetDefault("refresh_interval", "5m")
	v.SetDefault("source_timeout", "15s")
	v.SetDefault("relay_template", "")
	v.SetDefault("enrich_enabled", false)
	v.SetDefault("enrich_workers", 10)
	v.SetDefault("log_level", "info")

	v.SetEnvPrefix("FEEDSTREAM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile = strings.TrimSpace(configFile); configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := Config{
		CatalogFile:     v.GetString("catalog_file"),
		PublishersFile:  v.GetString("publishers_file"),
		StateFile:       v.GetString("state_file"),
		RefreshInterval: v.GetDuration("refresh_interval"),
		SourceTimeout:   v.GetDuration("source_timeout"),
		RelayTemplate:   v.GetString("relay_template"),
		EnrichEnabled:   v.GetBool("enrich_enabled"),
		EnrichWorkers:   v.GetInt("enrich_workers"),
		LogLevel:        v.GetString("log_level"),
	}

	if cfg.RefreshInterval <= 0 {
		return Config{}, fmt.Errorf("refresh_interval must be positive, got %s", cfg.RefreshInterval)
	}
	if cfg.SourceTimeout <= 0 {
		return Config{}, fmt.Errorf("source_timeout must be positive, got %s", cfg.SourceTimeout)
	}
	if cfg.CatalogFile == "" {
		return Config{}, fmt.Errorf("catalog_file is required")
	}

	return cfg, nil
}
