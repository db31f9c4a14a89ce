// Package config loads the daemon's YAML configuration: runtime settings
// and the three source arrays (REST, RSS, streaming), each carrying its own
// mapping-descriptor fields. Grounded on the scheduler and datafacade config
// loaders this project's libraries were adapted from, which both read a
// single YAML file with default-filling when values are absent.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sawpanic/marketfeed/internal/model"
)

// RESTSource is one REST/calendar source descriptor.
type RESTSource struct {
	Name                   string            `yaml:"name"`
	BaseURL                string            `yaml:"base_url"`
	Endpoint               string            `yaml:"endpoint"`
	Method                 string            `yaml:"method"`
	Category               model.Category    `yaml:"category"`
	APIKeyHeader           string            `yaml:"api_key_header"`
	APIKey                 string            `yaml:"api_key"`
	Params                 map[string]string `yaml:"params"`
	Symbols                []string          `yaml:"symbols"`
	RefreshIntervalSeconds int               `yaml:"refresh_interval_seconds"`
	DataPath               string            `yaml:"data_path"`
	FieldSymbol            string            `yaml:"field_symbol"`
	FieldPrice             string            `yaml:"field_price"`
	FieldChange            string            `yaml:"field_change"`
	FieldVolume            string            `yaml:"field_volume"`
	FieldName              string            `yaml:"field_name"`
	FieldPrevClose         string            `yaml:"field_prev_close"`
	PostBody               string            `yaml:"post_body"`
	Currency               string            `yaml:"currency"`
	Tier                   int               `yaml:"tier"`
}

// RefreshIntervalDuration converts the configured refresh_interval_seconds
// into a time.Duration for the scheduler's due-check.
func (s RESTSource) RefreshIntervalDuration() time.Duration {
	return time.Duration(s.RefreshIntervalSeconds) * time.Second
}

// RSSSource is one RSS/Atom source descriptor.
type RSSSource struct {
	Name                   string         `yaml:"name"`
	URL                    string         `yaml:"url"`
	Category               model.Category `yaml:"category"`
	RefreshIntervalSeconds int            `yaml:"refresh_interval_seconds"`
	Tier                   int            `yaml:"tier"`
	Region                 string         `yaml:"region"`
	Country                string         `yaml:"country"`
}

func (s RSSSource) RefreshIntervalDuration() time.Duration {
	return time.Duration(s.RefreshIntervalSeconds) * time.Second
}

// StreamSource is one streaming-socket source descriptor.
type StreamSource struct {
	Name                     string         `yaml:"name"`
	URL                      string         `yaml:"url"`
	Category                 model.Category `yaml:"category"`
	SubscribeMessage         string         `yaml:"subscribe_message"`
	ReconnectIntervalSeconds int            `yaml:"reconnect_interval_seconds"`
}

func (s StreamSource) ReconnectIntervalDuration() time.Duration {
	return time.Duration(s.ReconnectIntervalSeconds) * time.Second
}

// Config is the complete daemon configuration.
type Config struct {
	DBPath                 string         `yaml:"db_path"`
	HTTPPort               int            `yaml:"http_port"`
	UnixSocketPath         string         `yaml:"unix_socket_path"`
	LogLevel               string         `yaml:"log_level"`
	RetentionWindowSeconds int64          `yaml:"retention_window_seconds"`
	REST                   []RESTSource   `yaml:"rest"`
	RSS                    []RSSSource    `yaml:"rss"`
	Stream                 []StreamSource `yaml:"stream"`
}

// defaults fills in runtime settings a config file may omit.
func defaults() Config {
	return Config{
		DBPath:                 "marketfeed.db",
		HTTPPort:               8080,
		UnixSocketPath:         "/tmp/marketfeed.sock",
		LogLevel:               "info",
		RetentionWindowSeconds: 1800,
	}
}

// Load reads and validates a YAML config file at path. A malformed source
// descriptor is logged by the caller and dropped — a configuration error
// drops the source slot but never prevents the rest of the config from
// loading. Load itself returns the rejects alongside the usable config so
// the caller can report them.
func Load(path string) (Config, []error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, []error{fmt.Errorf("config: read %s: %w", path, err)}
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return defaults(), []error{fmt.Errorf("config: parse %s: %w", path, err)}
	}
	if cfg.RetentionWindowSeconds <= 0 {
		cfg.RetentionWindowSeconds = 1800
	}

	var rejects []error
	rest := cfg.REST[:0]
	for _, s := range cfg.REST {
		if s.Name == "" || s.BaseURL == "" {
			rejects = append(rejects, fmt.Errorf("config: rest source missing name/base_url: %+v", s))
			continue
		}
		if s.RefreshIntervalSeconds <= 0 {
			s.RefreshIntervalSeconds = 30
		}
		rest = append(rest, s)
	}
	cfg.REST = rest

	rssSources := cfg.RSS[:0]
	for _, s := range cfg.RSS {
		if s.Name == "" || s.URL == "" {
			rejects = append(rejects, fmt.Errorf("config: rss source missing name/url: %+v", s))
			continue
		}
		if s.RefreshIntervalSeconds <= 0 {
			s.RefreshIntervalSeconds = 300
		}
		rssSources = append(rssSources, s)
	}
	cfg.RSS = rssSources

	streamSources := cfg.Stream[:0]
	for _, s := range cfg.Stream {
		if s.Name == "" || s.URL == "" {
			rejects = append(rejects, fmt.Errorf("config: stream source missing name/url: %+v", s))
			continue
		}
		if s.ReconnectIntervalSeconds <= 0 {
			s.ReconnectIntervalSeconds = 5
		}
		streamSources = append(streamSources, s)
	}
	cfg.Stream = streamSources

	return cfg, rejects
}
