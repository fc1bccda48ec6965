package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"
)

// Config is the main configuration struct.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
	Channel   ChannelConfig   `yaml:"channel"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Search    SearchConfig    `yaml:"search"`
	Social    SocialConfig    `yaml:"social"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
}

// Addr returns the listen address in host:port form.
func (s ServerConfig) Addr() string {
	addr := s.Address
	port := s.Port
	if port == 0 {
		port = 8080
	}
	return fmt.Sprintf("%s:%d", addr, port)
}

// StorageConfig holds the pebble database location.
type StorageConfig struct {
	DBPath string `yaml:"db_path"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level string `yaml:"level"`
}

// SecurityConfig holds API keys and rate limits for the HTTP surface.
type SecurityConfig struct {
	APIKeys   []string `yaml:"api_keys"`
	RateLimit struct {
		RPS   float64 `yaml:"rps"`
		Burst int     `yaml:"burst"`
	} `yaml:"rate_limit"`
}

// ChannelConfig holds the message-bus connection and topic layout plus the
// consumer error policy.
type ChannelConfig struct {
	RedisAddr     string    `yaml:"redis_addr"`
	RedisPassword string    `yaml:"redis_password"`
	RedisDB       int       `yaml:"redis_db"`
	Group         string    `yaml:"group"`
	Consumer      string    `yaml:"consumer"`
	MaxPayload    SizeBytes `yaml:"max_payload"`

	Topics struct {
		EnrichRequest  string `yaml:"enrich_request"`
		EnrichResponse string `yaml:"enrich_response"`
		SearchRequest  string `yaml:"search_request"`
		SearchResponse string `yaml:"search_response"`
	} `yaml:"topics"`

	// MaxRetries bounds redelivery attempts for a failing message before it
	// is acked and skipped; RetryDelay is the fixed pause between attempts.
	MaxRetries int      `yaml:"max_retries"`
	RetryDelay Duration `yaml:"retry_delay"`
	// Block controls how long a consumer read blocks waiting for entries.
	Block Duration `yaml:"block"`
}

// SchedulerConfig drives the posting retry scheduler.
type SchedulerConfig struct {
	Enabled bool `yaml:"enabled"`
	// Cron is a standard cron expression; empty means every 10 minutes.
	Cron string `yaml:"cron"`
	// MaxRetries is the per-platform publish attempt ceiling.
	MaxRetries int `yaml:"max_retries"`
}

// SearchConfig bounds the ad-hoc search correlation table.
type SearchConfig struct {
	CriteriaTimeout Duration `yaml:"criteria_timeout"`
	ExecuteTimeout  Duration `yaml:"execute_timeout"`
	MaxPending      int      `yaml:"max_pending"`
	SweepInterval   Duration `yaml:"sweep_interval"`
}

// SocialConfig holds per-platform publishing credentials.
type SocialConfig struct {
	LinkedIn LinkedInConfig `yaml:"linkedin"`
}

// LinkedInConfig configures the LinkedIn publishing adapter.
type LinkedInConfig struct {
	AccessToken string  `yaml:"access_token"`
	AuthorURN   string  `yaml:"author_urn"`
	APIBase     string  `yaml:"api_base"`
	RPS         float64 `yaml:"rps"`
	Burst       int     `yaml:"burst"`
}

// SizeBytes represents a number of bytes, unmarshaled from human-friendly
// strings like "64MB" or plain integers.
type SizeBytes int64

func (s *SizeBytes) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*s = 0
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*s = 0
		return nil
	}
	if v, err := humanize.ParseBytes(raw); err == nil {
		*s = SizeBytes(v)
		return nil
	}
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		*s = SizeBytes(i)
		return nil
	}
	return fmt.Errorf("invalid size value: %q", node.Value)
}

func (s SizeBytes) Int64() int64 { return int64(s) }

// Duration is a wrapper around time.Duration that supports YAML parsing
// from strings like "100ms" or plain numbers (interpreted as seconds).
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	if node == nil {
		*d = Duration(0)
		return nil
	}
	raw := strings.TrimSpace(node.Value)
	if raw == "" {
		*d = Duration(0)
		return nil
	}
	if td, err := time.ParseDuration(raw); err == nil {
		*d = Duration(td)
		return nil
	}
	// allow numeric seconds
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		*d = Duration(time.Duration(f * float64(time.Second)))
		return nil
	}
	return fmt.Errorf("invalid duration value: %q", node.Value)
}

func (d Duration) Duration() time.Duration { return time.Duration(d) }
