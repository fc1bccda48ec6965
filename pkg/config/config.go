package config

import (
	"flag"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// ParseFlags parses command-line flags and records which were set
// explicitly so they can win over file and env values.
func ParseFlags() Flags {
	addrPtr := flag.String("addr", ":8080", "HTTP listen address")
	dbPtr := flag.String("db", "./.database", "Pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "Path to config file")
	flag.Parse()
	set := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: set}
}

// Load reads the YAML config at path, then applies THOUGHTPOST_* env
// overrides on top. A missing file is not an error; env alone may carry a
// full configuration.
func Load(path string) (*Config, error) {
	cfg := Defaults()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

// Defaults returns a config with the design defaults filled in.
func Defaults() *Config {
	cfg := &Config{}
	cfg.Server.Port = 8080
	cfg.Storage.DBPath = "./.database"
	cfg.Channel.RedisAddr = "localhost:6379"
	cfg.Channel.Group = "thoughtpost"
	cfg.Channel.MaxRetries = 3
	cfg.Channel.Topics.EnrichRequest = "thoughts.requests"
	cfg.Channel.Topics.EnrichResponse = "thoughts.responses"
	cfg.Channel.Topics.SearchRequest = "search.requests"
	cfg.Channel.Topics.SearchResponse = "search.responses"
	cfg.Scheduler.Enabled = true
	cfg.Scheduler.Cron = "*/10 * * * *"
	cfg.Scheduler.MaxRetries = 100
	cfg.Search.MaxPending = 1024
	return cfg
}

// applyEnv overlays environment variables onto cfg. Only a curated set is
// supported; unknown THOUGHTPOST_ vars are ignored.
func applyEnv(cfg *Config) {
	if v := os.Getenv("THOUGHTPOST_ADDR"); v != "" {
		host, port, ok := strings.Cut(v, ":")
		if ok {
			cfg.Server.Address = host
			if p, err := strconv.Atoi(port); err == nil {
				cfg.Server.Port = p
			}
		}
	}
	if v := os.Getenv("THOUGHTPOST_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("THOUGHTPOST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("THOUGHTPOST_REDIS_ADDR"); v != "" {
		cfg.Channel.RedisAddr = v
	}
	if v := os.Getenv("THOUGHTPOST_REDIS_PASSWORD"); v != "" {
		cfg.Channel.RedisPassword = v
	}
	if v := os.Getenv("THOUGHTPOST_CHANNEL_GROUP"); v != "" {
		cfg.Channel.Group = v
	}
	if v := os.Getenv("THOUGHTPOST_API_KEYS"); v != "" {
		for _, k := range strings.Split(v, ",") {
			if k = strings.TrimSpace(k); k != "" {
				cfg.Security.APIKeys = append(cfg.Security.APIKeys, k)
			}
		}
	}
	if v := os.Getenv("THOUGHTPOST_SCHEDULER_CRON"); v != "" {
		cfg.Scheduler.Cron = v
	}
	if v := os.Getenv("THOUGHTPOST_LINKEDIN_TOKEN"); v != "" {
		cfg.Social.LinkedIn.AccessToken = v
	}
	if v := os.Getenv("THOUGHTPOST_LINKEDIN_AUTHOR"); v != "" {
		cfg.Social.LinkedIn.AuthorURN = v
	}
}
