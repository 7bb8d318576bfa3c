package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config contains runtime configuration required by the exporter.
type Config struct {
	Store   StoreConfig   `mapstructure:"store"`
	Export  ExportConfig  `mapstructure:"export"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
}

type StoreConfig struct {
	Driver string `mapstructure:"driver"` // clickhouse, postgres or sqlite
	DSN    string `mapstructure:"dsn"`
}

type ExportConfig struct {
	BatchSize         int            `mapstructure:"batch_size"`
	PresentationsFile string         `mapstructure:"presentations_file"`
	Systems           []SystemConfig `mapstructure:"systems"`
}

// SystemConfig names one monitored information system and its log files.
type SystemConfig struct {
	Name           string `mapstructure:"name"`
	DataFile       string `mapstructure:"data_file"`
	ReferencesFile string `mapstructure:"references_file"`
}

type RedisConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	URL     string        `mapstructure:"url"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

type ServerConfig struct {
	Port int `mapstructure:"port"`
	// APIKeys maps an API key to the systems it may read; "*" grants all.
	// Env format (EXPORTER_SERVER_API_KEYS): "key1:ERP|HR,key2:*"
	APIKeys map[string][]string `mapstructure:"-"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configPath (optional) and EXPORTER_* environment overrides.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("store.driver", "clickhouse")
	v.SetDefault("store.dsn", "")
	v.SetDefault("export.batch_size", 100000)
	v.SetDefault("export.presentations_file", "")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "redis://localhost:6379/0")
	v.SetDefault("redis.lock_ttl", "10m")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_keys", "")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/eventlog-export")
	}

	// Environment variables override
	v.SetEnvPrefix("EXPORTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found; use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	keys, err := parseAPIKeys(v.Get("server.api_keys"))
	if err != nil {
		return nil, err
	}
	cfg.Server.APIKeys = keys

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that have no usable default.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "clickhouse", "postgres", "sqlite":
	default:
		return fmt.Errorf("store.driver must be clickhouse, postgres or sqlite, got %q", c.Store.Driver)
	}
	if strings.TrimSpace(c.Store.DSN) == "" {
		return errors.New("store.dsn required")
	}
	if c.Export.BatchSize <= 0 {
		return errors.New("export.batch_size must be positive")
	}

	seen := make(map[string]bool, len(c.Export.Systems))
	for i, s := range c.Export.Systems {
		if s.Name == "" {
			return fmt.Errorf("export.systems[%d].name required", i)
		}
		if seen[s.Name] {
			return fmt.Errorf("export.systems: duplicate system %q", s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// System returns the configuration of the named system.
func (c *Config) System(name string) (SystemConfig, bool) {
	for _, s := range c.Export.Systems {
		if s.Name == name {
			return s, true
		}
	}
	return SystemConfig{}, false
}

// parseAPIKeys accepts either a YAML map (key -> list of systems) or the
// env string form "key1:ERP|HR,key2:*".
func parseAPIKeys(raw any) (map[string][]string, error) {
	keys := map[string][]string{}

	switch val := raw.(type) {
	case nil:
	case map[string]any:
		for k, systems := range val {
			list, ok := systems.([]any)
			if !ok {
				return nil, fmt.Errorf("server.api_keys.%s must be a list of systems", k)
			}
			for _, s := range list {
				keys[k] = append(keys[k], fmt.Sprint(s))
			}
		}
	case string:
		for _, p := range strings.Split(val, ",") {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			parts := strings.SplitN(p, ":", 2)
			if len(parts) != 2 {
				return nil, errors.New(`server.api_keys must be "key:SYSTEM|SYSTEM,key:*"`)
			}
			key := strings.TrimSpace(parts[0])
			systems := strings.TrimSpace(parts[1])
			if key == "" || systems == "" {
				return nil, errors.New(`server.api_keys must be "key:SYSTEM|SYSTEM,key:*"`)
			}
			for _, s := range strings.Split(systems, "|") {
				if s = strings.TrimSpace(s); s != "" {
					keys[key] = append(keys[key], s)
				}
			}
		}
	default:
		return nil, fmt.Errorf("server.api_keys has unsupported type %T", raw)
	}

	return keys, nil
}
