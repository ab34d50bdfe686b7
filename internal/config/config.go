package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Server  ServerConfig
	Worker  WorkerConfig
	Sources SourcesConfig
	Fusion  FusionConfig
	Cache   CacheConfig
	Archive ArchiveConfig
	Logging LoggingConfig
}

type ServerConfig struct {
	Host string
	Port int
}

type WorkerConfig struct {
	Count      int
	BufferSize int
}

type SourcesConfig struct {
	TempoEnabled  bool
	TempoURL      string
	OpenAQEnabled bool
	OpenAQURL     string
	OpenAQAPIKey  string
	Merra2Enabled bool
	Merra2URL     string
	ImergEnabled  bool
	ImergURL      string
	FetchTimeout  time.Duration
}

type FusionConfig struct {
	RefreshInterval time.Duration
	Window          time.Duration
}

type CacheConfig struct {
	TTL        time.Duration
	MaxEntries int
}

type ArchiveConfig struct {
	Path            string
	KeepGenerations int
}

type LoggingConfig struct {
	Level string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "localhost"),
			Port: getEnvInt("SERVER_PORT", 8080),
		},
		Worker: WorkerConfig{
			Count:      getEnvInt("WORKER_COUNT", 2),
			BufferSize: getEnvInt("WORKER_BUFFER_SIZE", 20),
		},
		Sources: SourcesConfig{
			TempoEnabled:  getEnvBool("TEMPO_ENABLED", true),
			TempoURL:      getEnv("TEMPO_URL", "https://tempo.si.edu/api/v1"),
			OpenAQEnabled: getEnvBool("OPENAQ_ENABLED", true),
			OpenAQURL:     getEnv("OPENAQ_URL", "https://api.openaq.org/v3"),
			OpenAQAPIKey:  getEnv("OPENAQ_API_KEY", ""),
			Merra2Enabled: getEnvBool("MERRA2_ENABLED", true),
			Merra2URL:     getEnv("MERRA2_URL", "https://goldsmr4.gesdisc.eosdis.nasa.gov/api/v1"),
			ImergEnabled:  getEnvBool("IMERG_ENABLED", true),
			ImergURL:      getEnv("IMERG_URL", "https://gpm1.gesdisc.eosdis.nasa.gov/api/v1"),
			FetchTimeout:  getEnvDuration("SOURCE_FETCH_TIMEOUT", 30*time.Second),
		},
		Fusion: FusionConfig{
			RefreshInterval: getEnvDuration("FUSION_REFRESH_INTERVAL", 15*time.Minute),
			Window:          getEnvDuration("FUSION_WINDOW", time.Hour),
		},
		Cache: CacheConfig{
			TTL:        getEnvDuration("CACHE_TTL", 5*time.Minute),
			MaxEntries: getEnvInt("CACHE_MAX_ENTRIES", 1024),
		},
		Archive: ArchiveConfig{
			Path:            getEnv("ARCHIVE_PATH", "./data/cleansky.db"),
			KeepGenerations: getEnvInt("ARCHIVE_KEEP_GENERATIONS", 48),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Fusion.RefreshInterval < time.Minute {
		return fmt.Errorf("fusion refresh interval must be at least 1 minute")
	}
	if c.Fusion.Window <= 0 {
		return fmt.Errorf("fusion window must be positive")
	}

	if c.Sources.FetchTimeout <= 0 {
		return fmt.Errorf("source fetch timeout must be positive")
	}

	if c.Cache.MaxEntries < 1 {
		return fmt.Errorf("cache must hold at least one entry")
	}

	if !c.Sources.TempoEnabled && !c.Sources.OpenAQEnabled &&
		!c.Sources.Merra2Enabled && !c.Sources.ImergEnabled {
		return fmt.Errorf("at least one source must be enabled")
	}

	return nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return fallback
}
