// Package config provides configuration management for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/amaumene/gostremiodebrid/internal/constants"
	"github.com/spf13/viper"
)

// Config holds the process-wide settings. Per-request credentials live in UserConfig.
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Server struct {
		Address string `mapstructure:"address"`
		Port    int    `mapstructure:"port"`
		// serve HTTPS with the local-ip.sh certificate for LAN clients
		LocalIPTLS bool   `mapstructure:"local_ip_tls"`
		CertDir    string `mapstructure:"cert_dir"`
	} `mapstructure:"server"`

	Database struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"database"`

	Cache struct {
		Provider string        `mapstructure:"provider"` // memory or redis
		Size     int           `mapstructure:"size"`
		TTL      time.Duration `mapstructure:"ttl"`
	} `mapstructure:"cache"`

	Redis struct {
		Address  string `mapstructure:"address"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
	} `mapstructure:"redis"`

	Metadata struct {
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"metadata"`

	Indexer struct {
		Timeout     time.Duration `mapstructure:"timeout"`
		Concurrency int           `mapstructure:"concurrency"`
	} `mapstructure:"indexer"`

	Debrid struct {
		Concurrency   int           `mapstructure:"concurrency"`
		PollTimeout   time.Duration `mapstructure:"poll_timeout"`
		PollInterval  time.Duration `mapstructure:"poll_interval"`
		RetryAttempts int           `mapstructure:"retry_attempts"`
	} `mapstructure:"debrid"`

	Ranking struct {
		SeedersWeight    float64 `mapstructure:"seeders_weight"`
		SimilarityWeight float64 `mapstructure:"similarity_weight"`
		SizeWeight       float64 `mapstructure:"size_weight"`
		AmbiguityPenalty float64 `mapstructure:"ambiguity_penalty"`
		MovieMinGB       float64 `mapstructure:"movie_min_gb"`
		MovieMaxGB       float64 `mapstructure:"movie_max_gb"`
		EpisodeMinGB     float64 `mapstructure:"episode_min_gb"`
		EpisodeMaxGB     float64 `mapstructure:"episode_max_gb"`
	} `mapstructure:"ranking"`

	Cleanup struct {
		Interval  time.Duration `mapstructure:"interval"`
		Retention time.Duration `mapstructure:"retention"`
	} `mapstructure:"cleanup"`

	ServiceName string `mapstructure:"service_name"`
}

// Load reads config.yaml from . or ./config when present, then GSD_* environment
// variables ("server.port" -> GSD_SERVER_PORT). LOG_LEVEL and PORT are honoured too.
func Load() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("GSD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("log_level", "GSD_LOG_LEVEL", "LOG_LEVEL")
	_ = v.BindEnv("server.port", "GSD_SERVER_PORT", "PORT")
	_ = v.BindEnv("database.path", "GSD_DATABASE_PATH", "DATABASE_PATH")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", constants.DefaultLogLevel)
	v.SetDefault("server.address", "")
	v.SetDefault("server.port", constants.DefaultPort)
	v.SetDefault("server.local_ip_tls", false)
	v.SetDefault("server.cert_dir", "")
	v.SetDefault("database.path", "./data.db")
	v.SetDefault("cache.provider", "memory")
	v.SetDefault("cache.size", constants.DefaultCacheSize)
	v.SetDefault("cache.ttl", time.Duration(constants.DefaultCacheTTL)*time.Hour)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("metadata.base_url", "https://v3-cinemeta.strem.io")
	v.SetDefault("metadata.timeout", constants.MetadataTimeout)
	v.SetDefault("indexer.timeout", constants.SearchTimeout)
	v.SetDefault("indexer.concurrency", constants.DefaultIndexerConcurrency)
	v.SetDefault("debrid.concurrency", constants.DefaultDebridConcurrency)
	v.SetDefault("debrid.poll_timeout", constants.MagnetPollTimeout)
	v.SetDefault("debrid.poll_interval", constants.MagnetPollInterval)
	v.SetDefault("debrid.retry_attempts", constants.DefaultRetryAttempts)
	v.SetDefault("ranking.seeders_weight", 0.4)
	v.SetDefault("ranking.similarity_weight", 0.4)
	v.SetDefault("ranking.size_weight", 0.2)
	v.SetDefault("ranking.ambiguity_penalty", 0.5)
	v.SetDefault("ranking.movie_min_gb", 0.5)
	v.SetDefault("ranking.movie_max_gb", 40)
	v.SetDefault("ranking.episode_min_gb", 0.1)
	v.SetDefault("ranking.episode_max_gb", 10)
	v.SetDefault("cleanup.interval", time.Hour)
	v.SetDefault("cleanup.retention", 4*time.Hour)
	v.SetDefault("service_name", "gostremiodebrid")
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	switch c.Cache.Provider {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.provider must be memory or redis, got %q", c.Cache.Provider)
	}
	if c.Indexer.Concurrency <= 0 {
		return fmt.Errorf("indexer.concurrency must be positive")
	}
	if c.Debrid.Concurrency <= 0 {
		return fmt.Errorf("debrid.concurrency must be positive")
	}
	if c.Ranking.MovieMinGB > c.Ranking.MovieMaxGB || c.Ranking.EpisodeMinGB > c.Ranking.EpisodeMaxGB {
		return fmt.Errorf("ranking size bounds are inverted")
	}
	return nil
}

// ListenAddress is the host:port the HTTP server binds.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}
