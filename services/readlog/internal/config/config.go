package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"readlog/pkg/store"
)

// ConfigPath is read when no path is given and READLOG_CONFIG is unset.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port           string   `yaml:"port"`
	LogLevel       string   `yaml:"logLevel"`
	CORSOrigin     string   `yaml:"corsOrigin"`
	TrustedProxies []string `yaml:"trustedProxies"`
	Language       string   `yaml:"language"`

	StorageBackend   string `yaml:"storageBackend"`
	SQLitePath       string `yaml:"sqlitePath"`
	RedisAddr        string `yaml:"redisAddr"`
	RedisPassword    string `yaml:"redisPassword"`
	RedisPrefix      string `yaml:"redisPrefix"`
	DatabaseURL      string `yaml:"databaseURL"`
	MinioEndpoint    string `yaml:"minioEndpoint"`
	MinioAccessKey   string `yaml:"minioAccessKey"`
	MinioSecretKey   string `yaml:"minioSecretKey"`
	MinioBucket      string `yaml:"minioBucket"`
	MinioUseSSL      bool   `yaml:"minioUseSSL"`
	FallbackToMemory *bool  `yaml:"fallbackToMemory"`

	SuggestEnabled        *bool  `yaml:"suggestEnabled"`
	SuggestBaseURL        string `yaml:"suggestBaseURL"`
	SuggestCoversURL      string `yaml:"suggestCoversURL"`
	SuggestTimeoutSeconds int    `yaml:"suggestTimeoutSeconds"`
	SuggestDebounceMillis int    `yaml:"suggestDebounceMillis"`
	SuggestMinChars       int    `yaml:"suggestMinChars"`
	SuggestLimit          int    `yaml:"suggestLimit"`
	SuggestCacheSize      int    `yaml:"suggestCacheSize"`

	AMQPURL            string `yaml:"amqpURL"`
	AMQPExchange       string `yaml:"amqpExchange"`
	AnnounceStream     string `yaml:"announceStream"`
	AnnounceStreamAddr string `yaml:"announceStreamAddr"`

	// Per-client quotas on POST /api/events and GET /api/suggestions.
	// Zero disables the limit.
	EventsPerMinute      int    `yaml:"eventsPerMinute"`
	SuggestionsPerMinute int    `yaml:"suggestionsPerMinute"`
	RateLimitAddr        string `yaml:"rateLimitAddr"`
}

// Load reads path, applies environment overrides and defaults, and validates.
// A missing file is not an error: the defaults describe a working local setup.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = os.Getenv("READLOG_CONFIG")
	}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	setString := func(dst *string, key string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	setString(&cfg.Port, "READLOG_PORT")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.CORSOrigin, "READLOG_CORS_ORIGIN")
	setString(&cfg.StorageBackend, "READLOG_STORAGE_BACKEND")
	setString(&cfg.SQLitePath, "READLOG_SQLITE_PATH")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.RedisPassword, "REDIS_PASSWORD")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.MinioEndpoint, "MINIO_ENDPOINT")
	setString(&cfg.MinioAccessKey, "MINIO_ACCESS_KEY")
	setString(&cfg.MinioSecretKey, "MINIO_SECRET_KEY")
	setString(&cfg.MinioBucket, "MINIO_BUCKET")
	setString(&cfg.AMQPURL, "AMQP_URL")
	setString(&cfg.SuggestBaseURL, "READLOG_SUGGEST_BASE_URL")
	if v := os.Getenv("MINIO_USE_SSL"); v == "true" {
		cfg.MinioUseSSL = true
	}
	if v := os.Getenv("READLOG_SUGGEST_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.SuggestEnabled = &b
		}
	}
	if v := os.Getenv("READLOG_TRUSTED_PROXIES"); v != "" {
		cfg.TrustedProxies = splitCSV(v)
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Language == "" {
		cfg.Language = "es"
	}
	if cfg.StorageBackend == "" {
		cfg.StorageBackend = store.BackendSQLite
	}
	if cfg.SQLitePath == "" {
		cfg.SQLitePath = "readlog.db"
	}
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "readlog"
	}
	if cfg.FallbackToMemory == nil {
		on := true
		cfg.FallbackToMemory = &on
	}
	if cfg.SuggestEnabled == nil {
		on := true
		cfg.SuggestEnabled = &on
	}
	if cfg.SuggestTimeoutSeconds <= 0 {
		cfg.SuggestTimeoutSeconds = 5
	}
	if cfg.SuggestDebounceMillis <= 0 {
		cfg.SuggestDebounceMillis = 300
	}
	if cfg.SuggestMinChars <= 0 {
		cfg.SuggestMinChars = 3
	}
	if cfg.SuggestLimit <= 0 {
		cfg.SuggestLimit = 5
	}
	if cfg.SuggestCacheSize <= 0 {
		cfg.SuggestCacheSize = 256
	}
	if cfg.AnnounceStream != "" && cfg.AnnounceStreamAddr == "" {
		cfg.AnnounceStreamAddr = cfg.RedisAddr
	}
	if cfg.RateLimited() && cfg.RateLimitAddr == "" {
		cfg.RateLimitAddr = cfg.RedisAddr
	}
}

func validateConfig(cfg FileConfig) error {
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return fmt.Errorf("config: port must be numeric, got %q", cfg.Port)
	}
	if _, err := language.Parse(cfg.Language); err != nil {
		return fmt.Errorf("config: invalid language %q: %w", cfg.Language, err)
	}
	switch cfg.StorageBackend {
	case store.BackendMemory, store.BackendSQLite:
	case store.BackendRedis:
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for the redis backend (set in config.yaml or REDIS_ADDR)")
		}
	case store.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return errors.New("config: databaseURL is required for the postgres backend (set in config.yaml or DATABASE_URL)")
		}
	case store.BackendMinio:
		if cfg.MinioEndpoint == "" || cfg.MinioBucket == "" {
			return errors.New("config: minioEndpoint and minioBucket are required for the minio backend")
		}
	default:
		return fmt.Errorf("config: unknown storageBackend %q", cfg.StorageBackend)
	}
	if cfg.AnnounceStream != "" && cfg.AnnounceStreamAddr == "" {
		return errors.New("config: announceStream needs announceStreamAddr or redisAddr")
	}
	if cfg.EventsPerMinute < 0 || cfg.SuggestionsPerMinute < 0 {
		return errors.New("config: rate limits must not be negative")
	}
	if cfg.RateLimited() && cfg.RateLimitAddr == "" {
		return errors.New("config: rate limits need rateLimitAddr or redisAddr")
	}
	return nil
}

// RateLimited reports whether any request quota is configured.
func (c FileConfig) RateLimited() bool {
	return c.EventsPerMinute > 0 || c.SuggestionsPerMinute > 0
}

// StoreConfig maps the storage settings onto store.Config.
func (c FileConfig) StoreConfig() store.Config {
	return store.Config{
		Backend:          c.StorageBackend,
		SQLitePath:       c.SQLitePath,
		RedisAddr:        c.RedisAddr,
		RedisPassword:    c.RedisPassword,
		RedisPrefix:      c.RedisPrefix,
		DatabaseURL:      c.DatabaseURL,
		MinioEndpoint:    c.MinioEndpoint,
		MinioAccessKey:   c.MinioAccessKey,
		MinioSecretKey:   c.MinioSecretKey,
		MinioBucket:      c.MinioBucket,
		MinioUseSSL:      c.MinioUseSSL,
		FallbackToMemory: c.FallbackToMemory != nil && *c.FallbackToMemory,
	}
}

// LanguageTag returns the collation language. Load has already validated it.
func (c FileConfig) LanguageTag() language.Tag {
	tag, err := language.Parse(c.Language)
	if err != nil {
		return language.Spanish
	}
	return tag
}

func (c FileConfig) SuggestTimeout() time.Duration {
	return time.Duration(c.SuggestTimeoutSeconds) * time.Second
}

func (c FileConfig) SuggestDebounce() time.Duration {
	return time.Duration(c.SuggestDebounceMillis) * time.Millisecond
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
