package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	S3     S3Config
	App    AppConfig
}

type ServerConfig struct {
	Host           string
	Port           string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	AllowedOrigins []string
	RateLimit      float64 // requests per second per client, 0 disables
	RateBurst      int
	LogLevel       string
	SentryDSN      string
}

type S3Config struct {
	Enabled         bool
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	UseSSL          bool
	BucketName      string
	Region          string
}

type AppConfig struct {
	MaxUploadSize  int64
	MaxPixels      int
	AllowedFormats []string
	UIDir          string
	Workers        int
	HistoryDBPath  string
	HistoryDSN     string // postgres DSN, takes precedence over HistoryDBPath
	HistoryLimit   int
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	cfg := &Config{
		Server: ServerConfig{
			Host:           v.GetString("SERVER_HOST"),
			Port:           v.GetString("SERVER_PORT"),
			ReadTimeout:    v.GetDuration("SERVER_READ_TIMEOUT"),
			WriteTimeout:   v.GetDuration("SERVER_WRITE_TIMEOUT"),
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
			RateLimit:      v.GetFloat64("SERVER_RATE_LIMIT"),
			RateBurst:      v.GetInt("SERVER_RATE_BURST"),
			LogLevel:       v.GetString("LOG_LEVEL"),
			SentryDSN:      v.GetString("SENTRY_DSN"),
		},
		S3: S3Config{
			Enabled:         v.GetBool("S3_ENABLED"),
			Endpoint:        v.GetString("S3_ENDPOINT"),
			AccessKeyID:     v.GetString("S3_ACCESS_KEY_ID"),
			SecretAccessKey: v.GetString("S3_SECRET_ACCESS_KEY"),
			UseSSL:          v.GetBool("S3_USE_SSL"),
			BucketName:      v.GetString("S3_BUCKET_NAME"),
			Region:          v.GetString("S3_REGION"),
		},
		App: AppConfig{
			MaxUploadSize:  v.GetInt64("APP_MAX_UPLOAD_SIZE"),
			MaxPixels:      v.GetInt("APP_MAX_PIXELS"),
			AllowedFormats: splitList(v.GetString("APP_ALLOWED_FORMATS")),
			UIDir:          v.GetString("APP_UI_DIR"),
			Workers:        v.GetInt("APP_WORKERS"),
			HistoryDBPath:  v.GetString("APP_HISTORY_DB_PATH"),
			HistoryDSN:     v.GetString("APP_HISTORY_DSN"),
			HistoryLimit:   v.GetInt("APP_HISTORY_LIMIT"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if err := createDirs(cfg); err != nil {
		return nil, fmt.Errorf("failed to create directories: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", "8000")
	v.SetDefault("SERVER_READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER_WRITE_TIMEOUT", 60*time.Second)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "http://localhost,http://127.0.0.1,http://localhost:80,http://127.0.0.1:80")
	v.SetDefault("SERVER_RATE_LIMIT", 5.0)
	v.SetDefault("SERVER_RATE_BURST", 10)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("S3_ENABLED", false)
	v.SetDefault("S3_ENDPOINT", "localhost:9000")
	v.SetDefault("S3_ACCESS_KEY_ID", "minioadmin")
	v.SetDefault("S3_SECRET_ACCESS_KEY", "minioadmin")
	v.SetDefault("S3_USE_SSL", false)
	v.SetDefault("S3_BUCKET_NAME", "images")
	v.SetDefault("S3_REGION", "us-east-1")
	v.SetDefault("APP_MAX_UPLOAD_SIZE", 32<<20) // 32MB
	v.SetDefault("APP_MAX_PIXELS", 40_000_000)
	v.SetDefault("APP_ALLOWED_FORMATS", ".png,.jpg,.jpeg,.gif,.bmp,.tif,.tiff,.webp")
	v.SetDefault("APP_UI_DIR", "./frontend/dist")
	v.SetDefault("APP_WORKERS", runtime.NumCPU())
	v.SetDefault("APP_HISTORY_DB_PATH", "./data/history.db")
	v.SetDefault("APP_HISTORY_DSN", "")
	v.SetDefault("SENTRY_DSN", "")
	v.SetDefault("APP_HISTORY_LIMIT", 50)
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return errors.New("SERVER_PORT must not be empty")
	}
	if c.App.MaxUploadSize <= 0 {
		return errors.New("APP_MAX_UPLOAD_SIZE must be positive")
	}
	if c.App.Workers < 1 {
		return errors.New("APP_WORKERS must be at least 1")
	}
	if c.App.HistoryDSN != "" && !strings.HasPrefix(c.App.HistoryDSN, "postgres://") && !strings.HasPrefix(c.App.HistoryDSN, "postgresql://") {
		return errors.New("APP_HISTORY_DSN must be a postgres:// URL")
	}
	if c.S3.Enabled && c.S3.BucketName == "" {
		return errors.New("S3_BUCKET_NAME is required when S3 is enabled")
	}
	return nil
}

func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func createDirs(cfg *Config) error {
	if cfg.App.HistoryDBPath == "" || cfg.App.HistoryDSN != "" {
		return nil
	}
	dir := filepath.Dir(cfg.App.HistoryDBPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
