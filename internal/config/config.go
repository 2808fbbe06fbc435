package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/xxxsen/common/logger"
)

type Config struct {
	Database          DatabaseConfig   `json:"database"`
	JWTSecret         string           `json:"jwt_secret" env:"DSHARE_JWT_SECRET"`
	Port              int              `json:"port" env:"DSHARE_PORT"`
	JWTTTLHours       int              `json:"jwt_ttl_hours"`
	LogConfig         logger.LogConfig `json:"log_config"`
	FileStore         FileStoreConfig  `json:"file_store"`
	AI                AIConfig         `json:"ai"`
	Share             ShareConfig      `json:"share"`
	CORSOrigins       []string         `json:"cors_origins"`
	PublicRateLimitMS int              `json:"public_rate_limit_ms"`
	// Superusers lists emails granted superuser on registration.
	Superusers      []string `json:"superusers"`
	MaxUploadSizeMB int64    `json:"max_upload_size_mb"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn" env:"DSHARE_DB_DSN"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password" env:"DSHARE_DB_PASSWORD"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type FileStoreConfig struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
	// S3SecretKey overrides data.secret_key for the s3 store.
	S3SecretKey string `json:"-" env:"DSHARE_S3_SECRET_KEY"`
}

type AIConfig struct {
	Provider      string                 `json:"provider"`
	Model         string                 `json:"model"`
	Timeout       int                    `json:"timeout"`
	MaxInputChars int                    `json:"max_input_chars"`
	Data          map[string]interface{} `json:"data"`
	// APIKey overrides data.api_key.
	APIKey string `json:"-" env:"DSHARE_AI_API_KEY"`
}

type ShareConfig struct {
	SessionTTLHours       int    `json:"session_ttl_hours"`
	SessionRetentionHours int    `json:"session_retention_hours"`
	SessionCacheSize      int    `json:"session_cache_size"`
	MaxDownloads          int64  `json:"max_downloads"`
	MaxChats              int64  `json:"max_chats"`
	SweepSpec             string `json:"sweep_spec"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.FileStore.Type == "" {
		cfg.FileStore.Type = "local"
	}
	if cfg.FileStore.Type != "local" && cfg.FileStore.Type != "s3" {
		return fmt.Errorf("file_store.type must be local or s3")
	}
	if cfg.FileStore.S3SecretKey != "" {
		if cfg.FileStore.Data == nil {
			cfg.FileStore.Data = map[string]interface{}{}
		}
		cfg.FileStore.Data["secret_key"] = cfg.FileStore.S3SecretKey
	}
	if cfg.AI.APIKey != "" {
		if cfg.AI.Data == nil {
			cfg.AI.Data = map[string]interface{}{}
		}
		cfg.AI.Data["api_key"] = cfg.AI.APIKey
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 60
	}
	if cfg.AI.MaxInputChars <= 0 {
		cfg.AI.MaxInputChars = 20000
	}
	if cfg.Share.SessionTTLHours <= 0 {
		cfg.Share.SessionTTLHours = 24
	}
	if cfg.Share.SessionRetentionHours < cfg.Share.SessionTTLHours {
		cfg.Share.SessionRetentionHours = cfg.Share.SessionTTLHours
	}
	if cfg.Share.SessionCacheSize <= 0 {
		cfg.Share.SessionCacheSize = 4096
	}
	if cfg.Share.SweepSpec == "" {
		cfg.Share.SweepSpec = "*/10 * * * *"
	}
	if cfg.MaxUploadSizeMB <= 0 {
		cfg.MaxUploadSizeMB = 100
	}
	if cfg.PublicRateLimitMS < 0 {
		cfg.PublicRateLimitMS = 0
	}
	return nil
}
