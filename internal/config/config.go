package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	JWTSecret     string           `json:"jwt_secret"`
	CORSAllowlist []string         `json:"cors_allowlist"`
	LogConfig     logger.LogConfig `json:"log_config"`
	AI            AIConfig         `json:"ai"`
	Session       SessionConfig    `json:"session"`
	Quota         QuotaConfig      `json:"quota"`
	Query         QueryConfig      `json:"query"`
	Export        ExportConfig     `json:"export"`
}

type AIConfig struct {
	Provider       string                 `json:"provider"`
	Model          string                 `json:"model"`
	Dimension      int                    `json:"dimension"`
	TimeoutSeconds int                    `json:"timeout_seconds"`
	MaxParallel    int                    `json:"max_parallel"`
	BatchSize      int                    `json:"batch_size"`
	RateLimit      float64                `json:"rate_limit"`
	QueryCacheSize int                    `json:"query_cache_size"`
	Data           map[string]interface{} `json:"data"`
}

type SessionConfig struct {
	TTLSeconds    int    `json:"ttl_seconds"`
	SweepSpec     string `json:"sweep_spec"`
	MaxChunks     int    `json:"max_chunks"`
	MaxBatchSize  int    `json:"max_batch_size"`
	MaxTextLength int    `json:"max_text_length"`
}

type QuotaConfig struct {
	Limit         int `json:"limit"`
	WindowSeconds int `json:"window_seconds"`
	// IngestIntervalMillis is the per-caller minimum spacing between ingest
	// requests. Zero disables the spacing check; the chunk quota still applies.
	IngestIntervalMillis int `json:"ingest_interval_millis"`
}

type QueryConfig struct {
	MaxK int `json:"max_k"`
}

type ExportConfig struct {
	Type string         `json:"type"`
	Dir  string         `json:"dir"`
	S3   ExportS3Config `json:"s3"`
}

type ExportS3Config struct {
	Endpoint  string `json:"endpoint"`
	SecretID  string `json:"secret_id"`
	SecretKey string `json:"secret_key"`
	Bucket    string `json:"bucket"`
	Region    string `json:"region"`
	Prefix    string `json:"prefix"`
}

func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c QuotaConfig) Window() time.Duration {
	return time.Duration(c.WindowSeconds) * time.Second
}

func (c QuotaConfig) IngestInterval() time.Duration {
	return time.Duration(c.IngestIntervalMillis) * time.Millisecond
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
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("jwt_secret is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Provider == "" {
		return nil, fmt.Errorf("ai.provider is required")
	}
	if cfg.AI.Model == "" {
		return nil, fmt.Errorf("ai.model is required")
	}
	if cfg.AI.Dimension <= 0 {
		return nil, fmt.Errorf("ai.dimension is required")
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = 30
	}
	if cfg.AI.QueryCacheSize == 0 {
		cfg.AI.QueryCacheSize = 4096
	}
	if cfg.Session.TTLSeconds <= 0 {
		cfg.Session.TTLSeconds = 1800
	}
	if cfg.Session.SweepSpec == "" {
		cfg.Session.SweepSpec = "*/30 * * * * *"
	}
	if cfg.Session.MaxChunks <= 0 {
		cfg.Session.MaxChunks = 5000
	}
	if cfg.Session.MaxBatchSize <= 0 {
		cfg.Session.MaxBatchSize = 500
	}
	if cfg.Session.MaxTextLength <= 0 {
		cfg.Session.MaxTextLength = 8192
	}
	if cfg.Quota.Limit <= 0 {
		cfg.Quota.Limit = 10000
	}
	if cfg.Quota.WindowSeconds <= 0 {
		cfg.Quota.WindowSeconds = 3600
	}
	if cfg.Query.MaxK <= 0 {
		cfg.Query.MaxK = 50
	}
	if cfg.Export.Type == "" {
		cfg.Export.Type = "none"
	}
	switch cfg.Export.Type {
	case "none":
	case "local":
		if cfg.Export.Dir == "" {
			return nil, fmt.Errorf("export.dir is required for local export sink")
		}
	case "s3":
		s3 := cfg.Export.S3
		if s3.Endpoint == "" || s3.Bucket == "" || s3.SecretID == "" || s3.SecretKey == "" {
			return nil, fmt.Errorf("export.s3 endpoint/bucket/secret_id/secret_key are required for s3 sink")
		}
		if cfg.Export.S3.Region == "" {
			cfg.Export.S3.Region = "us-east-1"
		}
	default:
		return nil, fmt.Errorf("export.type must be none, local or s3")
	}
	return &cfg, nil
}
