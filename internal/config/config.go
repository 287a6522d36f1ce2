package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration settings. Values come from
// CIVITAI_-prefixed environment variables (optionally via a .env file)
// and may be overridden by command-line flags.
type Config struct {
	URLFile     string `envconfig:"URL_FILE"`
	DownloadDir string `envconfig:"DOWNLOAD_DIR" default:"."`

	MaxThreads int `envconfig:"MAX_THREADS" default:"5"`
	Retries    int `envconfig:"RETRIES" default:"3"`

	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT" default:"10s"`
	ReadTimeout    time.Duration `envconfig:"READ_TIMEOUT" default:"60s"`
	ChunkSize      int           `envconfig:"CHUNK_SIZE" default:"65536"`

	StatusAddr string `envconfig:"STATUS_ADDR" default:""`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.URLFile == "" {
		return fmt.Errorf("url file is required")
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}
	if c.MaxThreads <= 0 {
		return fmt.Errorf("max threads must be positive: %d", c.MaxThreads)
	}
	if c.Retries <= 0 {
		return fmt.Errorf("retries must be positive: %d", c.Retries)
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect timeout must be positive: %s", c.ConnectTimeout)
	}
	if c.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive: %s", c.ReadTimeout)
	}
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk size must be positive: %d", c.ChunkSize)
	}
	return nil
}
