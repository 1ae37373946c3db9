package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultDownloadDir   = "downloads"
	DefaultPort          = 8000
	DefaultCleanupDelay  = 30 * time.Minute
	DefaultSubjectPrefix = "video.jobs"
	DefaultCORSOrigins   = "http://localhost:3000,http://localhost:5173"
)

// Config holds the server settings read from the environment
type Config struct {
	DownloadDir   string
	Port          int
	CleanupDelay  time.Duration
	CORSOrigins   []string
	GinMode       string
	NATSURL       string
	SubjectPrefix string
	YtdlpPath     string
}

// LoadDotEnv loads a .env file from the working directory if one exists
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("Warning: could not parse .env file: %v", err)
	}
}

// Load reads the configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		DownloadDir:   getenv("DOWNLOAD_DIR", DefaultDownloadDir),
		Port:          DefaultPort,
		CleanupDelay:  DefaultCleanupDelay,
		CORSOrigins:   splitList(getenv("CORS_ORIGINS", DefaultCORSOrigins)),
		GinMode:       os.Getenv("GIN_MODE"),
		NATSURL:       os.Getenv("NATS_URL"),
		SubjectPrefix: getenv("NATS_SUBJECT_PREFIX", DefaultSubjectPrefix),
		YtdlpPath:     os.Getenv("YTDLP_PATH"),
	}

	if v := os.Getenv("SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return nil, fmt.Errorf("invalid SERVER_PORT %q", v)
		}
		cfg.Port = port
	}

	if v := os.Getenv("CLEANUP_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid CLEANUP_DELAY %q: %w", v, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("CLEANUP_DELAY must be positive, got %s", d)
		}
		cfg.CleanupDelay = d
	}

	abs, err := filepath.Abs(cfg.DownloadDir)
	if err != nil {
		return nil, fmt.Errorf("resolve download dir: %w", err)
	}
	cfg.DownloadDir = abs

	return cfg, nil
}

// EnsureDownloadDir creates the download directory if it is missing
func (c *Config) EnsureDownloadDir() error {
	if err := os.MkdirAll(c.DownloadDir, 0755); err != nil {
		return fmt.Errorf("create download dir %s: %w", c.DownloadDir, err)
	}
	return nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
