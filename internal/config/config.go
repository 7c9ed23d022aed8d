package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config hotel-dashboard configuration
type Config struct {
	HTTP struct {
		Addr string `yaml:"addr"`
	} `yaml:"http"`
	API APIConfig `yaml:"api"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// APIConfig describes the remote room API the dashboard consumes.
type APIConfig struct {
	BaseURL          string        `yaml:"base_url"`
	MediaBaseURL     string        `yaml:"media_base_url"` // relative image_url values resolve against this host
	Timeout          time.Duration `yaml:"timeout"`
	RetryCount       int           `yaml:"retry_count"` // GET only
	RateLimit        float64       `yaml:"rate_limit"`  // requests per second, 0 disables
	TempImageSegment string        `yaml:"temp_image_segment"`
}

const (
	DefaultHTTPAddr         = ":3000"
	DefaultAPIBaseURL       = "http://localhost:8000"
	DefaultTempImageSegment = "/uploads/rooms/temp/"
)

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = DefaultHTTPAddr
	cfg.API.BaseURL = DefaultAPIBaseURL
	cfg.API.Timeout = 30 * time.Second
	cfg.API.RetryCount = 2
	cfg.API.RateLimit = 20
	cfg.API.TempImageSegment = DefaultTempImageSegment
	cfg.Log.Level = "info"
	cfg.Log.Format = "json"
	return cfg
}

// Load layers defaults, an optional .env file, an optional YAML file at
// path and finally environment variables.
func Load(path string) (*Config, error) {
	// .env is optional in every environment
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.HTTP.Addr = getEnv("HTTP_ADDR", cfg.HTTP.Addr)
	cfg.API.BaseURL = getEnv("API_BASE_URL", cfg.API.BaseURL)
	cfg.API.MediaBaseURL = getEnv("API_MEDIA_BASE_URL", cfg.API.MediaBaseURL)
	cfg.API.Timeout = parseDuration(getEnv("API_TIMEOUT", ""), cfg.API.Timeout)
	cfg.API.RetryCount = parseInt(getEnv("API_RETRY_COUNT", ""), cfg.API.RetryCount)
	cfg.API.RateLimit = parseFloat(getEnv("API_RATE_LIMIT", ""), cfg.API.RateLimit)
	cfg.API.TempImageSegment = getEnv("API_TEMP_IMAGE_SEGMENT", cfg.API.TempImageSegment)
	cfg.Log.Level = getEnv("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Format = getEnv("LOG_FORMAT", cfg.Log.Format)

	if cfg.API.MediaBaseURL == "" {
		cfg.API.MediaBaseURL = cfg.API.BaseURL
	}
	// image paths are matched from the root
	if seg := cfg.API.TempImageSegment; seg != "" && !strings.HasPrefix(seg, "/") {
		cfg.API.TempImageSegment = "/" + seg
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations the client cannot run with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api base url is required")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive, got %s", c.API.Timeout)
	}
	if c.API.RetryCount < 0 {
		return fmt.Errorf("api retry count must not be negative, got %d", c.API.RetryCount)
	}
	if c.API.TempImageSegment == "" {
		return fmt.Errorf("api temp image segment is required")
	}
	if !strings.HasPrefix(c.API.TempImageSegment, "/") {
		return fmt.Errorf("api temp image segment must start with /, got %q", c.API.TempImageSegment)
	}
	return nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseFloat(s string, def float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return def
	}
	return d
}
