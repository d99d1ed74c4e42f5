// Package config reads runtime settings from the environment.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/jeremiesigrist/visu-pdf-pages/pkg/engine"
	"github.com/jeremiesigrist/visu-pdf-pages/pkg/logger"
)

// Defaults.
const (
	DefaultAddr        = "127.0.0.1:8484"
	DefaultLogLevel    = "info"
	DefaultWidth       = 900
	DefaultMaxUploadMB = 64
)

// Config holds the settings shared by the CLI, the server and the GUI.
type Config struct {
	Addr          string
	LogLevel      string
	Backend       string
	ViewportWidth float64
	TextLayer     bool
	CORSOrigins   []string
	MaxUploadMB   int64
}

// Load reads a .env file when one exists, then the environment. A
// missing .env is not an error; a malformed one is.
func Load(files ...string) (*Config, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from environment variables alone.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Addr:     getEnvOrDefault("VISU_ADDR", DefaultAddr),
		LogLevel: getEnvOrDefault("LOG_LEVEL", DefaultLogLevel),
		Backend:  getEnvOrDefault("RENDER_BACKEND", engine.BackendNative),
	}
	var err error
	if cfg.ViewportWidth, err = getEnvFloat("VIEWPORT_WIDTH", DefaultWidth); err != nil {
		return nil, err
	}
	if cfg.TextLayer, err = getEnvBool("TEXT_LAYER", true); err != nil {
		return nil, err
	}
	if cfg.MaxUploadMB, err = getEnvInt64("MAX_UPLOAD_MB", DefaultMaxUploadMB); err != nil {
		return nil, err
	}
	for _, o := range strings.Split(os.Getenv("CORS_ORIGINS"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			cfg.CORSOrigins = append(cfg.CORSOrigins, o)
		}
	}
	return cfg, cfg.Validate()
}

// Validate rejects settings the program cannot run with.
func (c *Config) Validate() error {
	if _, _, err := net.SplitHostPort(c.Addr); err != nil {
		return fmt.Errorf("VISU_ADDR %q: %w", c.Addr, err)
	}
	if !logger.ValidLevel(c.LogLevel) {
		return fmt.Errorf("LOG_LEVEL %q: want debug, info, warn or error", c.LogLevel)
	}
	if !engine.ValidBackend(c.Backend) {
		return fmt.Errorf("RENDER_BACKEND %q: want one of %s", c.Backend, strings.Join(engine.Backends(), ", "))
	}
	if c.ViewportWidth <= 0 {
		return fmt.Errorf("VIEWPORT_WIDTH must be positive, got %g", c.ViewportWidth)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("MAX_UPLOAD_MB must be positive, got %d", c.MaxUploadMB)
	}
	return nil
}

// MaxUploadBytes is the upload limit in bytes.
func (c *Config) MaxUploadBytes() int64 { return c.MaxUploadMB << 20 }

// LoadOptions returns the engine options selected by the config.
func (c *Config) LoadOptions() []engine.Option {
	return []engine.Option{engine.WithBackend(c.Backend)}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) (float64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}

func getEnvInt64(key string, defaultValue int64) (int64, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}
