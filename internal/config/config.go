package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/rflorenc/mapsite-admin/internal/models"
)

// EnvPrefix prefixes every environment variable the console reads.
const EnvPrefix = "CONSOLE_"

// BackendConfig describes the map-site API the console manages.
type BackendConfig struct {
	Name     string        `yaml:"name" env:"NAME"`
	Scheme   string        `yaml:"scheme" env:"SCHEME"`
	Host     string        `yaml:"host" env:"HOST"`
	Port     int           `yaml:"port" env:"PORT"`
	Insecure bool          `yaml:"insecure" env:"INSECURE"`
	CACert   string        `yaml:"ca_cert" env:"CA_CERT"` // path to a PEM bundle
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// Config holds all configuration (defaults, config file, environment, CLI flags).
type Config struct {
	Listen     string        `yaml:"listen" env:"LISTEN"`
	BasePath   string        `yaml:"base_path" env:"BASE_PATH"`
	LogLevel   string        `yaml:"log_level" env:"LOG_LEVEL"`
	LogFormat  string        `yaml:"log_format" env:"LOG_FORMAT"`
	TimeZone   string        `yaml:"time_zone" env:"TIME_ZONE"`
	SessionTTL time.Duration `yaml:"session_ttl" env:"SESSION_TTL"`
	Backend    BackendConfig `yaml:"backend" envPrefix:"BACKEND_"`

	// internal: path to config file (from CLI flag)
	configFile string
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Listen:     ":8080",
		BasePath:   "/admin",
		LogLevel:   "info",
		LogFormat:  "text",
		TimeZone:   "Local",
		SessionTTL: 12 * time.Hour,
		Backend: BackendConfig{
			Scheme:  "http",
			Host:    "localhost",
			Port:    80,
			Timeout: 15 * time.Second,
		},
	}
}

// Load builds the configuration from args (without the program name).
// Later sources win: defaults, the YAML file, .env files and the environment,
// then explicitly set flags.
func Load(args []string) (*Config, error) {
	c := Default()

	var (
		envFile   string
		listen    string
		basePath  string
		logLevel  string
		logFormat string
		backend   string
	)
	fs := flag.NewFlagSet("console", flag.ContinueOnError)
	fs.StringVar(&c.configFile, "config", "", "Path to config file (YAML)")
	fs.StringVar(&envFile, "env-file", ".env", "Optional dotenv file")
	fs.StringVar(&listen, "listen", "", "HTTP listen address")
	fs.StringVar(&basePath, "base-path", "", "URL prefix of the console")
	fs.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	fs.StringVar(&logFormat, "log-format", "", "Log format (text or json)")
	fs.StringVar(&backend, "backend", "", "Map-site API host")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if c.configFile != "" {
		if err := c.loadFile(c.configFile); err != nil {
			return nil, err
		}
	}
	if err := loadEnvFile(envFile); err != nil {
		return nil, err
	}
	if err := env.ParseWithOptions(c, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	// Only explicitly set flags override
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "listen":
			c.Listen = listen
		case "base-path":
			c.BasePath = basePath
		case "log-level":
			c.LogLevel = logLevel
		case "log-format":
			c.LogFormat = logFormat
		case "backend":
			c.Backend.Host = backend
		}
	})

	c.BasePath = "/" + strings.Trim(c.BasePath, "/")
	if c.BasePath == "/" {
		c.BasePath = ""
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// loadFile reads a YAML config file over the current values. Keys missing
// from the file keep their value.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// loadEnvFile exports a dotenv file into the environment. A missing file is
// not an error; variables already set are kept.
func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch {
	case c.Listen == "":
		return errors.New("config: listen address is empty")
	case c.Backend.Host == "":
		return errors.New("config: backend host is empty")
	case c.Backend.Scheme != "http" && c.Backend.Scheme != "https":
		return fmt.Errorf("config: backend scheme must be http or https, got %q", c.Backend.Scheme)
	case c.Backend.Port < 0 || c.Backend.Port > 65535:
		return fmt.Errorf("config: backend port %d out of range", c.Backend.Port)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("config: log format must be text or json, got %q", c.LogFormat)
	case c.SessionTTL <= 0:
		return errors.New("config: session_ttl must be positive")
	case strings.ContainsAny(c.BasePath, "?#:* "):
		return fmt.Errorf("config: invalid base path %q", c.BasePath)
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Location resolves the time zone used to display timestamps.
func (c *Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	return time.LoadLocation(c.TimeZone)
}

// BackendSettings returns the API endpoint settings, reading the CA bundle
// when one is configured.
func (c *Config) BackendSettings() (*models.Backend, error) {
	b := &models.Backend{
		Name:     c.Backend.Name,
		Scheme:   c.Backend.Scheme,
		Host:     c.Backend.Host,
		Port:     c.Backend.Port,
		Insecure: c.Backend.Insecure,
		Timeout:  c.Backend.Timeout,
	}
	if c.Backend.CACert != "" {
		pem, err := os.ReadFile(c.Backend.CACert)
		if err != nil {
			return nil, fmt.Errorf("reading CA bundle: %w", err)
		}
		b.CACert = string(pem)
	}
	b.ApplyDefaults()
	return b, nil
}
