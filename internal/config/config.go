// Package config resolves service settings from defaults, an optional YAML
// file, CALSHARE_* environment variables and command-line flags, in that
// order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CALSHARE_"

type Config struct {
	Addr         string        `yaml:"addr"`
	DBPath       string        `yaml:"db_path"`
	LogLevel     string        `yaml:"log_level"`
	LogFormat    string        `yaml:"log_format"`
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
	StoreTimeout time.Duration `yaml:"store_timeout"`
	// WSOrigins lists extra origins allowed to open websocket connections.
	WSOrigins []string `yaml:"ws_origins"`
}

func Default() Config {
	return Config{
		Addr:         ":8080",
		DBPath:       "calshare.db",
		LogLevel:     "info",
		LogFormat:    "text",
		TokenTTL:     24 * time.Hour,
		StoreTimeout: 5 * time.Second,
	}
}

// ErrHelp is returned when -h or --help was requested.
var ErrHelp = pflag.ErrHelp

// Load resolves the configuration. args excludes the program name and
// getenv is usually os.Getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	fs := pflag.NewFlagSet("calshare", pflag.ContinueOnError)
	configPath := fs.String("config", getenv(envPrefix+"CONFIG"), "path to a YAML config file")
	addr := fs.String("addr", "", "listen address")
	dbPath := fs.String("db", "", "SQLite database path")
	logLevel := fs.String("log-level", "", "debug, info, warn or error")
	logFormat := fs.String("log-format", "", "text or json")
	secret := fs.String("jwt-secret", "", "HMAC secret for bearer tokens")
	ttl := fs.Duration("token-ttl", 0, "bearer token lifetime")
	timeout := fs.Duration("store-timeout", 0, "deadline for each store operation")
	origins := fs.StringSlice("ws-origin", nil, "extra origin allowed to open websockets (repeatable)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if *configPath != "" {
		if err := loadFile(*configPath, &cfg); err != nil {
			return nil, err
		}
	}
	if err := applyEnv(&cfg, getenv); err != nil {
		return nil, err
	}

	if fs.Changed("addr") {
		cfg.Addr = *addr
	}
	if fs.Changed("db") {
		cfg.DBPath = *dbPath
	}
	if fs.Changed("log-level") {
		cfg.LogLevel = *logLevel
	}
	if fs.Changed("log-format") {
		cfg.LogFormat = *logFormat
	}
	if fs.Changed("jwt-secret") {
		cfg.JWTSecret = *secret
	}
	if fs.Changed("token-ttl") {
		cfg.TokenTTL = *ttl
	}
	if fs.Changed("store-timeout") {
		cfg.StoreTimeout = *timeout
	}
	if fs.Changed("ws-origin") {
		cfg.WSOrigins = *origins
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := map[string]*string{
		"ADDR":       &cfg.Addr,
		"DB_PATH":    &cfg.DBPath,
		"LOG_LEVEL":  &cfg.LogLevel,
		"LOG_FORMAT": &cfg.LogFormat,
		"JWT_SECRET": &cfg.JWTSecret,
	}
	for name, dst := range str {
		if v := getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}

	dur := map[string]*time.Duration{
		"TOKEN_TTL":     &cfg.TokenTTL,
		"STORE_TIMEOUT": &cfg.StoreTimeout,
	}
	for name, dst := range dur {
		v := getenv(envPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	if v := getenv(envPrefix + "WS_ORIGINS"); v != "" {
		cfg.WSOrigins = strings.Split(v, ",")
	}
	return nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required (--jwt-secret or CALSHARE_JWT_SECRET)"))
	}
	if c.Addr == "" {
		errs = append(errs, errors.New("listen address is required"))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("database path is required"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, fmt.Errorf("token ttl must be positive, got %s", c.TokenTTL))
	}
	if c.StoreTimeout <= 0 {
		errs = append(errs, fmt.Errorf("store timeout must be positive, got %s", c.StoreTimeout))
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log format must be text or json, got %q", c.LogFormat))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
