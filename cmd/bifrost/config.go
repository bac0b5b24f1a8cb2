package main

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

var configValidator = validator.New()

// Config is the serve configuration, read from an HCL file:
//
//	addr                  = "localhost:8000"
//	log_level             = "debug"
//	log_format            = "json"
//	mask_internal_errors  = true
//	max_request_body_size = 1048576
//	websocket             = true
//
//	cors {
//	  allowed_origins   = ["http://localhost:5173"]
//	  allow_credentials = true
//	  max_age           = 600
//	}
type Config struct {
	Addr               string      `hcl:"addr,optional" validate:"hostname_port"`
	LogLevel           string      `hcl:"log_level,optional" validate:"oneof=debug info warn error"`
	LogFormat          string      `hcl:"log_format,optional" validate:"oneof=text json"`
	MaskInternalErrors bool        `hcl:"mask_internal_errors,optional"`
	MaxRequestBodySize int64       `hcl:"max_request_body_size,optional" validate:"gte=0"`
	WebSocket          bool        `hcl:"websocket,optional"`
	CORS               *CORSConfig `hcl:"cors,block"`
}

// CORSConfig is the cors block of Config.
type CORSConfig struct {
	AllowedOrigins   []string `hcl:"allowed_origins,optional" validate:"dive,required"`
	AllowedHeaders   []string `hcl:"allowed_headers,optional"`
	ExposedHeaders   []string `hcl:"exposed_headers,optional"`
	AllowCredentials bool     `hcl:"allow_credentials,optional"`
	MaxAge           int      `hcl:"max_age,optional" validate:"gte=0"`
}

func defaultConfig() *Config {
	return &Config{
		Addr:               "localhost:8000",
		LogLevel:           "info",
		LogFormat:          "text",
		MaxRequestBodySize: 1 << 20,
	}
}

// loadConfig reads path over the defaults. An empty path returns the
// defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		parser := hclparse.NewParser()
		file, diags := parser.ParseHCLFile(path)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, diags)
		}
		if diags := gohcl.DecodeBody(file.Body, nil, cfg); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode config file %s: %w", path, diags)
		}
	}
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.LogFormat = strings.ToLower(cfg.LogFormat)
	if err := configValidator.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// logger returns the logger described by the log settings, writing to w.
func (c *Config) logger(w io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
