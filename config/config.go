// Package config loads the server configuration.
//
// Values are applied in order: defaults, YAML file, environment variables
// prefixed with SPLATVIEW (for example SPLATVIEW_USAGE_LIMIT=100).
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/seqsense/splatview/frame"
	"github.com/seqsense/splatview/relay"
	"github.com/seqsense/splatview/share"
	"github.com/seqsense/splatview/usage"
)

const EnvPrefix = "SPLATVIEW"

type Config struct {
	Server ServerConfig  `yaml:"server" env:"SERVER"`
	Relay  relay.Config  `yaml:"relay" env:"RELAY"`
	Usage  usage.Config  `yaml:"usage" env:"USAGE"`
	Share  share.Codec   `yaml:"share" env:"SHARE"`
	Viewer frame.Options `yaml:"viewer" env:"VIEWER"`
	Log    LogConfig     `yaml:"log" env:"LOG"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" env:"ADDR"`
	StaticDir       string        `yaml:"static_dir" env:"STATIC_DIR"`
	MaxUploadBytes  int64         `yaml:"max_upload_bytes" env:"MAX_UPLOAD_BYTES"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// AllowedOrigins is the CORS allow list. Empty disables cross origin
	// requests.
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS"`
	// UploadRate is the sustained uploads per second allowed from one
	// client address. Zero disables throttling.
	UploadRate  float64 `yaml:"upload_rate" env:"UPLOAD_RATE"`
	UploadBurst int     `yaml:"upload_burst" env:"UPLOAD_BURST"`
	// InspectMaxBytes caps the cloud size fetched by the inspect endpoint.
	InspectMaxBytes int64 `yaml:"inspect_max_bytes" env:"INSPECT_MAX_BYTES"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
	// File enables rotated file output in addition to stderr.
	File       string `yaml:"file" env:"FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb" env:"MAX_SIZE_MB"`
	MaxBackups int    `yaml:"max_backups" env:"MAX_BACKUPS"`
}

func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			StaticDir:       "public",
			MaxUploadBytes:  20 << 20,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    relay.DefaultTimeout + 30*time.Second,
			ShutdownTimeout: 10 * time.Second,
			UploadRate:      0.2,
			UploadBurst:     3,
			InspectMaxBytes: 256 << 20,
		},
		Relay:  relay.DefaultConfig(),
		Usage:  usage.DefaultConfig(),
		Share:  share.Codec{Schemes: []string{"https"}},
		Viewer: frame.DefaultOptions(),
		Log: LogConfig{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  100,
			MaxBackups: 3,
		},
	}
}

// Load reads path (optional) and the environment on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(&cfg, path); err != nil {
			return nil, err
		}
	}
	if err := ApplyEnv(&cfg, EnvPrefix, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func loadFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

var ErrInvalid = errors.New("invalid config")

func (c *Config) Validate() error {
	var err error
	if c.Server.Addr == "" {
		err = multierr.Append(err, errors.New("server.addr is required"))
	}
	if c.Server.MaxUploadBytes <= 0 {
		err = multierr.Append(err, fmt.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes))
	}
	if c.Server.UploadRate < 0 {
		err = multierr.Append(err, errors.New("server.upload_rate must not be negative"))
	}
	if c.Server.UploadRate > 0 && c.Server.UploadBurst <= 0 {
		err = multierr.Append(err, errors.New("server.upload_burst must be positive when upload_rate is set"))
	}
	if c.Usage.Limit <= 0 {
		err = multierr.Append(err, fmt.Errorf("usage.limit must be positive, got %d", c.Usage.Limit))
	}
	if c.Usage.Window < 0 {
		err = multierr.Append(err, errors.New("usage.window must not be negative"))
	}
	switch c.Usage.Backend {
	case usage.BackendMemory, usage.BackendRedis, "":
	default:
		err = multierr.Append(err, fmt.Errorf("usage.backend %q is not supported", c.Usage.Backend))
	}
	if c.Relay.Endpoint != "" {
		u, perr := url.Parse(c.Relay.Endpoint)
		if perr != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			err = multierr.Append(err, fmt.Errorf("relay.endpoint %q is not an absolute http(s) url", c.Relay.Endpoint))
		}
	}
	if c.Relay.Timeout < 0 {
		err = multierr.Append(err, errors.New("relay.timeout must not be negative"))
	}
	switch c.Log.Format {
	case "json", "console", "":
	default:
		err = multierr.Append(err, fmt.Errorf("log.format %q is not supported", c.Log.Format))
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}
