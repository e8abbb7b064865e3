// Package config - Service configuration loaded from YAML and flags.
package config

import (
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/nvr-ai/go-detect/inference/detectors"
	"github.com/nvr-ai/go-detect/inference/providers"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// Config is the complete service configuration.
type Config struct {
	// LogLevel is any level logrus.ParseLevel accepts.
	LogLevel string `json:"log_level" yaml:"log_level"`
	// LogFormat is text or json.
	LogFormat string `json:"log_format" yaml:"log_format"`

	Server   ServerConfig     `json:"server"   yaml:"server"`
	Runtime  providers.Config `json:"runtime"  yaml:"runtime"`
	Detector detectors.Config `json:"detector" yaml:"detector"`
}

// ServerConfig holds the HTTP listener settings.
type ServerConfig struct {
	Addr            string        `json:"addr"             yaml:"addr"`
	ReadTimeout     time.Duration `json:"read_timeout"     yaml:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"    yaml:"write_timeout"`
	RequestTimeout  time.Duration `json:"request_timeout"  yaml:"request_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout"`
	// MaxUploadBytes caps the multipart body of /detect.
	MaxUploadBytes int64 `json:"max_upload_bytes" yaml:"max_upload_bytes"`
	// StaticDir is served at / when set.
	StaticDir string `json:"static_dir" yaml:"static_dir"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		LogLevel:  logrus.InfoLevel.String(),
		LogFormat: LogFormatText,
		Server: ServerConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    30 * time.Second,
			RequestTimeout:  10 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxUploadBytes:  32 << 20,
		},
		Runtime:  providers.DefaultConfig(),
		Detector: detectors.DefaultConfig(),
	}
}

// Load reads the YAML file at path on top of Default. An empty path returns
// Default unchanged. The result is not validated.
func Load(path string) (Config, error) {
	config := Default()
	if path == "" {
		return config, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return config, errors.Wrapf(err, "error reading config %s", path)
	}
	if err := yaml.Unmarshal(data, &config); err != nil {
		return config, errors.Wrapf(err, "error parsing config %s", path)
	}
	return config, nil
}

// Validate checks every section and their consistency.
func (c Config) Validate() error {
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return errors.Wrap(err, "log_level")
	}
	if c.LogFormat != LogFormatText && c.LogFormat != LogFormatJSON {
		return errors.Errorf("log_format must be %q or %q, got %q", LogFormatText, LogFormatJSON, c.LogFormat)
	}
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.RequestTimeout <= 0 {
		return errors.Errorf("server.request_timeout must be positive, got %s", c.Server.RequestTimeout)
	}
	if c.Server.MaxUploadBytes <= 0 {
		return errors.Errorf("server.max_upload_bytes must be positive, got %d", c.Server.MaxUploadBytes)
	}
	if err := c.Runtime.Validate(); err != nil {
		return errors.Wrap(err, "runtime")
	}
	if err := c.Detector.Validate(); err != nil {
		return errors.Wrap(err, "detector")
	}
	if c.Runtime.InputSize != c.Detector.InputSize {
		return errors.Errorf("runtime.input_size %d does not match detector.input_size %d",
			c.Runtime.InputSize, c.Detector.InputSize)
	}
	return nil
}

// NewLogger builds a logger from LogLevel and LogFormat.
func (c Config) NewLogger() (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "log_level")
	}

	logger := logrus.New()
	logger.SetLevel(level)
	if c.LogFormat == LogFormatJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return logger, nil
}
