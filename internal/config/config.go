package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultPredictEndpoint is where the Explore page sends its form
const DefaultPredictEndpoint = "http://localhost:8000/api/predict-custom/"

// Config holds the application configuration
type Config struct {
	Server   ServerConfig  `json:"server"`
	Predict  PredictConfig `json:"predict"`
	Backend  BackendConfig `json:"backend"`
	Contact  ContactConfig `json:"contact"`
	Logging  LoggingConfig `json:"logging"`
	Headless bool          `json:"headless"`
	Version  string        `json:"-"`
}

// ServerConfig configures the website listener
type ServerConfig struct {
	Port int `json:"port"`
	// PortAttempts is how many consecutive ports are probed when Port is busy
	PortAttempts int `json:"port_attempts"`
}

// PredictConfig configures the outbound prediction call
type PredictConfig struct {
	Endpoint string `json:"endpoint"`
	// Timeout of zero means the call never times out
	Timeout time.Duration `json:"timeout"`
}

// BackendConfig configures the prediction service
type BackendConfig struct {
	Port     int    `json:"port"`
	DBPath   string `json:"db_path"`
	ModelDir string `json:"model_dir"`
}

// ContactConfig configures the contact page
type ContactConfig struct {
	BannerDuration time.Duration `json:"banner_duration"`
}

// LoggingConfig configures zerolog output
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error
	Level string `json:"level"`
	// Format is "console" or "json"
	Format string `json:"format"`
}

// Default returns a Config with all defaults applied
func Default() Config {
	var cfg Config
	cfg.SetDefaults()
	return cfg
}

// Load reads the configuration file at path (YAML or JSON) and applies
// AIRSCOPE_ environment overrides. An empty path skips the file.
// AIRSCOPE_SERVER__PORT=9000 maps to server.port.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := k.Load(env.Provider("AIRSCOPE_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "airscope_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills in unset values
func (c *Config) SetDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 3000
	}
	if c.Server.PortAttempts == 0 {
		c.Server.PortAttempts = 10
	}
	if c.Predict.Endpoint == "" {
		c.Predict.Endpoint = DefaultPredictEndpoint
	}
	if c.Backend.Port == 0 {
		c.Backend.Port = 8000
	}
	if c.Backend.DBPath == "" {
		c.Backend.DBPath = "./data/airscope.db"
	}
	if c.Backend.ModelDir == "" {
		c.Backend.ModelDir = "./models"
	}
	if c.Contact.BannerDuration == 0 {
		c.Contact.BannerDuration = 3 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "console"
	}
	if c.Version == "" {
		c.Version = "dev"
	}
}

// Validate checks the configuration for values that cannot work
func (c Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Backend.Port < 1 || c.Backend.Port > 65535 {
		return fmt.Errorf("invalid backend port %d", c.Backend.Port)
	}
	if c.Predict.Timeout < 0 {
		return fmt.Errorf("predict timeout must not be negative")
	}
	if !strings.HasPrefix(c.Predict.Endpoint, "http://") && !strings.HasPrefix(c.Predict.Endpoint, "https://") {
		return fmt.Errorf("predict endpoint must be an http(s) URL: %q", c.Predict.Endpoint)
	}
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("unknown logging format %s", c.Logging.Format)
	}
	return nil
}
