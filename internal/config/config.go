// Package config loads runtime settings from a TOML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"DrawingTransformer/internal/state"
)

const (
	ProviderHTTP   = "http"
	ProviderOpenAI = "openai"
	ProviderAzure  = "azure"
)

type Config struct {
	Listen    string `toml:"listen"`
	Advertise bool   `toml:"advertise"`
	Verbose   bool   `toml:"verbose"`

	Canvas  CanvasConfig  `toml:"canvas"`
	Upload  UploadConfig  `toml:"upload"`
	Service ServiceConfig `toml:"service"`
	Backend BackendConfig `toml:"backend"`
}

type CanvasConfig struct {
	BaseSize int       `toml:"base_size"`
	Scale    float64   `toml:"scale"`
	Color    state.RGB `toml:"color"`
	Width    float64   `toml:"width"`
}

type UploadConfig struct {
	MaxBytes int64 `toml:"max_bytes"`
}

// ServiceConfig selects and configures the transformation service.
type ServiceConfig struct {
	Provider    string        `toml:"provider"`
	BaseURL     string        `toml:"base_url"`
	APIKey      string        `toml:"api_key"`
	APIVersion  string        `toml:"api_version"`
	VisionModel string        `toml:"vision_model"`
	ImageModel  string        `toml:"image_model"`
	Timeout     time.Duration `toml:"timeout"`
	MaxRetries  int           `toml:"max_retries"`
}

type BackendConfig struct {
	Listen string `toml:"listen"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Listen: ":8888",
		Canvas: CanvasConfig{
			BaseSize: state.DefaultBaseSize,
			Scale:    state.DefaultScale,
			Color:    state.Black,
			Width:    5,
		},
		Upload: UploadConfig{MaxBytes: state.DefaultMaxUpload},
		Service: ServiceConfig{
			Provider:   ProviderHTTP,
			BaseURL:    "http://localhost:8000",
			Timeout:    2 * time.Minute,
			MaxRetries: 2,
		},
		Backend: BackendConfig{Listen: ":8000"},
	}
}

// Load reads path over the defaults, then applies environment overrides.
// An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		md, err := toml.DecodeFile(path, &cfg)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return Config{}, fmt.Errorf("unknown config key %q in %s", undec[0].String(), path)
		}
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// ApplyEnv overrides service settings from the environment. The Azure
// variables select the azure provider when an endpoint is present.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("TRANSFORM_BACKEND_URL"); ok && v != "" {
		c.Service.Provider = ProviderHTTP
		c.Service.BaseURL = v
	}
	if v, ok := lookup("OPENAI_API_KEY"); ok && v != "" {
		c.Service.Provider = ProviderOpenAI
		c.Service.APIKey = v
		c.Service.BaseURL = ""
	}
	if v, ok := lookup("AZURE_OPENAI_ENDPOINT"); ok && v != "" {
		c.Service.Provider = ProviderAzure
		c.Service.BaseURL = v
	}
	str("AZURE_OPENAI_API_KEY", &c.Service.APIKey)
	str("AZURE_OPENAI_API_VERSION", &c.Service.APIVersion)
	str("AZURE_OPENAI_VISION_MODEL_NAME", &c.Service.VisionModel)
	str("AZURE_OPENAI_MODEL_NAME", &c.Service.ImageModel)

	if v, ok := lookup("TRANSFORM_MAX_RETRIES"); ok && v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("TRANSFORM_MAX_RETRIES: %w", err)
		}
		c.Service.MaxRetries = n
	}
	return nil
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	switch {
	case c.Canvas.BaseSize <= 0:
		return errors.New("canvas.base_size must be positive")
	case c.Canvas.Scale < 1:
		return errors.New("canvas.scale must be at least 1")
	case c.Canvas.Width <= 0:
		return errors.New("canvas.width must be positive")
	case c.Upload.MaxBytes <= 0:
		return errors.New("upload.max_bytes must be positive")
	case c.Service.MaxRetries < 0:
		return errors.New("service.max_retries must not be negative")
	}
	switch c.Service.Provider {
	case ProviderHTTP:
		if c.Service.BaseURL == "" {
			return errors.New("service.base_url is required for the http provider")
		}
	case ProviderOpenAI:
		if c.Service.APIKey == "" {
			return errors.New("service.api_key is required for the openai provider")
		}
	case ProviderAzure:
		if c.Service.BaseURL == "" || c.Service.APIKey == "" {
			return errors.New("service.base_url and service.api_key are required for the azure provider")
		}
		if c.Service.VisionModel == "" || c.Service.ImageModel == "" {
			return errors.New("service.vision_model and service.image_model name azure deployments and are required")
		}
	default:
		return fmt.Errorf("unknown service.provider %q", c.Service.Provider)
	}
	return nil
}
