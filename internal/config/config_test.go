package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"DrawingTransformer/internal/state"
)

func envFrom(m map[string]string) func(string) (string, bool) {
	return func(k string) (string, bool) {
		v, ok := m[k]
		return v, ok
	}
}

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() = %v", err)
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drawing.toml")
	body := `
listen = ":9999"
advertise = true

[canvas]
base_size = 300
color = "#ff0000"
width = 8

[service]
provider = "openai"
api_key = "sk-test"
timeout = "45s"
max_retries = 0
`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":9999" || !cfg.Advertise {
		t.Errorf("listen/advertise = %q/%v", cfg.Listen, cfg.Advertise)
	}
	if cfg.Canvas.BaseSize != 300 || cfg.Canvas.Scale != state.DefaultScale {
		t.Errorf("canvas size = %d x %v", cfg.Canvas.BaseSize, cfg.Canvas.Scale)
	}
	if cfg.Canvas.Color != (state.RGB{R: 255}) || cfg.Canvas.Width != 8 {
		t.Errorf("pen = %v/%v", cfg.Canvas.Color, cfg.Canvas.Width)
	}
	if cfg.Service.Provider != ProviderOpenAI || cfg.Service.Timeout != 45*time.Second {
		t.Errorf("service = %+v", cfg.Service)
	}
	if cfg.Service.MaxRetries != 0 {
		t.Errorf("max_retries = %d, want 0", cfg.Service.MaxRetries)
	}
}

func TestLoad_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(path, []byte("listne = \":1\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "listne") {
		t.Fatalf("Load = %v, want unknown key error", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestApplyEnv(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want ServiceConfig
	}{
		{
			name: "backend url",
			env:  map[string]string{"TRANSFORM_BACKEND_URL": "http://ai:8000"},
			want: ServiceConfig{Provider: ProviderHTTP, BaseURL: "http://ai:8000"},
		},
		{
			name: "openai key",
			env:  map[string]string{"OPENAI_API_KEY": "sk"},
			want: ServiceConfig{Provider: ProviderOpenAI, APIKey: "sk"},
		},
		{
			name: "azure",
			env: map[string]string{
				"AZURE_OPENAI_ENDPOINT":          "https://res.openai.azure.com",
				"AZURE_OPENAI_API_KEY":           "k",
				"AZURE_OPENAI_API_VERSION":       "2024-06-01",
				"AZURE_OPENAI_VISION_MODEL_NAME": "vision",
				"AZURE_OPENAI_MODEL_NAME":        "dalle",
			},
			want: ServiceConfig{
				Provider:    ProviderAzure,
				BaseURL:     "https://res.openai.azure.com",
				APIKey:      "k",
				APIVersion:  "2024-06-01",
				VisionModel: "vision",
				ImageModel:  "dalle",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			if err := cfg.ApplyEnv(envFrom(tt.env)); err != nil {
				t.Fatalf("ApplyEnv: %v", err)
			}
			got := cfg.Service
			got.Timeout, got.MaxRetries = 0, 0
			if got != tt.want {
				t.Errorf("service = %+v, want %+v", got, tt.want)
			}
			if err := cfg.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestApplyEnv_BadRetries(t *testing.T) {
	cfg := Default()
	if err := cfg.ApplyEnv(envFrom(map[string]string{"TRANSFORM_MAX_RETRIES": "many"})); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero base size", func(c *Config) { c.Canvas.BaseSize = 0 }, "base_size"},
		{"fractional scale", func(c *Config) { c.Canvas.Scale = 0.5 }, "canvas.scale"},
		{"zero scale", func(c *Config) { c.Canvas.Scale = 0 }, "canvas.scale"},
		{"negative width", func(c *Config) { c.Canvas.Width = -1 }, "canvas.width"},
		{"no upload limit", func(c *Config) { c.Upload.MaxBytes = 0 }, "max_bytes"},
		{"unknown provider", func(c *Config) { c.Service.Provider = "magic" }, "unknown service.provider"},
		{"openai without key", func(c *Config) { c.Service.Provider = ProviderOpenAI }, "api_key"},
		{"azure without deployments", func(c *Config) {
			c.Service.Provider = ProviderAzure
			c.Service.APIKey = "k"
		}, "deployments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("Validate = %v, want error containing %q", err, tt.want)
			}
		})
	}
}
