package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chriskillpack/imgcap"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"IMGCAP_BACKEND", "IMGCAP_MODEL", "IMGCAP_TIMEOUT", "IMGCAP_RATE_LIMIT", "IMGCAP_DB",
		"HF_ENDPOINT", "HF_TOKEN", "LLAMA_SERVER", "OLLAMA_HOST", "OPENAI_API_KEY", "OPENAI_BASE_URL",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad(t *testing.T) {
	clearEnv(t)

	t.Run("defaults", func(t *testing.T) {
		cfg, err := Load("")
		if err != nil {
			t.Fatal(err)
		}
		if expected, actual := imgcap.BackendHuggingFace, cfg.Backend; expected != actual {
			t.Errorf("Expected backend %q, got %q", expected, actual)
		}
		if expected, actual := 60*time.Second, cfg.Timeout; expected != actual {
			t.Errorf("Expected timeout %s, got %s", expected, actual)
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("Unexpected error %s", err)
		}
	})

	t.Run("file then env", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "imgcap.yaml")
		err := os.WriteFile(path, []byte(`
backend: llama
model: llava-v1.6
timeout: 2m
rate_limit: 20
llama:
  server: http://localhost:8080
  seed: 7
`), 0o644)
		if err != nil {
			t.Fatal(err)
		}
		t.Setenv("IMGCAP_MODEL", "bakllava")
		t.Setenv("IMGCAP_TIMEOUT", "not a duration")

		cfg, err := Load(path)
		if err != nil {
			t.Fatal(err)
		}
		if expected, actual := imgcap.BackendLlama, cfg.Backend; expected != actual {
			t.Errorf("Expected backend %q, got %q", expected, actual)
		}
		if expected, actual := "bakllava", cfg.Model; expected != actual {
			t.Errorf("Expected model %q, got %q", expected, actual)
		}
		// Unparseable env values are ignored
		if expected, actual := 2*time.Minute, cfg.Timeout; expected != actual {
			t.Errorf("Expected timeout %s, got %s", expected, actual)
		}
		if expected, actual := 7, cfg.Llama.Seed; expected != actual {
			t.Errorf("Expected seed %d, got %d", expected, actual)
		}
		// Untouched sections keep their defaults
		if expected, actual := "http://localhost:11434", cfg.Ollama.Server; expected != actual {
			t.Errorf("Expected ollama server %q, got %q", expected, actual)
		}

		opts := cfg.InitOptions()
		if expected, actual := "http://localhost:8080", opts.LlamaServer; expected != actual {
			t.Errorf("Expected llama server %q, got %q", expected, actual)
		}
		if expected, actual := 20, opts.RateLimit; expected != actual {
			t.Errorf("Expected rate limit %d, got %d", expected, actual)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
			t.Errorf("Expected error for missing file")
		}
	})

	t.Run("bad yaml", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "bad.yaml")
		if err := os.WriteFile(path, []byte("backend: [unterminated"), 0o644); err != nil {
			t.Fatal(err)
		}
		if _, err := Load(path); err == nil {
			t.Errorf("Expected parse error")
		}
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"default", func(*Config) {}, true},
		{"unknown backend", func(c *Config) { c.Backend = "torch" }, false},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }, false},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, false},
		{"llama without server", func(c *Config) { c.Backend = imgcap.BackendLlama }, false},
		{"llama with server", func(c *Config) {
			c.Backend = imgcap.BackendLlama
			c.Llama.Server = "http://localhost:8080"
		}, true},
		{"ollama without server", func(c *Config) {
			c.Backend = imgcap.BackendOllama
			c.Ollama.Server = ""
		}, false},
		{"openai", func(c *Config) { c.Backend = imgcap.BackendOpenAI }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Errorf("Unexpected error %s", err)
			}
			if !tt.ok && err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}
