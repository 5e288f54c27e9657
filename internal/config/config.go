// Package config loads imgcap settings. Values come from, in increasing
// order of precedence, built-in defaults, an optional YAML file and the
// environment. Command line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/chriskillpack/imgcap"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Backend string        `yaml:"backend"`
	Model   string        `yaml:"model"`
	Timeout time.Duration `yaml:"timeout"` // per HTTP request to the model server

	// Requests per minute to hosted APIs, 0 disables limiting
	RateLimit int `yaml:"rate_limit"`

	// Optional caption history database
	DB string `yaml:"db"`

	HuggingFace HuggingFaceConfig `yaml:"huggingface"`
	Llama       LlamaConfig       `yaml:"llama"`
	Ollama      OllamaConfig      `yaml:"ollama"`
	OpenAI      OpenAIConfig      `yaml:"openai"`
}

type HuggingFaceConfig struct {
	Endpoint string `yaml:"endpoint"`
	Token    string `yaml:"token"`
}

type LlamaConfig struct {
	Server string `yaml:"server"`
	Seed   int    `yaml:"seed"`
}

type OllamaConfig struct {
	Server string `yaml:"server"`
}

type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url"`
}

// Default returns the configuration used when nothing else is specified.
func Default() *Config {
	return &Config{
		Backend:   imgcap.BackendHuggingFace,
		Timeout:   60 * time.Second,
		RateLimit: 0,
		Llama: LlamaConfig{
			Seed: 385480504,
		},
		Ollama: OllamaConfig{
			Server: "http://localhost:11434",
		},
	}
}

// Load returns the defaults overlaid with the YAML file at path, if path is
// not empty, and then with the environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Backend = getEnv("IMGCAP_BACKEND", c.Backend)
	c.Model = getEnv("IMGCAP_MODEL", c.Model)
	c.Timeout = getEnvAsDuration("IMGCAP_TIMEOUT", c.Timeout)
	c.RateLimit = getEnvAsInt("IMGCAP_RATE_LIMIT", c.RateLimit)
	c.DB = getEnv("IMGCAP_DB", c.DB)

	c.HuggingFace.Endpoint = getEnv("HF_ENDPOINT", c.HuggingFace.Endpoint)
	c.HuggingFace.Token = getEnv("HF_TOKEN", c.HuggingFace.Token)
	c.Llama.Server = getEnv("LLAMA_SERVER", c.Llama.Server)
	c.Ollama.Server = getEnv("OLLAMA_HOST", c.Ollama.Server)
	c.OpenAI.APIKey = getEnv("OPENAI_API_KEY", c.OpenAI.APIKey)
	c.OpenAI.BaseURL = getEnv("OPENAI_BASE_URL", c.OpenAI.BaseURL)
}

// Validate checks the configuration is usable.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains(imgcap.Backends, c.Backend) {
		errs = append(errs, fmt.Errorf("unknown backend %q, must be one of %v", c.Backend, imgcap.Backends))
	}
	if c.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("timeout must be positive, got %s", c.Timeout))
	}
	if c.RateLimit < 0 {
		errs = append(errs, fmt.Errorf("rate_limit must not be negative, got %d", c.RateLimit))
	}
	if c.Backend == imgcap.BackendLlama && c.Llama.Server == "" {
		errs = append(errs, errors.New("llama backend requires a server address"))
	}
	if c.Backend == imgcap.BackendOllama && c.Ollama.Server == "" {
		errs = append(errs, errors.New("ollama backend requires a server address"))
	}

	return errors.Join(errs...)
}

// InitOptions converts the configuration into options for imgcap.Init.
func (c *Config) InitOptions() imgcap.InitOptions {
	return imgcap.InitOptions{
		Backend:             c.Backend,
		Model:               c.Model,
		HuggingFaceEndpoint: c.HuggingFace.Endpoint,
		HuggingFaceToken:    c.HuggingFace.Token,
		LlamaServer:         c.Llama.Server,
		LlamaSeed:           c.Llama.Seed,
		OllamaServer:        c.Ollama.Server,
		OpenAIKey:           c.OpenAI.APIKey,
		OpenAIBaseURL:       c.OpenAI.BaseURL,
		RateLimit:           c.RateLimit,
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
