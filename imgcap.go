package imgcap

import (
	"fmt"
	"net/http"
	"time"

	"github.com/chriskillpack/imgcap/describer"
	"github.com/chriskillpack/imgcap/internal/huggingface"
	"github.com/chriskillpack/imgcap/internal/llama"
	"github.com/chriskillpack/imgcap/internal/ollama"
	"github.com/chriskillpack/imgcap/internal/openai"
	"github.com/chriskillpack/imgcap/internal/ratelimit"
)

// Supported describer backends.
const (
	BackendHuggingFace = "huggingface"
	BackendLlama       = "llama"
	BackendOllama      = "ollama"
	BackendOpenAI      = "openai"
)

// Backends lists the accepted values of InitOptions.Backend.
var Backends = []string{BackendHuggingFace, BackendLlama, BackendOllama, BackendOpenAI}

// DefaultModel is the model used by the default backend.
const DefaultModel = huggingface.DefaultModel

type InitOptions struct {
	Backend string
	Model   string // if empty the backend's default model is used

	HuggingFaceEndpoint string
	HuggingFaceToken    string

	LlamaServer string
	LlamaSeed   int

	OllamaServer string

	OpenAIKey     string
	OpenAIBaseURL string
	RateLimit     int // requests per minute to hosted APIs, 0 disables limiting

	HttpClient *http.Client // if nil uses http.DefaultClient
}

type Imgcap struct {
	describer.Describer
}

func Init(opts InitOptions) (*Imgcap, error) {
	ic := &Imgcap{}

	httpClient := opts.HttpClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	switch opts.Backend {
	case BackendHuggingFace, "":
		ic.Describer = huggingface.Init(huggingface.Options{
			Endpoint: opts.HuggingFaceEndpoint,
			Model:    opts.Model,
			Token:    opts.HuggingFaceToken,
			Limiter:  ratelimit.New(opts.RateLimit, time.Minute),
		}, httpClient)
	case BackendLlama:
		if opts.LlamaServer == "" {
			return nil, fmt.Errorf("llama backend requires a server address")
		}
		ic.Describer = llama.Init(opts.LlamaServer, opts.LlamaSeed, httpClient)
	case BackendOllama:
		if opts.OllamaServer == "" {
			return nil, fmt.Errorf("ollama backend requires a server address")
		}
		ic.Describer = ollama.Init(opts.Model, opts.OllamaServer, httpClient)
	case BackendOpenAI:
		ic.Describer = openai.Init(openai.Options{
			Model:   opts.Model,
			APIKey:  opts.OpenAIKey,
			BaseURL: opts.OpenAIBaseURL,
			Limiter: ratelimit.New(opts.RateLimit, time.Minute),
		}, httpClient)
	default:
		return nil, fmt.Errorf("unknown backend %q", opts.Backend)
	}

	return ic, nil
}
