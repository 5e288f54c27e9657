package imgcap

import (
	"testing"
)

func TestInit(t *testing.T) {
	tests := []struct {
		name      string
		opts      InitOptions
		describer string
		model     string
	}{
		{"default backend", InitOptions{}, "huggingface", DefaultModel},
		{"huggingface model", InitOptions{Backend: BackendHuggingFace, Model: "Salesforce/blip-image-captioning-base"}, "huggingface", "Salesforce/blip-image-captioning-base"},
		{"llama", InitOptions{Backend: BackendLlama, LlamaServer: "http://localhost:8080"}, "llama", "llava"},
		{"ollama", InitOptions{Backend: BackendOllama, OllamaServer: "http://localhost:11434"}, "ollama", "llava"},
		{"ollama model", InitOptions{Backend: BackendOllama, OllamaServer: "http://localhost:11434", Model: "moondream"}, "ollama", "moondream"},
		{"openai", InitOptions{Backend: BackendOpenAI, OpenAIKey: "sk-test", RateLimit: 20}, "openai", "gpt-4o-mini"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ic, err := Init(tt.opts)
			if err != nil {
				t.Fatalf("Unexpected error %s", err)
			}
			if expected, actual := tt.describer, ic.Name(); expected != actual {
				t.Errorf("Expected describer %q, got %q", expected, actual)
			}
			if expected, actual := tt.model, ic.Model(); expected != actual {
				t.Errorf("Expected model %q, got %q", expected, actual)
			}
		})
	}

	t.Run("errors", func(t *testing.T) {
		for _, opts := range []InitOptions{
			{Backend: "torch"},
			{Backend: BackendLlama},
			{Backend: BackendOllama},
		} {
			if _, err := Init(opts); err == nil {
				t.Errorf("Expected error for %+v", opts)
			}
		}
	})
}
