package ollama

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/chriskillpack/imgcap/describer"
)

const (
	DefaultModel = "llava"

	captionPrompt = "Write a one sentence caption for this image."
)

type ollama struct {
	model   string
	srvAddr string

	client *http.Client
}

var _ describer.Describer = &ollama{}

func Init(model, srvAddr string, httpClient *http.Client) *ollama {
	if model == "" {
		model = DefaultModel
	}

	return &ollama{
		model:   model,
		srvAddr: strings.TrimRight(srvAddr, "/"),
		client:  httpClient,
	}
}

func (o *ollama) Name() string { return "ollama" }

func (o *ollama) Model() string { return o.model }

func (o *ollama) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.srvAddr+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Images  []string       `json:"images"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
	Error    string `json:"error"`
}

func (o *ollama) DescribeImage(ctx context.Context, img *describer.Image, maxTokens int) (string, error) {
	body := generateRequest{
		Model:   o.model,
		Prompt:  captionPrompt,
		Images:  []string{base64.StdEncoding.EncodeToString(img.Data)},
		Options: map[string]any{"num_predict": maxTokens},
	}

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&body); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.srvAddr+"/api/generate", buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var gr generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if gr.Error != "" {
		return "", fmt.Errorf("ollama: %s", gr.Error)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama server returned %s", resp.Status)
	}

	return strings.TrimSpace(gr.Response), nil
}
