// Package huggingface captions images with image-to-text models served by
// the Hugging Face inference API or a compatible endpoint.
package huggingface

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/chriskillpack/imgcap/describer"
	"github.com/chriskillpack/imgcap/internal/ratelimit"
)

const (
	DefaultEndpoint = "https://api-inference.huggingface.co/models"
	DefaultModel    = "microsoft/git-base"
)

type Options struct {
	Endpoint string // defaults to DefaultEndpoint
	Model    string // defaults to DefaultModel
	Token    string // optional bearer token

	Limiter *ratelimit.Limiter
}

type huggingface struct {
	endpoint string
	model    string
	token    string

	rl     *ratelimit.Limiter
	client *http.Client
}

var _ describer.Describer = &huggingface{}

func Init(opts Options, httpClient *http.Client) *huggingface {
	hf := &huggingface{
		endpoint: strings.TrimRight(opts.Endpoint, "/"),
		model:    opts.Model,
		token:    opts.Token,
		rl:       opts.Limiter,
		client:   httpClient,
	}
	if hf.endpoint == "" {
		hf.endpoint = DefaultEndpoint
	}
	if hf.model == "" {
		hf.model = DefaultModel
	}

	return hf
}

func (hf *huggingface) Name() string { return "huggingface" }

func (hf *huggingface) Model() string { return hf.model }

func (hf *huggingface) modelURL() string {
	return hf.endpoint + "/" + hf.model
}

// IsHealthy checks the model URL answers. The inference API replies to GET
// with a client error, only server errors and unknown models count as
// unhealthy.
func (hf *huggingface) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, hf.modelURL(), nil)
	if err != nil {
		return false
	}
	hf.authorize(req)

	resp, err := hf.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	return resp.StatusCode < http.StatusInternalServerError && resp.StatusCode != http.StatusNotFound
}

type request struct {
	Inputs     string         `json:"inputs"`
	Parameters map[string]any `json:"parameters"`
	Options    map[string]any `json:"options"`
}

type captionRecord struct {
	GeneratedText string `json:"generated_text"`
}

func (hf *huggingface) DescribeImage(ctx context.Context, img *describer.Image, maxTokens int) (string, error) {
	if err := hf.rl.Acquire(ctx); err != nil {
		return "", err
	}

	body := request{
		Inputs:     base64.StdEncoding.EncodeToString(img.Data),
		Parameters: map[string]any{"max_new_tokens": maxTokens},
		Options:    map[string]any{"wait_for_model": true},
	}
	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(&body); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, hf.modelURL(), buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	hf.authorize(req)

	resp, err := hf.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeError(resp)
	}

	var records []captionRecord
	if err := json.NewDecoder(resp.Body).Decode(&records); err != nil {
		return "", fmt.Errorf("decoding response: %w", err)
	}
	if len(records) == 0 {
		return "", fmt.Errorf("model %s returned no captions", hf.model)
	}

	return strings.TrimSpace(records[0].GeneratedText), nil
}

func (hf *huggingface) authorize(req *http.Request) {
	if hf.token != "" {
		req.Header.Set("Authorization", "Bearer "+hf.token)
	}
}

// decodeError turns a non-200 response into an error, using the API's
// {"error": "..."} body when there is one.
func decodeError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var apiErr struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
		return fmt.Errorf("huggingface: %s (status %d)", apiErr.Error, resp.StatusCode)
	}

	return fmt.Errorf("huggingface: unexpected status %s", resp.Status)
}
