package llama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"maps"
	"net/http"
	"strings"

	"github.com/chriskillpack/imgcap/describer"
)

const (
	imagePreamble = `A chat between a curious human and an artificial intelligence assistant. The assistant writes short, literal captions for images.
USER:`
	imagePrompt = "[img-10]Write a one sentence caption for this image."
	imageSuffix = `
ASSISTANT:`
)

type jsonmap map[string]any

// These were lifted from the web inspector for the server UI
var defaultparams = jsonmap{
	"n_probs":           0,
	"temperature":       0.2,
	"stop":              []string{"</s>", "USER:", "ASSISTANT:"},
	"repeat_last_n":     256,
	"repeat_penalty":    1.18,
	"top_k":             40,
	"top_p":             0.5,
	"tfs_z":             1,
	"typical_p":         1,
	"presence_penalty":  0,
	"frequency_penalty": 0,
	"mirostat":          0,
	"mirostat_tau":      5,
	"mirostat_eta":      0.1,
	"grammar":           "",
	"slot_id":           -1,
	"cache_prompt":      true,
}

type llama struct {
	srvAddr string
	seed    int

	client *http.Client
}

var _ describer.Describer = &llama{}

func Init(srvAddr string, seed int, httpClient *http.Client) *llama {
	return &llama{
		srvAddr: strings.TrimRight(srvAddr, "/"),
		seed:    seed,
		client:  httpClient,
	}
}

func (l *llama) Name() string { return "llama" }

// Model is whatever the server was started with, it can't be chosen per
// request.
func (l *llama) Model() string { return "llava" }

func (l *llama) IsHealthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.srvAddr, nil)
	if err != nil {
		return false
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return false
	}
	resp.Body.Close()

	return resp.StatusCode == http.StatusOK
}

func (l *llama) DescribeImage(ctx context.Context, img *describer.Image, maxTokens int) (string, error) {
	imb64 := base64.StdEncoding.EncodeToString(img.Data)
	return l.sendRequest(ctx, imagePreamble+imagePrompt+imageSuffix, false, jsonmap{
		"n_predict": maxTokens,
		"image_data": []jsonmap{
			{
				"data": imb64, "id": 10,
			},
		},
	})
}

func (l *llama) sendRequest(ctx context.Context, prompt string, stream bool, keys jsonmap) (string, error) {
	data := maps.Clone(defaultparams)
	maps.Copy(data, keys)
	data["prompt"] = prompt
	data["stream"] = stream
	data["seed"] = l.seed

	buf := new(bytes.Buffer)
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	err := enc.Encode(&data)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.srvAddr+"/completion", buf)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := l.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("llama server returned %s", resp.Status)
	}

	content := new(bytes.Buffer)
	respbody := struct {
		Content string
		Stop    bool
	}{}

	lr := bufio.NewScanner(resp.Body)
	lr.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for !respbody.Stop {
		if !lr.Scan() {
			if err := lr.Err(); err != nil {
				return "", err
			}
			return "", fmt.Errorf("response ended before completion stopped")
		}
		line := lr.Text()
		// Blank lines separate events in streaming mode
		if len(line) == 0 {
			continue
		}
		if stream {
			var found bool
			line, found = strings.CutPrefix(line, "data: ")
			if !found {
				return "", fmt.Errorf("missing `data: ` prefix")
			}
		}

		if err := json.Unmarshal([]byte(line), &respbody); err != nil {
			return "", err
		}
		content.WriteString(respbody.Content)
	}

	return strings.TrimSpace(content.String()), nil
}
