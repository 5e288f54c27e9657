package openai

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/chriskillpack/imgcap/describer"
	"github.com/chriskillpack/imgcap/internal/ratelimit"

	oagc "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

const (
	DefaultModel = "gpt-4o-mini"

	captionPrompt = "Write a one sentence caption for this image. Reply with the caption only."
)

type Options struct {
	Model   string // defaults to DefaultModel
	APIKey  string // if empty the client reads OPENAI_API_KEY
	BaseURL string // optional, for OpenAI compatible servers

	Limiter *ratelimit.Limiter
}

type openai struct {
	oac   *oagc.Client
	model string

	rl *ratelimit.Limiter // For requests to the OpenAI API
}

var _ describer.Describer = &openai{}

func Init(opts Options, httpClient *http.Client) *openai {
	model := opts.Model
	if model == "" {
		model = DefaultModel
	}

	reqOpts := []option.RequestOption{option.WithHTTPClient(httpClient)}
	if opts.APIKey != "" {
		reqOpts = append(reqOpts, option.WithAPIKey(opts.APIKey))
	}
	if opts.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(opts.BaseURL))
	}

	return &openai{
		oac:   oagc.NewClient(reqOpts...),
		model: model,
		rl:    opts.Limiter,
	}
}

func (o *openai) Name() string { return "openai" }

func (o *openai) Model() string { return o.model }

func (o *openai) IsHealthy(ctx context.Context) bool {
	_, err := o.oac.Models.Get(ctx, o.model)
	return err == nil
}

func (o *openai) DescribeImage(ctx context.Context, img *describer.Image, maxTokens int) (string, error) {
	// Rate limit use of the OpenAI API
	if err := o.rl.Acquire(ctx); err != nil {
		return "", err
	}

	dataURL := "data:" + img.MIMEType() + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	params := oagc.ChatCompletionNewParams{
		Messages: oagc.F([]oagc.ChatCompletionMessageParamUnion{
			oagc.UserMessageParts(
				oagc.TextPart(captionPrompt),
				oagc.ImagePart(dataURL),
			),
		}),
		Model:     oagc.F(oagc.ChatModel(o.model)),
		MaxTokens: oagc.Int(int64(maxTokens)),
	}
	resp, err := o.oac.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("model %s returned no choices", o.model)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
