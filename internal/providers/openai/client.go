// Package openai adapts the OpenAI chat, image generation and image edit
// endpoints to the provider contracts used by the transformation pipeline.
package openai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	goopenai "github.com/sashabaranov/go-openai"

	provider "shaggydog/internal/providers/image"
)

// ErrMissingAPIKey is returned by every call when no API key is configured.
var ErrMissingAPIKey = errors.New("openai: api key is missing")

const (
	defaultBaseURL     = "https://api.openai.com/v1"
	defaultVisionModel = "gpt-4o"
	defaultImageModel  = goopenai.CreateImageModelDallE3
	defaultTimeout     = 90 * time.Second

	// MaxEditImageBytes is the per-image upload limit of the edits endpoint.
	MaxEditImageBytes = 50 << 20
)

var defaultEditModels = []string{"gpt-image-1", "gpt-image-1-mini"}

// Options configures a Client.
type Options struct {
	APIKey       string
	BaseURL      string
	Organization string
	VisionModel  string
	ImageModel   string
	EditModels   []string
	HTTPClient   *http.Client
	Logger       *zerolog.Logger
	OnFallback   func(reason string, err error)
}

// Client talks to OpenAI. Chat and generation go through go-openai; the
// multi-image edit endpoint is called directly because it takes a list of
// image parts.
type Client struct {
	apiKey       string
	baseURL      string
	organization string
	visionModel  string
	imageModel   string
	editModels   []string
	api          *goopenai.Client
	http         *http.Client
	logger       zerolog.Logger
	onFallback   func(reason string, err error)
}

// NewClient builds a client. A missing API key is not an error here: calls
// fail softly with ErrMissingAPIKey so callers can fall back.
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	editModels := make([]string, 0, len(opts.EditModels))
	for _, m := range opts.EditModels {
		if m = strings.TrimSpace(m); m != "" {
			editModels = append(editModels, m)
		}
	}
	if len(editModels) == 0 {
		editModels = append(editModels, defaultEditModels...)
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("provider", "openai").Logger()
	}

	apiKey := strings.TrimSpace(opts.APIKey)
	cfg := goopenai.DefaultConfig(apiKey)
	cfg.BaseURL = baseURL
	cfg.OrgID = strings.TrimSpace(opts.Organization)
	cfg.HTTPClient = httpClient

	return &Client{
		apiKey:       apiKey,
		baseURL:      baseURL,
		organization: cfg.OrgID,
		visionModel:  coalesce(opts.VisionModel, defaultVisionModel),
		imageModel:   coalesce(opts.ImageModel, defaultImageModel),
		editModels:   editModels,
		api:          goopenai.NewClientWithConfig(cfg),
		http:         httpClient,
		logger:       logger,
		onFallback:   opts.OnFallback,
	}
}

// HasCredentials reports whether an API key is configured.
func (c *Client) HasCredentials() bool {
	return c != nil && c.apiKey != ""
}

// Describe sends a system instruction, a text prompt and inline images to the
// vision model and returns the trimmed reply.
func (c *Client) Describe(ctx context.Context, req provider.VisionRequest) (string, error) {
	if !c.HasCredentials() {
		return "", c.fail("missing_api_key", ErrMissingAPIKey)
	}
	parts := []goopenai.ChatMessagePart{{Type: goopenai.ChatMessagePartTypeText, Text: req.Prompt}}
	for _, img := range req.Images {
		parts = append(parts, goopenai.ChatMessagePart{
			Type:     goopenai.ChatMessagePartTypeImageURL,
			ImageURL: &goopenai.ChatMessageImageURL{URL: img.DataURL()},
		})
	}
	var messages []goopenai.ChatCompletionMessage
	if system := strings.TrimSpace(req.System); system != "" {
		messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleSystem, Content: system})
	}
	messages = append(messages, goopenai.ChatCompletionMessage{Role: goopenai.ChatMessageRoleUser, MultiContent: parts})

	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model:     c.visionModel,
		Messages:  messages,
		MaxTokens: req.MaxTokens,
	})
	if err != nil {
		return "", c.fail(reasonFor(err), fmt.Errorf("openai: chat completion: %w", err))
	}
	if len(resp.Choices) == 0 {
		return "", c.fail("empty_choices", errors.New("openai: no choices"))
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", c.fail("empty_response", errors.New("openai: empty response"))
	}
	c.logger.Debug().Str("model", c.visionModel).Int("images", len(req.Images)).Msg("vision reply received")
	return text, nil
}

// GenerateImage renders one square image and returns its hosted URL.
func (c *Client) GenerateImage(ctx context.Context, prompt string) (provider.Output, error) {
	if !c.HasCredentials() {
		return provider.Output{}, c.fail("missing_api_key", ErrMissingAPIKey)
	}
	resp, err := c.api.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         prompt,
		Model:          c.imageModel,
		N:              1,
		Size:           goopenai.CreateImageSize1024x1024,
		Quality:        goopenai.CreateImageQualityStandard,
		ResponseFormat: goopenai.CreateImageResponseFormatURL,
	})
	if err != nil {
		return provider.Output{}, c.fail(reasonFor(err), fmt.Errorf("openai: create image: %w", err))
	}
	if len(resp.Data) == 0 {
		return provider.Output{}, c.fail("empty_data", errors.New("openai: no image returned"))
	}
	out := provider.Output{URL: strings.TrimSpace(resp.Data[0].URL), Model: c.imageModel}
	if out.URL == "" && resp.Data[0].B64JSON != "" {
		data, err := decodeB64(resp.Data[0].B64JSON)
		if err != nil {
			return provider.Output{}, c.fail("decode_response", err)
		}
		out.Data = data
	}
	if out.Empty() {
		return provider.Output{}, c.fail("empty_response", errors.New("openai: image without url"))
	}
	c.logger.Debug().Str("model", c.imageModel).Int("prompt_len", len(prompt)).Msg("image generated")
	return out, nil
}

func (c *Client) fail(reason string, err error) error {
	c.logger.Warn().Err(err).Str("reason", reason).Msg("openai call failed")
	if c.onFallback != nil {
		c.onFallback(reason, err)
	}
	return err
}

func reasonFor(err error) string {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode > 0 {
		return fmt.Sprintf("http_%d", apiErr.HTTPStatusCode)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return fmt.Sprintf("http_%d", reqErr.HTTPStatusCode)
	}
	return "http_request"
}

func coalesce(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

var (
	_ provider.VisionClient = (*Client)(nil)
	_ provider.Generator    = (*Client)(nil)
	_ provider.Editor       = (*Client)(nil)
)
