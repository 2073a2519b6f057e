// Package replicate runs the face-swap model hosted on Replicate.
package replicate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	provider "shaggydog/internal/providers/image"
)

// ErrMissingToken is returned when no API token is configured.
var ErrMissingToken = errors.New("replicate: api token is missing")

const (
	// FaceSwapVersion pins cdingram/face-swap.
	FaceSwapVersion = "d1d6ea8c8be89d664a07a457526f7128109dee7030fdac424788d762c71ed111"

	defaultBaseURL      = "https://api.replicate.com/v1"
	defaultPollInterval = 2 * time.Second
	defaultMaxPolls     = 90
)

type Options struct {
	APIToken     string
	BaseURL      string
	Version      string
	HTTPClient   *http.Client
	PollInterval time.Duration
	MaxPolls     int
	Logger       *zerolog.Logger
	OnFallback   func(reason string, err error)
}

type Client struct {
	token        string
	baseURL      string
	version      string
	http         *http.Client
	pollInterval time.Duration
	maxPolls     int
	logger       zerolog.Logger
	onFallback   func(reason string, err error)
}

type predictionRequest struct {
	Version string         `json:"version"`
	Input   map[string]any `json:"input"`
}

type prediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  any             `json:"error"`
}

func NewClient(opts Options) *Client {
	base := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	maxPolls := opts.MaxPolls
	if maxPolls <= 0 {
		maxPolls = defaultMaxPolls
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = FaceSwapVersion
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("provider", "replicate").Logger()
	}
	return &Client{
		token:        strings.TrimSpace(opts.APIToken),
		baseURL:      base,
		version:      version,
		http:         httpClient,
		pollInterval: interval,
		maxPolls:     maxPolls,
		logger:       logger,
		onFallback:   opts.OnFallback,
	}
}

// HasCredentials reports whether a token is configured.
func (c *Client) HasCredentials() bool {
	return c != nil && c.token != ""
}

// Swap runs the face-swap model with source as input_image and target as
// swap_image, waits for the prediction to settle and returns the output URL.
func (c *Client) Swap(ctx context.Context, source, target provider.InlineImage) (string, error) {
	if !c.HasCredentials() {
		return "", c.fail("missing_api_key", ErrMissingToken)
	}
	payload := predictionRequest{
		Version: c.version,
		Input: map[string]any{
			"input_image": source.DataURL(),
			"swap_image":  target.DataURL(),
		},
	}
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(payload); err != nil {
		return "", c.fail("encode_request", err)
	}
	pred, err := c.do(ctx, http.MethodPost, c.baseURL+"/predictions", &buf)
	if err != nil {
		return "", c.fail("http_request", err)
	}
	c.logger.Debug().Str("prediction", pred.ID).Str("status", pred.Status).Msg("prediction created")

	for polls := 0; !terminal(pred.Status); polls++ {
		if polls >= c.maxPolls {
			return "", c.fail("poll_exhausted", fmt.Errorf("replicate: prediction %s still %s after %d polls", pred.ID, pred.Status, polls))
		}
		select {
		case <-ctx.Done():
			return "", c.fail("canceled", ctx.Err())
		case <-time.After(c.pollInterval):
		}
		pred, err = c.do(ctx, http.MethodGet, c.baseURL+"/predictions/"+pred.ID, nil)
		if err != nil {
			return "", c.fail("http_request", err)
		}
	}
	if pred.Status != "succeeded" {
		return "", c.fail("prediction_"+pred.Status, fmt.Errorf("replicate: prediction %s %s: %v", pred.ID, pred.Status, pred.Error))
	}
	url, err := outputURL(pred.Output)
	if err != nil {
		return "", c.fail("decode_response", err)
	}
	return url, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body *bytes.Buffer) (*prediction, error) {
	var req *http.Request
	var err error
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("replicate: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Prefer", "wait")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("replicate: %s %s: %w", method, endpoint, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("replicate: status %d", resp.StatusCode)
	}
	var pred prediction
	if err := json.NewDecoder(resp.Body).Decode(&pred); err != nil {
		return nil, fmt.Errorf("replicate: decode prediction: %w", err)
	}
	if pred.ID == "" {
		return nil, errors.New("replicate: prediction without id")
	}
	return &pred, nil
}

func (c *Client) fail(reason string, err error) error {
	c.logger.Warn().Err(err).Str("reason", reason).Msg("replicate call failed")
	if c.onFallback != nil {
		c.onFallback(reason, err)
	}
	return err
}

func terminal(status string) bool {
	switch status {
	case "succeeded", "failed", "canceled":
		return true
	}
	return false
}

// outputURL accepts either a single URL or a list whose first entry is used.
func outputURL(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("replicate: empty output")
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil && strings.TrimSpace(single) != "" {
		return strings.TrimSpace(single), nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		for _, u := range list {
			if u = strings.TrimSpace(u); u != "" {
				return u, nil
			}
		}
	}
	return "", fmt.Errorf("replicate: unsupported output %s", string(raw))
}

var _ provider.Swapper = (*Client)(nil)
