package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"

	provider "shaggydog/internal/providers/image"
)

type editResponse struct {
	Data []struct {
		URL     string `json:"url"`
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// EditImages uploads every reference image with the instruction to the edits
// endpoint, trying each configured model in order until one answers with an
// image. The response may carry a URL or inline base64 data.
func (c *Client) EditImages(ctx context.Context, req provider.EditRequest) (provider.Output, error) {
	if !c.HasCredentials() {
		return provider.Output{}, c.fail("missing_api_key", ErrMissingAPIKey)
	}
	if len(req.Images) == 0 {
		return provider.Output{}, c.fail("invalid_request", errors.New("openai: edit requires at least one image"))
	}
	for i, img := range req.Images {
		if len(img.Data) > MaxEditImageBytes {
			return provider.Output{}, c.fail("image_too_large",
				fmt.Errorf("openai: edit image %d is %d bytes, limit %d", i, len(img.Data), MaxEditImageBytes))
		}
	}

	var errs []error
	for _, model := range c.editModels {
		out, err := c.editOnce(ctx, model, req)
		if err == nil {
			c.logger.Debug().Str("model", model).Msg("image edit succeeded")
			return out, nil
		}
		c.logger.Warn().Err(err).Str("model", model).Msg("image edit model failed")
		errs = append(errs, fmt.Errorf("%s: %w", model, err))
		if ctx.Err() != nil {
			break
		}
	}
	return provider.Output{}, c.fail("edit_exhausted", fmt.Errorf("openai: all edit models failed: %w", errors.Join(errs...)))
}

func (c *Client) editOnce(ctx context.Context, model string, req provider.EditRequest) (provider.Output, error) {
	body, contentType, err := buildEditForm(model, req)
	if err != nil {
		return provider.Output{}, err
	}
	endpoint := c.baseURL + "/images/edits"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return provider.Output{}, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	if c.organization != "" {
		httpReq.Header.Set("OpenAI-Organization", c.organization)
	}
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return provider.Output{}, fmt.Errorf("http request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return provider.Output{}, fmt.Errorf("read response: %w", err)
	}
	var out editResponse
	decodeErr := json.Unmarshal(raw, &out)
	if resp.StatusCode >= 300 {
		msg := http.StatusText(resp.StatusCode)
		if decodeErr == nil && out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return provider.Output{}, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	if decodeErr != nil {
		return provider.Output{}, fmt.Errorf("decode response: %w", decodeErr)
	}
	if len(out.Data) == 0 {
		return provider.Output{}, errors.New("response has no data")
	}
	item := out.Data[0]
	if u := strings.TrimSpace(item.URL); u != "" {
		return provider.Output{URL: u, Model: model}, nil
	}
	if item.B64JSON != "" {
		data, err := decodeB64(item.B64JSON)
		if err != nil {
			return provider.Output{}, err
		}
		return provider.Output{Data: data, Model: model}, nil
	}
	return provider.Output{}, errors.New("response item has neither url nor b64_json")
}

func buildEditForm(model string, req provider.EditRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"model", model},
		{"prompt", req.Prompt},
		{"size", coalesce(req.Size, "1024x1024")},
	}
	if fidelity := strings.TrimSpace(req.Fidelity); fidelity != "" {
		fields = append(fields, [2]string{"input_fidelity", fidelity})
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write field %s: %w", f[0], err)
		}
	}
	for i, img := range req.Images {
		name := img.Filename
		if name == "" {
			name = fmt.Sprintf("image_%d%s", i, extensionFor(img.MIME))
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image[]"; filename="%s"`, escapeQuotes(name)))
		h.Set("Content-Type", coalesce(img.MIME, "image/png"))
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", fmt.Errorf("create image part: %w", err)
		}
		if _, err := part.Write(img.Data); err != nil {
			return nil, "", fmt.Errorf("write image part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func decodeB64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("decode b64_json: %w", err)
	}
	if len(data) == 0 {
		return nil, errors.New("empty b64_json payload")
	}
	return data, nil
}

func extensionFor(mime string) string {
	switch mime {
	case "image/jpeg":
		return ".jpg"
	case "image/gif":
		return ".gif"
	default:
		return ".png"
	}
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
