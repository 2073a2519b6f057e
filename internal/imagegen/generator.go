package imagegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const downloadTimeout = 60 * time.Second

// HTTPDownloader streams remote images into the artifact store.
type HTTPDownloader struct {
	client *http.Client
	store  ArtifactStore
	logger zerolog.Logger
}

func NewHTTPDownloader(store ArtifactStore, client *http.Client, logger *zerolog.Logger) *HTTPDownloader {
	if client == nil {
		client = &http.Client{Timeout: downloadTimeout}
	}
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "downloader").Logger()
	}
	return &HTTPDownloader{client: client, store: store, logger: l}
}

func (d *HTTPDownloader) Fetch(ctx context.Context, url, key string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("download: build request: %w", err)
	}
	resp, err := d.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("download: status %d", resp.StatusCode)
	}
	saved, err := d.store.WriteFrom(ctx, key, resp.Body)
	if err != nil {
		return "", fmt.Errorf("download: %w", err)
	}
	d.logger.Debug().Str("key", saved).Msg("image downloaded")
	return saved, nil
}

// persist writes a provider output under key, downloading it when the
// provider only returned a URL.
func persist(ctx context.Context, store ArtifactStore, dl Downloader, out ImageOutput, key string) (string, error) {
	if len(out.Data) > 0 {
		return store.WriteFrom(ctx, key, bytes.NewReader(out.Data))
	}
	if out.URL == "" {
		return "", errors.New("imagegen: provider returned no image")
	}
	return dl.Fetch(ctx, out.URL, key)
}

// ImageGenerator renders a prompt with the text-to-image model and stores the
// result.
type ImageGenerator struct {
	client     ImageClient
	store      ArtifactStore
	downloader Downloader
}

func NewImageGenerator(client ImageClient, store ArtifactStore, downloader Downloader) *ImageGenerator {
	return &ImageGenerator{client: client, store: store, downloader: downloader}
}

func (g *ImageGenerator) Generate(ctx context.Context, prompt, key string) (string, error) {
	if g.client == nil {
		return "", errors.New("imagegen: no image client")
	}
	out, err := g.client.GenerateImage(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("generate %s: %w", key, err)
	}
	saved, err := persist(ctx, g.store, g.downloader, out, key)
	if err != nil {
		return "", fmt.Errorf("store %s: %w", key, err)
	}
	return saved, nil
}
