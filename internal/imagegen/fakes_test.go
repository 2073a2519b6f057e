package imagegen

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"strings"
	"sync"
	"testing"

	provider "shaggydog/internal/providers/image"
)

type memStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{files: make(map[string][]byte)}
}

func (m *memStore) WriteFrom(ctx context.Context, key string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
	return key, nil
}

func (m *memStore) Read(key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[key]
	if !ok {
		return nil, os.ErrNotExist
	}
	return data, nil
}

func (m *memStore) Exists(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files[key]) > 0
}

func (m *memStore) put(key string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[key] = data
}

type visionFunc func(req provider.VisionRequest) (string, error)

func (f visionFunc) Describe(ctx context.Context, req provider.VisionRequest) (string, error) {
	return f(req)
}

// fakeImages renders a solid PNG for every prompt unless fail or panics
// matches.
type fakeImages struct {
	mu      sync.Mutex
	prompts []string
	fail    func(prompt string) bool
	panics  func(prompt string) bool
}

func (f *fakeImages) GenerateImage(ctx context.Context, prompt string) (provider.Output, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	f.mu.Unlock()
	if f.panics != nil && f.panics(prompt) {
		panic("renderer crashed")
	}
	if f.fail != nil && f.fail(prompt) {
		return provider.Output{}, errors.New("generation failed")
	}
	return provider.Output{Data: solidPNG(8, 8, color.NRGBA{R: 200, A: 255}), Model: "dall-e-3"}, nil
}

func (f *fakeImages) count(substr string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.prompts {
		if strings.Contains(p, substr) {
			n++
		}
	}
	return n
}

type editFunc func(req provider.EditRequest) (provider.Output, error)

func (f editFunc) EditImages(ctx context.Context, req provider.EditRequest) (provider.Output, error) {
	return f(req)
}

type swapFunc func(source, target provider.InlineImage) (string, error)

func (f swapFunc) Swap(ctx context.Context, source, target provider.InlineImage) (string, error) {
	return f(source, target)
}

type fakeDownloader struct {
	store *memStore
	mu    sync.Mutex
	urls  []string
}

func (d *fakeDownloader) Fetch(ctx context.Context, url, key string) (string, error) {
	d.mu.Lock()
	d.urls = append(d.urls, url)
	d.mu.Unlock()
	return d.store.WriteFrom(ctx, key, bytes.NewReader(solidPNG(4, 4, color.NRGBA{B: 255, A: 255})))
}

func solidImage(w, h int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func solidPNG(w, h int, c color.NRGBA) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(w, h, c)); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func mustDecode(t *testing.T, data []byte) image.Image {
	t.Helper()
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	return img
}
