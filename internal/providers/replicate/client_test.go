package replicate

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	provider "shaggydog/internal/providers/image"
)

func TestSwapPollsUntilSucceeded(t *testing.T) {
	var polls int32
	var created map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/v1/predictions":
			_ = json.NewDecoder(r.Body).Decode(&created)
			_, _ = io.WriteString(w, `{"id":"p1","status":"starting"}`)
		case r.Method == http.MethodGet && r.URL.Path == "/v1/predictions/p1":
			if atomic.AddInt32(&polls, 1) < 2 {
				_, _ = io.WriteString(w, `{"id":"p1","status":"processing"}`)
				return
			}
			_, _ = io.WriteString(w, `{"id":"p1","status":"succeeded","output":"https://replicate.delivery/out.png"}`)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	client := NewClient(Options{APIToken: "tok", BaseURL: srv.URL + "/v1", PollInterval: time.Millisecond, HTTPClient: srv.Client()})
	url, err := client.Swap(context.Background(),
		provider.InlineImage{MIME: "image/jpeg", Data: []byte("human")},
		provider.InlineImage{MIME: "image/png", Data: []byte("dog")},
	)
	if err != nil {
		t.Fatalf("Swap error: %v", err)
	}
	if url != "https://replicate.delivery/out.png" {
		t.Fatalf("url = %q", url)
	}
	if created["version"] != FaceSwapVersion {
		t.Fatalf("version = %v", created["version"])
	}
	input := created["input"].(map[string]any)
	if !strings.HasPrefix(input["input_image"].(string), "data:image/jpeg;base64,") {
		t.Fatalf("input_image = %v", input["input_image"])
	}
	if !strings.HasPrefix(input["swap_image"].(string), "data:image/png;base64,") {
		t.Fatalf("swap_image = %v", input["swap_image"])
	}
}

func TestSwapFailedPrediction(t *testing.T) {
	var reason string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"p1","status":"failed","error":"no face detected"}`)
	}))
	defer srv.Close()
	client := NewClient(Options{
		APIToken:   "tok",
		BaseURL:    srv.URL,
		HTTPClient: srv.Client(),
		OnFallback: func(r string, err error) { reason = r },
	})
	if _, err := client.Swap(context.Background(), provider.InlineImage{}, provider.InlineImage{}); err == nil {
		t.Fatal("expected error")
	}
	if reason != "prediction_failed" {
		t.Fatalf("reason = %q, want prediction_failed", reason)
	}
}

func TestSwapMissingToken(t *testing.T) {
	client := NewClient(Options{})
	if _, err := client.Swap(context.Background(), provider.InlineImage{}, provider.InlineImage{}); !errors.Is(err, ErrMissingToken) {
		t.Fatalf("err = %v, want ErrMissingToken", err)
	}
}

func TestSwapPollExhausted(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"p1","status":"processing"}`)
	}))
	defer srv.Close()
	client := NewClient(Options{APIToken: "tok", BaseURL: srv.URL, HTTPClient: srv.Client(), PollInterval: time.Millisecond, MaxPolls: 3})
	if _, err := client.Swap(context.Background(), provider.InlineImage{}, provider.InlineImage{}); err == nil {
		t.Fatal("expected poll exhaustion error")
	}
}

func TestOutputURL(t *testing.T) {
	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{raw: `"https://a/b.png"`, want: "https://a/b.png"},
		{raw: `["", "https://a/c.png"]`, want: "https://a/c.png"},
		{raw: `null`, wantErr: true},
		{raw: `{"image":"x"}`, wantErr: true},
	}
	for _, tc := range tests {
		got, err := outputURL(json.RawMessage(tc.raw))
		if tc.wantErr {
			if err == nil {
				t.Fatalf("outputURL(%s) expected error", tc.raw)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("outputURL(%s) = %q, %v, want %q", tc.raw, got, err, tc.want)
		}
	}
}
