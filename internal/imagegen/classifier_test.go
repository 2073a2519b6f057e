package imagegen

import (
	"context"
	"errors"
	"testing"

	provider "shaggydog/internal/providers/image"
)

func TestIsRefusal(t *testing.T) {
	tests := []struct {
		reply string
		want  bool
	}{
		{"Border Collie", false},
		{"I'm Sorry, I can't help with that.", true},
		{"I cannot identify people", true},
		{"Can't say", true},
		{"Cane Corso", false},
	}
	for _, tc := range tests {
		if got := IsRefusal(tc.reply); got != tc.want {
			t.Fatalf("IsRefusal(%q) = %v, want %v", tc.reply, got, tc.want)
		}
	}
}

func TestBreedClassifier(t *testing.T) {
	tests := []struct {
		name  string
		reply string
		err   error
		want  string
	}{
		{name: "plain", reply: "Border Collie", want: "Border Collie"},
		{name: "trimmed", reply: "  German   Shepherd.\n", want: "German Shepherd"},
		{name: "quoted", reply: `"Beagle"`, want: "Beagle"},
		{name: "casing kept", reply: "McNab", want: "McNab"},
		{name: "lowercase kept", reply: "shiba inu", want: "shiba inu"},
		{name: "composed", reply: "Lo\u0308wchen", want: "L\u00f6wchen"},
		{name: "refusal", reply: "Sorry, I can't do that.", want: DefaultBreed},
		{name: "error", err: errors.New("boom"), want: DefaultBreed},
		{name: "empty", reply: " . ", want: DefaultBreed},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var captured provider.VisionRequest
			c := NewBreedClassifier(visionFunc(func(req provider.VisionRequest) (string, error) {
				captured = req
				return tc.reply, tc.err
			}), nil)
			got := c.Classify(context.Background(), []byte("img"), "image/png")
			if got != tc.want {
				t.Fatalf("Classify = %q, want %q", got, tc.want)
			}
			if captured.MaxTokens != 30 || len(captured.Images) != 1 || captured.Images[0].MIME != "image/png" {
				t.Fatalf("request = %+v", captured)
			}
		})
	}
}

func TestBreedClassifierWithoutClient(t *testing.T) {
	c := NewBreedClassifier(nil, nil)
	if got := c.Classify(context.Background(), []byte("img"), "image/jpeg"); got != DefaultBreed {
		t.Fatalf("Classify = %q, want %q", got, DefaultBreed)
	}
}
