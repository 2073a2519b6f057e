package imagegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	provider "shaggydog/internal/providers/image"
)

func seededStore() *memStore {
	store := newMemStore()
	store.put("7_20240102_150405_original.png", solidPNG(16, 16, humanColor))
	store.put("7_20240102_150405_dog_head.png", solidPNG(16, 16, dogColor))
	return store
}

const (
	testHuman = "7_20240102_150405_original.png"
	testDog   = "7_20240102_150405_dog_head.png"
)

func TestSynthesizeTiers(t *testing.T) {
	tests := []struct {
		name     string
		vision   VisionClient
		wantTier string
		contains string
	}{
		{
			name: "composite",
			vision: visionFunc(func(req provider.VisionRequest) (string, error) {
				return "Photorealistic studio portrait. A beagle head on a suit.", nil
			}),
			wantTier: TierComposite,
			contains: "beagle head on a suit",
		},
		{
			name: "described after composite refusal",
			vision: visionFunc(func(req provider.VisionRequest) (string, error) {
				if len(req.Images) == 2 {
					return "I'm sorry, I cannot help.", nil
				}
				return "Subject:\n- male, mid-30s", nil
			}),
			wantTier: TierDescribed,
			contains: "male, mid-30s",
		},
		{
			name: "described default after errors",
			vision: visionFunc(func(req provider.VisionRequest) (string, error) {
				return "", errors.New("upstream down")
			}),
			wantTier: TierDescribed,
			contains: "- Person, front-facing portrait",
		},
		{
			name:     "template without vision",
			vision:   nil,
			wantTier: TierTemplate,
			contains: "about 30% transformation",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSynthesizer(tc.vision, seededStore(), nil)
			prompt, tier := s.Synthesize(context.Background(), testHuman, testDog, "Beagle", LevelSubtle)
			if tier != tc.wantTier {
				t.Fatalf("tier = %q, want %q", tier, tc.wantTier)
			}
			if !strings.Contains(prompt, tc.contains) {
				t.Fatalf("prompt %q does not contain %q", prompt, tc.contains)
			}
		})
	}
}

func TestCompositePromptSendsBothImages(t *testing.T) {
	var captured provider.VisionRequest
	s := NewSynthesizer(visionFunc(func(req provider.VisionRequest) (string, error) {
		captured = req
		return "Photorealistic studio portrait.", nil
	}), seededStore(), nil)
	if _, err := s.CompositePrompt(context.Background(), testHuman, testDog, "Pug", LevelComplete); err != nil {
		t.Fatalf("CompositePrompt error: %v", err)
	}
	if len(captured.Images) != 2 || captured.MaxTokens != 500 {
		t.Fatalf("request = %d images, %d tokens", len(captured.Images), captured.MaxTokens)
	}
	if !strings.Contains(captured.Prompt, "Complete transformation (100%)") {
		t.Fatalf("prompt lacks level description: %q", captured.Prompt)
	}
}

func TestFullDogDescribedPromptHeadWording(t *testing.T) {
	calls := 0
	s := NewSynthesizer(visionFunc(func(req provider.VisionRequest) (string, error) {
		calls++
		return "Subject:\n- something", nil
	}), seededStore(), nil)
	p, err := s.FullDogDescribedPrompt(context.Background(), testHuman, testDog, "Pug")
	if err != nil {
		t.Fatalf("FullDogDescribedPrompt error: %v", err)
	}
	if calls != 2 {
		t.Fatalf("vision calls = %d, want 2", calls)
	}
	if !strings.Contains(p, "match the Pug dog head characteristics") {
		t.Fatalf("prompt = %q", p)
	}

	p, err = s.FullDogDescribedPrompt(context.Background(), testHuman, "missing.png", "Pug")
	if err != nil {
		t.Fatalf("FullDogDescribedPrompt error: %v", err)
	}
	if !strings.Contains(p, "should be a Pug dog head") {
		t.Fatalf("prompt = %q", p)
	}
}

func TestHeadContext(t *testing.T) {
	tests := []struct {
		reply string
		err   error
		want  string
	}{
		{reply: "soft light, front-facing, smiling", want: "soft light, front-facing, smiling"},
		{reply: "Sorry, no.", want: defaultHeadContext},
		{reply: "I cannot pinpoint it, but soft light", want: "I cannot pinpoint it, but soft light"},
		{err: errors.New("down"), want: defaultHeadContext},
	}
	for _, tc := range tests {
		var captured provider.VisionRequest
		s := NewSynthesizer(visionFunc(func(req provider.VisionRequest) (string, error) {
			captured = req
			return tc.reply, tc.err
		}), seededStore(), nil)
		if got := s.HeadContext(context.Background(), testHuman); got != tc.want {
			t.Fatalf("HeadContext = %q, want %q", got, tc.want)
		}
		if captured.MaxTokens != 50 {
			t.Fatalf("MaxTokens = %d, want 50", captured.MaxTokens)
		}
	}
}
