package imagegen

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"

	provider "shaggydog/internal/providers/image"
)

const classifyMaxTokens = 30

// BreedClassifier matches a portrait to a single dog breed name.
type BreedClassifier struct {
	vision VisionClient
	logger zerolog.Logger
}

func NewBreedClassifier(vision VisionClient, logger *zerolog.Logger) *BreedClassifier {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "classifier").Logger()
	}
	return &BreedClassifier{vision: vision, logger: l}
}

// Classify never fails: any error or refusal yields DefaultBreed.
func (c *BreedClassifier) Classify(ctx context.Context, data []byte, mime string) string {
	if c == nil || c.vision == nil || !hasCredentials(c.vision) || len(data) == 0 {
		return DefaultBreed
	}
	reply, err := c.vision.Describe(ctx, provider.VisionRequest{
		System:    classifySystem,
		Prompt:    classifyPrompt,
		Images:    []provider.InlineImage{{MIME: mime, Data: data}},
		MaxTokens: classifyMaxTokens,
	})
	if err != nil {
		c.logger.Warn().Err(err).Msg("breed classification failed, using default")
		return DefaultBreed
	}
	if IsRefusal(reply) {
		c.logger.Warn().Str("reply", reply).Msg("breed classification refused, using default")
		return DefaultBreed
	}
	breed := normalizeBreed(reply)
	if breed == "" {
		return DefaultBreed
	}
	c.logger.Debug().Str("breed", breed).Msg("breed classified")
	return breed
}

func normalizeBreed(reply string) string {
	s := strings.TrimSpace(reply)
	s = strings.Trim(s, "\"'`.")
	return norm.NFC.String(strings.Join(strings.Fields(s), " "))
}
