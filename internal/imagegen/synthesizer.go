package imagegen

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	provider "shaggydog/internal/providers/image"
)

const (
	compositeMaxTokens   = 500
	describeMaxTokens    = 300
	headContextMaxTokens = 50
)

// Prompt tiers, reported as the method of a branch result.
const (
	TierComposite = "composite_prompt"
	TierDescribed = "described_prompt"
	TierTemplate  = "template_prompt"
)

// Synthesizer builds generation prompts from the uploaded photo and the
// generated dog head.
type Synthesizer struct {
	vision VisionClient
	store  ArtifactStore
	logger zerolog.Logger
}

func NewSynthesizer(vision VisionClient, store ArtifactStore, logger *zerolog.Logger) *Synthesizer {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "synthesizer").Logger()
	}
	return &Synthesizer{vision: vision, store: store, logger: l}
}

func (s *Synthesizer) ready() error {
	if s.vision == nil || !hasCredentials(s.vision) {
		return errors.New("imagegen: vision client has no credentials")
	}
	return nil
}

// CompositePrompt asks the vision model to write a prompt from both images.
func (s *Synthesizer) CompositePrompt(ctx context.Context, humanPath, dogPath, breed string, level Level) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	human, err := inline(s.store, humanPath)
	if err != nil {
		return "", fmt.Errorf("composite prompt: read human: %w", err)
	}
	dog, err := inline(s.store, dogPath)
	if err != nil {
		return "", fmt.Errorf("composite prompt: read dog head: %w", err)
	}
	reply, err := s.vision.Describe(ctx, provider.VisionRequest{
		System:    compositeSystem,
		Prompt:    compositeRequestPrompt(breed, level),
		Images:    []provider.InlineImage{human, dog},
		MaxTokens: compositeMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("composite prompt: %w", err)
	}
	if IsRefusal(reply) {
		return "", ErrRefused
	}
	return reply, nil
}

// Describe extracts the structured description of one image. Refusals and
// call errors yield DefaultDescription; only missing credentials or an
// unreadable file fail.
func (s *Synthesizer) Describe(ctx context.Context, path string) (string, error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	img, err := inline(s.store, path)
	if err != nil {
		return "", fmt.Errorf("describe: read %s: %w", path, err)
	}
	reply, err := s.vision.Describe(ctx, provider.VisionRequest{
		System:    describeSystem,
		Prompt:    describePrompt,
		Images:    []provider.InlineImage{img},
		MaxTokens: describeMaxTokens,
	})
	if err != nil {
		s.logger.Warn().Err(err).Str("path", path).Msg("description failed, using default")
		return DefaultDescription, nil
	}
	if IsRefusal(reply) {
		s.logger.Warn().Str("path", path).Msg("description refused, using default")
		return DefaultDescription, nil
	}
	return reply, nil
}

// DescribedPrompt interpolates the human description into the structured
// template for level.
func (s *Synthesizer) DescribedPrompt(ctx context.Context, humanPath, breed string, level Level) (string, error) {
	desc, err := s.Describe(ctx, humanPath)
	if err != nil {
		return "", err
	}
	return describedPrompt(breed, level, desc), nil
}

// TemplatePrompt needs no image data and never fails.
func (s *Synthesizer) TemplatePrompt(breed string, level Level) string {
	return templatePrompt(breed, level)
}

// Synthesize walks the tiers and returns the first prompt produced along
// with its tier.
func (s *Synthesizer) Synthesize(ctx context.Context, humanPath, dogPath, breed string, level Level) (string, string) {
	p, err := s.CompositePrompt(ctx, humanPath, dogPath, breed, level)
	if err == nil {
		return p, TierComposite
	}
	s.logger.Debug().Err(err).Msg("composite tier unavailable")
	if p, err = s.DescribedPrompt(ctx, humanPath, breed, level); err == nil {
		return p, TierDescribed
	}
	s.logger.Debug().Err(err).Msg("described tier unavailable")
	return s.TemplatePrompt(breed, level), TierTemplate
}

// FullDogDescribedPrompt requires a description of the human photo. The
// dog head description is optional and only changes the head wording.
func (s *Synthesizer) FullDogDescribedPrompt(ctx context.Context, humanPath, dogPath, breed string) (string, error) {
	if _, err := s.Describe(ctx, humanPath); err != nil {
		return "", err
	}
	headDescribed := false
	if dogPath != "" && s.store.Exists(dogPath) {
		if _, err := s.Describe(ctx, dogPath); err == nil {
			headDescribed = true
		}
	}
	return fullDogDescribedPrompt(breed, headDescribed), nil
}

func (s *Synthesizer) FullDogTemplatePrompt(breed string) string {
	return fullDogTemplatePrompt(breed)
}

// HeadContext summarises lighting, angle, expression and mood of the photo
// for the dog head prompt.
func (s *Synthesizer) HeadContext(ctx context.Context, humanPath string) string {
	if s.ready() != nil {
		return defaultHeadContext
	}
	img, err := inline(s.store, humanPath)
	if err != nil {
		return defaultHeadContext
	}
	reply, err := s.vision.Describe(ctx, provider.VisionRequest{
		System:    headContextSystem,
		Prompt:    headContextPrompt,
		Images:    []provider.InlineImage{img},
		MaxTokens: headContextMaxTokens,
	})
	if err != nil || reply == "" || containsAny(reply, "sorry", "can't") {
		return defaultHeadContext
	}
	return reply
}
