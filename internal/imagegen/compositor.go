package imagegen

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"shaggydog/internal/infra"
	provider "shaggydog/internal/providers/image"
)

// CompositeRequest places the dog head from DogPath onto the human in
// HumanPath at the given level and writes OutputPath.
type CompositeRequest struct {
	HumanPath  string
	DogPath    string
	Breed      string
	Level      Level
	OutputPath string
}

// Compositor merges a human portrait with a generated dog head.
type Compositor interface {
	Name() string
	Composite(ctx context.Context, req CompositeRequest) (string, error)
}

// MultiImageEdit sends both images to the image edit endpoint.
type MultiImageEdit struct {
	editor     EditClient
	store      ArtifactStore
	downloader Downloader
}

func NewMultiImageEdit(editor EditClient, store ArtifactStore, downloader Downloader) *MultiImageEdit {
	return &MultiImageEdit{editor: editor, store: store, downloader: downloader}
}

func (m *MultiImageEdit) Name() string { return "image_edit" }

func (m *MultiImageEdit) Composite(ctx context.Context, req CompositeRequest) (string, error) {
	human, err := inline(m.store, req.HumanPath)
	if err != nil {
		return "", fmt.Errorf("image edit: read human: %w", err)
	}
	dog, err := inline(m.store, req.DogPath)
	if err != nil {
		return "", fmt.Errorf("image edit: read dog head: %w", err)
	}
	out, err := m.editor.EditImages(ctx, provider.EditRequest{
		Images:   []provider.InlineImage{human, dog},
		Prompt:   editPrompt(req.Breed, req.Level),
		Size:     "1024x1024",
		Fidelity: "high",
	})
	if err != nil {
		return "", fmt.Errorf("image edit: %w", err)
	}
	return persist(ctx, m.store, m.downloader, out, req.OutputPath)
}

// RemoteSwap swaps the dog face onto the human through a hosted face-swap
// model. It ignores the level.
type RemoteSwap struct {
	swapper    SwapClient
	store      ArtifactStore
	downloader Downloader
}

func NewRemoteSwap(swapper SwapClient, store ArtifactStore, downloader Downloader) *RemoteSwap {
	return &RemoteSwap{swapper: swapper, store: store, downloader: downloader}
}

func (r *RemoteSwap) Name() string { return "face_swap" }

func (r *RemoteSwap) Composite(ctx context.Context, req CompositeRequest) (string, error) {
	human, err := inline(r.store, req.HumanPath)
	if err != nil {
		return "", fmt.Errorf("face swap: read human: %w", err)
	}
	dog, err := inline(r.store, req.DogPath)
	if err != nil {
		return "", fmt.Errorf("face swap: read dog head: %w", err)
	}
	url, err := r.swapper.Swap(ctx, human, dog)
	if err != nil {
		return "", fmt.Errorf("face swap: %w", err)
	}
	return r.downloader.Fetch(ctx, url, req.OutputPath)
}

// ChainCompositor tries each compositor in order.
type ChainCompositor struct {
	steps  []Compositor
	logger zerolog.Logger
}

func NewChainCompositor(logger *zerolog.Logger, steps ...Compositor) *ChainCompositor {
	l := infra.OrNop(logger)
	kept := make([]Compositor, 0, len(steps))
	for _, s := range steps {
		if s != nil {
			kept = append(kept, s)
		}
	}
	return &ChainCompositor{steps: kept, logger: l}
}

func (c *ChainCompositor) Name() string { return "chain" }

func (c *ChainCompositor) Len() int { return len(c.steps) }

func (c *ChainCompositor) Composite(ctx context.Context, req CompositeRequest) (string, error) {
	path, _, err := c.Run(ctx, req)
	return path, err
}

// Run returns the first successful output together with the name of the
// compositor that produced it.
func (c *ChainCompositor) Run(ctx context.Context, req CompositeRequest) (string, string, error) {
	if len(c.steps) == 0 {
		return "", "", errors.New("imagegen: no compositors configured")
	}
	var errs []error
	for _, step := range c.steps {
		path, err := step.Composite(ctx, req)
		if err == nil {
			return path, step.Name(), nil
		}
		c.logger.Warn().Err(err).Str("compositor", step.Name()).Str("output", req.OutputPath).Msg("compositor failed")
		errs = append(errs, err)
	}
	return "", "", errors.Join(errs...)
}

var (
	_ Compositor = (*MultiImageEdit)(nil)
	_ Compositor = (*RemoteSwap)(nil)
	_ Compositor = (*ChainCompositor)(nil)
)
