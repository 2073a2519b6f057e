package imagegen

import (
	"context"
	"errors"
	"strings"
	"testing"

	"go.uber.org/atomic"

	"shaggydog/internal/domain"
	provider "shaggydog/internal/providers/image"
	"shaggydog/internal/runstate"
)

func okVision() VisionClient {
	return visionFunc(func(req provider.VisionRequest) (string, error) {
		return "Photorealistic studio portrait. Generated prompt.", nil
	})
}

func newTestOrchestrator(store *memStore, images *fakeImages, tracker runstate.Tracker, mutate func(*Options)) *Orchestrator {
	opts := Options{
		Vision:     okVision(),
		Images:     images,
		Store:      store,
		Downloader: &fakeDownloader{store: store},
		Tracker:    tracker,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return NewOrchestrator(opts)
}

func TestOrchestratorCompleteRun(t *testing.T) {
	store := seededStore()
	images := &fakeImages{}
	tracker := runstate.NewMemoryTracker(0)
	o := newTestOrchestrator(store, images, tracker, nil)

	report := o.Run(context.Background(), domain.GenerationRequest{ImageSetID: "set-1", SourcePath: testHuman, BreedLabel: "Pug"})
	if report.State != domain.RunStateComplete || report.Err != nil {
		t.Fatalf("report = %+v", report)
	}
	if report.DogHead != testDog {
		t.Fatalf("DogHead = %q, want %q", report.DogHead, testDog)
	}
	for i, res := range report.Results {
		if res.Stage != domain.DerivedStages[i] {
			t.Fatalf("result %d stage = %q", i, res.Stage)
		}
		if !res.OK() || !store.Exists(res.Path) {
			t.Fatalf("result %s not produced: %+v", res.Stage, res)
		}
	}
	if got := report.Results[0].Method; got != TierComposite {
		t.Fatalf("transition1 method = %q, want %q", got, TierComposite)
	}
	snap, err := tracker.Get(context.Background(), "set-1")
	if err != nil || snap.State != domain.RunStateComplete {
		t.Fatalf("tracker = %+v, %v", snap, err)
	}
}

func TestOrchestratorHeadFailureIsFatal(t *testing.T) {
	store := seededStore()
	store.put(testDog, nil)
	images := &fakeImages{fail: func(string) bool { return true }}
	tracker := runstate.NewMemoryTracker(0)
	o := newTestOrchestrator(store, images, tracker, nil)

	report := o.Run(context.Background(), domain.GenerationRequest{ImageSetID: "set-2", SourcePath: testHuman, BreedLabel: "Pug"})
	if !errors.Is(report.Err, ErrHeadGeneration) {
		t.Fatalf("err = %v, want ErrHeadGeneration", report.Err)
	}
	if report.State != domain.RunStatePartial || len(report.Results) != 0 {
		t.Fatalf("report = %+v", report)
	}
	if len(images.prompts) != 1 {
		t.Fatalf("generation calls = %d, want only the head", len(images.prompts))
	}
	snap, _ := tracker.Get(context.Background(), "set-2")
	if snap.State != domain.RunStatePartial {
		t.Fatalf("tracker state = %q, want PARTIAL", snap.State)
	}
}

func TestOrchestratorExhaustedBranchDoesNotBlockSiblings(t *testing.T) {
	store := seededStore()
	images := &fakeImages{fail: func(p string) bool { return strings.Contains(p, "complete Pug dog") }}
	o := newTestOrchestrator(store, images, nil, nil)

	report := o.Run(context.Background(), domain.GenerationRequest{ImageSetID: "set-3", SourcePath: testHuman, BreedLabel: "Pug"})
	if report.State != domain.RunStatePartial {
		t.Fatalf("state = %q, want PARTIAL", report.State)
	}
	full := report.Results[2]
	if full.Stage != domain.StageFullDog || full.Path != "" || full.Err == nil {
		t.Fatalf("full_dog = %+v", full)
	}
	if !report.Results[0].OK() || !report.Results[1].OK() {
		t.Fatalf("siblings failed: %+v", report.Results[:2])
	}
	if got := images.count("complete Pug dog"); got != 2 {
		t.Fatalf("full dog attempts = %d, want 2", got)
	}
	if !errors.Is(report.Err, full.Err) {
		t.Fatalf("run err %v does not wrap branch err", report.Err)
	}
}

func TestOrchestratorCompositorChainFirst(t *testing.T) {
	store := seededStore()
	images := &fakeImages{}
	edits := atomic.NewInt32(0)
	o := newTestOrchestrator(store, images, nil, func(opts *Options) {
		opts.Editor = editFunc(func(req provider.EditRequest) (provider.Output, error) {
			edits.Inc()
			if strings.Contains(req.Prompt, "about 30%") {
				return provider.Output{}, errors.New("edit refused")
			}
			return provider.Output{Data: solidPNG(4, 4, dogColor)}, nil
		})
	})
	report := o.Run(context.Background(), domain.GenerationRequest{ImageSetID: "set-4", SourcePath: testHuman, BreedLabel: "Pug"})
	if report.State != domain.RunStateComplete {
		t.Fatalf("state = %q", report.State)
	}
	if got := report.Results[1].Method; got != "image_edit" {
		t.Fatalf("final method = %q, want image_edit", got)
	}
	if got := report.Results[0].Method; got != TierComposite {
		t.Fatalf("transition1 method = %q, want %q", got, TierComposite)
	}
	if edits.Load() != 2 {
		t.Fatalf("edits = %d, want 2", edits.Load())
	}
}

func TestOrchestratorLocalBlendFallback(t *testing.T) {
	store := seededStore()
	images := &fakeImages{fail: func(p string) bool { return !strings.Contains(p, "head and upper neck") }}
	o := newTestOrchestrator(store, images, nil, func(opts *Options) {
		opts.LocalBlendFallback = true
	})
	report := o.Run(context.Background(), domain.GenerationRequest{ImageSetID: "set-5", SourcePath: testHuman, BreedLabel: "Pug"})
	for _, res := range report.Results[:2] {
		if res.Method != "local_blend" || !res.OK() {
			t.Fatalf("%s = %+v, want local blend", res.Stage, res)
		}
	}
	if report.Results[2].OK() {
		t.Fatal("full_dog has no local fallback")
	}
}

func TestOrchestratorRecordsWinningCompositor(t *testing.T) {
	store := seededStore()
	o := newTestOrchestrator(store, &fakeImages{}, nil, func(opts *Options) {
		opts.Editor = editFunc(func(req provider.EditRequest) (provider.Output, error) {
			return provider.Output{}, errors.New("edit unavailable")
		})
		opts.Swapper = swapFunc(func(source, target provider.InlineImage) (string, error) {
			return "https://cdn.example/swap.png", nil
		})
	})
	report := o.Run(context.Background(), domain.GenerationRequest{ImageSetID: "set-6", SourcePath: testHuman, BreedLabel: "Pug"})
	for _, res := range report.Results[:2] {
		if res.Method != "face_swap" || !res.OK() {
			t.Fatalf("%s = %+v, want face_swap", res.Stage, res)
		}
	}
}

func TestOrchestratorBranchPanicSettlesPartial(t *testing.T) {
	store := seededStore()
	images := &fakeImages{panics: func(p string) bool { return strings.Contains(p, "complete Pug dog") }}
	tracker := runstate.NewMemoryTracker(0)
	o := newTestOrchestrator(store, images, tracker, nil)

	report := o.Run(context.Background(), domain.GenerationRequest{ImageSetID: "set-7", SourcePath: testHuman, BreedLabel: "Pug"})
	if report.State != domain.RunStatePartial {
		t.Fatalf("state = %q, want PARTIAL", report.State)
	}
	full := report.Results[2]
	if full.Stage != domain.StageFullDog || full.OK() || !strings.Contains(full.Err.Error(), "panic") {
		t.Fatalf("full_dog = %+v", full)
	}
	if !report.Results[0].OK() || !report.Results[1].OK() {
		t.Fatalf("siblings failed: %+v", report.Results[:2])
	}
	snap, _ := tracker.Get(context.Background(), "set-7")
	if snap.State != domain.RunStatePartial {
		t.Fatalf("tracker state = %q, want PARTIAL", snap.State)
	}
}
