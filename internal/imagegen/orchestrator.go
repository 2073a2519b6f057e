package imagegen

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"shaggydog/internal/domain"
	"shaggydog/internal/runstate"
)

// Options wires the providers and storage used by an Orchestrator. Swapper
// may be nil; the remote face swap is then skipped.
type Options struct {
	Vision             VisionClient
	Images             ImageClient
	Editor             EditClient
	Swapper            SwapClient
	Store              ArtifactStore
	Downloader         Downloader
	Tracker            runstate.Tracker
	LocalBlendFallback bool
	Logger             *zerolog.Logger
}

// Orchestrator runs one transformation: the dog head first, then the three
// derived stages concurrently.
type Orchestrator struct {
	store   ArtifactStore
	gen     *ImageGenerator
	synth   *Synthesizer
	chain   *ChainCompositor
	blend   *LocalBlend
	tracker runstate.Tracker
	logger  zerolog.Logger
}

// RunReport is the settled outcome of a run. Results holds one entry per
// derived stage in domain.DerivedStages order.
type RunReport struct {
	DogHead string
	Results []domain.GenerationResult
	State   domain.RunState
	Err     error
}

func NewOrchestrator(opts Options) *Orchestrator {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = opts.Logger.With().Str("component", "orchestrator").Logger()
	}
	dl := opts.Downloader
	if dl == nil {
		dl = NewHTTPDownloader(opts.Store, nil, opts.Logger)
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = runstate.NewMemoryTracker(runstate.DefaultTTL)
	}
	var steps []Compositor
	if opts.Editor != nil && hasCredentials(opts.Editor) {
		steps = append(steps, NewMultiImageEdit(opts.Editor, opts.Store, dl))
	}
	if opts.Swapper != nil && hasCredentials(opts.Swapper) {
		steps = append(steps, NewRemoteSwap(opts.Swapper, opts.Store, dl))
	}
	o := &Orchestrator{
		store:   opts.Store,
		gen:     NewImageGenerator(opts.Images, opts.Store, dl),
		synth:   NewSynthesizer(opts.Vision, opts.Store, opts.Logger),
		chain:   NewChainCompositor(&logger, steps...),
		tracker: tracker,
		logger:  logger,
	}
	if opts.LocalBlendFallback {
		o.blend = NewLocalBlend(opts.Store)
	}
	return o
}

// Tracker exposes the run-state tracker shared with the runner.
func (o *Orchestrator) Tracker() runstate.Tracker { return o.tracker }

// Run executes the pipeline for req. Only a failed dog head aborts the run;
// branch failures are reported per result.
func (o *Orchestrator) Run(ctx context.Context, req domain.GenerationRequest) RunReport {
	log := o.logger.With().Str("image_set_id", req.ImageSetID).Str("correlation", req.Correlation).Logger()
	o.transition(ctx, log, req.ImageSetID, domain.RunStateStarted, "")

	headCtx := o.synth.HeadContext(ctx, req.SourcePath)
	dogKey := domain.StageKey(req.SourcePath, domain.StageDogHead)
	dogPath, err := o.gen.Generate(ctx, headPrompt(req.BreedLabel, headCtx), dogKey)
	if err == nil && !o.store.Exists(dogPath) {
		err = errors.New("dog head file missing after write")
	}
	if err != nil {
		err = errors.Join(ErrHeadGeneration, err)
		log.Error().Err(err).Msg("dog head generation failed")
		o.transition(ctx, log, req.ImageSetID, domain.RunStatePartial, "dog head generation failed")
		return RunReport{State: domain.RunStatePartial, Err: err}
	}
	o.transition(ctx, log, req.ImageSetID, domain.RunStateHeadGenerated, dogPath)
	o.transition(ctx, log, req.ImageSetID, domain.RunStateBranchesRunning, "")

	results := make([]domain.GenerationResult, len(domain.DerivedStages))
	var g errgroup.Group
	for i, stage := range domain.DerivedStages {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().Interface("panic", rec).Str("stage", string(stage)).Msg("stage panicked")
					results[i] = domain.GenerationResult{Stage: stage, Err: fmt.Errorf("%s: panic: %v", stage, rec)}
				}
			}()
			results[i] = o.branch(ctx, req, dogPath, stage)
			return nil
		})
	}
	_ = g.Wait()

	report := RunReport{DogHead: dogPath, Results: results, State: domain.RunStateComplete}
	var errs []error
	for _, res := range results {
		if !res.OK() {
			report.State = domain.RunStatePartial
			errs = append(errs, res.Err)
			continue
		}
		log.Info().Str("stage", string(res.Stage)).Str("method", res.Method).Str("path", res.Path).Msg("stage generated")
	}
	report.Err = errors.Join(errs...)
	detail := ""
	if report.Err != nil {
		detail = fmt.Sprintf("%d of %d stages failed", len(errs), len(results))
		log.Warn().Err(report.Err).Msg("run finished with missing stages")
	}
	o.transition(ctx, log, req.ImageSetID, report.State, detail)
	return report
}

func (o *Orchestrator) transition(ctx context.Context, log zerolog.Logger, id string, state domain.RunState, detail string) {
	log.Info().Str("run_state", string(state)).Str("detail", detail).Msg("run state changed")
	if err := o.tracker.Set(ctx, id, state, detail); err != nil {
		log.Warn().Err(err).Str("run_state", string(state)).Msg("record run state failed")
	}
}

// attempt is one way of producing a stage. run may report a more specific
// method than the attempt's own name; an empty one keeps the name.
type attempt struct {
	method string
	run    func(ctx context.Context, out string) (path, method string, err error)
}

func generated(path string, err error) (string, string, error) {
	return path, "", err
}

func (o *Orchestrator) branch(ctx context.Context, req domain.GenerationRequest, dogPath string, stage domain.Stage) domain.GenerationResult {
	out := domain.StageKey(req.SourcePath, stage)
	var attempts []attempt
	if stage == domain.StageFullDog {
		attempts = o.fullDogAttempts(req, dogPath)
	} else {
		level := LevelComplete
		if stage == domain.StageTransition1 {
			level = LevelSubtle
		}
		attempts = o.levelAttempts(req, dogPath, level)
	}
	return o.settle(ctx, stage, out, attempts)
}

func (o *Orchestrator) levelAttempts(req domain.GenerationRequest, dogPath string, level Level) []attempt {
	composite := CompositeRequest{HumanPath: req.SourcePath, DogPath: dogPath, Breed: req.BreedLabel, Level: level}
	var attempts []attempt
	if o.chain.Len() > 0 {
		attempts = append(attempts, attempt{method: o.chain.Name(), run: func(ctx context.Context, out string) (string, string, error) {
			r := composite
			r.OutputPath = out
			path, method, err := o.chain.Run(ctx, r)
			if err == nil {
				o.logger.Debug().Str("compositor", method).Int("level_pct", level.percent()).Str("path", path).Msg("compositor succeeded")
			}
			return path, method, err
		}})
	}
	attempts = append(attempts,
		attempt{method: TierComposite, run: func(ctx context.Context, out string) (string, string, error) {
			p, err := o.synth.CompositePrompt(ctx, req.SourcePath, dogPath, req.BreedLabel, level)
			if err != nil {
				return "", "", err
			}
			return generated(o.gen.Generate(ctx, p, out))
		}},
		attempt{method: TierDescribed, run: func(ctx context.Context, out string) (string, string, error) {
			p, err := o.synth.DescribedPrompt(ctx, req.SourcePath, req.BreedLabel, level)
			if err != nil {
				return "", "", err
			}
			return generated(o.gen.Generate(ctx, p, out))
		}},
		attempt{method: TierTemplate, run: func(ctx context.Context, out string) (string, string, error) {
			return generated(o.gen.Generate(ctx, o.synth.TemplatePrompt(req.BreedLabel, level), out))
		}},
	)
	if o.blend != nil {
		attempts = append(attempts, attempt{method: o.blend.Name(), run: func(ctx context.Context, out string) (string, string, error) {
			r := composite
			r.OutputPath = out
			return generated(o.blend.Composite(ctx, r))
		}})
	}
	return attempts
}

func (o *Orchestrator) fullDogAttempts(req domain.GenerationRequest, dogPath string) []attempt {
	return []attempt{
		{method: TierDescribed, run: func(ctx context.Context, out string) (string, string, error) {
			p, err := o.synth.FullDogDescribedPrompt(ctx, req.SourcePath, dogPath, req.BreedLabel)
			if err != nil {
				return "", "", err
			}
			return generated(o.gen.Generate(ctx, p, out))
		}},
		{method: TierTemplate, run: func(ctx context.Context, out string) (string, string, error) {
			return generated(o.gen.Generate(ctx, o.synth.FullDogTemplatePrompt(req.BreedLabel), out))
		}},
	}
}

// settle runs attempts in order until one leaves a file behind.
func (o *Orchestrator) settle(ctx context.Context, stage domain.Stage, out string, attempts []attempt) domain.GenerationResult {
	res := domain.GenerationResult{Stage: stage}
	var errs []error
	for _, a := range attempts {
		path, method, err := a.run(ctx, out)
		if err == nil && !o.store.Exists(path) {
			err = fmt.Errorf("%s produced no file", a.method)
		}
		if err == nil {
			if method == "" {
				method = a.method
			}
			res.Path, res.Method = path, method
			return res
		}
		o.logger.Warn().Err(err).Str("stage", string(stage)).Str("method", a.method).Msg("stage attempt failed")
		errs = append(errs, fmt.Errorf("%s: %w", a.method, err))
	}
	res.Err = fmt.Errorf("%s: all methods exhausted: %w", stage, errors.Join(errs...))
	return res
}
