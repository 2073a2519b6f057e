package imagegen

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"shaggydog/internal/domain"
	"shaggydog/internal/runstate"
)

const (
	StatusComplete   = "complete"
	StatusProcessing = "processing"
)

// Status is the readiness of an image set. Images is only filled when the
// set is complete.
type Status struct {
	ImageSetID string
	OwnerID    string
	State      string
	RunState   domain.RunState
	Detail     string
	Images     map[domain.Stage]string
}

// Runner records image sets and runs their transformations in the
// background.
type Runner struct {
	repo     domain.ImageSetRepository
	orch     *Orchestrator
	store    ArtifactStore
	tracker  runstate.Tracker
	logger   zerolog.Logger
	inFlight *atomic.Int64
	wg       sync.WaitGroup
}

func NewRunner(repo domain.ImageSetRepository, orch *Orchestrator, store ArtifactStore, logger *zerolog.Logger) *Runner {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "runner").Logger()
	}
	return &Runner{
		repo:     repo,
		orch:     orch,
		store:    store,
		tracker:  orch.Tracker(),
		logger:   l,
		inFlight: atomic.NewInt64(0),
	}
}

// StartTransformation records the set and returns its id immediately. The
// run is detached from ctx so the caller's cancellation does not stop it.
func (r *Runner) StartTransformation(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if req.SourcePath == "" {
		return "", errors.New("imagegen: source path is required")
	}
	set := &domain.ImageSet{
		OwnerID:      req.OwnerID,
		OriginalPath: req.SourcePath,
		BreedLabel:   req.BreedLabel,
		StagePaths:   map[domain.Stage]string{},
		RunState:     domain.RunStateStarted,
		Correlation:  req.Correlation,
	}
	id, err := r.repo.Create(ctx, set)
	if err != nil {
		return "", fmt.Errorf("record image set: %w", err)
	}
	req.ImageSetID = id

	r.inFlight.Inc()
	r.wg.Add(1)
	runCtx := r.logger.WithContext(context.Background())
	go r.run(runCtx, req)

	r.logger.Info().Str("image_set_id", id).Str("breed", req.BreedLabel).Msg("transformation started")
	return id, nil
}

func (r *Runner) run(ctx context.Context, req domain.GenerationRequest) {
	defer r.wg.Done()
	defer r.inFlight.Dec()
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Str("image_set_id", req.ImageSetID).Msg("transformation panicked")
			_ = r.tracker.Set(ctx, req.ImageSetID, domain.RunStatePartial, "internal error")
			_ = r.repo.UpdateState(ctx, req.ImageSetID, domain.RunStatePartial)
		}
	}()

	report := r.orch.Run(ctx, req)

	stages := map[domain.Stage]string{}
	if r.store.Exists(req.SourcePath) {
		stages[domain.StageOriginal] = req.SourcePath
	}
	if report.DogHead != "" && r.store.Exists(report.DogHead) {
		stages[domain.StageDogHead] = report.DogHead
	}
	for _, res := range report.Results {
		if res.OK() && r.store.Exists(res.Path) {
			stages[res.Stage] = res.Path
		}
	}
	if err := r.repo.UpdateStages(ctx, req.ImageSetID, stages, report.State); err != nil {
		r.logger.Error().Err(err).Str("image_set_id", req.ImageSetID).Msg("write back stages failed")
		return
	}
	r.logger.Info().
		Str("image_set_id", req.ImageSetID).
		Str("run_state", string(report.State)).
		Int("stages", len(stages)).
		Msg("transformation finished")
}

// CheckStatus reports complete only when every readiness stage exists on
// disk under its conventional name.
func (r *Runner) CheckStatus(ctx context.Context, id string) (Status, error) {
	set, err := r.repo.Get(ctx, id)
	if err != nil {
		return Status{}, err
	}
	st := Status{ImageSetID: set.ID, OwnerID: set.OwnerID, State: StatusProcessing, RunState: set.RunState}
	if snap, err := r.tracker.Get(ctx, set.ID); err == nil {
		st.RunState, st.Detail = snap.State, snap.Detail
	} else if !errors.Is(err, runstate.ErrUnknownRun) {
		r.logger.Warn().Err(err).Str("image_set_id", set.ID).Msg("read run state failed")
	}

	images := make(map[domain.Stage]string, len(domain.ReadinessStages))
	for _, stage := range domain.ReadinessStages {
		key := domain.StageKey(set.OriginalPath, stage)
		if !r.store.Exists(key) {
			return st, nil
		}
		images[stage] = key
	}
	st.State = StatusComplete
	st.Images = images
	return st, nil
}

// InFlight is the number of detached runs still executing.
func (r *Runner) InFlight() int64 { return r.inFlight.Load() }

// Wait blocks until every started run has finished or ctx is done.
func (r *Runner) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
