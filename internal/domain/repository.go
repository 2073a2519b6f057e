package domain

import "context"

// ImageSetRepository persists image sets.
type ImageSetRepository interface {
	Create(ctx context.Context, set *ImageSet) (string, error)
	UpdateStages(ctx context.Context, id string, stages map[Stage]string, state RunState) error
	UpdateState(ctx context.Context, id string, state RunState) error
	Get(ctx context.Context, id string) (*ImageSet, error)
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]ImageSet, error)
}
