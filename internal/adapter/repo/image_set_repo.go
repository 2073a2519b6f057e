package repo

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"shaggydog/internal/domain"
	"shaggydog/internal/infra"
	"shaggydog/internal/sqlinline"
)

// ImageSetRepositoryPG implements domain.ImageSetRepository using PostgreSQL.
type ImageSetRepositoryPG struct {
	sql infra.SQLExecutor
}

// NewImageSetRepository constructs a new image set repository instance.
func NewImageSetRepository(sql infra.SQLExecutor) *ImageSetRepositoryPG {
	return &ImageSetRepositoryPG{sql: sql}
}

// Create inserts the set and returns the generated id.
func (r *ImageSetRepositoryPG) Create(ctx context.Context, set *domain.ImageSet) (string, error) {
	if set == nil {
		return "", fmt.Errorf("image set is required")
	}
	stages, err := encodeStages(set.StagePaths)
	if err != nil {
		return "", err
	}
	state := set.RunState
	if state == "" {
		state = domain.RunStateStarted
	}
	row := r.sql.QueryRow(ctx, sqlinline.QInsertImageSet,
		set.OwnerID, set.OriginalPath, set.BreedLabel, stages, string(state), set.Correlation)
	if err := row.Scan(&set.ID, &set.CreatedAt); err != nil {
		return "", fmt.Errorf("insert image set: %w", err)
	}
	set.RunState = state
	set.UpdatedAt = set.CreatedAt
	return set.ID, nil
}

// UpdateStages merges the given stage paths into the record and sets its state
// in a single statement.
func (r *ImageSetRepositoryPG) UpdateStages(ctx context.Context, id string, stages map[domain.Stage]string, state domain.RunState) error {
	payload, err := encodeStages(stages)
	if err != nil {
		return err
	}
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateImageSetStages, id, payload, string(state))
	if err != nil {
		return fmt.Errorf("update image set stages: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// UpdateState records a run state transition.
func (r *ImageSetRepositoryPG) UpdateState(ctx context.Context, id string, state domain.RunState) error {
	tag, err := r.sql.Exec(ctx, sqlinline.QUpdateImageSetState, id, string(state))
	if err != nil {
		return fmt.Errorf("update image set state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Get loads a set by id, returning domain.ErrNotFound when absent.
func (r *ImageSetRepositoryPG) Get(ctx context.Context, id string) (*domain.ImageSet, error) {
	row := r.sql.QueryRow(ctx, sqlinline.QSelectImageSetByID, id)
	set, err := scanImageSet(row.Scan)
	if err != nil {
		if infra.IsNoRows(err) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("select image set: %w", err)
	}
	return set, nil
}

// ListByOwner returns the owner's sets, newest first.
func (r *ImageSetRepositoryPG) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.ImageSet, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	rows, err := r.sql.Query(ctx, sqlinline.QListImageSetsByOwner, ownerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list image sets: %w", err)
	}
	defer rows.Close()

	var sets []domain.ImageSet
	for rows.Next() {
		set, err := scanImageSet(rows.Scan)
		if err != nil {
			return nil, err
		}
		sets = append(sets, *set)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return sets, nil
}

func scanImageSet(scan func(dest ...any) error) (*domain.ImageSet, error) {
	var (
		set    domain.ImageSet
		stages []byte
		state  string
	)
	if err := scan(&set.ID, &set.OwnerID, &set.OriginalPath, &set.BreedLabel, &stages, &state, &set.Correlation, &set.CreatedAt, &set.UpdatedAt); err != nil {
		return nil, err
	}
	decoded, err := decodeStages(stages)
	if err != nil {
		return nil, err
	}
	set.StagePaths = decoded
	set.RunState = domain.RunState(state)
	return &set, nil
}

func encodeStages(stages map[domain.Stage]string) ([]byte, error) {
	clean := make(map[string]string, len(stages))
	for stage, path := range stages {
		if path = strings.TrimSpace(path); path != "" {
			clean[string(stage)] = path
		}
	}
	raw, err := json.Marshal(clean)
	if err != nil {
		return nil, fmt.Errorf("encode stage paths: %w", err)
	}
	return raw, nil
}

func decodeStages(raw []byte) (map[domain.Stage]string, error) {
	out := make(map[domain.Stage]string)
	if len(raw) == 0 {
		return out, nil
	}
	var m map[string]string
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode stage paths: %w", err)
	}
	for k, v := range m {
		out[domain.Stage(k)] = v
	}
	return out, nil
}

var _ domain.ImageSetRepository = (*ImageSetRepositoryPG)(nil)
