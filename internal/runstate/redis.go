package runstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"shaggydog/internal/domain"
)

const keyPrefix = "shaggydog:run:"

// RedisTracker stores each run as a hash keyed by run id. Entries expire after
// the configured TTL so abandoned runs do not accumulate.
type RedisTracker struct {
	client redis.Cmdable
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisTracker wraps a go-redis client. A non-positive ttl keeps entries
// forever.
func NewRedisTracker(client redis.Cmdable, ttl time.Duration) *RedisTracker {
	return &RedisTracker{client: client, ttl: ttl, now: time.Now}
}

func runKey(runID string) string {
	return keyPrefix + runID
}

func (r *RedisTracker) Set(ctx context.Context, runID string, state domain.RunState, detail string) error {
	key := runKey(runID)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"state", string(state),
			"detail", detail,
			"updated_at", r.now().UTC().Format(time.RFC3339Nano),
		)
		if r.ttl > 0 {
			pipe.Expire(ctx, key, r.ttl)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("runstate: set %s: %w", runID, err)
	}
	return nil
}

func (r *RedisTracker) Get(ctx context.Context, runID string) (Snapshot, error) {
	fields, err := r.client.HGetAll(ctx, runKey(runID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, ErrUnknownRun
		}
		return Snapshot{}, fmt.Errorf("runstate: get %s: %w", runID, err)
	}
	return decodeSnapshot(fields)
}

func decodeSnapshot(fields map[string]string) (Snapshot, error) {
	state, ok := fields["state"]
	if !ok || state == "" {
		return Snapshot{}, ErrUnknownRun
	}
	snap := Snapshot{State: domain.RunState(state), Detail: fields["detail"]}
	if ts := fields["updated_at"]; ts != "" {
		parsed, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return Snapshot{}, fmt.Errorf("runstate: parse updated_at: %w", err)
		}
		snap.UpdatedAt = parsed
	}
	return snap, nil
}

var _ Tracker = (*RedisTracker)(nil)
