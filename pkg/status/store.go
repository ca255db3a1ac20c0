package status

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// ErrNoRun is returned when no run has been recorded for a variant.
var ErrNoRun = errors.New("no recorded run")

// Reporter receives run state updates from the traversal engine.
// Implementations must be safe for concurrent use.
type Reporter interface {
	Report(ctx context.Context, state RunState) error
}

// Nop discards every update.
type Nop struct{}

// Report implements Reporter.
func (Nop) Report(context.Context, RunState) error { return nil }

// RedisStore persists run states as Redis hashes.
type RedisStore struct {
	redis  *redis.Client
	logger zerolog.Logger
}

// NewRedisStore creates a store backed by redisClient.
func NewRedisStore(redisClient *redis.Client, logger zerolog.Logger) *RedisStore {
	if redisClient == nil {
		panic("redis client cannot be nil")
	}
	return &RedisStore{
		redis:  redisClient,
		logger: logger,
	}
}

func runKey(runID string) string {
	return RedisKeyRunPrefix + runID
}

// Report stores state and marks its run as the latest of its variant.
func (s *RedisStore) Report(ctx context.Context, state RunState) error {
	if state.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if state.UpdatedAt.IsZero() {
		state.UpdatedAt = time.Now()
	}

	key := runKey(state.RunID)

	pipe := s.redis.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"run_id":     state.RunID,
		"variant":    state.Variant,
		"phase":      string(state.Phase),
		"page":       state.Page,
		"downloaded": state.Downloaded,
		"failed":     state.Failed,
		"error":      state.Error,
		"started_at": state.StartedAt.UnixMilli(),
		"updated_at": state.UpdatedAt.UnixMilli(),
	})
	pipe.Expire(ctx, key, RunStateTTL)
	pipe.Set(ctx, fmt.Sprintf(RedisKeyLatestFmt, state.Variant), state.RunID, RunStateTTL)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store run state in redis: %w", err)
	}

	s.logger.Debug().
		Str("run_id", state.RunID).
		Str("phase", string(state.Phase)).
		Int64("downloaded", state.Downloaded).
		Int64("failed", state.Failed).
		Msg("Run state stored")

	return nil
}

// Get loads the state of runID.
func (s *RedisStore) Get(ctx context.Context, runID string) (*RunState, error) {
	fields, err := s.redis.HGetAll(ctx, runKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("get run state: %w", err)
	}
	if len(fields) == 0 {
		return nil, ErrNoRun
	}
	return parseState(fields)
}

// Latest loads the most recent run of variant.
func (s *RedisStore) Latest(ctx context.Context, variant string) (*RunState, error) {
	runID, err := s.redis.Get(ctx, fmt.Sprintf(RedisKeyLatestFmt, variant)).Result()
	if err == redis.Nil {
		return nil, ErrNoRun
	}
	if err != nil {
		return nil, fmt.Errorf("get latest run: %w", err)
	}
	return s.Get(ctx, runID)
}

func parseState(fields map[string]string) (*RunState, error) {
	state := &RunState{
		RunID:   fields["run_id"],
		Variant: fields["variant"],
		Phase:   Phase(fields["phase"]),
		Error:   fields["error"],
	}

	var err error
	if state.Page, err = atoiField(fields, "page"); err != nil {
		return nil, err
	}

	ints := map[string]*int64{
		"downloaded": &state.Downloaded,
		"failed":     &state.Failed,
	}
	for name, dst := range ints {
		if *dst, err = int64Field(fields, name); err != nil {
			return nil, err
		}
	}

	started, err := int64Field(fields, "started_at")
	if err != nil {
		return nil, err
	}
	updated, err := int64Field(fields, "updated_at")
	if err != nil {
		return nil, err
	}
	state.StartedAt = time.UnixMilli(started)
	state.UpdatedAt = time.UnixMilli(updated)

	return state, nil
}

func atoiField(fields map[string]string, name string) (int, error) {
	v, err := int64Field(fields, name)
	return int(v), err
}

func int64Field(fields map[string]string, name string) (int64, error) {
	raw, ok := fields[name]
	if !ok || raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", name, err)
	}
	return v, nil
}
