package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/housewhisper/scheduler/internal/availability"
)

// ScheduleStore keeps per-agent recurring work hours in Redis as JSON,
// keyed by client/agent pair.
type ScheduleStore struct {
	rdb *redis.Client
}

func NewScheduleStore(rdb *redis.Client) *ScheduleStore {
	return &ScheduleStore{rdb: rdb}
}

func (s *ScheduleStore) key(k Key) string {
	return "schedule:" + k.String()
}

// Get returns the agent's work schedule, or ErrNotFound when none is stored.
func (s *ScheduleStore) Get(ctx context.Context, k Key) (availability.WorkSchedule, error) {
	raw, err := s.rdb.Get(ctx, s.key(k)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: schedule %s", ErrNotFound, k)
	}
	if err != nil {
		return nil, fmt.Errorf("read schedule %s: %w", k, err)
	}
	var ws availability.WorkSchedule
	if err := json.Unmarshal(raw, &ws); err != nil {
		return nil, fmt.Errorf("schedule %s has corrupt payload: %w", k, err)
	}
	return ws, nil
}

// Put validates and stores the schedule, replacing any previous one.
func (s *ScheduleStore) Put(ctx context.Context, k Key, ws availability.WorkSchedule) error {
	if err := ws.Validate(); err != nil {
		return fmt.Errorf("invalid schedule for %s: %w", k, err)
	}
	raw, err := json.Marshal(ws)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(k), raw, 0).Err(); err != nil {
		return fmt.Errorf("write schedule %s: %w", k, err)
	}
	return nil
}

// SeedIfAbsent installs a schedule only when the key has none.
func (s *ScheduleStore) SeedIfAbsent(ctx context.Context, k Key, ws availability.WorkSchedule) error {
	if err := ws.Validate(); err != nil {
		return fmt.Errorf("invalid schedule for %s: %w", k, err)
	}
	raw, err := json.Marshal(ws)
	if err != nil {
		return err
	}
	if err := s.rdb.SetNX(ctx, s.key(k), raw, 0).Err(); err != nil {
		return fmt.Errorf("seed schedule %s: %w", k, err)
	}
	return nil
}
