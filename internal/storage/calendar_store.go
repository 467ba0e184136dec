package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrNotFound means no record exists for the key.
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict means the snapshot changed between read and write.
	// Callers re-read, re-check conflicts, and retry.
	ErrVersionConflict = errors.New("calendar snapshot version conflict")
)

// Key identifies one agent calendar within a client account.
type Key struct {
	ClientID string
	AgentID  string
}

func (k Key) String() string {
	return k.ClientID + "#" + k.AgentID
}

// CalendarSnapshot is one versioned read of an agent's calendar. Version 0
// with a nil payload means the agent has no calendar yet.
type CalendarSnapshot struct {
	Payload []byte
	Version int64
}

// CalendarStore keeps iCalendar snapshots in Redis, one hash per
// client/agent pair, with a version stamp for optimistic concurrency.
type CalendarStore struct {
	rdb *redis.Client
}

// casScript writes the payload only while the stored version still matches
// the one the caller read. A missing key counts as version 0, so the same
// path creates first snapshots.
var casScript = redis.NewScript(`
local v = redis.call("HGET", KEYS[1], "version")
if v == false then
  v = "0"
end
if v ~= ARGV[1] then
  return 0
end
redis.call("HSET", KEYS[1], "payload", ARGV[2], "version", tonumber(ARGV[1]) + 1)
return 1
`)

func NewCalendarStore(rdb *redis.Client) *CalendarStore {
	return &CalendarStore{rdb: rdb}
}

func (s *CalendarStore) key(k Key) string {
	return "calendar:" + k.String()
}

// Snapshot returns the current payload and version for the key. Absent
// calendars come back as an empty snapshot at version 0.
func (s *CalendarStore) Snapshot(ctx context.Context, k Key) (CalendarSnapshot, error) {
	vals, err := s.rdb.HMGet(ctx, s.key(k), "payload", "version").Result()
	if err != nil {
		return CalendarSnapshot{}, fmt.Errorf("read calendar %s: %w", k, err)
	}
	snap := CalendarSnapshot{}
	if raw, ok := vals[0].(string); ok {
		snap.Payload = []byte(raw)
	}
	if raw, ok := vals[1].(string); ok {
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return CalendarSnapshot{}, fmt.Errorf("calendar %s has corrupt version %q", k, raw)
		}
		snap.Version = v
	}
	return snap, nil
}

// CompareAndSwap replaces the snapshot if the stored version still equals
// version, bumping the stamp by one. Returns ErrVersionConflict otherwise.
func (s *CalendarStore) CompareAndSwap(ctx context.Context, k Key, version int64, payload []byte) error {
	res, err := casScript.Run(ctx, s.rdb, []string{s.key(k)}, strconv.FormatInt(version, 10), payload).Result()
	if err != nil {
		return fmt.Errorf("write calendar %s: %w", k, err)
	}
	ok, _ := res.(int64)
	if ok != 1 {
		return fmt.Errorf("%w: %s at version %d", ErrVersionConflict, k, version)
	}
	return nil
}

// SeedIfAbsent installs an initial snapshot without clobbering an existing
// one. Used by startup bootstrap only.
func (s *CalendarStore) SeedIfAbsent(ctx context.Context, k Key, payload []byte) error {
	err := s.CompareAndSwap(ctx, k, 0, payload)
	if errors.Is(err, ErrVersionConflict) {
		return nil
	}
	return err
}

// ReadyCheck pings Redis for the /readyz probe.
func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
