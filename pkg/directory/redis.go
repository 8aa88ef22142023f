package directory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mahaj/streamfeed/pkg/logger"
)

const usersKey = "directory:users"

// Redis reads the directory hash the user-management service
// maintains (field = user id, value = JSON entry) and serves queries
// from an in-memory snapshot refreshed on an interval. Autocomplete
// latency stays flat regardless of Redis round-trip time, and a
// briefly stale snapshot is fine for advisory suggestions.
type Redis struct {
	rdb *redis.Client

	mu      sync.RWMutex
	entries []Entry
	byID    map[string]Entry
}

func NewRedis(rdb *redis.Client) *Redis {
	return &Redis{rdb: rdb, byID: make(map[string]Entry)}
}

// Refresh reloads the snapshot once.
func (d *Redis) Refresh(ctx context.Context) error {
	values, err := d.rdb.HGetAll(ctx, usersKey).Result()
	if err != nil {
		return err
	}

	entries := make([]Entry, 0, len(values))
	byID := make(map[string]Entry, len(values))
	for userID, raw := range values {
		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			logger.Warn("skipping malformed directory record", "user", userID, "error", err)
			continue
		}
		if e.UserID == "" {
			e.UserID = userID
		}
		entries = append(entries, e)
		byID[e.UserID] = e
	}

	d.mu.Lock()
	d.entries = entries
	d.byID = byID
	d.mu.Unlock()
	return nil
}

// StartRefresher refreshes immediately and then every interval until
// ctx is cancelled.
func (d *Redis) StartRefresher(ctx context.Context, interval time.Duration) {
	if err := d.Refresh(ctx); err != nil {
		logger.Warn("initial directory refresh failed", "error", err)
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := d.Refresh(ctx); err != nil {
					logger.Warn("directory refresh failed", "error", err)
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (d *Redis) Search(ctx context.Context, q string, limit int) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return search(d.entries, q, limit), nil
}

func (d *Redis) Lookup(ctx context.Context, userID string) (Entry, bool, error) {
	if err := ctx.Err(); err != nil {
		return Entry{}, false, err
	}
	d.mu.RLock()
	e, ok := d.byID[userID]
	d.mu.RUnlock()
	if ok {
		return e, true, nil
	}

	// Miss: the snapshot may simply be stale, go to Redis directly.
	raw, err := d.rdb.HGet(ctx, usersKey, userID).Result()
	if err == redis.Nil {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	if err := json.Unmarshal([]byte(raw), &e); err != nil {
		return Entry{}, false, err
	}
	if e.UserID == "" {
		e.UserID = userID
	}
	return e, true, nil
}
