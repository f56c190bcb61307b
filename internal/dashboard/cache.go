package dashboard

import (
	"context"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache serves recently computed snapshots for identical parameter sets
// so a busy scrutiny room does not recompute the same aggregation on
// every poll.  It is keyed by the full parameter set, including the
// cursor, and owned by the dashboard component; a nil Redis client
// disables caching entirely.
type Cache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewCache returns a snapshot cache.  rdb may be nil, in which case
// Get always misses and Set is a no-op.
func NewCache(rdb *redis.Client, ttl time.Duration) *Cache {
	return &Cache{rdb: rdb, ttl: ttl}
}

// key derives a stable Redis key from the parameter set.  The raw
// parameter string is hashed so threshold floats never leak formatting
// quirks into key space.
func (c *Cache) key(p Params) string {
	raw := fmt.Sprintf("p%d:w%d:b%.4f:i%d:s%d:l%d:c%d:r%t",
		p.ProcessID, p.WindowMinutes, p.BlankRateThreshold,
		p.InactivityMinutes, p.SpikeThreshold, p.SeriesLimit,
		p.Since, p.IncludeRanking)
	sum := sha1.Sum([]byte(raw))
	return fmt.Sprintf("dashboard:%x", sum[:])
}

// Get returns the cached snapshot for the parameter set, or false on a
// miss.  Redis errors are treated as misses so the dashboard keeps
// working when the cache is down.
func (c *Cache) Get(ctx context.Context, p Params) (Snapshot, bool) {
	if c == nil || c.rdb == nil || c.ttl <= 0 {
		return Snapshot{}, false
	}
	raw, err := c.rdb.Get(ctx, c.key(p)).Bytes()
	if err != nil {
		return Snapshot{}, false
	}
	var s Snapshot
	if err := json.Unmarshal(raw, &s); err != nil {
		return Snapshot{}, false
	}
	return s, true
}

// Set stores a snapshot under the parameter set with the configured
// TTL.  Failures are ignored; caching is best effort.
func (c *Cache) Set(ctx context.Context, p Params, s Snapshot) {
	if c == nil || c.rdb == nil || c.ttl <= 0 {
		return
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	_ = c.rdb.Set(ctx, c.key(p), raw, c.ttl).Err()
}
