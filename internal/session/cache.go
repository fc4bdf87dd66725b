// Package session caches the signed-in member's profile and a roster
// snapshot in Redis so read views avoid a full directory scan per request.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"membership/internal/expenses"
	"membership/internal/ledger"
	"membership/internal/members"
	"membership/internal/metrics"
)

// SchemaVersion is bumped whenever the cached layout changes; entries written
// under another version are treated as misses.
const SchemaVersion = 1

const (
	snapshotKey   = "membership:snapshot"
	profilePrefix = "membership:profile:"
)

// Snapshot is the cached roster plus the shared expense ledger.
type Snapshot struct {
	SchemaVersion int              `json:"schema_version"`
	FetchedAt     time.Time        `json:"fetched_at"`
	Members       []members.Member `json:"members"`
	Expenses      ledger.Expenses  `json:"expenses"`
}

type cachedProfile struct {
	SchemaVersion int            `json:"schema_version"`
	FetchedAt     time.Time      `json:"fetched_at"`
	Member        members.Member `json:"member"`
}

// Directory loads members from the source of truth.
type Directory interface {
	List(ctx context.Context) ([]members.Member, error)
	Get(ctx context.Context, roll int) (members.Member, error)
}

// ExpenseSource loads the shared expense ledger.
type ExpenseSource interface {
	Ledger(ctx context.Context) (expenses.Document, error)
}

// Cache is a read-through Redis cache with TTL expiry and explicit
// invalidation.
type Cache struct {
	client   *redis.Client
	members  Directory
	expenses ExpenseSource
	ttl      time.Duration
	metrics  *metrics.Metrics
	log      *zap.Logger
	now      func() time.Time
}

// New creates a cache. A non-positive ttl defaults to five minutes.
func New(client *redis.Client, dir Directory, ex ExpenseSource, ttl time.Duration, mt *metrics.Metrics, log *zap.Logger) *Cache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Cache{client: client, members: dir, expenses: ex, ttl: ttl, metrics: mt, log: log.Named("session"), now: time.Now}
}

// Snapshot returns the cached roster, loading it on a miss. Redis failures
// degrade to a direct load.
func (c *Cache) Snapshot(ctx context.Context) (Snapshot, error) {
	var s Snapshot
	hit, err := c.get(ctx, snapshotKey, &s)
	if err != nil {
		c.log.Warn("snapshot read failed", zap.Error(err))
	}
	if hit && s.SchemaVersion == SchemaVersion {
		c.metrics.CacheLookup("snapshot", true)
		return s, nil
	}
	c.metrics.CacheLookup("snapshot", false)
	return c.Refresh(ctx)
}

// Refresh reloads the snapshot from the store and caches it.
func (c *Cache) Refresh(ctx context.Context) (Snapshot, error) {
	s := Snapshot{SchemaVersion: SchemaVersion, FetchedAt: c.now().UTC()}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		list, err := c.members.List(gctx)
		s.Members = list
		return err
	})
	g.Go(func() error {
		doc, err := c.expenses.Ledger(gctx)
		s.Expenses = doc.Entries
		return err
	})
	if err := g.Wait(); err != nil {
		return Snapshot{}, err
	}
	if err := c.set(ctx, snapshotKey, s); err != nil {
		c.log.Warn("snapshot write failed", zap.Error(err))
	}
	return s, nil
}

// Invalidate drops the snapshot.
func (c *Cache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, snapshotKey).Err()
}

// Profile returns roll's cached profile, loading it on a miss.
func (c *Cache) Profile(ctx context.Context, roll int) (members.Member, error) {
	var p cachedProfile
	hit, err := c.get(ctx, profileKey(roll), &p)
	if err != nil {
		c.log.Warn("profile read failed", zap.Int("roll_no", roll), zap.Error(err))
	}
	if hit && p.SchemaVersion == SchemaVersion {
		c.metrics.CacheLookup("profile", true)
		return p.Member, nil
	}
	c.metrics.CacheLookup("profile", false)
	m, err := c.members.Get(ctx, roll)
	if err != nil {
		return members.Member{}, err
	}
	c.PutProfile(ctx, m)
	return m, nil
}

// PutProfile caches m.
func (c *Cache) PutProfile(ctx context.Context, m members.Member) {
	p := cachedProfile{SchemaVersion: SchemaVersion, FetchedAt: c.now().UTC(), Member: m}
	if err := c.set(ctx, profileKey(m.RollNo), p); err != nil {
		c.log.Warn("profile write failed", zap.Int("roll_no", m.RollNo), zap.Error(err))
	}
}

// DropProfile removes roll's cached profile.
func (c *Cache) DropProfile(ctx context.Context, roll int) error {
	return c.client.Del(ctx, profileKey(roll)).Err()
}

func profileKey(roll int) string { return profilePrefix + strconv.Itoa(roll) }

func (c *Cache) get(ctx context.Context, key string, dst any) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, err
	}
	return true, nil
}

func (c *Cache) set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}
