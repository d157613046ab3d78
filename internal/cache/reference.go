// Package cache holds the short-lived reference data shared by every screen:
// customers, users (overall and per role) and groups.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LunarVagabond/phasepoint-frontend/internal/metrics"
	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
	"github.com/LunarVagabond/phasepoint-frontend/internal/redis"
)

// Lookup results reported to metrics.
const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultExpired = "expired"
	resultError   = "error"
	resultOK      = "ok"
)

// Fetcher loads reference data from the backend.
type Fetcher interface {
	GetCustomers(ctx context.Context) ([]models.CustomerSummary, error)
	GetUsers(ctx context.Context) ([]models.UserSummary, error)
	GetUsersByType(ctx context.Context, role models.Role) ([]models.UserSummary, error)
	GetGroups(ctx context.Context) ([]models.GroupSummary, error)
}

// TTLs is the freshness window of each kind. Per-role user lists share the
// users window.
type TTLs struct {
	Customers time.Duration
	Users     time.Duration
	Groups    time.Duration
}

// DefaultTTLs matches the backend's expectations for how stale lists may get.
var DefaultTTLs = TTLs{
	Customers: 2 * time.Minute,
	Users:     2 * time.Minute,
	Groups:    10 * time.Minute,
}

// Option configures a ReferenceCache.
type Option func(*ReferenceCache)

// WithTTLs overrides the default freshness windows. Zero fields keep their default.
func WithTTLs(ttls TTLs) Option {
	return func(c *ReferenceCache) {
		if ttls.Customers > 0 {
			c.ttls.Customers = ttls.Customers
		}
		if ttls.Users > 0 {
			c.ttls.Users = ttls.Users
		}
		if ttls.Groups > 0 {
			c.ttls.Groups = ttls.Groups
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *ReferenceCache) { c.now = now }
}

// WithMetrics records lookups and fetches.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *ReferenceCache) { c.metrics = m }
}

// ReferenceCache serves reference lists from a Store while they are fresh and
// loads them through a Fetcher otherwise. There is no background refresh.
type ReferenceCache struct {
	store   redis.Store
	fetcher Fetcher
	ttls    TTLs
	now     func() time.Time
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewReferenceCache creates a cache over store. fetcher may be nil when the
// cache is only read and written directly.
func NewReferenceCache(store redis.Store, fetcher Fetcher, logger *logrus.Logger, opts ...Option) *ReferenceCache {
	c := &ReferenceCache{
		store:   store,
		fetcher: fetcher,
		ttls:    DefaultTTLs,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetFetcher attaches the backend loader after construction.
func (c *ReferenceCache) SetFetcher(fetcher Fetcher) {
	c.fetcher = fetcher
}

// TTLs returns the freshness windows in effect.
func (c *ReferenceCache) TTLs() TTLs {
	return c.ttls
}

var (
	customersKey = redis.Key{Kind: redis.KindCustomers}
	usersKey     = redis.Key{Kind: redis.KindUsers}
	groupsKey    = redis.Key{Kind: redis.KindGroups}
)

func roleKey(role models.Role) redis.Key {
	return redis.Key{Kind: redis.KindUsersByRole, Variant: string(role)}
}

// Customers returns the cached customer list if it is fresh.
func (c *ReferenceCache) Customers(ctx context.Context) ([]models.CustomerSummary, bool) {
	return get[models.CustomerSummary](ctx, c, customersKey, c.ttls.Customers)
}

// SetCustomers stores data as the customer list.
func (c *ReferenceCache) SetCustomers(ctx context.Context, data []models.CustomerSummary) {
	set(ctx, c, customersKey, c.ttls.Customers, data)
}

// InvalidateCustomers drops the customer list.
func (c *ReferenceCache) InvalidateCustomers(ctx context.Context) {
	c.invalidate(ctx, redis.KindCustomers)
}

// FetchCustomers returns the cached list unless force is set or nothing fresh
// is stored, in which case it loads the list once and stores it.
func (c *ReferenceCache) FetchCustomers(ctx context.Context, force bool) ([]models.CustomerSummary, error) {
	return fetchOrGet(ctx, c, customersKey, c.ttls.Customers, force, func(ctx context.Context) ([]models.CustomerSummary, error) {
		return c.fetcher.GetCustomers(ctx)
	})
}

// Users returns the cached user list if it is fresh.
func (c *ReferenceCache) Users(ctx context.Context) ([]models.UserSummary, bool) {
	return get[models.UserSummary](ctx, c, usersKey, c.ttls.Users)
}

// SetUsers stores data as the user list.
func (c *ReferenceCache) SetUsers(ctx context.Context, data []models.UserSummary) {
	set(ctx, c, usersKey, c.ttls.Users, data)
}

// InvalidateUsers drops the user list and every per-role list together.
func (c *ReferenceCache) InvalidateUsers(ctx context.Context) {
	c.invalidate(ctx, redis.KindUsers, redis.KindUsersByRole)
}

// FetchUsers is FetchCustomers for the user list.
func (c *ReferenceCache) FetchUsers(ctx context.Context, force bool) ([]models.UserSummary, error) {
	return fetchOrGet(ctx, c, usersKey, c.ttls.Users, force, func(ctx context.Context) ([]models.UserSummary, error) {
		return c.fetcher.GetUsers(ctx)
	})
}

// UsersByRole returns the cached user list for role if it is fresh.
func (c *ReferenceCache) UsersByRole(ctx context.Context, role models.Role) ([]models.UserSummary, bool) {
	return get[models.UserSummary](ctx, c, roleKey(role), c.ttls.Users)
}

// SetUsersByRole stores data as the user list for role.
func (c *ReferenceCache) SetUsersByRole(ctx context.Context, role models.Role, data []models.UserSummary) {
	set(ctx, c, roleKey(role), c.ttls.Users, data)
}

// FetchUsersByRole is FetchCustomers for the user list of one role.
func (c *ReferenceCache) FetchUsersByRole(ctx context.Context, role models.Role, force bool) ([]models.UserSummary, error) {
	return fetchOrGet(ctx, c, roleKey(role), c.ttls.Users, force, func(ctx context.Context) ([]models.UserSummary, error) {
		return c.fetcher.GetUsersByType(ctx, role)
	})
}

// Groups returns the cached group list if it is fresh.
func (c *ReferenceCache) Groups(ctx context.Context) ([]models.GroupSummary, bool) {
	return get[models.GroupSummary](ctx, c, groupsKey, c.ttls.Groups)
}

// SetGroups stores data as the group list.
func (c *ReferenceCache) SetGroups(ctx context.Context, data []models.GroupSummary) {
	set(ctx, c, groupsKey, c.ttls.Groups, data)
}

// InvalidateGroups drops the group list.
func (c *ReferenceCache) InvalidateGroups(ctx context.Context) {
	c.invalidate(ctx, redis.KindGroups)
}

// FetchGroups is FetchCustomers for the group list.
func (c *ReferenceCache) FetchGroups(ctx context.Context, force bool) ([]models.GroupSummary, error) {
	return fetchOrGet(ctx, c, groupsKey, c.ttls.Groups, force, func(ctx context.Context) ([]models.GroupSummary, error) {
		return c.fetcher.GetGroups(ctx)
	})
}

// ClearAll drops every kind. Used on logout.
func (c *ReferenceCache) ClearAll(ctx context.Context) {
	c.invalidate(ctx, redis.KindCustomers, redis.KindUsers, redis.KindUsersByRole, redis.KindGroups)
}

func (c *ReferenceCache) invalidate(ctx context.Context, kinds ...redis.Kind) {
	if err := c.store.DeleteKinds(ctx, kinds...); err != nil {
		c.logger.WithError(err).WithField("kinds", kinds).Warn("Failed to invalidate reference data")
		return
	}
	c.logger.WithField("kinds", kinds).Debug("Reference data invalidated")
}

func get[T any](ctx context.Context, c *ReferenceCache, key redis.Key, ttl time.Duration) ([]T, bool) {
	kind := string(key.Kind)

	entry, found, err := c.store.Get(ctx, key)
	if err != nil {
		c.logger.WithError(err).WithField("key", key.String()).Warn("Reference store read failed, treating as miss")
		c.metrics.CacheLookup(kind, resultError)
		return nil, false
	}
	if !found {
		c.metrics.CacheLookup(kind, resultMiss)
		return nil, false
	}
	if c.now().Sub(entry.StoredAt) >= ttl {
		c.metrics.CacheLookup(kind, resultExpired)
		return nil, false
	}

	var data []T
	if err := json.Unmarshal(entry.Payload, &data); err != nil {
		c.logger.WithError(err).WithField("key", key.String()).Warn("Reference entry unreadable, treating as miss")
		c.metrics.CacheLookup(kind, resultError)
		return nil, false
	}

	c.metrics.CacheLookup(kind, resultHit)
	return data, true
}

func set[T any](ctx context.Context, c *ReferenceCache, key redis.Key, ttl time.Duration, data []T) {
	payload, err := json.Marshal(data)
	if err != nil {
		c.logger.WithError(err).WithField("key", key.String()).Warn("Failed to encode reference data")
		return
	}

	entry := redis.Entry{Payload: payload, StoredAt: c.now()}
	if err := c.store.Set(ctx, key, entry, ttl); err != nil {
		c.logger.WithError(err).WithField("key", key.String()).Warn("Failed to store reference data")
	}
}

func fetchOrGet[T any](
	ctx context.Context,
	c *ReferenceCache,
	key redis.Key,
	ttl time.Duration,
	force bool,
	fetch func(context.Context) ([]T, error),
) ([]T, error) {
	if !force {
		if data, ok := get[T](ctx, c, key, ttl); ok {
			return data, nil
		}
	}

	if c.fetcher == nil {
		return nil, fmt.Errorf("no fetcher configured for %s", key)
	}

	kind := string(key.Kind)
	data, err := fetch(ctx)
	if err != nil {
		c.metrics.CacheFetch(kind, resultError)
		return nil, fmt.Errorf("failed to fetch %s: %w", key, err)
	}

	c.metrics.CacheFetch(kind, resultOK)
	set(ctx, c, key, ttl, data)

	c.logger.WithFields(logrus.Fields{
		"key":   key.String(),
		"count": len(data),
		"force": force,
	}).Debug("Reference data fetched")

	return data, nil
}
