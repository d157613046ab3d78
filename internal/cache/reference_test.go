package cache_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
	goredis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LunarVagabond/phasepoint-frontend/internal/cache"
	"github.com/LunarVagabond/phasepoint-frontend/internal/metrics"
	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
	"github.com/LunarVagabond/phasepoint-frontend/internal/redis"
)

type fakeFetcher struct {
	mu        sync.Mutex
	calls     map[string]int
	customers []models.CustomerSummary
	users     []models.UserSummary
	byRole    map[models.Role][]models.UserSummary
	groups    []models.GroupSummary
	err       error
}

func newFakeFetcher() *fakeFetcher {
	return &fakeFetcher{
		calls:     map[string]int{},
		customers: []models.CustomerSummary{{ID: "c1", Name: "Acme"}, {ID: "c2", Name: "Globex"}},
		users:     []models.UserSummary{{ID: "u1", Username: "alice"}},
		byRole: map[models.Role][]models.UserSummary{
			models.RoleEmployee: {{ID: "u1", Username: "alice", UserType: models.RoleEmployee}},
			models.RoleCustomer: {{ID: "u2", Username: "bob", UserType: models.RoleCustomer}},
		},
		groups: []models.GroupSummary{{ID: 1, Name: "operations"}},
	}
}

func (f *fakeFetcher) record(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls[name]++
	return f.err
}

func (f *fakeFetcher) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeFetcher) GetCustomers(context.Context) ([]models.CustomerSummary, error) {
	if err := f.record("customers"); err != nil {
		return nil, err
	}
	return f.customers, nil
}

func (f *fakeFetcher) GetUsers(context.Context) ([]models.UserSummary, error) {
	if err := f.record("users"); err != nil {
		return nil, err
	}
	return f.users, nil
}

func (f *fakeFetcher) GetUsersByType(_ context.Context, role models.Role) ([]models.UserSummary, error) {
	if err := f.record("users:" + string(role)); err != nil {
		return nil, err
	}
	return f.byRole[role], nil
}

func (f *fakeFetcher) GetGroups(context.Context) ([]models.GroupSummary, error) {
	if err := f.record("groups"); err != nil {
		return nil, err
	}
	return f.groups, nil
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func newCache(t *testing.T, store redis.Store) (*cache.ReferenceCache, *fakeFetcher, *clock, *metrics.Metrics) {
	t.Helper()
	f := newFakeFetcher()
	clk := &clock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	m := metrics.NewMetrics(nil)
	if store == nil {
		mem := redis.NewMemoryStore(quietLogger())
		t.Cleanup(func() { _ = mem.Close() })
		store = mem
	}
	c := cache.NewReferenceCache(store, f, quietLogger(), cache.WithClock(clk.now), cache.WithMetrics(m))
	return c, f, clk, m
}

func TestReferenceCache_FreshnessWindow(t *testing.T) {
	ctx := context.Background()
	epsilon := 500 * time.Microsecond

	tests := []struct {
		name string
		ttl  time.Duration
		set  func(c *cache.ReferenceCache)
		get  func(c *cache.ReferenceCache) bool
	}{
		{
			name: "customers",
			ttl:  2 * time.Minute,
			set:  func(c *cache.ReferenceCache) { c.SetCustomers(ctx, []models.CustomerSummary{{ID: "1"}}) },
			get: func(c *cache.ReferenceCache) bool {
				_, ok := c.Customers(ctx)
				return ok
			},
		},
		{
			name: "users",
			ttl:  2 * time.Minute,
			set:  func(c *cache.ReferenceCache) { c.SetUsers(ctx, []models.UserSummary{{ID: "1"}}) },
			get: func(c *cache.ReferenceCache) bool {
				_, ok := c.Users(ctx)
				return ok
			},
		},
		{
			name: "users by role",
			ttl:  2 * time.Minute,
			set: func(c *cache.ReferenceCache) {
				c.SetUsersByRole(ctx, models.RoleEmployee, []models.UserSummary{{ID: "1"}})
			},
			get: func(c *cache.ReferenceCache) bool {
				_, ok := c.UsersByRole(ctx, models.RoleEmployee)
				return ok
			},
		},
		{
			name: "groups",
			ttl:  10 * time.Minute,
			set:  func(c *cache.ReferenceCache) { c.SetGroups(ctx, []models.GroupSummary{{ID: 1}}) },
			get: func(c *cache.ReferenceCache) bool {
				_, ok := c.Groups(ctx)
				return ok
			},
		},
	}

	backends := map[string]func(t *testing.T) redis.Store{
		"memory": func(*testing.T) redis.Store { return nil },
		"redis":  newMiniredisStore,
	}

	for backend, newStore := range backends {
		for _, tt := range tests {
			t.Run(backend+"/"+tt.name, func(t *testing.T) {
				c, _, clk, _ := newCache(t, newStore(t))
				// A capture time with a sub-millisecond part must survive the round trip.
				clk.advance(900 * time.Microsecond)

				assert.False(t, tt.get(c), "empty cache")

				tt.set(c)
				assert.True(t, tt.get(c), "just stored")

				clk.advance(tt.ttl - epsilon)
				assert.True(t, tt.get(c), "inside window")

				clk.advance(2 * epsilon)
				assert.False(t, tt.get(c), "past window")
			})
		}
	}
}

func newMiniredisStore(t *testing.T) redis.Store {
	t.Helper()
	mr := miniredis.RunT(t)
	store := redis.NewClientFromRedis(goredis.NewClient(&goredis.Options{Addr: mr.Addr()}), "refcache", quietLogger())
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestReferenceCache_SetReplacesAndPreservesOrder(t *testing.T) {
	ctx := context.Background()
	c, _, _, _ := newCache(t, nil)

	c.SetCustomers(ctx, []models.CustomerSummary{{ID: "old"}})
	c.SetCustomers(ctx, []models.CustomerSummary{{ID: "b"}, {ID: "a"}, {ID: "c"}})

	got, ok := c.Customers(ctx)
	require.True(t, ok)
	require.Len(t, got, 3)
	assert.Equal(t, []string{"b", "a", "c"}, []string{got[0].ID, got[1].ID, got[2].ID})
}

func TestReferenceCache_InvalidateUsersClearsRoleLists(t *testing.T) {
	ctx := context.Background()
	c, _, _, _ := newCache(t, nil)

	c.SetUsers(ctx, []models.UserSummary{{ID: "1"}})
	c.SetUsersByRole(ctx, models.RoleEmployee, []models.UserSummary{{ID: "1"}})
	c.SetUsersByRole(ctx, models.RoleCustomer, []models.UserSummary{{ID: "2"}})
	c.SetGroups(ctx, []models.GroupSummary{{ID: 1}})

	c.InvalidateUsers(ctx)

	_, ok := c.Users(ctx)
	assert.False(t, ok)
	_, ok = c.UsersByRole(ctx, models.RoleEmployee)
	assert.False(t, ok)
	_, ok = c.UsersByRole(ctx, models.RoleCustomer)
	assert.False(t, ok)
	_, ok = c.Groups(ctx)
	assert.True(t, ok, "groups are untouched")
}

func TestReferenceCache_InvalidateSingleKinds(t *testing.T) {
	ctx := context.Background()
	c, _, _, _ := newCache(t, nil)

	c.SetCustomers(ctx, []models.CustomerSummary{{ID: "1"}})
	c.SetGroups(ctx, []models.GroupSummary{{ID: 1}})
	c.SetUsers(ctx, []models.UserSummary{{ID: "1"}})

	c.InvalidateCustomers(ctx)
	_, ok := c.Customers(ctx)
	assert.False(t, ok)
	_, ok = c.Users(ctx)
	assert.True(t, ok)

	c.InvalidateGroups(ctx)
	_, ok = c.Groups(ctx)
	assert.False(t, ok)

	c.ClearAll(ctx)
	_, ok = c.Users(ctx)
	assert.False(t, ok)
}

func TestReferenceCache_FetchOrGet(t *testing.T) {
	ctx := context.Background()
	c, f, clk, m := newCache(t, nil)

	got, err := c.FetchCustomers(ctx, false)
	require.NoError(t, err)
	assert.Len(t, got, 2)
	assert.Equal(t, 1, f.count("customers"))

	_, err = c.FetchCustomers(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 1, f.count("customers"), "served from cache")

	_, err = c.FetchCustomers(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, 2, f.count("customers"), "force always fetches")

	clk.advance(2 * time.Minute)
	_, err = c.FetchCustomers(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 3, f.count("customers"), "expired entry is refetched")

	assert.InDelta(t, 3, testutil.ToFloat64(m.CacheFetches.WithLabelValues("customers", "ok")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheLookups.WithLabelValues("customers", "hit")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.CacheLookups.WithLabelValues("customers", "expired")), 0)
}

func TestReferenceCache_FetchPerKind(t *testing.T) {
	ctx := context.Background()
	c, f, _, _ := newCache(t, nil)

	users, err := c.FetchUsers(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "alice", users[0].Username)

	employees, err := c.FetchUsersByRole(ctx, models.RoleEmployee, false)
	require.NoError(t, err)
	customers, err := c.FetchUsersByRole(ctx, models.RoleCustomer, false)
	require.NoError(t, err)
	assert.Equal(t, "alice", employees[0].Username)
	assert.Equal(t, "bob", customers[0].Username, "roles are cached separately")

	groups, err := c.FetchGroups(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, "operations", groups[0].Name)

	_, _ = c.FetchUsersByRole(ctx, models.RoleEmployee, false)
	_, _ = c.FetchGroups(ctx, false)
	assert.Equal(t, 1, f.count("users:EMPLOYEE"))
	assert.Equal(t, 1, f.count("users:CUSTOMER"))
	assert.Equal(t, 1, f.count("groups"))
}

func TestReferenceCache_FetchErrorLeavesCacheUntouched(t *testing.T) {
	ctx := context.Background()
	c, f, _, _ := newCache(t, nil)

	c.SetGroups(ctx, []models.GroupSummary{{ID: 7, Name: "before"}})
	f.err = &models.APIError{StatusCode: 500, Message: "boom"}

	_, err := c.FetchGroups(ctx, true)
	require.Error(t, err)

	var apiErr *models.APIError
	assert.True(t, errors.As(err, &apiErr))

	got, ok := c.Groups(ctx)
	require.True(t, ok)
	assert.Equal(t, "before", got[0].Name)

	_, err = c.FetchCustomers(ctx, false)
	assert.Error(t, err)
	_, ok = c.Customers(ctx)
	assert.False(t, ok, "nothing stored after a failed cold fetch")
}

func TestReferenceCache_CustomTTLs(t *testing.T) {
	ctx := context.Background()
	f := newFakeFetcher()
	clk := &clock{t: time.Unix(0, 0)}
	mem := redis.NewMemoryStore(quietLogger())
	defer mem.Close()

	c := cache.NewReferenceCache(mem, f, quietLogger(),
		cache.WithClock(clk.now),
		cache.WithTTLs(cache.TTLs{Groups: 30 * time.Second}),
	)
	assert.Equal(t, 2*time.Minute, c.TTLs().Users)
	assert.Equal(t, 30*time.Second, c.TTLs().Groups)

	c.SetGroups(ctx, []models.GroupSummary{{ID: 1}})
	clk.advance(30 * time.Second)
	_, ok := c.Groups(ctx)
	assert.False(t, ok)
}

func TestReferenceCache_NoFetcher(t *testing.T) {
	mem := redis.NewMemoryStore(quietLogger())
	defer mem.Close()
	c := cache.NewReferenceCache(mem, nil, quietLogger())

	_, err := c.FetchGroups(context.Background(), false)
	assert.Error(t, err)

	c.SetFetcher(newFakeFetcher())
	_, err = c.FetchGroups(context.Background(), false)
	assert.NoError(t, err)
}

type brokenStore struct{ redis.Store }

func (brokenStore) Get(context.Context, redis.Key) (redis.Entry, bool, error) {
	return redis.Entry{}, false, errors.New("connection refused")
}

func (brokenStore) Set(context.Context, redis.Key, redis.Entry, time.Duration) error {
	return errors.New("connection refused")
}

func (brokenStore) DeleteKinds(context.Context, ...redis.Kind) error {
	return errors.New("connection refused")
}

func TestReferenceCache_StoreFailuresAreMisses(t *testing.T) {
	ctx := context.Background()
	c, f, _, m := newCache(t, brokenStore{})

	_, ok := c.Customers(ctx)
	assert.False(t, ok)

	got, err := c.FetchCustomers(ctx, false)
	require.NoError(t, err, "store failures never fail a read")
	assert.Len(t, got, 2)

	_, err = c.FetchCustomers(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, f.count("customers"))

	c.InvalidateUsers(ctx)
	assert.InDelta(t, 3, testutil.ToFloat64(m.CacheLookups.WithLabelValues("customers", "error")), 0)
}

func TestReferenceCache_SharedRedisStore(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)

	newShared := func() *cache.ReferenceCache {
		rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
		store := redis.NewClientFromRedis(rdb, "refcache", quietLogger())
		t.Cleanup(func() { _ = store.Close() })
		return cache.NewReferenceCache(store, newFakeFetcher(), quietLogger())
	}

	first, second := newShared(), newShared()

	first.SetUsersByRole(ctx, models.RoleEmployee, []models.UserSummary{{ID: "1"}})
	first.SetUsers(ctx, []models.UserSummary{{ID: "1"}})

	_, ok := second.UsersByRole(ctx, models.RoleEmployee)
	assert.True(t, ok, "visible to another process")

	second.InvalidateUsers(ctx)
	_, ok = first.UsersByRole(ctx, models.RoleEmployee)
	assert.False(t, ok)
	_, ok = first.Users(ctx)
	assert.False(t, ok)
	assert.False(t, mr.Exists("refcache:users"))
	assert.False(t, mr.Exists("refcache:users_by_role"))
}
