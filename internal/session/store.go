// Package session caches the identity of the logged-in user.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/LunarVagabond/phasepoint-frontend/internal/metrics"
	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
)

// DefaultTTL is how long a fetched identity is trusted before GET /me/ is called again.
const DefaultTTL = 5 * time.Minute

// IdentityFetcher loads the current identity from the backend.
type IdentityFetcher interface {
	GetMe(ctx context.Context) (*models.Session, error)
}

// Option configures a Store.
type Option func(*Store)

// WithTTL overrides DefaultTTL.
func WithTTL(ttl time.Duration) Option {
	return func(s *Store) {
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithMetrics records session lookups.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Store) { s.metrics = m }
}

// Store holds at most one session record. Every record handed out is a copy.
//
// Thread Safety: All methods are safe for concurrent use. The lock is never
// held while the identity is being fetched.
type Store struct {
	fetcher IdentityFetcher
	ttl     time.Duration
	now     func() time.Time
	logger  *logrus.Logger
	metrics *metrics.Metrics

	mu         sync.RWMutex
	current    *models.Session
	generation uint64
}

// NewStore creates an empty session store.
func NewStore(fetcher IdentityFetcher, logger *logrus.Logger, opts ...Option) *Store {
	s := &Store{
		fetcher: fetcher,
		ttl:     DefaultTTL,
		now:     time.Now,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetFetcher attaches the identity loader after construction.
func (s *Store) SetFetcher(fetcher IdentityFetcher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetcher = fetcher
}

// FetchSession returns the cached record when it is fresh and force is false.
// Otherwise it calls the backend: success replaces the record, any failure
// clears it and reports no session.
func (s *Store) FetchSession(ctx context.Context, force bool) (*models.Session, bool) {
	s.mu.RLock()
	if !force && s.freshLocked() {
		cached := s.current.Clone()
		s.mu.RUnlock()
		s.metrics.SessionFetch("cached")
		return cached, true
	}
	fetcher := s.fetcher
	generation := s.generation
	s.mu.RUnlock()

	if fetcher == nil {
		s.Clear()
		s.metrics.SessionFetch("failed")
		return nil, false
	}

	fetched, err := fetcher.GetMe(ctx)
	if err != nil || fetched == nil {
		switch {
		case errors.Is(err, models.ErrNotAuthenticated):
			s.logger.WithError(err).Debug("No active session")
		case err != nil:
			s.logger.WithError(err).Warn("Identity fetch failed, clearing session")
		}
		s.Clear()
		s.metrics.SessionFetch("failed")
		return nil, false
	}

	record := fetched.Clone()
	record.CapturedAt = s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	// A Clear that happened while the request was in flight wins.
	if s.generation != generation {
		s.metrics.SessionFetch("failed")
		return nil, false
	}
	s.current = record
	s.metrics.SessionFetch("fetched")

	s.logger.WithFields(logrus.Fields{
		"user_id":   record.ID,
		"user_type": record.UserType,
	}).Debug("Session refreshed")

	return record.Clone(), true
}

// Clear forgets the current record. Safe to call when nothing is stored.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = nil
	s.generation++
}

// Patch merges p into the current record. It does nothing without one and
// keeps the record's capture time.
func (s *Store) Patch(p models.SessionPatch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return
	}
	p.Apply(s.current)
}

// Current returns a copy of the stored record without fetching, or nil.
func (s *Store) Current() *models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.Clone()
}

// IsAuthenticated reports whether a record is stored.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current != nil
}

// IsEmployee reports whether the stored record is an employee.
func (s *Store) IsEmployee() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.IsEmployee()
}

// IsCustomer reports whether the stored record is a customer user.
func (s *Store) IsCustomer() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.IsCustomer()
}

// NeedsPolicyAcceptance reports whether the stored user must acknowledge the
// current policy bundle. False without a record.
func (s *Store) NeedsPolicyAcceptance() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current.NeedsPolicyAcceptance()
}

func (s *Store) freshLocked() bool {
	return s.current != nil && s.now().Sub(s.current.CapturedAt) < s.ttl
}
