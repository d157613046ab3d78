// Package guard decides whether a navigation may proceed, and where to send
// the user instead when it may not.
package guard

import (
	"context"
	"errors"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/LunarVagabond/phasepoint-frontend/internal/metrics"
	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
)

// DefaultMaxRedirects bounds how many redirects Navigate follows.
const DefaultMaxRedirects = 5

// ErrRedirectLoop is returned by Navigate when redirects do not settle.
var ErrRedirectLoop = errors.New("navigation did not settle within the redirect limit")

// Reason explains a decision.
type Reason string

const (
	ReasonAllowed              Reason = "allowed"
	ReasonKioskOverride        Reason = "kiosk_override"
	ReasonKioskRoute           Reason = "kiosk_route"
	ReasonAlias                Reason = "alias"
	ReasonLoginRequired        Reason = "login_required"
	ReasonAlreadyAuthenticated Reason = "already_authenticated"
	ReasonEmployeeOnly         Reason = "employee_only"
	ReasonEmployeeArea         Reason = "employee_area"
	ReasonCustomerOnly         Reason = "customer_only"
	ReasonPolicyAcceptance     Reason = "policy_acceptance"
	ReasonPermissionDenied     Reason = "permission_denied"
)

// Decision is the single outcome of one navigation attempt.
type Decision struct {
	Allow  bool
	Target string
	Query  url.Values
	Reason Reason
}

// Location renders the redirect target with its query string.
func (d Decision) Location() string {
	if len(d.Query) == 0 {
		return d.Target
	}
	return d.Target + "?" + d.Query.Encode()
}

func allow(reason Reason) Decision {
	return Decision{Allow: true, Reason: reason}
}

func redirect(target string, reason Reason, query url.Values) Decision {
	return Decision{Target: target, Query: query, Reason: reason}
}

func withRedirect(path string) url.Values {
	return url.Values{QueryRedirect: []string{path}}
}

// loginEntries are locations an authenticated user is bounced away from.
var loginEntries = map[string]bool{
	PathLogin:          true,
	PathCustomerSignup: true,
	PathCustomerLogin:  true,
	PathEmployeeLogin:  true,
}

// policyReadRoutes stay reachable while policies are awaiting acceptance.
var policyReadRoutes = map[string]bool{
	RoutePolicies:     true,
	RoutePolicyDetail: true,
	RouteAllPolicies:  true,
}

// Evaluate decides a navigation to path, described by route, for sess (nil
// when nobody is logged in). kioskID is the configured device id, if any.
// It has no side effects.
func Evaluate(route Route, sess *models.Session, path, kioskID string) Decision {
	path = NormalizePath(path)

	if d, ok := kioskDecision(route, path, kioskID); ok {
		return d
	}

	if sess == nil {
		if route.RequiresAuth || route.RequiresPolicyAccept {
			return redirect(PathLogin, ReasonLoginRequired, withRedirect(path))
		}
		return allow(ReasonAllowed)
	}

	if isLoginEntry(route, path) {
		switch sess.UserType {
		case models.RoleCustomer:
			return redirect(PathCustomerHome, ReasonAlreadyAuthenticated, nil)
		case models.RoleEmployee:
			return redirect(PathEmployeeHome, ReasonAlreadyAuthenticated, nil)
		}
	}

	if route.EmployeeOnly && !sess.IsEmployee() {
		return redirect(PathCustomerHome, ReasonEmployeeOnly, nil)
	}
	inEmployeeArea := underPrefix(path, PathEmployeeHome)
	if inEmployeeArea && !sess.IsEmployee() {
		return redirect(PathCustomerHome, ReasonEmployeeArea, nil)
	}
	if route.CustomerOnly && !sess.IsCustomer() {
		return redirect(PathEmployeeHome, ReasonCustomerOnly, nil)
	}

	if inEmployeeArea && sess.IsEmployee() && route.RequiresAuth && sess.NeedsPolicyAcceptance() {
		if policyReadRoutes[route.Name] {
			return allow(ReasonAllowed)
		}
		return redirect(PathPolicies, ReasonPolicyAcceptance, withRedirect(path))
	}

	if route.RequiresPolicyEditor && !sess.CanEditPolicies() {
		target := PathPolicies
		if underPrefix(path, PathProcedures) {
			target = PathProcedures
		}
		return redirect(target, ReasonPermissionDenied, url.Values{QueryError: []string{ErrorPermissionDenied}})
	}

	return allow(ReasonAllowed)
}

// kioskDecision covers the rules that apply before the session is known.
func kioskDecision(route Route, path, kioskID string) (Decision, bool) {
	if kioskID != "" && path == PathRoot {
		return redirect(PathKiosk, ReasonKioskOverride, nil), true
	}
	if route.Kiosk {
		return allow(ReasonKioskRoute), true
	}
	return Decision{}, false
}

func isLoginEntry(route Route, path string) bool {
	return route.Name == RouteLogin || route.Name == RouteCustomerRegister || loginEntries[path]
}

// underPrefix is a plain string prefix test, so /employee-portalx counts as
// part of the employee area.
func underPrefix(path, prefix string) bool {
	return strings.HasPrefix(path, prefix)
}

// SessionSource resolves the current session, using its cache when fresh.
type SessionSource interface {
	FetchSession(ctx context.Context, force bool) (*models.Session, bool)
}

// Option configures a Guard.
type Option func(*Guard)

// WithKioskID pins the device to kiosk mode.
func WithKioskID(id string) Option {
	return func(g *Guard) { g.kioskID = strings.TrimSpace(id) }
}

// WithTable replaces the default route table.
func WithTable(t *Table) Option {
	return func(g *Guard) { g.table = t }
}

// WithMaxRedirects bounds Navigate.
func WithMaxRedirects(n int) Option {
	return func(g *Guard) {
		if n > 0 {
			g.maxRedirects = n
		}
	}
}

// WithMetrics records every decision.
func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

// Guard runs Evaluate for concrete navigations.
type Guard struct {
	sessions     SessionSource
	table        *Table
	kioskID      string
	maxRedirects int
	logger       *logrus.Logger
	metrics      *metrics.Metrics
}

// New creates a guard over sessions using the default route table.
func New(sessions SessionSource, logger *logrus.Logger, opts ...Option) *Guard {
	g := &Guard{
		sessions:     sessions,
		maxRedirects: DefaultMaxRedirects,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.table == nil {
		g.table = MustNewTable(DefaultRoutes())
	}
	return g
}

// Table returns the route table in use.
func (g *Guard) Table() *Table {
	return g.table
}

// Check decides one navigation to target, which may carry a query string.
// Aliases are forwarded first, then kiosk rules apply, and only then is the
// session fetched, exactly once.
func (g *Guard) Check(ctx context.Context, target string) Decision {
	path, query := splitTarget(target)
	match := g.table.Match(path)

	var d Decision
	switch {
	case match.Route.IsAlias():
		d = redirect(expand(match.Route.RedirectTo, match.Vars), ReasonAlias, query)
	default:
		if kiosk, ok := kioskDecision(match.Route, path, g.kioskID); ok {
			d = kiosk
			break
		}
		sess, _ := g.sessions.FetchSession(ctx, false)
		d = Evaluate(match.Route, sess, path, g.kioskID)
	}

	g.metrics.NavigationDecision(string(d.Reason))
	g.logger.WithFields(logrus.Fields{
		"path":   path,
		"route":  match.Route.Name,
		"allow":  d.Allow,
		"reason": d.Reason,
		"target": d.Location(),
	}).Debug("Navigation decided")

	return d
}

// Result is where a navigation finally landed.
type Result struct {
	// Location is the allowed path, with its query string.
	Location string
	Route    Route
	Vars     map[string]string
	// Chain holds every decision taken, the last one being the allow.
	Chain []Decision
}

// Navigate follows redirects from target until a location is allowed.
func (g *Guard) Navigate(ctx context.Context, target string) (Result, error) {
	location := target
	var chain []Decision

	for hop := 0; hop <= g.maxRedirects; hop++ {
		d := g.Check(ctx, location)
		chain = append(chain, d)
		if d.Allow {
			path, _ := splitTarget(location)
			match := g.table.Match(path)
			return Result{
				Location: location,
				Route:    match.Route,
				Vars:     match.Vars,
				Chain:    chain,
			}, nil
		}
		location = d.Location()
	}

	g.logger.WithFields(logrus.Fields{
		"target": target,
		"hops":   len(chain),
	}).Warn("Navigation redirect loop")

	return Result{Chain: chain}, ErrRedirectLoop
}

// splitTarget separates the normalized path from the query of target.
func splitTarget(target string) (string, url.Values) {
	u, err := url.Parse(target)
	if err != nil {
		path, rawQuery, _ := strings.Cut(target, "?")
		query, _ := url.ParseQuery(rawQuery)
		return NormalizePath(path), nonEmpty(query)
	}
	return NormalizePath(u.Path), nonEmpty(u.Query())
}

func nonEmpty(q url.Values) url.Values {
	if len(q) == 0 {
		return nil
	}
	return q
}
