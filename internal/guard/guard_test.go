package guard_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LunarVagabond/phasepoint-frontend/internal/guard"
	"github.com/LunarVagabond/phasepoint-frontend/internal/metrics"
	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
)

type stubSessions struct {
	session *models.Session
	calls   atomic.Int32
}

func (s *stubSessions) FetchSession(context.Context, bool) (*models.Session, bool) {
	s.calls.Add(1)
	if s.session == nil {
		return nil, false
	}
	return s.session.Clone(), true
}

func strPtr(s string) *string { return &s }

func employeeSession(groups ...string) *models.Session {
	return &models.Session{
		ID:                     "1",
		Username:               "alice",
		UserType:               models.RoleEmployee,
		AcknowledgedBundleHash: strPtr("h1"),
		CurrentBundleHash:      "h1",
		GroupsDisplay:          groups,
	}
}

func pendingEmployee() *models.Session {
	s := employeeSession("operations")
	s.AcknowledgedBundleHash = strPtr("h0")
	return s
}

func customerSession() *models.Session {
	return &models.Session{
		ID:                     "2",
		Username:               "bob",
		UserType:               models.RoleCustomer,
		Customer:               strPtr("c1"),
		AcknowledgedBundleHash: strPtr("h1"),
		CurrentBundleHash:      "h1",
	}
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetLevel(logrus.ErrorLevel)
	return l
}

func route(t *testing.T, path string) guard.Route {
	t.Helper()
	m := guard.MustNewTable(guard.DefaultRoutes()).Match(path)
	return m.Route
}

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name     string
		session  *models.Session
		path     string
		kioskID  string
		allow    bool
		location string
		reason   guard.Reason
	}{
		{
			name:     "anonymous on protected route goes to login",
			path:     "/employee-portal/assets",
			location: "/login?redirect=%2Femployee-portal%2Fassets",
			reason:   guard.ReasonLoginRequired,
		},
		{
			name:     "anonymous on policy route goes to login",
			path:     "/employee-portal/policies/retention",
			location: "/login?redirect=%2Femployee-portal%2Fpolicies%2Fretention",
			reason:   guard.ReasonLoginRequired,
		},
		{
			name:   "anonymous on guest route",
			path:   "/about",
			allow:  true,
			reason: guard.ReasonAllowed,
		},
		{
			name:   "anonymous on unknown route",
			path:   "/nowhere",
			allow:  true,
			reason: guard.ReasonAllowed,
		},
		{
			name:     "employee on login goes home",
			session:  employeeSession(),
			path:     "/login",
			location: "/employee-portal",
			reason:   guard.ReasonAlreadyAuthenticated,
		},
		{
			name:     "customer on register goes home",
			session:  customerSession(),
			path:     "/customer/register",
			location: "/customer-portal",
			reason:   guard.ReasonAlreadyAuthenticated,
		},
		{
			name:     "employee on legacy login path goes home",
			session:  employeeSession(),
			path:     "/employee-portal/login",
			location: "/employee-portal",
			reason:   guard.ReasonAlreadyAuthenticated,
		},
		{
			name:     "pending policies redirect to policy list",
			session:  pendingEmployee(),
			path:     "/employee-portal/assets",
			location: "/employee-portal/policies?redirect=%2Femployee-portal%2Fassets",
			reason:   guard.ReasonPolicyAcceptance,
		},
		{
			name:    "pending policies still allow policy list",
			session: pendingEmployee(),
			path:    "/employee-portal/policies",
			allow:   true,
			reason:  guard.ReasonAllowed,
		},
		{
			name:    "pending policies still allow policy detail",
			session: pendingEmployee(),
			path:    "/employee-portal/policies/data-retention",
			allow:   true,
			reason:  guard.ReasonAllowed,
		},
		{
			name:    "pending policies still allow all policies",
			session: pendingEmployee(),
			path:    "/employee-portal/policies/all/",
			allow:   true,
			reason:  guard.ReasonAllowed,
		},
		{
			name:     "pending policies block drafts",
			session:  pendingEmployee(),
			path:     "/employee-portal/policies/drafts",
			location: "/employee-portal/policies?redirect=%2Femployee-portal%2Fpolicies%2Fdrafts",
			reason:   guard.ReasonPolicyAcceptance,
		},
		{
			name:     "customer on employee-only route",
			session:  customerSession(),
			path:     "/employee-portal/reports",
			location: "/customer-portal",
			reason:   guard.ReasonEmployeeOnly,
		},
		{
			name:     "customer on unknown employee path",
			session:  customerSession(),
			path:     "/employee-portal/not-a-page",
			location: "/customer-portal",
			reason:   guard.ReasonEmployeeArea,
		},
		{
			name:     "employee on customer-only route",
			session:  employeeSession(),
			path:     "/customer-portal/assets/42",
			location: "/employee-portal",
			reason:   guard.ReasonCustomerOnly,
		},
		{
			name:     "editor route without operations group",
			session:  employeeSession("warehouse"),
			path:     "/employee-portal/policies/edit/retention",
			location: "/employee-portal/policies?error=permission_denied",
			reason:   guard.ReasonPermissionDenied,
		},
		{
			name:     "procedure editor without operations group",
			session:  employeeSession(),
			path:     "/employee-portal/procedures/edit",
			location: "/employee-portal/procedures?error=permission_denied",
			reason:   guard.ReasonPermissionDenied,
		},
		{
			name:     "procedure drafts without operations group",
			session:  employeeSession("customer_relations"),
			path:     "/employee-portal/procedures/drafts",
			location: "/employee-portal/procedures?error=permission_denied",
			reason:   guard.ReasonPermissionDenied,
		},
		{
			name:    "editor route with operations group in any case",
			session: employeeSession("OPERATIONS"),
			path:    "/employee-portal/policies/edit",
			allow:   true,
			reason:  guard.ReasonAllowed,
		},
		{
			name:    "customer on own portal",
			session: customerSession(),
			path:    "/customer-portal/tracking/shipments/9",
			allow:   true,
			reason:  guard.ReasonAllowed,
		},
		{
			name:    "employee previewing customer portal",
			session: employeeSession(),
			path:    "/employee-portal/customers/c1/portal/users",
			allow:   true,
			reason:  guard.ReasonAllowed,
		},
		{
			name:     "kiosk override on root",
			path:     "/",
			kioskID:  "dock-3",
			location: "/kiosk",
			reason:   guard.ReasonKioskOverride,
		},
		{
			name:    "kiosk override ignores other paths",
			path:    "/about",
			kioskID: "dock-3",
			allow:   true,
			reason:  guard.ReasonAllowed,
		},
		{
			name:    "kiosk route always allowed",
			session: customerSession(),
			path:    "/kiosk",
			allow:   true,
			reason:  guard.ReasonKioskRoute,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := guard.Evaluate(route(t, tt.path), tt.session, tt.path, tt.kioskID)

			assert.Equal(t, tt.allow, d.Allow)
			assert.Equal(t, tt.reason, d.Reason)
			if !tt.allow {
				assert.Equal(t, tt.location, d.Location())
			}
		})
	}
}

func TestEvaluate_Deterministic(t *testing.T) {
	r := route(t, "/employee-portal/intake")
	s := pendingEmployee()

	first := guard.Evaluate(r, s, "/employee-portal/intake", "")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, guard.Evaluate(r, s, "/employee-portal/intake", ""))
	}
}

func TestEvaluate_EmployeeOnlyAndPrefixAgree(t *testing.T) {
	s := customerSession()
	for _, path := range []string{
		"/employee-portal",
		"/employee-portal/customers/c1",
		"/employee-portal/customers/c1/portal/tracking/audit",
		"/employee-portal/procedures/all",
		"/employee-portalx",
	} {
		d := guard.Evaluate(route(t, path), s, path, "")
		assert.False(t, d.Allow, path)
		assert.Equal(t, "/customer-portal", d.Location(), path)
	}
}

func TestGuardCheck_FetchesSessionOnce(t *testing.T) {
	sessions := &stubSessions{session: employeeSession()}
	g := guard.New(sessions, quietLogger())

	d := g.Check(context.Background(), "/employee-portal/assets")
	assert.True(t, d.Allow)
	assert.Equal(t, int32(1), sessions.calls.Load())
}

func TestGuardCheck_KioskSkipsSession(t *testing.T) {
	sessions := &stubSessions{}
	g := guard.New(sessions, quietLogger(), guard.WithKioskID("dock-3"))

	assert.Equal(t, "/kiosk", g.Check(context.Background(), "/").Location())
	assert.True(t, g.Check(context.Background(), "/kiosk").Allow)
	assert.Equal(t, int32(0), sessions.calls.Load())
}

func TestGuardCheck_AliasesPreserveQuery(t *testing.T) {
	sessions := &stubSessions{}
	g := guard.New(sessions, quietLogger())

	d := g.Check(context.Background(), "/customer/login?redirect=/customer-portal/assets")
	assert.False(t, d.Allow)
	assert.Equal(t, guard.ReasonAlias, d.Reason)
	assert.Equal(t, "/login", d.Target)
	assert.Equal(t, "/customer-portal/assets", d.Query.Get("redirect"))

	d = g.Check(context.Background(), "/employee-portal/login/")
	assert.Equal(t, "/login", d.Location())

	d = g.Check(context.Background(), "/employee-portal/customers/c9/portal/tracking?page=2")
	assert.Equal(t, "/employee-portal/customers/c9/portal/tracking/requests?page=2", d.Location())

	assert.Equal(t, int32(0), sessions.calls.Load(), "aliases resolve before the session is needed")
}

func TestGuardCheck_RecordsMetrics(t *testing.T) {
	m := metrics.NewMetrics(nil)
	g := guard.New(&stubSessions{}, quietLogger(), guard.WithMetrics(m))

	g.Check(context.Background(), "/employee-portal")
	g.Check(context.Background(), "/about")

	assert.InDelta(t, 1, testutil.ToFloat64(m.NavigationDecisions.WithLabelValues("login_required")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.NavigationDecisions.WithLabelValues("allowed")), 0)
}

func TestNavigate(t *testing.T) {
	tests := []struct {
		name     string
		session  *models.Session
		target   string
		location string
		route    string
		hops     int
	}{
		{
			name:     "anonymous lands on login",
			target:   "/employee-portal/work-orders/5",
			location: "/login?redirect=%2Femployee-portal%2Fwork-orders%2F5",
			route:    "Login",
			hops:     2,
		},
		{
			name:     "legacy customer login lands on dashboard",
			session:  customerSession(),
			target:   "/customer/login",
			location: "/customer-portal",
			route:    "CustomerDashboard",
			hops:     3,
		},
		{
			name:     "pending employee lands on policies",
			session:  pendingEmployee(),
			target:   "/employee-portal/reports",
			location: "/employee-portal/policies?redirect=%2Femployee-portal%2Freports",
			route:    "Policies",
			hops:     2,
		},
		{
			name:     "tracking alias lands on requests",
			session:  customerSession(),
			target:   "/customer-portal/tracking",
			location: "/customer-portal/tracking/requests",
			route:    "CustomerTrackingRequests",
			hops:     2,
		},
		{
			name:     "allowed immediately",
			session:  employeeSession(),
			target:   "/employee-portal/shipments/3",
			location: "/employee-portal/shipments/3",
			route:    "ShipmentDetail",
			hops:     1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := guard.New(&stubSessions{session: tt.session}, quietLogger())

			res, err := g.Navigate(context.Background(), tt.target)
			require.NoError(t, err)

			assert.Equal(t, tt.location, res.Location)
			assert.Equal(t, tt.route, res.Route.Name)
			assert.Len(t, res.Chain, tt.hops)
			assert.True(t, res.Chain[len(res.Chain)-1].Allow)
		})
	}
}

func TestNavigate_Vars(t *testing.T) {
	g := guard.New(&stubSessions{session: employeeSession()}, quietLogger())

	res, err := g.Navigate(context.Background(), "/employee-portal/customers/c42/context")
	require.NoError(t, err)
	assert.Equal(t, "CustomerContextInternal", res.Route.Name)
	assert.Equal(t, "c42", res.Vars["customerId"])
}

func TestNavigate_RedirectLoop(t *testing.T) {
	table := guard.MustNewTable([]guard.Route{
		{Path: "/a", RedirectTo: "/b"},
		{Path: "/b", RedirectTo: "/a"},
	})
	g := guard.New(&stubSessions{}, quietLogger(), guard.WithTable(table), guard.WithMaxRedirects(3))

	res, err := g.Navigate(context.Background(), "/a")
	assert.ErrorIs(t, err, guard.ErrRedirectLoop)
	assert.Len(t, res.Chain, 4)
}
