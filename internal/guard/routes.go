package guard

import (
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/gorilla/mux"

	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
)

// Well-known locations.
const (
	PathRoot           = "/"
	PathLogin          = "/login"
	PathKiosk          = "/kiosk"
	PathCustomerHome   = "/customer-portal"
	PathEmployeeHome   = "/employee-portal"
	PathPolicies       = "/employee-portal/policies"
	PathProcedures     = "/employee-portal/procedures"
	PathCustomerLogin  = "/customer/login"
	PathEmployeeLogin  = "/employee-portal/login"
	PathCustomerSignup = "/customer/register"
)

// Query parameters added by redirects.
const (
	QueryRedirect = "redirect"
	QueryError    = "error"

	ErrorPermissionDenied = "permission_denied"
)

// Route names the guard refers to.
const (
	RouteLogin            = "Login"
	RouteCustomerRegister = "CustomerRegister"
	RoutePolicies         = "Policies"
	RoutePolicyDetail     = "PolicyDetail"
	RouteAllPolicies      = "AllPolicies"
)

// Route is the access descriptor of one navigable location. Flags set on a
// parent area are already folded into every child.
type Route struct {
	Name  string
	Path  string
	Title string

	RequiresAuth           bool
	EmployeeOnly           bool
	CustomerOnly           bool
	RequiresPolicyAccept   bool
	RequiresPolicyEditor   bool
	Guest                  bool
	Kiosk                  bool
	CustomerPortalReadonly bool
	DocType                models.DocType

	// RedirectTo makes the route an alias. Path variables of the alias are
	// substituted and the query string is carried over.
	RedirectTo string
}

// IsAlias reports whether the route only forwards to another location.
func (r Route) IsAlias() bool {
	return r.RedirectTo != ""
}

func guest(name, path, title string) Route {
	return Route{Name: name, Path: path, Title: title, Guest: true}
}

func alias(path, target string) Route {
	return Route{Path: path, RedirectTo: target}
}

func employee(name, path, title string) Route {
	return Route{
		Name:         name,
		Path:         PathEmployeeHome + path,
		Title:        title,
		RequiresAuth: true,
		EmployeeOnly: true,
	}
}

func customer(name, path, title string) Route {
	return Route{
		Name:         name,
		Path:         PathCustomerHome + path,
		Title:        title,
		RequiresAuth: true,
		CustomerOnly: true,
	}
}

func preview(name, path, title string) Route {
	r := employee(name, "/customers/{customerId}/portal"+path, title)
	r.CustomerPortalReadonly = true
	return r
}

func policyPage(name, path, title string) Route {
	r := employee(name, "/policies"+path, title)
	r.RequiresPolicyAccept = true
	r.DocType = models.DocTypePolicy
	return r
}

func procedurePage(name, path, title string) Route {
	r := employee(name, "/procedures"+path, title)
	r.DocType = models.DocTypeProcedure
	return r
}

func editor(r Route) Route {
	r.RequiresPolicyEditor = true
	return r
}

// DefaultRoutes returns the portal's route table.
func DefaultRoutes() []Route {
	return []Route{
		guest("Landing", "/", "Phasepoint"),
		guest("About", "/about", "About Us"),
		guest("Services", "/services", "Services"),
		guest("Compliance", "/compliance", "Compliance & Certifications"),
		guest("Contact", "/contact", "Contact Us"),
		guest("Resources", "/resources", "Resources"),
		guest(RouteLogin, PathLogin, "Sign in"),
		alias(PathCustomerLogin, PathLogin),
		guest(RouteCustomerRegister, PathCustomerSignup, "Customer register"),
		{Name: "Kiosk", Path: PathKiosk, Title: "Kiosk", Kiosk: true},
		alias(PathEmployeeLogin, PathLogin),

		employee("Dashboard", "", "Dashboard"),
		employee("EmployeeProfile", "/profile", "My profile"),
		employee("Intake", "/intake", "Intake"),
		employee("IntakeRequestDetail", "/intake-requests/{id}", "Intake request"),
		employee("StatusRequestsInbox", "/status-requests", "Status Requests"),
		employee("Assets", "/assets", "Assets"),
		employee("OperationsWorkOrders", "/work-orders", "Work Orders"),
		employee("WorkOrderDetail", "/work-orders/{id}", "Work Order"),
		employee("ShipmentsList", "/shipments", "Shipments"),
		employee("ShipmentDetail", "/shipments/{id}", "Shipment"),
		employee("Batches", "/batches", "Batches"),
		employee("Audit", "/audit", "Audit trail"),
		employee("Reports", "/reports", "Reports"),
		employee("CustomerContextInternal", "/customers/{customerId}/context", "Customer Context"),
		employee("CustomerDetail", "/customers/{customerId}", "Customer Detail"),

		preview("CustomerPortalPreviewDashboard", "", "Customer Dashboard"),
		preview("CustomerPortalPreviewTerms", "/terms", "Terms & Conditions"),
		preview("CustomerPortalPreviewRequest", "/requests/new", "Create Request"),
		preview("CustomerPortalPreviewRequestDetail", "/requests/{id}", "Request detail"),
		alias(PathEmployeeHome+"/customers/{customerId}/portal/tracking",
			PathEmployeeHome+"/customers/{customerId}/portal/tracking/requests"),
		preview("CustomerPortalPreviewTrackingRequests", "/tracking/requests", "Requests"),
		preview("CustomerPortalPreviewTrackingAssets", "/tracking/assets", "My Assets"),
		preview("CustomerPortalPreviewTrackingAssetDetail", "/tracking/assets/{id}", "Asset Detail"),
		preview("CustomerPortalPreviewTrackingShipments", "/tracking/shipments", "My Shipments"),
		preview("CustomerPortalPreviewTrackingShipmentDetail", "/tracking/shipments/{id}", "Shipment Detail"),
		preview("CustomerPortalPreviewTrackingAudit", "/tracking/audit", "Audit Trail"),
		preview("CustomerPortalPreviewAssets", "/assets", "My Assets"),
		preview("CustomerPortalPreviewAssetDetail", "/assets/{id}", "Asset Detail"),
		preview("CustomerPortalPreviewShipments", "/shipments", "My Shipments"),
		preview("CustomerPortalPreviewShipmentDetail", "/shipments/{id}", "Shipment Detail"),
		preview("CustomerPortalPreviewAuditTrail", "/audit", "Audit Trail"),
		preview("CustomerPortalPreviewUsers", "/users", "Team Users"),
		preview("CustomerPortalPreviewProfile", "/profile", "Profile"),

		policyPage(RoutePolicies, "", "Policies"),
		policyPage(RouteAllPolicies, "/all", "All Policies"),
		editor(policyPage("PolicyDrafts", "/drafts", "Drafts")),
		policyPage(RoutePolicyDetail, "/{slug}", "Policy"),
		editor(employee("PolicyEditor", "/policies/edit", "Edit Policy")),
		editor(employee("PolicyEditorSlug", "/policies/edit/{slug}", "Edit Policy")),

		procedurePage("Procedures", "", "Processes and Procedures"),
		procedurePage("AllProcedures", "/all", "All Procedures"),
		editor(procedurePage("ProcedureDrafts", "/drafts", "Drafts")),
		procedurePage("ProcedureDetail", "/{slug}", "Procedure"),
		editor(employee("ProcedureEditor", "/procedures/edit", "Edit Procedure")),
		editor(employee("ProcedureEditorSlug", "/procedures/edit/{slug}", "Edit Procedure")),

		customer("CustomerDashboard", "", "Customer Dashboard"),
		customer("CustomerRequest", "/requests/new", "Create Request"),
		customer("CustomerRequestDetail", "/requests/{id}", "Request detail"),
		alias(PathCustomerHome+"/tracking", PathCustomerHome+"/tracking/requests"),
		customer("CustomerTrackingRequests", "/tracking/requests", "Requests"),
		customer("CustomerTrackingAssets", "/tracking/assets", "My Assets"),
		customer("CustomerTrackingAssetDetail", "/tracking/assets/{id}", "Asset Detail"),
		customer("CustomerTrackingShipments", "/tracking/shipments", "My Shipments"),
		customer("CustomerTrackingShipmentDetail", "/tracking/shipments/{id}", "Shipment Detail"),
		customer("CustomerTrackingAudit", "/tracking/audit", "Audit Trail"),
		customer("CustomerAssets", "/assets", "My Assets"),
		customer("CustomerAssetDetail", "/assets/{id}", "Asset Detail"),
		customer("CustomerShipments", "/shipments", "My Shipments"),
		customer("CustomerShipmentDetail", "/shipments/{id}", "Shipment Detail"),
		customer("CustomerAuditTrail", "/audit", "Audit Trail"),
		customer("CustomerPortalUsers", "/users", "Team Users"),
		customer("CustomerProfile", "/profile", "Profile"),
		customer("CustomerTerms", "/terms", "Terms & Conditions"),
	}
}

// Match is the result of resolving a path against the table.
type Match struct {
	Route Route
	Vars  map[string]string
	Found bool
}

// Table resolves paths to route descriptors. Static paths always win over
// paths with variables, so /policies/all never matches /policies/{slug}.
type Table struct {
	router *mux.Router
	routes map[string]Route
	byName map[string]Route
}

// NewTable builds a table from routes. Every route gets a unique key; aliases
// and unnamed routes are keyed by path.
func NewTable(routes []Route) (*Table, error) {
	ordered := make([]Route, len(routes))
	copy(ordered, routes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return !hasVars(ordered[i].Path) && hasVars(ordered[j].Path)
	})

	t := &Table{
		router: mux.NewRouter(),
		routes: make(map[string]Route, len(routes)),
		byName: make(map[string]Route, len(routes)),
	}

	for _, r := range ordered {
		if r.Path == "" || !strings.HasPrefix(r.Path, "/") {
			return nil, fmt.Errorf("route %q: path must start with /", r.Name)
		}
		key := routeKey(r)
		if _, exists := t.routes[key]; exists {
			return nil, fmt.Errorf("duplicate route %q", key)
		}
		t.routes[key] = r
		if r.Name != "" {
			t.byName[r.Name] = r
		}

		route := t.router.NewRoute().Path(r.Path).Name(key)
		if err := route.GetError(); err != nil {
			return nil, fmt.Errorf("route %q: %w", key, err)
		}
	}

	return t, nil
}

// MustNewTable is NewTable for tables known to be valid.
func MustNewTable(routes []Route) *Table {
	t, err := NewTable(routes)
	if err != nil {
		panic(err)
	}
	return t
}

// Match resolves path. Trailing slashes are ignored. An unknown path yields
// an empty descriptor with Found false.
func (t *Table) Match(path string) Match {
	path = NormalizePath(path)

	req := &http.Request{Method: http.MethodGet, URL: &url.URL{Path: path}}
	var m mux.RouteMatch
	if !t.router.Match(req, &m) || m.Route == nil {
		return Match{}
	}

	return Match{
		Route: t.routes[m.Route.GetName()],
		Vars:  m.Vars,
		Found: true,
	}
}

// Lookup returns the route registered under name.
func (t *Table) Lookup(name string) (Route, bool) {
	r, ok := t.byName[name]
	return r, ok
}

// Len returns the number of routes in the table.
func (t *Table) Len() int {
	return len(t.routes)
}

// NormalizePath drops trailing slashes and guarantees a leading one.
func NormalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return PathRoot
	}
	return trimmed
}

// expand substitutes path variables into an alias target.
func expand(template string, vars map[string]string) string {
	for k, v := range vars {
		template = strings.ReplaceAll(template, "{"+k+"}", url.PathEscape(v))
	}
	return template
}

func hasVars(path string) bool {
	return strings.Contains(path, "{")
}

func routeKey(r Route) string {
	if r.Name != "" {
		return r.Name
	}
	return r.Path
}
