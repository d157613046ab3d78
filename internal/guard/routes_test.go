package guard_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/LunarVagabond/phasepoint-frontend/internal/guard"
	"github.com/LunarVagabond/phasepoint-frontend/internal/models"
)

func TestTable_Match(t *testing.T) {
	table := guard.MustNewTable(guard.DefaultRoutes())

	tests := []struct {
		path string
		name string
		vars map[string]string
	}{
		{path: "/", name: "Landing"},
		{path: "/login/", name: "Login"},
		{path: "/employee-portal", name: "Dashboard"},
		{path: "/employee-portal/", name: "Dashboard"},
		{path: "/employee-portal/policies/all", name: "AllPolicies"},
		{path: "/employee-portal/policies/drafts", name: "PolicyDrafts"},
		{path: "/employee-portal/policies/edit", name: "PolicyEditor"},
		{path: "/employee-portal/policies/edit/retention", name: "PolicyEditorSlug", vars: map[string]string{"slug": "retention"}},
		{path: "/employee-portal/policies/retention", name: "PolicyDetail", vars: map[string]string{"slug": "retention"}},
		{path: "/employee-portal/procedures/edit", name: "ProcedureEditor"},
		{path: "/customer-portal/requests/new", name: "CustomerRequest"},
		{path: "/customer-portal/requests/17", name: "CustomerRequestDetail", vars: map[string]string{"id": "17"}},
		{path: "/employee-portal/customers/c1", name: "CustomerDetail", vars: map[string]string{"customerId": "c1"}},
		{path: "/employee-portal/customers/c1/portal", name: "CustomerPortalPreviewDashboard"},
		{path: "/employee-portal/customers/c1/portal/requests/new", name: "CustomerPortalPreviewRequest"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m := table.Match(tt.path)
			require.True(t, m.Found)
			assert.Equal(t, tt.name, m.Route.Name)
			for k, v := range tt.vars {
				assert.Equal(t, v, m.Vars[k])
			}
		})
	}

	m := table.Match("/employee-portal/policies/edit/a/b")
	assert.False(t, m.Found)
	assert.Equal(t, guard.Route{}, m.Route)
}

func TestDefaultRoutes_InheritedFlags(t *testing.T) {
	table := guard.MustNewTable(guard.DefaultRoutes())

	for _, r := range guard.DefaultRoutes() {
		if r.IsAlias() {
			continue
		}
		switch {
		case r.Path == guard.PathEmployeeHome || strings.HasPrefix(r.Path, guard.PathEmployeeHome+"/"):
			assert.True(t, r.RequiresAuth, r.Name)
			assert.True(t, r.EmployeeOnly, r.Name)
		case r.Path == guard.PathCustomerHome || strings.HasPrefix(r.Path, guard.PathCustomerHome+"/"):
			assert.True(t, r.RequiresAuth, r.Name)
			assert.True(t, r.CustomerOnly, r.Name)
		}
	}

	policy, ok := table.Lookup("PolicyDetail")
	require.True(t, ok)
	assert.True(t, policy.RequiresPolicyAccept)
	assert.Equal(t, models.DocTypePolicy, policy.DocType)

	drafts, ok := table.Lookup("ProcedureDrafts")
	require.True(t, ok)
	assert.True(t, drafts.RequiresPolicyEditor)
	assert.Equal(t, models.DocTypeProcedure, drafts.DocType)

	preview, ok := table.Lookup("CustomerPortalPreviewUsers")
	require.True(t, ok)
	assert.True(t, preview.CustomerPortalReadonly)
	assert.False(t, preview.CustomerOnly)

	kiosk, ok := table.Lookup("Kiosk")
	require.True(t, ok)
	assert.True(t, kiosk.Kiosk)
	assert.False(t, kiosk.RequiresAuth)
}

func TestNewTable_Rejects(t *testing.T) {
	_, err := guard.NewTable([]guard.Route{{Name: "A", Path: "/a"}, {Name: "A", Path: "/b"}})
	assert.Error(t, err)

	_, err = guard.NewTable([]guard.Route{{Name: "B", Path: "relative"}})
	assert.Error(t, err)

	assert.Panics(t, func() { guard.MustNewTable([]guard.Route{{Name: "C"}}) })
}

func TestNormalizePath(t *testing.T) {
	assert.Equal(t, "/", guard.NormalizePath(""))
	assert.Equal(t, "/", guard.NormalizePath("///"))
	assert.Equal(t, "/login", guard.NormalizePath("login/"))
	assert.Equal(t, "/a/b", guard.NormalizePath("/a/b"))
}
