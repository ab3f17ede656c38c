package rbac_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/procureflow/procureflow/internal/rbac"
	"github.com/procureflow/procureflow/internal/shared"
	"github.com/procureflow/procureflow/internal/workflow"
)

func doRequest(t *testing.T, mw func(http.Handler) http.Handler, p *shared.Principal) *httptest.ResponseRecorder {
	t.Helper()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	if p != nil {
		req = req.WithContext(shared.ContextWithPrincipal(req.Context(), p))
	}
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	return res
}

func TestRequireRoleAllows(t *testing.T) {
	mw := rbac.Middleware{}.RequireRole(workflow.RolePrinter)
	res := doRequest(t, mw, &shared.Principal{UserID: 1, Role: workflow.RolePrinter})
	require.Equal(t, http.StatusNoContent, res.Code)
}

func TestRequireRoleDenies(t *testing.T) {
	mw := rbac.Middleware{}.RequireRole(workflow.RolePrinter)
	res := doRequest(t, mw, &shared.Principal{UserID: 1, Role: workflow.RoleSupervisor})
	require.Equal(t, http.StatusForbidden, res.Code)
}

func TestRequireRoleUnauthenticated(t *testing.T) {
	mw := rbac.Middleware{}.RequireRole(workflow.RolePrinter)
	res := doRequest(t, mw, nil)
	require.Equal(t, http.StatusUnauthorized, res.Code)
}

func TestAdminBypassesRoleGate(t *testing.T) {
	mw := rbac.Middleware{}.RequireRole(workflow.RoleGeneralManager)
	res := doRequest(t, mw, &shared.Principal{UserID: 1, Role: workflow.RoleAdmin})
	require.Equal(t, http.StatusNoContent, res.Code)
}

func TestRequireAuthenticated(t *testing.T) {
	mw := rbac.Middleware{}.RequireAuthenticated()
	res := doRequest(t, mw, &shared.Principal{UserID: 1, Role: workflow.RoleEngineer})
	require.Equal(t, http.StatusNoContent, res.Code)
}
