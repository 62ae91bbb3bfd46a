package middleware

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/internal/subscription"
)

func runGuard(t *testing.T, guard echo.MiddlewareFunc, actor authz.Actor) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	authz.StoreActor(c, actor)

	h := guard(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec
}

func TestRequireRolesBlocksInsufficientRole(t *testing.T) {
	employee := authz.Actor{UserID: 1, Role: authz.RoleEmployee, Authenticated: true}
	rec := runGuard(t, RequireRoles(authz.RoleAdminBranch), employee)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRolesAdminCoversEmployee(t *testing.T) {
	admin := authz.Actor{UserID: 1, Role: authz.RoleAdminBranch, Authenticated: true}
	rec := runGuard(t, RequireRoles(authz.RoleEmployee), admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRolesUnauthenticated(t *testing.T) {
	rec := runGuard(t, RequireRoles(authz.RoleEmployee), authz.Anonymous())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func runBranchGuard(t *testing.T, guard echo.MiddlewareFunc, actor authz.Actor, id string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/branches/"+id, nil)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	c.SetParamNames("id")
	c.SetParamValues(id)
	authz.StoreActor(c, actor)

	h := guard(func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	})
	require.NoError(t, h(c))
	return rec
}

func TestRequireBranchAccess(t *testing.T) {
	f := newEnforceFixture(t, false, subscription.StatusActive)
	guard := RequireBranchAccess(authz.NewResolver(f.db))

	staff := authz.Actor{
		UserID: f.staff.ID, Role: authz.RoleEmployee,
		BranchID: f.staff.BranchID, Authenticated: true,
	}
	rec := runBranchGuard(t, guard, staff, fmt.Sprint(f.branch.ID))
	assert.Equal(t, http.StatusOK, rec.Code)

	other := model.Branch{Name: "bamako", Slug: "bamako", CountryCode: "ML"}
	require.NoError(t, f.db.Create(&other).Error)
	rec = runBranchGuard(t, guard, staff, fmt.Sprint(other.ID))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = runBranchGuard(t, guard, staff, "abc")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRequireSuperAdmin(t *testing.T) {
	founder := authz.Actor{UserID: 1, Role: authz.RoleFounder, Authenticated: true}
	rec := runGuard(t, echo.MiddlewareFunc(RequireSuperAdmin), founder)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	admin := authz.Actor{UserID: 2, PlatformRole: authz.SuperAdminPlatform, Authenticated: true}
	rec = runGuard(t, echo.MiddlewareFunc(RequireSuperAdmin), admin)
	assert.Equal(t, http.StatusOK, rec.Code)
}
