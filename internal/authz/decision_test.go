package authz

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideRolesUnauthenticated(t *testing.T) {
	d := DecideRoles(Anonymous(), RoleEmployee)
	assert.False(t, d.Allow)
	assert.Equal(t, http.StatusUnauthorized, d.Status)
}

func TestDecideRolesFounderBypass(t *testing.T) {
	founder := Actor{UserID: 1, Role: RoleFounder, Authenticated: true}
	assert.True(t, DecideRoles(founder, RoleIT).Allow)
	assert.True(t, DecideRoles(founder, RoleAdminBranch).Allow)
}

func TestDecideRolesSuperAdminBypass(t *testing.T) {
	admin := Actor{UserID: 1, Role: RoleIT, PlatformRole: SuperAdminPlatform, Authenticated: true}
	assert.True(t, DecideRoles(admin, RoleAdminBranch).Allow)
}

func TestDecideRolesAdminBranchCoversEmployee(t *testing.T) {
	admin := Actor{UserID: 1, Role: RoleAdminBranch, Authenticated: true}
	assert.True(t, DecideRoles(admin, RoleEmployee).Allow)

	// The elevation is one-way only.
	employee := Actor{UserID: 2, Role: RoleEmployee, Authenticated: true}
	d := DecideRoles(employee, RoleAdminBranch)
	assert.False(t, d.Allow)
	assert.Equal(t, http.StatusForbidden, d.Status)
}

func TestDecideRolesInsufficient(t *testing.T) {
	employee := Actor{UserID: 1, Role: RoleEmployee, Authenticated: true}
	d := DecideRoles(employee, RoleIT)
	assert.False(t, d.Allow)
	assert.Equal(t, http.StatusForbidden, d.Status)
}

func TestDecideSuperAdmin(t *testing.T) {
	assert.Equal(t, http.StatusUnauthorized, DecideSuperAdmin(Anonymous()).Status)

	founder := Actor{UserID: 1, Role: RoleFounder, Authenticated: true}
	assert.Equal(t, http.StatusForbidden, DecideSuperAdmin(founder).Status)

	admin := Actor{UserID: 2, PlatformRole: SuperAdminPlatform, Authenticated: true}
	assert.True(t, DecideSuperAdmin(admin).Allow)
}

func TestDecideBranchAccess(t *testing.T) {
	db := newTestDB(t)
	branches := seedBranches(t, db, "dakar")
	r := NewResolver(db)

	actor := Actor{UserID: 1, Role: RoleEmployee, BranchID: &branches[0].ID, Authenticated: true}
	assert.True(t, DecideBranchAccess(r, &branches[0].ID, actor).Allow)

	other := uint(999)
	d := DecideBranchAccess(r, &other, actor)
	assert.False(t, d.Allow)
	assert.Equal(t, http.StatusForbidden, d.Status)
}
