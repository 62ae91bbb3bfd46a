package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/internal/subscription"
)

func TestCreateUserByFounderDefaultsToOwnBranch(t *testing.T) {
	db := setupHandlerTest(t)
	owner, _ := seedLoginFixture(t, db, false, subscription.StatusActive)

	c, rec := jsonRequest(t, http.MethodPost, "/api/users", `{
		"username": "secretaire",
		"email": "secretaire@example.com",
		"password": "motdepasse1",
		"role": "EMPLOYEE"
	}`)
	authz.StoreActor(c, actorFor(owner))
	require.NoError(t, CreateUser(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created model.User
	require.NoError(t, db.Where("username = ?", "secretaire").First(&created).Error)
	require.NotNil(t, created.BranchID)
	assert.Equal(t, *owner.BranchID, *created.BranchID)
	assert.Equal(t, string(authz.RoleEmployee), created.Role)

	var membership model.Membership
	require.NoError(t, db.Where("user_id = ?", created.ID).First(&membership).Error)
	assert.Equal(t, "STAFF", membership.Role)

	var trail model.AuditLog
	require.NoError(t, db.Where("user_id = ? AND type_event = ?", owner.ID, "user_create").First(&trail).Error)
	assert.Equal(t, "user_create", trail.Action)
}

func TestCreateUserFounderCannotMintPlatformRoles(t *testing.T) {
	db := setupHandlerTest(t)
	owner, _ := seedLoginFixture(t, db, false, subscription.StatusActive)

	c, rec := jsonRequest(t, http.MethodPost, "/api/users", `{
		"username": "intrus",
		"email": "intrus@example.com",
		"password": "motdepasse1",
		"role": "IT"
	}`)
	authz.StoreActor(c, actorFor(owner))
	require.NoError(t, CreateUser(c))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCreateUserBranchAdminLockedToOwnBranch(t *testing.T) {
	db := setupHandlerTest(t)
	_, staff := seedLoginFixture(t, db, false, subscription.StatusActive)
	require.NoError(t, db.Model(&staff).Update("role", string(authz.RoleAdminBranch)).Error)
	staff.Role = string(authz.RoleAdminBranch)

	foreign := model.Branch{Name: "bamako", Slug: "bamako", CountryCode: "ML"}
	require.NoError(t, db.Create(&foreign).Error)

	c, rec := jsonRequest(t, http.MethodPost, "/api/users", fmt.Sprintf(`{
		"username": "recrue",
		"email": "recrue@example.com",
		"password": "motdepasse1",
		"role": "EMPLOYEE",
		"branch_id": %d
	}`, foreign.ID))
	authz.StoreActor(c, actorFor(staff))
	require.NoError(t, CreateUser(c))
	require.Equal(t, http.StatusCreated, rec.Code)

	// The requested foreign branch is ignored: the hire lands on the
	// admin's own branch.
	var created model.User
	require.NoError(t, db.Where("username = ?", "recrue").First(&created).Error)
	require.NotNil(t, created.BranchID)
	assert.Equal(t, *staff.BranchID, *created.BranchID)
}

func TestCreateUserRejectsDuplicateEmail(t *testing.T) {
	db := setupHandlerTest(t)
	owner, _ := seedLoginFixture(t, db, false, subscription.StatusActive)

	c, rec := jsonRequest(t, http.MethodPost, "/api/users", `{
		"username": "autre",
		"email": "staff@example.com",
		"password": "motdepasse1",
		"role": "EMPLOYEE"
	}`)
	authz.StoreActor(c, actorFor(owner))
	require.NoError(t, CreateUser(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestListUsersScopedForFounder(t *testing.T) {
	db := setupHandlerTest(t)
	owner, _ := seedLoginFixture(t, db, false, subscription.StatusActive)

	// A foreign tenant and a platform account, both outside the founder's
	// scope.
	foreign := model.Branch{Name: "bamako", Slug: "bamako", CountryCode: "ML"}
	require.NoError(t, db.Create(&foreign).Error)
	require.NoError(t, db.Create(&model.User{
		Username: "etranger", Email: "etranger@example.com", PasswordHash: "x",
		Role: string(authz.RoleEmployee), BranchID: &foreign.ID, IsActive: true,
	}).Error)
	require.NoError(t, db.Create(&model.User{
		Username: "platform", Email: "platform@example.com", PasswordHash: "x",
		Role: string(authz.RoleIT), PlatformRole: authz.SuperAdminPlatform, IsActive: true,
	}).Error)

	c, rec := jsonRequest(t, http.MethodGet, "/api/users", "")
	authz.StoreActor(c, actorFor(owner))
	require.NoError(t, ListUsers(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "staff@example.com")
	assert.NotContains(t, rec.Body.String(), "etranger@example.com")
	assert.NotContains(t, rec.Body.String(), "platform@example.com")
}

func TestUpdateUserMovesMembership(t *testing.T) {
	db := setupHandlerTest(t)
	owner, staff := seedLoginFixture(t, db, false, subscription.StatusActive)

	second := model.Branch{Name: "abidjan", Slug: "abidjan", CountryCode: "CI"}
	require.NoError(t, db.Create(&second).Error)
	require.NoError(t, db.Create(&model.Membership{
		UserID: owner.ID, BranchID: second.ID, Role: "OWNER",
	}).Error)
	require.NoError(t, db.Create(&model.Membership{
		UserID: staff.ID, BranchID: *staff.BranchID, Role: "STAFF",
	}).Error)

	c, rec := jsonRequest(t, http.MethodPut, "/api/users/"+fmt.Sprint(staff.ID), fmt.Sprintf(`{
		"username": "staff",
		"email": "staff@example.com",
		"role": "EMPLOYEE",
		"branch_id": %d
	}`, second.ID))
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(staff.ID))
	authz.StoreActor(c, actorFor(owner))
	require.NoError(t, UpdateUser(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var moved model.User
	require.NoError(t, db.First(&moved, staff.ID).Error)
	require.NotNil(t, moved.BranchID)
	assert.Equal(t, second.ID, *moved.BranchID)

	// An employee works on exactly one branch: the old membership is gone.
	var memberships []model.Membership
	require.NoError(t, db.Where("user_id = ?", staff.ID).Find(&memberships).Error)
	require.Len(t, memberships, 1)
	assert.Equal(t, second.ID, memberships[0].BranchID)
}

func TestDeleteUserSelfRefused(t *testing.T) {
	db := setupHandlerTest(t)
	owner, _ := seedLoginFixture(t, db, false, subscription.StatusActive)

	c, rec := jsonRequest(t, http.MethodDelete, "/api/users/"+fmt.Sprint(owner.ID), "")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(owner.ID))
	authz.StoreActor(c, actorFor(owner))
	require.NoError(t, DeleteUser(c))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUserRemovesMemberships(t *testing.T) {
	db := setupHandlerTest(t)
	owner, staff := seedLoginFixture(t, db, false, subscription.StatusActive)
	require.NoError(t, db.Create(&model.Membership{
		UserID: staff.ID, BranchID: *staff.BranchID, Role: "STAFF",
	}).Error)

	c, rec := jsonRequest(t, http.MethodDelete, "/api/users/"+fmt.Sprint(staff.ID), "")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(staff.ID))
	authz.StoreActor(c, actorFor(owner))
	require.NoError(t, DeleteUser(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	db.Model(&model.User{}).Where("id = ?", staff.ID).Count(&count)
	assert.Zero(t, count)
	db.Model(&model.Membership{}).Where("user_id = ?", staff.ID).Count(&count)
	assert.Zero(t, count)

	var trail model.AuditLog
	require.NoError(t, db.Where("user_id = ? AND type_event = ?", owner.ID, "user_delete").First(&trail).Error)
	assert.Equal(t, "user_delete", trail.Action)
}
