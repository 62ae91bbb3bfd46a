package handler

import (
	"net/http"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/internal/subscription"
)

func actorFor(user model.User) authz.Actor {
	return authz.Actor{
		UserID:        user.ID,
		Username:      user.Username,
		Email:         user.Email,
		Role:          authz.NormalizeRole(user.Role),
		PlatformRole:  authz.NormalizePlatformRole(user.PlatformRole),
		BranchID:      user.BranchID,
		Authenticated: true,
	}
}

func TestGetSubscriptionProvisionsLegacyFounder(t *testing.T) {
	db := setupHandlerTest(t)

	// A founder from before the billing era: no branch, no membership, no
	// subscription.
	founder := model.User{
		Username: "ancien", Email: "ancien@example.com", PasswordHash: "x",
		Role: string(authz.RoleFounder), IsActive: true,
	}
	require.NoError(t, db.Create(&founder).Error)

	c, rec := jsonRequest(t, http.MethodGet, "/auth/subscription", "")
	authz.StoreActor(c, actorFor(founder))
	require.NoError(t, GetSubscription(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var reloaded model.User
	require.NoError(t, db.First(&reloaded, founder.ID).Error)
	require.NotNil(t, reloaded.BranchID)

	var membership model.Membership
	require.NoError(t, db.Where("user_id = ?", founder.ID).First(&membership).Error)
	assert.Equal(t, "OWNER", membership.Role)

	var sub model.AgencySubscription
	require.NoError(t, db.Where("owner_user_id = ?", founder.ID).First(&sub).Error)
	assert.Equal(t, *reloaded.BranchID, sub.BranchID)
	assert.Equal(t, subscription.PlanStarter, sub.PlanCode)
}

func TestGetSubscriptionForbiddenForStaff(t *testing.T) {
	db := setupHandlerTest(t)
	_, staff := seedLoginFixture(t, db, true, subscription.StatusActive)

	c, _ := jsonRequest(t, http.MethodGet, "/auth/subscription", "")
	authz.StoreActor(c, actorFor(staff))
	err := GetSubscription(c)
	var httpErr *echo.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusForbidden, httpErr.Code)
}

func TestPostSubscriptionMarkPaymentSent(t *testing.T) {
	db := setupHandlerTest(t)
	owner, _ := seedLoginFixture(t, db, true, subscription.StatusPending)

	c, rec := jsonRequest(t, http.MethodPost, "/auth/subscription",
		`{"action": "mark_payment_sent", "payment_reference": "OM-987"}`)
	authz.StoreActor(c, actorFor(owner))
	require.NoError(t, PostSubscription(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var sub model.AgencySubscription
	require.NoError(t, db.Where("owner_user_id = ?", owner.ID).First(&sub).Error)
	assert.Equal(t, subscription.StatusPendingReview, sub.Status)
	assert.Equal(t, "OM-987", sub.PaymentReference)
}

func TestPostSubscriptionChangePlanWhileNotActive(t *testing.T) {
	db := setupHandlerTest(t)
	owner, _ := seedLoginFixture(t, db, true, subscription.StatusPending)

	c, rec := jsonRequest(t, http.MethodPost, "/auth/subscription",
		`{"action": "change_plan", "plan_code": "pro"}`)
	authz.StoreActor(c, actorFor(owner))
	require.NoError(t, PostSubscription(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var sub model.AgencySubscription
	require.NoError(t, db.Where("owner_user_id = ?", owner.ID).First(&sub).Error)
	assert.Equal(t, subscription.PlanPro, sub.PlanCode)
}

func TestPostSubscriptionChangePlanRefusedWhenActive(t *testing.T) {
	db := setupHandlerTest(t)
	owner, _ := seedLoginFixture(t, db, true, subscription.StatusActive)

	c, rec := jsonRequest(t, http.MethodPost, "/auth/subscription",
		`{"action": "change_plan", "plan_code": "pro"}`)
	authz.StoreActor(c, actorFor(owner))
	require.NoError(t, PostSubscription(c))
	assert.Equal(t, http.StatusConflict, rec.Code)
}
