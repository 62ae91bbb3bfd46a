package handler

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/internal/subscription"
)

func platformAdminActor() authz.Actor {
	return authz.Actor{
		UserID:        900,
		Username:      "it",
		Email:         "it@example.com",
		Role:          authz.RoleIT,
		PlatformRole:  authz.SuperAdminPlatform,
		Authenticated: true,
	}
}

func TestITUpdateSettingsPersistsPrices(t *testing.T) {
	db := setupHandlerTest(t)

	c, rec := jsonRequest(t, http.MethodPut, "/admin/it/settings", `{
		"site_name": "  ",
		"plan_starter_price": 10000,
		"plan_pro_price": 25000,
		"plan_enterprise_price": 60000,
		"plan_currency": "xof",
		"expiry_notice_days": 0
	}`)
	authz.StoreActor(c, platformAdminActor())
	require.NoError(t, ITUpdateSettings(c))
	require.Equal(t, http.StatusOK, rec.Code)

	var settings model.PortalSetting
	require.NoError(t, db.First(&settings).Error)
	assert.Equal(t, "E-PROJECT", settings.SiteName)
	assert.Equal(t, "XOF", settings.PlanCurrency)
	assert.Equal(t, 7, settings.ExpiryNoticeDays)
	assert.True(t, settings.PlanStarterPrice.Equal(decimal.NewFromInt(10000)))
	assert.True(t, subSvc.Enforced(&settings))

	var trail model.AuditLog
	require.NoError(t, db.Where("type_event = ?", "platform_settings_update").First(&trail).Error)
	assert.Equal(t, uint(900), trail.UserID)
}

func TestITGetSettingsReturnsSingleton(t *testing.T) {
	setupHandlerTest(t)

	c, rec := jsonRequest(t, http.MethodGet, "/admin/it/settings", "")
	authz.StoreActor(c, platformAdminActor())
	require.NoError(t, ITGetSettings(c))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "plan_starter_price")
}

func TestITActivateSubscriptionRecordsAudit(t *testing.T) {
	db := setupHandlerTest(t)
	owner, _ := seedLoginFixture(t, db, true, subscription.StatusPendingReview)

	var sub model.AgencySubscription
	require.NoError(t, db.Where("owner_user_id = ?", owner.ID).First(&sub).Error)

	c, rec := jsonRequest(t, http.MethodPost,
		"/admin/it/subscriptions/"+fmt.Sprint(sub.ID)+"/activate", "")
	c.SetParamNames("id")
	c.SetParamValues(fmt.Sprint(sub.ID))
	authz.StoreActor(c, platformAdminActor())
	require.NoError(t, ITActivateSubscription(c))
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, db.First(&sub, sub.ID).Error)
	assert.Equal(t, subscription.StatusActive, sub.Status)

	var trail model.AuditLog
	require.NoError(t, db.Where("type_event = ?", "subscription_activate").First(&trail).Error)
	require.NotNil(t, trail.BranchID)
	assert.Equal(t, sub.BranchID, *trail.BranchID)
}
