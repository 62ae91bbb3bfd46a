package handler

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/pkg/database"
	"github.com/EUDYDEV/eproject-saas/pkg/logger"
)

// ITListSubscriptions is the platform console's billing view: every
// subscription with its branch and owner, searchable by agency or owner.
func ITListSubscriptions(c echo.Context) error {
	log := logger.FromEcho(c)

	query := database.GetDB().Model(&model.AgencySubscription{}).
		Preload("Branch").
		Preload("OwnerUser")

	if status := c.QueryParam("status"); status != "" {
		query = query.Where("status = ?", status)
	}
	if search := strings.TrimSpace(c.QueryParam("q")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.
			Joins("JOIN branches ON branches.id = agency_subscriptions.branch_id").
			Joins("JOIN users ON users.id = agency_subscriptions.owner_user_id").
			Where("LOWER(branches.name) LIKE ? OR LOWER(users.email) LIKE ? OR LOWER(users.username) LIKE ?",
				like, like, like)
	}

	var subs []model.AgencySubscription
	if err := query.Order("agency_subscriptions.updated_at DESC").Find(&subs).Error; err != nil {
		log.Error("Failed to list subscriptions", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve subscriptions"})
	}

	entries := make([]echo.Map, 0, len(subs))
	for i := range subs {
		entries = append(entries, echo.Map{
			"subscription": subs[i],
			"is_billable":  subSvc.IsBillable(&subs[i]),
		})
	}
	return c.JSON(http.StatusOK, entries)
}

// itBillableSubscription loads the subscription from the route param and
// refuses to operate on subsidiary copies: only the billable row drives the
// enterprise group's billing state.
func itBillableSubscription(c echo.Context) (*model.AgencySubscription, error) {
	var sub model.AgencySubscription
	if err := database.GetDB().First(&sub, c.Param("id")).Error; err != nil {
		return nil, echo.NewHTTPError(http.StatusNotFound, "subscription not found")
	}
	if !subSvc.IsBillable(&sub) {
		return nil, echo.NewHTTPError(http.StatusBadRequest,
			"this subscription is inherited from the owner's billable branch, operate on that one")
	}
	return &sub, nil
}

// ITActivateSubscription confirms a reviewed payment and opens (or extends)
// the paid period.
func ITActivateSubscription(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	sub, err := itBillableSubscription(c)
	if err != nil {
		return err
	}

	if err := subSvc.Activate(sub, &actor.UserID, time.Now().UTC()); err != nil {
		log.Error("Failed to activate subscription",
			zap.Uint("subscription_id", sub.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to activate subscription"})
	}

	log.Info("Subscription activated",
		zap.Uint("subscription_id", sub.ID),
		zap.Uint("activated_by", actor.UserID))
	recordAudit(c, actor.UserID, "subscription_activate",
		fmt.Sprintf("Abonnement activé pour branche #%d", sub.BranchID), &sub.BranchID, "subscription_activate")
	return c.JSON(http.StatusOK, echo.Map{
		"message":      "subscription activated",
		"subscription": sub,
	})
}

// ITExpireSubscription cuts a subscription off immediately.
func ITExpireSubscription(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	sub, err := itBillableSubscription(c)
	if err != nil {
		return err
	}

	if err := subSvc.Expire(sub, &actor.UserID, time.Now().UTC()); err != nil {
		log.Error("Failed to expire subscription",
			zap.Uint("subscription_id", sub.ID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to expire subscription"})
	}

	log.Info("Subscription expired",
		zap.Uint("subscription_id", sub.ID),
		zap.Uint("expired_by", actor.UserID))
	recordAudit(c, actor.UserID, "subscription_expire",
		fmt.Sprintf("Abonnement expiré pour branche #%d", sub.BranchID), &sub.BranchID, "subscription_expire")
	return c.JSON(http.StatusOK, echo.Map{
		"message":      "subscription expired",
		"subscription": sub,
	})
}

// ITGetSettings returns the platform settings singleton.
func ITGetSettings(c echo.Context) error {
	settings, err := subSvc.Settings()
	if err != nil {
		logger.FromEcho(c).Error("Failed to load platform settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve settings"})
	}
	return c.JSON(http.StatusOK, settings)
}

// PlatformSettingsRequest defines the structure for platform settings updates.
// The three plan prices double as the billing switch: all-zero means free mode.
type PlatformSettingsRequest struct {
	SiteName              string          `json:"site_name" validate:"max=120"`
	SiteTagline           string          `json:"site_tagline" validate:"max=255"`
	SiteFooterText        string          `json:"site_footer_text" validate:"max=255"`
	SiteLogoURL           string          `json:"site_logo_url" validate:"max=255"`
	PlanStarterPrice      decimal.Decimal `json:"plan_starter_price"`
	PlanProPrice          decimal.Decimal `json:"plan_pro_price"`
	PlanEnterprisePrice   decimal.Decimal `json:"plan_enterprise_price"`
	PlanCurrency          string          `json:"plan_currency" validate:"max=10"`
	PaymentLink           string          `json:"payment_link" validate:"max=500"`
	PaymentLinkStarter    string          `json:"payment_link_starter" validate:"max=500"`
	PaymentLinkPro        string          `json:"payment_link_pro" validate:"max=500"`
	PaymentLinkEnterprise string          `json:"payment_link_enterprise" validate:"max=500"`
	BillingSenderEmail    string          `json:"billing_sender_email" validate:"omitempty,email"`
	ExpiryNoticeDays      int             `json:"expiry_notice_days"`
}

// ITUpdateSettings writes the platform settings singleton, including the plan
// prices that drive billing enforcement.
func ITUpdateSettings(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	settings, err := subSvc.Settings()
	if err != nil {
		log.Error("Failed to load platform settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve settings"})
	}

	var req PlatformSettingsRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": err.Error()})
	}

	settings.SiteName = strings.TrimSpace(req.SiteName)
	if settings.SiteName == "" {
		settings.SiteName = "E-PROJECT"
	}
	settings.SiteTagline = strings.TrimSpace(req.SiteTagline)
	settings.SiteFooterText = strings.TrimSpace(req.SiteFooterText)
	settings.SiteLogoURL = strings.TrimSpace(req.SiteLogoURL)
	settings.PlanStarterPrice = req.PlanStarterPrice
	settings.PlanProPrice = req.PlanProPrice
	settings.PlanEnterprisePrice = req.PlanEnterprisePrice
	settings.PlanCurrency = strings.ToUpper(strings.TrimSpace(req.PlanCurrency))
	if settings.PlanCurrency == "" {
		settings.PlanCurrency = "XOF"
	}
	settings.PaymentLink = strings.TrimSpace(req.PaymentLink)
	settings.PaymentLinkStarter = strings.TrimSpace(req.PaymentLinkStarter)
	settings.PaymentLinkPro = strings.TrimSpace(req.PaymentLinkPro)
	settings.PaymentLinkEnterprise = strings.TrimSpace(req.PaymentLinkEnterprise)
	settings.BillingSenderEmail = strings.ToLower(strings.TrimSpace(req.BillingSenderEmail))
	if settings.BillingSenderEmail == "" {
		settings.BillingSenderEmail = "eudyproject@gmail.com"
	}
	settings.ExpiryNoticeDays = req.ExpiryNoticeDays
	if settings.ExpiryNoticeDays <= 0 {
		settings.ExpiryNoticeDays = 7
	}

	if err := database.GetDB().Save(settings).Error; err != nil {
		log.Error("Failed to save platform settings", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to save settings"})
	}

	log.Info("Platform settings updated", zap.Uint("user_id", actor.UserID))
	recordAudit(c, actor.UserID, "platform_settings_update", "Paramètres plateforme modifiés", actor.BranchID, "platform_settings_update")
	return c.JSON(http.StatusOK, settings)
}
