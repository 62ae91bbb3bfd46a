package handler

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/internal/subscription"
	"github.com/EUDYDEV/eproject-saas/pkg/database"
	"github.com/EUDYDEV/eproject-saas/pkg/logger"
)

// ownSubscription loads or provisions the actor's billable subscription.
// Founders from before the billing era may have no branch, membership or
// subscription rows at all; this repairs all three on first visit.
func ownSubscription(c echo.Context, actor authz.Actor) (*model.User, *model.AgencySubscription, error) {
	log := logger.FromEcho(c)

	var user model.User
	if err := database.GetDB().First(&user, actor.UserID).Error; err != nil {
		return nil, nil, err
	}

	if actor.Role != authz.RoleFounder && !subSvc.IsOwner(user.ID) {
		return &user, nil, echo.NewHTTPError(http.StatusForbidden, "only the subscription owner can manage billing")
	}

	if sub := subSvc.ForUser(&user); sub != nil {
		return &user, sub, nil
	}

	settings, err := subSvc.Settings()
	if err != nil {
		return &user, nil, err
	}

	var sub model.AgencySubscription
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		branchID := user.BranchID
		if branchID == nil {
			name := user.DisplayName
			if name == "" {
				name = user.Username
			}
			branch := model.Branch{
				Name:        name,
				Slug:        uniqueSlug(tx, slugify(name)),
				CountryCode: "XX",
			}
			if err := tx.Create(&branch).Error; err != nil {
				return err
			}
			branchID = &branch.ID
			if err := tx.Model(&model.User{}).Where("id = ?", user.ID).Update("branch_id", branch.ID).Error; err != nil {
				return err
			}
			user.BranchID = branchID
		}

		var membership model.Membership
		if err := tx.Where("user_id = ? AND branch_id = ?", user.ID, *branchID).First(&membership).Error; errors.Is(err, gorm.ErrRecordNotFound) {
			if err := tx.Create(&model.Membership{
				UserID:   user.ID,
				BranchID: *branchID,
				Role:     "OWNER",
			}).Error; err != nil {
				return err
			}
		}

		// Another owner's subscription may already claim this branch.
		if err := tx.Where("branch_id = ?", *branchID).First(&sub).Error; err == nil {
			return nil
		}

		amount, currency := subscription.PriceForPlan(settings, subscription.PlanStarter)
		sub = model.AgencySubscription{
			BranchID:    *branchID,
			OwnerUserID: user.ID,
			PlanCode:    subscription.PlanStarter,
			Amount:      amount,
			Currency:    currency,
			Status:      subscription.StatusPending,
		}
		return tx.Create(&sub).Error
	})
	if err != nil {
		return &user, nil, err
	}

	log.Info("Provisioned missing subscription",
		zap.Uint("user_id", user.ID),
		zap.Uint("subscription_id", sub.ID))
	return &user, &sub, nil
}

// GetSubscription is the owner's billing status page: the governing
// subscription, the plan catalog and the payment links.
func GetSubscription(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	user, sub, err := ownSubscription(c, actor)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return err
		}
		log.Error("Failed to load subscription", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load subscription"})
	}

	settings, err := subSvc.Settings()
	if err != nil {
		log.Error("Portal settings unavailable", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load subscription"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"subscription": sub,
		"is_billable":  subSvc.IsBillable(sub),
		"enforced":     subSvc.Enforced(settings),
		"active":       subSvc.HasActive(user, time.Now().UTC()),
		"plans":        subscription.PlanCatalog(settings),
		"payment_links": echo.Map{
			"default":    settings.PaymentLink,
			"starter":    settings.PaymentLinkStarter,
			"pro":        settings.PaymentLinkPro,
			"enterprise": settings.PaymentLinkEnterprise,
		},
	})
}

// PostSubscription handles the owner's self-service actions:
// mark_payment_sent declares an out-of-band payment for review, change_plan
// switches the plan while the subscription is not yet active.
func PostSubscription(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var req struct {
		Action           string `json:"action" validate:"required,oneof=mark_payment_sent change_plan"`
		PaymentReference string `json:"payment_reference"`
		PlanCode         string `json:"plan_code"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": err.Error()})
	}

	_, sub, err := ownSubscription(c, actor)
	if err != nil {
		var httpErr *echo.HTTPError
		if errors.As(err, &httpErr) {
			return err
		}
		log.Error("Failed to load subscription", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to load subscription"})
	}

	now := time.Now().UTC()
	switch req.Action {
	case "mark_payment_sent":
		if err := subSvc.MarkPaymentSent(sub, strings.TrimSpace(req.PaymentReference), now); err != nil {
			if errors.Is(err, subscription.ErrAlreadyActive) {
				return c.JSON(http.StatusConflict, echo.Map{"error": "subscription is already active"})
			}
			log.Error("Failed to mark payment sent", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to record payment"})
		}
		return c.JSON(http.StatusOK, echo.Map{
			"message":      "payment recorded, awaiting review",
			"subscription": sub,
		})

	case "change_plan":
		if sub.Status == subscription.StatusActive {
			return c.JSON(http.StatusConflict, echo.Map{"error": "cannot change plan while the subscription is active"})
		}
		settings, err := subSvc.Settings()
		if err != nil {
			log.Error("Portal settings unavailable", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to change plan"})
		}
		planCode := subscription.NormalizePlanCode(req.PlanCode)
		amount, currency := subscription.PriceForPlan(settings, planCode)
		updates := map[string]interface{}{
			"plan_code": planCode,
			"amount":    amount,
			"currency":  currency,
		}
		if err := database.GetDB().Model(sub).Updates(updates).Error; err != nil {
			log.Error("Failed to change plan", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to change plan"})
		}
		log.Info("Plan changed",
			zap.Uint("subscription_id", sub.ID),
			zap.String("plan", planCode))
		return c.JSON(http.StatusOK, echo.Map{
			"message":      "plan changed",
			"subscription": sub,
		})
	}

	return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown action"})
}
