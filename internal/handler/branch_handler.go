package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/internal/subscription"
	"github.com/EUDYDEV/eproject-saas/pkg/database"
	"github.com/EUDYDEV/eproject-saas/pkg/logger"
)

// BranchRequest defines the structure for branch creation requests
type BranchRequest struct {
	Name        string `json:"name" validate:"required,min=2,max=120"`
	CountryCode string `json:"country_code" validate:"required,min=2,max=10"`
	City        string `json:"city" validate:"max=120"`
	Address     string `json:"address" validate:"max=255"`
	Phone       string `json:"phone" validate:"max=80"`
	Email       string `json:"email" validate:"omitempty,email"`
	Timezone    string `json:"timezone" validate:"max=80"`
}

// ListBranches returns the branches inside the actor's visibility scope.
func ListBranches(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	ids := resolver.VisibleBranchIDs(actor)
	if ids == nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
	}

	var branches []model.Branch
	if err := database.GetDB().Where("id IN ?", ids).Order("name ASC").Find(&branches).Error; err != nil {
		log.Error("Failed to list branches", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve branches"})
	}

	return c.JSON(http.StatusOK, branches)
}

// GetBranch returns one branch. Scope is enforced by the route guard.
func GetBranch(c echo.Context) error {
	var branch model.Branch
	if err := database.GetDB().First(&branch, c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "branch not found"})
	}
	return c.JSON(http.StatusOK, branch)
}

// CreateBranch opens a new agency location for a founder. The first branch
// comes with signup; every additional one needs the enterprise plan. The new
// branch joins the founder's enterprise group by inheriting their billable
// subscription as a non-billable subsidiary copy.
func CreateBranch(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var req BranchRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": err.Error()})
	}

	var user model.User
	if err := database.GetDB().First(&user, actor.UserID).Error; err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid session"})
	}

	var ownedCount int64
	database.GetDB().Model(&model.AgencySubscription{}).
		Where("owner_user_id = ?", user.ID).Count(&ownedCount)
	if ownedCount > 0 && !subSvc.PlanAllows(&user, subscription.PlanEnterprise) {
		log.Info("Branch creation blocked by plan",
			zap.Uint("user_id", user.ID))
		return c.JSON(http.StatusForbidden, echo.Map{
			"error":         "additional branches require the enterprise plan",
			"required_plan": subscription.PlanEnterprise,
		})
	}

	billable := subSvc.OwnerBillable(user.ID)

	var branch model.Branch
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		branch = model.Branch{
			Name:        req.Name,
			Slug:        uniqueSlug(tx, slugify(req.Name)),
			CountryCode: strings.ToUpper(req.CountryCode),
			City:        req.City,
			Address:     req.Address,
			Phone:       req.Phone,
			Email:       req.Email,
			Timezone:    req.Timezone,
		}
		if err := tx.Create(&branch).Error; err != nil {
			return err
		}

		if err := tx.Create(&model.Membership{
			UserID:   user.ID,
			BranchID: branch.ID,
			Role:     "OWNER",
		}).Error; err != nil {
			return err
		}

		sub := model.AgencySubscription{
			BranchID:    branch.ID,
			OwnerUserID: user.ID,
			Status:      subscription.StatusPending,
			PlanCode:    subscription.PlanStarter,
		}
		if billable != nil {
			// Subsidiary branches ride on the owner's billable subscription.
			sub.PlanCode = billable.PlanCode
			sub.Amount = billable.Amount
			sub.Currency = billable.Currency
			sub.Status = billable.Status
			sub.StartsAt = billable.StartsAt
			sub.EndsAt = billable.EndsAt
			sub.PaidAt = billable.PaidAt
		}
		return tx.Create(&sub).Error
	})
	if err != nil {
		log.Error("Failed to create branch", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create branch"})
	}

	log.Info("Branch created",
		zap.Uint("branch_id", branch.ID),
		zap.Uint("owner_user_id", user.ID))
	recordAudit(c, user.ID, "branch_create", "Branche "+branch.Name+" créée", &branch.ID, "branch_create")
	return c.JSON(http.StatusCreated, branch)
}
