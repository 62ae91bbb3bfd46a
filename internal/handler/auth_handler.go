package handler

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/internal/subscription"
	"github.com/EUDYDEV/eproject-saas/pkg/database"
	"github.com/EUDYDEV/eproject-saas/pkg/jwtutil"
	"github.com/EUDYDEV/eproject-saas/pkg/logger"
	"github.com/EUDYDEV/eproject-saas/prometheus"
)

func Login(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.LoginCounter.Inc()

	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse login request", zap.Error(err))
		prometheus.RecordAuthError("invalid_request")
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	defer prometheus.TrackDBOperation("query")(time.Now())
	var user model.User
	result := database.GetDB().Where("email = ? OR username = ?", req.Email, req.Email).First(&user)
	if result.Error != nil {
		log.Warn("User not found", zap.String("email", req.Email))
		prometheus.RecordAuthError("user_not_found")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		log.Warn("Invalid password", zap.String("email", req.Email))
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}

	if !user.IsActive {
		log.Warn("Inactive account login attempt", zap.Uint("user_id", user.ID))
		prometheus.RecordAuthError("inactive_account")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "account is disabled"})
	}

	role := authz.NormalizeRole(user.Role)
	platformRole := authz.NormalizePlatformRole(user.PlatformRole)
	isPlatform := platformRole == authz.SuperAdminPlatform || role == authz.RoleIT

	// Login-time billing gate. A forced password change takes priority: the
	// user must be able to reach the change-password endpoint first.
	var redirect string
	if !isPlatform && !user.MustChangePassword {
		now := time.Now().UTC()
		if !subSvc.HasActive(&user, now) {
			if role == authz.RoleFounder || subSvc.IsOwner(user.ID) {
				redirect = "/auth/subscription"
			} else {
				log.Info("Staff login blocked by expired subscription", zap.Uint("user_id", user.ID))
				prometheus.SubscriptionBlockCounter.WithLabelValues("login_denied").Inc()
				return c.JSON(http.StatusForbidden, echo.Map{
					"error": "your agency's subscription has expired, contact the subscription owner",
				})
			}
		}
	}

	token, err := jwtutil.GenerateToken(jwtutil.SessionClaims{
		Email:        user.Email,
		UserID:       user.ID,
		Username:     user.Username,
		Role:         string(role),
		PlatformRole: platformRole,
		BranchID:     user.BranchID,
	})
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to generate token"})
	}

	log.Info("User logged in",
		zap.Uint("user_id", user.ID),
		zap.String("role", string(role)))
	recordAudit(c, user.ID, "login", "Connexion utilisateur", user.BranchID, "login")

	resp := echo.Map{
		"token":                token,
		"user":                 user,
		"must_change_password": user.MustChangePassword,
	}
	if redirect != "" {
		resp["redirect"] = redirect
	}
	return c.JSON(http.StatusOK, resp)
}

var slugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	slug := strings.Trim(slugCleaner.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if slug == "" {
		slug = "agency"
	}
	return slug
}

// uniqueSlug appends a numeric suffix until the slug is free.
func uniqueSlug(tx *gorm.DB, base string) string {
	slug := base
	for i := 2; ; i++ {
		var count int64
		tx.Model(&model.Branch{}).Where("slug = ?", slug).Count(&count)
		if count == 0 {
			return slug
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
}

// SignupAgency creates a founder account, their first branch, the OWNER
// membership and the agency subscription in one transaction. In free mode the
// subscription starts active; otherwise it waits for payment.
func SignupAgency(c echo.Context) error {
	log := logger.FromEcho(c)
	prometheus.SignupCounter.Inc()

	var req struct {
		AgencyName  string `json:"agency_name" validate:"required,min=2,max=120"`
		CountryCode string `json:"country_code" validate:"required,min=2,max=10"`
		City        string `json:"city" validate:"max=120"`
		Username    string `json:"username" validate:"required,min=3,max=80"`
		Email       string `json:"email" validate:"required,email"`
		Password    string `json:"password" validate:"required,min=8"`
		DisplayName string `json:"display_name" validate:"max=120"`
		Phone       string `json:"phone" validate:"max=40"`
		PlanCode    string `json:"plan_code"`
	}
	if err := c.Bind(&req); err != nil {
		log.Error("Failed to parse signup request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": err.Error()})
	}

	var existing model.User
	if err := database.GetDB().Where("email = ? OR username = ?", req.Email, req.Username).First(&existing).Error; err == nil {
		prometheus.RecordAuthError("duplicate_account")
		return c.JSON(http.StatusConflict, echo.Map{"error": "email or username already in use"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create account"})
	}

	settings, err := subSvc.Settings()
	if err != nil {
		log.Error("Portal settings unavailable", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create account"})
	}
	planCode := subscription.NormalizePlanCode(req.PlanCode)
	amount, currency := subscription.PriceForPlan(settings, planCode)

	now := time.Now().UTC()
	var user model.User
	var branch model.Branch
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		branch = model.Branch{
			Name:        req.AgencyName,
			Slug:        uniqueSlug(tx, slugify(req.AgencyName)),
			CountryCode: strings.ToUpper(req.CountryCode),
			City:        req.City,
		}
		if err := tx.Create(&branch).Error; err != nil {
			return err
		}

		user = model.User{
			BranchID:     &branch.ID,
			Username:     req.Username,
			Email:        strings.ToLower(req.Email),
			DisplayName:  req.DisplayName,
			Phone:        req.Phone,
			PasswordHash: string(hashed),
			Role:         string(authz.RoleFounder),
		}
		if err := tx.Create(&user).Error; err != nil {
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
			PlanCode:    planCode,
			Amount:      amount,
			Currency:    currency,
			Status:      subscription.StatusPending,
		}
		if !subSvc.Enforced(settings) {
			sub.Status = subscription.StatusActive
			sub.StartsAt = &now
			sub.PaidAt = &now
		}
		return tx.Create(&sub).Error
	})
	if err != nil {
		log.Error("Agency signup failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create account"})
	}

	token, err := jwtutil.GenerateToken(jwtutil.SessionClaims{
		Email:    user.Email,
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(authz.RoleFounder),
		BranchID: user.BranchID,
	})
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to generate token"})
	}

	log.Info("Agency created",
		zap.Uint("user_id", user.ID),
		zap.Uint("branch_id", branch.ID),
		zap.String("plan", planCode))
	recordAudit(c, user.ID, "agency_signup", "Nouvelle agence: "+req.AgencyName, &branch.ID, "agency_signup")

	return c.JSON(http.StatusCreated, echo.Map{
		"message": "agency created",
		"token":   token,
		"user":    user,
		"branch":  branch,
	})
}

func Profile(c echo.Context) error {
	actor := authz.ActorFromEcho(c)

	var user model.User
	if err := database.GetDB().Preload("Branch").Preload("Memberships.Branch").First(&user, actor.UserID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"user":     user,
		"is_owner": subSvc.IsOwner(user.ID),
	})
}

func ChangePassword(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var req struct {
		CurrentPassword string `json:"current_password" validate:"required"`
		NewPassword     string `json:"new_password" validate:"required,min=8"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": err.Error()})
	}

	var user model.User
	if err := database.GetDB().First(&user, actor.UserID).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.CurrentPassword)); err != nil {
		prometheus.RecordAuthError("invalid_password")
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "current password is incorrect"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to change password"})
	}

	updates := map[string]interface{}{
		"password_hash":        string(hashed),
		"must_change_password": false,
	}
	if err := database.GetDB().Model(&user).Updates(updates).Error; err != nil {
		log.Error("Failed to update password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to change password"})
	}

	log.Info("Password changed", zap.Uint("user_id", user.ID))
	recordAudit(c, user.ID, "password_changed", "Changement mot de passe", user.BranchID, "password_change")
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}

// SetITScope lets the platform super admin focus the whole UI on a single
// branch, or clear the focus. The drill-down state rides in the session
// token, so a fresh token is issued.
func SetITScope(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var req struct {
		BranchID *uint  `json:"branch_id"`
		UIMode   string `json:"ui_mode"`
	}
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request"})
	}

	if req.BranchID != nil {
		var branch model.Branch
		if err := database.GetDB().First(&branch, *req.BranchID).Error; err != nil {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "branch not found"})
		}
	}

	token, err := jwtutil.GenerateToken(jwtutil.SessionClaims{
		Email:         actor.Email,
		UserID:        actor.UserID,
		Username:      actor.Username,
		Role:          string(actor.Role),
		PlatformRole:  actor.PlatformRole,
		BranchID:      actor.BranchID,
		ScopeBranchID: req.BranchID,
		UIMode:        req.UIMode,
	})
	if err != nil {
		log.Error("Failed to generate token", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to generate token"})
	}

	log.Info("Platform scope changed",
		zap.Uint("user_id", actor.UserID),
		zap.Any("scope_branch_id", req.BranchID))

	return c.JSON(http.StatusOK, echo.Map{
		"token":           token,
		"scope_branch_id": req.BranchID,
		"ui_mode":         req.UIMode,
	})
}
