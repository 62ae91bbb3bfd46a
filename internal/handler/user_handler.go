package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/pkg/database"
	"github.com/EUDYDEV/eproject-saas/pkg/logger"
)

// UserRequest defines the structure for staff account creation/update requests
type UserRequest struct {
	Username           string `json:"username" validate:"required,min=3,max=80"`
	Email              string `json:"email" validate:"required,email"`
	Password           string `json:"password" validate:"omitempty,min=8"`
	DisplayName        string `json:"display_name" validate:"max=120"`
	Phone              string `json:"phone" validate:"max=40"`
	Role               string `json:"role" validate:"required"`
	BranchID           *uint  `json:"branch_id"`
	IsActive           *bool  `json:"is_active"`
	MustChangePassword bool   `json:"must_change_password"`
}

func validManagedRole(role authz.Role) bool {
	switch role {
	case authz.RoleFounder, authz.RoleAdminBranch, authz.RoleEmployee, authz.RoleIT:
		return true
	}
	return false
}

// assignableRole checks who may hand out which role: the platform super admin
// assigns anything, founders assign branch staff roles, branch admins only
// hire employees.
func assignableRole(actor authz.Actor, role authz.Role) bool {
	if actor.IsSuperAdmin() {
		return true
	}
	switch actor.Role {
	case authz.RoleFounder:
		return role == authz.RoleAdminBranch || role == authz.RoleEmployee
	case authz.RoleAdminBranch:
		return role == authz.RoleEmployee
	}
	return false
}

// canManageUser mirrors the management hierarchy downward: branch admins
// manage the employees of their own branch, founders manage branch staff
// inside their scope, the platform super admin manages everyone.
func canManageUser(actor authz.Actor, target *model.User) bool {
	if actor.IsSuperAdmin() {
		return true
	}
	targetRole := authz.NormalizeRole(target.Role)
	switch actor.Role {
	case authz.RoleFounder:
		if targetRole != authz.RoleAdminBranch && targetRole != authz.RoleEmployee {
			return false
		}
		return resolver.CanAccessBranch(target.BranchID, actor)
	case authz.RoleAdminBranch:
		if targetRole != authz.RoleEmployee {
			return false
		}
		return actor.BranchID != nil && target.BranchID != nil && *actor.BranchID == *target.BranchID
	}
	return false
}

// staffBranchFor decides which branch a managed account lands on. Platform
// roles carry no branch; branch admins are locked to their own branch;
// founders pick any branch inside their scope.
func staffBranchFor(actor authz.Actor, role authz.Role, requested *uint) (*uint, bool) {
	if role == authz.RoleFounder || role == authz.RoleIT {
		return nil, true
	}
	if !actor.IsSuperAdmin() && actor.Role == authz.RoleAdminBranch {
		return actor.BranchID, actor.BranchID != nil
	}
	branchID := requested
	if branchID == nil {
		branchID = actor.BranchID
	}
	if branchID == nil || !resolver.CanAccessBranch(branchID, actor) {
		return nil, false
	}
	return branchID, true
}

// syncMembership keeps membership rows aligned with the account's branch.
// Branch-scoped roles work on exactly one branch at a time.
func syncMembership(tx *gorm.DB, user *model.User, role authz.Role, branchID uint) error {
	memberRole := "STAFF"
	if role == authz.RoleFounder {
		memberRole = "OWNER"
	}

	var existing model.Membership
	err := tx.Where("user_id = ? AND branch_id = ?", user.ID, branchID).First(&existing).Error
	switch {
	case err == nil:
		if memberRole == "OWNER" && existing.Role != "OWNER" {
			if err := tx.Model(&existing).Update("role", "OWNER").Error; err != nil {
				return err
			}
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := tx.Create(&model.Membership{UserID: user.ID, BranchID: branchID, Role: memberRole}).Error; err != nil {
			return err
		}
	default:
		return err
	}

	if role.IsBranchScoped() {
		return tx.Where("user_id = ? AND branch_id <> ?", user.ID, branchID).
			Delete(&model.Membership{}).Error
	}
	return nil
}

// ListUsers returns the staff accounts inside the actor's visibility scope.
// Platform accounts carry no branch and only surface for the super admin.
func ListUsers(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	query := database.GetDB().Model(&model.User{})
	if actor.IsSuperAdmin() {
		if branchID := c.QueryParam("branch_id"); branchID != "" {
			query = query.Where("branch_id = ?", branchID)
		}
	} else {
		ids := resolver.VisibleBranchIDs(actor)
		if len(ids) == 0 {
			return c.JSON(http.StatusOK, []model.User{})
		}
		query = query.Where("branch_id IN ?", ids)
	}

	if search := strings.TrimSpace(c.QueryParam("q")); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where(
			"LOWER(username) LIKE ? OR LOWER(email) LIKE ? OR LOWER(display_name) LIKE ?",
			like, like, like)
	}

	var users []model.User
	if err := query.Order("role ASC, username ASC").Find(&users).Error; err != nil {
		log.Error("Failed to list users", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to retrieve users"})
	}
	return c.JSON(http.StatusOK, users)
}

// CreateUser opens a staff account on a branch the actor controls.
func CreateUser(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var req UserRequest
	if err := c.Bind(&req); err != nil {
		log.Error("Invalid request data", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": err.Error()})
	}
	if req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "password is required"})
	}

	role := authz.NormalizeRole(strings.ToUpper(strings.TrimSpace(req.Role)))
	if !validManagedRole(role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
	}
	if !assignableRole(actor, role) {
		log.Warn("Role assignment denied",
			zap.Uint("user_id", actor.UserID),
			zap.String("requested_role", string(role)))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you cannot assign this role"})
	}
	branchID, ok := staffBranchFor(actor, role, req.BranchID)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "select a branch inside your scope"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	var existing model.User
	if err := database.GetDB().Where("email = ? OR username = ?", email, username).First(&existing).Error; err == nil {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email or username already in use"})
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		log.Error("Failed to hash password", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create user"})
	}

	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}
	user := model.User{
		BranchID:           branchID,
		Username:           username,
		Email:              email,
		DisplayName:        req.DisplayName,
		Phone:              req.Phone,
		PasswordHash:       string(hashed),
		Role:               string(role),
		IsActive:           isActive,
		MustChangePassword: req.MustChangePassword,
	}
	err = database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&user).Error; err != nil {
			return err
		}
		if branchID != nil {
			return syncMembership(tx, &user, role, *branchID)
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to create user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to create user"})
	}

	log.Info("User created",
		zap.Uint("created_user_id", user.ID),
		zap.String("role", string(role)),
		zap.Uint("created_by", actor.UserID))
	recordAudit(c, actor.UserID, "user_create", "Utilisateur "+user.Username+" créé", user.BranchID, "user_create")
	return c.JSON(http.StatusCreated, user)
}

// UpdateUser edits a managed staff account, moving its membership when the
// branch changes.
func UpdateUser(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var user model.User
	if err := database.GetDB().First(&user, c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if !canManageUser(actor, &user) {
		log.Warn("User management denied",
			zap.Uint("user_id", actor.UserID),
			zap.Uint("target_user_id", user.ID))
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you cannot manage this account"})
	}

	var req UserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid request data"})
	}
	if err := validate.Struct(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "details": err.Error()})
	}

	role := authz.NormalizeRole(strings.ToUpper(strings.TrimSpace(req.Role)))
	if !validManagedRole(role) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown role"})
	}
	if !assignableRole(actor, role) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you cannot assign this role"})
	}
	branchID, ok := staffBranchFor(actor, role, req.BranchID)
	if !ok {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "select a branch inside your scope"})
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	username := strings.TrimSpace(req.Username)
	var conflicts int64
	database.GetDB().Model(&model.User{}).
		Where("(email = ? OR username = ?) AND id <> ?", email, username, user.ID).
		Count(&conflicts)
	if conflicts > 0 {
		return c.JSON(http.StatusConflict, echo.Map{"error": "email or username already in use"})
	}

	oldBranchID := user.BranchID
	user.Username = username
	user.Email = email
	user.DisplayName = req.DisplayName
	user.Phone = req.Phone
	user.Role = string(role)
	user.BranchID = branchID
	if req.IsActive != nil {
		user.IsActive = *req.IsActive
	}
	user.MustChangePassword = req.MustChangePassword
	if req.Password != "" {
		hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			log.Error("Failed to hash password", zap.Error(err))
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update user"})
		}
		user.PasswordHash = string(hashed)
	}

	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(&user).Error; err != nil {
			return err
		}
		if oldBranchID != nil && (branchID == nil || *oldBranchID != *branchID) {
			if err := tx.Where("user_id = ? AND branch_id = ?", user.ID, *oldBranchID).
				Delete(&model.Membership{}).Error; err != nil {
				return err
			}
		}
		if branchID != nil {
			return syncMembership(tx, &user, role, *branchID)
		}
		return nil
	})
	if err != nil {
		log.Error("Failed to update user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to update user"})
	}

	log.Info("User updated",
		zap.Uint("target_user_id", user.ID),
		zap.Uint("updated_by", actor.UserID))
	recordAudit(c, actor.UserID, "user_update", "Utilisateur "+user.Username+" modifié", user.BranchID, "user_update")
	return c.JSON(http.StatusOK, user)
}

// DeleteUser removes a managed staff account and its memberships.
func DeleteUser(c echo.Context) error {
	log := logger.FromEcho(c)
	actor := authz.ActorFromEcho(c)

	var user model.User
	if err := database.GetDB().First(&user, c.Param("id")).Error; err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "user not found"})
	}
	if user.ID == actor.UserID {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "you cannot delete your own account"})
	}
	if !canManageUser(actor, &user) {
		return c.JSON(http.StatusForbidden, echo.Map{"error": "you cannot manage this account"})
	}

	branchID := user.BranchID
	username := user.Username
	err := database.GetDB().Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", user.ID).Delete(&model.Membership{}).Error; err != nil {
			return err
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		log.Error("Failed to delete user", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to delete user"})
	}

	log.Info("User deleted",
		zap.Uint("target_user_id", user.ID),
		zap.Uint("deleted_by", actor.UserID))
	recordAudit(c, actor.UserID, "user_delete", "Utilisateur "+username+" supprimé", branchID, "user_delete")
	return c.JSON(http.StatusOK, echo.Map{"message": "user deleted"})
}
