package main

import (
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/pkg/config"
	"github.com/EUDYDEV/eproject-saas/pkg/database"
)

// bootstrapPlatformAdmin creates or promotes exactly one platform super-admin
// from the bootstrap env vars. Runs at every boot; every failure is a warning
// because a missing super-admin must never keep the service down.
func bootstrapPlatformAdmin(bc *config.BootstrapConfig, log *zap.Logger) {
	db := database.GetDB()

	var count int64
	if err := db.Model(&model.User{}).
		Where("platform_role = ?", authz.SuperAdminPlatform).
		Count(&count).Error; err != nil {
		log.Warn("Platform admin bootstrap: count query failed", zap.Error(err))
		return
	}
	if count > 0 {
		return
	}

	if bc.ITEmail == "" || bc.ITUsername == "" || bc.ITPassword == "" {
		log.Warn("No platform super-admin exists and bootstrap env vars are not set")
		return
	}

	var existing model.User
	err := db.Where("email = ?", strings.ToLower(bc.ITEmail)).First(&existing).Error
	if err == nil {
		updates := map[string]interface{}{
			"platform_role": authz.SuperAdminPlatform,
			"role":          string(authz.RoleIT),
		}
		if err := db.Model(&existing).Updates(updates).Error; err != nil {
			log.Warn("Platform admin bootstrap: promotion failed", zap.Error(err))
			return
		}
		log.Info("Promoted existing account to platform super-admin",
			zap.Uint("user_id", existing.ID))
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Warn("Platform admin bootstrap: lookup failed", zap.Error(err))
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(bc.ITPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Warn("Platform admin bootstrap: hashing failed", zap.Error(err))
		return
	}
	admin := model.User{
		Username:           bc.ITUsername,
		Email:              strings.ToLower(bc.ITEmail),
		PasswordHash:       string(hashed),
		PlatformRole:       authz.SuperAdminPlatform,
		Role:               string(authz.RoleIT),
		IsActive:           true,
		MustChangePassword: true,
	}
	if err := db.Create(&admin).Error; err != nil {
		log.Warn("Platform admin bootstrap: creation failed", zap.Error(err))
		return
	}
	log.Info("Created platform super-admin", zap.Uint("user_id", admin.ID))
}

var maintSlugCleaner = regexp.MustCompile(`[^a-z0-9]+`)

// backfillMemberships repairs data from before the multi-branch era:
// membership rows for users that only have the legacy branch pointer, slugs
// for branches created without one, and a single platform super-admin.
func backfillMemberships(log *zap.Logger) {
	db := database.GetDB()

	var users []model.User
	if err := db.Where("branch_id IS NOT NULL").Find(&users).Error; err != nil {
		log.Fatal("Membership backfill: user query failed", zap.Error(err))
	}

	created := 0
	for _, u := range users {
		var count int64
		db.Model(&model.Membership{}).
			Where("user_id = ? AND branch_id = ?", u.ID, *u.BranchID).
			Count(&count)
		if count > 0 {
			continue
		}

		role := "STAFF"
		var owned int64
		db.Model(&model.AgencySubscription{}).
			Where("owner_user_id = ? AND branch_id = ?", u.ID, *u.BranchID).
			Count(&owned)
		if owned > 0 || authz.NormalizeRole(u.Role) == authz.RoleFounder {
			role = "OWNER"
		}

		if err := db.Create(&model.Membership{
			UserID:   u.ID,
			BranchID: *u.BranchID,
			Role:     role,
		}).Error; err != nil {
			log.Warn("Membership backfill: create failed",
				zap.Uint("user_id", u.ID), zap.Error(err))
			continue
		}
		created++
	}
	log.Info("Membership backfill finished", zap.Int("created", created))

	var branches []model.Branch
	db.Where("slug = '' OR slug IS NULL").Find(&branches)
	for _, b := range branches {
		slug := strings.Trim(maintSlugCleaner.ReplaceAllString(strings.ToLower(b.Name), "-"), "-")
		if slug == "" {
			continue
		}
		var clash int64
		db.Model(&model.Branch{}).Where("slug = ? AND id <> ?", slug, b.ID).Count(&clash)
		if clash > 0 {
			continue
		}
		if err := db.Model(&b).Update("slug", slug).Error; err != nil {
			log.Warn("Slug backfill failed", zap.Uint("branch_id", b.ID), zap.Error(err))
		}
	}

	// At most one platform super-admin. Keep the oldest, demote the rest.
	var admins []model.User
	db.Where("platform_role = ?", authz.SuperAdminPlatform).Order("id ASC").Find(&admins)
	for i := 1; i < len(admins); i++ {
		log.Warn("Demoting extra platform super-admin",
			zap.Uint("user_id", admins[i].ID))
		if err := db.Model(&admins[i]).Update("platform_role", "").Error; err != nil {
			log.Warn("Demotion failed", zap.Uint("user_id", admins[i].ID), zap.Error(err))
		}
	}
}

// checkFounderIsolation finds founders whose legacy branch pointer drifted
// away from the branch their billable subscription bills. Such drift leaks
// data across enterprise groups through the legacy pointer. With fix=true
// the pointer is moved back and the OWNER membership restored.
func checkFounderIsolation(fix bool, log *zap.Logger) {
	db := database.GetDB()

	var subs []model.AgencySubscription
	if err := db.Order("owner_user_id ASC, id ASC").Find(&subs).Error; err != nil {
		log.Fatal("Founder isolation: subscription query failed", zap.Error(err))
	}

	// The owner's canonical branch is the one their oldest subscription
	// bills: the branch created at signup.
	billableByOwner := map[uint]model.AgencySubscription{}
	for _, s := range subs {
		if _, ok := billableByOwner[s.OwnerUserID]; !ok {
			billableByOwner[s.OwnerUserID] = s
		}
	}

	drifted := 0
	for ownerID, sub := range billableByOwner {
		var owner model.User
		if err := db.First(&owner, ownerID).Error; err != nil {
			continue
		}
		if owner.BranchID != nil && *owner.BranchID == sub.BranchID {
			continue
		}

		drifted++
		log.Warn("Founder branch pointer drifted from billable subscription",
			zap.Uint("user_id", owner.ID),
			zap.Any("user_branch_id", owner.BranchID),
			zap.Uint("subscription_branch_id", sub.BranchID))

		if !fix {
			continue
		}
		err := db.Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&owner).Update("branch_id", sub.BranchID).Error; err != nil {
				return err
			}
			var count int64
			tx.Model(&model.Membership{}).
				Where("user_id = ? AND branch_id = ?", owner.ID, sub.BranchID).
				Count(&count)
			if count == 0 {
				return tx.Create(&model.Membership{
					UserID:   owner.ID,
					BranchID: sub.BranchID,
					Role:     "OWNER",
				}).Error
			}
			return nil
		})
		if err != nil {
			log.Warn("Founder isolation repair failed",
				zap.Uint("user_id", owner.ID), zap.Error(err))
		} else {
			log.Info("Founder isolation repaired", zap.Uint("user_id", owner.ID))
		}
	}

	log.Info("Founder isolation check finished",
		zap.Int("drifted", drifted), zap.Bool("fixed", fix))
}
