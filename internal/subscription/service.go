package subscription

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
)

// Notifier delivers subscription lifecycle emails. Delivery is always
// best-effort: implementations log failures, callers never abort on them.
type Notifier interface {
	SendSubscriptionNotice(sub *model.AgencySubscription, subject, htmlBody, textBody string, sentBy *uint) error
}

// Service owns the per-branch billing records and their state machine.
type Service struct {
	db       *gorm.DB
	notifier Notifier
	log      *zap.Logger
	baseURL  string
}

// NewService creates a subscription service.
func NewService(db *gorm.DB, notifier Notifier, log *zap.Logger, baseURL string) *Service {
	return &Service{db: db, notifier: notifier, log: log, baseURL: baseURL}
}

// DB exposes the underlying handle for handlers that compose their own
// subscription queries.
func (s *Service) DB() *gorm.DB {
	return s.db
}

// Settings returns the platform settings singleton, creating it with defaults
// on first use.
func (s *Service) Settings() (*model.PortalSetting, error) {
	var settings model.PortalSetting
	err := s.db.First(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	settings = model.PortalSetting{
		SiteName:           "E-PROJECT",
		SiteTagline:        "Plateforme SaaS multi-agences pour la gestion des études à l'étranger",
		SiteFooterText:     "E-PROJECT",
		PlanCurrency:       "XOF",
		BillingSenderEmail: "eudyproject@gmail.com",
		ExpiryNoticeDays:   7,
	}
	if err := s.db.Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// Enforced reports whether billing is enforced platform-wide. All three plan
// prices at zero is the free-mode escape valve.
func (s *Service) Enforced(settings *model.PortalSetting) bool {
	prices := []decimal.Decimal{
		settings.PlanStarterPrice,
		settings.PlanProPrice,
		settings.PlanEnterprisePrice,
	}
	for _, price := range prices {
		if price.GreaterThan(decimal.Zero) {
			return true
		}
	}
	return false
}

// IsBillable reports whether the subscription is the one actually charged for
// its owner. Subsidiary branches under the same owner inherit active status
// but are not separately billed: only the subscription whose branch matches
// the owner's current primary branch pointer counts in billing views.
func (s *Service) IsBillable(sub *model.AgencySubscription) bool {
	if sub == nil {
		return false
	}
	var owner model.User
	if err := s.db.First(&owner, sub.OwnerUserID).Error; err != nil {
		return true
	}
	if owner.BranchID == nil {
		return true
	}
	return sub.BranchID == *owner.BranchID
}

// OwnerBillable returns the owner's billable subscription, if any.
func (s *Service) OwnerBillable(ownerUserID uint) *model.AgencySubscription {
	if ownerUserID == 0 {
		return nil
	}
	var sub model.AgencySubscription
	err := s.db.
		Joins("JOIN users ON agency_subscriptions.owner_user_id = users.id").
		Where("agency_subscriptions.owner_user_id = ?", ownerUserID).
		Where("agency_subscriptions.branch_id = users.branch_id").
		Order("agency_subscriptions.id ASC").
		First(&sub).Error
	if err != nil {
		return nil
	}
	return &sub
}

// ForUser resolves the subscription that governs the given user's access.
// Founders resolve by ownership first; branch staff resolve through their
// branch, deferring to the owner's billable subscription when their branch
// carries a non-billable subsidiary record.
func (s *Service) ForUser(user *model.User) *model.AgencySubscription {
	if user == nil {
		return nil
	}

	if authz.NormalizeRole(user.Role) == authz.RoleFounder {
		if byOwner := s.OwnerBillable(user.ID); byOwner != nil {
			return byOwner
		}
		var fallback model.AgencySubscription
		if err := s.db.Where("owner_user_id = ?", user.ID).Order("id ASC").First(&fallback).Error; err == nil {
			return &fallback
		}
	}

	if user.BranchID == nil || *user.BranchID == 0 {
		return nil
	}

	var branchSub model.AgencySubscription
	if err := s.db.Where("branch_id = ?", *user.BranchID).First(&branchSub).Error; err != nil {
		return nil
	}
	if !s.IsBillable(&branchSub) {
		if ownerSub := s.OwnerBillable(branchSub.OwnerUserID); ownerSub != nil {
			return ownerSub
		}
	}
	return &branchSub
}

// IsOwner reports whether the user owns at least one agency subscription.
func (s *Service) IsOwner(userID uint) bool {
	var count int64
	s.db.Model(&model.AgencySubscription{}).Where("owner_user_id = ?", userID).Count(&count)
	return count > 0
}

// HasActive reports whether the user's governing subscription currently
// grants access. An explicitly expired subscription always blocks, even in
// free mode.
func (s *Service) HasActive(user *model.User, now time.Time) bool {
	sub := s.ForUser(user)
	if sub != nil && sub.Status == StatusExpired {
		return false
	}

	settings, err := s.Settings()
	if err != nil {
		s.log.Warn("portal settings unavailable, treating billing as unenforced", zap.Error(err))
		return true
	}
	if !s.Enforced(settings) {
		return true
	}
	if sub == nil {
		return false
	}
	if sub.Status != StatusActive {
		return false
	}
	if sub.EndsAt != nil && sub.EndsAt.Before(now) {
		return false
	}
	return true
}

// PlanCode resolves the effective plan for a user. The platform super admin
// always ranks enterprise.
func (s *Service) PlanCode(user *model.User) string {
	if user == nil {
		return PlanStarter
	}
	if authz.NormalizePlatformRole(user.PlatformRole) == authz.SuperAdminPlatform {
		return PlanEnterprise
	}
	sub := s.ForUser(user)
	if sub == nil {
		return PlanStarter
	}
	return NormalizePlanCode(sub.PlanCode)
}

// PlanAllows reports whether the user's plan rank satisfies the minimum.
func (s *Service) PlanAllows(user *model.User, minPlan string) bool {
	if user == nil {
		return false
	}
	if authz.NormalizePlatformRole(user.PlatformRole) == authz.SuperAdminPlatform {
		return true
	}
	return PlanRank(s.PlanCode(user)) >= PlanRank(minPlan)
}
