package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// AgencySubscription is the per-branch billing record. Exactly one row per
// branch; the owner may hold several (one billable, the rest inherited by
// subsidiary branches of the same enterprise group).
type AgencySubscription struct {
	ID                uint            `json:"id" gorm:"primaryKey"`
	BranchID          uint            `json:"branch_id" gorm:"uniqueIndex;not null"`
	OwnerUserID       uint            `json:"owner_user_id" gorm:"index;not null"`
	PlanCode          string          `json:"plan_code" gorm:"type:varchar(30);not null;default:'starter'"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null;default:0"`
	Currency          string          `json:"currency" gorm:"type:varchar(10);not null;default:'XOF'"`
	Status            string          `json:"status" gorm:"type:varchar(20);not null;default:'pending'"`
	StartsAt          *time.Time      `json:"starts_at,omitempty"`
	EndsAt            *time.Time      `json:"ends_at,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	PaymentReference  string          `json:"payment_reference,omitempty" gorm:"type:varchar(255)"`
	LastWarningSentAt *time.Time      `json:"last_warning_sent_at,omitempty"`
	LastExpiredSentAt *time.Time      `json:"last_expired_sent_at,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`

	// Relations
	Branch    *Branch `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
	OwnerUser *User   `json:"owner_user,omitempty" gorm:"foreignKey:OwnerUserID"`
}

// PortalSetting is the platform-wide settings singleton. The three plan
// prices double as the billing enforcement switch: all-zero prices put the
// whole platform in free mode.
type PortalSetting struct {
	ID                    uint            `json:"id" gorm:"primaryKey"`
	SiteName              string          `json:"site_name,omitempty" gorm:"type:varchar(120)"`
	SiteTagline           string          `json:"site_tagline,omitempty" gorm:"type:varchar(255)"`
	SiteFooterText        string          `json:"site_footer_text,omitempty" gorm:"type:varchar(255)"`
	SiteLogoURL           string          `json:"site_logo_url,omitempty" gorm:"type:varchar(255)"`
	PlanStarterPrice      decimal.Decimal `json:"plan_starter_price" gorm:"type:numeric(12,2);not null;default:0"`
	PlanProPrice          decimal.Decimal `json:"plan_pro_price" gorm:"type:numeric(12,2);not null;default:0"`
	PlanEnterprisePrice   decimal.Decimal `json:"plan_enterprise_price" gorm:"type:numeric(12,2);not null;default:0"`
	PlanCurrency          string          `json:"plan_currency" gorm:"type:varchar(10);not null;default:'XOF'"`
	PaymentLink           string          `json:"payment_link,omitempty" gorm:"type:varchar(500)"`
	PaymentLinkStarter    string          `json:"payment_link_starter,omitempty" gorm:"type:varchar(500)"`
	PaymentLinkPro        string          `json:"payment_link_pro,omitempty" gorm:"type:varchar(500)"`
	PaymentLinkEnterprise string          `json:"payment_link_enterprise,omitempty" gorm:"type:varchar(500)"`
	BillingSenderEmail    string          `json:"billing_sender_email,omitempty" gorm:"type:varchar(255)"`
	ExpiryNoticeDays      int             `json:"expiry_notice_days" gorm:"not null;default:7"`
	UpdatedAt             time.Time       `json:"updated_at"`
}
