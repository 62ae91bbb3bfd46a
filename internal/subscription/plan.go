package subscription

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/EUDYDEV/eproject-saas/internal/model"
)

// Subscription statuses, stored verbatim and surfaced as-is in the API.
const (
	StatusPending       = "pending"
	StatusPendingReview = "pending_review"
	StatusActive        = "active"
	StatusExpired       = "expired"
)

// Plan codes, ranked for feature gating.
const (
	PlanStarter    = "starter"
	PlanPro        = "pro"
	PlanEnterprise = "enterprise"
)

var planRanks = map[string]int{
	PlanStarter:    1,
	PlanPro:        2,
	PlanEnterprise: 3,
}

// NormalizePlanCode maps any stored plan value onto a known plan code,
// falling back to starter.
func NormalizePlanCode(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	if value == "" {
		return PlanStarter
	}
	if _, ok := planRanks[value]; ok {
		return value
	}
	return PlanStarter
}

// PlanRank returns the gating rank of a plan code (starter < pro < enterprise).
func PlanRank(planCode string) int {
	return planRanks[NormalizePlanCode(planCode)]
}

// Plan is one row of the public plan catalog.
type Plan struct {
	Code     string          `json:"code"`
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Currency string          `json:"currency"`
	Features []string        `json:"features"`
}

// PlanCatalog builds the three-tier catalog from portal settings.
func PlanCatalog(settings *model.PortalSetting) []Plan {
	currency := strings.ToUpper(settings.PlanCurrency)
	if currency == "" {
		currency = "XOF"
	}
	return []Plan{
		{
			Code:     PlanStarter,
			Name:     "Starter",
			Price:    settings.PlanStarterPrice,
			Currency: currency,
			Features: []string{
				"CRM étudiants + documents",
				"Dashboard branche",
				"Emails basiques",
			},
		},
		{
			Code:     PlanPro,
			Name:     "Pro",
			Price:    settings.PlanProPrice,
			Currency: currency,
			Features: []string{
				"RDV avancés + tokens",
				"Emails personnalisés + logos",
				"Suivi procédures et commissions",
			},
		},
		{
			Code:     PlanEnterprise,
			Name:     "Enterprise",
			Price:    settings.PlanEnterprisePrice,
			Currency: currency,
			Features: []string{
				"Multi-pays complet",
				"Rapports globaux",
				"Support prioritaire",
			},
		},
	}
}

// PriceForPlan returns the configured price and currency for a plan code.
// Unknown codes price at zero in the settings currency.
func PriceForPlan(settings *model.PortalSetting, planCode string) (decimal.Decimal, string) {
	currency := strings.ToUpper(settings.PlanCurrency)
	if currency == "" {
		currency = "XOF"
	}
	for _, plan := range PlanCatalog(settings) {
		if plan.Code == NormalizePlanCode(planCode) {
			return plan.Price, plan.Currency
		}
	}
	return decimal.Zero, currency
}
