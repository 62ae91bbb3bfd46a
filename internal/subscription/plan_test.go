package subscription

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/EUDYDEV/eproject-saas/internal/model"
)

func TestNormalizePlanCodeFallsBackToStarter(t *testing.T) {
	assert.Equal(t, PlanStarter, NormalizePlanCode(""))
	assert.Equal(t, PlanStarter, NormalizePlanCode("gold"))
	assert.Equal(t, PlanPro, NormalizePlanCode(" PRO "))
}

func TestPlanRankOrdering(t *testing.T) {
	assert.Less(t, PlanRank(PlanStarter), PlanRank(PlanPro))
	assert.Less(t, PlanRank(PlanPro), PlanRank(PlanEnterprise))
	assert.Equal(t, PlanRank(PlanStarter), PlanRank("unknown"))
}

func TestPriceForPlan(t *testing.T) {
	settings := &model.PortalSetting{
		PlanStarterPrice:    decimal.NewFromInt(10000),
		PlanProPrice:        decimal.NewFromInt(25000),
		PlanEnterprisePrice: decimal.NewFromInt(60000),
		PlanCurrency:        "xof",
	}

	price, currency := PriceForPlan(settings, "pro")
	assert.True(t, price.Equal(decimal.NewFromInt(25000)))
	assert.Equal(t, "XOF", currency)

	price, _ = PriceForPlan(settings, "unknown")
	assert.True(t, price.Equal(decimal.NewFromInt(10000)))
}
