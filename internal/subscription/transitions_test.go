package subscription

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/EUDYDEV/eproject-saas/internal/model"
)

func TestActivateFromScratch(t *testing.T) {
	svc, db, notifier := newTestService(t)
	owner := seedOwner(t, db, 1)

	sub := model.AgencySubscription{
		BranchID: *owner.BranchID, OwnerUserID: owner.ID,
		PlanCode: PlanStarter, Status: StatusPendingReview,
	}
	require.NoError(t, db.Create(&sub).Error)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.Activate(&sub, &owner.ID, now))

	assert.Equal(t, StatusActive, sub.Status)
	assert.Equal(t, now, *sub.StartsAt)
	assert.Equal(t, now.Add(ActivationPeriod), *sub.EndsAt)
	assert.Equal(t, now, *sub.PaidAt)
	assert.Len(t, notifier.subjects, 1)
}

func TestActivateExtendsUnexpiredPeriod(t *testing.T) {
	svc, db, _ := newTestService(t)
	owner := seedOwner(t, db, 1)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	currentEnd := now.Add(10 * 24 * time.Hour)
	sub := model.AgencySubscription{
		BranchID: *owner.BranchID, OwnerUserID: owner.ID,
		PlanCode: PlanStarter, Status: StatusActive,
		EndsAt: &currentEnd,
	}
	require.NoError(t, db.Create(&sub).Error)

	// Renewing early starts the new period where the old one stops: the
	// remaining ten days are never lost.
	require.NoError(t, svc.Activate(&sub, &owner.ID, now))
	assert.Equal(t, currentEnd, *sub.StartsAt)
	assert.Equal(t, currentEnd.Add(ActivationPeriod), *sub.EndsAt)
}

func TestActivateAfterExpiryStartsNow(t *testing.T) {
	svc, db, _ := newTestService(t)
	owner := seedOwner(t, db, 1)

	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	pastEnd := now.Add(-5 * 24 * time.Hour)
	sub := model.AgencySubscription{
		BranchID: *owner.BranchID, OwnerUserID: owner.ID,
		PlanCode: PlanStarter, Status: StatusExpired,
		EndsAt: &pastEnd,
	}
	require.NoError(t, db.Create(&sub).Error)

	require.NoError(t, svc.Activate(&sub, &owner.ID, now))
	assert.Equal(t, now, *sub.StartsAt)
	assert.Equal(t, now.Add(ActivationPeriod), *sub.EndsAt)
}

func TestMarkPaymentSent(t *testing.T) {
	svc, db, notifier := newTestService(t)
	owner := seedOwner(t, db, 1)

	sub := model.AgencySubscription{
		BranchID: *owner.BranchID, OwnerUserID: owner.ID,
		PlanCode: PlanStarter, Status: StatusPending,
	}
	require.NoError(t, db.Create(&sub).Error)

	now := time.Now().UTC()
	require.NoError(t, svc.MarkPaymentSent(&sub, "  OM-12345 ", now))
	assert.Equal(t, StatusPendingReview, sub.Status)
	assert.Equal(t, "OM-12345", sub.PaymentReference)
	assert.Len(t, notifier.subjects, 1)

	// Declaring again is harmless.
	require.NoError(t, svc.MarkPaymentSent(&sub, "OM-12345", now))
	assert.Equal(t, StatusPendingReview, sub.Status)
}

func TestMarkPaymentSentRefusesActive(t *testing.T) {
	svc, db, _ := newTestService(t)
	owner := seedOwner(t, db, 1)

	sub := model.AgencySubscription{
		BranchID: *owner.BranchID, OwnerUserID: owner.ID,
		PlanCode: PlanStarter, Status: StatusActive,
	}
	require.NoError(t, db.Create(&sub).Error)

	err := svc.MarkPaymentSent(&sub, "ref", time.Now().UTC())
	assert.ErrorIs(t, err, ErrAlreadyActive)
}

func TestExpireSetsEndNow(t *testing.T) {
	svc, db, notifier := newTestService(t)
	owner := seedOwner(t, db, 1)

	future := time.Now().UTC().Add(20 * 24 * time.Hour)
	sub := model.AgencySubscription{
		BranchID: *owner.BranchID, OwnerUserID: owner.ID,
		PlanCode: PlanStarter, Status: StatusActive,
		EndsAt: &future,
	}
	require.NoError(t, db.Create(&sub).Error)

	now := time.Now().UTC()
	require.NoError(t, svc.Expire(&sub, nil, now))
	assert.Equal(t, StatusExpired, sub.Status)
	assert.Equal(t, now, *sub.EndsAt)
	assert.Len(t, notifier.subjects, 1)
}

func TestCoerceFreeMode(t *testing.T) {
	svc, db, notifier := newTestService(t)
	owner := seedOwner(t, db, 1)

	sub := model.AgencySubscription{
		BranchID: *owner.BranchID, OwnerUserID: owner.ID,
		PlanCode: PlanStarter, Status: StatusPending,
	}
	require.NoError(t, db.Create(&sub).Error)

	now := time.Now().UTC()
	require.NoError(t, svc.CoerceFreeMode(&sub, now))
	assert.Equal(t, StatusActive, sub.Status)
	assert.NotNil(t, sub.StartsAt)
	assert.NotNil(t, sub.PaidAt)
	// Free-mode activation sends no mail.
	assert.Empty(t, notifier.subjects)

	// Coercing an already active subscription is a no-op.
	require.NoError(t, svc.CoerceFreeMode(&sub, now))
	assert.Equal(t, StatusActive, sub.Status)
}

func TestNotifierFailureDoesNotFailTransition(t *testing.T) {
	svc, db, notifier := newTestService(t)
	notifier.fail = true
	owner := seedOwner(t, db, 1)

	sub := model.AgencySubscription{
		BranchID: *owner.BranchID, OwnerUserID: owner.ID,
		PlanCode: PlanStarter, Status: StatusPendingReview,
	}
	require.NoError(t, db.Create(&sub).Error)

	require.NoError(t, svc.Activate(&sub, nil, time.Now().UTC()))
	assert.Equal(t, StatusActive, sub.Status)
}
