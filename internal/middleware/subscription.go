package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/internal/subscription"
	"github.com/EUDYDEV/eproject-saas/pkg/logger"
	"github.com/EUDYDEV/eproject-saas/prometheus"
)

// BillingRedirectPath is where blocked subscription owners are sent to
// settle their payment.
const BillingRedirectPath = "/auth/subscription"

// Paths the billing gate never blocks. The subscription page itself must
// stay reachable or an owner could never pay their way back in.
var billingExemptPrefixes = []string{
	"/auth/subscription",
	"/auth/logout",
	"/auth/profile",
	"/auth/change-password",
	"/health",
	"/metrics",
}

func billingExempt(path string) bool {
	for _, prefix := range billingExemptPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// EnforceSubscription is the single billing choke point. It decides, per
// request, whether the actor's agency still has a subscription that grants
// access. Blocked owners get a 402 pointing at the billing page; blocked
// staff get a 401 that terminates their session, since only the owner can
// fix the situation.
func EnforceSubscription(svc *subscription.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := authz.ActorFromEcho(c)
			if !actor.Authenticated {
				return next(c)
			}
			// Platform staff are never customers of the billing system.
			if actor.IsSuperAdmin() || actor.Role == authz.RoleIT {
				return next(c)
			}
			if billingExempt(c.Request().URL.Path) {
				return next(c)
			}

			log := logger.FromEcho(c)

			var user model.User
			if err := svc.DB().First(&user, actor.UserID).Error; err != nil {
				log.Warn("Billing gate could not load user", zap.Uint("user_id", actor.UserID), zap.Error(err))
				prometheus.SubscriptionBlockCounter.WithLabelValues("forced_logout").Inc()
				return c.JSON(http.StatusUnauthorized, echo.Map{
					"error": "session is no longer valid",
					"code":  "session_terminated",
				})
			}
			// Branch staff follow their newest membership; the legacy branch
			// pointer is re-synced opportunistically since the row is already
			// loaded here.
			if actor.Role.IsBranchScoped() {
				var latest model.Membership
				err := svc.DB().Where("user_id = ?", user.ID).
					Order("created_at DESC, id DESC").First(&latest).Error
				if err == nil && latest.BranchID != 0 &&
					(user.BranchID == nil || *user.BranchID != latest.BranchID) {
					if err := svc.DB().Model(&user).Update("branch_id", latest.BranchID).Error; err != nil {
						log.Warn("Branch pointer re-sync failed",
							zap.Uint("user_id", user.ID), zap.Error(err))
					} else {
						user.BranchID = &latest.BranchID
					}
				}
			}

			// A forced password change owns the whole session until resolved;
			// billing waits its turn.
			if user.MustChangePassword {
				return next(c)
			}

			settings, err := svc.Settings()
			if err != nil {
				log.Warn("Portal settings unavailable, billing gate open", zap.Error(err))
				return next(c)
			}

			now := time.Now().UTC()
			sub := svc.ForUser(&user)

			// Free mode: every agency rides for free. Any lingering non-active
			// subscription is coerced to active so the UI stops nagging.
			if !svc.Enforced(settings) {
				if sub != nil && sub.Status != subscription.StatusActive {
					if err := svc.CoerceFreeMode(sub, now); err != nil {
						log.Warn("Free mode coercion failed", zap.Uint("subscription_id", sub.ID), zap.Error(err))
					}
				}
				return next(c)
			}

			if svc.HasActive(&user, now) {
				return next(c)
			}

			if actor.IsFounder() || svc.IsOwner(user.ID) {
				log.Info("Billing gate redirecting subscription owner",
					zap.Uint("user_id", user.ID))
				prometheus.SubscriptionBlockCounter.WithLabelValues("redirect_billing").Inc()
				return writeDecision(c, authz.RedirectTo(BillingRedirectPath, "your subscription requires payment"))
			}

			log.Info("Billing gate terminating staff session",
				zap.Uint("user_id", user.ID),
				zap.String("role", string(actor.Role)))
			prometheus.SubscriptionBlockCounter.WithLabelValues("forced_logout").Inc()
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error": "your agency's subscription has expired, contact the subscription owner",
				"code":  "session_terminated",
			})
		}
	}
}
