package middleware

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/EUDYDEV/eproject-saas/internal/authz"
	"github.com/EUDYDEV/eproject-saas/internal/model"
	"github.com/EUDYDEV/eproject-saas/internal/subscription"
	"github.com/EUDYDEV/eproject-saas/pkg/logger"
	"github.com/EUDYDEV/eproject-saas/prometheus"
)

// writeDecision turns a negative authorization decision into the HTTP
// response the client should see. Callers only invoke it when !d.Allow.
func writeDecision(c echo.Context, d authz.Decision) error {
	if d.Redirect != "" {
		return c.JSON(d.Status, echo.Map{
			"error":    d.Reason,
			"redirect": d.Redirect,
		})
	}
	return c.JSON(d.Status, echo.Map{"error": d.Reason})
}

// RequireRoles allows the request through when the actor holds one of the
// given branch roles. Platform super admins and agency founders always pass.
func RequireRoles(roles ...authz.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := authz.ActorFromEcho(c)
			if d := authz.DecideRoles(actor, roles...); !d.Allow {
				logger.FromEcho(c).Warn("Role check failed",
					zap.Uint("user_id", actor.UserID),
					zap.String("role", string(actor.Role)),
					zap.String("reason", d.Reason))
				prometheus.ScopeDenialCounter.Inc()
				return writeDecision(c, d)
			}
			return next(c)
		}
	}
}

// RequireSuperAdmin restricts a route to the platform control panel.
func RequireSuperAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		actor := authz.ActorFromEcho(c)
		if d := authz.DecideSuperAdmin(actor); !d.Allow {
			logger.FromEcho(c).Warn("Super admin check failed",
				zap.Uint("user_id", actor.UserID))
			prometheus.ScopeDenialCounter.Inc()
			return writeDecision(c, d)
		}
		return next(c)
	}
}

// RequireBranchAccess guards routes that address a single branch through
// their :id parameter.
func RequireBranchAccess(r *authz.Resolver) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := authz.ActorFromEcho(c)
			id, err := strconv.ParseUint(c.Param("id"), 10, 64)
			if err != nil || id == 0 {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid branch id"})
			}
			branchID := uint(id)
			if d := authz.DecideBranchAccess(r, &branchID, actor); !d.Allow {
				logger.FromEcho(c).Warn("Branch access denied",
					zap.Uint("user_id", actor.UserID),
					zap.Uint("branch_id", branchID))
				prometheus.ScopeDenialCounter.Inc()
				return writeDecision(c, d)
			}
			return next(c)
		}
	}
}

// RequirePlan gates a feature behind a minimum subscription plan. The
// actor's effective plan comes from their billable subscription; super
// admins are treated as enterprise.
func RequirePlan(svc *subscription.Service, minPlan string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			actor := authz.ActorFromEcho(c)
			if !actor.Authenticated {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			var user model.User
			if err := svc.DB().First(&user, actor.UserID).Error; err != nil {
				logger.FromEcho(c).Error("Failed to load user for plan check", zap.Error(err))
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid session"})
			}
			if !svc.PlanAllows(&user, minPlan) {
				prometheus.ScopeDenialCounter.Inc()
				return c.JSON(http.StatusForbidden, echo.Map{
					"error":         "your subscription plan does not include this feature",
					"required_plan": minPlan,
					"current_plan":  svc.PlanCode(&user),
				})
			}
			return next(c)
		}
	}
}
