package authz

import (
	"net/http"
)

// Decision is the outcome of an authorization policy check, produced before
// dispatch so route guards stay testable on their own.
type Decision struct {
	Allow    bool
	Status   int    // HTTP status when not allowed
	Redirect string // optional redirect target instead of a bare error
	Reason   string
}

// Allowed is the passing decision.
func Allowed() Decision {
	return Decision{Allow: true}
}

// Denied produces a blocking decision with the given status.
func Denied(status int, reason string) Decision {
	return Decision{Status: status, Reason: reason}
}

// RedirectTo produces a soft-block decision pointing at another resource.
func RedirectTo(target, reason string) Decision {
	return Decision{Status: http.StatusPaymentRequired, Redirect: target, Reason: reason}
}

// DecideRoles checks the actor against an allowed role set. Two elevation
// rules are deliberate policy, not accidents of ordering: Founder bypasses
// every role check, and Admin-Branch satisfies any check that permits
// Employee (a strict superset, never full elevation).
func DecideRoles(actor Actor, allowed ...Role) Decision {
	if !actor.Authenticated {
		return Denied(http.StatusUnauthorized, "authentication required")
	}
	if actor.IsSuperAdmin() {
		return Allowed()
	}
	if actor.Role == RoleFounder {
		return Allowed()
	}

	allowedSet := make(map[Role]struct{}, len(allowed))
	for _, role := range allowed {
		allowedSet[NormalizeRole(string(role))] = struct{}{}
	}

	if _, ok := allowedSet[RoleEmployee]; ok && actor.Role == RoleAdminBranch {
		return Allowed()
	}
	if _, ok := allowedSet[actor.Role]; !ok {
		return Denied(http.StatusForbidden, "insufficient role")
	}
	return Allowed()
}

// DecideSuperAdmin allows only the platform super admin through.
func DecideSuperAdmin(actor Actor) Decision {
	if !actor.Authenticated {
		return Denied(http.StatusUnauthorized, "authentication required")
	}
	if !actor.IsSuperAdmin() {
		return Denied(http.StatusForbidden, "platform super admin required")
	}
	return Allowed()
}

// DecideBranchAccess checks tenant-level access to one branch.
func DecideBranchAccess(r *Resolver, branchID *uint, actor Actor) Decision {
	if !actor.Authenticated {
		return Denied(http.StatusUnauthorized, "authentication required")
	}
	if !r.CanAccessBranch(branchID, actor) {
		return Denied(http.StatusForbidden, "branch access denied")
	}
	return Allowed()
}
