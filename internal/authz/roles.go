package authz

import (
	"strings"
)

// Role is the canonical back-office role. Raw role strings from storage may
// carry legacy aliases; NormalizeRole maps them once at the data-access
// boundary so nothing downstream ever branches on a raw stored string.
type Role string

const (
	RoleFounder     Role = "FOUNDER"
	RoleAdminBranch Role = "ADMIN_BRANCH"
	RoleEmployee    Role = "EMPLOYEE"
	RoleIT          Role = "IT"
)

// SuperAdminPlatform is the platform-level override role. At most one active
// account should hold it.
const SuperAdminPlatform = "SUPER_ADMIN_PLATFORM"

// Legacy role aliases still present in old rows.
var roleAliases = map[string]Role{
	"ADMIN":         RoleAdminBranch,
	"INFORMATICIEN": RoleIT,
	"SECRETAIRE":    RoleEmployee,
}

// NormalizeRole maps a stored role string to its canonical Role.
func NormalizeRole(raw string) Role {
	if canonical, ok := roleAliases[raw]; ok {
		return canonical
	}
	return Role(raw)
}

// NormalizePlatformRole cleans up a stored platform role value.
func NormalizePlatformRole(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// IsBranchScoped reports whether the role must always resolve to a concrete
// branch.
func (r Role) IsBranchScoped() bool {
	return r == RoleAdminBranch || r == RoleEmployee
}
