package auth

import "strings"

// Role orders what a caller may do with reconciliation data. A viewer reads
// reports, margins, and exports; an operator additionally triggers runs and
// uploads actuals or contract sheets; an admin covers everything.
type Role string

const (
	RoleViewer   Role = "viewer"
	RoleOperator Role = "operator"
	RoleAdmin    Role = "admin"
)

var roleRank = map[Role]int{
	RoleViewer:   1,
	RoleOperator: 2,
	RoleAdmin:    3,
}

// NormalizeRole folds a raw claim value to a known role. Unknown values are
// rejected rather than defaulted so a typoed claim never grants access.
func NormalizeRole(value string) (Role, bool) {
	role := Role(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := roleRank[role]; !ok {
		return "", false
	}
	return role, true
}

// RoleAtLeast reports whether role grants at least the required rank.
func RoleAtLeast(role, required Role) bool {
	return roleRank[role] >= roleRank[required] && roleRank[role] > 0
}
