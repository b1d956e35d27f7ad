package access

// Well-known role names.
const (
	RoleAgent          = "Agent"
	RoleAuditor        = "Auditor"
	RoleQualityAnalyst = "Quality Analyst"
	RoleTeamLead       = "Team Lead"
	RoleManager        = "Manager"
	RoleAdmin          = "Admin"
)

// roleLevels is the static role hierarchy. Higher means more privileged;
// comparison is plain integer ordering, no partial orders.
var roleLevels = map[string]int{
	"agent":           1,
	"auditor":         2,
	"quality analyst": 2,
	"team lead":       3,
	"manager":         3,
	"admin":           4,
}

// RoleLevel resolves a role name to its hierarchy level. Unknown roles map
// to level 0 so they can never satisfy a minimum-level rule.
func RoleLevel(role string) int {
	return roleLevels[normalizeToken(role)]
}
