package domain

// Role is a global permission grant checked before privileged operations.
type Role string

const (
	RoleDefaultAdmin Role = "DEFAULT_ADMIN_ROLE"
	RoleAdmin        Role = "ADMIN_ROLE"
	RoleGuardian     Role = "GUARDIAN_ROLE"
	RoleOperator     Role = "OPERATOR_ROLE"
	RoleEmergency    Role = "EMERGENCY_ROLE"
)

// Roles lists every role in grant order.
var Roles = []Role{RoleDefaultAdmin, RoleAdmin, RoleGuardian, RoleOperator, RoleEmergency}

// ParseRole accepts either the full role name or its short form ("ADMIN").
func ParseRole(s string) (Role, bool) {
	for _, r := range Roles {
		if string(r) == s || string(r) == s+"_ROLE" {
			return r, true
		}
	}
	return "", false
}
