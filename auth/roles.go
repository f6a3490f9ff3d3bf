package auth

// Role is the access level attached to a user
type Role string

const (
	RoleUser      Role = "user"
	RoleGuide     Role = "guide"
	RoleLeadGuide Role = "lead-guide"
	RoleAdmin     Role = "admin"
)

// Roles lists every valid role
var Roles = []Role{RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin}

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleUser, RoleGuide, RoleLeadGuide, RoleAdmin:
		return true
	default:
		return false
	}
}

func (r Role) String() string {
	return string(r)
}

// ParseRole returns the role for s, falling back to RoleUser
// for empty or unknown input.
func ParseRole(s string) Role {
	r := Role(s)
	if !r.IsValid() {
		return RoleUser
	}
	return r
}
