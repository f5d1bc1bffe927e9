package constants

// Account owner roles (Users.user_type).
const (
	Company    = "company"
	Individual = "individual"
	Government = "government"
)

// ValidRoles is the set of allowed values for Users.user_type.
var ValidRoles = []string{Company, Individual, Government}

// IsValidRole returns true if role is one of the allowed enum values.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
