package enums

import "fmt"

// OperatorRole identifies the caller class carried in access tokens.
type OperatorRole string

const (
	OperatorRoleAdmin  OperatorRole = "admin"
	OperatorRoleSystem OperatorRole = "system"
)

var validOperatorRoles = []OperatorRole{
	OperatorRoleAdmin,
	OperatorRoleSystem,
}

// IsValid reports whether the role is recognized.
func (r OperatorRole) IsValid() bool {
	for _, candidate := range validOperatorRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseOperatorRole converts raw input into an OperatorRole.
func ParseOperatorRole(value string) (OperatorRole, error) {
	for _, candidate := range validOperatorRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid operator role %q", value)
}
