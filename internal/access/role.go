package access

import (
	"fmt"
	"strings"
)

// Role is the access class of a session. It decides which redaction rule,
// system prompt and pre-filters apply.
type Role string

const (
	RolePatient    Role = "patient"
	RoleResearcher Role = "researcher"
)

// ParseRole parses a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePatient:
		return RolePatient, nil
	case RoleResearcher:
		return RoleResearcher, nil
	default:
		return "", fmt.Errorf("invalid role %q: must be one of patient, researcher", s)
	}
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleResearcher
}

// Label is the prompt label shown to the user, e.g. "Patient".
func (r Role) Label() string {
	switch r {
	case RolePatient:
		return "Patient"
	case RoleResearcher:
		return "Researcher"
	default:
		return "User"
	}
}
