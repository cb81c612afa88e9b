// Package auth hashes passwords, issues and parses session tokens, and
// carries the authenticated principal through request contexts.
package auth

import (
	"fmt"
	"strings"

	"github.com/marshallshelly/fenceorders/internal/models"
)

// Role is the canonical caller role.
type Role string

const (
	RoleAdmin   Role = models.RoleAdmin
	RoleManager Role = models.RoleManager
	RoleClient  Role = models.RoleClient
)

// ParseRole normalizes a role claim. Canonical names in any case and the
// legacy numeric forms ("1" admin, "2" manager, "3" client) are accepted.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "admin", "1":
		return RoleAdmin, nil
	case "manager", "2":
		return RoleManager, nil
	case "client", "3":
		return RoleClient, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

// Valid reports whether r is one of the three canonical roles.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleClient:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }
