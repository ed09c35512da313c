package domain

import "github.com/google/uuid"

// Role is the closed set of operator roles the broadcast hub routes on.
type Role string

const (
	RoleAdmin     Role = "admin"
	RoleManager   Role = "manager"
	RoleSales     Role = "sales"
	RoleMarketing Role = "marketing"
)

// ParseRole maps a raw role claim into the closed set. Unknown roles get the
// least privileged routing (sales).
func ParseRole(raw string) Role {
	switch Role(raw) {
	case RoleAdmin, RoleManager, RoleSales, RoleMarketing:
		return Role(raw)
	default:
		return RoleSales
	}
}

// ReceivesGlobalBroadcasts reports whether the role is broadcast to globally.
// Individual contributors only receive events addressed to their own identity
// or team.
func (r Role) ReceivesGlobalBroadcasts() bool {
	return r == RoleAdmin || r == RoleManager
}

// Operator is the resolved identity of a connected CRM user: role plus
// optional country and team scopes. It replaces loosely typed current-user
// payloads with one exhaustively handled shape.
type Operator struct {
	UserID  uuid.UUID
	Role    Role
	Country string
	TeamID  *uuid.UUID
}
