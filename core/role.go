package core

import (
	"fmt"
	"strings"
)

// Role is the closed set of account roles.
type Role int

const (
	RolePrivate Role = iota + 1
	RoleOffspring
	RoleAdult
	RoleSteward
	RoleGuardian
)

// UnlimitedSpending marks a role without a spending ceiling.
const UnlimitedSpending int64 = -1

// SovereigntyStatus is the set of role-derived flags returned to clients.
type SovereigntyStatus struct {
	Role               string `json:"role"`
	HasFullSovereignty bool   `json:"hasFullSovereignty"`
	CanManageFamily    bool   `json:"canManageFamily"`
	RequiresApproval   bool   `json:"requiresApproval"`
	SpendingLimit      int64  `json:"spendingLimit"`
}

// ParseRole maps the wire name of a role onto Role.
func ParseRole(s string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "private":
		return RolePrivate, nil
	case "offspring":
		return RoleOffspring, nil
	case "adult":
		return RoleAdult, nil
	case "steward":
		return RoleSteward, nil
	case "guardian":
		return RoleGuardian, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidRole, s)
	}
}

func (r Role) String() string {
	switch r {
	case RolePrivate:
		return "private"
	case RoleOffspring:
		return "offspring"
	case RoleAdult:
		return "adult"
	case RoleSteward:
		return "steward"
	case RoleGuardian:
		return "guardian"
	default:
		return "unknown"
	}
}

// Valid reports whether r is one of the declared roles.
func (r Role) Valid() bool {
	return r >= RolePrivate && r <= RoleGuardian
}

// Sovereignty derives the permission flags for the role. Offspring are the
// only role with a spending ceiling and an approval requirement.
func (r Role) Sovereignty() SovereigntyStatus {
	status := SovereigntyStatus{Role: r.String()}
	switch r {
	case RolePrivate:
		status.HasFullSovereignty = true
		status.SpendingLimit = UnlimitedSpending
	case RoleOffspring:
		status.RequiresApproval = true
		status.SpendingLimit = 50000
	case RoleAdult:
		status.HasFullSovereignty = true
		status.SpendingLimit = UnlimitedSpending
	case RoleSteward, RoleGuardian:
		status.HasFullSovereignty = true
		status.CanManageFamily = true
		status.SpendingLimit = UnlimitedSpending
	default:
		// unknown roles get no capabilities
		status.RequiresApproval = true
	}
	return status
}
