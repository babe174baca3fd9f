// README: Access gateway; capability checks for every dispatch and registry operation.
package auth

import (
	"errors"

	"lifeline/internal/types"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Principal is the caller identity established by the token middleware.
// A zero Principal means no valid session.
type Principal struct {
	ID   types.ID
	Role Role
}

func (p Principal) IsZero() bool {
	return p.ID == ""
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Capability names an operation class subject to authorization.
type Capability string

const (
	CapRequestCreate   Capability = "request:create"
	CapRequestRead     Capability = "request:read"
	CapRequestCancel   Capability = "request:cancel"
	CapRequestListMine Capability = "request:list-mine"
	CapRequestListAll  Capability = "request:list-all"
	CapRequestAssign   Capability = "request:assign"
	CapRequestComplete Capability = "request:complete"
	CapRequestHistory  Capability = "request:history"
	CapDriverManage    Capability = "driver:manage"
)

// class groups capabilities into the three enforcement levels.
type class int

const (
	anyAuthenticated class = iota
	ownerOrAdmin
	adminOnly
)

var capabilityClass = map[Capability]class{
	CapRequestCreate:   anyAuthenticated,
	CapRequestListMine: anyAuthenticated,
	CapRequestRead:     ownerOrAdmin,
	CapRequestCancel:   ownerOrAdmin,
	CapRequestListAll:  adminOnly,
	CapRequestAssign:   adminOnly,
	CapRequestComplete: adminOnly,
	CapRequestHistory:  adminOnly,
	CapDriverManage:    adminOnly,
}

var (
	ErrUnauthorized = errors.New("no valid identity")
	ErrForbidden    = errors.New("caller not allowed")
)

// Gateway authorizes operations against caller role and resource ownership.
type Gateway struct{}

func NewGateway() *Gateway {
	return &Gateway{}
}

// Authorize checks the principal against the capability. owner is the resource
// owner identity for owner-or-admin capabilities and ignored otherwise.
func (g *Gateway) Authorize(p Principal, cap Capability, owner types.ID) error {
	if p.IsZero() {
		return ErrUnauthorized
	}
	switch capabilityClass[cap] {
	case anyAuthenticated:
		return nil
	case ownerOrAdmin:
		if p.IsAdmin() || p.ID == owner {
			return nil
		}
		return ErrForbidden
	case adminOnly:
		if p.IsAdmin() {
			return nil
		}
		return ErrForbidden
	default:
		return ErrForbidden
	}
}
