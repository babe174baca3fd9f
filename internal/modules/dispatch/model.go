// README: Transport request aggregate and lifecycle definitions.
package dispatch

import (
	"time"

	"lifeline/internal/types"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusAssigned  Status = "assigned"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Open-set emergency types; free text beyond these is accepted as-is.
const (
	TypeAccident    = "accident"
	TypeHeartAttack = "heart_attack"
	TypeStroke      = "stroke"
	TypeOther       = "other"
)

type Request struct {
	ID             types.ID     `json:"id"`
	RequesterID    types.ID     `json:"requester_id"`
	RequesterName  string       `json:"requester_name"`
	Phone          string       `json:"phone"`
	PickupLocation string       `json:"pickup_location"`
	Coordinates    *types.Point `json:"coordinates,omitempty"`
	EmergencyType  string       `json:"emergency_type"`
	// PreferredHospital is an optional requester hint, never a routing input.
	PreferredHospital string     `json:"preferred_hospital,omitempty"`
	Status            Status     `json:"status"`
	StatusVersion     int        `json:"-"`
	DriverID          *types.ID  `json:"driver_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	AssignedAt        *time.Time `json:"assigned_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
	CancelledAt       *time.Time `json:"cancelled_at,omitempty"`
}

// Terminal reports whether no further transitions are permitted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusCancelled
}

// AllowedTransitions represents the request state flow as code. Nothing
// reenters pending, and terminal states have no outgoing edges.
var AllowedTransitions = map[Status][]Status{
	StatusPending:  {StatusAssigned, StatusCancelled},
	StatusAssigned: {StatusCompleted, StatusCancelled},
}

func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Event is one audit row per transition; cancellation writes an event instead
// of deleting the request, so history survives.
type Event struct {
	ID         int64     `json:"id"`
	RequestID  types.ID  `json:"request_id"`
	FromStatus Status    `json:"from_status"`
	ToStatus   Status    `json:"to_status"`
	ActorType  string    `json:"actor_type"`
	ActorID    *types.ID `json:"actor_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

const (
	ActorRequester = "requester"
	ActorAdmin     = "admin"
)
