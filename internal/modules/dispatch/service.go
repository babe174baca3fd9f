// README: Dispatch coordinator; enforces the lifecycle state machine and the one-active-request-per-driver invariant.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lifeline/internal/auth"
	"lifeline/internal/geo"
	"lifeline/internal/observability"
	"lifeline/internal/types"
)

// FleetInvalidator drops the cached fleet snapshot after an assignment changes
// driver availability behind the registry's back.
type FleetInvalidator interface {
	Invalidate(ctx context.Context)
}

type Service struct {
	store    Store
	gate     *auth.Gateway
	resolver geo.Resolver
	fleet    FleetInvalidator
	log      *slog.Logger
}

func NewService(store Store, gate *auth.Gateway, resolver geo.Resolver, fleet FleetInvalidator, log *slog.Logger) *Service {
	if resolver == nil {
		resolver = geo.NopResolver{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{store: store, gate: gate, resolver: resolver, fleet: fleet, log: log}
}

type CreateCommand struct {
	RequesterName     string
	Phone             string
	PickupLocation    string
	EmergencyType     string
	PreferredHospital string
}

// CreateRequest opens a pending request. No driver matching happens here;
// assignment is an explicit admin decision.
func (s *Service) CreateRequest(ctx context.Context, p auth.Principal, cmd CreateCommand) (*Request, error) {
	if err := s.gate.Authorize(p, auth.CapRequestCreate, ""); err != nil {
		return nil, err
	}
	if cmd.PickupLocation == "" || cmd.EmergencyType == "" {
		return nil, ErrBadRequest
	}

	r := &Request{
		ID:                types.ID(uuid.NewString()),
		RequesterID:       p.ID,
		RequesterName:     cmd.RequesterName,
		Phone:             cmd.Phone,
		PickupLocation:    cmd.PickupLocation,
		EmergencyType:     cmd.EmergencyType,
		PreferredHospital: cmd.PreferredHospital,
		Status:            StatusPending,
		CreatedAt:         time.Now().UTC(),
	}

	// Best-effort enrichment; the request stands with free text alone.
	if point, ok, err := s.resolver.Resolve(ctx, cmd.PickupLocation); err == nil && ok {
		r.Coordinates = &point
	} else if err != nil {
		s.log.Warn("pickup geocoding failed", "error", err)
	}

	if err := s.store.Create(ctx, r); err != nil {
		return nil, err
	}
	observability.RequestsCreated.Inc()
	s.log.Info("transport request created",
		"request_id", r.ID, "requester_id", r.RequesterID, "emergency_type", r.EmergencyType)
	return r, nil
}

func (s *Service) GetRequest(ctx context.Context, p auth.Principal, id types.ID) (*Request, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, auth.CapRequestRead, r.RequesterID); err != nil {
		return nil, err
	}
	return r, nil
}

func (s *Service) ListMine(ctx context.Context, p auth.Principal) ([]*Request, error) {
	if err := s.gate.Authorize(p, auth.CapRequestListMine, ""); err != nil {
		return nil, err
	}
	return s.store.ListByRequester(ctx, p.ID)
}

func (s *Service) ListAll(ctx context.Context, p auth.Principal) ([]*Request, error) {
	if err := s.gate.Authorize(p, auth.CapRequestListAll, ""); err != nil {
		return nil, err
	}
	return s.store.ListAll(ctx)
}

// AssignDriver pairs a pending request with an available driver. The store
// performs the driver CAS and the request CAS atomically; a stale admin view
// loses the race with ErrDriverUnavailable rather than double-booking.
func (s *Service) AssignDriver(ctx context.Context, p auth.Principal, requestID, driverID types.ID) (*Request, error) {
	if err := s.gate.Authorize(p, auth.CapRequestAssign, ""); err != nil {
		return nil, err
	}
	r, err := s.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, StatusAssigned) {
		return nil, ErrInvalidState
	}
	if err := s.store.Assign(ctx, requestID, driverID, p.ID); err != nil {
		if err == ErrDriverUnavailable {
			observability.AssignmentConflicts.Inc()
		}
		return nil, err
	}
	observability.Assignments.Inc()
	s.invalidateFleet(ctx)
	s.log.Info("driver assigned", "request_id", requestID, "driver_id", driverID, "admin_id", p.ID)
	return s.store.Get(ctx, requestID)
}

// CompleteRequest closes out service. The driver reference stays on the
// request for history; the driver returns to the pool.
func (s *Service) CompleteRequest(ctx context.Context, p auth.Principal, requestID, driverID types.ID) (*Request, error) {
	if err := s.gate.Authorize(p, auth.CapRequestComplete, ""); err != nil {
		return nil, err
	}
	r, err := s.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, StatusCompleted) {
		return nil, ErrInvalidState
	}
	if err := s.store.Complete(ctx, requestID, driverID, p.ID); err != nil {
		return nil, err
	}
	observability.Completions.Inc()
	s.invalidateFleet(ctx)
	s.log.Info("request completed", "request_id", requestID, "driver_id", driverID)
	return s.store.Get(ctx, requestID)
}

// CancelRequest is owner-or-admin and terminal. Cancelling twice yields
// ErrInvalidState, never a second driver release.
func (s *Service) CancelRequest(ctx context.Context, p auth.Principal, requestID types.ID) (*Request, error) {
	r, err := s.store.Get(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if err := s.gate.Authorize(p, auth.CapRequestCancel, r.RequesterID); err != nil {
		return nil, err
	}
	if !CanTransition(r.Status, StatusCancelled) {
		return nil, ErrInvalidState
	}
	actorType := ActorRequester
	if p.IsAdmin() {
		actorType = ActorAdmin
	}
	if err := s.store.Cancel(ctx, requestID, actorType, p.ID); err != nil {
		return nil, err
	}
	observability.Cancellations.Inc()
	s.invalidateFleet(ctx)
	s.log.Info("request cancelled", "request_id", requestID, "actor", actorType)
	return s.store.Get(ctx, requestID)
}

func (s *Service) History(ctx context.Context, p auth.Principal, requestID types.ID) ([]*Event, error) {
	if err := s.gate.Authorize(p, auth.CapRequestHistory, ""); err != nil {
		return nil, err
	}
	if _, err := s.store.Get(ctx, requestID); err != nil {
		return nil, err
	}
	return s.store.Events(ctx, requestID)
}

func (s *Service) invalidateFleet(ctx context.Context) {
	if s.fleet != nil {
		s.fleet.Invalidate(ctx)
	}
}
