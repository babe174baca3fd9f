// README: Driver registry service; admin CRUD and availability overrides.
package driver

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lifeline/internal/auth"
	"lifeline/internal/types"
)

type Service struct {
	repo  Repository
	gate  *auth.Gateway
	cache *Cache
	log   *slog.Logger
}

func NewService(repo Repository, gate *auth.Gateway, cache *Cache, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{repo: repo, gate: gate, cache: cache, log: log}
}

type CreateCommand struct {
	Name          string
	Phone         string
	LicenseNumber string
	Address       string
	Location      string
}

func (s *Service) Create(ctx context.Context, p auth.Principal, cmd CreateCommand) (*Driver, error) {
	if err := s.gate.Authorize(p, auth.CapDriverManage, ""); err != nil {
		return nil, err
	}
	if cmd.Name == "" || cmd.Phone == "" || cmd.LicenseNumber == "" {
		return nil, ErrBadRequest
	}
	d := &Driver{
		ID:            types.ID(uuid.NewString()),
		Name:          cmd.Name,
		Phone:         cmd.Phone,
		LicenseNumber: cmd.LicenseNumber,
		Address:       cmd.Address,
		Location:      cmd.Location,
		Status:        StatusAvailable,
		CreatedAt:     time.Now().UTC(),
	}
	d.UpdatedAt = d.CreatedAt
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.log.Info("driver registered", "driver_id", d.ID, "license", d.LicenseNumber)
	return d, nil
}

// Update patches profile fields. Status rides along only as an explicit
// override through SetStatus; the profile write itself leaves status alone so
// an edit from a stale snapshot cannot pull a concurrently assigned driver
// back to available.
func (s *Service) Update(ctx context.Context, p auth.Principal, id types.ID, patch Patch) (*Driver, error) {
	if err := s.gate.Authorize(p, auth.CapDriverManage, ""); err != nil {
		return nil, err
	}
	if patch.Status != nil && !ValidStatus(*patch.Status) {
		return nil, ErrBadRequest
	}
	current, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	next := current.Applied(patch)
	if next.Name == "" || next.Phone == "" || next.LicenseNumber == "" {
		return nil, ErrBadRequest
	}
	if err := s.repo.Update(ctx, &next); err != nil {
		return nil, err
	}
	if patch.Status != nil {
		if err := s.repo.SetStatus(ctx, id, *patch.Status); err != nil {
			return nil, err
		}
	}
	s.invalidate(ctx)
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, p auth.Principal, id types.ID) error {
	if err := s.gate.Authorize(p, auth.CapDriverManage, ""); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx)
	s.log.Info("driver removed", "driver_id", id)
	return nil
}

func (s *Service) Get(ctx context.Context, p auth.Principal, id types.ID) (*Driver, error) {
	if err := s.gate.Authorize(p, auth.CapDriverManage, ""); err != nil {
		return nil, err
	}
	return s.repo.Get(ctx, id)
}

// List serves the fleet snapshot, cached for up to one poll interval.
func (s *Service) List(ctx context.Context, p auth.Principal) ([]*Driver, error) {
	if err := s.gate.Authorize(p, auth.CapDriverManage, ""); err != nil {
		return nil, err
	}
	if s.cache != nil {
		if drivers, ok := s.cache.Get(ctx); ok {
			return drivers, nil
		}
	}
	drivers, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, drivers)
	}
	return drivers, nil
}

// ListAvailable backs the assignment dropdown; always a fresh read so a newly
// busy driver drops out immediately.
func (s *Service) ListAvailable(ctx context.Context, p auth.Principal) ([]*Driver, error) {
	if err := s.gate.Authorize(p, auth.CapDriverManage, ""); err != nil {
		return nil, err
	}
	return s.repo.ListByStatus(ctx, StatusAvailable)
}

// SetStatus is the manual override. It never touches the driver's in-flight
// request; marking a serving driver offline leaves the request assigned.
func (s *Service) SetStatus(ctx context.Context, p auth.Principal, id types.ID, status Status) (*Driver, error) {
	if err := s.gate.Authorize(p, auth.CapDriverManage, ""); err != nil {
		return nil, err
	}
	if !ValidStatus(status) {
		return nil, ErrBadRequest
	}
	if err := s.repo.SetStatus(ctx, id, status); err != nil {
		return nil, err
	}
	s.invalidate(ctx)
	s.log.Info("driver status overridden", "driver_id", id, "status", status)
	return s.repo.Get(ctx, id)
}

func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		s.cache.Invalidate(ctx)
	}
}
