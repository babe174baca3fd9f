// README: Request store backed by PostgreSQL; assign/complete/cancel mutate request and driver in one transaction.
package dispatch

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lifeline/internal/types"
)

var (
	ErrNotFound          = errors.New("request not found")
	ErrInvalidState      = errors.New("operation illegal for current request status")
	ErrDriverNotFound    = errors.New("driver not found")
	ErrDriverUnavailable = errors.New("driver is not available")
	ErrDriverMismatch    = errors.New("request is assigned to a different driver")
	ErrConflict          = errors.New("request state conflict")
	ErrBadRequest        = errors.New("bad request")
)

// Store is the persistence port for the coordinator. Every lifecycle mutation
// must be atomic across the request row and the affected driver row, so a
// half-applied assignment can never leak a busy driver with no request.
type Store interface {
	Create(ctx context.Context, r *Request) error
	Get(ctx context.Context, id types.ID) (*Request, error)
	ListAll(ctx context.Context) ([]*Request, error)
	ListByRequester(ctx context.Context, requester types.ID) ([]*Request, error)
	Assign(ctx context.Context, requestID, driverID, actor types.ID) error
	Complete(ctx context.Context, requestID, driverID, actor types.ID) error
	Cancel(ctx context.Context, requestID types.ID, actorType string, actor types.ID) error
	Events(ctx context.Context, requestID types.ID) ([]*Event, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(db *pgxpool.Pool) *PGStore {
	return &PGStore{db: db}
}

const requestColumns = `id, requester_id, requester_name, phone, pickup_location,
	pickup_lat, pickup_lng, emergency_type, preferred_hospital,
	status, status_version, driver_id, created_at, assigned_at, completed_at, cancelled_at`

func (s *PGStore) Create(ctx context.Context, r *Request) error {
	var lat, lng *float64
	if r.Coordinates != nil {
		lat, lng = &r.Coordinates.Lat, &r.Coordinates.Lng
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO transport_requests (
			id, requester_id, requester_name, phone, pickup_location,
			pickup_lat, pickup_lng, emergency_type, preferred_hospital,
			status, status_version, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, $11)`,
		string(r.ID), string(r.RequesterID), r.RequesterName, r.Phone, r.PickupLocation,
		lat, lng, r.EmergencyType, nullable(r.PreferredHospital),
		string(StatusPending), r.CreatedAt,
	)
	if err != nil {
		return err
	}
	actor := r.RequesterID
	if err := appendEvent(ctx, tx, r.ID, "", StatusPending, ActorRequester, &actor); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Get(ctx context.Context, id types.ID) (*Request, error) {
	row := s.db.QueryRow(ctx, `SELECT `+requestColumns+` FROM transport_requests WHERE id = $1`, string(id))
	return scanRequest(row)
}

func (s *PGStore) ListAll(ctx context.Context) ([]*Request, error) {
	rows, err := s.db.Query(ctx, `SELECT `+requestColumns+` FROM transport_requests ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

func (s *PGStore) ListByRequester(ctx context.Context, requester types.ID) ([]*Request, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+requestColumns+` FROM transport_requests WHERE requester_id = $1 ORDER BY created_at`,
		string(requester))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectRequests(rows)
}

// Assign flips the driver available→busy and the request pending→assigned as
// two guarded updates in one transaction. Losing the driver CAS is the
// concurrent-admin race; it surfaces as ErrDriverUnavailable, never a silent
// double booking.
func (s *PGStore) Assign(ctx context.Context, requestID, driverID, actor types.ID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE drivers SET status = 'busy', updated_at = NOW() WHERE id = $1 AND status = 'available'`,
		string(driverID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM drivers WHERE id = $1)`, string(driverID)).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrDriverNotFound
		}
		return ErrDriverUnavailable
	}

	tag, err = tx.Exec(ctx, `
		UPDATE transport_requests
		SET status = 'assigned', driver_id = $2, assigned_at = NOW(), status_version = status_version + 1
		WHERE id = $1 AND status = 'pending'`,
		string(requestID), string(driverID))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return s.requestCASFailure(ctx, tx, requestID)
	}

	if err := appendEvent(ctx, tx, requestID, StatusPending, StatusAssigned, ActorAdmin, &actor); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Complete keeps the driver reference on the request for history and releases
// the driver only from busy, so an explicit offline override is not undone.
func (s *PGStore) Complete(ctx context.Context, requestID, driverID, actor types.ID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	status, assigned, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if status != StatusAssigned {
		return ErrInvalidState
	}
	if assigned == nil || *assigned != driverID {
		return ErrDriverMismatch
	}

	if _, err := tx.Exec(ctx, `
		UPDATE transport_requests
		SET status = 'completed', completed_at = NOW(), status_version = status_version + 1
		WHERE id = $1`,
		string(requestID)); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx,
		`UPDATE drivers SET status = 'available', updated_at = NOW() WHERE id = $1 AND status = 'busy'`,
		string(driverID)); err != nil {
		return err
	}
	if err := appendEvent(ctx, tx, requestID, StatusAssigned, StatusCompleted, ActorAdmin, &actor); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Cancel is a status write, not a delete; the row and its events remain for
// audit. A second cancel fails the non-terminal check, so a driver is never
// freed twice.
func (s *PGStore) Cancel(ctx context.Context, requestID types.ID, actorType string, actor types.ID) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	status, assigned, err := lockRequest(ctx, tx, requestID)
	if err != nil {
		return err
	}
	if status.Terminal() {
		return ErrInvalidState
	}

	if _, err := tx.Exec(ctx, `
		UPDATE transport_requests
		SET status = 'cancelled', driver_id = NULL, cancelled_at = NOW(), status_version = status_version + 1
		WHERE id = $1`,
		string(requestID)); err != nil {
		return err
	}
	if assigned != nil {
		if _, err := tx.Exec(ctx,
			`UPDATE drivers SET status = 'available', updated_at = NOW() WHERE id = $1 AND status = 'busy'`,
			string(*assigned)); err != nil {
			return err
		}
	}
	if err := appendEvent(ctx, tx, requestID, status, StatusCancelled, actorType, &actor); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *PGStore) Events(ctx context.Context, requestID types.ID) ([]*Event, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, request_id, from_status, to_status, actor_type, actor_id, created_at
		FROM dispatch_events WHERE request_id = $1 ORDER BY id`,
		string(requestID))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]*Event, 0)
	for rows.Next() {
		var e Event
		var actorID *string
		if err := rows.Scan(&e.ID, &e.RequestID, &e.FromStatus, &e.ToStatus, &e.ActorType, &actorID, &e.CreatedAt); err != nil {
			return nil, err
		}
		if actorID != nil {
			id := types.ID(*actorID)
			e.ActorID = &id
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// lockRequest pins the request row for the rest of the transaction so
// complete and cancel racing on the same request serialize.
func lockRequest(ctx context.Context, tx pgx.Tx, id types.ID) (Status, *types.ID, error) {
	var status string
	var driverID *string
	err := tx.QueryRow(ctx,
		`SELECT status, driver_id FROM transport_requests WHERE id = $1 FOR UPDATE`,
		string(id)).Scan(&status, &driverID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, ErrNotFound
	}
	if err != nil {
		return "", nil, err
	}
	var assigned *types.ID
	if driverID != nil {
		d := types.ID(*driverID)
		assigned = &d
	}
	return Status(status), assigned, nil
}

func (s *PGStore) requestCASFailure(ctx context.Context, tx pgx.Tx, id types.ID) error {
	var status string
	err := tx.QueryRow(ctx, `SELECT status FROM transport_requests WHERE id = $1`, string(id)).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrInvalidState
}

func appendEvent(ctx context.Context, tx pgx.Tx, requestID types.ID, from, to Status, actorType string, actorID *types.ID) error {
	var actor *string
	if actorID != nil {
		a := string(*actorID)
		actor = &a
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO dispatch_events (request_id, from_status, to_status, actor_type, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, NOW())`,
		string(requestID), string(from), string(to), actorType, actor)
	return err
}

func scanRequest(row pgx.Row) (*Request, error) {
	r, err := scanRequestFrom(row.Scan)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return r, err
}

func collectRequests(rows pgx.Rows) ([]*Request, error) {
	out := make([]*Request, 0)
	for rows.Next() {
		r, err := scanRequestFrom(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanRequestFrom(scan func(...any) error) (*Request, error) {
	var r Request
	var lat, lng *float64
	var preferred, driverID *string
	err := scan(
		&r.ID, &r.RequesterID, &r.RequesterName, &r.Phone, &r.PickupLocation,
		&lat, &lng, &r.EmergencyType, &preferred,
		&r.Status, &r.StatusVersion, &driverID, &r.CreatedAt, &r.AssignedAt, &r.CompletedAt, &r.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	if lat != nil && lng != nil {
		r.Coordinates = &types.Point{Lat: *lat, Lng: *lng}
	}
	if preferred != nil {
		r.PreferredHospital = *preferred
	}
	if driverID != nil {
		d := types.ID(*driverID)
		r.DriverID = &d
	}
	return &r, nil
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
