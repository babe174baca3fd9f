// README: Driver registry store backed by PostgreSQL.
package driver

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"lifeline/internal/types"
)

var (
	ErrNotFound         = errors.New("driver not found")
	ErrDuplicate        = errors.New("driver phone or license already registered")
	ErrDriverBusy       = errors.New("driver is serving an active request")
	ErrDriverReferenced = errors.New("driver is referenced by request history")
	ErrBadRequest       = errors.New("bad request")
)

// Repository is the registry persistence port; the Postgres implementation is
// Store, tests substitute an in-memory mock. Update writes profile fields only
// and must never touch status: status is owned by SetStatus and the dispatch
// assignment transaction, and a profile edit built from a snapshot read must
// not revert a driver that went busy in the meantime.
type Repository interface {
	Create(ctx context.Context, d *Driver) error
	Get(ctx context.Context, id types.ID) (*Driver, error)
	Update(ctx context.Context, d *Driver) error
	Delete(ctx context.Context, id types.ID) error
	List(ctx context.Context) ([]*Driver, error)
	ListByStatus(ctx context.Context, status Status) ([]*Driver, error)
	SetStatus(ctx context.Context, id types.ID, status Status) error
}

type Store struct {
	db *pgxpool.Pool
}

func NewStore(db *pgxpool.Pool) *Store {
	return &Store{db: db}
}

const driverColumns = `id, name, phone, license_number, address, location, status, created_at, updated_at`

func (s *Store) Create(ctx context.Context, d *Driver) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO drivers (id, name, phone, license_number, address, location, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		string(d.ID), d.Name, d.Phone, d.LicenseNumber, d.Address, d.Location, string(d.Status), d.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (s *Store) Get(ctx context.Context, id types.ID) (*Driver, error) {
	row := s.db.QueryRow(ctx, `SELECT `+driverColumns+` FROM drivers WHERE id = $1`, string(id))
	return scanDriver(row)
}

func (s *Store) Update(ctx context.Context, d *Driver) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE drivers
		SET name = $2, phone = $3, license_number = $4, address = $5, location = $6, updated_at = NOW()
		WHERE id = $1`,
		string(d.ID), d.Name, d.Phone, d.LicenseNumber, d.Address, d.Location,
	)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete refuses to remove a busy driver so no active request can end up
// referencing a missing driver. Completed and cancelled requests keep their
// driver_id for history, so a driver with past service trips the FK instead;
// that surfaces as ErrDriverReferenced rather than a raw database error.
func (s *Store) Delete(ctx context.Context, id types.ID) error {
	tag, err := s.db.Exec(ctx, `DELETE FROM drivers WHERE id = $1 AND status <> 'busy'`, string(id))
	if isForeignKeyViolation(err) {
		return ErrDriverReferenced
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 1 {
		return nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return ErrDriverBusy
}

func (s *Store) List(ctx context.Context) ([]*Driver, error) {
	rows, err := s.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDrivers(rows)
}

func (s *Store) ListByStatus(ctx context.Context, status Status) ([]*Driver, error) {
	rows, err := s.db.Query(ctx, `SELECT `+driverColumns+` FROM drivers WHERE status = $1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectDrivers(rows)
}

func (s *Store) SetStatus(ctx context.Context, id types.ID, status Status) error {
	tag, err := s.db.Exec(ctx, `UPDATE drivers SET status = $2, updated_at = NOW() WHERE id = $1`,
		string(id), string(status))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanDriver(row pgx.Row) (*Driver, error) {
	var d Driver
	err := row.Scan(&d.ID, &d.Name, &d.Phone, &d.LicenseNumber, &d.Address, &d.Location, &d.Status,
		&d.CreatedAt, &d.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func collectDrivers(rows pgx.Rows) ([]*Driver, error) {
	out := make([]*Driver, 0)
	for rows.Next() {
		var d Driver
		if err := rows.Scan(&d.ID, &d.Name, &d.Phone, &d.LicenseNumber, &d.Address, &d.Location, &d.Status,
			&d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func isForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23503"
}
