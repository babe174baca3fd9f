// README: Driver registry tests over an in-memory repository.
package driver

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lifeline/internal/auth"
	"lifeline/internal/types"
)

type memRepo struct {
	mu      sync.Mutex
	drivers map[types.ID]*Driver
}

func newMemRepo() *memRepo {
	return &memRepo{drivers: make(map[types.ID]*Driver)}
}

func (m *memRepo) Create(_ context.Context, d *Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.drivers {
		if existing.Phone == d.Phone || existing.LicenseNumber == d.LicenseNumber {
			return ErrDuplicate
		}
	}
	cp := *d
	m.drivers[d.ID] = &cp
	return nil
}

func (m *memRepo) Get(_ context.Context, id types.ID) (*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *d
	return &cp, nil
}

// Update mirrors the Postgres store: profile fields only, status untouched.
func (m *memRepo) Update(_ context.Context, d *Driver) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.drivers[d.ID]
	if !ok {
		return ErrNotFound
	}
	for id, existing := range m.drivers {
		if id == d.ID {
			continue
		}
		if existing.Phone == d.Phone || existing.LicenseNumber == d.LicenseNumber {
			return ErrDuplicate
		}
	}
	cp := *d
	cp.Status = cur.Status
	m.drivers[d.ID] = &cp
	return nil
}

func (m *memRepo) Delete(_ context.Context, id types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return ErrNotFound
	}
	if d.Status == StatusBusy {
		return ErrDriverBusy
	}
	delete(m.drivers, id)
	return nil
}

func (m *memRepo) List(_ context.Context) ([]*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Driver, 0, len(m.drivers))
	for _, d := range m.drivers {
		cp := *d
		out = append(out, &cp)
	}
	return out, nil
}

func (m *memRepo) ListByStatus(_ context.Context, status Status) ([]*Driver, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Driver, 0)
	for _, d := range m.drivers {
		if d.Status == status {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *memRepo) SetStatus(_ context.Context, id types.ID, status Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.drivers[id]
	if !ok {
		return ErrNotFound
	}
	d.Status = status
	return nil
}

var admin = auth.Principal{ID: "a1", Role: auth.RoleAdmin}

func newTestService(repo Repository) *Service {
	return NewService(repo, auth.NewGateway(), nil, nil)
}

func mustRegister(t *testing.T, svc *Service, name, phone, license string) *Driver {
	t.Helper()
	d, err := svc.Create(context.Background(), admin, CreateCommand{
		Name: name, Phone: phone, LicenseNumber: license,
	})
	if err != nil {
		t.Fatalf("register driver %s: %v", name, err)
	}
	return d
}

func TestCreateDriver(t *testing.T) {
	svc := newTestService(newMemRepo())
	ctx := context.Background()

	d := mustRegister(t, svc, "Alice", "555-0101", "AMB-001")
	if d.Status != StatusAvailable {
		t.Fatalf("new driver status = %s, want available", d.Status)
	}
	if d.ID == "" {
		t.Fatal("new driver has no id")
	}

	if _, err := svc.Create(ctx, admin, CreateCommand{Name: "Bob", Phone: "555-0102"}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("missing license: err = %v, want ErrBadRequest", err)
	}
	if _, err := svc.Create(ctx, admin, CreateCommand{
		Name: "Bob", Phone: "555-0101", LicenseNumber: "AMB-002",
	}); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("duplicate phone: err = %v, want ErrDuplicate", err)
	}
	if _, err := svc.Create(ctx, auth.Principal{ID: "u1", Role: auth.RoleUser}, CreateCommand{
		Name: "Eve", Phone: "555-0103", LicenseNumber: "AMB-003",
	}); !errors.Is(err, auth.ErrForbidden) {
		t.Fatalf("non-admin create: err = %v, want ErrForbidden", err)
	}
}

func TestUpdateDriverPatch(t *testing.T) {
	svc := newTestService(newMemRepo())
	ctx := context.Background()

	d := mustRegister(t, svc, "Alice", "555-0101", "AMB-001")

	phone := "555-0199"
	updated, err := svc.Update(ctx, admin, d.ID, Patch{Phone: &phone})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Phone != phone {
		t.Fatalf("phone = %s, want %s", updated.Phone, phone)
	}
	if updated.Name != "Alice" || updated.LicenseNumber != "AMB-001" {
		t.Fatalf("patch clobbered unrelated fields: %+v", updated)
	}

	empty := ""
	if _, err := svc.Update(ctx, admin, d.ID, Patch{Name: &empty}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("blank name: err = %v, want ErrBadRequest", err)
	}
	bad := Status("on_break")
	if _, err := svc.Update(ctx, admin, d.ID, Patch{Status: &bad}); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("unknown status: err = %v, want ErrBadRequest", err)
	}
	if _, err := svc.Update(ctx, admin, "ghost", Patch{Phone: &phone}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown driver: err = %v, want ErrNotFound", err)
	}

	// explicit status override in the patch still applies
	offline := StatusOffline
	updated, err = svc.Update(ctx, admin, d.ID, Patch{Status: &offline})
	if err != nil {
		t.Fatalf("status patch: %v", err)
	}
	if updated.Status != StatusOffline {
		t.Fatalf("status = %s, want offline", updated.Status)
	}
}

// racingRepo marks the driver busy right after the service's snapshot read,
// standing in for an assignment transaction that commits between the read and
// the profile write.
type racingRepo struct {
	*memRepo
	raced bool
}

func (r *racingRepo) Get(ctx context.Context, id types.ID) (*Driver, error) {
	d, err := r.memRepo.Get(ctx, id)
	if err == nil && !r.raced {
		r.raced = true
		if err := r.memRepo.SetStatus(ctx, id, StatusBusy); err != nil {
			return nil, err
		}
	}
	return d, err
}

// TestUpdateKeepsConcurrentBusyStatus pins the allocation invariant against
// profile edits: a patch of an unrelated field built from a stale snapshot
// must not write the old status back over a concurrent assignment.
func TestUpdateKeepsConcurrentBusyStatus(t *testing.T) {
	repo := &racingRepo{memRepo: newMemRepo()}
	svc := newTestService(repo)
	ctx := context.Background()

	d := mustRegister(t, svc, "Alice", "555-0101", "AMB-001")

	phone := "555-0199"
	updated, err := svc.Update(ctx, admin, d.ID, Patch{Phone: &phone})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Phone != phone {
		t.Fatalf("phone = %s, want %s", updated.Phone, phone)
	}
	if updated.Status != StatusBusy {
		t.Fatalf("driver status after unrelated phone edit = %s, want busy", updated.Status)
	}

	stored, err := repo.memRepo.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != StatusBusy {
		t.Fatalf("stored driver status = %s, want busy", stored.Status)
	}
}

func TestDeleteBusyDriverRefused(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	d := mustRegister(t, svc, "Alice", "555-0101", "AMB-001")
	if err := repo.SetStatus(ctx, d.ID, StatusBusy); err != nil {
		t.Fatalf("set busy: %v", err)
	}

	if err := svc.Delete(ctx, admin, d.ID); !errors.Is(err, ErrDriverBusy) {
		t.Fatalf("delete busy driver: err = %v, want ErrDriverBusy", err)
	}
	if _, err := svc.Get(ctx, admin, d.ID); err != nil {
		t.Fatalf("busy driver vanished: %v", err)
	}

	if err := repo.SetStatus(ctx, d.ID, StatusAvailable); err != nil {
		t.Fatalf("set available: %v", err)
	}
	if err := svc.Delete(ctx, admin, d.ID); err != nil {
		t.Fatalf("delete available driver: %v", err)
	}
	if err := svc.Delete(ctx, admin, d.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete: err = %v, want ErrNotFound", err)
	}
}

func TestSetStatusOverride(t *testing.T) {
	svc := newTestService(newMemRepo())
	ctx := context.Background()

	d := mustRegister(t, svc, "Alice", "555-0101", "AMB-001")

	updated, err := svc.SetStatus(ctx, admin, d.ID, StatusOffline)
	if err != nil {
		t.Fatalf("set offline: %v", err)
	}
	if updated.Status != StatusOffline {
		t.Fatalf("status = %s, want offline", updated.Status)
	}

	if _, err := svc.SetStatus(ctx, admin, d.ID, Status("repairing")); !errors.Is(err, ErrBadRequest) {
		t.Fatalf("unknown status: err = %v, want ErrBadRequest", err)
	}
	if _, err := svc.SetStatus(ctx, admin, "ghost", StatusOffline); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown driver: err = %v, want ErrNotFound", err)
	}
}

func TestListAvailable(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	mustRegister(t, svc, "Alice", "555-0101", "AMB-001")
	busy := mustRegister(t, svc, "Bob", "555-0102", "AMB-002")
	off := mustRegister(t, svc, "Carol", "555-0103", "AMB-003")
	repo.SetStatus(ctx, busy.ID, StatusBusy)
	repo.SetStatus(ctx, off.ID, StatusOffline)

	available, err := svc.ListAvailable(ctx, admin)
	if err != nil {
		t.Fatalf("list available: %v", err)
	}
	if len(available) != 1 || available[0].Name != "Alice" {
		t.Fatalf("available = %+v, want only Alice", available)
	}

	all, err := svc.List(ctx, admin)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("list returned %d drivers, want 3", len(all))
	}
}
