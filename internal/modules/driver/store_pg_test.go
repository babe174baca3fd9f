// README: Postgres-backed registry store tests; need a real database, gated on env DSN.
package driver

import (
	"bufio"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lifeline/internal/types"
)

func setupPGStore(t *testing.T) (*Store, *pgxpool.Pool) {
	t.Helper()

	dsn := os.Getenv("LIFELINE_TEST_DSN")
	if dsn == "" {
		t.Skip("LIFELINE_TEST_DSN not set; skipping DB-backed tests")
	}

	ctx := context.Background()
	db, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := applyMigration(ctx, db); err != nil {
		t.Fatalf("apply migration: %v", err)
	}
	if _, err := db.Exec(ctx, "TRUNCATE TABLE dispatch_events, transport_requests, drivers"); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}

	return NewStore(db), db
}

func applyMigration(ctx context.Context, db *pgxpool.Pool) error {
	root, err := repoRoot()
	if err != nil {
		return err
	}
	content, err := os.ReadFile(filepath.Join(root, "migrations", "0001_init.sql"))
	if err != nil {
		return err
	}
	cleaned := stripSQLComments(string(content))
	for _, stmt := range splitSQL(cleaned) {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func repoRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return "", os.ErrNotExist
}

func stripSQLComments(input string) string {
	var b strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(input))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "--") {
			continue
		}
		b.WriteString(scanner.Text())
		b.WriteString("\n")
	}
	return b.String()
}

func splitSQL(input string) []string {
	parts := strings.Split(input, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		stmt := strings.TrimSpace(p)
		if stmt == "" {
			continue
		}
		out = append(out, stmt)
	}
	return out
}

func seedPGDriver(t *testing.T, store *Store, id types.ID) {
	t.Helper()
	err := store.Create(context.Background(), &Driver{
		ID:            id,
		Name:          "Driver " + string(id),
		Phone:         "555-" + string(id),
		LicenseNumber: "LIC-" + string(id),
		Status:        StatusAvailable,
		CreatedAt:     time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed driver %s: %v", id, err)
	}
}

// TestPGDeleteDriverWithHistory covers the FK path: completed requests retain
// driver_id, so removing a driver with past service must come back as a typed
// conflict, not a raw constraint error.
func TestPGDeleteDriverWithHistory(t *testing.T) {
	store, db := setupPGStore(t)
	ctx := context.Background()

	seedPGDriver(t, store, "d1")
	_, err := db.Exec(ctx, `
		INSERT INTO transport_requests (id, requester_id, pickup_location, emergency_type, status, driver_id, created_at, completed_at)
		VALUES ('r1', 'u1', 'Main gate', 'accident', 'completed', 'd1', NOW(), NOW())`)
	if err != nil {
		t.Fatalf("seed completed request: %v", err)
	}

	if err := store.Delete(ctx, "d1"); !errors.Is(err, ErrDriverReferenced) {
		t.Fatalf("delete driver with history: err = %v, want ErrDriverReferenced", err)
	}
	if _, err := store.Get(ctx, "d1"); err != nil {
		t.Fatalf("driver vanished after refused delete: %v", err)
	}
}

// TestPGUpdateLeavesStatusAlone checks the SQL itself: a profile write built
// from a stale row must not revert a driver that went busy in between.
func TestPGUpdateLeavesStatusAlone(t *testing.T) {
	store, db := setupPGStore(t)
	ctx := context.Background()

	seedPGDriver(t, store, "d1")
	stale, err := store.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}

	// concurrent assignment commits after the snapshot read
	if _, err := db.Exec(ctx, `UPDATE drivers SET status = 'busy' WHERE id = 'd1'`); err != nil {
		t.Fatalf("mark busy: %v", err)
	}

	stale.Phone = "555-0199"
	if err := store.Update(ctx, stale); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Phone != "555-0199" {
		t.Fatalf("phone = %s, want 555-0199", got.Phone)
	}
	if got.Status != StatusBusy {
		t.Fatalf("driver status after profile update = %s, want busy", got.Status)
	}
}
