// README: Concurrency tests for the allocation invariant; run with -race.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"lifeline/internal/types"
)

// TestConcurrentAssignSingleDriver fires many assignments at one available
// driver. Exactly one may win; every loser must see ErrDriverUnavailable.
func TestConcurrentAssignSingleDriver(t *testing.T) {
	const n = 16

	store := newMemStore()
	store.addDriver("d1", "available")
	svc := newTestService(store)
	ctx := context.Background()

	ids := make([]types.ID, n)
	for i := range ids {
		ids[i] = mustCreateRequest(t, svc, requester)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.AssignDriver(ctx, dispatcher, ids[i], "d1")
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrDriverUnavailable):
		default:
			t.Errorf("assign %d: unexpected error %v", i, err)
		}
	}
	if wins != 1 {
		t.Fatalf("winning assignments = %d, want exactly 1", wins)
	}
	if got := store.driverStatus("d1"); got != "busy" {
		t.Fatalf("driver status = %s, want busy", got)
	}

	assigned := 0
	for _, id := range ids {
		r, err := svc.GetRequest(ctx, dispatcher, id)
		if err != nil {
			t.Fatalf("get %s: %v", id, err)
		}
		if r.Status == StatusAssigned {
			assigned++
		}
	}
	if assigned != 1 {
		t.Fatalf("assigned requests = %d, want exactly 1", assigned)
	}
}

// TestCompleteCancelRace races completion against cancellation of the same
// assigned request. One transition wins; the other fails the terminal check
// and the driver is released exactly once.
func TestCompleteCancelRace(t *testing.T) {
	const rounds = 20

	for i := 0; i < rounds; i++ {
		store := newMemStore()
		store.addDriver("d1", "available")
		svc := newTestService(store)
		ctx := context.Background()

		id := mustCreateRequest(t, svc, requester)
		if _, err := svc.AssignDriver(ctx, dispatcher, id, "d1"); err != nil {
			t.Fatalf("assign: %v", err)
		}

		var wg sync.WaitGroup
		var completeErr, cancelErr error
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, completeErr = svc.CompleteRequest(ctx, dispatcher, id, "d1")
		}()
		go func() {
			defer wg.Done()
			_, cancelErr = svc.CancelRequest(ctx, requester, id)
		}()
		wg.Wait()

		if (completeErr == nil) == (cancelErr == nil) {
			t.Fatalf("round %d: complete err = %v, cancel err = %v, want exactly one success",
				i, completeErr, cancelErr)
		}
		for _, err := range []error{completeErr, cancelErr} {
			if err != nil && !errors.Is(err, ErrInvalidState) {
				t.Fatalf("round %d: loser error = %v, want ErrInvalidState", i, err)
			}
		}

		r, err := svc.GetRequest(ctx, dispatcher, id)
		if err != nil {
			t.Fatalf("round %d: get: %v", i, err)
		}
		if !r.Status.Terminal() {
			t.Fatalf("round %d: status = %s, want terminal", i, r.Status)
		}
		if got := store.driverStatus("d1"); got != "available" {
			t.Fatalf("round %d: driver status = %s, want available", i, got)
		}
	}
}
