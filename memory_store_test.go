package rowguard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestMemoryStoreTombstoneVisibility(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEntityStore()

	now := time.Now()
	org := &Organization{Row: Row{ID: "o1", CreatedAt: now, UpdatedAt: now}, Name: "Org"}
	if err := store.PutOrganization(ctx, org); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.SetDeletedAt(ctx, EntityOrganization, "o1", &now); err != nil {
		t.Fatalf("set deleted: %v", err)
	}

	if _, err := store.GetOrganization(ctx, "o1", false); err != ErrNotFound {
		t.Fatalf("expected tombstone hidden from live read, got %v", err)
	}
	got, err := store.GetOrganization(ctx, "o1", true)
	if err != nil {
		t.Fatalf("expected tombstone-inclusive read: %v", err)
	}
	if !got.Tombstoned() {
		t.Fatalf("expected tombstoned row")
	}
}

func TestMemoryStoreWriteTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEntityStore()

	now := time.Now()
	boom := errors.New("boom")
	err := store.WriteTx(ctx, func(tx EntityWriter) error {
		if err := tx.PutOrganization(ctx, &Organization{Row: Row{ID: "o1", CreatedAt: now, UpdatedAt: now}, Name: "A"}); err != nil {
			return err
		}
		if err := tx.PutProduct(ctx, &Product{Row: Row{ID: "p1", CreatedAt: now, UpdatedAt: now}, Name: "P", Category: CategoryFood}); err != nil {
			return err
		}
		return boom
	})
	if err != boom {
		t.Fatalf("expected boom, got %v", err)
	}

	// Nothing from the failed transaction is visible.
	if _, err := store.GetOrganization(ctx, "o1", true); err != ErrNotFound {
		t.Fatalf("expected org rolled back, got %v", err)
	}
	if _, err := store.GetProduct(ctx, "p1", true); err != ErrNotFound {
		t.Fatalf("expected product rolled back, got %v", err)
	}
}

func TestMemoryStoreWriteTxRestoresOverwrittenRows(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEntityStore()

	now := time.Now()
	if err := store.PutOrganization(ctx, &Organization{Row: Row{ID: "o1", CreatedAt: now, UpdatedAt: now}, Name: "Original"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	boom := errors.New("boom")
	_ = store.WriteTx(ctx, func(tx EntityWriter) error {
		_ = tx.PutOrganization(ctx, &Organization{Row: Row{ID: "o1", CreatedAt: now, UpdatedAt: now}, Name: "Mutated"})
		return boom
	})

	got, err := store.GetOrganization(ctx, "o1", true)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Name != "Original" {
		t.Fatalf("expected rollback to restore prior value, got %q", got.Name)
	}
}

func TestMemoryStoreSnapshotIsolation(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEntityStore()

	now := time.Now()
	if err := store.PutOrganization(ctx, &Organization{Row: Row{ID: "o1", CreatedAt: now, UpdatedAt: now}, Name: "Before"}); err != nil {
		t.Fatalf("put: %v", err)
	}

	snap, release, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// A concurrent write queues behind the open snapshot, so reads inside it
	// keep seeing the pinned state.
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := store.PutOrganization(ctx, &Organization{Row: Row{ID: "o1", CreatedAt: now, UpdatedAt: now}, Name: "After"}); err != nil {
			t.Errorf("put: %v", err)
		}
	}()

	select {
	case <-done:
		t.Fatalf("expected write to wait for snapshot release")
	case <-time.After(50 * time.Millisecond):
	}

	got, err := snap.GetOrganization(ctx, "o1", true)
	if err != nil {
		t.Fatalf("snapshot read: %v", err)
	}
	if got.Name != "Before" {
		t.Fatalf("expected snapshot pinned to Before, got %q", got.Name)
	}

	release()
	<-done

	got, err = store.GetOrganization(ctx, "o1", true)
	if err != nil {
		t.Fatalf("get after release: %v", err)
	}
	if got.Name != "After" {
		t.Fatalf("expected queued write applied after release, got %q", got.Name)
	}
}

func TestMemoryStoreHardDeleteInteractionRefused(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEntityStore()
	now := time.Now()
	i := &Interaction{Row: Row{ID: "i1", CreatedAt: now, UpdatedAt: now}, OpportunityID: "op", Type: InteractionEmail, Status: StatusOpen, Priority: PriorityLow, Outcome: OutcomePending}
	if err := store.PutInteraction(ctx, i); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.HardDelete(ctx, EntityInteraction, "i1"); !errors.Is(err, ErrHardDeleteForbidden) {
		t.Fatalf("expected ErrHardDeleteForbidden, got %v", err)
	}
}

func TestMemoryStorePurgeContactAtomic(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryEntityStore()
	now := time.Now()

	c := &Contact{Row: Row{ID: "c1", CreatedAt: now, UpdatedAt: now}, OrganizationID: "o1", Email: "x@y.z"}
	if err := store.PutContact(ctx, c); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := store.Append(ctx, &ConsentEvent{ID: "ev1", ContactID: "c1", Purpose: "marketing", Given: true, At: now}); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := store.PurgeContactAtomic(ctx, "c1"); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := store.GetContact(ctx, "c1", true); err != ErrNotFound {
		t.Fatalf("expected contact gone, got %v", err)
	}
	history, err := store.History(ctx, "c1", "")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 0 {
		t.Fatalf("expected ledger purged")
	}

	if err := store.PurgeContactAtomic(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for unknown contact, got %v", err)
	}
}
