package rowguard

import (
	"context"
	"testing"
)

func TestResolveHierarchyPrincipalWithDistributor(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	dist := seedDistributor(t, eng, "Northern Distribution")
	principal := &Organization{Name: "Roastery", IsPrincipal: true, DistributorID: dist.ID}
	mustCreate(t, eng, principal)

	chain, err := eng.ResolveHierarchy(ctx, principal.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if chain.Org.ID != principal.ID {
		t.Fatalf("expected chain rooted at principal")
	}
	if chain.Distributor == nil || chain.Distributor.ID != dist.ID {
		t.Fatalf("expected distributor in chain")
	}
	if chain.TenantID() != dist.ID {
		t.Fatalf("expected tenant boundary at distributor, got %s", chain.TenantID())
	}
}

func TestResolveHierarchyDistributorListsPrincipals(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	dist := seedDistributor(t, eng, "Northern Distribution")
	p1 := &Organization{Name: "Roastery A", IsPrincipal: true, DistributorID: dist.ID}
	p2 := &Organization{Name: "Roastery B", IsPrincipal: true, DistributorID: dist.ID}
	mustCreate(t, eng, p1)
	mustCreate(t, eng, p2)

	chain, err := eng.ResolveHierarchy(ctx, dist.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(chain.Principals) != 2 {
		t.Fatalf("expected 2 principals, got %d", len(chain.Principals))
	}
}

func TestTombstonedDistributorDropsOutOfChain(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	rc := Authenticated("admin")

	dist := seedDistributor(t, eng, "Fading Distribution")
	principal := &Organization{Name: "Standalone Roastery", IsPrincipal: true, DistributorID: dist.ID}
	mustCreate(t, eng, principal)

	if err := eng.SoftDelete(ctx, rc, EntityOrganization, dist.ID); err != nil {
		t.Fatalf("soft delete distributor: %v", err)
	}

	// The principal stays resolvable; its chain just loses the distributor.
	chain, err := eng.ResolveHierarchy(ctx, principal.ID)
	if err != nil {
		t.Fatalf("resolve after distributor tombstone: %v", err)
	}
	if chain.Distributor != nil {
		t.Fatalf("expected distributor dropped from chain")
	}
	if chain.TenantID() != principal.ID {
		t.Fatalf("expected tenant boundary to fall back to the principal")
	}
}

func TestSameTenant(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	dist := seedDistributor(t, eng, "Shared Distribution")
	p1 := &Organization{Name: "Sibling A", IsPrincipal: true, DistributorID: dist.ID}
	p2 := &Organization{Name: "Sibling B", IsPrincipal: true, DistributorID: dist.ID}
	solo := seedPrincipal(t, eng, "Lone Principal")
	mustCreate(t, eng, p1)
	mustCreate(t, eng, p2)

	same, err := eng.SameTenant(ctx, p1.ID, p2.ID)
	if err != nil {
		t.Fatalf("same tenant: %v", err)
	}
	if !same {
		t.Fatalf("expected siblings under one distributor to share a tenant")
	}

	same, err = eng.SameTenant(ctx, p1.ID, solo.ID)
	if err != nil {
		t.Fatalf("same tenant: %v", err)
	}
	if same {
		t.Fatalf("expected unrelated principals to be isolated")
	}
}

func TestHierarchyCacheInvalidatedOnWrite(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	rc := Authenticated("admin")

	dist := seedDistributor(t, eng, "Mutable Distribution")
	principal := &Organization{Name: "Cached Roastery", IsPrincipal: true, DistributorID: dist.ID}
	mustCreate(t, eng, principal)

	chain, err := eng.ResolveHierarchy(ctx, principal.ID)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if chain.Distributor == nil {
		t.Fatalf("expected distributor before tombstone")
	}
	eng.hierCacheWait()

	// Tombstoning the distributor must not serve the stale chain.
	if err := eng.SoftDelete(ctx, rc, EntityOrganization, dist.ID); err != nil {
		t.Fatalf("soft delete distributor: %v", err)
	}
	chain, err = eng.ResolveHierarchy(ctx, principal.ID)
	if err != nil {
		t.Fatalf("resolve after invalidation: %v", err)
	}
	if chain.Distributor != nil {
		t.Fatalf("expected fresh chain without distributor")
	}
}

func TestResolveHierarchyUnknownOrg(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	if _, err := eng.ResolveHierarchy(ctx, "missing"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
