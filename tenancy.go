package rowguard

import (
	"context"
)

// ============================================================================
// TENANT HIERARCHY RESOLVER
// ============================================================================

// OwnershipChain is the resolved tenant neighborhood of one organization:
// the organization itself, its distributor when it has one, and, for
// distributor-typed input, every principal it owns. The model is two-level
// (distributor <-> principal); no deeper recursion exists in the data model.
type OwnershipChain struct {
	Org         *Organization   `json:"org"`
	Distributor *Organization   `json:"distributor,omitempty"`
	Principals  []*Organization `json:"principals,omitempty"`
}

// TenantID returns the isolation-boundary id for the chain: the distributor
// when one exists, otherwise the organization itself.
func (c *OwnershipChain) TenantID() string {
	if c.Distributor != nil {
		return c.Distributor.ID
	}
	return c.Org.ID
}

// ResolveHierarchy computes the ownership chain for an organization. It is
// side-effect free and cached per engine with a short TTL; the cache is
// invalidated whenever an organization row is written. Returns ErrNotFound if
// the id does not resolve to a live organization.
func (e *Engine) ResolveHierarchy(ctx context.Context, orgID string) (*OwnershipChain, error) {
	if cached, ok := e.hierCache.Get(orgID); ok {
		if chain, ok := cached.(*OwnershipChain); ok {
			return chain, nil
		}
	}

	r, release, err := e.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	defer release()

	org, err := r.GetOrganization(ctx, orgID, false)
	if err != nil {
		return nil, err
	}
	chain := &OwnershipChain{Org: org}

	if org.DistributorID != "" {
		dist, err := r.GetOrganization(ctx, org.DistributorID, false)
		if err == nil {
			chain.Distributor = dist
		} else if err != ErrNotFound {
			return nil, err
		}
		// A tombstoned distributor simply drops out of the chain; the
		// principal itself stays resolvable.
	}

	if org.IsDistributor {
		principals, err := r.ListPrincipalsByDistributor(ctx, org.ID)
		if err != nil {
			return nil, err
		}
		chain.Principals = principals
	}

	e.hierCache.SetWithTTL(orgID, chain, 1, e.hierCacheTTL)
	return chain, nil
}

// SameTenant reports whether two organizations fall inside one isolation
// boundary: identical, one distributes the other, or both are principals of
// the same distributor.
func (e *Engine) SameTenant(ctx context.Context, orgA, orgB string) (bool, error) {
	if orgA == orgB {
		return true, nil
	}
	ca, err := e.ResolveHierarchy(ctx, orgA)
	if err != nil {
		return false, err
	}
	cb, err := e.ResolveHierarchy(ctx, orgB)
	if err != nil {
		return false, err
	}
	return ca.TenantID() == cb.TenantID(), nil
}

// invalidateHierarchy drops cached chains that may mention the organization.
// Chains are keyed by the resolved org, but a distributor write can change
// every owned principal's chain too, so the whole cache is cleared; entries
// are cheap to rebuild and carry a short TTL anyway.
func (e *Engine) invalidateHierarchy(orgID string) {
	e.hierCache.Del(orgID)
	e.hierCache.Clear()
}

// hierCacheWait flushes pending cache writes. Test hook: ristretto applies
// sets asynchronously.
func (e *Engine) hierCacheWait() { e.hierCache.Wait() }
