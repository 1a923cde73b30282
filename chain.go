package rowguard

import "context"

// ============================================================================
// RELATIONSHIP CHAIN AUTHORIZER
// ============================================================================

// authorizeChain walks the entity's foreign-key chain and allows the row only
// if every link resolves to a live row. A dangling or tombstoned link anywhere
// denies the whole chain (fail closed). Depth is fixed per entity type, so
// the walk is a bounded number of O(1) point lookups, all pinned to one store
// snapshot to rule out a link being tombstoned between two lookups.
func (e *Engine) authorizeChain(ctx context.Context, ent Entity) (bool, DenyReason, error) {
	r, release, err := e.store.Snapshot(ctx)
	if err != nil {
		return false, ReasonNone, err
	}
	defer release()

	switch v := ent.(type) {
	case *Organization:
		// Organizations are their own chain root.
		return true, ReasonNone, nil
	case *Product:
		return true, ReasonNone, nil
	case *Contact:
		return e.checkLiveOrg(ctx, r, v.OrganizationID, false)
	case *ProductPrincipal:
		if ok, reason, err := e.checkLiveProduct(ctx, r, v.ProductID); !ok || err != nil {
			return ok, reason, err
		}
		return e.checkLiveOrg(ctx, r, v.OrganizationID, true)
	case *Opportunity:
		if ok, reason, err := e.checkLiveOrg(ctx, r, v.OrganizationID, true); !ok || err != nil {
			return ok, reason, err
		}
		return e.checkLiveProduct(ctx, r, v.ProductID)
	case *Interaction:
		opp, err := r.GetOpportunity(ctx, v.OpportunityID, false)
		if err != nil {
			if err == ErrNotFound {
				return false, ReasonChainBroken, nil
			}
			return false, ReasonNone, err
		}
		return e.checkLiveOrg(ctx, r, opp.OrganizationID, true)
	}
	return false, ReasonChainBroken, nil
}

// checkLiveOrg resolves one organization hop. requirePrincipal additionally
// demands is_principal on the resolved row (opportunity and product chains
// must land on a principal, contact chains on any live organization).
func (e *Engine) checkLiveOrg(ctx context.Context, r EntityReader, orgID string, requirePrincipal bool) (bool, DenyReason, error) {
	org, err := r.GetOrganization(ctx, orgID, false)
	if err != nil {
		if err == ErrNotFound {
			return false, ReasonChainBroken, nil
		}
		return false, ReasonNone, err
	}
	if requirePrincipal && !org.IsPrincipal {
		return false, ReasonChainBroken, nil
	}
	return true, ReasonNone, nil
}

func (e *Engine) checkLiveProduct(ctx context.Context, r EntityReader, productID string) (bool, DenyReason, error) {
	if _, err := r.GetProduct(ctx, productID, false); err != nil {
		if err == ErrNotFound {
			return false, ReasonChainBroken, nil
		}
		return false, ReasonNone, err
	}
	return true, ReasonNone, nil
}

// referencedByLive reports whether any live opportunity or interaction still
// hangs off the row. Used by the hard-delete gate for organizations and
// contacts.
func (e *Engine) referencedByLive(ctx context.Context, entity EntityType, id string) (bool, error) {
	switch entity {
	case EntityOrganization:
		opps, err := e.store.ListOpportunitiesByOrganization(ctx, id)
		if err != nil {
			return false, err
		}
		if len(opps) > 0 {
			return true, nil
		}
		// A distributor with live principals is still referenced.
		principals, err := e.store.ListPrincipalsByDistributor(ctx, id)
		if err != nil {
			return false, err
		}
		if len(principals) > 0 {
			return true, nil
		}
		contacts, err := e.store.ListContactsByOrganization(ctx, id)
		if err != nil {
			return false, err
		}
		return len(contacts) > 0, nil
	case EntityContact:
		// Nothing references contacts directly in the relationship graph.
		return false, nil
	case EntityOpportunity:
		ints, err := e.store.ListInteractionsByOpportunity(ctx, id)
		if err != nil {
			return false, err
		}
		return len(ints) > 0, nil
	case EntityProduct:
		pps, err := e.store.ListProductPrincipalsByProduct(ctx, id)
		if err != nil {
			return false, err
		}
		return len(pps) > 0, nil
	}
	return false, nil
}
