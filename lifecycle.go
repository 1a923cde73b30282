package rowguard

import (
	"context"
	"time"
)

// ============================================================================
// SOFT-DELETE LIFECYCLE MANAGER + GUARDED WRITES
// ============================================================================

// Create evaluates then persists a new row. Field-constraint failures surface
// as *ConstraintViolationError, dangling references as
// *ReferentialIntegrityError, policy refusals as *PolicyDeniedError; none of
// them leave a partial write behind.
func (e *Engine) Create(ctx context.Context, rc RoleContext, ent Entity) error {
	now := time.Now()
	meta := ent.Meta()
	if meta.ID == "" {
		meta.ID = NewID()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = now
	}
	meta.UpdatedAt = now

	d, err := e.Evaluate(ctx, rc, OpCreate, ent)
	if err != nil {
		return err
	}
	if !d.Allowed {
		if cause := d.Cause(); cause != nil {
			return cause
		}
		return &PolicyDeniedError{Decision: d}
	}
	if err := e.put(ctx, ent); err != nil {
		return err
	}
	if ent.Kind() == EntityOrganization {
		e.invalidateHierarchy(meta.ID)
	}
	e.logger.Debug("row created", "entity", string(ent.Kind()), "id", meta.ID)
	return nil
}

// Update evaluates then persists changes to an existing row.
func (e *Engine) Update(ctx context.Context, rc RoleContext, ent Entity) error {
	d, err := e.Evaluate(ctx, rc, OpUpdate, ent)
	if err != nil {
		return err
	}
	if !d.Allowed {
		if cause := d.Cause(); cause != nil {
			return cause
		}
		return &PolicyDeniedError{Decision: d}
	}
	ent.Meta().UpdatedAt = time.Now()
	if err := e.put(ctx, ent); err != nil {
		return err
	}
	if ent.Kind() == EntityOrganization {
		e.invalidateHierarchy(ent.Meta().ID)
	}
	return nil
}

func (e *Engine) put(ctx context.Context, ent Entity) error {
	switch v := ent.(type) {
	case *Organization:
		return e.store.PutOrganization(ctx, v)
	case *Contact:
		return e.store.PutContact(ctx, v)
	case *Product:
		return e.store.PutProduct(ctx, v)
	case *ProductPrincipal:
		return e.store.PutProductPrincipal(ctx, v)
	case *Opportunity:
		return e.store.PutOpportunity(ctx, v)
	case *Interaction:
		return e.store.PutInteraction(ctx, v)
	}
	return &ConstraintViolationError{Entity: ent.Kind(), Field: "kind", Detail: "unknown entity type"}
}

// SoftDelete tombstones a row: deleted_at is set, the row stays physically
// present, and nothing cascades. Children remain individually addressable;
// their visibility is governed by their own tombstone state plus the chain
// check. Preserving dependents keeps the audit trail intact.
func (e *Engine) SoftDelete(ctx context.Context, rc RoleContext, entity EntityType, id string) error {
	ent, err := e.fetchAny(ctx, entity, id)
	if err != nil {
		return err
	}
	d, err := e.Evaluate(ctx, rc, OpDelete, ent)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &PolicyDeniedError{Decision: d}
	}
	now := time.Now()
	if err := e.store.SetDeletedAt(ctx, entity, id, &now); err != nil {
		return err
	}
	if entity == EntityOrganization {
		e.invalidateHierarchy(id)
	}
	e.logger.Info("row tombstoned", "entity", string(entity), "id", id)
	return nil
}

// Restore clears a tombstone, restoring prior visibility without data loss.
// Administrative operation: no role-matrix gate beyond requiring an
// authenticated principal.
func (e *Engine) Restore(ctx context.Context, rc RoleContext, entity EntityType, id string) error {
	if rc.Role != RoleAuthenticated {
		return &PolicyDeniedError{Decision: deny(time.Now(), ReasonNoPolicy)}
	}
	if _, err := e.fetchAny(ctx, entity, id); err != nil {
		return err
	}
	if err := e.store.SetDeletedAt(ctx, entity, id, nil); err != nil {
		return err
	}
	if entity == EntityOrganization {
		e.invalidateHierarchy(id)
	}
	e.logger.Info("row restored", "entity", string(entity), "id", id)
	return nil
}

// HardDelete physically removes a row. Interactions reject it
// unconditionally: tombstoning is their only sanctioned erasure path.
// Organizations and contacts are checked for live dependents first and fail
// with a referential-integrity error when any exist. Used by verified
// right-to-erasure purge flows; ordinary deletion goes through SoftDelete.
func (e *Engine) HardDelete(ctx context.Context, rc RoleContext, entity EntityType, id string) error {
	if entity == EntityInteraction {
		return ErrHardDeleteForbidden
	}
	if rc.Role != RoleAuthenticated {
		return &PolicyDeniedError{Decision: deny(time.Now(), ReasonNoPolicy)}
	}
	if _, err := e.fetchAny(ctx, entity, id); err != nil {
		return err
	}
	if entity == EntityOrganization || entity == EntityContact {
		referenced, err := e.referencedByLive(ctx, entity, id)
		if err != nil {
			return err
		}
		if referenced {
			return &ReferentialIntegrityError{Entity: entity, TargetID: id, Referenced: true}
		}
	}
	if err := e.store.HardDelete(ctx, entity, id); err != nil {
		return err
	}
	if entity == EntityOrganization {
		e.invalidateHierarchy(id)
	}
	e.logger.Info("row hard-deleted", "entity", string(entity), "id", id)
	return nil
}

// Fetch reads a row through policy: role matrix, tombstone filter, and chain
// authorization all apply. A tombstoned row and a row behind a broken chain
// are both reported as *PolicyDeniedError; the caller cannot distinguish
// either from a row that never existed.
func (e *Engine) Fetch(ctx context.Context, rc RoleContext, entity EntityType, id string) (Entity, error) {
	ent, err := e.fetchAny(ctx, entity, id)
	if err != nil {
		return nil, err
	}
	d, err := e.Evaluate(ctx, rc, OpRead, ent)
	if err != nil {
		return nil, err
	}
	if !d.Allowed {
		return nil, &PolicyDeniedError{Decision: d}
	}
	return ent, nil
}

// fetchAny loads a row including tombstones; administrative and lifecycle
// paths need to see tombstoned rows to act on them.
func (e *Engine) fetchAny(ctx context.Context, entity EntityType, id string) (Entity, error) {
	switch entity {
	case EntityOrganization:
		return e.store.GetOrganization(ctx, id, true)
	case EntityContact:
		return e.store.GetContact(ctx, id, true)
	case EntityProduct:
		return e.store.GetProduct(ctx, id, true)
	case EntityProductPrincipal:
		return e.store.GetProductPrincipal(ctx, id, true)
	case EntityOpportunity:
		return e.store.GetOpportunity(ctx, id, true)
	case EntityInteraction:
		return e.store.GetInteraction(ctx, id, true)
	}
	return nil, ErrNotFound
}
