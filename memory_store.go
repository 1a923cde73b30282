package rowguard

import (
	"context"
	"sync"
	"time"
)

// ============================================================================
// IN-MEMORY STORES (tests and demos)
// ============================================================================

// MemoryEntityStore keeps every table in maps behind one RWMutex. Snapshot
// holds the read lock for the duration of a chain walk; WriteTx holds the
// write lock, buffering nothing: the callback's mutations apply directly and
// a returned error rolls them back from saved copies.
type MemoryEntityStore struct {
	mu sync.RWMutex

	organizations     map[string]*Organization
	contacts          map[string]*Contact
	products          map[string]*Product
	productPrincipals map[string]*ProductPrincipal
	opportunities     map[string]*Opportunity
	interactions      map[string]*Interaction

	consents map[string][]*ConsentEvent // contactID -> events, append-only
}

func NewMemoryEntityStore() *MemoryEntityStore {
	return &MemoryEntityStore{
		organizations:     make(map[string]*Organization),
		contacts:          make(map[string]*Contact),
		products:          make(map[string]*Product),
		productPrincipals: make(map[string]*ProductPrincipal),
		opportunities:     make(map[string]*Opportunity),
		interactions:      make(map[string]*Interaction),
		consents:          make(map[string][]*ConsentEvent),
	}
}

// ---- reads ----

func (s *MemoryEntityStore) GetOrganization(ctx context.Context, id string, includeTombstoned bool) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getOrganizationLocked(id, includeTombstoned)
}

func (s *MemoryEntityStore) getOrganizationLocked(id string, includeTombstoned bool) (*Organization, error) {
	o, ok := s.organizations[id]
	if !ok || (!includeTombstoned && o.Tombstoned()) {
		return nil, ErrNotFound
	}
	dup := *o
	return &dup, nil
}

func (s *MemoryEntityStore) GetContact(ctx context.Context, id string, includeTombstoned bool) (*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getContactLocked(id, includeTombstoned)
}

func (s *MemoryEntityStore) getContactLocked(id string, includeTombstoned bool) (*Contact, error) {
	c, ok := s.contacts[id]
	if !ok || (!includeTombstoned && c.Tombstoned()) {
		return nil, ErrNotFound
	}
	dup := *c
	return &dup, nil
}

func (s *MemoryEntityStore) GetProduct(ctx context.Context, id string, includeTombstoned bool) (*Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProductLocked(id, includeTombstoned)
}

func (s *MemoryEntityStore) getProductLocked(id string, includeTombstoned bool) (*Product, error) {
	p, ok := s.products[id]
	if !ok || (!includeTombstoned && p.Tombstoned()) {
		return nil, ErrNotFound
	}
	dup := *p
	return &dup, nil
}

func (s *MemoryEntityStore) GetProductPrincipal(ctx context.Context, id string, includeTombstoned bool) (*ProductPrincipal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getProductPrincipalLocked(id, includeTombstoned)
}

func (s *MemoryEntityStore) getProductPrincipalLocked(id string, includeTombstoned bool) (*ProductPrincipal, error) {
	pp, ok := s.productPrincipals[id]
	if !ok || (!includeTombstoned && pp.Tombstoned()) {
		return nil, ErrNotFound
	}
	dup := *pp
	return &dup, nil
}

func (s *MemoryEntityStore) GetOpportunity(ctx context.Context, id string, includeTombstoned bool) (*Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getOpportunityLocked(id, includeTombstoned)
}

func (s *MemoryEntityStore) getOpportunityLocked(id string, includeTombstoned bool) (*Opportunity, error) {
	o, ok := s.opportunities[id]
	if !ok || (!includeTombstoned && o.Tombstoned()) {
		return nil, ErrNotFound
	}
	dup := *o
	return &dup, nil
}

func (s *MemoryEntityStore) GetInteraction(ctx context.Context, id string, includeTombstoned bool) (*Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getInteractionLocked(id, includeTombstoned)
}

func (s *MemoryEntityStore) getInteractionLocked(id string, includeTombstoned bool) (*Interaction, error) {
	i, ok := s.interactions[id]
	if !ok || (!includeTombstoned && i.Tombstoned()) {
		return nil, ErrNotFound
	}
	dup := *i
	return &dup, nil
}

func (s *MemoryEntityStore) ListPrincipalsByDistributor(ctx context.Context, distributorID string) ([]*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listPrincipalsByDistributorLocked(distributorID)
}

func (s *MemoryEntityStore) listPrincipalsByDistributorLocked(distributorID string) ([]*Organization, error) {
	result := make([]*Organization, 0)
	for _, o := range s.organizations {
		if o.Tombstoned() || !o.IsPrincipal || o.DistributorID != distributorID {
			continue
		}
		dup := *o
		result = append(result, &dup)
	}
	return result, nil
}

func (s *MemoryEntityStore) ListContactsByOrganization(ctx context.Context, organizationID string) ([]*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listContactsByOrganizationLocked(organizationID)
}

func (s *MemoryEntityStore) listContactsByOrganizationLocked(organizationID string) ([]*Contact, error) {
	result := make([]*Contact, 0)
	for _, c := range s.contacts {
		if c.Tombstoned() || c.OrganizationID != organizationID {
			continue
		}
		dup := *c
		result = append(result, &dup)
	}
	return result, nil
}

func (s *MemoryEntityStore) ListContactsByRetentionCategory(ctx context.Context, category RetentionCategory) ([]*Contact, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listContactsByRetentionCategoryLocked(category)
}

func (s *MemoryEntityStore) listContactsByRetentionCategoryLocked(category RetentionCategory) ([]*Contact, error) {
	result := make([]*Contact, 0)
	for _, c := range s.contacts {
		if c.Tombstoned() || c.DataRetentionCategory != category {
			continue
		}
		dup := *c
		result = append(result, &dup)
	}
	return result, nil
}

func (s *MemoryEntityStore) ListOpportunitiesByOrganization(ctx context.Context, organizationID string) ([]*Opportunity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listOpportunitiesByOrganizationLocked(organizationID)
}

func (s *MemoryEntityStore) listOpportunitiesByOrganizationLocked(organizationID string) ([]*Opportunity, error) {
	result := make([]*Opportunity, 0)
	for _, o := range s.opportunities {
		if o.Tombstoned() || o.OrganizationID != organizationID {
			continue
		}
		dup := *o
		result = append(result, &dup)
	}
	return result, nil
}

func (s *MemoryEntityStore) ListInteractionsByOpportunity(ctx context.Context, opportunityID string) ([]*Interaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listInteractionsByOpportunityLocked(opportunityID)
}

func (s *MemoryEntityStore) listInteractionsByOpportunityLocked(opportunityID string) ([]*Interaction, error) {
	result := make([]*Interaction, 0)
	for _, i := range s.interactions {
		if i.Tombstoned() || i.OpportunityID != opportunityID {
			continue
		}
		dup := *i
		result = append(result, &dup)
	}
	return result, nil
}

func (s *MemoryEntityStore) ListProductPrincipalsByProduct(ctx context.Context, productID string) ([]*ProductPrincipal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.listProductPrincipalsByProductLocked(productID)
}

func (s *MemoryEntityStore) listProductPrincipalsByProductLocked(productID string) ([]*ProductPrincipal, error) {
	result := make([]*ProductPrincipal, 0)
	for _, pp := range s.productPrincipals {
		if pp.Tombstoned() || pp.ProductID != productID {
			continue
		}
		dup := *pp
		result = append(result, &dup)
	}
	return result, nil
}

// ---- writes ----

func (s *MemoryEntityStore) PutOrganization(ctx context.Context, o *Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *o
	s.organizations[o.ID] = &dup
	return nil
}

func (s *MemoryEntityStore) PutContact(ctx context.Context, c *Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *c
	s.contacts[c.ID] = &dup
	return nil
}

func (s *MemoryEntityStore) PutProduct(ctx context.Context, p *Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *p
	s.products[p.ID] = &dup
	return nil
}

func (s *MemoryEntityStore) PutProductPrincipal(ctx context.Context, pp *ProductPrincipal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *pp
	s.productPrincipals[pp.ID] = &dup
	return nil
}

func (s *MemoryEntityStore) PutOpportunity(ctx context.Context, o *Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *o
	s.opportunities[o.ID] = &dup
	return nil
}

func (s *MemoryEntityStore) PutInteraction(ctx context.Context, i *Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *i
	s.interactions[i.ID] = &dup
	return nil
}

func (s *MemoryEntityStore) SetDeletedAt(ctx context.Context, entity EntityType, id string, deletedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := s.metaLocked(entity, id)
	if meta == nil {
		return ErrNotFound
	}
	meta.DeletedAt = deletedAt
	meta.UpdatedAt = time.Now()
	return nil
}

func (s *MemoryEntityStore) HardDelete(ctx context.Context, entity EntityType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hardDeleteLocked(entity, id)
}

func (s *MemoryEntityStore) hardDeleteLocked(entity EntityType, id string) error {
	switch entity {
	case EntityOrganization:
		if _, ok := s.organizations[id]; !ok {
			return ErrNotFound
		}
		delete(s.organizations, id)
	case EntityContact:
		if _, ok := s.contacts[id]; !ok {
			return ErrNotFound
		}
		delete(s.contacts, id)
	case EntityProduct:
		if _, ok := s.products[id]; !ok {
			return ErrNotFound
		}
		delete(s.products, id)
	case EntityProductPrincipal:
		if _, ok := s.productPrincipals[id]; !ok {
			return ErrNotFound
		}
		delete(s.productPrincipals, id)
	case EntityOpportunity:
		if _, ok := s.opportunities[id]; !ok {
			return ErrNotFound
		}
		delete(s.opportunities, id)
	case EntityInteraction:
		// The store enforces this independently of the engine gate.
		return ErrHardDeleteForbidden
	default:
		return ErrNotFound
	}
	return nil
}

func (s *MemoryEntityStore) metaLocked(entity EntityType, id string) *Row {
	switch entity {
	case EntityOrganization:
		if o, ok := s.organizations[id]; ok {
			return &o.Row
		}
	case EntityContact:
		if c, ok := s.contacts[id]; ok {
			return &c.Row
		}
	case EntityProduct:
		if p, ok := s.products[id]; ok {
			return &p.Row
		}
	case EntityProductPrincipal:
		if pp, ok := s.productPrincipals[id]; ok {
			return &pp.Row
		}
	case EntityOpportunity:
		if o, ok := s.opportunities[id]; ok {
			return &o.Row
		}
	case EntityInteraction:
		if i, ok := s.interactions[id]; ok {
			return &i.Row
		}
	}
	return nil
}

// Snapshot pins the store by holding the read lock until release, the same
// contract as the SQL store: every lookup inside the snapshot sees one
// consistent state, writers queue until release, and setup costs nothing no
// matter how many rows the store holds.
func (s *MemoryEntityStore) Snapshot(ctx context.Context) (EntityReader, func(), error) {
	s.mu.RLock()
	var once sync.Once
	return &memorySnapshot{store: s}, func() { once.Do(s.mu.RUnlock) }, nil
}

// memorySnapshot reads the live maps directly. The snapshot's read lock keeps
// writers out, so no per-call locking is needed until release.
type memorySnapshot struct {
	store *MemoryEntityStore
}

func (s *memorySnapshot) GetOrganization(ctx context.Context, id string, includeTombstoned bool) (*Organization, error) {
	return s.store.getOrganizationLocked(id, includeTombstoned)
}

func (s *memorySnapshot) GetContact(ctx context.Context, id string, includeTombstoned bool) (*Contact, error) {
	return s.store.getContactLocked(id, includeTombstoned)
}

func (s *memorySnapshot) GetProduct(ctx context.Context, id string, includeTombstoned bool) (*Product, error) {
	return s.store.getProductLocked(id, includeTombstoned)
}

func (s *memorySnapshot) GetProductPrincipal(ctx context.Context, id string, includeTombstoned bool) (*ProductPrincipal, error) {
	return s.store.getProductPrincipalLocked(id, includeTombstoned)
}

func (s *memorySnapshot) GetOpportunity(ctx context.Context, id string, includeTombstoned bool) (*Opportunity, error) {
	return s.store.getOpportunityLocked(id, includeTombstoned)
}

func (s *memorySnapshot) GetInteraction(ctx context.Context, id string, includeTombstoned bool) (*Interaction, error) {
	return s.store.getInteractionLocked(id, includeTombstoned)
}

func (s *memorySnapshot) ListPrincipalsByDistributor(ctx context.Context, distributorID string) ([]*Organization, error) {
	return s.store.listPrincipalsByDistributorLocked(distributorID)
}

func (s *memorySnapshot) ListContactsByOrganization(ctx context.Context, organizationID string) ([]*Contact, error) {
	return s.store.listContactsByOrganizationLocked(organizationID)
}

func (s *memorySnapshot) ListContactsByRetentionCategory(ctx context.Context, category RetentionCategory) ([]*Contact, error) {
	return s.store.listContactsByRetentionCategoryLocked(category)
}

func (s *memorySnapshot) ListOpportunitiesByOrganization(ctx context.Context, organizationID string) ([]*Opportunity, error) {
	return s.store.listOpportunitiesByOrganizationLocked(organizationID)
}

func (s *memorySnapshot) ListInteractionsByOpportunity(ctx context.Context, opportunityID string) ([]*Interaction, error) {
	return s.store.listInteractionsByOpportunityLocked(opportunityID)
}

func (s *memorySnapshot) ListProductPrincipalsByProduct(ctx context.Context, productID string) ([]*ProductPrincipal, error) {
	return s.store.listProductPrincipalsByProductLocked(productID)
}

// WriteTx runs fn under the write lock against a scratch copy and swaps it in
// only on success, so a failed multi-row write applies nothing.
func (s *MemoryEntityStore) WriteTx(ctx context.Context, fn func(tx EntityWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memoryTx{store: s}
	if err := fn(tx); err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// memoryTx applies writes directly (the caller holds the store lock) while
// remembering enough to undo them.
type memoryTx struct {
	store *MemoryEntityStore
	undo  []func()
}

func (t *memoryTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
}

func (t *memoryTx) PutOrganization(ctx context.Context, o *Organization) error {
	prev, had := t.store.organizations[o.ID]
	t.undo = append(t.undo, func() { restoreMap(t.store.organizations, o.ID, prev, had) })
	dup := *o
	t.store.organizations[o.ID] = &dup
	return nil
}

func (t *memoryTx) PutContact(ctx context.Context, c *Contact) error {
	prev, had := t.store.contacts[c.ID]
	t.undo = append(t.undo, func() { restoreMap(t.store.contacts, c.ID, prev, had) })
	dup := *c
	t.store.contacts[c.ID] = &dup
	return nil
}

func (t *memoryTx) PutProduct(ctx context.Context, p *Product) error {
	prev, had := t.store.products[p.ID]
	t.undo = append(t.undo, func() { restoreMap(t.store.products, p.ID, prev, had) })
	dup := *p
	t.store.products[p.ID] = &dup
	return nil
}

func (t *memoryTx) PutProductPrincipal(ctx context.Context, pp *ProductPrincipal) error {
	prev, had := t.store.productPrincipals[pp.ID]
	t.undo = append(t.undo, func() { restoreMap(t.store.productPrincipals, pp.ID, prev, had) })
	dup := *pp
	t.store.productPrincipals[pp.ID] = &dup
	return nil
}

func (t *memoryTx) PutOpportunity(ctx context.Context, o *Opportunity) error {
	prev, had := t.store.opportunities[o.ID]
	t.undo = append(t.undo, func() { restoreMap(t.store.opportunities, o.ID, prev, had) })
	dup := *o
	t.store.opportunities[o.ID] = &dup
	return nil
}

func (t *memoryTx) PutInteraction(ctx context.Context, i *Interaction) error {
	prev, had := t.store.interactions[i.ID]
	t.undo = append(t.undo, func() { restoreMap(t.store.interactions, i.ID, prev, had) })
	dup := *i
	t.store.interactions[i.ID] = &dup
	return nil
}

func (t *memoryTx) SetDeletedAt(ctx context.Context, entity EntityType, id string, deletedAt *time.Time) error {
	meta := t.store.metaLocked(entity, id)
	if meta == nil {
		return ErrNotFound
	}
	prev := meta.DeletedAt
	prevUpdated := meta.UpdatedAt
	t.undo = append(t.undo, func() {
		meta.DeletedAt = prev
		meta.UpdatedAt = prevUpdated
	})
	meta.DeletedAt = deletedAt
	meta.UpdatedAt = time.Now()
	return nil
}

func (t *memoryTx) HardDelete(ctx context.Context, entity EntityType, id string) error {
	switch entity {
	case EntityOrganization:
		prev, had := t.store.organizations[id]
		t.undo = append(t.undo, func() { restoreMap(t.store.organizations, id, prev, had) })
	case EntityContact:
		prev, had := t.store.contacts[id]
		t.undo = append(t.undo, func() { restoreMap(t.store.contacts, id, prev, had) })
	case EntityProduct:
		prev, had := t.store.products[id]
		t.undo = append(t.undo, func() { restoreMap(t.store.products, id, prev, had) })
	case EntityProductPrincipal:
		prev, had := t.store.productPrincipals[id]
		t.undo = append(t.undo, func() { restoreMap(t.store.productPrincipals, id, prev, had) })
	case EntityOpportunity:
		prev, had := t.store.opportunities[id]
		t.undo = append(t.undo, func() { restoreMap(t.store.opportunities, id, prev, had) })
	}
	return t.store.hardDeleteLocked(entity, id)
}

func restoreMap[T any](m map[string]*T, id string, prev *T, had bool) {
	if had {
		m[id] = prev
	} else {
		delete(m, id)
	}
}

// ---- consent ledger (same store, so purges can be atomic) ----

func (s *MemoryEntityStore) Append(ctx context.Context, ev *ConsentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *ev
	s.consents[ev.ContactID] = append(s.consents[ev.ContactID], &dup)
	return nil
}

func (s *MemoryEntityStore) History(ctx context.Context, contactID, purpose string) ([]*ConsentEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*ConsentEvent, 0)
	for _, ev := range s.consents[contactID] {
		if purpose != "" && ev.Purpose != purpose {
			continue
		}
		dup := *ev
		result = append(result, &dup)
	}
	return result, nil
}

func (s *MemoryEntityStore) PurgeContact(ctx context.Context, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.consents, contactID)
	return nil
}

// PurgeContactAtomic removes the contact row and its consent events under one
// lock acquisition.
func (s *MemoryEntityStore) PurgeContactAtomic(ctx context.Context, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.contacts[contactID]; !ok {
		return ErrNotFound
	}
	delete(s.contacts, contactID)
	delete(s.consents, contactID)
	return nil
}

// ============================================================================
// IN-MEMORY COMPLIANCE / AUDIT STORES
// ============================================================================

// MemoryBreachStore keeps breach entries in a map.
type MemoryBreachStore struct {
	mu       sync.RWMutex
	breaches map[string]*BreachLogEntry
}

func NewMemoryBreachStore() *MemoryBreachStore {
	return &MemoryBreachStore{breaches: make(map[string]*BreachLogEntry)}
}

func (s *MemoryBreachStore) PutBreach(ctx context.Context, b *BreachLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *b
	s.breaches[b.IncidentID] = &dup
	return nil
}

func (s *MemoryBreachStore) GetBreach(ctx context.Context, incidentID string) (*BreachLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.breaches[incidentID]
	if !ok {
		return nil, ErrNotFound
	}
	dup := *b
	return &dup, nil
}

// ListBreaches filters by state; SLA lateness is applied by the engine, which
// owns the SLA duration.
func (s *MemoryBreachStore) ListBreaches(ctx context.Context, filter BreachFilter) ([]*BreachLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*BreachLogEntry, 0)
	for _, b := range s.breaches {
		if filter.State != "" && b.State != filter.State {
			continue
		}
		dup := *b
		result = append(result, &dup)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}

// MemoryErasureLog keeps erasure records in an append-only slice.
type MemoryErasureLog struct {
	mu      sync.RWMutex
	entries []*ErasureLogEntry
}

func NewMemoryErasureLog() *MemoryErasureLog {
	return &MemoryErasureLog{entries: make([]*ErasureLogEntry, 0)}
}

func (s *MemoryErasureLog) AppendErasure(ctx context.Context, e *ErasureLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	dup := *e
	s.entries = append(s.entries, &dup)
	return nil
}

func (s *MemoryErasureLog) ListErasures(ctx context.Context, contactID string) ([]*ErasureLogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*ErasureLogEntry, 0)
	for _, e := range s.entries {
		if contactID != "" && e.ContactID != contactID {
			continue
		}
		dup := *e
		result = append(result, &dup)
	}
	return result, nil
}

// MemoryAuditStore keeps decision audit entries in memory.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	entries []*AuditEntry
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{entries: make([]*AuditEntry, 0)}
}

func (s *MemoryAuditStore) LogDecision(ctx context.Context, entry *AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

func (s *MemoryAuditStore) GetAccessLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*AuditEntry, 0)
	for _, entry := range s.entries {
		if filter.PrincipalID != "" && entry.Principal.PrincipalID != filter.PrincipalID {
			continue
		}
		if filter.Entity != "" && entry.Entity != filter.Entity {
			continue
		}
		if filter.RowID != "" && entry.RowID != filter.RowID {
			continue
		}
		if filter.Operation != "" && entry.Operation != filter.Operation {
			continue
		}
		if !filter.StartTime.IsZero() && entry.Timestamp.Before(filter.StartTime) {
			continue
		}
		if !filter.EndTime.IsZero() && entry.Timestamp.After(filter.EndTime) {
			continue
		}
		result = append(result, entry)
		if filter.Limit > 0 && len(result) >= filter.Limit {
			break
		}
	}
	return result, nil
}
