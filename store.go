package rowguard

import (
	"context"
	"time"
)

// ============================================================================
// STORAGE INTERFACES
// ============================================================================

// EntityReader is the read contract of the entity store: point-gets by id
// (tombstone-inclusive and tombstone-exclusive) and range scans by foreign
// key. Tombstone-exclusive reads return ErrNotFound for soft-deleted rows.
type EntityReader interface {
	GetOrganization(ctx context.Context, id string, includeTombstoned bool) (*Organization, error)
	GetContact(ctx context.Context, id string, includeTombstoned bool) (*Contact, error)
	GetProduct(ctx context.Context, id string, includeTombstoned bool) (*Product, error)
	GetProductPrincipal(ctx context.Context, id string, includeTombstoned bool) (*ProductPrincipal, error)
	GetOpportunity(ctx context.Context, id string, includeTombstoned bool) (*Opportunity, error)
	GetInteraction(ctx context.Context, id string, includeTombstoned bool) (*Interaction, error)

	// Range scans exclude tombstoned rows; they feed chain checks and the
	// retention sweep, both of which only ever see live rows.
	ListPrincipalsByDistributor(ctx context.Context, distributorID string) ([]*Organization, error)
	ListContactsByOrganization(ctx context.Context, organizationID string) ([]*Contact, error)
	ListContactsByRetentionCategory(ctx context.Context, category RetentionCategory) ([]*Contact, error)
	ListOpportunitiesByOrganization(ctx context.Context, organizationID string) ([]*Opportunity, error)
	ListInteractionsByOpportunity(ctx context.Context, opportunityID string) ([]*Interaction, error)
	ListProductPrincipalsByProduct(ctx context.Context, productID string) ([]*ProductPrincipal, error)
}

// EntityWriter is the write contract: upserts plus raw lifecycle mutations.
// Lifecycle rules (hard-delete gates, referential checks) live in the engine;
// the store executes what it is told.
type EntityWriter interface {
	PutOrganization(ctx context.Context, o *Organization) error
	PutContact(ctx context.Context, c *Contact) error
	PutProduct(ctx context.Context, p *Product) error
	PutProductPrincipal(ctx context.Context, pp *ProductPrincipal) error
	PutOpportunity(ctx context.Context, o *Opportunity) error
	PutInteraction(ctx context.Context, i *Interaction) error

	SetDeletedAt(ctx context.Context, entity EntityType, id string, deletedAt *time.Time) error
	HardDelete(ctx context.Context, entity EntityType, id string) error
}

// EntityStore is the full store contract. Snapshot returns a reader pinned to
// one consistent view so a chain check never observes a link tombstoned
// between two lookups; the release function must always be called. WriteTx
// applies a multi-row mutation atomically: either every change commits or
// none does.
type EntityStore interface {
	EntityReader
	EntityWriter
	Snapshot(ctx context.Context) (EntityReader, func(), error)
	WriteTx(ctx context.Context, fn func(tx EntityWriter) error) error
}

// ConsentStore persists the append-only consent ledger. Append never
// overwrites; History returns events oldest-first.
type ConsentStore interface {
	Append(ctx context.Context, ev *ConsentEvent) error
	History(ctx context.Context, contactID, purpose string) ([]*ConsentEvent, error)
	PurgeContact(ctx context.Context, contactID string) error
}

// BreachStore persists breach workflow entries.
type BreachStore interface {
	PutBreach(ctx context.Context, b *BreachLogEntry) error
	GetBreach(ctx context.Context, incidentID string) (*BreachLogEntry, error)
	ListBreaches(ctx context.Context, filter BreachFilter) ([]*BreachLogEntry, error)
}

// ErasureLog records every hard-purge before it executes: who, when, why.
type ErasureLog interface {
	AppendErasure(ctx context.Context, e *ErasureLogEntry) error
	ListErasures(ctx context.Context, contactID string) ([]*ErasureLogEntry, error)
}

// AtomicPurger is implemented by stores that can remove a contact row and its
// consent ledger in one transaction; the erasure path prefers it over a
// two-step purge.
type AtomicPurger interface {
	PurgeContactAtomic(ctx context.Context, contactID string) error
}

// AuditStore records evaluation decisions.
type AuditStore interface {
	LogDecision(ctx context.Context, entry *AuditEntry) error
	GetAccessLog(ctx context.Context, filter AuditFilter) ([]*AuditEntry, error)
}

// AuditEntry is one evaluated request.
type AuditEntry struct {
	ID        string      `json:"id"`
	Timestamp time.Time   `json:"timestamp"`
	Principal RoleContext `json:"principal"`
	Operation Operation   `json:"operation"`
	Entity    EntityType  `json:"entity"`
	RowID     string      `json:"row_id"`
	Decision  *Decision   `json:"decision"`
	TraceID   string      `json:"trace_id,omitempty"`
}

// GetTraceID returns the correlation id attached to the entry.
func (a *AuditEntry) GetTraceID() string { return a.TraceID }

// AuditFilter selects audit entries.
type AuditFilter struct {
	PrincipalID string
	Entity      EntityType
	RowID       string
	Operation   Operation
	StartTime   time.Time
	EndTime     time.Time
	Limit       int
}

// BreachFilter selects breach entries by workflow state and SLA lateness.
type BreachFilter struct {
	State    BreachState
	LateOnly bool
	Limit    int
}
