package rowguard

import (
	"context"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/oarkflow/rowguard/logger"
)

// ============================================================================
// DECISIONS
// ============================================================================

// DenyReason is the closed set of machine-readable denial reasons.
type DenyReason string

const (
	ReasonNone            DenyReason = ""
	ReasonNoPolicy        DenyReason = "no_policy"
	ReasonChainBroken     DenyReason = "chain_broken"
	ReasonRowTombstoned   DenyReason = "row_tombstoned"
	ReasonFieldConstraint DenyReason = "field_constraint_violated"
	ReasonHardDelete      DenyReason = "hard_delete_forbidden"
	ReasonDangling        DenyReason = "dangling_reference"
)

// Decision is the outcome of one policy evaluation.
type Decision struct {
	Allowed   bool       `json:"allowed"`
	Reason    DenyReason `json:"reason,omitempty"`
	Trace     []string   `json:"trace,omitempty"`
	Timestamp time.Time  `json:"timestamp"`

	cause error
}

// Cause returns the typed error behind a denial, when one exists: a
// ConstraintViolationError for field failures, a ReferentialIntegrityError
// for dangling create references. Nil for plain policy denials.
func (d *Decision) Cause() error { return d.cause }

func allow(at time.Time) *Decision {
	return &Decision{Allowed: true, Timestamp: at}
}

func deny(at time.Time, reason DenyReason) *Decision {
	return &Decision{Allowed: false, Reason: reason, Timestamp: at}
}

// ============================================================================
// ROLE MATRIX
// ============================================================================

// grantSet is the per-role operation grant for one entity type.
type grantSet map[RoleKind]map[Operation]bool

func grants(ops ...Operation) map[Operation]bool {
	m := make(map[Operation]bool, len(ops))
	for _, op := range ops {
		m[op] = true
	}
	return m
}

// baselineMatrix is the current role-based policy. Tenant-scoped narrowing is
// a forward-looking concern: the matrix is keyed per entity type and the
// RoleContext travels through every evaluation, so narrowing slots in without
// restructuring.
func baselineMatrix() map[EntityType]grantSet {
	return map[EntityType]grantSet{
		EntityContact: {
			RoleAnonymous:     grants(OpRead, OpCreate), // demo mode, config-gated
			RoleAuthenticated: grants(OpRead, OpCreate, OpUpdate, OpDelete),
		},
		EntityOrganization: {
			RoleAuthenticated: grants(OpRead, OpCreate, OpUpdate, OpDelete),
		},
		EntityProduct: {
			RoleAuthenticated: grants(OpRead, OpCreate, OpUpdate, OpDelete),
		},
		EntityProductPrincipal: {
			RoleAuthenticated: grants(OpRead, OpCreate, OpUpdate, OpDelete),
		},
		EntityOpportunity: {
			RoleAuthenticated: grants(OpRead, OpCreate, OpUpdate, OpDelete),
		},
		EntityInteraction: {
			RoleAuthenticated: grants(OpRead, OpCreate, OpUpdate, OpDelete),
		},
	}
}

// ============================================================================
// ENGINE
// ============================================================================

// Logger is re-exported so engine consumers don't need the logger package.
type Logger = logger.Logger

// TraceIDFunc generates a correlation id per evaluated request.
type TraceIDFunc = logger.TraceIDFunc

// EngineOption configures an Engine at construction time.
type EngineOption func(*Engine) error

// WithLogger installs a Logger on the Engine.
func WithLogger(l Logger) EngineOption {
	return func(e *Engine) error {
		e.logger = l
		return nil
	}
}

// WithTraceIDFunc installs a custom trace ID generator on the engine.
func WithTraceIDFunc(f TraceIDFunc) EngineOption {
	return func(e *Engine) error {
		e.traceIDFunc = f
		return nil
	}
}

// WithAuditStore enables decision auditing through the async worker.
func WithAuditStore(s AuditStore) EngineOption {
	return func(e *Engine) error {
		e.auditStore = s
		return nil
	}
}

// Engine is the central decision and lifecycle component. It is stateless per
// request: every evaluation is a pure function of its inputs plus point
// lookups against the entity store, so it is safe to call from any number of
// goroutines. The only engine-owned shared state is the hierarchy cache and
// the async audit channel, both concurrency-safe.
type Engine struct {
	store      EntityStore
	consents   ConsentStore
	breaches   BreachStore
	erasures   ErasureLog
	auditStore AuditStore

	matrix             map[EntityType]grantSet
	allowAnonymousDemo bool
	authoritySLA       time.Duration
	retentionRules     map[RetentionCategory]int // category -> max age days

	hierCache    *ristretto.Cache
	hierCacheTTL time.Duration

	exportStager ExportStager

	logger      Logger
	traceIDFunc TraceIDFunc

	auditCh chan AuditEntry
	stopCh  chan struct{}
}

// NewEngine wires the engine to its stores. Audit is optional (see
// WithAuditStore); everything else is required.
func NewEngine(store EntityStore, consents ConsentStore, breaches BreachStore, erasures ErasureLog, opts ...EngineOption) (*Engine, error) {
	e := &Engine{
		store:              store,
		consents:           consents,
		breaches:           breaches,
		erasures:           erasures,
		matrix:             baselineMatrix(),
		allowAnonymousDemo: true,
		authoritySLA:       72 * time.Hour,
		hierCacheTTL:       time.Second, // default short TTL
		logger:             logger.NewNullLogger(),
	}
	for _, opt := range opts {
		if err := opt(e); err != nil {
			return nil, err
		}
	}
	if err := e.ConfigureHierarchyCache(0, 0, 0); err != nil {
		return nil, err
	}

	e.auditCh = make(chan AuditEntry, 1024)
	e.stopCh = make(chan struct{})
	go e.auditWorker()
	return e, nil
}

func (e *Engine) auditWorker() {
	bg := context.Background()
	for {
		select {
		case entry := <-e.auditCh:
			if e.auditStore != nil {
				if err := e.auditStore.LogDecision(bg, &entry); err != nil {
					e.logger.Error("audit log failed", "entry_id", entry.ID, "error", err.Error())
				}
			}
		case <-e.stopCh:
			return
		}
	}
}

// ConfigureHierarchyCache replaces the hierarchy cache with one sized by the
// given ristretto parameters. Zero or negative values fall back to the
// defaults. Anything cached so far is discarded.
func (e *Engine) ConfigureHierarchyCache(numCounters, maxCost, bufferItems int64) error {
	if numCounters <= 0 {
		numCounters = 1 << 14
	}
	if maxCost <= 0 {
		maxCost = 1 << 20
	}
	if bufferItems <= 0 {
		bufferItems = 64
	}
	cache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: numCounters,
		MaxCost:     maxCost,
		BufferItems: bufferItems,
	})
	if err != nil {
		return err
	}
	if e.hierCache != nil {
		e.hierCache.Close()
	}
	e.hierCache = cache
	return nil
}

// Close stops the audit worker and releases the hierarchy cache.
func (e *Engine) Close() {
	select {
	case <-e.stopCh:
	default:
		close(e.stopCh)
	}
	e.hierCache.Close()
}

func (e *Engine) auditDecision(rc RoleContext, op Operation, entity EntityType, rowID string, d *Decision) {
	entry := AuditEntry{
		ID:        NewID(),
		Timestamp: d.Timestamp,
		Principal: rc,
		Operation: op,
		Entity:    entity,
		RowID:     rowID,
		Decision:  d,
	}
	if e.traceIDFunc != nil {
		entry.TraceID = e.traceIDFunc()
	}
	select {
	case e.auditCh <- entry:
	default:
		// drop rather than block the request path
		e.logger.Debug("audit channel full, dropping entry", "row_id", rowID)
	}
}

// ============================================================================
// EVALUATION
// ============================================================================

// Evaluate is the central decision function. It checks, in order: role-matrix
// grant, tombstone visibility, relationship chain, field constraints, and
// foreign-key liveness for creates. Deny-first; the first failing gate wins.
func (e *Engine) Evaluate(ctx context.Context, rc RoleContext, op Operation, ent Entity) (*Decision, error) {
	now := time.Now()
	kind := ent.Kind()

	// 1. Role matrix
	if !e.roleGranted(rc, op, kind) {
		d := deny(now, ReasonNoPolicy)
		e.auditDecision(rc, op, kind, ent.Meta().ID, d)
		return d, nil
	}

	// 2. Tombstone visibility for existing rows
	if op != OpCreate && ent.Meta().Tombstoned() {
		d := deny(now, ReasonRowTombstoned)
		e.auditDecision(rc, op, kind, ent.Meta().ID, d)
		return d, nil
	}

	// 3. Field constraints on writes
	if op == OpCreate || op == OpUpdate {
		if err := ent.Validate(); err != nil {
			d := deny(now, ReasonFieldConstraint)
			d.cause = err
			d.Trace = append(d.Trace, err.Error())
			e.auditDecision(rc, op, kind, ent.Meta().ID, d)
			return d, nil
		}
		cause, err := e.checkStoreConstraints(ctx, ent)
		if err != nil {
			return nil, err
		}
		if cause != nil {
			d := deny(now, ReasonFieldConstraint)
			d.cause = cause
			d.Trace = append(d.Trace, cause.Error())
			e.auditDecision(rc, op, kind, ent.Meta().ID, d)
			return d, nil
		}
	}

	// 4. Foreign keys must reference live rows at create time
	if op == OpCreate {
		cause, err := e.checkReferences(ctx, ent)
		if err != nil {
			return nil, err
		}
		if cause != nil {
			d := deny(now, ReasonDangling)
			d.cause = cause
			d.Trace = append(d.Trace, cause.Error())
			e.auditDecision(rc, op, kind, ent.Meta().ID, d)
			return d, nil
		}
	}

	// 5. Relationship chain for reads and mutations of existing rows
	if op == OpRead || op == OpUpdate || op == OpDelete {
		ok, reason, err := e.authorizeChain(ctx, ent)
		if err != nil {
			return nil, err
		}
		if !ok {
			d := deny(now, reason)
			e.auditDecision(rc, op, kind, ent.Meta().ID, d)
			return d, nil
		}
	}

	d := allow(now)
	e.auditDecision(rc, op, kind, ent.Meta().ID, d)
	return d, nil
}

func (e *Engine) roleGranted(rc RoleContext, op Operation, kind EntityType) bool {
	if rc.Role == RoleAnonymous && kind == EntityContact && !e.allowAnonymousDemo {
		return false
	}
	roleGrants, ok := e.matrix[kind]
	if !ok {
		return false
	}
	ops, ok := roleGrants[rc.Role]
	if !ok {
		return false
	}
	return ops[op]
}

// checkStoreConstraints enforces invariants that need sibling rows: at most
// one exclusive-rights grant per product. Returns (cause, err): cause is the
// typed violation, err is a store failure.
func (e *Engine) checkStoreConstraints(ctx context.Context, ent Entity) (error, error) {
	pp, ok := ent.(*ProductPrincipal)
	if !ok || !pp.ExclusiveRights {
		return nil, nil
	}
	siblings, err := e.store.ListProductPrincipalsByProduct(ctx, pp.ProductID)
	if err != nil {
		return nil, err
	}
	for _, s := range siblings {
		if s.ID != pp.ID && s.ExclusiveRights {
			return &ConstraintViolationError{
				Entity: EntityProductPrincipal,
				Field:  "exclusive_rights",
				Detail: "another principal already holds exclusive rights for this product",
			}, nil
		}
	}
	return nil, nil
}

// checkReferences verifies every foreign key points at a live row. Returns
// (cause, err) like checkStoreConstraints.
func (e *Engine) checkReferences(ctx context.Context, ent Entity) (error, error) {
	switch v := ent.(type) {
	case *Organization:
		if v.DistributorID == "" {
			return nil, nil
		}
		dist, err := e.store.GetOrganization(ctx, v.DistributorID, true)
		if err != nil {
			if err == ErrNotFound {
				return &ReferentialIntegrityError{Entity: EntityOrganization, Field: "distributor_id", TargetID: v.DistributorID}, nil
			}
			return nil, err
		}
		if dist.Tombstoned() {
			return &ReferentialIntegrityError{Entity: EntityOrganization, Field: "distributor_id", TargetID: v.DistributorID, Tombstone: true}, nil
		}
		if !dist.IsDistributor {
			return &ConstraintViolationError{Entity: EntityOrganization, Field: "distributor_id", Detail: "referenced organization is not a distributor"}, nil
		}
		return nil, nil
	case *Contact:
		return e.requireLiveOrganization(ctx, EntityContact, "organization_id", v.OrganizationID)
	case *Product:
		return nil, nil
	case *ProductPrincipal:
		if cause, err := e.requireLiveProduct(ctx, EntityProductPrincipal, "product_id", v.ProductID); cause != nil || err != nil {
			return cause, err
		}
		return e.requireLiveOrganization(ctx, EntityProductPrincipal, "organization_id", v.OrganizationID)
	case *Opportunity:
		if cause, err := e.requireLiveOrganization(ctx, EntityOpportunity, "organization_id", v.OrganizationID); cause != nil || err != nil {
			return cause, err
		}
		return e.requireLiveProduct(ctx, EntityOpportunity, "product_id", v.ProductID)
	case *Interaction:
		opp, err := e.store.GetOpportunity(ctx, v.OpportunityID, true)
		if err != nil {
			if err == ErrNotFound {
				return &ReferentialIntegrityError{Entity: EntityInteraction, Field: "opportunity_id", TargetID: v.OpportunityID}, nil
			}
			return nil, err
		}
		if opp.Tombstoned() {
			return &ReferentialIntegrityError{Entity: EntityInteraction, Field: "opportunity_id", TargetID: v.OpportunityID, Tombstone: true}, nil
		}
		return nil, nil
	}
	return nil, nil
}

func (e *Engine) requireLiveOrganization(ctx context.Context, entity EntityType, field, id string) (error, error) {
	org, err := e.store.GetOrganization(ctx, id, true)
	if err != nil {
		if err == ErrNotFound {
			return &ReferentialIntegrityError{Entity: entity, Field: field, TargetID: id}, nil
		}
		return nil, err
	}
	if org.Tombstoned() {
		return &ReferentialIntegrityError{Entity: entity, Field: field, TargetID: id, Tombstone: true}, nil
	}
	return nil, nil
}

func (e *Engine) requireLiveProduct(ctx context.Context, entity EntityType, field, id string) (error, error) {
	p, err := e.store.GetProduct(ctx, id, true)
	if err != nil {
		if err == ErrNotFound {
			return &ReferentialIntegrityError{Entity: entity, Field: field, TargetID: id}, nil
		}
		return nil, err
	}
	if p.Tombstoned() {
		return &ReferentialIntegrityError{Entity: entity, Field: field, TargetID: id, Tombstone: true}, nil
	}
	return nil, nil
}
