package rowguard

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestAnonymousRoleMatrix(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	org := seedPrincipal(t, eng, "Acme Principal")
	contact := seedContact(t, eng, org.ID, "jo@example.com")

	// Anonymous may read and create contacts (demo mode).
	if _, err := eng.Fetch(ctx, Anonymous(), EntityContact, contact.ID); err != nil {
		t.Fatalf("expected anonymous contact read to succeed: %v", err)
	}
	c2 := &Contact{OrganizationID: org.ID, Email: "anon@example.com", DataRetentionCategory: RetentionStandard}
	if err := eng.Create(ctx, Anonymous(), c2); err != nil {
		t.Fatalf("expected anonymous contact create to succeed: %v", err)
	}

	// Everything else is denied for anonymous.
	if _, err := eng.Fetch(ctx, Anonymous(), EntityOrganization, org.ID); err == nil {
		t.Fatalf("expected anonymous organization read to be denied")
	}
	if err := eng.Update(ctx, Anonymous(), contact); err == nil {
		t.Fatalf("expected anonymous contact update to be denied")
	}
	if err := eng.SoftDelete(ctx, Anonymous(), EntityContact, contact.ID); err == nil {
		t.Fatalf("expected anonymous contact delete to be denied")
	}
}

func TestAnonymousDemoModeDisabled(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	eng.allowAnonymousDemo = false

	org := seedPrincipal(t, eng, "Acme Principal")
	contact := seedContact(t, eng, org.ID, "jo@example.com")

	_, err := eng.Fetch(ctx, Anonymous(), EntityContact, contact.ID)
	if err == nil {
		t.Fatalf("expected anonymous read denied with demo mode off")
	}
	var pde *PolicyDeniedError
	if !errors.As(err, &pde) || pde.Decision.Reason != ReasonNoPolicy {
		t.Fatalf("expected no_policy denial, got %v", err)
	}
}

func TestAnonymousOpportunityReadDenied(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	rc := Authenticated("admin")

	org := seedPrincipal(t, eng, "Acme Principal")
	prod := seedProduct(t, eng, "Cold Brew")
	opp := seedOpportunity(t, eng, org.ID, prod.ID)

	// Opportunities carry no anonymous grant at all.
	_, err := eng.Fetch(ctx, Anonymous(), EntityOpportunity, opp.ID)
	var pde *PolicyDeniedError
	if !errors.As(err, &pde) || pde.Decision.Reason != ReasonNoPolicy {
		t.Fatalf("expected no_policy denial for live opportunity, got %v", err)
	}

	// Row state does not change the reason: the role gate fires first, so a
	// tombstoned opportunity denies identically.
	if err := eng.SoftDelete(ctx, rc, EntityOpportunity, opp.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	_, err = eng.Fetch(ctx, Anonymous(), EntityOpportunity, opp.ID)
	if !errors.As(err, &pde) || pde.Decision.Reason != ReasonNoPolicy {
		t.Fatalf("expected no_policy denial for tombstoned opportunity, got %v", err)
	}
}

func TestTombstonedRowDenied(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	rc := Authenticated("admin")

	org := seedPrincipal(t, eng, "Acme Principal")
	if err := eng.SoftDelete(ctx, rc, EntityOrganization, org.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}

	_, err := eng.Fetch(ctx, rc, EntityOrganization, org.ID)
	var pde *PolicyDeniedError
	if !errors.As(err, &pde) || pde.Decision.Reason != ReasonRowTombstoned {
		t.Fatalf("expected row_tombstoned denial, got %v", err)
	}
	if !errors.Is(err, ErrPolicyDenied) {
		t.Fatalf("expected error to unwrap to ErrPolicyDenied")
	}
}

func TestFieldConstraintDenialCarriesCause(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	org := seedPrincipal(t, eng, "Acme Principal")
	bad := &Contact{
		OrganizationID:        org.ID,
		Email:                 "jo@example.com",
		ProcessingPurposes:    []string{"a", "b", "c", "d", "e", "f"},
		DataRetentionCategory: RetentionStandard,
	}
	err := eng.Create(ctx, Authenticated("admin"), bad)
	var cve *ConstraintViolationError
	if !errors.As(err, &cve) {
		t.Fatalf("expected ConstraintViolationError, got %v", err)
	}
	if cve.Field != "processing_purpose" {
		t.Fatalf("expected processing_purpose violation, got %s", cve.Field)
	}
}

func TestExclusiveRightsUniquePerProduct(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	rc := Authenticated("admin")

	p1 := seedPrincipal(t, eng, "Principal One")
	p2 := seedPrincipal(t, eng, "Principal Two")
	prod := seedProduct(t, eng, "Cold Brew")

	first := &ProductPrincipal{ProductID: prod.ID, OrganizationID: p1.ID, ExclusiveRights: true, ContractStart: time.Now()}
	if err := eng.Create(ctx, rc, first); err != nil {
		t.Fatalf("first exclusive grant: %v", err)
	}

	second := &ProductPrincipal{ProductID: prod.ID, OrganizationID: p2.ID, ExclusiveRights: true, ContractStart: time.Now()}
	err := eng.Create(ctx, rc, second)
	var cve *ConstraintViolationError
	if !errors.As(err, &cve) || cve.Field != "exclusive_rights" {
		t.Fatalf("expected exclusive_rights violation, got %v", err)
	}

	// Non-exclusive second principal is fine.
	third := &ProductPrincipal{ProductID: prod.ID, OrganizationID: p2.ID, ContractStart: time.Now()}
	if err := eng.Create(ctx, rc, third); err != nil {
		t.Fatalf("non-exclusive grant: %v", err)
	}
}

func TestDanglingReferenceRejectedAtCreate(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	rc := Authenticated("admin")

	// Missing organization.
	c := &Contact{OrganizationID: "nope", Email: "x@example.com", DataRetentionCategory: RetentionStandard}
	err := eng.Create(ctx, rc, c)
	var rie *ReferentialIntegrityError
	if !errors.As(err, &rie) {
		t.Fatalf("expected ReferentialIntegrityError for missing org, got %v", err)
	}
	if rie.Tombstone {
		t.Fatalf("expected missing (not tombstoned) target")
	}

	// Tombstoned organization is just as dead.
	org := seedPrincipal(t, eng, "Gone Principal")
	if err := eng.SoftDelete(ctx, rc, EntityOrganization, org.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	c2 := &Contact{OrganizationID: org.ID, Email: "y@example.com", DataRetentionCategory: RetentionStandard}
	err = eng.Create(ctx, rc, c2)
	if !errors.As(err, &rie) || !rie.Tombstone {
		t.Fatalf("expected tombstoned-target ReferentialIntegrityError, got %v", err)
	}
}

func TestEvaluateDenyFirstOrdering(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)

	// Anonymous against an organization: the role gate fires before any store
	// lookup, so even a nonsense row id yields no_policy.
	d, err := eng.Evaluate(ctx, Anonymous(), OpDelete, &Organization{Row: Row{ID: "whatever"}, Name: "x"})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if d.Allowed || d.Reason != ReasonNoPolicy {
		t.Fatalf("expected no_policy deny, got allowed=%v reason=%s", d.Allowed, d.Reason)
	}
}

func TestAuditTrail(t *testing.T) {
	ctx := context.Background()
	audit := NewMemoryAuditStore()
	eng, _ := newTestEngine(t,
		WithAuditStore(audit),
		WithTraceIDFunc(func() string { return "trace-fixed" }),
	)

	org := seedPrincipal(t, eng, "Audited Principal")
	if _, err := eng.Fetch(ctx, Authenticated("alice"), EntityOrganization, org.ID); err != nil {
		t.Fatalf("fetch: %v", err)
	}

	// The audit worker is asynchronous; poll briefly.
	var entries []*AuditEntry
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		var err error
		entries, err = audit.GetAccessLog(ctx, AuditFilter{PrincipalID: "alice", Operation: OpRead})
		if err != nil {
			t.Fatalf("get access log: %v", err)
		}
		if len(entries) > 0 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if len(entries) == 0 {
		t.Fatalf("expected audit entry for alice's read")
	}
	got := entries[0]
	if got.Entity != EntityOrganization || got.RowID != org.ID {
		t.Fatalf("unexpected audit entry: %+v", got)
	}
	if !got.Decision.Allowed {
		t.Fatalf("expected allowed decision in audit entry")
	}
	if got.GetTraceID() != "trace-fixed" {
		t.Fatalf("expected trace id trace-fixed, got %s", got.GetTraceID())
	}
}
