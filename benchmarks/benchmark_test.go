package benchmarks

import (
	"context"
	"fmt"
	"testing"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"

	"github.com/oarkflow/rowguard"
)

func newBenchEngine(b *testing.B) (*rowguard.Engine, *rowguard.MemoryEntityStore) {
	b.Helper()
	store := rowguard.NewMemoryEntityStore()
	eng, err := rowguard.NewEngine(
		store,
		store,
		rowguard.NewMemoryBreachStore(),
		rowguard.NewMemoryErasureLog(),
	)
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(eng.Close)
	return eng, store
}

// seedChain builds distributor -> principal -> contact/opportunity -> interaction
// so the deepest chain walk is exercised.
func seedChain(b *testing.B, eng *rowguard.Engine) *rowguard.Interaction {
	b.Helper()
	ctx := context.Background()
	rc := rowguard.Authenticated("bench")

	dist := &rowguard.Organization{Name: "Bench Distribution", IsDistributor: true}
	if err := eng.Create(ctx, rc, dist); err != nil {
		b.Fatal(err)
	}
	org := &rowguard.Organization{Name: "Bench Principal", IsPrincipal: true, DistributorID: dist.ID}
	if err := eng.Create(ctx, rc, org); err != nil {
		b.Fatal(err)
	}
	prod := &rowguard.Product{SKU: "SKU-1", Name: "Bench Product", Category: rowguard.CategoryBeverage, IsActive: true, ListPrice: 9.5}
	if err := eng.Create(ctx, rc, prod); err != nil {
		b.Fatal(err)
	}
	opp := &rowguard.Opportunity{OrganizationID: org.ID, ProductID: prod.ID, Stage: rowguard.StageNewLead, ProbabilityPercent: 10}
	if err := eng.Create(ctx, rc, opp); err != nil {
		b.Fatal(err)
	}
	i := &rowguard.Interaction{
		OpportunityID: opp.ID,
		Type:          rowguard.InteractionEmail,
		Status:        rowguard.StatusOpen,
		Priority:      rowguard.PriorityMedium,
		Outcome:       rowguard.OutcomePending,
	}
	if err := eng.Create(ctx, rc, i); err != nil {
		b.Fatal(err)
	}
	return i
}

func BenchmarkEvaluateContactRead(b *testing.B) {
	ctx := context.Background()
	eng, _ := newBenchEngine(b)
	rc := rowguard.Authenticated("bench")

	org := &rowguard.Organization{Name: "Bench Principal", IsPrincipal: true}
	if err := eng.Create(ctx, rc, org); err != nil {
		b.Fatal(err)
	}
	contact := &rowguard.Contact{OrganizationID: org.ID, Email: "bench@example.com", DataRetentionCategory: rowguard.RetentionStandard}
	if err := eng.Create(ctx, rc, contact); err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := eng.Fetch(ctx, rc, rowguard.EntityContact, contact.ID); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEvaluateDeepChain(b *testing.B) {
	ctx := context.Background()
	eng, _ := newBenchEngine(b)
	rc := rowguard.Authenticated("bench")
	interaction := seedChain(b, eng)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := eng.Fetch(ctx, rc, rowguard.EntityInteraction, interaction.ID); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEvaluateDeniedAnonymousWrite(b *testing.B) {
	ctx := context.Background()
	eng, _ := newBenchEngine(b)
	rc := rowguard.Authenticated("bench")

	org := &rowguard.Organization{Name: "Bench Principal", IsPrincipal: true}
	if err := eng.Create(ctx, rc, org); err != nil {
		b.Fatal(err)
	}
	contact := &rowguard.Contact{OrganizationID: org.ID, Email: "bench@example.com", DataRetentionCategory: rowguard.RetentionStandard}
	if err := eng.Create(ctx, rc, contact); err != nil {
		b.Fatal(err)
	}
	anon := rowguard.Anonymous()

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_ = eng.SoftDelete(ctx, anon, rowguard.EntityContact, contact.ID)
	}
}

func BenchmarkResolveHierarchy(b *testing.B) {
	ctx := context.Background()
	eng, _ := newBenchEngine(b)
	rc := rowguard.Authenticated("bench")

	dist := &rowguard.Organization{Name: "Bench Distribution", IsDistributor: true}
	if err := eng.Create(ctx, rc, dist); err != nil {
		b.Fatal(err)
	}
	orgs := make([]string, 100)
	for i := range orgs {
		o := &rowguard.Organization{Name: fmt.Sprintf("Principal %d", i), IsPrincipal: true, DistributorID: dist.ID}
		if err := eng.Create(ctx, rc, o); err != nil {
			b.Fatal(err)
		}
		orgs[i] = o.ID
	}

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := eng.ResolveHierarchy(ctx, orgs[i%len(orgs)]); err != nil {
			b.Fatal(err)
		}
	}
}

// Casbin comparison: the closest RBAC rendition of the role matrix, without
// the chain walk or tombstone semantics. Not apples to apples, but a useful
// floor for what a grant lookup alone costs.
func newCasbinEnforcer(b *testing.B) *casbin.Enforcer {
	b.Helper()
	m, err := model.NewModelFromString(`
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && r.obj == p.obj && r.act == p.act
`)
	if err != nil {
		b.Fatal(err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		b.Fatal(err)
	}
	for _, entity := range []string{"organization", "contact", "opportunity", "interaction", "product", "product_principal"} {
		for _, act := range []string{"read", "create", "update", "delete"} {
			_, _ = e.AddPolicy("authenticated", entity, act)
		}
	}
	_, _ = e.AddPolicy("anonymous", "contact", "read")
	_, _ = e.AddGroupingPolicy("bench", "authenticated")
	return e
}

func BenchmarkCasbinEnforce(b *testing.B) {
	e := newCasbinEnforcer(b)

	b.ResetTimer()
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		ok, err := e.Enforce("bench", "contact", "read")
		if err != nil || !ok {
			b.Fatalf("enforce: ok=%v err=%v", ok, err)
		}
	}
}
