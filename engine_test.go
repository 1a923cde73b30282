package rowguard

import (
	"context"
	"testing"
)

func newTestEngine(t *testing.T, opts ...EngineOption) (*Engine, *MemoryEntityStore) {
	t.Helper()
	store := NewMemoryEntityStore()
	eng, err := NewEngine(store, store, NewMemoryBreachStore(), NewMemoryErasureLog(), opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(eng.Close)
	return eng, store
}

func mustCreate(t *testing.T, eng *Engine, ent Entity) {
	t.Helper()
	if err := eng.Create(context.Background(), Authenticated("admin"), ent); err != nil {
		t.Fatalf("create %s: %v", ent.Kind(), err)
	}
}

func seedPrincipal(t *testing.T, eng *Engine, name string) *Organization {
	t.Helper()
	org := &Organization{Name: name, IsPrincipal: true}
	mustCreate(t, eng, org)
	return org
}

func seedDistributor(t *testing.T, eng *Engine, name string) *Organization {
	t.Helper()
	org := &Organization{Name: name, IsDistributor: true}
	mustCreate(t, eng, org)
	return org
}

func seedProduct(t *testing.T, eng *Engine, name string) *Product {
	t.Helper()
	p := &Product{Name: name, IsActive: true, Category: CategoryBeverage, ListPrice: 12.50}
	mustCreate(t, eng, p)
	return p
}

func seedContact(t *testing.T, eng *Engine, orgID, email string) *Contact {
	t.Helper()
	c := &Contact{
		OrganizationID:        orgID,
		FirstName:             "Jo",
		LastName:              "Doe",
		Email:                 email,
		DataRetentionCategory: RetentionStandard,
	}
	mustCreate(t, eng, c)
	return c
}

func seedOpportunity(t *testing.T, eng *Engine, orgID, productID string) *Opportunity {
	t.Helper()
	o := &Opportunity{
		OrganizationID:     orgID,
		ProductID:          productID,
		Stage:              StageNewLead,
		ProbabilityPercent: 10,
	}
	mustCreate(t, eng, o)
	return o
}

func seedInteraction(t *testing.T, eng *Engine, oppID string) *Interaction {
	t.Helper()
	i := &Interaction{
		OpportunityID: oppID,
		Type:          InteractionEmail,
		Status:        StatusOpen,
		Priority:      PriorityMedium,
		Outcome:       OutcomePending,
	}
	mustCreate(t, eng, i)
	return i
}
