package rowguard

import (
	"bytes"
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"
)

func TestExportContactCarriesSubjectDataOnly(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	rc := Authenticated("dpo")

	org := seedPrincipal(t, eng, "Export Principal")
	contact := &Contact{
		OrganizationID:           org.ID,
		FirstName:                "Jo",
		LastName:                 "Doe",
		Email:                    "jo@example.com",
		Phone:                    "+31 20 000 0000",
		CommunicationPreferences: map[string]bool{"email": true, "phone": false},
		ProcessingPurposes:       []string{"order_fulfilment"},
		DataRetentionCategory:    RetentionStandard,
		LeadScore:                87,
		InternalNotes:            "talks too much about tampers",
	}
	mustCreate(t, eng, contact)
	if err := eng.RecordConsent(ctx, rc, contact.ID, "marketing", true, "web_form", nil); err != nil {
		t.Fatalf("record consent: %v", err)
	}
	if err := eng.RecordConsent(ctx, rc, contact.ID, "marketing", false, "email", nil); err != nil {
		t.Fatalf("record withdrawal: %v", err)
	}

	doc, err := eng.ExportContact(ctx, rc, contact.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if doc.Contact.Email != "jo@example.com" {
		t.Fatalf("expected subject email in export")
	}
	if doc.Organization != "Export Principal" {
		t.Fatalf("expected organization name, got %q", doc.Organization)
	}
	if len(doc.ConsentHistory) != 2 {
		t.Fatalf("expected full consent history, got %d", len(doc.ConsentHistory))
	}
	if doc.ConsentHistory[0].Given != true || doc.ConsentHistory[1].Given != false {
		t.Fatalf("expected consent history oldest-first")
	}

	// Internal business fields never leave the system.
	payload, err := doc.JSON()
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if bytes.Contains(payload, []byte("lead_score")) || bytes.Contains(payload, []byte("tampers")) {
		t.Fatalf("internal fields leaked into export: %s", payload)
	}
	var decoded PortableDocument
	if err := json.Unmarshal(payload, &decoded); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}

	yamlPayload, err := doc.YAML()
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if !bytes.Contains(yamlPayload, []byte("jo@example.com")) {
		t.Fatalf("expected yaml rendering to carry the subject email")
	}
}

func TestExportRefusedForAnonymousNonContactPaths(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	rc := Authenticated("dpo")

	org := seedPrincipal(t, eng, "Guarded Principal")
	contact := seedContact(t, eng, org.ID, "guard@example.com")

	// Export reads through policy: a tombstoned contact is not exportable.
	if err := eng.SoftDelete(ctx, rc, EntityContact, contact.ID); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := eng.ExportContact(ctx, rc, contact.ID); err == nil {
		t.Fatalf("expected export of tombstoned contact refused")
	}
}

// memStager is a test double for the staging backend.
type memStager struct {
	mu   sync.Mutex
	docs map[string][]byte
}

func (m *memStager) StageExport(ctx context.Context, token string, doc []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.docs == nil {
		m.docs = make(map[string][]byte)
	}
	m.docs[token] = doc
	return nil
}

func (m *memStager) FetchExport(ctx context.Context, token string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[token]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

func (m *memStager) DropExport(ctx context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.docs, token)
	return nil
}

func TestStageContactExport(t *testing.T) {
	ctx := context.Background()
	stager := &memStager{}
	eng, _ := newTestEngine(t, WithExportStager(stager))
	rc := Authenticated("dpo")

	org := seedPrincipal(t, eng, "Staging Principal")
	contact := seedContact(t, eng, org.ID, "stage@example.com")

	token, err := eng.StageContactExport(ctx, rc, contact.ID, time.Hour)
	if err != nil {
		t.Fatalf("stage: %v", err)
	}
	payload, err := stager.FetchExport(ctx, token)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if !bytes.Contains(payload, []byte("stage@example.com")) {
		t.Fatalf("expected staged payload to carry subject data")
	}
}

func TestStageContactExportWithoutBackend(t *testing.T) {
	ctx := context.Background()
	eng, _ := newTestEngine(t)
	rc := Authenticated("dpo")

	org := seedPrincipal(t, eng, "No Stager Principal")
	contact := seedContact(t, eng, org.ID, "nobackend@example.com")

	if _, err := eng.StageContactExport(ctx, rc, contact.ID, time.Hour); err != ErrNoExportStager {
		t.Fatalf("expected ErrNoExportStager, got %v", err)
	}
}
