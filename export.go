package rowguard

import (
	"context"
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// ============================================================================
// DATA PORTABILITY EXPORT (Article 20)
// ============================================================================

// PortableContact is the subject-facing projection of a contact. Internal
// business fields (lead score, internal notes) are deliberately absent: the
// export carries only data the subject provided or that concerns them.
type PortableContact struct {
	ID                       string          `json:"id" yaml:"id"`
	FirstName                string          `json:"first_name" yaml:"first_name"`
	LastName                 string          `json:"last_name" yaml:"last_name"`
	Email                    string          `json:"email" yaml:"email"`
	Phone                    string          `json:"phone,omitempty" yaml:"phone,omitempty"`
	CommunicationPreferences map[string]bool `json:"communication_preferences,omitempty" yaml:"communication_preferences,omitempty"`
	ProcessingPurposes       []string        `json:"processing_purposes,omitempty" yaml:"processing_purposes,omitempty"`
	DataRetentionCategory    string          `json:"data_retention_category" yaml:"data_retention_category"`
	CreatedAt                time.Time       `json:"created_at" yaml:"created_at"`
}

// PortableConsentEvent mirrors a consent-ledger event in export form.
type PortableConsentEvent struct {
	Purpose string     `json:"purpose" yaml:"purpose"`
	Given   bool       `json:"given" yaml:"given"`
	At      time.Time  `json:"at" yaml:"at"`
	Method  string     `json:"method,omitempty" yaml:"method,omitempty"`
	Expires *time.Time `json:"expires,omitempty" yaml:"expires,omitempty"`
}

// PortableDocument is the complete portability bundle for one data subject:
// their contact record, the organization it belongs to, and the full consent
// history, in a machine-readable structure.
type PortableDocument struct {
	SchemaVersion  int                     `json:"schema_version" yaml:"schema_version"`
	GeneratedAt    time.Time               `json:"generated_at" yaml:"generated_at"`
	Contact        PortableContact         `json:"contact" yaml:"contact"`
	Organization   string                  `json:"organization,omitempty" yaml:"organization,omitempty"`
	ConsentHistory []*PortableConsentEvent `json:"consent_history" yaml:"consent_history"`
}

// JSON renders the document as indented JSON.
func (d *PortableDocument) JSON() ([]byte, error) {
	return json.MarshalIndent(d, "", "  ")
}

// YAML renders the document as YAML.
func (d *PortableDocument) YAML() ([]byte, error) {
	return yaml.Marshal(d)
}

// ExportStager holds rendered export documents under a retrieval token for a
// bounded time, so download links can outlive the request that produced them.
type ExportStager interface {
	StageExport(ctx context.Context, token string, doc []byte, ttl time.Duration) error
	FetchExport(ctx context.Context, token string) ([]byte, error)
	DropExport(ctx context.Context, token string) error
}

// WithExportStager installs a staging backend for rendered exports.
func WithExportStager(s ExportStager) EngineOption {
	return func(e *Engine) error {
		e.exportStager = s
		return nil
	}
}

// ExportContact assembles the portability document for a contact. The read
// goes through policy like any other fetch, so anonymous callers and broken
// chains are refused the same way.
func (e *Engine) ExportContact(ctx context.Context, rc RoleContext, contactID string) (*PortableDocument, error) {
	ent, err := e.Fetch(ctx, rc, EntityContact, contactID)
	if err != nil {
		return nil, err
	}
	contact := ent.(*Contact)

	doc := &PortableDocument{
		SchemaVersion: 1,
		GeneratedAt:   time.Now(),
		Contact: PortableContact{
			ID:                       contact.ID,
			FirstName:                contact.FirstName,
			LastName:                 contact.LastName,
			Email:                    contact.Email,
			Phone:                    contact.Phone,
			CommunicationPreferences: contact.CommunicationPreferences,
			ProcessingPurposes:       contact.ProcessingPurposes,
			DataRetentionCategory:    string(contact.DataRetentionCategory),
			CreatedAt:                contact.CreatedAt,
		},
	}

	if org, err := e.store.GetOrganization(ctx, contact.OrganizationID, false); err == nil {
		doc.Organization = org.Name
	} else if err != ErrNotFound {
		return nil, err
	}

	events, err := e.ConsentHistory(ctx, contactID, "")
	if err != nil {
		return nil, err
	}
	doc.ConsentHistory = make([]*PortableConsentEvent, 0, len(events))
	for _, ev := range events {
		doc.ConsentHistory = append(doc.ConsentHistory, &PortableConsentEvent{
			Purpose: ev.Purpose,
			Given:   ev.Given,
			At:      ev.At,
			Method:  ev.Method,
			Expires: ev.Expires,
		})
	}
	return doc, nil
}

// StageContactExport renders the document as JSON and parks it in the staging
// backend under a fresh token. Returns the token the caller hands to the
// subject.
func (e *Engine) StageContactExport(ctx context.Context, rc RoleContext, contactID string, ttl time.Duration) (string, error) {
	if e.exportStager == nil {
		return "", ErrNoExportStager
	}
	doc, err := e.ExportContact(ctx, rc, contactID)
	if err != nil {
		return "", err
	}
	payload, err := doc.JSON()
	if err != nil {
		return "", err
	}
	token := NewID()
	if err := e.exportStager.StageExport(ctx, token, payload, ttl); err != nil {
		return "", err
	}
	e.logger.Info("export staged", "contact_id", contactID, "token", token)
	return token, nil
}
