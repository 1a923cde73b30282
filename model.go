package rowguard

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ============================================================================
// DOMAIN OBJECTS
// ============================================================================

// EntityType identifies one of the closed set of row kinds the engine governs.
type EntityType string

const (
	EntityOrganization     EntityType = "organization"
	EntityContact          EntityType = "contact"
	EntityProduct          EntityType = "product"
	EntityProductPrincipal EntityType = "product_principal"
	EntityOpportunity      EntityType = "opportunity"
	EntityInteraction      EntityType = "interaction"
)

// Valid reports whether the entity type is a member of the closed set.
func (t EntityType) Valid() bool {
	switch t {
	case EntityOrganization, EntityContact, EntityProduct,
		EntityProductPrincipal, EntityOpportunity, EntityInteraction:
		return true
	}
	return false
}

// Operation is the action a principal attempts against a row.
type Operation string

const (
	OpCreate Operation = "create"
	OpRead   Operation = "read"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// RoleKind is the resolved role of the acting principal.
type RoleKind string

const (
	RoleAnonymous     RoleKind = "anonymous"
	RoleAuthenticated RoleKind = "authenticated"
)

// RoleContext is the trusted output of the external authentication layer.
// It is passed explicitly through every call; the engine keeps no ambient
// "current user" state.
type RoleContext struct {
	PrincipalID string   `json:"principal_id,omitempty"`
	Role        RoleKind `json:"role"`
}

// Anonymous returns a RoleContext for an unauthenticated request.
func Anonymous() RoleContext { return RoleContext{Role: RoleAnonymous} }

// Authenticated returns a RoleContext for a resolved principal.
func Authenticated(principalID string) RoleContext {
	return RoleContext{PrincipalID: principalID, Role: RoleAuthenticated}
}

// Row carries the lifecycle columns every entity shares.
type Row struct {
	ID        string     `json:"id" yaml:"id"`
	CreatedAt time.Time  `json:"created_at" yaml:"created_at,omitempty"`
	UpdatedAt time.Time  `json:"updated_at" yaml:"updated_at,omitempty"`
	DeletedAt *time.Time `json:"deleted_at,omitempty" yaml:"deleted_at,omitempty"`
}

// Tombstoned reports whether the row has been soft-deleted.
func (r *Row) Tombstoned() bool { return r.DeletedAt != nil }

// Entity is implemented by every row kind the evaluator can decide on.
type Entity interface {
	Kind() EntityType
	Meta() *Row
	Validate() error
}

// NewID returns a fresh row identifier.
func NewID() string { return uuid.NewString() }

// ============================================================================
// ORGANIZATION
// ============================================================================

// Organization is a tenant node: a principal (owns products), a distributor
// (owns principals), or an independent organization.
type Organization struct {
	Row           `yaml:",inline"`
	Name          string `json:"name" yaml:"name"`
	IsPrincipal   bool   `json:"is_principal" yaml:"is_principal,omitempty"`
	IsDistributor bool   `json:"is_distributor" yaml:"is_distributor,omitempty"`
	DistributorID string `json:"distributor_id,omitempty" yaml:"distributor_id,omitempty"`
}

func (o *Organization) Kind() EntityType { return EntityOrganization }
func (o *Organization) Meta() *Row       { return &o.Row }

func (o *Organization) Validate() error {
	if o.Name == "" {
		return &ConstraintViolationError{Entity: EntityOrganization, Field: "name", Detail: "must not be empty"}
	}
	if o.IsPrincipal && o.IsDistributor {
		return &ConstraintViolationError{Entity: EntityOrganization, Field: "is_distributor", Detail: "organization cannot be both principal and distributor"}
	}
	if o.DistributorID != "" && !o.IsPrincipal {
		return &ConstraintViolationError{Entity: EntityOrganization, Field: "distributor_id", Detail: "only principals may reference a distributor"}
	}
	return nil
}

// ============================================================================
// CONTACT
// ============================================================================

// RetentionCategory schedules a contact for the out-of-band purge sweep.
type RetentionCategory string

const (
	RetentionStandard    RetentionCategory = "standard"
	RetentionExtended    RetentionCategory = "extended"
	RetentionLegalHold   RetentionCategory = "legal_hold"
	RetentionShortLived  RetentionCategory = "short_lived"
	RetentionPendingWipe RetentionCategory = "pending_wipe"
)

func (c RetentionCategory) Valid() bool {
	switch c {
	case RetentionStandard, RetentionExtended, RetentionLegalHold, RetentionShortLived, RetentionPendingWipe:
		return true
	}
	return false
}

// maxProcessingPurposes bounds the processing_purpose list per contact.
const maxProcessingPurposes = 5

// Contact is a personal-data-bearing row attached to exactly one organization.
// LeadScore and InternalNotes are internal-only and excluded from the
// portability export.
type Contact struct {
	Row                      `yaml:",inline"`
	OrganizationID           string            `json:"organization_id" yaml:"organization_id"`
	FirstName                string            `json:"first_name" yaml:"first_name"`
	LastName                 string            `json:"last_name" yaml:"last_name"`
	Email                    string            `json:"email" yaml:"email"`
	Phone                    string            `json:"phone,omitempty" yaml:"phone,omitempty"`
	CommunicationPreferences map[string]bool   `json:"communication_preferences,omitempty" yaml:"communication_preferences,omitempty"`
	ProcessingPurposes       []string          `json:"processing_purpose,omitempty" yaml:"processing_purpose,omitempty"`
	DataRetentionCategory    RetentionCategory `json:"data_retention_category" yaml:"data_retention_category"`
	IsMinor                  bool              `json:"is_minor,omitempty" yaml:"is_minor,omitempty"`
	ParentalConsentGiven     bool              `json:"parental_consent_given,omitempty" yaml:"parental_consent_given,omitempty"`
	LeadScore                int               `json:"lead_score,omitempty" yaml:"lead_score,omitempty"`
	InternalNotes            string            `json:"internal_notes,omitempty" yaml:"internal_notes,omitempty"`
}

func (c *Contact) Kind() EntityType { return EntityContact }
func (c *Contact) Meta() *Row       { return &c.Row }

func (c *Contact) Validate() error {
	if c.OrganizationID == "" {
		return &ConstraintViolationError{Entity: EntityContact, Field: "organization_id", Detail: "must not be empty"}
	}
	if c.Email == "" {
		return &ConstraintViolationError{Entity: EntityContact, Field: "email", Detail: "must not be empty"}
	}
	if len(c.ProcessingPurposes) > maxProcessingPurposes {
		return &ConstraintViolationError{Entity: EntityContact, Field: "processing_purpose", Detail: fmt.Sprintf("at most %d entries allowed", maxProcessingPurposes)}
	}
	if c.DataRetentionCategory != "" && !c.DataRetentionCategory.Valid() {
		return &ConstraintViolationError{Entity: EntityContact, Field: "data_retention_category", Detail: fmt.Sprintf("unknown category %q", c.DataRetentionCategory)}
	}
	return nil
}

// ============================================================================
// PRODUCT & PRODUCT PRINCIPAL
// ============================================================================

// ProductCategory is the closed catalog category enum.
type ProductCategory string

const (
	CategoryBeverage   ProductCategory = "beverage"
	CategoryFood       ProductCategory = "food"
	CategoryIngredient ProductCategory = "ingredient"
	CategoryEquipment  ProductCategory = "equipment"
	CategoryOther      ProductCategory = "other"
)

func (c ProductCategory) Valid() bool {
	switch c {
	case CategoryBeverage, CategoryFood, CategoryIngredient, CategoryEquipment, CategoryOther:
		return true
	}
	return false
}

// Product is a catalog entry, independent of tenancy.
type Product struct {
	Row       `yaml:",inline"`
	SKU       string          `json:"sku" yaml:"sku"`
	Name      string          `json:"name" yaml:"name"`
	IsActive  bool            `json:"is_active" yaml:"is_active"`
	Category  ProductCategory `json:"category" yaml:"category"`
	ListPrice float64         `json:"list_price" yaml:"list_price"`
}

func (p *Product) Kind() EntityType { return EntityProduct }
func (p *Product) Meta() *Row       { return &p.Row }

func (p *Product) Validate() error {
	if p.Name == "" {
		return &ConstraintViolationError{Entity: EntityProduct, Field: "name", Detail: "must not be empty"}
	}
	if !p.Category.Valid() {
		return &ConstraintViolationError{Entity: EntityProduct, Field: "category", Detail: fmt.Sprintf("unknown category %q", p.Category)}
	}
	if p.ListPrice < 0 {
		return &ConstraintViolationError{Entity: EntityProduct, Field: "list_price", Detail: "must not be negative"}
	}
	return nil
}

// ProductPrincipal links a product to a principal organization. Multiple
// principals per product are allowed; exclusive rights are unique per product
// (checked against the store at write evaluation, not here).
type ProductPrincipal struct {
	Row                `yaml:",inline"`
	ProductID          string     `json:"product_id" yaml:"product_id"`
	OrganizationID     string     `json:"organization_id" yaml:"organization_id"`
	IsPrimaryPrincipal bool       `json:"is_primary_principal" yaml:"is_primary_principal,omitempty"`
	ExclusiveRights    bool       `json:"exclusive_rights" yaml:"exclusive_rights,omitempty"`
	WholesalePrice     float64    `json:"wholesale_price" yaml:"wholesale_price"`
	ContractStart      time.Time  `json:"contract_start" yaml:"contract_start"`
	ContractEnd        *time.Time `json:"contract_end,omitempty" yaml:"contract_end,omitempty"`
}

func (pp *ProductPrincipal) Kind() EntityType { return EntityProductPrincipal }
func (pp *ProductPrincipal) Meta() *Row       { return &pp.Row }

func (pp *ProductPrincipal) Validate() error {
	if pp.ProductID == "" {
		return &ConstraintViolationError{Entity: EntityProductPrincipal, Field: "product_id", Detail: "must not be empty"}
	}
	if pp.OrganizationID == "" {
		return &ConstraintViolationError{Entity: EntityProductPrincipal, Field: "organization_id", Detail: "must not be empty"}
	}
	if pp.WholesalePrice < 0 {
		return &ConstraintViolationError{Entity: EntityProductPrincipal, Field: "wholesale_price", Detail: "must not be negative"}
	}
	if pp.ContractEnd != nil && pp.ContractEnd.Before(pp.ContractStart) {
		return &ConstraintViolationError{Entity: EntityProductPrincipal, Field: "contract_end", Detail: "must not precede contract_start"}
	}
	return nil
}

// ============================================================================
// OPPORTUNITY
// ============================================================================

// Stage is the closed 7-value sales pipeline enum.
type Stage string

const (
	StageNewLead          Stage = "New Lead"
	StageInitialOutreach  Stage = "Initial Outreach"
	StageSampleVisit      Stage = "Sample/Visit Offered"
	StageAwaitingResponse Stage = "Awaiting Response"
	StageFeedbackLogged   Stage = "Feedback Logged"
	StageDemoScheduled    Stage = "Demo Scheduled"
	StageClosedWon        Stage = "Closed-Won"
)

func (s Stage) Valid() bool {
	switch s {
	case StageNewLead, StageInitialOutreach, StageSampleVisit, StageAwaitingResponse,
		StageFeedbackLogged, StageDemoScheduled, StageClosedWon:
		return true
	}
	return false
}

// Opportunity references a principal organization and a product.
type Opportunity struct {
	Row                `yaml:",inline"`
	OrganizationID     string    `json:"organization_id" yaml:"organization_id"`
	ProductID          string    `json:"product_id" yaml:"product_id"`
	Stage              Stage     `json:"stage" yaml:"stage"`
	ProbabilityPercent int       `json:"probability_percent" yaml:"probability_percent"`
	IsWon              bool      `json:"is_won" yaml:"is_won"`
	ExpectedCloseDate  time.Time `json:"expected_close_date" yaml:"expected_close_date,omitempty"`
}

func (o *Opportunity) Kind() EntityType { return EntityOpportunity }
func (o *Opportunity) Meta() *Row       { return &o.Row }

func (o *Opportunity) Validate() error {
	if o.OrganizationID == "" {
		return &ConstraintViolationError{Entity: EntityOpportunity, Field: "organization_id", Detail: "must not be empty"}
	}
	if o.ProductID == "" {
		return &ConstraintViolationError{Entity: EntityOpportunity, Field: "product_id", Detail: "must not be empty"}
	}
	if !o.Stage.Valid() {
		return &ConstraintViolationError{Entity: EntityOpportunity, Field: "stage", Detail: fmt.Sprintf("unknown stage %q", o.Stage)}
	}
	if o.ProbabilityPercent < 0 || o.ProbabilityPercent > 100 {
		return &ConstraintViolationError{Entity: EntityOpportunity, Field: "probability_percent", Detail: "must be between 0 and 100"}
	}
	if o.IsWon != (o.Stage == StageClosedWon) {
		return &ConstraintViolationError{Entity: EntityOpportunity, Field: "is_won", Detail: "must be true exactly when stage is Closed-Won"}
	}
	if !o.ExpectedCloseDate.IsZero() && !o.CreatedAt.IsZero() && o.ExpectedCloseDate.Before(o.CreatedAt) {
		return &ConstraintViolationError{Entity: EntityOpportunity, Field: "expected_close_date", Detail: "must not precede created_at"}
	}
	return nil
}

// ============================================================================
// INTERACTION
// ============================================================================

// InteractionType is the closed contact-channel enum.
type InteractionType string

const (
	InteractionEmail   InteractionType = "email"
	InteractionPhone   InteractionType = "phone"
	InteractionMeeting InteractionType = "meeting"
	InteractionOther   InteractionType = "other"
)

func (t InteractionType) Valid() bool {
	switch t {
	case InteractionEmail, InteractionPhone, InteractionMeeting, InteractionOther:
		return true
	}
	return false
}

// InteractionStatus tracks follow-up state.
type InteractionStatus string

const (
	StatusOpen      InteractionStatus = "open"
	StatusCompleted InteractionStatus = "completed"
	StatusCancelled InteractionStatus = "cancelled"
)

func (s InteractionStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// InteractionPriority is the closed priority enum.
type InteractionPriority string

const (
	PriorityLow    InteractionPriority = "low"
	PriorityMedium InteractionPriority = "medium"
	PriorityHigh   InteractionPriority = "high"
)

func (p InteractionPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// InteractionOutcome is the closed outcome enum.
type InteractionOutcome string

const (
	OutcomePositive InteractionOutcome = "positive"
	OutcomeNeutral  InteractionOutcome = "neutral"
	OutcomeNegative InteractionOutcome = "negative"
	OutcomePending  InteractionOutcome = "pending"
)

func (o InteractionOutcome) Valid() bool {
	switch o {
	case OutcomePositive, OutcomeNeutral, OutcomeNegative, OutcomePending:
		return true
	}
	return false
}

// Interaction is a logged touchpoint on an opportunity. Notes are opaque
// semi-structured data: stored and returned verbatim, never interpreted.
// Interactions are never hard-deletable; only tombstoning is permitted.
type Interaction struct {
	Row           `yaml:",inline"`
	OpportunityID string              `json:"opportunity_id" yaml:"opportunity_id"`
	Type          InteractionType     `json:"type" yaml:"type"`
	Status        InteractionStatus   `json:"status" yaml:"status"`
	Priority      InteractionPriority `json:"priority" yaml:"priority"`
	Rating        *int                `json:"rating,omitempty" yaml:"rating,omitempty"`
	Outcome       InteractionOutcome  `json:"outcome" yaml:"outcome"`
	Notes         map[string]any      `json:"notes,omitempty" yaml:"notes,omitempty"`
}

func (i *Interaction) Kind() EntityType { return EntityInteraction }
func (i *Interaction) Meta() *Row       { return &i.Row }

func (i *Interaction) Validate() error {
	if i.OpportunityID == "" {
		return &ConstraintViolationError{Entity: EntityInteraction, Field: "opportunity_id", Detail: "must not be empty"}
	}
	if !i.Type.Valid() {
		return &ConstraintViolationError{Entity: EntityInteraction, Field: "type", Detail: fmt.Sprintf("unknown type %q", i.Type)}
	}
	if !i.Status.Valid() {
		return &ConstraintViolationError{Entity: EntityInteraction, Field: "status", Detail: fmt.Sprintf("unknown status %q", i.Status)}
	}
	if !i.Priority.Valid() {
		return &ConstraintViolationError{Entity: EntityInteraction, Field: "priority", Detail: fmt.Sprintf("unknown priority %q", i.Priority)}
	}
	if !i.Outcome.Valid() {
		return &ConstraintViolationError{Entity: EntityInteraction, Field: "outcome", Detail: fmt.Sprintf("unknown outcome %q", i.Outcome)}
	}
	if i.Rating != nil && (*i.Rating < 1 || *i.Rating > 10) {
		return &ConstraintViolationError{Entity: EntityInteraction, Field: "rating", Detail: "must be between 1 and 10"}
	}
	return nil
}
