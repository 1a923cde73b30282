package stores

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/rowguard"
)

// SQLEntityStore persists every entity table in SQL. Reads are lock-free;
// writes take the store lock, and Snapshot takes the read lock so a chain
// walk observes no writes mid-flight. WriteTx and PurgeContactAtomic issue
// BEGIN/COMMIT directly, so the database handle must be limited to a single
// connection (db.SetMaxOpenConns(1) for sqlite).
type SQLEntityStore struct {
	db *squealx.DB
	mu sync.RWMutex
}

func NewSQLEntityStore(db *squealx.DB) (*SQLEntityStore, error) {
	return &SQLEntityStore{db: db}, nil
}

func tableFor(entity rowguard.EntityType) string {
	switch entity {
	case rowguard.EntityOrganization:
		return "organizations"
	case rowguard.EntityContact:
		return "contacts"
	case rowguard.EntityProduct:
		return "products"
	case rowguard.EntityProductPrincipal:
		return "product_principals"
	case rowguard.EntityOpportunity:
		return "opportunities"
	case rowguard.EntityInteraction:
		return "interactions"
	}
	return ""
}

// ----------------------------------------------------------------------------
// row scanners
// ----------------------------------------------------------------------------

func scanOrganization(scan func(...any) error) (*rowguard.Organization, error) {
	o := &rowguard.Organization{}
	var isPrincipal, isDistributor int
	var createdRaw, updatedRaw, deletedRaw interface{}
	if err := scan(&o.ID, &o.Name, &isPrincipal, &isDistributor, &o.DistributorID, &createdRaw, &updatedRaw, &deletedRaw); err != nil {
		return nil, err
	}
	o.IsPrincipal = isPrincipal != 0
	o.IsDistributor = isDistributor != 0
	o.CreatedAt = scanTime(createdRaw)
	o.UpdatedAt = scanTime(updatedRaw)
	o.DeletedAt = scanTimePtr(deletedRaw)
	return o, nil
}

func scanContact(scan func(...any) error) (*rowguard.Contact, error) {
	c := &rowguard.Contact{}
	var prefsJSON, purposesJSON, category string
	var isMinor, parental int
	var createdRaw, updatedRaw, deletedRaw interface{}
	if err := scan(&c.ID, &c.OrganizationID, &c.FirstName, &c.LastName, &c.Email, &c.Phone,
		&prefsJSON, &purposesJSON, &category, &isMinor, &parental, &c.LeadScore, &c.InternalNotes,
		&createdRaw, &updatedRaw, &deletedRaw); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(prefsJSON), &c.CommunicationPreferences)
	_ = json.Unmarshal([]byte(purposesJSON), &c.ProcessingPurposes)
	c.DataRetentionCategory = rowguard.RetentionCategory(category)
	c.IsMinor = isMinor != 0
	c.ParentalConsentGiven = parental != 0
	c.CreatedAt = scanTime(createdRaw)
	c.UpdatedAt = scanTime(updatedRaw)
	c.DeletedAt = scanTimePtr(deletedRaw)
	return c, nil
}

func scanProduct(scan func(...any) error) (*rowguard.Product, error) {
	p := &rowguard.Product{}
	var isActive int
	var category string
	var createdRaw, updatedRaw, deletedRaw interface{}
	if err := scan(&p.ID, &p.SKU, &p.Name, &isActive, &category, &p.ListPrice, &createdRaw, &updatedRaw, &deletedRaw); err != nil {
		return nil, err
	}
	p.IsActive = isActive != 0
	p.Category = rowguard.ProductCategory(category)
	p.CreatedAt = scanTime(createdRaw)
	p.UpdatedAt = scanTime(updatedRaw)
	p.DeletedAt = scanTimePtr(deletedRaw)
	return p, nil
}

func scanProductPrincipal(scan func(...any) error) (*rowguard.ProductPrincipal, error) {
	pp := &rowguard.ProductPrincipal{}
	var isPrimary, exclusive int
	var startRaw, endRaw, createdRaw, updatedRaw, deletedRaw interface{}
	if err := scan(&pp.ID, &pp.ProductID, &pp.OrganizationID, &isPrimary, &exclusive,
		&pp.WholesalePrice, &startRaw, &endRaw, &createdRaw, &updatedRaw, &deletedRaw); err != nil {
		return nil, err
	}
	pp.IsPrimaryPrincipal = isPrimary != 0
	pp.ExclusiveRights = exclusive != 0
	pp.ContractStart = scanTime(startRaw)
	pp.ContractEnd = scanTimePtr(endRaw)
	pp.CreatedAt = scanTime(createdRaw)
	pp.UpdatedAt = scanTime(updatedRaw)
	pp.DeletedAt = scanTimePtr(deletedRaw)
	return pp, nil
}

func scanOpportunity(scan func(...any) error) (*rowguard.Opportunity, error) {
	o := &rowguard.Opportunity{}
	var stage string
	var isWon int
	var closeRaw, createdRaw, updatedRaw, deletedRaw interface{}
	if err := scan(&o.ID, &o.OrganizationID, &o.ProductID, &stage, &o.ProbabilityPercent,
		&isWon, &closeRaw, &createdRaw, &updatedRaw, &deletedRaw); err != nil {
		return nil, err
	}
	o.Stage = rowguard.Stage(stage)
	o.IsWon = isWon != 0
	if t := scanTimePtr(closeRaw); t != nil {
		o.ExpectedCloseDate = *t
	}
	o.CreatedAt = scanTime(createdRaw)
	o.UpdatedAt = scanTime(updatedRaw)
	o.DeletedAt = scanTimePtr(deletedRaw)
	return o, nil
}

func scanInteraction(scan func(...any) error) (*rowguard.Interaction, error) {
	i := &rowguard.Interaction{}
	var typ, status, priority, outcome, notesJSON string
	var ratingRaw, createdRaw, updatedRaw, deletedRaw interface{}
	if err := scan(&i.ID, &i.OpportunityID, &typ, &status, &priority, &outcome,
		&ratingRaw, &notesJSON, &createdRaw, &updatedRaw, &deletedRaw); err != nil {
		return nil, err
	}
	i.Type = rowguard.InteractionType(typ)
	i.Status = rowguard.InteractionStatus(status)
	i.Priority = rowguard.InteractionPriority(priority)
	i.Outcome = rowguard.InteractionOutcome(outcome)
	i.Rating = scanRatingPtr(ratingRaw)
	_ = json.Unmarshal([]byte(notesJSON), &i.Notes)
	i.CreatedAt = scanTime(createdRaw)
	i.UpdatedAt = scanTime(updatedRaw)
	i.DeletedAt = scanTimePtr(deletedRaw)
	return i, nil
}

const (
	organizationCols     = "id, name, is_principal, is_distributor, distributor_id, created_at, updated_at, deleted_at"
	contactCols          = "id, organization_id, first_name, last_name, email, phone, communication_preferences_json, processing_purposes_json, data_retention_category, is_minor, parental_consent_given, lead_score, internal_notes, created_at, updated_at, deleted_at"
	productCols          = "id, sku, name, is_active, category, list_price, created_at, updated_at, deleted_at"
	productPrincipalCols = "id, product_id, organization_id, is_primary_principal, exclusive_rights, wholesale_price, contract_start, contract_end, created_at, updated_at, deleted_at"
	opportunityCols      = "id, organization_id, product_id, stage, probability_percent, is_won, expected_close_date, created_at, updated_at, deleted_at"
	interactionCols      = "id, opportunity_id, type, status, priority, outcome, rating, notes_json, created_at, updated_at, deleted_at"
)

func liveClause(includeTombstoned bool) string {
	if includeTombstoned {
		return ""
	}
	return " AND deleted_at IS NULL"
}

// ----------------------------------------------------------------------------
// point gets
// ----------------------------------------------------------------------------

func (s *SQLEntityStore) GetOrganization(ctx context.Context, id string, includeTombstoned bool) (*rowguard.Organization, error) {
	q := "SELECT " + organizationCols + " FROM organizations WHERE id = :id" + liveClause(includeTombstoned)
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, rowguard.ErrNotFound
	}
	return scanOrganization(r.Scan)
}

func (s *SQLEntityStore) GetContact(ctx context.Context, id string, includeTombstoned bool) (*rowguard.Contact, error) {
	q := "SELECT " + contactCols + " FROM contacts WHERE id = :id" + liveClause(includeTombstoned)
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, rowguard.ErrNotFound
	}
	return scanContact(r.Scan)
}

func (s *SQLEntityStore) GetProduct(ctx context.Context, id string, includeTombstoned bool) (*rowguard.Product, error) {
	q := "SELECT " + productCols + " FROM products WHERE id = :id" + liveClause(includeTombstoned)
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, rowguard.ErrNotFound
	}
	return scanProduct(r.Scan)
}

func (s *SQLEntityStore) GetProductPrincipal(ctx context.Context, id string, includeTombstoned bool) (*rowguard.ProductPrincipal, error) {
	q := "SELECT " + productPrincipalCols + " FROM product_principals WHERE id = :id" + liveClause(includeTombstoned)
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, rowguard.ErrNotFound
	}
	return scanProductPrincipal(r.Scan)
}

func (s *SQLEntityStore) GetOpportunity(ctx context.Context, id string, includeTombstoned bool) (*rowguard.Opportunity, error) {
	q := "SELECT " + opportunityCols + " FROM opportunities WHERE id = :id" + liveClause(includeTombstoned)
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, rowguard.ErrNotFound
	}
	return scanOpportunity(r.Scan)
}

func (s *SQLEntityStore) GetInteraction(ctx context.Context, id string, includeTombstoned bool) (*rowguard.Interaction, error) {
	q := "SELECT " + interactionCols + " FROM interactions WHERE id = :id" + liveClause(includeTombstoned)
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"id": id})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, rowguard.ErrNotFound
	}
	return scanInteraction(r.Scan)
}

// ----------------------------------------------------------------------------
// range scans (live rows only)
// ----------------------------------------------------------------------------

func (s *SQLEntityStore) ListPrincipalsByDistributor(ctx context.Context, distributorID string) ([]*rowguard.Organization, error) {
	q := "SELECT " + organizationCols + " FROM organizations WHERE distributor_id = :distributor_id AND is_principal = 1 AND deleted_at IS NULL"
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"distributor_id": distributorID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*rowguard.Organization, 0)
	for r.Next() {
		o, err := scanOrganization(r.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *SQLEntityStore) ListContactsByOrganization(ctx context.Context, organizationID string) ([]*rowguard.Contact, error) {
	q := "SELECT " + contactCols + " FROM contacts WHERE organization_id = :organization_id AND deleted_at IS NULL"
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"organization_id": organizationID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*rowguard.Contact, 0)
	for r.Next() {
		c, err := scanContact(r.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLEntityStore) ListContactsByRetentionCategory(ctx context.Context, category rowguard.RetentionCategory) ([]*rowguard.Contact, error) {
	q := "SELECT " + contactCols + " FROM contacts WHERE data_retention_category = :category AND deleted_at IS NULL"
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"category": string(category)})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*rowguard.Contact, 0)
	for r.Next() {
		c, err := scanContact(r.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (s *SQLEntityStore) ListOpportunitiesByOrganization(ctx context.Context, organizationID string) ([]*rowguard.Opportunity, error) {
	q := "SELECT " + opportunityCols + " FROM opportunities WHERE organization_id = :organization_id AND deleted_at IS NULL"
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"organization_id": organizationID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*rowguard.Opportunity, 0)
	for r.Next() {
		o, err := scanOpportunity(r.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *SQLEntityStore) ListInteractionsByOpportunity(ctx context.Context, opportunityID string) ([]*rowguard.Interaction, error) {
	q := "SELECT " + interactionCols + " FROM interactions WHERE opportunity_id = :opportunity_id AND deleted_at IS NULL"
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"opportunity_id": opportunityID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*rowguard.Interaction, 0)
	for r.Next() {
		i, err := scanInteraction(r.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, i)
	}
	return out, nil
}

func (s *SQLEntityStore) ListProductPrincipalsByProduct(ctx context.Context, productID string) ([]*rowguard.ProductPrincipal, error) {
	q := "SELECT " + productPrincipalCols + " FROM product_principals WHERE product_id = :product_id AND deleted_at IS NULL"
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"product_id": productID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*rowguard.ProductPrincipal, 0)
	for r.Next() {
		pp, err := scanProductPrincipal(r.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, pp)
	}
	return out, nil
}

// ----------------------------------------------------------------------------
// writes
// ----------------------------------------------------------------------------

func (s *SQLEntityStore) putOrganization(ctx context.Context, o *rowguard.Organization) error {
	q := `INSERT OR REPLACE INTO organizations(id, name, is_principal, is_distributor, distributor_id, created_at, updated_at, deleted_at)
	      VALUES(:id, :name, :is_principal, :is_distributor, :distributor_id, :created_at, :updated_at, :deleted_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":             o.ID,
		"name":           o.Name,
		"is_principal":   boolToInt(o.IsPrincipal),
		"is_distributor": boolToInt(o.IsDistributor),
		"distributor_id": o.DistributorID,
		"created_at":     o.CreatedAt,
		"updated_at":     o.UpdatedAt,
		"deleted_at":     timeOrNil(o.DeletedAt),
	})
	return err
}

func (s *SQLEntityStore) putContact(ctx context.Context, c *rowguard.Contact) error {
	prefsB, _ := json.Marshal(c.CommunicationPreferences)
	purposesB, _ := json.Marshal(c.ProcessingPurposes)
	q := `INSERT OR REPLACE INTO contacts(id, organization_id, first_name, last_name, email, phone, communication_preferences_json, processing_purposes_json, data_retention_category, is_minor, parental_consent_given, lead_score, internal_notes, created_at, updated_at, deleted_at)
	      VALUES(:id, :organization_id, :first_name, :last_name, :email, :phone, :prefs, :purposes, :category, :is_minor, :parental, :lead_score, :internal_notes, :created_at, :updated_at, :deleted_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":              c.ID,
		"organization_id": c.OrganizationID,
		"first_name":      c.FirstName,
		"last_name":       c.LastName,
		"email":           c.Email,
		"phone":           c.Phone,
		"prefs":           string(prefsB),
		"purposes":        string(purposesB),
		"category":        string(c.DataRetentionCategory),
		"is_minor":        boolToInt(c.IsMinor),
		"parental":        boolToInt(c.ParentalConsentGiven),
		"lead_score":      c.LeadScore,
		"internal_notes":  c.InternalNotes,
		"created_at":      c.CreatedAt,
		"updated_at":      c.UpdatedAt,
		"deleted_at":      timeOrNil(c.DeletedAt),
	})
	return err
}

func (s *SQLEntityStore) putProduct(ctx context.Context, p *rowguard.Product) error {
	q := `INSERT OR REPLACE INTO products(id, sku, name, is_active, category, list_price, created_at, updated_at, deleted_at)
	      VALUES(:id, :sku, :name, :is_active, :category, :list_price, :created_at, :updated_at, :deleted_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":         p.ID,
		"sku":        p.SKU,
		"name":       p.Name,
		"is_active":  boolToInt(p.IsActive),
		"category":   string(p.Category),
		"list_price": p.ListPrice,
		"created_at": p.CreatedAt,
		"updated_at": p.UpdatedAt,
		"deleted_at": timeOrNil(p.DeletedAt),
	})
	return err
}

func (s *SQLEntityStore) putProductPrincipal(ctx context.Context, pp *rowguard.ProductPrincipal) error {
	q := `INSERT OR REPLACE INTO product_principals(id, product_id, organization_id, is_primary_principal, exclusive_rights, wholesale_price, contract_start, contract_end, created_at, updated_at, deleted_at)
	      VALUES(:id, :product_id, :organization_id, :is_primary, :exclusive, :wholesale_price, :contract_start, :contract_end, :created_at, :updated_at, :deleted_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":              pp.ID,
		"product_id":      pp.ProductID,
		"organization_id": pp.OrganizationID,
		"is_primary":      boolToInt(pp.IsPrimaryPrincipal),
		"exclusive":       boolToInt(pp.ExclusiveRights),
		"wholesale_price": pp.WholesalePrice,
		"contract_start":  pp.ContractStart,
		"contract_end":    timeOrNil(pp.ContractEnd),
		"created_at":      pp.CreatedAt,
		"updated_at":      pp.UpdatedAt,
		"deleted_at":      timeOrNil(pp.DeletedAt),
	})
	return err
}

func (s *SQLEntityStore) putOpportunity(ctx context.Context, o *rowguard.Opportunity) error {
	var closeDate interface{}
	if !o.ExpectedCloseDate.IsZero() {
		closeDate = o.ExpectedCloseDate
	}
	q := `INSERT OR REPLACE INTO opportunities(id, organization_id, product_id, stage, probability_percent, is_won, expected_close_date, created_at, updated_at, deleted_at)
	      VALUES(:id, :organization_id, :product_id, :stage, :probability, :is_won, :close_date, :created_at, :updated_at, :deleted_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":              o.ID,
		"organization_id": o.OrganizationID,
		"product_id":      o.ProductID,
		"stage":           string(o.Stage),
		"probability":     o.ProbabilityPercent,
		"is_won":          boolToInt(o.IsWon),
		"close_date":      closeDate,
		"created_at":      o.CreatedAt,
		"updated_at":      o.UpdatedAt,
		"deleted_at":      timeOrNil(o.DeletedAt),
	})
	return err
}

func (s *SQLEntityStore) putInteraction(ctx context.Context, i *rowguard.Interaction) error {
	notesB, _ := json.Marshal(i.Notes)
	var rating interface{}
	if i.Rating != nil {
		rating = *i.Rating
	}
	q := `INSERT OR REPLACE INTO interactions(id, opportunity_id, type, status, priority, outcome, rating, notes_json, created_at, updated_at, deleted_at)
	      VALUES(:id, :opportunity_id, :type, :status, :priority, :outcome, :rating, :notes, :created_at, :updated_at, :deleted_at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":             i.ID,
		"opportunity_id": i.OpportunityID,
		"type":           string(i.Type),
		"status":         string(i.Status),
		"priority":       string(i.Priority),
		"outcome":        string(i.Outcome),
		"rating":         rating,
		"notes":          string(notesB),
		"created_at":     i.CreatedAt,
		"updated_at":     i.UpdatedAt,
		"deleted_at":     timeOrNil(i.DeletedAt),
	})
	return err
}

func (s *SQLEntityStore) PutOrganization(ctx context.Context, o *rowguard.Organization) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putOrganization(ctx, o)
}

func (s *SQLEntityStore) PutContact(ctx context.Context, c *rowguard.Contact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putContact(ctx, c)
}

func (s *SQLEntityStore) PutProduct(ctx context.Context, p *rowguard.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putProduct(ctx, p)
}

func (s *SQLEntityStore) PutProductPrincipal(ctx context.Context, pp *rowguard.ProductPrincipal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putProductPrincipal(ctx, pp)
}

func (s *SQLEntityStore) PutOpportunity(ctx context.Context, o *rowguard.Opportunity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putOpportunity(ctx, o)
}

func (s *SQLEntityStore) PutInteraction(ctx context.Context, i *rowguard.Interaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.putInteraction(ctx, i)
}

func (s *SQLEntityStore) setDeletedAt(ctx context.Context, entity rowguard.EntityType, id string, deletedAt *time.Time) error {
	table := tableFor(entity)
	if table == "" {
		return rowguard.ErrNotFound
	}
	if err := s.exists(ctx, table, id); err != nil {
		return err
	}
	q := "UPDATE " + table + " SET deleted_at = :deleted_at, updated_at = :updated_at WHERE id = :id"
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"deleted_at": timeOrNil(deletedAt),
		"updated_at": time.Now(),
		"id":         id,
	})
	return err
}

func (s *SQLEntityStore) SetDeletedAt(ctx context.Context, entity rowguard.EntityType, id string, deletedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setDeletedAt(ctx, entity, id, deletedAt)
}

func (s *SQLEntityStore) hardDelete(ctx context.Context, entity rowguard.EntityType, id string) error {
	if entity == rowguard.EntityInteraction {
		return rowguard.ErrHardDeleteForbidden
	}
	table := tableFor(entity)
	if table == "" {
		return rowguard.ErrNotFound
	}
	if err := s.exists(ctx, table, id); err != nil {
		return err
	}
	_, err := s.db.NamedExecContext(ctx, "DELETE FROM "+table+" WHERE id = :id", map[string]any{"id": id})
	return err
}

func (s *SQLEntityStore) HardDelete(ctx context.Context, entity rowguard.EntityType, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hardDelete(ctx, entity, id)
}

func (s *SQLEntityStore) exists(ctx context.Context, table, id string) error {
	r, err := s.db.NamedQueryContext(ctx, "SELECT 1 FROM "+table+" WHERE id = :id", map[string]any{"id": id})
	if err != nil {
		return err
	}
	defer r.Close()
	if !r.Next() {
		return rowguard.ErrNotFound
	}
	return nil
}

// ----------------------------------------------------------------------------
// snapshot + transactions
// ----------------------------------------------------------------------------

// Snapshot blocks writers until release is called; the store itself serves as
// the pinned reader.
func (s *SQLEntityStore) Snapshot(ctx context.Context) (rowguard.EntityReader, func(), error) {
	s.mu.RLock()
	return s, s.mu.RUnlock, nil
}

// sqlTxWriter routes writes through the store without re-acquiring its lock;
// WriteTx already holds it.
type sqlTxWriter struct {
	store *SQLEntityStore
}

func (t *sqlTxWriter) PutOrganization(ctx context.Context, o *rowguard.Organization) error {
	return t.store.putOrganization(ctx, o)
}

func (t *sqlTxWriter) PutContact(ctx context.Context, c *rowguard.Contact) error {
	return t.store.putContact(ctx, c)
}

func (t *sqlTxWriter) PutProduct(ctx context.Context, p *rowguard.Product) error {
	return t.store.putProduct(ctx, p)
}

func (t *sqlTxWriter) PutProductPrincipal(ctx context.Context, pp *rowguard.ProductPrincipal) error {
	return t.store.putProductPrincipal(ctx, pp)
}

func (t *sqlTxWriter) PutOpportunity(ctx context.Context, o *rowguard.Opportunity) error {
	return t.store.putOpportunity(ctx, o)
}

func (t *sqlTxWriter) PutInteraction(ctx context.Context, i *rowguard.Interaction) error {
	return t.store.putInteraction(ctx, i)
}

func (t *sqlTxWriter) SetDeletedAt(ctx context.Context, entity rowguard.EntityType, id string, deletedAt *time.Time) error {
	return t.store.setDeletedAt(ctx, entity, id, deletedAt)
}

func (t *sqlTxWriter) HardDelete(ctx context.Context, entity rowguard.EntityType, id string) error {
	return t.store.hardDelete(ctx, entity, id)
}

// WriteTx wraps fn in BEGIN IMMEDIATE / COMMIT under the store lock.
func (s *SQLEntityStore) WriteTx(ctx context.Context, fn func(tx rowguard.EntityWriter) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.db.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return err
	}
	if err := fn(&sqlTxWriter{store: s}); err != nil {
		_, _ = s.db.ExecContext(ctx, "ROLLBACK")
		return err
	}
	if _, err := s.db.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = s.db.ExecContext(ctx, "ROLLBACK")
		return err
	}
	return nil
}

// PurgeContactAtomic deletes the contact row and its consent events in one
// transaction; both tables live in the same database.
func (s *SQLEntityStore) PurgeContactAtomic(ctx context.Context, contactID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.exists(ctx, "contacts", contactID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, "DELETE FROM contacts WHERE id = :id", map[string]any{"id": contactID}); err != nil {
		_, _ = s.db.ExecContext(ctx, "ROLLBACK")
		return err
	}
	if _, err := s.db.NamedExecContext(ctx, "DELETE FROM consent_events WHERE contact_id = :id", map[string]any{"id": contactID}); err != nil {
		_, _ = s.db.ExecContext(ctx, "ROLLBACK")
		return err
	}
	if _, err := s.db.ExecContext(ctx, "COMMIT"); err != nil {
		_, _ = s.db.ExecContext(ctx, "ROLLBACK")
		return err
	}
	return nil
}
