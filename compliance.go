package rowguard

import (
	"context"
	"sort"
	"time"
)

// ============================================================================
// COMPLIANCE LIFECYCLE TRACKER
// ============================================================================

// ConsentEvent is one entry in the append-only consent ledger. Withdrawal is
// a new event with Given=false, never an in-place overwrite: prior state must
// remain reconstructable for audit.
type ConsentEvent struct {
	ID        string     `json:"id"`
	ContactID string     `json:"contact_id"`
	Purpose   string     `json:"purpose"`
	Given     bool       `json:"given"`
	At        time.Time  `json:"at"`
	Method    string     `json:"method,omitempty"`
	Expires   *time.Time `json:"expires,omitempty"`
}

// ErasureLogEntry records a hard purge before it executes: who, when, why.
type ErasureLogEntry struct {
	ID          string    `json:"id"`
	ContactID   string    `json:"contact_id"`
	RequestedBy string    `json:"requested_by"`
	Reason      string    `json:"reason"`
	At          time.Time `json:"at"`
}

// RecordConsent appends a consent grant or withdrawal for a purpose. The
// contact must be live; consent changes on tombstoned contacts are refused.
func (e *Engine) RecordConsent(ctx context.Context, rc RoleContext, contactID, purpose string, given bool, method string, expires *time.Time) error {
	if rc.Role != RoleAuthenticated {
		return &PolicyDeniedError{Decision: deny(time.Now(), ReasonNoPolicy)}
	}
	if _, err := e.store.GetContact(ctx, contactID, false); err != nil {
		return err
	}
	ev := &ConsentEvent{
		ID:        NewID(),
		ContactID: contactID,
		Purpose:   purpose,
		Given:     given,
		At:        time.Now(),
		Method:    method,
		Expires:   expires,
	}
	if err := e.consents.Append(ctx, ev); err != nil {
		return err
	}
	e.logger.Info("consent recorded", "contact_id", contactID, "purpose", purpose, "given", given)
	return nil
}

// ConsentHistory returns every ledger event for the purpose, oldest first.
func (e *Engine) ConsentHistory(ctx context.Context, contactID, purpose string) ([]*ConsentEvent, error) {
	events, err := e.consents.History(ctx, contactID, purpose)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(events, func(i, j int) bool { return events[i].At.Before(events[j].At) })
	return events, nil
}

// EffectiveConsent derives the current consent for a purpose: the newest
// ledger event wins, and an expired grant counts as withdrawn. No events
// means no consent.
func (e *Engine) EffectiveConsent(ctx context.Context, contactID, purpose string) (bool, error) {
	events, err := e.ConsentHistory(ctx, contactID, purpose)
	if err != nil {
		return false, err
	}
	if len(events) == 0 {
		return false, nil
	}
	latest := events[len(events)-1]
	if !latest.Given {
		return false, nil
	}
	if latest.Expires != nil && time.Now().After(*latest.Expires) {
		return false, nil
	}
	return true, nil
}

// MarketingAllowed gates marketing-purpose processing. Minors carry a
// parallel parental-consent status that applies independently of the
// subject's own consent.
func (e *Engine) MarketingAllowed(ctx context.Context, contactID string) (bool, error) {
	contact, err := e.store.GetContact(ctx, contactID, false)
	if err != nil {
		return false, err
	}
	own, err := e.EffectiveConsent(ctx, contactID, "marketing")
	if err != nil {
		return false, err
	}
	if !own {
		return false, nil
	}
	if contact.IsMinor && !contact.ParentalConsentGiven {
		return false, nil
	}
	return true, nil
}

// SetRetentionCategory updates the contact's retention bucket. The category
// drives an out-of-band purge sweep; the engine's obligation is keeping the
// field consistent and queryable.
func (e *Engine) SetRetentionCategory(ctx context.Context, rc RoleContext, contactID string, category RetentionCategory) error {
	if !category.Valid() {
		return &ConstraintViolationError{Entity: EntityContact, Field: "data_retention_category", Detail: "unknown category"}
	}
	contact, err := e.store.GetContact(ctx, contactID, false)
	if err != nil {
		return err
	}
	contact.DataRetentionCategory = category
	return e.Update(ctx, rc, contact)
}

// ContactsByRetentionCategory lists live contacts in a retention bucket for
// the sweep scheduler.
func (e *Engine) ContactsByRetentionCategory(ctx context.Context, category RetentionCategory) ([]*Contact, error) {
	return e.store.ListContactsByRetentionCategory(ctx, category)
}

// HardPurgeContact is the verified right-to-erasure path (Article 17): the
// purge is logged first, then the contact row and its consent ledger are
// removed in one transaction. Refused while live rows still reference the
// contact.
func (e *Engine) HardPurgeContact(ctx context.Context, rc RoleContext, contactID, reason string) error {
	if rc.Role != RoleAuthenticated {
		return &PolicyDeniedError{Decision: deny(time.Now(), ReasonNoPolicy)}
	}
	if _, err := e.store.GetContact(ctx, contactID, true); err != nil {
		return err
	}
	referenced, err := e.referencedByLive(ctx, EntityContact, contactID)
	if err != nil {
		return err
	}
	if referenced {
		return &ReferentialIntegrityError{Entity: EntityContact, TargetID: contactID, Referenced: true}
	}
	entry := &ErasureLogEntry{
		ID:          NewID(),
		ContactID:   contactID,
		RequestedBy: rc.PrincipalID,
		Reason:      reason,
		At:          time.Now(),
	}
	if err := e.erasures.AppendErasure(ctx, entry); err != nil {
		return err
	}
	// Prefer a single transaction covering row + ledger when the store offers
	// one; otherwise fall back to row-then-ledger.
	if ap, ok := e.store.(AtomicPurger); ok {
		if err := ap.PurgeContactAtomic(ctx, contactID); err != nil {
			return err
		}
	} else {
		err = e.store.WriteTx(ctx, func(tx EntityWriter) error {
			return tx.HardDelete(ctx, EntityContact, contactID)
		})
		if err != nil {
			return err
		}
		if err := e.consents.PurgeContact(ctx, contactID); err != nil {
			return err
		}
	}
	e.logger.Info("contact purged", "contact_id", contactID, "requested_by", rc.PrincipalID)
	return nil
}

// ============================================================================
// BREACH WORKFLOW STATE MACHINE
// ============================================================================

// BreachState is the closed breach-workflow state enum.
type BreachState string

const (
	BreachDetected                BreachState = "detected"
	BreachAssessmentPending       BreachState = "assessment_pending"
	BreachNotificationRequired    BreachState = "notification_required"
	BreachNotificationNotRequired BreachState = "notification_not_required"
	BreachAuthorityNotified       BreachState = "authority_notified"
	BreachSubjectsNotified        BreachState = "subjects_notified"
	BreachRemediationInProgress   BreachState = "remediation_in_progress"
	BreachClosed                  BreachState = "closed"
)

func (s BreachState) Valid() bool {
	switch s {
	case BreachDetected, BreachAssessmentPending, BreachNotificationRequired,
		BreachNotificationNotRequired, BreachAuthorityNotified, BreachSubjectsNotified,
		BreachRemediationInProgress, BreachClosed:
		return true
	}
	return false
}

// breachTransitions encodes the legal workflow edges.
var breachTransitions = map[BreachState][]BreachState{
	BreachDetected:                {BreachAssessmentPending},
	BreachAssessmentPending:       {BreachNotificationRequired, BreachNotificationNotRequired},
	BreachNotificationRequired:    {BreachAuthorityNotified},
	BreachNotificationNotRequired: {BreachRemediationInProgress},
	BreachAuthorityNotified:       {BreachSubjectsNotified, BreachRemediationInProgress},
	BreachSubjectsNotified:        {BreachRemediationInProgress},
	BreachRemediationInProgress:   {BreachClosed},
	BreachClosed:                  {},
}

func (s BreachState) canTransitionTo(to BreachState) bool {
	for _, next := range breachTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// BreachLogEntry tracks one incident through the notification workflow.
type BreachLogEntry struct {
	IncidentID                      string      `json:"incident_id"`
	DetectionDate                   time.Time   `json:"detection_date"`
	Severity                        string      `json:"severity"`
	AffectedRecords                 int         `json:"affected_records"`
	State                           BreachState `json:"state"`
	NotificationRequired            bool        `json:"notification_required"`
	SupervisoryAuthorityNotifiedAt  *time.Time  `json:"supervisory_authority_notified_at,omitempty"`
	DataSubjectNotificationRequired bool        `json:"data_subject_notification_required"`
	DataSubjectsNotifiedAt          *time.Time  `json:"data_subjects_notified_at,omitempty"`
	RemediationActions              []string    `json:"remediation_actions,omitempty"`
}

// AuthorityNotificationLate reports whether the supervisory authority was
// notified after the SLA window measured from detection. False while not yet
// notified.
func (b *BreachLogEntry) AuthorityNotificationLate(sla time.Duration) bool {
	if b.SupervisoryAuthorityNotifiedAt == nil {
		return false
	}
	return b.SupervisoryAuthorityNotifiedAt.Sub(b.DetectionDate) > sla
}

// OpenBreach records a newly detected incident.
func (e *Engine) OpenBreach(ctx context.Context, incidentID string, detected time.Time, severity string, affectedRecords int) (*BreachLogEntry, error) {
	if incidentID == "" {
		incidentID = NewID()
	}
	b := &BreachLogEntry{
		IncidentID:      incidentID,
		DetectionDate:   detected,
		Severity:        severity,
		AffectedRecords: affectedRecords,
		State:           BreachDetected,
	}
	if err := e.breaches.PutBreach(ctx, b); err != nil {
		return nil, err
	}
	e.logger.Info("breach opened", "incident_id", incidentID, "severity", severity)
	return b, nil
}

// AdvanceBreach moves an incident to the next workflow state, rejecting
// illegal edges with a ComplianceStateError.
func (e *Engine) AdvanceBreach(ctx context.Context, incidentID string, to BreachState) (*BreachLogEntry, error) {
	b, err := e.breaches.GetBreach(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if !to.Valid() || !b.State.canTransitionTo(to) {
		return nil, &ComplianceStateError{IncidentID: incidentID, From: b.State, To: to}
	}
	b.State = to
	switch to {
	case BreachNotificationRequired:
		b.NotificationRequired = true
	case BreachNotificationNotRequired:
		b.NotificationRequired = false
	}
	if err := e.breaches.PutBreach(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// NotifyAuthority records the supervisory-authority notification timestamp
// and checks it against the SLA from detection. Lateness is reported, never
// blocked: a late notification still succeeds, the violation is logged and
// queryable afterwards.
func (e *Engine) NotifyAuthority(ctx context.Context, incidentID string, at time.Time) (*BreachLogEntry, bool, error) {
	b, err := e.breaches.GetBreach(ctx, incidentID)
	if err != nil {
		return nil, false, err
	}
	if !b.State.canTransitionTo(BreachAuthorityNotified) {
		return nil, false, &ComplianceStateError{IncidentID: incidentID, From: b.State, To: BreachAuthorityNotified}
	}
	b.State = BreachAuthorityNotified
	b.SupervisoryAuthorityNotifiedAt = &at
	if err := e.breaches.PutBreach(ctx, b); err != nil {
		return nil, false, err
	}
	late := b.AuthorityNotificationLate(e.authoritySLA)
	if late {
		e.logger.Error("authority notification outside SLA",
			"incident_id", incidentID,
			"detected", b.DetectionDate.Format(time.RFC3339),
			"notified", at.Format(time.RFC3339))
	}
	return b, late, nil
}

// NotifySubjects records data-subject notification.
func (e *Engine) NotifySubjects(ctx context.Context, incidentID string, at time.Time) (*BreachLogEntry, error) {
	b, err := e.breaches.GetBreach(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	if !b.State.canTransitionTo(BreachSubjectsNotified) {
		return nil, &ComplianceStateError{IncidentID: incidentID, From: b.State, To: BreachSubjectsNotified}
	}
	b.State = BreachSubjectsNotified
	b.DataSubjectsNotifiedAt = &at
	if err := e.breaches.PutBreach(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// AddRemediation appends a remediation action to the incident's ordered list.
func (e *Engine) AddRemediation(ctx context.Context, incidentID, action string) (*BreachLogEntry, error) {
	b, err := e.breaches.GetBreach(ctx, incidentID)
	if err != nil {
		return nil, err
	}
	b.RemediationActions = append(b.RemediationActions, action)
	if err := e.breaches.PutBreach(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

// ListBreaches queries incidents by state and SLA lateness.
func (e *Engine) ListBreaches(ctx context.Context, filter BreachFilter) ([]*BreachLogEntry, error) {
	storeFilter := filter
	if filter.LateOnly {
		// Lateness is judged here against the engine's SLA, so the store
		// must not truncate before the lateness filter has run.
		storeFilter.Limit = 0
	}
	out, err := e.breaches.ListBreaches(ctx, storeFilter)
	if err != nil {
		return nil, err
	}
	if filter.LateOnly {
		late := out[:0]
		for _, b := range out {
			if b.AuthorityNotificationLate(e.authoritySLA) {
				late = append(late, b)
			}
		}
		out = late
		if filter.Limit > 0 && len(out) > filter.Limit {
			out = out[:filter.Limit]
		}
	}
	return out, nil
}
