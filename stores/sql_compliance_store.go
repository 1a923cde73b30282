package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/rowguard"
)

// SQLConsentStore persists the append-only consent ledger.
type SQLConsentStore struct {
	db *squealx.DB
}

func NewSQLConsentStore(db *squealx.DB) (*SQLConsentStore, error) {
	return &SQLConsentStore{db: db}, nil
}

func (s *SQLConsentStore) Append(ctx context.Context, ev *rowguard.ConsentEvent) error {
	q := `INSERT INTO consent_events(id, contact_id, purpose, given, at, method, expires)
	      VALUES(:id, :contact_id, :purpose, :given, :at, :method, :expires)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":         ev.ID,
		"contact_id": ev.ContactID,
		"purpose":    ev.Purpose,
		"given":      boolToInt(ev.Given),
		"at":         ev.At,
		"method":     ev.Method,
		"expires":    timeOrNil(ev.Expires),
	})
	return err
}

func (s *SQLConsentStore) History(ctx context.Context, contactID, purpose string) ([]*rowguard.ConsentEvent, error) {
	q := `SELECT id, contact_id, purpose, given, at, method, expires FROM consent_events WHERE contact_id = :contact_id`
	params := map[string]any{"contact_id": contactID}
	if purpose != "" {
		q += " AND purpose = :purpose"
		params["purpose"] = purpose
	}
	q += " ORDER BY at ASC"
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*rowguard.ConsentEvent, 0)
	for r.Next() {
		ev := &rowguard.ConsentEvent{}
		var given int
		var atRaw, expiresRaw interface{}
		if err := r.Scan(&ev.ID, &ev.ContactID, &ev.Purpose, &given, &atRaw, &ev.Method, &expiresRaw); err != nil {
			return nil, err
		}
		ev.Given = given != 0
		ev.At = scanTime(atRaw)
		ev.Expires = scanTimePtr(expiresRaw)
		out = append(out, ev)
	}
	return out, nil
}

func (s *SQLConsentStore) PurgeContact(ctx context.Context, contactID string) error {
	_, err := s.db.NamedExecContext(ctx, "DELETE FROM consent_events WHERE contact_id = :contact_id", map[string]any{"contact_id": contactID})
	return err
}

// SQLErasureLog persists erasure records.
type SQLErasureLog struct {
	db *squealx.DB
}

func NewSQLErasureLog(db *squealx.DB) (*SQLErasureLog, error) {
	return &SQLErasureLog{db: db}, nil
}

func (s *SQLErasureLog) AppendErasure(ctx context.Context, e *rowguard.ErasureLogEntry) error {
	q := `INSERT INTO erasure_log(id, contact_id, requested_by, reason, at)
	      VALUES(:id, :contact_id, :requested_by, :reason, :at)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":           e.ID,
		"contact_id":   e.ContactID,
		"requested_by": e.RequestedBy,
		"reason":       e.Reason,
		"at":           e.At,
	})
	return err
}

func (s *SQLErasureLog) ListErasures(ctx context.Context, contactID string) ([]*rowguard.ErasureLogEntry, error) {
	q := `SELECT id, contact_id, requested_by, reason, at FROM erasure_log WHERE 1=1`
	params := map[string]any{}
	if contactID != "" {
		q += " AND contact_id = :contact_id"
		params["contact_id"] = contactID
	}
	q += " ORDER BY at ASC"
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*rowguard.ErasureLogEntry, 0)
	for r.Next() {
		e := &rowguard.ErasureLogEntry{}
		var atRaw interface{}
		if err := r.Scan(&e.ID, &e.ContactID, &e.RequestedBy, &e.Reason, &atRaw); err != nil {
			return nil, err
		}
		e.At = scanTime(atRaw)
		out = append(out, e)
	}
	return out, nil
}

// SQLBreachStore persists breach workflow entries. Rows are updated in place
// as the workflow advances; remediation actions ride along as JSON.
type SQLBreachStore struct {
	db *squealx.DB
}

func NewSQLBreachStore(db *squealx.DB) (*SQLBreachStore, error) {
	return &SQLBreachStore{db: db}, nil
}

func (s *SQLBreachStore) PutBreach(ctx context.Context, b *rowguard.BreachLogEntry) error {
	actionsB, _ := json.Marshal(b.RemediationActions)
	q := `INSERT OR REPLACE INTO breach_log(incident_id, detection_date, severity, affected_records, state, notification_required, supervisory_authority_notified_at, data_subject_notification_required, data_subjects_notified_at, remediation_actions_json)
	      VALUES(:incident_id, :detection_date, :severity, :affected_records, :state, :notification_required, :authority_notified_at, :subject_notification_required, :subjects_notified_at, :actions)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"incident_id":                   b.IncidentID,
		"detection_date":                b.DetectionDate,
		"severity":                      b.Severity,
		"affected_records":              b.AffectedRecords,
		"state":                         string(b.State),
		"notification_required":         boolToInt(b.NotificationRequired),
		"authority_notified_at":         timeOrNil(b.SupervisoryAuthorityNotifiedAt),
		"subject_notification_required": boolToInt(b.DataSubjectNotificationRequired),
		"subjects_notified_at":          timeOrNil(b.DataSubjectsNotifiedAt),
		"actions":                       string(actionsB),
	})
	return err
}

func (s *SQLBreachStore) GetBreach(ctx context.Context, incidentID string) (*rowguard.BreachLogEntry, error) {
	q := `SELECT incident_id, detection_date, severity, affected_records, state, notification_required, supervisory_authority_notified_at, data_subject_notification_required, data_subjects_notified_at, remediation_actions_json
	      FROM breach_log WHERE incident_id = :incident_id`
	r, err := s.db.NamedQueryContext(ctx, q, map[string]any{"incident_id": incidentID})
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if !r.Next() {
		return nil, rowguard.ErrNotFound
	}
	return scanBreach(r.Scan)
}

func (s *SQLBreachStore) ListBreaches(ctx context.Context, filter rowguard.BreachFilter) ([]*rowguard.BreachLogEntry, error) {
	q := `SELECT incident_id, detection_date, severity, affected_records, state, notification_required, supervisory_authority_notified_at, data_subject_notification_required, data_subjects_notified_at, remediation_actions_json
	      FROM breach_log WHERE 1=1`
	params := map[string]any{}
	if filter.State != "" {
		q += " AND state = :state"
		params["state"] = string(filter.State)
	}
	q += " ORDER BY detection_date ASC"
	if filter.Limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = filter.Limit
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*rowguard.BreachLogEntry, 0)
	for r.Next() {
		b, err := scanBreach(r.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

func scanBreach(scan func(...any) error) (*rowguard.BreachLogEntry, error) {
	b := &rowguard.BreachLogEntry{}
	var state, actionsJSON string
	var notifReq, subjReq int
	var detectedRaw, authorityRaw, subjectsRaw interface{}
	if err := scan(&b.IncidentID, &detectedRaw, &b.Severity, &b.AffectedRecords, &state,
		&notifReq, &authorityRaw, &subjReq, &subjectsRaw, &actionsJSON); err != nil {
		return nil, err
	}
	b.State = rowguard.BreachState(state)
	b.NotificationRequired = notifReq != 0
	b.DataSubjectNotificationRequired = subjReq != 0
	b.DetectionDate = scanTime(detectedRaw)
	b.SupervisoryAuthorityNotifiedAt = scanTimePtr(authorityRaw)
	b.DataSubjectsNotifiedAt = scanTimePtr(subjectsRaw)
	_ = json.Unmarshal([]byte(actionsJSON), &b.RemediationActions)
	return b, nil
}
