package stores

import (
	"context"
	"encoding/json"

	"github.com/oarkflow/squealx"

	"github.com/oarkflow/rowguard"
)

// SQLAuditStore persists evaluation decisions in SQL.
type SQLAuditStore struct {
	db *squealx.DB
}

func NewSQLAuditStore(db *squealx.DB) (*SQLAuditStore, error) {
	return &SQLAuditStore{db: db}, nil
}

func (s *SQLAuditStore) LogDecision(ctx context.Context, entry *rowguard.AuditEntry) error {
	traceB, _ := json.Marshal(entry.Decision.Trace)
	q := `INSERT INTO audit_log(id, timestamp, principal_role, principal_id, operation, entity, row_id, allowed, reason, trace_json, trace_id)
	      VALUES(:id, :timestamp, :principal_role, :principal_id, :operation, :entity, :row_id, :allowed, :reason, :trace_json, :trace_id)`
	_, err := s.db.NamedExecContext(ctx, q, map[string]any{
		"id":             entry.ID,
		"timestamp":      entry.Timestamp,
		"principal_role": string(entry.Principal.Role),
		"principal_id":   entry.Principal.PrincipalID,
		"operation":      string(entry.Operation),
		"entity":         string(entry.Entity),
		"row_id":         entry.RowID,
		"allowed":        boolToInt(entry.Decision.Allowed),
		"reason":         string(entry.Decision.Reason),
		"trace_json":     string(traceB),
		"trace_id":       entry.TraceID,
	})
	return err
}

func (s *SQLAuditStore) GetAccessLog(ctx context.Context, filter rowguard.AuditFilter) ([]*rowguard.AuditEntry, error) {
	q := `SELECT id, timestamp, principal_role, principal_id, operation, entity, row_id, allowed, reason, trace_json, trace_id FROM audit_log WHERE 1=1`
	params := map[string]any{}
	if filter.PrincipalID != "" {
		q += " AND principal_id = :principal_id"
		params["principal_id"] = filter.PrincipalID
	}
	if filter.Entity != "" {
		q += " AND entity = :entity"
		params["entity"] = string(filter.Entity)
	}
	if filter.RowID != "" {
		q += " AND row_id = :row_id"
		params["row_id"] = filter.RowID
	}
	if filter.Operation != "" {
		q += " AND operation = :operation"
		params["operation"] = string(filter.Operation)
	}
	if !filter.StartTime.IsZero() {
		q += " AND timestamp >= :start"
		params["start"] = filter.StartTime
	}
	if !filter.EndTime.IsZero() {
		q += " AND timestamp <= :end"
		params["end"] = filter.EndTime
	}
	if filter.Limit > 0 {
		q += " LIMIT :limit"
		params["limit"] = filter.Limit
	} else {
		q += " LIMIT 100"
	}
	r, err := s.db.NamedQueryContext(ctx, q, params)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	out := make([]*rowguard.AuditEntry, 0)
	for r.Next() {
		var role, operation, entity, reason, traceJSON string
		var timestampRaw interface{}
		var allowedInt int
		entry := &rowguard.AuditEntry{}
		if err := r.Scan(&entry.ID, &timestampRaw, &role, &entry.Principal.PrincipalID, &operation, &entity, &entry.RowID, &allowedInt, &reason, &traceJSON, &entry.TraceID); err != nil {
			return nil, err
		}
		entry.Timestamp = scanTime(timestampRaw)
		entry.Principal.Role = rowguard.RoleKind(role)
		entry.Operation = rowguard.Operation(operation)
		entry.Entity = rowguard.EntityType(entity)
		entry.Decision = &rowguard.Decision{Allowed: allowedInt != 0, Reason: rowguard.DenyReason(reason), Timestamp: entry.Timestamp}
		_ = json.Unmarshal([]byte(traceJSON), &entry.Decision.Trace)
		out = append(out, entry)
	}
	return out, nil
}
