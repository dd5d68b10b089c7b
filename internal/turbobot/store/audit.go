package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/bdobrica/turbobot/common/redact"
)

// AuditEntry is one row of the audit log.
type AuditEntry struct {
	ID           int64
	Timestamp    time.Time
	TraceID      string
	Platform     string
	Actor        string
	Action       string
	Target       sql.NullString
	PayloadJSON  sql.NullString
	Result       string
	ErrorMessage sql.NullString
}

// AuditPayload carries structured extras for an audit row.
type AuditPayload map[string]any

// AuditRecord is the input to WriteAudit. Empty optional fields are stored
// as NULL.
type AuditRecord struct {
	TraceID  string
	Platform string
	Actor    string
	Action   string
	Target   string
	Result   string
	Payload  AuditPayload
	Error    string
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// WriteAudit appends one row to the audit log. Payload values stored under
// credential-looking keys are replaced before they reach the database.
func (s *Store) WriteAudit(ctx context.Context, rec AuditRecord) error {
	var payloadJSON sql.NullString
	if len(rec.Payload) > 0 {
		b, err := json.Marshal(redact.Map(rec.Payload))
		if err != nil {
			return fmt.Errorf("failed to marshal audit payload: %w", err)
		}
		payloadJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_log (ts, trace_id, platform, actor, action, target, payload_json, result, error_message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, time.Now().UTC(), rec.TraceID, rec.Platform, rec.Actor, rec.Action,
		nullString(rec.Target), payloadJSON, rec.Result, nullString(rec.Error))
	if err != nil {
		return fmt.Errorf("failed to write audit log: %w", err)
	}
	return nil
}

const auditColumns = `id, ts, trace_id, platform, actor, action, target, payload_json, result, error_message`

// TailAudit returns the newest limit entries, oldest first.
func (s *Store) TailAudit(ctx context.Context, limit int) ([]*AuditEntry, error) {
	if limit <= 0 {
		limit = 20
	}
	entries, err := s.queryAudit(ctx, `SELECT `+auditColumns+` FROM audit_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	slices.Reverse(entries)
	return entries, nil
}

// AuditByTrace returns every entry for traceID in insertion order.
func (s *Store) AuditByTrace(ctx context.Context, traceID string) ([]*AuditEntry, error) {
	return s.queryAudit(ctx, `SELECT `+auditColumns+` FROM audit_log WHERE trace_id = ? ORDER BY id ASC`, traceID)
}

func (s *Store) queryAudit(ctx context.Context, query string, args ...any) ([]*AuditEntry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query audit log: %w", err)
	}
	defer rows.Close()

	var entries []*AuditEntry
	for rows.Next() {
		e := &AuditEntry{}
		if err := rows.Scan(
			&e.ID, &e.Timestamp, &e.TraceID, &e.Platform, &e.Actor, &e.Action,
			&e.Target, &e.PayloadJSON, &e.Result, &e.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit log: %w", err)
	}
	return entries, nil
}
