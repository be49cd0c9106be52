package shared

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditLog is one back-office mutation.
type AuditLog struct {
	ID       int64          `json:"id"`
	ActorID  string         `json:"actor_id,omitempty"`
	Action   string         `json:"action"`
	Entity   string         `json:"entity"`
	EntityID string         `json:"entity_id"`
	Meta     map[string]any `json:"meta,omitempty"`
	At       time.Time      `json:"at"`
}

// AuditQuery narrows Recent. Empty fields match everything.
type AuditQuery struct {
	Entity   string
	EntityID string
	Limit    int
}

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// Normalize clamps the limit into range.
func (q AuditQuery) Normalize() AuditQuery {
	switch {
	case q.Limit <= 0:
		q.Limit = defaultAuditLimit
	case q.Limit > maxAuditLimit:
		q.Limit = maxAuditLimit
	}
	return q
}

// AuditRecorder appends entries.
type AuditRecorder interface {
	Record(ctx context.Context, log AuditLog) error
}

// AuditStore records and reads back entries.
type AuditStore interface {
	AuditRecorder
	Recent(ctx context.Context, q AuditQuery) ([]AuditLog, error)
}

// AuditLogger keeps the trail in audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the entry. A zero At means now.
func (l *AuditLogger) Record(ctx context.Context, log AuditLog) error {
	if l == nil || l.pool == nil {
		return errors.New("audit logger not initialised")
	}
	if log.Action == "" || log.Entity == "" || log.EntityID == "" {
		return errors.New("audit log requires action, entity and entity_id")
	}
	if log.Meta == nil {
		log.Meta = map[string]any{}
	}
	meta, err := json.Marshal(log.Meta)
	if err != nil {
		return fmt.Errorf("encode audit meta: %w", err)
	}
	if log.At.IsZero() {
		log.At = time.Now().UTC()
	}
	_, err = l.pool.Exec(ctx, `
		INSERT INTO audit_logs (actor_id, action, entity, entity_id, meta, occurred_at)
		VALUES (NULLIF($1, '')::uuid, $2, $3, $4, $5, $6)`,
		log.ActorID, log.Action, log.Entity, log.EntityID, meta, log.At)
	return err
}

// Recent returns the newest entries first.
func (l *AuditLogger) Recent(ctx context.Context, q AuditQuery) ([]AuditLog, error) {
	if l == nil || l.pool == nil {
		return nil, errors.New("audit logger not initialised")
	}
	q = q.Normalize()
	var (
		clauses []string
		args    []any
	)
	if q.Entity != "" {
		args = append(args, q.Entity)
		clauses = append(clauses, fmt.Sprintf("entity = $%d", len(args)))
	}
	if q.EntityID != "" {
		args = append(args, q.EntityID)
		clauses = append(clauses, fmt.Sprintf("entity_id = $%d", len(args)))
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	args = append(args, q.Limit)
	rows, err := l.pool.Query(ctx, fmt.Sprintf(`
		SELECT id, COALESCE(actor_id::text, ''), action, entity, entity_id, meta, occurred_at
		FROM audit_logs%s ORDER BY occurred_at DESC, id DESC LIMIT $%d`, where, len(args)), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var logs []AuditLog
	for rows.Next() {
		var (
			entry AuditLog
			meta  []byte
		)
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.Entity, &entry.EntityID, &meta, &entry.At); err != nil {
			return nil, err
		}
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &entry.Meta); err != nil {
				return nil, fmt.Errorf("decode audit meta %d: %w", entry.ID, err)
			}
		}
		logs = append(logs, entry)
	}
	return logs, rows.Err()
}
