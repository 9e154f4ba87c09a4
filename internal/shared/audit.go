package shared

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditEntry represents one record stored in audit_logs. OldData and NewData
// carry before/after snapshots of the mutated entity.
type AuditEntry struct {
	Actor    string
	Action   string
	Entity   string
	EntityID string
	OldData  map[string]any
	NewData  map[string]any
	IP       string
	At       time.Time
}

// AuditLogger writes records into audit_logs.
type AuditLogger struct {
	pool *pgxpool.Pool
}

// NewAuditLogger returns a new AuditLogger.
func NewAuditLogger(pool *pgxpool.Pool) *AuditLogger {
	return &AuditLogger{pool: pool}
}

// Record persists the log entry.
func (l *AuditLogger) Record(ctx context.Context, entry AuditEntry) error {
	if l == nil {
		return errors.New("audit logger not initialised")
	}
	if entry.Action == "" || entry.Entity == "" || entry.EntityID == "" {
		return errors.New("audit entry requires action/entity/entity_id")
	}
	oldJSON, err := json.Marshal(entry.OldData)
	if err != nil {
		return err
	}
	newJSON, err := json.Marshal(entry.NewData)
	if err != nil {
		return err
	}
	_, err = l.pool.Exec(ctx, `INSERT INTO audit_logs (actor, action, entity, entity_id, old_data, new_data, ip_address, occurred_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, COALESCE($8, NOW()))`,
		entry.Actor, entry.Action, entry.Entity, entry.EntityID, oldJSON, newJSON, entry.IP, entry.At)
	return err
}
