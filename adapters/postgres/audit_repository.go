package postgres

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"fairlens/domain/core"
	"fairlens/ports"
)

// AuditRepositoryImpl implements AuditRepository for PostgreSQL
type AuditRepositoryImpl struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new PostgreSQL audit repository
func NewAuditRepository(db *sqlx.DB) ports.AuditRepository {
	return &AuditRepositoryImpl{db: db}
}

// EnsureSchema creates the audit_records table when it does not exist yet.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS audit_records (
			id         UUID PRIMARY KEY,
			session_id UUID NOT NULL,
			kind       TEXT NOT NULL,
			payload    JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_audit_records_session ON audit_records (session_id, created_at DESC);
	`)
	return err
}

// SaveRecord persists one completed analysis result
func (r *AuditRepositoryImpl) SaveRecord(ctx context.Context, record *ports.AuditRecord) error {
	if record.ID.String() == "" {
		record.ID = core.RecordID(core.NewID())
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO audit_records (id, session_id, kind, payload, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, record.ID.String(), record.SessionID.String(), record.Kind, []byte(record.Payload), record.CreatedAt)
	return err
}

// ListBySession returns the most recent records for a session, newest first
func (r *AuditRepositoryImpl) ListBySession(ctx context.Context, sessionID core.SessionID, limit int) ([]*ports.AuditRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var records []*ports.AuditRecord
	err := r.db.SelectContext(ctx, &records, `
		SELECT id, session_id, kind, payload, created_at
		FROM audit_records
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, sessionID.String(), limit)
	if err != nil {
		return nil, err
	}
	return records, nil
}
