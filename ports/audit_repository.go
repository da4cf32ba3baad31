package ports

import (
	"context"
	"encoding/json"
	"time"

	"fairlens/domain/core"
)

// AuditRecord is one persisted analysis result: the serialized payload of a
// completed QID, search, debug or activation run tied to its session.
type AuditRecord struct {
	ID        core.RecordID   `db:"id" json:"id"`
	SessionID core.SessionID  `db:"session_id" json:"session_id"`
	Kind      string          `db:"kind" json:"kind"`
	Payload   json.RawMessage `db:"payload" json:"payload"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// AuditRepository persists completed analysis results. The orchestration
// layer treats a nil repository as "persistence disabled"; the core engines
// never touch it.
type AuditRepository interface {
	SaveRecord(ctx context.Context, record *AuditRecord) error
	ListBySession(ctx context.Context, sessionID core.SessionID, limit int) ([]*AuditRecord, error)
}
