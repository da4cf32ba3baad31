// Package session holds the per-audit state that the original orchestration
// kept in process-wide globals: the loaded oracle, the candidate pool, and
// dataset metadata. Every core operation receives this state explicitly.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"fairlens/domain/core"
	"fairlens/domain/fairness"
	"fairlens/ports"
)

// AuditSession is one loaded model + dataset pair under audit. The session
// owns the oracle's lifetime; the core engines only borrow read access.
// Callers must serialize analysis requests against a single session, since
// ablation briefly mutates oracle state.
type AuditSession struct {
	ID           core.SessionID
	Oracle       ports.AblatableOracle
	Pool         *fairness.CandidatePool
	Labels       []float64
	FeatureNames []string
	Detected     []string
	ModelHash    core.ModelHash
	CreatedAt    time.Time
}

// Attribute resolves a protected attribute name against the session's
// feature ordering.
func (s *AuditSession) Attribute(name string, values []float64) (fairness.ProtectedAttribute, error) {
	for i, fn := range s.FeatureNames {
		if fn == name {
			return fairness.ProtectedAttribute{Name: name, Index: i, Values: values}, nil
		}
	}
	return fairness.ProtectedAttribute{}, core.NewAttributeError(name, "not among session feature names")
}

// Manager is the registry of live audit sessions.
type Manager struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*AuditSession
	repo     ports.AuditRepository // nil disables persistence
}

// NewManager creates a session manager. repo may be nil.
func NewManager(repo ports.AuditRepository) *Manager {
	return &Manager{
		sessions: make(map[core.SessionID]*AuditSession),
		repo:     repo,
	}
}

// Create registers a new session for a loaded oracle and candidate pool.
func (m *Manager) Create(oracle ports.AblatableOracle, pool *fairness.CandidatePool, featureNames []string, labels []float64, detected []string, modelHash core.ModelHash) (*AuditSession, error) {
	if oracle == nil {
		return nil, core.ErrOracleUnavailable
	}
	if pool == nil || pool.Len() == 0 {
		return nil, core.ErrEmptyPool
	}
	if pool.Width() != oracle.InputDim() {
		return nil, core.NewDimensionMismatchError(pool.Width(), oracle.InputDim())
	}

	session := &AuditSession{
		ID:           core.SessionID(core.NewID()),
		Oracle:       oracle,
		Pool:         pool,
		Labels:       labels,
		FeatureNames: featureNames,
		Detected:     detected,
		ModelHash:    modelHash,
		CreatedAt:    time.Now().UTC(),
	}

	m.mu.Lock()
	m.sessions[session.ID] = session
	m.mu.Unlock()
	return session, nil
}

// Get retrieves a session by ID.
func (m *Manager) Get(id string) (*AuditSession, error) {
	sessionID, err := core.ParseSessionID(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", core.ErrSessionNotFound, err)
	}

	m.mu.RLock()
	session, ok := m.sessions[sessionID]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", core.ErrSessionNotFound, id)
	}
	return session, nil
}

// Delete removes a session from the registry.
func (m *Manager) Delete(id string) {
	sessionID, err := core.ParseSessionID(id)
	if err != nil {
		return
	}
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// RecordResult persists a completed analysis payload when a repository is
// configured. A nil repository is a supported mode, not an error.
func (m *Manager) RecordResult(ctx context.Context, sessionID core.SessionID, kind string, payload interface{}) error {
	if m.repo == nil {
		return nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encoding %s result: %w", kind, err)
	}
	return m.repo.SaveRecord(ctx, &ports.AuditRecord{
		ID:        core.RecordID(core.NewID()),
		SessionID: sessionID,
		Kind:      kind,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	})
}

// History returns recent persisted records for a session, newest first.
// Without a repository it returns an empty list.
func (m *Manager) History(ctx context.Context, sessionID core.SessionID, limit int) ([]*ports.AuditRecord, error) {
	if m.repo == nil {
		return []*ports.AuditRecord{}, nil
	}
	return m.repo.ListBySession(ctx, sessionID, limit)
}
