package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/edgedesk/scanforge/internal/models"
	"github.com/edgedesk/scanforge/internal/store"
)

// SessionRegistry records authored scans so their parameters and outcomes can
// be revisited. Entries age out through PruneOlderThan, driven by the
// maintenance scheduler.
type SessionRegistry struct {
	mu       sync.RWMutex
	logger   *slog.Logger
	store    store.Provider
	sessions map[string]models.ScanSession
}

type sessionSnapshot struct {
	Version  int                  `json:"version"`
	Sessions []models.ScanSession `json:"sessions"`
}

func NewSessionRegistry(logger *slog.Logger, provider store.Provider) *SessionRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = store.NoopProvider{}
	}
	return &SessionRegistry{
		logger:   logger,
		store:    provider,
		sessions: make(map[string]models.ScanSession),
	}
}

// Load restores persisted sessions. A missing key is not an error.
func (r *SessionRegistry) Load(ctx context.Context) error {
	data, err := r.store.Get(ctx, sessionsKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load sessions: %w", err)
	}

	var snapshot sessionSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		r.logger.Warn("discarding corrupt session snapshot", slog.Any("error", err))
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range snapshot.Sessions {
		if s.ID == "" {
			continue
		}
		r.sessions[s.ID] = s
	}
	return nil
}

// Flush writes the current sessions through the store provider.
func (r *SessionRegistry) Flush(ctx context.Context) error {
	r.mu.RLock()
	snapshot := sessionSnapshot{Version: snapshotVersion, Sessions: r.listLocked()}
	r.mu.RUnlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal sessions: %w", err)
	}
	if err := r.store.Set(ctx, sessionsKey, data, 0); err != nil {
		return fmt.Errorf("persist sessions: %w", err)
	}
	return nil
}

// Create records a new session and returns it with a generated id.
func (r *SessionRegistry) Create(scannerType, code string, params map[string]any) models.ScanSession {
	now := time.Now().UTC()
	session := models.ScanSession{
		ID:          uuid.NewString(),
		ScannerType: scannerType,
		Code:        code,
		Parameters:  params,
		State:       models.ScanQueued,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	r.mu.Lock()
	r.sessions[session.ID] = session
	r.mu.Unlock()
	return session
}

// Get looks up one session.
func (r *SessionRegistry) Get(id string) (models.ScanSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

// List returns all sessions, newest first.
func (r *SessionRegistry) List() []models.ScanSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked()
}

func (r *SessionRegistry) listLocked() []models.ScanSession {
	sessions := make([]models.ScanSession, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].CreatedAt.Equal(sessions[j].CreatedAt) {
			return sessions[i].CreatedAt.After(sessions[j].CreatedAt)
		}
		return sessions[i].ID < sessions[j].ID
	})
	return sessions
}

// Delete removes a session, reporting whether it existed.
func (r *SessionRegistry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.sessions[id]; !ok {
		return false
	}
	delete(r.sessions, id)
	return true
}

// UpdateState records a state transition plus the backend scan id when known.
func (r *SessionRegistry) UpdateState(id string, state models.ScanState, scanID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok {
		return false
	}
	s.State = state
	if scanID != "" {
		s.ScanID = scanID
	}
	s.UpdatedAt = time.Now().UTC()
	r.sessions[id] = s
	return true
}

// UpdateByScanID records a state transition for the session tied to a
// backend scan id.
func (r *SessionRegistry) UpdateByScanID(scanID string, state models.ScanState) bool {
	if scanID == "" {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, s := range r.sessions {
		if s.ScanID != scanID {
			continue
		}
		s.State = state
		s.UpdatedAt = time.Now().UTC()
		r.sessions[id] = s
		return true
	}
	return false
}

// PruneOlderThan drops sessions last updated before the cutoff and returns
// how many were removed. Non-terminal sessions are kept regardless of age.
func (r *SessionRegistry) PruneOlderThan(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for id, s := range r.sessions {
		if s.UpdatedAt.Before(cutoff) && s.State.Terminal() {
			delete(r.sessions, id)
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info("pruned scan sessions", slog.Int("removed", removed))
	}
	return removed
}
