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

	"github.com/spf13/cast"

	"github.com/edgedesk/scanforge/internal/models"
	"github.com/edgedesk/scanforge/internal/store"
)

// ParameterRegistry holds parameter definitions keyed by id. It is an
// explicit, constructor-injected service object: callers share one instance
// through references, and a mutex guards the map between async boundaries.
type ParameterRegistry struct {
	mu     sync.RWMutex
	logger *slog.Logger
	store  store.Provider
	defs   map[string]models.ParameterDefinition
}

type parameterSnapshot struct {
	Version    int                          `json:"version"`
	Parameters []models.ParameterDefinition `json:"parameters"`
}

// NewParameterRegistry seeds the registry with static defaults and overlays
// any persisted snapshot on top of them.
func NewParameterRegistry(logger *slog.Logger, provider store.Provider) *ParameterRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = store.NoopProvider{}
	}
	r := &ParameterRegistry{
		logger: logger,
		store:  provider,
		defs:   make(map[string]models.ParameterDefinition),
	}
	for _, def := range defaultParameters() {
		r.defs[def.ID] = def
	}
	return r
}

// Load overlays the persisted snapshot. A missing key leaves the seeded
// defaults untouched; a corrupt snapshot is logged and skipped.
func (r *ParameterRegistry) Load(ctx context.Context) error {
	data, err := r.store.Get(ctx, parametersKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load parameters: %w", err)
	}

	var snapshot parameterSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		r.logger.Warn("discarding corrupt parameter snapshot", slog.Any("error", err))
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, def := range snapshot.Parameters {
		if def.ID == "" {
			continue
		}
		r.defs[def.ID] = def
	}
	return nil
}

// Flush writes the current definitions through the store provider.
func (r *ParameterRegistry) Flush(ctx context.Context) error {
	r.mu.RLock()
	snapshot := parameterSnapshot{Version: snapshotVersion, Parameters: r.listLocked("")}
	r.mu.RUnlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	if err := r.store.Set(ctx, parametersKey, data, 0); err != nil {
		return fmt.Errorf("persist parameters: %w", err)
	}
	return nil
}

// List returns definitions applying to the given scanner type ('*' entries
// match everything; empty scannerType returns all), sorted by display order
// then id.
func (r *ParameterRegistry) List(scannerType string) []models.ParameterDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked(scannerType)
}

func (r *ParameterRegistry) listLocked(scannerType string) []models.ParameterDefinition {
	defs := make([]models.ParameterDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		if models.AppliesTo(def.ScannerTypes, scannerType) {
			defs = append(defs, def)
		}
	}
	sort.Slice(defs, func(i, j int) bool {
		if defs[i].DisplayOrder != defs[j].DisplayOrder {
			return defs[i].DisplayOrder < defs[j].DisplayOrder
		}
		return defs[i].ID < defs[j].ID
	})
	return defs
}

// Get looks up one definition.
func (r *ParameterRegistry) Get(id string) (models.ParameterDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// Upsert creates or replaces a definition. Defaults are normalised to the
// declared type so later coercion stays consistent.
func (r *ParameterRegistry) Upsert(def models.ParameterDefinition) error {
	if def.ID == "" {
		return errors.New("parameter id is required")
	}
	if def.Type == "" {
		def.Type = "number"
	}
	if def.Default != nil {
		switch def.Type {
		case "number":
			def.Default = cast.ToFloat64(def.Default)
		case "boolean":
			def.Default = cast.ToBool(def.Default)
		case "string":
			def.Default = cast.ToString(def.Default)
		}
	}
	if len(def.ScannerTypes) == 0 {
		def.ScannerTypes = []string{models.ScannerTypeAll}
	}
	def.UpdatedAt = time.Now().UTC()

	r.mu.Lock()
	r.defs[def.ID] = def
	r.mu.Unlock()
	return nil
}

// Delete removes a definition, reporting whether it existed.
func (r *ParameterRegistry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[id]; !ok {
		return false
	}
	delete(r.defs, id)
	return true
}

// defaultParameters is the static seed applied at construction time.
func defaultParameters() []models.ParameterDefinition {
	now := time.Now().UTC()
	return []models.ParameterDefinition{
		{ID: "slope5d_min", Label: "5-Day Slope Min", Group: "trend", Scope: "scanner", Type: "number", Default: 1.0, ScannerTypes: []string{"backside_momentum", "high_vol_breakout"}, DisplayOrder: 10, UpdatedAt: now},
		{ID: "atr_mult", Label: "ATR Multiple", Group: "volatility", Scope: "scanner", Type: "number", Default: 1.0, ScannerTypes: []string{"backside_momentum"}, DisplayOrder: 20, UpdatedAt: now},
		{ID: "gap_min", Label: "Gap % Min", Group: "gap", Scope: "scanner", Type: "number", Default: 2.0, ScannerTypes: []string{"gap_and_go"}, DisplayOrder: 30, UpdatedAt: now},
		{ID: "volume_min", Label: "Volume Floor", Group: "liquidity", Scope: "filter", Type: "number", Default: 500000.0, ScannerTypes: []string{models.ScannerTypeAll}, DisplayOrder: 40, UpdatedAt: now},
		{ID: "ema_fast", Label: "Fast EMA Length", Group: "trend", Scope: "scanner", Type: "number", Default: 9.0, ScannerTypes: []string{"ema_pullback"}, DisplayOrder: 50, UpdatedAt: now},
		{ID: "ema_slow", Label: "Slow EMA Length", Group: "trend", Scope: "scanner", Type: "number", Default: 20.0, ScannerTypes: []string{"ema_pullback"}, DisplayOrder: 60, UpdatedAt: now},
		{ID: "require_premarket", Label: "Require Premarket Volume", Group: "gap", Scope: "scanner", Type: "boolean", Default: true, ScannerTypes: []string{"gap_and_go"}, DisplayOrder: 70, UpdatedAt: now},
	}
}
