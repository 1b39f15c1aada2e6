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

	"github.com/edgedesk/scanforge/internal/models"
	"github.com/edgedesk/scanforge/internal/store"
)

// ColumnRegistry holds result-column definitions keyed by id.
type ColumnRegistry struct {
	mu     sync.RWMutex
	logger *slog.Logger
	store  store.Provider
	defs   map[string]models.ColumnDefinition
}

type columnSnapshot struct {
	Version int                       `json:"version"`
	Columns []models.ColumnDefinition `json:"columns"`
}

// NewColumnRegistry seeds the registry with static defaults.
func NewColumnRegistry(logger *slog.Logger, provider store.Provider) *ColumnRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		provider = store.NoopProvider{}
	}
	r := &ColumnRegistry{
		logger: logger,
		store:  provider,
		defs:   make(map[string]models.ColumnDefinition),
	}
	for _, def := range defaultColumns() {
		r.defs[def.ID] = def
	}
	return r
}

// Load overlays the persisted snapshot onto the seeded defaults.
func (r *ColumnRegistry) Load(ctx context.Context) error {
	data, err := r.store.Get(ctx, columnsKey)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("load columns: %w", err)
	}

	var snapshot columnSnapshot
	if err := json.Unmarshal(data, &snapshot); err != nil {
		r.logger.Warn("discarding corrupt column snapshot", slog.Any("error", err))
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, def := range snapshot.Columns {
		if def.ID == "" {
			continue
		}
		r.defs[def.ID] = def
	}
	return nil
}

// Flush writes the current definitions through the store provider.
func (r *ColumnRegistry) Flush(ctx context.Context) error {
	r.mu.RLock()
	snapshot := columnSnapshot{Version: snapshotVersion, Columns: r.listLocked("")}
	r.mu.RUnlock()

	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	if err := r.store.Set(ctx, columnsKey, data, 0); err != nil {
		return fmt.Errorf("persist columns: %w", err)
	}
	return nil
}

// List returns columns applying to the given scanner type, sorted by display
// order then id.
func (r *ColumnRegistry) List(scannerType string) []models.ColumnDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.listLocked(scannerType)
}

func (r *ColumnRegistry) listLocked(scannerType string) []models.ColumnDefinition {
	defs := make([]models.ColumnDefinition, 0, len(r.defs))
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
func (r *ColumnRegistry) Get(id string) (models.ColumnDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// Upsert creates or replaces a definition.
func (r *ColumnRegistry) Upsert(def models.ColumnDefinition) error {
	if def.ID == "" {
		return errors.New("column id is required")
	}
	if def.Type == "" {
		def.Type = "string"
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
func (r *ColumnRegistry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.defs[id]; !ok {
		return false
	}
	delete(r.defs, id)
	return true
}

func defaultColumns() []models.ColumnDefinition {
	now := time.Now().UTC()
	return []models.ColumnDefinition{
		{ID: "symbol", Label: "Symbol", Type: "string", Visible: true, ScannerTypes: []string{models.ScannerTypeAll}, DisplayOrder: 10, UpdatedAt: now},
		{ID: "date", Label: "Date", Type: "date", Format: "2006-01-02", Visible: true, ScannerTypes: []string{models.ScannerTypeAll}, DisplayOrder: 20, UpdatedAt: now},
		{ID: "close", Label: "Close", Type: "number", Format: "%.2f", Visible: true, ScannerTypes: []string{models.ScannerTypeAll}, DisplayOrder: 30, UpdatedAt: now},
		{ID: "volume", Label: "Volume", Type: "number", Format: "%d", Visible: true, ScannerTypes: []string{models.ScannerTypeAll}, DisplayOrder: 40, UpdatedAt: now},
		{ID: "gap_pct", Label: "Gap %", Type: "number", Format: "%.2f", Visible: true, ScannerTypes: []string{"gap_and_go"}, DisplayOrder: 50, UpdatedAt: now},
		{ID: "atr_ratio", Label: "ATR Ratio", Type: "number", Format: "%.2f", Visible: false, ScannerTypes: []string{"backside_momentum", "high_vol_breakout"}, DisplayOrder: 60, UpdatedAt: now},
		{ID: "slope5d", Label: "5-Day Slope", Type: "number", Format: "%.2f", Visible: false, ScannerTypes: []string{"backside_momentum"}, DisplayOrder: 70, UpdatedAt: now},
	}
}
