package permissions

import (
	"sync"

	"github.com/cadencehr/cadence/internal/authz"
)

// Buffer holds unpersisted matrix edits keyed by (tenant, target). Edits
// to the same (module, action) key coalesce last-write-wins in staging
// order. Nothing in the buffer is visible to resolution until a commit
// succeeds; discarding it loses only local edits, never persisted rows.
type Buffer struct {
	mu     sync.Mutex
	staged map[string]map[authz.GrantKey]bool
}

// NewBuffer constructs an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{staged: make(map[string]map[authz.GrantKey]bool)}
}

// Stage upserts one edit for the tenant's target.
func (b *Buffer) Stage(tenantID int64, target Target, module authz.Module, action authz.Action, granted bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := target.scopedKey(tenantID)
	entries, ok := b.staged[key]
	if !ok {
		entries = make(map[authz.GrantKey]bool)
		b.staged[key] = entries
	}
	entries[authz.GrantKey{Module: module, Action: action}] = granted
}

// StageAllInModule stages one edit per supported action of the module,
// backing the tri-state select-all control in the matrix editor.
func (b *Buffer) StageAllInModule(tenantID int64, target Target, module authz.Module, actions []authz.Action, granted bool) {
	for _, action := range actions {
		b.Stage(tenantID, target, module, action, granted)
	}
}

// Staged returns a copy of the target's pending edits.
func (b *Buffer) Staged(tenantID int64, target Target) map[authz.GrantKey]bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	entries := b.staged[target.scopedKey(tenantID)]
	out := make(map[authz.GrantKey]bool, len(entries))
	for key, granted := range entries {
		out[key] = granted
	}
	return out
}

// Len reports how many edits are pending for the target.
func (b *Buffer) Len(tenantID int64, target Target) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.staged[target.scopedKey(tenantID)])
}

// Clear drops the target's pending edits.
func (b *Buffer) Clear(tenantID int64, target Target) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.staged, target.scopedKey(tenantID))
}

// Changes renders the target's pending edits as an ordered change list,
// following catalog order so batch writes are deterministic.
func (b *Buffer) Changes(tenantID int64, target Target, catalog authz.Catalog) []Change {
	staged := b.Staged(tenantID, target)
	if len(staged) == 0 {
		return nil
	}
	changes := make([]Change, 0, len(staged))
	for _, module := range authz.Modules() {
		for _, action := range catalog.ActionsFor(module) {
			key := authz.GrantKey{Module: module, Action: action}
			if granted, ok := staged[key]; ok {
				changes = append(changes, Change{Module: module, Action: action, Granted: granted})
			}
		}
	}
	return changes
}
