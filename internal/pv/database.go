// internal/pv/database.go
package pv

import (
	"context"
	"fmt"
	"sync"
)

// Database is the set of PVs served by the process.
// Names keep insertion order.
type Database struct {
	mu    sync.RWMutex
	pvs   map[string]*PV
	order []string
}

func NewDatabase() *Database {
	return &Database{pvs: make(map[string]*PV)}
}

// Add registers p. Names must be unique.
func (db *Database) Add(p *PV) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if _, exists := db.pvs[p.Name()]; exists {
		return fmt.Errorf("pv: duplicate name %q", p.Name())
	}
	db.pvs[p.Name()] = p
	db.order = append(db.order, p.Name())
	return nil
}

// Get looks up a PV by name.
func (db *Database) Get(name string) (*PV, bool) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	p, ok := db.pvs[name]
	return p, ok
}

// Names returns all PV names in insertion order.
func (db *Database) Names() []string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return append([]string(nil), db.order...)
}

// Put routes an external write to the named PV.
func (db *Database) Put(ctx context.Context, name string, v float64) error {
	p, ok := db.Get(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return p.Put(ctx, v)
}
