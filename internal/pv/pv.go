// internal/pv/pv.go
package pv

import (
	"context"
	"errors"
	"math"
	"sync"
	"time"
)

var (
	ErrReadOnly = errors.New("pv: read-only")
	ErrNotFound = errors.New("pv: not found")
)

// Kind is the value type of a process variable.
type Kind int

const (
	KindFloat Kind = iota
	KindInt
)

func (k Kind) String() string {
	switch k {
	case KindFloat:
		return "float"
	case KindInt:
		return "int"
	default:
		return "unknown"
	}
}

// Update is delivered to subscribers on every Set.
type Update struct {
	Name      string
	Value     float64
	Timestamp time.Time
}

// Putter performs the side effect of an external write.
// The value is committed only if it returns nil.
type Putter func(ctx context.Context, value float64) error

// Spec declares a process variable.
type Spec struct {
	Name     string
	Kind     Kind
	ReadOnly bool
	Units    string
	Doc      string
	Initial  float64
}

// PV is a named, typed, externally observable value.
type PV struct {
	spec Spec

	// putMu serializes external writes so the committed value
	// always matches the last successful device write.
	putMu  sync.Mutex
	putter Putter

	mu     sync.RWMutex
	value  float64
	ts     time.Time
	subs   map[int]chan Update
	nextID int
}

// New creates a PV holding spec.Initial.
func New(spec Spec) *PV {
	p := &PV{
		spec: spec,
		subs: make(map[int]chan Update),
	}
	p.value = p.normalize(spec.Initial)
	p.ts = time.Now()
	return p
}

func (p *PV) Name() string   { return p.spec.Name }
func (p *PV) Kind() Kind     { return p.spec.Kind }
func (p *PV) ReadOnly() bool { return p.spec.ReadOnly }
func (p *PV) Units() string  { return p.spec.Units }
func (p *PV) Doc() string    { return p.spec.Doc }

// Value returns the stored value and the time it was last set.
func (p *PV) Value() (float64, time.Time) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.value, p.ts
}

// Set stores v and notifies subscribers.
// It bypasses the putter; scans publish through here.
func (p *PV) Set(v float64) {
	v = p.normalize(v)
	now := time.Now()

	p.mu.Lock()
	p.value = v
	p.ts = now
	u := Update{Name: p.spec.Name, Value: v, Timestamp: now}
	for _, ch := range p.subs {
		offer(ch, u)
	}
	p.mu.Unlock()
}

// SetPutter installs the write side effect.
func (p *PV) SetPutter(fn Putter) {
	p.putMu.Lock()
	defer p.putMu.Unlock()
	p.putter = fn
}

// Put handles an external write request.
// Read-only PVs reject it. With a putter installed the value is stored
// only after the putter succeeds; on failure the PV is left unchanged.
func (p *PV) Put(ctx context.Context, v float64) error {
	if p.spec.ReadOnly {
		return ErrReadOnly
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return errors.New("pv: value must be finite")
	}

	p.putMu.Lock()
	defer p.putMu.Unlock()

	if p.putter != nil {
		if err := p.putter(ctx, v); err != nil {
			return err
		}
	}
	p.Set(v)
	return nil
}

// Subscribe returns a channel of updates and a cancel func.
// Slow subscribers lose intermediate updates but always see the latest.
func (p *PV) Subscribe(buf int) (<-chan Update, func()) {
	if buf < 1 {
		buf = 1
	}
	ch := make(chan Update, buf)

	p.mu.Lock()
	id := p.nextID
	p.nextID++
	p.subs[id] = ch
	p.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.subs, id)
			p.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (p *PV) normalize(v float64) float64 {
	if p.spec.Kind == KindInt {
		return math.Trunc(v)
	}
	return v
}

// offer delivers u without blocking, evicting the oldest queued update if full.
func offer(ch chan Update, u Update) {
	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
