// internal/status/tracker.go
package status

import (
	"errors"
	"sync"

	"github.com/goburrow/modbus"
)

// Tracker owns the Snapshot of one device and applies transitions.
// Every method reports whether the snapshot changed.
type Tracker struct {
	mu   sync.Mutex
	snap Snapshot
}

// NewTracker starts in HealthUnknown.
func NewTracker() *Tracker {
	return &Tracker{snap: Snapshot{Health: HealthUnknown}}
}

// Snapshot returns a copy of the current state.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap
}

// Observe applies the outcome of one scan cycle.
// nil resets to OK; an error moves to Stale and records its code.
// A Disabled device stays Disabled.
func (t *Tracker) Observe(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Health == HealthDisabled {
		return false
	}

	prev := t.snap
	if err == nil {
		// Recovery / OK
		t.snap = Snapshot{Health: HealthOK}
	} else {
		t.snap.Health = HealthStale
		t.snap.LastErrorCode = ErrorCode(err)
		// NOTE: seconds_in_error increments on Tick only.
	}
	return t.snap != prev
}

// Disable marks the device as having no live connection. Terminal.
func (t *Tracker) Disable(err error) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev := t.snap
	t.snap.Health = HealthDisabled
	if err != nil {
		t.snap.LastErrorCode = ErrorCode(err)
	}
	return t.snap != prev
}

// Tick advances seconds-in-error at 1 Hz while not OK. It never wraps.
func (t *Tracker) Tick() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.snap.Health == HealthOK || t.snap.Health == HealthUnknown {
		return false
	}
	if t.snap.SecondsInError >= SecondsInErrorMax {
		return false
	}
	t.snap.SecondsInError++
	return true
}

// ErrorCode extracts a best-effort uint16 code from an error without assuming concrete types.
// If the error does not expose a code, returns 1 (generic error).
func ErrorCode(err error) uint16 {
	if err == nil {
		return 0
	}

	// Modbus exception responses carry the device's own code.
	var me *modbus.ModbusError
	if errors.As(err, &me) {
		return uint16(me.ExceptionCode)
	}

	type coder interface{ Code() uint16 }
	var c coder
	if errors.As(err, &c) {
		return c.Code()
	}

	return 1
}
