// internal/ioc/errors.go
package ioc

import (
	"errors"
	"fmt"
)

// ErrUnknownDevice is returned for device names that are not configured.
var ErrUnknownDevice = errors.New("ioc: unknown device")

// ValidationError rejects a write before any device I/O.
type ValidationError struct {
	Device string
	Field  string
	Value  float64
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("ioc: invalid %s for device %s: %v (%s)", e.Field, e.Device, e.Value, e.Reason)
}
