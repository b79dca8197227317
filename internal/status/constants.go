// internal/status/constants.go
package status

// Device health codes.
// These values are published as-is on the status PV and MUST NOT be renumbered.

// HealthUnknown represents an unknown or boot state.
const HealthUnknown uint16 = 0

// HealthOK represents a healthy device.
const HealthOK uint16 = 1

// HealthError represents a device error state.
const HealthError uint16 = 2

// HealthStale represents a stale data state: connected, but the last scan failed.
const HealthStale uint16 = 3

// HealthDisabled represents a device without a live connection.
const HealthDisabled uint16 = 4

// SecondsInErrorMax is the saturation point of the seconds-in-error counter.
const SecondsInErrorMax uint16 = 65535

// HealthName returns a short label for a health code.
func HealthName(h uint16) string {
	switch h {
	case HealthUnknown:
		return "unknown"
	case HealthOK:
		return "ok"
	case HealthError:
		return "error"
	case HealthStale:
		return "stale"
	case HealthDisabled:
		return "disabled"
	default:
		return "invalid"
	}
}
