// internal/status/snapshot.go
package status

// Snapshot is the current health of one device.
// It contains no logic and no memory of the past beyond current state.
type Snapshot struct {
	Health         uint16
	LastErrorCode  uint16
	SecondsInError uint16
}

// DeviceStatus is the per-device view exported to health endpoints.
type DeviceStatus struct {
	Device    string   `json:"device"`
	Connected bool     `json:"connected"`
	Health    string   `json:"health"`
	Snapshot  Snapshot `json:"-"`

	LastErrorCode  uint16 `json:"last_error_code"`
	SecondsInError uint16 `json:"seconds_in_error"`
}

// NewDeviceStatus flattens a snapshot for export.
func NewDeviceStatus(device string, connected bool, s Snapshot) DeviceStatus {
	return DeviceStatus{
		Device:         device,
		Connected:      connected,
		Health:         HealthName(s.Health),
		Snapshot:       s,
		LastErrorCode:  s.LastErrorCode,
		SecondsInError: s.SecondsInError,
	}
}
