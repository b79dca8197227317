// internal/poller/types.go
package poller

import "time"

// Reading is the raw result of a single register read.
type Reading struct {
	Raw uint16
	Err error
}

// PollResult is a snapshot produced by one scan cycle of one device.
// Readings are independent: one failing read does not discard the other.
type PollResult struct {
	Device string
	At     time.Time

	Temperature Reading
	Setpoint    Reading

	// Err is the first failure of the cycle; nil means every read succeeded.
	Err error
}

// Skipped reports whether the cycle did no I/O because the device is not connected.
func (r PollResult) Skipped() bool {
	return r.Err != nil && isNotConnected(r.Err)
}
