// internal/controller/address.go
package controller

import (
	"net"
	"strconv"
	"time"
)

// Fixed register map of the temperature controller (holding registers).
// These values are device-defined and MUST NOT be configurable.
const (
	RegSetpoint    uint16 = 0x00
	RegTemperature uint16 = 0x01
	RegRunMode     uint16 = 0x54
)

// DefaultConnectTimeout bounds connection establishment when Options leaves it unset.
const DefaultConnectTimeout = 10 * time.Second

// Address identifies one controller reachable over one gateway connection.
type Address struct {
	Host    string
	Port    int
	SlaveID uint8
}

// Endpoint returns the gateway address in host:port form.
func (a Address) Endpoint() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(a.Port))
}

// Options tunes transport construction.
type Options struct {
	// Framing selects the wire format on the gateway link ("rtu" or "tcp").
	Framing string

	ConnectTimeout time.Duration
	RequestTimeout time.Duration
}
