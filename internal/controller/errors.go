// internal/controller/errors.go
package controller

import (
	"errors"
	"fmt"
	"io"
	"net"
	"syscall"
)

var (
	// ErrNotConnected is returned for every operation on a Failed controller.
	// No transport call is made.
	ErrNotConnected = errors.New("controller: not connected")

	// ErrValueRange is returned when a value does not fit a 16-bit register.
	ErrValueRange = errors.New("controller: value out of register range")

	errShortRead = errors.New("controller: empty register read")
)

// ConnectionError reports that a controller was unreachable at startup.
// It is fatal for that device for the lifetime of the process.
type ConnectionError struct {
	Addr Address
	Err  error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("controller: cannot connect to %s (slave %d): %v", e.Addr.Endpoint(), e.Addr.SlaveID, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError reports that a single register transaction failed.
type TransportError struct {
	Op       string
	SlaveID  uint8
	Register uint16
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("controller: %s (slave=%d reg=%d): %v", e.Op, e.SlaveID, e.Register, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// connectionLost reports whether err means the underlying link is gone,
// as opposed to a timeout or a Modbus exception on a live link.
func connectionLost(err error) bool {
	if err == nil {
		return false
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return false
	}
	return errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNABORTED) ||
		errors.Is(err, syscall.EPIPE)
}
