// internal/controller/controller.go
package controller

import (
	"errors"
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// Transport is the register-oriented request/response link to one device.
// The slave id is bound when the transport is dialed.
type Transport interface {
	ReadHoldingRegisters(addr, qty uint16) ([]uint16, error)
	WriteRegister(addr, value uint16) error
	Close() error
}

// Dialer opens a Transport. ONE attempt per call, bounded by opts.ConnectTimeout.
// A failed dial must not leave an open handle behind.
type Dialer func(addr Address, opts Options) (Transport, error)

// State is the liveness of a controller connection.
type State int

const (
	StateConnected State = iota
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Controller is the client for one temperature controller.
// It serializes its own transport; callers need no locking.
type Controller struct {
	addr Address
	log  zerolog.Logger

	mu sync.Mutex
	tr Transport // nil once Failed
}

// Connect opens the transport for addr.
// On failure it returns a Failed sentinel together with a *ConnectionError;
// the sentinel rejects every operation without attempting I/O.
func Connect(addr Address, opts Options, dial Dialer, log zerolog.Logger) (*Controller, error) {
	c := &Controller{addr: addr, log: log}

	if dial == nil {
		return c, &ConnectionError{Addr: addr, Err: errors.New("no dialer")}
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}

	tr, err := dial(addr, opts)
	if err != nil {
		return c, &ConnectionError{Addr: addr, Err: err}
	}
	c.tr = tr

	log.Info().
		Str("endpoint", addr.Endpoint()).
		Str("framing", opts.Framing).
		Msg("connected to temperature controller")

	return c, nil
}

// Address returns the immutable device address.
func (c *Controller) Address() Address { return c.addr }

// State reports the current liveness.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tr == nil {
		return StateFailed
	}
	return StateConnected
}

// Failed is shorthand for State() == StateFailed.
func (c *Controller) Failed() bool { return c.State() == StateFailed }

// ReadTemperature returns the raw temperature register (tenths of a degree).
// Scaling is left to the caller.
func (c *Controller) ReadTemperature() (uint16, error) {
	return c.readRegister("read temperature", RegTemperature)
}

// ReadSetpoint returns the raw setpoint register.
func (c *Controller) ReadSetpoint() (uint16, error) {
	return c.readRegister("read setpoint", RegSetpoint)
}

// WriteSetpoint writes the integer-truncated value to the setpoint register.
func (c *Controller) WriteSetpoint(value float64) error {
	v, err := c.writeRegister("write setpoint", RegSetpoint, value)
	if err != nil {
		return err
	}
	c.log.Info().
		Uint16("value", v).
		Msgf("temperature controller id %d has been set to %d degree C", c.addr.SlaveID, v)
	return nil
}

// SetRunMode writes the integer-truncated mode to the run-mode register.
// The range is not checked here; callers validate.
func (c *Controller) SetRunMode(mode float64) error {
	v, err := c.writeRegister("set run mode", RegRunMode, mode)
	if err != nil {
		return err
	}
	c.log.Info().
		Uint16("mode", v).
		Msgf("mode of temperature controller %d has been changed to %d", c.addr.SlaveID, v)
	return nil
}

// Close releases the transport. The controller is Failed afterwards.
func (c *Controller) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tr == nil {
		return nil
	}
	err := c.tr.Close()
	c.tr = nil
	return err
}

// ---- internal ----

func (c *Controller) readRegister(op string, reg uint16) (uint16, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tr == nil {
		return 0, c.fail(op, reg, ErrNotConnected)
	}

	regs, err := c.tr.ReadHoldingRegisters(reg, 1)
	if err != nil {
		c.dropIfLost(err)
		return 0, c.fail(op, reg, err)
	}
	if len(regs) == 0 {
		return 0, c.fail(op, reg, errShortRead)
	}
	return regs[0], nil
}

func (c *Controller) writeRegister(op string, reg uint16, value float64) (uint16, error) {
	v, ok := truncate(value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.tr == nil {
		return 0, c.fail(op, reg, ErrNotConnected)
	}
	if !ok {
		return 0, c.fail(op, reg, ErrValueRange)
	}

	if err := c.tr.WriteRegister(reg, v); err != nil {
		c.dropIfLost(err)
		return 0, c.fail(op, reg, err)
	}
	return v, nil
}

func (c *Controller) fail(op string, reg uint16, err error) error {
	return &TransportError{Op: op, SlaveID: c.addr.SlaveID, Register: reg, Err: err}
}

// dropIfLost moves the controller to Failed when the link is gone.
// No reconnect: a Failed controller stays Failed for the process lifetime.
// Caller holds c.mu.
func (c *Controller) dropIfLost(err error) {
	if !connectionLost(err) {
		return
	}
	_ = c.tr.Close()
	c.tr = nil
	c.log.Error().Err(err).Msg("connection lost; controller marked failed")
}

// truncate converts v to a register value, truncating toward zero.
func truncate(v float64) (uint16, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	t := math.Trunc(v)
	if t < 0 || t > math.MaxUint16 {
		return 0, false
	}
	return uint16(t), true
}
