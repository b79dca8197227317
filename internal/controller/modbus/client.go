// internal/controller/modbus/client.go
package modbus

import (
	"errors"
	"fmt"
	"io"

	"github.com/goburrow/modbus"

	"github.com/tamzrod/tc-ioc/internal/config"
	"github.com/tamzrod/tc-ioc/internal/controller"
)

// Client implements controller.Transport on top of goburrow/modbus.
// One Client owns one gateway connection bound to one slave id.
type Client struct {
	client modbus.Client
	closer io.Closer
}

// Dial opens a gateway connection using the configured framing.
// It matches controller.Dialer. ONE attempt, no retry.
func Dial(addr controller.Address, opts controller.Options) (controller.Transport, error) {
	if addr.Host == "" {
		return nil, errors.New("modbus client: host required")
	}

	switch opts.Framing {
	case config.FramingTCP:
		return dialTCP(addr, opts)
	case "", config.FramingRTU:
		return dialRTU(addr, opts)
	default:
		return nil, fmt.Errorf("modbus client: unknown framing %q", opts.Framing)
	}
}

// dialTCP uses MBAP framing (gateway in Modbus TCP mode).
func dialTCP(addr controller.Address, opts controller.Options) (*Client, error) {
	h := modbus.NewTCPClientHandler(addr.Endpoint())
	h.SlaveId = addr.SlaveID

	// goburrow uses Timeout for both the dial and each transaction.
	h.Timeout = opts.ConnectTimeout
	if err := h.Connect(); err != nil {
		_ = h.Close()
		return nil, err
	}
	h.Timeout = opts.RequestTimeout

	return &Client{
		client: modbus.NewClient(h),
		closer: h,
	}, nil
}

// dialRTU sends RTU frames (slave + PDU + CRC) over a raw TCP stream
// (gateway in transparent mode).
func dialRTU(addr controller.Address, opts controller.Options) (*Client, error) {
	tr, err := dialRTUOverTCP(addr.Endpoint(), opts.ConnectTimeout, opts.RequestTimeout)
	if err != nil {
		return nil, err
	}

	// RTUClientHandler carries goburrow's RTU packager (CRC, slave id checks).
	// Its serial transporter is never connected; frames go through tr.
	packager := modbus.NewRTUClientHandler("")
	packager.SlaveId = addr.SlaveID

	return &Client{
		client: modbus.NewClient2(packager, tr),
		closer: tr,
	}, nil
}

// Close closes the gateway connection.
func (c *Client) Close() error {
	if c == nil || c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// ---- controller.Transport ----

func (c *Client) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	raw, err := c.client.ReadHoldingRegisters(addr, qty)
	if err != nil {
		return nil, err
	}
	if len(raw) < 2*int(qty) {
		return nil, fmt.Errorf("modbus: short read-registers payload: got %d bytes want %d", len(raw), 2*int(qty))
	}
	return unpackRegisters(raw), nil
}

func (c *Client) WriteRegister(addr, value uint16) error {
	// goburrow verifies the echoed address and value.
	_, err := c.client.WriteSingleRegister(addr, value)
	return err
}

// ---- helpers (pure geometry) ----

func unpackRegisters(data []byte) []uint16 {
	n := len(data) / 2
	out := make([]uint16, n)
	for i := 0; i < n; i++ {
		out[i] = uint16(data[2*i])<<8 | uint16(data[2*i+1])
	}
	return out
}
