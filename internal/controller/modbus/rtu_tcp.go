// internal/controller/modbus/rtu_tcp.go
package modbus

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

const (
	rtuMaxFrame   = 256
	drainDeadline = 20 * time.Millisecond
)

// rtuOverTCP implements goburrow's Transporter for RTU frames on a TCP stream.
// There is no length header on the wire, so the response length is derived
// from the function code.
type rtuOverTCP struct {
	mu      sync.Mutex
	conn    net.Conn
	timeout time.Duration

	// dirty is set after a failed exchange; a late reply may still be in flight.
	dirty bool
}

func dialRTUOverTCP(endpoint string, connectTimeout, requestTimeout time.Duration) (*rtuOverTCP, error) {
	conn, err := net.DialTimeout("tcp", endpoint, connectTimeout)
	if err != nil {
		return nil, err
	}
	return &rtuOverTCP{conn: conn, timeout: requestTimeout}, nil
}

// Send writes one request ADU and reads exactly one response ADU.
func (t *rtuOverTCP) Send(aduRequest []byte) ([]byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil, net.ErrClosed
	}

	if t.dirty {
		t.drain()
	}

	var deadline time.Time
	if t.timeout > 0 {
		deadline = time.Now().Add(t.timeout)
	}
	if err := t.conn.SetDeadline(deadline); err != nil {
		return nil, err
	}

	if _, err := t.conn.Write(aduRequest); err != nil {
		t.dirty = true
		return nil, err
	}

	resp, err := readRTUFrame(t.conn)
	if err != nil {
		t.dirty = true
		return nil, err
	}
	t.dirty = false
	return resp, nil
}

func (t *rtuOverTCP) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// drain discards bytes left over from an earlier timed-out exchange.
func (t *rtuOverTCP) drain() {
	var buf [rtuMaxFrame]byte
	for {
		_ = t.conn.SetReadDeadline(time.Now().Add(drainDeadline))
		if _, err := t.conn.Read(buf[:]); err != nil {
			break
		}
	}
	t.dirty = false
}

// readRTUFrame reads one RTU response:
//
//	slave(1) fc(1) body(...) crc(2)
//
// Body length:
//
//	exception (fc|0x80):   code(1)
//	fc 1,2,3,4:            byteCount(1) + byteCount
//	fc 5,6,15,16:          address(2) + value/quantity(2)
func readRTUFrame(r io.Reader) ([]byte, error) {
	frame := make([]byte, 2, rtuMaxFrame)
	if _, err := io.ReadFull(r, frame); err != nil {
		return nil, err
	}

	fc := frame[1]
	var rest int

	switch {
	case fc&0x80 != 0:
		rest = 1 + 2
	case fc == 1 || fc == 2 || fc == 3 || fc == 4:
		var count [1]byte
		if _, err := io.ReadFull(r, count[:]); err != nil {
			return nil, err
		}
		frame = append(frame, count[0])
		rest = int(count[0]) + 2
	case fc == 5 || fc == 6 || fc == 15 || fc == 16:
		rest = 4 + 2
	default:
		return nil, fmt.Errorf("modbus rtu: unsupported function code %d in response", fc)
	}

	if len(frame)+rest > rtuMaxFrame {
		return nil, errors.New("modbus rtu: response exceeds maximum frame size")
	}

	body := make([]byte, rest)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, err
	}
	return append(frame, body...), nil
}
