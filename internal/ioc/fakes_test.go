// internal/ioc/fakes_test.go
package ioc

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/tc-ioc/internal/config"
	"github.com/tamzrod/tc-ioc/internal/controller"
	"github.com/tamzrod/tc-ioc/internal/pv"
)

// ---- fake transport ----

type writeCall struct {
	addr  uint16
	value uint16
}

type fakeTransport struct {
	mu       sync.Mutex
	regs     map[uint16]uint16
	readErr  error
	writeErr error

	calls  int
	writes []writeCall
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{regs: map[uint16]uint16{}}
}

func (f *fakeTransport) ReadHoldingRegisters(addr, qty uint16) ([]uint16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.readErr != nil {
		return nil, f.readErr
	}
	out := make([]uint16, qty)
	for i := range out {
		out[i] = f.regs[addr+uint16(i)]
	}
	return out, nil
}

func (f *fakeTransport) WriteRegister(addr, value uint16) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.writes = append(f.writes, writeCall{addr: addr, value: value})
	if f.writeErr != nil {
		return f.writeErr
	}
	f.regs[addr] = value
	return nil
}

func (f *fakeTransport) Close() error { return nil }

func (f *fakeTransport) set(addr, value uint16) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.regs[addr] = value
}

func (f *fakeTransport) failReads(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.readErr = err
}

func (f *fakeTransport) failWrites(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeErr = err
}

func (f *fakeTransport) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeTransport) writeLog() []writeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]writeCall(nil), f.writes...)
}

// ---- fake gateway: slave id -> transport; missing slave fails to connect ----

type fakeGateway struct {
	mu      sync.Mutex
	devices map[uint8]*fakeTransport
	dials   map[uint8]int
}

func newFakeGateway(slaves ...uint8) *fakeGateway {
	g := &fakeGateway{devices: map[uint8]*fakeTransport{}, dials: map[uint8]int{}}
	for _, s := range slaves {
		g.devices[s] = newFakeTransport()
	}
	return g
}

func (g *fakeGateway) dial(addr controller.Address, _ controller.Options) (controller.Transport, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.dials[addr.SlaveID]++
	tr, ok := g.devices[addr.SlaveID]
	if !ok {
		return nil, errors.New("dial tcp: connect: connection refused")
	}
	return tr, nil
}

// ---- log capture ----

type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

// entries decodes every JSON log line.
func (b *logBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(b.buf.String()), "\n") {
		if line == "" {
			continue
		}
		var e map[string]any
		if err := json.Unmarshal([]byte(line), &e); err != nil {
			t.Fatalf("bad log line %q: %v", line, err)
		}
		out = append(out, e)
	}
	return out
}

// has reports whether an entry at level for device contains msg.
func (b *logBuffer) has(t *testing.T, level, device, msg string) bool {
	t.Helper()
	for _, e := range b.entries(t) {
		m, _ := e["message"].(string)
		if e["level"] == level && e["device"] == device && strings.Contains(m, msg) {
			return true
		}
	}
	return false
}

// ---- group under test ----

// threeDevices configures t1..t3 as slaves 1..3 on one gateway.
func threeDevices() cfg.IOCConfig {
	c := cfg.IOCConfig{Prefix: "temp:", ScanIntervalMs: 10}
	for i, name := range []string{"t1", "t2", "t3"} {
		c.Devices = append(c.Devices, cfg.DeviceConfig{
			Name:    name,
			Host:    "192.168.0.4",
			Port:    502,
			SlaveID: uint8(i + 1),
			Framing: cfg.FramingRTU,
		})
	}
	return c
}

func newGroup(t *testing.T, gw *fakeGateway) (*Group, *logBuffer) {
	t.Helper()
	logs := &logBuffer{}
	g, err := New(threeDevices(), gw.dial, pv.NewDatabase(), zerolog.New(logs).Level(zerolog.TraceLevel), nil)
	if err != nil {
		t.Fatalf("New err=%v", err)
	}
	t.Cleanup(g.Close)
	return g, logs
}

func value(t *testing.T, g *Group, device, field string) float64 {
	t.Helper()
	p, ok := g.Database().Get(g.PVName(device, field))
	if !ok {
		t.Fatalf("pv %s not registered", g.PVName(device, field))
	}
	v, _ := p.Value()
	return v
}

var errEOF = io.EOF

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }
