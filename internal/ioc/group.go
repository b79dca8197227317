// internal/ioc/group.go
package ioc

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/tc-ioc/internal/controller"
	"github.com/tamzrod/tc-ioc/internal/metrics"
	"github.com/tamzrod/tc-ioc/internal/pv"
	"github.com/tamzrod/tc-ioc/internal/status"
)

// Group is the process-variable group: one controller and one PV set per device.
// The device set is fixed after New; only controller liveness changes.
//
// At startup New seeds each connected device's writable setpoint PV from the
// controller's setpoint register, so it reads the device value instead of 0.
// After that the setpoint PV changes only through PutSetpoint or a PV put.
type Group struct {
	prefix   string
	interval time.Duration

	db  *pv.Database
	log zerolog.Logger
	rec metrics.Recorder

	devices map[string]*device
	order   []string
}

// PVName builds the full PV name for one device field.
func (g *Group) PVName(deviceName, field string) string {
	return g.prefix + deviceName + ":" + field
}

// Names returns device names in configuration order.
func (g *Group) Names() []string {
	return append([]string(nil), g.order...)
}

// Database returns the PV database the group publishes into.
func (g *Group) Database() *pv.Database { return g.db }

// State reports the controller liveness of one device.
func (g *Group) State(name string) (controller.State, error) {
	d, err := g.lookup(name)
	if err != nil {
		return controller.StateFailed, err
	}
	return d.ctl.State(), nil
}

// Scan runs one scan cycle for one device and publishes the result.
// Device failures are logged and swallowed; only an unknown name is an error.
func (g *Group) Scan(name string) error {
	d, err := g.lookup(name)
	if err != nil {
		return err
	}
	d.apply(d.poller.PollOnce())
	return nil
}

// PutSetpoint handles an external setpoint write.
// The PV changes only if the device write succeeded.
func (g *Group) PutSetpoint(ctx context.Context, name string, v float64) error {
	d, err := g.lookup(name)
	if err != nil {
		return err
	}
	return d.setpoint.Put(ctx, v)
}

// PutRunMode handles an external run-mode write. Only 0 and 1 are accepted.
func (g *Group) PutRunMode(ctx context.Context, name string, v float64) error {
	d, err := g.lookup(name)
	if err != nil {
		return err
	}
	return d.runMode.Put(ctx, v)
}

// Health returns the per-device status in configuration order.
func (g *Group) Health() []status.DeviceStatus {
	out := make([]status.DeviceStatus, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, g.devices[name].deviceStatus())
	}
	return out
}

// Close releases every controller connection.
func (g *Group) Close() {
	for _, d := range g.devices {
		if err := d.ctl.Close(); err != nil {
			d.log.Warn().Err(err).Msg("close failed")
		}
	}
}

func (g *Group) lookup(name string) (*device, error) {
	d, ok := g.devices[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
	return d, nil
}
