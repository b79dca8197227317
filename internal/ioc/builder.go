// internal/ioc/builder.go
package ioc

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	cfg "github.com/tamzrod/tc-ioc/internal/config"
	"github.com/tamzrod/tc-ioc/internal/controller"
	"github.com/tamzrod/tc-ioc/internal/logging"
	"github.com/tamzrod/tc-ioc/internal/metrics"
	"github.com/tamzrod/tc-ioc/internal/poller"
	"github.com/tamzrod/tc-ioc/internal/pv"
	"github.com/tamzrod/tc-ioc/internal/status"
)

// New connects every configured device and registers its PVs in db.
// A device that cannot be reached is kept as a Failed sentinel; the other
// devices are unaffected. Assumes config has already passed Validate and Normalize.
func New(c cfg.IOCConfig, dial controller.Dialer, db *pv.Database, log zerolog.Logger, rec metrics.Recorder) (*Group, error) {
	if db == nil {
		return nil, errors.New("ioc: pv database required")
	}
	if rec == nil {
		rec = metrics.Nop{}
	}

	prefix := c.Prefix
	if prefix == "" {
		prefix = cfg.DefaultPrefix
	}
	interval := c.ScanInterval()
	if interval <= 0 {
		interval = time.Duration(cfg.DefaultScanIntervalMs) * time.Millisecond
	}

	g := &Group{
		prefix:   prefix,
		interval: interval,
		db:       db,
		log:      log,
		rec:      rec,
		devices:  make(map[string]*device),
	}

	for _, dc := range c.Devices {
		if _, dup := g.devices[dc.Name]; dup {
			g.Close()
			return nil, fmt.Errorf("ioc: duplicate device %q", dc.Name)
		}

		d, err := g.buildDevice(dc, dial)
		if err != nil {
			g.Close()
			return nil, err
		}

		g.devices[dc.Name] = d
		g.order = append(g.order, dc.Name)
	}

	return g, nil
}

func (g *Group) buildDevice(dc cfg.DeviceConfig, dial controller.Dialer) (*device, error) {
	addr := controller.Address{Host: dc.Host, Port: dc.Port, SlaveID: dc.SlaveID}
	opts := controller.Options{
		Framing:        dc.Framing,
		ConnectTimeout: dc.ConnectTimeout(),
		RequestTimeout: dc.RequestTimeout(),
	}
	dlog := logging.ForDevice(g.log, dc.Name, dc.SlaveID)

	// connect: ONE attempt, failure disables this device only
	ctl, connErr := controller.Connect(addr, opts, dial, dlog)
	if connErr != nil {
		dlog.Error().Err(connErr).Msg("controller unavailable; device disabled for process lifetime")
	}

	d := &device{
		name:   dc.Name,
		ctl:    ctl,
		log:    dlog,
		rec:    g.rec,
		status: status.NewTracker(),
	}

	p, err := poller.New(poller.Config{Device: dc.Name, Interval: g.interval}, d)
	if err != nil {
		_ = ctl.Close()
		return nil, err
	}
	d.poller = p

	d.temperature = pv.New(pv.Spec{
		Name: g.PVName(dc.Name, FieldTemperature), Kind: pv.KindFloat, ReadOnly: true,
		Units: "C", Doc: "temperature/PV readout",
	})
	d.setpointRead = pv.New(pv.Spec{
		Name: g.PVName(dc.Name, FieldSetpointRead), Kind: pv.KindFloat, ReadOnly: true,
		Units: "C", Doc: "setpoint read back value",
	})
	d.setpoint = pv.New(pv.Spec{
		Name: g.PVName(dc.Name, FieldSetpoint), Kind: pv.KindFloat,
		Units: "C", Doc: "setpoint/SV value",
	})
	d.runMode = pv.New(pv.Spec{
		Name: g.PVName(dc.Name, FieldRunMode), Kind: pv.KindInt,
		Doc: "run mode (0 stop, 1 run)",
	})
	d.health = pv.New(pv.Spec{
		Name: g.PVName(dc.Name, FieldStatus), Kind: pv.KindInt, ReadOnly: true,
		Doc: "device health code", Initial: float64(status.HealthUnknown),
	})
	d.secondsInError = pv.New(pv.Spec{
		Name: g.PVName(dc.Name, FieldSecondsInError), Kind: pv.KindInt, ReadOnly: true,
		Units: "s", Doc: "seconds since the device left OK health",
	})

	d.setpoint.SetPutter(d.putSetpoint)
	d.runMode.SetPutter(d.putRunMode)

	for _, p := range []*pv.PV{d.temperature, d.setpointRead, d.setpoint, d.runMode, d.health, d.secondsInError} {
		if err := g.db.Add(p); err != nil {
			_ = ctl.Close()
			return nil, fmt.Errorf("ioc: device %q: %w", dc.Name, err)
		}
	}

	if ctl.Failed() {
		d.status.Disable(connErr)
		g.rec.SetConnected(dc.Name, false)
	} else {
		g.rec.SetConnected(dc.Name, true)
		d.seedSetpoint()
	}
	d.publishStatus()

	return d, nil
}

// seedSetpoint initializes the writable setpoint from the device so the
// first external read does not show a placeholder.
func (d *device) seedSetpoint() {
	raw, err := d.ReadSetpoint()
	if err != nil {
		d.log.Warn().Err(err).Msg("initial setpoint read failed; setpoint starts at 0")
		return
	}
	d.setpoint.Set(float64(raw))
	d.setpointRead.Set(float64(raw))
}
