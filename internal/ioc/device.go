// internal/ioc/device.go
package ioc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/tamzrod/tc-ioc/internal/controller"
	"github.com/tamzrod/tc-ioc/internal/metrics"
	"github.com/tamzrod/tc-ioc/internal/poller"
	"github.com/tamzrod/tc-ioc/internal/pv"
	"github.com/tamzrod/tc-ioc/internal/status"
)

// PV field suffixes, appended to "<prefix><device>:".
const (
	FieldTemperature    = "temperature"
	FieldSetpointRead   = "setpoint_read"
	FieldSetpoint       = "setpoint"
	FieldRunMode        = "run_mode"
	FieldStatus         = "status"
	FieldSecondsInError = "seconds_in_error"
)

// temperatureScale converts raw register counts to degrees C.
const temperatureScale = 10.0

// device holds direct references to everything one controller owns.
// Devices share no mutable state.
type device struct {
	name string
	ctl  *controller.Controller
	log  zerolog.Logger
	rec  metrics.Recorder

	poller *poller.Poller
	status *status.Tracker

	temperature    *pv.PV
	setpointRead   *pv.PV
	setpoint       *pv.PV
	runMode        *pv.PV
	health         *pv.PV
	secondsInError *pv.PV

	// statusMu orders status publication from the scan and put paths.
	statusMu sync.Mutex
}

// ---- scan path ----

// apply publishes one scan cycle. Failures never propagate: the previous
// values stay in place and the next tick tries again.
func (d *device) apply(res poller.PollResult) {
	if res.Skipped() {
		d.log.Trace().Msg("scan skipped: no connection")
		d.checkLiveness()
		return
	}

	if res.Temperature.Err == nil {
		celsius := float64(res.Temperature.Raw) / temperatureScale
		d.temperature.Set(celsius)
		d.rec.SetTemperature(d.name, celsius)
	}
	if res.Setpoint.Err == nil {
		d.setpointRead.Set(float64(res.Setpoint.Raw))
	}

	changed := d.status.Observe(res.Err)
	if res.Err != nil {
		ev := d.log.Debug()
		if changed {
			ev = d.log.Warn()
		}
		ev.Err(res.Err).Msg("scan failed; keeping previous values")
	} else if changed {
		d.log.Info().Msg("scan recovered")
	}
	if changed {
		d.publishStatus()
	}

	d.checkLiveness()
}

// tick advances seconds-in-error.
func (d *device) tick() {
	if d.status.Tick() {
		d.publishStatus()
	}
}

// ---- put path ----

func (d *device) putSetpoint(_ context.Context, v float64) error {
	start := time.Now()
	err := d.ctl.WriteSetpoint(v)
	d.observe("write_setpoint", start, err)
	return d.putResult(FieldSetpoint, v, err)
}

func (d *device) putRunMode(_ context.Context, v float64) error {
	if v != 0 && v != 1 {
		err := &ValidationError{Device: d.name, Field: FieldRunMode, Value: v, Reason: "run mode must be 0 or 1"}
		d.log.Error().Err(err).Float64("value", v).Msg("run mode write rejected")
		return err
	}

	start := time.Now()
	err := d.ctl.SetRunMode(v)
	d.observe("set_run_mode", start, err)
	return d.putResult(FieldRunMode, v, err)
}

func (d *device) putResult(field string, v float64, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, controller.ErrNotConnected) {
		d.log.Error().Str("field", field).Float64("value", v).Msg("write rejected: no connection to controller")
	} else {
		d.log.Error().Err(err).Str("field", field).Float64("value", v).Msg("write failed; value not applied")
	}
	d.checkLiveness()

	return fmt.Errorf("ioc: %s %s: %w", d.name, field, err)
}

// ---- instrumentation (poller.Client) ----

func (d *device) ReadTemperature() (uint16, error) {
	start := time.Now()
	v, err := d.ctl.ReadTemperature()
	d.observe("read_temperature", start, err)
	return v, err
}

func (d *device) ReadSetpoint() (uint16, error) {
	start := time.Now()
	v, err := d.ctl.ReadSetpoint()
	d.observe("read_setpoint", start, err)
	return v, err
}

// observe records a transaction. Rejections without I/O are not transactions.
func (d *device) observe(op string, start time.Time, err error) {
	if errors.Is(err, controller.ErrNotConnected) {
		return
	}
	d.rec.ObserveTransaction(d.name, op, time.Since(start), err)
}

// ---- status ----

// checkLiveness disables the device once its controller has failed.
func (d *device) checkLiveness() {
	if !d.ctl.Failed() {
		return
	}
	if d.status.Disable(nil) {
		d.rec.SetConnected(d.name, false)
		d.publishStatus()
	}
}

func (d *device) publishStatus() {
	d.statusMu.Lock()
	defer d.statusMu.Unlock()

	s := d.status.Snapshot()
	d.health.Set(float64(s.Health))
	d.secondsInError.Set(float64(s.SecondsInError))
	d.rec.SetStatus(d.name, s)
}

func (d *device) deviceStatus() status.DeviceStatus {
	return status.NewDeviceStatus(d.name, !d.ctl.Failed(), d.status.Snapshot())
}
