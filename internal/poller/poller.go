// internal/poller/poller.go
package poller

import (
	"errors"
	"time"

	"github.com/tamzrod/tc-ioc/internal/controller"
)

// Client abstracts the controller reads needed by the poller.
type Client interface {
	ReadTemperature() (uint16, error)
	ReadSetpoint() (uint16, error)
}

// Config is the minimal runtime config the poller needs.
type Config struct {
	Device   string
	Interval time.Duration
}

// Poller is a dumb, clock-driven reader.
type Poller struct {
	cfg    Config
	client Client
}

// New creates a poller with immutable config.
func New(cfg Config, client Client) (*Poller, error) {
	if cfg.Device == "" {
		return nil, errors.New("poller: device name required")
	}
	if cfg.Interval <= 0 {
		return nil, errors.New("poller: interval must be > 0")
	}
	if client == nil {
		return nil, errors.New("poller: client required")
	}
	return &Poller{cfg: cfg, client: client}, nil
}

// PollOnce performs exactly one scan cycle: temperature, then setpoint readback.
// A device that is not connected is skipped after the first rejected read.
func (p *Poller) PollOnce() PollResult {
	res := PollResult{
		Device: p.cfg.Device,
		At:     time.Now(),
	}

	res.Temperature.Raw, res.Temperature.Err = p.client.ReadTemperature()
	if res.Temperature.Err != nil {
		res.Err = res.Temperature.Err
		if isNotConnected(res.Err) {
			res.Setpoint.Err = res.Err
			return res
		}
	}

	res.Setpoint.Raw, res.Setpoint.Err = p.client.ReadSetpoint()
	if res.Err == nil {
		res.Err = res.Setpoint.Err
	}

	return res
}

func isNotConnected(err error) bool {
	return errors.Is(err, controller.ErrNotConnected)
}
