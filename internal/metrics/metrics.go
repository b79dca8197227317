// internal/metrics/metrics.go
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tamzrod/tc-ioc/internal/status"
)

// Recorder is what the IOC reports into.
type Recorder interface {
	ObserveTransaction(device, op string, took time.Duration, err error)
	SetConnected(device string, connected bool)
	SetTemperature(device string, celsius float64)
	SetStatus(device string, s status.Snapshot)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ObserveTransaction(string, string, time.Duration, error) {}
func (Nop) SetConnected(string, bool)                             {}
func (Nop) SetTemperature(string, float64)                         {}
func (Nop) SetStatus(string, status.Snapshot)                      {}

// Prometheus implements Recorder on a private registry.
type Prometheus struct {
	reg *prometheus.Registry

	transactions   *prometheus.CounterVec
	errors         *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	connected      *prometheus.GaugeVec
	temperature    *prometheus.GaugeVec
	health         *prometheus.GaugeVec
	secondsInError *prometheus.GaugeVec
}

func NewPrometheus() *Prometheus {
	p := &Prometheus{
		reg: prometheus.NewRegistry(),
		transactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tcioc",
			Name:      "transactions_total",
			Help:      "Register transactions attempted, by device and operation.",
		}, []string{"device", "op"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tcioc",
			Name:      "transaction_errors_total",
			Help:      "Register transactions that failed, by device and operation.",
		}, []string{"device", "op"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tcioc",
			Name:      "transaction_duration_seconds",
			Help:      "Round-trip time of register transactions.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}, []string{"device", "op"}),
		connected: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tcioc",
			Name:      "device_connected",
			Help:      "1 while the controller connection is live.",
		}, []string{"device"}),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tcioc",
			Name:      "temperature_celsius",
			Help:      "Last published temperature.",
		}, []string{"device"}),
		health: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tcioc",
			Name:      "device_health",
			Help:      "Device health code (0 unknown, 1 ok, 2 error, 3 stale, 4 disabled).",
		}, []string{"device"}),
		secondsInError: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tcioc",
			Name:      "seconds_in_error",
			Help:      "Seconds the device has been out of OK health.",
		}, []string{"device"}),
	}

	p.reg.MustRegister(
		p.transactions,
		p.errors,
		p.duration,
		p.connected,
		p.temperature,
		p.health,
		p.secondsInError,
	)
	return p
}

// Registry exposes the private registry for the HTTP handler.
func (p *Prometheus) Registry() *prometheus.Registry { return p.reg }

func (p *Prometheus) ObserveTransaction(device, op string, took time.Duration, err error) {
	p.transactions.WithLabelValues(device, op).Inc()
	p.duration.WithLabelValues(device, op).Observe(took.Seconds())
	if err != nil {
		p.errors.WithLabelValues(device, op).Inc()
	}
}

func (p *Prometheus) SetConnected(device string, connected bool) {
	v := 0.0
	if connected {
		v = 1
	}
	p.connected.WithLabelValues(device).Set(v)
}

func (p *Prometheus) SetTemperature(device string, celsius float64) {
	p.temperature.WithLabelValues(device).Set(celsius)
}

func (p *Prometheus) SetStatus(device string, s status.Snapshot) {
	p.health.WithLabelValues(device).Set(float64(s.Health))
	p.secondsInError.WithLabelValues(device).Set(float64(s.SecondsInError))
}
