// internal/metrics/http.go
package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tamzrod/tc-ioc/internal/status"
)

// HealthSource reports the per-device view for /healthz.
type HealthSource interface {
	Health() []status.DeviceStatus
}

type healthResponse struct {
	Status    string                `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp time.Time             `json:"timestamp"`
	Uptime    string                `json:"uptime"`
	Devices   []status.DeviceStatus `json:"devices"`
}

// Handler serves /metrics and /healthz.
func Handler(p *Prometheus, src HealthSource) http.Handler {
	start := time.Now()
	mux := http.NewServeMux()

	mux.Handle("/metrics", promhttp.HandlerFor(p.Registry(), promhttp.HandlerOpts{}))

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		devices := src.Health()

		resp := healthResponse{
			Status:    overall(devices),
			Timestamp: time.Now(),
			Uptime:    time.Since(start).Truncate(time.Second).String(),
			Devices:   devices,
		}

		code := http.StatusOK
		if resp.Status == "unhealthy" {
			code = http.StatusServiceUnavailable
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(resp)
	})

	return mux
}

// overall is unhealthy when no device is connected and degraded when any device is not OK.
func overall(devices []status.DeviceStatus) string {
	connected := 0
	degraded := false
	for _, d := range devices {
		if d.Connected {
			connected++
		}
		if d.Snapshot.Health != status.HealthOK {
			degraded = true
		}
	}
	switch {
	case connected == 0:
		return "unhealthy"
	case degraded:
		return "degraded"
	default:
		return "healthy"
	}
}

// Serve runs the HTTP endpoint on ln until ctx is done.
func Serve(ctx context.Context, ln net.Listener, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Info().Str("addr", ln.Addr().String()).Msg("metrics endpoint listening")
	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
