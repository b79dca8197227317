// cmd/tcioc/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/tamzrod/tc-ioc/internal/config"
	"github.com/tamzrod/tc-ioc/internal/controller/modbus"
	"github.com/tamzrod/tc-ioc/internal/ioc"
	"github.com/tamzrod/tc-ioc/internal/logging"
	"github.com/tamzrod/tc-ioc/internal/metrics"
	"github.com/tamzrod/tc-ioc/internal/mqtt"
	"github.com/tamzrod/tc-ioc/internal/pv"
	"github.com/tamzrod/tc-ioc/internal/server"
)

func main() {
	cfg, err := buildConfig(os.Args[1:])
	if err != nil {
		log.Fatalf("config failed: %v", err)
	}

	logger, closeLog, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("logging setup failed: %v", err)
	}
	defer closeLog.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error().Err(err).Msg("tcioc stopped")
		closeLog.Close()
		os.Exit(1)
	}
	logger.Info().Msg("tcioc stopped")
}

// --------------------
// Config: file or single-device flags
// --------------------

func buildConfig(args []string) (*config.Config, error) {
	fs := flag.NewFlagSet("tcioc", flag.ContinueOnError)

	path := fs.String("config", "", "path to YAML config (overrides the single-device flags)")
	host := fs.String("host", "", "gateway host (single-device mode)")
	port := fs.Int("port", config.DefaultPort, "gateway port")
	slave := fs.Uint("serial_id", 1, "controller slave id")
	name := fs.String("name", "t1", "device name used in PV names")
	prefix := fs.String("prefix", config.DefaultPrefix, "PV name prefix")
	framing := fs.String("framing", config.FramingRTU, "framing: rtu (RTU over TCP) or tcp (MBAP)")
	listen := fs.String("listen", config.DefaultServerListen, "PV server listen address (empty disables)")
	metricsAddr := fs.String("metrics", "", "metrics/health listen address (empty disables)")
	level := fs.String("log_level", config.DefaultLogLevel, "log level")
	logFile := fs.String("log_file", "", "append logs to this file")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	var cfg *config.Config
	switch {
	case *path != "":
		c, err := config.Load(*path)
		if err != nil {
			return nil, err
		}
		cfg = c

	case *host != "":
		if *slave > 255 {
			return nil, fmt.Errorf("serial_id %d out of range", *slave)
		}
		cfg = &config.Config{
			IOC: config.IOCConfig{
				Prefix: *prefix,
				Devices: []config.DeviceConfig{{
					Name:    *name,
					Host:    *host,
					Port:    *port,
					SlaveID: uint8(*slave),
					Framing: *framing,
				}},
			},
			Server:  config.ServerConfig{Listen: *listen},
			Metrics: config.MetricsConfig{Listen: *metricsAddr},
			Logging: config.LoggingConfig{Level: *level, File: *logFile, Console: true},
		}

	default:
		return nil, errors.New("either -config or -host is required")
	}

	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	config.Normalize(cfg)
	return cfg, nil
}

// --------------------
// Run: group + servers until ctx is done
// --------------------

func run(ctx context.Context, cfg *config.Config, logger zerolog.Logger) error {
	db := pv.NewDatabase()
	rec := metrics.NewPrometheus()

	group, err := ioc.New(cfg.IOC, modbus.Dial, db, logger, rec)
	if err != nil {
		return fmt.Errorf("ioc build failed: %w", err)
	}
	defer group.Close()

	// listeners are opened up front so a bad address fails startup
	var pvLn, metricsLn net.Listener
	if cfg.Server.Listen != "" {
		if pvLn, err = net.Listen("tcp", cfg.Server.Listen); err != nil {
			return fmt.Errorf("pv server listen: %w", err)
		}
	}
	if cfg.Metrics.Listen != "" {
		if metricsLn, err = net.Listen("tcp", cfg.Metrics.Listen); err != nil {
			if pvLn != nil {
				_ = pvLn.Close()
			}
			return fmt.Errorf("metrics listen: %w", err)
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg       sync.WaitGroup
		errOnce  sync.Once
		firstErr error
	)
	// a failing component stops the process
	fail := func(what string, err error) {
		if err == nil {
			return
		}
		errOnce.Do(func() { firstErr = fmt.Errorf("%s: %w", what, err) })
		cancel()
	}
	spawn := func(what string, fn func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fail(what, fn())
		}()
	}

	spawn("scan", func() error {
		group.Run(ctx)
		return nil
	})

	if pvLn != nil {
		srv := server.New(db, logger)
		spawn("pv server", func() error { return srv.Serve(ctx, pvLn) })
	}
	if metricsLn != nil {
		h := metrics.Handler(rec, group)
		spawn("metrics", func() error { return metrics.Serve(ctx, metricsLn, h, logger) })
	}
	if cfg.MQTT.Enabled {
		gw := mqtt.New(cfg.MQTT, db, logger)
		spawn("mqtt", func() error { return gw.Run(ctx) })
	}

	logger.Info().
		Str("prefix", cfg.IOC.Prefix).
		Int("pvs", len(db.Names())).
		Msg("tcioc running")

	wg.Wait()
	return firstErr
}
