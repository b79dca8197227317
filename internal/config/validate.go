// internal/config/validate.go
package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate checks configuration correctness.
// It performs declarative validation only.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return errors.New("config: nil config")
	}

	// ------------------------------------------------------------
	// IOC
	// ------------------------------------------------------------

	if cfg.IOC.ScanIntervalMs < 0 {
		return fmt.Errorf("ioc: scan_interval_ms must be >= 0, got %d", cfg.IOC.ScanIntervalMs)
	}
	if strings.ContainsAny(cfg.IOC.Prefix, " \t\r\n") {
		return fmt.Errorf("ioc: prefix %q must not contain whitespace", cfg.IOC.Prefix)
	}
	if len(cfg.IOC.Devices) == 0 {
		return errors.New("ioc: at least one device required")
	}

	// ------------------------------------------------------------
	// DEVICES
	// ------------------------------------------------------------

	names := make(map[string]struct{})
	// key = host | port | slave_id
	addrOwner := make(map[string]string)

	for i, d := range cfg.IOC.Devices {
		if d.Name == "" {
			return fmt.Errorf("device #%d: name required", i)
		}
		if strings.ContainsAny(d.Name, ": \t\r\n/") {
			return fmt.Errorf("device %q: name must not contain ':', '/' or whitespace", d.Name)
		}
		if _, dup := names[d.Name]; dup {
			return fmt.Errorf("device %q: duplicate name", d.Name)
		}
		names[d.Name] = struct{}{}

		if d.Host == "" {
			return fmt.Errorf("device %q: host required", d.Name)
		}
		if d.Port < 0 || d.Port > 65535 {
			return fmt.Errorf("device %q: port %d out of range", d.Name, d.Port)
		}
		if d.SlaveID == 0 || d.SlaveID > 247 {
			return fmt.Errorf("device %q: slave_id must be 1..247, got %d", d.Name, d.SlaveID)
		}

		switch d.Framing {
		case "", FramingRTU, FramingTCP:
		default:
			return fmt.Errorf("device %q: unknown framing %q (want %q or %q)", d.Name, d.Framing, FramingRTU, FramingTCP)
		}

		if d.ConnectTimeoutMs < 0 {
			return fmt.Errorf("device %q: connect_timeout_ms must be >= 0", d.Name)
		}
		if d.RequestTimeoutMs < 0 {
			return fmt.Errorf("device %q: request_timeout_ms must be >= 0", d.Name)
		}

		port := d.Port
		if port == 0 {
			port = DefaultPort
		}
		key := fmt.Sprintf("%s|%d|%d", d.Host, port, d.SlaveID)
		if prev, exists := addrOwner[key]; exists {
			return fmt.Errorf(
				"address collision: host=%s port=%d slave_id=%d used by devices %q and %q",
				d.Host,
				port,
				d.SlaveID,
				prev,
				d.Name,
			)
		}
		addrOwner[key] = d.Name
	}

	// ------------------------------------------------------------
	// MQTT (opt-in)
	// ------------------------------------------------------------

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return errors.New("mqtt: broker required when enabled")
		}
		if cfg.MQTT.Port < 0 || cfg.MQTT.Port > 65535 {
			return fmt.Errorf("mqtt: port %d out of range", cfg.MQTT.Port)
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt: qos must be 0..2, got %d", cfg.MQTT.QoS)
		}
		if strings.ContainsAny(cfg.MQTT.TopicPrefix, "+#") {
			return fmt.Errorf("mqtt: topic_prefix %q must not contain wildcards", cfg.MQTT.TopicPrefix)
		}
	}

	// ------------------------------------------------------------
	// LOGGING
	// ------------------------------------------------------------

	switch strings.ToLower(cfg.Logging.Level) {
	case "", "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", cfg.Logging.Level)
	}

	return nil
}
