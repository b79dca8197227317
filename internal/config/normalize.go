// internal/config/normalize.go
package config

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Normalize applies post-validation defaults.
// It is allowed to mutate configuration.
// It MUST be called only after Validate().
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.IOC.Prefix == "" {
		cfg.IOC.Prefix = DefaultPrefix
	}
	if cfg.IOC.ScanIntervalMs == 0 {
		cfg.IOC.ScanIntervalMs = DefaultScanIntervalMs
	}

	for i := range cfg.IOC.Devices {
		d := &cfg.IOC.Devices[i]

		if d.Port == 0 {
			d.Port = DefaultPort
		}
		if d.Framing == "" {
			d.Framing = FramingRTU
		}
		if d.ConnectTimeoutMs == 0 {
			d.ConnectTimeoutMs = DefaultConnectTimeoutMs
		}
		if d.RequestTimeoutMs == 0 {
			d.RequestTimeoutMs = DefaultRequestTimeoutMs
		}
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Port == 0 {
			cfg.MQTT.Port = DefaultMQTTPort
		}
		if cfg.MQTT.TopicPrefix == "" {
			cfg.MQTT.TopicPrefix = DefaultTopicPrefix
		}
		cfg.MQTT.TopicPrefix = strings.TrimSuffix(cfg.MQTT.TopicPrefix, "/")
		if cfg.MQTT.ClientID == "" {
			cfg.MQTT.ClientID = "tcioc-" + uuid.NewString()
		}
	}

	cfg.Logging.Level = strings.ToLower(cfg.Logging.Level)
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = DefaultLogLevel
	}
}

// ScanInterval returns the scan period as a duration.
func (c IOCConfig) ScanInterval() time.Duration {
	return time.Duration(c.ScanIntervalMs) * time.Millisecond
}

// ConnectTimeout returns the connection-establishment timeout.
func (d DeviceConfig) ConnectTimeout() time.Duration {
	return time.Duration(d.ConnectTimeoutMs) * time.Millisecond
}

// RequestTimeout returns the per-transaction timeout.
func (d DeviceConfig) RequestTimeout() time.Duration {
	return time.Duration(d.RequestTimeoutMs) * time.Millisecond
}
