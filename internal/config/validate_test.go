// internal/config/validate_test.go
package config

import (
	"strings"
	"testing"
)

// helper to build a device quickly
func device(name, host string, port int, slave uint8) DeviceConfig {
	return DeviceConfig{
		Name:    name,
		Host:    host,
		Port:    port,
		SlaveID: slave,
	}
}

func withDevices(devs ...DeviceConfig) *Config {
	return &Config{
		IOC: IOCConfig{
			Devices: devs,
		},
	}
}

// ---- tests ----

func TestValidate_ThreeControllersOneGateway(t *testing.T) {
	cfg := withDevices(
		device("t1", "192.168.0.4", 502, 1),
		device("t2", "192.168.0.4", 502, 2),
		device("t3", "192.168.0.4", 502, 3),
	)

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	cases := []struct {
		name string
		cfg  *Config
		want string
	}{
		{"nil", nil, "nil config"},
		{"no devices", withDevices(), "at least one device"},
		{"missing name", withDevices(device("", "h", 502, 1)), "name required"},
		{"name with colon", withDevices(device("t:1", "h", 502, 1)), "must not contain"},
		{"duplicate name", withDevices(device("t1", "h", 502, 1), device("t1", "h", 502, 2)), "duplicate name"},
		{"missing host", withDevices(device("t1", "", 502, 1)), "host required"},
		{"port range", withDevices(device("t1", "h", 70000, 1)), "port 70000"},
		{"slave zero", withDevices(device("t1", "h", 502, 0)), "slave_id"},
		{"slave too high", withDevices(device("t1", "h", 502, 248)), "slave_id"},
		{"same address", withDevices(device("t1", "h", 502, 1), device("t2", "h", 0, 1)), "address collision"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate(tc.cfg)
			if err == nil {
				t.Fatalf("expected error containing %q, got nil", tc.want)
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not contain %q", err, tc.want)
			}
		})
	}
}

func TestValidate_UnknownFraming(t *testing.T) {
	d := device("t1", "h", 502, 1)
	d.Framing = "ascii"

	if err := Validate(withDevices(d)); err == nil {
		t.Fatalf("expected framing error, got nil")
	}
}

func TestValidate_MQTTRequiresBroker(t *testing.T) {
	cfg := withDevices(device("t1", "h", 502, 1))
	cfg.MQTT.Enabled = true

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected mqtt broker error, got nil")
	}

	cfg.MQTT.Broker = "localhost"
	cfg.MQTT.QoS = 3
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected qos error, got nil")
	}
}

func TestValidate_LogLevel(t *testing.T) {
	cfg := withDevices(device("t1", "h", 502, 1))
	cfg.Logging.Level = "verbose"

	if err := Validate(cfg); err == nil {
		t.Fatalf("expected log level error, got nil")
	}
}

func TestValidate_DoesNotMutate(t *testing.T) {
	cfg := withDevices(device("t1", "h", 0, 1))

	if err := Validate(cfg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.IOC.Devices[0].Port != 0 || cfg.IOC.Prefix != "" {
		t.Fatalf("Validate mutated config: %+v", cfg.IOC)
	}
}
