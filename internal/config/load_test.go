// internal/config/load_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

const sampleYAML = `
ioc:
  prefix: "lab:"
  devices:
    - name: t1
      host: 192.168.0.4
      slave_id: 1
    - name: t2
      host: 192.168.0.4
      port: 4001
      slave_id: 2
      framing: tcp
      request_timeout_ms: 500
mqtt:
  enabled: true
  broker: localhost
  topic_prefix: "lab/"
logging:
  level: DEBUG
`

func TestLoad_ParseValidateNormalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tcioc.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load err=%v", err)
	}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate err=%v", err)
	}
	Normalize(cfg)

	if cfg.IOC.Prefix != "lab:" {
		t.Fatalf("prefix: got %q", cfg.IOC.Prefix)
	}
	if cfg.IOC.ScanInterval() != time.Second {
		t.Fatalf("scan interval: got %v", cfg.IOC.ScanInterval())
	}

	t1 := cfg.IOC.Devices[0]
	if t1.Port != DefaultPort || t1.Framing != FramingRTU {
		t.Fatalf("t1 defaults not applied: %+v", t1)
	}
	if t1.ConnectTimeout() != 10*time.Second {
		t.Fatalf("t1 connect timeout: got %v", t1.ConnectTimeout())
	}

	t2 := cfg.IOC.Devices[1]
	if t2.Port != 4001 || t2.Framing != FramingTCP || t2.RequestTimeout() != 500*time.Millisecond {
		t.Fatalf("t2 overrides lost: %+v", t2)
	}

	if cfg.MQTT.Port != DefaultMQTTPort || cfg.MQTT.TopicPrefix != "lab" {
		t.Fatalf("mqtt defaults: %+v", cfg.MQTT)
	}
	if cfg.MQTT.ClientID == "" {
		t.Fatalf("mqtt client id not generated")
	}
	if cfg.Logging.Level != "debug" {
		t.Fatalf("log level not lowercased: %q", cfg.Logging.Level)
	}
}

func TestParse_UnknownKeyRejected(t *testing.T) {
	_, err := Parse([]byte("ioc:\n  devicez: []\n"))
	if err == nil {
		t.Fatalf("expected unknown key error, got nil")
	}
}

func TestParse_EmptyDocument(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := Validate(cfg); err == nil {
		t.Fatalf("expected empty config to fail validation")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}
