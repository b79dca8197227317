// internal/config/config.go
package config

type Config struct {
	IOC     IOCConfig     `yaml:"ioc"`
	Server  ServerConfig  `yaml:"server"`
	MQTT    MQTTConfig    `yaml:"mqtt"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// ---- IOC ----

type IOCConfig struct {
	Prefix         string         `yaml:"prefix"`
	ScanIntervalMs int            `yaml:"scan_interval_ms"`
	Devices        []DeviceConfig `yaml:"devices"`
}

// ---- DEVICE ----

// DeviceConfig addresses one controller behind a TCP-to-serial gateway.
type DeviceConfig struct {
	Name    string `yaml:"name"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	SlaveID uint8  `yaml:"slave_id"`

	// Framing on the gateway connection: "rtu" (RTU frames over TCP) or "tcp" (MBAP).
	Framing string `yaml:"framing"`

	ConnectTimeoutMs int `yaml:"connect_timeout_ms"`
	RequestTimeoutMs int `yaml:"request_timeout_ms"`
}

// ---- PV ACCESS SERVER ----

type ServerConfig struct {
	Listen string `yaml:"listen"`
}

// ---- MQTT ----

type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`
	Port        int    `yaml:"port"`
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos"`
	Retain      bool   `yaml:"retain"`
}

// ---- METRICS ----

type MetricsConfig struct {
	Listen string `yaml:"listen"`
}

// ---- LOGGING ----

type LoggingConfig struct {
	Level   string `yaml:"level"`
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// Framing values.
const (
	FramingRTU = "rtu"
	FramingTCP = "tcp"
)

// Defaults applied by Normalize.
const (
	DefaultPrefix           = "temp:"
	DefaultScanIntervalMs   = 1000
	DefaultPort             = 502
	DefaultConnectTimeoutMs = 10000
	DefaultRequestTimeoutMs = 2000
	DefaultServerListen     = ":5064"
	DefaultMQTTPort         = 1883
	DefaultTopicPrefix      = "tcioc"
	DefaultLogLevel         = "info"
)
