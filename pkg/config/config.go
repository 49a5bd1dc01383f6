// Package config loads the YAML process configuration shared by the
// sender and receiver CLIs, following the optional-file-with-defaults
// pattern used for site configuration elsewhere in this pack.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"reliable-transfer-go/pkg/transport"
)

// DefaultFilename is the config file loaded when -config is not given.
const DefaultFilename = "transfer.yml"

// Config mirrors transfer.yml. Every field has a default matching
// spec.md section 6. The CLIs let -addr, -metrics-addr and -log-level
// (and cmd/router's -listen for RouterPort) take precedence over the
// value loaded here; PacketTimeoutMS and FlowControlWindow have no flag.
type Config struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	RouterPort        int    `yaml:"router_port"`
	PacketTimeoutMS   int    `yaml:"packet_timeout_ms"`
	FlowControlWindow int    `yaml:"flow_control_window"`
	LogLevel          string `yaml:"log_level"`
	MetricsAddr       string `yaml:"metrics_addr"`
}

// Default returns the built-in configuration, matching transport's wire
// constants.
func Default() Config {
	return Config{
		Host:              "0.0.0.0",
		Port:              transport.ServerPort,
		RouterPort:        transport.RouterPort,
		PacketTimeoutMS:   transport.PacketTimeoutMS,
		FlowControlWindow: transport.FlowControlWindowSize,
		LogLevel:          "info",
		MetricsAddr:       "",
	}
}

// Load reads and parses path, overlaying it onto Default(). A missing file
// is not an error: the defaults are returned unchanged, matching the
// optional-site-config convention this pack uses.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Addr formats the host:port pair for net.ListenPacket / net.ResolveUDPAddr.
func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RouterAddr formats the host:port pair the impairment-simulating router
// front end listens on.
func (c Config) RouterAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.RouterPort)
}

// TransportSettings converts the loaded configuration into the transport
// package's Settings, the only form its Sender/Receiver constructors accept.
func (c Config) TransportSettings() transport.Settings {
	return transport.Settings{
		Timeout:           time.Duration(c.PacketTimeoutMS) * time.Millisecond,
		FlowControlWindow: c.FlowControlWindow,
	}
}
