package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ardnew/softi2c/binding"
	"github.com/ardnew/softi2c/pkg"
)

// Bus adapter kinds.
const (
	BusLinux = "linux" // /dev/i2c-N through the i2c-dev driver
	BusSim   = "sim"   // In-memory simulated sensor
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SOFTI2C_"

// Config is the daemon configuration. Values come from defaults, then the
// YAML file, then SOFTI2C_* environment variables.
type Config struct {
	Device     DeviceConfig     `yaml:"device"`
	Bus        BusConfig        `yaml:"bus"`
	Board      BoardConfig      `yaml:"board"`
	MiscDev    MiscDevConfig    `yaml:"miscdev"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Logging    LoggingConfig    `yaml:"logging"`
	Dispatcher DispatcherConfig `yaml:"dispatcher"`
}

// DeviceConfig identifies the driver.
type DeviceConfig struct {
	Name       string `yaml:"name"`       // Published interface name
	Compatible string `yaml:"compatible"` // Platform compatible identifier
}

// BusConfig selects the bus adapter.
type BusConfig struct {
	Kind    string `yaml:"kind"`    // linux or sim
	Number  int    `yaml:"number"`  // Bus number for a linux adapter with no board file
	Timeout int    `yaml:"timeout"` // Adapter timeout in milliseconds; 0 keeps the kernel default
	Retries int    `yaml:"retries"` // Adapter retries; 0 keeps the kernel default
	Address int    `yaml:"address"` // Simulated sensor address (sim only)
}

// BoardConfig locates the platform description.
type BoardConfig struct {
	// Path is a board YAML file. When empty, a linux bus is scanned through
	// sysfs and a sim bus describes its simulated sensor.
	Path string `yaml:"path"`

	// Hotplug follows kernel uevents for I2C client add and remove.
	Hotplug bool `yaml:"hotplug"`
}

// MiscDevConfig places the interface socket.
type MiscDevConfig struct {
	Dir string `yaml:"dir"`
}

// MQTTConfig configures result telemetry.
type MQTTConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Topic    string `yaml:"topic"`
	QoS      int    `yaml:"qos"`
	Retained bool   `yaml:"retained"`
}

// LoggingConfig sets the log level and format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DispatcherConfig tunes the command dispatcher.
type DispatcherConfig struct {
	WriteBack bool `yaml:"write_back"`
}

// Load reads the configuration at path over the defaults, applies
// environment overrides and validates the result. An empty path loads
// defaults and environment only.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	if err := applyEnvOverrides(cfg, os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}
	return cfg, nil
}

// Default returns the default configuration: a simulated BMP280 at 0x76
// published as myi2cdev under /run/softi2c.
func Default() *Config {
	return &Config{
		Device: DeviceConfig{
			Name:       binding.DefaultName,
			Compatible: binding.DefaultCompatible,
		},
		Bus: BusConfig{
			Kind:    BusSim,
			Number:  1,
			Address: 0x76,
		},
		MiscDev: MiscDevConfig{
			Dir: "/run/softi2c",
		},
		MQTT: MQTTConfig{
			Broker:   "tcp://localhost:1883",
			ClientID: "softi2c",
			Topic:    "softi2c",
			QoS:      1,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// applyEnvOverrides sets fields from SOFTI2C_* variables.
func applyEnvOverrides(cfg *Config, lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			n, err := strconv.ParseInt(v, 0, 0)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = int(n)
		}
		return nil
	}
	flag := func(key string, dst *bool) error {
		if v, ok := lookup(EnvPrefix + key); ok && v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
		return nil
	}

	str("DEVICE_NAME", &cfg.Device.Name)
	str("BUS_KIND", &cfg.Bus.Kind)
	str("BOARD_PATH", &cfg.Board.Path)
	str("MISCDEV_DIR", &cfg.MiscDev.Dir)
	str("MQTT_BROKER", &cfg.MQTT.Broker)
	str("MQTT_USERNAME", &cfg.MQTT.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Password)
	str("LOG_LEVEL", &cfg.Logging.Level)
	str("LOG_FORMAT", &cfg.Logging.Format)

	for _, err := range []error{
		num("BUS_NUMBER", &cfg.Bus.Number),
		num("BUS_ADDRESS", &cfg.Bus.Address),
		flag("MQTT_ENABLED", &cfg.MQTT.Enabled),
		flag("DISPATCHER_WRITE_BACK", &cfg.Dispatcher.WriteBack),
	} {
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate checks the configuration and reports every problem found.
func (c *Config) Validate() error {
	var errs []string

	if c.Device.Name == "" {
		errs = append(errs, "device.name is required")
	} else if strings.ContainsRune(c.Device.Name, '/') {
		errs = append(errs, "device.name must not contain '/'")
	}
	if c.Device.Compatible == "" {
		errs = append(errs, "device.compatible is required")
	}

	switch c.Bus.Kind {
	case BusLinux, BusSim:
	default:
		errs = append(errs, fmt.Sprintf("bus.kind must be %q or %q", BusLinux, BusSim))
	}
	if c.Bus.Number < 0 {
		errs = append(errs, "bus.number must not be negative")
	}
	if c.Bus.Timeout < 0 || c.Bus.Retries < 0 {
		errs = append(errs, "bus.timeout and bus.retries must not be negative")
	}
	if c.Bus.Kind == BusSim && (c.Bus.Address < 0 || c.Bus.Address > 0x7F) {
		errs = append(errs, "bus.address must be a 7-bit address")
	}

	if c.MiscDev.Dir == "" {
		errs = append(errs, "miscdev.dir is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		errs = append(errs, "mqtt.broker is required when mqtt is enabled")
	}

	if _, err := pkg.ParseLogLevel(c.Logging.Level); err != nil {
		errs = append(errs, "logging.level: "+err.Error())
	}
	if _, err := pkg.ParseLogFormat(c.Logging.Format); err != nil {
		errs = append(errs, "logging.format: "+err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// BusTimeout returns the adapter timeout as a Duration.
func (c *Config) BusTimeout() time.Duration {
	return time.Duration(c.Bus.Timeout) * time.Millisecond
}
