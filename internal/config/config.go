// Package config loads and validates control.yaml. Validation is a
// sequence of explicit per-record checks returning a descriptive error —
// no reflection-driven field walking (see DESIGN.md's Open Question on
// the source's reflection-based validator).
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"unipid/internal/errs"
)

// objectIDPattern matches the source's slug rule for object_id and device
// names: lowercase letters, digits, underscore, hyphen.
var objectIDPattern = regexp.MustCompile(`^[a-z0-9_-]+$`)

// Config is the parsed, validated contents of control.yaml.
type Config struct {
	DeviceName  string `yaml:"device_name"`
	ScratchDir  string `yaml:"scratch_dir"`
	MetricsPort int    `yaml:"metrics_port"`
	HealthPort  int    `yaml:"health_port"`

	Modbus        ModbusConfig    `yaml:"modbus"`
	MQTT          MQTTConfig      `yaml:"mqtt"`
	HomeAssistant HAConfig        `yaml:"homeassistant"`
	Hardware      HardwareConfig  `yaml:"hardware"`
	Covers        []CoverConfig   `yaml:"covers"`

	// ConfigDir is the directory control.yaml was loaded from; not part
	// of the YAML document, set by Load so hardware.Load can find the
	// sibling hardware/ tree.
	ConfigDir string `yaml:"-"`
}

type ModbusConfig struct {
	TCP TCPBusConfig `yaml:"tcp"`
	RTU RTUBusConfig `yaml:"rtu"`
}

type TCPBusConfig struct {
	Address          string  `yaml:"address"`
	ScanIntervalSecs float64 `yaml:"scan_interval"`
	TimeoutSecs      float64 `yaml:"timeout"`
}

func (c TCPBusConfig) ScanInterval() time.Duration { return durationSecs(c.ScanIntervalSecs) }
func (c TCPBusConfig) Timeout() time.Duration       { return durationSecs(c.TimeoutSecs) }

type RTUBusConfig struct {
	Device           string            `yaml:"device"`
	BaudRate         int               `yaml:"baud_rate"`
	ScanIntervalSecs float64           `yaml:"scan_interval"`
	TimeoutSecs      float64           `yaml:"timeout"`
	Extensions       []ExtensionConfig `yaml:"extensions"`
}

func (c RTUBusConfig) ScanInterval() time.Duration { return durationSecs(c.ScanIntervalSecs) }
func (c RTUBusConfig) Timeout() time.Duration       { return durationSecs(c.TimeoutSecs) }

type ExtensionConfig struct {
	Unit         uint8  `yaml:"unit"`
	Manufacturer string `yaml:"manufacturer"`
	Model        string `yaml:"model"`
	DeviceName   string `yaml:"device_name"`
}

type MQTTConfig struct {
	Host                  string `yaml:"host"`
	Port                  int    `yaml:"port"`
	Username              string `yaml:"username"`
	Password              string `yaml:"password"`
	KeepaliveSecs         int    `yaml:"keepalive"`
	RetryLimit            *int   `yaml:"retry_limit"` // nil => unbounded, per spec's codified reading of retry_limit=None
	ReconnectIntervalSecs int    `yaml:"reconnect_interval"`
}

func (c MQTTConfig) Keepalive() time.Duration         { return time.Duration(c.KeepaliveSecs) * time.Second }
func (c MQTTConfig) ReconnectInterval() time.Duration { return time.Duration(c.ReconnectIntervalSecs) * time.Second }

// EffectiveRetryLimit returns the configured limit, or -1 for unbounded.
func (c MQTTConfig) EffectiveRetryLimit() int {
	if c.RetryLimit == nil {
		return -1
	}
	return *c.RetryLimit
}

type HAConfig struct {
	Enabled         bool   `yaml:"enabled"`
	DiscoveryPrefix string `yaml:"discovery_prefix"`
	Manufacturer    string `yaml:"manufacturer"`
}

type HardwareConfig struct {
	Model string `yaml:"model"`
}

// validCoverKinds is the spec's explicit set, plus roller_shutter which the
// original Python's COVER_TYPES also allows and nothing here excludes.
var validCoverKinds = map[string]bool{
	"blind":          true,
	"roller_shutter": true,
	"garage_door":    true,
	"awning":         true,
}

type CoverConfig struct {
	ObjectID          string  `yaml:"object_id"`
	Kind              string  `yaml:"kind"`
	RelayUp           string  `yaml:"relay_up"`
	RelayDown         string  `yaml:"relay_down"`
	FullTravelSeconds float64 `yaml:"full_travel_seconds"`
	FullTiltSeconds   float64 `yaml:"full_tilt_seconds"`
	ReverseHoldMillis int     `yaml:"reverse_hold_ms"`
}

func (c CoverConfig) ReverseHold() time.Duration {
	if c.ReverseHoldMillis <= 0 {
		return 500 * time.Millisecond
	}
	return time.Duration(c.ReverseHoldMillis) * time.Millisecond
}

func durationSecs(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Load reads <dir>/control.yaml, validates it, and fills ConfigDir.
func Load(dir string) (*Config, error) {
	path := dir + "/control.yaml"
	// #nosec G304 - dir comes from the -c/--config CLI flag, an operator-supplied trust boundary
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.NewConfigError("read control.yaml", err, path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errs.NewConfigError("parse control.yaml", err, path)
	}
	cfg.ConfigDir = dir

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, errs.NewConfigError("validate control.yaml", err, path)
	}
	return &cfg, nil
}

func applyDefaults(c *Config) {
	if c.ScratchDir == "" {
		c.ScratchDir = "/var/tmp/unipi"
	}
	if c.Modbus.TCP.Address == "" {
		c.Modbus.TCP.Address = "127.0.0.1:502"
	}
	if c.Modbus.TCP.ScanIntervalSecs == 0 {
		c.Modbus.TCP.ScanIntervalSecs = 0.25
	}
	if c.Modbus.TCP.TimeoutSecs == 0 {
		c.Modbus.TCP.TimeoutSecs = 1
	}
	if c.Modbus.RTU.ScanIntervalSecs == 0 {
		c.Modbus.RTU.ScanIntervalSecs = 1
	}
	if c.Modbus.RTU.TimeoutSecs == 0 {
		c.Modbus.RTU.TimeoutSecs = 2
	}
	if c.Modbus.RTU.BaudRate == 0 {
		c.Modbus.RTU.BaudRate = 9600
	}
	if c.MQTT.Host == "" {
		c.MQTT.Host = "localhost"
	}
	if c.MQTT.Port == 0 {
		c.MQTT.Port = 1883
	}
	if c.MQTT.KeepaliveSecs == 0 {
		c.MQTT.KeepaliveSecs = 15
	}
	if c.MQTT.ReconnectIntervalSecs == 0 {
		c.MQTT.ReconnectIntervalSecs = 10
	}
	if c.HomeAssistant.DiscoveryPrefix == "" {
		c.HomeAssistant.DiscoveryPrefix = "homeassistant"
	}
	if c.HomeAssistant.Manufacturer == "" {
		c.HomeAssistant.Manufacturer = "Unipi technology"
	}
}

var validBaudRates = map[int]bool{
	2400: true, 4800: true, 9600: true, 19200: true,
	38400: true, 57600: true, 115200: true,
}

// Validate runs the explicit, typed checks for every section. Each check
// is a plain field comparison; no reflection.
func (c *Config) Validate() error {
	if c.DeviceName == "" {
		return fmt.Errorf("device_name is not specified")
	}
	if !objectIDPattern.MatchString(c.DeviceName) {
		return fmt.Errorf("device_name %q must match %s", c.DeviceName, objectIDPattern.String())
	}
	if c.Hardware.Model == "" {
		return fmt.Errorf("hardware.model is not specified")
	}
	if c.Modbus.TCP.Address == "" {
		return fmt.Errorf("modbus.tcp.address is not specified")
	}
	if c.Modbus.RTU.BaudRate != 0 && !validBaudRates[c.Modbus.RTU.BaudRate] {
		return fmt.Errorf("modbus.rtu.baud_rate %d is not one of the supported rates", c.Modbus.RTU.BaudRate)
	}

	seenUnits := map[uint8]bool{}
	for _, ext := range c.Modbus.RTU.Extensions {
		if ext.Unit == 0 {
			return fmt.Errorf("modbus.rtu.extensions: unit must be non-zero")
		}
		if seenUnits[ext.Unit] {
			return fmt.Errorf("modbus.rtu.extensions: duplicate unit %d", ext.Unit)
		}
		seenUnits[ext.Unit] = true
		if ext.Model == "" {
			return fmt.Errorf("modbus.rtu.extensions: unit %d has no model", ext.Unit)
		}
	}

	if c.MQTT.Port <= 0 {
		return fmt.Errorf("mqtt.port must be positive")
	}
	if c.MQTT.RetryLimit != nil && *c.MQTT.RetryLimit < 0 {
		return fmt.Errorf("mqtt.retry_limit must be non-negative or absent")
	}

	seenObjectIDs := map[string]bool{}
	seenRelays := map[string]string{}
	for _, cov := range c.Covers {
		if cov.ObjectID == "" {
			return fmt.Errorf("covers: object_id is not specified")
		}
		if !objectIDPattern.MatchString(cov.ObjectID) {
			return fmt.Errorf("covers: object_id %q must match %s", cov.ObjectID, objectIDPattern.String())
		}
		if seenObjectIDs[cov.ObjectID] {
			return fmt.Errorf("covers: duplicate object_id %q", cov.ObjectID)
		}
		seenObjectIDs[cov.ObjectID] = true

		if !validCoverKinds[cov.Kind] {
			return fmt.Errorf("covers %q: unknown kind %q", cov.ObjectID, cov.Kind)
		}
		if cov.RelayUp == "" || cov.RelayDown == "" {
			return fmt.Errorf("covers %q: relay_up and relay_down are both required", cov.ObjectID)
		}
		if cov.RelayUp == cov.RelayDown {
			return fmt.Errorf("covers %q: relay_up and relay_down must differ", cov.ObjectID)
		}
		for _, relay := range []string{cov.RelayUp, cov.RelayDown} {
			if owner, claimed := seenRelays[relay]; claimed {
				return fmt.Errorf("covers %q: relay %q already claimed by cover %q", cov.ObjectID, relay, owner)
			}
			seenRelays[relay] = cov.ObjectID
		}
		if cov.FullTravelSeconds <= 0 {
			return fmt.Errorf("covers %q: full_travel_seconds must be positive", cov.ObjectID)
		}
	}

	return nil
}

// ClaimedRelays returns the set of RO object_ids owned by a cover, so the
// feature map and discovery emitter can exclude them from MQTT switches
// (data model invariant 5).
func (c *Config) ClaimedRelays() map[string]bool {
	claimed := make(map[string]bool, len(c.Covers)*2)
	for _, cov := range c.Covers {
		claimed[cov.RelayUp] = true
		claimed[cov.RelayDown] = true
	}
	return claimed
}
