package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeControlYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "control.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing control.yaml: %v", err)
	}
	return dir
}

const minimalYAML = `
device_name: unipi01
hardware:
  model: M523
modbus:
  tcp:
    address: 127.0.0.1:502
`

func TestLoadAppliesDefaultsAndSetsConfigDir(t *testing.T) {
	dir := writeControlYAML(t, minimalYAML)

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ConfigDir != dir {
		t.Errorf("expected ConfigDir %q, got %q", dir, cfg.ConfigDir)
	}
	if cfg.ScratchDir != "/var/tmp/unipi" {
		t.Errorf("expected default scratch dir, got %q", cfg.ScratchDir)
	}
	if cfg.MQTT.Port != 1883 {
		t.Errorf("expected default mqtt port 1883, got %d", cfg.MQTT.Port)
	}
	if cfg.Modbus.RTU.BaudRate != 9600 {
		t.Errorf("expected default baud rate 9600, got %d", cfg.Modbus.RTU.BaudRate)
	}
	if cfg.HomeAssistant.DiscoveryPrefix != "homeassistant" {
		t.Errorf("expected default discovery prefix, got %q", cfg.HomeAssistant.DiscoveryPrefix)
	}
}

func TestLoadMissingFileReturnsConfigError(t *testing.T) {
	_, err := Load(t.TempDir())
	if err == nil {
		t.Fatal("expected an error for a missing control.yaml")
	}
}

func TestLoadRejectsMissingDeviceName(t *testing.T) {
	dir := writeControlYAML(t, `
hardware:
  model: M523
modbus:
  tcp:
    address: 127.0.0.1:502
`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected validation to reject a missing device_name")
	}
}

func TestLoadRejectsBadBaudRate(t *testing.T) {
	dir := writeControlYAML(t, `
device_name: unipi01
hardware:
  model: M523
modbus:
  tcp:
    address: 127.0.0.1:502
  rtu:
    baud_rate: 1234
`)
	if _, err := Load(dir); err == nil {
		t.Fatal("expected validation to reject an unsupported baud rate")
	}
}

func TestValidateRejectsDuplicateCoverRelay(t *testing.T) {
	cfg := &Config{
		DeviceName: "unipi01",
		Hardware:   HardwareConfig{Model: "M523"},
		Modbus:     ModbusConfig{TCP: TCPBusConfig{Address: "127.0.0.1:502"}},
		MQTT:       MQTTConfig{Port: 1883},
		Covers: []CoverConfig{
			{ObjectID: "blind_a", Kind: "blind", RelayUp: "ro_1_01", RelayDown: "ro_1_02", FullTravelSeconds: 20},
			{ObjectID: "blind_b", Kind: "blind", RelayUp: "ro_1_01", RelayDown: "ro_1_03", FullTravelSeconds: 20},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation to reject a relay claimed by two covers")
	}
}

func TestValidateRejectsUnknownCoverKind(t *testing.T) {
	cfg := &Config{
		DeviceName: "unipi01",
		Hardware:   HardwareConfig{Model: "M523"},
		Modbus:     ModbusConfig{TCP: TCPBusConfig{Address: "127.0.0.1:502"}},
		MQTT:       MQTTConfig{Port: 1883},
		Covers: []CoverConfig{
			{ObjectID: "blind_a", Kind: "curtain", RelayUp: "ro_1_01", RelayDown: "ro_1_02", FullTravelSeconds: 20},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation to reject an unrecognized cover kind")
	}
}

func TestValidateRejectsSameUpAndDownRelay(t *testing.T) {
	cfg := &Config{
		DeviceName: "unipi01",
		Hardware:   HardwareConfig{Model: "M523"},
		Modbus:     ModbusConfig{TCP: TCPBusConfig{Address: "127.0.0.1:502"}},
		MQTT:       MQTTConfig{Port: 1883},
		Covers: []CoverConfig{
			{ObjectID: "blind_a", Kind: "blind", RelayUp: "ro_1_01", RelayDown: "ro_1_01", FullTravelSeconds: 20},
		},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation to reject relay_up == relay_down")
	}
}

func TestClaimedRelaysCollectsBothSides(t *testing.T) {
	cfg := &Config{
		Covers: []CoverConfig{
			{ObjectID: "blind_a", RelayUp: "ro_1_01", RelayDown: "ro_1_02"},
		},
	}
	claimed := cfg.ClaimedRelays()
	if !claimed["ro_1_01"] || !claimed["ro_1_02"] {
		t.Errorf("expected both relay_up and relay_down claimed, got %v", claimed)
	}
	if claimed["ro_1_03"] {
		t.Error("did not expect an unrelated relay to be claimed")
	}
}

func TestEffectiveRetryLimitUnboundedWhenNil(t *testing.T) {
	var cfg MQTTConfig
	if got := cfg.EffectiveRetryLimit(); got != -1 {
		t.Errorf("expected -1 for a nil retry_limit, got %d", got)
	}

	limit := 5
	cfg.RetryLimit = &limit
	if got := cfg.EffectiveRetryLimit(); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
}

func TestCoverReverseHoldDefault(t *testing.T) {
	c := CoverConfig{}
	if c.ReverseHold() != 500_000_000 {
		t.Errorf("expected the 500ms default, got %v", c.ReverseHold())
	}
}
