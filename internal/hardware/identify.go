package hardware

import (
	"fmt"
	"os"

	"unipid/internal/errs"
)

// eepromPath is one candidate I2C sysfs EEPROM, with the byte offsets the
// original Python reads the hardware version and serial from
// (config.py's HardwareInfo.__post_init__). Unipi 1.x boards use a
// different offset pair than Neuron/Patron.
type eepromPath struct {
	path          string
	versionOffset int // 2 bytes, big-endian major/minor
	serialOffset  int // 4 bytes following the version
}

var eepromCandidates = []eepromPath{
	{"/sys/bus/i2c/devices/1-0050/eeprom", 226, 228},
	{"/sys/bus/i2c/devices/2-0057/eeprom", 98, 100},
	{"/sys/bus/i2c/devices/1-0057/eeprom", 98, 100},
	{"/sys/bus/i2c/devices/0-0057/eeprom", 98, 100},
}

// Identity is the hardware version and serial read from the first EEPROM
// that responds (§6). Identify leaves Model empty: it does not map the
// version to a model name.
type Identity struct {
	Model   string
	Version string
	Serial  uint32
}

// Identify probes the sysfs EEPROM candidates in order and returns the
// first one that yields a plausible version byte pair. It does not map
// the raw version to a model name file directly — that mapping lives in
// control.yaml's hardware.model, matching §6's description of EEPROM
// identification as "a precondition to selecting the hardware definition
// file" rather than the sole source of it.
func Identify() (*Identity, error) {
	var lastErr error
	for _, c := range eepromCandidates {
		id, err := readEEPROM(c)
		if err == nil {
			return id, nil
		}
		lastErr = err
	}
	return nil, errs.NewHardwareError("identify", fmt.Errorf("no EEPROM responded: %w", lastErr), "")
}

func readEEPROM(c eepromPath) (*Identity, error) {
	// #nosec G304 - path is one of a fixed, hardcoded list of sysfs EEPROM locations
	data, err := os.ReadFile(c.path)
	if err != nil {
		return nil, err
	}
	if len(data) < c.serialOffset+4 {
		return nil, fmt.Errorf("%s: eeprom too short (%d bytes)", c.path, len(data))
	}

	major := data[c.versionOffset]
	minor := data[c.versionOffset+1]
	serial := uint32(data[c.serialOffset])<<24 |
		uint32(data[c.serialOffset+1])<<16 |
		uint32(data[c.serialOffset+2])<<8 |
		uint32(data[c.serialOffset+3])

	return &Identity{
		Version: fmt.Sprintf("%d.%d", major, minor),
		Serial:  serial,
	}, nil
}
