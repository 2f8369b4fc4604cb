package hardware

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"unipid/internal/config"
	"unipid/internal/errs"
)

// LoadBoardDefinition reads <dir>/hardware/neuron/<model>.yaml.
func LoadBoardDefinition(dir, model string) (Definition, error) {
	path := filepath.Join(dir, "hardware", "neuron", model+".yaml")
	return loadDefinition(path)
}

// LoadExtensionDefinition reads <dir>/hardware/extensions/<model>.yaml.
func LoadExtensionDefinition(dir, model string) (Definition, error) {
	path := filepath.Join(dir, "hardware", "extensions", model+".yaml")
	return loadDefinition(path)
}

func loadDefinition(path string) (Definition, error) {
	// #nosec G304 - path is built from config-supplied directory and hardware model names, not arbitrary user input
	data, err := os.ReadFile(path)
	if err != nil {
		return Definition{}, errs.NewHardwareError("load definition", err, path)
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return Definition{}, errs.NewHardwareError("parse definition", err, path)
	}
	return def, nil
}

// Map is the set of loaded board and extension definitions, ready for the
// scanner to build its block list and the feature model to materialize
// features from.
type Map struct {
	Boards     []*Board
	Extensions []*Extension
}

// Load builds the hardware Map for a configuration: the single onboard
// PLC definition for cfg.Hardware.Model plus one extension definition per
// configured RTU extension. The board is bound to unit 1; its firmware is
// filled in later from the scanner's startup probe (§4.3). Load itself
// performs no I/O beyond reading the YAML.
func Load(cfg *config.Config) (*Map, error) {
	boardDef, err := LoadBoardDefinition(cfg.ConfigDir, cfg.Hardware.Model)
	if err != nil {
		return nil, err
	}

	m := &Map{
		Boards: []*Board{{Definition: boardDef, Unit: 1}},
	}

	seenModels := map[string]Definition{}
	for _, ext := range cfg.Modbus.RTU.Extensions {
		def, ok := seenModels[ext.Model]
		if !ok {
			def, err = LoadExtensionDefinition(cfg.ConfigDir, ext.Model)
			if err != nil {
				return nil, err
			}
			seenModels[ext.Model] = def
		}
		m.Extensions = append(m.Extensions, &Extension{
			Definition:   def,
			Unit:         ext.Unit,
			Manufacturer: ext.Manufacturer,
			Model:        ext.Model,
			DeviceName:   ext.DeviceName,
		})
	}
	return m, nil
}

func (e *Extension) String() string {
	return fmt.Sprintf("unit %d (%s %s)", e.Unit, e.Manufacturer, e.Model)
}
