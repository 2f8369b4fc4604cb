// Package hardware loads the board and extension YAML definitions and
// expands their feature templates into concrete feature.Feature values.
// It performs no I/O beyond the initial load (§4.4): everything it
// exposes afterward is a deterministic function of the definitions and
// the runtime unit/firmware values it was given.
package hardware

import "unipid/internal/feature"

type Bus string

const (
	BusTCP Bus = "tcp"
	BusRTU Bus = "rtu"
)

type RegisterKind string

const (
	KindInput   RegisterKind = "input"
	KindHolding RegisterKind = "holding"
	KindCoil    RegisterKind = "coil"
)

// RegisterBlock is a contiguous range read atomically from one unit
// (data model §3). A block carries no unit of its own: Map.Jobs binds it
// to the unit of the board or extension it belongs to (RTU extensions
// share one definition file across many configured units).
type RegisterBlock struct {
	Bus          Bus          `yaml:"bus"`
	StartAddress uint16       `yaml:"start_address"`
	Count        uint16       `yaml:"count"`
	Kind         RegisterKind `yaml:"kind"`
}

// FeatureTemplate expands into Count concrete Feature instances,
// multiplying over a pattern for object_id/friendly_name (§4.4).
type FeatureTemplate struct {
	Kind                feature.Kind `yaml:"kind"`
	Count               int          `yaml:"count"`
	ValueAddress        uint16       `yaml:"value_address"`
	CoilAddress         uint16       `yaml:"coil_address"`
	FloatAddressStride  uint16       `yaml:"float_address_stride"`
	ObjectIDPattern     string       `yaml:"object_id_pattern"`
	FriendlyNamePattern string       `yaml:"friendly_name_pattern"`
	DeviceClass         string       `yaml:"device_class"`
	Icon                string       `yaml:"icon"`
	UnitOfMeasurement   string       `yaml:"unit_of_measurement"`
	StateClass          string       `yaml:"state_class"`
	Precision           int          `yaml:"precision"`
	InvertState         bool         `yaml:"invert_state"`
}

// Definition is one board or extension YAML document.
type Definition struct {
	Name             string            `yaml:"name"`
	RegisterBlocks   []RegisterBlock   `yaml:"register_blocks"`
	FeatureTemplates []FeatureTemplate `yaml:"feature_templates"`
}

// Board is a loaded, TCP-resident PLC board: a Definition plus its unit
// and the firmware read by the scanner's startup probe (§4.3).
type Board struct {
	Definition Definition
	Unit       uint8
	Firmware   string
}

// Extension is a loaded RTU device, combining its definition with the
// configured unit/manufacturer/model/device_name and any firmware the
// probe managed to read.
type Extension struct {
	Definition   Definition
	Unit         uint8
	Manufacturer string
	Model        string
	DeviceName   string
	Firmware     string
}
