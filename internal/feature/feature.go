// Package feature implements the tagged-variant feature model: one
// Feature struct covering DI/DO/RO/LED/METER, per DESIGN NOTES §9
// ("avoid deep hierarchies"), instead of a base type with per-kind
// embedding the way the teacher's ModbusStrategy hierarchy does it.
package feature

import (
	"fmt"
	"strings"
	"sync"

	"unipid/internal/regcache"
)

type Kind string

const (
	KindDI    Kind = "DI"
	KindDO    Kind = "DO"
	KindRO    Kind = "RO"
	KindLED   Kind = "LED"
	KindMeter Kind = "METER"
)

// IsOutput reports whether the kind accepts SetState.
func (k Kind) IsOutput() bool { return k == KindDO || k == KindRO || k == KindLED }

// HAComponent maps a feature kind to its Home Assistant discovery
// component, per spec §4.7's table.
func (k Kind) HAComponent() string {
	switch k {
	case KindDI:
		return "binary_sensor"
	case KindDO, KindRO:
		return "switch"
	case KindMeter:
		return "sensor"
	default:
		return ""
	}
}

// Feature is a single user-visible I/O point. Bit-kind fields apply to
// DI/DO/RO/LED; meter-kind fields apply to METER only.
type Feature struct {
	ObjectID      string
	Kind          Kind
	Bus           string
	Unit          uint8
	FriendlyName  string
	SuggestedArea string
	DeviceClass   string
	Icon          string
	InvertState   bool
	SWVersion     string

	// bit-kind addressing
	ValueAddress uint16
	BitIndex     uint16
	CoilAddress  uint16 // DO/RO/LED only

	// meter-kind addressing and presentation
	FloatAddress     uint16
	UnitOfMeasurement string
	StateClass        string
	Precision         int

	order int // definition order: board index, template order, bit index

	Cache *regcache.Cache

	mu          sync.Mutex
	lastPayload string
	havePayload bool
}

// Topic returns <device>/<kind>/<object_id> per the data model.
func (f *Feature) Topic(device string) string {
	return fmt.Sprintf("%s/%s/%s", device, topicKind(f.Kind), f.ObjectID)
}

func topicKind(k Kind) string {
	switch k {
	case KindDI:
		return "input"
	case KindDO, KindRO, KindLED:
		return "relay"
	case KindMeter:
		return "meter"
	default:
		return strings.ToLower(string(k))
	}
}

// Order reports this feature's position in definition order (board index,
// then feature-template order, then bit index ascending), as assigned by
// Map.Add. Map.ByKinds and Map.All return features in this same order.
func (f *Feature) Order() int { return f.order }

// BoolValue reads the bit through the cache, applying InvertState.
func (f *Feature) BoolValue() bool {
	raw := f.Cache.Bit(f.Bus, f.Unit, f.ValueAddress, f.BitIndex)
	if f.InvertState {
		return !raw
	}
	return raw
}

// FloatValue reads the meter's register pair through the cache.
func (f *Feature) FloatValue() float32 {
	return f.Cache.Float32(f.Bus, f.Unit, f.FloatAddress)
}

// Payload renders the feature's current logical value for the bus.
func (f *Feature) Payload() string {
	if f.Kind == KindMeter {
		precision := f.Precision
		if precision == 0 {
			precision = 2
		}
		return fmt.Sprintf("%.*f", precision, f.FloatValue())
	}
	if f.BoolValue() {
		return "ON"
	}
	return "OFF"
}

// Changed reports whether Payload() differs from the value last observed
// by a publisher. It does not clear the flag; call MarkPublished after a
// successful publish.
func (f *Feature) Changed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.havePayload {
		return true
	}
	return f.Payload() != f.lastPayload
}

// MarkPublished records the payload just published so future Changed()
// calls compare against it.
func (f *Feature) MarkPublished() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastPayload = f.Payload()
	f.havePayload = true
}

// SetState writes the coil for an output feature. Idempotent: a request
// matching the currently observed state performs no bus write. The
// caller (scanner, via its write channel) is responsible for issuing the
// write; SetState only decides whether one is needed and renders the
// target bit.
func (f *Feature) SetState(on bool) (write bool, coilValue bool) {
	if !f.Kind.IsOutput() {
		return false, false
	}
	target := on
	if f.InvertState {
		target = !on
	}
	if f.BoolValue() == on {
		return false, target
	}
	return true, target
}

// PayloadOnOff returns the ON/OFF strings to advertise in discovery,
// swapped when InvertState is set (spec §4.7).
func (f *Feature) PayloadOnOff() (onPayload, offPayload string) {
	if f.InvertState {
		return "OFF", "ON"
	}
	return "ON", "OFF"
}
