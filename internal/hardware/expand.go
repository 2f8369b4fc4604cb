package hardware

import (
	"fmt"

	"unipid/internal/feature"
	"unipid/internal/regcache"
)

// BlockJob binds one declared register block to the concrete unit it
// belongs to, for the scanner to poll.
type BlockJob struct {
	Unit  uint8
	Block RegisterBlock
}

// Jobs returns every register block for the given bus across all loaded
// boards and extensions, bound to their unit.
func (m *Map) Jobs(bus Bus) []BlockJob {
	var jobs []BlockJob
	for _, b := range m.Boards {
		for _, blk := range b.Definition.RegisterBlocks {
			if blk.Bus == bus {
				jobs = append(jobs, BlockJob{Unit: b.Unit, Block: blk})
			}
		}
	}
	for _, e := range m.Extensions {
		for _, blk := range e.Definition.RegisterBlocks {
			if blk.Bus == bus {
				jobs = append(jobs, BlockJob{Unit: e.Unit, Block: blk})
			}
		}
	}
	return jobs
}

// ExpandFeatures multiplies every board's and extension's feature
// templates into concrete feature.Feature values, in board order then
// template order then bit index (§4.2's definition order), skipping RO
// features claimed by a cover (data model invariant 5).
func (m *Map) ExpandFeatures(cache *regcache.Cache, claimedRelays map[string]bool) *feature.Map {
	fm := feature.NewMap()

	for _, b := range m.Boards {
		bus := string(BusTCP)
		for _, tmpl := range b.Definition.FeatureTemplates {
			expandTemplate(fm, tmpl, bus, b.Unit, b.Firmware, claimedRelays, cache)
		}
	}
	for _, e := range m.Extensions {
		bus := string(BusRTU)
		for _, tmpl := range e.Definition.FeatureTemplates {
			expandTemplate(fm, tmpl, bus, e.Unit, e.Firmware, claimedRelays, cache)
		}
	}
	return fm
}

func expandTemplate(fm *feature.Map, tmpl FeatureTemplate, bus string, unit uint8, firmware string, claimedRelays map[string]bool, cache *regcache.Cache) {
	stride := tmpl.FloatAddressStride
	if stride == 0 {
		stride = 2
	}
	for i := 0; i < tmpl.Count; i++ {
		objectID := fmt.Sprintf(tmpl.ObjectIDPattern, i+1)
		if (tmpl.Kind == feature.KindDO || tmpl.Kind == feature.KindRO) && claimedRelays[objectID] {
			continue
		}

		f := &feature.Feature{
			ObjectID:          objectID,
			Kind:              tmpl.Kind,
			Bus:               bus,
			Unit:              unit,
			FriendlyName:      fmt.Sprintf(tmpl.FriendlyNamePattern, i+1),
			DeviceClass:       tmpl.DeviceClass,
			Icon:              tmpl.Icon,
			InvertState:       tmpl.InvertState,
			SWVersion:         firmware,
			ValueAddress:      tmpl.ValueAddress,
			BitIndex:          uint16(i),
			CoilAddress:       tmpl.CoilAddress + uint16(i),
			FloatAddress:      tmpl.ValueAddress + uint16(i)*stride,
			UnitOfMeasurement: tmpl.UnitOfMeasurement,
			StateClass:        tmpl.StateClass,
			Precision:         tmpl.Precision,
			Cache:             cache,
		}
		fm.Add(f)
	}
}
