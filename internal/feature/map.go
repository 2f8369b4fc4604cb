package feature

// Map holds every feature built from the hardware definitions, in
// definition order (board index, then feature-template order, then bit
// index ascending) — the order discovery publishes features in (§4.2).
type Map struct {
	ordered []*Feature
	byID    map[string]*Feature
}

func NewMap() *Map {
	return &Map{byID: make(map[string]*Feature)}
}

// Add appends f, assigning it the next definition-order index. f must
// already have its Cache field set.
func (m *Map) Add(f *Feature) {
	f.order = len(m.ordered)
	m.ordered = append(m.ordered, f)
	m.byID[f.ObjectID] = f
}

// ByKinds returns every feature whose Kind is in kinds, in definition
// order.
func (m *Map) ByKinds(kinds ...Kind) []*Feature {
	want := make(map[Kind]bool, len(kinds))
	for _, k := range kinds {
		want[k] = true
	}
	var out []*Feature
	for _, f := range m.ordered {
		if want[f.Kind] {
			out = append(out, f)
		}
	}
	return out
}

// All returns every feature in definition order.
func (m *Map) All() []*Feature {
	return append([]*Feature(nil), m.ordered...)
}

// Lookup finds a feature by its object_id.
func (m *Map) Lookup(objectID string) (*Feature, bool) {
	f, ok := m.byID[objectID]
	return f, ok
}
