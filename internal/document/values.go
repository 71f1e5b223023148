package document

// Map is a mapping value that remembers declaration order. YAML mappings are
// decoded into it instead of a plain map so stages that care about order
// (matrix variable enumeration, job naming) stay deterministic.
type Map struct {
	keys   []string
	values map[string]any
}

// NewMap returns an empty ordered mapping.
func NewMap() *Map {
	return &Map{values: map[string]any{}}
}

// Set appends the key (or overwrites its value, keeping the original
// position).
func (m *Map) Set(key string, value any) {
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = value
}

// Get returns the value for key and whether it is present.
func (m *Map) Get(key string) (any, bool) {
	v, ok := m.values[key]
	return v, ok
}

// Keys returns the keys in declaration order. The returned slice is shared;
// callers must not modify it.
func (m *Map) Keys() []string {
	return m.keys
}

// Len returns the number of keys.
func (m *Map) Len() int {
	return len(m.keys)
}
