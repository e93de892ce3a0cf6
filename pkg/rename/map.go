package rename

// Pair is one ReplacementMap entry.
type Pair struct {
	Original  string `json:"original" toon:"original"`
	Synthetic string `json:"synthetic" toon:"synthetic"`
}

// Map is an insertion-ordered mapping from original identifiers to synthetic
// names. Values are unique and the map never shrinks.
type Map struct {
	pairs  []Pair
	index  map[string]int
	values map[string]struct{}
}

// NewMap returns an empty map.
func NewMap() *Map {
	return &Map{index: make(map[string]int), values: make(map[string]struct{})}
}

// Lookup returns the synthetic name for original.
func (m *Map) Lookup(original string) (string, bool) {
	i, ok := m.index[original]
	if !ok {
		return "", false
	}
	return m.pairs[i].Synthetic, true
}

// HasSynthetic reports whether name is already used as a value.
func (m *Map) HasSynthetic(name string) bool {
	_, ok := m.values[name]
	return ok
}

// Len returns the number of entries.
func (m *Map) Len() int {
	return len(m.pairs)
}

// Pairs returns a copy of the entries in insertion order.
func (m *Map) Pairs() []Pair {
	out := make([]Pair, len(m.pairs))
	copy(out, m.pairs)
	return out
}

// Originals returns the original identifiers in insertion order.
func (m *Map) Originals() []string {
	out := make([]string, len(m.pairs))
	for i, p := range m.pairs {
		out[i] = p.Original
	}
	return out
}

func (m *Map) add(original, synthetic string) error {
	if _, ok := m.index[original]; ok {
		return &InvariantError{Subject: original, Detail: "is already mapped"}
	}
	if _, ok := m.values[synthetic]; ok {
		return &InvariantError{Subject: synthetic, Detail: "is already used as a synthetic name"}
	}
	m.index[original] = len(m.pairs)
	m.values[synthetic] = struct{}{}
	m.pairs = append(m.pairs, Pair{Original: original, Synthetic: synthetic})
	return nil
}
