package fidcommon

import (
	"github.com/elliotchance/orderedmap/v3"
)

// MetadataMap is a string-keyed, string-valued map that preserves insertion
// order on iteration. Manifests, tool execution contexts, and provider
// requests all carry one; a plain Go map cannot give the ordering guarantee
// the spec requires for deterministic serialization.
type MetadataMap struct {
	m *orderedmap.OrderedMap[string, string]
}

// NewMetadataMap returns an empty metadata map.
func NewMetadataMap() MetadataMap {
	return MetadataMap{m: orderedmap.NewOrderedMap[string, string]()}
}

// Set inserts or updates key. Updating an existing key does not change its
// position in iteration order.
func (m MetadataMap) Set(key, value string) {
	m.m.Set(key, value)
}

// Get returns the value for key and whether it was present.
func (m MetadataMap) Get(key string) (string, bool) {
	return m.m.Get(key)
}

// Delete removes key, if present.
func (m MetadataMap) Delete(key string) {
	m.m.Delete(key)
}

// Len returns the number of entries.
func (m MetadataMap) Len() int {
	return m.m.Len()
}

// Keys returns keys in insertion order.
func (m MetadataMap) Keys() []string {
	return m.m.Keys()
}

// Entries returns (key, value) pairs in insertion order.
func (m MetadataMap) Entries() []MetadataEntry {
	keys := m.m.Keys()
	out := make([]MetadataEntry, 0, len(keys))
	for _, k := range keys {
		v, _ := m.m.Get(k)
		out = append(out, MetadataEntry{Key: k, Value: v})
	}
	return out
}

// MetadataEntry is a single ordered metadata key/value pair, used for
// serialization where a map type would not preserve order.
type MetadataEntry struct {
	Key   string `json:"key" yaml:"key"`
	Value string `json:"value" yaml:"value"`
}

// MetadataFromEntries rebuilds a MetadataMap from its serialized entries,
// preserving the order they were written in.
func MetadataFromEntries(entries []MetadataEntry) MetadataMap {
	m := NewMetadataMap()
	for _, e := range entries {
		m.Set(e.Key, e.Value)
	}
	return m
}

// MarshalJSON renders the map as an ordered array of entries rather than a
// JSON object, since Go's encoding/json does not preserve map key order.
func (m MetadataMap) MarshalJSON() ([]byte, error) {
	return marshalEntries(m.Entries())
}

// UnmarshalJSON restores a MetadataMap from its entry-array form.
func (m *MetadataMap) UnmarshalJSON(data []byte) error {
	entries, err := unmarshalEntries(data)
	if err != nil {
		return err
	}
	*m = MetadataFromEntries(entries)
	return nil
}
