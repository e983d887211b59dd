package types

import (
	"encoding/json"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// AutoKey is the synthetic key pointing at the multivariant manifest itself.
const AutoKey = "auto"

// AutoLabel is the label of the AutoKey entry.
const AutoLabel = "Auto"

// QualityEntry is one key/value pair of a QualityMap.
type QualityEntry struct {
	Key     string
	Quality Quality
}

// QualityMap maps quality keys to variants and keeps insertion order.
// Setting an existing key replaces its value in place.
type QualityMap struct {
	m *orderedmap.OrderedMap[string, Quality]
}

// NewQualityMap returns an empty map.
func NewQualityMap() *QualityMap {
	return &QualityMap{m: orderedmap.New[string, Quality]()}
}

// NewAutoQualityMap returns a map seeded with the auto entry for manifestURL.
func NewAutoQualityMap(manifestURL string) *QualityMap {
	qm := NewQualityMap()
	qm.Set(AutoKey, Quality{Label: AutoLabel, URL: manifestURL})
	return qm
}

// Set inserts or overwrites key.
func (q *QualityMap) Set(key string, quality Quality) {
	q.m.Set(key, quality)
}

// Get returns the quality stored under key.
func (q *QualityMap) Get(key string) (Quality, bool) {
	return q.m.Get(key)
}

// Len returns the number of entries.
func (q *QualityMap) Len() int {
	if q == nil || q.m == nil {
		return 0
	}
	return q.m.Len()
}

// Keys returns the keys in insertion order.
func (q *QualityMap) Keys() []string {
	keys := make([]string, 0, q.Len())
	for _, e := range q.Entries() {
		keys = append(keys, e.Key)
	}
	return keys
}

// Entries returns a snapshot of all entries in insertion order.
func (q *QualityMap) Entries() []QualityEntry {
	if q.Len() == 0 {
		return nil
	}
	entries := make([]QualityEntry, 0, q.m.Len())
	for pair := q.m.Oldest(); pair != nil; pair = pair.Next() {
		entries = append(entries, QualityEntry{Key: pair.Key, Quality: pair.Value})
	}
	return entries
}

// First returns the oldest entry.
func (q *QualityMap) First() (QualityEntry, bool) {
	if q.Len() == 0 {
		return QualityEntry{}, false
	}
	pair := q.m.Oldest()
	return QualityEntry{Key: pair.Key, Quality: pair.Value}, true
}

// Best returns the first discovered variant, skipping the auto entry.
// Upstream manifests list the source quality first.
func (q *QualityMap) Best() (QualityEntry, bool) {
	for _, e := range q.Entries() {
		if e.Key != AutoKey {
			return e, true
		}
	}
	return QualityEntry{}, false
}

// MarshalJSON encodes the map as a JSON object in insertion order.
func (q *QualityMap) MarshalJSON() ([]byte, error) {
	if q == nil || q.m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(q.m)
}

// UnmarshalJSON decodes a JSON object keeping key order.
func (q *QualityMap) UnmarshalJSON(data []byte) error {
	m := orderedmap.New[string, Quality]()
	if err := json.Unmarshal(data, m); err != nil {
		return err
	}
	q.m = m
	return nil
}
