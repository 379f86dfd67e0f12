package catalog

import (
	"encoding/json"
	"sort"

	"github.com/diogo464/sonar-sub000/internal/shared"
)

const (
	propertyKeyMaxLength   = 64
	propertyValueMaxLength = 128
)

// PropertyKey is a lower case ascii string of at most 64 bytes. Only the
// characters `a-z`, `0-9`, `-`, `_`, `/` and `.` are allowed.
type PropertyKey string

// ParsePropertyKey validates s as a property key.
func ParsePropertyKey(s string) (PropertyKey, error) {
	if len(s) == 0 {
		return "", shared.Invalidf("property key is empty")
	}
	if len(s) > propertyKeyMaxLength {
		return "", shared.Invalidf("property key %q is too long", s)
	}
	for i := 0; i < len(s); i++ {
		if !isPropertyKeyChar(s[i]) {
			return "", shared.Invalidf("property key %q contains invalid characters", s)
		}
	}
	return PropertyKey(s), nil
}

func isPropertyKeyChar(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= '0' && c <= '9' ||
		c == '-' || c == '_' || c == '/' || c == '.'
}

func (k PropertyKey) String() string { return string(k) }

// PropertyValue is a printable ascii string of at most 128 bytes.
type PropertyValue string

// ParsePropertyValue validates s as a property value.
func ParsePropertyValue(s string) (PropertyValue, error) {
	if len(s) > propertyValueMaxLength {
		return "", shared.Invalidf("property value %q is too long", s)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < 0x20 || s[i] > 0x7e {
			return "", shared.Invalidf("property value %q is not printable ascii", s)
		}
	}
	return PropertyValue(s), nil
}

func (v PropertyValue) String() string { return string(v) }

// Properties is a key to value attribute map attached to an entity. Entries
// survive a round trip through the wire format.
type Properties map[PropertyKey]PropertyValue

// Clone returns a copy of p.
func (p Properties) Clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

// Keys returns the keys of p in sorted order.
func (p Properties) Keys() []PropertyKey {
	keys := make([]PropertyKey, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// MergeProperties merges two property maps, keeping the primary value where
// a key is present in both.
func MergeProperties(primary, secondary Properties) Properties {
	merged := secondary.Clone()
	for k, v := range primary {
		merged[k] = v
	}
	return merged
}

// Serialize encodes p for storage or the wire.
func (p Properties) Serialize() ([]byte, error) {
	return json.Marshal(p)
}

// DeserializeProperties decodes a map previously encoded with Serialize. A
// nil or empty input yields an empty map.
func DeserializeProperties(data []byte) (Properties, error) {
	if len(data) == 0 {
		return Properties{}, nil
	}
	var p Properties
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, shared.Invalidf("malformed properties: %v", err)
	}
	return p, nil
}

// PropertyUpdateAction selects what a [PropertyUpdate] does to its key.
type PropertyUpdateAction int

const (
	PropertyActionSet PropertyUpdateAction = iota
	PropertyActionRemove
)

// PropertyUpdate inserts or removes a single property entry.
type PropertyUpdate struct {
	Key    PropertyKey
	Action PropertyUpdateAction
	Value  PropertyValue
}

// PropertySet returns an update that sets key to value.
func PropertySet(key PropertyKey, value PropertyValue) PropertyUpdate {
	return PropertyUpdate{Key: key, Action: PropertyActionSet, Value: value}
}

// PropertyRemove returns an update that removes key.
func PropertyRemove(key PropertyKey) PropertyUpdate {
	return PropertyUpdate{Key: key, Action: PropertyActionRemove}
}

// ApplyUpdates applies each update to p in order.
func (p Properties) ApplyUpdates(updates []PropertyUpdate) {
	for _, update := range updates {
		switch update.Action {
		case PropertyActionSet:
			p[update.Key] = update.Value
		case PropertyActionRemove:
			delete(p, update.Key)
		}
	}
}

// PropertyUpdatesFor derives the update list that transforms current into
// wanted: keys missing from wanted are removed, the rest are set.
func PropertyUpdatesFor(current, wanted Properties) []PropertyUpdate {
	var updates []PropertyUpdate
	for _, k := range current.Keys() {
		if _, ok := wanted[k]; !ok {
			updates = append(updates, PropertyRemove(k))
		}
	}
	for _, k := range wanted.Keys() {
		if current[k] != wanted[k] {
			updates = append(updates, PropertySet(k, wanted[k]))
		}
	}
	return updates
}
