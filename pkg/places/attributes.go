package places

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/elliotchance/orderedmap/v2"
	"github.com/goccy/go-yaml"
)

// Attributes is an ordered string-keyed bag of arbitrary values. It keeps
// insertion order through JSON and YAML round trips. A nil *Attributes
// behaves like an empty bag for every read method.
type Attributes struct {
	m *orderedmap.OrderedMap[string, any]
}

// NewAttributes returns an empty bag.
func NewAttributes() *Attributes {
	return &Attributes{m: orderedmap.NewOrderedMap[string, any]()}
}

// AttributesFromMap builds a bag from m with keys in sorted order.
func AttributesFromMap(m map[string]any) *Attributes {
	a := NewAttributes()
	for _, k := range sortedKeys(m) {
		a.Set(k, m[k])
	}
	return a
}

func (a *Attributes) init() {
	if a.m == nil {
		a.m = orderedmap.NewOrderedMap[string, any]()
	}
}

// Set stores value under key. An existing key keeps its position.
func (a *Attributes) Set(key string, value any) {
	a.init()
	a.m.Set(key, value)
}

// Get returns the value stored under key.
func (a *Attributes) Get(key string) (any, bool) {
	if a == nil || a.m == nil {
		return nil, false
	}
	return a.m.Get(key)
}

// Delete removes key and reports whether it was present.
func (a *Attributes) Delete(key string) bool {
	if a == nil || a.m == nil {
		return false
	}
	return a.m.Delete(key)
}

// Len returns the number of keys.
func (a *Attributes) Len() int {
	if a == nil || a.m == nil {
		return 0
	}
	return a.m.Len()
}

// Keys returns the keys in insertion order.
func (a *Attributes) Keys() []string {
	if a == nil || a.m == nil {
		return nil
	}
	return a.m.Keys()
}

// Range calls fn for each entry in order until fn returns false.
func (a *Attributes) Range(fn func(key string, value any) bool) {
	if a == nil || a.m == nil {
		return
	}
	for el := a.m.Front(); el != nil; el = el.Next() {
		if !fn(el.Key, el.Value) {
			return
		}
	}
}

// Clone returns a shallow copy preserving order.
func (a *Attributes) Clone() *Attributes {
	if a == nil {
		return nil
	}
	c := NewAttributes()
	a.Range(func(k string, v any) bool {
		c.Set(k, v)
		return true
	})
	return c
}

// Map returns the entries as a plain map.
func (a *Attributes) Map() map[string]any {
	out := make(map[string]any, a.Len())
	a.Range(func(k string, v any) bool {
		out[k] = v
		return true
	})
	return out
}

// MarshalJSON writes the entries as an object in insertion order.
func (a *Attributes) MarshalJSON() ([]byte, error) {
	if a == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	i := 0
	var err error
	a.Range(func(k string, v any) bool {
		if i > 0 {
			buf.WriteByte(',')
		}
		i++
		var kb, vb []byte
		if kb, err = json.Marshal(k); err != nil {
			return false
		}
		if vb, err = json.Marshal(v); err != nil {
			err = fmt.Errorf("attribute %q: %w", k, err)
			return false
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
		return true
	})
	if err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object, keeping the order of its top-level keys.
func (a *Attributes) UnmarshalJSON(data []byte) error {
	a.m = orderedmap.NewOrderedMap[string, any]()

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("attributes: expected object, got %v", tok)
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("attributes: expected key, got %v", tok)
		}
		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("attribute %q: %w", key, err)
		}
		a.m.Set(key, value)
	}
	_, err = dec.Token()
	return err
}

// MarshalYAML writes the entries as an ordered mapping.
func (a *Attributes) MarshalYAML() (any, error) {
	slice := make(yaml.MapSlice, 0, a.Len())
	a.Range(func(k string, v any) bool {
		slice = append(slice, yaml.MapItem{Key: k, Value: v})
		return true
	})
	return slice, nil
}

// UnmarshalYAML reads an ordered mapping.
func (a *Attributes) UnmarshalYAML(unmarshal func(any) error) error {
	var slice yaml.MapSlice
	if err := unmarshal(&slice); err != nil {
		return err
	}
	a.m = orderedmap.NewOrderedMap[string, any]()
	for _, item := range slice {
		a.m.Set(fmt.Sprint(item.Key), item.Value)
	}
	return nil
}
