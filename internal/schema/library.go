package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrUnknownType is returned when a node type has no entry in the library.
var ErrUnknownType = errors.New("node type not found in schema library")

// Library maps node type names to their schemas. A nil or empty library means
// "no schema supplied"; callers decide whether that skips or fails nodes.
type Library map[string]*NodeInfo

// NodeInfo is the schema of a single node type.
type NodeInfo struct {
	Input       InputDef        `json:"input"`
	Output      json.RawMessage `json:"output,omitempty"`
	OutputName  json.RawMessage `json:"output_name,omitempty"`
	Name        string          `json:"name,omitempty"`
	DisplayName string          `json:"display_name,omitempty"`
	Description string          `json:"description,omitempty"`
	Category    string          `json:"category,omitempty"`
	OutputNode  bool            `json:"output_node,omitempty"`
}

// InputDef groups a node type's parameters by section. Order within each
// section is the declared parameter order and is load-bearing: stored widget
// values are positional.
type InputDef struct {
	Required OrderedSpecs `json:"required,omitempty"`
	Optional OrderedSpecs `json:"optional,omitempty"`
	Hidden   OrderedSpecs `json:"hidden,omitempty"`
}

// NamedSpec is one named parameter with its spec.
type NamedSpec struct {
	Name string
	Spec *Spec
}

// OrderedSpecs preserves the JSON object's key order, which a plain Go map
// would lose.
type OrderedSpecs []NamedSpec

// UnmarshalJSON decodes an object while keeping key order.
func (os *OrderedSpecs) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("input section must be an object")
	}

	out := OrderedSpecs{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected key token %v", keyTok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var s Spec
		if err := json.Unmarshal(raw, &s); err != nil {
			// Not an array: keep the name with a nil spec so ordering holds.
			out = append(out, NamedSpec{Name: key})
			continue
		}
		out = append(out, NamedSpec{Name: key, Spec: &s})
	}
	*os = out
	return nil
}

// MarshalJSON re-encodes the section in declared order.
func (os OrderedSpecs) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ns := range os {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ns.Name)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if ns.Spec == nil {
			buf.WriteString("null")
			continue
		}
		val, err := json.Marshal(ns.Spec)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Get looks up a named spec in the section.
func (os OrderedSpecs) Get(name string) (*Spec, bool) {
	for _, ns := range os {
		if ns.Name == name {
			return ns.Spec, true
		}
	}
	return nil, false
}

// ParseLibrary decodes an object_info document.
func ParseLibrary(data []byte) (Library, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("object_info must be a JSON object: %w", err)
	}
	var lib Library
	if err := json.Unmarshal(data, &lib); err != nil {
		return nil, fmt.Errorf("decoding object_info: %w", err)
	}
	return lib, nil
}

// LoadLibrary reads an object_info JSON file.
func LoadLibrary(path string) (Library, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading object_info file %s: %w", path, err)
	}
	lib, err := ParseLibrary(data)
	if err != nil {
		return nil, fmt.Errorf("parsing object_info file %s: %w", path, err)
	}
	return lib, nil
}

// Has reports whether the type is present.
func (l Library) Has(classType string) bool {
	_, ok := l[classType]
	return ok
}

// WidgetNames returns the declared widget-parameter names of a type, in
// section order (required before optional). Connection-style inputs are
// excluded; see Spec.IsWidget for the classification.
func (l Library) WidgetNames(classType string) ([]string, error) {
	info, ok := l[classType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, classType)
	}
	var names []string
	for _, section := range []OrderedSpecs{info.Input.Required, info.Input.Optional} {
		for _, ns := range section {
			if ns.Spec != nil && ns.Spec.IsWidget() {
				names = append(names, ns.Name)
			}
		}
	}
	return names, nil
}

// WidgetSpec returns the spec of a named parameter, searching required then
// optional. Nil when the type or name is unknown.
func (l Library) WidgetSpec(classType, name string) *Spec {
	info, ok := l[classType]
	if !ok {
		return nil
	}
	if s, ok := info.Input.Required.Get(name); ok {
		return s
	}
	if s, ok := info.Input.Optional.Get(name); ok {
		return s
	}
	return nil
}

// Merge overlays other onto l, replacing whole type entries on collision.
// Manifest-supplied types win over fetched ones.
func (l Library) Merge(other Library) Library {
	if len(other) == 0 {
		return l
	}
	out := make(Library, len(l)+len(other))
	for k, v := range l {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}
