package schema

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Spec is one parameter spec from object_info: a JSON array whose head is
// either a type-tag string ("INT", "IMAGE", ...) or a list of enumerated
// choices, optionally followed by an options object (default, min, max,
// tooltip, ...).
type Spec struct {
	// TypeTag is set when the head element is a string.
	TypeTag string
	// Choices is set when the head element is a list.
	Choices []any
	// Options is the second element when it is an object.
	Options map[string]any
	// Widget overrides the structural widget classification. Only manifest
	// loading sets it; object_info decoding leaves it nil.
	Widget *bool

	elems      int
	optsObject bool
}

// NewSpec builds a spec programmatically, as manifest loading does. Pass
// choices for an enumerated parameter, otherwise a type tag; opts may be nil.
func NewSpec(tag string, choices []any, opts map[string]any) *Spec {
	s := &Spec{TypeTag: tag, Choices: choices, Options: opts, elems: 1}
	if opts != nil {
		s.elems = 2
		s.optsObject = true
	}
	return s
}

// UnmarshalJSON decodes the array form.
func (s *Spec) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	s.elems = len(raw)
	if len(raw) == 0 {
		return nil
	}

	var tag string
	if err := json.Unmarshal(raw[0], &tag); err == nil {
		s.TypeTag = tag
	} else {
		var choices []any
		if err := json.Unmarshal(raw[0], &choices); err == nil {
			s.Choices = choices
		}
	}

	if len(raw) >= 2 {
		var opts map[string]any
		if err := json.Unmarshal(raw[1], &opts); err == nil {
			s.Options = opts
			s.optsObject = true
		}
	}
	return nil
}

// MarshalJSON re-encodes the array form.
func (s *Spec) MarshalJSON() ([]byte, error) {
	out := make([]any, 0, 2)
	switch {
	case s.Choices != nil:
		out = append(out, s.Choices)
	default:
		out = append(out, s.TypeTag)
	}
	if s.Options != nil {
		out = append(out, s.Options)
	}
	return json.Marshal(out)
}

// IsWidget reports whether the parameter stores a literal value rather than a
// connection. A bare type tag, or a type tag whose options carry nothing but
// a tooltip, is a connection input; everything else (defaults, ranges,
// enumerated choices) is a widget.
func (s *Spec) IsWidget() bool {
	if s.Widget != nil {
		return *s.Widget
	}
	if s.elems == 0 {
		return false
	}
	if s.elems == 1 && s.TypeTag != "" && s.Choices == nil {
		return false
	}
	if s.elems == 2 && s.TypeTag != "" && s.Choices == nil && s.optsObject {
		if len(s.Options) == 0 {
			return false
		}
		if len(s.Options) == 1 {
			if _, ok := s.Options["tooltip"]; ok {
				return false
			}
		}
	}
	return true
}

// Default returns the schema default for the parameter, or nil.
func (s *Spec) Default() any {
	if s == nil || s.Options == nil {
		return nil
	}
	return s.Options["default"]
}

// Compatible is the coarse structural check used during widget alignment: it
// asks whether a stored value's runtime shape could belong to this slot, not
// whether the value is semantically valid.
func (s *Spec) Compatible(value any) bool {
	if s == nil || s.elems == 0 {
		return true
	}
	if s.Choices != nil {
		for _, c := range s.Choices {
			if looseEqual(value, c) {
				return true
			}
		}
		return false
	}
	switch strings.ToUpper(s.TypeTag) {
	case "INT":
		return isIntLike(value)
	case "FLOAT":
		return isNumberLike(value)
	case "BOOLEAN":
		if _, ok := value.(bool); ok {
			return true
		}
		if n, ok := asFloat(value); ok {
			return n == 0 || n == 1
		}
		return false
	case "STRING":
		_, ok := value.(string)
		return ok
	default:
		return true
	}
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func isIntLike(v any) bool {
	if _, ok := v.(bool); ok {
		return false
	}
	switch n := v.(type) {
	case int, int64:
		return true
	case float64:
		return n == float64(int64(n))
	case float32:
		return float64(n) == float64(int64(n))
	default:
		return false
	}
}

func isNumberLike(v any) bool {
	if _, ok := v.(bool); ok {
		return false
	}
	_, ok := asFloat(v)
	return ok
}

// looseEqual compares JSON-ish scalars, treating all numeric kinds alike.
func looseEqual(a, b any) bool {
	if na, okA := asFloat(a); okA {
		if nb, okB := asFloat(b); okB {
			return na == nb
		}
		return false
	}
	return reflect.DeepEqual(a, b)
}
