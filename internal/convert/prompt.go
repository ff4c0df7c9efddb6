package convert

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"lukechampine.com/blake3"
)

// PromptNode is one entry of the compiled payload.
type PromptNode struct {
	ClassType string
	Inputs    map[string]any
	// Meta carries display metadata (e.g. the node title) when conversion is
	// asked to preserve it.
	Meta map[string]any
	// Extra holds any additional top-level keys, mostly ones introduced by
	// metadata patch directives.
	Extra map[string]any
}

// MarshalJSON keeps a stable key layout: class_type, inputs, _meta, then any
// extra keys in sorted order.
func (n *PromptNode) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')

	writeField := func(key string, value any) error {
		if buf.Len() > 1 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(key)
		if err != nil {
			return err
		}
		v, err := json.Marshal(value)
		if err != nil {
			return err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if err := writeField("class_type", n.ClassType); err != nil {
		return nil, err
	}
	inputs := n.Inputs
	if inputs == nil {
		inputs = map[string]any{}
	}
	if err := writeField("inputs", inputs); err != nil {
		return nil, err
	}
	if len(n.Meta) > 0 {
		if err := writeField("_meta", n.Meta); err != nil {
			return nil, err
		}
	}
	extraKeys := make([]string, 0, len(n.Extra))
	for k := range n.Extra {
		extraKeys = append(extraKeys, k)
	}
	sort.Strings(extraKeys)
	for _, k := range extraKeys {
		if err := writeField(k, n.Extra[k]); err != nil {
			return nil, err
		}
	}

	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON routes unknown keys into Extra.
func (n *PromptNode) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = PromptNode{}
	for k, v := range raw {
		switch k {
		case "class_type":
			if err := json.Unmarshal(v, &n.ClassType); err != nil {
				return fmt.Errorf("class_type: %w", err)
			}
		case "inputs":
			if err := json.Unmarshal(v, &n.Inputs); err != nil {
				return fmt.Errorf("inputs: %w", err)
			}
		case "_meta":
			if err := json.Unmarshal(v, &n.Meta); err != nil {
				return fmt.Errorf("_meta: %w", err)
			}
		default:
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			if n.Extra == nil {
				n.Extra = map[string]any{}
			}
			n.Extra[k] = val
		}
	}
	return nil
}

// Prompt is the compiled payload: node IDs (decimal strings) mapped to prompt
// nodes, in graph order. Go maps would shuffle the IDs on every marshal, so
// the order is kept explicitly.
type Prompt struct {
	order []string
	nodes map[string]*PromptNode
}

// NewPrompt returns an empty payload.
func NewPrompt() *Prompt {
	return &Prompt{nodes: map[string]*PromptNode{}}
}

// Set adds or replaces a node, appending new IDs to the order.
func (p *Prompt) Set(id string, node *PromptNode) {
	if _, ok := p.nodes[id]; !ok {
		p.order = append(p.order, id)
	}
	p.nodes[id] = node
}

// Get returns the node for an ID, or nil.
func (p *Prompt) Get(id string) *PromptNode {
	return p.nodes[id]
}

// Len returns the number of nodes.
func (p *Prompt) Len() int { return len(p.nodes) }

// IDs returns the node IDs in payload order.
func (p *Prompt) IDs() []string {
	out := make([]string, len(p.order))
	copy(out, p.order)
	return out
}

// MarshalJSON writes the nodes in payload order.
func (p *Prompt) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, id := range p.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(id)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(p.nodes[id])
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads an existing payload, preserving its document order.
func (p *Prompt) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("prompt payload must be a JSON object")
	}

	p.order = nil
	p.nodes = map[string]*PromptNode{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		id, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("prompt payload key is not a string")
		}
		var node PromptNode
		if err := dec.Decode(&node); err != nil {
			return fmt.Errorf("prompt node %s: %w", id, err)
		}
		p.Set(id, &node)
	}
	return nil
}

// Save writes the payload as indented JSON, creating parent directories.
func (p *Prompt) Save(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating output directory %s: %w", dir, err)
		}
	}
	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding prompt payload: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing prompt payload: %w", err)
	}
	return nil
}

// Fingerprint hashes a canonical form of the payload: node IDs sorted
// numerically so two payloads with the same content but different insertion
// order fingerprint identically.
func (p *Prompt) Fingerprint() (string, error) {
	ids := p.IDs()
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil {
			return a < b
		}
		if (errA == nil) != (errB == nil) {
			return errA == nil
		}
		return ids[i] < ids[j]
	})

	canonical := Prompt{nodes: p.nodes, order: ids}
	data, err := json.Marshal(&canonical)
	if err != nil {
		return "", fmt.Errorf("encoding canonical payload: %w", err)
	}
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:]), nil
}
