package workflow

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Graph is a workspace graph as the editor saves it: ordered nodes, an
// ordered link table, optional subgraph definitions, and running ID counters.
type Graph struct {
	LastNodeID  int             `json:"last_node_id"`
	LastLinkID  int             `json:"last_link_id"`
	Nodes       NodeList        `json:"nodes"`
	Links       LinkList        `json:"links"`
	Groups      json.RawMessage `json:"groups,omitempty"`
	Definitions *Definitions    `json:"definitions,omitempty"`
	Config      json.RawMessage `json:"config,omitempty"`
	Extra       map[string]any  `json:"extra,omitempty"`
	Version     json.RawMessage `json:"version,omitempty"`
}

// Definitions holds the reusable subgraph definitions referenced by instance
// nodes via their type string.
type Definitions struct {
	Subgraphs []*Subgraph `json:"subgraphs,omitempty"`
}

// Node is a single workspace node. Layout-only fields (pos, size, flags,
// properties) are carried opaquely so a flattened graph can be saved back out.
type Node struct {
	ID            int             `json:"id"`
	Type          string          `json:"type"`
	Title         string          `json:"title,omitempty"`
	Pos           json.RawMessage `json:"pos,omitempty"`
	Size          json.RawMessage `json:"size,omitempty"`
	Flags         json.RawMessage `json:"flags,omitempty"`
	Order         int             `json:"order,omitempty"`
	Mode          int             `json:"mode,omitempty"`
	Inputs        []*Input        `json:"inputs,omitempty"`
	Outputs       []*Output       `json:"outputs,omitempty"`
	Properties    json.RawMessage `json:"properties,omitempty"`
	WidgetsValues json.RawMessage `json:"widgets_values,omitempty"`
	Meta          map[string]any  `json:"_meta,omitempty"`
}

// ModeBypass marks a node the editor has disabled: it passes a same-typed
// input straight through without computing.
const ModeBypass = 4

// Bypassed reports whether the node is flagged disabled/bypassed.
func (n *Node) Bypassed() bool { return n.Mode == ModeBypass }

// Widgets decodes the node's stored positional widget values. The second
// return is false when widgets_values is present but not an array; schemas
// that store named objects there are treated as having no positional values.
func (n *Node) Widgets() ([]any, bool) {
	if len(n.WidgetsValues) == 0 {
		return nil, true
	}
	var vals []any
	if err := json.Unmarshal(n.WidgetsValues, &vals); err != nil {
		return nil, false
	}
	return vals, true
}

// Input is a named connection slot on a node. Link is nil when nothing is
// wired into the slot.
type Input struct {
	Name   string          `json:"name"`
	Type   string          `json:"type,omitempty"`
	Link   *int            `json:"link"`
	Widget json.RawMessage `json:"widget,omitempty"`
}

// Output is a named producer slot on a node; Links lists the IDs of every
// link originating here.
type Output struct {
	Name      string          `json:"name"`
	Type      string          `json:"type,omitempty"`
	Links     IntList         `json:"links"`
	SlotIndex *int            `json:"slot_index,omitempty"`
	Shape     json.RawMessage `json:"shape,omitempty"`
}

// Link is one 6-field link record, serialized as a positional array:
// [id, origin_id, origin_slot, target_id, target_slot, type].
type Link struct {
	ID         int
	OriginID   int
	OriginSlot int
	TargetID   int
	TargetSlot int
	Type       string
}

// MarshalJSON encodes the link in its positional array form.
func (l *Link) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{l.ID, l.OriginID, l.OriginSlot, l.TargetID, l.TargetSlot, l.Type})
}

// UnmarshalJSON decodes the positional array form. Records with fewer than
// six fields are rejected; the containing LinkList drops them.
func (l *Link) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("link must be an array: %w", err)
	}
	if len(raw) < 6 {
		return fmt.Errorf("link record has %d fields, want 6", len(raw))
	}
	ints := []*int{&l.ID, &l.OriginID, &l.OriginSlot, &l.TargetID, &l.TargetSlot}
	for i, dst := range ints {
		if err := json.Unmarshal(raw[i], dst); err != nil {
			return fmt.Errorf("link field %d: %w", i, err)
		}
	}
	l.Type = decodeTypeTag(raw[5])
	return nil
}

// decodeTypeTag tolerates string, number, and null type tags; everything is
// normalized to a string.
func decodeTypeTag(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	return ""
}

// NodeList is an ordered node sequence that silently drops entries which are
// not JSON objects, matching how the editor's own loader behaves.
type NodeList []*Node

// UnmarshalJSON implements the tolerant decode.
func (nl *NodeList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(NodeList, 0, len(raw))
	for _, item := range raw {
		var n Node
		if err := json.Unmarshal(item, &n); err != nil {
			continue
		}
		out = append(out, &n)
	}
	*nl = out
	return nil
}

// LinkList is an ordered link sequence that drops malformed records instead
// of failing the whole document.
type LinkList []*Link

// UnmarshalJSON implements the tolerant decode.
func (ll *LinkList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(LinkList, 0, len(raw))
	for _, item := range raw {
		var l Link
		if err := json.Unmarshal(item, &l); err != nil {
			continue
		}
		out = append(out, &l)
	}
	*ll = out
	return nil
}

// IntList decodes a JSON array keeping only integer entries. Editor files
// occasionally hold nulls in output link lists.
type IntList []int

// UnmarshalJSON implements the tolerant decode.
func (il *IntList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(IntList, 0, len(raw))
	for _, item := range raw {
		var v int
		if err := json.Unmarshal(item, &v); err != nil {
			continue
		}
		out = append(out, v)
	}
	*il = out
	return nil
}

// Subgraph is a reusable subgraph definition. Its body links are stored in
// object form, unlike the top-level positional link table, and its boundary
// inputs/outputs are referenced positionally by instance nodes.
type Subgraph struct {
	ID      string          `json:"id"`
	Name    string          `json:"name,omitempty"`
	Nodes   NodeList        `json:"nodes"`
	Links   []*BodyLink     `json:"links"`
	Inputs  []*BoundarySlot `json:"inputs"`
	Outputs []*BoundarySlot `json:"outputs,omitempty"`
}

// BoundarySlot is one named boundary input or output of a subgraph
// definition. Order within the definition is significant.
type BoundarySlot struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Type string `json:"type,omitempty"`
}

// BodyLink is a link inside a subgraph definition body. Boundary connections
// use the reserved sentinel IDs BoundaryInputID and BoundaryOutputID.
type BodyLink struct {
	ID         int    `json:"id"`
	OriginID   int    `json:"origin_id"`
	OriginSlot int    `json:"origin_slot"`
	TargetID   int    `json:"target_id"`
	TargetSlot int    `json:"target_slot"`
	Type       string `json:"type,omitempty"`
}

// Reserved pseudo-node IDs used inside subgraph definition bodies.
const (
	// BoundaryInputID is the origin of body links fed by a boundary input.
	BoundaryInputID = -10
	// BoundaryOutputID is the target of body links that feed a boundary output.
	BoundaryOutputID = -20
)

// SubgraphDefs returns the definitions keyed by ID. Instance nodes reference
// a definition by using its ID as their type string.
func (g *Graph) SubgraphDefs() map[string]*Subgraph {
	if g.Definitions == nil {
		return nil
	}
	out := make(map[string]*Subgraph, len(g.Definitions.Subgraphs))
	for _, sg := range g.Definitions.Subgraphs {
		if sg != nil && sg.ID != "" {
			out[sg.ID] = sg
		}
	}
	return out
}

// NodeByID returns the node with the given ID, or nil.
func (g *Graph) NodeByID(id int) *Node {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// LinkMap returns the link table keyed by link ID.
func (g *Graph) LinkMap() map[int]*Link {
	out := make(map[int]*Link, len(g.Links))
	for _, l := range g.Links {
		out[l.ID] = l
	}
	return out
}

// NodeMap returns the nodes keyed by ID.
func (g *Graph) NodeMap() map[int]*Node {
	out := make(map[int]*Node, len(g.Nodes))
	for _, n := range g.Nodes {
		out[n.ID] = n
	}
	return out
}

// Clone returns a deep copy of the graph. The model is fully JSON-backed, so
// a marshal round-trip is an exact copy.
func (g *Graph) Clone() *Graph {
	data, err := json.Marshal(g)
	if err != nil {
		// The graph was built from JSON or from plain values; marshaling
		// cannot fail for any value this package produces.
		panic(fmt.Sprintf("workflow: clone marshal: %v", err))
	}
	var out Graph
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("workflow: clone unmarshal: %v", err))
	}
	return &out
}
