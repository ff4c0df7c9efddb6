package convert

import (
	"fmt"
	"strconv"

	"github.com/chrisdreid/autoflow/internal/workflow"
)

// nodeKind classifies origin nodes during link resolution. The set is closed:
// every kind has a short, total resolution rule, and ordinary covers all
// functional node types.
type nodeKind uint8

const (
	kindOrdinary nodeKind = iota
	// kindReroute is a pure pass-through; resolution follows its input.
	kindReroute
	// kindPrimitive holds a literal in its first widget slot.
	kindPrimitive
	// kindNote is an annotation; a link from one resolves to no value.
	kindNote
)

func kindOf(nodeType string) nodeKind {
	switch nodeType {
	case "Reroute":
		return kindReroute
	case "PrimitiveNode":
		return kindPrimitive
	case "Note":
		return kindNote
	default:
		return kindOrdinary
	}
}

// resolver walks the flattened graph's link table.
type resolver struct {
	links map[int]*workflow.Link
	nodes map[int]*workflow.Node
}

func newResolver(g *workflow.Graph) *resolver {
	return &resolver{links: g.LinkMap(), nodes: g.NodeMap()}
}

// throughBypassed follows a link upstream past any chain of bypassed nodes,
// returning the first origin that is not bypassed. A bypassed node forwards
// the first of its inputs whose declared type matches the link being
// resolved; a chain with no such input, or one that loops, stops where it is.
func (r *resolver) throughBypassed(linkID int, wantType string) (originID, originSlot int, err error) {
	link, ok := r.links[linkID]
	if !ok {
		return 0, 0, fmt.Errorf("link %d not found in link table", linkID)
	}
	originID = link.OriginID
	originSlot = link.OriginSlot

	visited := map[int]bool{}
	for {
		parent := r.nodes[originID]
		if parent == nil || !parent.Bypassed() {
			break
		}
		if visited[originID] {
			break
		}
		visited[originID] = true

		found := false
		for _, inp := range parent.Inputs {
			if inp.Type != wantType || inp.Link == nil {
				continue
			}
			upstream, ok := r.links[*inp.Link]
			if !ok {
				return originID, originSlot, nil
			}
			originID = upstream.OriginID
			originSlot = upstream.OriginSlot
			found = true
			break
		}
		if !found {
			break
		}
	}
	return originID, originSlot, nil
}

// value resolves one incoming link to what the compiled input should hold:
// a literal (primitive origin), nothing (annotation origin, present=false),
// or an upstream reference ["<node id>", slot]. Reroute hops share one
// visited set so a reroute cycle is detected rather than looped.
func (r *resolver) value(linkID int, wantType string) (val any, present bool, err error) {
	seen := map[int]bool{}
	cur := linkID
	for {
		if seen[cur] {
			return nil, false, fmt.Errorf("cycle detected while resolving link %d", linkID)
		}
		seen[cur] = true

		originID, originSlot, err := r.throughBypassed(cur, wantType)
		if err != nil {
			return nil, false, err
		}
		origin := r.nodes[originID]
		if origin == nil {
			return ref(originID, originSlot), true, nil
		}

		switch kindOf(origin.Type) {
		case kindReroute:
			var upstream *int
			for _, inp := range origin.Inputs {
				if inp.Link != nil {
					upstream = inp.Link
					break
				}
			}
			if upstream == nil {
				return ref(originID, originSlot), true, nil
			}
			cur = *upstream

		case kindPrimitive:
			vals, _ := origin.Widgets()
			if len(vals) == 0 {
				return nil, true, nil
			}
			return vals[0], true, nil

		case kindNote:
			return nil, false, nil

		default:
			return ref(originID, originSlot), true, nil
		}
	}
}

// ref is the wire form of an upstream reference: decimal node ID plus output
// slot index.
func ref(nodeID, slot int) []any {
	return []any{strconv.Itoa(nodeID), slot}
}
