package expand

import (
	"context"
	"encoding/json"

	"github.com/chrisdreid/autoflow/internal/ctxlog"
	"github.com/chrisdreid/autoflow/internal/workflow"
)

// DefaultMaxDepth caps the number of expansion passes. It is a safety net
// against self-referential definitions, not a cycle detector.
const DefaultMaxDepth = 99

// Options controls expansion.
type Options struct {
	// MaxDepth is the pass cap; zero means DefaultMaxDepth.
	MaxDepth int
	// InPlace rewrites the caller's graph instead of a deep copy.
	InPlace bool
}

// Expand inlines subgraph instances until none remain or the depth cap is
// exhausted. Instance nodes whose type matches no known definition are left
// untouched; downstream compilation treats them as ordinary nodes.
func Expand(ctx context.Context, g *workflow.Graph, opts Options) *workflow.Graph {
	logger := ctxlog.FromContext(ctx)

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	out := g
	if !opts.InPlace {
		out = g.Clone()
	}

	for pass := 0; pass < maxDepth; pass++ {
		if !expandOnce(out) {
			if pass > 0 {
				logger.Debug("Subgraph expansion complete.", "passes", pass)
			}
			return out
		}
	}
	logger.Warn("Subgraph expansion hit depth cap before reaching a fixed point.", "max_depth", maxDepth)
	return out
}

// alloc threads the fresh-ID state through a single expansion pass.
type alloc struct {
	nextNode int
	nextLink int
}

func (a *alloc) nodeID() int {
	id := a.nextNode
	a.nextNode++
	return id
}

func (a *alloc) linkID() int {
	id := a.nextLink
	a.nextLink++
	return id
}

// externalOrigin describes what fed one of an instance's named inputs.
type externalOrigin struct {
	nodeID int
	slot   int
}

// expandOnce inlines every instance node present at the start of the pass.
// It reports whether the graph changed.
func expandOnce(g *workflow.Graph) bool {
	defs := g.SubgraphDefs()
	if len(defs) == 0 {
		return false
	}

	hasInstance := false
	for _, n := range g.Nodes {
		if _, ok := defs[n.Type]; ok {
			hasInstance = true
			break
		}
	}
	if !hasInstance {
		return false
	}

	ids := &alloc{nextNode: g.LastNodeID + 1, nextLink: g.LastLinkID + 1}
	linkByID := g.LinkMap()

	nodes := append(workflow.NodeList{}, g.Nodes...)
	links := append(workflow.LinkList{}, g.Links...)

	for _, inst := range append(workflow.NodeList{}, nodes...) {
		def, ok := defs[inst.Type]
		if !ok {
			continue
		}
		nodes, links = inlineInstance(inst, def, nodes, links, linkByID, ids)
	}

	g.Nodes = nodes
	g.Links = links
	g.LastNodeID = 0
	for _, n := range g.Nodes {
		if n.ID > g.LastNodeID {
			g.LastNodeID = n.ID
		}
	}
	g.LastLinkID = 0
	for _, l := range g.Links {
		if l.ID > g.LastLinkID {
			g.LastLinkID = l.ID
		}
	}
	return true
}

// inlineInstance splices one definition body in place of an instance node.
func inlineInstance(
	inst *workflow.Node,
	def *workflow.Subgraph,
	nodes workflow.NodeList,
	links workflow.LinkList,
	linkByID map[int]*workflow.Link,
	ids *alloc,
) (workflow.NodeList, workflow.LinkList) {
	// External links incident on the instance, grouped for rewiring.
	extInIDs := map[int]bool{}
	extOutBySlot := map[int][]*workflow.Link{}
	extOutIDs := map[int]bool{}
	for _, l := range links {
		if l.TargetID == inst.ID {
			extInIDs[l.ID] = true
		}
		if l.OriginID == inst.ID {
			extOutBySlot[l.OriginSlot] = append(extOutBySlot[l.OriginSlot], l)
			extOutIDs[l.ID] = true
		}
	}

	// Remove the instance and its directly incident links.
	kept := make(workflow.NodeList, 0, len(nodes))
	for _, n := range nodes {
		if n != inst {
			kept = append(kept, n)
		}
	}
	nodes = kept
	keptLinks := make(workflow.LinkList, 0, len(links))
	for _, l := range links {
		if !extInIDs[l.ID] && !extOutIDs[l.ID] {
			keptLinks = append(keptLinks, l)
		}
	}
	links = keptLinks

	// Resolve each boundary input slot to whatever fed the instance's
	// same-named input. Unconnected inputs stay nil; body links fed by them
	// are dropped without a warning.
	instInputLink := map[string]*int{}
	for _, in := range inst.Inputs {
		instInputLink[in.Name] = in.Link
	}
	slotOrigin := map[int]*externalOrigin{}
	for idx, bin := range def.Inputs {
		if bin == nil {
			continue
		}
		lidPtr := instInputLink[bin.Name]
		if lidPtr == nil {
			continue
		}
		ext := linkByID[*lidPtr]
		if ext == nil {
			continue
		}
		slotOrigin[idx] = &externalOrigin{nodeID: ext.OriginID, slot: ext.OriginSlot}
	}

	// Fresh IDs for the copied body. Negative body IDs are the reserved
	// boundary pseudo-nodes and are never copied.
	nodeIDMap := map[int]int{}
	for _, n := range def.Nodes {
		if n.ID >= 0 {
			nodeIDMap[n.ID] = ids.nodeID()
		}
	}

	linkIDMap := map[int]int{}
	extLinkRewire := map[int]int{}

	for _, bl := range def.Links {
		switch {
		case bl.OriginID == workflow.BoundaryInputID:
			ext := slotOrigin[bl.OriginSlot]
			if ext == nil {
				continue
			}
			newTarget, ok := nodeIDMap[bl.TargetID]
			if !ok {
				continue
			}
			newID := ids.linkID()
			linkIDMap[bl.ID] = newID
			links = append(links, &workflow.Link{
				ID:         newID,
				OriginID:   ext.nodeID,
				OriginSlot: ext.slot,
				TargetID:   newTarget,
				TargetSlot: bl.TargetSlot,
				Type:       bl.Type,
			})

		case bl.TargetID == workflow.BoundaryOutputID:
			newOrigin, ok := nodeIDMap[bl.OriginID]
			if !ok {
				continue
			}
			// One new link per external consumer of the instance's slot,
			// re-originated at the definition's internal producer.
			for _, ext := range extOutBySlot[bl.TargetSlot] {
				newID := ids.linkID()
				extLinkRewire[ext.ID] = newID
				links = append(links, &workflow.Link{
					ID:         newID,
					OriginID:   newOrigin,
					OriginSlot: bl.OriginSlot,
					TargetID:   ext.TargetID,
					TargetSlot: ext.TargetSlot,
					Type:       ext.Type,
				})
			}

		default:
			newOrigin, okO := nodeIDMap[bl.OriginID]
			newTarget, okT := nodeIDMap[bl.TargetID]
			if !okO || !okT {
				continue
			}
			newID := ids.linkID()
			linkIDMap[bl.ID] = newID
			links = append(links, &workflow.Link{
				ID:         newID,
				OriginID:   newOrigin,
				OriginSlot: bl.OriginSlot,
				TargetID:   newTarget,
				TargetSlot: bl.TargetSlot,
				Type:       bl.Type,
			})
		}
	}

	// Copy the body nodes with ID translation only.
	for _, n := range def.Nodes {
		if n.ID < 0 {
			continue
		}
		copied := cloneNode(n)
		copied.ID = nodeIDMap[n.ID]
		for _, in := range copied.Inputs {
			if in.Link == nil {
				continue
			}
			if mapped, ok := linkIDMap[*in.Link]; ok {
				v := mapped
				in.Link = &v
			} else {
				in.Link = nil
			}
		}
		for _, out := range copied.Outputs {
			remapped := make(workflow.IntList, 0, len(out.Links))
			for _, lid := range out.Links {
				if mapped, ok := linkIDMap[lid]; ok {
					remapped = append(remapped, mapped)
				}
			}
			out.Links = remapped
		}
		nodes = append(nodes, copied)
	}

	// External consumers that used to read the instance's outputs now point
	// at the re-originated links.
	if len(extLinkRewire) > 0 {
		for _, n := range nodes {
			for _, in := range n.Inputs {
				if in.Link == nil {
					continue
				}
				if mapped, ok := extLinkRewire[*in.Link]; ok {
					v := mapped
					in.Link = &v
				}
			}
		}
	}

	// Keep the lookup table current so sibling instances later in this pass
	// resolve against the rewired links, not the removed ones.
	for id := range extInIDs {
		delete(linkByID, id)
	}
	for id := range extOutIDs {
		delete(linkByID, id)
	}
	for _, l := range links {
		linkByID[l.ID] = l
	}

	return nodes, links
}

func cloneNode(n *workflow.Node) *workflow.Node {
	data, err := json.Marshal(n)
	if err != nil {
		panic("expand: clone node marshal failed")
	}
	var out workflow.Node
	if err := json.Unmarshal(data, &out); err != nil {
		panic("expand: clone node unmarshal failed")
	}
	return &out
}
