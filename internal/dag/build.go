package dag

import (
	"strconv"

	"github.com/chrisdreid/autoflow/internal/convert"
	"github.com/chrisdreid/autoflow/internal/schema"
	"github.com/chrisdreid/autoflow/internal/workflow"
)

// FromPrompt builds the graph from a compiled payload by scanning every input
// value for embedded upstream references. Values are only treated as
// references when they name a node the payload actually contains, so literal
// two-element lists never produce phantom edges.
func FromPrompt(p *convert.Prompt) *Graph {
	nodes := p.IDs()
	nodeSet := make(map[string]bool, len(nodes))
	for _, id := range nodes {
		nodeSet[id] = true
	}

	entities := map[string]Entity{}
	var edges []Edge
	for _, id := range nodes {
		node := p.Get(id)
		ent := Entity{ClassType: node.ClassType}
		if title, ok := node.Meta["title"].(string); ok {
			ent.Title = title
		}
		entities[id] = ent

		for _, val := range node.Inputs {
			walkRefs(val, nodeSet, func(up string) {
				edges = append(edges, Edge{Src: up, Dst: id})
			})
		}
	}
	return New(nodes, edges, entities)
}

// walkRefs finds [nodeID, slot] references in a nested input value. One input
// may hold several, e.g. a list-combining node, so nesting recurses.
func walkRefs(val any, nodeSet map[string]bool, emit func(string)) {
	switch v := val.(type) {
	case []any:
		if id, ok := refTarget(v, nodeSet); ok {
			emit(id)
			return
		}
		for _, item := range v {
			walkRefs(item, nodeSet, emit)
		}
	case map[string]any:
		for _, item := range v {
			walkRefs(item, nodeSet, emit)
		}
	}
}

func refTarget(v []any, nodeSet map[string]bool) (string, bool) {
	if len(v) != 2 {
		return "", false
	}
	id, ok := v[0].(string)
	if !ok || !nodeSet[id] {
		return "", false
	}
	switch slot := v[1].(type) {
	case int:
		return id, true
	case float64:
		return id, slot == float64(int64(slot))
	default:
		return "", false
	}
}

// FromWorkflow builds the graph straight from a workspace graph's link table,
// without compiling. A non-empty schema filters the nodes to types it knows,
// mirroring how conversion excludes editor-only nodes.
func FromWorkflow(g *workflow.Graph, lib schema.Library) *Graph {
	var nodes []string
	entities := map[string]Entity{}
	for _, n := range g.Nodes {
		if len(lib) > 0 && !lib.Has(n.Type) {
			continue
		}
		id := strconv.Itoa(n.ID)
		nodes = append(nodes, id)
		entities[id] = Entity{ClassType: n.Type, Title: n.Title}
	}

	var edges []Edge
	for _, l := range g.Links {
		edges = append(edges, Edge{
			Src: strconv.Itoa(l.OriginID),
			Dst: strconv.Itoa(l.TargetID),
		})
	}
	return New(nodes, edges, entities)
}
