// Package testutil provides small helpers for assembling workspace graphs
// and schema libraries in tests.
package testutil

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/chrisdreid/autoflow/internal/workflow"
)

// IntPtr returns a pointer to v, for wiring workflow.Input.Link values.
func IntPtr(v int) *int { return &v }

// Widgets encodes positional widget values the way the editor stores them.
func Widgets(vals ...any) json.RawMessage {
	data, err := json.Marshal(vals)
	if err != nil {
		panic(fmt.Sprintf("testutil: encoding widgets: %v", err))
	}
	return data
}

// GraphBuilder assembles a workspace graph node by node, allocating link IDs
// and keeping the running counters consistent.
type GraphBuilder struct {
	G        *workflow.Graph
	nextLink int
}

// NewGraphBuilder returns an empty builder.
func NewGraphBuilder() *GraphBuilder {
	return &GraphBuilder{
		G:        &workflow.Graph{Nodes: workflow.NodeList{}, Links: workflow.LinkList{}},
		nextLink: 1,
	}
}

// Add appends a node and returns the builder for chaining.
func (b *GraphBuilder) Add(n *workflow.Node) *GraphBuilder {
	b.G.Nodes = append(b.G.Nodes, n)
	return b
}

// Wire creates a link from originID/originSlot into the named input of
// targetID, creating the input slot if the node does not declare it yet.
// It returns the allocated link ID.
func (b *GraphBuilder) Wire(originID, originSlot, targetID int, inputName, typ string) int {
	target := b.G.NodeByID(targetID)
	if target == nil {
		panic(fmt.Sprintf("testutil: wire target node %d not found", targetID))
	}

	id := b.nextLink
	b.nextLink++

	var input *workflow.Input
	slot := -1
	for i, in := range target.Inputs {
		if in.Name == inputName {
			input, slot = in, i
			break
		}
	}
	if input == nil {
		input = &workflow.Input{Name: inputName, Type: typ}
		target.Inputs = append(target.Inputs, input)
		slot = len(target.Inputs) - 1
	}
	input.Link = &id

	b.G.Links = append(b.G.Links, &workflow.Link{
		ID:         id,
		OriginID:   originID,
		OriginSlot: originSlot,
		TargetID:   targetID,
		TargetSlot: slot,
		Type:       typ,
	})
	return id
}

// Build recomputes the ID counters and returns the graph.
func (b *GraphBuilder) Build() *workflow.Graph {
	for _, n := range b.G.Nodes {
		if n.ID > b.G.LastNodeID {
			b.G.LastNodeID = n.ID
		}
	}
	for _, l := range b.G.Links {
		if l.ID > b.G.LastLinkID {
			b.G.LastLinkID = l.ID
		}
	}
	return b.G
}

// MustParseGraph parses a workspace graph document or fails the test.
func MustParseGraph(t *testing.T, doc string) *workflow.Graph {
	t.Helper()
	g, err := workflow.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("parsing fixture graph: %v", err)
	}
	return g
}
