package expand

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrisdreid/autoflow/internal/testutil"
	"github.com/chrisdreid/autoflow/internal/workflow"
)

const simpleInstanceDoc = `{
	"last_node_id": 3, "last_link_id": 2,
	"nodes": [
		{"id": 1, "type": "Producer", "outputs": [{"name": "out", "type": "T", "links": [1]}]},
		{"id": 2, "type": "sg-1", "inputs": [{"name": "in", "type": "T", "link": 1}],
			"outputs": [{"name": "result", "type": "T", "links": [2]}]},
		{"id": 3, "type": "Consumer", "inputs": [{"name": "x", "type": "T", "link": 2}]}
	],
	"links": [[1, 1, 0, 2, 0, "T"], [2, 2, 0, 3, 0, "T"]],
	"definitions": {"subgraphs": [{
		"id": "sg-1", "name": "Inner",
		"nodes": [{"id": 1, "type": "Worker",
			"inputs": [{"name": "a", "type": "T", "link": 5}],
			"outputs": [{"name": "r", "type": "T", "links": [6]}]}],
		"links": [
			{"id": 5, "origin_id": -10, "origin_slot": 0, "target_id": 1, "target_slot": 0, "type": "T"},
			{"id": 6, "origin_id": 1, "origin_slot": 0, "target_id": -20, "target_slot": 0, "type": "T"}
		],
		"inputs": [{"name": "in", "type": "T"}],
		"outputs": [{"name": "result", "type": "T"}]
	}]}
}`

func nodeByType(g *workflow.Graph, typ string) *workflow.Node {
	for _, n := range g.Nodes {
		if n.Type == typ {
			return n
		}
	}
	return nil
}

func TestExpandInlinesInstance(t *testing.T) {
	g := testutil.MustParseGraph(t, simpleInstanceDoc)
	ctx := context.Background()

	flat := Expand(ctx, g, Options{})

	assert.Nil(t, nodeByType(flat, "sg-1"), "instance node should be gone")
	worker := nodeByType(flat, "Worker")
	require.NotNil(t, worker, "definition body should be spliced in")
	assert.Equal(t, 4, worker.ID, "body node IDs continue from last_node_id")

	linkByID := flat.LinkMap()

	// Producer now feeds the worker directly.
	require.NotNil(t, worker.Inputs[0].Link)
	in := linkByID[*worker.Inputs[0].Link]
	require.NotNil(t, in)
	assert.Equal(t, 1, in.OriginID)
	assert.Equal(t, worker.ID, in.TargetID)

	// The consumer reads from the worker, not the vanished instance.
	consumer := nodeByType(flat, "Consumer")
	require.NotNil(t, consumer)
	require.NotNil(t, consumer.Inputs[0].Link)
	out := linkByID[*consumer.Inputs[0].Link]
	require.NotNil(t, out)
	assert.Equal(t, worker.ID, out.OriginID)
	assert.Equal(t, consumer.ID, out.TargetID)

	assert.Equal(t, 4, flat.LastNodeID)
	assert.Equal(t, 4, flat.LastLinkID)
}

func TestExpandReachesFixedPoint(t *testing.T) {
	g := testutil.MustParseGraph(t, simpleInstanceDoc)
	ctx := context.Background()

	once := Expand(ctx, g, Options{})
	twice := Expand(ctx, once, Options{})

	assert.Equal(t, once.LastNodeID, twice.LastNodeID)
	assert.Equal(t, once.LastLinkID, twice.LastLinkID)
	assert.Len(t, twice.Nodes, len(once.Nodes))
	assert.Len(t, twice.Links, len(once.Links))
}

func TestExpandLeavesCallerGraphUntouched(t *testing.T) {
	g := testutil.MustParseGraph(t, simpleInstanceDoc)

	_ = Expand(context.Background(), g, Options{})

	assert.NotNil(t, nodeByType(g, "sg-1"), "input graph must not be mutated by default")
	assert.Len(t, g.Nodes, 3)
}

func TestExpandInPlace(t *testing.T) {
	g := testutil.MustParseGraph(t, simpleInstanceDoc)

	flat := Expand(context.Background(), g, Options{InPlace: true})

	assert.Same(t, g, flat)
	assert.Nil(t, nodeByType(g, "sg-1"))
}

func TestExpandLeavesUnknownInstanceTypes(t *testing.T) {
	doc := `{
		"nodes": [{"id": 1, "type": "sg-unknown"}],
		"links": [],
		"definitions": {"subgraphs": [{"id": "sg-other", "nodes": [], "links": [], "inputs": []}]}
	}`
	g := testutil.MustParseGraph(t, doc)

	flat := Expand(context.Background(), g, Options{})

	require.NotNil(t, nodeByType(flat, "sg-unknown"), "unresolvable instances are ordinary nodes")
}

func TestExpandDropsBodyLinksFromUnconnectedBoundaryInput(t *testing.T) {
	doc := `{
		"last_node_id": 1, "last_link_id": 0,
		"nodes": [{"id": 1, "type": "sg-1", "inputs": [{"name": "in", "type": "T", "link": null}]}],
		"links": [],
		"definitions": {"subgraphs": [{
			"id": "sg-1",
			"nodes": [{"id": 1, "type": "Worker", "inputs": [{"name": "a", "type": "T", "link": 5}]}],
			"links": [{"id": 5, "origin_id": -10, "origin_slot": 0, "target_id": 1, "target_slot": 0, "type": "T"}],
			"inputs": [{"name": "in", "type": "T"}]
		}]}
	}`
	g := testutil.MustParseGraph(t, doc)

	flat := Expand(context.Background(), g, Options{})

	worker := nodeByType(flat, "Worker")
	require.NotNil(t, worker)
	assert.Nil(t, worker.Inputs[0].Link, "link fed by an unconnected boundary input is dropped")
	assert.Empty(t, flat.Links)
}

func TestExpandFansOutBoundaryOutputToEveryConsumer(t *testing.T) {
	doc := `{
		"last_node_id": 3, "last_link_id": 2,
		"nodes": [
			{"id": 1, "type": "sg-1", "outputs": [{"name": "result", "type": "T", "links": [1, 2]}]},
			{"id": 2, "type": "ConsumerA", "inputs": [{"name": "x", "type": "T", "link": 1}]},
			{"id": 3, "type": "ConsumerB", "inputs": [{"name": "y", "type": "T", "link": 2}]}
		],
		"links": [[1, 1, 0, 2, 0, "T"], [2, 1, 0, 3, 0, "T"]],
		"definitions": {"subgraphs": [{
			"id": "sg-1",
			"nodes": [{"id": 1, "type": "Source", "outputs": [{"name": "r", "type": "T", "links": [6]}]}],
			"links": [{"id": 6, "origin_id": 1, "origin_slot": 0, "target_id": -20, "target_slot": 0, "type": "T"}],
			"inputs": []
		}]}
	}`
	g := testutil.MustParseGraph(t, doc)

	flat := Expand(context.Background(), g, Options{})

	source := nodeByType(flat, "Source")
	require.NotNil(t, source)
	require.Len(t, flat.Links, 2, "one re-originated link per external consumer")
	for _, l := range flat.Links {
		assert.Equal(t, source.ID, l.OriginID)
	}

	linkByID := flat.LinkMap()
	for _, typ := range []string{"ConsumerA", "ConsumerB"} {
		c := nodeByType(flat, typ)
		require.NotNil(t, c)
		require.NotNil(t, c.Inputs[0].Link)
		l := linkByID[*c.Inputs[0].Link]
		require.NotNil(t, l, "%s input must point at a live link", typ)
		assert.Equal(t, source.ID, l.OriginID)
	}
}

func TestExpandDuplicatesSharedBoundaryInputPerInternalConsumer(t *testing.T) {
	doc := `{
		"last_node_id": 2, "last_link_id": 1,
		"nodes": [
			{"id": 1, "type": "Producer", "outputs": [{"name": "out", "type": "T", "links": [1]}]},
			{"id": 2, "type": "sg-1", "inputs": [{"name": "in", "type": "T", "link": 1}]}
		],
		"links": [[1, 1, 0, 2, 0, "T"]],
		"definitions": {"subgraphs": [{
			"id": "sg-1",
			"nodes": [
				{"id": 1, "type": "WorkerA", "inputs": [{"name": "a", "type": "T", "link": 5}]},
				{"id": 2, "type": "WorkerB", "inputs": [{"name": "b", "type": "T", "link": 6}]}
			],
			"links": [
				{"id": 5, "origin_id": -10, "origin_slot": 0, "target_id": 1, "target_slot": 0, "type": "T"},
				{"id": 6, "origin_id": -10, "origin_slot": 0, "target_id": 2, "target_slot": 0, "type": "T"}
			],
			"inputs": [{"name": "in", "type": "T"}]
		}]}
	}`
	g := testutil.MustParseGraph(t, doc)

	flat := Expand(context.Background(), g, Options{})

	require.Len(t, flat.Links, 2, "each internal consumer gets its own copy of the feed")
	for _, l := range flat.Links {
		assert.Equal(t, 1, l.OriginID, "both copies originate at the external producer")
	}
	targets := map[int]bool{flat.Links[0].TargetID: true, flat.Links[1].TargetID: true}
	assert.Len(t, targets, 2, "the two links land on distinct internal consumers")
}

func TestExpandNestedSubgraphs(t *testing.T) {
	doc := `{
		"last_node_id": 3, "last_link_id": 2,
		"nodes": [
			{"id": 1, "type": "Producer", "outputs": [{"name": "out", "type": "T", "links": [1]}]},
			{"id": 2, "type": "sg-outer", "inputs": [{"name": "in", "type": "T", "link": 1}],
				"outputs": [{"name": "result", "type": "T", "links": [2]}]},
			{"id": 3, "type": "Consumer", "inputs": [{"name": "x", "type": "T", "link": 2}]}
		],
		"links": [[1, 1, 0, 2, 0, "T"], [2, 2, 0, 3, 0, "T"]],
		"definitions": {"subgraphs": [
			{
				"id": "sg-outer",
				"nodes": [{"id": 1, "type": "sg-inner",
					"inputs": [{"name": "in", "type": "T", "link": 5}],
					"outputs": [{"name": "result", "type": "T", "links": [6]}]}],
				"links": [
					{"id": 5, "origin_id": -10, "origin_slot": 0, "target_id": 1, "target_slot": 0, "type": "T"},
					{"id": 6, "origin_id": 1, "origin_slot": 0, "target_id": -20, "target_slot": 0, "type": "T"}
				],
				"inputs": [{"name": "in", "type": "T"}],
				"outputs": [{"name": "result", "type": "T"}]
			},
			{
				"id": "sg-inner",
				"nodes": [{"id": 1, "type": "Worker",
					"inputs": [{"name": "a", "type": "T", "link": 7}],
					"outputs": [{"name": "r", "type": "T", "links": [8]}]}],
				"links": [
					{"id": 7, "origin_id": -10, "origin_slot": 0, "target_id": 1, "target_slot": 0, "type": "T"},
					{"id": 8, "origin_id": 1, "origin_slot": 0, "target_id": -20, "target_slot": 0, "type": "T"}
				],
				"inputs": [{"name": "in", "type": "T"}],
				"outputs": [{"name": "result", "type": "T"}]
			}
		]}
	}`
	g := testutil.MustParseGraph(t, doc)

	flat := Expand(context.Background(), g, Options{})

	assert.Nil(t, nodeByType(flat, "sg-outer"))
	assert.Nil(t, nodeByType(flat, "sg-inner"))
	worker := nodeByType(flat, "Worker")
	require.NotNil(t, worker)

	linkByID := flat.LinkMap()
	consumer := nodeByType(flat, "Consumer")
	require.NotNil(t, consumer)
	require.NotNil(t, consumer.Inputs[0].Link)
	l := linkByID[*consumer.Inputs[0].Link]
	require.NotNil(t, l)
	assert.Equal(t, worker.ID, l.OriginID, "chain collapses through both layers")
}

func TestExpandDepthCapStopsSelfReference(t *testing.T) {
	doc := `{
		"last_node_id": 1, "last_link_id": 0,
		"nodes": [{"id": 1, "type": "sg-rec"}],
		"links": [],
		"definitions": {"subgraphs": [{
			"id": "sg-rec",
			"nodes": [{"id": 1, "type": "sg-rec"}],
			"links": [],
			"inputs": []
		}]}
	}`
	g := testutil.MustParseGraph(t, doc)

	flat := Expand(context.Background(), g, Options{MaxDepth: 3})

	require.NotNil(t, nodeByType(flat, "sg-rec"), "depth cap leaves the residual instance in place")
	assert.Len(t, flat.Nodes, 1)
}
