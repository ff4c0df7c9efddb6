// Package expand inlines subgraph instance nodes into their parent graph.
// Each pass replaces every instance whose type matches a known subgraph
// definition with a renumbered copy of the definition body, rewiring the
// boundary links to the instance's external producers and consumers. Passes
// repeat until nothing changes or the depth cap is reached, which also
// handles nested subgraphs.
package expand
