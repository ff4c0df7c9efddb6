// Package dag derives a dependency graph from either a compiled prompt
// payload or a workspace graph's raw link table, and answers ordering
// questions about it: direct dependencies, transitive ancestors and
// descendants, and a best-effort topological sort. Query results follow the
// graph's declaration order, so output is stable across runs. Renderers for
// Graphviz DOT and Mermaid sit on top for diagram tooling.
package dag
