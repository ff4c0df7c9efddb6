// Package workflow defines the data model for editor workspace graphs: the
// node list, the positional 6-field link table, reusable subgraph definitions,
// and the running ID counters. It owns JSON load/save, top-level shape
// validation, and deep copies; it performs no graph rewriting itself.
package workflow
