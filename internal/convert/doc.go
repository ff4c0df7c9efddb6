// Package convert compiles a workspace graph into the flat prompt payload an
// execution server accepts. Each functional node becomes one prompt entry;
// its inputs are filled from schema-aligned widget values and from link
// resolution that sees through bypassed, reroute, and primitive nodes.
// Problems are collected into a Report instead of aborting: a broken input
// degrades that one node, never the whole conversion.
package convert
