// Package cli wires the conversion pipeline into the autoflow command tree:
// convert, expand, dag, schema and submit. Settings flow defaults -> yaml
// file -> AUTOFLOW_* environment -> flags; the resolved configuration and a
// structured logger are shared by every subcommand.
package cli
