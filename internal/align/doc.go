// Package align reconciles a node's stored widget value list with the widget
// slots its schema declares. Editors append, remove, and reorder widgets
// across versions, so the stored list frequently drifts from the schema; a
// small sequence alignment assigns each stored value to the slot it most
// plausibly belongs to and fills the rest with schema defaults.
package align
