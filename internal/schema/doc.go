// Package schema models the per-type node schema (object_info): for every
// node type, the ordered named parameters with their type tags, defaults, and
// enumerated choices. The library is consumed read-only by the conversion
// core; this package also resolves where a library comes from (literal file,
// URL, or a live server) and can merge local HCL manifests over it.
package schema
