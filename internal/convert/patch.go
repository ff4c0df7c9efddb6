package convert

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Metadata patch directives let a workflow's extra block adjust the compiled
// payload without touching the graph itself: pin an input, attach routing
// hints, or replace a node outright. Directives live under extra.meta.nodes
// (the generic location other tools write) and extra.autoflow.meta.nodes,
// with extra.autoflow.nodes kept as a legacy alias; later sources win.
//
// A directive is either a bare patch object (shorthand for merge) or
// {"mode": ..., "data": {...}} with modes merge, add, and replace. Inside a
// patch, key prefixes override the mode per key: "+" add-only, "*" or "&"
// force-merge, "-" or "!" delete.

const (
	patchModeMerge   = "merge"
	patchModeAdd     = "add"
	patchModeReplace = "replace"
)

// ApplyPatches applies every directive found in the workflow extra block to
// the payload, recording a warning for directives that target IDs the
// payload does not contain.
func ApplyPatches(prompt *Prompt, extra map[string]any, report *Report) {
	spec := patchSpec(extra)
	if len(spec) == 0 {
		return
	}

	ids := make([]string, 0, len(spec))
	for id := range spec {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		a, errA := strconv.Atoi(ids[i])
		b, errB := strconv.Atoi(ids[j])
		if errA == nil && errB == nil {
			return a < b
		}
		return ids[i] < ids[j]
	})

	for _, id := range ids {
		node := prompt.Get(id)
		if node == nil {
			report.warn(CategoryConversion,
				fmt.Sprintf("metadata patch references node ID not in payload: %s", id),
				id, map[string]any{"node_id": id})
			continue
		}
		for _, directive := range spec[id] {
			applyDirective(prompt, id, node, directive, report)
		}
	}
}

// patchSpec collects directives per node ID, in source order.
func patchSpec(extra map[string]any) map[string][]any {
	if extra == nil {
		return nil
	}
	out := map[string][]any{}
	add := func(nodes any) {
		m, ok := nodes.(map[string]any)
		if !ok {
			return
		}
		for id, directive := range m {
			out[id] = append(out[id], directive)
		}
	}

	if meta, ok := extra["meta"].(map[string]any); ok {
		add(meta["nodes"])
	}
	ns, ok := extra["autoflow"].(map[string]any)
	if !ok {
		return out
	}
	if meta, ok := ns["meta"].(map[string]any); ok {
		add(meta["nodes"])
	}
	add(ns["nodes"])
	return out
}

func applyDirective(prompt *Prompt, id string, node *PromptNode, directive any, report *Report) {
	mode := patchModeMerge
	data := directive
	if m, ok := directive.(map[string]any); ok {
		_, hasMode := m["mode"]
		_, hasData := m["data"]
		if hasMode || hasData {
			mode = normalizeMode(m["mode"])
			data = m["data"]
		}
	}

	if mode == patchModeReplace {
		repl, ok := data.(map[string]any)
		if !ok {
			report.warn(CategoryConversion,
				fmt.Sprintf("metadata patch for node %s ignored: replace mode requires an object", id),
				id, map[string]any{"node_id": id, "mode": mode})
			return
		}
		var replaced PromptNode
		replaced.fromMap(repl)
		prompt.Set(id, &replaced)
		return
	}

	patch, ok := data.(map[string]any)
	if !ok {
		report.warn(CategoryConversion,
			fmt.Sprintf("metadata patch for node %s ignored: data must be an object", id),
			id, map[string]any{"node_id": id, "mode": mode})
		return
	}

	dst := node.toMap()
	applyPatchOps(dst, patch, mode)
	node.fromMap(dst)
}

func normalizeMode(v any) string {
	s, _ := v.(string)
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", patchModeMerge, "append", "update":
		return patchModeMerge
	case patchModeAdd, "keep", "preserve":
		return patchModeAdd
	case patchModeReplace, "overwrite":
		return patchModeReplace
	default:
		return patchModeMerge
	}
}

// applyPatchOps merges patch into dst with per-key operator prefixes.
func applyPatchOps(dst, patch map[string]any, defaultMode string) {
	for rawKey, v := range patch {
		key, op := parsePatchKey(rawKey)
		if key == "" {
			continue
		}

		if op == '-' || op == '!' {
			delete(dst, key)
			continue
		}

		mode := defaultMode
		switch op {
		case '+':
			mode = patchModeAdd
		case '*', '&':
			mode = patchModeMerge
		}

		existing, exists := dst[key]
		if !exists {
			dst[key] = v
			continue
		}

		dstMap, dstIsMap := existing.(map[string]any)
		srcMap, srcIsMap := v.(map[string]any)

		if mode == patchModeAdd {
			// Add-only recurses into objects but never overwrites scalars.
			if dstIsMap && srcIsMap {
				applyPatchOps(dstMap, srcMap, patchModeAdd)
			}
			continue
		}
		if dstIsMap && srcIsMap {
			applyPatchOps(dstMap, srcMap, patchModeMerge)
		} else {
			dst[key] = v
		}
	}
}

func parsePatchKey(raw string) (key string, op byte) {
	if len(raw) > 1 {
		switch raw[0] {
		case '+', '*', '&', '-', '!':
			return raw[1:], raw[0]
		}
	}
	return raw, 0
}

// toMap flattens the node into the plain shape patch operators work on.
func (n *PromptNode) toMap() map[string]any {
	out := map[string]any{"class_type": n.ClassType}
	inputs := map[string]any{}
	for k, v := range n.Inputs {
		inputs[k] = v
	}
	out["inputs"] = inputs
	if n.Meta != nil {
		out["_meta"] = n.Meta
	}
	for k, v := range n.Extra {
		out[k] = v
	}
	return out
}

// fromMap is the inverse of toMap.
func (n *PromptNode) fromMap(m map[string]any) {
	*n = PromptNode{}
	for k, v := range m {
		switch k {
		case "class_type":
			if s, ok := v.(string); ok {
				n.ClassType = s
			}
		case "inputs":
			if inputs, ok := v.(map[string]any); ok {
				n.Inputs = inputs
			}
		case "_meta":
			if meta, ok := v.(map[string]any); ok {
				n.Meta = meta
			}
		default:
			if n.Extra == nil {
				n.Extra = map[string]any{}
			}
			n.Extra[k] = v
		}
	}
}
