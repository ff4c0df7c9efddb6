package convert

import (
	"context"
	"fmt"
	"strconv"

	"github.com/chrisdreid/autoflow/internal/align"
	"github.com/chrisdreid/autoflow/internal/ctxlog"
	"github.com/chrisdreid/autoflow/internal/schema"
	"github.com/chrisdreid/autoflow/internal/workflow"
)

// CompileOptions tune the per-node compile loop.
type CompileOptions struct {
	// IncludeMeta copies node display metadata into the payload.
	IncludeMeta bool
	// DropUnknownTypes skips nodes whose type the schema does not know,
	// with a warning. Defaults to true when a non-empty schema is supplied;
	// it is the sole mechanism for excluding editor-only node types. When
	// false, a schema-absent type is a per-node error and the node is not
	// emitted.
	DropUnknownTypes *bool
	// SizeGuard caps widget alignment; zero means align.DefaultSizeGuard.
	SizeGuard int
}

func (o CompileOptions) dropUnknown(lib schema.Library) bool {
	if o.DropUnknownTypes != nil {
		return *o.DropUnknownTypes
	}
	return len(lib) > 0
}

// Compile turns an already-flattened graph into a prompt payload. Nodes are
// emitted in graph order under their decimal ID. Problems degrade individual
// nodes and are collected into the report; Compile itself only fails the
// whole run through critical issues, which this stage never raises.
func Compile(ctx context.Context, g *workflow.Graph, lib schema.Library, opts CompileOptions) (*Prompt, *Report) {
	logger := ctxlog.FromContext(ctx)
	report := &Report{Total: len(g.Nodes)}
	prompt := NewPrompt()
	res := newResolver(g)
	dropUnknown := opts.dropUnknown(lib)

	for _, node := range g.Nodes {
		nodeID := strconv.Itoa(node.ID)

		if len(lib) > 0 && !lib.Has(node.Type) {
			if dropUnknown {
				report.Skipped++
				report.warn(CategoryNodeProcessing,
					fmt.Sprintf("skipping node type not present in schema: %s", node.Type),
					nodeID, map[string]any{"class_type": node.Type})
			} else {
				report.error(CategoryNodeProcessing,
					fmt.Sprintf("node type not present in schema: %s", node.Type),
					nodeID, map[string]any{"class_type": node.Type})
			}
			continue
		}

		compiled := compileNode(res, node, lib, opts, report)
		if compiled == nil {
			continue
		}
		prompt.Set(nodeID, compiled)
		report.Processed++
	}

	report.Success = prompt.Len() > 0 && !report.HasCritical()
	logger.Debug("Compiled workflow graph.",
		"processed", report.Processed, "skipped", report.Skipped, "total", report.Total)
	return prompt, report
}

// compileNode builds one payload entry, or nil when the node cannot be
// compiled. A panic while processing a node is recovered into an error issue
// so one malformed node cannot take down the batch.
func compileNode(res *resolver, node *workflow.Node, lib schema.Library, opts CompileOptions, report *Report) (compiled *PromptNode) {
	nodeID := strconv.Itoa(node.ID)

	defer func() {
		if rec := recover(); rec != nil {
			compiled = nil
			report.error(CategoryNodeProcessing,
				fmt.Sprintf("unexpected error processing node: %v", rec),
				nodeID, map[string]any{"class_type": node.Type})
		}
	}()

	inputs := map[string]any{}

	// Without a schema there is no way to name widget slots, so widget
	// values are left out and only linked inputs are compiled.
	if lib != nil {
		if slots, err := align.Slots(lib, node.Type); err == nil {
			stored, ok := node.Widgets()
			if !ok {
				report.warn(CategoryNodeProcessing,
					"widgets_values is not a positional array; stored values ignored",
					nodeID, map[string]any{"class_type": node.Type})
			}
			for i, v := range align.Values(slots, stored, opts.SizeGuard) {
				inputs[slots[i].Name] = v
			}
		}
	}

	for _, inp := range node.Inputs {
		if inp.Name == "" || inp.Link == nil {
			continue
		}
		val, present, err := res.value(*inp.Link, inp.Type)
		if err != nil {
			report.warn(CategoryNodeProcessing,
				fmt.Sprintf("failed to resolve link for input %s: %v", inp.Name, err),
				nodeID, map[string]any{"class_type": node.Type, "input": inp.Name})
			continue
		}
		if !present {
			delete(inputs, inp.Name)
			continue
		}
		inputs[inp.Name] = val
	}

	out := &PromptNode{ClassType: node.Type, Inputs: inputs}
	if opts.IncludeMeta && len(node.Meta) > 0 {
		out.Meta = node.Meta
	}
	return out
}
