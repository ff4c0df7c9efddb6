package convert

import (
	"context"

	"github.com/chrisdreid/autoflow/internal/expand"
	"github.com/chrisdreid/autoflow/internal/schema"
	"github.com/chrisdreid/autoflow/internal/workflow"
)

// Options tune a full conversion run.
type Options struct {
	CompileOptions

	// MaxDepth caps nested subgraph expansion; zero uses expand.DefaultMaxDepth.
	MaxDepth int
	// DisablePatches skips metadata patch directives from the extra block.
	DisablePatches bool
}

// Convert runs the whole pipeline on a parsed graph: subgraph expansion,
// compilation, then metadata patches. The caller's graph is never modified.
func Convert(ctx context.Context, g *workflow.Graph, lib schema.Library, opts Options) (*Prompt, *Report) {
	if g == nil {
		report := &Report{}
		report.critical(CategoryValidation, "no workflow graph supplied")
		return NewPrompt(), report
	}

	flat := expand.Expand(ctx, g, expand.Options{MaxDepth: opts.MaxDepth})
	prompt, report := Compile(ctx, flat, lib, opts.CompileOptions)

	if !opts.DisablePatches {
		ApplyPatches(prompt, g.Extra, report)
	}
	return prompt, report
}

// ConvertDocument parses a raw workflow document and converts it. A document
// that fails validation produces a critical issue rather than an error
// return, so batch callers get a uniform report per file.
func ConvertDocument(ctx context.Context, data []byte, lib schema.Library, opts Options) (*Prompt, *Report) {
	g, err := workflow.Parse(data)
	if err != nil {
		report := &Report{}
		report.critical(CategoryValidation, err.Error())
		return NewPrompt(), report
	}
	return Convert(ctx, g, lib, opts)
}
