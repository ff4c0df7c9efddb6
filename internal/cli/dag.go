package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chrisdreid/autoflow/internal/convert"
	"github.com/chrisdreid/autoflow/internal/dag"
	"github.com/chrisdreid/autoflow/internal/expand"
	"github.com/chrisdreid/autoflow/internal/schema"
	"github.com/chrisdreid/autoflow/internal/workflow"
)

func (r *runtime) dagCmd() *cobra.Command {
	var (
		format     string
		label      string
		direction  string
		from       string
		sorted     bool
		objectInfo string
		out        string
	)

	cmd := &cobra.Command{
		Use:   "dag <input>",
		Short: "Render the dependency graph of a workflow or payload",
		Long: `Build the node dependency graph and render it as Graphviz DOT or Mermaid.

The input may be an editor workflow, a compiled prompt payload, or a PNG
render carrying either; the kind is detected from the document shape and can
be forced with --from. Workflows are flattened before the graph is built.

Labels are templates over {id}, {class_type} and {title}, with shorthand
presets "id", "class_type", "title" and "id_class_type".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := r.context(cmd)

			g, err := r.buildGraph(ctx, args[0], from, objectInfo)
			if err != nil {
				return err
			}
			if sorted {
				g = g.Toposorted()
			}

			var rendered string
			switch strings.ToLower(format) {
			case "dot", "graphviz":
				rendered = g.DOT(label)
			case "mermaid":
				if label == "" {
					label = dag.DefaultMermaidLabel
				}
				rendered = g.Mermaid(direction, label)
			default:
				return fmt.Errorf("unknown --format %q: want dot or mermaid", format)
			}

			if out == "" || out == stdoutTarget {
				fmt.Fprintln(cmd.OutOrStdout(), rendered)
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			return os.WriteFile(out, []byte(rendered+"\n"), 0o644)
		},
	}

	cmd.Flags().StringVar(&format, "format", "dot", "output format: dot or mermaid")
	cmd.Flags().StringVar(&label, "label", "", "node label preset or {id}/{class_type}/{title} template")
	cmd.Flags().StringVar(&direction, "direction", "LR", "mermaid flow direction: LR or TD")
	cmd.Flags().StringVar(&from, "from", "auto", "input kind: auto, workflow or prompt")
	cmd.Flags().BoolVar(&sorted, "sorted", false, "order nodes by execution (topological) order")
	cmd.Flags().StringVar(&objectInfo, "object-info", "", "node schema source used to filter editor-only nodes")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file; default stdout")
	return cmd
}

// buildGraph loads the input and produces the dependency graph, detecting
// whether it is a workflow document or a compiled payload.
func (r *runtime) buildGraph(ctx context.Context, path, from, objectInfo string) (*dag.Graph, error) {
	data, err := readWorkflowDoc(path)
	if err != nil {
		// A PNG with only a prompt chunk still renders fine.
		promptData, perr := readPromptDoc(path)
		if perr != nil {
			return nil, err
		}
		data = promptData
	}

	kind := strings.ToLower(from)
	if kind == "" || kind == "auto" {
		if isWorkflowJSON(data) {
			kind = "workflow"
		} else {
			kind = "prompt"
		}
	}

	switch kind {
	case "workflow":
		g, err := workflow.Parse(data)
		if err != nil {
			return nil, err
		}
		flat := expand.Expand(ctx, g, expand.Options{MaxDepth: r.cfg.SubgraphMaxDepth})

		var lib schema.Library
		if objectInfo != "" || r.cfg.ObjectInfoSource != "" {
			lib, _, err = r.loadLibrary(ctx, objectInfo, false)
			if err != nil {
				return nil, err
			}
		}
		return dag.FromWorkflow(flat, lib), nil
	case "prompt":
		var prompt convert.Prompt
		if err := json.Unmarshal(data, &prompt); err != nil {
			return nil, fmt.Errorf("parsing prompt payload %s: %w", path, err)
		}
		return dag.FromPrompt(&prompt), nil
	default:
		return nil, fmt.Errorf("unknown --from %q: want auto, workflow or prompt", from)
	}
}
