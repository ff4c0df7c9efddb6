package cli

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chrisdreid/autoflow/internal/expand"
	"github.com/chrisdreid/autoflow/internal/workflow"
)

func (r *runtime) expandCmd() *cobra.Command {
	var (
		out      string
		maxDepth int
	)

	cmd := &cobra.Command{
		Use:   "expand <workflow>",
		Short: "Flatten nested subgraphs into a plain workflow document",
		Long: `Inline every subgraph instance of a workflow document, rewriting boundary
links, until only ordinary nodes remain. The result is a workflow document
again and can be loaded back into the editor or fed to convert.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := r.context(cmd)

			data, err := readWorkflowDoc(args[0])
			if err != nil {
				return err
			}
			g, err := workflow.Parse(data)
			if err != nil {
				return err
			}

			depth := maxDepth
			if depth == 0 {
				depth = r.cfg.SubgraphMaxDepth
			}
			flat := expand.Expand(ctx, g, expand.Options{MaxDepth: depth})

			if out == stdoutTarget {
				blob, err := json.MarshalIndent(flat, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(blob))
				return nil
			}
			dest := out
			if dest == "" {
				dest = r.cfg.OutputPath
			}
			// A directory target gets a _flat suffix so the source document
			// is never clobbered in place.
			if !strings.EqualFold(filepath.Ext(dest), ".json") {
				stem := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
				dest = filepath.Join(dest, stem+"_flat.json")
			}
			if err := flat.Save(dest); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d nodes)\n", args[0], dest, len(flat.Nodes))
			return nil
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory, .json file, or - for stdout")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "nested subgraph expansion limit")
	return cmd
}
