package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/chrisdreid/autoflow/internal/schema"
)

func (r *runtime) schemaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Node schema utilities",
	}
	cmd.AddCommand(r.schemaFetchCmd(), r.schemaShowCmd())
	return cmd
}

func (r *runtime) schemaFetchCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "fetch [source]",
		Short: "Resolve the node schema and write it out",
		Long: `Resolve the object_info schema from a file, URL or the configured server
and write the normalized library as JSON. Server fetches go through the
schema cache when one is configured, so a warm cache makes this instant.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := r.context(cmd)

			source := ""
			if len(args) == 1 {
				source = args[0]
			}
			lib, origin, err := r.loadLibrary(ctx, source, true)
			if err != nil {
				return err
			}
			r.logger.Info("Resolved node schema.", "resolved", origin.Resolved, "types", len(lib))

			blob, err := json.MarshalIndent(lib, "", "  ")
			if err != nil {
				return err
			}
			if out == "" || out == stdoutTarget {
				fmt.Fprintln(cmd.OutOrStdout(), string(blob))
				return nil
			}
			if err := os.MkdirAll(filepath.Dir(out), 0o755); err != nil {
				return err
			}
			return os.WriteFile(out, append(blob, '\n'), 0o644)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file; default stdout")
	return cmd
}

func (r *runtime) schemaShowCmd() *cobra.Command {
	var objectInfo string

	cmd := &cobra.Command{
		Use:   "show <class-type>",
		Short: "Print the schema of one node type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := r.context(cmd)

			lib, _, err := r.loadLibrary(ctx, objectInfo, true)
			if err != nil {
				return err
			}
			info, ok := lib[args[0]]
			if !ok {
				return fmt.Errorf("%w: %s", schema.ErrUnknownType, args[0])
			}
			blob, err := json.MarshalIndent(info, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(blob))
			return nil
		},
	}

	cmd.Flags().StringVar(&objectInfo, "object-info", "", "node schema source: file, URL, or \"server\"")
	return cmd
}
