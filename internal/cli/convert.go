package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrisdreid/autoflow/internal/convert"
	"github.com/chrisdreid/autoflow/internal/fsutil"
)

func (r *runtime) convertCmd() *cobra.Command {
	var (
		objectInfo  string
		out         string
		includeMeta bool
		failUnknown bool
		noPatches   bool
		maxDepth    int
		showReport  bool
	)

	cmd := &cobra.Command{
		Use:   "convert <workflow>...",
		Short: "Convert workflow files into API prompt payloads",
		Long: `Convert one or more workflow documents (JSON files, or PNG renders with
embedded metadata) into flat prompt payloads.

Inputs may be literal paths or globs:

  autoflow convert flow.json
  autoflow convert renders/**/*.png --out prompts/
  autoflow convert flow.json --out - | jq .

Each payload is written next to --out as "<input stem>.json"; "-" streams a
single payload to stdout. The node schema comes from --object-info (a file,
an http(s) URL, or the token "server"), falling back to the configured
source. Without a schema, widget values cannot be named and every node is
kept as-is.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := r.context(cmd)

			inputs, err := fsutil.ExpandPatterns(args)
			if err != nil {
				return err
			}
			lib, origin, err := r.loadLibrary(ctx, objectInfo, false)
			if err != nil {
				return err
			}
			if len(lib) == 0 {
				r.logger.Warn("No node schema resolved; converting without widget names.", "requested", origin.Requested)
			}

			opts := convert.Options{
				MaxDepth:       maxDepth,
				DisablePatches: noPatches,
			}
			opts.IncludeMeta = includeMeta || r.cfg.IncludeMeta
			if maxDepth == 0 {
				opts.MaxDepth = r.cfg.SubgraphMaxDepth
			}
			if failUnknown {
				drop := false
				opts.DropUnknownTypes = &drop
			}
			if out == "" {
				out = r.cfg.OutputPath
			}
			if out == stdoutTarget && len(inputs) > 1 {
				return fmt.Errorf("--out - only works with a single input, got %d", len(inputs))
			}

			failed := 0
			for _, input := range inputs {
				data, err := readWorkflowDoc(input)
				if err != nil {
					return err
				}
				prompt, report := convert.ConvertDocument(ctx, data, lib, opts)
				logIssues(r, input, report)

				if showReport {
					blob, err := json.MarshalIndent(report, "", "  ")
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.ErrOrStderr(), string(blob))
				}
				if !report.Success {
					failed++
					r.logger.Error("Conversion failed.", "input", input, "errors", len(report.Errors))
					continue
				}

				dest, err := outputTarget(input, out, len(inputs) > 1)
				if err != nil {
					return err
				}
				if dest == stdoutTarget {
					blob, err := json.MarshalIndent(prompt, "", "  ")
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), string(blob))
					continue
				}
				if err := prompt.Save(dest); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s (%d nodes, %d skipped, %d warnings)\n",
					input, dest, report.Processed, report.Skipped, len(report.Warnings))
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d inputs failed to convert", failed, len(inputs))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&objectInfo, "object-info", "", "node schema source: file, URL, or \"server\"")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output directory, .json file, or - for stdout")
	cmd.Flags().BoolVar(&includeMeta, "include-meta", false, "carry node titles into the payload under _meta")
	cmd.Flags().BoolVar(&failUnknown, "fail-unknown", false, "treat node types missing from the schema as errors instead of skipping them")
	cmd.Flags().BoolVar(&noPatches, "no-patches", false, "ignore metadata patch directives in the document")
	cmd.Flags().IntVar(&maxDepth, "max-depth", 0, "nested subgraph expansion limit")
	cmd.Flags().BoolVar(&showReport, "report", false, "print the full conversion report as JSON to stderr")
	return cmd
}

// logIssues surfaces a report's problems through the structured logger so
// batch runs stay greppable.
func logIssues(r *runtime, input string, report *convert.Report) {
	for _, issue := range report.Warnings {
		r.logger.Warn(issue.Message, "input", input, "node", issue.NodeID, "category", issue.Category)
	}
	for _, issue := range report.Errors {
		r.logger.Error(issue.Message, "input", input, "node", issue.NodeID, "category", issue.Category)
	}
}
