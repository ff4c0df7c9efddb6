package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/chrisdreid/autoflow/internal/client"
	"github.com/chrisdreid/autoflow/internal/convert"
	"github.com/chrisdreid/autoflow/internal/dag"
)

func (r *runtime) submitCmd() *cobra.Command {
	var (
		objectInfo string
		clientID   string
		wait       bool
	)

	cmd := &cobra.Command{
		Use:   "submit <input>",
		Short: "Submit a workflow or payload to the server for execution",
		Long: `Submit an input for execution. Workflow documents are converted first;
already-compiled payloads (and PNG renders carrying one) are submitted
as-is. With --wait the command stays attached to the server's websocket and
reports node-by-node progress until the prompt finishes.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := r.context(cmd)

			prompt, err := r.loadPrompt(ctx, args[0], objectInfo)
			if err != nil {
				return err
			}

			c, err := client.New(r.cfg.ServerURL, r.cfg.Timeout())
			if err != nil {
				return err
			}
			id := clientID
			if id == "" {
				id = r.cfg.ClientID
			}
			c.SetClientID(id)

			result, err := c.SubmitPrompt(ctx, prompt)
			if err != nil {
				return err
			}
			if len(result.NodeErrors) > 0 {
				blob, _ := json.MarshalIndent(result.NodeErrors, "", "  ")
				fmt.Fprintln(cmd.ErrOrStderr(), string(blob))
				return fmt.Errorf("server rejected %d nodes", len(result.NodeErrors))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "queued prompt %s (#%d)\n", result.PromptID, result.Number)

			if !wait {
				return nil
			}

			deps := dag.FromPrompt(prompt)
			tracker := client.NewProgressTracker(deps.Toposort(), deps)

			lastLine := ""
			err = c.ListenProgress(ctx, client.ListenOptions{PromptID: result.PromptID, Tracker: tracker},
				func(ev client.Event, p client.Progress) {
					r.logger.Debug("Execution event.", "type", ev.Type, "node", p.NodeCurrent)
					line := progressLine(p)
					if line != lastLine {
						fmt.Fprintln(cmd.OutOrStdout(), line)
						lastLine = line
					}
				})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "prompt %s finished\n", result.PromptID)
			return nil
		},
	}

	cmd.Flags().StringVar(&objectInfo, "object-info", "", "node schema source used when converting a workflow")
	cmd.Flags().StringVar(&clientID, "client-id", "", "client identifier sent with the submission")
	cmd.Flags().BoolVar(&wait, "wait", false, "follow execution progress until the prompt finishes")
	return cmd
}

// loadPrompt turns the input into a submittable payload, converting workflow
// documents on the fly.
func (r *runtime) loadPrompt(ctx context.Context, path, objectInfo string) (*convert.Prompt, error) {
	data, err := readPromptOrWorkflow(path)
	if err != nil {
		return nil, err
	}

	if isWorkflowJSON(data) {
		lib, _, err := r.loadLibrary(ctx, objectInfo, false)
		if err != nil {
			return nil, err
		}
		opts := convert.Options{MaxDepth: r.cfg.SubgraphMaxDepth}
		opts.IncludeMeta = r.cfg.IncludeMeta
		prompt, report := convert.ConvertDocument(ctx, data, lib, opts)
		logIssues(r, path, report)
		if !report.Success {
			return nil, fmt.Errorf("converting %s failed with %d errors", path, len(report.Errors))
		}
		return prompt, nil
	}

	var prompt convert.Prompt
	if err := json.Unmarshal(data, &prompt); err != nil {
		return nil, fmt.Errorf("parsing prompt payload %s: %w", path, err)
	}
	if prompt.Len() == 0 {
		return nil, fmt.Errorf("%s contains no nodes to submit", path)
	}
	return &prompt, nil
}

// progressLine renders one human-readable progress snapshot.
func progressLine(p client.Progress) string {
	if p.NodesTotal > 0 {
		return fmt.Sprintf("[%3.0f%%] %d/%d nodes, current %s",
			p.Overall*100, len(p.NodesDone), p.NodesTotal, orUnknown(p.NodeCurrent))
	}
	return fmt.Sprintf("[%3.0f%%] current %s", p.Overall*100, orUnknown(p.NodeCurrent))
}

func orUnknown(id string) string {
	if id == "" {
		return "-"
	}
	return id
}
