package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chrisdreid/autoflow/internal/config"
	"github.com/chrisdreid/autoflow/internal/ctxlog"
)

// Version is the current autoflow CLI version.
var Version = "0.4.2"

// runtime carries the state shared by every subcommand: the resolved
// settings and the logger built from them. It is populated by the root
// command's PersistentPreRunE, so RunE bodies can rely on it.
type runtime struct {
	configPath string

	flagServerURL string
	flagTimeout   int
	flagLogLevel  string
	flagLogFormat string

	cfg    config.Settings
	logger *slog.Logger
}

// New builds the autoflow command tree.
func New() *cobra.Command {
	r := &runtime{}

	root := &cobra.Command{
		Use:   "autoflow",
		Short: "Convert node-graph workflows into executable API payloads",
		Long: `Autoflow flattens editor workflow documents (nested subgraphs, reroutes,
bypassed nodes, primitives) into the flat prompt payload a ComfyUI-compatible
server executes, and can submit the result and follow its progress.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&r.configPath, "config", "", "settings file (default autoflow.yaml in the working directory)")
	pf.StringVar(&r.flagServerURL, "server-url", "", "ComfyUI-compatible server base URL")
	pf.IntVar(&r.flagTimeout, "timeout", 0, "HTTP timeout in seconds")
	pf.StringVar(&r.flagLogLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&r.flagLogFormat, "log-format", "", "log output format: text or json")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(r.configPath)
		if err != nil {
			return err
		}
		if pf.Changed("server-url") {
			cfg.ServerURL = r.flagServerURL
		}
		if pf.Changed("timeout") {
			cfg.TimeoutS = r.flagTimeout
		}
		if pf.Changed("log-level") {
			cfg.LogLevel = r.flagLogLevel
		}
		if pf.Changed("log-format") {
			cfg.LogFormat = r.flagLogFormat
		}
		r.cfg = cfg
		r.logger = newLogger(cfg.LogLevel, cfg.LogFormat, cmd.ErrOrStderr())
		return nil
	}

	root.AddCommand(
		r.convertCmd(),
		r.expandCmd(),
		r.dagCmd(),
		r.schemaCmd(),
		r.submitCmd(),
	)
	return root
}

// context attaches the configured logger so library code logs through it.
func (r *runtime) context(cmd *cobra.Command) context.Context {
	return ctxlog.WithLogger(cmd.Context(), r.logger)
}

// Execute runs the command tree and maps the result to a process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := New()
	if err := cmd.ExecuteContext(ctx); err != nil {
		cmd.PrintErrln("Error:", err)
		return 1
	}
	return 0
}
