// Package cli implements the ltm command line.
package cli

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oceanbase/ltm-go/pkg/core"
	"github.com/oceanbase/ltm-go/pkg/logging"
)

// options holds the global flags.
type options struct {
	collection string
	limit      int
	verbose    bool
	configPath string
	envPath    string
	logLevel   string

	// cfg is the configuration the engine was opened with.
	cfg *core.Config
}

// NewRootCmd builds the ltm command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "ltm",
		Short: "Long-term conversational memory",
		Long: `ltm stores conversation turns in a vector store and recalls the most
similar earlier turns as memories to inject into a prompt.

Configuration comes from --config (JSON or YAML), --env, or the environment
(.env files are searched upward from the working directory).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.collection, "collection", "c", "", "Collection name (overrides LTM_COLLECTION)")
	flags.IntVarP(&opts.limit, "limit", "n", core.DefaultLimit, "Number of memories to recall")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "Log raw search results")
	flags.StringVar(&opts.configPath, "config", "", "Path to a JSON or YAML config file")
	flags.StringVar(&opts.envPath, "env", "", "Path to a .env file")
	flags.StringVar(&opts.logLevel, "log-level", "warn", "Log level (debug, info, warn, error)")

	root.AddCommand(
		newRememberCmd(opts),
		newRecallCmd(opts),
		newTurnCmd(opts),
		newChatCmd(opts),
		newCountCmd(opts),
		newImportCmd(opts),
	)
	return root
}

func (o *options) logger(cmd *cobra.Command) *slog.Logger {
	level := o.logLevel
	if o.verbose && level != "debug" {
		level = "info"
	}
	return logging.New(level, cmd.ErrOrStderr())
}

// loadConfig reads the configuration source and applies flag overrides.
func (o *options) loadConfig(cmd *cobra.Command) (*core.Config, error) {
	var (
		cfg *core.Config
		err error
	)
	switch {
	case o.configPath != "":
		cfg, err = core.LoadConfigFile(o.configPath)
	case o.envPath != "":
		cfg, err = core.LoadConfigFromEnvFile(o.envPath)
	default:
		cfg, err = core.LoadConfigFromEnv()
	}
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("collection") {
		cfg.Collection = o.collection
	}
	if flags.Changed("limit") {
		cfg.Limit = o.limit
	}
	if flags.Changed("verbose") {
		cfg.Verbose = o.verbose
	}
	return cfg, nil
}

// openEngine opens the configured engine, retrying while the store is unreachable.
func (o *options) openEngine(cmd *cobra.Command) (*core.Engine, error) {
	cfg, err := o.loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	o.cfg = cfg
	ctx := cmd.Context()
	logger := o.logger(cmd)

	var engine *core.Engine
	err = core.Retry(ctx, core.DefaultRetryPolicy, func(ctx context.Context) error {
		e, err := core.Open(ctx, cfg, core.WithLogger(logger))
		if err != nil {
			if errors.Is(err, core.ErrStoreUnavailable) {
				logger.Warn("vector store unavailable, retrying", "error", err)
			}
			return err
		}
		engine = e
		return nil
	})
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// withEngine runs fn with an open engine and a context carrying the logger.
func (o *options) withEngine(cmd *cobra.Command, fn func(context.Context, *core.Engine) error) error {
	engine, err := o.openEngine(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = engine.Close() }()

	ctx := logging.With(cmd.Context(), o.logger(cmd))
	return fn(ctx, engine)
}

func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}
