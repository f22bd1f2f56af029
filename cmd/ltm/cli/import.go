package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/oceanbase/ltm-go/pkg/core"
	"github.com/oceanbase/ltm-go/pkg/ingest"
)

type importOptions struct {
	recall bool
	minLen int
}

func newImportCmd(opts *options) *cobra.Command {
	iopts := &importOptions{}

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Replay existing conversations into a collection",
	}
	cmd.PersistentFlags().BoolVar(&iopts.recall, "recall", false, "Feed turns through record-and-recall instead of remember")
	cmd.PersistentFlags().IntVar(&iopts.minLen, "min-length", 0, "Skip turns shorter than this many characters")

	cmd.AddCommand(newImportExportCmd(opts, iopts), newImportSQLiteCmd(opts, iopts))
	return cmd
}

func newImportExportCmd(opts *options, iopts *importOptions) *cobra.Command {
	var user, bot string

	cmd := &cobra.Command{
		Use:   "export <file>",
		Short: "Import a chat export (histories.histories[0].msgs)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			turns, err := ingest.ExportFile(args[0], user, bot)
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, engine *core.Engine) error {
				return runImport(ctx, cmd, engine, turns, iopts)
			})
		},
	}

	cmd.Flags().StringVar(&user, "user", ingest.DefaultUserName, "Speaker name for human messages")
	cmd.Flags().StringVar(&bot, "bot", ingest.DefaultBotName, "Speaker name for replies")
	return cmd
}

func newImportSQLiteCmd(opts *options, iopts *importOptions) *cobra.Command {
	var query string

	cmd := &cobra.Command{
		Use:   "sqlite <db>",
		Short: "Import rows of a legacy SQLite memory table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			turns, err := ingest.SQLiteRows(cmd.Context(), args[0], query)
			if err != nil {
				return err
			}
			return opts.withEngine(cmd, func(ctx context.Context, engine *core.Engine) error {
				return runImport(ctx, cmd, engine, turns, iopts)
			})
		},
	}

	cmd.Flags().StringVar(&query, "query", ingest.DefaultSQLiteQuery, "Query returning speaker, text and timestamp columns")
	return cmd
}

func runImport(ctx context.Context, cmd *cobra.Command, engine *core.Engine, turns []core.Turn, iopts *importOptions) error {
	mode := ingest.ModeRemember
	if iopts.recall {
		mode = ingest.ModeRecordAndRecall
	}

	result, err := ingest.Run(ctx, engine, turns, ingest.Options{Mode: mode, MinTextLength: iopts.minLen})
	if err != nil {
		return err
	}

	_, err = fmt.Fprintf(cmd.OutOrStdout(), "imported %d/%d turns (%d skipped, %d failed)\n",
		result.StoredCount, result.Total, result.SkippedCount, result.FailedCount)
	if err != nil {
		return err
	}
	if result.FailedCount > 0 {
		return fmt.Errorf("%d turns failed, first: %w", result.FailedCount, result.Failed[0].Error)
	}
	return nil
}
