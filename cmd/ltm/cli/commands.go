package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"

	"github.com/oceanbase/ltm-go/pkg/core"
	"github.com/oceanbase/ltm-go/pkg/logging"
)

func newRememberCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "remember <speaker> <text...>",
		Short: "Store a turn without recalling",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, engine *core.Engine) error {
				rec, err := engine.Remember(ctx, args[0], joinArgs(args[1:]))
				if err != nil {
					return err
				}
				_, err = fmt.Fprintf(cmd.OutOrStdout(), "stored %d\n", rec.ID)
				return err
			})
		},
	}
}

func newRecallCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "recall <query...>",
		Short: "Print memories similar to a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, engine *core.Engine) error {
				memories, err := engine.Recall(ctx, joinArgs(args))
				if err != nil {
					return err
				}
				return printMemories(cmd.OutOrStdout(), memories)
			})
		},
	}
}

func newTurnCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "turn <speaker> <text...>",
		Short: "Store a turn and print the memories it evokes",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, engine *core.Engine) error {
				memories, err := engine.RecordAndRecall(ctx, args[0], joinArgs(args[1:]))
				if errors.Is(err, core.ErrRecallAfterStore) {
					logging.From(ctx).Warn("turn stored without memories", "error", err)
					return nil
				}
				if err != nil {
					return err
				}
				return printMemories(cmd.OutOrStdout(), memories)
			})
		},
	}
}

func newChatCmd(opts *options) *cobra.Command {
	var speaker string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Record turns read from stdin and print their memories",
		Long: `chat reads one turn per line from stdin, as "speaker: text" or plain text
spoken by --speaker. Turns shorter than the configured minimum text length are
skipped. For every recorded turn the evoked memories are printed, followed by
an empty line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, engine *core.Engine) error {
				return chat(ctx, engine, cmd.InOrStdin(), cmd.OutOrStdout(), speaker, opts.cfg.MinTextLength)
			})
		},
	}

	cmd.Flags().StringVar(&speaker, "speaker", "user", "Speaker for lines without a \"speaker:\" prefix")
	return cmd
}

func chat(ctx context.Context, engine *core.Engine, in io.Reader, out io.Writer, defaultSpeaker string, minLen int) error {
	logger := logging.From(ctx)
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		speaker, text := parseLine(scanner.Text(), defaultSpeaker)
		if text == "" || utf8.RuneCountInString(text) < minLen {
			logger.Debug("skipping short turn", "text", text)
			continue
		}

		memories, err := engine.RecordAndRecall(ctx, speaker, text)
		if errors.Is(err, core.ErrRecallAfterStore) {
			logger.Warn("turn stored without memories", "error", err)
			memories = nil
		} else if err != nil {
			return err
		}

		if err := printMemories(out, memories); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out); err != nil {
			return err
		}
	}
	return scanner.Err()
}

// parseLine splits "speaker: text"; lines without a short prefix use def.
func parseLine(line, def string) (string, string) {
	line = strings.TrimSpace(line)
	if i := strings.Index(line, ":"); i > 0 && i <= 32 && !strings.ContainsAny(line[:i], " \t") {
		return line[:i], strings.TrimSpace(line[i+1:])
	}
	return def, line
}

func newCountCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the number of stored turns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return opts.withEngine(cmd, func(ctx context.Context, engine *core.Engine) error {
				n, err := engine.Count(ctx)
				if err != nil {
					return err
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), n)
				return err
			})
		},
	}
}

func printMemories(w io.Writer, memories []string) error {
	for _, m := range memories {
		if _, err := fmt.Fprintln(w, m); err != nil {
			return err
		}
	}
	return nil
}
