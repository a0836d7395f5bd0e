package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/b1zarr-e/ODTL/internal/config"
	"github.com/b1zarr-e/ODTL/internal/logging"
	"github.com/b1zarr-e/ODTL/internal/util"
)

var logsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show or export past game logs",
	Long: `Read odtl.log and its rotated backups from logging.dir and print the
entries, optionally filtered by level, session, detector or message.

Examples:
  # Last 50 entries
  odtl logs

  # Warnings and errors only
  odtl logs --level warn

  # Everything one detector logged in the last hour
  odtl logs --detector camera --since 1h -n 0

  # Export one session
  odtl logs -s 1f2e3d4c5b6a7980 --format csv --output game.csv`,
	Args: cobra.NoArgs,
	RunE: runLogs,
}

var (
	logsDir      string
	logsLevel    string
	logsSession  string
	logsDetector string
	logsGrep     string
	logsSince    time.Duration
	logsFormat   string
	logsOutput   string
	logsWidth    int
	logsTail     int
)

func init() {
	flags := logsCmd.Flags()
	flags.StringVar(&logsDir, "dir", "", "log directory (default: logging.dir)")
	flags.StringVar(&logsLevel, "level", "", "minimum level: debug, info, warn, error")
	flags.StringVarP(&logsSession, "session", "s", "", "only entries from this session ID")
	flags.IntVarP(&logsTail, "tail", "n", 50, "number of entries to show (0 for all)")
	flags.StringVar(&logsDetector, "detector", "", "only entries from this detector")
	flags.StringVar(&logsGrep, "grep", "", "only entries whose message contains this text")
	flags.DurationVar(&logsSince, "since", 0, "only entries newer than this")
	flags.StringVar(&logsFormat, "format", logging.FormatText, "output format: text, json, csv")
	flags.StringVarP(&logsOutput, "output", "o", "", "write to a file instead of stdout")
	flags.IntVar(&logsWidth, "width", -1, "truncate text lines to this many columns (default: terminal width)")
	rootCmd.AddCommand(logsCmd)
}

func runLogs(cmd *cobra.Command, args []string) error {
	dir := logsDir
	if dir == "" {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		dir = cfg.Logging.Dir
	}
	if dir == "" {
		return fmt.Errorf("logging.dir is not set; pass --dir or configure a log directory")
	}

	entries, err := logging.ReadHistory(dir)
	if err != nil {
		return err
	}

	filter := logging.Filter{
		Level:           logsLevel,
		SessionID:       logsSession,
		Detector:        logsDetector,
		MessageContains: logsGrep,
	}
	if logsSince > 0 {
		filter.Since = time.Now().Add(-logsSince)
	}
	entries = logging.FilterEntries(entries, filter)
	if logsTail > 0 && len(entries) > logsTail {
		entries = entries[len(entries)-logsTail:]
	}

	out := cmd.OutOrStdout()
	width := logsWidth
	if logsOutput != "" {
		file, err := os.Create(logsOutput)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer func() { _ = file.Close() }()
		out = file
		if width < 0 {
			width = 0
		}
	} else if width < 0 {
		width = util.TerminalWidth(out, 0)
	}

	if err := logging.WriteEntries(out, entries, logsFormat, width); err != nil {
		return err
	}
	if logsOutput != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d entries to %s\n", len(entries), logsOutput)
	}
	return nil
}
