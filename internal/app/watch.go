package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/refscan/internal/config"
	"github.com/blackwell-systems/refscan/internal/output"
	"github.com/blackwell-systems/refscan/internal/scanner"
	"github.com/blackwell-systems/refscan/internal/watcher"
)

var (
	watchInterval string
	watchNotify   bool
	watchQuiet    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Rescan a directory and alert when reference counts change",
	Long: `Rescan the directory at a fixed interval and report files whose
vocabulary references changed since the previous scan: new and removed
files, rising and falling counts, and files that crossed the move
candidate threshold.

Examples:
  refscan watch                    # watch the current directory (ctrl-c to stop)
  refscan watch ./core --interval 1m
  refscan watch --notify --quiet   # desktop notifications only`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchInterval, "interval", "10s", "Check interval as duration string (e.g. 30s, 5m)")
	watchCmd.Flags().BoolVar(&watchNotify, "notify", false, "Send desktop notifications for alerts")
	watchCmd.Flags().BoolVar(&watchQuiet, "quiet", false, "Suppress terminal output")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if len(args) == 1 {
		cfg.Dir = args[0]
	}
	if !cfg.Output.Color {
		output.SetNoColor(true)
	}

	interval, err := time.ParseDuration(watchInterval)
	if err != nil {
		return fmt.Errorf("invalid interval %q: %w", watchInterval, err)
	}
	if interval < time.Second {
		return fmt.Errorf("interval must be at least 1s, got %s", interval)
	}

	vocab, err := cfg.LoadVocabulary()
	if err != nil {
		return fmt.Errorf("loading vocabulary: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	out := cmd.OutOrStdout()
	alertFn := func(a watcher.Alert) {
		if watchNotify {
			_ = watcher.Notify(a)
		}
		if !watchQuiet {
			printAlert(out, a)
		}
	}

	s := scanner.New(vocab, append(cfg.ScanOptions(), scanner.WithLogger(logger))...)
	w := watcher.New(s, cfg.Dir, interval, cfg.Report.CandidateMax, alertFn)

	// Take initial scan and display baseline.
	initial, err := w.Snapshot(ctx)
	if err != nil {
		return fmt.Errorf("initial scan of %s failed: %w", cfg.Dir, err)
	}
	if !watchQuiet {
		fmt.Fprintf(out, "refscan watching %s... (checking every %s)\n", cfg.Dir, interval)
		fmt.Fprintf(out, "[%s] %s Baseline: %d files, %d independent\n",
			time.Now().Format("15:04:05"),
			output.StyleSuccess.Render(checkMark),
			len(initial.Records),
			countAtMost(initial.Records, cfg.Report.IndependentMax))
	}

	err = w.Run(ctx)
	if errors.Is(err, context.Canceled) {
		if !watchQuiet {
			fmt.Fprintln(out, "\nStopped.")
		}
		return nil
	}
	return err
}

func countAtMost(records []scanner.FileRecord, max int) int {
	n := 0
	for _, r := range records {
		if r.Count <= max {
			n++
		}
	}
	return n
}

// printAlert formats and prints an alert to the terminal.
func printAlert(w io.Writer, a watcher.Alert) {
	timestamp := a.Time.Format("15:04:05")
	fmt.Fprintf(w, "[%s] %s %s\n", timestamp, alertIcon(a.Level), a.Title)
	if a.Message != "" {
		fmt.Fprintf(w, "         %s\n", a.Message)
	}
}

const checkMark = "\xe2\x9c\x93"

// alertIcon returns the terminal indicator for an alert level.
func alertIcon(level string) string {
	switch level {
	case "critical":
		return output.StyleError.Render("\xf0\x9f\x94\xb4") // red circle
	case "warning":
		return output.StyleWarning.Render("\xe2\x9a\xa0\xef\xb8\x8f") // warning sign
	case "info":
		return output.StyleSuccess.Render(checkMark)
	default:
		return " "
	}
}
