package app

import (
	"fmt"
	"io"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/refscan/internal/config"
	"github.com/blackwell-systems/refscan/internal/output"
	"github.com/blackwell-systems/refscan/internal/report"
	"github.com/blackwell-systems/refscan/internal/scanner"
	"github.com/blackwell-systems/refscan/internal/store"
)

var (
	scanFlagExt          string
	scanFlagExcludeNames []string
	scanFlagExclude      []string
	scanFlagVocabFile    string
	scanFlagTop          int
	scanFlagWorkers      int
	scanFlagKeepGoing    bool
	scanFlagRecord       bool
	scanFlagSummary      bool
)

var scanCmd = &cobra.Command{
	Use:   "scan [dir]",
	Short: "Count vocabulary references per file and rank the files",
	Long: `Scan reads every file in the directory (default: the current directory)
whose name ends with the configured extension, skipping build manifests
such as go.mod and go.sum. For each file it records which vocabulary names
occur as whole words, then prints the files sorted by reference count and
lists the independent files with few references.

A file that cannot be read aborts the scan unless --keep-going is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runScan,
}

func init() {
	addScanFlags(scanCmd)
	rootCmd.AddCommand(scanCmd)
}

// addScanFlags registers the scan flags on cmd. The root command shares them
// so that a bare 'refscan' behaves like 'refscan scan'.
func addScanFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&scanFlagExt, "ext", scanner.DefaultExtension, "File name extension to scan")
	cmd.Flags().StringSliceVar(&scanFlagExcludeNames, "exclude-name", nil, "Exact file name to skip (can be repeated; replaces go.mod,go.sum)")
	cmd.Flags().StringSliceVar(&scanFlagExclude, "exclude", nil, "Glob pattern of file names to skip (can be repeated)")
	cmd.Flags().StringVar(&scanFlagVocabFile, "vocab-file", "", "YAML file with the vocabulary to search for")
	cmd.Flags().IntVar(&scanFlagTop, "top", config.DefaultReport.TopN, "Number of files in the ranked section")
	cmd.Flags().IntVar(&scanFlagWorkers, "workers", config.DefaultScan.Workers, "Number of files read concurrently")
	cmd.Flags().BoolVar(&scanFlagKeepGoing, "keep-going", false, "Skip unreadable files instead of aborting")
	cmd.Flags().BoolVar(&scanFlagRecord, "record", false, "Save this run to the history database")
	cmd.Flags().BoolVar(&scanFlagSummary, "summary", false, "Print a summary after the report")
}

// applyScanFlags overrides configuration values with explicitly set flags.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("ext") {
		cfg.Extension = scanFlagExt
	}
	if flags.Changed("exclude-name") {
		cfg.ExcludeNames = scanFlagExcludeNames
	}
	if flags.Changed("exclude") {
		cfg.ExcludePatterns = append(cfg.ExcludePatterns, scanFlagExclude...)
	}
	if flags.Changed("vocab-file") {
		cfg.VocabularyFile = scanFlagVocabFile
	}
	if flags.Changed("top") {
		cfg.Report.TopN = scanFlagTop
	}
	if flags.Changed("workers") {
		cfg.Scan.Workers = scanFlagWorkers
	}
	if flags.Changed("keep-going") {
		cfg.Scan.KeepGoing = scanFlagKeepGoing
	}
}

func reportOptions(cfg *config.Config) report.Options {
	return report.Options{
		TopN:           cfg.Report.TopN,
		CandidateMax:   cfg.Report.CandidateMax,
		IndependentMax: cfg.Report.IndependentMax,
		NameWidth:      cfg.Report.NameWidth,
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	// Load configuration.
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyScanFlags(cmd, cfg)
	if len(args) == 1 {
		cfg.Dir = args[0]
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.Output.Color {
		output.SetNoColor(true)
	}

	vocab, err := cfg.LoadVocabulary()
	if err != nil {
		return fmt.Errorf("loading vocabulary: %w", err)
	}
	logger.Debug("vocabulary loaded", "names", vocab.Len(), "file", cfg.VocabularyFile)

	ctx, stop := signal.NotifyContext(cmd.Context(), shutdownSignals...)
	defer stop()

	s := scanner.New(vocab, append(cfg.ScanOptions(), scanner.WithLogger(logger))...)
	result, err := s.Scan(ctx, cfg.Dir)
	if err != nil {
		return fmt.Errorf("scanning %s: %w", cfg.Dir, err)
	}

	if scanFlagRecord {
		runID, err := recordRun(cfg, vocab, result)
		if err != nil {
			return fmt.Errorf("recording run: %w", err)
		}
		logger.Info("run recorded", "id", runID, "db", cfg.DBPath)
	}

	rep := report.New(result.Records, reportOptions(cfg))
	out := cmd.OutOrStdout()

	// Render output.
	if flagJSON {
		return rep.WriteJSON(out, cfg.Dir, result.Records, result.Errors)
	}
	if err := rep.WriteText(out); err != nil {
		return err
	}
	if scanFlagSummary {
		renderScanSummary(out, result, rep)
	}
	return nil
}

// recordRun stores the scan in the history database and returns the run ID.
func recordRun(cfg *config.Config, vocab *scanner.Vocabulary, result *scanner.Result) (int64, error) {
	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return 0, fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	run := &store.Run{
		Dir:       absDir(result.Dir),
		Extension: cfg.Extension,
		VocabSize: vocab.Len(),
		Version:   appVersion,
	}
	return db.CreateRun(run, toRows(result.Records))
}

func renderScanSummary(w io.Writer, result *scanner.Result, rep *report.Report) {
	candidates := 0
	total := 0
	maxCount := 0
	buckets := make(map[int]int)
	for _, r := range rep.Ranked {
		if rep.IsCandidate(r) {
			candidates++
		}
		total += r.Count
		buckets[r.Count]++
		if r.Count > maxCount {
			maxCount = r.Count
		}
	}

	fmt.Fprintln(w, output.Section("Summary"))
	fmt.Fprintln(w)
	printStat(w, "Files scanned:", fmt.Sprintf("%d", len(result.Records)))
	printStat(w, "Independent files:", fmt.Sprintf("%d", len(rep.Independent())))
	printStat(w, "Move candidates:", fmt.Sprintf("%d", candidates))
	if len(result.Records) > 0 {
		printStat(w, "Mean references:", fmt.Sprintf("%.1f", float64(total)/float64(len(result.Records))))
	}
	if len(result.Errors) > 0 {
		printStat(w, "Unreadable files:", output.StyleError.Render(fmt.Sprintf("%d", len(result.Errors))))
	}
	printStat(w, "Duration:", result.Duration.Round(time.Millisecond).String())

	if len(buckets) > 0 {
		fmt.Fprintln(w)
		tbl := output.NewTable("Refs", "Files").AlignRight(0)
		largest := 0
		for _, n := range buckets {
			if n > largest {
				largest = n
			}
		}
		for c := 0; c <= maxCount; c++ {
			if n, ok := buckets[c]; ok {
				tbl.AddRow(fmt.Sprintf("%d", c), output.CountBar(n, largest, 20))
			}
		}
		tbl.Fprint(w)
	}
	fmt.Fprintln(w)
}

func printStat(w io.Writer, label, value string) {
	fmt.Fprintf(w, " %s %s\n", output.StyleLabel.Render(label), output.StyleValue.Render(value))
}
