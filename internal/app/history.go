package app

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/refscan/internal/config"
	"github.com/blackwell-systems/refscan/internal/output"
	"github.com/blackwell-systems/refscan/internal/report"
	"github.com/blackwell-systems/refscan/internal/scanner"
	"github.com/blackwell-systems/refscan/internal/store"
)

var (
	historyLimit   int
	historyShow    int64
	historyDiff    bool
	historyCompare int
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List and compare recorded scan runs",
	Long: `List runs saved with 'refscan scan --record'. Use --show to print the
report of a stored run, or --diff to compare the latest run against an
earlier one and see how each file's reference count moved.`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 10, "Number of runs to list (0 = all)")
	historyCmd.Flags().Int64Var(&historyShow, "show", 0, "Print the report of the run with this ID")
	historyCmd.Flags().BoolVar(&historyDiff, "diff", false, "Compare the latest run against an earlier one")
	historyCmd.Flags().IntVar(&historyCompare, "compare", 2, "Run to compare against with --diff (2 = previous)")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if !cfg.Output.Color {
		output.SetNoColor(true)
	}

	db, err := store.Open(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() { _ = db.Close() }()

	out := cmd.OutOrStdout()
	switch {
	case historyShow > 0:
		return showRun(out, db, historyShow, reportOptions(cfg))
	case historyDiff:
		return diffRuns(out, db, historyCompare)
	default:
		return listRuns(out, db, historyLimit)
	}
}

func listRuns(w io.Writer, db *store.DB, limit int) error {
	runs, err := db.ListRuns(limit)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if flagJSON {
		if runs == nil {
			runs = []store.Run{}
		}
		return writeJSON(w, map[string]any{"runs": runs})
	}

	fmt.Fprintln(w, output.Section("Recorded Runs"))
	fmt.Fprintln(w)
	if len(runs) == 0 {
		fmt.Fprintln(w, " No runs recorded. Run 'refscan scan --record' to save one.")
		return nil
	}

	tbl := output.NewTable("ID", "Taken", "Directory", "Ext", "Files", "Vocab").AlignRight(4, 5)
	for _, r := range runs {
		tbl.AddRow(
			fmt.Sprintf("#%d", r.ID),
			r.TakenAt.Local().Format("2006-01-02 15:04:05"),
			r.Dir,
			r.Extension,
			fmt.Sprintf("%d", r.FileCount),
			fmt.Sprintf("%d", r.VocabSize),
		)
	}
	tbl.Fprint(w)
	return nil
}

func showRun(w io.Writer, db *store.DB, id int64, opts report.Options) error {
	run, err := db.GetRun(id)
	if err != nil {
		return fmt.Errorf("loading run %d: %w", id, err)
	}
	if run == nil {
		return fmt.Errorf("run %d not found", id)
	}

	rows, err := db.GetFileRecords(run.ID)
	if err != nil {
		return fmt.Errorf("loading records of run %d: %w", id, err)
	}
	records := fromRows(rows)
	rep := report.New(records, opts)

	if flagJSON {
		return rep.WriteJSON(w, run.Dir, records, nil)
	}

	fmt.Fprintf(w, " Run #%d of %s taken at %s\n\n",
		run.ID, run.Dir, run.TakenAt.Local().Format("2006-01-02 15:04:05"))
	return rep.WriteText(w)
}

func diffRuns(w io.Writer, db *store.DB, compare int) error {
	if compare < 2 {
		return fmt.Errorf("--compare must be >= 2, got %d", compare)
	}

	current, err := db.GetRunN(1)
	if err != nil {
		return fmt.Errorf("loading latest run: %w", err)
	}
	previous, err := db.GetRunN(compare)
	if err != nil {
		return fmt.Errorf("loading run %d back: %w", compare, err)
	}
	if current == nil || previous == nil {
		return fmt.Errorf("need at least %d recorded runs to compare", compare)
	}

	diff, err := db.DiffRuns(previous, current)
	if err != nil {
		return err
	}

	if flagJSON {
		if diff.Files == nil {
			diff.Files = []store.FileDelta{}
		}
		return writeJSON(w, diff)
	}

	fmt.Fprintln(w, output.Section("History: Run Comparison"))
	fmt.Fprintln(w)
	fmt.Fprintf(w, " Run #%d (%s) against run #%d (%s)\n\n",
		current.ID, current.TakenAt.Local().Format("2006-01-02 15:04:05"),
		previous.ID, previous.TakenAt.Local().Format("2006-01-02 15:04:05"))

	tbl := output.NewTable("File", "Previous", "Current", "Delta", "Trend", "Status").AlignRight(1, 2, 3)
	for _, d := range diff.Files {
		// Fewer references means the file is easier to move.
		tbl.AddRow(
			d.File,
			fmt.Sprintf("%d", d.Previous),
			fmt.Sprintf("%d", d.Current),
			fmt.Sprintf("%+d", d.Delta),
			output.TrendArrow(d.Delta, false),
			d.Status,
		)
	}
	if tbl.Len() == 0 {
		fmt.Fprintln(w, " Neither run has any files.")
		return nil
	}
	tbl.Fprint(w)
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func toRows(records []scanner.FileRecord) []store.FileRecordRow {
	rows := make([]store.FileRecordRow, len(records))
	for i, r := range records {
		rows[i] = store.FileRecordRow{
			Position: i,
			File:     r.Name,
			RefCount: r.Count,
			Refs:     r.Refs,
			HasFunc:  r.HasFunc,
			HasType:  r.HasType,
		}
	}
	return rows
}

func fromRows(rows []store.FileRecordRow) []scanner.FileRecord {
	records := make([]scanner.FileRecord, len(rows))
	for i, r := range rows {
		records[i] = scanner.FileRecord{
			Name:    r.File,
			Refs:    r.Refs,
			Count:   len(r.Refs),
			HasFunc: r.HasFunc,
			HasType: r.HasType,
		}
	}
	return records
}

// absDir returns dir as an absolute path, or dir unchanged if that fails.
func absDir(dir string) string {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return dir
	}
	return abs
}
