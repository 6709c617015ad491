package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/cosheet/cosheet-cli/client"
	"github.com/cosheet/cosheet-cli/codec"
	"github.com/cosheet/cosheet-cli/job"
	"github.com/spf13/cobra"
)

var (
	importMode        modeFlag
	importRoom        string
	importConcurrency int
	importResume      bool
	importCleanup     bool
)

// newJournal is swapped out in tests.
var newJournal = client.NewJournal

var importCmd = &cobra.Command{
	Use:   "import <file.xlsx>",
	Short: "Convert a workbook and upload it to the sheet server",
	Long: `Convert an Excel workbook and upload it into a new room on the sheet server.

In per-sheet mode every sheet is stored as <room>.<n> and a table of contents is
stored at <room>; the table of contents is written only after every sheet
has been stored. In concat mode all sheets are stacked into one sheet stored
at <room>.

If a sheet write fails, nothing references the sheets already written. Re-run
with --resume --room <room> to retry only the missing pieces, or pass
--cleanup to delete them.

Examples:
  cosheet import report.xlsx
  cosheet import report.xlsx --mode concat --room q3-report
  cosheet import report.xlsx --resume --room k3j9x0q2m1ab`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	addModeFlag(importCmd.Flags(), &importMode)
	importCmd.Flags().StringVar(&importRoom, "room", "", "Room id (default: random)")
	importCmd.Flags().IntVarP(&importConcurrency, "concurrency", "c", 4, "Concurrent sheet uploads (env: COSHEET_CONCURRENCY)")
	importCmd.Flags().BoolVar(&importResume, "resume", false, "Continue an interrupted import into --room")
	importCmd.Flags().BoolVar(&importCleanup, "cleanup", false, "Delete written sheets if the import fails")
	rootCmd.AddCommand(importCmd)
}

type importReport struct {
	*client.UploadResult
	URL      string     `json:"url"`
	Mode     codec.Mode `json:"mode"`
	Workbook string     `json:"workbook"`
}

func runImport(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	ctx := cmdContext(cmd)
	logger := newLogger()

	mode, err := resolveMode(&importMode)
	if err != nil {
		return err
	}
	concurrency, err := resolveConcurrency(importConcurrency, cmd.Flags().Changed("concurrency"))
	if err != nil {
		return err
	}
	data, name, err := readWorkbookInput(args[0])
	if err != nil {
		return err
	}

	c := newClient(logger)
	journal := newJournal()
	source := client.HashBytes(data)

	room := importRoom
	var skip map[string]bool
	switch {
	case importResume:
		if room == "" {
			return fmt.Errorf("--resume requires --room")
		}
		entry, ok := journal.Get(room)
		if !ok {
			return fmt.Errorf("no import of room %s is recorded in %s", room, journalLocation(journal))
		}
		if entry.Source != source {
			return fmt.Errorf("room %s was imported from a different workbook", room)
		}
		if entry.Mode != string(mode) {
			return fmt.Errorf("room %s was imported in %s mode; pass --mode %s", room, entry.Mode, entry.Mode)
		}
		if entry.BaseURL != c.BaseURL {
			return fmt.Errorf("room %s was imported to %s, not %s; pass --server %s", room, entry.BaseURL, c.BaseURL, entry.BaseURL)
		}
		if entry.Complete() {
			fmt.Fprintf(os.Stderr, "note: room %s is already complete\n", room)
		}
		skip = entry.SkipSet()
	case room == "":
		room, err = client.NewRoomID(12)
		if err != nil {
			return err
		}
	}
	if err := client.ValidateRoom(room); err != nil {
		return err
	}

	h := job.Submit(ctx, data, job.Options{Mode: mode, Name: name, Logger: logger})
	streams, err := waitJob(h, logger)
	if err != nil {
		return err
	}
	printWarnings(streams)

	journal.Begin(client.JournalEntry{
		Room:     room,
		BaseURL:  c.BaseURL,
		Source:   source,
		Filename: name,
		Mode:     string(mode),
		Sheets:   len(streams),
	})
	seq := &client.Sequencer{
		Store:       c,
		Concurrency: concurrency,
		Logger:      logger,
		OnWritten:   func(u client.UploadUnit) { journal.Record(room, u) },
	}

	var res *client.UploadResult
	multi := false
	if mode == codec.ModeConcatenated {
		var unit client.UploadUnit
		unit, err = client.SingleUnit(room, streams[0])
		if err != nil {
			return err
		}
		if skip[room] {
			res = &client.UploadResult{Room: room, Succeeded: []string{room}, Skipped: []string{room}}
		} else {
			res, err = seq.UploadSingle(ctx, unit)
		}
	} else {
		var plan *client.Plan
		plan, err = client.NewPlan(room, streams)
		if err != nil {
			return err
		}
		multi = len(plan.Sheets) > 1
		res, err = seq.Upload(ctx, plan, skip)
	}
	if err != nil {
		return importFailed(cmd, args[0], c, journal, room, res, err)
	}

	report := importReport{UploadResult: res, URL: c.RoomURL(room, multi), Mode: mode, Workbook: name}
	if jsonOutput {
		return jsonPrint(cmd.OutOrStdout(), report)
	}
	written := len(res.Succeeded) - len(res.Skipped)
	if mode == codec.ModePerSheet {
		fmt.Fprintf(os.Stderr, "note: %s written to room %s\n", plural(written, "sheet"), room)
	}
	fmt.Fprintln(cmd.OutOrStdout(), report.URL)
	return nil
}

// importFailed reports a partial upload and optionally removes what was
// written. The original error is returned so the exit status reflects it.
func importFailed(cmd *cobra.Command, input string, d client.Deleter, journal *client.Journal, room string, res *client.UploadResult, err error) error {
	var sheetErr *client.SheetUploadError
	var tocErr *client.TOCUploadError
	switch {
	case errors.As(err, &sheetErr):
		fmt.Fprintf(os.Stderr, "note: sheets %v failed; written: %v\n", sheetErr.Failed, sheetErr.Succeeded)
	case errors.As(err, &tocErr):
		fmt.Fprintf(os.Stderr, "note: all sheets written but the table of contents failed; room %s has no index\n", room)
	}

	if importCleanup && res != nil {
		written := make([]string, 0, len(res.Succeeded))
		for _, id := range res.Succeeded {
			if id != room {
				written = append(written, id)
			}
		}
		if cerr := client.Cleanup(cmdContext(cmd), d, written); cerr != nil {
			fmt.Fprintf(os.Stderr, "note: cleanup incomplete: %v\n", cerr)
		} else {
			journal.Forget(room)
			fmt.Fprintf(os.Stderr, "note: removed %s from room %s\n", plural(len(written), "sheet"), room)
			return err
		}
	}
	fmt.Fprintf(os.Stderr, "note: retry with: cosheet import %s --resume --room %s\n", input, room)
	return err
}

func journalLocation(j *client.Journal) string {
	if j.Dir() == "" {
		return "this session (journal is in memory)"
	}
	return j.Dir()
}
