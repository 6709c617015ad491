package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/cosheet/cosheet-cli/codec"
	"github.com/cosheet/cosheet-cli/job"
	"github.com/spf13/cobra"
)

var (
	convertMode   modeFlag
	convertOutput string
)

var convertCmd = &cobra.Command{
	Use:   "convert <file.xlsx>",
	Short: "Convert a workbook to sheet-interchange text",
	Long: `Convert an Excel workbook to sheet-interchange text without uploading it.

In per-sheet mode, -o names a directory that receives one <n>.sc file per sheet
and an index.csv table of contents. In concat mode, -o names the output file.
Without -o, streams are written to stdout.

Examples:
  cosheet convert report.xlsx --mode concat > report.sc
  cosheet convert report.xlsx -o out/
  cosheet convert report.xlsx --json`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	addModeFlag(convertCmd.Flags(), &convertMode)
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "", "Output file (concat) or directory (per-sheet)")
	rootCmd.AddCommand(convertCmd)
}

type convertSummary struct {
	Workbook string         `json:"workbook"`
	Mode     codec.Mode     `json:"mode"`
	Streams  []streamReport `json:"streams"`
}

type streamReport struct {
	Title    string `json:"title"`
	Cells    int    `json:"cells"`
	Bytes    int    `json:"bytes"`
	Warnings int    `json:"warnings"`
	Path     string `json:"path,omitempty"`
}

func runConvert(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true
	logger := newLogger()

	mode, err := resolveMode(&convertMode)
	if err != nil {
		return err
	}
	data, name, err := readWorkbookInput(args[0])
	if err != nil {
		return err
	}

	h := job.Submit(cmdContext(cmd), data, job.Options{Mode: mode, Name: name, Logger: logger})
	streams, err := waitJob(h, logger)
	if err != nil {
		return err
	}
	printWarnings(streams)

	summary := convertSummary{Workbook: name, Mode: mode}
	for _, s := range streams {
		summary.Streams = append(summary.Streams, streamReport{
			Title:    s.Title,
			Cells:    s.CellCount(),
			Bytes:    len(s.Bytes()),
			Warnings: len(s.Warnings),
		})
	}

	out := cmd.OutOrStdout()
	switch {
	case convertOutput != "" && mode == codec.ModePerSheet:
		paths, err := writeSheetDir(convertOutput, streams)
		if err != nil {
			return err
		}
		for i, p := range paths {
			summary.Streams[i].Path = p
		}
	case convertOutput != "":
		if err := os.WriteFile(convertOutput, streams[0].Bytes(), 0o644); err != nil {
			return err
		}
		summary.Streams[0].Path = convertOutput
	case !jsonOutput:
		for i, s := range streams {
			if len(streams) > 1 {
				// The decoder ignores lines with unknown prefixes.
				fmt.Fprintf(out, "# sheet %d: %s\n", i+1, s.Title)
			}
			if _, err := s.WriteTo(out); err != nil {
				return err
			}
			fmt.Fprintln(out)
		}
		return nil
	}

	if jsonOutput {
		return jsonPrint(out, summary)
	}
	for _, r := range summary.Streams {
		fmt.Fprintf(out, "%-24s %s, %d bytes -> %s\n", r.Title, plural(r.Cells, "cell"), r.Bytes, r.Path)
	}
	return nil
}

// writeSheetDir writes one file per stream and an index.csv table of contents
// pointing at them.
func writeSheetDir(dir string, streams []*codec.Stream) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	var toc codec.TableOfContents
	var paths []string
	for i, s := range streams {
		base := strconv.Itoa(i+1) + ".sc"
		p := filepath.Join(dir, base)
		if err := os.WriteFile(p, s.Bytes(), 0o644); err != nil {
			return nil, err
		}
		toc.Add(base, s.Title)
		paths = append(paths, p)
	}
	if err := os.WriteFile(filepath.Join(dir, "index.csv"), []byte(toc.String()), 0o644); err != nil {
		return nil, err
	}
	return paths, nil
}

// waitJob drains a job's events, logging progress, and returns its streams.
func waitJob(h *job.Handle, logger *slog.Logger) ([]*codec.Stream, error) {
	for ev := range h.Events() {
		switch ev.Kind {
		case job.EventStatus:
			logger.Debug(ev.Message)
		case job.EventReady:
			logger.Debug("workbook parsed", "sheets", len(ev.Metadata.Sheets))
		}
	}
	return h.Wait()
}

func cmdContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
