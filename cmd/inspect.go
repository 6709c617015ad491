package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cosheet/cosheet-cli/codec"
	"github.com/spf13/cobra"
)

var inspectGrid bool

var inspectCmd = &cobra.Command{
	Use:   "inspect <file.sc|->",
	Short: "Summarize a sheet-interchange stream",
	Long: `Decode a sheet-interchange stream and print its dimensions, style table and
cell count. With --grid, print the cell values as tab-separated rows.

Examples:
  cosheet convert report.xlsx --mode concat | cosheet inspect -
  cosheet inspect out/1.sc --grid
  cosheet inspect out/1.sc --json`,
	Args: cobra.ExactArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().BoolVar(&inspectGrid, "grid", false, "Print cell values as tab-separated rows")
	rootCmd.AddCommand(inspectCmd)
}

type inspectReport struct {
	Version string         `json:"version"`
	Cols    int            `json:"cols"`
	Rows    int            `json:"rows"`
	Cells   int            `json:"cells"`
	Kinds   map[string]int `json:"kinds"`
	Styles  map[int]string `json:"styles,omitempty"`
	Grid    [][]string     `json:"grid,omitempty"`
}

func runInspect(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	var r io.Reader = os.Stdin
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}
	doc, err := codec.Decode(r)
	if err != nil {
		return err
	}

	report := inspectReport{
		Version: doc.Version,
		Cols:    doc.Cols,
		Rows:    doc.Rows,
		Cells:   len(doc.Cells),
		Kinds:   make(map[string]int),
		Styles:  doc.Styles,
	}
	for _, c := range doc.Cells {
		report.Kinds[c.Value.Kind.String()]++
	}
	if inspectGrid {
		if report.Grid, err = doc.Grid(); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	if jsonOutput {
		return jsonPrint(out, report)
	}

	if inspectGrid {
		for _, row := range report.Grid {
			fmt.Fprintln(out, strings.Join(row, "\t"))
		}
		return nil
	}

	fmt.Fprintf(out, "version %s, %d x %d, %s\n", report.Version, report.Cols, report.Rows, plural(report.Cells, "cell"))
	kinds := make([]string, 0, len(report.Kinds))
	for k := range report.Kinds {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		fmt.Fprintf(out, "  %-8s %d\n", k, report.Kinds[k])
	}
	idx := make([]int, 0, len(doc.Styles))
	for i := range doc.Styles {
		idx = append(idx, i)
	}
	sort.Ints(idx)
	for _, i := range idx {
		fmt.Fprintf(out, "style %d: %s\n", i, doc.Styles[i])
	}
	return nil
}
