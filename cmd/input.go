package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cosheet/cosheet-cli/workbook"
)

// readWorkbookInput reads a workbook from a path or "-" (stdin) and checks
// that its content is OOXML. A .xls file whose content is really OOXML is
// accepted with a note; a true binary .xls is rejected.
func readWorkbookInput(path string) (data []byte, name string, err error) {
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
		if err != nil {
			return nil, "", fmt.Errorf("reading stdin: %w", err)
		}
		name = "stdin.xlsx"
	} else {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, "", err
		}
		name = filepath.Base(path)
	}

	format := workbook.Detect(data)
	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case format == workbook.FormatOLE2:
		return nil, "", fmt.Errorf("%s: %w", name, workbook.ErrLegacyFormat)
	case format != workbook.FormatOOXML:
		return nil, "", fmt.Errorf("%s: %w", name, workbook.CheckFormat(data))
	case ext == ".xls":
		fmt.Fprintf(os.Stderr, "note: %s is %s format; reading it as .xlsx\n", name, format)
	}
	return data, name, nil
}
