package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/cosheet/cosheet-cli/codec"
)

// ExitError signals a non-zero exit code without printing an error message.
type ExitError struct{ Code int }

func (e *ExitError) Error() string { return "" }

func jsonPrint(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printWarnings reports cells that were recovered as text.
func printWarnings(streams []*codec.Stream) {
	for _, s := range streams {
		for _, w := range s.Warnings {
			fmt.Fprintf(os.Stderr, "note: %v\n", w)
		}
	}
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}
