package codec

import (
	"fmt"
	"strings"
)

// Mode selects how a multi-sheet workbook becomes streams.
type Mode string

const (
	// ModePerSheet emits one independent stream per sheet, each with its
	// own style table.
	ModePerSheet Mode = "per-sheet"
	// ModeConcatenated stacks every sheet vertically into one stream that
	// shares a single style table.
	ModeConcatenated Mode = "concat"
)

// ParseMode accepts the names used on the command line and in config.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "per-sheet", "persheet", "multi":
		return ModePerSheet, nil
	case "concat", "concatenated", "merged", "single":
		return ModeConcatenated, nil
	default:
		return "", fmt.Errorf("invalid mode %q (must be per-sheet or concat)", s)
	}
}

// SheetHeader is the text of the synthetic cell that introduces each sheet
// in concatenated mode.
func SheetHeader(name string) string {
	return "--- Sheet: " + name + " ---"
}

// Emit encodes wb in the requested mode. Per-sheet mode returns one stream
// per sheet (none for a workbook without sheets); concatenated mode always
// returns exactly one.
func Emit(wb *Workbook, mode Mode) ([]*Stream, error) {
	if err := wb.Validate(); err != nil {
		return nil, err
	}
	switch mode {
	case ModePerSheet:
		return EmitPerSheet(wb), nil
	case ModeConcatenated:
		return []*Stream{EmitConcatenated(wb)}, nil
	default:
		return nil, fmt.Errorf("codec: unknown mode %q", mode)
	}
}

// EmitPerSheet runs EmitSheet on every sheet in order.
func EmitPerSheet(wb *Workbook) []*Stream {
	out := make([]*Stream, 0, len(wb.Sheets))
	for _, s := range wb.Sheets {
		out = append(out, EmitSheet(s))
	}
	return out
}

// EmitConcatenated stacks all sheets into one stream. Each non-empty sheet
// gets an unstyled header cell in column A at row offset+1, its own cells
// shifted down by offset+1, and the offset then advances by the sheet height
// plus 2 (header and separator). The increment is applied after the last
// sheet as well, so the final row count includes one trailing blank row;
// consumers depend on that total. Sheets with no cells are skipped.
func EmitConcatenated(wb *Workbook) *Stream {
	e := newEmitter(NewStyleTable())
	offset := 0
	maxCol := 0
	for _, s := range wb.Sheets {
		r, ok := s.Range()
		if !ok {
			continue
		}
		e.cell(s.Name, 1, offset+1, Cell{Value: Text(SheetHeader(s.Name))})

		shift := offset + 1
		e.sheet(s, func(row int) int { return row + 1 + shift })

		maxCol = max(maxCol, r.MaxCol+1)
		offset += r.Height() + 2
	}
	return e.finish(wb.Name, maxCol, offset)
}

// HeaderRows returns the 1-based header row of each non-empty sheet in
// concatenated mode, keyed by sheet name.
func HeaderRows(wb *Workbook) map[string]int {
	rows := make(map[string]int)
	offset := 0
	for _, s := range wb.Sheets {
		r, ok := s.Range()
		if !ok {
			continue
		}
		rows[s.Name] = offset + 1
		offset += r.Height() + 2
	}
	return rows
}
