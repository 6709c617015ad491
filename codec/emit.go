package codec

import (
	"io"
	"strconv"
	"strings"

	"github.com/cosheet/cosheet-cli/internal"
)

// Version is the format version written on the first line of every stream.
const Version = "1.5"

// Stream is one emitted interchange document.
type Stream struct {
	// Title is the source sheet name, or the workbook name in concatenated mode.
	Title string
	Lines []string
	// Warnings lists cells that were recovered by falling back to text.
	Warnings []*MalformedCellError
}

// String joins the lines with "\n". There is no trailing newline.
func (s *Stream) String() string {
	return strings.Join(s.Lines, "\n")
}

// Bytes is String as a byte slice.
func (s *Stream) Bytes() []byte {
	return []byte(s.String())
}

// WriteTo writes the stream text to w.
func (s *Stream) WriteTo(w io.Writer) (int64, error) {
	n, err := io.WriteString(w, s.String())
	return int64(n), err
}

// CellCount is the number of cell lines in the stream.
func (s *Stream) CellCount() int {
	n := 0
	for _, l := range s.Lines {
		if strings.HasPrefix(l, cellStart) {
			n++
		}
	}
	return n
}

// emitter accumulates one stream. Both emission modes go through cell(), so
// escaping, value encoding and style interning cannot drift between them.
type emitter struct {
	styles   *StyleTable
	lines    []string
	warnings []*MalformedCellError
}

func newEmitter(styles *StyleTable) *emitter {
	return &emitter{
		styles: styles,
		lines:  []string{"version:" + Version},
	}
}

// sheet emits every populated cell of s, row-major. rowOf maps a 0-based
// source row to the 1-based output row; columns are never shifted.
func (e *emitter) sheet(s *Sheet, rowOf func(row int) int) {
	for _, p := range s.Positions() {
		c := s.cells[p]
		e.cell(s.Name, p.Col+1, rowOf(p.Row), c)
	}
}

func (e *emitter) cell(sheetName string, col, row int, c Cell) {
	styleIdx := 0
	if c.Style != nil {
		if idx, ok := e.styles.Intern(*c.Style); ok {
			styleIdx = idx
		}
	}
	coord := internal.Coordinate(col, row)
	line, malformed, ok := cellLine(coord, c.Value, styleIdx)
	if !ok {
		return
	}
	if malformed {
		e.warnings = append(e.warnings, &MalformedCellError{
			Sheet: sheetName,
			Coord: coord,
			Kind:  c.Value.Kind,
			Raw:   c.Value.Raw,
		})
	}
	e.lines = append(e.lines, line)
}

// finish appends the style table and the dimension line.
func (e *emitter) finish(title string, cols, rows int) *Stream {
	e.lines = append(e.lines, e.styles.Lines()...)
	e.lines = append(e.lines, "sheet:c:"+strconv.Itoa(cols)+":r:"+strconv.Itoa(rows))
	return &Stream{Title: title, Lines: e.lines, Warnings: e.warnings}
}

// EmitSheet encodes one sheet with its own style table. An empty sheet
// yields just the version and "sheet:c:0:r:0" lines.
func EmitSheet(s *Sheet) *Stream {
	e := newEmitter(NewStyleTable())
	r, ok := s.Range()
	if !ok {
		return e.finish(s.Name, 0, 0)
	}
	e.sheet(s, func(row int) int { return row + 1 })
	return e.finish(s.Name, r.Width(), r.Height())
}
