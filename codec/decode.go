package codec

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/cosheet/cosheet-cli/internal"
)

// DecodedCell is one cell line read back from a stream.
type DecodedCell struct {
	Coord string
	Col   int // 1-based
	Row   int // 1-based
	Value Value
	Style int
}

// Document is a parsed stream.
type Document struct {
	Version string
	Cells   []DecodedCell
	// Styles maps a style index to its attribute string.
	Styles map[int]string
	Cols   int
	Rows   int
}

// SyntaxError reports a line the decoder could not read.
type SyntaxError struct {
	Line int
	Text string
	Msg  string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("line %d: %s: %q", e.Line, e.Msg, e.Text)
}

// DecodeString parses stream text.
func DecodeString(s string) (*Document, error) {
	return Decode(strings.NewReader(s))
}

// Decode parses a stream. Lines with unknown prefixes are ignored, matching
// how the sheet server treats attributes it does not know.
func Decode(r io.Reader) (*Document, error) {
	doc := &Document{Styles: make(map[int]string)}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSuffix(sc.Text(), "\r")
		kind, rest, _ := strings.Cut(line, ":")
		switch kind {
		case "version":
			doc.Version = rest
		case "cell":
			c, err := decodeCell(rest)
			if err != nil {
				return nil, &SyntaxError{Line: n, Text: line, Msg: err.Error()}
			}
			doc.Cells = append(doc.Cells, c)
		case "style":
			idx, attrs, ok := strings.Cut(rest, ":")
			i, err := strconv.Atoi(idx)
			if !ok || err != nil || i < 1 {
				return nil, &SyntaxError{Line: n, Text: line, Msg: "bad style index"}
			}
			doc.Styles[i] = attrs
		case "sheet":
			if err := decodeDims(doc, rest); err != nil {
				return nil, &SyntaxError{Line: n, Text: line, Msg: err.Error()}
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeCell(rest string) (DecodedCell, error) {
	parts := strings.Split(rest, ":")
	var c DecodedCell
	var err error
	c.Coord = parts[0]
	c.Col, c.Row, err = internal.ParseCoordinate(c.Coord)
	if err != nil {
		return c, err
	}
	for i := 1; i+1 < len(parts); i += 2 {
		key, val := parts[i], parts[i+1]
		switch key {
		case "v":
			f, err := strconv.ParseFloat(val, 64)
			if err != nil {
				return c, fmt.Errorf("bad number %q", val)
			}
			c.Value = Number(f)
		case "vt":
			if val == "logical" && c.Value.Kind == KindNumber {
				c.Value = Bool(c.Value.Raw.(float64) != 0)
			}
		case "t":
			c.Value = Text(DecodeText(val))
		case "e":
			c.Value = ErrorCode(DecodeText(val))
		case "s":
			c.Style, err = strconv.Atoi(val)
			if err != nil {
				return c, fmt.Errorf("bad style reference %q", val)
			}
		}
	}
	return c, nil
}

func decodeDims(doc *Document, rest string) error {
	parts := strings.Split(rest, ":")
	for i := 0; i+1 < len(parts); i += 2 {
		n, err := strconv.Atoi(parts[i+1])
		if err != nil {
			return fmt.Errorf("bad dimension %q", parts[i+1])
		}
		switch parts[i] {
		case "c":
			doc.Cols = n
		case "r":
			doc.Rows = n
		}
	}
	return nil
}

// Style returns the descriptor for a style index.
func (d *Document) Style(idx int) (StyleDescriptor, bool) {
	attrs, ok := d.Styles[idx]
	if !ok {
		return StyleDescriptor{}, false
	}
	return ParseAttrs(attrs), true
}

// MaxGridCells bounds the dense table Grid will allocate.
const MaxGridCells = 1 << 22

// Grid renders the cells as a dense row-major table of display strings,
// sized to the furthest populated cell. It fails rather than allocate more
// than MaxGridCells entries.
func (d *Document) Grid() ([][]string, error) {
	maxRow, maxCol := 0, 0
	for _, c := range d.Cells {
		maxRow = max(maxRow, c.Row)
		maxCol = max(maxCol, c.Col)
	}
	if maxRow > MaxGridCells || maxCol > MaxGridCells || maxRow*maxCol > MaxGridCells {
		return nil, fmt.Errorf("grid of %d rows by %d columns exceeds %d cells", maxRow, maxCol, MaxGridCells)
	}
	grid := make([][]string, maxRow)
	for i := range grid {
		grid[i] = make([]string, maxCol)
	}
	for _, c := range d.Cells {
		grid[c.Row-1][c.Col-1] = rawString(c.Value.Raw)
	}
	return grid, nil
}
