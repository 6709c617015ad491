package internal

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidCoordinate is wrapped by every coordinate or range parse failure.
var ErrInvalidCoordinate = errors.New("invalid coordinate")

// cellRefRe matches a cell reference like A1, $B$2, AA100
var cellRefRe = regexp.MustCompile(`^\$?([A-Z]+)\$?(\d+)$`)

// maxColumns bounds parsed column letters so LetterToCol cannot overflow.
const maxColumns = 1 << 24

// Coordinate converts a 1-indexed (col, row) pair to letter+number notation,
// e.g. (1, 1) -> "A1", (28, 5) -> "AB5". It panics when col or row is below 1.
func Coordinate(col, row int) string {
	if col < 1 || row < 1 {
		panic(fmt.Sprintf("internal.Coordinate: col and row must be >= 1, got col=%d row=%d", col, row))
	}
	return ColToLetter(col) + strconv.Itoa(row)
}

// ParseCoordinate is the inverse of Coordinate. Lowercase letters and
// absolute markers ($A$1) are accepted.
func ParseCoordinate(ref string) (col, row int, err error) {
	return parseRef(ref)
}

// Range is a 1-indexed inclusive cell rectangle.
type Range struct {
	StartCol, StartRow int
	EndCol, EndRow     int
}

// Width is the number of columns covered by the range.
func (r Range) Width() int { return r.EndCol - r.StartCol + 1 }

// Height is the number of rows covered by the range.
func (r Range) Height() int { return r.EndRow - r.StartRow + 1 }

// String formats the range as "A1:C9", or "A1" for a single cell.
func (r Range) String() string {
	from := Coordinate(r.StartCol, r.StartRow)
	to := Coordinate(r.EndCol, r.EndRow)
	if from == to {
		return from
	}
	return from + ":" + to
}

// ParseRange parses a used-range reference like "A1:Z50", "Sheet1!A1:Z50"
// or a single cell "B3". The sheet qualifier, if any, is returned separately.
// Reversed corners are normalized.
func ParseRange(address string) (sheet string, r Range, err error) {
	rangePart := address
	if sheetPart, rest, hasSheet := strings.Cut(address, "!"); hasSheet {
		// Remove surrounding quotes from sheet name
		sheet = strings.Trim(sheetPart, "'")
		rangePart = rest
	}

	fromRef, toRef, hasColon := strings.Cut(rangePart, ":")
	if !hasColon {
		toRef = fromRef // single cell
	}

	r.StartCol, r.StartRow, err = parseRef(fromRef)
	if err != nil {
		return "", Range{}, fmt.Errorf("invalid start of range %q: %w", fromRef, err)
	}
	r.EndCol, r.EndRow, err = parseRef(toRef)
	if err != nil {
		return "", Range{}, fmt.Errorf("invalid end of range %q: %w", toRef, err)
	}

	// Normalize order
	if r.StartRow > r.EndRow {
		r.StartRow, r.EndRow = r.EndRow, r.StartRow
	}
	if r.StartCol > r.EndCol {
		r.StartCol, r.EndCol = r.EndCol, r.StartCol
	}

	return sheet, r, nil
}

// ColToLetter converts a 1-indexed column number to bijective base-26
// letters. Values below 1 yield "".
func ColToLetter(col int) string {
	var buf [16]byte
	i := len(buf)
	for col > 0 {
		col--
		i--
		buf[i] = byte('A' + col%26)
		col /= 26
	}
	return string(buf[i:])
}

// LetterToCol converts column letters back to a 1-indexed column number.
func LetterToCol(letters string) (int, error) {
	if letters == "" {
		return 0, fmt.Errorf("%w: empty column", ErrInvalidCoordinate)
	}
	col := 0
	for _, c := range strings.ToUpper(letters) {
		if c < 'A' || c > 'Z' {
			return 0, fmt.Errorf("%w: column %q", ErrInvalidCoordinate, letters)
		}
		col = col*26 + int(c-'A'+1)
		if col > maxColumns {
			return 0, fmt.Errorf("%w: column %q out of range", ErrInvalidCoordinate, letters)
		}
	}
	return col, nil
}

func parseRef(ref string) (col, row int, err error) {
	m := cellRefRe.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(ref)))
	if m == nil {
		return 0, 0, fmt.Errorf("%w: cell reference %q", ErrInvalidCoordinate, ref)
	}
	col, err = LetterToCol(m[1])
	if err != nil {
		return 0, 0, err
	}
	row, err = strconv.Atoi(m[2])
	if err != nil || row < 1 {
		return 0, 0, fmt.Errorf("%w: row in %q", ErrInvalidCoordinate, ref)
	}
	return col, row, nil
}
