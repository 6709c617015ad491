// Package codec converts workbooks to and from the line-oriented SocialCalc
// interchange text stored by the collaborative sheet server.
//
// A stream looks like:
//
//	version:1.5
//	cell:A1:t:Month:s:1
//	cell:B2:v:100
//	style:1:font-weight:bold;
//	sheet:c:2:r:2
//
// Workbooks come from a parser (see package workbook) and are never mutated
// here. Every emission call is pure: the same input yields byte-identical
// output.
package codec

import (
	"errors"
	"fmt"
	"sort"
)

// Kind is the declared type of a cell value.
type Kind uint8

const (
	KindBlank Kind = iota
	KindNumber
	KindBoolean
	KindError
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindError:
		return "error"
	case KindText:
		return "text"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Value is a tagged cell value. Raw carries the parser's payload; its Go type
// is expected to match Kind (float64 or an integer type for numbers, bool for
// booleans, string for errors and text) but is not required to.
type Value struct {
	Kind Kind
	Raw  any
}

// Number returns a numeric value.
func Number(f float64) Value { return Value{Kind: KindNumber, Raw: f} }

// Bool returns a logical value.
func Bool(b bool) Value { return Value{Kind: KindBoolean, Raw: b} }

// ErrorCode returns an error value such as "#DIV/0!".
func ErrorCode(s string) Value { return Value{Kind: KindError, Raw: s} }

// Text returns a string value.
func Text(s string) Value { return Value{Kind: KindText, Raw: s} }

// IsBlank reports whether v carries no value at all.
func (v Value) IsBlank() bool { return v.Kind == KindBlank && v.Raw == nil }

// HAlign is a horizontal alignment understood by the interchange format.
type HAlign string

const (
	AlignNone   HAlign = ""
	AlignLeft   HAlign = "left"
	AlignCenter HAlign = "center"
	AlignRight  HAlign = "right"
)

// Valid reports whether a is one of left, center or right.
func (a HAlign) Valid() bool {
	return a == AlignLeft || a == AlignCenter || a == AlignRight
}

// StyleDescriptor is the subset of cell formatting carried by the format.
// Colors are six hex digits without a leading '#'. Zero fields are absent.
// Two descriptors are the same style when their Attrs strings are equal.
type StyleDescriptor struct {
	Bold            bool
	Italic          bool
	TextColor       string
	FillColor       string
	HorizontalAlign HAlign
}

// Cell is one populated grid position.
type Cell struct {
	Value Value
	Style *StyleDescriptor
}

// UsedRange is the 0-based inclusive bounding box of a sheet.
type UsedRange struct {
	MinRow, MaxRow int
	MinCol, MaxCol int
}

func (r UsedRange) Width() int  { return r.MaxCol - r.MinCol + 1 }
func (r UsedRange) Height() int { return r.MaxRow - r.MinRow + 1 }

func (r UsedRange) union(o UsedRange) UsedRange {
	return UsedRange{
		MinRow: min(r.MinRow, o.MinRow),
		MaxRow: max(r.MaxRow, o.MaxRow),
		MinCol: min(r.MinCol, o.MinCol),
		MaxCol: max(r.MaxCol, o.MaxCol),
	}
}

// Pos is a 0-based (row, col) grid position.
type Pos struct {
	Row, Col int
}

// ErrNegativePosition is returned by Sheet.Set for rows or columns below 0.
var ErrNegativePosition = errors.New("codec: negative cell position")

// Sheet is a sparse grid of cells.
type Sheet struct {
	Name string

	cells    map[Pos]Cell
	bounds   UsedRange
	declared *UsedRange
}

// NewSheet returns an empty sheet.
func NewSheet(name string) *Sheet {
	return &Sheet{Name: name, cells: make(map[Pos]Cell)}
}

// Set stores c at the 0-based position (row, col), replacing any previous cell.
func (s *Sheet) Set(row, col int, c Cell) error {
	if row < 0 || col < 0 {
		return fmt.Errorf("%w: row=%d col=%d", ErrNegativePosition, row, col)
	}
	if s.cells == nil {
		s.cells = make(map[Pos]Cell)
	}
	p := Pos{Row: row, Col: col}
	if len(s.cells) == 0 {
		s.bounds = UsedRange{MinRow: row, MaxRow: row, MinCol: col, MaxCol: col}
	} else {
		s.bounds = s.bounds.union(UsedRange{MinRow: row, MaxRow: row, MinCol: col, MaxCol: col})
	}
	s.cells[p] = c
	return nil
}

// Declare widens the used range to include r, the way a parser reports a
// sheet dimension larger than its populated cells. A declared range alone
// does not make an empty sheet non-empty.
func (s *Sheet) Declare(r UsedRange) {
	if s.declared == nil {
		s.declared = &r
		return
	}
	u := s.declared.union(r)
	s.declared = &u
}

// Get returns the cell at (row, col).
func (s *Sheet) Get(row, col int) (Cell, bool) {
	c, ok := s.cells[Pos{Row: row, Col: col}]
	return c, ok
}

// Len is the number of stored cells.
func (s *Sheet) Len() int { return len(s.cells) }

// Range returns the used range, or ok=false when the sheet has no cells.
func (s *Sheet) Range() (r UsedRange, ok bool) {
	if len(s.cells) == 0 {
		return UsedRange{}, false
	}
	r = s.bounds
	if s.declared != nil {
		r = r.union(*s.declared)
	}
	return r, true
}

// Positions lists stored positions row-major: top to bottom, then left to right.
func (s *Sheet) Positions() []Pos {
	out := make([]Pos, 0, len(s.cells))
	for p := range s.cells {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Row != out[j].Row {
			return out[i].Row < out[j].Row
		}
		return out[i].Col < out[j].Col
	})
	return out
}

// Workbook is an ordered list of uniquely named sheets.
type Workbook struct {
	Name   string
	Sheets []*Sheet
}

// ErrDuplicateSheet is returned when two sheets share a name.
var ErrDuplicateSheet = errors.New("codec: duplicate sheet name")

// Validate checks workbook-level invariants.
func (wb *Workbook) Validate() error {
	seen := make(map[string]bool, len(wb.Sheets))
	for i, s := range wb.Sheets {
		if s == nil {
			return fmt.Errorf("codec: sheet %d is nil", i+1)
		}
		if seen[s.Name] {
			return fmt.Errorf("%w: %q", ErrDuplicateSheet, s.Name)
		}
		seen[s.Name] = true
	}
	return nil
}

// SheetNames lists sheet names in workbook order.
func (wb *Workbook) SheetNames() []string {
	names := make([]string, len(wb.Sheets))
	for i, s := range wb.Sheets {
		names[i] = s.Name
	}
	return names
}
