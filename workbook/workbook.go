// Package workbook loads .xlsx files into the codec's workbook model.
package workbook

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cosheet/cosheet-cli/codec"
	"github.com/cosheet/cosheet-cli/internal"
	"github.com/xuri/excelize/v2"
)

// Options configures loading.
type Options struct {
	// Name is recorded as the workbook name (usually the file base name).
	Name string
	// Logger receives per-sheet debug output. Nil discards it.
	Logger *slog.Logger
}

// LoadFile opens an .xlsx file from disk.
func LoadFile(path string, opts Options) (*codec.Workbook, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()

	if opts.Name == "" {
		opts.Name = filepath.Base(path)
	}
	return Read(f, opts)
}

// Load reads .xlsx bytes from r.
func Load(r io.Reader, opts Options) (*codec.Workbook, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("opening workbook: %w", err)
	}
	defer f.Close()
	return Read(f, opts)
}

// LoadBytes is Load for an in-memory file.
func LoadBytes(data []byte, opts Options) (*codec.Workbook, error) {
	return Load(bytes.NewReader(data), opts)
}

// Read converts an open excelize file. Sheets keep workbook order.
func Read(f *excelize.File, opts Options) (*codec.Workbook, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	wb := &codec.Workbook{Name: opts.Name}
	styles := make(map[int]*codec.StyleDescriptor)
	for _, name := range f.GetSheetList() {
		sheet, err := readSheet(f, name, styles)
		if err != nil {
			return nil, fmt.Errorf("reading sheet %q: %w", name, err)
		}
		logger.Debug("sheet loaded", "sheet", name, "cells", sheet.Len())
		wb.Sheets = append(wb.Sheets, sheet)
	}
	return wb, nil
}

func readSheet(f *excelize.File, name string, styles map[int]*codec.StyleDescriptor) (*codec.Sheet, error) {
	sheet := codec.NewSheet(name)

	if dim, err := f.GetSheetDimension(name); err == nil && dim != "" {
		if _, r, err := internal.ParseRange(dim); err == nil {
			sheet.Declare(codec.UsedRange{
				MinRow: r.StartRow - 1,
				MaxRow: r.EndRow - 1,
				MinCol: r.StartCol - 1,
				MaxCol: r.EndCol - 1,
			})
		}
	}

	rows, err := f.Rows(name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rowIdx := 0; rows.Next(); rowIdx++ {
		cols, err := rows.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		for colIdx, raw := range cols {
			cellName, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+1)
			if err != nil {
				return nil, err
			}

			var c codec.Cell
			if raw != "" {
				typ, err := f.GetCellType(name, cellName)
				if err != nil {
					return nil, err
				}
				c.Value = cellValue(typ, raw)
			}
			c.Style, err = cellStyle(f, name, cellName, styles)
			if err != nil {
				return nil, err
			}
			if c.Value.IsBlank() && c.Style == nil {
				continue
			}
			if err := sheet.Set(rowIdx, colIdx, c); err != nil {
				return nil, err
			}
		}
	}
	return sheet, rows.Error()
}

// cellValue maps excelize's stored cell type to a codec value. A payload
// that does not parse as its declared type is passed through as a string
// under that type; the encoder recovers it as text.
func cellValue(typ excelize.CellType, raw string) codec.Value {
	switch typ {
	case excelize.CellTypeBool:
		if b, err := strconv.ParseBool(raw); err == nil {
			return codec.Bool(b)
		}
		return codec.Value{Kind: codec.KindBoolean, Raw: raw}
	case excelize.CellTypeError:
		return codec.ErrorCode(raw)
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return codec.Number(n)
		}
		if typ == excelize.CellTypeUnset {
			return codec.Text(raw)
		}
		return codec.Value{Kind: codec.KindNumber, Raw: raw}
	default:
		return codec.Text(raw)
	}
}

func cellStyle(f *excelize.File, sheet, cell string, cache map[int]*codec.StyleDescriptor) (*codec.StyleDescriptor, error) {
	id, err := f.GetCellStyle(sheet, cell)
	if err != nil || id == 0 {
		return nil, err
	}
	if d, ok := cache[id]; ok {
		return d, nil
	}
	st, err := f.GetStyle(id)
	if err != nil {
		return nil, err
	}
	d := styleDescriptor(st)
	if d.Attrs() == "" {
		cache[id] = nil
		return nil, nil
	}
	cache[id] = &d
	return &d, nil
}

func styleDescriptor(st *excelize.Style) codec.StyleDescriptor {
	var d codec.StyleDescriptor
	if st == nil {
		return d
	}
	if st.Font != nil {
		d.Bold = st.Font.Bold
		d.Italic = st.Font.Italic
		d.TextColor = normalizeColor(st.Font.Color)
	}
	if st.Fill.Type == "pattern" && st.Fill.Pattern > 0 && len(st.Fill.Color) > 0 {
		d.FillColor = normalizeColor(st.Fill.Color[0])
	}
	if st.Alignment != nil {
		if a := codec.HAlign(st.Alignment.Horizontal); a.Valid() {
			d.HorizontalAlign = a
		}
	}
	return d
}

// normalizeColor turns "#ff0000", "FF0000" or ARGB "FFFF0000" into "FF0000".
// Anything else (theme or indexed colors) yields "".
func normalizeColor(c string) string {
	c = strings.ToUpper(strings.TrimPrefix(c, "#"))
	if len(c) == 8 {
		c = c[2:]
	}
	if len(c) != 6 {
		return ""
	}
	for _, r := range c {
		if !strings.ContainsRune("0123456789ABCDEF", r) {
			return ""
		}
	}
	return c
}
