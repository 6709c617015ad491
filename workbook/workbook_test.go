package workbook

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/cosheet/cosheet-cli/codec"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func buildMonths(t *testing.T) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	require.NoError(t, f.SetSheetName("Sheet1", "Jan"))
	_, err := f.NewSheet("Feb")
	require.NoError(t, err)

	for sheet, v := range map[string]int{"Jan": 100, "Feb": 150} {
		require.NoError(t, f.SetCellValue(sheet, "A1", "Month"))
		require.NoError(t, f.SetCellValue(sheet, "B1", "Sales"))
		require.NoError(t, f.SetCellValue(sheet, "A2", sheet))
		require.NoError(t, f.SetCellValue(sheet, "B2", v))
	}

	header, err := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Color: "FF0000"},
		Fill:      excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#FFFF00"}},
		Alignment: &excelize.Alignment{Horizontal: "center"},
	})
	require.NoError(t, err)
	require.NoError(t, f.SetCellStyle("Jan", "A1", "B1", header))

	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestLoad_MonthsWorkbook(t *testing.T) {
	wb, err := Load(buildMonths(t), Options{Name: "months.xlsx"})
	require.NoError(t, err)

	assert.Equal(t, "months.xlsx", wb.Name)
	assert.Equal(t, []string{"Jan", "Feb"}, wb.SheetNames())

	jan := wb.Sheets[0]
	r, ok := jan.Range()
	require.True(t, ok)
	assert.Equal(t, 2, r.Width())
	assert.Equal(t, 2, r.Height())

	a1, ok := jan.Get(0, 0)
	require.True(t, ok)
	assert.Equal(t, codec.Text("Month"), a1.Value)
	require.NotNil(t, a1.Style)
	assert.Equal(t, codec.StyleDescriptor{
		Bold:            true,
		TextColor:       "FF0000",
		FillColor:       "FFFF00",
		HorizontalAlign: codec.AlignCenter,
	}, *a1.Style)

	b2, ok := jan.Get(1, 1)
	require.True(t, ok)
	assert.Equal(t, codec.Number(100), b2.Value)
	assert.Nil(t, b2.Style)
}

func TestLoad_EmitsExpectedStreams(t *testing.T) {
	wb, err := Load(buildMonths(t), Options{})
	require.NoError(t, err)

	streams, err := codec.Emit(wb, codec.ModePerSheet)
	require.NoError(t, err)
	require.Len(t, streams, 2)
	assert.Equal(t, "version:1.5\n"+
		"cell:A1:t:Month:s:1\n"+
		"cell:B1:t:Sales:s:1\n"+
		"cell:A2:t:Jan\n"+
		"cell:B2:v:100\n"+
		"style:1:font-weight:bold;color:#FF0000;background-color:#FFFF00;text-align:center;\n"+
		"sheet:c:2:r:2", streams[0].String())
	assert.Equal(t, 4, streams[1].CellCount())
}

func TestLoad_BooleansAndEmptySheet(t *testing.T) {
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", true))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", 2.5))
	_, err := f.NewSheet("Empty")
	require.NoError(t, err)
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)

	wb, err := LoadBytes(buf.Bytes(), Options{})
	require.NoError(t, err)
	require.Len(t, wb.Sheets, 2)

	a1, ok := wb.Sheets[0].Get(0, 0)
	require.True(t, ok)
	assert.Equal(t, codec.Bool(true), a1.Value)
	b1, _ := wb.Sheets[0].Get(0, 1)
	assert.Equal(t, codec.Number(2.5), b1.Value)

	assert.Equal(t, "version:1.5\nsheet:c:0:r:0", codec.EmitSheet(wb.Sheets[1]).String())
}

func TestLoadFile_DefaultsNameToBase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, os.WriteFile(path, buildMonths(t).Bytes(), 0o644))

	wb, err := LoadFile(path, Options{})
	require.NoError(t, err)
	assert.Equal(t, "book.xlsx", wb.Name)
}

func TestLoad_RejectsGarbage(t *testing.T) {
	_, err := LoadBytes([]byte("not a zip"), Options{})
	assert.Error(t, err)
}

func TestCellValue(t *testing.T) {
	tests := []struct {
		typ  excelize.CellType
		raw  string
		want codec.Value
	}{
		{excelize.CellTypeBool, "1", codec.Bool(true)},
		{excelize.CellTypeBool, "0", codec.Bool(false)},
		{excelize.CellTypeBool, "maybe", codec.Value{Kind: codec.KindBoolean, Raw: "maybe"}},
		{excelize.CellTypeError, "#DIV/0!", codec.ErrorCode("#DIV/0!")},
		{excelize.CellTypeNumber, "3.25", codec.Number(3.25)},
		{excelize.CellTypeNumber, "abc", codec.Value{Kind: codec.KindNumber, Raw: "abc"}},
		{excelize.CellTypeUnset, "42", codec.Number(42)},
		{excelize.CellTypeUnset, "x", codec.Text("x")},
		{excelize.CellTypeSharedString, "12", codec.Text("12")},
		{excelize.CellTypeFormula, "ok", codec.Text("ok")},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cellValue(tt.typ, tt.raw), "%v %q", tt.typ, tt.raw)
	}
}

func TestNormalizeColor(t *testing.T) {
	assert.Equal(t, "FF0000", normalizeColor("#ff0000"))
	assert.Equal(t, "00FF00", normalizeColor("FF00FF00"))
	assert.Equal(t, "", normalizeColor(""))
	assert.Equal(t, "", normalizeColor("GGGGGG"))
	assert.Equal(t, "", normalizeColor("F00"))
}
