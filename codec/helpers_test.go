package codec

import (
	"testing"

	"github.com/cosheet/cosheet-cli/internal"
	"github.com/stretchr/testify/require"
)

// sheetOf builds a sheet from A1-style references.
func sheetOf(t *testing.T, name string, cells map[string]Cell) *Sheet {
	t.Helper()
	s := NewSheet(name)
	for ref, c := range cells {
		col, row, err := internal.ParseCoordinate(ref)
		require.NoError(t, err)
		require.NoError(t, s.Set(row-1, col-1, c))
	}
	return s
}

func monthSheets(t *testing.T) *Workbook {
	t.Helper()
	jan := sheetOf(t, "Jan", map[string]Cell{
		"A1": {Value: Text("Month")},
		"B1": {Value: Text("Sales")},
		"A2": {Value: Text("Jan")},
		"B2": {Value: Number(100)},
	})
	feb := sheetOf(t, "Feb", map[string]Cell{
		"A1": {Value: Text("Month")},
		"B1": {Value: Text("Sales")},
		"A2": {Value: Text("Feb")},
		"B2": {Value: Number(150)},
	})
	return &Workbook{Name: "sales.xlsx", Sheets: []*Sheet{jan, feb}}
}
