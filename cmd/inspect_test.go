package cmd

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleStream = "version:1.5\n" +
	"cell:A1:t:Name:s:1\n" +
	"cell:B1:t:a\\cb\n" +
	"cell:A2:v:42\n" +
	"cell:B2:v:1:vt:logical\n" +
	"style:1:font-weight:bold;\n" +
	"sheet:c:2:r:2"

func writeStream(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sheet.sc")
	require.NoError(t, writeFile(path, []byte(sampleStream)))
	return path
}

func TestInspect_Summary(t *testing.T) {
	resetGlobals(t)
	out, err := runCmd(t, runInspect, writeStream(t))
	require.NoError(t, err)
	assert.Equal(t, "version 1.5, 2 x 2, 4 cells\n"+
		"  boolean  1\n"+
		"  number   1\n"+
		"  text     2\n"+
		"style 1: font-weight:bold;\n", out)
}

func TestInspect_Grid(t *testing.T) {
	resetGlobals(t)
	inspectGrid = true
	out, err := runCmd(t, runInspect, writeStream(t))
	require.NoError(t, err)
	assert.Equal(t, "Name\ta:b\n42\tTRUE\n", out)
}

func TestInspect_JSON(t *testing.T) {
	resetGlobals(t)
	jsonOutput = true
	out, err := runCmd(t, runInspect, writeStream(t))
	require.NoError(t, err)

	var report inspectReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 4, report.Cells)
	assert.Equal(t, map[int]string{1: "font-weight:bold;"}, report.Styles)
	assert.Nil(t, report.Grid)
}

func TestInspect_GridTooLarge(t *testing.T) {
	resetGlobals(t)
	inspectGrid = true
	path := filepath.Join(t.TempDir(), "far.sc")
	require.NoError(t, writeFile(path, []byte("version:1.5\ncell:XFD1048576:t:x\nsheet:c:16384:r:1048576")))
	_, err := runCmd(t, runInspect, path)
	assert.ErrorContains(t, err, "exceeds")
}

func TestInspect_SyntaxError(t *testing.T) {
	resetGlobals(t)
	path := filepath.Join(t.TempDir(), "bad.sc")
	require.NoError(t, writeFile(path, []byte("version:1.5\ncell:1A:v:1")))
	_, err := runCmd(t, runInspect, path)
	assert.ErrorContains(t, err, "line 2")
}
