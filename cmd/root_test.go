package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cosheet/cosheet-cli/client"
	"github.com/cosheet/cosheet-cli/codec"
	"github.com/cosheet/cosheet-cli/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// resetGlobals clears package-level flag state and restores it after the test.
func resetGlobals(t *testing.T) {
	t.Helper()
	origAPIKey, origServerURL, origVerbose, origJSON := apiKey, serverURL, verbose, jsonOutput
	origConvertMode, origConvertOutput := convertMode, convertOutput
	origImportMode, origRoom, origConc := importMode, importRoom, importConcurrency
	origResume, origCleanup, origJournal := importResume, importCleanup, newJournal
	origGrid := inspectGrid
	t.Cleanup(func() {
		apiKey, serverURL, verbose, jsonOutput = origAPIKey, origServerURL, origVerbose, origJSON
		convertMode, convertOutput = origConvertMode, origConvertOutput
		importMode, importRoom, importConcurrency = origImportMode, origRoom, origConc
		importResume, importCleanup, newJournal = origResume, origCleanup, origJournal
		inspectGrid = origGrid
	})

	apiKey, serverURL, verbose, jsonOutput = "", "", false, false
	convertMode, convertOutput = modeFlag{}, ""
	importMode, importRoom, importConcurrency = modeFlag{}, "", 4
	importResume, importCleanup = false, false
	inspectGrid = false
	dir := t.TempDir()
	newJournal = func() *client.Journal { return client.OpenJournal(dir) }

	t.Setenv("COSHEET_CONFIG_DIR", t.TempDir())
	t.Setenv("COSHEET_SERVER_URL", "")
	t.Setenv("COSHEET_API_KEY", "")
	t.Setenv("COSHEET_MODE", "")
	t.Setenv("COSHEET_CONCURRENCY", "")
}

// writeWorkbook saves a two-sheet workbook and returns its path.
func writeWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetSheetName("Sheet1", "Jan"))
	_, err := f.NewSheet("Feb")
	require.NoError(t, err)
	for sheet, v := range map[string]int{"Jan": 100, "Feb": 150} {
		require.NoError(t, f.SetCellValue(sheet, "A1", "Month"))
		require.NoError(t, f.SetCellValue(sheet, "B1", v))
	}
	path := filepath.Join(t.TempDir(), "months.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestResolveServerURL_Precedence(t *testing.T) {
	resetGlobals(t)
	assert.Equal(t, defaultServerURL, resolveServerURL())

	require.NoError(t, config.Save(config.Config{ServerURL: "http://from-config"}))
	assert.Equal(t, "http://from-config", resolveServerURL())

	t.Setenv("COSHEET_SERVER_URL", "http://from-env")
	assert.Equal(t, "http://from-env", resolveServerURL())

	serverURL = "http://from-flag"
	assert.Equal(t, "http://from-flag", resolveServerURL())
}

func TestResolveAPIKey_FromConfig(t *testing.T) {
	resetGlobals(t)
	assert.Empty(t, resolveAPIKey())

	require.NoError(t, config.Save(config.Config{APIKey: "cfg-key"}))
	assert.Equal(t, "cfg-key", resolveAPIKey())

	t.Setenv("COSHEET_API_KEY", "env-key")
	assert.Equal(t, "env-key", resolveAPIKey())
}

func TestResolveServerURL_IgnoresUnreadableConfig(t *testing.T) {
	resetGlobals(t)
	dir := t.TempDir()
	t.Setenv("COSHEET_CONFIG_DIR", dir)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "config.json"), 0o755))
	assert.Equal(t, defaultServerURL, resolveServerURL())
}

func TestResolveMode(t *testing.T) {
	resetGlobals(t)

	var m modeFlag
	got, err := resolveMode(&m)
	require.NoError(t, err)
	assert.Equal(t, codec.ModePerSheet, got)

	require.NoError(t, config.Save(config.Config{Mode: "concat"}))
	got, err = resolveMode(&m)
	require.NoError(t, err)
	assert.Equal(t, codec.ModeConcatenated, got)

	t.Setenv("COSHEET_MODE", "bogus")
	_, err = resolveMode(&m)
	assert.Error(t, err)

	require.NoError(t, m.Set("per-sheet"))
	got, err = resolveMode(&m)
	require.NoError(t, err)
	assert.Equal(t, codec.ModePerSheet, got, "flag wins over env")
}

func TestModeFlag_RejectsUnknown(t *testing.T) {
	var m modeFlag
	assert.Error(t, m.Set("sideways"))
	assert.False(t, m.set, "failed Set must not mark the flag as set")
	assert.Equal(t, "mode", m.Type())
}

func TestResolveConcurrency(t *testing.T) {
	resetGlobals(t)

	n, err := resolveConcurrency(4, false)
	require.NoError(t, err)
	assert.Equal(t, 4, n)

	require.NoError(t, config.Save(config.Config{Concurrency: 2}))
	n, _ = resolveConcurrency(4, false)
	assert.Equal(t, 2, n)

	t.Setenv("COSHEET_CONCURRENCY", "6")
	n, _ = resolveConcurrency(4, false)
	assert.Equal(t, 6, n)

	n, _ = resolveConcurrency(1, true)
	assert.Equal(t, 1, n)

	_, err = resolveConcurrency(0, true)
	assert.Error(t, err, "--concurrency 0")

	t.Setenv("COSHEET_CONCURRENCY", "many")
	_, err = resolveConcurrency(4, false)
	assert.Error(t, err, "non-numeric env")
}

// appendCell adds a cell so the file's bytes differ from a fresh writeWorkbook.
func appendCell(path string) error {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SetCellValue("Feb", "C3", "extra"); err != nil {
		return err
	}
	return f.Save()
}

func writeFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}
