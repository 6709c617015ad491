package cmd

import (
	"testing"

	"github.com/cosheet/cosheet-cli/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigCommands_SetGetUnset(t *testing.T) {
	resetGlobals(t)

	_, err := runCmd(t, configSetCmd.RunE, "mode", "merged")
	require.NoError(t, err)
	_, err = runCmd(t, configSetCmd.RunE, "api_key", "supersecret")
	require.NoError(t, err)

	out, err := runCmd(t, configGetCmd.RunE, "mode")
	require.NoError(t, err)
	assert.Equal(t, "concat\n", out, "mode is normalized")

	out, err = runCmd(t, configGetCmd.RunE)
	require.NoError(t, err)
	assert.Equal(t, "api_key      *******cret\n"+
		"concurrency  \n"+
		"mode         concat\n"+
		"server_url   \n", out)

	_, err = runCmd(t, configUnsetCmd.RunE, "mode")
	require.NoError(t, err)
	_, err = runCmd(t, configUnsetCmd.RunE, "api_key")
	require.NoError(t, err)

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.Config{}, cfg)
}

func TestConfigCommands_Rejects(t *testing.T) {
	resetGlobals(t)
	tests := []struct {
		name string
		args []string
	}{
		{"invalid mode", []string{"mode", "sideways"}},
		{"unknown key", []string{"colour", "blue"}},
		{"negative concurrency", []string{"concurrency", "-1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := runCmd(t, configSetCmd.RunE, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestMaskSecret(t *testing.T) {
	for in, want := range map[string]string{"": "", "abc": "***", "abcdefgh": "****efgh"} {
		assert.Equal(t, want, maskSecret(in), in)
	}
}
