package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatsCommand_EmptyTenant(t *testing.T) {
	cfg := writeTenantConfig(t, t.TempDir(), "alpha")

	out, err := runCommand(t, "stats", "-c", cfg, "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Status string         `json:"status"`
		Data   map[string]int `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 0, resp.Data["person"])
	assert.Len(t, resp.Data, 10)
}

func TestStatsCommand_TextOutput(t *testing.T) {
	cfg := writeTenantConfig(t, t.TempDir(), "alpha")

	out, err := runCommand(t, "stats", "-c", cfg)
	require.NoError(t, err)
	assert.Contains(t, out, "person")
	assert.Contains(t, out, "tag")
}
