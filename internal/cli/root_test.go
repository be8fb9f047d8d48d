package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTenantConfig writes a shared-mode tenant config and returns its path.
func writeTenantConfig(t *testing.T, dir, prefix string) string {
	t.Helper()

	body := "directory: " + dir + "\nmode: shared\nshared_name: shared.db\nprefix: " + prefix + "\n"
	path := filepath.Join(dir, prefix+".yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// runCommand executes the root command with args and returns its output.
func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()

	cmd := NewRootCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootCommand_RejectsInvalidFormat(t *testing.T) {
	cfg := writeTenantConfig(t, t.TempDir(), "alpha")

	_, err := runCommand(t, "stats", "-c", cfg, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmd := NewRootCommand()

	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{"init", "stats", "get"} {
		assert.True(t, names[want], "missing subcommand %s", want)
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "boom")))
	assert.Equal(t, ExitFailure, GetExitCode(assert.AnError))
}
