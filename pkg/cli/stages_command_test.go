//go:build !integration

package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewStagesCommand tests that the stages command is created correctly
func TestNewStagesCommand(t *testing.T) {
	cmd := NewStagesCommand()

	require.NotNil(t, cmd)
	assert.Equal(t, "stages", cmd.Name())
	assert.NotEmpty(t, cmd.Short)
	require.NotNil(t, cmd.Flags().Lookup("manifest"), "stages command should have a --manifest flag")
}

// TestStagesCommandRun tests listing a manifest's pipeline
func TestStagesCommandRun(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "pipeline.yaml")
	content := "stages:\n  - id: lint\n    tool: linter\n    args: [\"{target}\"]\n"
	require.NoError(t, os.WriteFile(manifestPath, []byte(content), 0o644))

	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{"stages", dir, "--manifest", manifestPath, "--no-color"})
	require.NoError(t, cmd.Execute())
}

// TestStagesCommandJSON tests the machine-readable stage list
func TestStagesCommandJSON(t *testing.T) {
	dir := t.TempDir()
	manifestPath := filepath.Join(dir, "pipeline.yaml")
	content := "stages:\n  - id: lint\n    tool: linter\n"
	require.NoError(t, os.WriteFile(manifestPath, []byte(content), 0o644))

	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{"stages", dir, "--manifest", manifestPath, "--json"})
	require.NoError(t, cmd.Execute())
}

// TestStagesCommandBadManifest tests the error exit code
func TestStagesCommandBadManifest(t *testing.T) {
	cmd := NewRootCommand("test")
	cmd.SetArgs([]string{"stages", "--manifest", filepath.Join(t.TempDir(), "absent.yaml"), "--no-color"})

	err := cmd.Execute()
	var exitErr *ExitError
	require.ErrorAs(t, err, &exitErr)
	assert.Equal(t, 2, exitErr.Code)
}
