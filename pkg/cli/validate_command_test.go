//go:build !integration

package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/preflightci/preflight/pkg/config"
	"github.com/preflightci/preflight/pkg/pipeline"
)

// TestNewValidateCommand tests that the validate command is created correctly
func TestNewValidateCommand(t *testing.T) {
	cmd := NewValidateCommand()

	require.NotNil(t, cmd, "NewValidateCommand should return a non-nil command")
	assert.Equal(t, "validate", cmd.Name())
	assert.NotEmpty(t, cmd.Short)
	assert.NotEmpty(t, cmd.Long)

	require.NotNil(t, cmd.Flags().Lookup("manifest"), "validate command should have a --manifest flag")
	require.NotNil(t, cmd.Flags().Lookup("stage"), "validate command should have a --stage flag")
	require.NotNil(t, cmd.Flags().Lookup("timeout"), "validate command should have a --timeout flag")
	require.NotNil(t, cmd.Flags().Lookup("parallel"), "validate command should have a --parallel flag")
	require.NotNil(t, cmd.Flags().Lookup("keep-env"), "validate command should have a --keep-env flag")
	require.NotNil(t, cmd.Flags().Lookup("force-provision"), "validate command should have a --force-provision flag")
	require.NotNil(t, cmd.Flags().Lookup("json"), "validate command should have a --json flag")
	require.NotNil(t, cmd.Flags().Lookup("watch"), "validate command should have a --watch flag")
}

// TestNewRootCommand tests the command tree wiring
func TestNewRootCommand(t *testing.T) {
	cmd := NewRootCommand("1.2.3")

	require.NotNil(t, cmd)
	assert.Equal(t, "preflight", cmd.Name())
	assert.Equal(t, "1.2.3", cmd.Version)
	assert.True(t, cmd.SilenceUsage)

	names := make([]string, 0)
	for _, sub := range cmd.Commands() {
		names = append(names, sub.Name())
	}
	assert.Contains(t, names, "validate")
	assert.Contains(t, names, "stages")
	assert.Contains(t, names, "version")
}

func requireSh(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("validation scenario tests use /bin/sh pipelines")
	}
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func testSettings() config.Settings {
	return config.Settings{TimeoutSeconds: 60}
}

// TestRunValidationAllPass tests a clean pipeline over a valid target
func TestRunValidationAllPass(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	target := writeFile(t, dir, "artifact.yml", "ok: true\n")
	manifestPath := writeFile(t, dir, "pipeline.yaml", `
stages:
  - id: first
    tool: sh
    args: ["-c", "test -f {target}"]
  - id: second
    tool: sh
    args: ["-c", "exit 0"]
`)

	result, err := RunValidation(context.Background(), ValidateConfig{
		Target:       target,
		ManifestPath: manifestPath,
		Settings:     testSettings(),
	})

	require.NoError(t, err)
	assert.Equal(t, pipeline.Pass, result.Overall)
	assert.Equal(t, 2, result.Counts()[pipeline.Pass])
}

// TestRunValidationOneFailure tests that one defect fails the run without
// stopping other stages
func TestRunValidationOneFailure(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	target := writeFile(t, dir, "artifact.yml", "broken\n")
	manifestPath := writeFile(t, dir, "pipeline.yaml", `
stages:
  - id: good
    tool: sh
    args: ["-c", "exit 0"]
  - id: bad
    tool: sh
    args: ["-c", "echo found a defect; exit 1"]
    hint: "fix the artifact"
  - id: after
    tool: sh
    args: ["-c", "exit 0"]
`)

	result, err := RunValidation(context.Background(), ValidateConfig{
		Target:       target,
		ManifestPath: manifestPath,
		Settings:     testSettings(),
	})

	require.NoError(t, err)
	assert.Equal(t, pipeline.Fail, result.Overall)
	require.Len(t, result.Stages, 3)
	assert.Equal(t, pipeline.Pass, result.Stages[0].Outcome)
	assert.Equal(t, pipeline.Fail, result.Stages[1].Outcome)
	assert.Equal(t, pipeline.Pass, result.Stages[2].Outcome, "stages after a failure must still run")
}

// TestRunValidationUnavailableTool tests skip degradation for a tool that
// cannot be provisioned
func TestRunValidationUnavailableTool(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	target := writeFile(t, dir, "artifact.yml", "ok: true\n")
	manifestPath := writeFile(t, dir, "pipeline.yaml", `
tools:
  absent-scanner-zz:
    install: ["sh", "-c", "echo network unreachable >&2; exit 1"]

stages:
  - id: lint
    tool: sh
    args: ["-c", "exit 0"]
  - id: scan
    tool: absent-scanner-zz
    args: ["{target}"]
`)

	result, err := RunValidation(context.Background(), ValidateConfig{
		Target:       target,
		ManifestPath: manifestPath,
		Settings:     config.Settings{TimeoutSeconds: 60, InstallRoot: t.TempDir()},
	})

	require.NoError(t, err)
	require.Len(t, result.Stages, 2)
	assert.Equal(t, pipeline.Pass, result.Stages[0].Outcome)
	assert.Equal(t, pipeline.Skip, result.Stages[1].Outcome)
	assert.Equal(t, pipeline.Pass, result.Overall, "skips alone must not fail the run")
}

// TestRunValidationInvalidTarget tests the orchestrator-level error path
func TestRunValidationInvalidTarget(t *testing.T) {
	requireSh(t)
	manifestPath := writeFile(t, t.TempDir(), "pipeline.yaml", `
stages:
  - id: only
    tool: sh
    args: ["-c", "exit 0"]
`)

	result, err := RunValidation(context.Background(), ValidateConfig{
		Target:       "/nonexistent/target/xyz",
		ManifestPath: manifestPath,
		Settings:     testSettings(),
	})

	require.ErrorIs(t, err, pipeline.ErrInvalidTarget)
	assert.Nil(t, result)
}

// TestRunValidationStageTimeout tests that a hung stage fails while the
// pipeline completes
func TestRunValidationStageTimeout(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	target := writeFile(t, dir, "artifact.yml", "ok: true\n")
	manifestPath := writeFile(t, dir, "pipeline.yaml", `
stages:
  - id: hung
    tool: sh
    args: ["-c", "sleep 30"]
    timeout_seconds: 1
  - id: after
    tool: sh
    args: ["-c", "exit 0"]
`)

	result, err := RunValidation(context.Background(), ValidateConfig{
		Target:       target,
		ManifestPath: manifestPath,
		Settings:     testSettings(),
	})

	require.NoError(t, err)
	require.Len(t, result.Stages, 2)
	assert.Equal(t, pipeline.Fail, result.Stages[0].Outcome)
	assert.Contains(t, result.Stages[0].Detail, "timed out")
	assert.Equal(t, pipeline.Pass, result.Stages[1].Outcome)
}

// TestRunValidationStageFilter tests --stage selection
func TestRunValidationStageFilter(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	target := writeFile(t, dir, "artifact.yml", "ok: true\n")
	manifestPath := writeFile(t, dir, "pipeline.yaml", `
stages:
  - id: wanted
    tool: sh
    args: ["-c", "exit 0"]
  - id: unwanted
    tool: sh
    args: ["-c", "exit 1"]
`)

	result, err := RunValidation(context.Background(), ValidateConfig{
		Target:       target,
		ManifestPath: manifestPath,
		StageFilter:  []string{"wanted"},
		Settings:     testSettings(),
	})
	require.NoError(t, err)
	require.Len(t, result.Stages, 1)
	assert.Equal(t, "wanted", result.Stages[0].StageID)

	_, err = RunValidation(context.Background(), ValidateConfig{
		Target:       target,
		ManifestPath: manifestPath,
		StageFilter:  []string{"typo"},
		Settings:     testSettings(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}

func environmentDirs(t *testing.T, root string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(root, "preflight-env-*"))
	require.NoError(t, err)
	return matches
}

const provisionedToolManifest = `
tools:
  provisioned-tool-zz:
    install: ["sh", "-c", "mkdir -p {prefix}/bin && printf '#!/bin/sh\nexit 0\n' > {prefix}/bin/provisioned-tool-zz && chmod +x {prefix}/bin/provisioned-tool-zz"]

stages:
  - id: provisioned
    tool: provisioned-tool-zz
    args: ["{target}"]
`

// TestRunValidationCleansUpEnvironment tests teardown after normal
// completion
func TestRunValidationCleansUpEnvironment(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	target := writeFile(t, dir, "artifact.yml", "ok: true\n")
	manifestPath := writeFile(t, dir, "pipeline.yaml", provisionedToolManifest)
	installRoot := t.TempDir()

	result, err := RunValidation(context.Background(), ValidateConfig{
		Target:       target,
		ManifestPath: manifestPath,
		Settings:     config.Settings{TimeoutSeconds: 60, InstallRoot: installRoot},
	})

	require.NoError(t, err)
	require.Len(t, result.Stages, 1)
	assert.Equal(t, pipeline.Pass, result.Stages[0].Outcome)
	assert.Empty(t, environmentDirs(t, installRoot), "the ephemeral environment must be removed after the run")
}

// TestRunValidationCleansUpEnvironmentAfterFailure tests teardown when a
// provisioned tool's stage fails
func TestRunValidationCleansUpEnvironmentAfterFailure(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	target := writeFile(t, dir, "artifact.yml", "broken\n")
	manifestPath := writeFile(t, dir, "pipeline.yaml", `
tools:
  failing-tool-zz:
    install: ["sh", "-c", "mkdir -p {prefix}/bin && printf '#!/bin/sh\nexit 1\n' > {prefix}/bin/failing-tool-zz && chmod +x {prefix}/bin/failing-tool-zz"]

stages:
  - id: doomed
    tool: failing-tool-zz
    args: ["{target}"]
`)
	installRoot := t.TempDir()

	result, err := RunValidation(context.Background(), ValidateConfig{
		Target:       target,
		ManifestPath: manifestPath,
		Settings:     config.Settings{TimeoutSeconds: 60, InstallRoot: installRoot},
	})

	require.NoError(t, err)
	require.Len(t, result.Stages, 1)
	assert.Equal(t, pipeline.Fail, result.Stages[0].Outcome)
	assert.Empty(t, environmentDirs(t, installRoot), "the environment must be removed even when a stage fails")
}

// TestRunValidationCleansUpEnvironmentAfterInterrupt tests teardown when
// the run is canceled while a stage is in flight
func TestRunValidationCleansUpEnvironmentAfterInterrupt(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	target := writeFile(t, dir, "artifact.yml", "ok: true\n")
	manifestPath := writeFile(t, dir, "pipeline.yaml", `
tools:
  slow-tool-zz:
    install: ["sh", "-c", "mkdir -p {prefix}/bin && printf '#!/bin/sh\nsleep 30\n' > {prefix}/bin/slow-tool-zz && chmod +x {prefix}/bin/slow-tool-zz"]

stages:
  - id: slow
    tool: slow-tool-zz
    args: ["{target}"]
`)
	installRoot := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	timer := time.AfterFunc(500*time.Millisecond, cancel)
	defer timer.Stop()
	defer cancel()

	started := time.Now()
	_, err := RunValidation(ctx, ValidateConfig{
		Target:       target,
		ManifestPath: manifestPath,
		Settings:     config.Settings{TimeoutSeconds: 60, InstallRoot: installRoot},
	})

	require.Error(t, err, "an interrupted run is reported as an orchestrator-level error")
	assert.Less(t, time.Since(started), 15*time.Second, "cancellation must terminate the in-flight stage")
	assert.Empty(t, environmentDirs(t, installRoot), "the environment must be removed after an interrupt")
}

// TestRunValidationKeepEnv tests that --keep-env preserves the environment
func TestRunValidationKeepEnv(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	target := writeFile(t, dir, "artifact.yml", "ok: true\n")
	manifestPath := writeFile(t, dir, "pipeline.yaml", provisionedToolManifest)
	installRoot := t.TempDir()

	_, err := RunValidation(context.Background(), ValidateConfig{
		Target:       target,
		ManifestPath: manifestPath,
		Settings:     config.Settings{TimeoutSeconds: 60, InstallRoot: installRoot, KeepEnv: true},
	})

	require.NoError(t, err)
	assert.Len(t, environmentDirs(t, installRoot), 1, "keep-env must leave the environment in place")
}

// TestValidateCommandExitCodes tests the full command exit-code contract
func TestValidateCommandExitCodes(t *testing.T) {
	requireSh(t)
	dir := t.TempDir()
	target := writeFile(t, dir, "artifact.yml", "ok: true\n")
	passManifest := writeFile(t, dir, "pass.yaml", "stages:\n  - id: ok\n    tool: sh\n    args: [\"-c\", \"exit 0\"]\n")
	failManifest := writeFile(t, dir, "fail.yaml", "stages:\n  - id: bad\n    tool: sh\n    args: [\"-c\", \"exit 1\"]\n")

	run := func(args ...string) error {
		cmd := NewRootCommand("test")
		cmd.SetArgs(args)
		return cmd.Execute()
	}

	t.Run("no findings exits zero", func(t *testing.T) {
		require.NoError(t, run("validate", target, "--manifest", passManifest, "--no-color"))
	})

	t.Run("findings exit one", func(t *testing.T) {
		err := run("validate", target, "--manifest", failManifest, "--no-color")
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 1, exitErr.Code)
	})

	t.Run("missing target exits two", func(t *testing.T) {
		err := run("validate", "/nonexistent/target/xyz", "--manifest", passManifest, "--no-color")
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})

	t.Run("unreadable manifest exits two", func(t *testing.T) {
		err := run("validate", target, "--manifest", filepath.Join(dir, "absent.yaml"), "--no-color")
		var exitErr *ExitError
		require.ErrorAs(t, err, &exitErr)
		assert.Equal(t, 2, exitErr.Code)
	})
}

// TestExitError tests the error formatting
func TestExitError(t *testing.T) {
	err := error(&ExitError{Code: 2})
	assert.Equal(t, "exit code 2", err.Error())

	var exitErr *ExitError
	assert.True(t, errors.As(err, &exitErr))
}
