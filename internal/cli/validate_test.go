package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func executeCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

const validPipelineYAML = `
model_repository: zoo
models:
  scorer:
    engine: python
    max_batch_size: 0
    versions:
      - version: 1
        module:
          path: ./score.py
          execute: run
    tensor:
      input:
        - dims: [2]
          dtype: float32
      output:
        - dims: [1]
          dtype: float32
`

func TestValidateCommandSuccess(t *testing.T) {
	path := writeTempFile(t, "pipeline.yaml", validPipelineYAML)

	stdout, _, err := executeCommand(t, "validate", "-f", path)
	require.NoError(t, err)
	assert.Contains(t, stdout, "is valid: 1 model(s)")
}

func TestValidateCommandSuccessJSON(t *testing.T) {
	path := writeTempFile(t, "pipeline.yaml", validPipelineYAML)

	stdout, _, err := executeCommand(t, "validate", "-f", path, "--format", "json")
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestValidateCommandReportsAllViolations(t *testing.T) {
	path := writeTempFile(t, "pipeline.yaml", `
models:
  broken:
    engine: onnx
`)

	stdout, _, err := executeCommand(t, "validate", "-f", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, stdout, "✗ Configuration failed validation")
	assert.Contains(t, stdout, "[E100]")
	assert.Contains(t, stdout, "[E104]")
	assert.Contains(t, stdout, "[E105]")
}

func TestValidateCommandMissingFile(t *testing.T) {
	stdout, _, err := executeCommand(t, "validate", "-f", "absent.yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, stdout, "Error [E002]")
}

func TestValidateCommandRequiresFileFlag(t *testing.T) {
	_, _, err := executeCommand(t, "validate")
	require.Error(t, err)
}

func TestRootCommandRejectsUnknownFormat(t *testing.T) {
	path := writeTempFile(t, "pipeline.yaml", validPipelineYAML)

	_, _, err := executeCommand(t, "validate", "-f", path, "--format", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid format "xml"`)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	cmd := NewRootCommand()
	names := make(map[string]bool)
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	assert.True(t, names["build"])
	assert.True(t, names["validate"])
}
