package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPipelineYAML(t *testing.T) {
	path := writeTempFile(t, "pipeline.yaml", `
model_repository: zoo
models:
  detector:
    engine: onnx
    max_batch_size: 8
    versions:
      - version: 1
        path: ./detector.onnx
  pipe:
    engine: ensemble
    max_batch_size: 8
    steps:
      - model: detector
        version: latest
`)

	p, err := LoadPipeline(path)
	require.NoError(t, err)
	assert.Equal(t, "zoo", p.ModelRepository)
	require.Len(t, p.Models, 2)
	assert.Equal(t, "detector", p.Models[0].Name)
	assert.Equal(t, "pipe", p.Models[1].Name)
}

func TestLoadPipelineCUE(t *testing.T) {
	path := writeTempFile(t, "pipeline.cue", `
model_repository: "zoo"
models: {
	detector: {
		engine:         "onnx"
		max_batch_size: 8
		versions: [{version: 1, path: "./detector.onnx"}]
	}
	pipe: {
		engine:         "ensemble"
		max_batch_size: 8
		steps: [{model: "detector", version: "latest"}]
	}
}
`)

	p, err := LoadPipeline(path)
	require.NoError(t, err)
	assert.Equal(t, "zoo", p.ModelRepository)
	require.Len(t, p.Models, 2)
	assert.Equal(t, "detector", p.Models[0].Name)
	assert.Equal(t, "pipe", p.Models[1].Name)

	steps := p.Models[1].Spec.Steps
	require.Len(t, steps, 1)
	assert.Equal(t, "latest", steps[0].Version.Word())
}

func TestLoadPipelineUnsupportedExtension(t *testing.T) {
	path := writeTempFile(t, "pipeline.toml", "model_repository = \"zoo\"\n")

	_, err := LoadPipeline(path)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeBadFormat, loadErr.Code)
}

func TestLoadPipelineMissingFile(t *testing.T) {
	_, err := LoadPipeline(filepath.Join(t.TempDir(), "absent.yaml"))
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeReadFailed, loadErr.Code)
}

func TestLoadPipelineMalformedYAML(t *testing.T) {
	path := writeTempFile(t, "pipeline.yaml", "models: [unclosed\n")

	_, err := LoadPipeline(path)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeParse, loadErr.Code)
}

func TestLoadPipelineMalformedCUE(t *testing.T) {
	path := writeTempFile(t, "pipeline.cue", "models: {unterminated\n")

	_, err := LoadPipeline(path)
	var loadErr *LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.Equal(t, ErrCodeParse, loadErr.Code)
}
