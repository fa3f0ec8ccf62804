package builder

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
	"gopkg.in/yaml.v3"

	"github.com/pipeforge/pipeforge/internal/compiler"
	"github.com/pipeforge/pipeforge/internal/config"
)

// tinyModel encodes a one-input one-output graph payload.
func tinyModel(input, output string) []byte {
	tensor := func(name string, dims []int64) []byte {
		var shape []byte
		for _, d := range dims {
			var dim []byte
			dim = protowire.AppendTag(dim, 1, protowire.VarintType)
			dim = protowire.AppendVarint(dim, uint64(d))
			shape = protowire.AppendTag(shape, 1, protowire.BytesType)
			shape = protowire.AppendBytes(shape, dim)
		}
		var tt []byte
		tt = protowire.AppendTag(tt, 2, protowire.BytesType)
		tt = protowire.AppendBytes(tt, shape)
		var typ []byte
		typ = protowire.AppendTag(typ, 1, protowire.BytesType)
		typ = protowire.AppendBytes(typ, tt)
		var vi []byte
		vi = protowire.AppendTag(vi, 1, protowire.BytesType)
		vi = protowire.AppendString(vi, name)
		vi = protowire.AppendTag(vi, 2, protowire.BytesType)
		vi = protowire.AppendBytes(vi, typ)
		return vi
	}

	var graph []byte
	graph = protowire.AppendTag(graph, 11, protowire.BytesType)
	graph = protowire.AppendBytes(graph, tensor(input, []int64{1, 4}))
	graph = protowire.AppendTag(graph, 12, protowire.BytesType)
	graph = protowire.AppendBytes(graph, tensor(output, []int64{1, 2}))

	var model []byte
	model = protowire.AppendTag(model, 7, protowire.BytesType)
	model = protowire.AppendBytes(model, graph)
	return model
}

func memReader(files map[string][]byte) compiler.FileReader {
	return func(path string) ([]byte, error) {
		data, ok := files[path]
		if !ok {
			return nil, os.ErrNotExist
		}
		return data, nil
	}
}

func loadPipeline(t *testing.T, doc string) *config.Pipeline {
	t.Helper()
	var p config.Pipeline
	require.NoError(t, yaml.Unmarshal([]byte(doc), &p))
	require.Empty(t, config.Validate(&p))
	return &p
}

func TestBuildPipelineTree(t *testing.T) {
	cfg := loadPipeline(t, `
model_repository: zoo
requirements:
  - numpy
  - pillow
models:
  detector:
    engine: onnx
    max_batch_size: 8
    versions:
      - version: 1
        path: detector.onnx
      - version: 2
        path: detector_v2.onnx
  scorer:
    engine: python
    max_batch_size: 0
    versions:
      - version: 1
        module:
          path: score.py
          execute: run
    tensor:
      input:
        - dims: [2]
          dtype: float32
      output:
        - dims: [1]
          dtype: float32
  pipe:
    engine: ensemble
    max_batch_size: 8
    steps:
      - model: detector
        version: latest
      - model: scorer
        version: 1
`)
	files := map[string][]byte{
		"detector.onnx":    tinyModel("image", "boxes"),
		"detector_v2.onnx": tinyModel("image", "boxes"),
		"score.py":         []byte("def run(params, inputs): ...\n"),
	}

	out := t.TempDir()
	result, err := Build(cfg, Options{OutputDir: out, Reader: memReader(files)})
	require.NoError(t, err)

	repo := filepath.Join(out, "zoo")
	assert.Equal(t, repo, result.Repository)
	require.Len(t, result.Models, 3)
	assert.Equal(t, "detector", result.Models[0].Name)
	assert.Equal(t, "scorer", result.Models[1].Name)
	assert.Equal(t, "pipe", result.Models[2].Name)
	assert.Equal(t, 2, result.Models[0].Artifacts)
	assert.Len(t, result.Models[0].ConfigChecksum, 64)

	for _, path := range []string{
		"detector/1/model.onnx",
		"detector/2/model.onnx",
		"detector/config.pbtxt",
		"scorer/1/score.py",
		"scorer/1/model.py",
		"scorer/config.pbtxt",
		"pipe/config.pbtxt",
	} {
		assert.FileExists(t, filepath.Join(repo, path))
	}
	// Ensembles get a single placeholder version directory.
	assert.DirExists(t, filepath.Join(repo, "pipe", "1"))

	require.NotEmpty(t, result.Dockerfile)
	dockerfile, err := os.ReadFile(result.Dockerfile)
	require.NoError(t, err)
	assert.Contains(t, string(dockerfile), "FROM nvcr.io/nvidia/tritonserver:")
	assert.Contains(t, string(dockerfile), "RUN pip install --no-cache-dir numpy pillow\n")
	assert.Contains(t, string(dockerfile), "COPY . /models\n")
}

func TestBuildDescriptorContents(t *testing.T) {
	cfg := loadPipeline(t, `
model_repository: zoo
models:
  detector:
    engine: onnx
    max_batch_size: 8
    dynamic_batching: true
    max_queue_delay_microseconds: 100
    versions:
      - version: 1
        path: detector.onnx
    instance_group:
      - kind: gpu
        count: 2
`)
	files := map[string][]byte{"detector.onnx": tinyModel("image", "boxes")}

	out := t.TempDir()
	result, err := Build(cfg, Options{OutputDir: out, Reader: memReader(files)})
	require.NoError(t, err)

	rendered, err := os.ReadFile(result.Models[0].ConfigPath)
	require.NoError(t, err)
	text := string(rendered)
	assert.Contains(t, text, "name: \"detector\"\n")
	assert.Contains(t, text, "backend: \"onnxruntime\"\n")
	assert.Contains(t, text, "max_batch_size: 8\n")
	// Dynamic batching strips the leading payload dimension.
	assert.Contains(t, text, "dims: [4]\n")
	assert.Contains(t, text, "dynamic_batching {\n  max_queue_delay_microseconds: 100\n}\n")
	assert.Contains(t, text, "kind: KIND_GPU\n")
	assert.Contains(t, text, "count: 2\n")
}

func TestBuildStopsOnFirstFailure(t *testing.T) {
	cfg := loadPipeline(t, `
model_repository: zoo
models:
  broken:
    engine: onnx
    max_batch_size: 1
    versions:
      - version: 1
        path: missing.onnx
  never_built:
    engine: onnx
    max_batch_size: 1
    versions:
      - version: 1
        path: also_missing.onnx
`)

	out := t.TempDir()
	_, err := Build(cfg, Options{OutputDir: out, Reader: memReader(nil)})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing.onnx")
	assert.NoDirExists(t, filepath.Join(out, "zoo", "never_built"))
}

func TestBuildEnsembleOrderingFailure(t *testing.T) {
	cfg := loadPipeline(t, `
model_repository: zoo
models:
  pipe:
    engine: ensemble
    max_batch_size: 8
    steps:
      - model: detector
        version: latest
  detector:
    engine: onnx
    max_batch_size: 8
    versions:
      - version: 1
        path: detector.onnx
`)
	files := map[string][]byte{"detector.onnx": tinyModel("image", "boxes")}

	out := t.TempDir()
	_, err := Build(cfg, Options{OutputDir: out, Reader: memReader(files)})
	var cerr *compiler.CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, compiler.ErrOrdering, cerr.Code)
}

func TestBuildRerunIsIdempotent(t *testing.T) {
	cfg := loadPipeline(t, `
model_repository: zoo
models:
  detector:
    engine: onnx
    max_batch_size: 8
    versions:
      - version: 1
        path: detector.onnx
`)
	files := map[string][]byte{"detector.onnx": tinyModel("image", "boxes")}

	out := t.TempDir()
	first, err := Build(cfg, Options{OutputDir: out, Reader: memReader(files)})
	require.NoError(t, err)
	second, err := Build(cfg, Options{OutputDir: out, Reader: memReader(files)})
	require.NoError(t, err)
	assert.Equal(t, first.Models[0].ConfigChecksum, second.Models[0].ConfigChecksum)
}
