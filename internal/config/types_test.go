package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

const orderedConfig = `
model_repository: zoo
models:
  detector:
    engine: onnx
    max_batch_size: 8
    versions:
      - version: 1
        path: ./detector.onnx
  classifier:
    engine: onnx
    max_batch_size: 8
    versions:
      - version: 1
        path: ./classifier.onnx
  pipe:
    engine: ensemble
    max_batch_size: 8
    steps:
      - model: detector
        version: latest
      - model: classifier
        version: 2
`

func TestModelListPreservesDeclarationOrder(t *testing.T) {
	var p Pipeline
	require.NoError(t, yaml.Unmarshal([]byte(orderedConfig), &p))

	require.Len(t, p.Models, 3)
	assert.Equal(t, "detector", p.Models[0].Name)
	assert.Equal(t, "classifier", p.Models[1].Name)
	assert.Equal(t, "pipe", p.Models[2].Name)
}

func TestModelListRejectsDuplicates(t *testing.T) {
	doc := `
models:
  m:
    engine: onnx
  m:
    engine: python
`
	var p Pipeline
	err := yaml.Unmarshal([]byte(doc), &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate model name")
}

func TestModelListRejectsNonMapping(t *testing.T) {
	var p Pipeline
	err := yaml.Unmarshal([]byte("models: [a, b]\n"), &p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected a mapping")
}

func TestModelNamesNFCNormalized(t *testing.T) {
	// "é" written as "e" + combining acute must collapse to the
	// precomposed form so both spellings hit one repository directory.
	doc := "models:\n  café:\n    engine: onnx\n"
	var p Pipeline
	require.NoError(t, yaml.Unmarshal([]byte(doc), &p))
	require.Len(t, p.Models, 1)
	assert.Equal(t, "café", p.Models[0].Name)
}

func TestStepVersionDecoding(t *testing.T) {
	var p Pipeline
	require.NoError(t, yaml.Unmarshal([]byte(orderedConfig), &p))

	steps := p.Models[2].Spec.Steps
	require.Len(t, steps, 2)

	require.True(t, steps[0].Version.IsSet())
	_, isNum := steps[0].Version.Number()
	assert.False(t, isNum)
	assert.Equal(t, "latest", steps[0].Version.Word())

	n, isNum := steps[1].Version.Number()
	assert.True(t, isNum)
	assert.Equal(t, int64(2), n)
}

func TestStepVersionUnset(t *testing.T) {
	var v StepVersion
	assert.False(t, v.IsSet())
	assert.Equal(t, "<unset>", v.String())
}

func TestLookup(t *testing.T) {
	var p Pipeline
	require.NoError(t, yaml.Unmarshal([]byte(orderedConfig), &p))

	spec, ok := p.Models.Lookup("classifier")
	require.True(t, ok)
	assert.Equal(t, "onnx", spec.Engine)

	_, ok = p.Models.Lookup("missing")
	assert.False(t, ok)
}
