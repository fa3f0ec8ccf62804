package config

import (
	"fmt"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Pipeline is the raw configuration tree decoded from a pipeline file.
// Field presence is significant for validation, so optional scalars are
// pointers.
type Pipeline struct {
	ModelRepository string    `yaml:"model_repository" json:"model_repository"`
	Models          ModelList `yaml:"models" json:"models"`
	Requirements    []string  `yaml:"requirements" json:"requirements"`
	App             *App      `yaml:"app" json:"app"`
}

// App points at an optional application bundle shipped with the build.
type App struct {
	Path string `yaml:"path" json:"path"`
}

// ModelEntry pairs a model name with its raw spec.
type ModelEntry struct {
	Name string
	Spec ModelSpec
}

// ModelList preserves the declaration order of the models mapping.
// Order is load-bearing: an ensemble must be declared after every model
// its steps reference, and the builder processes models in this order.
type ModelList []ModelEntry

// UnmarshalYAML decodes the models mapping while keeping source order.
// Model names are NFC-normalized so that visually identical names
// cannot produce distinct repository directories.
func (l *ModelList) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("models: expected a mapping, got %s", nodeKind(node))
	}
	out := make(ModelList, 0, len(node.Content)/2)
	seen := make(map[string]bool)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode, valNode := node.Content[i], node.Content[i+1]
		name := norm.NFC.String(keyNode.Value)
		if seen[name] {
			return fmt.Errorf("models: duplicate model name %q", name)
		}
		seen[name] = true
		var spec ModelSpec
		if err := valNode.Decode(&spec); err != nil {
			return fmt.Errorf("models.%s: %w", name, err)
		}
		out = append(out, ModelEntry{Name: name, Spec: spec})
	}
	*l = out
	return nil
}

// Lookup returns the spec for a model name, if declared.
func (l ModelList) Lookup(name string) (ModelSpec, bool) {
	for _, e := range l {
		if e.Name == name {
			return e.Spec, true
		}
	}
	return ModelSpec{}, false
}

// ModelSpec is one raw model entry.
type ModelSpec struct {
	Engine                    string              `yaml:"engine" json:"engine"`
	MaxBatchSize              *int64              `yaml:"max_batch_size" json:"max_batch_size"`
	Dtype                     string              `yaml:"dtype" json:"dtype"`
	DynamicBatching           bool                `yaml:"dynamic_batching" json:"dynamic_batching"`
	MaxQueueDelayMicroseconds *int64              `yaml:"max_queue_delay_microseconds" json:"max_queue_delay_microseconds"`
	Versions                  []VersionSpec       `yaml:"versions" json:"versions"`
	InstanceGroups            []InstanceGroupSpec `yaml:"instance_group" json:"instance_group"`
	Tensor                    *TensorSection      `yaml:"tensor" json:"tensor"`
	Steps                     []StepSpec          `yaml:"steps" json:"steps"`
}

// VersionSpec is one deployable version of a model.
type VersionSpec struct {
	Version *int64      `yaml:"version" json:"version"`
	Path    string      `yaml:"path" json:"path"`
	Module  *ModuleSpec `yaml:"module" json:"module"`
}

// ModuleSpec declares the user code behind a python-engine version.
type ModuleSpec struct {
	Path       string `yaml:"path" json:"path"`
	Execute    string `yaml:"execute" json:"execute"`
	Initialize string `yaml:"initialize" json:"initialize"`
	Finalize   string `yaml:"finalize" json:"finalize"`
}

// TensorSection declares python-engine tensor shapes, which cannot be
// read from a payload.
type TensorSection struct {
	Input  []TensorDecl `yaml:"input" json:"input"`
	Output []TensorDecl `yaml:"output" json:"output"`
}

// TensorDecl is one declared tensor shape.
type TensorDecl struct {
	Dims  []int64 `yaml:"dims" json:"dims"`
	Dtype string  `yaml:"dtype" json:"dtype"`
}

// InstanceGroupSpec is one raw instance group entry.
type InstanceGroupSpec struct {
	Kind  string  `yaml:"kind" json:"kind"`
	Count *int64  `yaml:"count" json:"count"`
	GPUs  []int64 `yaml:"gpus" json:"gpus"`
}

// StepSpec is one raw ensemble step.
type StepSpec struct {
	Model   string      `yaml:"model" json:"model"`
	Version StepVersion `yaml:"version" json:"version"`
}

// StepVersion holds a step's declared version before resolution.
// The value is either an integer or the literal "latest"; anything else
// is rejected by the wiring resolver, not at decode time, so the error
// can name the offending model.
type StepVersion struct {
	set    bool
	number int64
	word   string
	isNum  bool
}

// NumberVersion creates an explicit integer step version.
func NumberVersion(n int64) StepVersion {
	return StepVersion{set: true, number: n, isNum: true}
}

// WordVersion creates a textual step version such as "latest".
func WordVersion(w string) StepVersion {
	return StepVersion{set: true, word: w}
}

// IsSet reports whether the version field was present at all.
func (v StepVersion) IsSet() bool {
	return v.set
}

// Number returns the integer value; ok is false for textual versions.
func (v StepVersion) Number() (int64, bool) {
	return v.number, v.isNum
}

// Word returns the textual value for non-integer versions.
func (v StepVersion) Word() string {
	return v.word
}

// String renders the declared value for error messages.
func (v StepVersion) String() string {
	if !v.set {
		return "<unset>"
	}
	if v.isNum {
		return fmt.Sprintf("%d", v.number)
	}
	return v.word
}

// UnmarshalYAML accepts either an integer or a bare string.
func (v *StepVersion) UnmarshalYAML(node *yaml.Node) error {
	var n int64
	if err := node.Decode(&n); err == nil {
		*v = NumberVersion(n)
		return nil
	}
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("version: expected integer or string, got %s", nodeKind(node))
	}
	*v = WordVersion(s)
	return nil
}

func nodeKind(node *yaml.Node) string {
	switch node.Kind {
	case yaml.DocumentNode:
		return "document"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.MappingNode:
		return "mapping"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}
