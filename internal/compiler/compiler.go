// Package compiler derives per-model tensor descriptors from the three
// heterogeneous model representations (onnx graph payload, declared
// python tensors, ensemble of other models) and resolves the wiring
// between ensemble stages.
//
// Formatters are pure with respect to the filesystem: file reads go
// through an injected FileReader and file writes are returned as
// Artifact values for the builder to persist.
package compiler

import (
	"os"
	"path"
	"strconv"

	"github.com/pipeforge/pipeforge/internal/descriptor"
)

// FileReader loads a user-referenced file (model payload or python
// module). Defaults to os.ReadFile; tests substitute their own.
type FileReader func(path string) ([]byte, error)

// DefaultReader reads from the local filesystem.
func DefaultReader() FileReader {
	return os.ReadFile
}

// Artifact is a file produced as a side effect of tensor derivation.
// Path is slash-separated and relative to the model's repository
// directory, e.g. "1/model.onnx".
type Artifact struct {
	Path string
	Data []byte
}

// versionPath builds an artifact path under a version directory.
func versionPath(version int64, name string) string {
	return path.Join(strconv.FormatInt(version, 10), name)
}

// IO is the derived tensor interface of one processed model.
type IO struct {
	Inputs  []descriptor.Tensor
	Outputs []descriptor.Tensor
}

// Table accumulates derived tensors across a build, keyed by model
// name. It is append-only: each model's entry is written exactly once,
// in declaration order, and read thereafter by ensemble resolution.
type Table map[string]IO

// Put records a model's derived interface.
func (t Table) Put(model string, io IO) {
	t[model] = io
}

// Get returns the derived interface of an already-processed model.
func (t Table) Get(model string) (IO, bool) {
	io, ok := t[model]
	return io, ok
}
