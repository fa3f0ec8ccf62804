package compiler

import (
	"fmt"

	"github.com/pipeforge/pipeforge/internal/config"
	"github.com/pipeforge/pipeforge/internal/descriptor"
	"github.com/pipeforge/pipeforge/internal/onnx"
)

// FormatGraph derives the tensor interface of an onnx-engine model from
// its payload and returns the per-version payload artifacts.
//
// With dynamic batching enabled, the leading dimension of every
// declared shape is stripped from the exposed tensors and the persisted
// payload has that dimension rewritten to a symbolic per-tensor batch
// axis ("<name>_dynamic_axes_<ordinal>"). A 0 extent in the remaining
// dims renders as -1; the substitution never touches the payload.
//
// The exposed interface is read from the first declared version.
// Payloads of later versions are still rewritten and persisted, but a
// model's tensor names must stay unique, so only one version defines
// the interface.
func FormatGraph(name string, spec config.ModelSpec, read FileReader) (IO, []Artifact, error) {
	dtype := spec.Dtype
	if dtype == "" {
		dtype = descriptor.DefaultDtype
	}
	dataType, ok := descriptor.DataTypeToken(dtype)
	if !ok {
		return IO{}, nil, compileErrorf(name, ErrUnsupportedDtype, "unsupported data type %q", dtype)
	}

	var io IO
	var artifacts []Artifact

	for i, version := range spec.Versions {
		payload, err := read(version.Path)
		if err != nil {
			return IO{}, nil, fmt.Errorf("model %s: reading payload %s: %w", name, version.Path, err)
		}

		graphIO, err := onnx.ReadGraphIO(payload)
		if err != nil {
			return IO{}, nil, fmt.Errorf("model %s: %w", name, err)
		}
		if len(graphIO.Inputs) == 0 && len(graphIO.Outputs) == 0 {
			return IO{}, nil, compileErrorf(name, ErrEmptyPayload,
				"payload %s declares no graph inputs or outputs", version.Path)
		}

		if spec.DynamicBatching {
			payload, err = onnx.RewriteBatchAxes(payload, dynamicAxisName)
			if err != nil {
				return IO{}, nil, fmt.Errorf("model %s: rewriting batch axes: %w", name, err)
			}
		}
		artifacts = append(artifacts, Artifact{
			Path: versionPath(*version.Version, "model.onnx"),
			Data: payload,
		})

		if i > 0 {
			continue
		}
		for _, t := range graphIO.Inputs {
			io.Inputs = append(io.Inputs, graphTensor(t, dataType, spec.DynamicBatching))
		}
		for _, t := range graphIO.Outputs {
			io.Outputs = append(io.Outputs, graphTensor(t, dataType, spec.DynamicBatching))
		}
	}

	return io, artifacts, nil
}

// graphTensor converts a declared graph tensor, stripping the batch
// dimension when dynamic batching elides it from the static schema.
func graphTensor(t onnx.TensorInfo, dataType descriptor.Token, dynamicBatching bool) descriptor.Tensor {
	dims := t.Dims
	if dynamicBatching && len(dims) > 0 {
		dims = dims[1:]
	}
	return descriptor.Tensor{
		Name:     t.Name,
		DataType: dataType,
		Dims:     descriptor.NewDimsToken(dims, true),
	}
}

// dynamicAxisName names the symbolic batch axis written into the
// payload; ordinal is 1-based within inputs and outputs separately.
func dynamicAxisName(tensorName string, ordinal int) string {
	return fmt.Sprintf("%s_dynamic_axes_%d", tensorName, ordinal)
}
