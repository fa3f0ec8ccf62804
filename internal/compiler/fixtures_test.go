package compiler

import (
	"google.golang.org/protobuf/encoding/protowire"
)

// Minimal ONNX wire-format encoder for test payloads. Field numbers
// follow onnx.proto: ModelProto.graph=7, GraphProto.input=11/output=12,
// ValueInfoProto.name=1/type=2, TypeProto.tensor_type=1, shape=2,
// TensorShapeProto.dim=1, Dimension.dim_value=1.

func encodeTestDim(v int64) []byte {
	var b []byte
	b = protowire.AppendTag(b, 1, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(v))
	return b
}

func encodeTestTensor(name string, dims []int64) []byte {
	var shape []byte
	for _, d := range dims {
		shape = protowire.AppendTag(shape, 1, protowire.BytesType)
		shape = protowire.AppendBytes(shape, encodeTestDim(d))
	}

	var tensor []byte
	tensor = protowire.AppendTag(tensor, 2, protowire.BytesType)
	tensor = protowire.AppendBytes(tensor, shape)

	var typ []byte
	typ = protowire.AppendTag(typ, 1, protowire.BytesType)
	typ = protowire.AppendBytes(typ, tensor)

	var vi []byte
	vi = protowire.AppendTag(vi, 1, protowire.BytesType)
	vi = protowire.AppendString(vi, name)
	vi = protowire.AppendTag(vi, 2, protowire.BytesType)
	vi = protowire.AppendBytes(vi, typ)
	return vi
}

type testTensor struct {
	name string
	dims []int64
}

func encodeTestModel(inputs, outputs []testTensor) []byte {
	var graph []byte
	graph = protowire.AppendTag(graph, 2, protowire.BytesType)
	graph = protowire.AppendString(graph, "net")
	for _, t := range inputs {
		graph = protowire.AppendTag(graph, 11, protowire.BytesType)
		graph = protowire.AppendBytes(graph, encodeTestTensor(t.name, t.dims))
	}
	for _, t := range outputs {
		graph = protowire.AppendTag(graph, 12, protowire.BytesType)
		graph = protowire.AppendBytes(graph, encodeTestTensor(t.name, t.dims))
	}

	var model []byte
	model = protowire.AppendTag(model, 7, protowire.BytesType)
	model = protowire.AppendBytes(model, graph)
	return model
}

// mapReader serves payloads from memory.
func mapReader(files map[string][]byte) FileReader {
	return func(path string) ([]byte, error) {
		data, ok := files[path]
		if !ok {
			return nil, &pathError{path: path}
		}
		return data, nil
	}
}

type pathError struct{ path string }

func (e *pathError) Error() string { return "no such file: " + e.path }

func int64p(v int64) *int64 { return &v }
