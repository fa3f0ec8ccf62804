// Package onnx performs the two structural operations the pipeline
// compiler needs on an ONNX model payload: listing the graph's declared
// input/output tensors, and rewriting the leading dimension of each of
// them to a symbolic batch axis. The payload is otherwise opaque and is
// copied byte for byte, so unknown fields and future schema additions
// survive a rewrite.
//
// Both operations walk the protobuf wire format directly via
// encoding/protowire instead of depending on generated ONNX bindings.
package onnx

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

// ONNX field numbers for the message paths this package touches:
// ModelProto.graph -> GraphProto.{input,output} -> ValueInfoProto.type
// -> TypeProto.tensor_type -> TypeProto.Tensor.shape
// -> TensorShapeProto.dim -> Dimension.{dim_value,dim_param}.
const (
	fieldModelGraph protowire.Number = 7

	fieldGraphInput  protowire.Number = 11
	fieldGraphOutput protowire.Number = 12

	fieldValueInfoName protowire.Number = 1
	fieldValueInfoType protowire.Number = 2

	fieldTypeTensor protowire.Number = 1

	fieldTensorShape protowire.Number = 2

	fieldShapeDim protowire.Number = 1

	fieldDimValue protowire.Number = 1
	fieldDimParam protowire.Number = 2
)

// TensorInfo is one declared graph input or output.
// A dimension declared as a symbolic parameter reads as 0, matching the
// runtime's "unknown extent" placeholder.
type TensorInfo struct {
	Name string
	Dims []int64
}

// GraphIO lists the declared inputs and outputs of a model graph.
type GraphIO struct {
	Inputs  []TensorInfo
	Outputs []TensorInfo
}

// AxisNamer produces the symbolic batch-axis name for a tensor.
// ordinal is 1-based within the tensor's own list (inputs and outputs
// count separately).
type AxisNamer func(tensorName string, ordinal int) string

// ReadGraphIO parses the payload far enough to list the graph's
// declared inputs and outputs.
func ReadGraphIO(payload []byte) (*GraphIO, error) {
	io := &GraphIO{}
	err := eachField(payload, func(num protowire.Number, typ protowire.Type, value, _ []byte) error {
		if num != fieldModelGraph || typ != protowire.BytesType {
			return nil
		}
		return eachField(value, func(num protowire.Number, typ protowire.Type, value, _ []byte) error {
			if typ != protowire.BytesType {
				return nil
			}
			switch num {
			case fieldGraphInput:
				info, err := parseValueInfo(value)
				if err != nil {
					return fmt.Errorf("graph input: %w", err)
				}
				io.Inputs = append(io.Inputs, info)
			case fieldGraphOutput:
				info, err := parseValueInfo(value)
				if err != nil {
					return fmt.Errorf("graph output: %w", err)
				}
				io.Outputs = append(io.Outputs, info)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}
	return io, nil
}

// RewriteBatchAxes returns a copy of the payload in which the leading
// dimension of every graph input and output is replaced by a symbolic
// dim_param produced by name. Everything else, including fields this
// package does not model, is copied verbatim.
func RewriteBatchAxes(payload []byte, name AxisNamer) ([]byte, error) {
	out := make([]byte, 0, len(payload)+64)
	var inputOrdinal, outputOrdinal int

	err := eachField(payload, func(num protowire.Number, typ protowire.Type, value, raw []byte) error {
		if num != fieldModelGraph || typ != protowire.BytesType {
			out = append(out, raw...)
			return nil
		}

		graph := make([]byte, 0, len(value)+64)
		err := eachField(value, func(num protowire.Number, typ protowire.Type, value, raw []byte) error {
			if typ != protowire.BytesType || (num != fieldGraphInput && num != fieldGraphOutput) {
				graph = append(graph, raw...)
				return nil
			}
			ordinal := &inputOrdinal
			if num == fieldGraphOutput {
				ordinal = &outputOrdinal
			}
			*ordinal++
			rewritten, err := rewriteValueInfo(value, *ordinal, name)
			if err != nil {
				return err
			}
			graph = appendMessage(graph, num, rewritten)
			return nil
		})
		if err != nil {
			return err
		}
		out = appendMessage(out, fieldModelGraph, graph)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("onnx: %w", err)
	}
	return out, nil
}

// parseValueInfo extracts the tensor name and dimension list.
func parseValueInfo(b []byte) (TensorInfo, error) {
	var info TensorInfo
	err := eachField(b, func(num protowire.Number, typ protowire.Type, value, _ []byte) error {
		switch {
		case num == fieldValueInfoName && typ == protowire.BytesType:
			info.Name = string(value)
		case num == fieldValueInfoType && typ == protowire.BytesType:
			dims, err := parseTypeDims(value)
			if err != nil {
				return err
			}
			info.Dims = dims
		}
		return nil
	})
	return info, err
}

// parseTypeDims walks TypeProto.tensor_type.shape.dim.
func parseTypeDims(typeBytes []byte) ([]int64, error) {
	var dims []int64
	err := eachField(typeBytes, func(num protowire.Number, typ protowire.Type, value, _ []byte) error {
		if num != fieldTypeTensor || typ != protowire.BytesType {
			return nil
		}
		return eachField(value, func(num protowire.Number, typ protowire.Type, value, _ []byte) error {
			if num != fieldTensorShape || typ != protowire.BytesType {
				return nil
			}
			return eachField(value, func(num protowire.Number, typ protowire.Type, value, _ []byte) error {
				if num != fieldShapeDim || typ != protowire.BytesType {
					return nil
				}
				dims = append(dims, parseDimValue(value))
				return nil
			})
		})
	})
	return dims, err
}

// parseDimValue returns dim_value, or 0 when the dimension is symbolic
// or absent.
func parseDimValue(dim []byte) int64 {
	var v int64
	_ = eachField(dim, func(num protowire.Number, typ protowire.Type, _, raw []byte) error {
		if num == fieldDimValue && typ == protowire.VarintType {
			tagLen := protowire.SizeTag(num)
			if u, n := protowire.ConsumeVarint(raw[tagLen:]); n >= 0 {
				v = int64(u)
			}
		}
		return nil
	})
	return v
}

// rewriteValueInfo rebuilds one ValueInfoProto with its first dimension
// replaced by a named dim_param.
func rewriteValueInfo(b []byte, ordinal int, name AxisNamer) ([]byte, error) {
	var tensorName string
	_ = eachField(b, func(num protowire.Number, typ protowire.Type, value, _ []byte) error {
		if num == fieldValueInfoName && typ == protowire.BytesType {
			tensorName = string(value)
		}
		return nil
	})
	axis := name(tensorName, ordinal)

	out := make([]byte, 0, len(b)+len(axis)+8)
	err := eachField(b, func(num protowire.Number, typ protowire.Type, value, raw []byte) error {
		if num != fieldValueInfoType || typ != protowire.BytesType {
			out = append(out, raw...)
			return nil
		}
		rewritten, err := rewriteNested(value, fieldTypeTensor, func(tensor []byte) ([]byte, error) {
			return rewriteNested(tensor, fieldTensorShape, func(shape []byte) ([]byte, error) {
				return rewriteFirstDim(shape, axis)
			})
		})
		if err != nil {
			return err
		}
		out = appendMessage(out, fieldValueInfoType, rewritten)
		return nil
	})
	return out, err
}

// rewriteNested rebuilds a message, passing the submessage at target
// through fn and copying every other field verbatim.
func rewriteNested(b []byte, target protowire.Number, fn func([]byte) ([]byte, error)) ([]byte, error) {
	out := make([]byte, 0, len(b)+16)
	err := eachField(b, func(num protowire.Number, typ protowire.Type, value, raw []byte) error {
		if num != target || typ != protowire.BytesType {
			out = append(out, raw...)
			return nil
		}
		rewritten, err := fn(value)
		if err != nil {
			return err
		}
		out = appendMessage(out, num, rewritten)
		return nil
	})
	return out, err
}

// rewriteFirstDim replaces the first dim entry of a TensorShapeProto
// with a Dimension carrying only dim_param = axis. Later dims are
// copied untouched. A shape with no dims is returned unchanged.
func rewriteFirstDim(shape []byte, axis string) ([]byte, error) {
	out := make([]byte, 0, len(shape)+len(axis)+8)
	first := true
	err := eachField(shape, func(num protowire.Number, typ protowire.Type, _, raw []byte) error {
		if num == fieldShapeDim && typ == protowire.BytesType && first {
			first = false
			var dim []byte
			dim = protowire.AppendTag(dim, fieldDimParam, protowire.BytesType)
			dim = protowire.AppendString(dim, axis)
			out = appendMessage(out, fieldShapeDim, dim)
			return nil
		}
		out = append(out, raw...)
		return nil
	})
	return out, err
}

// appendMessage appends a length-delimited field.
func appendMessage(out []byte, num protowire.Number, msg []byte) []byte {
	out = protowire.AppendTag(out, num, protowire.BytesType)
	return protowire.AppendBytes(out, msg)
}

// eachField iterates the top-level fields of a wire-format message.
// value is the payload for length-delimited fields (nil otherwise);
// raw is the complete encoded field including its tag.
func eachField(b []byte, fn func(num protowire.Number, typ protowire.Type, value, raw []byte) error) error {
	for len(b) > 0 {
		num, typ, tagLen := protowire.ConsumeTag(b)
		if tagLen < 0 {
			return fmt.Errorf("malformed tag: %w", protowire.ParseError(tagLen))
		}
		valLen := protowire.ConsumeFieldValue(num, typ, b[tagLen:])
		if valLen < 0 {
			return fmt.Errorf("malformed field %d: %w", num, protowire.ParseError(valLen))
		}
		var value []byte
		if typ == protowire.BytesType {
			v, n := protowire.ConsumeBytes(b[tagLen:])
			if n < 0 {
				return fmt.Errorf("malformed bytes field %d: %w", num, protowire.ParseError(n))
			}
			value = v
		}
		if err := fn(num, typ, value, b[:tagLen+valLen]); err != nil {
			return err
		}
		b = b[tagLen+valLen:]
	}
	return nil
}
