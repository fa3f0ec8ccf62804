package compiler

import (
	"fmt"
	"path"
	"strings"

	"github.com/pipeforge/pipeforge/internal/config"
	"github.com/pipeforge/pipeforge/internal/descriptor"
)

// reservedIdentifiers are names owned by the python serving backend. A
// user module filename or entry-point function colliding with one of
// these would shadow the runtime's own symbols inside the generated
// shim.
var reservedIdentifiers = map[string]bool{
	"model":                       true,
	"config":                      true,
	"triton_python_backend_utils": true,
	"pb_utils":                    true,
	"TritonPythonModel":           true,
}

// FormatPython derives the tensor interface of a python-engine model
// from its declared tensor section and generates, per version, the
// backend shim (model.py) plus a copy of the user's module.
//
// Declared tensors are renamed positionally to "<model>_input_<n>" /
// "<model>_output_<n>" (1-based) so names stay unique when the same
// module backs several models.
func FormatPython(name string, spec config.ModelSpec, read FileReader) (IO, []Artifact, error) {
	var io IO
	for i, decl := range spec.Tensor.Input {
		t, err := declaredTensor(name, "input", i, decl)
		if err != nil {
			return IO{}, nil, err
		}
		io.Inputs = append(io.Inputs, t)
	}
	for i, decl := range spec.Tensor.Output {
		t, err := declaredTensor(name, "output", i, decl)
		if err != nil {
			return IO{}, nil, err
		}
		io.Outputs = append(io.Outputs, t)
	}

	var artifacts []Artifact
	for _, version := range spec.Versions {
		module := version.Module
		base, err := moduleBasename(name, module.Path)
		if err != nil {
			return IO{}, nil, err
		}
		if err := checkEntryPoints(name, module); err != nil {
			return IO{}, nil, err
		}

		userSource, err := read(module.Path)
		if err != nil {
			return IO{}, nil, fmt.Errorf("model %s: reading module %s: %w", name, module.Path, err)
		}
		artifacts = append(artifacts,
			Artifact{
				Path: versionPath(*version.Version, base+".py"),
				Data: userSource,
			},
			Artifact{
				Path: versionPath(*version.Version, "model.py"),
				Data: []byte(pythonShim(name, base, module, io)),
			},
		)
	}

	return io, artifacts, nil
}

// declaredTensor builds one renamed tensor from a declaration.
func declaredTensor(model, kind string, index int, decl config.TensorDecl) (descriptor.Tensor, error) {
	dataType, ok := descriptor.DataTypeToken(decl.Dtype)
	if !ok {
		return descriptor.Tensor{}, compileErrorf(model, ErrUnsupportedDtype,
			"unsupported data type %q in tensor.%s[%d]", decl.Dtype, kind, index)
	}
	return descriptor.Tensor{
		Name:     fmt.Sprintf("%s_%s_%d", model, kind, index+1),
		DataType: dataType,
		Dims:     descriptor.NewDimsToken(decl.Dims, false),
	}, nil
}

// moduleBasename extracts the import name of the user module and
// rejects reserved filenames.
func moduleBasename(model, modulePath string) (string, error) {
	base := path.Base(strings.ReplaceAll(modulePath, "\\", "/"))
	if i := strings.IndexByte(base, '.'); i >= 0 {
		base = base[:i]
	}
	if reservedIdentifiers[base] {
		return "", compileErrorf(model, ErrReservedIdentifier,
			"module filename %q is reserved by the serving runtime", base)
	}
	return base, nil
}

// checkEntryPoints rejects reserved entry-point function names.
func checkEntryPoints(model string, module *config.ModuleSpec) error {
	for _, fn := range []string{module.Execute, module.Initialize, module.Finalize} {
		if fn != "" && reservedIdentifiers[fn] {
			return compileErrorf(model, ErrReservedIdentifier,
				"function name %q is reserved by the serving runtime", fn)
		}
	}
	return nil
}

// pythonShim generates the backend model source bridging the runtime's
// per-request tensor protocol to the user's execute function. Input and
// output names are iterated in the exact order recorded on the
// descriptor.
func pythonShim(model, base string, module *config.ModuleSpec, io IO) string {
	imports := []string{module.Execute}
	if module.Initialize != "" {
		imports = append(imports, module.Initialize)
	}
	if module.Finalize != "" {
		imports = append(imports, module.Finalize)
	}

	initialize := "self.params = None"
	if module.Initialize != "" {
		initialize = fmt.Sprintf("self.params = %s(args)", module.Initialize)
	}
	finalize := "..."
	if module.Finalize != "" {
		finalize = fmt.Sprintf("%s(self.params)", module.Finalize)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Model shim for the python serving backend.\n")
	fmt.Fprintf(&b, "# Auto generated by pipeforge. Do not edit.\n")
	fmt.Fprintf(&b, "# Model: %s.\n", model)
	fmt.Fprintf(&b, "# Engine: python.\n")
	fmt.Fprintf(&b, "# ------------------------------\n\n")
	fmt.Fprintf(&b, "import triton_python_backend_utils as pb_utils\n")
	fmt.Fprintf(&b, "from .%s import %s\n\n", base, strings.Join(imports, ", "))
	fmt.Fprintf(&b, "class TritonPythonModel:\n")
	fmt.Fprintf(&b, "    def initialize(self, args):\n")
	fmt.Fprintf(&b, "        %s\n\n", initialize)
	fmt.Fprintf(&b, "    def execute(self, requests):\n")
	fmt.Fprintf(&b, "        tensor_inputs_name = %s\n", pythonNameList(io.Inputs))
	fmt.Fprintf(&b, "        tensor_outputs_name = %s\n\n", pythonNameList(io.Outputs))
	fmt.Fprintf(&b, "        responses = []\n")
	fmt.Fprintf(&b, "        for request in requests:\n")
	fmt.Fprintf(&b, "            input_tensors = []\n")
	fmt.Fprintf(&b, "            for name in tensor_inputs_name:\n")
	fmt.Fprintf(&b, "                input_tensors.append(\n")
	fmt.Fprintf(&b, "                    pb_utils.get_input_tensor_by_name(request, name).as_numpy()\n")
	fmt.Fprintf(&b, "                )\n\n")
	fmt.Fprintf(&b, "            outputs = %s(self.params, input_tensors)\n\n", module.Execute)
	fmt.Fprintf(&b, "            output_tensors = []\n")
	fmt.Fprintf(&b, "            for name, output in zip(tensor_outputs_name, outputs):\n")
	fmt.Fprintf(&b, "                output_tensors.append(pb_utils.Tensor(name, output))\n\n")
	fmt.Fprintf(&b, "            responses.append(pb_utils.InferenceResponse(output_tensors))\n")
	fmt.Fprintf(&b, "        return responses\n\n")
	fmt.Fprintf(&b, "    def finalize(self):\n")
	fmt.Fprintf(&b, "        %s\n", finalize)
	return b.String()
}

// pythonNameList renders tensor names as a python string list literal.
func pythonNameList(tensors []descriptor.Tensor) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, t := range tensors {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "'%s'", t.Name)
	}
	b.WriteByte(']')
	return b.String()
}
