package config

import (
	"fmt"

	"github.com/pipeforge/pipeforge/internal/descriptor"
)

// Validation error codes (E100-E199)
const (
	ErrRepositoryMissing = "E100" // model_repository is required
	ErrNoModels          = "E101" // at least one model required
	ErrEngineMissing     = "E102" // engine is required
	ErrEngineUnknown     = "E103" // engine not one of onnx/python/ensemble
	ErrBatchSizeMissing  = "E104" // max_batch_size is required
	ErrVersionsMissing   = "E105" // versions required for non-ensemble engines
	ErrVersionMissing    = "E106" // a version entry lacks its number
	ErrPathMissing       = "E107" // onnx version lacks payload path
	ErrModuleMissing     = "E108" // python version lacks module.path/module.execute
	ErrStepsMissing      = "E109" // ensemble lacks steps
	ErrStepFieldMissing  = "E110" // a step lacks model or version
	ErrKindMissing       = "E111" // instance group lacks kind
	ErrTensorMissing     = "E112" // python model lacks tensor declarations
	ErrTensorFieldBad    = "E113" // tensor declaration lacks dims or dtype
	ErrAppPathMissing    = "E114" // app section lacks path
)

// ValidationError names a missing or malformed required field together
// with the model it belongs to.
type ValidationError struct {
	Model   string `json:"model,omitempty"`
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Model != "" {
		return fmt.Sprintf("[%s] model %s: %s: %s", e.Code, e.Model, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks the raw tree against the per-engine required-field
// schema. All violations are returned in a fixed check order; a
// non-empty result aborts the build before any model is processed.
func Validate(p *Pipeline) []ValidationError {
	var errs []ValidationError

	if p.ModelRepository == "" {
		errs = append(errs, ValidationError{
			Field:   "model_repository",
			Code:    ErrRepositoryMissing,
			Message: "model_repository is required",
		})
	}
	if len(p.Models) == 0 {
		errs = append(errs, ValidationError{
			Field:   "models",
			Code:    ErrNoModels,
			Message: "at least one model is required",
		})
	}

	for _, entry := range p.Models {
		errs = append(errs, validateModel(entry.Name, entry.Spec)...)
	}

	if p.App != nil && p.App.Path == "" {
		errs = append(errs, ValidationError{
			Field:   "app.path",
			Code:    ErrAppPathMissing,
			Message: "app section requires a path",
		})
	}

	return errs
}

// validateModel applies the engine-keyed field checks to one model, in
// the same order for every model so failures are stable.
func validateModel(name string, spec ModelSpec) []ValidationError {
	var errs []ValidationError

	engine := descriptor.Engine(spec.Engine)
	if spec.Engine == "" {
		errs = append(errs, ValidationError{
			Model:   name,
			Field:   "engine",
			Code:    ErrEngineMissing,
			Message: "engine is required",
		})
		return errs
	}
	if !engine.Valid() {
		errs = append(errs, ValidationError{
			Model:   name,
			Field:   "engine",
			Code:    ErrEngineUnknown,
			Message: fmt.Sprintf("engine %q is not supported (onnx, python, ensemble)", spec.Engine),
		})
		return errs
	}

	if spec.MaxBatchSize == nil {
		errs = append(errs, ValidationError{
			Model:   name,
			Field:   "max_batch_size",
			Code:    ErrBatchSizeMissing,
			Message: "max_batch_size is required",
		})
	}

	if engine != descriptor.EngineEnsemble {
		if len(spec.Versions) == 0 {
			errs = append(errs, ValidationError{
				Model:   name,
				Field:   "versions",
				Code:    ErrVersionsMissing,
				Message: "versions is required and must be non-empty",
			})
		}
		for i, version := range spec.Versions {
			if version.Version == nil {
				errs = append(errs, ValidationError{
					Model:   name,
					Field:   fmt.Sprintf("versions[%d].version", i),
					Code:    ErrVersionMissing,
					Message: "version number is required",
				})
			}
			if engine == descriptor.EngineONNX && version.Path == "" {
				errs = append(errs, ValidationError{
					Model:   name,
					Field:   fmt.Sprintf("versions[%d].path", i),
					Code:    ErrPathMissing,
					Message: "onnx versions require a payload path",
				})
			}
			if engine == descriptor.EnginePython {
				switch {
				case version.Module == nil:
					errs = append(errs, ValidationError{
						Model:   name,
						Field:   fmt.Sprintf("versions[%d].module", i),
						Code:    ErrModuleMissing,
						Message: "python versions require a module section",
					})
				case version.Module.Path == "":
					errs = append(errs, ValidationError{
						Model:   name,
						Field:   fmt.Sprintf("versions[%d].module.path", i),
						Code:    ErrModuleMissing,
						Message: "module path is required",
					})
				case version.Module.Execute == "":
					errs = append(errs, ValidationError{
						Model:   name,
						Field:   fmt.Sprintf("versions[%d].module.execute", i),
						Code:    ErrModuleMissing,
						Message: "module execute function is required",
					})
				}
			}
		}
	}

	if engine == descriptor.EngineEnsemble {
		if len(spec.Steps) == 0 {
			errs = append(errs, ValidationError{
				Model:   name,
				Field:   "steps",
				Code:    ErrStepsMissing,
				Message: "ensemble models require a non-empty steps list",
			})
		}
		for i, step := range spec.Steps {
			if step.Model == "" {
				errs = append(errs, ValidationError{
					Model:   name,
					Field:   fmt.Sprintf("steps[%d].model", i),
					Code:    ErrStepFieldMissing,
					Message: "step model is required",
				})
			}
			if !step.Version.IsSet() {
				errs = append(errs, ValidationError{
					Model:   name,
					Field:   fmt.Sprintf("steps[%d].version", i),
					Code:    ErrStepFieldMissing,
					Message: "step version is required",
				})
			}
		}
	}

	for i, group := range spec.InstanceGroups {
		if group.Kind == "" {
			errs = append(errs, ValidationError{
				Model:   name,
				Field:   fmt.Sprintf("instance_group[%d].kind", i),
				Code:    ErrKindMissing,
				Message: "instance group kind is required",
			})
		}
	}

	if engine == descriptor.EnginePython {
		errs = append(errs, validateTensorSection(name, spec.Tensor)...)
	}

	return errs
}

func validateTensorSection(name string, tensor *TensorSection) []ValidationError {
	if tensor == nil {
		return []ValidationError{{
			Model:   name,
			Field:   "tensor",
			Code:    ErrTensorMissing,
			Message: "python models require a tensor section",
		}}
	}

	var errs []ValidationError
	if len(tensor.Input) == 0 {
		errs = append(errs, ValidationError{
			Model:   name,
			Field:   "tensor.input",
			Code:    ErrTensorMissing,
			Message: "tensor.input is required and must be non-empty",
		})
	}
	if len(tensor.Output) == 0 {
		errs = append(errs, ValidationError{
			Model:   name,
			Field:   "tensor.output",
			Code:    ErrTensorMissing,
			Message: "tensor.output is required and must be non-empty",
		})
	}
	sections := []struct {
		name  string
		decls []TensorDecl
	}{
		{"input", tensor.Input},
		{"output", tensor.Output},
	}
	for _, section := range sections {
		for i, decl := range section.decls {
			if len(decl.Dims) == 0 {
				errs = append(errs, ValidationError{
					Model:   name,
					Field:   fmt.Sprintf("tensor.%s[%d].dims", section.name, i),
					Code:    ErrTensorFieldBad,
					Message: "dims is required",
				})
			}
			if decl.Dtype == "" {
				errs = append(errs, ValidationError{
					Model:   name,
					Field:   fmt.Sprintf("tensor.%s[%d].dtype", section.name, i),
					Code:    ErrTensorFieldBad,
					Message: "dtype is required",
				})
			}
		}
	}
	return errs
}
