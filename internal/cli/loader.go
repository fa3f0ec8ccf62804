package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueyaml "cuelang.org/go/encoding/yaml"
	"gopkg.in/yaml.v3"

	"github.com/pipeforge/pipeforge/internal/config"
)

// Error code constants shared by all CLI commands.
const (
	ErrCodeGeneric    = "E001" // generic/unknown error
	ErrCodeReadFailed = "E002" // pipeline file unreadable
	ErrCodeParse      = "E003" // pipeline file undecodable
	ErrCodeBadFormat  = "E004" // unsupported file extension
	ErrCodeWrite      = "E005" // output write error
	ErrCodeValidation = "E006" // configuration failed validation
	ErrCodeCompile    = "E007" // a model failed to compile
)

// LoadError is a failure to load the pipeline file.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadPipeline reads a pipeline description from a YAML or CUE file and
// decodes it into the raw configuration tree. CUE input is exported to
// YAML first so both paths share one decoder and both preserve model
// declaration order.
func LoadPipeline(path string) (*config.Pipeline, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Code: ErrCodeReadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	switch filepath.Ext(path) {
	case ".yaml", ".yml":
		// already YAML
	case ".cue":
		data, err = cueToYAML(path, data)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeParse, Message: err.Error()}
		}
	default:
		return nil, &LoadError{
			Code:    ErrCodeBadFormat,
			Message: fmt.Sprintf("unsupported pipeline file %s: expected .yaml, .yml, or .cue", path),
		}
	}

	var p config.Pipeline
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, &LoadError{Code: ErrCodeParse, Message: fmt.Sprintf("decoding %s: %v", path, err)}
	}
	return &p, nil
}

// cueToYAML compiles a standalone CUE file and exports its value as
// YAML bytes.
func cueToYAML(path string, data []byte) ([]byte, error) {
	ctx := cuecontext.New()
	value := ctx.CompileBytes(data, cue.Filename(path))
	if err := value.Err(); err != nil {
		return nil, fmt.Errorf("compiling %s: %v", path, err)
	}
	out, err := cueyaml.Encode(value)
	if err != nil {
		return nil, fmt.Errorf("exporting %s: %v", path, err)
	}
	return out, nil
}
