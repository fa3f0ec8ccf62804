// Package builder orchestrates a pipeline build: it walks the models of
// a validated configuration in declaration order, runs the matching
// tensor formatter for each, resolves ensemble wiring, and persists the
// rendered descriptors and payload artifacts into the repository
// layout the serving runtime expects.
package builder

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/pipeforge/pipeforge/internal/compiler"
	"github.com/pipeforge/pipeforge/internal/config"
	"github.com/pipeforge/pipeforge/internal/descriptor"
	"github.com/pipeforge/pipeforge/internal/pbtxt"
)

// DefaultOutputDir is where the repository tree is created unless the
// caller overrides it.
const DefaultOutputDir = "build"

// Options configures a build.
type Options struct {
	// OutputDir is the directory that receives the repository tree and
	// the Dockerfile. Defaults to DefaultOutputDir.
	OutputDir string
	// Reader loads user-referenced files (payloads, python modules).
	// Defaults to the local filesystem.
	Reader compiler.FileReader
	// Logger receives per-model progress. Defaults to a no-op logger;
	// all build outcomes are also available on the returned Result.
	Logger *zerolog.Logger
}

func (o Options) outputDir() string {
	if o.OutputDir == "" {
		return DefaultOutputDir
	}
	return o.OutputDir
}

func (o Options) reader() compiler.FileReader {
	if o.Reader == nil {
		return compiler.DefaultReader()
	}
	return o.Reader
}

func (o Options) logger() zerolog.Logger {
	if o.Logger == nil {
		return zerolog.Nop()
	}
	return *o.Logger
}

// ModelResult is the structured outcome of building one model.
type ModelResult struct {
	Name           string `json:"name"`
	Engine         string `json:"engine"`
	Inputs         int    `json:"inputs"`
	Outputs        int    `json:"outputs"`
	Artifacts      int    `json:"artifacts"`
	ConfigPath     string `json:"config_path"`
	ConfigChecksum string `json:"config_checksum"`
}

// Result is the structured outcome of a whole build.
type Result struct {
	Repository string        `json:"repository"`
	Dockerfile string        `json:"dockerfile"`
	Models     []ModelResult `json:"models"`
}

// Build compiles every model of the pipeline, in declaration order,
// into <OutputDir>/<model_repository>/. The configuration must already
// have passed validation.
//
// Side effects are eager and not transactional: a failure partway
// through leaves a partially populated tree behind. All operations are
// deterministic and idempotent, so rerunning from the same input is
// safe.
func Build(cfg *config.Pipeline, opts Options) (*Result, error) {
	log := opts.logger()
	repository := filepath.Join(opts.outputDir(), cfg.ModelRepository)
	if err := os.MkdirAll(repository, 0o755); err != nil {
		return nil, fmt.Errorf("creating repository root: %w", err)
	}

	result := &Result{Repository: repository}
	derived := make(compiler.Table, len(cfg.Models))

	for _, entry := range cfg.Models {
		log.Info().Str("model", entry.Name).Str("engine", entry.Spec.Engine).Msg("building model")
		modelResult, err := buildModel(repository, entry, cfg, derived, opts)
		if err != nil {
			return nil, err
		}
		result.Models = append(result.Models, modelResult)
	}

	dockerfile, err := writeDockerfile(opts.outputDir(), cfg.Requirements)
	if err != nil {
		return nil, err
	}
	result.Dockerfile = dockerfile

	log.Info().Str("repository", repository).Int("models", len(result.Models)).Msg("build completed")
	return result, nil
}

// buildModel runs one model through dirs -> formatter -> serializer.
func buildModel(repository string, entry config.ModelEntry, cfg *config.Pipeline, derived compiler.Table, opts Options) (ModelResult, error) {
	name, spec := entry.Name, entry.Spec
	modelDir := filepath.Join(repository, name)
	if err := createVersionDirs(modelDir, spec); err != nil {
		return ModelResult{}, fmt.Errorf("model %s: %w", name, err)
	}

	desc := &descriptor.ModelDescriptor{
		Name:         name,
		Engine:       descriptor.Engine(spec.Engine),
		MaxBatchSize: *spec.MaxBatchSize,
	}

	var io compiler.IO
	var artifacts []compiler.Artifact
	var err error
	switch desc.Engine {
	case descriptor.EngineONNX:
		io, artifacts, err = compiler.FormatGraph(name, spec, opts.reader())
	case descriptor.EnginePython:
		io, artifacts, err = compiler.FormatPython(name, spec, opts.reader())
	case descriptor.EngineEnsemble:
		io, desc.SchedulingSteps, err = compiler.FormatEnsemble(name, spec, derived)
	default:
		err = fmt.Errorf("model %s: engine %q is not supported", name, spec.Engine)
	}
	if err != nil {
		return ModelResult{}, err
	}

	desc.Inputs, desc.Outputs = io.Inputs, io.Outputs
	derived.Put(name, io)

	if spec.DynamicBatching {
		desc.DynamicBatching = &descriptor.DynamicBatching{
			MaxQueueDelayMicroseconds: spec.MaxQueueDelayMicroseconds,
		}
	}
	desc.InstanceGroups = instanceGroups(spec.InstanceGroups)

	for _, artifact := range artifacts {
		target := filepath.Join(modelDir, filepath.FromSlash(artifact.Path))
		if err := os.WriteFile(target, artifact.Data, 0o644); err != nil {
			return ModelResult{}, fmt.Errorf("model %s: writing %s: %w", name, artifact.Path, err)
		}
	}

	rendered := pbtxt.Marshal(desc)
	configPath := filepath.Join(modelDir, "config.pbtxt")
	if err := os.WriteFile(configPath, []byte(rendered), 0o644); err != nil {
		return ModelResult{}, fmt.Errorf("model %s: writing descriptor: %w", name, err)
	}

	sum := sha256.Sum256([]byte(rendered))
	return ModelResult{
		Name:           name,
		Engine:         spec.Engine,
		Inputs:         len(desc.Inputs),
		Outputs:        len(desc.Outputs),
		Artifacts:      len(artifacts),
		ConfigPath:     configPath,
		ConfigChecksum: hex.EncodeToString(sum[:]),
	}, nil
}

// createVersionDirs lays out <model>/<version>/ for every declared
// version. Ensembles hold no payload, so they get the single
// placeholder version directory "1".
func createVersionDirs(modelDir string, spec config.ModelSpec) error {
	if descriptor.Engine(spec.Engine) == descriptor.EngineEnsemble {
		return os.MkdirAll(filepath.Join(modelDir, "1"), 0o755)
	}
	for _, version := range spec.Versions {
		dir := filepath.Join(modelDir, strconv.FormatInt(*version.Version, 10))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return nil
}

func instanceGroups(specs []config.InstanceGroupSpec) []descriptor.InstanceGroup {
	groups := make([]descriptor.InstanceGroup, 0, len(specs))
	for _, s := range specs {
		groups = append(groups, descriptor.InstanceGroup{
			Kind:  descriptor.InstanceGroupKind(s.Kind),
			Count: s.Count,
			GPUs:  s.GPUs,
		})
	}
	if len(groups) == 0 {
		return nil
	}
	return groups
}
