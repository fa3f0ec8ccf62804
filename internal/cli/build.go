package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/pipeforge/pipeforge/internal/builder"
	"github.com/pipeforge/pipeforge/internal/compiler"
	"github.com/pipeforge/pipeforge/internal/config"
	"github.com/pipeforge/pipeforge/internal/store"
)

// BuildOptions holds flags for the build command.
type BuildOptions struct {
	*RootOptions
	File     string // pipeline file path; overrides the single-model flags
	Output   string // output directory
	Rebuild  bool   // wipe the previous output tree first
	Manifest string // optional sqlite manifest path

	// Single-model mode, used when no pipeline file is given.
	ModelRepository string
	ModelName       string
	ModelPath       string
	ModelVersion    int64
	MaxBatchSize    int64
	DynamicBatching bool
}

// NewBuildCommand creates the build command.
func NewBuildCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BuildOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile a pipeline into a model repository",
		Long: `Compile a pipeline description into a model repository tree.

With -f, the whole pipeline file is compiled. Without it, a single onnx
model is synthesized from the --model-* flags.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "pipeline file (.yaml, .yml, or .cue)")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", builder.DefaultOutputDir, "output directory")
	cmd.Flags().BoolVar(&opts.Rebuild, "rebuild", false, "remove the previous output tree before building")
	cmd.Flags().StringVar(&opts.Manifest, "manifest", "", "record the build in a sqlite manifest at this path")

	cmd.Flags().StringVar(&opts.ModelRepository, "model-repository", "", "repository name (single-model mode)")
	cmd.Flags().StringVar(&opts.ModelName, "model-name", "", "model name (single-model mode)")
	cmd.Flags().StringVar(&opts.ModelPath, "model-path", "", "onnx payload path (single-model mode)")
	cmd.Flags().Int64Var(&opts.ModelVersion, "model-version", 1, "model version (single-model mode)")
	cmd.Flags().Int64Var(&opts.MaxBatchSize, "max-batch-size", 0, "maximum batch size (single-model mode)")
	cmd.Flags().BoolVar(&opts.DynamicBatching, "dynamic-batching", false, "enable dynamic batching (single-model mode)")

	return cmd
}

func runBuild(opts *BuildOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := loadBuildConfig(opts, formatter)
	if err != nil {
		return outputCommandError(formatter, err)
	}

	if violations := config.Validate(cfg); len(violations) > 0 {
		return outputValidationFailure(formatter, violations)
	}

	if opts.Rebuild {
		root := filepath.Join(opts.Output, cfg.ModelRepository)
		formatter.VerboseLog("Removing previous output tree %s", root)
		if err := os.RemoveAll(root); err != nil {
			_ = formatter.Error(ErrCodeWrite, fmt.Sprintf("removing %s: %v", root, err), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
	}

	log := zerolog.New(zerolog.ConsoleWriter{Out: cmd.ErrOrStderr()}).With().Timestamp().Logger()
	result, err := builder.Build(cfg, builder.Options{
		OutputDir: opts.Output,
		Logger:    &log,
	})
	if err != nil {
		return outputBuildError(formatter, err)
	}

	buildID := uuid.Must(uuid.NewV7()).String()
	if opts.Manifest != "" {
		if err := recordManifest(cmd, opts.Manifest, buildID, result); err != nil {
			_ = formatter.Error(ErrCodeWrite, err.Error(), nil)
			return NewExitError(ExitCommandError, err.Error())
		}
	}

	return outputBuildSuccess(formatter, buildID, result)
}

// loadBuildConfig loads the pipeline file, or synthesizes a one-model
// configuration from the single-model flags when no file is given.
func loadBuildConfig(opts *BuildOptions, formatter *OutputFormatter) (*config.Pipeline, error) {
	if opts.File != "" {
		if opts.ModelRepository != "" || opts.ModelName != "" || opts.ModelPath != "" {
			formatter.VerboseLog("Pipeline file provided; single-model flags are ignored")
		}
		return LoadPipeline(opts.File)
	}

	switch {
	case opts.ModelRepository == "":
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "either --file or --model-repository is required"}
	case opts.ModelPath == "":
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "--model-path is required in single-model mode"}
	case opts.ModelName == "":
		return nil, &LoadError{Code: ErrCodeGeneric, Message: "--model-name is required in single-model mode"}
	}

	version := opts.ModelVersion
	batch := opts.MaxBatchSize
	return &config.Pipeline{
		ModelRepository: opts.ModelRepository,
		Models: config.ModelList{{
			Name: opts.ModelName,
			Spec: config.ModelSpec{
				Engine:          "onnx",
				Dtype:           "float32",
				MaxBatchSize:    &batch,
				DynamicBatching: opts.DynamicBatching,
				Versions: []config.VersionSpec{{
					Version: &version,
					Path:    opts.ModelPath,
				}},
			},
		}},
	}, nil
}

// recordManifest writes one manifest row per built model.
func recordManifest(cmd *cobra.Command, path, buildID string, result *builder.Result) error {
	s, err := store.Open(path)
	if err != nil {
		return fmt.Errorf("opening manifest: %w", err)
	}
	defer s.Close()

	now := time.Now().UTC()
	for _, model := range result.Models {
		rec := store.BuildRecord{
			BuildID:        buildID,
			Repository:     result.Repository,
			Model:          model.Name,
			Engine:         model.Engine,
			ConfigChecksum: model.ConfigChecksum,
			BuiltAt:        now,
		}
		if err := s.RecordBuild(cmd.Context(), rec); err != nil {
			return err
		}
	}
	return nil
}

func outputBuildSuccess(formatter *OutputFormatter, buildID string, result *builder.Result) error {
	if formatter.Format == "json" {
		return formatter.Success(struct {
			BuildID string `json:"build_id"`
			*builder.Result
		}{BuildID: buildID, Result: result})
	}

	fmt.Fprintf(formatter.Writer, "✓ Built %d model(s)\n\n", len(result.Models))
	for _, model := range result.Models {
		fmt.Fprintf(formatter.Writer, "  %s: engine %s, %d input(s), %d output(s)\n",
			model.Name, model.Engine, model.Inputs, model.Outputs)
	}
	fmt.Fprintf(formatter.Writer, "\nModel repository: %s\n", result.Repository)
	return nil
}

func outputValidationFailure(formatter *OutputFormatter, violations []config.ValidationError) error {
	if formatter.Format == "json" {
		_ = formatter.Error(ErrCodeValidation,
			fmt.Sprintf("configuration failed validation with %d violation(s)", len(violations)),
			violations)
		return NewExitError(ExitFailure, "validation failed")
	}

	fmt.Fprintln(formatter.Writer, "✗ Configuration failed validation")
	fmt.Fprintln(formatter.Writer)
	for _, v := range violations {
		fmt.Fprintf(formatter.Writer, "  %s\n", v.Error())
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d violation(s)", len(violations)))
}

func outputBuildError(formatter *OutputFormatter, err error) error {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		_ = formatter.Error(compileErr.Code, compileErr.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: compileErr.Error(), Err: err}
	}
	_ = formatter.Error(ErrCodeCompile, err.Error(), nil)
	return &ExitError{Code: ExitCommandError, Message: err.Error(), Err: err}
}

func outputCommandError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return &ExitError{Code: ExitCommandError, Message: loadErr.Message, Err: err}
	}
	_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
	return &ExitError{Code: ExitCommandError, Message: err.Error(), Err: err}
}
