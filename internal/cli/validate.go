package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pipeforge/pipeforge/internal/config"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	File string
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a pipeline description without building it",
		Long: `Check a pipeline description against the per-engine required-field
schema and report every violation found.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "pipeline file (.yaml, .yml, or .cue)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := LoadPipeline(opts.File)
	if err != nil {
		return outputCommandError(formatter, err)
	}
	formatter.VerboseLog("Loaded %d model(s) from %s", len(cfg.Models), opts.File)

	if violations := config.Validate(cfg); len(violations) > 0 {
		return outputValidationFailure(formatter, violations)
	}

	if formatter.Format == "json" {
		return formatter.Success(struct {
			Repository string `json:"repository"`
			Models     int    `json:"models"`
		}{Repository: cfg.ModelRepository, Models: len(cfg.Models)})
	}
	fmt.Fprintf(formatter.Writer, "✓ %s is valid: %d model(s)\n", opts.File, len(cfg.Models))
	return nil
}
