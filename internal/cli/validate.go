package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/roach88/precedent-offline/internal/config"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Path   string            `json:"path"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// ValidationError is one configuration problem.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a config file",
		Long: `Validate a YAML config file against the config schema without
starting anything. Errors point at the offending line of the file.

Example:
  precedent-offline validate ./offline.yaml`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	formatter.VerboseLog("Validating %s", path)

	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return formatter.Fail(ExitCommandError, ErrCodeNotFound, fmt.Sprintf("config file not found: %s", path), err)
	}
	if err != nil {
		return outputValidationError(formatter, path, err)
	}

	formatter.VerboseLog("origin=%s generation=%s kinds=%v", cfg.Origin, cfg.Generation, cfg.KindNames())
	return formatter.Emit(ValidationResult{Valid: true, Path: path}, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %s is valid\n", path)
	})
}

func outputValidationError(formatter *OutputFormatter, path string, err error) error {
	ve := ValidationError{Field: "config", Message: err.Error()}
	var cerr *config.Error
	if errors.As(err, &cerr) {
		ve.Field = cerr.Field
		ve.Message = cerr.Message
		if cerr.Pos.IsValid() {
			ve.Line = cerr.Pos.Line()
			ve.Column = cerr.Pos.Column()
		}
	}

	if formatter.Format == "json" {
		result := ValidationResult{Valid: false, Path: path, Errors: []ValidationError{ve}}
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    ErrCodeConfig,
				Message: ve.Message,
			},
		}
		if err := writeJSON(formatter.Writer, response); err != nil {
			return err
		}
	} else {
		loc := path
		if ve.Line > 0 {
			loc = fmt.Sprintf("%s:%d:%d", path, ve.Line, ve.Column)
		}
		fmt.Fprintf(formatter.Writer, "✗ %s: %s: %s\n", loc, ve.Field, ve.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%s: %s", ErrCodeConfig, ve.Message))
}
