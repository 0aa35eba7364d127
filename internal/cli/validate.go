package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

// ValidationError is one scenario file that failed to load.
type ValidationError struct {
	File    string `json:"file"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Files  int               `json:"files"`
	Errors []ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario>...",
		Short: "Validate scenario files without running them",
		Long: `Check scenario files against the scenario schema and resolve every
mnemonic, slot index and operand, without running anything.

Examples:
  shade validate scenarios/*.yaml
  shade validate scenarios/mixed_binop.yaml --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	result := ValidationResult{Valid: true, Files: len(paths)}
	for _, path := range paths {
		formatter.VerboseLog("Validating %s", path)
		if _, err := LoadScenarioFile(path); err != nil {
			result.Valid = false
			result.Errors = append(result.Errors, toValidationError(path, err))
		}
	}

	for _, ve := range result.Errors {
		if ve.Code == ErrCodeNotFound {
			return formatter.Fail(ExitCommandError, ve.Code, ve.Message)
		}
	}
	if len(result.Errors) > 0 {
		return outputValidationErrors(formatter, result)
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ %d scenario(s) valid\n", len(paths))
	return nil
}

func toValidationError(path string, err error) ValidationError {
	ve := ValidationError{File: path, Code: ErrCodeGeneric, Message: err.Error()}
	var le *LoadError
	if errors.As(err, &le) {
		ve.Code = le.Code
		ve.Message = le.Message
		if le.Pos.IsValid() {
			ve.Line = le.Pos.Line()
			ve.Column = le.Pos.Column()
		}
	}
	return ve
}

// outputValidationErrors outputs every validation error.
func outputValidationErrors(formatter *OutputFormatter, result ValidationResult) error {
	errs := result.Errors
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	for _, e := range errs {
		if e.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", e.File, e.Line, e.Column)
		} else {
			fmt.Fprintln(formatter.Writer, e.File)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", e.Code, e.Message)
	}
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
