package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	goerrors "github.com/goliatone/go-errors"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected request (invalid definition, conflict, not found, forbidden)
	ExitCommandError = 2 // Command error (bad config, store unreachable, unreadable file)
)

// Error codes reported in CLI responses.
const (
	ErrCodeGeneric      = "E001"
	ErrCodeConfig       = "E002"
	ErrCodeStore        = "E003"
	ErrCodeInvalid      = "E004"
	ErrCodeConflict     = "E005"
	ErrCodeNotFound     = "E006"
	ErrCodeForbidden    = "E007"
	ErrCodeUnreadable   = "E008"
	ErrCodeUnauthorized = "E009"
)

// ExitError represents an error with a specific exit code.
type ExitError struct {
	Code    int    // ExitFailure or ExitCommandError
	Message string // Error message
	Err     error  // Underlying error (optional)
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// NewExitError creates a new ExitError with the given code and message.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError wraps an existing error with an exit code.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error.
// Returns ExitFailure (1) if the error is not an ExitError.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// OutputFormatter handles JSON vs text output for CLI commands.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // verbose/diagnostic output, defaults to Writer
	Verbose   bool
}

// CLIResponse is the standard JSON response format for CLI output.
type CLIResponse struct {
	Status string    `json:"status"`          // "ok" or "error"
	Data   any       `json:"data,omitempty"`  // success payload
	Error  *CLIError `json:"error,omitempty"` // error details
}

// CLIError is the error structure for CLI responses.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs a successful result in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	fmt.Fprintln(f.Writer, data)
	return nil
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "error",
			Error: &CLIError{
				Code:    code,
				Message: message,
				Details: details,
			},
		})
	}

	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if details != nil {
		switch d := details.(type) {
		case goerrors.ValidationErrors:
			for _, fe := range d {
				fmt.Fprintf(f.Writer, "  %s: %s\n", fe.Field, fe.Message)
			}
		default:
			if f.Verbose {
				fmt.Fprintf(f.Writer, "Details: %v\n", details)
			}
		}
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// Warn writes a warning to the error writer regardless of verbosity.
func (f *OutputFormatter) Warn(format string, args ...any) {
	fmt.Fprintf(f.GetErrWriter(), "warning: "+format+"\n", args...)
}

// GetErrWriter returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// Fail reports err through the formatter and returns the matching
// ExitError. Errors from the queue are classified by category.
func (f *OutputFormatter) Fail(message string, err error) error {
	code, exit := classify(err)

	var details any
	if fields, ok := goerrors.GetValidationErrors(err); ok {
		details = fields
	} else {
		var ge *goerrors.Error
		if goerrors.As(err, &ge) && len(ge.Metadata) > 0 {
			details = ge.Metadata
		}
	}

	text := message
	if err != nil {
		text = fmt.Sprintf("%s: %v", message, errMessage(err))
	}
	if outErr := f.Error(code, text, details); outErr != nil {
		return WrapExitError(ExitCommandError, "failed to write output", outErr)
	}
	return WrapExitError(exit, message, err)
}

// failWith reports err under a fixed code with exit status ExitCommandError.
func (f *OutputFormatter) failWith(code, message string, err error) error {
	var details any
	if fields, ok := goerrors.GetValidationErrors(err); ok {
		details = fields
	}
	if outErr := f.Error(code, message+": "+errMessage(err), details); outErr != nil {
		return WrapExitError(ExitCommandError, "failed to write output", outErr)
	}
	return WrapExitError(ExitCommandError, message, err)
}

func classify(err error) (string, int) {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return ErrCodeGeneric, exitErr.Code
	}

	switch {
	case goerrors.IsCategory(err, goerrors.CategoryValidation):
		return ErrCodeInvalid, ExitFailure
	case goerrors.IsCategory(err, goerrors.CategoryConflict):
		return ErrCodeConflict, ExitFailure
	case goerrors.IsCategory(err, goerrors.CategoryNotFound):
		return ErrCodeNotFound, ExitFailure
	case goerrors.IsCategory(err, goerrors.CategoryAuthz):
		return ErrCodeForbidden, ExitFailure
	case goerrors.IsCategory(err, goerrors.CategoryAuth):
		return ErrCodeUnauthorized, ExitFailure
	case goerrors.IsCategory(err, goerrors.CategoryExternal):
		return ErrCodeStore, ExitCommandError
	}
	return ErrCodeGeneric, ExitCommandError
}

// errMessage prefers the go-errors message over the wrapped chain.
func errMessage(err error) string {
	var ge *goerrors.Error
	if goerrors.As(err, &ge) {
		if ge.Source != nil {
			return ge.Message + ": " + ge.Source.Error()
		}
		return ge.Message
	}
	return err.Error()
}
