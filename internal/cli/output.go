package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/AppleFlash/BackgroundRealm/internal/gateway"
	"github.com/AppleFlash/BackgroundRealm/internal/record"
	"github.com/AppleFlash/BackgroundRealm/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Operation failed (record not found, write rejected)
	ExitCommandError = 2 // Bad invocation (invalid flags, unreadable config or schema)
)

// Error codes reported in JSON output.
const (
	CodeNotFound  = "E001"
	CodeDuplicate = "E002"
	CodeUnknown   = "E003"
	CodeInvalid   = "E004"
	CodeInternal  = "E100"
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code    int
	Message string
	Err     error
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

// NewExitError creates an ExitError without an underlying cause.
func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

// WrapExitError attaches an exit code to err.
func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode extracts the exit code from an error. Errors that are not
// ExitErrors map to ExitFailure.
func GetExitCode(err error) int {
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// errNoMatch reports a lookup that matched no record.
var errNoMatch = errors.New("no matching record")

// ErrorCode classifies err for JSON output.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, store.ErrDuplicateKey):
		return CodeDuplicate
	case errors.Is(err, store.ErrUnknownKind):
		return CodeUnknown
	case errors.Is(err, store.ErrMissingKey):
		return CodeInvalid
	case errors.Is(err, errNoMatch), gateway.IsContainerNotFound(err), gateway.IsChildNotFound(err):
		return CodeNotFound
	case GetExitCode(err) == ExitCommandError:
		return CodeInvalid
	default:
		return CodeInternal
	}
}

// OutputFormatter writes command results as text or JSON.
type OutputFormatter struct {
	Format    string
	Writer    io.Writer
	ErrWriter io.Writer // Diagnostics; defaults to Writer
	Verbose   bool
}

// CLIResponse is the JSON envelope of every command.
type CLIResponse struct {
	Status string    `json:"status"` // "ok" or "error"
	Data   any       `json:"data,omitempty"`
	Error  *CLIError `json:"error,omitempty"`
}

// CLIError is the error part of CLIResponse.
type CLIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// Success outputs data in the configured format.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Records outputs stored objects. Text output is one canonical JSON object
// per line; JSON output is a single envelope holding the list.
func (f *OutputFormatter) Records(objs []record.Object) error {
	if objs == nil {
		objs = []record.Object{}
	}
	if f.Format == "json" {
		return f.Success(objs)
	}
	for _, obj := range objs {
		data, err := record.Marshal(obj)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(f.Writer, string(data)); err != nil {
			return err
		}
	}
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
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// VerboseLog writes a diagnostic line when verbose mode is on. It goes to
// ErrWriter so JSON output on Writer stays parseable.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns ErrWriter, or Writer when unset.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
