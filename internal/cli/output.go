package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/brickbook/internal/ir"
	"github.com/roach88/brickbook/internal/store"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Rejected mutation or failed scenario (conflict, already liked, ...)
	ExitCommandError = 2 // Command error (bad arguments, database cannot be opened, etc.)
)

// ExitError represents an error with a specific exit code.
// Use this to return errors with meaningful exit codes from CLI commands.
type ExitError struct {
	Code    int    // Exit code (use ExitFailure or ExitCommandError)
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
	ErrWriter io.Writer // Separate writer for verbose/diagnostic output (defaults to Writer)
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
	Code    string `json:"code"`              // error kind, e.g. "CONFLICT"
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a successful result in the configured format.
// Text output uses the value's String method when it has one.
func (f *OutputFormatter) Success(data any) error {
	if f.Format == "json" {
		return json.NewEncoder(f.Writer).Encode(CLIResponse{
			Status: "ok",
			Data:   data,
		})
	}

	// Human-readable text output
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

	// Human-readable error
	fmt.Fprintf(f.Writer, "Error [%s]: %s\n", code, message)
	if f.Verbose && details != nil {
		fmt.Fprintf(f.Writer, "Details: %v\n", details)
	}
	return nil
}

// Rejected reports a catalogue error and returns the ExitError the command
// should exit with: ExitFailure for rejected input or state, ExitCommandError
// for store failures.
func (f *OutputFormatter) Rejected(err error) error {
	kind := store.KindOf(err)

	var details any
	var me *store.MutationError
	if kind == store.KindConflict && errors.As(err, &me) {
		details = map[string]int64{"current_revision": me.CurrentRevision}
	}
	if writeErr := f.Error(string(kind), err.Error(), details); writeErr != nil {
		return writeErr
	}

	switch kind {
	case store.KindTransient, store.KindInternal:
		return WrapExitError(ExitCommandError, "store failure", err)
	default:
		return WrapExitError(ExitFailure, strings.ToLower(string(kind)), err)
	}
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	fmt.Fprintf(f.GetErrWriter(), format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}

// recordView renders one building: canonical JSON of its flattened
// attributes, or one "key: value" line per attribute in key order.
type recordView struct {
	building ir.Building
}

func (v recordView) MarshalJSON() ([]byte, error) {
	return ir.MarshalCanonical(v.building.Attributes())
}

func (v recordView) String() string {
	attrs := v.building.Attributes()
	var b strings.Builder
	for i, k := range attrs.SortedKeys() {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", k, renderValue(attrs[k]))
	}
	return b.String()
}

// recordsView renders a list of buildings, as returned by lookups.
type recordsView []ir.Building

func (v recordsView) MarshalJSON() ([]byte, error) {
	arr := make(ir.Array, len(v))
	for i, b := range v {
		arr[i] = b.Attributes()
	}
	return ir.MarshalCanonical(arr)
}

func (v recordsView) String() string {
	if len(v) == 0 {
		return "No buildings found."
	}
	parts := make([]string, len(v))
	for i, b := range v {
		parts[i] = recordView{building: b}.String()
	}
	return strings.Join(parts, "\n\n")
}

// historyView renders a revision log, oldest first.
type historyView struct {
	BuildingID int64         `json:"building_id"`
	Entries    []ir.LogEntry `json:"entries"`
}

func (v historyView) String() string {
	if len(v.Entries) == 0 {
		return fmt.Sprintf("Building %d has no recorded changes.", v.BuildingID)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "History of building %d (%d entries)", v.BuildingID, len(v.Entries))
	for _, e := range v.Entries {
		fmt.Fprintf(&b, "\n#%d  %s  %s", e.ID, e.LoggedAt, e.UserID)
		fmt.Fprintf(&b, "\n    forward: %s", renderValue(e.Forward))
		if e.Revertible() {
			fmt.Fprintf(&b, "\n    reverse: %s", renderValue(e.Reverse))
		}
	}
	return b.String()
}

func renderValue(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}
