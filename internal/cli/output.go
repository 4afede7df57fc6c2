package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/JonMunkholm/repairdesk/internal/repair"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // The repair service or audit sink failed
	ExitCommandError = 2 // Bad flags, unreadable input, invalid configuration
)

// ExitError carries the process exit code for an error.
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

// Response is the JSON envelope for command output.
type Response struct {
	Status string     `json:"status"` // "ok" or "error"
	Data   any        `json:"data,omitempty"`
	Error  *ErrorBody `json:"error,omitempty"`
}

// ErrorBody mirrors the operator message the web UI shows.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

// Printer writes command results in the configured format.
type Printer struct {
	Format string
	Writer io.Writer
}

// Success writes data. Text output uses text when non-empty.
func (p *Printer) Success(data any, text string) error {
	if p.Format == "json" {
		return json.NewEncoder(p.Writer).Encode(Response{Status: "ok", Data: data})
	}
	if text == "" {
		text = fmt.Sprint(data)
	}
	_, err := fmt.Fprintln(p.Writer, text)
	return err
}

// Error writes the operator message for err.
func (p *Printer) Error(err error) {
	msg := repair.MapError(err)
	if p.Format == "json" {
		json.NewEncoder(p.Writer).Encode(Response{
			Status: "error",
			Error:  &ErrorBody{Code: msg.Code, Message: msg.Message, Action: msg.Action, Detail: err.Error()},
		})
		return
	}
	fmt.Fprintf(p.Writer, "Error [%s]: %s\n", msg.Code, msg.Message)
	if msg.Action != "" {
		fmt.Fprintf(p.Writer, "  %s\n", msg.Action)
	}
}
