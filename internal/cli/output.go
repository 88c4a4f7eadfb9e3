package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/roach88/diamond/internal/engine"
	"github.com/roach88/diamond/internal/server"
)

// Exit codes for CLI commands.
const (
	ExitSuccess      = 0 // Successful execution
	ExitFailure      = 1 // Reverted message, failed scenario, verification mismatch
	ExitCommandError = 2 // Command error (invalid paths, database not found, etc.)
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
	if err == nil {
		return ExitSuccess
	}
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
	Code    string `json:"code"`              // "NotOwner", "E_VERIFY", etc.
	Message string `json:"message"`           // human-readable message
	Details any    `json:"details,omitempty"` // additional context
}

// Success outputs a result. In text mode, text is printed instead of data
// when it is non-empty.
func (f *OutputFormatter) Success(data any, text ...string) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{Status: "ok", Data: data})
	}
	if len(text) > 0 {
		_, err := fmt.Fprintln(f.Writer, strings.Join(text, "\n"))
		return err
	}
	_, err := fmt.Fprintln(f.Writer, data)
	return err
}

// Error outputs an error in the configured format.
func (f *OutputFormatter) Error(code, message string, details any) error {
	if f.Format == "json" {
		return f.encode(CLIResponse{
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

func (f *OutputFormatter) encode(resp CLIResponse) error {
	enc := json.NewEncoder(f.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

// Receipt prints a message receipt. A reverted message is reported with
// its error code and returned as an ExitFailure.
func (f *OutputFormatter) Receipt(r *engine.Receipt) error {
	rec := server.NewReceipt(r)
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: rec}
		if rec.Error != nil {
			resp.Status = "error"
			resp.Error = &CLIError{Code: rec.Error.Code, Message: rec.Error.Message}
		}
		if err := f.encode(resp); err != nil {
			return err
		}
	} else {
		w := f.Writer
		fmt.Fprintf(w, "tx:      %s\n", rec.TxID)
		if rec.Error != nil {
			fmt.Fprintf(w, "status:  reverted (%s)\n", rec.Error.Code)
			fmt.Fprintf(w, "error:   %s\n", rec.Error.Message)
		} else {
			fmt.Fprintln(w, "status:  ok")
		}
		fmt.Fprintf(w, "gas:     %d\n", rec.GasUsed)
		if rec.Address != "" {
			fmt.Fprintf(w, "address: %s\n", rec.Address)
		}
		for _, v := range rec.Values {
			fmt.Fprintf(w, "return:  %s\n", v)
		}
		for _, l := range rec.Logs {
			fmt.Fprintf(w, "log:     #%d %s %s\n", l.Seq, l.Event, l.Data)
		}
	}
	if rec.Error != nil {
		return NewExitError(ExitFailure, fmt.Sprintf("message reverted: %s", rec.Error.Code))
	}
	return nil
}

// VerboseLog outputs a message only if verbose mode is enabled.
// Uses ErrWriter if set, otherwise falls back to Writer.
// When format is JSON, verbose logs go to ErrWriter to avoid corrupting JSON output.
func (f *OutputFormatter) VerboseLog(format string, args ...any) {
	if !f.Verbose {
		return
	}
	w := f.ErrWriter
	if w == nil {
		w = f.Writer
	}
	fmt.Fprintf(w, format+"\n", args...)
}

// GetErrWriter returns the appropriate writer for diagnostic output.
// Returns ErrWriter if set, otherwise Writer.
func (f *OutputFormatter) GetErrWriter() io.Writer {
	if f.ErrWriter != nil {
		return f.ErrWriter
	}
	return f.Writer
}
