// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// errors.go - Error types and exit codes shared by all geltek commands.
//
// Commands always return errors; Execute displays them once and maps them
// to an exit code.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dadagust/geltek-chat-frontend-testing/internal/api"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/config"
	"github.com/dadagust/geltek-chat-frontend-testing/internal/session"
)

// =============================================================================
// EXIT CODES
// =============================================================================

const (
	// ExitSuccess indicates successful execution
	ExitSuccess = 0
	// ExitGeneralError indicates a general/unknown error
	ExitGeneralError = 1
	// ExitUsageError indicates invalid command usage or arguments
	ExitUsageError = 2
	// ExitConfigError indicates a missing or invalid configuration
	ExitConfigError = 3
	// ExitNetworkError indicates the service could not be reached or failed
	ExitNetworkError = 5
	// ExitNotFoundError indicates a chat was not found
	ExitNotFoundError = 7
)

// =============================================================================
// ERROR TYPES
// =============================================================================

// CommandError represents a CLI command error with context.
type CommandError struct {
	Command string
	Action  string
	Err     error
}

func (e *CommandError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Command, e.Action, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Command, e.Action)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}

// ValidationError represents invalid input to a command.
type ValidationError struct {
	Field   string
	Value   string
	Reason  string
	Example string
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("invalid %s %q: %s", e.Field, e.Value, e.Reason)
	if e.Example != "" {
		msg += "\nExample: " + e.Example
	}
	return msg
}

// NotFoundError reports a chat or other resource that does not exist.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// NewCommandError creates a CommandError.
func NewCommandError(command, action string, err error) error {
	return &CommandError{Command: command, Action: action, Err: err}
}

// ErrUnsupportedFormat creates a ValidationError for an unknown output format.
func ErrUnsupportedFormat(format string, supported []string) error {
	return &ValidationError{
		Field:   "format",
		Value:   format,
		Reason:  "must be one of " + strings.Join(supported, ", "),
		Example: "geltek export CHAT_ID --format " + supported[0],
	}
}

// =============================================================================
// DISPLAY
// =============================================================================

// DisplayError writes err to w, as JSON when jsonMode is set.
func DisplayError(w io.Writer, err error, jsonMode bool) {
	if err == nil {
		return
	}
	if jsonMode {
		DisplayErrorJSON(w, err)
		return
	}

	var cfgErrs config.ConfigurationErrors
	if errors.As(err, &cfgErrs) {
		fmt.Fprintf(w, "%s configuration is incomplete:\n", ErrorStyle.Render("[ERROR]"))
		for _, e := range cfgErrs {
			fmt.Fprintf(w, "  - %s\n", e.Error())
		}
		if path, perr := config.ConfigPath(); perr == nil {
			fmt.Fprintln(w, DimStyle.Render("Run 'geltek config init' to create "+path))
		}
		return
	}
	fmt.Fprintf(w, "%s %s\n", ErrorStyle.Render("[ERROR]"), err.Error())
}

// DisplayErrorJSON writes err as a JSON error object.
func DisplayErrorJSON(w io.Writer, err error) {
	output := map[string]any{
		"success":    false,
		"error":      err.Error(),
		"error_type": errorType(err),
	}

	var transport *api.TransportError
	if errors.As(err, &transport) {
		output["operation"] = transport.Op
		if transport.Status != 0 {
			output["status"] = transport.Status
		}
	}
	var notFound *NotFoundError
	if errors.As(err, &notFound) {
		output["resource"] = notFound.Resource
		output["id"] = notFound.ID
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(output) //nolint:errcheck
}

func errorType(err error) string {
	var (
		cfgErrs    config.ConfigurationErrors
		cfgErr     *config.ConfigurationError
		transport  *api.TransportError
		service    *api.ServiceReportedError
		notFound   *NotFoundError
		validation *ValidationError
	)
	switch {
	case errors.As(err, &cfgErrs), errors.As(err, &cfgErr):
		return "configuration_error"
	case errors.As(err, &transport):
		return "transport_error"
	case errors.As(err, &service):
		return "service_error"
	case errors.As(err, &notFound):
		return "not_found_error"
	case errors.As(err, &validation):
		return "validation_error"
	default:
		return "generic_error"
	}
}

// =============================================================================
// EXIT CODE MAPPING
// =============================================================================

// GetExitCode determines the exit code for an error.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var (
		cfgErrs    config.ConfigurationErrors
		cfgErr     *config.ConfigurationError
		transport  *api.TransportError
		notFound   *NotFoundError
		validation *ValidationError
		tty        *TTYRequiredError
	)
	switch {
	case errors.As(err, &cfgErrs), errors.As(err, &cfgErr):
		return ExitConfigError
	case errors.As(err, &notFound):
		return ExitNotFoundError
	case errors.As(err, &transport), errors.Is(err, session.ErrStreamTruncated):
		return ExitNetworkError
	case errors.As(err, &validation), errors.As(err, &tty), errors.Is(err, session.ErrEmptyMessage):
		return ExitUsageError
	}

	// cobra reports flag and argument problems as plain errors.
	msg := err.Error()
	if strings.HasPrefix(msg, "unknown command") ||
		strings.HasPrefix(msg, "unknown flag") ||
		strings.HasPrefix(msg, "unknown shorthand flag") ||
		strings.Contains(msg, "arg(s)") {
		return ExitUsageError
	}
	return ExitGeneralError
}
