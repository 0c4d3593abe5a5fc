package editor

import "fmt"

// ToolError is the base error surfaced to the caller. Every failure mode
// of a command resolves to one of these so the message can be rendered
// verbatim in the tool output.
type ToolError struct {
	Message string
}

// Error implements the error interface
func (e *ToolError) Error() string {
	return e.Message
}

// NewToolError creates a plain tool error with a formatted message
func NewToolError(format string, args ...any) *ToolError {
	return &ToolError{Message: fmt.Sprintf(format, args...)}
}

// ParameterMissingError reports a required parameter absent for a command
type ParameterMissingError struct {
	ToolError
	Command   Command
	Parameter string
}

func NewParameterMissingError(command Command, parameter string) *ParameterMissingError {
	return &ParameterMissingError{
		ToolError: ToolError{
			Message: fmt.Sprintf("Parameter `%s` is required for command: %s.", parameter, command),
		},
		Command:   command,
		Parameter: parameter,
	}
}

// ParameterInvalidError reports a parameter whose value fails validation.
// The hint tells the caller what a valid value looks like.
type ParameterInvalidError struct {
	ToolError
	Parameter string
	Value     any
}

func NewParameterInvalidError(parameter string, value any, hint string) *ParameterInvalidError {
	return &ParameterInvalidError{
		ToolError: ToolError{
			Message: fmt.Sprintf("Invalid `%s` parameter: %v. %s", parameter, value, hint),
		},
		Parameter: parameter,
		Value:     value,
	}
}

// FileValidationError reports a file that cannot be operated on at all,
// such as binary content or an oversized file.
type FileValidationError struct {
	ToolError
	Path   string
	Reason string
}

func NewFileValidationError(path, reason string) *FileValidationError {
	return &FileValidationError{
		ToolError: ToolError{
			Message: fmt.Sprintf("File validation failed for %s: %s", path, reason),
		},
		Path:   path,
		Reason: reason,
	}
}
