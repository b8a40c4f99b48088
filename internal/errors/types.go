package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorType represents different categories of errors.
type ErrorType string

const (
	ErrorTypeIO        ErrorType = "io"
	ErrorTypeTransform ErrorType = "transform"
	ErrorTypeConfig    ErrorType = "config"
	ErrorTypeServer    ErrorType = "server"
	ErrorTypeInternal  ErrorType = "internal"
)

// PipelineError is a structured error type carrying the task and source
// location it was raised for.
type PipelineError struct {
	Type     ErrorType
	Code     string
	Message  string
	Cause    error
	Task     string
	FilePath string
	Line     int
	Column   int
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	var parts []string

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("[%s]", e.Code))
	}

	if e.Task != "" {
		parts = append(parts, "task:"+e.Task)
	}

	if e.FilePath != "" {
		location := e.FilePath
		if e.Line > 0 {
			location += fmt.Sprintf(":%d", e.Line)
			if e.Column > 0 {
				location += fmt.Sprintf(":%d", e.Column)
			}
		}
		parts = append(parts, location)
	}

	parts = append(parts, e.Message)

	result := strings.Join(parts, " ")

	if e.Cause != nil {
		result += fmt.Sprintf(": %v", e.Cause)
	}

	return result
}

// Unwrap returns the underlying cause error.
func (e *PipelineError) Unwrap() error {
	return e.Cause
}

// Is matches another PipelineError by type and code.
func (e *PipelineError) Is(target error) bool {
	var t *PipelineError
	if errors.As(target, &t) {
		return e.Type == t.Type && e.Code == t.Code
	}

	return false
}

// WithLocation adds file location information.
func (e *PipelineError) WithLocation(filePath string, line, column int) *PipelineError {
	e.FilePath = filePath
	e.Line = line
	e.Column = column

	return e
}

// WithTask records the task the error was raised in.
func (e *PipelineError) WithTask(task string) *PipelineError {
	e.Task = task

	return e
}

// NewIOError creates a filesystem error.
func NewIOError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeIO,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewTransformError creates an error for a failed source transformation.
func NewTransformError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeTransform,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewConfigError creates a configuration error.
func NewConfigError(code, message string) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeConfig,
		Code:    code,
		Message: message,
	}
}

// NewServerError creates a dev server error.
func NewServerError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeServer,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(code, message string, cause error) *PipelineError {
	return &PipelineError{
		Type:    ErrorTypeInternal,
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// TypeOf returns the type of the outermost PipelineError in err's chain, or
// ErrorTypeInternal when there is none.
func TypeOf(err error) ErrorType {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Type
	}

	return ErrorTypeInternal
}

// IsConfigError checks if an error is a configuration error.
func IsConfigError(err error) bool {
	return hasType(err, ErrorTypeConfig)
}

// IsTransformError checks if an error came from a transformation tool.
func IsTransformError(err error) bool {
	return hasType(err, ErrorTypeTransform)
}

// IsIOError checks if an error is filesystem related.
func IsIOError(err error) bool {
	return hasType(err, ErrorTypeIO)
}

func hasType(err error, t ErrorType) bool {
	for err != nil {
		var pe *PipelineError
		if !errors.As(err, &pe) {
			return false
		}
		if pe.Type == t {
			return true
		}
		err = pe.Cause
	}

	return false
}

// Common error codes.
const (
	ErrCodeInvalidPath      = "ERR_INVALID_PATH"
	ErrCodePathTraversal    = "ERR_PATH_TRAVERSAL"
	ErrCodeConfigInvalid    = "ERR_CONFIG_INVALID"
	ErrCodeFileNotFound     = "ERR_FILE_NOT_FOUND"
	ErrCodeReadFailed       = "ERR_READ_FAILED"
	ErrCodeWriteFailed      = "ERR_WRITE_FAILED"
	ErrCodeCleanFailed      = "ERR_CLEAN_FAILED"
	ErrCodeGlobFailed       = "ERR_GLOB_FAILED"
	ErrCodeTransformFailed  = "ERR_TRANSFORM_FAILED"
	ErrCodeMinifyFailed     = "ERR_MINIFY_FAILED"
	ErrCodeMalformedMarker  = "ERR_MALFORMED_MARKER"
	ErrCodeUnresolvedRef    = "ERR_UNRESOLVED_REFERENCE"
	ErrCodeBundleConflict   = "ERR_BUNDLE_CONFLICT"
	ErrCodeGraphInvalid     = "ERR_GRAPH_INVALID"
	ErrCodeTaskSkipped      = "ERR_TASK_SKIPPED"
	ErrCodeServerStart      = "ERR_SERVER_START"
	ErrCodeWatcherFailed    = "ERR_WATCHER_FAILED"
	ErrCodeDataInvalid      = "ERR_DATA_INVALID"
	ErrCodeTranspilerFailed = "ERR_TRANSPILER_FAILED"
	ErrCodeInitFailed       = "ERR_INIT_FAILED"
)
