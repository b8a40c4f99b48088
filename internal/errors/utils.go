package errors

import (
	"errors"
)

// Wrap wraps an error with additional context, creating a PipelineError if the input is not already one
func Wrap(err error, errType ErrorType, code, message string) *PipelineError {
	if err == nil {
		return nil
	}

	// Preserve task and location of an inner PipelineError
	var pe *PipelineError
	if errors.As(err, &pe) {
		return &PipelineError{
			Type:     errType,
			Code:     code,
			Message:  message,
			Cause:    pe,
			Task:     pe.Task,
			FilePath: pe.FilePath,
			Line:     pe.Line,
			Column:   pe.Column,
		}
	}

	return &PipelineError{
		Type:    errType,
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// WrapIO wraps an error as a filesystem error for the given path
func WrapIO(err error, code, message, path string) *PipelineError {
	pipeErr := Wrap(err, ErrorTypeIO, code, message)
	if pipeErr != nil && path != "" {
		pipeErr.FilePath = path
	}
	return pipeErr
}

// WrapTransform wraps a tool failure as a transform error attributed to a task
func WrapTransform(err error, code, message, task string) *PipelineError {
	pipeErr := Wrap(err, ErrorTypeTransform, code, message)
	if pipeErr != nil {
		pipeErr.Task = task
	}
	return pipeErr
}

// WrapConfig wraps an error as a configuration error
func WrapConfig(err error, code, message string) *PipelineError {
	return Wrap(err, ErrorTypeConfig, code, message)
}

// WrapServer wraps an error as a dev server error
func WrapServer(err error, code, message string) *PipelineError {
	return Wrap(err, ErrorTypeServer, code, message)
}

// Join combines multiple errors, dropping nils
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// As is errors.As, re-exported so callers need only this package
func As(err error, target any) bool {
	return errors.As(err, target)
}

// Is is errors.Is, re-exported so callers need only this package
func Is(err, target error) bool {
	return errors.Is(err, target)
}
