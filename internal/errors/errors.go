package errors

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Diagnostic is a single message reported by a transformation tool.
type Diagnostic struct {
	Tool     string
	File     string
	Line     int
	Column   int
	Message  string
	Severity ErrorSeverity
}

// ErrorSeverity represents the severity of a diagnostic
type ErrorSeverity int

const (
	ErrorSeverityInfo ErrorSeverity = iota
	ErrorSeverityWarning
	ErrorSeverityError
)

// String returns the string representation of the severity
func (s ErrorSeverity) String() string {
	switch s {
	case ErrorSeverityInfo:
		return "info"
	case ErrorSeverityWarning:
		return "warning"
	case ErrorSeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Error implements the error interface
func (d *Diagnostic) Error() string {
	var b strings.Builder
	if d.Tool != "" {
		b.WriteString(d.Tool)
		b.WriteString(": ")
	}
	if d.File != "" {
		b.WriteString(d.File)
		if d.Line > 0 {
			fmt.Fprintf(&b, ":%d:%d", d.Line, d.Column)
		}
		b.WriteString(": ")
	}
	b.WriteString(d.Severity.String())
	b.WriteString(": ")
	b.WriteString(d.Message)
	return b.String()
}

// Diagnostics is a multi-error for tools that report several messages at once.
type Diagnostics []*Diagnostic

// Error joins the messages, one per line.
func (ds Diagnostics) Error() string {
	lines := make([]string, 0, len(ds))
	for _, d := range ds {
		lines = append(lines, d.Error())
	}
	return strings.Join(lines, "\n")
}

// Unwrap exposes each diagnostic to errors.Is and errors.As.
func (ds Diagnostics) Unwrap() []error {
	errs := make([]error, 0, len(ds))
	for _, d := range ds {
		errs = append(errs, d)
	}
	return errs
}

// TaskError is the last error recorded for a task.
type TaskError struct {
	Task      string    `json:"task"`
	Type      ErrorType `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ErrorCollector keeps the last error per task. A successful run clears it.
type ErrorCollector struct {
	errors map[string]TaskError
	mutex  sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		errors: make(map[string]TaskError),
	}
}

// Record stores err for task, or clears the task when err is nil
func (ec *ErrorCollector) Record(task string, err error) {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	if err == nil {
		delete(ec.errors, task)
		return
	}
	ec.errors[task] = TaskError{
		Task:      task,
		Type:      TypeOf(err),
		Message:   err.Error(),
		Timestamp: time.Now(),
	}
}

// GetErrors returns a copy of the recorded errors sorted by task name
func (ec *ErrorCollector) GetErrors() []TaskError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	result := make([]TaskError, 0, len(ec.errors))
	for _, e := range ec.errors {
		result = append(result, e)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Task < result[j].Task })
	return result
}

// HasErrors returns true if any task has a recorded error
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.errors) > 0
}

// Clear clears all errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.errors = make(map[string]TaskError)
}
