// Package errors provides structured errors for procmap.
// Errors carry a code for programmatic handling, ordered context, and a stack trace.
package errors

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
)

// Code identifies an error class.
type Code string

const (
	// Input errors (1xx)
	CodeFileNotFound     Code = "E101"
	CodeInvalidFormat    Code = "E103"
	CodeMissingColumn    Code = "E104"
	CodeInvalidTimestamp Code = "E105"

	// Processing errors (2xx)
	CodeParseFailed      Code = "E201"
	CodeValidationFailed Code = "E203"

	// Output errors (3xx)
	CodeWriteFailed   Code = "E301"
	CodePublishFailed Code = "E304"

	// System errors (4xx)
	CodeContextCanceled Code = "E401"
	CodeInvalidConfig   Code = "E405"

	// Unknown
	CodeUnknown Code = "E999"
)

// Coded is implemented by every error that carries a Code.
type Coded interface {
	error
	ErrorCode() Code
}

// LogFlowError is the base error type for procmap errors.
type LogFlowError struct {
	Code       Code
	Message    string
	Cause      error
	Context    []KV
	StackTrace []Frame
}

// KV is one context entry. Entries keep insertion order.
type KV struct {
	Key   string
	Value interface{}
}

// Frame represents a stack frame.
type Frame struct {
	Function string
	File     string
	Line     int
}

// Error implements the error interface.
func (e *LogFlowError) Error() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	if len(e.Context) > 0 {
		sb.WriteString(" (")
		for i, kv := range e.Context {
			if i > 0 {
				sb.WriteString(", ")
			}
			sb.WriteString(fmt.Sprintf("%s=%v", kv.Key, kv.Value))
		}
		sb.WriteString(")")
	}

	if e.Cause != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Cause.Error())
	}

	return sb.String()
}

// ErrorCode implements Coded.
func (e *LogFlowError) ErrorCode() Code {
	return e.Code
}

// Unwrap returns the underlying cause.
func (e *LogFlowError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches a target error.
func (e *LogFlowError) Is(target error) bool {
	if t, ok := target.(*LogFlowError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithContext adds context to the error.
func (e *LogFlowError) WithContext(key string, value interface{}) *LogFlowError {
	e.Context = append(e.Context, KV{Key: key, Value: value})
	return e
}

// New creates a new LogFlowError.
func New(code Code, message string) *LogFlowError {
	return &LogFlowError{
		Code:       code,
		Message:    message,
		StackTrace: captureStack(2),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, code Code, message string) *LogFlowError {
	if err == nil {
		return nil
	}

	return &LogFlowError{
		Code:       code,
		Message:    message,
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, code Code, format string, args ...interface{}) *LogFlowError {
	if err == nil {
		return nil
	}
	return &LogFlowError{
		Code:       code,
		Message:    fmt.Sprintf(format, args...),
		Cause:      err,
		StackTrace: captureStack(2),
	}
}

// captureStack captures the current stack trace.
func captureStack(skip int) []Frame {
	var frames []Frame
	pcs := make([]uintptr, 32)
	n := runtime.Callers(skip+1, pcs)
	pcs = pcs[:n]

	cf := runtime.CallersFrames(pcs)
	for {
		frame, more := cf.Next()
		frames = append(frames, Frame{
			Function: frame.Function,
			File:     frame.File,
			Line:     frame.Line,
		})
		if !more || len(frames) >= 10 {
			break
		}
	}
	return frames
}

// FormatStack returns a formatted stack trace.
func (e *LogFlowError) FormatStack() string {
	var sb strings.Builder
	for _, f := range e.StackTrace {
		sb.WriteString(fmt.Sprintf("  at %s\n    %s:%d\n", f.Function, f.File, f.Line))
	}
	return sb.String()
}

// --- Convenience constructors ---

// FileNotFound creates a file not found error.
func FileNotFound(path string) *LogFlowError {
	return New(CodeFileNotFound, "file not found").WithContext("path", path)
}

// InvalidConfig creates a configuration error.
func InvalidConfig(field, reason string) *LogFlowError {
	return New(CodeInvalidConfig, "invalid configuration").
		WithContext("field", field).
		WithContext("reason", reason)
}

// WriteFailed wraps an exporter failure.
func WriteFailed(err error, target string) *LogFlowError {
	return Wrap(err, CodeWriteFailed, "write failed").WithContext("target", target)
}

// ContextCanceled wraps a context error for the interrupted operation.
func ContextCanceled(operation string, cause error) *LogFlowError {
	e := &LogFlowError{
		Code:       CodeContextCanceled,
		Message:    "operation canceled",
		Cause:      cause,
		StackTrace: captureStack(2),
	}
	return e.WithContext("operation", operation)
}

// --- Error checking utilities ---

// IsCode checks if an error has a specific code.
func IsCode(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the error code from an error.
func GetCode(err error) Code {
	var c Coded
	if errors.As(err, &c) {
		return c.ErrorCode()
	}
	return CodeUnknown
}
