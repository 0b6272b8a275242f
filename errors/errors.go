package errors

import (
	"errors"
	"fmt"
)

// Category classifies error types for targeted handling and monitoring.
type Category string

const (
	CategoryInvalidOption       Category = "invalid_option"
	CategoryUnsupportedFileType Category = "unsupported_file_type"
	CategoryMissingTemplate     Category = "missing_template"
	CategoryExternalTool        Category = "external_tool"
	CategoryMalformedIdentify   Category = "malformed_identify"
	CategoryTimeout             Category = "timeout"
	CategoryInput               Category = "input"
	CategoryStorage             Category = "storage"
	CategoryConfig              Category = "config"
	CategoryPipeline            Category = "pipeline"
)

// ProcessingError is the structured error type used throughout the module.
type ProcessingError struct {
	Category Category
	Op       string // operation name
	Err      error
}

func (e *ProcessingError) Error() string {
	return fmt.Sprintf("[%s] %s: %v", e.Category, e.Op, e.Err)
}

func (e *ProcessingError) Unwrap() error { return e.Err }

// New creates a ProcessingError.
func New(category Category, op string, err error) *ProcessingError {
	return &ProcessingError{Category: category, Op: op, Err: err}
}

// Wrap wraps an existing error with context.
func Wrap(category Category, op string, err error) error {
	if err == nil {
		return nil
	}
	return New(category, op, err)
}

// IsCategory reports whether err belongs to the given category.
func IsCategory(err error, cat Category) bool {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category == cat
	}
	return false
}

// CategoryOf returns the category of err, or "" for foreign errors.
func CategoryOf(err error) Category {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Category
	}
	return ""
}

// ToolError describes a child process that exited unsuccessfully.
type ToolError struct {
	ExitCode int
	Command  string
	Output   string // best-effort stdout/stderr snippet
}

func (e *ToolError) Error() string {
	msg := fmt.Sprintf("command failed with non-zero exit %d: %q", e.ExitCode, e.Command)
	if e.Output != "" {
		msg += ": " + e.Output
	}
	return msg
}

// ExitCode extracts the child exit status carried by err.
func ExitCode(err error) (int, bool) {
	var te *ToolError
	if errors.As(err, &te) {
		return te.ExitCode, true
	}
	return 0, false
}

// Sentinel errors for common failure modes.
var (
	ErrInvalidOption     = errors.New("invalid option")
	ErrUnknownOption     = errors.New("unknown option")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	ErrNotAnImage        = errors.New("invalid file type")
	ErrMissingTemplate   = errors.New("no template configured for format")
	ErrMissingDimensions = errors.New("identify output lacks width/height")
	ErrSourceTooLarge    = errors.New("source exceeds maximum image size")
	ErrEmptyInput        = errors.New("empty input")
	ErrJobNotFound       = errors.New("job file not found")
	ErrWorkerPoolFull    = errors.New("worker pool queue full")
)

// Is and As re-export the standard helpers so callers need a single import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
