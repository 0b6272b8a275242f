package core

import (
	"context"
	"time"
)

// Runner executes one child process and waits for it.
// Implementations live in adapters/exec/ and adapters/fake/.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*RunResult, error)
}

// Identifier reports the pixel dimensions and profile metadata of an image.
// Implementations live in adapters/cli/, adapters/probe/ and adapters/vips/.
type Identifier interface {
	Identify(ctx context.Context, path string) (*Identity, error)
}

// CropStrategy places a crop rectangle of aspect ratio `ratio` inside src.
// fit names the source axis that is kept in full.
type CropStrategy interface {
	Name() string
	Crop(src Dimensions, ratio float64, fit Fit) CropRectangle
}

// Resolver merges requested options over configured defaults and
// normalises every value against its OptionSpec.
type Resolver interface {
	Resolve(requested, defaults map[string]any) (*Options, error)
}

// Compiler turns resolved options into an argument vector.
type Compiler interface {
	Compile(ctx context.Context, req CompileRequest) (Command, error)
}

// Step contributes an ordered group of arguments to a command.
// Empty tokens are dropped by the compiler.
type Step interface {
	Name() string
	Args(ctx context.Context, req CompileRequest) ([]string, error)
}

// Store persists job files and answers existence checks for destinations.
// Implementations live in adapters/storage/.
type Store interface {
	Exists(ctx context.Context, path string) (bool, error)
	Remove(ctx context.Context, path string) error
	WriteJob(ctx context.Context, job JobFile) error
	ReadJob(ctx context.Context, destination string) (*JobFile, error)
	RemoveJob(ctx context.Context, destination string) error
}

// MetricsCollector receives performance observations from the processor.
type MetricsCollector interface {
	RecordProcessingTime(op string, d time.Duration)
	RecordThroughput(bytes int64)
	RecordSkip(op string)
	RecordError(op string, category string)
}

// Logger is a minimal structured logging interface.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
}

// Hook is an optional observer invoked around every child process.
type Hook interface {
	BeforeRun(ctx context.Context, op string, cmd Command)
	AfterRun(ctx context.Context, op string, cmd Command, res *RunResult, d time.Duration, err error)
}

// Registry holds the OptionSpecs in their canonical order.
type Registry interface {
	Register(spec OptionSpec)
	Lookup(name string) (OptionSpec, bool)
	Specs() []OptionSpec
	Group(g Group) []OptionSpec
}
