package executor

import "time"

// Defaults for Options.
const (
	DefaultMinSplashDuration  = 1 * time.Second
	DefaultGlobalTimeout      = 60 * time.Second
	DefaultMaxConcurrentTasks = 3
	DefaultSlowTaskReportSize = 5
)

// Options configures an Initializer.
type Options struct {
	// MinSplashDuration is the minimum wall-clock duration of a run. If the
	// stages finish faster, Run sleeps the remainder so a splash screen does
	// not flash.
	MinSplashDuration time.Duration

	// GlobalTimeout bounds a single task attempt when the descriptor carries
	// no explicit timeout.
	GlobalTimeout time.Duration

	// StopOnCriticalError aborts the pipeline when a critical-priority task
	// fails irrecoverably. When false the failure is logged and later stages
	// still run.
	StopOnCriticalError bool

	// MaxConcurrentTasks is the concurrency batch size within a stage.
	MaxConcurrentTasks int

	// UseStore disables the observable state store when false, for running
	// background task batches that nothing watches.
	UseStore bool

	// EnableDebugLogs turns on debug-level logging.
	EnableDebugLogs bool

	// SlowTaskReportSize is the number of slowest tasks in the timing report.
	SlowTaskReportSize int
}

// DefaultOptions returns the documented defaults.
func DefaultOptions() Options {
	return Options{
		MinSplashDuration:   DefaultMinSplashDuration,
		GlobalTimeout:       DefaultGlobalTimeout,
		StopOnCriticalError: true,
		MaxConcurrentTasks:  DefaultMaxConcurrentTasks,
		UseStore:            true,
		SlowTaskReportSize:  DefaultSlowTaskReportSize,
	}
}

// normalized fills zero values with defaults.
func (o Options) normalized() Options {
	if o.MinSplashDuration < 0 {
		o.MinSplashDuration = 0
	}
	if o.GlobalTimeout <= 0 {
		o.GlobalTimeout = DefaultGlobalTimeout
	}
	if o.MaxConcurrentTasks < 1 {
		o.MaxConcurrentTasks = DefaultMaxConcurrentTasks
	}
	if o.SlowTaskReportSize < 0 {
		o.SlowTaskReportSize = 0
	}
	return o
}
