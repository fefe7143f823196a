package coclust

// options.go implements the functional-options pattern used to configure an
// Engine, following the teacher's With* Opts convention (see pipeline.go's
// Opts func(c Pipeline)).

import "io"

// EngineOption sets an option on an Engine.
type EngineOption func(*Engine)

// WithMemoryBudget sets the memory budget, in bytes, available to a single
// engine invocation. Zero means "use the default stream-scope cap".
func WithMemoryBudget(bytes int64) EngineOption {
	return func(e *Engine) {
		e.memoryBudget = bytes
	}
}

// WithStreamScopeCap overrides the default 100 MiB per-invocation cap
// (spec.md §5) used when WithMemoryBudget is not set.
func WithStreamScopeCap(bytes int64) EngineOption {
	return func(e *Engine) {
		e.streamScopeCap = bytes
	}
}

// WithLogWriter routes warnings and errors to w in addition to the default
// standard-error channel (spec.md §7).
func WithLogWriter(w io.Writer) EngineOption {
	return func(e *Engine) {
		e.logWriter = w
	}
}

// WithFieldSeparator sets the field separator used when reading delimited
// files (default TAB, spec.md §6).
func WithFieldSeparator(sep byte) EngineOption {
	return func(e *Engine) {
		e.fieldSeparator = sep
	}
}

// WithCancellationToken installs a caller-owned CancellationToken the
// optimizer polls between moves (spec.md §5, §9).
func WithCancellationToken(tok *CancellationToken) EngineOption {
	return func(e *Engine) {
		e.cancel = tok
	}
}

// WithWarningThreshold caps the number of warnings logged per category
// before the error-flow-control gate starts suppressing repeats (spec.md §7).
func WithWarningThreshold(n int) EngineOption {
	return func(e *Engine) {
		e.warnThreshold = n
	}
}

// WithTimeBudget sets the wall-clock budget, in seconds, the optimizer is
// allowed to run before it must return the best grid found so far.
func WithTimeBudget(seconds float64) EngineOption {
	return func(e *Engine) {
		e.timeBudgetSeconds = seconds
	}
}
