package coclust

// engine.go collects the process-wide state the original C++ implementation
// kept as singletons (log file name, memory cap, ...) into one Engine value
// constructed per invocation, per spec.md §9's "Global mutable state" design
// note. Everything the optimizer, cost model and hierarchy builder need that
// isn't part of the data itself hangs off an *Engine.

import (
	"fmt"
	"io"
	"log"
	"os"
	"sync"
	"sync/atomic"
)

const defaultStreamScopeCap = 100 << 20 // 100 MiB, spec.md §5

// Engine is the explicit context for one coclustering invocation: it carries
// the memory budget, logging destination, cancellation token and tunables
// that the original implementation kept as global state.
type Engine struct {
	memoryBudget      int64
	streamScopeCap    int64
	fieldSeparator    byte
	logWriter         io.Writer
	warnThreshold     int
	timeBudgetSeconds float64
	cancel            *CancellationToken

	logger *log.Logger
	gate   *warningGate
}

// NewEngine builds an Engine with defaults matching spec.md §5/§6: a 100 MiB
// stream-scope cap, a TAB field separator, warnings routed to stderr only,
// and no time budget (the optimizer runs to the granularity ceiling).
func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		streamScopeCap: defaultStreamScopeCap,
		fieldSeparator: '\t',
		warnThreshold:  20,
	}

	for _, o := range opts {
		o(e)
	}

	if e.cancel == nil {
		e.cancel = NewCancellationToken()
	}

	writers := []io.Writer{os.Stderr}
	if e.logWriter != nil {
		writers = append(writers, e.logWriter)
	}

	e.logger = log.New(io.MultiWriter(writers...), "", log.LstdFlags)
	e.gate = newWarningGate(e.warnThreshold)

	return e
}

// EffectiveMemoryBudget returns the memory budget to enforce: the explicit
// budget if set, else the stream-scope cap.
func (e *Engine) EffectiveMemoryBudget() int64 {
	if e.memoryBudget > 0 {
		return e.memoryBudget
	}

	return e.streamScopeCap
}

// FieldSeparator returns the configured field separator.
func (e *Engine) FieldSeparator() byte {
	return e.fieldSeparator
}

// Token returns the engine's cancellation token.
func (e *Engine) Token() *CancellationToken {
	return e.cancel
}

// Warnf logs a warning in category, subject to the error-flow-control gate:
// once a category has logged warnThreshold messages, further ones are
// counted but not printed (spec.md §7).
func (e *Engine) Warnf(category, format string, args ...any) {
	n, suppressed := e.gate.record(category)
	if suppressed {
		return
	}

	msg := fmt.Sprintf(format, args...)
	if n == e.warnThreshold {
		e.logger.Printf("WARN [%s] %s (further warnings in this category are suppressed)", category, msg)
		return
	}

	e.logger.Printf("WARN [%s] %s", category, msg)
}

// Errorf logs an error. Unlike warnings, errors are never suppressed.
func (e *Engine) Errorf(format string, args ...any) {
	e.logger.Printf("ERROR %s", fmt.Sprintf(format, args...))
}

// warningGate implements spec.md §7's "error-flow-control gate [that]
// suppresses repeated warnings beyond a threshold per category".
type warningGate struct {
	threshold int
	mu        sync.Mutex
	counts    map[string]int
}

func newWarningGate(threshold int) *warningGate {
	return &warningGate{threshold: threshold, counts: make(map[string]int)}
}

// record increments the count for category and reports whether this
// particular message should be suppressed.
func (g *warningGate) record(category string) (count int, suppressed bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.counts[category]++
	n := g.counts[category]

	return n, n > g.threshold
}

// CancellationToken is a cooperative, caller-owned interruption flag. The
// optimizer polls Requested() between moves; the collaborator calls Cancel()
// from whatever goroutine/signal handler observes the interruption request.
type CancellationToken struct {
	requested atomic.Bool
}

// NewCancellationToken returns a token that has not been cancelled.
func NewCancellationToken() *CancellationToken {
	return &CancellationToken{}
}

// Cancel marks the token as cancelled. Safe to call more than once.
func (t *CancellationToken) Cancel() {
	t.requested.Store(true)
}

// Requested reports whether cancellation has been requested.
func (t *CancellationToken) Requested() bool {
	if t == nil {
		return false
	}

	return t.requested.Load()
}
