// Package executor collects the findings of many independent check routines
// and reports them together.
package executor

import (
	"errors"
	"fmt"
	"io"
	"os"
	"reflect"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// DebugEnv enables the timing report printed by Finalize.
const DebugEnv = "REPOPOLICY_DEBUG"

// Separator is placed between merged messages.
const Separator = "\n--------------------\n"

// PrecommitError signals that a check modified a file or found a violation
// that needs the user's attention.
type PrecommitError struct {
	Message string
}

func (e *PrecommitError) Error() string { return e.Message }

// NewPrecommitError wraps msg in a *PrecommitError.
func NewPrecommitError(msg string) error {
	return &PrecommitError{Message: msg}
}

// Errorf formats a *PrecommitError.
func Errorf(format string, args ...any) error {
	return &PrecommitError{Message: fmt.Sprintf(format, args...)}
}

// IsPrecommitError reports whether err carries a *PrecommitError.
func IsPrecommitError(err error) bool {
	var pe *PrecommitError
	return errors.As(err, &pe)
}

// Option configures an Executor.
type Option func(*Executor)

// WithRaiseException controls whether Finalize returns the merged messages
// as an error (true, the default) or prints them.
func WithRaiseException(raise bool) Option {
	return func(e *Executor) { e.raise = raise }
}

// WithOutput sets where Finalize prints when not raising. Defaults to stdout.
func WithOutput(w io.Writer) Option {
	return func(e *Executor) { e.out = w }
}

type timing struct {
	function string
	elapsed  time.Duration
}

// Executor runs check functions, records the PrecommitErrors they return and
// passes every other error back to the caller.
type Executor struct {
	mu       sync.Mutex
	raise    bool
	out      io.Writer
	messages []string
	timings  []timing
}

// New returns an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{raise: true, out: os.Stdout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Do runs fn. A *PrecommitError is recorded and Do returns nil; any other
// error is returned unchanged.
func (e *Executor) Do(fn func() error) error {
	function := functionName(fn)
	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	e.mu.Lock()
	defer e.mu.Unlock()
	e.timings = append(e.timings, timing{function: function, elapsed: elapsed})
	if err == nil {
		return nil
	}
	var pe *PrecommitError
	if errors.As(err, &pe) {
		e.messages = append(e.messages, pe.Message)
		return nil
	}
	return err
}

// ErrorMessages returns a copy of the recorded messages.
func (e *Executor) ErrorMessages() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.messages...)
}

// MergeMessages joins the recorded messages, each trimmed, with Separator.
func (e *Executor) MergeMessages() string {
	msgs := e.ErrorMessages()
	for i, m := range msgs {
		msgs[i] = strings.TrimSpace(m)
	}
	return strings.Join(msgs, Separator)
}

// Finalize reports the recorded messages. With raise enabled it returns a
// single *PrecommitError; otherwise the merged text is printed and nil is
// returned.
func (e *Executor) Finalize() error {
	var merged string
	if len(e.ErrorMessages()) > 0 {
		merged = e.MergeMessages()
		if !e.raise {
			_, _ = fmt.Fprintln(e.out, merged)
		}
	}
	if _, ok := os.LookupEnv(DebugEnv); ok {
		e.PrintExecutionTimes(e.out)
	}
	if merged == "" || !e.raise {
		return nil
	}
	return &PrecommitError{Message: merged}
}

// PrintExecutionTimes writes the recorded durations, slowest first, when
// they add up to more than 80ms. Entries below 30ms are omitted.
func (e *Executor) PrintExecutionTimes(w io.Writer) {
	e.mu.Lock()
	timings := append([]timing(nil), e.timings...)
	e.mu.Unlock()

	var total time.Duration
	for _, t := range timings {
		total += t.elapsed
	}
	if total.Seconds() <= 0.08 {
		return
	}
	_, _ = fmt.Fprintf(w, "\nTotal sub-hook time: %.2f s\n", total.Seconds())
	sort.SliceStable(timings, func(i, j int) bool { return timings[i].elapsed > timings[j].elapsed })
	for _, t := range timings {
		if t.elapsed.Seconds() < 0.03 {
			break
		}
		_, _ = fmt.Fprintf(w, "%7.2f s  %s\n", t.elapsed.Seconds(), t.function)
	}
}

// functionName returns the package-qualified name of fn, such as
// "checks.Ruff.func3" for a closure.
func functionName(fn func() error) string {
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "unknown"
	}
	name := f.Name()
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	return name
}
