// Package diag defines the error taxonomy of the extension engine and the
// diagnostics it reports against the host.
package diag

import (
	"errors"
	"fmt"
	"sync"
)

// ErrEmptyStack is wrapped by every StateError.
var ErrEmptyStack = errors.New("pop from empty stack")

// StateError reports an unbalanced pop on a scope or delegation stack.
type StateError struct {
	Stack string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stack, ErrEmptyStack)
}

func (e *StateError) Unwrap() error { return ErrEmptyStack }

// ConfigurationError reports an extension script or setup callback that
// failed to load or evaluate.
type ConfigurationError struct {
	Source string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("extension %s could not be loaded: %v", e.Source, e.Err)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ResultShapeError reports a handler that broke the return contract of an
// accumulating or refining point.
type ResultShapeError struct {
	Point   string
	Handler string
	Value   any
}

func (e *ResultShapeError) Error() string {
	return fmt.Sprintf("extension handler %s for %s returned unexpected method list: %v (%T)",
		e.Handler, e.Point, e.Value, e.Value)
}

// HandlerError wraps a failure raised while running one handler.
type HandlerError struct {
	Point   string
	Handler string
	Err     error
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("extension handler %s for %s failed: %v", e.Handler, e.Point, e.Err)
}

func (e *HandlerError) Unwrap() error { return e.Err }

// Severity of a diagnostic.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeverityFatal   Severity = "fatal"
)

// Kind classifies a diagnostic.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindResultShape   Kind = "result_shape"
	KindHandler       Kind = "handler"
	KindType          Kind = "type"
)

// Diagnostic is a message recorded against the checked unit.
type Diagnostic struct {
	Unit     string   `json:"unit"`
	Severity Severity `json:"severity"`
	Kind     Kind     `json:"kind"`
	Point    string   `json:"point,omitempty"`
	Message  string   `json:"message"`
	Line     int      `json:"line,omitempty"`
	Col      int      `json:"col,omitempty"`
}

// Reporter receives diagnostics.
type Reporter interface {
	Report(d Diagnostic)
}

// FromError classifies err into a diagnostic.
func FromError(unit string, err error) Diagnostic {
	d := Diagnostic{Unit: unit, Severity: SeverityError, Kind: KindHandler, Message: err.Error()}
	var (
		cfgErr   *ConfigurationError
		shapeErr *ResultShapeError
		hErr     *HandlerError
	)
	switch {
	case errors.As(err, &cfgErr):
		d.Severity = SeverityFatal
		d.Kind = KindConfiguration
	case errors.As(err, &shapeErr):
		d.Kind = KindResultShape
		d.Point = shapeErr.Point
	case errors.As(err, &hErr):
		d.Point = hErr.Point
	}
	return d
}

// Collector is an in-memory Reporter.
type Collector struct {
	mu    sync.Mutex
	diags []Diagnostic
}

// Report appends d.
func (c *Collector) Report(d Diagnostic) {
	c.mu.Lock()
	c.diags = append(c.diags, d)
	c.mu.Unlock()
}

// Diagnostics returns a copy of everything reported so far.
func (c *Collector) Diagnostics() []Diagnostic {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Diagnostic, len(c.diags))
	copy(out, c.diags)
	return out
}

// HasErrors reports whether any error or fatal diagnostic was collected.
func (c *Collector) HasErrors() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, d := range c.diags {
		if d.Severity == SeverityError || d.Severity == SeverityFatal {
			return true
		}
	}
	return false
}

// Tee fans diagnostics out to several reporters.
type Tee []Reporter

// Report forwards d to every non-nil reporter.
func (t Tee) Report(d Diagnostic) {
	for _, r := range t {
		if r != nil {
			r.Report(d)
		}
	}
}
