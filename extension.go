package typehook

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"

	"github.com/google/uuid"

	"github.com/jward/typehook/internal/checkctx"
	"github.com/jward/typehook/internal/diag"
	"github.com/jward/typehook/internal/dispatch"
	"github.com/jward/typehook/internal/hook"
	"github.com/jward/typehook/internal/registry"
	"github.com/jward/typehook/internal/runtime"
)

// Version is the engine version scripts check with supports_version.
const Version = hook.EngineVersion

// Extension is the extension engine of one compilation unit. The host calls
// Setup once, one method per extension point while it traverses the unit,
// and Finish at the end. An Extension is not safe for concurrent use.
type Extension struct {
	unit       string
	scripts    []string
	scriptsDir string
	scriptsFS  fs.FS
	setups     []func(*Registrar) error
	reporter   diag.Reporter
	debug      bool
	logWriter  io.Writer
	check      *checkctx.Context

	log       *runtime.Logger
	caps      *hook.Capabilities
	registry  *registry.Registry
	dispatch  *dispatch.Dispatcher
	runtime   *runtime.Runtime
	collector *diag.Collector

	setupDone bool
	disabled  bool
}

// Option configures an Extension.
type Option func(*Extension)

// WithScripts adds Risor extension scripts, loaded in order during Setup.
// Relative paths resolve against the scripts directory or filesystem.
func WithScripts(paths ...string) Option {
	return func(e *Extension) {
		e.scripts = append(e.scripts, paths...)
	}
}

// WithScriptsDir sets the directory relative script paths and script
// imports resolve against.
func WithScriptsDir(dir string) Option {
	return func(e *Extension) {
		e.scriptsDir = dir
	}
}

// WithScriptsFS loads scripts from fsys instead of from disk. This enables
// embedding scripts via go:embed.
func WithScriptsFS(fsys fs.FS) Option {
	return func(e *Extension) {
		e.scriptsFS = fsys
	}
}

// WithSetup registers Go handlers. fn runs once during Setup, before any
// script is loaded; an error disables the extension like a failing script.
func WithSetup(fn func(*Registrar) error) Option {
	return func(e *Extension) {
		e.setups = append(e.setups, fn)
	}
}

// WithReporter sends diagnostics to r in addition to the Extension's own
// collector.
func WithReporter(r Reporter) Option {
	return func(e *Extension) {
		e.reporter = r
	}
}

// WithDebug logs every dynamic marking.
func WithDebug(debug bool) Option {
	return func(e *Extension) {
		e.debug = debug
	}
}

// WithLogWriter sets where script and debug log lines go. Defaults to
// os.Stderr.
func WithLogWriter(w io.Writer) Option {
	return func(e *Extension) {
		e.logWriter = w
	}
}

// WithUnitID names the compilation unit in diagnostics. Defaults to a
// random UUID.
func WithUnitID(id string) Option {
	return func(e *Extension) {
		e.unit = id
	}
}

// WithContext shares the host's enclosing-node context with the Extension.
// Without it the Extension creates its own, available from Context.
func WithContext(c *CheckContext) Option {
	return func(e *Extension) {
		e.check = c
	}
}

// New creates an Extension. Nothing is loaded until Setup.
func New(opts ...Option) *Extension {
	e := &Extension{}
	for _, opt := range opts {
		opt(e)
	}
	if e.unit == "" {
		e.unit = uuid.NewString()
	}
	if e.logWriter == nil {
		e.logWriter = os.Stderr
	}
	if e.check == nil {
		e.check = checkctx.New()
	}

	e.log = runtime.NewLogger(e.logWriter, "typehook")
	e.collector = &diag.Collector{}
	e.caps = hook.NewCapabilities(e.unit, e.check, e.log, e.debug)
	e.registry = registry.New()
	e.dispatch = dispatch.New(e.registry, e.caps, diag.Tee{e.collector, e.reporter})

	var rtOpts []runtime.RuntimeOption
	rtOpts = append(rtOpts, runtime.WithLogger(e.log))
	if e.scriptsFS != nil {
		rtOpts = append(rtOpts, runtime.WithRuntimeFS(e.scriptsFS))
	}
	e.runtime = runtime.NewRuntime(e.scriptsDir, rtOpts...)
	return e
}

// Unit returns the compilation unit identifier.
func (e *Extension) Unit() string { return e.unit }

// Capabilities returns the unit's capability surface.
func (e *Extension) Capabilities() *Capabilities { return e.caps }

// Context returns the enclosing-node context the host pushes to.
func (e *Extension) Context() *CheckContext { return e.check }

// Diagnostics returns everything reported for the unit so far.
func (e *Extension) Diagnostics() []Diagnostic { return e.collector.Diagnostics() }

// Disabled reports whether a configuration error switched the extension
// off for this unit.
func (e *Extension) Disabled() bool { return e.disabled }

// Handlers returns the number of handlers registered for p.
func (e *Extension) Handlers(p Point) int { return e.registry.Count(p) }

// Generated returns the synthetic methods created in this unit.
func (e *Extension) Generated() []Descriptor { return e.caps.Factory().Generated() }

// Marked returns the nodes handlers declared dynamic, in marking order.
func (e *Extension) Marked() []Node { return e.caps.Marker().Marked() }

// Setup runs the Go setup callbacks, loads the extension scripts and then
// dispatches the setup point. Any loading failure is returned as a
// *ConfigurationError, reported once, and disables the extension for the
// unit. Calling Setup again is a no-op.
func (e *Extension) Setup(ctx context.Context) error {
	if e.setupDone {
		return nil
	}
	e.setupDone = true

	for i, fn := range e.setups {
		label := fmt.Sprintf("setup#%d", i+1)
		if err := e.runSetup(fn, label); err != nil {
			return e.disable(&diag.ConfigurationError{Source: label, Err: err})
		}
	}
	for _, path := range e.scripts {
		if err := e.runtime.Load(ctx, path, e.registry, e.caps); err != nil {
			var cfgErr *diag.ConfigurationError
			if !errors.As(err, &cfgErr) {
				cfgErr = &diag.ConfigurationError{Source: path, Err: err}
			}
			return e.disable(cfgErr)
		}
	}

	e.dispatch.Void(ctx, hook.Setup, nil)
	return nil
}

func (e *Extension) runSetup(fn func(*Registrar) error, label string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(&Registrar{Capabilities: e.caps, registry: e.registry, label: label})
}

func (e *Extension) disable(err *diag.ConfigurationError) error {
	e.disabled = true
	e.registry.Reset()
	e.report(diag.FromError(e.unit, err))
	return fmt.Errorf("typehook: setup: %w", err)
}

func (e *Extension) report(d diag.Diagnostic) {
	e.collector.Report(d)
	if e.reporter != nil {
		e.reporter.Report(d)
	}
}

// Finish dispatches the finish point and warns about scopes handlers left
// open.
func (e *Extension) Finish(ctx context.Context) {
	if e.disabled {
		return
	}
	e.dispatch.Void(ctx, hook.Finish, nil)
	if depth := e.caps.Scopes().Depth(); depth > 0 {
		e.report(diag.Diagnostic{
			Unit:     e.unit,
			Severity: diag.SeverityWarning,
			Kind:     diag.KindHandler,
			Point:    hook.Finish.String(),
			Message:  fmt.Sprintf("%d handler scope(s) still open at end of unit", depth),
		})
	}
}

// OnMethodSelection notifies handlers that expr resolved to target.
func (e *Extension) OnMethodSelection(ctx context.Context, expr Node, target MethodRef) {
	if e.disabled {
		return
	}
	e.dispatch.Void(ctx, hook.OnMethodSelection, &hook.Event{Node: expr, Target: target})
}

// BeforeMethodCall reports whether a handler took over checking call.
func (e *Extension) BeforeMethodCall(ctx context.Context, call *MethodCall) bool {
	return e.handled(ctx, hook.BeforeMethodCall, &hook.Event{Node: call})
}

// AfterMethodCall notifies handlers that call was checked.
func (e *Extension) AfterMethodCall(ctx context.Context, call *MethodCall) {
	if e.disabled {
		return
	}
	e.dispatch.Void(ctx, hook.AfterMethodCall, &hook.Event{Node: call})
}

// UnresolvedVariable reports whether a handler resolved v.
func (e *Extension) UnresolvedVariable(ctx context.Context, v *VariableExpr) bool {
	return e.handled(ctx, hook.UnresolvedVariable, &hook.Event{Node: v, Name: v.Name()})
}

// UnresolvedProperty reports whether a handler resolved the property p.
func (e *Extension) UnresolvedProperty(ctx context.Context, p *PropertyExpr) bool {
	return e.handled(ctx, hook.UnresolvedProperty, &hook.Event{Node: p, Name: p.Name(), Receiver: p.ObjectType})
}

// UnresolvedAttribute reports whether a handler resolved the attribute p.
func (e *Extension) UnresolvedAttribute(ctx context.Context, p *PropertyExpr) bool {
	return e.handled(ctx, hook.UnresolvedAttribute, &hook.Event{Node: p, Name: p.Name(), Receiver: p.ObjectType})
}

// MissingMethod collects the methods handlers contribute for a call the
// host could not resolve.
func (e *Extension) MissingMethod(ctx context.Context, receiver *Type, name string, argTypes []*Type, call *MethodCall) ([]MethodRef, error) {
	if e.disabled {
		return nil, nil
	}
	ev := &hook.Event{Receiver: receiver, Name: name, ArgTypes: argTypes}
	if call != nil {
		ev.Node = call
	}
	return e.dispatch.Accumulate(ctx, hook.MissingMethod, ev)
}

// AmbiguousMethods lets handlers narrow candidates that the host could not
// choose between.
func (e *Extension) AmbiguousMethods(ctx context.Context, candidates []MethodRef, origin Node) ([]MethodRef, error) {
	if e.disabled {
		return candidates, nil
	}
	return e.dispatch.Refine(ctx, hook.AmbiguousMethods, candidates, &hook.Event{Node: origin})
}

// BeforeVisitMethod reports whether a handler asked the host to skip m.
func (e *Extension) BeforeVisitMethod(ctx context.Context, m *MethodNode) bool {
	return e.handled(ctx, hook.BeforeVisitMethod, &hook.Event{Node: m, Name: m.Name})
}

// AfterVisitMethod notifies handlers that m was checked.
func (e *Extension) AfterVisitMethod(ctx context.Context, m *MethodNode) {
	if e.disabled {
		return
	}
	e.dispatch.Void(ctx, hook.AfterVisitMethod, &hook.Event{Node: m, Name: m.Name})
}

// BeforeVisitClass reports whether a handler asked the host to skip c.
func (e *Extension) BeforeVisitClass(ctx context.Context, c *ClassNode) bool {
	return e.handled(ctx, hook.BeforeVisitClass, &hook.Event{Node: c, Name: c.Name})
}

// AfterVisitClass notifies handlers that c was checked.
func (e *Extension) AfterVisitClass(ctx context.Context, c *ClassNode) {
	if e.disabled {
		return
	}
	e.dispatch.Void(ctx, hook.AfterVisitClass, &hook.Event{Node: c, Name: c.Name})
}

// IncompatibleAssignment reports whether a handler accepted assigning rhs
// to lhs.
func (e *Extension) IncompatibleAssignment(ctx context.Context, lhs, rhs *Type, expr Node) bool {
	return e.handled(ctx, hook.IncompatibleAssignment, &hook.Event{LHS: lhs, RHS: rhs, Node: expr})
}

// IncompatibleReturnType reports whether a handler accepted returning
// inferred from the enclosing method.
func (e *Extension) IncompatibleReturnType(ctx context.Context, ret *ReturnStmt, inferred *Type) bool {
	return e.handled(ctx, hook.IncompatibleReturnType, &hook.Event{Node: ret, Inferred: inferred})
}

func (e *Extension) handled(ctx context.Context, p hook.Point, ev *hook.Event) bool {
	if e.disabled {
		return false
	}
	return e.dispatch.Handled(ctx, p, ev)
}

// Registrar is what WithSetup callbacks register Go handlers through. It
// embeds the unit's capabilities so setup code can create methods or push
// scopes up front.
type Registrar struct {
	*hook.Capabilities
	registry *registry.Registry
	label    string
}

// On registers h for p.
func (r *Registrar) On(p Point, h Handler) error {
	if _, err := r.registry.Register(p, r.label, h); err != nil {
		return fmt.Errorf("typehook: register: %w", err)
	}
	return nil
}

// Register registers h for the point called name. Unlike scripts, Go setup
// code reaches capabilities through the Registrar itself, so an unknown
// name is an error.
func (r *Registrar) Register(name string, h Handler) error {
	_, ok, err := r.registry.RegisterName(name, r.label, h)
	if err != nil {
		return fmt.Errorf("typehook: register %s: %w", name, err)
	}
	if !ok {
		return fmt.Errorf("typehook: register: unknown extension point %q", name)
	}
	return nil
}
