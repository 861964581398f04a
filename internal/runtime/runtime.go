package runtime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/risor-io/risor"
	"github.com/risor-io/risor/compiler"
	"github.com/risor-io/risor/importer"
	"github.com/risor-io/risor/object"
	"github.com/risor-io/risor/parser"
	"github.com/risor-io/risor/vm"

	"github.com/jward/typehook/internal/diag"
	"github.com/jward/typehook/internal/hook"
	"github.com/jward/typehook/internal/registry"
)

// Runtime loads Risor extension scripts for one unit. Each script gets its
// own VM, kept alive after evaluation so its handler functions can be
// called at dispatch time.
type Runtime struct {
	scriptsDir string
	fsys       fs.FS
	log        *Logger
	scripts    []*script
}

// script is one evaluated extension script.
type script struct {
	label   string
	machine *vm.VirtualMachine

	// running holds the contexts of the calls executing in machine,
	// innermost last. machine.Call fails while it is non-empty.
	running []context.Context
}

func (s *script) enter(ctx context.Context) { s.running = append(s.running, ctx) }

func (s *script) leave() { s.running = s.running[:len(s.running)-1] }

// callback runs fn from Go code that may itself be running inside machine.
// A busy VM is re-entered through callFn, the VM's own call function, under
// the innermost running call's context.
func (s *script) callback(callFn object.CallFunc, fn *object.Function, args []object.Object) (object.Object, error) {
	if n := len(s.running); n > 0 {
		if callFn == nil {
			return nil, errors.New("script is running and no call function is available")
		}
		ctx := s.running[n-1]
		return callFn(object.WithCallFunc(ctx, callFn), fn, args)
	}
	if s.machine == nil {
		return nil, errors.New("script not evaluated")
	}
	return s.machine.Call(context.Background(), fn, args)
}

// RuntimeOption configures a Runtime.
type RuntimeOption func(*Runtime)

// WithRuntimeFS configures the Runtime to load scripts from an fs.FS
// instead of from disk. Also configures the Risor importer to use
// FSImporter for import statement resolution.
func WithRuntimeFS(fsys fs.FS) RuntimeOption {
	return func(r *Runtime) {
		r.fsys = fsys
	}
}

// WithLogger sets the logger exposed to scripts as the log global.
func WithLogger(l *Logger) RuntimeOption {
	return func(r *Runtime) {
		r.log = l
	}
}

// NewRuntime creates a Runtime that resolves relative script paths against
// scriptsDir.
func NewRuntime(scriptsDir string, opts ...RuntimeOption) *Runtime {
	r := &Runtime{scriptsDir: scriptsDir}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = NewLogger(os.Stderr, "typehook")
	}
	return r
}

// Logger returns the logger scripts write to.
func (r *Runtime) Logger() *Logger { return r.log }

// Load reads the script at path and evaluates it, registering its handlers
// into reg. Any failure is a *diag.ConfigurationError.
func (r *Runtime) Load(ctx context.Context, path string, reg *registry.Registry, caps *hook.Capabilities) error {
	src, err := r.LoadScript(path)
	if err != nil {
		return &diag.ConfigurationError{Source: path, Err: err}
	}
	return r.LoadSource(ctx, path, src, reg, caps)
}

// LoadSource evaluates Risor source directly. label names the script in
// diagnostics and handler names.
func (r *Runtime) LoadSource(ctx context.Context, label, source string, reg *registry.Registry, caps *hook.Capabilities) error {
	s := &script{label: label}
	globals := r.buildGlobals(s, reg, caps)

	var opts []risor.Option
	for name, val := range globals {
		opts = append(opts, risor.WithGlobal(name, val))
	}
	// Wire importer so Risor import statements resolve correctly.
	if imp := r.buildImporter(globals); imp != nil {
		opts = append(opts, risor.WithImporter(imp))
	}
	cfg := risor.NewConfig(opts...)

	program, err := parser.Parse(ctx, source)
	if err != nil {
		return &diag.ConfigurationError{Source: label, Err: fmt.Errorf("runtime: parse: %w", err)}
	}
	code, err := compiler.Compile(program, cfg.CompilerOpts()...)
	if err != nil {
		return &diag.ConfigurationError{Source: label, Err: fmt.Errorf("runtime: compile: %w", err)}
	}
	s.machine = vm.New(code, cfg.VMOpts()...)
	s.enter(ctx)
	err = s.machine.Run(ctx)
	s.leave()
	if err != nil {
		return &diag.ConfigurationError{Source: label, Err: fmt.Errorf("runtime: script %s: %w", label, err)}
	}
	r.scripts = append(r.scripts, s)
	return nil
}

// Scripts returns the labels of the scripts loaded so far.
func (r *Runtime) Scripts() []string {
	out := make([]string, len(r.scripts))
	for i, s := range r.scripts {
		out[i] = s.label
	}
	return out
}

// buildImporter returns a Risor importer configured for the Runtime's script source.
// Returns nil if neither fs.FS nor scriptsDir is configured.
func (r *Runtime) buildImporter(globals map[string]any) importer.Importer {
	globalNames := make([]string, 0, len(globals))
	for name := range globals {
		globalNames = append(globalNames, name)
	}

	if r.fsys != nil {
		return importer.NewFSImporter(importer.FSImporterOptions{
			GlobalNames: globalNames,
			SourceFS:    r.fsys,
			Extensions:  []string{".risor"},
		})
	}
	if r.scriptsDir != "" {
		return importer.NewLocalImporter(importer.LocalImporterOptions{
			GlobalNames: globalNames,
			SourceDir:   r.scriptsDir,
			Extensions:  []string{".risor"},
		})
	}
	return nil
}

// LoadScript reads a .risor file and returns its source code.
// When an fs.FS is configured, uses fs.ReadFile on it. Otherwise, uses
// os.ReadFile with scriptsDir as the base directory.
func (r *Runtime) LoadScript(path string) (string, error) {
	if r.fsys != nil {
		fsPath := strings.TrimPrefix(filepath.ToSlash(path), "/")
		data, err := fs.ReadFile(r.fsys, fsPath)
		if err != nil {
			return "", fmt.Errorf("runtime: loading script %s from fs: %w", fsPath, err)
		}
		return string(data), nil
	}

	fullPath := path
	if !filepath.IsAbs(path) && r.scriptsDir != "" {
		fullPath = filepath.Join(r.scriptsDir, path)
	}

	data, err := os.ReadFile(fullPath)
	if err != nil {
		return "", fmt.Errorf("runtime: loading script %s: %w", fullPath, err)
	}
	return string(data), nil
}

// buildGlobals constructs the globals of one script: a registration builtin
// per extension point (and alias), register/invoke, the capability surface
// and the log object.
func (r *Runtime) buildGlobals(s *script, reg *registry.Registry, caps *hook.Capabilities) map[string]any {
	capsSurface := capabilityBuiltins(caps, s)

	globals := map[string]any{
		"log":      mustProxy(r.log),
		"register": makeRegisterFn(s, reg, capsSurface),
		"invoke":   makeInvokeFn(capsSurface),
	}
	for _, p := range hook.Points() {
		globals[p.String()] = makePointFn(p.String(), p, s, reg)
	}
	for alias, p := range hook.Aliases() {
		globals[alias] = makePointFn(alias, p, s, reg)
	}
	for name, fn := range capsSurface {
		globals[name] = fn
	}
	return globals
}

// makePointFn creates the registration builtin for one point name.
//
// <point>(fn) → nil
func makePointFn(name string, p hook.Point, s *script, reg *registry.Registry) *object.Builtin {
	return object.NewBuiltin(name, func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 1 {
			return object.NewArgsError(name, 1, len(args))
		}
		h, err := s.handler(p, args[0])
		if err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		if _, err := reg.Register(p, s.label, h); err != nil {
			return object.Errorf("%s: %v", name, err)
		}
		return object.Nil
	})
}

// makeRegisterFn creates "register", the explicit registration form. A name
// that is not an extension point is forwarded to the capability of the same
// name instead of being rejected.
//
// register(point, fn) → nil
func makeRegisterFn(s *script, reg *registry.Registry, surface map[string]*object.Builtin) *object.Builtin {
	return object.NewBuiltin("register", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) != 2 {
			return object.NewArgsError("register", 2, len(args))
		}
		nameStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("register: point must be a string, got %s", args[0].Type())
		}
		name := nameStr.Value()
		p, isPoint := hook.ParsePoint(name)
		if !isPoint {
			fn, found := surface[name]
			if !found {
				return object.Errorf("register: %q is neither an extension point nor a capability", name)
			}
			return fn.Call(ctx, args[1:]...)
		}
		h, err := s.handler(p, args[1])
		if err != nil {
			return object.Errorf("register: %v", err)
		}
		if _, err := reg.Register(p, s.label, h); err != nil {
			return object.Errorf("register: %v", err)
		}
		return object.Nil
	})
}

// makeInvokeFn creates "invoke", which calls a capability by name.
//
// invoke(name, args...) → any
func makeInvokeFn(surface map[string]*object.Builtin) *object.Builtin {
	return object.NewBuiltin("invoke", func(ctx context.Context, args ...object.Object) object.Object {
		if len(args) < 1 {
			return object.NewArgsError("invoke", 1, len(args))
		}
		nameStr, ok := args[0].(*object.String)
		if !ok {
			return object.Errorf("invoke: name must be a string, got %s", args[0].Type())
		}
		fn, found := surface[nameStr.Value()]
		if !found {
			return object.Errorf("invoke: unknown capability %q", nameStr.Value())
		}
		return fn.Call(ctx, args[1:]...)
	})
}

func mustProxy(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		panic(fmt.Sprintf("runtime: proxy error: %v", err))
	}
	return p
}
