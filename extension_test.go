package typehook

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/diag"
)

func newTestExtension(t *testing.T, opts ...Option) (*Extension, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	ext := New(append([]Option{WithLogWriter(&out), WithUnitID("unit-1")}, opts...)...)
	return ext, &out
}

func TestNew_Defaults(t *testing.T) {
	t.Parallel()

	ext := New()
	assert.NotEmpty(t, ext.Unit())
	assert.NotEqual(t, ext.Unit(), New().Unit())
	assert.NotNil(t, ext.Context())
	assert.NotNil(t, ext.Capabilities())
	assert.False(t, ext.Disabled())
}

func TestSetup_GoHandlers(t *testing.T) {
	t.Parallel()

	var order []string
	ext, _ := newTestExtension(t, WithSetup(func(r *Registrar) error {
		require.NoError(t, r.On(Setup, func(context.Context, *HandlerContext, *Event) (any, error) {
			order = append(order, "setup")
			return nil, nil
		}))
		return r.Register("finish", func(context.Context, *HandlerContext, *Event) (any, error) {
			order = append(order, "finish")
			return nil, nil
		})
	}))

	ctx := context.Background()
	require.NoError(t, ext.Setup(ctx))
	require.NoError(t, ext.Setup(ctx))
	ext.Finish(ctx)

	assert.Equal(t, []string{"setup", "finish"}, order)
	assert.Equal(t, 1, ext.Handlers(Setup))
}

func TestRegistrar_UnknownPoint(t *testing.T) {
	t.Parallel()

	ext, _ := newTestExtension(t, WithSetup(func(r *Registrar) error {
		return r.Register("beforeEverything", func(context.Context, *HandlerContext, *Event) (any, error) {
			return nil, nil
		})
	}))
	err := ext.Setup(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown extension point")
	assert.True(t, ext.Disabled())
}

func TestSetup_ConfigurationErrorDisables(t *testing.T) {
	t.Parallel()

	collector := &diag.Collector{}
	fsys := fstest.MapFS{
		"good.risor": &fstest.MapFile{Data: []byte(`unresolvedVariable(func(ctx, v) { ctx.mark_handled() })`)},
		"bad.risor":  &fstest.MapFile{Data: []byte(`unresolvedVariable(`)},
	}
	ext, _ := newTestExtension(t,
		WithScriptsFS(fsys),
		WithScripts("good.risor", "bad.risor"),
		WithReporter(collector),
	)

	err := ext.Setup(context.Background())
	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "bad.risor", cfgErr.Source)
	assert.True(t, ext.Disabled())

	diags := ext.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, diag.SeverityFatal, diags[0].Severity)
	assert.Equal(t, diag.KindConfiguration, diags[0].Kind)
	assert.Len(t, collector.Diagnostics(), 1)

	// every dispatch is now neutral
	ctx := context.Background()
	assert.False(t, ext.UnresolvedVariable(ctx, &VariableExpr{Variable: "x"}))
	refs, err := ext.MissingMethod(ctx, TypeOf("Foo"), "bar", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, refs)
	a, b := &MethodNode{Name: "a"}, &MethodNode{Name: "b"}
	kept, err := ext.AmbiguousMethods(ctx, []MethodRef{a, b}, nil)
	require.NoError(t, err)
	assert.Len(t, kept, 2)
	assert.Zero(t, ext.Handlers(UnresolvedVariable))
}

func TestSetup_GoSetupPanicIsConfigurationError(t *testing.T) {
	t.Parallel()

	ext, _ := newTestExtension(t, WithSetup(func(*Registrar) error { panic("bad setup") }))
	err := ext.Setup(context.Background())

	var cfgErr *ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "setup#1", cfgErr.Source)
	assert.Contains(t, err.Error(), "panic: bad setup")
}

func TestVoid_ContinuesAfterFailure(t *testing.T) {
	t.Parallel()

	var calls []int
	ext, _ := newTestExtension(t, WithSetup(func(r *Registrar) error {
		for i := 1; i <= 3; i++ {
			i := i
			_ = r.On(AfterVisitClass, func(context.Context, *HandlerContext, *Event) (any, error) {
				calls = append(calls, i)
				if i == 2 {
					return nil, errors.New("second handler failed")
				}
				return nil, nil
			})
		}
		return nil
	}))
	ctx := context.Background()
	require.NoError(t, ext.Setup(ctx))

	ext.AfterVisitClass(ctx, &ClassNode{Name: "Foo"})
	assert.Equal(t, []int{1, 2, 3}, calls)

	diags := ext.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, "afterVisitClass", diags[0].Point)
	assert.Equal(t, "unit-1", diags[0].Unit)
}

func TestFinish_WarnsAboutOpenScopes(t *testing.T) {
	t.Parallel()

	ext, _ := newTestExtension(t, WithSetup(func(r *Registrar) error {
		return r.On(BeforeVisitMethod, func(_ context.Context, hc *HandlerContext, _ *Event) (any, error) {
			hc.PushScope()
			return nil, nil
		})
	}))
	ctx := context.Background()
	require.NoError(t, ext.Setup(ctx))
	assert.False(t, ext.BeforeVisitMethod(ctx, &MethodNode{Name: "run"}))
	ext.Finish(ctx)

	diags := ext.Diagnostics()
	require.Len(t, diags, 1)
	assert.Equal(t, diag.SeverityWarning, diags[0].Severity)
	assert.Contains(t, diags[0].Message, "1 handler scope(s) still open")
}

func TestScripts_DynamicVariable(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"dsl.risor": &fstest.MapFile{Data: []byte(`
unresolvedVariable(func(ctx, v) {
	if v.Name() == "out" {
		ctx.make_dynamic(v, "java.io.PrintStream")
	}
})
`)},
	}
	ext, out := newTestExtension(t, WithScriptsFS(fsys), WithScripts("dsl.risor"), WithDebug(true))
	ctx := context.Background()
	require.NoError(t, ext.Setup(ctx))

	method := &MethodNode{Name: "main"}
	ext.Context().PushEnclosingMethod(method)
	v := &VariableExpr{Variable: "out"}
	assert.True(t, ext.UnresolvedVariable(ctx, v))
	assert.False(t, ext.UnresolvedVariable(ctx, &VariableExpr{Variable: "err"}))

	require.Len(t, ext.Marked(), 1)
	require.Len(t, ext.Generated(), 1)
	assert.Equal(t, "out", ext.Generated()[0].MethodName())
	assert.Equal(t, "java.io.PrintStream", ext.Generated()[0].ReturnType().Name)
	assert.Contains(t, out.String(), "Turning")
	assert.Empty(t, ext.Diagnostics())
}

func TestScripts_MissingAndAmbiguousMethods(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"builder.risor": &fstest.MapFile{Data: []byte(`
methodNotFound(func(ctx, recv, name, args, call) {
	if recv != nil && recv.String() == "com.acme.Builder" && ctx.first_arg_types_match(args, "java.lang.String") {
		return new_method(name, recv)
	}
})

ambiguousMethods(func(ctx, candidates, origin) {
	for _, c := range candidates {
		if c.ReturnType().String() == "int" {
			return ctx.unique(c)
		}
	}
})
`)},
	}
	ext, _ := newTestExtension(t, WithScriptsFS(fsys), WithScripts("builder.risor"))
	ctx := context.Background()
	require.NoError(t, ext.Setup(ctx))

	builder := TypeOf("com.acme.Builder")
	refs, err := ext.MissingMethod(ctx, builder, "name", []*Type{TypeOf("String"), TypeOf("int")}, nil)
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "name", refs[0].MethodName())
	assert.Same(t, builder, refs[0].ReturnType())
	assert.True(t, ext.Capabilities().IsGenerated(refs[0]))

	refs, err = ext.MissingMethod(ctx, TypeOf("com.acme.Other"), "name", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, refs)

	a := &MethodNode{Name: "size", Return: TypeOf("long")}
	b := &MethodNode{Name: "size", Return: TypeOf("int")}
	chosen, err := ext.AmbiguousMethods(ctx, []MethodRef{a, b}, nil)
	require.NoError(t, err)
	assert.Equal(t, []MethodRef{b}, chosen)
}

func TestScripts_ResultShapeError(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"broken.risor": &fstest.MapFile{Data: []byte(`
missingMethod(func(ctx, recv, name, args, call) { return 42 })
`)},
	}
	ext, _ := newTestExtension(t, WithScriptsFS(fsys), WithScripts("broken.risor"))
	ctx := context.Background()
	require.NoError(t, ext.Setup(ctx))

	_, err := ext.MissingMethod(ctx, nil, "x", nil, nil)
	var shapeErr *ResultShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.False(t, ext.Disabled())
}

func TestScripts_SetupAndFinishPoints(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"lifecycle.risor": &fstest.MapFile{Data: []byte(`
setup(func(ctx) {
	s := ctx.push_scope()
	s.set("calls", 0)
	log.Info("setup ran")
})
beforeMethodCall(func(ctx, call) {
	s := ctx.current_scope()
	s.set("calls", s.get("calls") + 1)
})
finish(func(ctx) {
	s := ctx.pop_scope()
	log.Info("calls: " + string(s.get("calls")))
})
`)},
	}
	ext, out := newTestExtension(t, WithScriptsFS(fsys), WithScripts("lifecycle.risor"))
	ctx := context.Background()
	require.NoError(t, ext.Setup(ctx))

	call := &MethodCall{Method: "println"}
	assert.False(t, ext.BeforeMethodCall(ctx, call))
	assert.False(t, ext.BeforeMethodCall(ctx, call))
	ext.Finish(ctx)

	assert.Contains(t, out.String(), "[typehook] INFO: setup ran")
	assert.Contains(t, out.String(), "[typehook] INFO: calls: 2")
	assert.Empty(t, ext.Diagnostics())
}

func TestIncompatibleChecks(t *testing.T) {
	t.Parallel()

	ext, _ := newTestExtension(t, WithSetup(func(r *Registrar) error {
		if err := r.On(IncompatibleAssignment, func(_ context.Context, hc *HandlerContext, ev *Event) (any, error) {
			if ev.LHS.Equal(TypeOf("long")) && ev.RHS.AssignableTo(TypeOf("int")) {
				hc.MarkHandled(true)
			}
			return nil, nil
		}); err != nil {
			return err
		}
		return r.On(IncompatibleReturnType, func(_ context.Context, hc *HandlerContext, ev *Event) (any, error) {
			hc.MarkHandled(ev.Inferred.Equal(TypeOf("java.lang.Object")))
			return nil, nil
		})
	}))
	ctx := context.Background()
	require.NoError(t, ext.Setup(ctx))

	assert.True(t, ext.IncompatibleAssignment(ctx, TypeOf("long"), TypeOf("Integer"), nil))
	assert.False(t, ext.IncompatibleAssignment(ctx, TypeOf("long"), TypeOf("String"), nil))
	assert.True(t, ext.IncompatibleReturnType(ctx, &ReturnStmt{}, TypeOf("Object")))
	assert.False(t, ext.IncompatibleReturnType(ctx, &ReturnStmt{}, TypeOf("int")))
}

func TestParsePoint(t *testing.T) {
	t.Parallel()

	p, ok := ParsePoint("methodNotFound")
	require.True(t, ok)
	assert.Equal(t, MissingMethod, p)
	assert.Len(t, Points(), 16)
	assert.Equal(t, "1.2.0", Version)
}

func TestScripts_DynamicAttribute(t *testing.T) {
	t.Parallel()

	fsys := fstest.MapFS{
		"attrs.risor": &fstest.MapFile{Data: []byte(`
unresolvedAttribute(func(ctx, p) {
	if p.Name() == "cache" {
		ctx.make_dynamic(p, "java.util.Map")
	}
})
`)},
	}
	ext, _ := newTestExtension(t, WithScriptsFS(fsys), WithScripts("attrs.risor"))
	ctx := context.Background()
	require.NoError(t, ext.Setup(ctx))

	method := ast.NewMethodNode("load", ast.Pos{Line: 1}, ast.Void)
	ext.Context().PushEnclosingMethod(method)
	owner := TypeOf("com.acme.Repo")
	attr := ast.NewAttributeExpr("this.@cache", ast.Pos{Line: 2, Col: 9}, owner, "cache")

	assert.True(t, ext.UnresolvedAttribute(ctx, attr))
	assert.False(t, ext.UnresolvedAttribute(ctx, ast.NewAttributeExpr("this.@size", ast.Pos{Line: 3}, owner, "size")))

	stored, ok := ast.StoredType(attr)
	require.True(t, ok)
	assert.Equal(t, "java.util.Map", stored.Name)
	dyn, ok := ast.DynamicType(attr)
	require.True(t, ok)
	assert.Equal(t, "java.util.Map", dyn.Name)
	flagged, ok := method.Meta().Get(ast.DynamicResolution)
	require.True(t, ok)
	assert.Equal(t, true, flagged)

	require.Len(t, ext.Marked(), 1)
	assert.Same(t, attr, ext.Marked()[0])
	assert.Empty(t, ext.Diagnostics())
}
