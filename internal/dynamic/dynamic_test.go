package dynamic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/checkctx"
	"github.com/jward/typehook/internal/synth"
)

type flag struct{ v bool }

func (f *flag) MarkHandled(v bool) { f.v = v }

type lines []string

func (l *lines) Info(msg string) { *l = append(*l, msg) }

func TestMarkVariable(t *testing.T) {
	t.Parallel()

	ctx := checkctx.New()
	method := ast.NewMethodNode("run", ast.Pos{}, nil)
	ctx.PushEnclosingMethod(method)
	factory := synth.NewFactory()
	var log lines
	m := NewMarker(ctx, factory, &log)

	v := ast.NewVariableExpr("foo", ast.Pos{}, "foo")
	h := &flag{}
	d := m.MarkVariable(v, ast.String, h)

	stored, ok := ast.StoredType(v)
	require.True(t, ok)
	assert.Equal(t, ast.String, stored)
	dt, ok := ast.DynamicType(v)
	require.True(t, ok)
	assert.Equal(t, ast.String, dt)
	assert.True(t, ast.ContainsDynamic(method))
	assert.True(t, h.v)
	assert.Equal(t, "foo", d.MethodName())
	assert.True(t, factory.IsGenerated(d))
	assert.Equal(t, []string{"Turning foo into a dynamic variable access of type java.lang.String"}, []string(log))
}

func TestMarkProperty_FlagsInnermostClosure(t *testing.T) {
	t.Parallel()

	ctx := checkctx.New()
	method := ast.NewMethodNode("run", ast.Pos{}, nil)
	closure := ast.NewClosureExpr("{ it.size }", ast.Pos{})
	ctx.PushEnclosingMethod(method)
	ctx.PushEnclosingClosure(closure)

	m := NewMarker(ctx, synth.NewFactory(), nil)
	p := ast.NewPropertyExpr("it.size", ast.Pos{}, ast.Object, "size")
	m.MarkProperty(p, nil, &flag{})

	assert.True(t, ast.ContainsDynamic(closure))
	assert.False(t, ast.ContainsDynamic(method))
	stored, _ := ast.StoredType(p)
	assert.Equal(t, ast.Object, stored)
}

func TestMarkCall(t *testing.T) {
	t.Parallel()

	ctx := checkctx.New()
	m := NewMarker(ctx, synth.NewFactory(), nil)
	call := ast.NewMethodCall("x.foo()", ast.Pos{}, ast.String, "foo")
	h := &flag{}

	d := m.MarkCall(call, ast.Int, h)

	dt, ok := ast.DynamicType(call)
	require.True(t, ok)
	assert.Equal(t, ast.Int, dt)
	_, stored := ast.StoredType(call)
	assert.False(t, stored)
	assert.True(t, h.v)
	assert.Equal(t, "foo", d.MethodName())
	assert.Equal(t, ast.Int, d.ReturnType())
	assert.Equal(t, []ast.Node{call}, m.Marked())
}
