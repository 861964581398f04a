package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/checkctx"
	"github.com/jward/typehook/internal/diag"
	"github.com/jward/typehook/internal/hook"
	"github.com/jward/typehook/internal/registry"
)

func setup(t *testing.T) (*Dispatcher, *registry.Registry, *diag.Collector) {
	t.Helper()
	reg := registry.New()
	caps := hook.NewCapabilities("unit", checkctx.New(), nil, false)
	diags := &diag.Collector{}
	return New(reg, caps, diags), reg, diags
}

func on(t *testing.T, reg *registry.Registry, p hook.Point, h hook.Handler) {
	t.Helper()
	_, err := reg.Register(p, "test", h)
	require.NoError(t, err)
}

func TestVoid_RunsEveryHandlerDespiteFailures(t *testing.T) {
	t.Parallel()

	d, reg, diags := setup(t)
	var order []int
	on(t, reg, hook.Finish, func(context.Context, *hook.Context, *hook.Event) (any, error) {
		order = append(order, 1)
		return nil, nil
	})
	on(t, reg, hook.Finish, func(context.Context, *hook.Context, *hook.Event) (any, error) {
		order = append(order, 2)
		return nil, errors.New("h2 failed")
	})
	on(t, reg, hook.Finish, func(context.Context, *hook.Context, *hook.Event) (any, error) {
		order = append(order, 3)
		panic("h3 panicked")
	})
	on(t, reg, hook.Finish, func(context.Context, *hook.Context, *hook.Event) (any, error) {
		order = append(order, 4)
		return nil, nil
	})

	d.Void(context.Background(), hook.Finish, nil)

	assert.Equal(t, []int{1, 2, 3, 4}, order)
	got := diags.Diagnostics()
	require.Len(t, got, 2)
	assert.Equal(t, diag.KindHandler, got[0].Kind)
	assert.Equal(t, "finish", got[0].Point)
	assert.Contains(t, got[0].Message, "h2 failed")
	assert.Contains(t, got[1].Message, "panic: h3 panicked")
	assert.Contains(t, got[1].Message, "test#3")
}

func TestHandled_LastWriteWins(t *testing.T) {
	t.Parallel()

	mark := func(v bool) hook.Handler {
		return func(_ context.Context, hc *hook.Context, _ *hook.Event) (any, error) {
			hc.MarkHandled(v)
			return nil, nil
		}
	}
	quiet := func(context.Context, *hook.Context, *hook.Event) (any, error) { return nil, nil }

	tests := []struct {
		name     string
		handlers []hook.Handler
		want     bool
	}{
		{"no handlers", nil, false},
		{"nobody marks", []hook.Handler{quiet, quiet}, false},
		{"one marks", []hook.Handler{quiet, mark(true), quiet}, true},
		{"later unmarks", []hook.Handler{mark(true), mark(false)}, false},
		{"unmark then mark", []hook.Handler{mark(false), mark(true)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, reg, _ := setup(t)
			for _, h := range tt.handlers {
				on(t, reg, hook.UnresolvedVariable, h)
			}
			assert.Equal(t, tt.want, d.Handled(context.Background(), hook.UnresolvedVariable, &hook.Event{}))
		})
	}
}

func TestHandled_FreshResultPerDispatch(t *testing.T) {
	t.Parallel()

	d, reg, _ := setup(t)
	calls := 0
	on(t, reg, hook.BeforeMethodCall, func(_ context.Context, hc *hook.Context, _ *hook.Event) (any, error) {
		calls++
		assert.False(t, hc.Handled(), "result must start unset")
		if calls == 1 {
			hc.MarkHandled(true)
		}
		return nil, nil
	})

	ctx := context.Background()
	assert.True(t, d.Handled(ctx, hook.BeforeMethodCall, nil))
	assert.False(t, d.Handled(ctx, hook.BeforeMethodCall, nil))
}

func TestHandled_FailingHandlerKeepsEarlierMark(t *testing.T) {
	t.Parallel()

	d, reg, diags := setup(t)
	on(t, reg, hook.UnresolvedProperty, func(_ context.Context, hc *hook.Context, _ *hook.Event) (any, error) {
		hc.MarkHandled(true)
		return nil, nil
	})
	on(t, reg, hook.UnresolvedProperty, func(_ context.Context, hc *hook.Context, _ *hook.Event) (any, error) {
		return nil, errors.New("late failure")
	})

	node := ast.NewPropertyExpr("a.b", ast.Pos{Line: 7, Col: 3}, ast.Object, "b")
	assert.True(t, d.Handled(context.Background(), hook.UnresolvedProperty, &hook.Event{Node: node}))
	got := diags.Diagnostics()
	require.Len(t, got, 1)
	assert.Equal(t, 7, got[0].Line)
	assert.Equal(t, 3, got[0].Col)
}

func TestAccumulate_FlattensInOrder(t *testing.T) {
	t.Parallel()

	d, reg, _ := setup(t)
	a := ast.NewMethodNode("a", ast.Pos{}, nil)
	b := ast.NewMethodNode("b", ast.Pos{}, nil)
	c := ast.NewMethodNode("c", ast.Pos{}, nil)
	on(t, reg, hook.MissingMethod, func(context.Context, *hook.Context, *hook.Event) (any, error) { return nil, nil })
	on(t, reg, hook.MissingMethod, func(context.Context, *hook.Context, *hook.Event) (any, error) { return a, nil })
	on(t, reg, hook.MissingMethod, func(context.Context, *hook.Context, *hook.Event) (any, error) {
		return []ast.MethodRef{b, c}, nil
	})
	on(t, reg, hook.MissingMethod, func(context.Context, *hook.Context, *hook.Event) (any, error) {
		return nil, errors.New("isolated")
	})
	on(t, reg, hook.MissingMethod, func(context.Context, *hook.Context, *hook.Event) (any, error) {
		return []any{a}, nil
	})

	got, err := d.Accumulate(context.Background(), hook.MissingMethod, &hook.Event{Name: "x"})
	require.NoError(t, err)
	assert.Equal(t, []ast.MethodRef{a, b, c, a}, got)
}

func TestAccumulate_WrongShapeAborts(t *testing.T) {
	t.Parallel()

	d, reg, diags := setup(t)
	ran := false
	on(t, reg, hook.MissingMethod, func(context.Context, *hook.Context, *hook.Event) (any, error) { return 42, nil })
	on(t, reg, hook.MissingMethod, func(context.Context, *hook.Context, *hook.Event) (any, error) {
		ran = true
		return nil, nil
	})

	got, err := d.Accumulate(context.Background(), hook.MissingMethod, nil)
	assert.Nil(t, got)
	var shapeErr *diag.ResultShapeError
	require.True(t, errors.As(err, &shapeErr))
	assert.Equal(t, 42, shapeErr.Value)
	assert.False(t, ran)
	require.Len(t, diags.Diagnostics(), 1)
	assert.Equal(t, diag.KindResultShape, diags.Diagnostics()[0].Kind)
}

func TestRefine_StopsAtOneCandidate(t *testing.T) {
	t.Parallel()

	a := ast.NewMethodNode("m", ast.Pos{}, ast.Int)
	b := ast.NewMethodNode("m", ast.Pos{}, ast.Long)
	c := ast.NewMethodNode("m", ast.Pos{}, ast.String)

	t.Run("second handler narrows", func(t *testing.T) {
		d, reg, _ := setup(t)
		var seen [][]ast.MethodRef
		on(t, reg, hook.AmbiguousMethods, func(_ context.Context, _ *hook.Context, ev *hook.Event) (any, error) {
			seen = append(seen, ev.Candidates)
			return []ast.MethodRef{a, b}, nil
		})
		on(t, reg, hook.AmbiguousMethods, func(_ context.Context, _ *hook.Context, ev *hook.Event) (any, error) {
			seen = append(seen, ev.Candidates)
			return []ast.MethodRef{a}, nil
		})

		got, err := d.Refine(context.Background(), hook.AmbiguousMethods, []ast.MethodRef{a, b, c}, nil)
		require.NoError(t, err)
		assert.Equal(t, []ast.MethodRef{a}, got)
		require.Len(t, seen, 2)
		assert.Len(t, seen[0], 3)
		assert.Len(t, seen[1], 2)
	})

	t.Run("first handler narrows", func(t *testing.T) {
		d, reg, _ := setup(t)
		second := false
		on(t, reg, hook.AmbiguousMethods, func(context.Context, *hook.Context, *hook.Event) (any, error) {
			return []ast.MethodRef{a}, nil
		})
		on(t, reg, hook.AmbiguousMethods, func(context.Context, *hook.Context, *hook.Event) (any, error) {
			second = true
			return nil, nil
		})

		got, err := d.Refine(context.Background(), hook.AmbiguousMethods, []ast.MethodRef{a, b, c}, nil)
		require.NoError(t, err)
		assert.Equal(t, []ast.MethodRef{a}, got)
		assert.False(t, second)
	})

	t.Run("growth is not validated", func(t *testing.T) {
		d, reg, _ := setup(t)
		on(t, reg, hook.AmbiguousMethods, func(context.Context, *hook.Context, *hook.Event) (any, error) {
			return []ast.MethodRef{a, b, c}, nil
		})
		got, err := d.Refine(context.Background(), hook.AmbiguousMethods, []ast.MethodRef{a, b}, nil)
		require.NoError(t, err)
		assert.Len(t, got, 3)
	})

	t.Run("nil keeps the list", func(t *testing.T) {
		d, reg, _ := setup(t)
		on(t, reg, hook.AmbiguousMethods, func(context.Context, *hook.Context, *hook.Event) (any, error) {
			return nil, nil
		})
		got, err := d.Refine(context.Background(), hook.AmbiguousMethods, []ast.MethodRef{a, b}, nil)
		require.NoError(t, err)
		assert.Equal(t, []ast.MethodRef{a, b}, got)
	})

	t.Run("single candidate skips handlers", func(t *testing.T) {
		d, reg, _ := setup(t)
		on(t, reg, hook.AmbiguousMethods, func(context.Context, *hook.Context, *hook.Event) (any, error) {
			t.Fatal("handler must not run")
			return nil, nil
		})
		got, err := d.Refine(context.Background(), hook.AmbiguousMethods, []ast.MethodRef{a}, nil)
		require.NoError(t, err)
		assert.Equal(t, []ast.MethodRef{a}, got)
	})
}

func TestCandidates(t *testing.T) {
	t.Parallel()

	m := ast.NewMethodNode("m", ast.Pos{}, nil)
	refs, ok := Candidates(nil)
	assert.True(t, ok)
	assert.Empty(t, refs)

	refs, ok = Candidates([]any{m, m})
	assert.True(t, ok)
	assert.Len(t, refs, 2)

	_, ok = Candidates([]any{m, "nope"})
	assert.False(t, ok)
	_, ok = Candidates("nope")
	assert.False(t, ok)
}
