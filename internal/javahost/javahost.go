// Package javahost is a small Java type checker over tree-sitter syntax
// trees that drives an extension through every point of a unit check. It
// resolves locals, parameters, fields and methods declared in the checked
// file; everything else is handed to the extension before it is reported.
package javahost

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/checkctx"
	"github.com/jward/typehook/internal/diag"
)

// Hooks is the extension surface the checker calls into.
// *typehook.Extension satisfies it.
type Hooks interface {
	Unit() string
	Context() *checkctx.Context

	OnMethodSelection(ctx context.Context, expr ast.Node, target ast.MethodRef)
	BeforeMethodCall(ctx context.Context, call *ast.MethodCall) bool
	AfterMethodCall(ctx context.Context, call *ast.MethodCall)
	UnresolvedVariable(ctx context.Context, v *ast.VariableExpr) bool
	UnresolvedProperty(ctx context.Context, p *ast.PropertyExpr) bool
	MissingMethod(ctx context.Context, receiver *ast.Type, name string, argTypes []*ast.Type, call *ast.MethodCall) ([]ast.MethodRef, error)
	AmbiguousMethods(ctx context.Context, candidates []ast.MethodRef, origin ast.Node) ([]ast.MethodRef, error)
	BeforeVisitMethod(ctx context.Context, m *ast.MethodNode) bool
	AfterVisitMethod(ctx context.Context, m *ast.MethodNode)
	BeforeVisitClass(ctx context.Context, c *ast.ClassNode) bool
	AfterVisitClass(ctx context.Context, c *ast.ClassNode)
	IncompatibleAssignment(ctx context.Context, lhs, rhs *ast.Type, expr ast.Node) bool
	IncompatibleReturnType(ctx context.Context, ret *ast.ReturnStmt, inferred *ast.Type) bool
}

// IsJavaFile reports whether path names a Java source file.
func IsJavaFile(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".java")
}

// Language returns the tree-sitter grammar the checker parses with.
func Language() *sitter.Language { return java.GetLanguage() }

// Result summarizes one checked file.
type Result struct {
	Path        string
	Classes     int
	Methods     int
	Calls       int
	Diagnostics []diag.Diagnostic
}

// Errors returns the number of error diagnostics.
func (r *Result) Errors() int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Severity == diag.SeverityError || d.Severity == diag.SeverityFatal {
			n++
		}
	}
	return n
}

// Checker type-checks Java files against one extension.
type Checker struct {
	hooks    Hooks
	reporter diag.Reporter
}

// Option configures a Checker.
type Option func(*Checker)

// WithReporter forwards the checker's own diagnostics to r as they are
// produced.
func WithReporter(r diag.Reporter) Option {
	return func(c *Checker) {
		c.reporter = r
	}
}

// New returns a checker that drives hooks.
func New(hooks Hooks, opts ...Option) *Checker {
	c := &Checker{hooks: hooks}
	for _, o := range opts {
		o(c)
	}
	return c
}

// CheckFile reads and checks path.
func (c *Checker) CheckFile(ctx context.Context, path string) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("javahost: read %s: %w", path, err)
	}
	return c.CheckSource(ctx, path, src)
}

// CheckSource parses and checks src. Type errors are returned as
// diagnostics; the error result is only for parse failures and
// cancellation.
func (c *Checker) CheckSource(ctx context.Context, path string, src []byte) (*Result, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(Language())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("javahost: parse %s: %w", path, err)
	}
	defer tree.Close()

	p := &pass{
		ctx:         ctx,
		hooks:       c.hooks,
		check:       c.hooks.Context(),
		reporter:    c.reporter,
		src:         src,
		res:         &Result{Path: path},
		classes:     make(map[string]*ast.ClassNode),
		methodDecls: make(map[*ast.MethodNode]*sitter.Node),
	}

	root := tree.RootNode()
	if root.HasError() {
		if bad := firstError(root); bad != nil {
			p.errorf(pos(bad), "syntax error near %q", truncate(p.text(bad), 40))
		}
	}

	p.declare(root)
	for _, cls := range p.order {
		if err := ctx.Err(); err != nil {
			return p.res, fmt.Errorf("javahost: check %s: %w", path, err)
		}
		p.visitClass(cls)
	}
	return p.res, nil
}

func firstError(n *sitter.Node) *sitter.Node {
	if n.IsError() || n.IsMissing() {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if bad := firstError(n.Child(i)); bad != nil {
			return bad
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
