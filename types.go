package typehook

import (
	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/checkctx"
	"github.com/jward/typehook/internal/delegation"
	"github.com/jward/typehook/internal/diag"
	"github.com/jward/typehook/internal/hook"
	"github.com/jward/typehook/internal/scope"
	"github.com/jward/typehook/internal/synth"
)

// Public type aliases for the internal node, hook and diagnostic types used
// in the Extension API. These are Go type aliases (=) and need no
// conversion.

type Type = ast.Type
type Pos = ast.Pos
type Node = ast.Node
type MethodRef = ast.MethodRef
type Expression = ast.Expression
type MethodCall = ast.MethodCall
type PropertyExpr = ast.PropertyExpr
type VariableExpr = ast.VariableExpr
type ClosureExpr = ast.ClosureExpr
type MethodNode = ast.MethodNode
type ClassNode = ast.ClassNode
type ReturnStmt = ast.ReturnStmt
type BinaryExpr = ast.BinaryExpr
type Param = ast.Param

type Point = hook.Point
type Policy = hook.Policy
type Event = hook.Event
type Handler = hook.Handler
type HandlerContext = hook.Context
type Capabilities = hook.Capabilities
type CheckContext = checkctx.Context

type Scope = scope.Scope
type Descriptor = synth.Descriptor
type Strategy = delegation.Strategy

type Diagnostic = diag.Diagnostic
type Reporter = diag.Reporter
type ConfigurationError = diag.ConfigurationError
type ResultShapeError = diag.ResultShapeError
type HandlerError = diag.HandlerError
type StateError = diag.StateError

// Extension points.
const (
	Setup                  = hook.Setup
	Finish                 = hook.Finish
	OnMethodSelection      = hook.OnMethodSelection
	BeforeMethodCall       = hook.BeforeMethodCall
	AfterMethodCall        = hook.AfterMethodCall
	UnresolvedVariable     = hook.UnresolvedVariable
	UnresolvedProperty     = hook.UnresolvedProperty
	UnresolvedAttribute    = hook.UnresolvedAttribute
	MissingMethod          = hook.MissingMethod
	AmbiguousMethods       = hook.AmbiguousMethods
	BeforeVisitMethod      = hook.BeforeVisitMethod
	AfterVisitMethod       = hook.AfterVisitMethod
	BeforeVisitClass       = hook.BeforeVisitClass
	AfterVisitClass        = hook.AfterVisitClass
	IncompatibleAssignment = hook.IncompatibleAssignment
	IncompatibleReturnType = hook.IncompatibleReturnType
)

// Delegation strategies.
const (
	OwnerFirst    = delegation.OwnerFirst
	DelegateFirst = delegation.DelegateFirst
	OwnerOnly     = delegation.OwnerOnly
	DelegateOnly  = delegation.DelegateOnly
	SelfFirst     = delegation.SelfFirst
)

// ErrEmptyStack is wrapped by every StateError.
var ErrEmptyStack = diag.ErrEmptyStack

// NewCheckContext returns an empty enclosing-node context for WithContext.
func NewCheckContext() *CheckContext { return checkctx.New() }

// TypeOf returns the type for a name; well-known names share one instance.
func TypeOf(name string) *Type { return ast.TypeOf(name) }

// ParsePoint resolves an extension point name, including the alias
// methodNotFound.
func ParsePoint(name string) (Point, bool) { return hook.ParsePoint(name) }

// Points returns every extension point in declaration order.
func Points() []Point { return hook.Points() }

// Aliases returns the alternative point names accepted by ParsePoint.
func Aliases() map[string]Point { return hook.Aliases() }
