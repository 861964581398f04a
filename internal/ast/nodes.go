// Package ast is the node and type model shared between a host type checker
// and its extensions. Nodes are deliberately small: they carry what handlers
// inspect (names, types, positions, annotations) plus a metadata bag the
// engine uses to record dynamic resolution and inferred types.
package ast

import "fmt"

// MetaKey identifies a node metadata entry.
type MetaKey int

const (
	// DynamicResolution holds a *Type on a reference node, or true on an
	// enclosing method or closure that contains dynamic accesses.
	DynamicResolution MetaKey = iota
	// InferredType holds the *Type stored for a node by the engine.
	InferredType
)

// Metadata is a per-node key/value bag.
type Metadata struct {
	m map[MetaKey]any
}

// Put stores v under k.
func (md *Metadata) Put(k MetaKey, v any) {
	if md.m == nil {
		md.m = make(map[MetaKey]any)
	}
	md.m[k] = v
}

// Get returns the value stored under k.
func (md *Metadata) Get(k MetaKey) (any, bool) {
	v, ok := md.m[k]
	return v, ok
}

// Pos is a 1-based source position.
type Pos struct {
	Line int
	Col  int
}

// Node is any host AST node handlers can see.
type Node interface {
	Text() string
	Position() Pos
	Meta() *Metadata
}

type node struct {
	text string
	pos  Pos
	meta Metadata
}

func (n *node) Text() string    { return n.text }
func (n *node) Position() Pos   { return n.pos }
func (n *node) Meta() *Metadata { return &n.meta }

// MethodRef is a method-like candidate: a declared method or a synthetic
// descriptor.
type MethodRef interface {
	MethodName() string
	ReturnType() *Type
}

// Expression is a generic expression node with an optional static type.
type Expression struct {
	node
	Type *Type
}

// NewExpression creates a generic expression.
func NewExpression(text string, pos Pos, t *Type) *Expression {
	return &Expression{node: node{text: text, pos: pos}, Type: t}
}

// MethodCall is a method invocation.
type MethodCall struct {
	node
	Receiver *Type // nil for unqualified calls
	Method   string
	Args     []Node
	ArgTypes []*Type
}

// NewMethodCall creates a method call node.
func NewMethodCall(text string, pos Pos, receiver *Type, method string, argTypes ...*Type) *MethodCall {
	return &MethodCall{node: node{text: text, pos: pos}, Receiver: receiver, Method: method, ArgTypes: argTypes}
}

// Name returns the invoked method name.
func (c *MethodCall) Name() string { return c.Method }

// Implicit reports whether the call has no explicit receiver.
func (c *MethodCall) Implicit() bool { return c.Receiver == nil }

// PropertyExpr is a property access, or an attribute access when Attribute
// is set.
type PropertyExpr struct {
	node
	ObjectType *Type
	Property   string
	Attribute  bool
}

// NewPropertyExpr creates a property access node.
func NewPropertyExpr(text string, pos Pos, objectType *Type, property string) *PropertyExpr {
	return &PropertyExpr{node: node{text: text, pos: pos}, ObjectType: objectType, Property: property}
}

// NewAttributeExpr creates an attribute access node.
func NewAttributeExpr(text string, pos Pos, objectType *Type, attribute string) *PropertyExpr {
	p := NewPropertyExpr(text, pos, objectType, attribute)
	p.Attribute = true
	return p
}

// Name returns the accessed property name.
func (p *PropertyExpr) Name() string { return p.Property }

// VariableExpr is a reference to a variable by name.
type VariableExpr struct {
	node
	Variable string
	// Dynamic is set by the host when the variable is bound dynamically
	// (not declared in the checked unit).
	Dynamic bool
}

// NewVariableExpr creates a variable reference node.
func NewVariableExpr(text string, pos Pos, name string) *VariableExpr {
	return &VariableExpr{node: node{text: text, pos: pos}, Variable: name}
}

// Name returns the referenced variable name.
func (v *VariableExpr) Name() string { return v.Variable }

// Param is a declared method or closure parameter.
type Param struct {
	Name string
	Type *Type
}

// ClosureExpr is a closure or lambda.
type ClosureExpr struct {
	node
	Params []Param
}

// NewClosureExpr creates a closure node.
func NewClosureExpr(text string, pos Pos, params ...Param) *ClosureExpr {
	return &ClosureExpr{node: node{text: text, pos: pos}, Params: params}
}

// MethodNode is a declared method.
type MethodNode struct {
	node
	Name        string
	Return      *Type
	Params      []Param
	Owner       *ClassNode
	Annotations []string
	// Extension marks methods contributed to a type from outside its
	// declaration (extension methods).
	Extension bool
}

// NewMethodNode creates a method declaration node.
func NewMethodNode(name string, pos Pos, ret *Type, params ...Param) *MethodNode {
	if ret == nil {
		ret = Void
	}
	return &MethodNode{node: node{text: name, pos: pos}, Name: name, Return: ret, Params: params}
}

func (m *MethodNode) MethodName() string { return m.Name }
func (m *MethodNode) ReturnType() *Type  { return m.Return }

// ParamTypes returns the declared parameter types.
func (m *MethodNode) ParamTypes() []*Type {
	out := make([]*Type, len(m.Params))
	for i, p := range m.Params {
		out[i] = p.Type
	}
	return out
}

// ClassNode is a declared class.
type ClassNode struct {
	node
	Name        string
	Methods     []*MethodNode
	Fields      map[string]*Type
	Annotations []string
}

// NewClassNode creates a class declaration node.
func NewClassNode(name string, pos Pos) *ClassNode {
	return &ClassNode{node: node{text: name, pos: pos}, Name: name, Fields: make(map[string]*Type)}
}

// AddMethod declares m on c.
func (c *ClassNode) AddMethod(m *MethodNode) {
	m.Owner = c
	c.Methods = append(c.Methods, m)
}

// MethodsNamed returns the declared methods called name.
func (c *ClassNode) MethodsNamed(name string) []*MethodNode {
	var out []*MethodNode
	for _, m := range c.Methods {
		if m.Name == name {
			out = append(out, m)
		}
	}
	return out
}

// Type returns the class as a type.
func (c *ClassNode) Type() *Type { return TypeOf(c.Name) }

// ReturnStmt is a return statement.
type ReturnStmt struct {
	node
	Expr Node
}

// NewReturnStmt creates a return statement node.
func NewReturnStmt(text string, pos Pos, expr Node) *ReturnStmt {
	return &ReturnStmt{node: node{text: text, pos: pos}, Expr: expr}
}

// BinaryExpr is a binary expression, including assignments.
type BinaryExpr struct {
	node
	Op    string
	Left  Node
	Right Node
}

// NewBinaryExpr creates a binary expression node.
func NewBinaryExpr(text string, pos Pos, op string, left, right Node) *BinaryExpr {
	return &BinaryExpr{node: node{text: text, pos: pos}, Op: op, Left: left, Right: right}
}

// Annotated is implemented by nodes that carry annotations.
type Annotated interface {
	AnnotationNames() []string
}

func (m *MethodNode) AnnotationNames() []string { return m.Annotations }
func (c *ClassNode) AnnotationNames() []string  { return c.Annotations }

// DynamicType returns the dynamic-resolution type recorded on n, if any.
func DynamicType(n Node) (*Type, bool) {
	v, ok := n.Meta().Get(DynamicResolution)
	if !ok {
		return nil, false
	}
	t, ok := v.(*Type)
	return t, ok
}

// ContainsDynamic reports whether a method or closure was flagged as
// containing dynamic accesses.
func ContainsDynamic(n Node) bool {
	v, ok := n.Meta().Get(DynamicResolution)
	if !ok {
		return false
	}
	b, ok := v.(bool)
	return ok && b
}

// StoredType returns the inferred type stored on n, if any.
func StoredType(n Node) (*Type, bool) {
	v, ok := n.Meta().Get(InferredType)
	if !ok {
		return nil, false
	}
	t, ok := v.(*Type)
	return t, ok
}

// Describe renders a short "kind text" label for logs and diagnostics.
func Describe(n Node) string {
	switch n := n.(type) {
	case *MethodCall:
		return fmt.Sprintf("method call %q", n.Text())
	case *PropertyExpr:
		if n.Attribute {
			return fmt.Sprintf("attribute %q", n.Text())
		}
		return fmt.Sprintf("property %q", n.Text())
	case *VariableExpr:
		return fmt.Sprintf("variable %q", n.Text())
	case *ClosureExpr:
		return "closure"
	case *MethodNode:
		return fmt.Sprintf("method %s", n.Name)
	case *ClassNode:
		return fmt.Sprintf("class %s", n.Name)
	case nil:
		return "<nil>"
	default:
		return fmt.Sprintf("%q", n.Text())
	}
}
