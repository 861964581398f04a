package javahost

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/jward/typehook/internal/argmatch"
	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/checkctx"
	"github.com/jward/typehook/internal/delegation"
	"github.com/jward/typehook/internal/diag"
)

// pass is the state of one CheckSource call.
type pass struct {
	ctx      context.Context
	hooks    Hooks
	check    *checkctx.Context
	reporter diag.Reporter
	src      []byte
	res      *Result

	classes     map[string]*ast.ClassNode
	order       []*ast.ClassNode
	methodDecls map[*ast.MethodNode]*sitter.Node

	// innermost last
	locals []map[string]*ast.Type
}

func (p *pass) text(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return n.Content(p.src)
}

func pos(n *sitter.Node) ast.Pos {
	pt := n.StartPoint()
	return ast.Pos{Line: int(pt.Row) + 1, Col: int(pt.Column) + 1}
}

// named returns n's named children without comments.
func named(n *sitter.Node) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		switch c.Type() {
		case "line_comment", "block_comment":
			continue
		}
		out = append(out, c)
	}
	return out
}

func (p *pass) errorf(at ast.Pos, format string, args ...any) {
	d := diag.Diagnostic{
		Unit:     p.hooks.Unit(),
		Severity: diag.SeverityError,
		Kind:     diag.KindType,
		Message:  fmt.Sprintf(format, args...),
		Line:     at.Line,
		Col:      at.Col,
	}
	p.res.Diagnostics = append(p.res.Diagnostics, d)
	if p.reporter != nil {
		p.reporter.Report(d)
	}
}

// ---------- declarations ----------

func (p *pass) declare(n *sitter.Node) {
	for _, c := range named(n) {
		if c.Type() == "class_declaration" {
			p.declareClass(c)
		}
	}
}

func (p *pass) declareClass(n *sitter.Node) {
	cls := ast.NewClassNode(p.text(n.ChildByFieldName("name")), pos(n))
	cls.Annotations = p.annotations(n)
	p.classes[cls.Name] = cls
	p.order = append(p.order, cls)

	for _, c := range named(n.ChildByFieldName("body")) {
		switch c.Type() {
		case "field_declaration":
			t := p.typeOf(c.ChildByFieldName("type"))
			for _, d := range named(c) {
				if d.Type() == "variable_declarator" {
					cls.Fields[p.text(d.ChildByFieldName("name"))] = t
				}
			}
		case "method_declaration":
			m := p.methodNode(c)
			cls.AddMethod(m)
			p.methodDecls[m] = c
		case "class_declaration":
			p.declareClass(c)
		}
	}
}

func (p *pass) methodNode(n *sitter.Node) *ast.MethodNode {
	var params []ast.Param
	for _, fp := range named(n.ChildByFieldName("parameters")) {
		if fp.Type() != "formal_parameter" {
			continue
		}
		params = append(params, ast.Param{
			Name: p.text(fp.ChildByFieldName("name")),
			Type: p.typeOf(fp.ChildByFieldName("type")),
		})
	}
	m := ast.NewMethodNode(p.text(n.ChildByFieldName("name")), pos(n), p.typeOf(n.ChildByFieldName("type")), params...)
	m.Annotations = p.annotations(n)
	return m
}

func (p *pass) annotations(n *sitter.Node) []string {
	var out []string
	for _, c := range named(n) {
		if c.Type() != "modifiers" {
			continue
		}
		for _, a := range named(c) {
			if a.Type() != "marker_annotation" && a.Type() != "annotation" {
				continue
			}
			if name := a.ChildByFieldName("name"); name != nil {
				out = append(out, p.text(name))
			}
		}
	}
	return out
}

func (p *pass) typeOf(n *sitter.Node) *ast.Type {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "void_type":
		return ast.Void
	case "generic_type":
		// List<String> is checked as its raw type.
		if cs := named(n); len(cs) > 0 {
			return p.typeOf(cs[0])
		}
	}
	return ast.TypeOf(p.text(n))
}

func (p *pass) classFor(t *ast.Type) *ast.ClassNode {
	if t == nil {
		return nil
	}
	if cls, ok := p.classes[t.Name]; ok {
		return cls
	}
	return p.classes[t.SimpleName()]
}

// ---------- locals ----------

func (p *pass) pushLocals() { p.locals = append(p.locals, make(map[string]*ast.Type)) }
func (p *pass) popLocals()  { p.locals = p.locals[:len(p.locals)-1] }

func (p *pass) declareLocal(name string, t *ast.Type) {
	if len(p.locals) == 0 {
		p.pushLocals()
	}
	if t == nil {
		t = ast.Object
	}
	p.locals[len(p.locals)-1][name] = t
}

func (p *pass) lookupLocal(name string) (*ast.Type, bool) {
	for i := len(p.locals) - 1; i >= 0; i-- {
		if t, ok := p.locals[i][name]; ok {
			return t, true
		}
	}
	return nil, false
}

// ---------- classes and methods ----------

func (p *pass) visitClass(cls *ast.ClassNode) {
	p.res.Classes++
	if p.hooks.BeforeVisitClass(p.ctx, cls) {
		p.hooks.AfterVisitClass(p.ctx, cls)
		return
	}
	p.check.PushEnclosingClass(cls)
	for _, m := range cls.Methods {
		p.visitMethod(m)
	}
	p.check.PopEnclosingClass()
	p.hooks.AfterVisitClass(p.ctx, cls)
}

func (p *pass) visitMethod(m *ast.MethodNode) {
	p.res.Methods++
	// A handled before-visit skips the body; the after hook still fires.
	if p.hooks.BeforeVisitMethod(p.ctx, m) {
		p.hooks.AfterVisitMethod(p.ctx, m)
		return
	}
	p.check.PushEnclosingMethod(m)
	p.pushLocals()
	for _, prm := range m.Params {
		p.declareLocal(prm.Name, prm.Type)
	}
	if body := p.methodDecls[m].ChildByFieldName("body"); body != nil {
		p.stmt(body)
	}
	p.popLocals()
	p.check.PopEnclosingMethod()
	p.hooks.AfterVisitMethod(p.ctx, m)
}

// ---------- statements ----------

func isStatement(kind string) bool {
	return kind == "block" || kind == "local_variable_declaration" || strings.HasSuffix(kind, "_statement")
}

func (p *pass) stmt(n *sitter.Node) {
	switch n.Type() {
	case "block":
		p.pushLocals()
		for _, c := range named(n) {
			p.stmt(c)
		}
		p.popLocals()
	case "local_variable_declaration":
		p.localDecl(n)
	case "return_statement":
		p.returnStmt(n)
	case "expression_statement":
		if cs := named(n); len(cs) > 0 {
			p.expr(cs[0])
		}
	case "enhanced_for_statement":
		p.expr(n.ChildByFieldName("value"))
		p.pushLocals()
		p.declareLocal(p.text(n.ChildByFieldName("name")), p.typeOf(n.ChildByFieldName("type")))
		p.stmt(n.ChildByFieldName("body"))
		p.popLocals()
	case "catch_clause":
		p.pushLocals()
		for _, c := range named(n) {
			if c.Type() == "catch_formal_parameter" {
				p.declareLocal(p.text(c.ChildByFieldName("name")), ast.TypeOf("Throwable"))
			}
		}
		p.stmt(n.ChildByFieldName("body"))
		p.popLocals()
	case "break_statement", "continue_statement":
	default:
		p.children(n)
	}
}

// children visits every named child as a statement or an expression.
func (p *pass) children(n *sitter.Node) {
	for _, c := range named(n) {
		if isStatement(c.Type()) || c.Type() == "catch_clause" {
			p.stmt(c)
		} else {
			p.expr(c)
		}
	}
}

func (p *pass) localDecl(n *sitter.Node) {
	declared := p.typeOf(n.ChildByFieldName("type"))
	for _, d := range named(n) {
		if d.Type() != "variable_declarator" {
			continue
		}
		name := p.text(d.ChildByFieldName("name"))
		t := declared
		if value := d.ChildByFieldName("value"); value != nil {
			lhs := ast.NewVariableExpr(name, pos(d), name)
			rhs := ast.NewExpression(p.text(value), pos(value), nil)
			bin := ast.NewBinaryExpr(p.text(d), pos(d), "=", lhs, rhs)
			p.check.PushEnclosingBinaryExpression(bin)
			rhs.Type = p.expr(value)
			if declared == nil || declared.Name == "var" {
				t = rhs.Type
			} else {
				p.checkAssign(declared, rhs.Type, bin)
			}
			p.check.PopEnclosingBinaryExpression()
		}
		p.declareLocal(name, t)
	}
}

func (p *pass) checkAssign(lhs, rhs *ast.Type, expr ast.Node) {
	if lhs == nil || rhs == nil || rhs.AssignableTo(lhs) {
		return
	}
	if p.hooks.IncompatibleAssignment(p.ctx, lhs, rhs, expr) {
		return
	}
	p.errorf(expr.Position(), "incompatible types: %s cannot be converted to %s", rhs, lhs)
}

func (p *pass) returnStmt(n *sitter.Node) {
	var (
		expr ast.Node
		t    *ast.Type
	)
	if cs := named(n); len(cs) > 0 {
		t = p.expr(cs[0])
		expr = ast.NewExpression(p.text(cs[0]), pos(cs[0]), t)
	}
	m := p.check.EnclosingMethod()
	// Returns inside a lambda belong to the lambda.
	if m == nil || p.check.EnclosingClosure() != nil || t == nil {
		return
	}
	if t.AssignableTo(m.Return) {
		return
	}
	ret := ast.NewReturnStmt(p.text(n), pos(n), expr)
	if p.hooks.IncompatibleReturnType(p.ctx, ret, t) {
		return
	}
	p.errorf(ret.Position(), "incompatible types: cannot return %s from %s returning %s", t, m.Name, m.Return)
}

// ---------- expressions ----------

// expr visits n and returns its static type, or nil when it is unknown.
// Unknown types are never reported twice: the node that failed reports.
func (p *pass) expr(n *sitter.Node) *ast.Type {
	if n == nil {
		return nil
	}
	switch n.Type() {
	case "string_literal", "text_block":
		return ast.String
	case "decimal_integer_literal", "hex_integer_literal", "octal_integer_literal", "binary_integer_literal":
		if strings.HasSuffix(strings.ToLower(p.text(n)), "l") {
			return ast.Long
		}
		return ast.Int
	case "decimal_floating_point_literal", "hex_floating_point_literal":
		if strings.HasSuffix(strings.ToLower(p.text(n)), "f") {
			return ast.Float
		}
		return ast.Double
	case "true", "false":
		return ast.Boolean
	case "character_literal":
		return ast.Char
	case "null_literal":
		return nil
	case "this":
		if cls := p.check.EnclosingClass(); cls != nil {
			return cls.Type()
		}
		return nil
	case "parenthesized_expression":
		if cs := named(n); len(cs) > 0 {
			return p.expr(cs[0])
		}
		return nil
	case "identifier":
		return p.identifier(n)
	case "field_access":
		return p.fieldAccess(n)
	case "method_invocation":
		return p.methodCall(n)
	case "object_creation_expression":
		for _, a := range named(n.ChildByFieldName("arguments")) {
			p.expr(a)
		}
		return p.typeOf(n.ChildByFieldName("type"))
	case "assignment_expression":
		return p.assignment(n)
	case "binary_expression":
		return p.binary(n)
	case "lambda_expression":
		return p.lambda(n)
	case "cast_expression":
		p.expr(n.ChildByFieldName("value"))
		return p.typeOf(n.ChildByFieldName("type"))
	case "ternary_expression":
		p.expr(n.ChildByFieldName("condition"))
		t := p.expr(n.ChildByFieldName("consequence"))
		p.expr(n.ChildByFieldName("alternative"))
		return t
	case "unary_expression":
		return p.expr(n.ChildByFieldName("operand"))
	case "update_expression":
		if cs := named(n); len(cs) > 0 {
			return p.expr(cs[0])
		}
		return nil
	case "type_identifier", "scoped_type_identifier", "generic_type", "integral_type",
		"floating_point_type", "boolean_type", "array_type":
		return nil
	}
	p.children(n)
	return nil
}

// resolvedType is the type a handler left on a node it resolved.
func resolvedType(n ast.Node) *ast.Type {
	if t, ok := ast.DynamicType(n); ok {
		return t
	}
	if t, ok := ast.StoredType(n); ok {
		return t
	}
	return ast.Object
}

// isTypeName treats capitalized identifiers as static type references
// such as Math or System.
func isTypeName(name string) bool {
	r, _ := utf8.DecodeRuneInString(name)
	return unicode.IsUpper(r)
}

func hasField(cls *ast.ClassNode, name string) bool {
	_, ok := cls.Fields[name]
	return ok
}

func hasMethod(cls *ast.ClassNode, name string) bool {
	return len(cls.MethodsNamed(name)) > 0
}

// implicitOwner returns the type an unqualified member resolves against,
// honoring the active delegation frame.
func (p *pass) implicitOwner(name string, has func(*ast.ClassNode, string) bool) (*ast.Type, bool) {
	owner := p.check.EnclosingClass()
	target, ok := p.check.Delegation.Resolve(name, func(t delegation.Target, delegate *ast.Type, name string) bool {
		switch t {
		case delegation.Owner:
			return owner != nil && has(owner, name)
		case delegation.Delegate:
			cls := p.classFor(delegate)
			return cls != nil && has(cls, name)
		}
		return false
	})
	if !ok {
		return nil, false
	}
	if target == delegation.Delegate {
		return p.check.Delegation.Top().Type, true
	}
	return owner.Type(), true
}

func (p *pass) identifier(n *sitter.Node) *ast.Type {
	name := p.text(n)
	if t, ok := p.lookupLocal(name); ok {
		return t
	}
	if owner, ok := p.implicitOwner(name, hasField); ok {
		return p.classFor(owner).Fields[name]
	}
	if isTypeName(name) {
		return ast.TypeOf(name)
	}

	v := ast.NewVariableExpr(name, pos(n), name)
	v.Dynamic = true
	if p.hooks.UnresolvedVariable(p.ctx, v) {
		return resolvedType(v)
	}
	p.errorf(v.Position(), "cannot find symbol: variable %s", name)
	return nil
}

func (p *pass) fieldAccess(n *sitter.Node) *ast.Type {
	ot := p.expr(n.ChildByFieldName("object"))
	if ot == nil {
		return nil
	}
	field := p.text(n.ChildByFieldName("field"))
	if cls := p.classFor(ot); cls != nil {
		if t, ok := cls.Fields[field]; ok {
			return t
		}
	}

	prop := ast.NewPropertyExpr(p.text(n), pos(n), ot, field)
	if p.hooks.UnresolvedProperty(p.ctx, prop) {
		return resolvedType(prop)
	}
	p.errorf(prop.Position(), "cannot find symbol: property %s on %s", field, ot)
	return nil
}

func (p *pass) assignment(n *sitter.Node) *ast.Type {
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	op := p.text(n.ChildByFieldName("operator"))
	lhs := ast.NewExpression(p.text(left), pos(left), nil)
	rhs := ast.NewExpression(p.text(right), pos(right), nil)
	bin := ast.NewBinaryExpr(p.text(n), pos(n), op, lhs, rhs)

	p.check.PushEnclosingBinaryExpression(bin)
	defer p.check.PopEnclosingBinaryExpression()
	lhs.Type = p.expr(left)
	rhs.Type = p.expr(right)
	if op == "=" {
		p.checkAssign(lhs.Type, rhs.Type, bin)
	}
	return lhs.Type
}

func (p *pass) binary(n *sitter.Node) *ast.Type {
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	op := p.text(n.ChildByFieldName("operator"))
	lhs := ast.NewExpression(p.text(left), pos(left), nil)
	rhs := ast.NewExpression(p.text(right), pos(right), nil)
	bin := ast.NewBinaryExpr(p.text(n), pos(n), op, lhs, rhs)

	p.check.PushEnclosingBinaryExpression(bin)
	defer p.check.PopEnclosingBinaryExpression()
	lhs.Type = p.expr(left)
	rhs.Type = p.expr(right)
	switch op {
	case "==", "!=", "<", ">", "<=", ">=", "&&", "||":
		return ast.Boolean
	case "+":
		if lhs.Type.Equal(ast.String) || rhs.Type.Equal(ast.String) {
			return ast.String
		}
	}
	return lhs.Type
}

func (p *pass) lambda(n *sitter.Node) *ast.Type {
	var params []ast.Param
	if ps := n.ChildByFieldName("parameters"); ps != nil {
		switch ps.Type() {
		case "identifier":
			params = append(params, ast.Param{Name: p.text(ps), Type: ast.Object})
		case "formal_parameters":
			for _, fp := range named(ps) {
				params = append(params, ast.Param{
					Name: p.text(fp.ChildByFieldName("name")),
					Type: p.typeOf(fp.ChildByFieldName("type")),
				})
			}
		default:
			for _, id := range named(ps) {
				params = append(params, ast.Param{Name: p.text(id), Type: ast.Object})
			}
		}
	}

	cl := ast.NewClosureExpr(p.text(n), pos(n), params...)
	p.check.PushEnclosingClosure(cl)
	p.pushLocals()
	for _, prm := range params {
		p.declareLocal(prm.Name, prm.Type)
	}
	if body := n.ChildByFieldName("body"); body != nil {
		if body.Type() == "block" {
			p.stmt(body)
		} else {
			p.expr(body)
		}
	}
	p.popLocals()
	if _, err := p.check.PopEnclosingClosure(); err != nil {
		p.errorf(cl.Position(), "%v", err)
	}
	return ast.Object
}

// ---------- method calls ----------

func (p *pass) methodCall(n *sitter.Node) *ast.Type {
	name := p.text(n.ChildByFieldName("name"))
	obj := n.ChildByFieldName("object")
	var recv *ast.Type
	if obj != nil {
		if recv = p.expr(obj); recv == nil {
			for _, a := range named(n.ChildByFieldName("arguments")) {
				p.expr(a)
			}
			return nil
		}
	}

	call := ast.NewMethodCall(p.text(n), pos(n), recv, name)
	p.res.Calls++
	p.check.PushEnclosingMethodCall(call)
	mark := p.check.Delegation.Mark()
	defer func() {
		// Delegates set for this call end with it.
		if err := p.check.Delegation.Restore(mark); err != nil {
			p.errorf(call.Position(), "%v", err)
		}
		p.check.PopEnclosingMethodCall()
	}()

	// Lambda bodies are visited after beforeMethodCall so a delegate set
	// there applies inside them.
	var lambdas []*sitter.Node
	for _, a := range named(n.ChildByFieldName("arguments")) {
		var t *ast.Type
		if a.Type() == "lambda_expression" {
			lambdas = append(lambdas, a)
			t = ast.Object
		} else {
			t = p.expr(a)
		}
		call.Args = append(call.Args, ast.NewExpression(p.text(a), pos(a), t))
		call.ArgTypes = append(call.ArgTypes, t)
	}

	if p.hooks.BeforeMethodCall(p.ctx, call) {
		return resolvedType(call)
	}
	for _, l := range lambdas {
		p.lambda(l)
	}
	if obj == nil {
		recv = p.implicitReceiver(name)
	}
	t := p.resolveCall(call, recv)
	p.hooks.AfterMethodCall(p.ctx, call)
	return t
}

func (p *pass) implicitReceiver(name string) *ast.Type {
	if t, ok := p.implicitOwner(name, hasMethod); ok {
		return t
	}
	if f := p.check.Delegation.Top(); f != nil && f.Order()[0] == delegation.Delegate {
		return f.Type
	}
	if cls := p.check.EnclosingClass(); cls != nil {
		return cls.Type()
	}
	return nil
}

// applicable matches declared parameters against argument types. An
// unknown argument type (null, or already reported) matches anything.
func applicable(m *ast.MethodNode, args []*ast.Type) bool {
	params := m.ParamTypes()
	if len(params) != len(args) {
		return false
	}
	for i, a := range args {
		if a == nil {
			continue
		}
		if !argmatch.Matches(a, params[i]) && !a.AssignableTo(params[i]) {
			return false
		}
	}
	return true
}

func (p *pass) resolveCall(call *ast.MethodCall, recv *ast.Type) *ast.Type {
	var candidates []ast.MethodRef
	if cls := p.classFor(recv); cls != nil {
		for _, m := range cls.MethodsNamed(call.Method) {
			if applicable(m, call.ArgTypes) {
				candidates = append(candidates, m)
			}
		}
	}

	if len(candidates) == 0 {
		refs, err := p.hooks.MissingMethod(p.ctx, recv, call.Method, call.ArgTypes, call)
		if t, ok := ast.DynamicType(call); ok {
			return t
		}
		if err != nil || len(refs) == 0 {
			p.errorf(call.Position(), "cannot find symbol: method %s(%s) on %s", call.Method, typeList(call.ArgTypes), recv)
			return nil
		}
		candidates = refs
	}

	if len(candidates) > 1 {
		refined, err := p.hooks.AmbiguousMethods(p.ctx, candidates, call)
		if err == nil {
			candidates = refined
		}
		if len(candidates) != 1 {
			p.errorf(call.Position(), "reference to %s is ambiguous: %d candidates", call.Method, len(candidates))
			return nil
		}
	}

	chosen := candidates[0]
	p.hooks.OnMethodSelection(p.ctx, call, chosen)
	return chosen.ReturnType()
}

func typeList(ts []*ast.Type) string {
	names := make([]string, len(ts))
	for i, t := range ts {
		if t == nil {
			names[i] = "null"
			continue
		}
		names[i] = t.SimpleName()
	}
	return strings.Join(names, ",")
}
