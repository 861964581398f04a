package runtime

import (
	"fmt"
	"reflect"

	"github.com/risor-io/risor/object"

	"github.com/jward/typehook/internal/ast"
	"github.com/jward/typehook/internal/synth"
)

// toObject converts a host value to a Risor object. Nodes, types and
// descriptors cross as proxies so their identity survives a round trip
// through a script.
func toObject(v any) object.Object {
	if v == nil {
		return object.Nil
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return object.Nil
	}
	switch val := v.(type) {
	case object.Object:
		return val
	case string:
		return object.NewString(val)
	case bool:
		return object.NewBool(val)
	case int:
		return object.NewInt(int64(val))
	case int64:
		return object.NewInt(val)
	case synth.Descriptor:
		return proxyOrError(&val)
	case []ast.MethodRef:
		items := make([]object.Object, len(val))
		for i, ref := range val {
			items[i] = toObject(ref)
		}
		return object.NewList(items)
	case []*ast.Type:
		items := make([]object.Object, len(val))
		for i, t := range val {
			items[i] = toObject(t)
		}
		return object.NewList(items)
	case []ast.Node:
		items := make([]object.Object, len(val))
		for i, n := range val {
			items[i] = toObject(n)
		}
		return object.NewList(items)
	case []string:
		items := make([]object.Object, len(val))
		for i, s := range val {
			items[i] = object.NewString(s)
		}
		return object.NewList(items)
	default:
		return proxyOrError(v)
	}
}

func proxyOrError(v any) object.Object {
	p, err := object.NewProxy(v)
	if err != nil {
		return object.Errorf("proxy error: %v", err)
	}
	return p
}

// fromObject converts a handler's return value back to a host value. Values
// with no host equivalent are returned as the Risor object itself, which
// result-shape checks then reject.
func fromObject(obj object.Object) any {
	switch val := obj.(type) {
	case nil:
		return nil
	case *object.NilType:
		return nil
	case *object.Proxy:
		return val.Interface()
	case *object.List:
		items := val.Value()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = fromObject(item)
		}
		return out
	case *object.String:
		return val.Value()
	case *object.Bool:
		return val.Value()
	default:
		return obj
	}
}

// toType accepts a type name or a proxied *ast.Type. nil yields a nil type,
// which the capabilities read as java.lang.Object.
func toType(obj object.Object) (*ast.Type, error) {
	switch val := obj.(type) {
	case nil, *object.NilType:
		return nil, nil
	case *object.String:
		if val.Value() == "" {
			return nil, fmt.Errorf("empty type name")
		}
		return ast.TypeOf(val.Value()), nil
	case *object.Proxy:
		switch t := val.Interface().(type) {
		case *ast.Type:
			return t, nil
		case *ast.ClassNode:
			return t.Type(), nil
		}
	}
	return nil, fmt.Errorf("expected type or type name, got %s", obj.Type())
}

// toNode unwraps a proxied AST node.
func toNode(obj object.Object) (ast.Node, error) {
	if p, ok := obj.(*object.Proxy); ok {
		if n, ok := p.Interface().(ast.Node); ok {
			return n, nil
		}
	}
	return nil, fmt.Errorf("expected node, got %s", obj.Type())
}

// toMethodRef unwraps a proxied method node or descriptor.
func toMethodRef(obj object.Object) (ast.MethodRef, error) {
	if p, ok := obj.(*object.Proxy); ok {
		if ref, ok := p.Interface().(ast.MethodRef); ok {
			return ref, nil
		}
	}
	return nil, fmt.Errorf("expected method, got %s", obj.Type())
}

// toArgTypes accepts a proxied call or a list of types.
func toArgTypes(obj object.Object) ([]*ast.Type, error) {
	switch val := obj.(type) {
	case *object.Proxy:
		if call, ok := val.Interface().(*ast.MethodCall); ok {
			return call.ArgTypes, nil
		}
	case *object.List:
		items := val.Value()
		out := make([]*ast.Type, 0, len(items))
		for _, item := range items {
			t, err := toType(item)
			if err != nil {
				return nil, err
			}
			out = append(out, t)
		}
		return out, nil
	}
	return nil, fmt.Errorf("expected call or list of types, got %s", obj.Type())
}

func toInt64(obj object.Object) (int64, error) {
	if i, ok := obj.(*object.Int); ok {
		return i.Value(), nil
	}
	if f, ok := obj.(*object.Float); ok {
		return int64(f.Value()), nil
	}
	return 0, fmt.Errorf("expected int, got %s", obj.Type())
}
