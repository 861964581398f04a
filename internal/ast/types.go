package ast

import "sync"

// Type is a host type reference. Types are compared by name; TypeOf interns
// well-known names so identity comparison also works for them.
type Type struct {
	Name      string
	primitive bool
}

// Well-known types.
var (
	Object  = &Type{Name: "java.lang.Object"}
	String  = &Type{Name: "java.lang.String"}
	Void    = &Type{Name: "void", primitive: true}
	Boolean = &Type{Name: "boolean", primitive: true}
	Byte    = &Type{Name: "byte", primitive: true}
	Char    = &Type{Name: "char", primitive: true}
	Short   = &Type{Name: "short", primitive: true}
	Int     = &Type{Name: "int", primitive: true}
	Long    = &Type{Name: "long", primitive: true}
	Float   = &Type{Name: "float", primitive: true}
	Double  = &Type{Name: "double", primitive: true}

	BooleanWrapper = &Type{Name: "java.lang.Boolean"}
	ByteWrapper    = &Type{Name: "java.lang.Byte"}
	CharWrapper    = &Type{Name: "java.lang.Character"}
	ShortWrapper   = &Type{Name: "java.lang.Short"}
	IntWrapper     = &Type{Name: "java.lang.Integer"}
	LongWrapper    = &Type{Name: "java.lang.Long"}
	FloatWrapper   = &Type{Name: "java.lang.Float"}
	DoubleWrapper  = &Type{Name: "java.lang.Double"}
	VoidWrapper    = &Type{Name: "java.lang.Void"}
)

// primitive -> wrapper
var wrappers = map[*Type]*Type{
	Boolean: BooleanWrapper,
	Byte:    ByteWrapper,
	Char:    CharWrapper,
	Short:   ShortWrapper,
	Int:     IntWrapper,
	Long:    LongWrapper,
	Float:   FloatWrapper,
	Double:  DoubleWrapper,
	Void:    VoidWrapper,
}

var (
	unwrappers map[*Type]*Type
	interned   map[string]*Type
	internMu   sync.Mutex
	initOnce   sync.Once
)

func initTypes() {
	initOnce.Do(func() {
		unwrappers = make(map[*Type]*Type, len(wrappers))
		interned = map[string]*Type{
			Object.Name: Object,
			String.Name: String,
			// Short names as written in source.
			"Object": Object,
			"String": String,
		}
		for prim, wrap := range wrappers {
			unwrappers[wrap] = prim
			interned[prim.Name] = prim
			interned[wrap.Name] = wrap
			interned[wrap.Name[len("java.lang."):]] = wrap
		}
	})
}

// TypeOf returns the type for a name. Primitive names, java.lang wrappers
// (qualified or simple) and Object/String resolve to the shared instances;
// any other name yields a new class type.
func TypeOf(name string) *Type {
	initTypes()
	internMu.Lock()
	defer internMu.Unlock()
	if t, ok := interned[name]; ok {
		return t
	}
	return &Type{Name: name}
}

// IsPrimitive reports whether t is a primitive type.
func (t *Type) IsPrimitive() bool {
	return t != nil && t.primitive
}

// Wrapper returns the boxed counterpart of a primitive type, or t itself.
func (t *Type) Wrapper() *Type {
	initTypes()
	if w, ok := wrappers[TypeOf(t.Name)]; ok {
		return w
	}
	return t
}

// Unwrapper returns the primitive counterpart of a wrapper type, or t itself.
func (t *Type) Unwrapper() *Type {
	initTypes()
	if p, ok := unwrappers[TypeOf(t.Name)]; ok {
		return p
	}
	return t
}

// Equal compares two types by name.
func (t *Type) Equal(o *Type) bool {
	if t == nil || o == nil {
		return t == o
	}
	return t.Name == o.Name
}

// String returns the type name.
func (t *Type) String() string {
	if t == nil {
		return "<nil>"
	}
	return t.Name
}

// SimpleName returns the name without its package qualifier.
func (t *Type) SimpleName() string {
	for i := len(t.Name) - 1; i >= 0; i-- {
		if t.Name[i] == '.' {
			return t.Name[i+1:]
		}
	}
	return t.Name
}

// AssignableTo is the host's minimal assignability rule: equal types,
// anything to Object, and primitive/wrapper pairs in either direction.
func (t *Type) AssignableTo(target *Type) bool {
	if t == nil || target == nil {
		return false
	}
	if t.Equal(target) || target.Equal(Object) {
		return true
	}
	return t.Wrapper().Equal(target.Wrapper())
}
