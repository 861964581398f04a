// Package hook defines the extension points of the type-checking pass, the
// events handlers receive and the context they act through.
package hook

import "fmt"

// Point is a named moment of the type-checking traversal.
type Point int

const (
	Setup Point = iota
	Finish
	OnMethodSelection
	BeforeMethodCall
	AfterMethodCall
	UnresolvedVariable
	UnresolvedProperty
	UnresolvedAttribute
	MissingMethod
	AmbiguousMethods
	BeforeVisitMethod
	AfterVisitMethod
	BeforeVisitClass
	AfterVisitClass
	IncompatibleAssignment
	IncompatibleReturnType

	numPoints
)

var pointNames = [numPoints]string{
	Setup:                  "setup",
	Finish:                 "finish",
	OnMethodSelection:      "onMethodSelection",
	BeforeMethodCall:       "beforeMethodCall",
	AfterMethodCall:        "afterMethodCall",
	UnresolvedVariable:     "unresolvedVariable",
	UnresolvedProperty:     "unresolvedProperty",
	UnresolvedAttribute:    "unresolvedAttribute",
	MissingMethod:          "missingMethod",
	AmbiguousMethods:       "ambiguousMethods",
	BeforeVisitMethod:      "beforeVisitMethod",
	AfterVisitMethod:       "afterVisitMethod",
	BeforeVisitClass:       "beforeVisitClass",
	AfterVisitClass:        "afterVisitClass",
	IncompatibleAssignment: "incompatibleAssignment",
	IncompatibleReturnType: "incompatibleReturnType",
}

// aliases accepted by ParsePoint in addition to the canonical names.
var pointAliases = map[string]Point{
	"methodNotFound": MissingMethod,
}

func (p Point) String() string {
	if p < 0 || p >= numPoints {
		return fmt.Sprintf("Point(%d)", int(p))
	}
	return pointNames[p]
}

// Valid reports whether p is one of the enumerated points.
func (p Point) Valid() bool { return p >= 0 && p < numPoints }

// Policy is how a point aggregates its handlers' results.
type Policy int

const (
	// PolicyVoid runs every handler and ignores results.
	PolicyVoid Policy = iota
	// PolicyHandled returns the last value handlers set with MarkHandled.
	PolicyHandled
	// PolicyAccumulate flattens every handler's candidates.
	PolicyAccumulate
	// PolicyRefine narrows a candidate list until one or none remains.
	PolicyRefine
)

func (p Policy) String() string {
	switch p {
	case PolicyVoid:
		return "void"
	case PolicyHandled:
		return "handled"
	case PolicyAccumulate:
		return "accumulate"
	case PolicyRefine:
		return "refine"
	}
	return fmt.Sprintf("Policy(%d)", int(p))
}

// Policy returns the aggregation policy of p.
func (p Point) Policy() Policy {
	switch p {
	case BeforeMethodCall, UnresolvedVariable, UnresolvedProperty, UnresolvedAttribute,
		BeforeVisitMethod, BeforeVisitClass, IncompatibleAssignment, IncompatibleReturnType:
		return PolicyHandled
	case MissingMethod:
		return PolicyAccumulate
	case AmbiguousMethods:
		return PolicyRefine
	default:
		return PolicyVoid
	}
}

// ParsePoint resolves a point name or alias.
func ParsePoint(name string) (Point, bool) {
	for i, n := range pointNames {
		if n == name {
			return Point(i), true
		}
	}
	p, ok := pointAliases[name]
	return p, ok
}

// Points returns every point in declaration order.
func Points() []Point {
	out := make([]Point, numPoints)
	for i := range out {
		out[i] = Point(i)
	}
	return out
}

// Aliases returns the alternative names accepted for points.
func Aliases() map[string]Point {
	out := make(map[string]Point, len(pointAliases))
	for k, v := range pointAliases {
		out[k] = v
	}
	return out
}
