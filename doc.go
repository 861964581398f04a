// Package typehook is an extension engine for a static type-checking pass.
// It lets externally supplied handlers take part in checking one
// compilation unit: they intercept method resolution, report or silence
// type errors, and declare references dynamic instead of letting the host
// flag them.
//
// # Lifecycle
//
// A host creates one [Extension] per compilation unit:
//
//	ext := typehook.New(
//		typehook.WithScripts("dsl.risor"),
//		typehook.WithScriptsDir("extensions"),
//	)
//	if err := ext.Setup(ctx); err != nil { ... } // extension is now disabled
//
//	// during traversal
//	if !ext.UnresolvedVariable(ctx, v) {
//		// report "undeclared variable"
//	}
//
//	ext.Finish(ctx)
//
// # Extension points
//
// Each point has a fixed aggregation policy:
//
//   - void: setup, finish, onMethodSelection, afterMethodCall,
//     afterVisitMethod, afterVisitClass. Every handler runs once.
//   - handled: beforeMethodCall, unresolvedVariable, unresolvedProperty,
//     unresolvedAttribute, beforeVisitMethod, beforeVisitClass,
//     incompatibleAssignment, incompatibleReturnType. Each dispatch gets a
//     fresh result; the last MarkHandled call wins.
//   - accumulate: missingMethod. Candidates of every handler are flattened.
//   - refine: ambiguousMethods. Handlers run while more than one candidate
//     remains.
//
// A handler that returns an error or panics is reported as a diagnostic and
// the remaining handlers still run. A missingMethod or ambiguousMethods
// handler returning anything but methods aborts that dispatch with a
// [ResultShapeError].
//
// # Scripts
//
// Extension scripts are written in Risor. Every point name is a global that
// registers a handler, and every capability (new_method, set_delegate,
// push_scope, ...) is a global too. Handlers receive a ctx module bound to
// the current dispatch followed by the point's arguments:
//
//	unresolvedVariable(func(ctx, v) {
//		if v.Name() == "out" {
//			ctx.make_dynamic(v, "java.io.PrintStream")
//		}
//	})
//
// Go code registers handlers with [WithSetup] instead. See the
// internal/runtime package for the full set of script globals.
package typehook
