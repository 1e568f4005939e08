package sema

import (
	"strings"

	"rillc/internal/source"
	"rillc/internal/symbols"
)

// callShape is the cache key for wrapper synthesis: a callee together with
// the actual/formal shape of one call site (which positions are named,
// which formals carry defaults), abstracted away from concrete argument
// types so that every call site sharing the same shape against the same
// callee reuses one plan rather than re-deriving the formal mapping.
//
// This is the pure-function-of-(callee, shape) memoization called for in
// place of mutating the AST with synthesized wrapper functions: the plan is
// a data artifact consumed by argument materialization, not a new ast.Item.
type callShape struct {
	callee symbols.SymbolID
	shape  string
}

// wrapperKind records which adaptation, if any, a formal position required
// to bind its actual: reordering past a named argument, falling back to a
// declared default, or coercing the actual's type to the formal's.
type wrapperKind uint8

const (
	wrapperNone wrapperKind = iota
	wrapperOrder
	wrapperDefault
	wrapperCoercion
)

// wrapperPlan is the resolved shape of one call against a signature: for
// each formal position, the index of the actual argument (as it appeared in
// the original, unreordered call) that feeds it, or -1 if the formal took
// its default, plus the kind of adaptation that position needed.
type wrapperPlan struct {
	source []int
	kinds  []wrapperKind
}

// needsWrapper reports whether any formal position required an adaptation,
// i.e. the call could not bind its actuals to formals in plain declared
// order with no defaults and no coercions.
func (p *wrapperPlan) needsWrapper() bool {
	if p == nil {
		return false
	}
	for _, k := range p.kinds {
		if k != wrapperNone {
			return true
		}
	}
	return false
}

// orderedCallArgs returns args reordered into formal order against sig, or
// args unchanged when no argument is named. Used to feed planCallWrapper the
// same ordered view that the call site's own matching already computed.
func (tc *typeChecker) orderedCallArgs(sig *symbols.FunctionSignature, args []callArg) []callArg {
	hasNamed := false
	for _, arg := range args {
		if arg.name != source.NoStringID {
			hasNamed = true
			break
		}
	}
	if !hasNamed {
		return args
	}
	if reordered, ok := tc.reorderArgsForSignature(sig, args); ok {
		return reordered
	}
	return args
}

func (tc *typeChecker) ensureWrapperPlans() map[callShape]*wrapperPlan {
	if tc.wrapperPlans == nil {
		tc.wrapperPlans = make(map[callShape]*wrapperPlan)
	}
	return tc.wrapperPlans
}

// wrapperShapeKey derives the cache key fingerprint for a call against sig:
// one marker per actual (named or positional) followed, when any argument is
// named, by one marker per formal (has a declared name or not). Two calls
// with the same fingerprint against the same sig bind identically regardless
// of the concrete argument types involved.
func wrapperShapeKey(sig *symbols.FunctionSignature, args []callArg) string {
	var b strings.Builder
	hasNamed := false
	for i, arg := range args {
		if i > 0 {
			b.WriteByte(',')
		}
		if arg.name != source.NoStringID {
			hasNamed = true
			b.WriteString("n")
		} else {
			b.WriteString("p")
		}
	}
	if hasNamed && sig != nil {
		b.WriteByte('|')
		for i, name := range sig.ParamNames {
			if i > 0 {
				b.WriteByte(',')
			}
			if name != source.NoStringID {
				b.WriteString("1")
			} else {
				b.WriteString("0")
			}
		}
	}
	return b.String()
}

// planCallWrapper builds, or returns the cached plan for, calling sym with
// raw (pre-reorder) args that have already been reordered into formal order
// as ordered. Callers use the plan to tell an argument that bound in plain
// order from one that required reordering, a default, or a coercion,
// without recomputing the formal mapping on every call that shares the
// shape.
func (tc *typeChecker) planCallWrapper(symID symbols.SymbolID, sig *symbols.FunctionSignature, rawArgs, ordered []callArg) *wrapperPlan {
	if sig == nil {
		return nil
	}
	cache := tc.ensureWrapperPlans()
	key := callShape{callee: symID, shape: wrapperShapeKey(sig, rawArgs)}
	if plan, ok := cache[key]; ok {
		return plan
	}

	rawIndex := make(map[source.StringID]int, len(rawArgs))
	for i, a := range rawArgs {
		if a.name != source.NoStringID {
			rawIndex[a.name] = i
		}
	}

	plan := &wrapperPlan{
		source: make([]int, len(ordered)),
		kinds:  make([]wrapperKind, len(ordered)),
	}
	for i, arg := range ordered {
		if arg.name == source.NoStringID && arg.ty == 0 && !arg.expr.IsValid() {
			// Zero-value slot left unfilled by reorderArgsForSignature: the
			// formal took its default.
			plan.source[i] = -1
			plan.kinds[i] = wrapperDefault
			continue
		}
		rawPos := i
		if arg.name != source.NoStringID {
			if pos, ok := rawIndex[arg.name]; ok {
				rawPos = pos
			}
		}
		plan.source[i] = rawPos
		if rawPos != i {
			plan.kinds[i] = wrapperOrder
		}
		if i < len(sig.Params) {
			expected := tc.typeFromKey(sig.Params[i])
			if expected != 0 && arg.ty != 0 && expected != arg.ty {
				plan.kinds[i] = wrapperCoercion
			}
		}
	}
	cache[key] = plan
	return plan
}
