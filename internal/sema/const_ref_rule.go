package sema

import (
	"strings"

	"rillc/internal/diag"
	"rillc/internal/source"
	"rillc/internal/symbols"
	"rillc/internal/types"
)

// isConstRefParam reports whether a formal's TypeKey denotes a non-mutable
// reference ("&T", as opposed to "&mut T").
func isConstRefParam(key symbols.TypeKey) bool {
	s := string(key)
	return strings.HasPrefix(s, "&") && !strings.HasPrefix(s, "&mut ")
}

// enforceConstRefRule applies the const-ref formal rule after a candidate
// has already been chosen: a `const ref` (non-mutable reference) formal
// rejects any actual that would require a coercion or a temporary, even
// though ordinary reference matching (matchArgument) is lenient about both
// to let other overloads compete on cost. Applied post-disambiguation so the
// diagnostic points at the chosen candidate, not a discarded alternative.
func (tc *typeChecker) enforceConstRefRule(sym *symbols.Symbol, args []callArg) {
	if sym == nil || sym.Signature == nil || tc.types == nil {
		return
	}
	sig := sym.Signature

	hasNamed := false
	for _, arg := range args {
		if arg.name != source.NoStringID {
			hasNamed = true
			break
		}
	}
	ordered := args
	if hasNamed {
		reordered, ok := tc.reorderArgsForSignature(sig, args)
		if !ok {
			return
		}
		ordered = reordered
	}

	variadicIndex := -1
	for i, v := range sig.Variadic {
		if v {
			variadicIndex = i
			break
		}
	}

	for i, arg := range ordered {
		paramIndex := i
		if variadicIndex >= 0 && i >= variadicIndex {
			paramIndex = variadicIndex
		}
		if paramIndex >= len(sig.Params) || !isConstRefParam(sig.Params[paramIndex]) {
			continue
		}
		expectedType := tc.typeFromKey(sig.Params[paramIndex])
		if expectedType == types.NoTypeID || arg.ty == types.NoTypeID {
			continue
		}
		expInfo, ok := tc.types.Lookup(tc.resolveAlias(expectedType))
		if !ok || expInfo.Kind != types.KindReference {
			continue
		}
		actual := tc.resolveAlias(arg.ty)
		elemFrom := actual
		if actInfo, okAct := tc.types.Lookup(actual); okAct && (actInfo.Kind == types.KindReference || actInfo.Kind == types.KindOwn) {
			elemFrom = actInfo.Elem
		} else if arg.expr.IsValid() && !tc.isAddressableExpr(arg.expr) {
			tc.report(diag.SemaConstRefCoercion, tc.exprSpan(arg.expr),
				"const ref formal cannot bind temporary value of type %s", tc.typeLabel(actual))
			continue
		}
		if canPass, kind := tc.types.CanPass(elemFrom, expInfo.Elem, true); !canPass || (kind != types.ConvIdentity && kind != types.ConvSubtype) {
			tc.report(diag.SemaConstRefCoercion, tc.exprSpan(arg.expr),
				"const ref formal cannot bind %s via coercion from %s", tc.typeLabel(expInfo.Elem), tc.typeLabel(actual))
		}
	}
}
