package hir

// rvalueExprKind reports whether e's kind always evaluates to a fresh
// value with no existing owner (a call result, or a literal aggregate)
// rather than a reference to an already-live local. Assigning a fresh
// rvalue never needs a copy-init: there is nothing to copy from, the
// value is already a temporary the destination can adopt directly.
func rvalueExprKind(e *Expr) bool {
	if e == nil {
		return false
	}
	switch e.Kind {
	case ExprCall, ExprStructLit, ExprArrayLit, ExprTupleLit, ExprLiteral:
		return true
	default:
		return false
	}
}

// NeedsCopyInit decides whether initializing dst from src requires a
// COPY_INIT action (a call into the type's `init=` before use) rather
// than a plain bitwise move/copy. It is false when:
//   - src is a fresh rvalue (nothing owns it yet, so it can be adopted
//     directly instead of copied then discarded), or
//   - mp records src's local as MoveCopy (bitwise copy is already
//     semantically correct — value types with no user `init=` override
//     never need the compiler-generated copy path), or
//   - mp records src's local as MoveAllowed and this use is its last
//     (the move plan already treats it as consumed, so a physical move
//     needs no separate initializer call).
//
// It is true when src names a live local whose type requires running a
// user-defined or compiler-generated `init=` to duplicate state (backing
// storage, reference counts) that a raw copy would alias instead of
// duplicate — MoveForbidden and MoveNeedsDrop are exactly the policies
// sema assigns to such types (see moveplan.go, moveInfoForType).
func NeedsCopyInit(mp *MovePlan, src *Expr) bool {
	if src == nil || rvalueExprKind(src) {
		return false
	}
	ref, ok := src.Data.(VarRefData)
	if !ok || src.Kind != ExprVarRef || !ref.SymbolID.IsValid() {
		return false
	}
	if mp == nil || mp.Local == nil {
		return false
	}
	info, ok := mp.Local[LocalID(ref.SymbolID)]
	if !ok {
		return false
	}
	switch info.Policy {
	case MoveForbidden, MoveNeedsDrop:
		return true
	default:
		return false
	}
}

// NeedsWriteBack decides whether assigning into an already-initialized
// destination local must first retire (deinit) the destination's
// previous value before the new one takes its place, instead of simply
// overwriting it. This mirrors NeedsCopyInit's type-policy check but
// applies to the destination rather than the source: a destination
// local whose type owns external state must release what it held before
// its bit pattern is replaced, or that state leaks.
func NeedsWriteBack(mp *MovePlan, dstSym LocalID, alreadyInit bool) bool {
	if !alreadyInit || mp == nil || mp.Local == nil {
		return false
	}
	info, ok := mp.Local[dstSym]
	if !ok {
		return false
	}
	switch info.Policy {
	case MoveForbidden, MoveNeedsDrop:
		return true
	default:
		return false
	}
}
