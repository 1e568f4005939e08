package types

// Match reports whether a and b are structurally unifiable, extending
// assumptions with any generic-parameter bindings discovered along the way
// (spec §4.3 `match(a, b, assumptions) → bool`). assumptions maps a
// KindGenericParam TypeID to the concrete TypeID it has been bound to so
// far within this match; Match mutates it in place.
func (in *Interner) Match(a, b TypeID, assumptions map[TypeID]TypeID) bool {
	if a == b {
		return true
	}
	if a == NoTypeID || b == NoTypeID {
		return false
	}
	at, ok := in.Lookup(a)
	if !ok {
		return false
	}
	bt, ok := in.Lookup(b)
	if !ok {
		return false
	}

	if at.Kind == KindGenericParam {
		return in.bindAssumption(a, b, assumptions)
	}
	if bt.Kind == KindGenericParam {
		return in.bindAssumption(b, a, assumptions)
	}

	if at.Kind != bt.Kind {
		return false
	}

	switch at.Kind {
	case KindInt, KindUint, KindReal, KindImag, KindComplex:
		return at.Width == bt.Width || at.Width == WidthAny || bt.Width == WidthAny
	case KindArray:
		if at.Count != bt.Count && at.Count != ArrayDynamicLength && bt.Count != ArrayDynamicLength {
			return false
		}
		return in.Match(at.Elem, bt.Elem, assumptions)
	case KindPointer:
		return in.Match(at.Elem, bt.Elem, assumptions)
	case KindReference:
		return at.Mutable == bt.Mutable && in.Match(at.Elem, bt.Elem, assumptions)
	case KindOwn:
		return in.Match(at.Elem, bt.Elem, assumptions)
	case KindManaged:
		return in.matchManaged(a, b, assumptions)
	case KindRecord, KindClassBasic:
		return in.matchRecord(a, b, assumptions)
	case KindUnion:
		return in.matchUnion(a, b, assumptions)
	case KindEnum:
		return in.matchEnum(a, b, assumptions)
	case KindTuple:
		return in.matchTuple(a, b, assumptions)
	case KindFn:
		return in.matchFn(a, b, assumptions)
	case KindDomain:
		return in.matchDomain(a, b, assumptions)
	default:
		// KindUnit, KindNothing, KindBool, KindString, KindUnknown,
		// KindErroneous, KindInvalid, KindConst: equal Kind already checked
		// and these carry no structural detail Match needs to descend into.
		return true
	}
}

func (in *Interner) bindAssumption(param, concrete TypeID, assumptions map[TypeID]TypeID) bool {
	if assumptions == nil {
		return true
	}
	if bound, ok := assumptions[param]; ok {
		return bound == concrete || in.Match(bound, concrete, assumptions)
	}
	assumptions[param] = concrete
	return true
}

func (in *Interner) matchManaged(a, b TypeID, assumptions map[TypeID]TypeID) bool {
	ai, ok := in.ManagedInfo(a)
	if !ok {
		return false
	}
	bi, ok := in.ManagedInfo(b)
	if !ok {
		return false
	}
	if ai.Management != bi.Management || ai.Nilability != bi.Nilability {
		return false
	}
	return in.Match(ai.Class, bi.Class, assumptions)
}

func (in *Interner) matchRecord(a, b TypeID, assumptions map[TypeID]TypeID) bool {
	ai, ok := in.RecordInfo(a)
	if !ok {
		return false
	}
	bi, ok := in.RecordInfo(b)
	if !ok {
		return false
	}
	root := in.InstantiationRoot(a)
	if root != in.InstantiationRoot(b) {
		return false
	}
	if len(ai.TypeArgs) != len(bi.TypeArgs) {
		return false
	}
	for i := range ai.TypeArgs {
		if !in.Match(ai.TypeArgs[i], bi.TypeArgs[i], assumptions) {
			return false
		}
	}
	return true
}

func (in *Interner) matchUnion(a, b TypeID, assumptions map[TypeID]TypeID) bool {
	ai, ok := in.UnionInfo(a)
	if !ok {
		return false
	}
	bi, ok := in.UnionInfo(b)
	if !ok {
		return false
	}
	if len(ai.TypeArgs) != len(bi.TypeArgs) {
		return false
	}
	for i := range ai.TypeArgs {
		if !in.Match(ai.TypeArgs[i], bi.TypeArgs[i], assumptions) {
			return false
		}
	}
	return true
}

func (in *Interner) matchEnum(a, b TypeID, assumptions map[TypeID]TypeID) bool {
	ai, ok := in.EnumInfo(a)
	if !ok {
		return false
	}
	bi, ok := in.EnumInfo(b)
	if !ok {
		return false
	}
	if len(ai.TypeArgs) != len(bi.TypeArgs) {
		return false
	}
	for i := range ai.TypeArgs {
		if !in.Match(ai.TypeArgs[i], bi.TypeArgs[i], assumptions) {
			return false
		}
	}
	return true
}

func (in *Interner) matchTuple(a, b TypeID, assumptions map[TypeID]TypeID) bool {
	ai, ok := in.TupleInfo(a)
	if !ok {
		return false
	}
	bi, ok := in.TupleInfo(b)
	if !ok {
		return false
	}
	if len(ai.Elems) != len(bi.Elems) {
		return false
	}
	for i := range ai.Elems {
		if !in.Match(ai.Elems[i], bi.Elems[i], assumptions) {
			return false
		}
	}
	return true
}

func (in *Interner) matchFn(a, b TypeID, assumptions map[TypeID]TypeID) bool {
	ai, ok := in.FnInfo(a)
	if !ok {
		return false
	}
	bi, ok := in.FnInfo(b)
	if !ok {
		return false
	}
	if len(ai.Params) != len(bi.Params) {
		return false
	}
	for i := range ai.Params {
		if !in.Match(ai.Params[i].Type, bi.Params[i].Type, assumptions) {
			return false
		}
	}
	return in.Match(ai.Result, bi.Result, assumptions)
}

func (in *Interner) matchDomain(a, b TypeID, assumptions map[TypeID]TypeID) bool {
	ai, ok := in.DomainInfo(a)
	if !ok {
		return false
	}
	bi, ok := in.DomainInfo(b)
	if !ok {
		return false
	}
	if ai.Rank != bi.Rank {
		return false
	}
	if ai.IndexType == NoTypeID || bi.IndexType == NoTypeID {
		return ai.IndexType == bi.IndexType
	}
	return in.Match(ai.IndexType, bi.IndexType, assumptions)
}
