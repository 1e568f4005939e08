package types

// Substitute rewrites every generic-parameter reference reachable from t
// using subs (generic-param TypeID -> concrete TypeID), reconstructing
// composite shapes through the ordinary interning constructors so the result
// is itself a stable, structurally-keyed TypeID (spec §3 Type
// "substitute(type, subs) -> type-ref").
//
// For nominal composites (record/class, union, enum) Substitute only
// resolves to an already-registered instantiation (via the Find*Instance
// family) — producing a *new* nominal instantiation requires cloning the
// declaration's AST subtree, which is the Generic Instantiator's job (spec
// §4.6); Substitute on a nominal type with no matching instantiation yet
// returns t unchanged so the caller can detect the miss and drive
// instantiation itself.
func (in *Interner) Substitute(t TypeID, subs map[TypeID]TypeID) TypeID {
	if t == NoTypeID || len(subs) == 0 {
		return t
	}
	tt, ok := in.Lookup(t)
	if !ok {
		return t
	}

	if tt.Kind == KindGenericParam {
		if concrete, ok := subs[t]; ok {
			return concrete
		}
		return t
	}

	switch tt.Kind {
	case KindArray:
		elem := in.Substitute(tt.Elem, subs)
		if elem == tt.Elem {
			return t
		}
		return in.Intern(MakeArray(elem, tt.Count))
	case KindPointer:
		elem := in.Substitute(tt.Elem, subs)
		if elem == tt.Elem {
			return t
		}
		return in.Intern(MakePointer(elem))
	case KindReference:
		elem := in.Substitute(tt.Elem, subs)
		if elem == tt.Elem {
			return t
		}
		return in.Intern(MakeReference(elem, tt.Mutable))
	case KindOwn:
		elem := in.Substitute(tt.Elem, subs)
		if elem == tt.Elem {
			return t
		}
		return in.Intern(MakeOwn(elem))
	case KindManaged:
		return in.substituteManaged(t, subs)
	case KindTuple:
		return in.substituteTuple(t, subs)
	case KindFn:
		return in.substituteFn(t, subs)
	case KindDomain:
		return in.substituteDomain(t, subs)
	case KindRecord, KindClassBasic:
		return in.substituteRecord(t, subs)
	case KindUnion:
		return in.substituteUnion(t, subs)
	case KindEnum:
		return in.substituteEnum(t, subs)
	default:
		return t
	}
}

// SubstituteAll applies Substitute across every type in ts, returning a
// fresh slice only when at least one element actually changed.
func (in *Interner) SubstituteAll(ts []TypeID, subs map[TypeID]TypeID) []TypeID {
	if len(ts) == 0 {
		return nil
	}
	out := make([]TypeID, len(ts))
	changed := false
	for i, t := range ts {
		out[i] = in.Substitute(t, subs)
		if out[i] != t {
			changed = true
		}
	}
	if !changed {
		return ts
	}
	return out
}

func (in *Interner) substituteManaged(t TypeID, subs map[TypeID]TypeID) TypeID {
	info, ok := in.ManagedInfo(t)
	if !ok {
		return t
	}
	class := in.Substitute(info.Class, subs)
	if class == info.Class {
		return t
	}
	return in.RegisterManaged(class, info.Management, info.Nilability)
}

func (in *Interner) substituteTuple(t TypeID, subs map[TypeID]TypeID) TypeID {
	info, ok := in.TupleInfo(t)
	if !ok {
		return t
	}
	elems := in.SubstituteAll(info.Elems, subs)
	if sliceIdentical(elems, info.Elems) {
		return t
	}
	return in.RegisterTuple(elems)
}

func (in *Interner) substituteFn(t TypeID, subs map[TypeID]TypeID) TypeID {
	info, ok := in.FnInfo(t)
	if !ok {
		return t
	}
	changed := false
	params := make([]FnParam, len(info.Params))
	for i, p := range info.Params {
		p.Type = in.Substitute(p.Type, subs)
		if p.Type != info.Params[i].Type {
			changed = true
		}
		params[i] = p
	}
	result := in.Substitute(info.Result, subs)
	if result != info.Result {
		changed = true
	}
	if !changed {
		return t
	}
	return in.RegisterFnDetailed(params, result, info.Where)
}

func (in *Interner) substituteDomain(t TypeID, subs map[TypeID]TypeID) TypeID {
	info, ok := in.DomainInfo(t)
	if !ok || info.IndexType == NoTypeID {
		return t
	}
	idx := in.Substitute(info.IndexType, subs)
	if idx == info.IndexType {
		return t
	}
	return in.RegisterDomain(info.Decl, idx, info.Rank, info.Resizable)
}

func (in *Interner) substituteRecord(t TypeID, subs map[TypeID]TypeID) TypeID {
	info, ok := in.RecordInfo(t)
	if !ok || len(info.TypeArgs) == 0 {
		return t
	}
	args := in.SubstituteAll(info.TypeArgs, subs)
	if sliceIdentical(args, info.TypeArgs) {
		return t
	}
	root := in.InstantiationRoot(t)
	if found := in.FindRecordInstance(root, args, info.ValueArgs); found != NoTypeID {
		return found
	}
	return t
}

func (in *Interner) substituteUnion(t TypeID, subs map[TypeID]TypeID) TypeID {
	info, ok := in.UnionInfo(t)
	if !ok || len(info.TypeArgs) == 0 {
		return t
	}
	args := in.SubstituteAll(info.TypeArgs, subs)
	if sliceIdentical(args, info.TypeArgs) {
		return t
	}
	root := info.GenericFrom
	if root == NoTypeID {
		root = t
	}
	if found := in.FindUnionInstance(root, args); found != NoTypeID {
		return found
	}
	return t
}

func (in *Interner) substituteEnum(t TypeID, subs map[TypeID]TypeID) TypeID {
	info, ok := in.EnumInfo(t)
	if !ok || len(info.TypeArgs) == 0 {
		return t
	}
	args := in.SubstituteAll(info.TypeArgs, subs)
	if sliceIdentical(args, info.TypeArgs) {
		return t
	}
	root := info.GenericFrom
	if root == NoTypeID {
		root = t
	}
	if found := in.FindEnumInstance(root, args); found != NoTypeID {
		return found
	}
	return t
}

func sliceIdentical(a, b []TypeID) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
