package types

// ConversionKind is the closed set of ways an actual value of one type may
// be passed where another type is expected.
type ConversionKind uint8

const (
	ConvNone ConversionKind = iota
	ConvIdentity
	ConvSubtype
	ConvNumericWidening
	ConvNumericNarrowing
	ConvParamNarrowing
	ConvBorrowing
	ConvToNilable
	ConvInstantiation
	ConvInitEquals // the `init=` copy-initializer conversion
)

func (c ConversionKind) String() string {
	switch c {
	case ConvIdentity:
		return "identity"
	case ConvSubtype:
		return "subtype"
	case ConvNumericWidening:
		return "numeric-widening"
	case ConvNumericNarrowing:
		return "numeric-narrowing"
	case ConvParamNarrowing:
		return "param-narrowing"
	case ConvBorrowing:
		return "borrowing"
	case ConvToNilable:
		return "to-nilable"
	case ConvInstantiation:
		return "instantiation"
	case ConvInitEquals:
		return "init="
	default:
		return "none"
	}
}

// CanPass reports whether a value of type from may be passed where to is
// expected, and under which conversion kind. constRef, when set, applies the
// `const ref` formal rule: it rejects any actual that would require a
// coercion or temporary, so only ConvIdentity and ConvSubtype (which bind the
// base-class sub-object directly, no copy) survive.
func (in *Interner) CanPass(from, to TypeID, constRef bool) (bool, ConversionKind) {
	if from == to {
		return true, ConvIdentity
	}
	if from == NoTypeID || to == NoTypeID {
		return false, ConvNone
	}
	ft, ok := in.Lookup(from)
	if !ok {
		return false, ConvNone
	}
	tt, ok := in.Lookup(to)
	if !ok {
		return false, ConvNone
	}

	if ft.Kind == KindErroneous || tt.Kind == KindErroneous {
		return true, ConvIdentity // already diagnosed; don't cascade further errors
	}

	if kind, ok := in.canPassNumeric(ft, tt); ok {
		if constRef && kind != ConvIdentity {
			return false, ConvNone
		}
		return true, kind
	}

	if (ft.Kind == KindRecord || ft.Kind == KindClassBasic) && ft.Kind == tt.Kind {
		if in.IsSubclassOf(from, to) {
			return true, ConvSubtype
		}
	}

	if ft.Kind == KindManaged && tt.Kind == KindManaged {
		if kind, ok := in.canPassManaged(from, to); ok {
			if constRef && kind != ConvIdentity {
				return false, ConvNone
			}
			return true, kind
		}
	}

	if ft.Kind == KindReference && tt.Kind == KindReference {
		if ft.Elem == tt.Elem && ft.Mutable == tt.Mutable {
			return true, ConvIdentity
		}
		if ft.Elem == tt.Elem && ft.Mutable && !tt.Mutable {
			return true, ConvSubtype // mutable ref passes where a const ref is expected
		}
	}

	if (ft.Kind == KindRecord || ft.Kind == KindClassBasic || ft.Kind == KindUnion) &&
		ft.Kind == tt.Kind && ft.Payload != tt.Payload {
		if constRef {
			return false, ConvNone
		}
		if in.sameGenericInstantiationFamily(from, to) {
			return true, ConvInstantiation
		}
	}

	if constRef {
		return false, ConvNone
	}

	return false, ConvNone
}

func (in *Interner) canPassNumeric(ft, tt Type) (ConversionKind, bool) {
	if ft.Kind != tt.Kind {
		return ConvNone, false
	}
	switch ft.Kind {
	case KindInt, KindUint, KindReal, KindImag, KindComplex:
	default:
		return ConvNone, false
	}
	if ft.Width == tt.Width {
		return ConvIdentity, true
	}
	if ft.Width == WidthAny || tt.Width == WidthAny {
		return ConvIdentity, true
	}
	if ft.Width < tt.Width {
		return ConvNumericWidening, true
	}
	return ConvNumericNarrowing, true
}

func (in *Interner) canPassManaged(from, to TypeID) (ConversionKind, bool) {
	fi, ok := in.ManagedInfo(from)
	if !ok {
		return ConvNone, false
	}
	ti, ok := in.ManagedInfo(to)
	if !ok {
		return ConvNone, false
	}
	if fi.Class != ti.Class && !in.IsSubclassOf(fi.Class, ti.Class) {
		return ConvNone, false
	}

	// (iii) non-nilable -> nilable is allowed; nilable -> non-nilable is not
	// a coercion CanPass performs (it requires an explicit cast).
	if fi.Nilability == Nilable && ti.Nilability == NonNilable {
		return ConvNone, false
	}

	switch {
	case fi.Management == ti.Management:
		if fi.Class == ti.Class {
			if fi.Nilability == ti.Nilability {
				return ConvIdentity, true
			}
			return ConvToNilable, true
		}
		return ConvSubtype, true
	case ti.Management == ManagementBorrowed:
		// (ii) owned/shared -> borrowed is always a plain borrow, never an
		// ownership transfer.
		return ConvBorrowing, true
	default:
		return ConvNone, false
	}
}

// sameGenericInstantiationFamily reports whether from and to are both
// instantiations of the same generic declaration — used to allow passing one
// instantiation where the generic-from root is expected in an uninstantiated
// context (the Generic Instantiator re-derives the concrete match).
func (in *Interner) sameGenericInstantiationFamily(from, to TypeID) bool {
	var fromRoot, toRoot TypeID
	switch {
	case in.recordInfo(from) != nil:
		fromRoot, toRoot = in.InstantiationRoot(from), in.InstantiationRoot(to)
	default:
		return false
	}
	return fromRoot != NoTypeID && fromRoot == toRoot
}
