package types

import (
	"fmt"

	"fortio.org/safecast"

	"rillc/internal/source"
)

// Builtins stores TypeIDs for the primitive types every context seeds on
// construction, mirroring the built-in-scope prelude the Scope Graph installs
// for names.
type Builtins struct {
	Invalid   TypeID
	Unknown   TypeID
	Erroneous TypeID
	Unit      TypeID
	Nothing   TypeID
	Bool      TypeID
	String    TypeID
	Int       TypeID
	Uint      TypeID
	Real      TypeID
	Imag      TypeID
	Complex   TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors. Two
// semantically equal types are pointer-equal by TypeID (spec §3 "Types are
// interned per context").
type Interner struct {
	types []Type
	index map[typeKey]TypeID

	// Strings resolves the StringIDs stashed in side-table Name fields back
	// to source text for diagnostics and Label; nil is valid, Label falls
	// back to "?" for any name it can't resolve.
	Strings *source.Interner

	builtins Builtins

	records []RecordInfo // KindRecord or KindClassBasic
	managed []ManagedInfo
	unions  []UnionInfo
	tuples  []TupleInfo
	enums   []EnumInfo
	fns     []FnInfo
	params  []TypeParamInfo
	domains []DomainInfo
	consts  []ConstInfo
	aliases []AliasInfo

	// arrayNominal/arrayFixedNominal/mapNominal cache the generic
	// declarations backing the Array<T>/ArrayFixed<T, N>/Map<K, V> builtins,
	// registered once by EnsureArrayNominal/EnsureArrayFixedNominal/
	// EnsureMapNominal and reused on every later call.
	arrayNominal      TypeID
	arrayElemParam    TypeID
	arrayFixedNominal TypeID
	arrayFixedParams  [2]TypeID
	mapNominal        TypeID
	mapParams         [2]TypeID
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index: make(map[typeKey]TypeID, 64),
	}
	// Reserve slot 0 in every side table as an invalid sentinel so
	// Payload==0 reliably means "no detail attached".
	in.records = append(in.records, RecordInfo{})
	in.managed = append(in.managed, ManagedInfo{})
	in.unions = append(in.unions, UnionInfo{})
	in.tuples = append(in.tuples, TupleInfo{})
	in.enums = append(in.enums, EnumInfo{})
	in.fns = append(in.fns, FnInfo{})
	in.params = append(in.params, TypeParamInfo{})
	in.domains = append(in.domains, DomainInfo{})
	in.consts = append(in.consts, ConstInfo{})
	in.aliases = append(in.aliases, AliasInfo{})

	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Unknown = in.Intern(Type{Kind: KindUnknown})
	in.builtins.Erroneous = in.Intern(Type{Kind: KindErroneous})
	in.builtins.Unit = in.Intern(Type{Kind: KindUnit})
	in.builtins.Nothing = in.Intern(Type{Kind: KindNothing})
	in.builtins.Bool = in.Intern(Type{Kind: KindBool})
	in.builtins.String = in.Intern(Type{Kind: KindString})
	in.builtins.Int = in.Intern(MakeInt(Width64))
	in.builtins.Uint = in.Intern(MakeUint(Width64))
	in.builtins.Real = in.Intern(MakeReal(Width64))
	in.builtins.Imag = in.Intern(MakeImag(Width64))
	in.builtins.Complex = in.Intern(MakeComplex(Width64))
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Intern ensures the provided descriptor has a stable TypeID, returning an
// existing one when the structural key already matches.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	key := typeKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to storage without consulting the map; used
// when the caller has already decided the descriptor must be fresh (e.g. a
// new nominal declaration, which is keyed by its side-table Payload and
// therefore never collides with a prior Intern call).
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("types: len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	in.index[typeKey(t)] = id
	return id
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if id == NoTypeID || int(id) >= len(in.types) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid; reserved for call sites that have
// already checked id.IsValid() via another query.
func (in *Interner) MustLookup(id TypeID) Type {
	t, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return t
}

// Len reports how many distinct types have been interned, including the
// invalid sentinel at index 0.
func (in *Interner) Len() int {
	return len(in.types)
}

// typeKey is the structural hash key behind Intern: two Type values with
// equal fields collide to the same TypeID regardless of construction order.
type typeKey struct {
	Kind    Kind
	Elem    TypeID
	Count   uint32
	Width   Width
	Mutable bool
	Payload uint32
}

func cloneTypeArgs(args []TypeID) []TypeID {
	if len(args) == 0 {
		return nil
	}
	out := make([]TypeID, len(args))
	copy(out, args)
	return out
}
