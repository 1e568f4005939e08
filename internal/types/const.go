package types

import (
	"fmt"

	"fortio.org/safecast"

	"rillc/internal/source"
)

// ConstKind distinguishes the representation a compile-time constant value
// is stored under.
type ConstKind uint8

const (
	ConstKindInt ConstKind = iota
	ConstKindUint
	ConstKindBool
	ConstKindString
)

// ConstInfo wraps a compile-time constant value used as a type argument
// (spec §3 Type: "KindConst wraps a compile-time constant value"), e.g. the
// `param n: int` argument to a fixed-size array or a rank-parameterized
// domain declaration.
type ConstInfo struct {
	Decl     source.Span
	ValueOf  TypeID // the const's own type, e.g. int(64)
	Kind     ConstKind
	IntValue int64
	StrValue source.StringID
}

// MakeConstUint describes a small unsigned compile-time constant used as a
// type argument, e.g. a fixed array's length. Stored inline in Count rather
// than through the ConstInfo side table.
func MakeConstUint(value uint32) Type {
	return Type{Kind: KindConst, Count: value}
}

// RegisterConst interns a compile-time constant value as a KindConst type,
// deduplicating identical (ValueOf, Kind, value) triples.
func (in *Interner) RegisterConst(info ConstInfo) TypeID {
	if in != nil {
		for id := TypeID(1); int(id) < len(in.types); id++ {
			tt := in.types[id]
			if tt.Kind != KindConst || int(tt.Payload) >= len(in.consts) {
				continue
			}
			existing := in.consts[tt.Payload]
			if constInfoEqual(existing, info) {
				return id
			}
		}
	}
	slot := in.appendConstInfo(info)
	return in.internRaw(Type{Kind: KindConst, Elem: info.ValueOf, Payload: slot})
}

// ConstInfo returns metadata for the provided constant TypeID.
func (in *Interner) ConstInfo(id TypeID) (*ConstInfo, bool) {
	if id == NoTypeID {
		return nil, false
	}
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindConst {
		return nil, false
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.consts) {
		return nil, false
	}
	return &in.consts[tt.Payload], true
}

func constInfoEqual(a, b ConstInfo) bool {
	return a.ValueOf == b.ValueOf && a.Kind == b.Kind && a.IntValue == b.IntValue && a.StrValue == b.StrValue
}

func (in *Interner) appendConstInfo(info ConstInfo) uint32 {
	in.consts = append(in.consts, info)
	slot, err := safecast.Conv[uint32](len(in.consts) - 1)
	if err != nil {
		panic(fmt.Errorf("types: const info overflow: %w", err))
	}
	return slot
}
