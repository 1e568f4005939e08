package types

import (
	"fmt"

	"fortio.org/safecast"

	"rillc/internal/source"
)

// ArrayNominalType returns the generic Array<T> declaration registered by
// EnsureArrayNominal, or NoTypeID if it has not been registered yet.
func (in *Interner) ArrayNominalType() TypeID {
	if in == nil {
		return NoTypeID
	}
	return in.arrayNominal
}

// EnsureArrayNominal registers, on first call, the generic nominal record
// backing the language's growable-array builtin and returns its declaration
// TypeID plus its element parameter's TypeID. Later calls are idempotent and
// return the same pair.
func (in *Interner) EnsureArrayNominal(name, paramName source.StringID, decl source.Span, owner uint32) (TypeID, TypeID) {
	if in == nil {
		return NoTypeID, NoTypeID
	}
	if in.arrayNominal != NoTypeID {
		return in.arrayNominal, in.arrayElemParam
	}
	base := in.RegisterRecord(name, decl)
	param := in.RegisterTypeParam(paramName, owner, 0, false, NoTypeID)
	in.SetRecordTypeParams(base, []TypeID{param})
	in.arrayNominal = base
	in.arrayElemParam = param
	return base, param
}

// EnsureArrayFixedNominal registers, on first call, the generic nominal
// record backing the language's fixed-length-array builtin (element type T,
// compile-time length N) and returns its declaration TypeID plus the TypeIDs
// of its two parameter placeholders. Later calls are idempotent.
func (in *Interner) EnsureArrayFixedNominal(name, elemParam, lenParam source.StringID, decl source.Span, owner uint32, lenConstType TypeID) (TypeID, [2]TypeID) {
	if in == nil {
		return NoTypeID, [2]TypeID{}
	}
	if in.arrayFixedNominal != NoTypeID {
		return in.arrayFixedNominal, in.arrayFixedParams
	}
	base := in.RegisterRecord(name, decl)
	elem := in.RegisterTypeParam(elemParam, owner, 0, false, NoTypeID)
	length := in.RegisterTypeParam(lenParam, owner, 1, true, lenConstType)
	params := [2]TypeID{elem, length}
	in.SetRecordTypeParams(base, []TypeID{elem, length})
	in.arrayFixedNominal = base
	in.arrayFixedParams = params
	return base, params
}

// EnsureMapNominal registers, on first call, the generic nominal record
// backing the language's Map<K, V> builtin and returns its declaration
// TypeID plus the TypeIDs of its key/value parameter placeholders. Later
// calls are idempotent.
func (in *Interner) EnsureMapNominal(name, keyParam, valueParam source.StringID, decl source.Span, owner uint32) (TypeID, [2]TypeID) {
	if in == nil {
		return NoTypeID, [2]TypeID{}
	}
	if in.mapNominal != NoTypeID {
		return in.mapNominal, in.mapParams
	}
	base := in.RegisterRecord(name, decl)
	key := in.RegisterTypeParam(keyParam, owner, 0, false, NoTypeID)
	value := in.RegisterTypeParam(valueParam, owner, 1, false, NoTypeID)
	params := [2]TypeID{key, value}
	in.SetRecordTypeParams(base, []TypeID{key, value})
	in.mapNominal = base
	in.mapParams = params
	return base, params
}

// ArrayInfo reports the element type of id if id is an instantiation of the
// Array<T> builtin.
func (in *Interner) ArrayInfo(id TypeID) (TypeID, bool) {
	if in == nil || id == NoTypeID || in.arrayNominal == NoTypeID {
		return NoTypeID, false
	}
	info, ok := in.RecordInfo(id)
	if !ok || info == nil || len(info.TypeArgs) != 1 {
		return NoTypeID, false
	}
	if in.InstantiationRoot(id) != in.arrayNominal {
		return NoTypeID, false
	}
	return info.TypeArgs[0], true
}

// ArrayFixedInfo reports the element type and compile-time length of id if
// id is an instantiation of the ArrayFixed<T, N> builtin.
func (in *Interner) ArrayFixedInfo(id TypeID) (TypeID, uint32, bool) {
	if in == nil || id == NoTypeID || in.arrayFixedNominal == NoTypeID {
		return NoTypeID, 0, false
	}
	info, ok := in.RecordInfo(id)
	if !ok || info == nil || len(info.TypeArgs) == 0 {
		return NoTypeID, 0, false
	}
	if in.InstantiationRoot(id) != in.arrayFixedNominal {
		return NoTypeID, 0, false
	}
	elem := info.TypeArgs[0]
	if len(info.ValueArgs) > 0 {
		length, err := safecast.Conv[uint32](info.ValueArgs[0])
		if err != nil {
			panic(fmt.Errorf("types: array length overflow: %w", err))
		}
		return elem, length, true
	}
	if len(info.TypeArgs) > 1 {
		if lenType, ok := in.Lookup(info.TypeArgs[1]); ok && lenType.Kind == KindConst {
			return elem, lenType.Count, true
		}
	}
	return elem, 0, true
}

// MapInfo reports the key and value types of id if id is an instantiation of
// the Map<K, V> builtin.
func (in *Interner) MapInfo(id TypeID) (TypeID, TypeID, bool) {
	if in == nil || id == NoTypeID || in.mapNominal == NoTypeID {
		return NoTypeID, NoTypeID, false
	}
	info, ok := in.RecordInfo(id)
	if !ok || info == nil || len(info.TypeArgs) != 2 {
		return NoTypeID, NoTypeID, false
	}
	if in.InstantiationRoot(id) != in.mapNominal {
		return NoTypeID, NoTypeID, false
	}
	return info.TypeArgs[0], info.TypeArgs[1], true
}
