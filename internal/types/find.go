package types

import "slices"

// FindRecordInstance looks up an already-registered instantiation of the
// generic record/class genericFrom for the given type/value arguments,
// returning NoTypeID if none exists yet. The Generic Instantiator consults
// this before cloning, so repeated instantiations with the same arguments
// intern to the same TypeID (spec §4.6 "memoized by substitution key").
func (in *Interner) FindRecordInstance(genericFrom TypeID, typeArgs []TypeID, valueArgs []uint64) TypeID {
	if in == nil || genericFrom == NoTypeID {
		return NoTypeID
	}
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind != KindRecord && tt.Kind != KindClassBasic {
			continue
		}
		if int(tt.Payload) >= len(in.records) {
			continue
		}
		info := in.records[tt.Payload]
		if info.GenericFrom != genericFrom {
			continue
		}
		if slices.Equal(info.TypeArgs, typeArgs) && slices.Equal(info.ValueArgs, valueArgs) {
			return id
		}
	}
	return NoTypeID
}

// FindUnionInstance is FindRecordInstance's counterpart for unions.
func (in *Interner) FindUnionInstance(genericFrom TypeID, typeArgs []TypeID) TypeID {
	if in == nil || genericFrom == NoTypeID {
		return NoTypeID
	}
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind != KindUnion || int(tt.Payload) >= len(in.unions) {
			continue
		}
		info := in.unions[tt.Payload]
		if info.GenericFrom == genericFrom && slices.Equal(info.TypeArgs, typeArgs) {
			return id
		}
	}
	return NoTypeID
}

// FindEnumInstance is FindRecordInstance's counterpart for enums.
func (in *Interner) FindEnumInstance(genericFrom TypeID, typeArgs []TypeID) TypeID {
	if in == nil || genericFrom == NoTypeID {
		return NoTypeID
	}
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind != KindEnum || int(tt.Payload) >= len(in.enums) {
			continue
		}
		info := in.enums[tt.Payload]
		if info.GenericFrom == genericFrom && slices.Equal(info.TypeArgs, typeArgs) {
			return id
		}
	}
	return NoTypeID
}
