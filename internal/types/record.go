package types

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"rillc/internal/source"
)

// FieldIntent captures how a record/class field participates in the
// compiler-generated initializer (spec §4.7 "Compiler-generated methods").
type FieldIntent uint8

const (
	FieldIntentValue FieldIntent = iota // plain value field: `in` formal
	FieldIntentType                     // `type` field (generic type member)
	FieldIntentParam                    // `param` field (compile-time constant member)
)

// RecordField describes a single field inside a record or class.
type RecordField struct {
	Name        source.StringID
	Type        TypeID
	Intent      FieldIntent
	HasDefault  bool
	DefaultExpr uint64 // opaque AST handle for the default-value expression, 0 if none
}

// RecordInfo stores metadata shared by records and basic classes. Kind on
// the owning Type distinguishes KindRecord (value semantics) from
// KindClassBasic (reference semantics, may set BaseClass).
type RecordInfo struct {
	Name   source.StringID
	Decl   source.Span
	Fields []RecordField

	// BaseClass is the direct superclass for KindClassBasic types; NoTypeID
	// for records and for classes with no explicit parent.
	BaseClass TypeID

	// TypeParams are the generic type-variable placeholders in declaration
	// order (KindGenericParam TypeIDs); TypeArgs are the concrete
	// substitutions once instantiated, parallel to TypeParams.
	TypeParams []TypeID
	TypeArgs   []TypeID
	ValueArgs  []uint64 // compile-time param-value substitutions, parallel position to TypeArgs entries that are const params

	// GenericFrom points back at the fully generic declaration this
	// RecordInfo was instantiated from; NoTypeID for the generic root
	// itself. Spec §3 invariant: "instantiatedFrom chains terminate at a
	// fully generic root" — enforced by InstantiationRoot below, which
	// follows GenericFrom until it is NoTypeID.
	GenericFrom TypeID
}

// IsGeneric reports whether the record/class still has unsubstituted type
// parameters.
func (r *RecordInfo) IsGeneric() bool {
	return len(r.TypeParams) > 0 && len(r.TypeArgs) == 0
}

// RegisterRecord allocates a nominal record (value-semantics) type slot.
func (in *Interner) RegisterRecord(name source.StringID, decl source.Span) TypeID {
	slot := in.appendRecordInfo(RecordInfo{Name: name, Decl: decl})
	return in.internRaw(Type{Kind: KindRecord, Payload: slot})
}

// RegisterClass allocates a nominal basic-class (reference-semantics) type
// slot, optionally inheriting from base.
func (in *Interner) RegisterClass(name source.StringID, decl source.Span, base TypeID) TypeID {
	slot := in.appendRecordInfo(RecordInfo{Name: name, Decl: decl, BaseClass: base})
	return in.internRaw(Type{Kind: KindClassBasic, Payload: slot})
}

// RegisterInstance allocates an instantiation of a generic record/class,
// recording the substitution back to genericFrom.
func (in *Interner) RegisterInstance(kind Kind, genericFrom TypeID, name source.StringID, decl source.Span, typeArgs []TypeID, valueArgs []uint64) TypeID {
	slot := in.appendRecordInfo(RecordInfo{
		Name:        name,
		Decl:        decl,
		TypeArgs:    typeArgs,
		ValueArgs:   valueArgs,
		GenericFrom: genericFrom,
	})
	return in.internRaw(Type{Kind: kind, Payload: slot})
}

// SetRecordFields stores resolved field descriptors.
func (in *Interner) SetRecordFields(id TypeID, fields []RecordField) {
	info := in.recordInfo(id)
	if info == nil {
		return
	}
	info.Fields = slices.Clone(fields)
}

// SetRecordTypeParams stores the generic parameter placeholders for a
// still-generic record/class declaration.
func (in *Interner) SetRecordTypeParams(id TypeID, params []TypeID) {
	info := in.recordInfo(id)
	if info == nil {
		return
	}
	info.TypeParams = cloneTypeArgs(params)
}

// SetStructTypeParams is an alias for SetRecordTypeParams, see StructInfo's doc.
func (in *Interner) SetStructTypeParams(id TypeID, params []TypeID) {
	in.SetRecordTypeParams(id, params)
}

// RecordInfo returns metadata for the provided record/class TypeID.
func (in *Interner) RecordInfo(id TypeID) (*RecordInfo, bool) {
	info := in.recordInfo(id)
	if info == nil {
		return nil, false
	}
	return info, true
}

// StructInfo is an alias for RecordInfo kept for the many call sites across
// sema, mono, the backends, and the IRs that were written before records and
// classes were unified under one metadata type.
type StructInfo = RecordInfo

// StructField is an alias for RecordField, see StructInfo's doc.
type StructField = RecordField

// StructInfo is an alias for (*Interner).RecordInfo, see StructInfo's doc.
func (in *Interner) StructInfo(id TypeID) (*StructInfo, bool) {
	return in.RecordInfo(id)
}

// RegisterStructInstance is RegisterInstance specialized to KindRecord,
// kept for call sites written before records/classes were unified.
func (in *Interner) RegisterStructInstance(genericFrom TypeID, name source.StringID, decl source.Span, typeArgs []TypeID) TypeID {
	return in.RegisterInstance(KindRecord, genericFrom, name, decl, typeArgs, nil)
}

// RegisterStructInstanceWithValues is RegisterStructInstance plus
// compile-time param-value substitutions (e.g. ArrayFixed's length).
func (in *Interner) RegisterStructInstanceWithValues(genericFrom TypeID, name source.StringID, decl source.Span, typeArgs []TypeID, valueArgs []uint64) TypeID {
	return in.RegisterInstance(KindRecord, genericFrom, name, decl, typeArgs, valueArgs)
}

// FindStructInstance is FindRecordInstance under the StructInfo-era name.
func (in *Interner) FindStructInstance(genericFrom TypeID, typeArgs []TypeID, valueArgs []uint64) TypeID {
	return in.FindRecordInstance(genericFrom, typeArgs, valueArgs)
}

// StructFields returns the fields declared directly on id, without walking
// base-class inheritance (see Fields for the inheriting variant).
func (in *Interner) StructFields(id TypeID) []RecordField {
	info := in.recordInfo(id)
	if info == nil {
		return nil
	}
	return slices.Clone(info.Fields)
}

// SetStructFields is an alias for SetRecordFields, see StructInfo's doc.
func (in *Interner) SetStructFields(id TypeID, fields []RecordField) {
	in.SetRecordFields(id, fields)
}

// StructValueArgs returns the compile-time param-value substitutions
// recorded for a struct/record instantiation.
func (in *Interner) StructValueArgs(id TypeID) []uint64 {
	info := in.recordInfo(id)
	if info == nil {
		return nil
	}
	return append([]uint64(nil), info.ValueArgs...)
}

// SetStructValueArgs stores compile-time param-value substitutions on an
// already-registered struct/record instantiation.
func (in *Interner) SetStructValueArgs(id TypeID, values []uint64) {
	info := in.recordInfo(id)
	if info == nil {
		return
	}
	info.ValueArgs = append([]uint64(nil), values...)
}

// StructArgs returns the concrete type arguments a struct/record was
// instantiated with.
func (in *Interner) StructArgs(id TypeID) []TypeID {
	info := in.recordInfo(id)
	if info == nil {
		return nil
	}
	return cloneTypeArgs(info.TypeArgs)
}

// InstantiationRoot follows GenericFrom until it reaches the fully generic
// declaration, satisfying the spec §3 chain-termination invariant.
func (in *Interner) InstantiationRoot(id TypeID) TypeID {
	seen := make(map[TypeID]struct{}, 4)
	for {
		info := in.recordInfo(id)
		if info == nil || info.GenericFrom == NoTypeID {
			return id
		}
		if _, ok := seen[id]; ok {
			return id // defensive: cyclic GenericFrom should never occur
		}
		seen[id] = struct{}{}
		id = info.GenericFrom
	}
}

// Fields returns the fields declared directly on id plus, for classes, all
// inherited fields in base-to-derived order — the core of the spec §4.3
// `fieldsForTypeDecl` query.
func (in *Interner) Fields(id TypeID) []RecordField {
	info := in.recordInfo(id)
	if info == nil {
		return nil
	}
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindClassBasic || info.BaseClass == NoTypeID {
		return slices.Clone(info.Fields)
	}
	base := in.Fields(info.BaseClass)
	out := make([]RecordField, 0, len(base)+len(info.Fields))
	out = append(out, base...)
	out = append(out, info.Fields...)
	return out
}

// IsSubclassOf reports whether sub is class (or class-equal to) super,
// walking BaseClass links. Used by the Type Lattice's subtype conversion
// kind (spec §4.3 "subtype").
func (in *Interner) IsSubclassOf(sub, super TypeID) bool {
	seen := make(map[TypeID]struct{}, 8)
	for sub != NoTypeID {
		if sub == super {
			return true
		}
		if _, ok := seen[sub]; ok {
			return false
		}
		seen[sub] = struct{}{}
		info := in.recordInfo(sub)
		if info == nil {
			return false
		}
		sub = info.BaseClass
	}
	return false
}

func (in *Interner) recordInfo(id TypeID) *RecordInfo {
	if id == NoTypeID {
		return nil
	}
	tt, ok := in.Lookup(id)
	if !ok || (tt.Kind != KindRecord && tt.Kind != KindClassBasic) {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.records) {
		return nil
	}
	return &in.records[tt.Payload]
}

func (in *Interner) appendRecordInfo(info RecordInfo) uint32 {
	in.records = append(in.records, RecordInfo{
		Name:        info.Name,
		Decl:        info.Decl,
		Fields:      slices.Clone(info.Fields),
		BaseClass:   info.BaseClass,
		TypeParams:  cloneTypeArgs(info.TypeParams),
		TypeArgs:    cloneTypeArgs(info.TypeArgs),
		ValueArgs:   append([]uint64(nil), info.ValueArgs...),
		GenericFrom: info.GenericFrom,
	})
	slot, err := safecast.Conv[uint32](len(in.records) - 1)
	if err != nil {
		panic(fmt.Errorf("types: record info overflow: %w", err))
	}
	return slot
}
