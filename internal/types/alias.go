package types

import (
	"fmt"

	"fortio.org/safecast"

	"rillc/internal/source"
)

// AliasInfo stores metadata for a nominal `type X = Y` alias.
type AliasInfo struct {
	Name   source.StringID
	Decl   source.Span
	Target TypeID

	// TypeParams/TypeArgs/GenericFrom mirror RecordInfo/UnionInfo: the
	// generic placeholders on a still-generic alias declaration, and the
	// substitutions plus root link once instantiated.
	TypeParams  []TypeID
	TypeArgs    []TypeID
	GenericFrom TypeID
}

// RegisterAlias allocates a nominal alias type slot and returns its TypeID.
func (in *Interner) RegisterAlias(name source.StringID, decl source.Span) TypeID {
	slot := in.appendAliasInfo(AliasInfo{Name: name, Decl: decl})
	return in.internRaw(Type{Kind: KindAlias, Payload: slot})
}

// RegisterAliasInstance allocates an alias instantiation with concrete type
// arguments, linking back to the fully generic declaration.
func (in *Interner) RegisterAliasInstance(genericFrom TypeID, name source.StringID, decl source.Span, args []TypeID) TypeID {
	slot := in.appendAliasInfo(AliasInfo{Name: name, Decl: decl, TypeArgs: cloneTypeArgs(args), GenericFrom: genericFrom})
	return in.internRaw(Type{Kind: KindAlias, Payload: slot})
}

// SetAliasTarget sets the aliased target type for the provided alias TypeID.
func (in *Interner) SetAliasTarget(typeID, target TypeID) {
	info := in.aliasInfo(typeID)
	if info == nil {
		return
	}
	info.Target = target
}

// SetAliasTypeParams stores the generic parameter placeholders.
func (in *Interner) SetAliasTypeParams(typeID TypeID, params []TypeID) {
	info := in.aliasInfo(typeID)
	if info == nil {
		return
	}
	info.TypeParams = cloneTypeArgs(params)
}

// AliasTarget retrieves the aliased target type.
func (in *Interner) AliasTarget(typeID TypeID) (TypeID, bool) {
	info := in.aliasInfo(typeID)
	if info == nil || info.Target == NoTypeID {
		return NoTypeID, false
	}
	return info.Target, true
}

// AliasInfo returns metadata for the provided alias TypeID.
func (in *Interner) AliasInfo(typeID TypeID) (*AliasInfo, bool) {
	info := in.aliasInfo(typeID)
	if info == nil {
		return nil, false
	}
	return info, true
}

// FindAliasInstance looks up an already-registered instantiation of the
// generic alias genericFrom for the given type arguments, mirroring
// FindRecordInstance/FindUnionInstance.
func (in *Interner) FindAliasInstance(genericFrom TypeID, typeArgs []TypeID) TypeID {
	if in == nil || genericFrom == NoTypeID {
		return NoTypeID
	}
	for id := TypeID(1); int(id) < len(in.types); id++ {
		tt := in.types[id]
		if tt.Kind != KindAlias || int(tt.Payload) >= len(in.aliases) {
			continue
		}
		info := in.aliases[tt.Payload]
		if info.GenericFrom != genericFrom || len(info.TypeArgs) != len(typeArgs) {
			continue
		}
		match := true
		for i := range typeArgs {
			if info.TypeArgs[i] != typeArgs[i] {
				match = false
				break
			}
		}
		if match {
			return id
		}
	}
	return NoTypeID
}

func (in *Interner) aliasInfo(typeID TypeID) *AliasInfo {
	if typeID == NoTypeID {
		return nil
	}
	tt, ok := in.Lookup(typeID)
	if !ok || tt.Kind != KindAlias {
		return nil
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.aliases) {
		return nil
	}
	return &in.aliases[tt.Payload]
}

func (in *Interner) appendAliasInfo(info AliasInfo) uint32 {
	in.aliases = append(in.aliases, AliasInfo{
		Name:        info.Name,
		Decl:        info.Decl,
		Target:      info.Target,
		TypeParams:  cloneTypeArgs(info.TypeParams),
		TypeArgs:    cloneTypeArgs(info.TypeArgs),
		GenericFrom: info.GenericFrom,
	})
	slot, err := safecast.Conv[uint32](len(in.aliases) - 1)
	if err != nil {
		panic(fmt.Errorf("types: alias info overflow: %w", err))
	}
	return slot
}
