package types

import "fmt"

// ManagedInfo pairs a basic-class TypeID with its management and nilability
// decorators (spec §3 "Managed-class wrapper: pair of (basic-class,
// decorator)"). A managed type is always interned as KindManaged wrapping
// exactly one KindClassBasic.
type ManagedInfo struct {
	Class      TypeID // the KindClassBasic being decorated
	Management Management
	Nilability Nilability
}

// RegisterManaged interns the managed-class wrapper for class decorated with
// management/nilability, deduplicating identical decorators via the normal
// Intern structural-equality path (Payload is part of typeKey).
func (in *Interner) RegisterManaged(class TypeID, management Management, nilability Nilability) TypeID {
	slot := in.appendManagedInfo(ManagedInfo{Class: class, Management: management, Nilability: nilability})
	return in.Intern(Type{Kind: KindManaged, Elem: class, Payload: slot})
}

// ManagedInfo returns the decorator detail for a managed-class TypeID.
func (in *Interner) ManagedInfo(id TypeID) (*ManagedInfo, bool) {
	if id == NoTypeID {
		return nil, false
	}
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindManaged {
		return nil, false
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.managed) {
		return nil, false
	}
	return &in.managed[tt.Payload], true
}

// WithNilability returns the TypeID for the same class/management pair but
// with the requested nilability — used by the "to-nilable" coercion (spec
// §4.3) which is always allowed, unlike its inverse.
func (in *Interner) WithNilability(id TypeID, nilability Nilability) TypeID {
	info, ok := in.ManagedInfo(id)
	if !ok {
		return id
	}
	if info.Nilability == nilability {
		return id
	}
	return in.RegisterManaged(info.Class, info.Management, nilability)
}

// WithManagement returns the TypeID for the same class/nilability pair but
// with the requested management strategy — used by borrowing conversions
// (owned -> borrowed).
func (in *Interner) WithManagement(id TypeID, management Management) TypeID {
	info, ok := in.ManagedInfo(id)
	if !ok {
		return id
	}
	if info.Management == management {
		return id
	}
	return in.RegisterManaged(info.Class, management, info.Nilability)
}

func (in *Interner) appendManagedInfo(info ManagedInfo) uint32 {
	in.managed = append(in.managed, info)
	if len(in.managed)-1 > int(^uint32(0)) {
		panic(fmt.Errorf("types: managed info overflow"))
	}
	return uint32(len(in.managed) - 1)
}
