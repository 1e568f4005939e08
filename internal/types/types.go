package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// IsValid reports whether id refers to an interned type.
func (id TypeID) IsValid() bool { return id != NoTypeID }

// Kind enumerates every supported shape of type. Composite and
// managed-class kinds carry their detail in a side table indexed by
// Type.Payload; Kind alone never determines equality.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindUnknown    // not yet inferred
	KindErroneous  // propagated from a reported error; suppresses further diagnostics
	KindUnit       // void/nothing-returning statement position
	KindNothing    // bottom type of a function that never returns normally
	KindBool
	KindString
	KindInt
	KindUint
	KindReal
	KindImag
	KindComplex
	KindArray   // Elem + Count (ArrayDynamicLength for open domains)
	KindDomain  // index-set type backing an array
	KindPointer // raw, unmanaged pointer
	KindReference
	KindOwn // explicit `own T` transfer-of-ownership wrapper
	KindRecord      // value-semantics aggregate (no inheritance)
	KindClassBasic  // reference-semantics aggregate, may inherit from another class
	KindManaged     // decorator wrapper around a KindClassBasic: (management, nilability)
	KindUnion
	KindTuple
	KindEnum
	KindFn
	KindGenericParam
	KindConst // wraps a compile-time constant value used as a type argument
	KindAlias // nominal `type X = Y` alias, see AliasInfo
)

// KindStruct and KindFloat are compatibility names for callers written
// against the pre-split type system, from before structs were split into
// KindRecord/KindClassBasic and floats into KindReal/KindImag/KindComplex.
// They are not distinct Kind values: a type never carries them directly, so
// switches keyed on KindStruct only match plain records, not classes, and
// switches keyed on KindFloat only match the real/float width family.
const (
	KindStruct = KindRecord
	KindFloat  = KindReal
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindUnknown:
		return "unknown"
	case KindErroneous:
		return "erroneous"
	case KindUnit:
		return "unit"
	case KindNothing:
		return "nothing"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindInt:
		return "int"
	case KindUint:
		return "uint"
	case KindReal:
		return "real"
	case KindImag:
		return "imag"
	case KindComplex:
		return "complex"
	case KindArray:
		return "array"
	case KindDomain:
		return "domain"
	case KindPointer:
		return "pointer"
	case KindReference:
		return "reference"
	case KindOwn:
		return "own"
	case KindRecord:
		return "record"
	case KindClassBasic:
		return "class"
	case KindManaged:
		return "managed"
	case KindUnion:
		return "union"
	case KindTuple:
		return "tuple"
	case KindEnum:
		return "enum"
	case KindFn:
		return "fn"
	case KindGenericParam:
		return "genericParam"
	case KindConst:
		return "const"
	case KindAlias:
		return "alias"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Width captures the precision of integers/reals/imaginaries.
type Width uint8

const (
	WidthAny Width = 0
	Width8   Width = 8
	Width16  Width = 16
	Width32  Width = 32
	Width64  Width = 64
	Width128 Width = 128
)

// ArrayDynamicLength marks arrays whose domain has no compile-time-known length.
const ArrayDynamicLength = ^uint32(0)

// Management enumerates the class-reference management strategies.
type Management uint8

const (
	ManagementOwned Management = iota
	ManagementShared
	ManagementBorrowed
	ManagementUnmanaged
)

func (m Management) String() string {
	switch m {
	case ManagementOwned:
		return "owned"
	case ManagementShared:
		return "shared"
	case ManagementBorrowed:
		return "borrowed"
	case ManagementUnmanaged:
		return "unmanaged"
	default:
		return fmt.Sprintf("Management(%d)", m)
	}
}

// Nilability marks whether a managed-class reference may hold nil.
type Nilability uint8

const (
	NonNilable Nilability = iota
	Nilable
)

func (n Nilability) String() string {
	if n == Nilable {
		return "nilable"
	}
	return "non-nilable"
}

// Type is a compact descriptor for any supported type variant. Composite
// and managed kinds store detail out-of-line in the Interner's side
// tables, addressed by Payload; Type itself stays a small, hashable,
// comparable struct so two structurally-equal descriptors produce the
// same typeKey and thus the same interned TypeID.
type Type struct {
	Kind    Kind
	Elem    TypeID // array/pointer/reference/managed element, domain index type
	Count   uint32 // array length (ArrayDynamicLength for unbounded)
	Width   Width  // numeric primitives
	Mutable bool   // reference mutability
	Payload uint32 // index into the owning side table for this Kind
}

// Descriptor helpers ---------------------------------------------------------

func MakeInt(width Width) Type     { return Type{Kind: KindInt, Width: width} }
func MakeUint(width Width) Type    { return Type{Kind: KindUint, Width: width} }
func MakeReal(width Width) Type    { return Type{Kind: KindReal, Width: width} }
func MakeImag(width Width) Type    { return Type{Kind: KindImag, Width: width} }
func MakeComplex(width Width) Type { return Type{Kind: KindComplex, Width: width} }

// MakeArray describes an array whose elements have type elem, backed by a
// domain of the given count (ArrayDynamicLength for a runtime-sized domain).
func MakeArray(elem TypeID, count uint32) Type {
	return Type{Kind: KindArray, Elem: elem, Count: count}
}

// MakePointer describes a raw, unmanaged pointer.
func MakePointer(elem TypeID) Type {
	return Type{Kind: KindPointer, Elem: elem}
}

// MakeReference describes &T (mutable=false) or a mutable reference.
func MakeReference(elem TypeID, mutable bool) Type {
	return Type{Kind: KindReference, Elem: elem, Mutable: mutable}
}

// MakeOwn describes own T, an explicit transfer-of-ownership wrapper.
func MakeOwn(elem TypeID) Type {
	return Type{Kind: KindOwn, Elem: elem}
}
