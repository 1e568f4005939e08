package ast

import (
	"rillc/internal/source"
)

// TypeExprKind enumerates the shapes a type annotation can take as written.
type TypeExprKind uint8

const (
	TypeExprPath TypeExprKind = iota
	TypeExprPointer
	TypeExprReference
	TypeExprManaged
	TypeExprArray
	TypeExprDomain
	TypeExprTuple
	TypeExprFn
	TypeExprGeneric
)

// ManagementDecorator is the as-written management sigil on a managed-class
// type annotation (spec §3 Type "Management ∈ {Owned, Shared, Borrowed,
// Unmanaged}", syntax-level counterpart to types.Management).
type ManagementDecorator uint8

const (
	ManagementDecoratorOwned ManagementDecorator = iota
	ManagementDecoratorShared
	ManagementDecoratorBorrowed
	ManagementDecoratorUnmanaged
)

// NilabilityDecorator is the as-written `?` suffix on a type annotation.
type NilabilityDecorator uint8

const (
	NilabilityDecoratorNonNilable NilabilityDecorator = iota
	NilabilityDecoratorNilable
)

// TypeExpr is the shared header for a type annotation node; Kind selects
// which side table Payload indexes into.
type TypeExpr struct {
	Kind    TypeExprKind
	Payload PayloadID
	Span    source.Span
}

// TypeExprPathDetail is a bare name reference, e.g. `Int`, `MyRecord`.
type TypeExprPathDetail struct {
	Name     source.StringID
	NameSpan source.Span
}

// TypeExprPointerDetail is `*Elem`.
type TypeExprPointerDetail struct {
	Elem      TypeID
	StarSpan  source.Span
}

// TypeExprReferenceDetail is `&Elem` or `&mut Elem`.
type TypeExprReferenceDetail struct {
	Elem       TypeID
	Mutable    bool
	AmpSpan    source.Span
	MutSpan    source.Span
}

// TypeExprManagedDetail is a class type decorated with a management sigil
// and/or a trailing `?` nilability marker.
type TypeExprManagedDetail struct {
	Elem         TypeID
	Management   ManagementDecorator
	Nilability   NilabilityDecorator
	SigilSpan    source.Span
	NilableSpan  source.Span
}

// TypeExprArrayDetail is `[Elem]` (slice) or `[Elem; Count]` (fixed-size).
type TypeExprArrayDetail struct {
	Elem        TypeID
	Count       ExprID
	HasCount    bool
	BracketSpan source.Span
}

// TypeExprDomainDetail is `domain(rank)` or `domain(IndexType)`.
type TypeExprDomainDetail struct {
	IndexType    TypeID
	Rank         uint8
	HasIndexType bool
	ArgsSpan     source.Span
}

// TypeExprTupleDetail is `(A, B, C)`.
type TypeExprTupleDetail struct {
	Elems       []TypeID
	Commas      []source.Span
	HasTrailing bool
}

// TypeExprFnDetail is `fn(A, B) -> R`.
type TypeExprFnDetail struct {
	Params      []TypeID
	ParamCommas []source.Span
	Result      TypeID
	FnKwSpan    source.Span
	ArrowSpan   source.Span
}

// TypeExprGenericDetail is `Base<Args...>`.
type TypeExprGenericDetail struct {
	Base        TypeID
	Args        []TypeID
	ArgCommas   []source.Span
	HasTrailing bool
	ArgsSpan    source.Span
}

// TypeExprs owns the arenas for every type-annotation node kind.
type TypeExprs struct {
	Arena      *Arena[TypeExpr]
	Paths      *Arena[TypeExprPathDetail]
	Pointers   *Arena[TypeExprPointerDetail]
	References *Arena[TypeExprReferenceDetail]
	Managed    *Arena[TypeExprManagedDetail]
	Arrays     *Arena[TypeExprArrayDetail]
	Domains    *Arena[TypeExprDomainDetail]
	Tuples     *Arena[TypeExprTupleDetail]
	Fns        *Arena[TypeExprFnDetail]
	Generics   *Arena[TypeExprGenericDetail]
}

func NewTypeExprs(capHint uint) *TypeExprs {
	return &TypeExprs{
		Arena:      NewArena[TypeExpr](capHint),
		Paths:      NewArena[TypeExprPathDetail](capHint),
		Pointers:   NewArena[TypeExprPointerDetail](capHint),
		References: NewArena[TypeExprReferenceDetail](capHint),
		Managed:    NewArena[TypeExprManagedDetail](capHint),
		Arrays:     NewArena[TypeExprArrayDetail](capHint),
		Domains:    NewArena[TypeExprDomainDetail](capHint),
		Tuples:     NewArena[TypeExprTupleDetail](capHint),
		Fns:        NewArena[TypeExprFnDetail](capHint),
		Generics:   NewArena[TypeExprGenericDetail](capHint),
	}
}

func (t *TypeExprs) new(kind TypeExprKind, payload PayloadID, span source.Span) TypeID {
	return TypeID(t.Arena.Allocate(TypeExpr{Kind: kind, Payload: payload, Span: span}))
}

func (t *TypeExprs) Get(id TypeID) *TypeExpr {
	return t.Arena.Get(uint32(id))
}

func (t *TypeExprs) NewPath(name source.StringID, nameSpan, span source.Span) TypeID {
	payload := t.Paths.Allocate(TypeExprPathDetail{Name: name, NameSpan: nameSpan})
	return t.new(TypeExprPath, PayloadID(payload), span)
}

func (t *TypeExprs) NewPointer(elem TypeID, starSpan, span source.Span) TypeID {
	payload := t.Pointers.Allocate(TypeExprPointerDetail{Elem: elem, StarSpan: starSpan})
	return t.new(TypeExprPointer, PayloadID(payload), span)
}

func (t *TypeExprs) NewReference(elem TypeID, mutable bool, ampSpan, mutSpan, span source.Span) TypeID {
	payload := t.References.Allocate(TypeExprReferenceDetail{
		Elem: elem, Mutable: mutable, AmpSpan: ampSpan, MutSpan: mutSpan,
	})
	return t.new(TypeExprReference, PayloadID(payload), span)
}

func (t *TypeExprs) NewManaged(
	elem TypeID, management ManagementDecorator, nilability NilabilityDecorator,
	sigilSpan, nilableSpan, span source.Span,
) TypeID {
	payload := t.Managed.Allocate(TypeExprManagedDetail{
		Elem: elem, Management: management, Nilability: nilability,
		SigilSpan: sigilSpan, NilableSpan: nilableSpan,
	})
	return t.new(TypeExprManaged, PayloadID(payload), span)
}

func (t *TypeExprs) NewArray(elem TypeID, count ExprID, hasCount bool, bracketSpan, span source.Span) TypeID {
	payload := t.Arrays.Allocate(TypeExprArrayDetail{
		Elem: elem, Count: count, HasCount: hasCount, BracketSpan: bracketSpan,
	})
	return t.new(TypeExprArray, PayloadID(payload), span)
}

func (t *TypeExprs) NewDomain(indexType TypeID, rank uint8, hasIndexType bool, argsSpan, span source.Span) TypeID {
	payload := t.Domains.Allocate(TypeExprDomainDetail{
		IndexType: indexType, Rank: rank, HasIndexType: hasIndexType, ArgsSpan: argsSpan,
	})
	return t.new(TypeExprDomain, PayloadID(payload), span)
}

func (t *TypeExprs) NewTuple(elems []TypeID, commas []source.Span, hasTrailing bool, span source.Span) TypeID {
	payload := t.Tuples.Allocate(TypeExprTupleDetail{
		Elems:       append([]TypeID(nil), elems...),
		Commas:      append([]source.Span(nil), commas...),
		HasTrailing: hasTrailing,
	})
	return t.new(TypeExprTuple, PayloadID(payload), span)
}

func (t *TypeExprs) NewFn(
	params []TypeID, paramCommas []source.Span, result TypeID, fnKwSpan, arrowSpan, span source.Span,
) TypeID {
	payload := t.Fns.Allocate(TypeExprFnDetail{
		Params:      append([]TypeID(nil), params...),
		ParamCommas: append([]source.Span(nil), paramCommas...),
		Result:      result,
		FnKwSpan:    fnKwSpan,
		ArrowSpan:   arrowSpan,
	})
	return t.new(TypeExprFn, PayloadID(payload), span)
}

func (t *TypeExprs) NewGeneric(
	base TypeID, args []TypeID, argCommas []source.Span, hasTrailing bool, argsSpan, span source.Span,
) TypeID {
	payload := t.Generics.Allocate(TypeExprGenericDetail{
		Base:        base,
		Args:        append([]TypeID(nil), args...),
		ArgCommas:   append([]source.Span(nil), argCommas...),
		HasTrailing: hasTrailing,
		ArgsSpan:    argsSpan,
	})
	return t.new(TypeExprGeneric, PayloadID(payload), span)
}

func (t *TypeExprs) Path(id TypeID) (*TypeExprPathDetail, bool) {
	te := t.Get(id)
	if te == nil || te.Kind != TypeExprPath {
		return nil, false
	}
	return t.Paths.Get(uint32(te.Payload)), true
}

func (t *TypeExprs) Pointer(id TypeID) (*TypeExprPointerDetail, bool) {
	te := t.Get(id)
	if te == nil || te.Kind != TypeExprPointer {
		return nil, false
	}
	return t.Pointers.Get(uint32(te.Payload)), true
}

func (t *TypeExprs) Reference(id TypeID) (*TypeExprReferenceDetail, bool) {
	te := t.Get(id)
	if te == nil || te.Kind != TypeExprReference {
		return nil, false
	}
	return t.References.Get(uint32(te.Payload)), true
}

func (t *TypeExprs) ManagedDetail(id TypeID) (*TypeExprManagedDetail, bool) {
	te := t.Get(id)
	if te == nil || te.Kind != TypeExprManaged {
		return nil, false
	}
	return t.Managed.Get(uint32(te.Payload)), true
}

func (t *TypeExprs) ArrayDetail(id TypeID) (*TypeExprArrayDetail, bool) {
	te := t.Get(id)
	if te == nil || te.Kind != TypeExprArray {
		return nil, false
	}
	return t.Arrays.Get(uint32(te.Payload)), true
}

func (t *TypeExprs) DomainDetail(id TypeID) (*TypeExprDomainDetail, bool) {
	te := t.Get(id)
	if te == nil || te.Kind != TypeExprDomain {
		return nil, false
	}
	return t.Domains.Get(uint32(te.Payload)), true
}

func (t *TypeExprs) TupleDetail(id TypeID) (*TypeExprTupleDetail, bool) {
	te := t.Get(id)
	if te == nil || te.Kind != TypeExprTuple {
		return nil, false
	}
	return t.Tuples.Get(uint32(te.Payload)), true
}

func (t *TypeExprs) FnDetail(id TypeID) (*TypeExprFnDetail, bool) {
	te := t.Get(id)
	if te == nil || te.Kind != TypeExprFn {
		return nil, false
	}
	return t.Fns.Get(uint32(te.Payload)), true
}

func (t *TypeExprs) GenericDetail(id TypeID) (*TypeExprGenericDetail, bool) {
	te := t.Get(id)
	if te == nil || te.Kind != TypeExprGeneric {
		return nil, false
	}
	return t.Generics.Get(uint32(te.Payload)), true
}
