package ast

import "rillc/internal/source"

// TypeDeclKind distinguishes the shape of a top-level `type` declaration.
type TypeDeclKind uint8

const (
	TypeDeclAlias TypeDeclKind = iota
	TypeDeclRecord
	TypeDeclClass
	TypeDeclUnion
	TypeDeclEnum
	TypeDeclDomain
)

// TypeItem is the shared header for every `type` declaration; Kind selects
// which side table Payload indexes into.
type TypeItem struct {
	Name                  source.StringID
	Generics              []source.StringID
	GenericCommas         []source.Span
	GenericsTrailingComma bool
	GenericsSpan          source.Span
	TypeParamsStart       TypeParamID
	TypeParamsCount       uint32
	TypeKeywordSpan       source.Span
	AssignSpan            source.Span
	SemicolonSpan         source.Span
	AttrStart             AttrID
	AttrCount             uint32
	Kind                  TypeDeclKind
	Payload               PayloadID
	Visibility            Visibility
	Span                  source.Span
}

// TypeAliasDecl is `type Name = Target;`.
type TypeAliasDecl struct {
	Target TypeID
}

// TypeFieldDecl is a single field inside a record or class body.
type TypeFieldDecl struct {
	Name      source.StringID
	Type      TypeID
	Intent    ParamIntent // FieldIntentValue (blank) by default; In marks a `type`/`param` member intent reused from formal syntax
	Default   ExprID
	AttrStart AttrID
	AttrCount uint32
	Span      source.Span
}

// TypeFieldSpec specifies a field during record/class construction.
type TypeFieldSpec struct {
	Name    source.StringID
	Type    TypeID
	Intent  ParamIntent
	Default ExprID
	Attrs   []Attr
	Span    source.Span
}

// TypeRecordDecl is `type Name = record { ... };` — value semantics, no
// inheritance (spec §3 Composite "record").
type TypeRecordDecl struct {
	FieldsStart TypeFieldID
	FieldsCount uint32
	FieldCommas []source.Span
	HasTrailing bool
	BodySpan    source.Span
}

// TypeClassDecl is `type Name = class [: Base] { ... };` — reference
// semantics, single inheritance (spec §3 Composite "class-basic").
type TypeClassDecl struct {
	Base        TypeID // NoTypeID when the class has no explicit superclass
	ColonSpan   source.Span
	FieldsStart TypeFieldID
	FieldsCount uint32
	FieldCommas []source.Span
	HasTrailing bool
	BodySpan    source.Span
}

// TypeUnionMemberKind distinguishes the three union-variant shapes.
type TypeUnionMemberKind uint8

const (
	TypeUnionMemberType TypeUnionMemberKind = iota
	TypeUnionMemberNothing
	TypeUnionMemberTag
)

// TypeUnionMemberSpec specifies a union variant during construction.
type TypeUnionMemberSpec struct {
	Kind        TypeUnionMemberKind
	Type        TypeID
	TagName     source.StringID
	TagArgs     []TypeID
	ArgCommas   []source.Span
	HasTrailing bool
	ArgsSpan    source.Span
	Span        source.Span
}

// TypeUnionMember is an allocated union variant.
type TypeUnionMember struct {
	Kind        TypeUnionMemberKind
	Type        TypeID
	TagName     source.StringID
	TagArgs     []TypeID
	ArgCommas   []source.Span
	HasTrailing bool
	ArgsSpan    source.Span
	Span        source.Span
}

// TypeUnionDecl is `type Name = union { ... };`.
type TypeUnionDecl struct {
	MembersStart TypeUnionMemberID
	MembersCount uint32
	BodySpan     source.Span
}

// TypeEnumVariantSpec specifies an enum variant during construction.
type TypeEnumVariantSpec struct {
	Name        source.StringID
	Value       ExprID // explicit `= expr` initializer, NoExprID when implicit
	HasExplicit bool
	Span        source.Span
}

// TypeEnumVariant is an allocated enum variant.
type TypeEnumVariant struct {
	Name        source.StringID
	Value       ExprID
	HasExplicit bool
	Span        source.Span
}

// TypeEnumDecl is `type Name = enum { A, B = expr, ... };`.
type TypeEnumDecl struct {
	VariantsStart TypeEnumVariantID
	VariantsCount uint32
	BodySpan      source.Span
}

// TypeDomainDecl is `type Name = domain(IndexType)` (associative) or
// `type Name = domain(rank)` (rectangular) — spec §3 Composite "domain".
type TypeDomainDecl struct {
	IndexType TypeID // NoTypeID for a rectangular domain
	Rank      uint8
	Resizable bool
	ArgsSpan  source.Span
}
