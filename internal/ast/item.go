package ast

import (
	"fmt"

	"fortio.org/safecast"

	"rillc/internal/source"
)

type ItemKind uint8

const (
	ItemFn ItemKind = iota
	ItemLet
	ItemConst
	ItemType
	ItemTag
	ItemExtern
	ItemPragma
	ItemImport
	ItemMacro
	ItemContract
)

type Item struct {
	Kind    ItemKind
	Span    source.Span
	Payload PayloadID
}

type Items struct {
	Arena            *Arena[Item]
	Imports          *Arena[ImportItem]
	Fns              *Arena[FnItem]
	FnParams         *Arena[FnParam]
	Attrs            *Arena[Attr]
	Lets             *Arena[LetItem]
	Consts           *Arena[ConstItem]
	TypeParams       *Arena[TypeParam]
	TypeParamBounds  *Arena[TypeParamBound]
	Contracts        *Arena[ContractDecl]
	ContractItems    *Arena[ContractItem]
	ContractFields   *Arena[ContractFieldReq]
	ContractFns      *Arena[ContractFnReq]
	Types            *Arena[TypeItem]
	TypeAliases      *Arena[TypeAliasDecl]
	TypeRecords      *Arena[TypeRecordDecl]
	TypeClasses      *Arena[TypeClassDecl]
	TypeFields       *Arena[TypeFieldDecl]
	TypeUnions       *Arena[TypeUnionDecl]
	TypeUnionMembers *Arena[TypeUnionMember]
	TypeEnums        *Arena[TypeEnumDecl]
	TypeEnumVariants *Arena[TypeEnumVariant]
	TypeDomains      *Arena[TypeDomainDecl]
	Externs          *Arena[ExternBlock]
	ExternMembers    *Arena[ExternMember]
	ExternFields     *Arena[ExternField]
	Tags             *Arena[TagItem]
}

// NewItems creates and returns an *Items with per-kind arenas initialized to capHint.
// If capHint is 0, NewItems uses a default initial capacity of 1<<8.
// The returned Items contains separate arenas for Item payloads including imports, fn/contract data,
// attributes, lets/consts, type parameters, types, externs, and tags.
func NewItems(capHint uint) *Items {
	if capHint == 0 {
		capHint = 1 << 8
	}
	return &Items{
		Arena:            NewArena[Item](capHint),
		Imports:          NewArena[ImportItem](capHint),
		Fns:              NewArena[FnItem](capHint),
		FnParams:         NewArena[FnParam](capHint),
		Attrs:            NewArena[Attr](capHint),
		Lets:             NewArena[LetItem](capHint),
		Consts:           NewArena[ConstItem](capHint),
		TypeParams:       NewArena[TypeParam](capHint),
		TypeParamBounds:  NewArena[TypeParamBound](capHint),
		Contracts:        NewArena[ContractDecl](capHint),
		ContractItems:    NewArena[ContractItem](capHint),
		ContractFields:   NewArena[ContractFieldReq](capHint),
		ContractFns:      NewArena[ContractFnReq](capHint),
		Types:            NewArena[TypeItem](capHint),
		TypeAliases:      NewArena[TypeAliasDecl](capHint),
		TypeRecords:      NewArena[TypeRecordDecl](capHint),
		TypeClasses:      NewArena[TypeClassDecl](capHint),
		TypeFields:       NewArena[TypeFieldDecl](capHint),
		TypeUnions:       NewArena[TypeUnionDecl](capHint),
		TypeUnionMembers: NewArena[TypeUnionMember](capHint),
		TypeEnums:        NewArena[TypeEnumDecl](capHint),
		TypeEnumVariants: NewArena[TypeEnumVariant](capHint),
		TypeDomains:      NewArena[TypeDomainDecl](capHint),
		Externs:          NewArena[ExternBlock](capHint),
		ExternMembers:    NewArena[ExternMember](capHint),
		ExternFields:     NewArena[ExternField](capHint),
		Tags:             NewArena[TagItem](capHint),
	}
}

func (i *Items) New(kind ItemKind, span source.Span, payloadID PayloadID) ItemID {
	return ItemID(i.Arena.Allocate(Item{
		Kind:    kind,
		Span:    span,
		Payload: payloadID,
	}))
}

func (i *Items) Get(id ItemID) *Item {
	return i.Arena.Get(uint32(id))
}

// CollectAttrs returns a copy of attributes starting at attrStart with count attrCount.
func (i *Items) CollectAttrs(attrStart AttrID, attrCount uint32) []Attr {
	if attrCount == 0 || !attrStart.IsValid() {
		return nil
	}
	result := make([]Attr, 0, attrCount)

	base := uint32(attrStart)
	for offset := range attrCount {
		attr := i.Attrs.Get(base + offset)
		if attr == nil {
			continue
		}
		result = append(result, *attr)
	}
	return result
}

func (i *Items) Type(itemID ItemID) (*TypeItem, bool) {
	item := i.Get(itemID)
	if item == nil || item.Kind != ItemType || !item.Payload.IsValid() {
		return nil, false
	}
	return i.Types.Get(uint32(item.Payload)), true
}

func (i *Items) TypeAlias(item *TypeItem) *TypeAliasDecl {
	if item == nil || item.Kind != TypeDeclAlias || !item.Payload.IsValid() {
		return nil
	}
	return i.TypeAliases.Get(uint32(item.Payload))
}

func (i *Items) TypeRecord(item *TypeItem) *TypeRecordDecl {
	if item == nil || item.Kind != TypeDeclRecord || !item.Payload.IsValid() {
		return nil
	}
	return i.TypeRecords.Get(uint32(item.Payload))
}

func (i *Items) TypeClass(item *TypeItem) *TypeClassDecl {
	if item == nil || item.Kind != TypeDeclClass || !item.Payload.IsValid() {
		return nil
	}
	return i.TypeClasses.Get(uint32(item.Payload))
}

func (i *Items) TypeUnion(item *TypeItem) *TypeUnionDecl {
	if item == nil || item.Kind != TypeDeclUnion || !item.Payload.IsValid() {
		return nil
	}
	return i.TypeUnions.Get(uint32(item.Payload))
}

func (i *Items) TypeEnum(item *TypeItem) *TypeEnumDecl {
	if item == nil || item.Kind != TypeDeclEnum || !item.Payload.IsValid() {
		return nil
	}
	return i.TypeEnums.Get(uint32(item.Payload))
}

func (i *Items) TypeDomain(item *TypeItem) *TypeDomainDecl {
	if item == nil || item.Kind != TypeDeclDomain || !item.Payload.IsValid() {
		return nil
	}
	return i.TypeDomains.Get(uint32(item.Payload))
}

func (i *Items) Field(id TypeFieldID) *TypeFieldDecl {
	if !id.IsValid() {
		return nil
	}
	return i.TypeFields.Get(uint32(id))
}

func (i *Items) UnionMember(id TypeUnionMemberID) *TypeUnionMember {
	if !id.IsValid() {
		return nil
	}
	return i.TypeUnionMembers.Get(uint32(id))
}

func (i *Items) EnumVariant(id TypeEnumVariantID) *TypeEnumVariant {
	if !id.IsValid() {
		return nil
	}
	return i.TypeEnumVariants.Get(uint32(id))
}

// GetTypeFieldIDs expands a (start, count) run into individual IDs.
func (i *Items) GetTypeFieldIDs(start TypeFieldID, count uint32) []TypeFieldID {
	if !start.IsValid() || count == 0 {
		return nil
	}
	result := make([]TypeFieldID, count)
	base := uint32(start)
	for idx := range count {
		result[idx] = TypeFieldID(base + uint32(idx))
	}
	return result
}

// GetUnionMemberIDs expands a (start, count) run into individual IDs.
func (i *Items) GetUnionMemberIDs(start TypeUnionMemberID, count uint32) []TypeUnionMemberID {
	if !start.IsValid() || count == 0 {
		return nil
	}
	result := make([]TypeUnionMemberID, count)
	base := uint32(start)
	for idx := range count {
		result[idx] = TypeUnionMemberID(base + uint32(idx))
	}
	return result
}

// GetEnumVariantIDs expands a (start, count) run into individual IDs.
func (i *Items) GetEnumVariantIDs(start TypeEnumVariantID, count uint32) []TypeEnumVariantID {
	if !start.IsValid() || count == 0 {
		return nil
	}
	result := make([]TypeEnumVariantID, count)
	base := uint32(start)
	for idx := range count {
		result[idx] = TypeEnumVariantID(base + uint32(idx))
	}
	return result
}

func (i *Items) allocateAttrs(attrs []Attr) (attr AttrID, attrCount uint32) {
	if len(attrs) == 0 {
		return NoAttrID, 0
	}
	var start AttrID
	for idx, attr := range attrs {
		id := AttrID(i.Attrs.Allocate(attr))
		if idx == 0 {
			start = id
		}
	}
	count, err := safecast.Conv[uint32](len(attrs))
	if err != nil {
		panic(fmt.Errorf("attrs count overflow: %w", err))
	}
	return start, count
}

func (i *Items) allocateFields(fields []TypeFieldSpec) (start TypeFieldID, count uint32) {
	count, err := safecast.Conv[uint32](len(fields))
	if err != nil {
		panic(fmt.Errorf("fields count overflow: %w", err))
	}
	if count == 0 {
		return NoTypeFieldID, 0
	}
	for idx, spec := range fields {
		fieldAttrStart, fieldAttrCount := i.allocateAttrs(spec.Attrs)
		fieldID := TypeFieldID(i.TypeFields.Allocate(TypeFieldDecl{
			Name:      spec.Name,
			Type:      spec.Type,
			Intent:    spec.Intent,
			Default:   spec.Default,
			AttrStart: fieldAttrStart,
			AttrCount: fieldAttrCount,
			Span:      spec.Span,
		}))
		if idx == 0 {
			start = fieldID
		}
	}
	return start, count
}

func (i *Items) allocateUnionMembers(members []TypeUnionMemberSpec) (start TypeUnionMemberID, count uint32) {
	count, err := safecast.Conv[uint32](len(members))
	if err != nil {
		panic(fmt.Errorf("members count overflow: %w", err))
	}
	if count == 0 {
		return NoTypeUnionMember, 0
	}
	for idx, spec := range members {
		memberID := TypeUnionMemberID(i.TypeUnionMembers.Allocate(TypeUnionMember{
			Kind:        spec.Kind,
			Type:        spec.Type,
			TagName:     spec.TagName,
			TagArgs:     append([]TypeID(nil), spec.TagArgs...),
			ArgCommas:   append([]source.Span(nil), spec.ArgCommas...),
			HasTrailing: spec.HasTrailing,
			ArgsSpan:    spec.ArgsSpan,
			Span:        spec.Span,
		}))
		if idx == 0 {
			start = memberID
		}
	}
	return start, count
}

func (i *Items) allocateEnumVariants(variants []TypeEnumVariantSpec) (start TypeEnumVariantID, count uint32) {
	count, err := safecast.Conv[uint32](len(variants))
	if err != nil {
		panic(fmt.Errorf("variants count overflow: %w", err))
	}
	if count == 0 {
		return NoTypeEnumVariant, 0
	}
	for idx, spec := range variants {
		variantID := TypeEnumVariantID(i.TypeEnumVariants.Allocate(TypeEnumVariant{
			Name:        spec.Name,
			Value:       spec.Value,
			HasExplicit: spec.HasExplicit,
			Span:        spec.Span,
		}))
		if idx == 0 {
			start = variantID
		}
	}
	return start, count
}

func (i *Items) newTypeHeader(
	name source.StringID,
	generics []source.StringID,
	genericCommas []source.Span,
	genericsTrailing bool,
	genericsSpan source.Span,
	typeParamsStart TypeParamID,
	typeParamsCount uint32,
	typeKwSpan source.Span,
	assignSpan source.Span,
	semicolonSpan source.Span,
	attrStart AttrID,
	attrCount uint32,
	kind TypeDeclKind,
	payload PayloadID,
	visibility Visibility,
	span source.Span,
) ItemID {
	typeItem := TypeItem{
		Name:                  name,
		Generics:              append([]source.StringID(nil), generics...),
		GenericCommas:         append([]source.Span(nil), genericCommas...),
		GenericsTrailingComma: genericsTrailing,
		GenericsSpan:          genericsSpan,
		TypeParamsStart:       typeParamsStart,
		TypeParamsCount:       typeParamsCount,
		TypeKeywordSpan:       typeKwSpan,
		AssignSpan:            assignSpan,
		SemicolonSpan:         semicolonSpan,
		AttrStart:             attrStart,
		AttrCount:             attrCount,
		Kind:                  kind,
		Payload:               payload,
		Visibility:            visibility,
		Span:                  span,
	}
	payloadID := PayloadID(i.Types.Allocate(typeItem))
	return i.New(ItemType, span, payloadID)
}

func (i *Items) NewTypeAlias(
	name source.StringID,
	generics []source.StringID,
	genericCommas []source.Span,
	genericsTrailing bool,
	genericsSpan source.Span,
	typeParams []TypeParamSpec,
	typeKwSpan source.Span,
	assignSpan source.Span,
	semicolonSpan source.Span,
	attrs []Attr,
	visibility Visibility,
	target TypeID,
	span source.Span,
) ItemID {
	attrStart, attrCount := i.allocateAttrs(attrs)
	typeParamsStart, typeParamsCount := i.allocateTypeParams(typeParams)
	payload := i.TypeAliases.Allocate(TypeAliasDecl{Target: target})
	return i.newTypeHeader(name, generics, genericCommas, genericsTrailing, genericsSpan,
		typeParamsStart, typeParamsCount, typeKwSpan, assignSpan, semicolonSpan,
		attrStart, attrCount, TypeDeclAlias, PayloadID(payload), visibility, span)
}

// NewTypeRecord allocates a value-semantics `record` declaration (spec §3
// Composite "record" — no inheritance).
func (i *Items) NewTypeRecord(
	name source.StringID,
	generics []source.StringID,
	genericCommas []source.Span,
	genericsTrailing bool,
	genericsSpan source.Span,
	typeParams []TypeParamSpec,
	typeKwSpan source.Span,
	assignSpan source.Span,
	semicolonSpan source.Span,
	attrs []Attr,
	visibility Visibility,
	fields []TypeFieldSpec,
	fieldCommas []source.Span,
	hasTrailing bool,
	bodySpan source.Span,
	span source.Span,
) ItemID {
	attrStart, attrCount := i.allocateAttrs(attrs)
	typeParamsStart, typeParamsCount := i.allocateTypeParams(typeParams)
	fieldsStart, fieldsCount := i.allocateFields(fields)
	payload := i.TypeRecords.Allocate(TypeRecordDecl{
		FieldsStart: fieldsStart,
		FieldsCount: fieldsCount,
		FieldCommas: append([]source.Span(nil), fieldCommas...),
		HasTrailing: hasTrailing,
		BodySpan:    bodySpan,
	})
	return i.newTypeHeader(name, generics, genericCommas, genericsTrailing, genericsSpan,
		typeParamsStart, typeParamsCount, typeKwSpan, assignSpan, semicolonSpan,
		attrStart, attrCount, TypeDeclRecord, PayloadID(payload), visibility, span)
}

// NewTypeClass allocates a reference-semantics `class` declaration, with an
// optional single base class (spec §3 Composite "class-basic").
func (i *Items) NewTypeClass(
	name source.StringID,
	generics []source.StringID,
	genericCommas []source.Span,
	genericsTrailing bool,
	genericsSpan source.Span,
	typeParams []TypeParamSpec,
	typeKwSpan source.Span,
	assignSpan source.Span,
	semicolonSpan source.Span,
	attrs []Attr,
	visibility Visibility,
	base TypeID,
	colonSpan source.Span,
	fields []TypeFieldSpec,
	fieldCommas []source.Span,
	hasTrailing bool,
	bodySpan source.Span,
	span source.Span,
) ItemID {
	attrStart, attrCount := i.allocateAttrs(attrs)
	typeParamsStart, typeParamsCount := i.allocateTypeParams(typeParams)
	fieldsStart, fieldsCount := i.allocateFields(fields)
	payload := i.TypeClasses.Allocate(TypeClassDecl{
		Base:        base,
		ColonSpan:   colonSpan,
		FieldsStart: fieldsStart,
		FieldsCount: fieldsCount,
		FieldCommas: append([]source.Span(nil), fieldCommas...),
		HasTrailing: hasTrailing,
		BodySpan:    bodySpan,
	})
	return i.newTypeHeader(name, generics, genericCommas, genericsTrailing, genericsSpan,
		typeParamsStart, typeParamsCount, typeKwSpan, assignSpan, semicolonSpan,
		attrStart, attrCount, TypeDeclClass, PayloadID(payload), visibility, span)
}

func (i *Items) NewTypeUnion(
	name source.StringID,
	generics []source.StringID,
	genericCommas []source.Span,
	genericsTrailing bool,
	genericsSpan source.Span,
	typeParams []TypeParamSpec,
	typeKwSpan source.Span,
	assignSpan source.Span,
	semicolonSpan source.Span,
	attrs []Attr,
	visibility Visibility,
	members []TypeUnionMemberSpec,
	bodySpan source.Span,
	span source.Span,
) ItemID {
	attrStart, attrCount := i.allocateAttrs(attrs)
	typeParamsStart, typeParamsCount := i.allocateTypeParams(typeParams)
	membersStart, membersCount := i.allocateUnionMembers(members)
	payload := i.TypeUnions.Allocate(TypeUnionDecl{
		MembersStart: membersStart,
		MembersCount: membersCount,
		BodySpan:     bodySpan,
	})
	return i.newTypeHeader(name, generics, genericCommas, genericsTrailing, genericsSpan,
		typeParamsStart, typeParamsCount, typeKwSpan, assignSpan, semicolonSpan,
		attrStart, attrCount, TypeDeclUnion, PayloadID(payload), visibility, span)
}

// NewTypeEnum allocates an `enum` declaration (spec §3 Composite "enum").
func (i *Items) NewTypeEnum(
	name source.StringID,
	generics []source.StringID,
	genericCommas []source.Span,
	genericsTrailing bool,
	genericsSpan source.Span,
	typeParams []TypeParamSpec,
	typeKwSpan source.Span,
	assignSpan source.Span,
	semicolonSpan source.Span,
	attrs []Attr,
	visibility Visibility,
	variants []TypeEnumVariantSpec,
	bodySpan source.Span,
	span source.Span,
) ItemID {
	attrStart, attrCount := i.allocateAttrs(attrs)
	typeParamsStart, typeParamsCount := i.allocateTypeParams(typeParams)
	variantsStart, variantsCount := i.allocateEnumVariants(variants)
	payload := i.TypeEnums.Allocate(TypeEnumDecl{
		VariantsStart: variantsStart,
		VariantsCount: variantsCount,
		BodySpan:      bodySpan,
	})
	return i.newTypeHeader(name, generics, genericCommas, genericsTrailing, genericsSpan,
		typeParamsStart, typeParamsCount, typeKwSpan, assignSpan, semicolonSpan,
		attrStart, attrCount, TypeDeclEnum, PayloadID(payload), visibility, span)
}

// NewTypeDomain allocates a `domain` declaration — rectangular (fixed rank,
// no index type) or associative (keyed by an explicit index type), spec §3
// Composite "domain".
func (i *Items) NewTypeDomain(
	name source.StringID,
	generics []source.StringID,
	genericCommas []source.Span,
	genericsTrailing bool,
	genericsSpan source.Span,
	typeParams []TypeParamSpec,
	typeKwSpan source.Span,
	assignSpan source.Span,
	semicolonSpan source.Span,
	attrs []Attr,
	visibility Visibility,
	indexType TypeID,
	rank uint8,
	resizable bool,
	argsSpan source.Span,
	span source.Span,
) ItemID {
	attrStart, attrCount := i.allocateAttrs(attrs)
	typeParamsStart, typeParamsCount := i.allocateTypeParams(typeParams)
	payload := i.TypeDomains.Allocate(TypeDomainDecl{
		IndexType: indexType,
		Rank:      rank,
		Resizable: resizable,
		ArgsSpan:  argsSpan,
	})
	return i.newTypeHeader(name, generics, genericCommas, genericsTrailing, genericsSpan,
		typeParamsStart, typeParamsCount, typeKwSpan, assignSpan, semicolonSpan,
		attrStart, attrCount, TypeDeclDomain, PayloadID(payload), visibility, span)
}
