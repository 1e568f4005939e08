package ast

import (
	"fmt"

	"fortio.org/safecast"

	"rillc/internal/source"
)

// FnModifier is a bitset of declaration-site function modifiers.
type FnModifier uint16

const (
	FnModifierNone FnModifier = 0
	FnModifierAsync FnModifier = 1 << iota
	FnModifierStatic
	FnModifierOperator
	FnModifierMethod
	FnModifierInit
	FnModifierDeinit
	FnModifierParenless
	FnModifierExport
	FnModifierExtern
)

// ParamIntent captures the formal-parameter intent keyword as written
// (spec §3 Symbol "intent for formals ∈ {blank, in, out, inout, const, ref}").
type ParamIntent uint8

const (
	ParamIntentBlank ParamIntent = iota
	ParamIntentIn
	ParamIntentOut
	ParamIntentInOut
	ParamIntentConst
	ParamIntentRef
)

// FnParam is one formal parameter as written at the declaration site.
type FnParam struct {
	Name        source.StringID
	NameSpan    source.Span
	Intent      ParamIntent
	IntentSpan  source.Span
	Type        TypeID
	ColonSpan   source.Span
	Variadic    bool
	DotsSpan    source.Span
	Default     ExprID
	DefaultSpan source.Span
	AttrStart   AttrID
	AttrCount   uint32
	Span        source.Span
}

// FnItem is a function/method declaration.
type FnItem struct {
	Name                  source.StringID
	NameSpan              source.Span
	Generics              []source.StringID
	GenericCommas         []source.Span
	GenericsTrailingComma bool
	GenericsSpan          source.Span
	TypeParamsStart       TypeParamID
	TypeParamsCount       uint32
	ParamsStart           FnParamID
	ParamsCount           uint32
	ParamCommas           []source.Span
	ParamsTrailingComma   bool
	FnKeywordSpan         source.Span
	ParamsSpan            source.Span
	ReturnSpan            source.Span
	ReturnType            TypeID
	Where                 ExprID // NoExprID when the declaration carries no where-clause
	WhereKeywordSpan      source.Span
	Flags                 FnModifier
	Body                  StmtID
	AttrStart             AttrID
	AttrCount             uint32
	Visibility            Visibility
	Span                  source.Span
}

func (i *Items) Fn(id ItemID) (*FnItem, bool) {
	item := i.Arena.Get(uint32(id))
	if item == nil || item.Kind != ItemFn || !item.Payload.IsValid() {
		return nil, false
	}
	return i.Fns.Get(uint32(item.Payload)), true
}

// FnByPayload looks up a function declaration directly by its Fns-arena
// payload ID, bypassing the owning Item — used when a non-ItemFn container
// (e.g. an extern block member) references a function payload directly.
func (i *Items) FnByPayload(payload PayloadID) *FnItem {
	if !payload.IsValid() {
		return nil
	}
	return i.Fns.Get(uint32(payload))
}

// FnParam returns the formal at id.
func (i *Items) FnParam(id FnParamID) *FnParam {
	if !id.IsValid() {
		return nil
	}
	return i.FnParams.Get(uint32(id))
}

// GetFnParamIDs expands fn's (ParamsStart, ParamsCount) run into individual IDs.
func (i *Items) GetFnParamIDs(fn *FnItem) []FnParamID {
	if fn == nil || !fn.ParamsStart.IsValid() || fn.ParamsCount == 0 {
		return nil
	}
	result := make([]FnParamID, fn.ParamsCount)
	base := uint32(fn.ParamsStart)
	for idx := range fn.ParamsCount {
		result[idx] = FnParamID(base + uint32(idx))
	}
	return result
}

func (i *Items) allocateFnParams(params []FnParam) (start FnParamID, count uint32) {
	if len(params) == 0 {
		return NoFnParamID, 0
	}
	for idx, p := range params {
		id := FnParamID(i.FnParams.Allocate(p))
		if idx == 0 {
			start = id
		}
	}
	var err error
	count, err = safecast.Conv[uint32](len(params))
	if err != nil {
		panic(fmt.Errorf("fn params overflow: %w", err))
	}
	return start, count
}

// NewFn allocates a function/method declaration.
func (i *Items) NewFn(
	name source.StringID,
	nameSpan source.Span,
	generics []source.StringID,
	genericCommas []source.Span,
	genericsTrailing bool,
	genericsSpan source.Span,
	typeParams []TypeParamSpec,
	params []FnParam,
	paramCommas []source.Span,
	paramsTrailing bool,
	fnKwSpan source.Span,
	paramsSpan source.Span,
	returnSpan source.Span,
	returnType TypeID,
	where ExprID,
	whereKwSpan source.Span,
	flags FnModifier,
	body StmtID,
	attrs []Attr,
	visibility Visibility,
	span source.Span,
) ItemID {
	attrStart, attrCount := i.allocateAttrs(attrs)
	typeParamsStart, typeParamsCount := i.allocateTypeParams(typeParams)
	paramsStart, paramsCount := i.allocateFnParams(params)
	payload := i.Fns.Allocate(FnItem{
		Name:                  name,
		NameSpan:              nameSpan,
		Generics:              append([]source.StringID(nil), generics...),
		GenericCommas:         append([]source.Span(nil), genericCommas...),
		GenericsTrailingComma: genericsTrailing,
		GenericsSpan:          genericsSpan,
		TypeParamsStart:       typeParamsStart,
		TypeParamsCount:       typeParamsCount,
		ParamsStart:           paramsStart,
		ParamsCount:           paramsCount,
		ParamCommas:           append([]source.Span(nil), paramCommas...),
		ParamsTrailingComma:   paramsTrailing,
		FnKeywordSpan:         fnKwSpan,
		ParamsSpan:            paramsSpan,
		ReturnSpan:            returnSpan,
		ReturnType:            returnType,
		Where:                 where,
		WhereKeywordSpan:      whereKwSpan,
		Flags:                 flags,
		Body:                  body,
		AttrStart:             attrStart,
		AttrCount:             attrCount,
		Visibility:            visibility,
		Span:                  span,
	})
	return i.New(ItemFn, span, PayloadID(payload))
}
