package types //nolint:revive

import (
	"fmt"
	"slices"

	"fortio.org/safecast"

	"rillc/internal/source"
)

// ParamIntent captures how a formal parameter may be used inside the
// function body (spec §3 Symbol "intent for formals").
type ParamIntent uint8

const (
	IntentBlank ParamIntent = iota
	IntentIn
	IntentOut
	IntentInOut
	IntentConst
	IntentRef
)

func (p ParamIntent) String() string {
	switch p {
	case IntentBlank:
		return "blank"
	case IntentIn:
		return "in"
	case IntentOut:
		return "out"
	case IntentInOut:
		return "inout"
	case IntentConst:
		return "const"
	case IntentRef:
		return "ref"
	default:
		return fmt.Sprintf("ParamIntent(%d)", p)
	}
}

// WhereResult is the tri-state evaluation result of a function's where-clause
// (spec §3 Function: "where-clause evaluation result ∈ {true, false, none}").
// WhereNone means the function carries no where-clause, or its clause could
// not be evaluated at the current revision (e.g. it depends on a still
// generic parameter) — it participates in overload resolution unconditionally.
type WhereResult uint8

const (
	WhereNone WhereResult = iota
	WhereTrue
	WhereFalse
)

func (w WhereResult) String() string {
	switch w {
	case WhereNone:
		return "none"
	case WhereTrue:
		return "true"
	case WhereFalse:
		return "false"
	default:
		return fmt.Sprintf("WhereResult(%d)", w)
	}
}

// FnParam is one ordered formal in a function type (spec §3 Function:
// "ordered formal details").
type FnParam struct {
	Name       source.StringID
	Type       TypeID
	Intent     ParamIntent
	HasDefault bool
}

// FnInfo stores metadata for function types.
type FnInfo struct {
	Params []FnParam
	Result TypeID
	Where  WhereResult

	// TypeParams/GenericFrom mirror RecordInfo's generic bookkeeping for
	// generic functions; GenericFrom is NoTypeID for the generic root.
	TypeParams  []TypeID
	GenericFrom TypeID
}

// ParamTypes returns the bare parameter types, in order, ignoring intent and
// default-ness — the shape overload candidate gathering compares first.
func (f *FnInfo) ParamTypes() []TypeID {
	if f == nil || len(f.Params) == 0 {
		return nil
	}
	out := make([]TypeID, len(f.Params))
	for i, p := range f.Params {
		out[i] = p.Type
	}
	return out
}

// RegisterFn creates or finds a function type with blank-intent, no-default
// parameters and no where-clause — the common case for synthesized function
// types (e.g. the Call Resolver's wrapper shapes).
func (in *Interner) RegisterFn(paramTypes []TypeID, result TypeID) TypeID {
	params := make([]FnParam, len(paramTypes))
	for i, t := range paramTypes {
		params[i] = FnParam{Type: t}
	}
	return in.RegisterFnDetailed(params, result, WhereNone)
}

// RegisterFnDetailed creates or finds a function type with full formal
// detail and where-clause result.
func (in *Interner) RegisterFnDetailed(params []FnParam, result TypeID, where WhereResult) TypeID {
	if in != nil {
		for id := TypeID(1); int(id) < len(in.types); id++ {
			tt := in.types[id]
			if tt.Kind != KindFn {
				continue
			}
			if int(tt.Payload) >= len(in.fns) {
				continue
			}
			info := in.fns[tt.Payload]
			if info.Result == result && info.Where == where && fnParamsEqual(info.Params, params) {
				return id
			}
		}
	}
	slot := in.appendFnInfo(FnInfo{
		Params: cloneFnParams(params),
		Result: result,
		Where:  where,
	})
	return in.internRaw(Type{Kind: KindFn, Payload: slot})
}

// FnInfo retrieves function type metadata by TypeID.
func (in *Interner) FnInfo(id TypeID) (*FnInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFn {
		return nil, false
	}
	if int(tt.Payload) >= len(in.fns) {
		return nil, false
	}
	return &in.fns[tt.Payload], true
}

func (in *Interner) appendFnInfo(info FnInfo) uint32 {
	in.fns = append(in.fns, FnInfo{
		Params:      cloneFnParams(info.Params),
		Result:      info.Result,
		Where:       info.Where,
		TypeParams:  cloneTypeArgs(info.TypeParams),
		GenericFrom: info.GenericFrom,
	})
	slot, err := safecast.Conv[uint32](len(in.fns) - 1)
	if err != nil {
		panic(fmt.Errorf("fn info overflow: %w", err))
	}
	return slot
}

func cloneFnParams(params []FnParam) []FnParam {
	if len(params) == 0 {
		return nil
	}
	return slices.Clone(params)
}

func fnParamsEqual(a, b []FnParam) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Type != b[i].Type || a[i].Intent != b[i].Intent || a[i].HasDefault != b[i].HasDefault {
			return false
		}
	}
	return true
}
