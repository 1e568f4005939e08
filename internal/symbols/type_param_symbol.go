package symbols

import (
	"rillc/internal/source"
	"rillc/internal/types"
)

// BoundInstance is one resolved contract bound on a type parameter, e.g. the
// `Comparable<U>` in `T: Comparable<U>`: Contract points at the contract's
// symbol and GenericArgs holds U resolved against the enclosing scope.
type BoundInstance struct {
	Contract    SymbolID
	GenericArgs []types.TypeID
	Span        source.Span
}

// TypeParamSymbol describes one generic parameter attached to a symbol: its
// name, any contract bounds resolved at declaration time, and whether it is
// a `param` (compile-time constant) parameter rather than a `type` one.
type TypeParamSymbol struct {
	Name      source.StringID
	Span      source.Span
	Bounds    []BoundInstance
	IsConst   bool
	ConstType types.TypeID
}

func cloneBoundInstances(bounds []BoundInstance) []BoundInstance {
	if len(bounds) == 0 {
		return nil
	}
	out := make([]BoundInstance, len(bounds))
	for i, b := range bounds {
		out[i] = b
		out[i].GenericArgs = append([]types.TypeID(nil), b.GenericArgs...)
	}
	return out
}

// CloneTypeParamSymbols deep-copies a slice of TypeParamSymbol, so the
// returned slice (and each entry's Bounds) shares no backing array with
// params — mirroring CloneContractSpec's copy-on-export semantics, used when
// a generic symbol's bounds cross a module export boundary.
func CloneTypeParamSymbols(params []TypeParamSymbol) []TypeParamSymbol {
	if len(params) == 0 {
		return nil
	}
	out := make([]TypeParamSymbol, len(params))
	for i, p := range params {
		out[i] = p
		out[i].Bounds = cloneBoundInstances(p.Bounds)
	}
	return out
}
