package symbols

import (
	"rillc/internal/ast"
	"rillc/internal/source"
)

func (fr *fileResolver) externReceiverTypeParams(target ast.TypeID) []source.StringID {
	if fr == nil || fr.builder == nil || !target.IsValid() {
		return nil
	}
	seen := make(map[source.StringID]struct{})
	params := make([]source.StringID, 0, 2)
	var visit func(ast.TypeID)
	visit = func(id ast.TypeID) {
		if !id.IsValid() {
			return
		}
		expr := fr.builder.Types.Get(id)
		if expr == nil {
			return
		}
		switch expr.Kind {
		case ast.TypeExprPointer:
			if ptr, ok := fr.builder.Types.Pointer(id); ok && ptr != nil {
				visit(ptr.Elem)
			}
		case ast.TypeExprReference:
			if ref, ok := fr.builder.Types.Reference(id); ok && ref != nil {
				visit(ref.Elem)
			}
		case ast.TypeExprManaged:
			if managed, ok := fr.builder.Types.ManagedDetail(id); ok && managed != nil {
				visit(managed.Elem)
			}
		case ast.TypeExprArray:
			if arr, ok := fr.builder.Types.ArrayDetail(id); ok && arr != nil {
				visit(arr.Elem)
			}
		case ast.TypeExprDomain:
			if dom, ok := fr.builder.Types.DomainDetail(id); ok && dom != nil && dom.HasIndexType {
				visit(dom.IndexType)
			}
		case ast.TypeExprTuple:
			if tup, ok := fr.builder.Types.TupleDetail(id); ok && tup != nil {
				for _, elem := range tup.Elems {
					visit(elem)
				}
			}
		case ast.TypeExprFn:
			if fn, ok := fr.builder.Types.FnDetail(id); ok && fn != nil {
				for _, param := range fn.Params {
					visit(param)
				}
				visit(fn.Result)
			}
		case ast.TypeExprGeneric:
			if gen, ok := fr.builder.Types.GenericDetail(id); ok && gen != nil {
				visit(gen.Base)
				for _, arg := range gen.Args {
					if bare, ok := fr.builder.Types.Path(arg); ok && bare != nil {
						name := bare.Name
						if name == source.NoStringID || fr.isKnownTypeName(name) {
							continue
						}
						if _, exists := seen[name]; !exists {
							seen[name] = struct{}{}
							params = append(params, name)
						}
						continue
					}
					visit(arg)
				}
			}
		}
	}
	visit(target)
	return params
}

func (fr *fileResolver) isKnownTypeName(id source.StringID) bool {
	name := fr.lookupString(id)
	if name == "" {
		return false
	}
	switch name {
	case "int", "int8", "int16", "int32", "int64",
		"uint", "uint8", "uint16", "uint32", "uint64",
		"float", "float16", "float32", "float64",
		"bool", "string", "nothing", "unit":
		return true
	}
	if fr.resolver != nil && fr.result != nil && fr.result.Table != nil {
		if symID, ok := fr.resolver.Lookup(id); ok {
			if sym := fr.result.Table.Symbols.Get(symID); sym != nil && sym.Kind == SymbolType {
				return true
			}
		}
	}
	return false
}
