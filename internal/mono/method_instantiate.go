package mono

import (
	"rillc/internal/source"
	"rillc/internal/symbols"
	"rillc/internal/types"
)

// instantiateTypeMethods lazily clones every method declared against mt's
// generic origin (compiler-generated or user-declared) into a MonoFunc
// specialized to mt.TypeArgs. It runs once per MonoType, right after the
// type itself is registered, so a method call discovered later through
// rewriteCallsInFunc resolves against an ensureFunc key that already
// exists instead of racing the type's own instantiation.
//
// A method on a generic record takes its type arguments from the
// receiver, not from its own symbol (Fn items set TypeParams only for
// generics declared on the function itself, never implicitly from the
// enclosing type), so this does not reuse ensureFunc's own-type-param
// gate directly — it calls ensureMethodFunc, which substitutes using the
// receiver's type args the same way ensureFunc already does for a
// regular function whose receiverTypeSymbol resolves to a distinct
// owner (see the subst.OwnerSyms branch there).
//
// Compiler-generated members (init, deinit, init=, field accessors — see
// sema's synthesizeGeneratedMethods) carry a Signature but no HIR body;
// ensureMethodFunc treats a symbol with no origFuncBySym entry as
// imported/intrinsic and registers a bare MonoFunc for it, same as
// ensureFunc does for the generic (uninstantiated) method — the instance
// is reachable under its own MonoKey so call sites resolve, and filling
// in the actual copy semantics remains HIR lowering's job.
func (b *monoBuilder) instantiateTypeMethods(mt *MonoType) {
	if b == nil || mt == nil || len(mt.TypeArgs) == 0 {
		return
	}
	if b.mod == nil || b.mod.Symbols == nil || b.mod.Symbols.Table == nil {
		return
	}
	table := b.mod.Symbols.Table
	if table.Symbols == nil || table.Strings == nil {
		return
	}
	origSym := table.Symbols.Get(mt.OrigSym)
	if origSym == nil || origSym.Name == source.NoStringID {
		return
	}
	typeName := table.Strings.MustLookup(origSym.Name)
	if typeName == "" {
		return
	}

	data := table.Symbols.Data()
	if data == nil {
		return
	}
	seen := make(map[string]struct{})
	for i := range data {
		methodSym := &data[i]
		if methodSym.Kind != symbols.SymbolFunction || methodSym.ReceiverKey == "" {
			continue
		}
		if baseTypeName(methodSym.ReceiverKey) != typeName {
			continue
		}
		name := b.symbolNameString(methodSym.Name)
		if name == "" {
			continue
		}
		// A user override in the same defining scope shadows the
		// compiler-generated member of the same name (hasUserMethod's
		// rule, mirrored here so a type isn't given two `init` instances).
		if _, dup := seen[name]; dup {
			continue
		}
		seen[name] = struct{}{}

		methodSymID := symbols.SymbolID(i + 1)
		b.ensureMethodFunc(methodSymID, mt.OrigSym, mt.TypeArgs)
	}
}

// ensureMethodFunc instantiates a method symbol for one concrete receiver
// instantiation. Unlike ensureFunc, the type-argument count is validated
// against the receiver type's parameters rather than the method symbol's
// own (a method implicitly shares its receiver's generic parameters
// instead of redeclaring them).
func (b *monoBuilder) ensureMethodFunc(methodSym, receiverTypeSym symbols.SymbolID, typeArgs []types.TypeID) *MonoFunc {
	if b == nil || !methodSym.IsValid() || len(typeArgs) == 0 {
		return nil
	}
	normalized := NormalizeTypeArgs(b.types, typeArgs)
	key := MonoKey{Sym: methodSym, ArgsKey: argsKeyFromTypes(normalized)}
	if existing := b.mm.Funcs[key]; existing != nil {
		return existing
	}

	instanceSym := b.allocInstanceSym()
	out := &MonoFunc{
		Key:         key,
		InstanceSym: instanceSym,
		OrigSym:     methodSym,
		TypeArgs:    normalized,
	}
	b.mm.Funcs[key] = out
	b.mm.FuncBySym[instanceSym] = out

	origFn := b.origFuncBySym[methodSym]
	if origFn == nil {
		// Compiler-generated or extern member without an HIR body.
		return out
	}

	clone := cloneFunc(origFn)
	clone.ID = b.allocFuncID()
	clone.SymbolID = instanceSym
	clone.Name = b.monoName(methodSym, normalized)
	clone.GenericParams = nil
	clone.Borrow = nil
	clone.MovePlan = nil

	subst := &Subst{
		Types:     b.types,
		OwnerSym:  receiverTypeSym,
		OwnerSyms: []symbols.SymbolID{receiverTypeSym},
		TypeArgs:  normalized,
	}
	if owner := b.symbolOrNil(receiverTypeSym); owner != nil && len(owner.TypeParams) == len(normalized) {
		subst.NameArgs = make(map[source.StringID]types.TypeID, len(normalized))
		for i, name := range owner.TypeParams {
			if name != source.NoStringID && normalized[i] != types.NoTypeID {
				subst.NameArgs[name] = normalized[i]
			}
		}
	}
	if err := subst.ApplyFunc(clone); err != nil {
		return out
	}
	if err := b.rewriteCallsInFunc(clone, methodSym, subst, []MonoKey{key}); err != nil {
		return out
	}

	out.Func = clone
	return out
}

func (b *monoBuilder) symbolOrNil(sym symbols.SymbolID) *symbols.Symbol {
	if b == nil || b.mod == nil || b.mod.Symbols == nil || b.mod.Symbols.Table == nil || b.mod.Symbols.Table.Symbols == nil {
		return nil
	}
	return b.mod.Symbols.Table.Symbols.Get(sym)
}

func (b *monoBuilder) symbolNameString(id source.StringID) string {
	if b == nil || b.mod == nil || b.mod.Symbols == nil || b.mod.Symbols.Table == nil || b.mod.Symbols.Table.Strings == nil {
		return ""
	}
	return b.mod.Symbols.Table.Strings.MustLookup(id)
}
