package sema

import (
	"rillc/internal/source"
	"rillc/internal/symbols"
	"rillc/internal/types"
)

// synthesizeGeneratedMethods registers the compiler-generated members a
// record type receives for free when the defining scope has no override:
// a memberwise init, a no-op deinit, a copy-initializer init=, and one
// field-accessor method per field. Each is inserted directly into the
// symbol arena with symbols.SymbolFlagCompilerGenerated set, so the
// ordinary method-lookup paths (resolveMethodCallSymbol, buildMagicIndex)
// find them exactly as they would a user-declared method, and so
// disambiguation rule 5 (preferUserDeclared) has a flag to read when a
// user later shadows one of them in a more specific overload set.
func (tc *typeChecker) synthesizeGeneratedMethods(typeID types.TypeID, fields []types.StructField) {
	if tc.symbols == nil || tc.symbols.Table == nil || tc.symbols.Table.Symbols == nil || tc.builder == nil {
		return
	}
	receiverKey := tc.typeKeyForType(typeID)
	if receiverKey == "" {
		return
	}

	tc.synthesizeInit(receiverKey, fields)
	tc.synthesizeDeinit(receiverKey)
	tc.synthesizeInitEquals(receiverKey)
	tc.synthesizeFieldAccessors(receiverKey, fields)
}

// hasUserMethod reports whether receiverKey already declares a method named
// name anywhere in the symbol arena, whether or not it was itself
// compiler-generated — a second synthesis pass (e.g. re-instantiating a
// generic record) must not register duplicates.
func (tc *typeChecker) hasUserMethod(receiverKey symbols.TypeKey, name string) bool {
	data := tc.symbols.Table.Symbols.Data()
	if data == nil {
		return false
	}
	for i := range data {
		sym := &data[i]
		if sym.Kind != symbols.SymbolFunction || sym.ReceiverKey == "" {
			continue
		}
		if !typeKeyEqual(sym.ReceiverKey, receiverKey) {
			continue
		}
		if tc.symbolName(sym.Name) == name {
			return true
		}
	}
	return false
}

func (tc *typeChecker) defineGeneratedMethod(name string, receiverKey symbols.TypeKey, sig *symbols.FunctionSignature, scope symbols.ScopeID) symbols.SymbolID {
	sym := &symbols.Symbol{
		Name:        tc.builder.StringsInterner.Intern(name),
		Kind:        symbols.SymbolFunction,
		Scope:       scope,
		Flags:       symbols.SymbolFlagCompilerGenerated,
		Signature:   sig,
		ReceiverKey: receiverKey,
	}
	return tc.symbols.Table.Symbols.New(sym)
}

func (tc *typeChecker) synthesizeInit(receiverKey symbols.TypeKey, fields []types.StructField) {
	if tc.hasUserMethod(receiverKey, "init") {
		return
	}
	params := make([]symbols.TypeKey, 0, len(fields)+1)
	names := make([]source.StringID, 0, len(fields)+1)
	params = append(params, receiverKey)
	names = append(names, source.NoStringID)
	for _, f := range fields {
		params = append(params, tc.typeKeyForType(f.Type))
		names = append(names, f.Name)
	}
	sig := &symbols.FunctionSignature{
		Params:     params,
		ParamNames: names,
		Variadic:   make([]bool, len(params)),
		Defaults:   make([]bool, len(params)),
		AllowTo:    make([]bool, len(params)),
		Result:     "",
		HasBody:    true,
		HasSelf:    true,
	}
	tc.defineGeneratedMethod("init", receiverKey, sig, tc.fileScope())
}

func (tc *typeChecker) synthesizeDeinit(receiverKey symbols.TypeKey) {
	if tc.hasUserMethod(receiverKey, "deinit") {
		return
	}
	sig := &symbols.FunctionSignature{
		Params:     []symbols.TypeKey{receiverKey},
		ParamNames: []source.StringID{source.NoStringID},
		Variadic:   []bool{false},
		Defaults:   []bool{false},
		AllowTo:    []bool{false},
		Result:     "",
		HasBody:    true,
		HasSelf:    true,
	}
	tc.defineGeneratedMethod("deinit", receiverKey, sig, tc.fileScope())
}

func (tc *typeChecker) synthesizeInitEquals(receiverKey symbols.TypeKey) {
	if tc.hasUserMethod(receiverKey, "init=") {
		return
	}
	sig := &symbols.FunctionSignature{
		Params:     []symbols.TypeKey{receiverKey, receiverKey},
		ParamNames: []source.StringID{source.NoStringID, source.NoStringID},
		Variadic:   []bool{false, false},
		Defaults:   []bool{false, false},
		AllowTo:    []bool{false, false},
		Result:     "",
		HasBody:    true,
		HasSelf:    true,
	}
	tc.defineGeneratedMethod("init=", receiverKey, sig, tc.fileScope())
}

func (tc *typeChecker) synthesizeFieldAccessors(receiverKey symbols.TypeKey, fields []types.StructField) {
	for _, f := range fields {
		name := tc.lookupName(f.Name)
		if name == "" || tc.hasUserMethod(receiverKey, name) {
			continue
		}
		sig := &symbols.FunctionSignature{
			Params:     []symbols.TypeKey{receiverKey},
			ParamNames: []source.StringID{source.NoStringID},
			Variadic:   []bool{false},
			Defaults:   []bool{false},
			AllowTo:    []bool{false},
			Result:     tc.typeKeyForType(f.Type),
			HasBody:    true,
			HasSelf:    true,
		}
		tc.defineGeneratedMethod(name, receiverKey, sig, tc.fileScope())
	}
}
