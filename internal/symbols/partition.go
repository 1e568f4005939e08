package symbols

import (
	"strings"

	"rillc/internal/ast"
	"rillc/internal/source"
)

// ModulePartition separates a file's top-level items into globals
// (declarations and imports that stay at module scope) and init statements
// (let items whose initializer expression only runs as part of the module's
// implicit initializer).
type ModulePartition struct {
	Globals []ast.ItemID
	Inits   []ast.ItemID
}

// PartitionModule classifies file's top-level items per the module
// initialization rule: a let item carrying an initializer expression
// contributes an init statement, run inside the file's synthetic
// __init_<module> function; every other item (fn, type, tag, extern, pragma,
// import, macro, contract, const, and let items with no initializer) stays a
// module-scope global. ResolveFile applies this same classification inline
// via fileResolver.pendingInits; PartitionModule exposes it standalone for
// callers (e.g. the pass driver) that need the split before or independently
// of a full resolve pass.
func PartitionModule(builder *ast.Builder, fileID ast.FileID) ModulePartition {
	var part ModulePartition
	if builder == nil {
		return part
	}
	file := builder.Files.Get(fileID)
	if file == nil {
		return part
	}
	for _, itemID := range file.Items {
		item := builder.Items.Get(itemID)
		if item == nil {
			continue
		}
		if item.Kind == ast.ItemLet {
			if letItem, ok := builder.Items.Let(itemID); ok && letItem != nil && letItem.Value.IsValid() {
				part.Inits = append(part.Inits, itemID)
				continue
			}
		}
		part.Globals = append(part.Globals, itemID)
	}
	return part
}

// InitFunctionName derives the synthetic per-module initializer name from a
// module path, e.g. "core/collections" -> "__init_core_collections".
func InitFunctionName(modulePath string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '/', '.', '-':
			return '_'
		default:
			return r
		}
	}, modulePath)
	if sanitized == "" {
		return "__init_module"
	}
	return "__init_" + sanitized
}

// resolveModuleInits declares the module's synthetic __init_<module>
// function and resolves every queued let-initializer expression inside its
// scope. The let's own symbol was already declared at module scope by
// declareLet before this runs, so forward references between module-level
// lets resolve, and only names introduced *within* an initializer's own
// expression (e.g. a nested block's temporaries) end up scoped to the init
// function rather than leaking to module scope.
func (fr *fileResolver) resolveModuleInits(fileSpan source.Span) {
	if len(fr.pendingInits) == 0 {
		return
	}
	inits := fr.pendingInits
	fr.pendingInits = nil

	name := InitFunctionName(fr.modulePath)
	nameID := fr.builder.StringsInterner.Intern(name)
	decl := SymbolDecl{
		SourceFile: fr.sourceFile,
		ASTFile:    fr.fileID,
	}
	if reused := fr.findExistingSymbol(nameID, SymbolFunction, decl); !reused.IsValid() {
		if symID, ok := fr.resolver.Declare(nameID, fileSpan, SymbolFunction, SymbolFlagFilePrivate, decl); ok {
			if sym := fr.result.Table.Symbols.Get(symID); sym != nil {
				sym.Signature = &FunctionSignature{HasBody: true}
			}
		}
	}

	owner := ScopeOwner{
		Kind:       ScopeOwnerFile,
		SourceFile: fr.sourceFile,
		ASTFile:    fr.fileID,
	}
	scopeID := fr.resolver.Enter(ScopeFunction, owner, fileSpan)
	for _, itemID := range inits {
		letItem, ok := fr.builder.Items.Let(itemID)
		if !ok || letItem == nil || !letItem.Value.IsValid() {
			continue
		}
		fr.walkExpr(letItem.Value)
	}
	fr.resolver.Leave(scopeID)
}
