package sema

import (
	"context"

	"rillc/internal/ast"
	"rillc/internal/diag"
	"rillc/internal/symbols"
	"rillc/internal/trace"
	"rillc/internal/types"
)

// Options configure a semantic pass over a file.
type Options struct {
	Reporter diag.Reporter
	Symbols  *symbols.Result
	Types    *types.Interner

	// Exports carries cross-module export tables (module path -> exports)
	// so a file being checked can resolve symbols another module exposes.
	Exports map[string]*symbols.ModuleExports

	// AlienHints enables suggestions for identifiers that resemble names
	// exported by another module but were not imported.
	AlienHints bool
	Bag        *diag.Bag

	// Instantiations records concrete generic instantiations discovered
	// while checking, e.g. for a later monomorphization pass.
	Instantiations InstantiationRecorder
}

// Result stores semantic artefacts produced by the checker: resolved
// expression/binding types plus the side tables the borrow graph builder,
// HIR lowerer, and generic instantiator consult instead of re-deriving them.
type Result struct {
	TypeInterner *types.Interner
	ExprTypes    map[ast.ExprID]types.TypeID
	BindingTypes map[symbols.SymbolID]types.TypeID
	ItemScopes   map[ast.ItemID]symbols.ScopeID

	ExprBorrows    map[ast.ExprID]BorrowID
	Borrows        []BorrowInfo
	BorrowBindings map[BorrowID]symbols.SymbolID
	BorrowEvents   []BorrowEvent

	CloneSymbols        map[ast.ExprID]symbols.SymbolID
	ToSymbols           map[ast.ExprID]symbols.SymbolID
	MagicBinarySymbols  map[ast.ExprID]symbols.SymbolID
	MagicUnarySymbols   map[ast.ExprID]symbols.SymbolID
	IndexSymbols        map[ast.ExprID]symbols.SymbolID
	IndexSetSymbols     map[ast.ExprID]symbols.SymbolID
	HeirOperands        map[ast.ExprID]HeirOperand
	IsOperands          map[ast.ExprID]IsOperand
	ImplicitConversions map[ast.ExprID]ImplicitConversion
	BlockingCaptures    map[ast.ExprID][]symbols.SymbolID

	FunctionInstantiations map[symbols.SymbolID][][]types.TypeID
	CopyTypes              map[types.TypeID]struct{}
}

// Check performs semantic analysis (type inference, borrow checks, magic
// method resolution) over a file plus its module siblings.
func Check(ctx context.Context, builder *ast.Builder, fileID ast.FileID, opts Options) Result {
	res := Result{
		ExprTypes: make(map[ast.ExprID]types.TypeID),
	}
	if opts.Types != nil {
		res.TypeInterner = opts.Types
	} else {
		res.TypeInterner = types.NewInterner()
	}
	if builder == nil || fileID == ast.NoFileID {
		return res
	}

	checker := typeChecker{
		builder:               builder,
		fileID:                fileID,
		reporter:              opts.Reporter,
		symbols:               opts.Symbols,
		result:                &res,
		types:                 res.TypeInterner,
		tracer:                trace.FromContext(ctx),
		exports:               opts.Exports,
		instantiationRecorder: opts.Instantiations,
	}
	checker.run()
	emitAlienHints(builder, fileID, opts)
	return res
}
