package symbols

import (
	"rillc/internal/ast"
	"rillc/internal/source"
)

// ScopeKind enumerates supported scope categories.
type ScopeKind uint8

const (
	ScopeInvalid  ScopeKind = iota
	ScopeFile               // artificial root per parsed file
	ScopeModule             // module-level (top-level declarations)
	ScopeFunction           // function body scope
	ScopeBlock              // generic block scope
	ScopeImport             // synthetic scope holding a wildcard import's bindings
)

func (k ScopeKind) String() string {
	switch k {
	case ScopeFile:
		return "file"
	case ScopeModule:
		return "module"
	case ScopeFunction:
		return "function"
	case ScopeBlock:
		return "block"
	case ScopeImport:
		return "import"
	default:
		return "invalid"
	}
}

// ScopeOwnerKind distinguishes what AST element owns a scope.
type ScopeOwnerKind uint8

const (
	ScopeOwnerUnknown ScopeOwnerKind = iota
	ScopeOwnerFile
	ScopeOwnerItem
	ScopeOwnerStmt
	ScopeOwnerExpr
)

// ScopeOwner references an AST construct associated with the scope.
type ScopeOwner struct {
	Kind       ScopeOwnerKind
	SourceFile source.FileID
	ASTFile    ast.FileID
	Item       ast.ItemID
	Extern     ast.ExternMemberID
	Stmt       ast.StmtID
	Expr       ast.ExprID
}

// Scope models a lexical scope with a parent-child hierarchy. Imports holds
// wildcard-import scopes attached to this scope, consulted by LookupConfig's
// IMPORTS flag: their bindings are shadowed by this scope's own declarations
// but shadow declarations reached by walking further up the Parent chain.
type Scope struct {
	Kind      ScopeKind
	Parent    ScopeID
	Owner     ScopeOwner
	Span      source.Span
	NameIndex map[source.StringID][]SymbolID
	Symbols   []SymbolID
	Children  []ScopeID
	Imports   []ScopeID
}
