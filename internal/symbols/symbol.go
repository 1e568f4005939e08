package symbols

import (
	"rillc/internal/ast"
	"rillc/internal/source"
	"rillc/internal/types"
)

// SymbolKind classifies the semantic meaning of a symbol.
type SymbolKind uint8

const (
	SymbolInvalid SymbolKind = iota
	SymbolModule
	SymbolImport
	SymbolFunction
	SymbolLet
	SymbolType
	SymbolParam
	SymbolTag
	SymbolConst
	SymbolContract
)

// SymbolFlags encode misc attributes for quick checks.
type SymbolFlags uint16

const (
	SymbolFlagPublic SymbolFlags = 1 << iota
	SymbolFlagMutable
	SymbolFlagImported
	SymbolFlagBuiltin
	SymbolFlagMethod
	SymbolFlagEntrypoint
	SymbolFlagFilePrivate
	SymbolFlagAllowTo // every parameter allows implicit `to` conversion, overriding Signature.AllowTo
	SymbolFlagCompilerGenerated
)

// EntrypointMode records how an @entrypoint function receives its
// invocation payload, per the mode argument on the attribute.
type EntrypointMode uint8

const (
	EntrypointModeNone EntrypointMode = iota
	EntrypointModeArgv
	EntrypointModeStdin
	EntrypointModeEnv
	EntrypointModeConfig
)

func (k SymbolKind) String() string {
	switch k {
	case SymbolModule:
		return "module"
	case SymbolImport:
		return "import"
	case SymbolFunction:
		return "function"
	case SymbolLet:
		return "let"
	case SymbolType:
		return "type"
	case SymbolParam:
		return "param"
	case SymbolTag:
		return "tag"
	case SymbolConst:
		return "const"
	case SymbolContract:
		return "contract"
	default:
		return "invalid"
	}
}

// Strings returns a slice of textual flag labels.
func (f SymbolFlags) Strings() []string {
	if f == 0 {
		return nil
	}
	labels := make([]string, 0, 4)
	if f&SymbolFlagPublic != 0 {
		labels = append(labels, "public")
	}
	if f&SymbolFlagMutable != 0 {
		labels = append(labels, "mutable")
	}
	if f&SymbolFlagImported != 0 {
		labels = append(labels, "imported")
	}
	if f&SymbolFlagBuiltin != 0 {
		labels = append(labels, "builtin")
	}
	if f&SymbolFlagMethod != 0 {
		labels = append(labels, "method")
	}
	if f&SymbolFlagEntrypoint != 0 {
		labels = append(labels, "entrypoint")
	}
	if f&SymbolFlagFilePrivate != 0 {
		labels = append(labels, "file-private")
	}
	if f&SymbolFlagAllowTo != 0 {
		labels = append(labels, "allow-to")
	}
	if f&SymbolFlagCompilerGenerated != 0 {
		labels = append(labels, "compiler-generated")
	}
	return labels
}

// SymbolDecl focuses on the AST origin for diagnostics.
type SymbolDecl struct {
	SourceFile source.FileID
	ASTFile    ast.FileID
	Item       ast.ItemID
	Stmt       ast.StmtID
	Expr       ast.ExprID
}

// Symbol describes a named entity available in a scope.
type Symbol struct {
	Name           source.StringID
	Kind           SymbolKind
	Scope          ScopeID
	Span           source.Span
	Flags          SymbolFlags
	Decl           SymbolDecl
	Aliases        []source.StringID
	Requires       []SymbolID // optional dependencies (e.g., import group)
	Signature      *FunctionSignature
	ModulePath     string
	ImportName     source.StringID
	Type           types.TypeID
	EntrypointMode EntrypointMode
	Receiver       ast.TypeID
	ReceiverKey    TypeKey
	TypeParams     []source.StringID
	TypeParamSpan  source.Span

	// TypeParamSymbols carries resolved per-parameter metadata (contract
	// bounds, param-vs-type kind) for symbols with generic parameters;
	// TypeParams above stays the plain name list used for simpler lookups.
	TypeParamSymbols []TypeParamSymbol

	// Contract holds field/method requirements when Kind == SymbolContract.
	Contract *ContractSpec
}
