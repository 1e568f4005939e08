package symbols

import (
	"fmt"

	"rillc/internal/ast"
	"rillc/internal/diag"
	"rillc/internal/source"
)

// ResolveOptions controls a resolve pass for a single AST file.
type ResolveOptions struct {
	Table         *Table
	Hints         Hints
	Prelude       []PreludeEntry
	Reporter      diag.Reporter
	Validate      bool
	ModulePath    string
	BaseDir       string
	FilePath      string
	NoStd         bool
	DeclareOnly   bool
	ReuseDecls    bool
	ModuleExports map[string]*ModuleExports
	AliasExports  map[source.StringID]*ModuleExports
}

// Result captures resolve artefacts for one file.
type Result struct {
	Table         *Table
	File          ast.FileID
	FileScope     ScopeID
	ItemSymbols   map[ast.ItemID][]SymbolID
	ExprSymbols   map[ast.ExprID]SymbolID
	ExternSymbols map[ast.ExternMemberID]SymbolID
}

// ResolveFile walks the AST file and populates the symbol table.
func ResolveFile(builder *ast.Builder, fileID ast.FileID, opts *ResolveOptions) Result {
	if opts == nil {
		opts = &ResolveOptions{}
	}
	var table *Table
	if opts.Table != nil {
		table = opts.Table
	} else {
		table = NewTable(opts.Hints, builder.StringsInterner)
	}

	result := Result{
		Table:         table,
		File:          fileID,
		ItemSymbols:   make(map[ast.ItemID][]SymbolID),
		ExprSymbols:   make(map[ast.ExprID]SymbolID),
		ExternSymbols: make(map[ast.ExternMemberID]SymbolID),
	}

	file := builder.Files.Get(fileID)
	if file == nil {
		return result
	}

	sourceFile := file.Span.File
	fileScope := table.FileRoot(sourceFile, file.Span)
	result.FileScope = fileScope

	resolver := NewResolver(table, fileScope, ResolverOptions{
		Reporter: opts.Reporter,
		Prelude:  opts.Prelude,
	})

	fr := fileResolver{
		builder:             builder,
		result:              &result,
		resolver:            resolver,
		fileID:              fileID,
		sourceFile:          sourceFile,
		modulePath:          opts.ModulePath,
		baseDir:             opts.BaseDir,
		filePath:            opts.FilePath,
		noStd:               opts.NoStd,
		declareOnly:         opts.DeclareOnly,
		reuseDecls:          opts.ReuseDecls,
		moduleExports:       opts.ModuleExports,
		aliasExports:        opts.AliasExports,
		aliasModulePaths:    make(map[source.StringID]string),
		moduleImports:       make(map[string]source.Span),
		syntheticImportSyms: make(map[string]SymbolID),
	}
	if fr.aliasExports == nil {
		fr.aliasExports = make(map[source.StringID]*ModuleExports)
	}
	fr.injectCoreExports()
	for _, itemID := range file.Items {
		fr.handleItem(itemID)
	}
	fr.resolveModuleInits(file.Span)

	if opts.Validate {
		if err := table.Validate(); err != nil {
			if opts.Reporter != nil {
				msg := fmt.Sprintf("symbol table invariant violation: %v", err)
				diag.ReportError(opts.Reporter, diag.SemaError, file.Span, msg).Emit()
			} else {
				panic(err)
			}
		}
	}

	return result
}

type fileResolver struct {
	builder    *ast.Builder
	result     *Result
	resolver   *Resolver
	fileID     ast.FileID
	sourceFile source.FileID

	modulePath string
	baseDir    string
	filePath   string
	noStd      bool

	declareOnly bool
	reuseDecls  bool

	moduleExports    map[string]*ModuleExports
	aliasExports     map[source.StringID]*ModuleExports
	aliasModulePaths map[source.StringID]string
	moduleImports    map[string]source.Span

	syntheticImportSyms map[string]SymbolID
	typeParamStack      []source.StringID
	pendingInits        []ast.ItemID
}

func (fr *fileResolver) handleExtern(itemID ast.ItemID, block *ast.ExternBlock) {
	if block.MembersCount == 0 || !block.MembersStart.IsValid() {
		return
	}
	receiverKey := makeTypeKey(fr.builder, block.Target)
	start := uint32(block.MembersStart)
	for offset := range block.MembersCount {
		memberID := ast.ExternMemberID(start + offset)
		member := fr.builder.Items.ExternMember(memberID)
		if member == nil || member.Kind != ast.ExternMemberFn {
			continue
		}
		fn := fr.builder.Items.FnByPayload(member.Fn)
		if fn == nil {
			continue
		}
		fr.declareExternFn(itemID, memberID, receiverKey, fn)
	}
}

func (fr *fileResolver) appendItemSymbol(item ast.ItemID, id SymbolID) {
	if !id.IsValid() {
		return
	}
	fr.result.ItemSymbols[item] = append(fr.result.ItemSymbols[item], id)
}

func preferSpan(primary, fallback source.Span) source.Span {
	if primary != (source.Span{}) {
		return primary
	}
	return fallback
}

func fnNameSpan(fn *ast.FnItem) source.Span {
	if fn == nil {
		return source.Span{}
	}
	if fn.FnKeywordSpan != (source.Span{}) && fn.ParamsSpan != (source.Span{}) && fn.FnKeywordSpan.File == fn.ParamsSpan.File {
		if fn.ParamsSpan.Start >= fn.FnKeywordSpan.End {
			return source.Span{
				File:  fn.FnKeywordSpan.File,
				Start: fn.FnKeywordSpan.End,
				End:   fn.ParamsSpan.Start,
			}
		}
	}
	return fn.Span
}
