package symbols

import (
	"rillc/internal/ast"
	"rillc/internal/source"
)

func (fr *fileResolver) handleItem(id ast.ItemID) {
	item := fr.builder.Items.Get(id)
	if item == nil {
		return
	}
	switch item.Kind {
	case ast.ItemLet:
		if letItem, ok := fr.builder.Items.Let(id); ok && letItem != nil {
			fr.walkTypeExpr(letItem.Type)
			fr.declareLet(id, letItem)
		}
	case ast.ItemConst:
		if constItem, ok := fr.builder.Items.Const(id); ok && constItem != nil {
			fr.walkTypeExpr(constItem.Type)
			if syms := fr.result.ItemSymbols[id]; len(syms) == 0 {
				fr.declareConstItem(id, constItem)
			}
			if constItem.Value.IsValid() {
				fr.walkExpr(constItem.Value)
			}
		}
	case ast.ItemFn:
		if fnItem, ok := fr.builder.Items.Fn(id); ok && fnItem != nil {
			fr.declareFn(id, fnItem)
		}
	case ast.ItemType:
		if typeItem, ok := fr.builder.Items.Type(id); ok && typeItem != nil {
			fr.declareType(id, typeItem)
		}
	case ast.ItemContract:
		if contractItem, ok := fr.builder.Items.Contract(id); ok && contractItem != nil {
			fr.declareContract(id, contractItem)
		}
	case ast.ItemTag:
		if tagItem, ok := fr.builder.Items.Tag(id); ok && tagItem != nil {
			fr.declareTag(id, tagItem)
		}
	case ast.ItemImport:
		if importItem, ok := fr.builder.Items.Import(id); ok && importItem != nil {
			fr.declareImport(id, importItem, item.Span)
		}
	case ast.ItemExtern:
		if externItem, ok := fr.builder.Items.Extern(id); ok && externItem != nil {
			fr.handleExtern(id, externItem)
		}
	}
}

func (fr *fileResolver) walkFn(owner ScopeOwner, fnItem *ast.FnItem) {
	if fnItem == nil {
		return
	}
	paramsMark := fr.pushTypeParams(fnItem.Generics)
	defer fr.popTypeParams(paramsMark)
	scopeSpan := preferSpan(fnItem.ParamsSpan, fnItem.Span)
	scopeID := fr.resolver.Enter(ScopeFunction, owner, scopeSpan)
	paramIDs := fr.builder.Items.GetFnParamIDs(fnItem)
	for _, pid := range paramIDs {
		param := fr.builder.Items.FnParam(pid)
		if param == nil || param.Name == source.NoStringID {
			continue
		}
		fr.walkTypeExpr(param.Type)
		span := param.Span
		if span == (source.Span{}) {
			span = fnItem.ParamsSpan
		}
		decl := SymbolDecl{
			SourceFile: fr.sourceFile,
			ASTFile:    fr.fileID,
			Item:       owner.Item,
		}
		fr.resolver.Declare(param.Name, span, SymbolParam, 0, decl)
		if param.Default.IsValid() {
			fr.walkExpr(param.Default)
		}
	}
	fr.walkTypeExpr(fnItem.ReturnType)
	if fnItem.Where.IsValid() {
		fr.walkExpr(fnItem.Where)
	}
	if fnItem.Body.IsValid() {
		fr.walkStmt(fnItem.Body)
	}
	fr.resolver.Leave(scopeID)
}

func (fr *fileResolver) walkStmt(stmtID ast.StmtID) {
	if !stmtID.IsValid() {
		return
	}
	stmt := fr.builder.Stmts.Get(stmtID)
	if stmt == nil {
		return
	}
	switch stmt.Kind {
	case ast.StmtBlock:
		block := fr.builder.Stmts.Block(stmtID)
		if block == nil {
			return
		}
		owner := ScopeOwner{
			Kind:       ScopeOwnerStmt,
			SourceFile: fr.sourceFile,
			ASTFile:    fr.fileID,
			Stmt:       stmtID,
		}
		scopeID := fr.resolver.Enter(ScopeBlock, owner, stmt.Span)
		fr.predeclareConstStmts(block.Stmts)
		for _, child := range block.Stmts {
			fr.walkStmt(child)
		}
		fr.resolver.Leave(scopeID)
	case ast.StmtLet:
		letStmt := fr.builder.Stmts.Let(stmtID)
		if letStmt == nil || letStmt.Name == source.NoStringID {
			return
		}
		fr.walkTypeExpr(letStmt.Type)
		if letStmt.Value.IsValid() {
			fr.walkExpr(letStmt.Value)
		}
		flags := SymbolFlags(0)
		if letStmt.IsMut {
			flags |= SymbolFlagMutable
		}
		decl := SymbolDecl{
			SourceFile: fr.sourceFile,
			ASTFile:    fr.fileID,
			Stmt:       stmtID,
		}
		fr.resolver.Declare(letStmt.Name, stmt.Span, SymbolLet, flags, decl)
	case ast.StmtConst:
		constStmt := fr.builder.Stmts.Const(stmtID)
		if constStmt == nil || constStmt.Name == source.NoStringID {
			return
		}
		fr.walkTypeExpr(constStmt.Type)
		if constStmt.Value.IsValid() {
			fr.walkExpr(constStmt.Value)
		}
	case ast.StmtIf:
		ifStmt := fr.builder.Stmts.If(stmtID)
		if ifStmt == nil {
			return
		}
		fr.walkExpr(ifStmt.Cond)
		fr.walkStmt(ifStmt.Then)
		if ifStmt.Else.IsValid() {
			fr.walkStmt(ifStmt.Else)
		}
	case ast.StmtWhile:
		whileStmt := fr.builder.Stmts.While(stmtID)
		if whileStmt == nil {
			return
		}
		fr.walkExpr(whileStmt.Cond)
		fr.walkStmt(whileStmt.Body)
	case ast.StmtForClassic:
		forStmt := fr.builder.Stmts.ForClassic(stmtID)
		if forStmt == nil {
			return
		}
		owner := ScopeOwner{
			Kind:       ScopeOwnerStmt,
			SourceFile: fr.sourceFile,
			ASTFile:    fr.fileID,
			Stmt:       stmtID,
		}
		scopeID := fr.resolver.Enter(ScopeBlock, owner, stmt.Span)
		fr.predeclareConstStmt(forStmt.Init)
		if forStmt.Init.IsValid() {
			fr.walkStmt(forStmt.Init)
		}
		fr.walkExpr(forStmt.Cond)
		fr.walkExpr(forStmt.Post)
		fr.walkStmt(forStmt.Body)
		fr.resolver.Leave(scopeID)
	case ast.StmtForIn:
		forIn := fr.builder.Stmts.ForIn(stmtID)
		if forIn == nil {
			return
		}
		owner := ScopeOwner{
			Kind:       ScopeOwnerStmt,
			SourceFile: fr.sourceFile,
			ASTFile:    fr.fileID,
			Stmt:       stmtID,
		}
		scopeID := fr.resolver.Enter(ScopeBlock, owner, stmt.Span)
		fr.walkTypeExpr(forIn.Type)
		if forIn.Pattern != source.NoStringID {
			decl := SymbolDecl{
				SourceFile: fr.sourceFile,
				ASTFile:    fr.fileID,
				Stmt:       stmtID,
			}
			span := preferSpan(forIn.PatternSpan, stmt.Span)
			fr.resolver.Declare(forIn.Pattern, span, SymbolLet, 0, decl)
		}
		fr.walkExpr(forIn.Iterable)
		fr.walkStmt(forIn.Body)
		fr.resolver.Leave(scopeID)
	case ast.StmtExpr:
		exprStmt := fr.builder.Stmts.Expr(stmtID)
		if exprStmt != nil {
			fr.walkExpr(exprStmt.Expr)
		}
	case ast.StmtSignal:
		signalStmt := fr.builder.Stmts.Signal(stmtID)
		if signalStmt != nil {
			fr.walkExpr(signalStmt.Value)
		}
	case ast.StmtDrop:
		if dropStmt := fr.builder.Stmts.Drop(stmtID); dropStmt != nil {
			fr.walkExpr(dropStmt.Expr)
		}
	case ast.StmtReturn:
		returnStmt := fr.builder.Stmts.Return(stmtID)
		if returnStmt != nil {
			fr.walkExpr(returnStmt.Expr)
		}
	case ast.StmtBreak, ast.StmtContinue:
	default:
	}
}

func (fr *fileResolver) walkExpr(exprID ast.ExprID) {
	if !exprID.IsValid() {
		return
	}
	expr := fr.builder.Exprs.Get(exprID)
	if expr == nil {
		return
	}
	switch expr.Kind {
	case ast.ExprIdent:
		data, _ := fr.builder.Exprs.Ident(exprID)
		if data == nil {
			return
		}
		fr.resolveIdent(exprID, expr.Span, data.Name)
	case ast.ExprBinary:
		data, _ := fr.builder.Exprs.Binary(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Left)
		fr.walkExpr(data.Right)
	case ast.ExprUnary:
		data, _ := fr.builder.Exprs.Unary(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Operand)
	case ast.ExprCast:
		data, _ := fr.builder.Exprs.Cast(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Value)
		fr.walkTypeExpr(data.Type)
	case ast.ExprCall:
		data, _ := fr.builder.Exprs.Call(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Target)
		for _, arg := range data.Args {
			fr.walkExpr(arg.Value)
		}
		for _, typeArg := range data.TypeArgs {
			fr.walkTypeExpr(typeArg)
		}
		fr.checkAmbiguousCall(data.Target)
	case ast.ExprIndex:
		data, _ := fr.builder.Exprs.Index(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Target)
		fr.walkExpr(data.Index)
	case ast.ExprMember:
		data, _ := fr.builder.Exprs.Member(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Target)
		fr.resolveMember(exprID, data)
	case ast.ExprTupleIndex:
		data, _ := fr.builder.Exprs.TupleIndex(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Target)
	case ast.ExprTernary:
		data, _ := fr.builder.Exprs.Ternary(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Cond)
		fr.walkExpr(data.TrueExpr)
		fr.walkExpr(data.FalseExpr)
	case ast.ExprAwait:
		data, _ := fr.builder.Exprs.Await(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Value)
	case ast.ExprTask:
		data, _ := fr.builder.Exprs.Task(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Value)
	case ast.ExprGroup:
		data, _ := fr.builder.Exprs.Group(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Inner)
	case ast.ExprTuple:
		data, _ := fr.builder.Exprs.Tuple(exprID)
		if data == nil {
			return
		}
		for _, elem := range data.Elements {
			fr.walkExpr(elem)
		}
	case ast.ExprArray:
		data, _ := fr.builder.Exprs.Array(exprID)
		if data == nil {
			return
		}
		for _, elem := range data.Elements {
			fr.walkExpr(elem)
		}
	case ast.ExprMap:
		data, _ := fr.builder.Exprs.Map(exprID)
		if data == nil {
			return
		}
		for _, entry := range data.Entries {
			fr.walkExpr(entry.Key)
			fr.walkExpr(entry.Value)
		}
	case ast.ExprRangeLit:
		data, _ := fr.builder.Exprs.RangeLit(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Start)
		fr.walkExpr(data.End)
	case ast.ExprSpread:
		data, _ := fr.builder.Exprs.Spread(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Value)
	case ast.ExprSpawn:
		data, _ := fr.builder.Exprs.Spawn(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Value)
	case ast.ExprParallel:
		data, _ := fr.builder.Exprs.Parallel(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Iterable)
		fr.walkExpr(data.Init)
		for _, arg := range data.Args {
			fr.walkExpr(arg)
		}
		fr.walkExpr(data.Body)
	case ast.ExprCompare:
		data, _ := fr.builder.Exprs.Compare(exprID)
		if data == nil {
			return
		}
		fr.walkExpr(data.Value)
		for _, arm := range data.Arms {
			scope := fr.resolver.Enter(ScopeBlock, ScopeOwner{
				Kind:       ScopeOwnerExpr,
				SourceFile: fr.sourceFile,
				ASTFile:    fr.fileID,
				Expr:       exprID,
			}, arm.PatternSpan)
			fr.bindComparePattern(arm.Pattern)
			fr.walkExpr(arm.Guard)
			fr.walkExpr(arm.Result)
			fr.resolver.Leave(scope)
		}
	case ast.ExprSelect:
		data, _ := fr.builder.Exprs.Select(exprID)
		if data == nil {
			return
		}
		for _, arm := range data.Arms {
			fr.walkExpr(arm.Await)
			fr.walkExpr(arm.Result)
		}
	case ast.ExprRace:
		data, _ := fr.builder.Exprs.Race(exprID)
		if data == nil {
			return
		}
		for _, arm := range data.Arms {
			fr.walkExpr(arm.Await)
			fr.walkExpr(arm.Result)
		}
	case ast.ExprStruct:
		data, _ := fr.builder.Exprs.Struct(exprID)
		if data == nil {
			return
		}
		fr.walkTypeExpr(data.Type)
		for _, field := range data.Fields {
			fr.walkExpr(field.Value)
		}
	case ast.ExprAsync:
		data, _ := fr.builder.Exprs.Async(exprID)
		if data == nil {
			return
		}
		fr.walkStmt(data.Body)
	case ast.ExprBlock:
		data, _ := fr.builder.Exprs.Block(exprID)
		if data == nil {
			return
		}
		owner := ScopeOwner{
			Kind:       ScopeOwnerExpr,
			SourceFile: fr.sourceFile,
			ASTFile:    fr.fileID,
			Expr:       exprID,
		}
		scopeID := fr.resolver.Enter(ScopeBlock, owner, expr.Span)
		fr.predeclareConstStmts(data.Stmts)
		for _, child := range data.Stmts {
			fr.walkStmt(child)
		}
		fr.resolver.Leave(scopeID)
	case ast.ExprLit:
	}
}

func (fr *fileResolver) walkTypeExpr(typeID ast.TypeID) {
	if !typeID.IsValid() {
		return
	}
	typ := fr.builder.Types.Get(typeID)
	if typ == nil {
		return
	}
	switch typ.Kind {
	case ast.TypeExprPath:
		if path, ok := fr.builder.Types.Path(typeID); ok && path != nil {
			fr.resolveTypeName(path.Name, preferSpan(path.NameSpan, typ.Span))
		}
	case ast.TypeExprPointer:
		if ptr, ok := fr.builder.Types.Pointer(typeID); ok && ptr != nil {
			fr.walkTypeExpr(ptr.Elem)
		}
	case ast.TypeExprReference:
		if ref, ok := fr.builder.Types.Reference(typeID); ok && ref != nil {
			fr.walkTypeExpr(ref.Elem)
		}
	case ast.TypeExprManaged:
		if managed, ok := fr.builder.Types.ManagedDetail(typeID); ok && managed != nil {
			fr.walkTypeExpr(managed.Elem)
		}
	case ast.TypeExprArray:
		if arr, ok := fr.builder.Types.ArrayDetail(typeID); ok && arr != nil {
			fr.walkTypeExpr(arr.Elem)
			if arr.HasCount && arr.Count.IsValid() {
				fr.walkExpr(arr.Count)
			}
		}
	case ast.TypeExprDomain:
		if dom, ok := fr.builder.Types.DomainDetail(typeID); ok && dom != nil && dom.HasIndexType {
			fr.walkTypeExpr(dom.IndexType)
		}
	case ast.TypeExprTuple:
		if tuple, ok := fr.builder.Types.TupleDetail(typeID); ok && tuple != nil {
			for _, elem := range tuple.Elems {
				fr.walkTypeExpr(elem)
			}
		}
	case ast.TypeExprFn:
		if fn, ok := fr.builder.Types.FnDetail(typeID); ok && fn != nil {
			for _, param := range fn.Params {
				fr.walkTypeExpr(param)
			}
			fr.walkTypeExpr(fn.Result)
		}
	case ast.TypeExprGeneric:
		if gen, ok := fr.builder.Types.GenericDetail(typeID); ok && gen != nil {
			fr.walkTypeExpr(gen.Base)
			for _, arg := range gen.Args {
				fr.walkTypeExpr(arg)
			}
		}
	}
}

// resolveTypeName looks up a path type's name against the scope chain,
// accepting type/tag/contract symbols and the enclosing declaration's own
// type parameters without emitting an unresolved-symbol diagnostic.
func (fr *fileResolver) resolveTypeName(name source.StringID, span source.Span) {
	if name == source.NoStringID || fr.resolver == nil {
		return
	}
	if fr.hasTypeParam(name) {
		return
	}
	mask := SymbolType.Mask() | SymbolTag.Mask() | SymbolContract.Mask()
	if _, ok := fr.resolver.LookupOne(name, mask); ok {
		return
	}
	fr.reportUnresolved(name, span)
}

func (fr *fileResolver) predeclareConstStmts(stmts []ast.StmtID) {
	for _, stmtID := range stmts {
		fr.predeclareConstStmt(stmtID)
	}
}

func (fr *fileResolver) predeclareConstStmt(stmtID ast.StmtID) {
	if !stmtID.IsValid() {
		return
	}
	stmt := fr.builder.Stmts.Get(stmtID)
	if stmt == nil || stmt.Kind != ast.StmtConst {
		return
	}
	constStmt := fr.builder.Stmts.Const(stmtID)
	if constStmt == nil || constStmt.Name == source.NoStringID {
		return
	}
	decl := SymbolDecl{
		SourceFile: fr.sourceFile,
		ASTFile:    fr.fileID,
		Stmt:       stmtID,
	}
	fr.resolver.Declare(constStmt.Name, stmt.Span, SymbolConst, 0, decl)
}
