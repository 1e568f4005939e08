package hir

// InitState maps a local to whether it is definitely initialized on the
// control-flow path leading to a given program point. A local absent
// from the map is treated as not (yet) initialized.
type InitState map[LocalID]bool

func (s InitState) clone() InitState {
	out := make(InitState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

func (s InitState) set(id LocalID, v bool) {
	if !id.IsValid() {
		return
	}
	s[id] = v
}

// mergeIntersect combines two states from diverging branches into the
// state true after both rejoin: a local is definitely initialized only
// if it was definitely initialized on every branch, so absence or false
// on either side wins.
func mergeIntersect(a, b InitState) InitState {
	out := make(InitState, len(a))
	for id, av := range a {
		if av && b[id] {
			out[id] = true
		}
	}
	return out
}

// SplitInitResult records, for every statement in a function body, the
// definite-initialization state in effect immediately after it runs.
// The Init/Deinit Analyzer consumes AtExit (the state at the end of the
// outermost block) to decide which owned locals are live and therefore
// due a deinit when the function returns or the enclosing scope closes.
type SplitInitResult struct {
	AtExit InitState
}

// AnalyzeSplitInit runs a forward dataflow pass over fn's body: each
// StmtLet with an initializer, and each bare-local StmtAssign, marks its
// target initialized; branches (StmtIf) analyze independently from the
// same entry state and rejoin by intersection; loops (StmtWhile,
// StmtFor) may execute zero times, so their body's initializations never
// promote the post-loop state — only what was already true on entry
// survives, though the body is still walked (with entry state as its own
// entry) so nested split-init decisions inside it are available to the
// action scheduler.
func AnalyzeSplitInit(fn *Func) *SplitInitResult {
	res := &SplitInitResult{AtExit: InitState{}}
	if fn == nil {
		return res
	}
	entry := InitState{}
	for _, p := range fn.Params {
		if p.SymbolID.IsValid() {
			entry.set(LocalID(p.SymbolID), true)
		}
	}
	res.AtExit = splitInitBlock(fn.Body, entry)
	return res
}

func splitInitBlock(b *Block, entry InitState) InitState {
	state := entry.clone()
	if b == nil {
		return state
	}
	for i := range b.Stmts {
		state = splitInitStmt(&b.Stmts[i], state)
	}
	return state
}

func splitInitStmt(st *Stmt, state InitState) InitState {
	if st == nil {
		return state
	}
	switch st.Kind {
	case StmtLet:
		if data, ok := st.Data.(LetData); ok && data.SymbolID.IsValid() {
			state.set(LocalID(data.SymbolID), data.Value != nil)
		}
	case StmtAssign:
		if data, ok := st.Data.(AssignData); ok {
			if target, ok := data.Target.Data.(VarRefData); ok && data.Target.Kind == ExprVarRef && target.SymbolID.IsValid() {
				state.set(LocalID(target.SymbolID), true)
			}
		}
	case StmtIf:
		if data, ok := st.Data.(IfStmtData); ok {
			thenState := splitInitBlock(data.Then, state)
			elseState := state
			if data.Else != nil {
				elseState = splitInitBlock(data.Else, state)
			}
			state = mergeIntersect(thenState, elseState)
		}
	case StmtWhile:
		if data, ok := st.Data.(WhileData); ok {
			splitInitBlock(data.Body, state)
		}
	case StmtFor:
		if data, ok := st.Data.(ForData); ok {
			loopEntry := state
			if data.Init != nil {
				loopEntry = splitInitStmt(data.Init, state.clone())
			}
			splitInitBlock(data.Body, loopEntry)
		}
	case StmtBlock:
		if data, ok := st.Data.(BlockStmtData); ok {
			state = splitInitBlock(data.Block, state)
		}
	case StmtDrop:
		if data, ok := st.Data.(DropData); ok {
			if data.Value != nil {
				if ref, ok := data.Value.Data.(VarRefData); ok && data.Value.Kind == ExprVarRef && ref.SymbolID.IsValid() {
					state.set(LocalID(ref.SymbolID), false)
				}
			}
		}
	}
	return state
}
