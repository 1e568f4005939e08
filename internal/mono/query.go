package mono

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"rillc/internal/hir"
	"rillc/internal/query"
	"rillc/internal/sema"
)

// QueryFuncName is the name MonomorphizeModuleViaEngine registers and calls
// under, so a caller driving several modules through one query.Engine (the
// normal case — one Engine per compile, shared across the Pass Driver's
// stages) sees monomorphization show up as just another named query
// alongside symbol resolution and type checking, with the same cycle
// detection and revision-scoped reuse.
const QueryFuncName = "mono.monomorphize_module"

// moduleInput is what RegisterQueries' Func receives as input; it carries
// the real arguments by reference since they are too large (and, for
// Symbols/TypeInterner, too self-referential) to hash structurally. The
// query key is instead derived from the module's path via QueryDigest, so
// two Query calls for the same module path within a revision hit the cache
// without the engine ever inspecting the module's contents.
type moduleInput struct {
	Module  *hir.Module
	Inst    *InstantiationMap
	SemaRes *sema.Result
	Opt     Options
}

// RegisterQueries installs monomorphization as a query.Engine function
// under QueryFuncName. Call it once per Engine before routing any module
// through MonomorphizeModuleViaEngine.
func RegisterQueries(eng *query.Engine) {
	if eng == nil {
		return
	}
	eng.Register(QueryFuncName, func(_ context.Context, _ *query.Engine, input any) (any, error) {
		mi, ok := input.(moduleInput)
		if !ok {
			return nil, fmt.Errorf("mono: query %s received unexpected input type %T", QueryFuncName, input)
		}
		return MonomorphizeModule(mi.Module, mi.Inst, mi.SemaRes, mi.Opt)
	})
}

// MonomorphizeModuleViaEngine runs MonomorphizeModule through eng as a
// memoized query keyed on m's module path, instead of calling it directly.
// A query.ErrQueryCycle (the engine revisiting a module path already on its
// own active call stack, e.g. two modules monomorphizing each other as part
// of the same driver pass) surfaces as a *CycleError the same way a cycle
// detected by ensureFunc's own stack does, so callers only need to check
// one error type.
func MonomorphizeModuleViaEngine(ctx context.Context, eng *query.Engine, m *hir.Module, inst *InstantiationMap, semaRes *sema.Result, opt Options) (*MonoModule, error) {
	if eng == nil {
		return MonomorphizeModule(m, inst, semaRes, opt)
	}
	path := ""
	if m != nil {
		path = m.Path
	}
	out, err := eng.QueryDigest(ctx, QueryFuncName, moduleInput{Module: m, Inst: inst, SemaRes: semaRes, Opt: opt}, modulePathDigest(path))
	if err != nil {
		if errors.Is(err, query.ErrQueryCycle) {
			return nil, &CycleError{}
		}
		return nil, err
	}
	mm, _ := out.(*MonoModule)
	return mm, nil
}

func modulePathDigest(path string) query.Digest {
	return query.Digest(sha256.Sum256([]byte(path)))
}
