// Package query implements the incremental memoization layer shared by the
// pass driver: every analysis step (symbol resolution for a file, the type
// of an expression, the instantiation of a generic, ...) is expressed as a
// named query over a structurally-hashed input, memoized across revisions so
// an edit that leaves a query's recorded dependencies unchanged lets the
// driver reuse its stale output instead of recomputing it.
package query

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"

	"rillc/internal/trace"
)

// ErrQueryCycle is returned when a query re-enters itself, directly or
// transitively, while still on the active call stack.
var ErrQueryCycle = errors.New("query: cycle detected")

// ErrCancelled is returned when ctx is already done, or is cancelled while a
// query is computing.
var ErrCancelled = errors.New("query: cancelled")

// Func computes a query's output from its input. eng is the engine running
// the query; Func calls eng.Query to consult other queries, which records a
// dependency edge from this query to the one it calls.
type Func func(ctx context.Context, eng *Engine, input any) (any, error)

// entry is one cached query result, plus enough to revalidate it without
// rerunning fn: the dependencies it read last time it ran, and the output
// each of those dependencies produced at the time.
type entry struct {
	revision   uint64
	name       string
	input      any
	output     any
	err        error
	deps       []Key
	depOutputs map[Key]any
}

// building accumulates the dependency edges and snapshot outputs discovered
// while a query's Func runs, before they are committed into its entry.
type building struct {
	deps       []Key
	depOutputs map[Key]any
}

// Engine is an incremental query cache. A query is identified by Key
// (function name + hashed input); AdvanceRevision bumps the engine's current
// revision without discarding cached entries, so a query whose dependency
// outputs turn out unchanged can reuse last revision's output rather than
// recompute. Not safe for concurrent Query calls that share dependencies —
// queries run single-threaded per Engine, the same way the pass driver runs
// one module's passes at a time; parallel module compilation (driver.ParseDir
// et al.) runs one Engine per worker.
type Engine struct {
	mu       sync.Mutex
	revision uint64
	registry map[string]Func
	cache    map[Key]*entry
	active   []frame
	building map[Key]*building
	tracer   trace.Tracer
	equal    func(a, b any) bool
	gcHook   func()
}

type frame struct {
	key    Key
	spanID uint64
}

// New creates an empty Engine. tracer may be nil (no tracing). equal
// compares two query outputs when deciding whether a stale dependency's
// fresh output still matches what a dependent entry last observed; a nil
// equal defaults to reflect.DeepEqual.
func New(tracer trace.Tracer, equal func(a, b any) bool) *Engine {
	if equal == nil {
		equal = reflect.DeepEqual
	}
	return &Engine{
		registry: make(map[string]Func),
		cache:    make(map[Key]*entry),
		building: make(map[Key]*building),
		tracer:   tracer,
		equal:    equal,
	}
}

// Register associates a query function name with its Func, so later Query
// calls by that name (and dependency revalidation of entries keyed by it)
// know what to run.
func (e *Engine) Register(name string, fn Func) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.registry[name] = fn
}

// SetGCHook installs the callback AdvanceRevision(prepareToGC: true) runs
// after bumping the revision, e.g. to sweep interned strings/types no longer
// reachable from any live cache entry. The hook must not call back into
// Query — it runs with no query active.
func (e *Engine) SetGCHook(hook func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.gcHook = hook
}

// AdvanceRevision ticks the engine's revision counter. Existing cache
// entries are not discarded — they become candidates for stale-reuse the
// next time their key is queried (see Query) — so the "invalidation" an
// edit causes is really just everything reachable from the edited input
// failing its equality check on its next query, while unrelated results
// replay for free. prepareToGC additionally runs the hook set by SetGCHook,
// if any.
func (e *Engine) AdvanceRevision(prepareToGC bool) {
	e.mu.Lock()
	e.revision++
	var hook func()
	if prepareToGC {
		hook = e.gcHook
	}
	e.mu.Unlock()
	if hook != nil {
		hook()
	}
}

// Revision returns the engine's current revision.
func (e *Engine) Revision() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.revision
}

// Query returns the memoized output of the query named fn applied to input,
// computing it via the Func registered under fn if no live or revalidated
// entry exists. If Query is itself called while another query is being
// computed, the call is recorded as a dependency edge from the caller to
// this query.
func (e *Engine) Query(ctx context.Context, fn string, input any) (any, error) {
	return e.queryKey(ctx, HashValue(fn, input), fn, input)
}

// QueryDigest is Query for callers that already hold a structural digest for
// input (an AST content hash, a module hash) and want to key on it directly
// via HashDigests instead of paying HashValue's fmt-based fallback.
func (e *Engine) QueryDigest(ctx context.Context, fn string, input any, digests ...Digest) (any, error) {
	return e.queryKey(ctx, HashDigests(fn, digests...), fn, input)
}

func (e *Engine) queryKey(ctx context.Context, key Key, fn string, input any) (out any, err error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled
	}

	e.mu.Lock()
	for _, f := range e.active {
		if f.key == key {
			e.mu.Unlock()
			return nil, fmt.Errorf("%w: %s", ErrQueryCycle, key)
		}
	}
	var parent *frame
	if len(e.active) > 0 {
		parent = &e.active[len(e.active)-1]
	}

	if ent, ok := e.cache[key]; ok && ent.revision == e.revision {
		e.recordDepLocked(parent, key, ent.output)
		e.mu.Unlock()
		if e.tracer != nil && e.tracer.Level() == trace.LevelDebug {
			hit := trace.Begin(e.tracer, trace.ScopeNode, "query:"+fn, spanIDOf(parent))
			hit.End("hit")
		}
		return ent.output, ent.err
	}
	stale, hadStale := e.cache[key]
	e.mu.Unlock()

	span := trace.Begin(e.tracer, trace.ScopeNode, "query:"+fn, spanIDOf(parent))
	detail := "computed"
	defer func() { span.End(detail) }()

	// A query with no recorded dependencies is an input query: nothing
	// proves its output is still correct except calling it again, so it is
	// never fast-path reused, only recomputed (and then may itself turn out
	// to equal its previous output, letting anything depending on it reuse).
	if hadStale && len(stale.deps) > 0 {
		if e.revalidate(ctx, stale) {
			e.mu.Lock()
			stale.revision = e.revision
			e.recordDepLocked(parent, key, stale.output)
			e.mu.Unlock()
			detail = "reused"
			return stale.output, stale.err
		}
	}

	e.mu.Lock()
	impl, ok := e.registry[fn]
	if !ok {
		e.mu.Unlock()
		detail = "unregistered"
		return nil, fmt.Errorf("query: no function registered for %q", fn)
	}
	e.active = append(e.active, frame{key: key, spanID: span.ID()})
	e.building[key] = &building{depOutputs: make(map[Key]any)}
	e.mu.Unlock()

	out, err = impl(ctx, e, input)

	e.mu.Lock()
	e.active = e.active[:len(e.active)-1]
	b := e.building[key]
	delete(e.building, key)
	e.cache[key] = &entry{
		revision:   e.revision,
		name:       fn,
		input:      input,
		output:     out,
		err:        err,
		deps:       b.deps,
		depOutputs: b.depOutputs,
	}
	e.recordDepLocked(parent, key, out)
	e.mu.Unlock()

	if err != nil {
		detail = "error"
	}
	return out, err
}

func spanIDOf(f *frame) uint64 {
	if f == nil {
		return 0
	}
	return f.spanID
}

// recordDepLocked records that the query currently being computed by parent
// (if any) depends on key, which just produced output. Must be called with
// e.mu held.
func (e *Engine) recordDepLocked(parent *frame, key Key, output any) {
	if parent == nil {
		return
	}
	b, ok := e.building[parent.key]
	if !ok {
		return
	}
	if _, seen := b.depOutputs[key]; !seen {
		b.deps = append(b.deps, key)
	}
	b.depOutputs[key] = output
}

// revalidate checks whether stale's recorded dependencies still produce the
// same outputs this revision, without rerunning stale's own Func. Each
// dependency is itself re-queried (recursively revalidated or recomputed as
// needed) so that a change several layers down correctly invalidates
// everything above it.
func (e *Engine) revalidate(ctx context.Context, stale *entry) bool {
	for _, dep := range stale.deps {
		e.mu.Lock()
		depEntry, ok := e.cache[dep]
		e.mu.Unlock()
		if !ok {
			return false
		}

		var fresh any
		if depEntry.revision == e.Revision() {
			fresh = depEntry.output
		} else {
			out, err := e.queryKey(ctx, dep, depEntry.name, depEntry.input)
			if err != nil {
				return false
			}
			fresh = out
		}

		if !e.equal(fresh, stale.depOutputs[dep]) {
			return false
		}
	}
	return true
}
