package mono

import "fmt"

// CycleError is returned when instantiating a generic function or type
// would revisit a (symbol, type-args) pair already on the current
// instantiation stack. Cyclic generic instantiation has no finite
// expansion, so it is reported as a diagnostic rather than looped forever.
type CycleError struct {
	Key   MonoKey
	Stack []MonoKey
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("mono: instantiation cycle detected at sym=%d args=%s (stack depth %d)", e.Key.Sym, e.Key.ArgsKey, len(e.Stack))
}

// DepthExceededError is returned when the instantiation stack exceeds
// Options.MaxDepth without repeating a key — a non-terminating expansion
// (e.g. a generic type whose instantiation strictly grows its own type
// arguments) rather than a literal cycle.
type DepthExceededError struct {
	MaxDepth int
	Key      MonoKey
	Stack    []MonoKey
}

func (e *DepthExceededError) Error() string {
	return fmt.Sprintf("mono: instantiation depth exceeded (%d) at sym=%d args=%s", e.MaxDepth, e.Key.Sym, e.Key.ArgsKey)
}

// FixedPointExceededError is returned when the module-level type/method
// collection re-entry loop (seed's step 4) does not settle within
// Options.MaxDepth rounds: each round instantiates further methods or
// types than the last without ever repeating exactly, so no single
// (symbol, type-args) key trips CycleError or DepthExceededError even
// though the whole module never reaches a fixed point.
type FixedPointExceededError struct {
	MaxRounds int
}

func (e *FixedPointExceededError) Error() string {
	return fmt.Sprintf("mono: type/method collection did not reach a fixed point within %d rounds", e.MaxRounds)
}
