package diag

import "rillc/internal/source"

// TextEdit replaces the byte range Span with NewText. OldText, when non-empty,
// guards application: the fix engine refuses to apply the edit if the current
// content of Span does not match OldText.
type TextEdit struct {
	Span    source.Span
	NewText string
	OldText string
}

// FixKind classifies a Fix for presentation and selection purposes.
type FixKind uint8

const (
	FixKindQuickFix FixKind = iota
	FixKindRefactor
	FixKindRefactorRewrite
	FixKindSourceAction
)

func (k FixKind) String() string {
	switch k {
	case FixKindQuickFix:
		return "quickfix"
	case FixKindRefactor:
		return "refactor"
	case FixKindRefactorRewrite:
		return "refactor.rewrite"
	case FixKindSourceAction:
		return "source"
	default:
		return "unknown"
	}
}

// FixApplicability estimates how confident a fix is safe to apply automatically.
type FixApplicability uint8

const (
	FixApplicabilityAlwaysSafe FixApplicability = iota
	FixApplicabilitySafeWithHeuristics
	FixApplicabilityManualReview
)

func (a FixApplicability) String() string {
	switch a {
	case FixApplicabilityAlwaysSafe:
		return "always-safe"
	case FixApplicabilitySafeWithHeuristics:
		return "safe-with-heuristics"
	case FixApplicabilityManualReview:
		return "manual-review"
	default:
		return "unknown"
	}
}

// FixBuildContext supplies the state a FixThunk needs to materialise its edits.
type FixBuildContext struct {
	FileSet *source.FileSet
}

// FixThunk defers construction of a Fix's edits until application time, for
// suggestions that are expensive to compute eagerly.
type FixThunk interface {
	ID() string
	Build(ctx FixBuildContext) (Fix, error)
}

// Fix describes a possible automated correction attached to a Diagnostic.
type Fix struct {
	ID            string
	Title         string
	Kind          FixKind
	Applicability FixApplicability
	IsPreferred   bool
	RequiresAll   bool
	Edits         []TextEdit
	Thunk         FixThunk
}

// Resolve materialises f's edits, running its Thunk if Edits is empty.
func (f Fix) Resolve(ctx FixBuildContext) (Fix, error) {
	if len(f.Edits) > 0 || f.Thunk == nil {
		return f, nil
	}
	built, err := f.Thunk.Build(ctx)
	if err != nil {
		return f, err
	}
	if built.ID == "" {
		built.ID = f.Thunk.ID()
	}
	if built.Title == "" {
		built.Title = f.Title
	}
	return built, nil
}

// MaterializeFixes resolves any lazy (Thunk-backed) fixes into concrete edits,
// leaving already-concrete fixes untouched. Order is preserved.
func MaterializeFixes(ctx FixBuildContext, fixes []Fix) ([]Fix, error) {
	resolved := make([]Fix, 0, len(fixes))
	for _, f := range fixes {
		r, err := f.Resolve(ctx)
		if err != nil {
			return nil, err
		}
		resolved = append(resolved, r)
	}
	return resolved, nil
}
