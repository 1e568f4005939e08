package symbols

import (
	"fmt"

	"rillc/internal/ast"
	"rillc/internal/diag"
	"rillc/internal/fix"
	"rillc/internal/source"
)

// appendExternSymbol records the symbol declared for an extern block member,
// so later passes can map a member back to its resolved symbol.
func (fr *fileResolver) appendExternSymbol(member ast.ExternMemberID, symID SymbolID) {
	if !member.IsValid() || !symID.IsValid() || fr.result == nil {
		return
	}
	if fr.result.ExternSymbols == nil {
		fr.result.ExternSymbols = make(map[ast.ExternMemberID]SymbolID)
	}
	fr.result.ExternSymbols[member] = symID
}

// attachPreviousNotes adds one note per candidate symbol's declaration site.
func (fr *fileResolver) attachPreviousNotes(b *diag.ReportBuilder, symbolIDs []SymbolID) {
	if b == nil || fr.result == nil || fr.result.Table == nil {
		return
	}
	for _, id := range symbolIDs {
		sym := fr.result.Table.Symbols.Get(id)
		if sym == nil || sym.Span == (source.Span{}) {
			continue
		}
		note := "previous declaration here"
		if sym.Flags&SymbolFlagBuiltin != 0 {
			note = "built-in declaration here"
		}
		b.WithNote(sym.Span, note)
	}
}

// reportInvalidOverride reports a malformed @overload/@override combination.
func (fr *fileResolver) reportInvalidOverride(name source.StringID, span source.Span, detail string, existing []SymbolID) {
	if fr.resolver == nil || fr.resolver.reporter == nil {
		return
	}
	nameStr := fr.lookupString(name)
	msg := fmt.Sprintf("invalid override of '%s': %s", nameStr, detail)
	b := diag.ReportError(fr.resolver.reporter, diag.SemaFnOverride, span, msg)
	if b == nil {
		return
	}
	fr.attachPreviousNotes(b, existing)
	b.Emit()
}

// reportMissingOverload reports a redeclaration that lacks @overload or @override,
// suggesting whichever attribute would make the declaration valid.
func (fr *fileResolver) reportMissingOverload(name source.StringID, span, keywordSpan source.Span, existing []SymbolID, newSig *FunctionSignature) {
	if fr.resolver == nil || fr.resolver.reporter == nil {
		return
	}
	nameStr := fr.lookupString(name)
	msg := fmt.Sprintf("'%s' is already declared; add @overload for a new signature or @override to replace it", nameStr)
	b := diag.ReportError(fr.resolver.reporter, diag.SemaFnOverride, span, msg)
	if b == nil {
		return
	}
	fr.attachPreviousNotes(b, existing)

	existingSymbols := make([]*Symbol, 0, len(existing))
	if fr.result != nil && fr.result.Table != nil {
		for _, id := range existing {
			existingSymbols = append(existingSymbols, fr.result.Table.Symbols.Get(id))
		}
	}

	insertAt := keywordSpan.ZeroideToStart()
	var suggestion diag.Fix
	fixID := fix.MakeFixID(diag.SemaFnOverride, insertAt)
	if signatureDiffersFromAll(newSig, existingSymbols) {
		suggestion = fix.InsertText(
			"mark function as overload",
			insertAt,
			"@overload ",
			"",
			fix.WithID(fixID),
			fix.WithKind(diag.FixKindQuickFix),
			fix.WithApplicability(diag.FixApplicabilityAlwaysSafe),
		)
	} else {
		suggestion = fix.InsertText(
			"mark function as override",
			insertAt,
			"@override ",
			"",
			fix.WithID(fixID),
			fix.WithKind(diag.FixKindQuickFix),
			fix.WithApplicability(diag.FixApplicabilityAlwaysSafe),
		)
	}
	b.WithFixSuggestion(suggestion)
	b.Emit()
}

// pushTypeParams makes a generic declaration's type parameters visible to
// hasTypeParam for the duration of its body, returning a mark to restore.
func (fr *fileResolver) pushTypeParams(names []source.StringID) int {
	mark := len(fr.typeParamStack)
	if len(names) > 0 {
		fr.typeParamStack = append(fr.typeParamStack, names...)
	}
	return mark
}

func (fr *fileResolver) popTypeParams(mark int) {
	if mark <= len(fr.typeParamStack) {
		fr.typeParamStack = fr.typeParamStack[:mark]
	}
}

// hasTypeParam reports whether name is a type parameter of the generic
// declaration currently being walked.
func (fr *fileResolver) hasTypeParam(name source.StringID) bool {
	if name == source.NoStringID {
		return false
	}
	for _, p := range fr.typeParamStack {
		if p == name {
			return true
		}
	}
	return false
}
