//go:build !rillc_debug

package symbols

func debugScopeMismatch(expected, actual ScopeID) {}
