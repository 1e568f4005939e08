package types

import (
	"fmt"
	"strconv"
	"strings"

	"rillc/internal/source"
)

// Label returns a user-friendly label for a TypeID.
func Label(typesIn *Interner, id TypeID) string {
	return labelDepth(typesIn, id, 0)
}

func labelDepth(typesIn *Interner, id TypeID, depth int) string {
	if id == NoTypeID {
		return "?"
	}
	if depth > 6 {
		return "..."
	}
	if typesIn == nil {
		return "?"
	}
	tt, ok := typesIn.Lookup(id)
	if !ok {
		return "?"
	}
	switch tt.Kind {
	case KindInvalid:
		return "invalid"
	case KindUnknown:
		return "?"
	case KindErroneous:
		return "<error>"
	case KindUnit:
		return "()"
	case KindNothing:
		return "nothing"
	case KindBool:
		return "bool"
	case KindString:
		return "string"
	case KindInt:
		return formatNumType("int", tt.Width)
	case KindUint:
		return formatNumType("uint", tt.Width)
	case KindReal:
		return formatNumType("real", tt.Width)
	case KindImag:
		return formatNumType("imag", tt.Width)
	case KindComplex:
		return formatNumType("complex", tt.Width)
	case KindConst:
		return fmt.Sprintf("param(%s)", labelDepth(typesIn, tt.Elem, depth+1))
	case KindPointer:
		return "*" + labelDepth(typesIn, tt.Elem, depth+1)
	case KindReference:
		if tt.Mutable {
			return "ref " + labelDepth(typesIn, tt.Elem, depth+1)
		}
		return "const ref " + labelDepth(typesIn, tt.Elem, depth+1)
	case KindOwn:
		return "own " + labelDepth(typesIn, tt.Elem, depth+1)
	case KindArray:
		elem := labelDepth(typesIn, tt.Elem, depth+1)
		if tt.Count == ArrayDynamicLength {
			return "[] " + elem
		}
		return fmt.Sprintf("[%d] %s", tt.Count, elem)
	case KindDomain:
		return formatDomainType(typesIn, id, depth)
	case KindRecord, KindClassBasic:
		return formatRecordType(typesIn, id, depth)
	case KindManaged:
		return formatManagedType(typesIn, id, depth)
	case KindUnion:
		return formatUnionType(typesIn, id, depth)
	case KindEnum:
		return formatEnumType(typesIn, id, depth)
	case KindTuple:
		info, ok := typesIn.TupleInfo(id)
		if !ok || info == nil {
			return "(?)"
		}
		parts := make([]string, len(info.Elems))
		for i, elem := range info.Elems {
			parts[i] = labelDepth(typesIn, elem, depth+1)
		}
		return "(" + strings.Join(parts, ", ") + ")"
	case KindFn:
		info, ok := typesIn.FnInfo(id)
		if !ok || info == nil {
			return "proc(?)"
		}
		params := make([]string, len(info.Params))
		for i, param := range info.Params {
			params[i] = labelDepth(typesIn, param.Type, depth+1)
		}
		ret := labelDepth(typesIn, info.Result, depth+1)
		return "proc(" + strings.Join(params, ", ") + ") -> " + ret
	case KindGenericParam:
		if info, ok := typesIn.TypeParamInfo(id); ok && info != nil {
			if name, ok := lookupName(typesIn.Strings, info.Name); ok {
				return name
			}
		}
		return "?T"
	case KindAlias:
		info, ok := typesIn.AliasInfo(id)
		if !ok || info == nil {
			return "?"
		}
		return lookupNameFallback(typesIn.Strings, info.Name)
	default:
		return "?"
	}
}

func formatRecordType(typesIn *Interner, id TypeID, depth int) string {
	info, ok := typesIn.RecordInfo(id)
	if !ok || info == nil {
		return "?"
	}
	name := lookupNameFallback(typesIn.Strings, info.Name)
	args := make([]string, 0, len(info.TypeArgs)+len(info.ValueArgs))
	for _, arg := range info.TypeArgs {
		args = append(args, labelDepth(typesIn, arg, depth+1))
	}
	for _, v := range info.ValueArgs {
		args = append(args, strconv.FormatUint(v, 10))
	}
	if len(args) == 0 {
		return name
	}
	return name + "(" + strings.Join(args, ", ") + ")"
}

func formatManagedType(typesIn *Interner, id TypeID, depth int) string {
	info, ok := typesIn.ManagedInfo(id)
	if !ok || info == nil {
		return "?"
	}
	class := labelDepth(typesIn, info.Class, depth+1)
	prefix := info.Management.String()
	if info.Nilability == Nilable {
		prefix += " nilable"
	}
	return prefix + " " + class
}

func formatDomainType(typesIn *Interner, id TypeID, depth int) string {
	info, ok := typesIn.DomainInfo(id)
	if !ok || info == nil {
		return "domain(?)"
	}
	if info.IndexType != NoTypeID {
		return "domain(" + labelDepth(typesIn, info.IndexType, depth+1) + ")"
	}
	return fmt.Sprintf("domain(%dD)", info.Rank)
}

func formatUnionType(typesIn *Interner, id TypeID, depth int) string {
	info, ok := typesIn.UnionInfo(id)
	if !ok || info == nil {
		return "?"
	}
	name := lookupNameFallback(typesIn.Strings, info.Name)
	args := make([]string, 0, len(info.TypeArgs))
	for _, arg := range info.TypeArgs {
		args = append(args, labelDepth(typesIn, arg, depth+1))
	}
	if len(args) == 0 {
		return name
	}
	return name + "(" + strings.Join(args, ", ") + ")"
}

func formatEnumType(typesIn *Interner, id TypeID, depth int) string {
	info, ok := typesIn.EnumInfo(id)
	if !ok || info == nil {
		return "?"
	}
	return lookupNameFallback(typesIn.Strings, info.Name)
}

func lookupName(stringsIn *source.Interner, id source.StringID) (string, bool) {
	if stringsIn == nil {
		return "", false
	}
	name, ok := stringsIn.Lookup(id)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

func lookupNameFallback(stringsIn *source.Interner, id source.StringID) string {
	if name, ok := lookupName(stringsIn, id); ok {
		return name
	}
	return "?"
}

func formatNumType(prefix string, width Width) string {
	if width == WidthAny {
		return prefix
	}
	return fmt.Sprintf("%s(%d)", prefix, width)
}
