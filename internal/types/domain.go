package types

import (
	"fmt"

	"rillc/internal/source"
)

// DomainInfo describes an index set backing an array (spec §3 Composite
// "domain"). Rank 0 marks an associative domain keyed by IndexType rather
// than a rectangular one.
type DomainInfo struct {
	Decl     source.Span
	IndexType TypeID // element type of the index set; NoTypeID for a rectangular integer domain
	Rank     uint8   // number of dimensions for a rectangular domain
	Resizable bool
}

// RegisterDomain allocates a nominal domain type.
func (in *Interner) RegisterDomain(decl source.Span, indexType TypeID, rank uint8, resizable bool) TypeID {
	slot := in.appendDomainInfo(DomainInfo{Decl: decl, IndexType: indexType, Rank: rank, Resizable: resizable})
	return in.internRaw(Type{Kind: KindDomain, Payload: slot})
}

// DomainInfo returns metadata for the provided domain TypeID.
func (in *Interner) DomainInfo(id TypeID) (*DomainInfo, bool) {
	if id == NoTypeID {
		return nil, false
	}
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindDomain {
		return nil, false
	}
	if tt.Payload == 0 || int(tt.Payload) >= len(in.domains) {
		return nil, false
	}
	return &in.domains[tt.Payload], true
}

// EmptyDomain reports whether a domain instance is known, at this point in
// resolution, to carry zero elements — e.g. a fresh `{1..0}` rectangular
// domain. This realizes spec §9 Open Question 2: rather than guarding every
// operation against a "null receiver", empty-list-valued operations are
// surfaced explicitly through this predicate, and array operations on such
// a domain resolve to defined (if vacuous) results instead of needing a nil
// check.
func (in *Interner) EmptyDomain(id TypeID, count uint32) bool {
	_, ok := in.DomainInfo(id)
	return ok && count == 0
}

func (in *Interner) appendDomainInfo(info DomainInfo) uint32 {
	in.domains = append(in.domains, info)
	if len(in.domains)-1 > int(^uint32(0)) {
		panic(fmt.Errorf("types: domain info overflow"))
	}
	return uint32(len(in.domains) - 1)
}
