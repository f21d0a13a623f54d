package phys

// Request carries the allocation policy for one page request. The zero
// value asks for a random, aliasable data-page placement with no attribute
// requirements.
type Request struct {
	// FlatMap asks for an identity mapping (PA = VA).
	FlatMap bool

	// ForceAlias restricts the allocation to the aliasing path only.
	ForceAlias bool

	// ForceMemAttrs bypasses all attribute-compatibility checks.
	ForceMemAttrs bool

	// InstrAddr marks the request as an instruction-address mapping, which
	// selects the instruction-aliasing weighted choice.
	InstrAddr bool

	// NoAlias forbids future aliases onto the resulting page. On an alias
	// allocation that lands fully inside an existing page it additionally
	// narrows that page to non-aliasable.
	NoAlias bool

	// AliasPageID targets an existing page by id. 0 means unset.
	AliasPageID PageID

	// PATarget/HasPATarget target an explicit physical address.
	PATarget    uint64
	HasPATarget bool

	// ArchAttrs and ImplAttrs name the architecture and implementation
	// memory attributes to tag a fresh allocation with.
	ArchAttrs []string
	ImplAttrs []string

	// AliasImplAttrs names the attribute set for alias allocations; when
	// empty the primary sets above apply.
	AliasImplAttrs []string
}

// CanAlias reports whether the resulting page may be aliased later.
// Requests allow aliasing unless they opt out.
func (r *Request) CanAlias() bool {
	return !r.NoAlias
}

// attributeNames returns the primary attribute names (architecture first,
// then implementation).
func (r *Request) attributeNames() []string {
	names := make([]string, 0, len(r.ArchAttrs)+len(r.ImplAttrs))
	names = append(names, r.ArchAttrs...)
	names = append(names, r.ImplAttrs...)
	return names
}

// aliasAttributeNames returns the aliasing attribute names, falling back to
// the primary set when no alias-specific set is supplied.
func (r *Request) aliasAttributeNames() []string {
	if len(r.AliasImplAttrs) > 0 {
		return r.AliasImplAttrs
	}
	return r.attributeNames()
}
