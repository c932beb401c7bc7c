package seqrepo

// Namespace tags the naming authority an alias belongs to (e.g. "NCBI" or
// "Ensembl"). The empty string is itself a valid namespace, used for
// hash-derived identifiers.
type Namespace string

func (n Namespace) String() string {
	return string(n)
}

// NamespacedAlias pairs an alias with its namespace.
type NamespacedAlias struct {
	Namespace Namespace
	Alias     string
}

// AliasOrSeqID selects the retrieval entry point: either an alias,
// optionally scoped by a namespace, that must resolve to exactly one
// sequence id, or a sequence id used directly.
type AliasOrSeqID struct {
	seqID     string
	alias     string
	namespace *Namespace
	isSeqID   bool
}

// NewSeqID returns an input that bypasses alias resolution.
func NewSeqID(seqID string) AliasOrSeqID {
	return AliasOrSeqID{seqID: seqID, isSeqID: true}
}

// NewAlias returns an alias input without namespace scoping.
func NewAlias(alias string) AliasOrSeqID {
	return AliasOrSeqID{alias: alias}
}

// NewNamespacedAlias returns an alias input scoped to the given
// namespace. The empty namespace is a valid scope and is distinct from no
// scoping at all.
func NewNamespacedAlias(namespace Namespace, alias string) AliasOrSeqID {
	return AliasOrSeqID{alias: alias, namespace: &namespace}
}

// String renders the identifier: the bare sequence id, the bare alias, or
// "namespace:alias" when a non-empty namespace is set. This rendering is
// also the identifier part of cache keys.
func (a AliasOrSeqID) String() string {
	if a.isSeqID {
		return a.seqID
	}
	if a.namespace != nil && *a.namespace != "" {
		return string(*a.namespace) + ":" + a.alias
	}
	return a.alias
}
