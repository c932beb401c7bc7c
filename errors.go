package seqrepo

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Wrapped errors carry the underlying cause; match with
// errors.Is.
var (
	// ErrAliasDBOpen is returned when the alias database cannot be opened
	// read-only.
	ErrAliasDBOpen = errors.New("seqrepo: open alias database")

	// ErrAliasQuery is returned when an alias query cannot be prepared or
	// executed.
	ErrAliasQuery = errors.New("seqrepo: alias query")

	// ErrAliasRecord is returned for a single alias row that cannot be
	// decoded, e.g. an unparsable timestamp. Iteration continues past it.
	ErrAliasRecord = errors.New("seqrepo: decode alias record")

	// ErrAliasNotFound is returned when an alias resolves to no sequence id.
	ErrAliasNotFound = errors.New("seqrepo: could not resolve alias")

	// ErrSeqInfoDBOpen is returned when the sequence metadata database
	// cannot be opened read-only.
	ErrSeqInfoDBOpen = errors.New("seqrepo: open sequence metadata database")

	// ErrSeqInfoQuery is returned when a sequence metadata query fails.
	ErrSeqInfoQuery = errors.New("seqrepo: sequence metadata query")

	// ErrUnknownSeqID is returned when no metadata exists for a sequence id.
	ErrUnknownSeqID = errors.New("seqrepo: unknown sequence id")

	// ErrCacheOpenWrite is returned when the persisted cache file cannot be
	// opened for appending.
	ErrCacheOpenWrite = errors.New("seqrepo: open cache file for writing")

	// ErrCacheOpenRead is returned when the persisted cache file cannot be
	// opened for reading.
	ErrCacheOpenRead = errors.New("seqrepo: open cache file for reading")

	// ErrCacheWrite is returned when appending a record to the persisted
	// cache file fails.
	ErrCacheWrite = errors.New("seqrepo: write cache file")

	// ErrCacheRead is returned when the persisted cache file cannot be
	// decoded.
	ErrCacheRead = errors.New("seqrepo: read cache file")

	// ErrCacheKeyNotFound is returned by the read-only cache when a key has
	// no pre-captured value.
	ErrCacheKeyNotFound = errors.New("seqrepo: key not found in cache")
)

// SchemaVersionError is returned when the sequence metadata database does
// not have the schema version this package expects.
type SchemaVersionError struct {
	Found    int
	Expected int
}

func (e *SchemaVersionError) Error() string {
	return fmt.Sprintf(
		"seqrepo: upgrade required: database schema version is %d and the code expects %d",
		e.Found, e.Expected,
	)
}

// AmbiguousAliasError is returned when an alias resolves to more than one
// distinct sequence id.
type AmbiguousAliasError struct {
	Alias  string
	SeqIDs []string
}

func (e *AmbiguousAliasError) Error() string {
	return fmt.Sprintf(
		"seqrepo: alias %q resolved to multiple sequence ids: %s",
		e.Alias, strings.Join(e.SeqIDs, ", "),
	)
}
