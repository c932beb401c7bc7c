package seqrepo

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
)

// Fetcher is the retrieval capability shared by [SeqRepo],
// [CacheWritingSeqRepo], and [CacheReadingSeqRepo]. Callers depending on
// it are agnostic to whether fetches hit a live repository or a cache.
type Fetcher interface {
	// FetchSequence returns the complete sequence for the input.
	FetchSequence(aos AliasOrSeqID) (string, error)

	// FetchSequencePart returns the zero-based half-open fragment
	// [begin, end) of the sequence. A nil begin means the start of the
	// sequence, a nil end its full length.
	FetchSequencePart(aos AliasOrSeqID, begin, end *int) (string, error)
}

// Interface compliance.
var (
	_ Fetcher = (*SeqRepo)(nil)
	_ Fetcher = (*CacheWritingSeqRepo)(nil)
	_ Fetcher = (*CacheReadingSeqRepo)(nil)
)

// SeqRepo provides read-only access to one instance of a sequence
// repository, composing alias resolution and sequence retrieval.
type SeqRepo struct {
	rootDir  string
	instance string
	aliasDB  *AliasDB
	fastaDir *FastaDir
	logger   *slog.Logger
}

// Option configures a SeqRepo.
type Option func(*SeqRepo)

// WithLogger sets the logger, which is also passed through to the
// underlying [AliasDB] and [FastaDir].
func WithLogger(logger *slog.Logger) Option {
	return func(sr *SeqRepo) {
		sr.logger = logger
	}
}

// New opens the named repository instance under rootDir. The returned
// SeqRepo owns its backing-store connections; Close releases them.
func New(rootDir, instance string, opts ...Option) (*SeqRepo, error) {
	sr := &SeqRepo{rootDir: rootDir, instance: instance}
	for _, opt := range opts {
		opt(sr)
	}

	var aliasOpts []AliasDBOption
	var fastaOpts []FastaDirOption
	if sr.logger != nil {
		aliasOpts = append(aliasOpts, AliasDBWithLogger(sr.logger))
		fastaOpts = append(fastaOpts, FastaDirWithLogger(sr.logger))
	}

	aliasDB, err := OpenAliasDB(rootDir, instance, aliasOpts...)
	if err != nil {
		return nil, err
	}
	fastaDir, err := OpenFastaDir(filepath.Join(rootDir, instance, "sequences"), fastaOpts...)
	if err != nil {
		aliasDB.Close()
		return nil, err
	}

	sr.aliasDB = aliasDB
	sr.fastaDir = fastaDir
	return sr, nil
}

// RootDir returns the repository root directory.
func (sr *SeqRepo) RootDir() string {
	return sr.rootDir
}

// Instance returns the instance name.
func (sr *SeqRepo) Instance() string {
	return sr.instance
}

// AliasDB returns the underlying alias resolver for callers that want
// direct query access.
func (sr *SeqRepo) AliasDB() *AliasDB {
	return sr.aliasDB
}

// FastaDir returns the underlying sequence store for callers that want
// to bypass alias resolution.
func (sr *SeqRepo) FastaDir() *FastaDir {
	return sr.fastaDir
}

// Clone duplicates the SeqRepo with its own backing-store handles.
func (sr *SeqRepo) Clone() (*SeqRepo, error) {
	var opts []Option
	if sr.logger != nil {
		opts = append(opts, WithLogger(sr.logger))
	}
	return New(sr.rootDir, sr.instance, opts...)
}

// Close releases the backing-store connections.
func (sr *SeqRepo) Close() error {
	aliasErr := sr.aliasDB.Close()
	fastaErr := sr.fastaDir.Close()
	if aliasErr != nil {
		return aliasErr
	}
	return fastaErr
}

// FetchSequence implements [Fetcher].
func (sr *SeqRepo) FetchSequence(aos AliasOrSeqID) (string, error) {
	return sr.FetchSequencePart(aos, nil, nil)
}

// FetchSequencePart implements [Fetcher]. An alias input is resolved
// against current alias records only; zero matches and multiple distinct
// sequence ids are reported as [ErrAliasNotFound] and
// [*AmbiguousAliasError] respectively, never silently disambiguated.
func (sr *SeqRepo) FetchSequencePart(aos AliasOrSeqID, begin, end *int) (string, error) {
	if aos.isSeqID {
		return sr.fastaDir.FetchSequencePart(aos.seqID, begin, end)
	}

	seqID, err := sr.resolveAlias(aos)
	if err != nil {
		return "", err
	}
	return sr.fastaDir.FetchSequencePart(seqID, begin, end)
}

// resolveAlias maps an alias input to exactly one sequence id.
func (sr *SeqRepo) resolveAlias(aos AliasOrSeqID) (string, error) {
	query := Query{Alias: &aos.alias, Namespace: aos.namespace}

	var seqIDs []string
	for rec, err := range sr.aliasDB.Find(query) {
		if err != nil {
			return "", err
		}
		if !slices.Contains(seqIDs, rec.SeqID) {
			seqIDs = append(seqIDs, rec.SeqID)
		}
	}

	switch len(seqIDs) {
	case 0:
		return "", fmt.Errorf("%w: %q", ErrAliasNotFound, aos.alias)
	case 1:
		return seqIDs[0], nil
	default:
		return "", &AmbiguousAliasError{Alias: aos.alias, SeqIDs: seqIDs}
	}
}
