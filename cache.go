package seqrepo

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/varfish-org/seqrepo/internal/fasta"
)

// cacheKey renders a retrieval request as its persisted cache key:
// "<identifier>[:<begin|?>-<end|?>]". The range suffix is omitted when
// both bounds are nil; an absent bound inside a partial range renders as
// "?". This is the single source of truth for key derivation.
func cacheKey(aos AliasOrSeqID, begin, end *int) string {
	if begin == nil && end == nil {
		return aos.String()
	}
	return aos.String() + ":" + optInt(begin) + "-" + optInt(end)
}

func optInt(v *int) string {
	if v == nil {
		return "?"
	}
	return strconv.Itoa(*v)
}

// CacheWritingSeqRepo decorates a [Fetcher] with a read-through,
// write-back cache persisted as an append-only FASTA file: each record
// holds a normalized key as its name and the fetched sequence as its
// content. Repeated identical fetches append at most one record.
//
// If the cache file already exists, its contents are loaded at
// construction and new values are appended, so restarts accumulate
// rather than discard prior work. The file is single-writer; sharing it
// between processes is unsupported.
//
// A CacheWritingSeqRepo is safe for concurrent use. Concurrent misses for
// the same key are collapsed into a single upstream fetch.
type CacheWritingSeqRepo struct {
	repo   Fetcher
	logger *slog.Logger

	group singleflight.Group

	mu    sync.Mutex // guards cache and writer
	cache map[string]string
	file  *os.File
	w     *fasta.Writer
}

// CacheWritingOption configures a CacheWritingSeqRepo.
type CacheWritingOption func(*CacheWritingSeqRepo)

// CacheWritingWithLogger sets the logger used for hit/miss tracing.
func CacheWritingWithLogger(logger *slog.Logger) CacheWritingOption {
	return func(c *CacheWritingSeqRepo) {
		c.logger = logger
	}
}

// NewCacheWritingSeqRepo wraps repo with a cache persisted at path. A
// pre-existing file at path is loaded into the in-memory index before
// any new writes.
func NewCacheWritingSeqRepo(repo Fetcher, path string, opts ...CacheWritingOption) (*CacheWritingSeqRepo, error) {
	c := &CacheWritingSeqRepo{
		repo:  repo,
		cache: make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.loadExisting(path); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheOpenWrite, err)
	}
	c.file = file
	c.w = fasta.NewWriter(file)
	return c, nil
}

func (c *CacheWritingSeqRepo) loadExisting(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrCacheOpenRead, err)
	}
	defer f.Close()

	records, err := fasta.ReadAll(f)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrCacheRead, path, err)
	}
	for _, rec := range records {
		c.cache[rec.Name] = rec.Sequence
	}
	c.log().Debug("loaded existing cache file", "path", path, "entries", len(records))
	return nil
}

func (c *CacheWritingSeqRepo) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// Close flushes and closes the persisted cache file.
func (c *CacheWritingSeqRepo) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.w.Flush(); err != nil {
		c.file.Close()
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	return c.file.Close()
}

// FetchSequence implements [Fetcher].
func (c *CacheWritingSeqRepo) FetchSequence(aos AliasOrSeqID) (string, error) {
	return c.FetchSequencePart(aos, nil, nil)
}

// FetchSequencePart implements [Fetcher]. A hit is served from memory
// without touching the wrapped repository; a miss delegates, appends one
// record to the persisted file, and only then publishes the value to the
// in-memory index, so a failed append does not suppress a later retry.
func (c *CacheWritingSeqRepo) FetchSequencePart(aos AliasOrSeqID, begin, end *int) (string, error) {
	key := cacheKey(aos, begin, end)

	c.mu.Lock()
	if value, ok := c.cache[key]; ok {
		c.mu.Unlock()
		c.log().Debug("cache hit", "key", key)
		return value, nil
	}
	c.mu.Unlock()

	value, err, _ := c.group.Do(key, func() (any, error) {
		fetched, err := c.repo.FetchSequencePart(aos, begin, end)
		if err != nil {
			return nil, err
		}
		return fetched, c.store(key, fetched)
	})
	if err != nil {
		return "", err
	}
	return value.(string), nil
}

// store appends the record and publishes it to the in-memory index. The
// double-checked lookup keeps the append idempotent when a concurrent
// caller won the race after the singleflight window.
func (c *CacheWritingSeqRepo) store(key, value string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.cache[key]; ok {
		return nil
	}
	if err := c.w.WriteRecord(fasta.Record{Name: key, Sequence: value}); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	if err := c.w.Flush(); err != nil {
		return fmt.Errorf("%w: %w", ErrCacheWrite, err)
	}
	c.cache[key] = value
	c.log().Debug("cache miss stored", "key", key)
	return nil
}

// FetchRequest names one retrieval for [CacheWritingSeqRepo.Prefetch].
type FetchRequest struct {
	AliasOrSeqID AliasOrSeqID
	Begin, End   *int
}

// Prefetch warms the cache with the given requests, fetching misses
// concurrently. The first error aborts outstanding work and is returned.
func (c *CacheWritingSeqRepo) Prefetch(requests ...FetchRequest) error {
	var g errgroup.Group
	g.SetLimit(runtime.GOMAXPROCS(0))
	for _, req := range requests {
		g.Go(func() error {
			_, err := c.FetchSequencePart(req.AliasOrSeqID, req.Begin, req.End)
			return err
		})
	}
	return g.Wait()
}

// CacheReadingSeqRepo serves fetches exclusively from a pre-captured
// cache file written by [CacheWritingSeqRepo]. It has no live repository
// behind it: a key without a pre-captured value is a hard
// [ErrCacheKeyNotFound], never a fallback to live resolution. This makes
// replay deterministic, e.g. in CI.
type CacheReadingSeqRepo struct {
	cache map[string]string
}

// NewCacheReadingSeqRepo loads the cache file at path.
func NewCacheReadingSeqRepo(path string) (*CacheReadingSeqRepo, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCacheOpenRead, err)
	}
	defer f.Close()

	records, err := fasta.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCacheRead, path, err)
	}

	cache := make(map[string]string, len(records))
	for _, rec := range records {
		cache[rec.Name] = rec.Sequence
	}
	return &CacheReadingSeqRepo{cache: cache}, nil
}

// FetchSequence implements [Fetcher].
func (c *CacheReadingSeqRepo) FetchSequence(aos AliasOrSeqID) (string, error) {
	return c.FetchSequencePart(aos, nil, nil)
}

// FetchSequencePart implements [Fetcher].
func (c *CacheReadingSeqRepo) FetchSequencePart(aos AliasOrSeqID, begin, end *int) (string, error) {
	key := cacheKey(aos, begin, end)
	value, ok := c.cache[key]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrCacheKeyNotFound, key)
	}
	return value, nil
}
