package seqrepo

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varfish-org/seqrepo/internal/fasta"
	"github.com/varfish-org/seqrepo/internal/testutil"
)

// fakeFetcher serves sequences from a map, counting upstream calls.
type fakeFetcher struct {
	seqs  map[string]string
	calls atomic.Int64
}

func (f *fakeFetcher) FetchSequence(aos AliasOrSeqID) (string, error) {
	return f.FetchSequencePart(aos, nil, nil)
}

func (f *fakeFetcher) FetchSequencePart(aos AliasOrSeqID, begin, end *int) (string, error) {
	f.calls.Add(1)
	seq, ok := f.seqs[aos.String()]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownSeqID, aos.String())
	}
	b := 0
	if begin != nil {
		b = *begin
	}
	e := len(seq)
	if end != nil && *end < e {
		e = *end
	}
	if b >= e {
		return "", nil
	}
	return seq[b:e], nil
}

func TestCacheKey(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		name string
		aos  AliasOrSeqID
		b, e *int
		want string
	}{
		{"namespaced alias no range", NewNamespacedAlias("A", "X"), nil, nil, "A:X"},
		{"bare alias end only", NewAlias("X"), nil, intPtr(4), "X:?-4"},
		{"seq id full range", NewSeqID("S1"), intPtr(0), intPtr(4), "S1:0-4"},
		{"bare alias no range", NewAlias("X"), nil, nil, "X"},
		{"empty namespace is bare", NewNamespacedAlias("", "X"), nil, nil, "X"},
		{"begin only", NewSeqID("S1"), intPtr(7), nil, "S1:7-?"},
		{"namespaced with range", NewNamespacedAlias("NCBI", "NM_1.1"), intPtr(1), intPtr(2), "NCBI:NM_1.1:1-2"},
	} {
		assert.Equal(t, tc.want, cacheKey(tc.aos, tc.b, tc.e), tc.name)
	}
}

func TestCacheKeyDistinguishesRequests(t *testing.T) {
	t.Parallel()

	// Semantically different requests must never collide.
	keys := []string{
		cacheKey(NewAlias("X"), nil, nil),
		cacheKey(NewNamespacedAlias("A", "X"), nil, nil),
		cacheKey(NewNamespacedAlias("B", "X"), nil, nil),
		cacheKey(NewAlias("X"), nil, intPtr(4)),
		cacheKey(NewAlias("X"), intPtr(0), intPtr(4)),
		cacheKey(NewAlias("X"), intPtr(0), nil),
	}
	seen := make(map[string]bool)
	for _, key := range keys {
		assert.False(t, seen[key], "duplicate key %q", key)
		seen[key] = true
	}
}

func readCacheRecords(t *testing.T, path string) []fasta.Record {
	t.Helper()

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := fasta.ReadAll(f)
	require.NoError(t, err)
	return records
}

func TestCacheWritingFetch(t *testing.T) {
	t.Parallel()

	upstream := &fakeFetcher{seqs: map[string]string{"S1": "ACTGACTG"}}
	path := filepath.Join(t.TempDir(), "cache.fasta")

	cw, err := NewCacheWritingSeqRepo(upstream, path)
	require.NoError(t, err)
	defer cw.Close()

	got, err := cw.FetchSequencePart(NewSeqID("S1"), intPtr(0), intPtr(4))
	require.NoError(t, err)
	assert.Equal(t, "ACTG", got)

	// The identical fetch is served from memory and appends nothing.
	got, err = cw.FetchSequencePart(NewSeqID("S1"), intPtr(0), intPtr(4))
	require.NoError(t, err)
	assert.Equal(t, "ACTG", got)
	assert.EqualValues(t, 1, upstream.calls.Load())

	records := readCacheRecords(t, path)
	require.Len(t, records, 1)
	assert.Equal(t, "S1:0-4", records[0].Name)
	assert.Equal(t, "ACTG", records[0].Sequence)
}

func TestCacheWritingDistinctKeys(t *testing.T) {
	t.Parallel()

	upstream := &fakeFetcher{seqs: map[string]string{"S1": "ACTGACTG"}}
	path := filepath.Join(t.TempDir(), "cache.fasta")

	cw, err := NewCacheWritingSeqRepo(upstream, path)
	require.NoError(t, err)
	defer cw.Close()

	_, err = cw.FetchSequence(NewSeqID("S1"))
	require.NoError(t, err)
	_, err = cw.FetchSequencePart(NewSeqID("S1"), nil, intPtr(4))
	require.NoError(t, err)
	_, err = cw.FetchSequencePart(NewSeqID("S1"), intPtr(0), intPtr(4))
	require.NoError(t, err)

	assert.Len(t, readCacheRecords(t, path), 3)
}

func TestCacheWritingErrorNotCached(t *testing.T) {
	t.Parallel()

	upstream := &fakeFetcher{seqs: map[string]string{}}
	path := filepath.Join(t.TempDir(), "cache.fasta")

	cw, err := NewCacheWritingSeqRepo(upstream, path)
	require.NoError(t, err)
	defer cw.Close()

	_, err = cw.FetchSequence(NewSeqID("S1"))
	assert.ErrorIs(t, err, ErrUnknownSeqID)
	assert.Empty(t, readCacheRecords(t, path))

	// The failure was not cached; a retry hits upstream again.
	_, err = cw.FetchSequence(NewSeqID("S1"))
	assert.Error(t, err)
	assert.EqualValues(t, 2, upstream.calls.Load())
}

func TestCacheWritingFailedAppendAllowsRetry(t *testing.T) {
	t.Parallel()

	upstream := &fakeFetcher{seqs: map[string]string{"S1": "ACTG"}}
	path := filepath.Join(t.TempDir(), "cache.fasta")

	cw, err := NewCacheWritingSeqRepo(upstream, path)
	require.NoError(t, err)
	// Closing the file makes the next append fail.
	require.NoError(t, cw.Close())

	_, err = cw.FetchSequence(NewSeqID("S1"))
	assert.ErrorIs(t, err, ErrCacheWrite)

	// The failed append must not have populated the in-memory index.
	_, err = cw.FetchSequence(NewSeqID("S1"))
	assert.ErrorIs(t, err, ErrCacheWrite)
	assert.EqualValues(t, 2, upstream.calls.Load())
}

func TestCacheWritingCumulativeRestart(t *testing.T) {
	t.Parallel()

	upstream := &fakeFetcher{seqs: map[string]string{"S1": "ACTG", "S2": "GGCC"}}
	path := filepath.Join(t.TempDir(), "cache.fasta")

	cw, err := NewCacheWritingSeqRepo(upstream, path)
	require.NoError(t, err)
	_, err = cw.FetchSequence(NewSeqID("S1"))
	require.NoError(t, err)
	require.NoError(t, cw.Close())

	// A second instance on the same file starts from the prior contents.
	cw, err = NewCacheWritingSeqRepo(upstream, path)
	require.NoError(t, err)
	defer cw.Close()

	got, err := cw.FetchSequence(NewSeqID("S1"))
	require.NoError(t, err)
	assert.Equal(t, "ACTG", got)
	assert.EqualValues(t, 1, upstream.calls.Load(), "S1 must be served from the loaded index")

	_, err = cw.FetchSequence(NewSeqID("S2"))
	require.NoError(t, err)

	records := readCacheRecords(t, path)
	assert.Len(t, records, 2)
}

func TestCacheWritingConcurrent(t *testing.T) {
	t.Parallel()

	upstream := &fakeFetcher{seqs: map[string]string{"S1": "ACTGACTG"}}
	path := filepath.Join(t.TempDir(), "cache.fasta")

	cw, err := NewCacheWritingSeqRepo(upstream, path)
	require.NoError(t, err)
	defer cw.Close()

	var wg sync.WaitGroup
	for range 16 {
		wg.Go(func() {
			got, err := cw.FetchSequence(NewSeqID("S1"))
			assert.NoError(t, err)
			assert.Equal(t, "ACTGACTG", got)
		})
	}
	wg.Wait()

	// At most one computation becomes visible in the persisted file.
	assert.Len(t, readCacheRecords(t, path), 1)
}

func TestCacheWritingPrefetch(t *testing.T) {
	t.Parallel()

	upstream := &fakeFetcher{seqs: map[string]string{"S1": "ACTG", "S2": "GGCC"}}
	path := filepath.Join(t.TempDir(), "cache.fasta")

	cw, err := NewCacheWritingSeqRepo(upstream, path)
	require.NoError(t, err)
	defer cw.Close()

	err = cw.Prefetch(
		FetchRequest{AliasOrSeqID: NewSeqID("S1")},
		FetchRequest{AliasOrSeqID: NewSeqID("S1")}, // duplicate collapses
		FetchRequest{AliasOrSeqID: NewSeqID("S2"), Begin: intPtr(0), End: intPtr(2)},
	)
	require.NoError(t, err)

	assert.Len(t, readCacheRecords(t, path), 2)
}

func TestCacheReading(t *testing.T) {
	t.Parallel()

	upstream := &fakeFetcher{seqs: map[string]string{"S1": "ACTGACTG"}}
	path := filepath.Join(t.TempDir(), "cache.fasta")

	cw, err := NewCacheWritingSeqRepo(upstream, path)
	require.NoError(t, err)
	_, err = cw.FetchSequence(NewSeqID("S1"))
	require.NoError(t, err)
	_, err = cw.FetchSequencePart(NewSeqID("S1"), intPtr(0), intPtr(4))
	require.NoError(t, err)
	require.NoError(t, cw.Close())

	cr, err := NewCacheReadingSeqRepo(path)
	require.NoError(t, err)

	// Identical arguments return the identical values, without upstream.
	got, err := cr.FetchSequence(NewSeqID("S1"))
	require.NoError(t, err)
	assert.Equal(t, "ACTGACTG", got)

	got, err = cr.FetchSequencePart(NewSeqID("S1"), intPtr(0), intPtr(4))
	require.NoError(t, err)
	assert.Equal(t, "ACTG", got)

	// A miss is a hard error, never a fallback to live resolution.
	_, err = cr.FetchSequencePart(NewSeqID("S1"), intPtr(0), intPtr(5))
	assert.ErrorIs(t, err, ErrCacheKeyNotFound)
	assert.Contains(t, err.Error(), "S1:0-5")
	assert.EqualValues(t, 2, upstream.calls.Load())
}

func TestCacheReadingMissingFile(t *testing.T) {
	t.Parallel()

	_, err := NewCacheReadingSeqRepo(filepath.Join(t.TempDir(), "nope.fasta"))
	assert.ErrorIs(t, err, ErrCacheOpenRead)
}

func TestCacheAgainstRepo(t *testing.T) {
	t.Parallel()

	seqs := map[string]string{transcriptID: testutil.Sequence(transcriptLen)}
	root := t.TempDir()
	testutil.WriteRepo(t, root, "latest", seqs, []testutil.AliasRow{
		{SeqID: transcriptID, Alias: "NM_001304430.2", Namespace: "NCBI", IsCurrent: true},
	})
	sr, err := New(root, "latest")
	require.NoError(t, err)
	defer sr.Close()

	path := filepath.Join(t.TempDir(), "cache.fasta")
	cw, err := NewCacheWritingSeqRepo(sr, path)
	require.NoError(t, err)

	aos := NewAlias("NM_001304430.2")
	want := seqs[transcriptID]

	for range 2 { // fetching twice does not change the cache content
		got, err := cw.FetchSequence(aos)
		require.NoError(t, err)
		assert.Equal(t, want, got)

		got, err = cw.FetchSequencePart(aos, nil, intPtr(4))
		require.NoError(t, err)
		assert.Equal(t, want[:4], got)

		got, err = cw.FetchSequencePart(aos, intPtr(1869), nil)
		require.NoError(t, err)
		assert.Equal(t, want[1869:], got)
	}
	require.NoError(t, cw.Close())
	require.Len(t, readCacheRecords(t, path), 3)

	// Replay through the read-only variant, repository-free.
	cr, err := NewCacheReadingSeqRepo(path)
	require.NoError(t, err)

	got, err := cr.FetchSequence(aos)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	got, err = cr.FetchSequencePart(aos, nil, intPtr(4))
	require.NoError(t, err)
	assert.Equal(t, want[:4], got)
}
