package faidx_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/varfish-org/seqrepo/internal/faidx"
	"github.com/varfish-org/seqrepo/internal/testutil"
)

func writeTestContainer(t *testing.T) (string, map[string]string) {
	t.Helper()

	seqs := map[string]string{
		"seqA": testutil.Sequence(1000),
		"seqB": testutil.Sequence(700),
	}
	path := filepath.Join(t.TempDir(), "test.fa.bgz")
	testutil.WriteContainer(t, path, seqs)
	return path, seqs
}

func TestFetchFull(t *testing.T) {
	t.Parallel()

	path, seqs := writeTestContainer(t)
	r, err := faidx.Open(path)
	require.NoError(t, err)

	for name, seq := range seqs {
		got, err := r.Fetch(name, 1, len(seq))
		require.NoError(t, err)
		assert.Equal(t, seq, got)
	}
}

func TestFetchFragment(t *testing.T) {
	t.Parallel()

	path, seqs := writeTestContainer(t)
	r, err := faidx.Open(path)
	require.NoError(t, err)

	seq := seqs["seqA"]
	for _, tc := range []struct{ start, end int }{
		{1, 1},
		{1, 10},
		{59, 62},    // crosses a line boundary
		{250, 270},  // crosses a block boundary
		{991, 1000}, // tail
	} {
		got, err := r.Fetch("seqA", tc.start, tc.end)
		require.NoError(t, err)
		assert.Equal(t, seq[tc.start-1:tc.end], got, "range [%d, %d]", tc.start, tc.end)
	}
}

func TestLength(t *testing.T) {
	t.Parallel()

	path, _ := writeTestContainer(t)
	r, err := faidx.Open(path)
	require.NoError(t, err)

	n, err := r.Length("seqB")
	require.NoError(t, err)
	assert.Equal(t, 700, n)

	_, err = r.Length("nope")
	assert.ErrorIs(t, err, faidx.ErrRecordNotFound)
}

func TestFetchUnknownRecord(t *testing.T) {
	t.Parallel()

	path, _ := writeTestContainer(t)
	r, err := faidx.Open(path)
	require.NoError(t, err)

	_, err = r.Fetch("nope", 1, 10)
	assert.ErrorIs(t, err, faidx.ErrRecordNotFound)
}

func TestFetchInvalidRange(t *testing.T) {
	t.Parallel()

	path, _ := writeTestContainer(t)
	r, err := faidx.Open(path)
	require.NoError(t, err)

	for _, tc := range []struct{ start, end int }{
		{0, 10},
		{5, 4},
		{1, 1001},
	} {
		_, err := r.Fetch("seqA", tc.start, tc.end)
		assert.ErrorIs(t, err, faidx.ErrRange, "range [%d, %d]", tc.start, tc.end)
	}
}

func TestOpenMissingFaiIndex(t *testing.T) {
	t.Parallel()

	path, _ := writeTestContainer(t)
	require.NoError(t, os.Remove(path+faidx.FaiSuffix))

	_, err := faidx.Open(path)
	assert.ErrorIs(t, err, faidx.ErrFaiIndex)
}

func TestOpenMissingGziIndex(t *testing.T) {
	t.Parallel()

	path, _ := writeTestContainer(t)
	require.NoError(t, os.Remove(path+faidx.GziSuffix))

	_, err := faidx.Open(path)
	assert.ErrorIs(t, err, faidx.ErrGziIndex)
}

func TestFetchMissingContainer(t *testing.T) {
	t.Parallel()

	path, _ := writeTestContainer(t)
	r, err := faidx.Open(path)
	require.NoError(t, err)
	require.NoError(t, os.Remove(path))

	_, err = r.Fetch("seqA", 1, 10)
	assert.ErrorIs(t, err, faidx.ErrContainer)
}

func TestFetchCorruptContainer(t *testing.T) {
	t.Parallel()

	path, _ := writeTestContainer(t)
	r, err := faidx.Open(path)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, []byte("not gzip data"), 0o644))

	_, err = r.Fetch("seqA", 1, 10)
	assert.ErrorIs(t, err, faidx.ErrDecode)
}
