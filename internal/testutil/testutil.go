// Package testutil builds synthetic sequence repositories on disk for
// tests: the per-instance alias database, the sequence metadata database,
// and bgzip-compressed FASTA containers with their sidecar indexes.
package testutil

import (
	"bytes"
	"database/sql"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// Timestamp is the insertion timestamp used for fixture rows.
const Timestamp = "2023-02-16 09:46:06"

// RelPath is the storage-relative container path used by WriteRepo,
// mimicking the dated layout of real repositories.
const RelPath = "2023/0216/0946/test.fa.bgz"

// Container line and block geometry. Small blocks force fetches to cross
// block boundaries even for short fixture sequences.
const (
	lineBases = 60
	blockSize = 256
)

// AliasRow is one row of the seqalias fixture table.
type AliasRow struct {
	SeqID     string
	Alias     string
	Namespace string
	Added     string // Timestamp if empty
	IsCurrent bool
}

// SeqInfoRow is one row of the seqinfo fixture table.
type SeqInfoRow struct {
	SeqID   string
	Len     int
	Alpha   string
	Added   string // Timestamp if empty
	RelPath string
}

// Sequence returns a deterministic pseudo-random nucleotide sequence of
// length n.
func Sequence(n int) string {
	const bases = "ACGT"
	b := make([]byte, n)
	x := uint32(1103)
	for i := range b {
		x = x*1664525 + 1013904223
		b[i] = bases[x>>24&3]
	}
	return string(b)
}

// WriteAliasDB creates an aliases.sqlite3 fixture at path.
func WriteAliasDB(tb testing.TB, path string, rows []AliasRow) {
	tb.Helper()

	db := createDB(tb, path)
	defer db.Close()

	_, err := db.Exec(`CREATE TABLE seqalias (
		seqalias_id INTEGER PRIMARY KEY,
		seq_id TEXT NOT NULL,
		alias TEXT NOT NULL,
		added TEXT NOT NULL,
		is_current INTEGER NOT NULL,
		namespace TEXT NOT NULL
	)`)
	require.NoError(tb, err)

	for _, row := range rows {
		added := row.Added
		if added == "" {
			added = Timestamp
		}
		current := 0
		if row.IsCurrent {
			current = 1
		}
		_, err := db.Exec(
			`INSERT INTO seqalias (seq_id, alias, added, is_current, namespace) VALUES (?, ?, ?, ?, ?)`,
			row.SeqID, row.Alias, added, current, row.Namespace,
		)
		require.NoError(tb, err)
	}
}

// WriteSeqInfoDB creates a db.sqlite3 fixture at path with the given
// schema version string in the meta table.
func WriteSeqInfoDB(tb testing.TB, path, schemaVersion string, rows []SeqInfoRow) {
	tb.Helper()

	db := createDB(tb, path)
	defer db.Close()

	_, err := db.Exec(`CREATE TABLE meta (key TEXT PRIMARY KEY, value TEXT NOT NULL)`)
	require.NoError(tb, err)
	_, err = db.Exec(`INSERT INTO meta (key, value) VALUES ('schema version', ?)`, schemaVersion)
	require.NoError(tb, err)

	_, err = db.Exec(`CREATE TABLE seqinfo (
		seq_id TEXT NOT NULL,
		len INTEGER NOT NULL,
		alpha TEXT NOT NULL,
		added TEXT NOT NULL,
		relpath TEXT NOT NULL
	)`)
	require.NoError(tb, err)

	for _, row := range rows {
		added := row.Added
		if added == "" {
			added = Timestamp
		}
		_, err := db.Exec(
			`INSERT INTO seqinfo (seq_id, len, alpha, added, relpath) VALUES (?, ?, ?, ?, ?)`,
			row.SeqID, row.Len, row.Alpha, added, row.RelPath,
		)
		require.NoError(tb, err)
	}
}

func createDB(tb testing.TB, path string) *sql.DB {
	tb.Helper()

	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o755))
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path))
	require.NoError(tb, err)
	return db
}

// WriteContainer writes a bgzip-compressed FASTA container holding the
// given sequences, plus its .fai and .gzi sidecar indexes. Records are
// laid out in sorted name order.
func WriteContainer(tb testing.TB, path string, seqs map[string]string) {
	tb.Helper()

	names := make([]string, 0, len(seqs))
	for name := range seqs {
		names = append(names, name)
	}
	sort.Strings(names)

	var text bytes.Buffer
	var fai bytes.Buffer
	for _, name := range names {
		seq := seqs[name]
		fmt.Fprintf(&text, ">%s\n", name)
		fmt.Fprintf(&fai, "%s\t%d\t%d\t%d\t%d\n", name, len(seq), text.Len(), lineBases, lineBases+1)
		for len(seq) > 0 {
			n := min(lineBases, len(seq))
			text.WriteString(seq[:n])
			text.WriteByte('\n')
			seq = seq[n:]
		}
	}

	require.NoError(tb, os.MkdirAll(filepath.Dir(path), 0o755))
	writeBGZF(tb, path, text.Bytes())
	require.NoError(tb, os.WriteFile(path+".fai", fai.Bytes(), 0o644))
}

// writeBGZF compresses data into back-to-back gzip members of blockSize
// uncompressed bytes each and writes the matching .gzi index.
func writeBGZF(tb testing.TB, path string, data []byte) {
	tb.Helper()

	var container bytes.Buffer
	var offsets [][2]uint64 // (compressed, uncompressed) block starts after the first

	for chunk := 0; chunk*blockSize < len(data); chunk++ {
		if chunk > 0 {
			offsets = append(offsets, [2]uint64{uint64(container.Len()), uint64(chunk * blockSize)})
		}
		end := min((chunk+1)*blockSize, len(data))
		zw := gzip.NewWriter(&container)
		_, err := zw.Write(data[chunk*blockSize : end])
		require.NoError(tb, err)
		require.NoError(tb, zw.Close())
	}

	var gzi bytes.Buffer
	require.NoError(tb, binary.Write(&gzi, binary.LittleEndian, uint64(len(offsets))))
	for _, off := range offsets {
		require.NoError(tb, binary.Write(&gzi, binary.LittleEndian, off))
	}

	require.NoError(tb, os.WriteFile(path, container.Bytes(), 0o644))
	require.NoError(tb, os.WriteFile(path+".gzi", gzi.Bytes(), 0o644))
}

// WriteRepo builds a complete repository instance under root: alias
// database, sequence metadata database, and one container holding all of
// seqs. Alias rows are the caller's to provide so tests can model
// historical and ambiguous aliases.
func WriteRepo(tb testing.TB, root, instance string, seqs map[string]string, aliases []AliasRow) {
	tb.Helper()

	instanceDir := filepath.Join(root, instance)
	seqDir := filepath.Join(instanceDir, "sequences")

	WriteAliasDB(tb, filepath.Join(instanceDir, "aliases.sqlite3"), aliases)

	rows := make([]SeqInfoRow, 0, len(seqs))
	for seqID, seq := range seqs {
		rows = append(rows, SeqInfoRow{SeqID: seqID, Len: len(seq), Alpha: "ACGT", RelPath: RelPath})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].SeqID < rows[j].SeqID })
	WriteSeqInfoDB(tb, filepath.Join(seqDir, "db.sqlite3"), "1", rows)

	WriteContainer(tb, filepath.Join(seqDir, filepath.FromSlash(RelPath)), seqs)
}
