package seqrepo

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/varfish-org/seqrepo/internal/faidx"
)

// expectedSchemaVersion is the sequence metadata schema this package
// understands. Opening a FastaDir with any other version fails.
const expectedSchemaVersion = 1

// SeqInfo is the stored metadata for one sequence.
type SeqInfo struct {
	// SeqID is the content-stable sequence identifier.
	SeqID string

	// Len is the sequence length in symbols.
	Len int

	// Alpha is the alphabet class, e.g. "ACGT".
	Alpha string

	// Added is the insertion timestamp.
	Added time.Time

	// RelPath locates the compressed container relative to the sequences
	// directory.
	RelPath string
}

// FastaDir provides keyed random access to a directory of
// bgzip-compressed FASTA files, the "sequences" directory of a repository
// instance. Sequence metadata comes from the read-only db.sqlite3
// database inside it; fragment reads go through the sidecar-indexed
// containers it references.
type FastaDir struct {
	rootDir       string
	db            *sql.DB
	schemaVersion int
	logger        *slog.Logger
}

// FastaDirOption configures a FastaDir.
type FastaDirOption func(*FastaDir)

// FastaDirWithLogger sets the logger used for fetch tracing.
func FastaDirWithLogger(logger *slog.Logger) FastaDirOption {
	return func(fd *FastaDir) {
		fd.logger = logger
	}
}

// OpenFastaDir opens the sequences directory at rootDir. It validates the
// metadata schema version and fails with a [SchemaVersionError] carrying
// both the found and the expected version on mismatch.
func OpenFastaDir(rootDir string, opts ...FastaDirOption) (*FastaDir, error) {
	fd := &FastaDir{rootDir: rootDir}
	for _, opt := range opts {
		opt(fd)
	}

	db, err := openReadOnly(filepath.Join(rootDir, "db.sqlite3"))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSeqInfoDBOpen, err)
	}

	version, err := fetchSchemaVersion(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if version != expectedSchemaVersion {
		db.Close()
		return nil, &SchemaVersionError{Found: version, Expected: expectedSchemaVersion}
	}

	fd.db = db
	fd.schemaVersion = version
	return fd, nil
}

func fetchSchemaVersion(db *sql.DB) (int, error) {
	var value string
	err := db.QueryRow(`SELECT value FROM meta WHERE key = 'schema version'`).Scan(&value)
	if err != nil {
		return 0, fmt.Errorf("%w: schema version: %w", ErrSeqInfoQuery, err)
	}
	version, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%w: schema version %q: %w", ErrSeqInfoQuery, value, err)
	}
	return version, nil
}

func (fd *FastaDir) log() *slog.Logger {
	if fd.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return fd.logger
}

// SchemaVersion returns the schema version read from the database.
func (fd *FastaDir) SchemaVersion() int {
	return fd.schemaVersion
}

// Clone duplicates the FastaDir with its own database handle.
func (fd *FastaDir) Clone() (*FastaDir, error) {
	var opts []FastaDirOption
	if fd.logger != nil {
		opts = append(opts, FastaDirWithLogger(fd.logger))
	}
	return OpenFastaDir(fd.rootDir, opts...)
}

// Close releases the database handle.
func (fd *FastaDir) Close() error {
	return fd.db.Close()
}

// SeqInfo returns the metadata for the given sequence id. When the id was
// imported more than once, the most recently added row wins. An unknown
// id is reported as [ErrUnknownSeqID].
func (fd *FastaDir) SeqInfo(seqID string) (SeqInfo, error) {
	row := fd.db.QueryRow(
		`SELECT seq_id, len, alpha, added, relpath FROM seqinfo WHERE seq_id = ? ORDER BY added DESC LIMIT 1`,
		seqID,
	)

	var (
		info  SeqInfo
		added string
	)
	err := row.Scan(&info.SeqID, &info.Len, &info.Alpha, &added, &info.RelPath)
	if errors.Is(err, sql.ErrNoRows) {
		return SeqInfo{}, fmt.Errorf("%w: %q", ErrUnknownSeqID, seqID)
	}
	if err != nil {
		return SeqInfo{}, fmt.Errorf("%w: seqinfo for %q: %w", ErrSeqInfoQuery, seqID, err)
	}

	ts, err := time.Parse(timestampLayout, added)
	if err != nil {
		return SeqInfo{}, fmt.Errorf("%w: timestamp %q: %w", ErrSeqInfoQuery, added, err)
	}
	info.Added = ts
	return info, nil
}

// FetchSequence returns the complete sequence for the given id.
func (fd *FastaDir) FetchSequence(seqID string) (string, error) {
	return fd.FetchSequencePart(seqID, nil, nil)
}

// FetchSequencePart returns the fragment [begin, end) of the sequence,
// zero-based and half-open in symbol units. A nil begin means the start
// of the sequence, a nil end its recorded length; an end beyond the
// recorded length is silently clamped, so any large end value reads to
// the end of the sequence. A range that is empty after clamping returns
// the empty string.
func (fd *FastaDir) FetchSequencePart(seqID string, begin, end *int) (string, error) {
	info, err := fd.SeqInfo(seqID)
	if err != nil {
		return "", err
	}

	b := 0
	if begin != nil && *begin > 0 {
		b = *begin
	}
	e := info.Len
	if end != nil && *end < info.Len {
		e = *end
	}
	if b >= e {
		return "", nil
	}

	path := filepath.Join(fd.rootDir, filepath.FromSlash(info.RelPath))
	fd.log().Debug("fetching fragment", "seq_id", seqID, "begin", b, "end", e, "container", path)

	reader, err := faidx.Open(path)
	if err != nil {
		return "", err
	}
	return reader.Fetch(seqID, b+1, e)
}
