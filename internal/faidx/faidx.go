// Package faidx provides random access to bgzip-compressed FASTA
// containers through their sidecar indexes.
//
// A container "seqs.fa.bgz" is expected to sit next to two index files:
// "seqs.fa.bgz.fai" maps record names to byte offsets in the uncompressed
// FASTA text, and "seqs.fa.bgz.gzi" maps uncompressed byte offsets to the
// compressed offsets of BGZF block boundaries. Together they allow a
// requested fragment to be served by inflating only the blocks that cover
// it, without decompressing the whole container.
package faidx

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Sidecar index suffixes, appended to the full container file name.
const (
	FaiSuffix = ".fai"
	GziSuffix = ".gzi"
)

// Sentinel errors.
var (
	// ErrFaiIndex is returned when the record-offset index cannot be read.
	ErrFaiIndex = errors.New("faidx: fai index")

	// ErrGziIndex is returned when the block-offset index cannot be read.
	ErrGziIndex = errors.New("faidx: gzi index")

	// ErrContainer is returned when the compressed container cannot be read.
	ErrContainer = errors.New("faidx: container")

	// ErrDecode is returned when block decompression fails or yields less
	// data than the indexes promise.
	ErrDecode = errors.New("faidx: decode")

	// ErrRecordNotFound is returned when the requested record name is not
	// present in the record-offset index.
	ErrRecordNotFound = errors.New("faidx: record not found")

	// ErrRange is returned when the requested position range is invalid
	// for the record.
	ErrRange = errors.New("faidx: invalid range")
)

// Reader serves fragments of records stored in a bgzip-compressed FASTA
// container. Both sidecar indexes are loaded at construction; the
// container itself is opened per fetch, so a Reader may be shared across
// goroutines.
type Reader struct {
	path    string
	records map[string]faiRecord
	blocks  []blockOffset
}

// Open loads the sidecar indexes for the container at path.
func Open(path string) (*Reader, error) {
	faiFile, err := os.Open(path + FaiSuffix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFaiIndex, err)
	}
	defer faiFile.Close()
	records, err := parseFai(bufio.NewReader(faiFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrFaiIndex, path+FaiSuffix, err)
	}

	gziFile, err := os.Open(path + GziSuffix)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrGziIndex, err)
	}
	defer gziFile.Close()
	blocks, err := parseGzi(bufio.NewReader(gziFile))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrGziIndex, path+GziSuffix, err)
	}

	return &Reader{path: path, records: records, blocks: blocks}, nil
}

// Names returns the record names present in the container index.
func (r *Reader) Names() []string {
	names := make([]string, 0, len(r.records))
	for name := range r.records {
		names = append(names, name)
	}
	return names
}

// Length returns the symbol count of the named record.
func (r *Reader) Length(name string) (int, error) {
	rec, ok := r.records[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrRecordNotFound, name)
	}
	return rec.Length, nil
}

// Fetch returns the symbols of the named record in the 1-based inclusive
// position range [start, end].
func (r *Reader) Fetch(name string, start, end int) (string, error) {
	rec, ok := r.records[name]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrRecordNotFound, name)
	}
	if start < 1 || end < start || end > rec.Length {
		return "", fmt.Errorf("%w: [%d, %d] of %q (length %d)", ErrRange, start, end, name, rec.Length)
	}

	// Byte offsets of the first and last requested symbol in the
	// uncompressed FASTA text, accounting for line terminators.
	first := int64(start - 1)
	last := int64(end - 1)
	lineBases := int64(rec.LineBases)
	lineWidth := int64(rec.LineWidth)
	byteStart := rec.Offset + first/lineBases*lineWidth + first%lineBases
	byteEnd := rec.Offset + last/lineBases*lineWidth + last%lineBases + 1

	raw, err := r.readUncompressed(byteStart, byteEnd-byteStart)
	if err != nil {
		return "", err
	}

	seq := strings.NewReplacer("\n", "", "\r", "").Replace(string(raw))
	if len(seq) != end-start+1 {
		return "", fmt.Errorf("%w: got %d symbols for [%d, %d] of %q", ErrDecode, len(seq), start, end, name)
	}
	return seq, nil
}

// readUncompressed inflates n bytes starting at the given offset in the
// uncompressed coordinate system.
func (r *Reader) readUncompressed(offset, n int64) ([]byte, error) {
	f, err := os.Open(r.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrContainer, err)
	}
	defer f.Close()

	blk := blockAt(r.blocks, offset)
	if _, err := f.Seek(blk.Compressed, io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek: %w", ErrContainer, err)
	}

	// BGZF blocks are plain gzip members laid out back to back, so a
	// multistream gzip reader inflates forward across block boundaries.
	zr, err := gzip.NewReader(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	defer zr.Close()

	if _, err := io.CopyN(io.Discard, zr, offset-blk.Uncompressed); err != nil {
		return nil, fmt.Errorf("%w: skip to offset %d: %w", ErrDecode, offset, err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(zr, buf); err != nil {
		return nil, fmt.Errorf("%w: read %d bytes at offset %d: %w", ErrDecode, n, offset, err)
	}
	return buf, nil
}
