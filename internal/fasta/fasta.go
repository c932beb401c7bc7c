// Package fasta implements a minimal reader and writer for the FASTA
// text format: records of a ">name" header line followed by sequence
// lines. It covers what the repository needs for its persisted cache
// files and export output; it is not a general-purpose FASTA toolkit.
package fasta

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// DefaultLineWidth is the column at which Writer wraps sequence text.
const DefaultLineWidth = 80

// Record is one FASTA record. Name is the first whitespace-delimited
// token of the header; Description holds the remainder, if any.
type Record struct {
	Name        string
	Description string
	Sequence    string
}

// Reader reads FASTA records from a stream.
type Reader struct {
	sc   *bufio.Scanner
	next string // pending header line, without ">"
	eof  bool
}

// NewReader returns a Reader consuming r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 64*1024*1024)
	return &Reader{sc: sc}
}

// Read returns the next record, or io.EOF after the last one.
func (r *Reader) Read() (Record, error) {
	header, err := r.header()
	if err != nil {
		return Record{}, err
	}

	var rec Record
	rec.Name, rec.Description, _ = strings.Cut(header, " ")

	var seq strings.Builder
	for r.sc.Scan() {
		line := strings.TrimRight(r.sc.Text(), "\r")
		if strings.HasPrefix(line, ">") {
			r.next = line[1:]
			return withSequence(rec, seq.String()), nil
		}
		seq.WriteString(line)
	}
	if err := r.sc.Err(); err != nil {
		return Record{}, err
	}
	r.eof = true
	return withSequence(rec, seq.String()), nil
}

// header returns the next pending header line.
func (r *Reader) header() (string, error) {
	if r.next != "" {
		header := r.next
		r.next = ""
		return header, nil
	}
	if r.eof {
		return "", io.EOF
	}
	for r.sc.Scan() {
		line := strings.TrimRight(r.sc.Text(), "\r")
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, ">") {
			return "", fmt.Errorf("fasta: expected header line, got %q", line)
		}
		return line[1:], nil
	}
	if err := r.sc.Err(); err != nil {
		return "", err
	}
	return "", io.EOF
}

func withSequence(rec Record, seq string) Record {
	rec.Sequence = seq
	return rec
}

// ReadAll consumes the stream and returns all records.
func ReadAll(r io.Reader) ([]Record, error) {
	fr := NewReader(r)
	var records []Record
	for {
		rec, err := fr.Read()
		if err == io.EOF {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
}

// Writer writes FASTA records, wrapping sequence text at a fixed width.
type Writer struct {
	w     *bufio.Writer
	width int
}

// NewWriter returns a Writer wrapping sequence lines at DefaultLineWidth.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w), width: DefaultLineWidth}
}

// NewWriterWidth returns a Writer wrapping sequence lines at width
// columns.
func NewWriterWidth(w io.Writer, width int) *Writer {
	if width <= 0 {
		width = DefaultLineWidth
	}
	return &Writer{w: bufio.NewWriter(w), width: width}
}

// WriteRecord writes a single record.
func (w *Writer) WriteRecord(rec Record) error {
	header := rec.Name
	if rec.Description != "" {
		header += " " + rec.Description
	}
	if _, err := fmt.Fprintf(w.w, ">%s\n", header); err != nil {
		return err
	}
	for seq := rec.Sequence; len(seq) > 0; {
		n := min(w.width, len(seq))
		if _, err := w.w.WriteString(seq[:n]); err != nil {
			return err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
		seq = seq[n:]
	}
	return nil
}

// Flush writes buffered output to the underlying writer.
func (w *Writer) Flush() error {
	return w.w.Flush()
}
